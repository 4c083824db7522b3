// Package drawing defines the artifacts produced for each ingested drawing:
// the coordinate list, the descriptor map and the paths they live at.
package drawing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
)

// Point is a labelled reference point in preview-image pixel space.
// It is serialized as the JSON triple [x, y, id].
type Point struct {
	X  int
	Y  int
	ID int
}

// MarshalJSON encodes the point as [x, y, id].
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]int{p.X, p.Y, p.ID})
}

// UnmarshalJSON decodes [x, y, id]. Fractional values written by
// calibration tools are rounded to the nearest pixel.
func (p *Point) UnmarshalJSON(data []byte) error {
	var raw []float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("coordinate point: %w", err)
	}
	if len(raw) != 3 {
		return fmt.Errorf("coordinate point: expected 3 values, got %d", len(raw))
	}
	p.X = int(math.Round(raw[0]))
	p.Y = int(math.Round(raw[1]))
	p.ID = int(math.Round(raw[2]))
	return nil
}

// Coordinates is the ordered coordinate list of one drawing.
type Coordinates []Point

// MarshalJSON encodes an empty or nil list as [].
func (c Coordinates) MarshalJSON() ([]byte, error) {
	if len(c) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal([]Point(c))
}

// IDs returns the point identifiers in list order.
func (c Coordinates) IDs() []int {
	ids := make([]int, len(c))
	for i, p := range c {
		ids[i] = p.ID
	}
	return ids
}

// InReadingOrder reports whether points are sorted top-to-bottom, then left-to-right.
func (c Coordinates) InReadingOrder() bool {
	for i := 1; i < len(c); i++ {
		prev, cur := c[i-1], c[i]
		if prev.Y > cur.Y || (prev.Y == cur.Y && prev.X > cur.X) {
			return false
		}
	}
	return true
}

// Descriptor names the component behind a point. Serialized as [code, label].
type Descriptor struct {
	Code  string
	Label string
}

// MarshalJSON encodes the descriptor as [code, label].
func (d Descriptor) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{d.Code, d.Label})
}

// UnmarshalJSON decodes [code, label]. Extra trailing entries are ignored.
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("component descriptor: %w", err)
	}
	if len(raw) < 2 {
		return fmt.Errorf("component descriptor: expected [code, label], got %d values", len(raw))
	}
	d.Code, d.Label = raw[0], raw[1]
	return nil
}

// Descriptors maps a point id, as a decimal string, to its descriptor.
type Descriptors map[string]Descriptor

// Key returns the descriptor map key for a point id.
func Key(id int) string {
	return strconv.Itoa(id)
}

// Get returns the descriptor for a point id.
func (d Descriptors) Get(id int) (Descriptor, bool) {
	desc, ok := d[Key(id)]
	return desc, ok
}

// SortedKeys returns keys in ascending numeric order; non-numeric keys
// added by hand follow in lexical order.
func (d Descriptors) SortedKeys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeys)
	return keys
}

func compareKeys(a, b string) int {
	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)
	switch {
	case aErr == nil && bErr == nil:
		return ai - bi
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	}
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// MarshalJSON writes keys in numeric order so output is deterministic.
func (d Descriptors) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range d.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(d[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MissingIDs returns the point ids in c that have no descriptor in d.
func (d Descriptors) MissingIDs(c Coordinates) []int {
	var missing []int
	for _, p := range c {
		if _, ok := d.Get(p.ID); !ok {
			missing = append(missing, p.ID)
		}
	}
	return missing
}

const jsonIndent = "    "

// EncodeCoordinates renders the coordinate file body.
func EncodeCoordinates(c Coordinates) ([]byte, error) {
	data, err := json.MarshalIndent(c, "", jsonIndent)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// DecodeCoordinates parses a coordinate file body.
func DecodeCoordinates(data []byte) (Coordinates, error) {
	var c Coordinates
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if c == nil {
		c = Coordinates{}
	}
	return c, nil
}

// EncodeDescriptors renders the descriptor file body.
func EncodeDescriptors(d Descriptors) ([]byte, error) {
	if d == nil {
		d = Descriptors{}
	}
	data, err := json.MarshalIndent(d, "", jsonIndent)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// DecodeDescriptors parses a descriptor file body.
func DecodeDescriptors(data []byte) (Descriptors, error) {
	var d Descriptors
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	if d == nil {
		d = Descriptors{}
	}
	return d, nil
}
