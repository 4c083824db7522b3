// Package mapper turns page-space text fragments into the numbered
// reference points and descriptors of a drawing.
package mapper

import (
	"cmp"
	"fmt"
	"iter"
	"math"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/tphakala/drawmap/internal/drawing"
	"github.com/tphakala/drawmap/internal/geometry"
)

// Defaults used by New.
const (
	DefaultScale       = 3.0
	DefaultMinLength   = 1
	DefaultMaxLength   = 25
	DefaultLabelFormat = "Component %s"
)

// Result is the mapped output of one page.
type Result struct {
	Points      drawing.Coordinates
	Descriptors drawing.Descriptors
}

// Empty reports whether no points were found.
func (r Result) Empty() bool {
	return len(r.Points) == 0
}

// Mapper filters, clusters, transforms and numbers fragments. It holds no
// mutable state and is safe for concurrent use.
type Mapper struct {
	scale       float64
	minLength   int
	maxLength   int
	labelFormat string
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithScale sets the render scale applied to page coordinates.
func WithScale(scale float64) Option {
	return func(m *Mapper) {
		if scale > 0 {
			m.scale = scale
		}
	}
}

// WithLengthBounds sets the accepted label length, whitespace excluded.
func WithLengthBounds(minLength, maxLength int) Option {
	return func(m *Mapper) {
		m.minLength, m.maxLength = minLength, maxLength
	}
}

// WithLabelFormat sets the placeholder label; the format receives the code.
func WithLabelFormat(format string) Option {
	return func(m *Mapper) {
		if format != "" {
			m.labelFormat = format
		}
	}
}

// New returns a Mapper with the given options applied over the defaults.
func New(opts ...Option) *Mapper {
	m := &Mapper{
		scale:       DefaultScale,
		minLength:   DefaultMinLength,
		maxLength:   DefaultMaxLength,
		labelFormat: DefaultLabelFormat,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Scale returns the render scale.
func (m *Mapper) Scale() float64 {
	return m.scale
}

// Accept reports whether text looks like a callout: 1 to 25 characters once
// whitespace is removed, at least one of them a letter or digit.
func (m *Mapper) Accept(text string) bool {
	n := 0
	alnum := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		n++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum = true
		}
	}
	return alnum && n >= m.minLength && n <= m.maxLength
}

// Key normalizes text for clustering: runs of whitespace, newlines
// included, collapse to one space and the result is NFC-normalized.
func Key(text string) string {
	return norm.NFC.String(strings.Join(strings.Fields(text), " "))
}

// Label returns the placeholder label for code.
func (m *Mapper) Label(code string) string {
	return fmt.Sprintf(m.labelFormat, code)
}

type cluster struct {
	key        string
	sumX, sumY float64
	n          int
}

type placed struct {
	key  string
	x, y int
}

// Map clusters accepted fragments by Key, averages each cluster's position,
// converts it to image pixels for a page of the given height and numbers
// the points in reading order starting at 1.
//
// Distinct occurrences of the same text are merged into one point.
func (m *Mapper) Map(fragments iter.Seq[geometry.Fragment], pageHeight float64) Result {
	index := make(map[string]int)
	var clusters []*cluster

	for f := range fragments {
		if !m.Accept(f.Text) {
			continue
		}
		key := Key(f.Text)
		i, ok := index[key]
		if !ok {
			i = len(clusters)
			index[key] = i
			clusters = append(clusters, &cluster{key: key})
		}
		c := clusters[i]
		c.sumX += f.X
		c.sumY += f.Y
		c.n++
	}

	points := make([]placed, len(clusters))
	for i, c := range clusters {
		avgX := c.sumX / float64(c.n)
		avgY := c.sumY / float64(c.n)
		x, y := m.ToImage(avgX, avgY, pageHeight)
		points[i] = placed{key: c.key, x: x, y: y}
	}

	// stable: equal positions keep first-appearance order
	slices.SortStableFunc(points, func(a, b placed) int {
		return cmp.Or(cmp.Compare(a.y, b.y), cmp.Compare(a.x, b.x))
	})

	res := Result{
		Points:      make(drawing.Coordinates, len(points)),
		Descriptors: make(drawing.Descriptors, len(points)),
	}
	for i, p := range points {
		id := i + 1
		res.Points[i] = drawing.Point{X: p.x, Y: p.y, ID: id}
		res.Descriptors[drawing.Key(id)] = drawing.Descriptor{Code: p.key, Label: m.Label(p.key)}
	}
	return res
}

// ToImage converts a page-space position (origin bottom-left) to image
// pixels (origin top-left) at the mapper's scale. Halves round to even.
func (m *Mapper) ToImage(x, y, pageHeight float64) (int, int) {
	return int(math.RoundToEven(x * m.scale)), int(math.RoundToEven((pageHeight - y) * m.scale))
}

// Fragments adapts a slice to the sequence Map consumes.
func Fragments(frags []geometry.Fragment) iter.Seq[geometry.Fragment] {
	return slices.Values(frags)
}

// ValidFormat reports whether format has exactly one %s verb and no other verbs.
func ValidFormat(format string) bool {
	verbs := 0
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			continue
		}
		if i+1 >= len(format) {
			return false
		}
		switch format[i+1] {
		case '%':
		case 's':
			verbs++
		default:
			return false
		}
		i++
	}
	return verbs == 1 && utf8.ValidString(format)
}
