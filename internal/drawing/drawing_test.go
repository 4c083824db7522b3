package drawing

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeCoordinatesMatchesArtifactFormat(t *testing.T) {
	t.Parallel()

	data, err := EncodeCoordinates(Coordinates{{X: 300, Y: 300, ID: 1}, {X: 450, Y: 300, ID: 2}})
	require.NoError(t, err)

	decoded, err := DecodeCoordinates(data)
	require.NoError(t, err)
	assert.Equal(t, Coordinates{{300, 300, 1}, {450, 300, 2}}, decoded)
	assert.JSONEq(t, `[[300,300,1],[450,300,2]]`, string(data))
	assert.Contains(t, string(data), "\n    [\n        300,")
}

func TestEncodeEmptyArtifacts(t *testing.T) {
	t.Parallel()

	coords, err := EncodeCoordinates(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(coords))

	descs, err := EncodeDescriptors(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(descs))
}

func TestDescriptorsNumericKeyOrder(t *testing.T) {
	t.Parallel()

	d := Descriptors{
		"10":    {Code: "10", Label: "Component 10"},
		"2":     {Code: "2", Label: "Component 2"},
		"1":     {Code: "1", Label: "Component 1"},
		"extra": {Code: "X", Label: "Added by hand"},
	}
	assert.Equal(t, []string{"1", "2", "10", "extra"}, d.SortedKeys())

	data, err := EncodeDescriptors(d)
	require.NoError(t, err)
	assert.Less(t, strings.Index(string(data), `"2"`), strings.Index(string(data), `"10"`))

	decoded, err := DecodeDescriptors(data)
	require.NoError(t, err)
	assert.Equal(t, d, decoded)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	t.Parallel()

	_, err := DecodeCoordinates([]byte(`[[1,2]]`))
	require.Error(t, err)

	_, err = DecodeDescriptors([]byte(`{"1":["only-code"]}`))
	require.Error(t, err)
}

func TestPointRoundsFractionalValues(t *testing.T) {
	t.Parallel()

	c, err := DecodeCoordinates([]byte(`[[10.6, 20.2, 3]]`))
	require.NoError(t, err)
	assert.Equal(t, Point{X: 11, Y: 20, ID: 3}, c[0])
}

func TestReadingOrderAndCoverage(t *testing.T) {
	t.Parallel()

	ordered := Coordinates{{5, 1, 1}, {9, 1, 2}, {0, 4, 3}}
	assert.True(t, ordered.InReadingOrder())
	assert.False(t, Coordinates{{9, 1, 1}, {5, 1, 2}}.InReadingOrder())

	d := Descriptors{"1": {}, "3": {}}
	assert.Equal(t, []int{2}, d.MissingIDs(ordered))
	assert.Equal(t, []int{1, 2, 3}, ordered.IDs())
}

func TestArtifactPaths(t *testing.T) {
	t.Parallel()

	p := PathsFor("/data", BaseName("/in/Pump Assembly.PDF"))
	assert.Equal(t, "Pump Assembly", p.Name)
	assert.Equal(t, filepath.Join("/data", "Pump Assembly.png"), p.Preview)
	assert.Equal(t, filepath.Join("/data", "Pump Assembly.coords.json"), p.Coordinates)
	assert.Equal(t, filepath.Join("/data", "Pump Assembly.data.json"), p.Descriptors)

	assert.True(t, IsDrawingFile("a.pdf"))
	assert.True(t, IsDrawingFile("a.PdF"))
	assert.False(t, IsDrawingFile("a.pdf.png"))
}

func TestValidName(t *testing.T) {
	t.Parallel()

	for name, want := range map[string]bool{
		"pump":      true,
		"Pump 2":    true,
		"":          false,
		"..":        false,
		"../etc":    false,
		`a\b`:       false,
		"sub/child": false,
	} {
		assert.Equal(t, want, ValidName(name), name)
	}
}
