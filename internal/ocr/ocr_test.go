package ocr

import (
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/drawmap/internal/drawing"
	"github.com/tphakala/drawmap/internal/logger"
	"github.com/tphakala/drawmap/internal/mapper"
)

func TestShouldRunThreshold(t *testing.T) {
	t.Parallel()

	assert.True(t, ShouldRun(0, 2))
	assert.True(t, ShouldRun(2, 2))
	assert.False(t, ShouldRun(3, 2))
	assert.False(t, ShouldRun(0, -1))
}

func TestDisabledReturnsEmpty(t *testing.T) {
	t.Parallel()

	fb := New(Config{Enabled: false}, mapper.New(), logger.NewNopLogger())
	assert.Equal(t, "disabled", fb.Name())

	res, err := fb.Recognize(context.Background(), "whatever.pdf", 800)
	require.NoError(t, err)
	assert.True(t, res.Empty())
}

func TestFragmentsRoundTripThroughMapper(t *testing.T) {
	t.Parallel()

	const scale, height = 3.0, 800.0
	words := []Word{
		{Text: " 12 ", Box: image.Rect(300, 270, 330, 300), Confidence: 91},
		{Text: "7", Box: image.Rect(450, 270, 465, 300), Confidence: 88},
		{Text: "noise", Box: image.Rect(0, 0, 10, 10), Confidence: 12},
		{Text: "  ", Box: image.Rect(0, 0, 10, 10), Confidence: 99},
	}

	frags := Fragments(words, scale, height, 50)
	require.Len(t, frags, 2)
	assert.Equal(t, "12", frags[0].Text)
	assert.InDelta(t, 100, frags[0].X, 1e-9)
	assert.InDelta(t, 700, frags[0].Y, 1e-9)
	assert.InDelta(t, 10, frags[0].FontSize, 1e-9)

	res := mapper.New(mapper.WithScale(scale)).Map(mapper.Fragments(frags), height)
	assert.Equal(t, drawing.Coordinates{{X: 300, Y: 300, ID: 1}, {X: 450, Y: 300, ID: 2}}, res.Points)
}
