// Package ocr provides the raster text-recognition fallback used when a
// drawing's vector text yields too few callouts.
package ocr

import (
	"context"
	"image"
	"strings"

	"github.com/tphakala/drawmap/internal/geometry"
	"github.com/tphakala/drawmap/internal/logger"
	"github.com/tphakala/drawmap/internal/mapper"
)

// Fallback recognizes callouts on a rasterized page and maps them with the
// same rules as the vector pass.
type Fallback interface {
	Name() string
	Recognize(ctx context.Context, pdfPath string, pageHeight float64) (mapper.Result, error)
}

// Config selects and tunes the fallback engine.
type Config struct {
	Enabled       bool
	Languages     []string
	Whitelist     string
	MinConfidence float64
}

// New returns the configured engine, or Disabled when OCR is off or not
// compiled in.
func New(cfg Config, m *mapper.Mapper, log logger.Logger) Fallback {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if !cfg.Enabled {
		return Disabled{}
	}
	return newEngine(cfg, m, log)
}

// Disabled is the no-op fallback. It always returns an empty result.
type Disabled struct{}

// Name implements Fallback.
func (Disabled) Name() string { return "disabled" }

// Recognize implements Fallback.
func (Disabled) Recognize(context.Context, string, float64) (mapper.Result, error) {
	return mapper.Result{}, nil
}

// ShouldRun reports whether a vector pass that found points points warrants
// the fallback under threshold.
func ShouldRun(points, threshold int) bool {
	return points <= threshold
}

// Word is one recognized word with its pixel bounding box in an image
// rendered at scale × 72 DPI.
type Word struct {
	Text       string
	Box        image.Rectangle
	Confidence float64
}

// Fragments converts recognized words to page-space fragments. Each word is
// anchored at its box's bottom-left corner, the analogue of a text
// baseline origin. Words below minConfidence (0–100) are dropped.
func Fragments(words []Word, scale, pageHeight, minConfidence float64) []geometry.Fragment {
	if scale <= 0 {
		scale = mapper.DefaultScale
	}
	frags := make([]geometry.Fragment, 0, len(words))
	for _, w := range words {
		text := strings.TrimSpace(w.Text)
		if text == "" || w.Confidence < minConfidence {
			continue
		}
		frags = append(frags, geometry.Fragment{
			Text:     text,
			X:        float64(w.Box.Min.X) / scale,
			Y:        pageHeight - float64(w.Box.Max.Y)/scale,
			FontSize: float64(w.Box.Dy()) / scale,
		})
	}
	return frags
}
