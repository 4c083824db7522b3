//go:build tesseract

package ocr

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/gen2brain/go-fitz"
	"github.com/otiai10/gosseract/v2"

	"github.com/tphakala/drawmap/internal/errors"
	"github.com/tphakala/drawmap/internal/logger"
	"github.com/tphakala/drawmap/internal/mapper"
)

// Tesseract rasterizes page 0 with MuPDF and recognizes words with Tesseract.
type Tesseract struct {
	cfg           Config
	mapper        *mapper.Mapper
	log           logger.Logger
	clientFactory func() *gosseract.Client
}

func newEngine(cfg Config, m *mapper.Mapper, log logger.Logger) Fallback {
	return &Tesseract{cfg: cfg, mapper: m, log: log, clientFactory: gosseract.NewClient}
}

// Name implements Fallback.
func (t *Tesseract) Name() string { return "tesseract" }

// Recognize implements Fallback.
func (t *Tesseract) Recognize(ctx context.Context, pdfPath string, pageHeight float64) (mapper.Result, error) {
	if err := ctx.Err(); err != nil {
		return mapper.Result{}, err
	}
	start := time.Now()

	doc, err := fitz.New(pdfPath)
	if err != nil {
		return mapper.Result{}, ocrError(err, pdfPath, "open")
	}
	defer func() { _ = doc.Close() }()

	scale := t.mapper.Scale()
	img, err := doc.ImagePNG(0, 72*scale)
	if err != nil {
		return mapper.Result{}, ocrError(err, pdfPath, "rasterize")
	}

	client := t.clientFactory()
	defer func() { _ = client.Close() }()

	if len(t.cfg.Languages) > 0 {
		if err := client.SetLanguage(t.cfg.Languages...); err != nil {
			return mapper.Result{}, ocrError(err, pdfPath, "set_language")
		}
	}
	if t.cfg.Whitelist != "" {
		if err := client.SetWhitelist(t.cfg.Whitelist); err != nil {
			return mapper.Result{}, ocrError(err, pdfPath, "set_whitelist")
		}
	}
	if err := client.SetPageSegMode(gosseract.PSM_SPARSE_TEXT); err != nil {
		return mapper.Result{}, ocrError(err, pdfPath, "set_psm")
	}
	if err := client.SetImageFromBytes(img); err != nil {
		return mapper.Result{}, ocrError(err, pdfPath, "set_image")
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return mapper.Result{}, ocrError(err, pdfPath, "recognize")
	}

	words := make([]Word, 0, len(boxes))
	for _, b := range boxes {
		words = append(words, Word{Text: b.Word, Box: b.Box, Confidence: b.Confidence})
	}

	res := t.mapper.Map(slices.Values(Fragments(words, scale, pageHeight, t.cfg.MinConfidence)), pageHeight)
	t.log.Debug("OCR pass complete",
		logger.String("file", pdfPath),
		logger.Int("words", len(words)),
		logger.Int("points", len(res.Points)),
		logger.Duration("elapsed", time.Since(start)))
	return res, nil
}

func ocrError(err error, pdfPath, op string) error {
	return errors.New(fmt.Errorf("ocr %s: %w", op, err)).
		Component("ocr").
		Category(errors.CategoryOCR).
		FileContext(pdfPath).
		Build()
}
