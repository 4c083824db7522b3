// Package render rasterizes the first page of a drawing into its preview image.
package render

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/gen2brain/go-fitz"

	"github.com/tphakala/drawmap/internal/errors"
	"github.com/tphakala/drawmap/internal/geometry"
	"github.com/tphakala/drawmap/internal/logger"
)

// PointsPerInch is the PDF user-space resolution.
const PointsPerInch = 72.0

var (
	// ErrUnreadable is returned when the document cannot be opened or has no pages.
	ErrUnreadable = errors.NewStd("unreadable pdf")
	// ErrRasterize is returned when page 0 cannot be rendered.
	ErrRasterize = errors.NewStd("rasterize page")
	// ErrWrite is returned when the preview image cannot be written.
	ErrWrite = errors.NewStd("write preview image")
)

// Result describes a rendered page. Page dimensions are unscaled page units.
type Result struct {
	PageWidth  float64
	PageHeight float64
	Pixels     image.Point
}

// Renderer produces the preview image of page 0 at the given scale.
type Renderer interface {
	Render(ctx context.Context, pdfPath, outPath string, scale float64) (Result, error)
}

// FitzRenderer renders with MuPDF through go-fitz.
type FitzRenderer struct {
	log logger.Logger
}

// NewFitzRenderer returns a Renderer backed by MuPDF.
func NewFitzRenderer(log logger.Logger) *FitzRenderer {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &FitzRenderer{log: log}
}

// Render writes page 0 of pdfPath to outPath as PNG at scale × 72 DPI.
func (r *FitzRenderer) Render(ctx context.Context, pdfPath, outPath string, scale float64) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	doc, err := fitz.New(pdfPath)
	if err != nil {
		return Result{}, renderError(ErrUnreadable, err, errors.CategoryPDF, pdfPath)
	}
	defer func() { _ = doc.Close() }()

	if doc.NumPage() < 1 {
		return Result{}, renderError(ErrUnreadable, errors.NewStd("document has no pages"), errors.CategoryPDF, pdfPath)
	}

	bound, err := doc.Bound(0)
	if err != nil {
		return Result{}, renderError(ErrUnreadable, err, errors.CategoryPDF, pdfPath)
	}

	img, err := doc.ImageDPI(0, PointsPerInch*scale)
	if err != nil {
		return Result{}, renderError(ErrRasterize, err, errors.CategoryRender, pdfPath)
	}

	if err := WritePNG(outPath, img); err != nil {
		return Result{}, renderError(ErrWrite, err, errors.CategoryRender, outPath)
	}

	res := Result{Pixels: img.Bounds().Size()}
	res.PageWidth, res.PageHeight = pageSize(pdfPath, bound, res.Pixels, scale)
	r.log.Debug("Rendered preview",
		logger.String("preview", outPath),
		logger.Int("width_px", res.Pixels.X),
		logger.Int("height_px", res.Pixels.Y),
		logger.Float64("page_height", res.PageHeight))
	return res, nil
}

// pageSize returns the unrounded size of page 0. go-fitz bounds are
// truncated to whole units, so the MediaBox is used when it agrees with
// them. Otherwise (CropBox, rotation, unparseable trailer) the size is
// derived from the raster.
func pageSize(pdfPath string, bound image.Rectangle, px image.Point, scale float64) (width, height float64) {
	width, height = float64(px.X)/scale, float64(px.Y)/scale

	doc, err := geometry.Open(pdfPath)
	if err != nil {
		return width, height
	}
	defer func() { _ = doc.Close() }()

	w, h, ok := doc.PageSize()
	if ok && int(w) == bound.Dx() && int(h) == bound.Dy() {
		return w, h
	}
	return width, height
}

func renderError(sentinel, cause error, category errors.ErrorCategory, path string) error {
	return errors.New(fmt.Errorf("%w: %w", sentinel, cause)).
		Component("render").
		Category(category).
		FileContext(path).
		Build()
}

// WritePNG encodes img to a temporary file beside path and renames it into
// place, so readers never observe a partial image.
func WritePNG(path string, img image.Image) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = png.Encode(tmp, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil { //nolint:gosec // preview images are shared with viewers
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
