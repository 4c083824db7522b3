package testutil

import (
	"context"
	"image"
	"sync"

	"github.com/tphakala/drawmap/internal/render"
)

// FakeRenderer is a render.Renderer that writes a tiny placeholder PNG and
// reports a fixed page size, so tests do not need MuPDF.
type FakeRenderer struct {
	PageWidth  float64
	PageHeight float64
	// Err is returned instead of rendering when set.
	Err error
	// Panic makes Render panic with this value when non-nil.
	Panic any
	// Gate, when non-nil, blocks each Render until it receives a value or is closed.
	Gate <-chan struct{}
	// Started receives the pdf path of each call once it begins, if non-nil.
	Started chan<- string

	mu    sync.Mutex
	calls []string
}

// Render implements render.Renderer.
func (f *FakeRenderer) Render(_ context.Context, pdfPath, outPath string, scale float64) (render.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, pdfPath)
	f.mu.Unlock()

	if f.Started != nil {
		f.Started <- pdfPath
	}
	if f.Gate != nil {
		<-f.Gate
	}
	if f.Panic != nil {
		panic(f.Panic)
	}
	if f.Err != nil {
		return render.Result{}, f.Err
	}

	w, h := f.PageWidth, f.PageHeight
	if w == 0 {
		w = 600
	}
	if h == 0 {
		h = 800
	}
	if err := render.WritePNG(outPath, image.NewGray(image.Rect(0, 0, 1, 1))); err != nil {
		return render.Result{}, err
	}
	return render.Result{
		PageWidth:  w,
		PageHeight: h,
		Pixels:     image.Pt(int(w*scale), int(h*scale)),
	}, nil
}

// Calls returns the pdf paths rendered so far.
func (f *FakeRenderer) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

var _ render.Renderer = (*FakeRenderer)(nil)
