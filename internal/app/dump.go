package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tphakala/drawmap/internal/drawing"
	"github.com/tphakala/drawmap/internal/geometry"
)

// DumpResult is what the vector pass sees on page 0 of a drawing.
type DumpResult struct {
	Path        string              `json:"path"`
	PageWidth   float64             `json:"page_width"`
	PageHeight  float64             `json:"page_height"`
	Fragments   []geometry.Fragment `json:"fragments,omitempty"`
	Points      drawing.Coordinates `json:"points,omitempty"`
	Descriptors drawing.Descriptors `json:"descriptors,omitempty"`
	Warning     string              `json:"warning,omitempty"`
}

// Dump extracts the raw fragments of path, or with mapped set, the
// coordinate list and descriptor map the mapper derives from them. No
// artifacts are written.
//
// Without a MediaBox the page size comes from a throwaway render, as it
// does during ingestion. If that fails too, mapped output falls back to
// the raw fragments with a warning.
func (a *App) Dump(ctx context.Context, path string, mapped bool) (DumpResult, error) {
	doc, err := geometry.Open(path, geometry.WithCTM(a.Settings.Ingest.ApplyCTM))
	if err != nil {
		return DumpResult{}, err
	}
	defer func() { _ = doc.Close() }()

	res := DumpResult{Path: path}
	var sized bool
	res.PageWidth, res.PageHeight, sized = doc.PageSize()

	frags := slices.Collect(doc.Fragments())
	var warnings []string
	if err := doc.Err(); err != nil {
		warnings = append(warnings, err.Error())
	}

	if mapped && !sized {
		w, h, err := a.renderedPageSize(ctx, path)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("page size unknown, showing raw fragments: %v", err))
			mapped = false
		} else {
			res.PageWidth, res.PageHeight = w, h
		}
	}
	res.Warning = strings.Join(warnings, "; ")

	if !mapped {
		res.Fragments = frags
		return res, nil
	}
	out := a.Mapper.Map(slices.Values(frags), res.PageHeight)
	res.Points = out.Points
	res.Descriptors = out.Descriptors
	return res, nil
}

// renderedPageSize renders path into a temporary directory and reports
// the page size the renderer saw.
func (a *App) renderedPageSize(ctx context.Context, path string) (width, height float64, err error) {
	tmp, err := os.MkdirTemp("", "drawmap-dump-*")
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = os.RemoveAll(tmp) }()

	r, err := a.renderer.Render(ctx, path, filepath.Join(tmp, "page.png"), a.Mapper.Scale())
	if err != nil {
		return 0, 0, err
	}
	if r.PageHeight <= 0 {
		return 0, 0, fmt.Errorf("renderer reported page height %g", r.PageHeight)
	}
	return r.PageWidth, r.PageHeight, nil
}
