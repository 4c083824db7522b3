package app

import (
	"context"

	"github.com/tphakala/drawmap/internal/coordinator"
	"github.com/tphakala/drawmap/internal/ingest"
	"github.com/tphakala/drawmap/internal/logger"
)

// FileResult is the outcome of ingesting one file on demand.
type FileResult struct {
	Path    string         `json:"path"`
	Outcome ingest.Outcome `json:"outcome"`
	Error   string         `json:"error,omitempty"`
}

// IngestFiles runs the pipeline on each path in order. A failure is
// reported in its FileResult and does not stop the remaining files.
func (a *App) IngestFiles(ctx context.Context, paths []string) []FileResult {
	results := make([]FileResult, 0, len(paths))
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		out, err := a.Pipeline.Process(ctx, path)
		r := FileResult{Path: path, Outcome: out}
		if err != nil {
			r.Error = err.Error()
			a.log.Error("Drawing ingestion failed", logger.String("path", path), logger.Error(err))
		}
		results = append(results, r)
	}
	return results
}

// IngestDir processes every drawing in dir that lacks a coordinate list
// on the worker pool and returns once all of them have finished.
func (a *App) IngestDir(ctx context.Context, dir string) ([]coordinator.Record, error) {
	coord, err := a.newCoordinator(dir, false, nil)
	if err != nil {
		return nil, err
	}
	return coord.RunOnce(ctx)
}
