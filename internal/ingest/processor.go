// Package ingest turns one drawing PDF into its preview image, coordinate
// list and descriptor map.
package ingest

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/drawmap/internal/drawing"
	"github.com/tphakala/drawmap/internal/errors"
	"github.com/tphakala/drawmap/internal/geometry"
	"github.com/tphakala/drawmap/internal/logger"
	"github.com/tphakala/drawmap/internal/mapper"
	"github.com/tphakala/drawmap/internal/ocr"
	"github.com/tphakala/drawmap/internal/observability/metrics"
	"github.com/tphakala/drawmap/internal/render"
)

// DefaultFallbackThreshold is the largest vector point count that still
// triggers the raster fallback.
const DefaultFallbackThreshold = 2

// Store is the artifact persistence the processor needs.
type Store interface {
	Paths(name string) drawing.ArtifactPaths
	HasCoordinates(name string) (bool, error)
	HasDescriptors(name string) (bool, error)
	WriteCoordinates(name string, c drawing.Coordinates) error
	WriteDescriptorsIfAbsent(name string, d drawing.Descriptors) (bool, error)
}

// Processor ingests one drawing file.
type Processor interface {
	Process(ctx context.Context, pdfPath string) (Outcome, error)
}

// Outcome summarizes a successful ingestion.
type Outcome struct {
	Drawing            string        `json:"drawing"`
	Points             int           `json:"points"`
	Skipped            bool          `json:"skipped"`
	UsedFallback       bool          `json:"used_fallback"`
	DescriptorsWritten bool          `json:"descriptors_written"`
	Duration           time.Duration `json:"duration"`
}

// Pipeline runs the per-file ingestion steps. It holds no per-file state
// and is safe for concurrent use.
type Pipeline struct {
	store             Store
	renderer          render.Renderer
	mapper            *mapper.Mapper
	fallback          ocr.Fallback
	fallbackThreshold int
	geometryOpts      []geometry.Option
	metrics           metrics.IngestRecorder
	log               logger.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFallback sets the raster fallback. The default is ocr.Disabled.
func WithFallback(f ocr.Fallback) Option {
	return func(p *Pipeline) {
		if f != nil {
			p.fallback = f
		}
	}
}

// WithFallbackThreshold sets the point count at or below which the fallback runs.
func WithFallbackThreshold(n int) Option {
	return func(p *Pipeline) { p.fallbackThreshold = n }
}

// WithGeometryOptions passes options to the vector extractor.
func WithGeometryOptions(opts ...geometry.Option) Option {
	return func(p *Pipeline) { p.geometryOpts = append(p.geometryOpts, opts...) }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r metrics.IngestRecorder) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.metrics = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// NewPipeline wires the ingestion steps. A nil mapper uses mapper defaults.
func NewPipeline(store Store, renderer render.Renderer, m *mapper.Mapper, opts ...Option) *Pipeline {
	if m == nil {
		m = mapper.New()
	}
	p := &Pipeline{
		store:             store,
		renderer:          renderer,
		mapper:            m,
		fallback:          ocr.Disabled{},
		fallbackThreshold: DefaultFallbackThreshold,
		metrics:           metrics.NopRecorder{},
		log:               logger.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process ingests the drawing at pdfPath. When both the coordinate list and
// the descriptor map already exist it returns a skipped Outcome without
// touching anything. A panic in any step is returned as ErrPanic.
func (p *Pipeline) Process(ctx context.Context, pdfPath string) (out Outcome, err error) {
	start := time.Now()
	name := drawing.BaseName(pdfPath)
	log := p.log.WithContext(ctx).With(
		logger.String("drawing", name),
		logger.String("run_id", uuid.NewString()),
	)

	p.metrics.TaskStarted()
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(fmt.Errorf("%w: %v", ErrPanic, r)).
				Component("ingest").
				Category(errors.CategoryProcessing).
				Context("drawing", name).
				FileContext(pdfPath).
				Build()
			out = Outcome{Drawing: name}
			log.Error("Ingestion panicked",
				logger.Any("panic", r),
				logger.String("stack", string(debug.Stack())))
		}
		p.metrics.TaskFinished()
		out.Duration = time.Since(start)
		p.metrics.RecordDuration(metrics.OpIngest, out.Duration.Seconds())
		switch {
		case err != nil:
			p.metrics.RecordOperation(metrics.OpIngest, metrics.StatusError)
			p.metrics.RecordError(metrics.OpIngest, errorType(err))
		case out.Skipped:
			p.metrics.RecordOperation(metrics.OpIngest, metrics.StatusSkipped)
		default:
			p.metrics.RecordOperation(metrics.OpIngest, metrics.StatusSuccess)
			p.metrics.ObservePoints(out.Points)
		}
	}()

	out, err = p.process(ctx, pdfPath, name, log)
	return out, err
}

func (p *Pipeline) process(ctx context.Context, pdfPath, name string, log logger.Logger) (Outcome, error) {
	out := Outcome{Drawing: name}
	paths := p.store.Paths(name)

	hasCoords, err := p.store.HasCoordinates(name)
	if err != nil {
		return out, failure(ErrPersistenceFailure, err, errors.CategoryPersistence, name, pdfPath)
	}
	hasDescs, err := p.store.HasDescriptors(name)
	if err != nil {
		return out, failure(ErrPersistenceFailure, err, errors.CategoryPersistence, name, pdfPath)
	}
	if hasCoords && hasDescs {
		log.Debug("Artifacts present, skipping")
		out.Skipped = true
		return out, nil
	}

	doc, err := p.open(pdfPath, name)
	if err != nil {
		return out, err
	}
	defer func() { _ = doc.Close() }()

	rendered, err := p.render(ctx, pdfPath, paths.Preview, name)
	if err != nil {
		return out, err
	}

	result := p.extract(doc, pdfPath, name, rendered.PageHeight, log)

	if ocr.ShouldRun(len(result.Points), p.fallbackThreshold) {
		if fb, ok := p.runFallback(ctx, pdfPath, rendered.PageHeight, len(result.Points), log); ok {
			result = fb
			out.UsedFallback = true
		}
	}

	persistStart := time.Now()
	if err := p.store.WriteCoordinates(name, result.Points); err != nil {
		p.metrics.RecordOperation(metrics.OpPersist, metrics.StatusError)
		return out, failure(ErrPersistenceFailure, err, errors.CategoryPersistence, name, pdfPath)
	}
	written, err := p.store.WriteDescriptorsIfAbsent(name, result.Descriptors)
	if err != nil {
		p.metrics.RecordOperation(metrics.OpPersist, metrics.StatusError)
		return out, failure(ErrPersistenceFailure, err, errors.CategoryPersistence, name, pdfPath)
	}
	p.metrics.RecordOperation(metrics.OpPersist, metrics.StatusSuccess)
	p.metrics.RecordDuration(metrics.OpPersist, time.Since(persistStart).Seconds())

	if !written {
		log.Info("Descriptor map exists, left untouched")
	}

	out.Points = len(result.Points)
	out.DescriptorsWritten = written
	log.Info("Drawing ingested",
		logger.Int("points", out.Points),
		logger.Bool("fallback", out.UsedFallback),
		logger.Bool("descriptors_written", written))
	return out, nil
}

func (p *Pipeline) render(ctx context.Context, pdfPath, previewPath, name string) (render.Result, error) {
	start := time.Now()
	res, err := p.renderer.Render(ctx, pdfPath, previewPath, p.mapper.Scale())
	p.metrics.RecordDuration(metrics.OpRender, time.Since(start).Seconds())
	if err != nil {
		p.metrics.RecordOperation(metrics.OpRender, metrics.StatusError)
		if errors.Is(err, render.ErrUnreadable) {
			return res, failure(ErrUnreadablePDF, err, errors.CategoryPDF, name, pdfPath)
		}
		return res, failure(ErrRenderFailure, err, errors.CategoryRender, name, pdfPath)
	}
	p.metrics.RecordOperation(metrics.OpRender, metrics.StatusSuccess)
	return res, nil
}

// open parses the document before anything is written, so a file the
// vector parser rejects fails without leaving artifacts behind.
func (p *Pipeline) open(pdfPath, name string) (*geometry.Document, error) {
	doc, err := geometry.Open(pdfPath, p.geometryOpts...)
	if err != nil {
		p.metrics.RecordOperation(metrics.OpExtract, metrics.StatusError)
		return nil, failure(ErrUnreadablePDF, err, errors.CategoryPDF, name, pdfPath)
	}
	return doc, nil
}

// extract runs the vector pass over an opened document. Content-stream
// failures yield whatever was mapped before them and are only logged.
func (p *Pipeline) extract(doc *geometry.Document, pdfPath, name string, pageHeight float64, log logger.Logger) mapper.Result {
	start := time.Now()
	defer func() {
		p.metrics.RecordDuration(metrics.OpExtract, time.Since(start).Seconds())
	}()

	if pageHeight <= 0 {
		if _, h, ok := doc.PageSize(); ok {
			pageHeight = h
		}
	}

	result := p.mapper.Map(doc.Fragments(), pageHeight)
	if err := doc.Err(); err != nil {
		p.extractionFailed(failure(ErrExtractionFailure, err, errors.CategoryExtraction, name, pdfPath), log)
		return result
	}
	p.metrics.RecordOperation(metrics.OpExtract, metrics.StatusSuccess)
	return result
}

func (p *Pipeline) extractionFailed(err error, log logger.Logger) {
	p.metrics.RecordOperation(metrics.OpExtract, metrics.StatusError)
	p.metrics.RecordError(metrics.OpExtract, errorType(err))
	log.Warn("Vector extraction failed, continuing with partial result", logger.Error(err))
}

// runFallback returns the fallback result and true when it found points.
func (p *Pipeline) runFallback(ctx context.Context, pdfPath string, pageHeight float64, vectorPoints int, log logger.Logger) (mapper.Result, bool) {
	start := time.Now()
	res, err := p.fallback.Recognize(ctx, pdfPath, pageHeight)
	p.metrics.RecordDuration(metrics.OpFallback, time.Since(start).Seconds())
	switch {
	case err != nil:
		p.metrics.RecordFallback(metrics.FallbackError)
		p.metrics.RecordError(metrics.OpFallback, string(errors.CategoryOf(err)))
		log.Warn("Raster fallback failed, keeping vector result",
			logger.String("engine", p.fallback.Name()),
			logger.Int("vector_points", vectorPoints),
			logger.Error(err))
		return mapper.Result{}, false
	case res.Empty():
		p.metrics.RecordFallback(metrics.FallbackEmpty)
		log.Debug("Raster fallback found nothing",
			logger.String("engine", p.fallback.Name()),
			logger.Int("vector_points", vectorPoints))
		return mapper.Result{}, false
	default:
		p.metrics.RecordFallback(metrics.FallbackUsed)
		log.Info("Using raster fallback result",
			logger.String("engine", p.fallback.Name()),
			logger.Int("vector_points", vectorPoints),
			logger.Int("fallback_points", len(res.Points)))
		return res, true
	}
}

var _ Processor = (*Pipeline)(nil)
