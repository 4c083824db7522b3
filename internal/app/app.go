// Package app wires the drawmap components together from Settings for the
// command-line entry points.
package app

import (
	"time"

	"github.com/tphakala/drawmap/internal/conf"
	"github.com/tphakala/drawmap/internal/geometry"
	"github.com/tphakala/drawmap/internal/ingest"
	"github.com/tphakala/drawmap/internal/logger"
	"github.com/tphakala/drawmap/internal/mapper"
	"github.com/tphakala/drawmap/internal/observability"
	"github.com/tphakala/drawmap/internal/ocr"
	"github.com/tphakala/drawmap/internal/render"
	"github.com/tphakala/drawmap/internal/store"
)

// DefaultCacheTTL bounds how long artifact reads are served from memory.
const DefaultCacheTTL = 5 * time.Minute

// App holds the components shared by every command.
type App struct {
	Settings *conf.Settings
	Store    *store.CachedStore
	Mapper   *mapper.Mapper
	Pipeline *ingest.Pipeline
	Metrics  *observability.Metrics

	renderer render.Renderer
	log      logger.Logger
}

// Option configures an App.
type Option func(*options)

type options struct {
	renderer render.Renderer
	fallback ocr.Fallback
}

// WithRenderer replaces the fitz renderer.
func WithRenderer(r render.Renderer) Option {
	return func(o *options) { o.renderer = r }
}

// WithFallback replaces the configured OCR fallback.
func WithFallback(f ocr.Fallback) Option {
	return func(o *options) { o.fallback = f }
}

// New builds the store, the metrics registry and the ingestion pipeline.
func New(settings *conf.Settings, log logger.Logger, opts ...Option) (*App, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	fs, err := store.NewFileStore(settings.Drawings.Dir, settings.Drawings.OutputDir, log.Module("store"))
	if err != nil {
		return nil, err
	}

	m, err := observability.NewMetrics()
	if err != nil {
		return nil, err
	}

	mp := mapper.New(
		mapper.WithScale(settings.Render.Scale),
		mapper.WithLabelFormat(settings.Ingest.LabelFormat),
	)

	if o.renderer == nil {
		o.renderer = render.NewFitzRenderer(log.Module("render"))
	}
	if o.fallback == nil {
		o.fallback = ocr.New(ocr.Config{
			Enabled:       settings.OCR.Enabled,
			Languages:     settings.OCR.Languages,
			Whitelist:     settings.OCR.Whitelist,
			MinConfidence: settings.OCR.MinConfidence,
		}, mp, log.Module("ocr"))
	}

	pipeline := ingest.NewPipeline(fs, o.renderer, mp,
		ingest.WithFallback(o.fallback),
		ingest.WithFallbackThreshold(settings.Ingest.FallbackThreshold),
		ingest.WithGeometryOptions(geometry.WithCTM(settings.Ingest.ApplyCTM)),
		ingest.WithMetrics(m.Ingest),
		ingest.WithLogger(log.Module("ingest")),
	)

	return &App{
		Settings: settings,
		Store:    store.NewCachedStore(fs, DefaultCacheTTL),
		Mapper:   mp,
		Pipeline: pipeline,
		Metrics:  m,
		renderer: o.renderer,
		log:      log,
	}, nil
}
