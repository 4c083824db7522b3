// Package api serves drawing artifacts and ingestion status over HTTP for
// the calibration UI.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/net/netutil"

	mw "github.com/tphakala/drawmap/internal/api/middleware"
	"github.com/tphakala/drawmap/internal/coordinator"
	"github.com/tphakala/drawmap/internal/drawing"
	"github.com/tphakala/drawmap/internal/errors"
	"github.com/tphakala/drawmap/internal/logger"
	"github.com/tphakala/drawmap/internal/observability/metrics"
	"github.com/tphakala/drawmap/internal/store"
)

// Server defaults.
const (
	DefaultBodyLimit       = "2M"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultMaxConnections  = 64
)

// Store is the artifact access the API needs.
type Store interface {
	Drawings() ([]store.Product, error)
	Drawing(name string) (store.Product, error)
	Paths(name string) drawing.ArtifactPaths
	ReadCoordinates(name string) (drawing.Coordinates, error)
	ReadDescriptors(name string) (drawing.Descriptors, error)
	SaveCoordinates(name string, c drawing.Coordinates) error
	SaveDescriptors(name string, d drawing.Descriptors) error
}

// StatusProvider reports coordinator state.
type StatusProvider interface {
	Snapshot() []coordinator.Record
	Queued() int
	Workers() int
}

// Config holds server settings.
type Config struct {
	Listen          string
	BodyLimit       string
	ShutdownTimeout time.Duration
	// MaxConnections caps simultaneously accepted connections.
	MaxConnections int
}

// Server wraps an echo instance with the drawmap routes.
type Server struct {
	echo    *echo.Echo
	config  Config
	store   Store
	status  StatusProvider
	metrics *metrics.HTTPMetrics
	log     logger.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics records request metrics.
func WithMetrics(m *metrics.HTTPMetrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithStatus enables the ingest status endpoint and per-drawing state.
func WithStatus(p StatusProvider) ServerOption {
	return func(s *Server) {
		s.status = p
	}
}

// New builds the server and registers routes. It does not listen.
func New(cfg Config, st Store, opts ...ServerOption) (*Server, error) {
	if st == nil {
		return nil, errors.ValidationError("api requires a store")
	}
	if cfg.BodyLimit == "" {
		cfg.BodyLimit = DefaultBodyLimit
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = DefaultMaxConnections
	}

	s := &Server{
		echo:   echo.New(),
		config: cfg,
		store:  st,
		log:    logger.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

// setupMiddleware configures the Echo middleware stack.
func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(mw.NewRequestID())
	s.echo.Use(mw.NewMetrics(s.metrics))
	s.echo.Use(mw.NewRequestLogger(s.log, func(c echo.Context) bool {
		return c.Path() == "/health"
	}))
	s.echo.Use(echomw.BodyLimit(s.config.BodyLimit))
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	g := s.echo.Group("/api/v1")
	g.GET("/drawings", s.listDrawings)
	g.GET("/drawings/:name/coordinates", s.getCoordinates)
	g.PUT("/drawings/:name/coordinates", s.putCoordinates)
	g.GET("/drawings/:name/descriptors", s.getDescriptors)
	g.PUT("/drawings/:name/descriptors", s.putDescriptors)
	g.GET("/drawings/:name/preview", s.getPreview)
	g.GET("/ingest/status", s.ingestStatus)
}

// Echo returns the underlying echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return errors.New(err).
			Component("api").
			Category(errors.CategoryNetwork).
			Context("listen", s.config.Listen).
			Build()
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.echo.Listener = netutil.LimitListener(ln, s.config.MaxConnections)
	s.log.Info("Starting HTTP API", logger.String("address", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start("")
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.New(err).Component("api").Category(errors.CategoryNetwork).Build()
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return errors.New(err).Component("api").Category(errors.CategoryNetwork).Build()
	}
	<-errCh
	s.log.Info("HTTP API stopped")
	return nil
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
