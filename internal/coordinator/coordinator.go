// Package coordinator watches a drawing directory and dispatches one
// ingestion task per drawing that lacks a coordinate list.
package coordinator

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/drawmap/internal/drawing"
	"github.com/tphakala/drawmap/internal/errors"
	"github.com/tphakala/drawmap/internal/events"
	"github.com/tphakala/drawmap/internal/ingest"
	"github.com/tphakala/drawmap/internal/logger"
	"github.com/tphakala/drawmap/internal/observability/metrics"
)

// ErrAlreadyRunning is returned when Run or RunOnce is called twice.
var ErrAlreadyRunning = errors.NewStd("coordinator already running")

// Default timings.
const (
	DefaultDebounce     = 500 * time.Millisecond
	DefaultPollFallback = 5 * time.Second
)

// Config controls discovery and concurrency.
type Config struct {
	// Dir is the directory holding drawing PDFs.
	Dir string
	// Workers is the number of concurrent ingestions; 0 means runtime.NumCPU().
	Workers int
	// Watch enables file-system notifications.
	Watch bool
	// Debounce coalesces bursts of notifications into one rescan.
	Debounce time.Duration
	// PollInterval triggers periodic rescans; 0 disables polling unless
	// notifications are unavailable.
	PollInterval time.Duration
}

// Store reports which drawings already have a coordinate list.
type Store interface {
	HasCoordinates(name string) (bool, error)
}

type result struct {
	path    string
	outcome ingest.Outcome
	err     error
}

// Coordinator owns the dedup tracker and the worker pool.
type Coordinator struct {
	cfg       Config
	processor ingest.Processor
	store     Store
	publisher events.Publisher
	tracker   *Tracker
	queue     *queue
	metrics   metrics.Recorder
	log       logger.Logger

	scanReq     chan struct{}
	idle        chan struct{}
	outstanding atomic.Int64
	running     atomic.Bool
	scanMu      sync.Mutex

	// rejected holds file names already reported as unusable; guarded by scanMu.
	rejected map[string]struct{}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(c *Coordinator) {
		if r != nil {
			c.metrics = r
		}
	}
}

// nopPublisher accepts and discards every event.
type nopPublisher struct{}

func (nopPublisher) TryPublish(events.Event) bool { return true }

// New validates cfg and returns an idle coordinator. publisher may be nil.
func New(cfg Config, processor ingest.Processor, store Store, publisher events.Publisher, opts ...Option) (*Coordinator, error) {
	if cfg.Dir == "" {
		return nil, errors.ValidationError("drawing directory is required")
	}
	if cfg.Workers < 0 {
		return nil, errors.ValidationError("worker count must not be negative")
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}

	c := &Coordinator{
		cfg:       cfg,
		processor: processor,
		store:     store,
		publisher: publisher,
		tracker:   NewTracker(),
		queue:     newQueue(),
		metrics:   metrics.NopRecorder{},
		log:       logger.NewNopLogger(),
		scanReq:   make(chan struct{}, 1),
		idle:      make(chan struct{}, 1),
		rejected:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Workers returns the size of the worker pool.
func (c *Coordinator) Workers() int { return c.cfg.Workers }

// Snapshot returns the tracked records and last failures.
func (c *Coordinator) Snapshot() []Record { return c.tracker.Snapshot() }

// Tracker exposes the dedup set.
func (c *Coordinator) Tracker() *Tracker { return c.tracker }

// Queued returns the number of dispatched paths not yet picked up by a worker.
func (c *Coordinator) Queued() int { return c.queue.len() }

// Run scans the directory, then rescans on every change notification or
// poll tick until ctx is cancelled. Tasks in progress finish; queued tasks
// are dropped and evicted.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)

	c.log.Info("Coordinator starting",
		logger.String("dir", c.cfg.Dir),
		logger.Int("workers", c.cfg.Workers),
		logger.Bool("watch", c.cfg.Watch),
		logger.Duration("poll_interval", c.cfg.PollInterval))

	g, gctx := errgroup.WithContext(ctx)
	c.startPool(gctx, g)
	g.Go(func() error { return c.scanLoop(gctx) })

	poll := c.cfg.PollInterval
	if c.cfg.Watch {
		w, err := newDirWatcher(c.cfg.Dir, c.cfg.Debounce, c.requestScan, c.log)
		if err != nil {
			c.log.Warn("File-system notifications unavailable, falling back to polling",
				logger.Error(err))
			if poll <= 0 {
				poll = DefaultPollFallback
			}
		} else {
			g.Go(func() error { return w.run(gctx) })
		}
	}
	if poll > 0 {
		g.Go(func() error { return c.pollLoop(gctx, poll) })
	}

	err := g.Wait()
	c.log.Info("Coordinator stopped", logger.Int("tracked", c.tracker.Len()))
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// RunOnce scans the directory a single time, waits for every dispatched
// task to finish and returns the resulting records.
func (c *Coordinator) RunOnce(ctx context.Context) ([]Record, error) {
	if !c.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer c.running.Store(false)

	poolCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(poolCtx)
	c.startPool(gctx, g)

	n, scanErr := c.Scan(gctx)
	if scanErr == nil && n > 0 {
		c.waitIdle(gctx)
	}
	stop()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return c.Snapshot(), err
	}
	if scanErr != nil {
		return c.Snapshot(), scanErr
	}
	return c.Snapshot(), ctx.Err()
}

func (c *Coordinator) waitIdle(ctx context.Context) {
	for c.outstanding.Load() > 0 {
		select {
		case <-c.idle:
		case <-ctx.Done():
			return
		}
	}
}

// Scan lists the directory and dispatches every drawing without a
// coordinate list that is not already tracked. It never blocks on workers.
func (c *Coordinator) Scan(ctx context.Context) (int, error) {
	c.scanMu.Lock()
	defer c.scanMu.Unlock()

	start := time.Now()
	entries, err := os.ReadDir(c.cfg.Dir)
	if err != nil {
		c.metrics.RecordOperation(metrics.OpScan, metrics.StatusError)
		return 0, errors.New(err).
			Component("coordinator").
			Category(errors.CategoryFileIO).
			Context("operation", "scan").
			Context("dir", c.cfg.Dir).
			Build()
	}

	dispatched := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}
		if e.IsDir() || !drawing.IsDrawingFile(e.Name()) {
			continue
		}
		name := drawing.BaseName(e.Name())
		if !drawing.ValidName(name) {
			if _, seen := c.rejected[e.Name()]; !seen {
				c.rejected[e.Name()] = struct{}{}
				c.log.Warn("Skipping drawing with unusable file name",
					logger.String("file", e.Name()))
			}
			continue
		}
		has, err := c.store.HasCoordinates(name)
		if err != nil {
			c.log.Warn("Cannot check coordinate list", logger.String("drawing", name), logger.Error(err))
			continue
		}
		if has {
			continue
		}
		path := filepath.Join(c.cfg.Dir, e.Name())
		if !c.tracker.TryAdd(path, name) {
			continue
		}
		c.outstanding.Add(1)
		c.queue.push(path)
		dispatched++
	}

	c.metrics.RecordOperation(metrics.OpScan, metrics.StatusSuccess)
	c.metrics.RecordDuration(metrics.OpScan, time.Since(start).Seconds())
	if dispatched > 0 {
		c.log.Info("Dispatched drawings", logger.Int("count", dispatched))
	}
	return dispatched, nil
}

func (c *Coordinator) requestScan() {
	select {
	case c.scanReq <- struct{}{}:
	default:
	}
}

func (c *Coordinator) scanLoop(ctx context.Context) error {
	c.requestScan()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.scanReq:
			if _, err := c.Scan(ctx); err != nil {
				c.log.Error("Directory scan failed", logger.Error(err))
			}
		}
	}
}

func (c *Coordinator) pollLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.requestScan()
		}
	}
}

// startPool launches the dispatcher, the workers and the result loop on g.
func (c *Coordinator) startPool(ctx context.Context, g *errgroup.Group) {
	jobs := make(chan string)
	results := make(chan result, c.cfg.Workers)

	g.Go(func() error {
		c.dispatch(ctx, jobs)
		return nil
	})

	var workers sync.WaitGroup
	for id := range c.cfg.Workers {
		workers.Add(1)
		go func() {
			defer workers.Done()
			c.worker(ctx, id, jobs, results)
		}()
	}
	g.Go(func() error {
		workers.Wait()
		close(results)
		return nil
	})

	g.Go(func() error {
		for r := range results {
			c.handle(r)
		}
		return nil
	})
}

// dispatch feeds queued paths to workers in FIFO order.
func (c *Coordinator) dispatch(ctx context.Context, jobs chan<- string) {
	defer close(jobs)
	for {
		pending := c.queue.drain()
		for i, path := range pending {
			select {
			case jobs <- path:
			case <-ctx.Done():
				c.drop(pending[i:])
				c.drop(c.queue.drain())
				return
			}
		}
		select {
		case <-c.queue.notify:
		case <-ctx.Done():
			c.drop(c.queue.drain())
			return
		}
	}
}

func (c *Coordinator) drop(paths []string) {
	for _, path := range paths {
		c.tracker.Evict(path)
		c.finishOne()
	}
	if len(paths) > 0 {
		c.log.Debug("Dropped queued drawings on shutdown", logger.Int("count", len(paths)))
	}
}

func (c *Coordinator) worker(ctx context.Context, id int, jobs <-chan string, results chan<- result) {
	log := c.log.With(logger.Int("worker_id", id))
	for path := range jobs {
		if ctx.Err() != nil {
			c.drop([]string{path})
			continue
		}
		if !c.tracker.MarkInFlight(path) {
			c.finishOne()
			continue
		}
		log.Debug("Processing drawing", logger.String("path", path))
		// A dispatched task always runs to completion.
		out, err := c.processor.Process(context.WithoutCancel(ctx), path)
		results <- result{path: path, outcome: out, err: err}
	}
}

// handle applies a task result. It runs on the single result loop.
func (c *Coordinator) handle(r result) {
	defer c.finishOne()

	if r.err != nil {
		c.tracker.Fail(r.path, r.err)
		c.log.Error("Drawing ingestion failed",
			logger.String("path", r.path),
			logger.Error(r.err))
		c.publisher.TryPublish(events.Failed(drawing.BaseName(r.path), r.path, r.err))
		return
	}

	c.tracker.MarkDone(r.path, r.outcome.Points)
	if !c.publisher.TryPublish(events.Ready(r.outcome.Drawing, r.path, r.outcome.Points, r.outcome.UsedFallback)) {
		c.log.Warn("Ready notification dropped, event bus full",
			logger.String("drawing", r.outcome.Drawing),
			logger.String("path", r.path))
	}
}

func (c *Coordinator) finishOne() {
	if c.outstanding.Add(-1) == 0 {
		select {
		case c.idle <- struct{}{}:
		default:
		}
	}
}
