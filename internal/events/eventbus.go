package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/drawmap/internal/logger"
)

// Config holds event bus configuration.
type Config struct {
	BufferSize int
	// Workers above 1 lose per-drawing ordering.
	Workers       int
	Deduplication *DeduplicationConfig
}

// DefaultConfig returns the default event bus configuration.
func DefaultConfig() *Config {
	return &Config{
		BufferSize:    1000,
		Workers:       1,
		Deduplication: DefaultDeduplicationConfig(),
	}
}

// Bus fans events out to registered consumers on background workers.
type Bus struct {
	eventChan chan Event
	workers   int
	dedup     *Deduplicator

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool
	stopped atomic.Bool
	mu      sync.Mutex

	consumers []Consumer

	received   atomic.Uint64
	processed  atomic.Uint64
	dropped    atomic.Uint64
	suppressed atomic.Uint64
	consErrors atomic.Uint64

	log logger.Logger
}

// New creates a bus. Workers start with the first registered consumer.
func New(cfg *Config, log logger.Logger) *Bus {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		eventChan: make(chan Event, cfg.BufferSize),
		workers:   cfg.Workers,
		dedup:     NewDeduplicator(cfg.Deduplication),
		ctx:       ctx,
		cancel:    cancel,
		log:       log,
	}
	b.log.Debug("Event bus initialized",
		logger.Int("buffer_size", cfg.BufferSize),
		logger.Int("workers", cfg.Workers))
	return b
}

// RegisterConsumer adds a consumer. Names must be unique.
func (b *Bus) RegisterConsumer(consumer Consumer) error {
	if b == nil {
		return fmt.Errorf("event bus not initialized")
	}
	if b.stopped.Load() {
		return fmt.Errorf("event bus is shut down")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.consumers {
		if existing.Name() == consumer.Name() {
			return fmt.Errorf("consumer %s already registered", consumer.Name())
		}
	}
	b.consumers = append(b.consumers, consumer)
	b.log.Info("Registered event consumer", logger.String("consumer", consumer.Name()))

	if !b.running.Load() {
		b.start()
	}
	return nil
}

// TryPublish queues event without blocking. It returns false when the
// event was dropped because the bus is full, stopped or has no consumers,
// or suppressed as a repeated failure.
func (b *Bus) TryPublish(event Event) bool {
	if b == nil || !b.running.Load() {
		return false
	}
	if !b.dedup.ShouldProcess(event) {
		b.suppressed.Add(1)
		return false
	}

	select {
	case b.eventChan <- event:
		b.received.Add(1)
		return true
	default:
		b.dropped.Add(1)
		b.log.Debug("Event dropped due to full buffer",
			logger.String("kind", string(event.Kind)),
			logger.String("drawing", event.Drawing))
		return false
	}
}

func (b *Bus) start() {
	if b.running.Swap(true) {
		return
	}
	for i := range b.workers {
		b.wg.Add(1)
		go b.worker(i)
	}
}

func (b *Bus) worker(id int) {
	defer b.wg.Done()
	log := b.log.With(logger.Int("worker_id", id))

	for {
		select {
		case <-b.ctx.Done():
			// Deliver what was accepted before shutdown.
			for {
				select {
				case event := <-b.eventChan:
					b.dispatch(event, log)
				default:
					return
				}
			}
		case event := <-b.eventChan:
			b.dispatch(event, log)
		}
	}
}

func (b *Bus) dispatch(event Event, log logger.Logger) {
	b.mu.Lock()
	consumers := make([]Consumer, len(b.consumers))
	copy(consumers, b.consumers)
	b.mu.Unlock()

	for _, consumer := range consumers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.consErrors.Add(1)
					log.Error("Consumer panicked",
						logger.String("consumer", consumer.Name()),
						logger.Any("panic", r),
						logger.String("drawing", event.Drawing))
				}
			}()

			if err := consumer.ProcessEvent(event); err != nil {
				b.consErrors.Add(1)
				log.Error("Consumer error",
					logger.String("consumer", consumer.Name()),
					logger.String("drawing", event.Drawing),
					logger.Error(err))
				return
			}
			b.processed.Add(1)
		}()
	}
}

// Shutdown stops accepting events, delivers those already queued and
// waits up to timeout for the workers to exit.
func (b *Bus) Shutdown(timeout time.Duration) error {
	if b == nil || b.stopped.Swap(true) {
		return nil
	}

	b.running.Store(false)
	b.cancel()
	defer b.dedup.Close()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.log.Debug("Event bus shutdown complete")
		return nil
	case <-time.After(timeout):
		b.log.Warn("Event bus shutdown timeout exceeded", logger.Duration("timeout", timeout))
		return fmt.Errorf("event bus shutdown timeout exceeded")
	}
}

// GetStats returns current statistics.
func (b *Bus) GetStats() Stats {
	if b == nil {
		return Stats{}
	}
	return Stats{
		EventsReceived:   b.received.Load(),
		EventsSuppressed: b.suppressed.Load(),
		EventsProcessed:  b.processed.Load(),
		EventsDropped:    b.dropped.Load(),
		ConsumerErrors:   b.consErrors.Load(),
	}
}

var _ Publisher = (*Bus)(nil)
