// Package events delivers drawing lifecycle notifications to consumers
// asynchronously, so publishers never block on slow consumers.
package events

import "time"

// Kind identifies what happened to a drawing.
type Kind string

const (
	// KindReady means the drawing's coordinate list was written.
	KindReady Kind = "ready"
	// KindFailed means an ingestion attempt failed and will be retried on
	// the next directory change.
	KindFailed Kind = "failed"
)

// Event is one drawing lifecycle notification.
type Event struct {
	Kind         Kind      `json:"kind"`
	Drawing      string    `json:"drawing"`
	Path         string    `json:"path"`
	Points       int       `json:"points"`
	UsedFallback bool      `json:"used_fallback"`
	Err          error     `json:"-"`
	Timestamp    time.Time `json:"timestamp"`
}

// Ready builds a KindReady event stamped now.
func Ready(drawing, path string, points int, usedFallback bool) Event {
	return Event{
		Kind:         KindReady,
		Drawing:      drawing,
		Path:         path,
		Points:       points,
		UsedFallback: usedFallback,
		Timestamp:    time.Now(),
	}
}

// Failed builds a KindFailed event stamped now.
func Failed(drawing, path string, err error) Event {
	return Event{
		Kind:      KindFailed,
		Drawing:   drawing,
		Path:      path,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// Consumer processes events. ProcessEvent runs on a bus worker and should
// not block for long.
type Consumer interface {
	// Name returns the consumer name for identification
	Name() string

	// ProcessEvent processes a single event
	ProcessEvent(event Event) error
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc struct {
	name string
	fn   func(Event) error
}

// NewConsumer returns a Consumer named name that calls fn.
func NewConsumer(name string, fn func(Event) error) *ConsumerFunc {
	return &ConsumerFunc{name: name, fn: fn}
}

// Name implements Consumer.
func (c *ConsumerFunc) Name() string { return c.name }

// ProcessEvent implements Consumer.
func (c *ConsumerFunc) ProcessEvent(event Event) error { return c.fn(event) }

// Publisher accepts events without blocking.
type Publisher interface {
	TryPublish(event Event) bool
}

// Stats contains runtime statistics for monitoring.
type Stats struct {
	EventsReceived   uint64 `json:"events_received"`
	EventsSuppressed uint64 `json:"events_suppressed"`
	EventsProcessed  uint64 `json:"events_processed"`
	EventsDropped    uint64 `json:"events_dropped"`
	ConsumerErrors   uint64 `json:"consumer_errors"`
}
