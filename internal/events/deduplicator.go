package events

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// DeduplicationConfig controls suppression of repeated failure events.
type DeduplicationConfig struct {
	Enabled bool
	// TTL is how long an identical failure stays suppressed.
	TTL time.Duration
}

// DefaultDeduplicationConfig returns default deduplication settings.
func DefaultDeduplicationConfig() *DeduplicationConfig {
	return &DeduplicationConfig{
		Enabled: true,
		TTL:     5 * time.Minute,
	}
}

// Deduplicator suppresses a failure event when the same drawing failed
// with the same message within the TTL. A broken file is rescanned on
// every directory change, and each attempt would otherwise notify again.
// Ready events always pass and clear the drawing's failure entry.
type Deduplicator struct {
	enabled bool
	ttl     time.Duration
	seen    *cache.Cache
}

// NewDeduplicator returns a deduplicator; nil cfg uses the defaults.
func NewDeduplicator(cfg *DeduplicationConfig) *Deduplicator {
	if cfg == nil {
		cfg = DefaultDeduplicationConfig()
	}
	d := &Deduplicator{enabled: cfg.Enabled && cfg.TTL > 0, ttl: cfg.TTL}
	if d.enabled {
		// No janitor goroutine; expired entries are purged on insert.
		d.seen = cache.New(cfg.TTL, 0)
	}
	return d
}

// ShouldProcess reports whether event should be delivered.
func (d *Deduplicator) ShouldProcess(event Event) bool {
	if d == nil || !d.enabled {
		return true
	}
	if event.Kind != KindFailed {
		d.seen.Delete(event.Drawing)
		return true
	}

	msg := ""
	if event.Err != nil {
		msg = event.Err.Error()
	}
	if prev, found := d.seen.Get(event.Drawing); found {
		if prevMsg, ok := prev.(string); ok && prevMsg == msg {
			return false
		}
	}
	d.seen.DeleteExpired()
	d.seen.Set(event.Drawing, msg, cache.DefaultExpiration)
	return true
}

// Len returns the number of tracked failures.
func (d *Deduplicator) Len() int {
	if d == nil || !d.enabled {
		return 0
	}
	return d.seen.ItemCount()
}

// Close drops all entries.
func (d *Deduplicator) Close() {
	if d != nil && d.enabled {
		d.seen.Flush()
	}
}
