package events

import (
	"github.com/tphakala/drawmap/internal/logger"
)

// LogConsumer writes every event to a logger.
type LogConsumer struct {
	log logger.Logger
}

// NewLogConsumer returns a consumer logging to log.
func NewLogConsumer(log logger.Logger) *LogConsumer {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &LogConsumer{log: log}
}

// Name implements Consumer.
func (c *LogConsumer) Name() string { return "log" }

// ProcessEvent implements Consumer.
func (c *LogConsumer) ProcessEvent(event Event) error {
	switch event.Kind {
	case KindReady:
		c.log.Info("Drawing ready",
			logger.String("drawing", event.Drawing),
			logger.Int("points", event.Points),
			logger.Bool("fallback", event.UsedFallback))
	case KindFailed:
		c.log.Warn("Drawing not processed",
			logger.String("drawing", event.Drawing),
			logger.String("path", event.Path),
			logger.Error(event.Err))
	}
	return nil
}
