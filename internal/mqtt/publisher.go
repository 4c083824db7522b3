package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tphakala/drawmap/internal/errors"
	"github.com/tphakala/drawmap/internal/events"
	"github.com/tphakala/drawmap/internal/logger"
)

// ReadyMessage is the payload published when a drawing's coordinate list
// has been written.
type ReadyMessage struct {
	Drawing   string    `json:"drawing"`
	Points    int       `json:"points"`
	Fallback  bool      `json:"fallback"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyPublisher forwards ready events to a broker topic.
type ReadyPublisher struct {
	client  Client
	topic   string
	timeout time.Duration
	log     logger.Logger
}

// NewReadyPublisher returns an events consumer publishing on topic.
func NewReadyPublisher(client Client, topic string, timeout time.Duration, log logger.Logger) *ReadyPublisher {
	if topic == "" {
		topic = DefaultConfig().Topic
	}
	if timeout <= 0 {
		timeout = DefaultConfig().PublishTimeout
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &ReadyPublisher{client: client, topic: topic, timeout: timeout, log: log}
}

// Name implements events.Consumer.
func (p *ReadyPublisher) Name() string { return "mqtt" }

// ProcessEvent implements events.Consumer. Failure events are ignored.
func (p *ReadyPublisher) ProcessEvent(event events.Event) error {
	if event.Kind != events.KindReady {
		return nil
	}

	payload, err := json.Marshal(ReadyMessage{
		Drawing:   event.Drawing,
		Points:    event.Points,
		Fallback:  event.UsedFallback,
		Timestamp: event.Timestamp,
	})
	if err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("drawing", event.Drawing).
			Build()
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.client.Publish(ctx, p.topic, string(payload)); err != nil {
		p.log.Warn("Failed to publish ready notification",
			logger.String("drawing", event.Drawing),
			logger.String("topic", p.topic),
			logger.Error(err))
		return err
	}
	return nil
}
