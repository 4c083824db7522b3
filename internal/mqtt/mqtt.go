// Package mqtt announces finished drawings on an MQTT topic so downstream
// tools can pick up new coordinate lists without polling the directory.
package mqtt

import (
	"context"
	"time"
)

// Client is the broker connection used by ReadyPublisher.
type Client interface {
	// Connect dials the broker once; later reconnects happen automatically.
	Connect(ctx context.Context) error
	// Publish blocks until the broker acknowledges payload or ctx ends.
	Publish(ctx context.Context, topic, payload string) error
	IsConnected() bool
	Disconnect()
}

// Config is the broker connection and publish policy.
type Config struct {
	// Broker is a URL such as tcp://host:1883 or ssl://host:8883.
	Broker   string
	ClientID string
	Username string
	Password string
	// Topic receives one ReadyMessage per ingested drawing.
	Topic  string
	Retain bool
	QoS    byte

	// ReconnectCooldown is the minimum spacing of manual Connect calls.
	ReconnectCooldown time.Duration
	MaxReconnectDelay time.Duration
	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
}

// DefaultConfig points at a local broker.
func DefaultConfig() Config {
	return Config{
		Broker:            "tcp://localhost:1883",
		ClientID:          "drawmap",
		Topic:             "drawmap/ready",
		ReconnectCooldown: 5 * time.Second,
		MaxReconnectDelay: 5 * time.Minute,
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
	}
}

// withDefaults fills unset identity and timeout fields from DefaultConfig.
// Broker, Topic and ReconnectCooldown are left as given.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ClientID == "" {
		c.ClientID = def.ClientID
	}
	for _, d := range []struct{ v *time.Duration; def time.Duration }{
		{&c.ConnectTimeout, def.ConnectTimeout},
		{&c.PublishTimeout, def.PublishTimeout},
		{&c.DisconnectTimeout, def.DisconnectTimeout},
		{&c.MaxReconnectDelay, def.MaxReconnectDelay},
	} {
		if *d.v <= 0 {
			*d.v = d.def
		}
	}
	return c
}
