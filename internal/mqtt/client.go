package mqtt

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tphakala/drawmap/internal/errors"
	"github.com/tphakala/drawmap/internal/logger"
	"github.com/tphakala/drawmap/internal/observability/metrics"
	"github.com/tphakala/drawmap/internal/privacy"
)

// ErrNotConnected is returned by Publish while the broker is unreachable.
var ErrNotConnected = errors.NewStd("not connected to MQTT broker")

// client implements the Client interface on top of paho.
type client struct {
	config          Config
	internalClient  mqtt.Client
	lastConnAttempt time.Time
	mu              sync.Mutex
	metrics         *metrics.MQTTMetrics
	log             logger.Logger
}

// NewClient creates an unconnected client. m and log may be nil.
func NewClient(cfg Config, m *metrics.MQTTMetrics, log logger.Logger) (Client, error) {
	if cfg.Broker == "" {
		return nil, errors.ValidationError("mqtt broker is required")
	}
	cfg = cfg.withDefaults()
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &client{config: cfg, metrics: m, log: log}, nil
}

// Connect resolves the broker host and connects. Paho reconnects on its
// own after a successful first connection.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.config.ReconnectCooldown > 0 && time.Since(c.lastConnAttempt) < c.config.ReconnectCooldown {
		return fmt.Errorf("connection attempt too recent, last attempt was %v ago", time.Since(c.lastConnAttempt))
	}
	c.lastConnAttempt = time.Now()

	u, err := url.Parse(c.config.Broker)
	if err != nil {
		return c.connError(fmt.Errorf("invalid broker URL: %s", privacy.ScrubMessage(err.Error())))
	}
	host := u.Hostname()
	if host == "" {
		return c.connError(fmt.Errorf("invalid broker URL %q: missing host", privacy.SanitizeURL(c.config.Broker)))
	}

	if net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			return c.connError(fmt.Errorf("failed to resolve hostname %s: %w", host, err))
		}
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(c.config.MaxReconnectDelay)
	opts.SetConnectTimeout(c.config.ConnectTimeout)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(c.onReconnecting)

	c.internalClient = mqtt.NewClient(opts)

	token := c.internalClient.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return c.connError(ctx.Err())
	case <-time.After(c.config.ConnectTimeout):
		return c.connError(fmt.Errorf("connection timeout"))
	}
	if err := token.Error(); err != nil {
		return c.connError(fmt.Errorf("connection error: %w", err))
	}
	return nil
}

func (c *client) connError(err error) error {
	c.metrics.Error(metrics.MQTTStageConnect)
	return errors.New(err).
		Component("mqtt").
		Category(errors.CategoryMQTTConnection).
		Context("broker", privacy.SanitizeURL(c.config.Broker)).
		Build()
}

// Publish sends payload to topic and waits for the broker to accept it.
func (c *client) Publish(ctx context.Context, topic, payload string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.IsConnected() {
		return errors.New(ErrNotConnected).
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Context("topic", topic).
			Build()
	}

	start := time.Now()
	token := c.internalClient.Publish(topic, c.config.QoS, c.config.Retain, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return c.publishError(ctx.Err(), topic)
	case <-time.After(c.config.PublishTimeout):
		return c.publishError(fmt.Errorf("publish timeout"), topic)
	}
	if err := token.Error(); err != nil {
		return c.publishError(err, topic)
	}

	c.metrics.Published(start, len(payload))
	c.log.Debug("Published message", logger.String("topic", topic), logger.Int("bytes", len(payload)))
	return nil
}

func (c *client) publishError(err error, topic string) error {
	c.metrics.Error(metrics.MQTTStagePublish)
	return errors.New(err).
		Component("mqtt").
		Category(errors.CategoryMQTTPublish).
		Context("topic", topic).
		Build()
}

// IsConnected returns true if the client is currently connected to the broker.
func (c *client) IsConnected() bool {
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// Disconnect closes the connection to the broker.
func (c *client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.internalClient != nil && c.internalClient.IsConnectionOpen() {
		c.internalClient.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
	}
	c.metrics.SetConnected(false)
}

func (c *client) onConnect(mqtt.Client) {
	c.log.Info("Connected to MQTT broker", logger.String("broker", privacy.SanitizeURL(c.config.Broker)))
	c.metrics.SetConnected(true)
}

func (c *client) onConnectionLost(_ mqtt.Client, err error) {
	c.log.Warn("Connection to MQTT broker lost", logger.String("broker", privacy.SanitizeURL(c.config.Broker)), logger.Error(err))
	c.metrics.SetConnected(false)
	c.metrics.Error(metrics.MQTTStageLost)
}

func (c *client) onReconnecting(mqtt.Client, *mqtt.ClientOptions) {
	c.log.Debug("Reconnecting to MQTT broker", logger.String("broker", privacy.SanitizeURL(c.config.Broker)))
	c.metrics.Reconnecting()
}
