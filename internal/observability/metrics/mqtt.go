package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MQTT error stage label values.
const (
	MQTTStageConnect = "connect"
	MQTTStageLost    = "connection_lost"
	MQTTStagePublish = "publish"
)

// MQTTMetrics tracks the ready-notification broker connection. All methods
// are safe on a nil receiver so the client can run without metrics.
type MQTTMetrics struct {
	connected      prometheus.Gauge
	lastConnect    prometheus.Gauge
	reconnects     prometheus.Counter
	published      prometheus.Counter
	errors         *prometheus.CounterVec
	payloadBytes   prometheus.Histogram
	publishLatency prometheus.Histogram
}

// NewMQTTMetrics creates and registers the MQTT collectors.
func NewMQTTMetrics(registry prometheus.Registerer) (*MQTTMetrics, error) {
	m := &MQTTMetrics{
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mqtt_connected",
			Help: "1 while the broker connection is up",
		}),
		lastConnect: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mqtt_last_connect_timestamp_seconds",
			Help: "Unix time of the last successful broker connection",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_reconnect_attempts_total",
			Help: "Automatic reconnection attempts",
		}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_ready_messages_published_total",
			Help: "Drawing-ready messages accepted by the broker",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mqtt_errors_total",
			Help: "Broker errors by stage",
		}, []string{"stage"}),
		payloadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mqtt_payload_size_bytes",
			Help:    "Size of published payloads",
			Buckets: prometheus.ExponentialBuckets(BucketStart64B, BucketFactor2, BucketCount10),
		}),
		publishLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mqtt_publish_latency_seconds",
			Help:    "Time from publish to broker acknowledgement",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount10),
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register MQTT metrics: %w", err)
	}
	return m, nil
}

// SetConnected updates the connection gauge and stamps successful connects.
func (m *MQTTMetrics) SetConnected(up bool) {
	if m == nil {
		return
	}
	if !up {
		m.connected.Set(0)
		return
	}
	m.connected.Set(1)
	m.lastConnect.SetToCurrentTime()
}

func (m *MQTTMetrics) Reconnecting() {
	if m != nil {
		m.reconnects.Inc()
	}
}

func (m *MQTTMetrics) Error(stage string) {
	if m != nil {
		m.errors.WithLabelValues(stage).Inc()
	}
}

// Published records an acknowledged message that took since start.
func (m *MQTTMetrics) Published(start time.Time, size int) {
	if m == nil {
		return
	}
	m.published.Inc()
	m.payloadBytes.Observe(float64(size))
	m.publishLatency.Observe(time.Since(start).Seconds())
}

func (m *MQTTMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

func (m *MQTTMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}

func (m *MQTTMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.connected, m.lastConnect, m.reconnects, m.published,
		m.errors, m.payloadBytes, m.publishLatency,
	}
}
