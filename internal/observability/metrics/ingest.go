package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// IngestMetrics contains Prometheus metrics for drawing ingestion.
type IngestMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	errorsTotal       *prometheus.CounterVec
	pointsPerDrawing  prometheus.Histogram
	inflightTasks     prometheus.Gauge
	fallbackTotal     *prometheus.CounterVec
}

// NewIngestMetrics creates the ingestion metrics and registers them with registry.
func NewIngestMetrics(registry prometheus.Registerer) (*IngestMetrics, error) {
	m := &IngestMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register ingest metrics: %w", err)
	}
	return m, nil
}

func (m *IngestMetrics) initMetrics() {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_operations_total",
			Help: "Total number of ingestion operations",
		},
		[]string{"operation", "status"},
	)

	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_operation_duration_seconds",
			Help:    "Time taken for ingestion operations",
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12), // 10ms to ~20s
		},
		[]string{"operation"},
	)

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_errors_total",
			Help: "Total number of ingestion errors",
		},
		[]string{"operation", "error_type"},
	)

	m.pointsPerDrawing = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ingest_points_per_drawing",
		Help:    "Number of reference points found per ingested drawing",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100, 200, 500},
	})

	m.inflightTasks = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ingest_inflight_tasks",
		Help: "Number of ingestion tasks currently executing",
	})

	m.fallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_fallback_total",
			Help: "Total number of raster fallback attempts by outcome",
		},
		[]string{"outcome"},
	)
}

// RecordOperation implements Recorder.
func (m *IngestMetrics) RecordOperation(operation, status string) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDuration implements Recorder.
func (m *IngestMetrics) RecordDuration(operation string, seconds float64) {
	m.operationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError implements Recorder.
func (m *IngestMetrics) RecordError(operation, errorType string) {
	m.errorsTotal.WithLabelValues(operation, errorType).Inc()
}

// ObservePoints implements IngestRecorder.
func (m *IngestMetrics) ObservePoints(points int) {
	m.pointsPerDrawing.Observe(float64(points))
}

// RecordFallback implements IngestRecorder.
func (m *IngestMetrics) RecordFallback(outcome string) {
	m.fallbackTotal.WithLabelValues(outcome).Inc()
}

// TaskStarted implements IngestRecorder.
func (m *IngestMetrics) TaskStarted() {
	m.inflightTasks.Inc()
}

// TaskFinished implements IngestRecorder.
func (m *IngestMetrics) TaskFinished() {
	m.inflightTasks.Dec()
}

// Describe implements the prometheus.Collector interface.
func (m *IngestMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.operationsTotal.Describe(ch)
	m.operationDuration.Describe(ch)
	m.errorsTotal.Describe(ch)
	m.pointsPerDrawing.Describe(ch)
	m.inflightTasks.Describe(ch)
	m.fallbackTotal.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *IngestMetrics) Collect(ch chan<- prometheus.Metric) {
	m.operationsTotal.Collect(ch)
	m.operationDuration.Collect(ch)
	m.errorsTotal.Collect(ch)
	m.pointsPerDrawing.Collect(ch)
	m.inflightTasks.Collect(ch)
	m.fallbackTotal.Collect(ch)
}

var _ IngestRecorder = (*IngestMetrics)(nil)
