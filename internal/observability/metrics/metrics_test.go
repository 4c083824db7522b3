package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewIngestMetrics(reg)
	require.NoError(t, err)

	m.RecordOperation(OpIngest, StatusSuccess)
	m.RecordOperation(OpIngest, StatusSuccess)
	m.RecordOperation(OpIngest, StatusError)
	m.RecordError(OpRender, "render")
	m.RecordFallback(FallbackUsed)
	m.ObservePoints(4)
	m.RecordDuration(OpIngest, 0.25)
	m.TaskStarted()
	m.TaskStarted()
	m.TaskFinished()

	assert.InDelta(t, 2, testutil.ToFloat64(m.operationsTotal.WithLabelValues(OpIngest, StatusSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.operationsTotal.WithLabelValues(OpIngest, StatusError)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.errorsTotal.WithLabelValues(OpRender, "render")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.fallbackTotal.WithLabelValues(FallbackUsed)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.inflightTasks), 0)

	expected := `
# HELP ingest_points_per_drawing Number of reference points found per ingested drawing
# TYPE ingest_points_per_drawing histogram
ingest_points_per_drawing_bucket{le="0"} 0
ingest_points_per_drawing_bucket{le="1"} 0
ingest_points_per_drawing_bucket{le="2"} 0
ingest_points_per_drawing_bucket{le="5"} 1
ingest_points_per_drawing_bucket{le="10"} 1
ingest_points_per_drawing_bucket{le="20"} 1
ingest_points_per_drawing_bucket{le="50"} 1
ingest_points_per_drawing_bucket{le="100"} 1
ingest_points_per_drawing_bucket{le="200"} 1
ingest_points_per_drawing_bucket{le="500"} 1
ingest_points_per_drawing_bucket{le="+Inf"} 1
ingest_points_per_drawing_sum 4
ingest_points_per_drawing_count 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "ingest_points_per_drawing"))
}

func TestIngestMetrics_DoubleRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewIngestMetrics(reg)
	require.NoError(t, err)
	_, err = NewIngestMetrics(reg)
	require.Error(t, err)
}

func TestMQTTMetrics(t *testing.T) {
	t.Parallel()

	m, err := NewMQTTMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.SetConnected(true)
	assert.InDelta(t, 1, testutil.ToFloat64(m.connected), 0)
	assert.Positive(t, testutil.ToFloat64(m.lastConnect))

	m.SetConnected(false)
	assert.InDelta(t, 0, testutil.ToFloat64(m.connected), 0)

	m.Reconnecting()
	m.Error(MQTTStagePublish)
	m.Error(MQTTStagePublish)
	m.Error(MQTTStageConnect)
	m.Published(time.Now(), 128)
	assert.InDelta(t, 1, testutil.ToFloat64(m.reconnects), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.errors.WithLabelValues(MQTTStagePublish)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.errors.WithLabelValues(MQTTStageConnect)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.published), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.publishLatency))
}

func TestMQTTMetricsNilReceiver(t *testing.T) {
	t.Parallel()

	var m *MQTTMetrics
	assert.NotPanics(t, func() {
		m.SetConnected(true)
		m.Reconnecting()
		m.Error(MQTTStageLost)
		m.Published(time.Now(), 1)
	})
}

func TestHTTPMetrics(t *testing.T) {
	t.Parallel()

	m, err := NewHTTPMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordRequest("GET", "/api/v1/drawings", 200, 0.01)
	m.RecordRequest("GET", "/api/v1/drawings", 200, 0.02)
	m.RecordRequest("PUT", "/api/v1/drawings/:name/descriptors", 400, 0.01)

	assert.InDelta(t, 2, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "/api/v1/drawings", "200")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.requestsTotal.WithLabelValues("PUT", "/api/v1/drawings/:name/descriptors", "400")), 0)
}

func TestNopRecorder(t *testing.T) {
	t.Parallel()

	var r IngestRecorder = NopRecorder{}
	assert.NotPanics(t, func() {
		r.RecordOperation(OpIngest, StatusSuccess)
		r.RecordDuration(OpIngest, 1)
		r.RecordError(OpIngest, "x")
		r.ObservePoints(1)
		r.RecordFallback(FallbackEmpty)
		r.TaskStarted()
		r.TaskFinished()
	})
}
