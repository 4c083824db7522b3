// Package observability exposes drawmap's Prometheus metrics.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tphakala/drawmap/internal/errors"
	"github.com/tphakala/drawmap/internal/logger"
	"github.com/tphakala/drawmap/internal/observability/metrics"
)

// Metrics bundles the collector groups on a private registry, so several
// instances can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry
	Ingest   *metrics.IngestMetrics
	MQTT     *metrics.MQTTMetrics
	HTTP     *metrics.HTTPMetrics
}

// NewMetrics registers the runtime collectors and every drawmap group.
func NewMetrics() (*Metrics, error) {
	reg := prometheus.NewRegistry()
	m := &Metrics{registry: reg}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"go", func() error { return reg.Register(collectors.NewGoCollector()) }},
		{"process", func() error {
			return reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		}},
		{"ingest", func() (err error) { m.Ingest, err = metrics.NewIngestMetrics(reg); return err }},
		{"mqtt", func() (err error) { m.MQTT, err = metrics.NewMQTTMetrics(reg); return err }},
		{"http", func() (err error) { m.HTTP, err = metrics.NewHTTPMetrics(reg); return err }},
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			return nil, errors.New(err).
				Component("observability").
				Category(errors.CategoryConfiguration).
				Context("collector", s.name).
				Build()
		}
	}
	return m, nil
}

// Registry returns the registry backing the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format. Gather
// errors are logged to log and reported as HTTP 500.
func (m *Metrics) Handler(log logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      promErrorLog{log},
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// promErrorLog adapts Logger to promhttp.Logger.
type promErrorLog struct{ log logger.Logger }

func (p promErrorLog) Println(v ...any) {
	p.log.Error("Metrics exposition failed", logger.String("detail", fmt.Sprint(v...)))
}
