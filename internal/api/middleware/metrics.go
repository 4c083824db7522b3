package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/drawmap/internal/errors"
	"github.com/tphakala/drawmap/internal/observability/metrics"
)

// NewMetrics records request counts and latencies. Requests are labelled
// by route template so drawing names do not create new series.
func NewMetrics(m *metrics.HTTPMetrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			var he *echo.HTTPError
			if errors.As(err, &he) {
				status = he.Code
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			m.RecordRequest(c.Request().Method, path, status, time.Since(start).Seconds())
			return err
		}
	}
}
