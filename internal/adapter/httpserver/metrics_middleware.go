package httpserver

import (
	"errors"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/streambus/internal/metrics"
)

// metricsMiddleware records request counts and latency per route. Probes, scrapes and
// the long-lived websocket are skipped.
func metricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Path()
			if path == "/metrics" || path == "/ws" || strings.HasPrefix(path, "/health/") {
				return next(c)
			}

			metrics.HTTPInFlight.Inc()
			defer metrics.HTTPInFlight.Dec()

			timer := prometheus.NewTimer(nil)
			err := next(c)

			status := c.Response().Status
			// echo renders HTTPErrors after the middleware chain unwinds
			var he *echo.HTTPError
			if errors.As(err, &he) && !c.Response().Committed {
				status = he.Code
			}

			code := strconv.Itoa(status)
			metrics.HTTPRequestDuration.WithLabelValues(c.Request().Method, path, code).Observe(timer.ObserveDuration().Seconds())
			metrics.HTTPRequestsTotal.WithLabelValues(c.Request().Method, path, code).Inc()
			return err
		}
	}
}
