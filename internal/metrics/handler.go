package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns an http.Handler that serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
