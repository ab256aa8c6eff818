package websocket

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/pscheid92/streambus/internal/metrics"
)

// OriginPolicy lists who may open the overlay stream from a browser.
type OriginPolicy struct {
	// AppURL is the public URL of this service; its origin is always allowed.
	AppURL string
	// Overlays are extra origins hosting overlay pages (e.g. a separate CDN domain).
	Overlays []string
	// Development additionally allows localhost.
	Development bool
}

// NewCheckOrigin returns the Upgrader.CheckOrigin for the overlay stream.
// Requests without an Origin header (OBS, CLI clients) and obs:// origins are always allowed.
func NewCheckOrigin(policy OriginPolicy) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(policy.Overlays)+1)
	for _, raw := range append([]string{policy.AppURL}, policy.Overlays...) {
		origin := extractOrigin(raw)
		if origin == "" {
			slog.Warn("Ignoring invalid overlay origin", "origin", raw)
			continue
		}
		allowed[origin] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		switch {
		case origin == "", strings.HasPrefix(origin, "obs://"):
			return true
		case policy.Development && isLocalhostOrigin(origin):
			return true
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		metrics.ConnectionsRejected.WithLabelValues("origin").Inc()
		slog.Warn("Overlay stream origin rejected", "origin", origin, "remote_addr", r.RemoteAddr)
		return false
	}
}

func extractOrigin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func isLocalhostOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
