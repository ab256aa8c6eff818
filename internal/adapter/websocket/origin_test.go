package websocket

import (
	"context"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pscheid92/streambus/internal/metrics"
	"github.com/stretchr/testify/assert"
)

func TestNewCheckOrigin(t *testing.T) {
	appURL := "https://bot.example.com/overlay"

	tests := []struct {
		name          string
		origin        string
		isDevelopment bool
		want          bool
	}{
		// Always allowed
		{"empty origin", "", false, true},
		{"obs origin", "obs://", false, true},
		{"obs origin with host", "obs://obs-studio", false, true},
		{"app origin", "https://bot.example.com", false, true},

		// Rejected in production
		{"different host", "https://evil.com", false, false},
		{"different port", "https://bot.example.com:9090", false, false},
		{"http instead of https", "http://bot.example.com", false, false},
		{"subdomain", "https://sub.bot.example.com", false, false},

		// Localhost: allowed in dev, rejected in prod
		{"localhost dev", "http://localhost:8080", true, true},
		{"localhost no port dev", "http://localhost", true, true},
		{"127.0.0.1 dev", "http://127.0.0.1:3000", true, true},
		{"localhost prod rejected", "http://localhost:8080", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewCheckOrigin(OriginPolicy{AppURL: appURL, Development: tt.isDevelopment})
			r, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, checker(r))
		})
	}
}

func TestNewCheckOrigin_OverlayOrigins(t *testing.T) {
	checker := NewCheckOrigin(OriginPolicy{
		AppURL:   "https://bot.example.com",
		Overlays: []string{"https://cdn.example.net/overlays/song.html", "not a url"},
	})

	request := func(origin string) *http.Request {
		r, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/ws", nil)
		r.Header.Set("Origin", origin)
		return r
	}

	assert.True(t, checker(request("https://bot.example.com")))
	assert.True(t, checker(request("https://cdn.example.net")))
	assert.False(t, checker(request("https://cdn.example.net:8443")))

	before := testutil.ToFloat64(metrics.ConnectionsRejected.WithLabelValues("origin"))
	assert.False(t, checker(request("https://evil.com")))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ConnectionsRejected.WithLabelValues("origin")))
}

func TestExtractOrigin(t *testing.T) {
	tests := []struct {
		name   string
		rawURL string
		want   string
	}{
		{"full URL with path", "https://example.com/overlay/song", "https://example.com"},
		{"URL with port", "https://example.com:8443/path", "https://example.com:8443"},
		{"http URL", "http://localhost:8080/ws", "http://localhost:8080"},
		{"empty string", "", ""},
		{"no host", "mailto:user@example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractOrigin(tt.rawURL))
		})
	}
}
