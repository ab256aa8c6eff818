package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/streambus/internal/bus"
	"github.com/pscheid92/streambus/internal/platform/config"
)

type mockAppService struct {
	mu        sync.Mutex
	published []bus.Message
	latest    map[string]bus.Message
}

func (m *mockAppService) Publish(_ context.Context, msg bus.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, msg)
}

func (m *mockAppService) Latest() map[string]bus.Message {
	return m.latest
}

func (m *mockAppService) getPublished() []bus.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bus.Message(nil), m.published...)
}

type serverOptions struct {
	stream       http.Handler
	healthChecks []HealthCheck
	clock        clockwork.Clock
}

func withHealthChecks(checks ...HealthCheck) func(*serverOptions) {
	return func(o *serverOptions) { o.healthChecks = checks }
}

func withStream(h http.Handler) func(*serverOptions) {
	return func(o *serverOptions) { o.stream = h }
}

func withClock(clock clockwork.Clock) func(*serverOptions) {
	return func(o *serverOptions) { o.clock = clock }
}

func newTestServer(t *testing.T, app appService, opts ...func(*serverOptions)) *Server {
	t.Helper()
	o := serverOptions{clock: clockwork.NewFakeClock()}
	for _, opt := range opts {
		opt(&o)
	}
	return NewServer(&config.Config{Port: "0", MessageRate: 20, MessageBurst: 40}, app, o.stream, o.healthChecks, o.clock)
}

// do sends a request through the full middleware stack.
func do(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}
