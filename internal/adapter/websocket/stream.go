// Package websocket streams bus messages to browser overlays.
package websocket

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/streambus/internal/broadcast"
	"github.com/pscheid92/streambus/internal/bus"
	"github.com/pscheid92/streambus/internal/metrics"
	"github.com/pscheid92/streambus/internal/platform/logging"
)

const (
	transport = "websocket"

	writeDeadline = 5 * time.Second
	pingInterval  = 30 * time.Second
	pongDeadline  = 60 * time.Second
)

// Stream upgrades requests to websockets and sends every bus message as one text frame.
// Frames carry the same JSON as the TCP protocol, without the trailing newline.
type Stream struct {
	bus      *bus.Bus
	clock    clockwork.Clock
	upgrader websocket.Upgrader
}

func NewStream(b *bus.Bus, clock clockwork.Clock, checkOrigin func(*http.Request) bool) *Stream {
	return &Stream{
		bus:   b,
		clock: clock,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
	}
}

func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error
		slog.Debug("Overlay stream upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(logging.WithAttrs(r.Context(),
		slog.String("connection_id", uuid.NewString()),
		slog.String("remote_addr", r.RemoteAddr),
	))
	defer cancel()

	metrics.ConnectionsTotal.WithLabelValues(transport).Inc()
	metrics.ConnectionsCurrent.WithLabelValues(transport).Inc()
	defer metrics.ConnectionsCurrent.WithLabelValues(transport).Dec()

	handler := broadcast.NewHandler(s.bus.Subscribe(), &frameWriter{conn: conn, clock: s.clock}, s.clock)

	go s.readPump(conn, cancel)
	go s.pingLoop(ctx, conn)

	slog.DebugContext(ctx, "Overlay connected")
	err = handler.Run(ctx)

	code, reason := closeCode(err)
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, s.clock.Now().Add(writeDeadline))
	slog.DebugContext(ctx, "Overlay disconnected", "close_code", code)
}

// readPump discards client frames and cancels the connection once the client goes away.
func (s *Stream) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	_ = conn.SetReadDeadline(s.clock.Now().Add(pongDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(s.clock.Now().Add(pongDeadline))
	})

	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func (s *Stream) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := s.clock.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			if err := conn.WriteControl(websocket.PingMessage, nil, s.clock.Now().Add(writeDeadline)); err != nil {
				slog.DebugContext(ctx, "Overlay ping failed", "error", err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func closeCode(err error) (int, string) {
	switch {
	case err == nil:
		return websocket.CloseGoingAway, "bus closed"
	case errors.Is(err, bus.ErrLagged):
		return websocket.CloseTryAgainLater, "lagged behind"
	default:
		return websocket.CloseInternalServerErr, "stream failed"
	}
}

// frameWriter turns each newline-terminated line into one text frame.
type frameWriter struct {
	conn  *websocket.Conn
	clock clockwork.Clock
}

func (f *frameWriter) Write(p []byte) (int, error) {
	_ = f.conn.SetWriteDeadline(f.clock.Now().Add(writeDeadline))
	if err := f.conn.WriteMessage(websocket.TextMessage, bytes.TrimSuffix(p, []byte("\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}
