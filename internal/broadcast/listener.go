package broadcast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/streambus/internal/bus"
	"github.com/pscheid92/streambus/internal/metrics"
	"github.com/pscheid92/streambus/internal/platform/logging"
)

const (
	transportTCP = "tcp"

	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Listener accepts TCP clients and streams the bus to each of them.
type Listener struct {
	bus    *bus.Bus
	addr   string
	limits *Limits
	clock  clockwork.Clock

	ready   chan struct{}
	mu      sync.Mutex
	bound   net.Addr
	stopped bool
	wg      sync.WaitGroup
}

// NewListener creates a listener for addr. limits may be nil to accept every connection.
func NewListener(b *bus.Bus, addr string, limits *Limits, clock clockwork.Clock) *Listener {
	return &Listener{
		bus:    b,
		addr:   addr,
		limits: limits,
		clock:  clock,
		ready:  make(chan struct{}),
	}
}

// Listen binds the address and serves until ctx is cancelled. It must be called once.
// A bind failure is returned; after cancellation Listen closes every client and returns nil
// once all handlers have exited.
func (l *Listener) Listen(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", l.addr)
	if err != nil {
		close(l.ready)
		return fmt.Errorf("failed to bind bus listener on %s: %w", l.addr, err)
	}
	return l.serve(ctx, ln)
}

// serve runs the accept loop on ln and takes ownership of it.
func (l *Listener) serve(ctx context.Context, ln net.Listener) error {
	l.mu.Lock()
	l.bound = ln.Addr()
	l.mu.Unlock()
	close(l.ready)

	slog.Info("Bus listener started", "address", ln.Addr().String())

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	defer l.wg.Wait()
	defer func() {
		l.mu.Lock()
		l.stopped = true
		l.mu.Unlock()
	}()

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				slog.Info("Bus listener stopped", "address", ln.Addr().String())
				return nil
			}

			backoff = nextBackoff(backoff)
			metrics.ConnectionAcceptErrors.Inc()
			slog.Error("Failed to accept connection", "error", err, "retry_in", backoff)

			select {
			case <-l.clock.After(backoff):
			case <-ctx.Done():
			}
			continue
		}
		backoff = 0

		l.accept(ctx, conn)
	}
}

// Ready is closed once Listen has attempted to bind. Addr is nil if the bind failed.
func (l *Listener) Ready() <-chan struct{} {
	return l.ready
}

// Addr returns the bound address, or nil before Ready.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bound
}

// Check reports whether the listener is bound and still accepting. It serves as a readiness check.
func (l *Listener) Check(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.bound == nil:
		return errors.New("bus listener not bound")
	case l.stopped:
		return errors.New("bus listener stopped")
	}
	return nil
}

func (l *Listener) accept(ctx context.Context, conn net.Conn) {
	ip := remoteIP(conn)
	if l.limits != nil {
		if ok, reason := l.limits.Acquire(ip); !ok {
			metrics.ConnectionsRejected.WithLabelValues(string(reason)).Inc()
			slog.Warn("Connection rejected", "remote_ip", ip, "reason", reason)
			_ = conn.Close()
			return
		}
	}

	cursor := l.bus.Subscribe()
	handler := NewHandler(cursor, conn, l.clock)

	connCtx := logging.WithAttrs(ctx,
		slog.String("connection_id", uuid.NewString()),
		slog.String("remote_addr", conn.RemoteAddr().String()),
	)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.handle(connCtx, conn, handler, ip)
	}()
}

func (l *Listener) handle(ctx context.Context, conn net.Conn, handler *Handler, ip string) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// unblocks a pending write on shutdown
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

	go drain(conn, cancel)

	defer func() {
		stop()
		_ = conn.Close()
		if l.limits != nil {
			l.limits.Release(ip)
		}
		metrics.ConnectionsCurrent.WithLabelValues(transportTCP).Dec()
		slog.DebugContext(ctx, "Connection closed")
	}()

	metrics.ConnectionsTotal.WithLabelValues(transportTCP).Inc()
	metrics.ConnectionsCurrent.WithLabelValues(transportTCP).Inc()
	slog.DebugContext(ctx, "Connection accepted")

	_ = handler.Run(ctx)
}

// drain discards anything the client sends and cancels the connection once the peer
// hangs up, so idle dead clients release their slot without waiting for a write.
func drain(conn net.Conn, cancel context.CancelFunc) {
	defer cancel()
	_, _ = io.Copy(io.Discard, conn)
}

func remoteIP(conn net.Conn) string {
	addr := conn.RemoteAddr().String()
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func nextBackoff(current time.Duration) time.Duration {
	if current == 0 {
		return minAcceptBackoff
	}
	return min(current*2, maxAcceptBackoff)
}
