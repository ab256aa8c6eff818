package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/streambus/internal/bus"
	"github.com/pscheid92/streambus/internal/metrics"
)

// Heartbeat sends a Ping on the bus every interval so clients can detect a dead stream.
type Heartbeat struct {
	bus      *bus.Bus
	interval time.Duration
	clock    clockwork.Clock
}

func NewHeartbeat(b *bus.Bus, interval time.Duration, clock clockwork.Clock) *Heartbeat {
	return &Heartbeat{bus: b, interval: interval, clock: clock}
}

// Run blocks until ctx is cancelled. A non-positive interval disables the heartbeat.
func (h *Heartbeat) Run(ctx context.Context) {
	if h.interval <= 0 {
		slog.Info("Heartbeat disabled")
		return
	}

	ticker := h.clock.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			h.bus.Send(bus.Ping{})
			metrics.HeartbeatsTotal.Inc()
		}
	}
}
