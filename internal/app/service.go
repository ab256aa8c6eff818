package app

import (
	"context"
	"log/slog"

	"github.com/pscheid92/streambus/internal/bus"
)

// Relay shares messages with other instances.
type Relay interface {
	Publish(ctx context.Context, m bus.Message) error
}

// Service accepts messages from outside the process.
type Service struct {
	bus   *bus.Bus
	relay Relay
}

// NewService creates the service. relay may be nil when running as a single instance.
func NewService(b *bus.Bus, relay Relay) *Service {
	return &Service{bus: b, relay: relay}
}

// Publish sends m on the local bus and then to the relay. Relay delivery is best-effort:
// a failure is logged and does not undo the local send.
func (s *Service) Publish(ctx context.Context, m bus.Message) {
	s.bus.Send(m)

	if s.relay == nil {
		return
	}
	if err := s.relay.Publish(ctx, m); err != nil {
		slog.WarnContext(ctx, "Failed to relay message", "type", m.Type(), "error", err)
	}
}

// Latest returns the cached message for every cache key.
func (s *Service) Latest() map[string]bus.Message {
	return s.bus.Latest()
}
