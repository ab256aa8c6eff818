package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pscheid92/streambus/internal/bus"
	"github.com/pscheid92/streambus/internal/metrics"
	goredis "github.com/redis/go-redis/v9"
)

// envelope is the payload published on the relay channel.
type envelope struct {
	Origin  string          `json:"origin"`
	Message json.RawMessage `json:"message"`
}

// Relay forwards messages between the local bus and the other instances subscribed to the same channel.
type Relay struct {
	rdb     *goredis.Client
	channel string
	origin  string
	bus     *bus.Bus
}

func NewRelay(client *Client, channel string, b *bus.Bus) *Relay {
	return &Relay{
		rdb:     client.rdb,
		channel: channel,
		origin:  uuid.NewString(),
		bus:     b,
	}
}

// Origin identifies this instance in published envelopes.
func (r *Relay) Origin() string {
	return r.origin
}

// Publish sends m to the other instances. The local bus is not touched.
func (r *Relay) Publish(ctx context.Context, m bus.Message) error {
	data, err := bus.Encode(m)
	if err != nil {
		return fmt.Errorf("failed to encode relay message: %w", err)
	}

	payload, err := json.Marshal(envelope{Origin: r.origin, Message: data})
	if err != nil {
		return fmt.Errorf("failed to marshal relay envelope: %w", err)
	}

	if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		metrics.RelayMessagesPublished.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to publish to %s: %w", r.channel, err)
	}
	metrics.RelayMessagesPublished.WithLabelValues("ok").Inc()
	return nil
}

// Run subscribes to the channel and sends every peer message on the local bus until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer func() { _ = sub.Close() }()

	// wait for the subscription confirmation so Publish calls after Run starts are seen
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}

	slog.Info("Relay subscribed", "channel", r.channel, "origin", r.origin)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			slog.Info("Relay stopped", "channel", r.channel)
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.forward(msg.Payload)
		}
	}
}

func (r *Relay) forward(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		metrics.RelayMessagesReceived.WithLabelValues("invalid").Inc()
		slog.Warn("Dropping malformed relay payload", "channel", r.channel, "error", err)
		return
	}

	if env.Origin == r.origin {
		metrics.RelayMessagesReceived.WithLabelValues("own").Inc()
		return
	}

	m, err := bus.Decode(env.Message)
	if err != nil {
		metrics.RelayMessagesReceived.WithLabelValues("invalid").Inc()
		slog.Warn("Dropping invalid relay message", "origin", env.Origin, "error", err)
		return
	}

	metrics.RelayMessagesReceived.WithLabelValues("forwarded").Inc()
	r.bus.Send(m)
}
