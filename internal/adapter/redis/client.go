package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/streambus/internal/platform/retry"
	"github.com/redis/go-redis/v9"
)

var connectPolicy = retry.Policy{
	MaxAttempts:    5,
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     5 * time.Second,
}

// Client wraps a go-redis client guarded by a circuit breaker.
type Client struct {
	rdb *redis.Client
}

// NewClient parses redisURL (e.g. "redis://localhost:6379") and waits until the server answers a PING.
func NewClient(ctx context.Context, redisURL string, clock clockwork.Clock) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := redis.NewClient(opts)
	rdb.AddHook(&MetricsHook{})
	rdb.AddHook(NewCircuitBreakerHook())

	policy := connectPolicy
	policy.Clock = clock
	policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Redis not reachable, retrying", "attempt", attempt, "error", err, "backoff", backoff)
	}

	if err := retry.DoVoid(ctx, policy, retry.Transient, func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Ping verifies the Redis connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
