package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/pscheid92/streambus/internal/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRelay struct {
	mu        sync.Mutex
	published []bus.Message
	err       error
}

func (m *mockRelay) Publish(_ context.Context, msg bus.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, msg)
	return m.err
}

func TestService_PublishSendsLocally(t *testing.T) {
	b := bus.New(16)
	c := b.Subscribe()
	svc := NewService(b, nil)

	svc.Publish(context.Background(), bus.SongProgress{Elapsed: 1, Duration: 2})

	msg, ok, err := c.TryNext()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, bus.SongProgress{Elapsed: 1, Duration: 2}, msg)
	assert.Equal(t, bus.SongProgress{Elapsed: 1, Duration: 2}, svc.Latest()[bus.TypeSongProgress])
}

func TestService_PublishRelays(t *testing.T) {
	relay := &mockRelay{}
	svc := NewService(bus.New(16), relay)

	svc.Publish(context.Background(), bus.Firework{})

	assert.Equal(t, []bus.Message{bus.Firework{}}, relay.published)
}

func TestService_RelayFailureKeepsLocalSend(t *testing.T) {
	b := bus.New(16)
	c := b.Subscribe()
	svc := NewService(b, &mockRelay{err: errors.New("circuit breaker open")})

	svc.Publish(context.Background(), bus.Ping{})

	msg, ok, err := c.TryNext()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, bus.Ping{}, msg)
}
