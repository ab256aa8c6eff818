package bus

import (
	"log/slog"
	"sync"

	"github.com/pscheid92/streambus/internal/metrics"
)

// DefaultCapacity is the number of messages the ring retains for slow cursors.
const DefaultCapacity = 1024

type entry struct {
	seq uint64
	msg Message
}

// Bus fans out messages to every cursor and caches the latest message per cache key.
// A Bus is safe for concurrent use. Create one per process and pass it to producers.
type Bus struct {
	mu      sync.Mutex
	ring    []entry
	head    uint64 // sequence number of the next append
	cache   map[string]Message
	cursors map[*Cursor]struct{}
	wake    chan struct{}
	closed  bool
}

// New creates a bus retaining up to capacity messages. A non-positive capacity selects DefaultCapacity.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{
		ring:    make([]entry, capacity),
		cache:   make(map[string]Message),
		cursors: make(map[*Cursor]struct{}),
		wake:    make(chan struct{}),
	}
}

// Capacity returns the ring size.
func (b *Bus) Capacity() int {
	return len(b.ring)
}

// Send publishes m. It never blocks and never fails: when the ring is full the oldest
// entry is overwritten, and cursors that had not read it will see a LagError.
func (b *Bus) Send(m Message) {
	if m == nil {
		slog.Debug("Ignoring nil bus message")
		return
	}

	// the bus owns its copy; callers may keep mutating theirs
	m = m.clone()

	b.mu.Lock()
	defer b.mu.Unlock()

	if key := m.CacheKey(); key != "" {
		b.cache[key] = m
	}

	if b.closed {
		return
	}

	capacity := uint64(len(b.ring))
	if b.head >= capacity {
		b.evict(b.head - capacity)
	}

	b.ring[b.head%capacity] = entry{seq: b.head, msg: m}
	b.head++
	metrics.BusMessagesSentTotal.WithLabelValues(m.Type()).Inc()

	close(b.wake)
	b.wake = make(chan struct{})
}

// evict accounts for overwriting seq. Must be called with mu held.
func (b *Bus) evict(seq uint64) {
	for c := range b.cursors {
		if c.next > seq {
			continue
		}
		metrics.BusOverflowTotal.Inc()
		if !c.overflowed {
			c.overflowed = true
			slog.Warn("Failed to deliver bus message: bus is full",
				"capacity", len(b.ring),
				"evicted_seq", seq,
				"cursor_seq", c.next,
			)
		}
	}
}

// Latest returns a deep copy of the most recent message for every cache key.
func (b *Bus) Latest() map[string]Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	snapshot := make(map[string]Message, len(b.cache))
	for key, m := range b.cache {
		snapshot[key] = m.clone()
	}
	return snapshot
}

// Subscribe returns a cursor positioned at the current tail; it sees only messages sent after this call.
// After Close the returned cursor is already exhausted.
func (b *Bus) Subscribe() *Cursor {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := &Cursor{bus: b, next: b.head}
	if b.closed {
		c.closed = true
		return c
	}

	b.cursors[c] = struct{}{}
	metrics.BusActiveCursors.Set(float64(len(b.cursors)))
	return c
}

// Subscribers returns the number of open cursors.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.cursors)
}

// Close tears the bus down. Every cursor returns ErrClosed from then on.
// Sends after Close still update the cache. Close is idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for c := range b.cursors {
		c.closed = true
	}
	clear(b.cursors)
	metrics.BusActiveCursors.Set(0)

	close(b.wake)
}

// oldest returns the sequence number of the oldest retained entry. Must be called with mu held.
func (b *Bus) oldest() uint64 {
	capacity := uint64(len(b.ring))
	if b.head <= capacity {
		return 0
	}
	return b.head - capacity
}
