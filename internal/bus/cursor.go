package bus

import (
	"context"
	"errors"
	"fmt"

	"github.com/pscheid92/streambus/internal/metrics"
)

var (
	// ErrClosed is returned by Cursor.Next once the bus or the cursor is closed.
	ErrClosed = errors.New("bus closed")
	// ErrLagged matches every *LagError.
	ErrLagged = errors.New("subscriber lagged behind")
)

// LagError reports that a cursor fell behind and unread messages were overwritten.
// The cursor has been moved to Next, the oldest message still retained.
type LagError struct {
	Missed uint64
	Next   uint64
}

func (e *LagError) Error() string {
	return fmt.Sprintf("subscriber lagged behind: missed %d messages", e.Missed)
}

func (e *LagError) Is(target error) bool {
	return target == ErrLagged
}

// Cursor is one subscriber's read position in the bus.
// A cursor is meant to be read by a single goroutine.
type Cursor struct {
	bus        *Bus
	next       uint64
	closed     bool
	overflowed bool
}

// Next blocks until the next message is available and returns it.
// It returns ErrClosed after Close, a *LagError if messages were overwritten before
// being read, or ctx.Err() if ctx is cancelled first.
func (c *Cursor) Next(ctx context.Context) (Message, error) {
	for {
		c.bus.mu.Lock()
		msg, ready, err := c.poll()
		wake := c.bus.wake
		c.bus.mu.Unlock()

		if ready {
			return msg, err
		}

		select {
		case <-wake:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// TryNext returns the next message without blocking. ok is false when nothing is pending.
func (c *Cursor) TryNext() (msg Message, ok bool, err error) {
	c.bus.mu.Lock()
	defer c.bus.mu.Unlock()

	msg, ok, err = c.poll()
	return msg, ok, err
}

// poll must be called with the bus lock held.
func (c *Cursor) poll() (Message, bool, error) {
	b := c.bus
	if c.closed || b.closed {
		return nil, true, ErrClosed
	}

	if oldest := b.oldest(); c.next < oldest {
		lag := &LagError{Missed: oldest - c.next, Next: oldest}
		c.next = oldest
		c.overflowed = false
		metrics.BusLaggedTotal.Inc()
		return nil, true, lag
	}

	if c.next < b.head {
		e := b.ring[c.next%uint64(len(b.ring))]
		c.next++
		return e.msg, true, nil
	}

	return nil, false, nil
}

// Close releases the cursor. Pending and future Next calls return ErrClosed.
func (c *Cursor) Close() {
	b := c.bus
	b.mu.Lock()
	defer b.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	if b.closed {
		return
	}
	delete(b.cursors, c)
	metrics.BusActiveCursors.Set(float64(len(b.cursors)))

	// wake a Next blocked on this cursor
	close(b.wake)
	b.wake = make(chan struct{})
}
