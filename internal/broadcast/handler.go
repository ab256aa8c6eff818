package broadcast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/streambus/internal/bus"
	"github.com/pscheid92/streambus/internal/metrics"
)

var (
	// ErrEncode wraps a message that could not be serialized.
	ErrEncode = errors.New("encode message")
	// ErrWrite wraps a failed write to the client.
	ErrWrite = errors.New("write message")
)

type state int

const (
	stateReceiving state = iota
	stateSerializing
	stateSending
)

// Handler moves messages from one cursor to one client, one line at a time.
type Handler struct {
	cursor *bus.Cursor
	w      io.Writer
	clock  clockwork.Clock
	encode func(bus.Message) ([]byte, error)
}

// NewHandler takes ownership of cursor; it is closed when Run returns.
// Every write to w carries exactly one newline-terminated message.
func NewHandler(cursor *bus.Cursor, w io.Writer, clock clockwork.Clock) *Handler {
	return &Handler{
		cursor: cursor,
		w:      w,
		clock:  clock,
		encode: bus.Encode,
	}
}

// Run loops until the bus closes, ctx is cancelled or the connection fails.
// Closing and cancellation end the loop cleanly with nil. A lagging cursor returns an error
// matching bus.ErrLagged; encode and write failures return ErrEncode and ErrWrite.
func (h *Handler) Run(ctx context.Context) error {
	defer h.cursor.Close()

	var (
		st   = stateReceiving
		msg  bus.Message
		line []byte
	)

	for {
		switch st {
		case stateReceiving:
			m, err := h.cursor.Next(ctx)
			if err != nil {
				return h.receiveFailed(ctx, err)
			}
			msg, st = m, stateSerializing

		case stateSerializing:
			data, err := h.encode(msg)
			if err != nil {
				metrics.ConnectionTerminations.WithLabelValues("encode").Inc()
				slog.ErrorContext(ctx, "Failed to encode bus message", "type", msg.Type(), "error", err)
				return fmt.Errorf("%w: %w", ErrEncode, err)
			}
			line, st = append(data, '\n'), stateSending

		case stateSending:
			if err := h.send(line); err != nil {
				if ctx.Err() != nil {
					metrics.ConnectionTerminations.WithLabelValues("cancelled").Inc()
					return nil
				}
				metrics.ConnectionTerminations.WithLabelValues("write").Inc()
				slog.InfoContext(ctx, "Client disconnected", "error", err)
				return fmt.Errorf("%w: %w", ErrWrite, err)
			}
			msg, line, st = nil, nil, stateReceiving
		}
	}
}

func (h *Handler) receiveFailed(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, bus.ErrClosed):
		metrics.ConnectionTerminations.WithLabelValues("closed").Inc()
		slog.DebugContext(ctx, "Bus closed, ending connection")
		return nil
	case errors.Is(err, bus.ErrLagged):
		metrics.ConnectionTerminations.WithLabelValues("lagged").Inc()
		slog.WarnContext(ctx, "Connection fell behind the bus, closing", "error", err)
		return fmt.Errorf("receive: %w", err)
	case ctx.Err() != nil:
		metrics.ConnectionTerminations.WithLabelValues("cancelled").Inc()
		return nil
	default:
		return fmt.Errorf("receive: %w", err)
	}
}

func (h *Handler) send(line []byte) error {
	start := h.clock.Now()
	n, err := h.w.Write(line)
	if err == nil && n < len(line) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return err
	}
	metrics.MessageWriteDuration.Observe(h.clock.Since(start).Seconds())
	return nil
}
