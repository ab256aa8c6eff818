package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/streambus/internal/platform/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastPolicy = retry.Policy{
	MaxAttempts:    3,
	InitialBackoff: time.Millisecond,
}

func TestDo_SuccessFirstAttempt(t *testing.T) {
	calls := 0
	err := retry.DoVoid(context.Background(), fastPolicy, retry.Transient, func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	calls := 0
	val, err := retry.Do(context.Background(), fastPolicy, retry.Transient, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("connection refused")
		}
		return "PONG", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "PONG", val)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	permanent := errors.New("invalid url")
	calls := 0
	err := retry.DoVoid(context.Background(), fastPolicy, alwaysStop, func(context.Context) error {
		calls++
		return permanent
	})

	var permErr *retry.PermanentError
	require.ErrorAs(t, err, &permErr)
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustedRetries(t *testing.T) {
	underlying := errors.New("transient")
	calls := 0
	err := retry.DoVoid(context.Background(), fastPolicy, retry.Transient, func(context.Context) error {
		calls++
		return underlying
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, underlying)
	assert.Equal(t, fastPolicy.MaxAttempts, calls)
}

func TestDo_BackoffDoublesUpToMax(t *testing.T) {
	var observed []time.Duration
	p := retry.Policy{
		MaxAttempts:    5,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     3 * time.Millisecond,
		OnRetry: func(_ int, _ error, backoff time.Duration) {
			observed = append(observed, backoff)
		},
	}

	_ = retry.DoVoid(context.Background(), p, retry.Transient, func(context.Context) error {
		return errors.New("fail")
	})

	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond, 3 * time.Millisecond}, observed)
}

func TestDo_UnlimitedAttemptsUsesClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := retry.Policy{InitialBackoff: time.Minute, Clock: clock}

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- retry.DoVoid(context.Background(), p, retry.Transient, func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("not yet")
			}
			return nil
		})
	}()

	for range 2 {
		require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
		clock.Advance(2 * time.Minute)
	}

	select {
	case err := <-done:
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	case <-time.After(2 * time.Second):
		t.Fatal("retry did not finish after advancing the clock")
	}
}

func TestDo_ContextCancellationDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	p := retry.Policy{MaxAttempts: 3, InitialBackoff: 10 * time.Second}

	calls := 0
	err := retry.DoVoid(ctx, p, retry.Transient, func(context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_OnRetryCallback(t *testing.T) {
	var recorded []int
	p := fastPolicy
	p.OnRetry = func(attempt int, _ error, _ time.Duration) {
		recorded = append(recorded, attempt)
	}

	_ = retry.DoVoid(context.Background(), p, retry.Transient, func(context.Context) error {
		return errors.New("fail")
	})

	// no callback for the exhausting attempt
	assert.Equal(t, []int{1, 2}, recorded)
}

func alwaysStop(error) retry.Action { return retry.Stop }
