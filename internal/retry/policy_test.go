package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errExhausted = errors.New("exhausted")

func isExhausted(err error) bool { return errors.Is(err, errExhausted) }

func fastPolicy(gate func(context.Context) error) Policy {
	return Policy{
		MaxAttempts: 5,
		MinWait:     time.Millisecond,
		MaxWait:     4 * time.Millisecond,
		Multiplier:  2,
		Retryable:   isExhausted,
		Gate:        gate,
	}
}

func TestPolicy_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := fastPolicy(nil).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errExhausted
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPolicy_NonRetryableReturnsImmediately(t *testing.T) {
	boom := errors.New("decode failed")
	calls := 0
	err := fastPolicy(nil).Do(context.Background(), func(context.Context) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestPolicy_GateThenFinalAttempt(t *testing.T) {
	calls, gated := 0, 0
	p := fastPolicy(func(context.Context) error {
		gated++
		return nil
	})

	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if gated == 0 {
			return errExhausted
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 6, calls, "five attempts plus one after the gate")
	assert.Equal(t, 1, gated)
}

func TestPolicy_FailureAfterGateSurfaces(t *testing.T) {
	calls := 0
	p := fastPolicy(func(context.Context) error { return nil })

	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return errExhausted
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errExhausted)
	assert.Equal(t, 6, calls)
}

func TestPolicy_WithoutGateGivesUp(t *testing.T) {
	calls := 0
	err := fastPolicy(nil).Do(context.Background(), func(context.Context) error {
		calls++
		return errExhausted
	})
	assert.ErrorIs(t, err, errExhausted)
	assert.Equal(t, 5, calls)
}

func TestPolicy_ContextCancelledDuringBackoff(t *testing.T) {
	p := fastPolicy(nil)
	p.MinWait = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Do(ctx, func(context.Context) error { return errExhausted })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPolicy_DefaultBackoffSchedule(t *testing.T) {
	p := Default(isExhausted, nil)
	assert.Equal(t, []time.Duration{
		4 * time.Second, 8 * time.Second, 16 * time.Second, 20 * time.Second,
	}, p.Backoff())
}

func TestPolicy_OnRetryObservesWaits(t *testing.T) {
	var waits []time.Duration
	p := fastPolicy(nil)
	p.OnRetry = func(_ int, wait time.Duration, _ error) { waits = append(waits, wait) }

	_ = p.Do(context.Background(), func(context.Context) error { return errExhausted })
	assert.Equal(t, []time.Duration{
		time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond, 4 * time.Millisecond,
	}, waits)
}
