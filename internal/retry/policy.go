// Package retry implements the backoff policy wrapped around RPC operations.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Defaults for Policy.
const (
	DefaultMaxAttempts = 5
	DefaultMinWait     = 4 * time.Second
	DefaultMaxWait     = 20 * time.Second
	DefaultMultiplier  = 2.0
)

// Policy retries an operation with exponential backoff while Retryable
// accepts its error. When the last attempt fails retryably and Gate is set,
// Do blocks on Gate and then runs the operation one final time.
type Policy struct {
	MaxAttempts int
	MinWait     time.Duration
	MaxWait     time.Duration
	Multiplier  float64

	// Retryable decides whether an error is worth another attempt.
	// nil retries every error.
	Retryable func(error) bool

	// Gate blocks until the dependency is usable again, typically a health wait.
	Gate func(ctx context.Context) error

	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// Default returns the standard policy: 5 attempts, 4s growing to 20s.
func Default(retryable func(error) bool, gate func(ctx context.Context) error) Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		MinWait:     DefaultMinWait,
		MaxWait:     DefaultMaxWait,
		Multiplier:  DefaultMultiplier,
		Retryable:   retryable,
		Gate:        gate,
	}
}

// Do runs op until it succeeds, fails non-retryably, or attempts run out.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	wait := p.MinWait

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}

		if attempt >= maxAttempts {
			if p.Gate == nil {
				return fmt.Errorf("gave up after %d attempts: %w", attempt, err)
			}
			if gerr := p.Gate(ctx); gerr != nil {
				return fmt.Errorf("wait for recovery after %d attempts: %w", attempt, gerr)
			}
			if err := op(ctx); err != nil {
				return fmt.Errorf("final attempt after recovery: %w", err)
			}
			return nil
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, err)
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}

		wait = time.Duration(float64(wait) * mult)
		if p.MaxWait > 0 && wait > p.MaxWait {
			wait = p.MaxWait
		}
	}
}

// Backoff returns the waits Do would sleep between attempts.
func (p Policy) Backoff() []time.Duration {
	var waits []time.Duration
	wait := p.MinWait
	for i := 1; i < p.MaxAttempts; i++ {
		waits = append(waits, wait)
		wait = time.Duration(float64(wait) * p.Multiplier)
		if p.MaxWait > 0 && wait > p.MaxWait {
			wait = p.MaxWait
		}
	}
	return waits
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
