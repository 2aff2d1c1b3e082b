package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// ErrExhausted is returned when every attempt failed with a retryable error.
// The last attempt's error is wrapped alongside it.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy bounds a retry loop. Delays grow as BaseDelay * 2^(attempt-1),
// capped at MaxDelay, with ±25% jitter applied at sleep time.
type Policy struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// DefaultPolicy returns the policy used for conditional store writes.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   50 * time.Millisecond,
		MaxDelay:    2 * time.Second,
	}
}

// Attempts returns the effective attempt ceiling (at least one).
func (p Policy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Backoff returns the un-jittered delay to wait before the given attempt.
// Attempt 0 is the initial call and never waits.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt <= 0 || p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Jitter spreads d over [0.75d, 1.25d) using r in [0, 1).
func Jitter(d time.Duration, r float64) time.Duration {
	if d <= 0 {
		return 0
	}
	if r < 0 {
		r = 0
	}
	if r >= 1 {
		r = 0.999999
	}
	return time.Duration(float64(d) * (0.75 + r*0.5))
}

type runner struct {
	sleep func(context.Context, time.Duration) error
	rand  func() float64
}

// Option customises Do. Tests use it to avoid real sleeps.
type Option func(*runner)

// WithSleep replaces the context-aware sleep used between attempts.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(r *runner) {
		if fn != nil {
			r.sleep = fn
		}
	}
}

// WithRand replaces the jitter source.
func WithRand(fn func() float64) Option {
	return func(r *runner) {
		if fn != nil {
			r.rand = fn
		}
	}
}

// Do calls fn until it succeeds, returns a non-retryable error, the context
// is cancelled, or the policy's attempts are used up. fn receives the
// zero-based attempt index.
func Do(ctx context.Context, p Policy, retryable func(error) bool, fn func(attempt int) error, opts ...Option) error {
	r := runner{sleep: sleepContext, rand: rand.Float64}
	for _, opt := range opts {
		opt(&r)
	}

	var lastErr error
	attempts := p.Attempts()
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := r.sleep(ctx, Jitter(p.Backoff(attempt), r.rand())); err != nil {
				return err
			}
		}

		err := fn(attempt)
		if err == nil {
			return nil
		}
		if retryable == nil || !retryable(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
