// Package retry provides an exponential-backoff controller for operations
// that fail with transient errors from rate-limited services.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"
)

// ErrExhausted is matched by every error returned after the attempt cap is reached.
var ErrExhausted = errors.New("retry: attempts exhausted")

// ExhaustedError is returned when every attempt failed with a transient error.
// It unwraps to both ErrExhausted and the last error observed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry: max attempts (%d) exceeded: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrExhausted, e.Err}
}

// Policy configures a single Execute call. A Policy is a plain value: each
// call keeps its own attempt counter, nothing is shared between calls.
type Policy struct {
	// MaxAttempts is the total number of invocations, including the first.
	MaxAttempts int
	// BaseDelay is multiplied by 2^attempt to compute the backoff.
	BaseDelay time.Duration
	// MaxDelay caps the computed delay, jitter included.
	MaxDelay time.Duration
	// MaxJitter bounds the uniform random delay added to every backoff.
	MaxJitter time.Duration

	Logger *slog.Logger
	// Sleep waits for d or until ctx is done. Defaults to a timer wait.
	Sleep func(ctx context.Context, d time.Duration) error
	// Rand returns a value in [0, 1). Defaults to math/rand/v2.
	Rand func() float64
}

// DefaultPolicy returns the policy used for generation calls:
// 8 attempts, 5s base delay, 120s cap, up to 2s of jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 8,
		BaseDelay:   5 * time.Second,
		MaxDelay:    120 * time.Second,
		MaxJitter:   2 * time.Second,
	}
}

// WithMaxAttempts returns a copy of p with the attempt cap replaced.
// Non-positive values leave p unchanged.
func (p Policy) WithMaxAttempts(n int) Policy {
	if n > 0 {
		p.MaxAttempts = n
	}
	return p
}

// Delay computes min(BaseDelay*2^attempt + jitter, MaxDelay).
// A zero MaxDelay leaves the delay uncapped.
func (p Policy) Delay(attempt int, jitter time.Duration) time.Duration {
	d := float64(p.BaseDelay)*math.Pow(2, float64(attempt)) + float64(jitter)
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	if p.Sleep == nil {
		p.Sleep = sleepContext
	}
	if p.Rand == nil {
		p.Rand = rand.Float64
	}
	return p
}

func (p Policy) jitter() time.Duration {
	if p.MaxJitter <= 0 {
		return 0
	}
	return time.Duration(p.Rand() * float64(p.MaxJitter))
}

// Execute invokes op until it succeeds, fails with an error isTransient
// rejects, or MaxAttempts invocations have failed transiently. Non-transient
// errors are returned unchanged and without delay. A nil isTransient treats
// every error as permanent.
func Execute[T any](ctx context.Context, p Policy, op func(context.Context) (T, error), isTransient func(error) bool) (T, error) {
	p = p.withDefaults()

	var zero T
	var lastErr error

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			if attempt > 0 {
				p.Logger.Info("retry succeeded", slog.Int("attempt", attempt+1))
			}
			return result, nil
		}

		if isTransient == nil || !isTransient(err) {
			return zero, err
		}
		lastErr = err

		if attempt == p.MaxAttempts-1 {
			break
		}

		delay := p.Delay(attempt, p.jitter())
		p.Logger.Warn("rate limited, backing off",
			slog.Int("retry", attempt+1),
			slog.Int("max_attempts", p.MaxAttempts),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)

		if err := p.Sleep(ctx, delay); err != nil {
			return zero, fmt.Errorf("retry: wait cancelled: %w", err)
		}
	}

	p.Logger.Error("max attempts exceeded",
		slog.Int("attempts", p.MaxAttempts),
		slog.String("error", lastErr.Error()),
	)
	return zero, &ExhaustedError{Attempts: p.MaxAttempts, Err: lastErr}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
