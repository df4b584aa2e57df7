package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var errRateLimited = errors.New("429 RESOURCE_EXHAUSTED")

func isRateLimited(err error) bool {
	return errors.Is(err, errRateLimited)
}

// testPolicy returns a policy that records waits instead of sleeping.
func testPolicy(maxAttempts int, waits *[]time.Duration) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   5 * time.Second,
		MaxDelay:    120 * time.Second,
		MaxJitter:   2 * time.Second,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Sleep: func(_ context.Context, d time.Duration) error {
			*waits = append(*waits, d)
			return nil
		},
		Rand: func() float64 { return 0 },
	}
}

func TestExecute_SucceedsFirstTry(t *testing.T) {
	var waits []time.Duration
	calls := 0

	got, err := Execute(context.Background(), testPolicy(3, &waits), func(context.Context) (string, error) {
		calls++
		return "ok", nil
	}, isRateLimited)

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, calls)
	assert.Empty(t, waits)
}

func TestExecute_TransientThenSuccess(t *testing.T) {
	for k := 1; k < 5; k++ {
		var waits []time.Duration
		calls := 0

		got, err := Execute(context.Background(), testPolicy(5, &waits), func(context.Context) (int, error) {
			calls++
			if calls <= k {
				return 0, errRateLimited
			}
			return 42, nil
		}, isRateLimited)

		require.NoError(t, err, "k=%d", k)
		assert.Equal(t, 42, got)
		assert.Equal(t, k+1, calls, "k=%d", k)
		assert.Len(t, waits, k)
	}
}

func TestExecute_NonTransientPropagatesImmediately(t *testing.T) {
	var waits []time.Duration
	calls := 0
	permanent := errors.New("invalid argument")

	_, err := Execute(context.Background(), testPolicy(8, &waits), func(context.Context) (struct{}, error) {
		calls++
		return struct{}{}, permanent
	}, isRateLimited)

	assert.Same(t, permanent, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, waits)
}

func TestExecute_Exhausted(t *testing.T) {
	var waits []time.Duration
	calls := 0

	_, err := Execute(context.Background(), testPolicy(3, &waits), func(context.Context) ([]byte, error) {
		calls++
		return nil, errRateLimited
	}, isRateLimited)

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, errRateLimited)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)

	// No wait after the final attempt.
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, waits)
}

func TestExecute_NilClassifierNeverRetries(t *testing.T) {
	var waits []time.Duration
	calls := 0

	_, err := Execute(context.Background(), testPolicy(4, &waits), func(context.Context) (int, error) {
		calls++
		return 0, errRateLimited
	}, nil)

	assert.ErrorIs(t, err, errRateLimited)
	assert.NotErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 1, calls)
}

func TestExecute_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Hour,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	calls := 0
	_, err := Execute(ctx, p, func(context.Context) (int, error) {
		calls++
		return 0, errRateLimited
	}, isRateLimited)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestExecute_StatelessAcrossCalls(t *testing.T) {
	var waits []time.Duration
	p := testPolicy(2, &waits)

	for i := 0; i < 2; i++ {
		calls := 0
		_, err := Execute(context.Background(), p, func(context.Context) (int, error) {
			calls++
			if calls == 1 {
				return 0, errRateLimited
			}
			return 1, nil
		}, isRateLimited)
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	}
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, waits)
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 8, p.MaxAttempts)
	assert.Equal(t, 5*time.Second, p.BaseDelay)
	assert.Equal(t, 120*time.Second, p.MaxDelay)
	assert.Equal(t, 2*time.Second, p.MaxJitter)
}

func TestPolicy_WithMaxAttempts(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 3, p.WithMaxAttempts(3).MaxAttempts)
	assert.Equal(t, 8, p.WithMaxAttempts(0).MaxAttempts)
	assert.Equal(t, 8, p.MaxAttempts)
}

func TestPolicy_Delay(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		attempt int
		jitter  time.Duration
		want    time.Duration
	}{
		{0, 0, 5 * time.Second},
		{1, 0, 10 * time.Second},
		{2, time.Second, 21 * time.Second},
		{4, 0, 80 * time.Second},
		{5, 0, 120 * time.Second},
		{60, 0, 120 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Delay(tt.attempt, tt.jitter), "attempt %d", tt.attempt)
	}
}

func TestPolicy_DelayNeverExceedsMax(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := Policy{
			BaseDelay: time.Duration(rapid.Int64Range(1, int64(time.Minute)).Draw(t, "base")),
			MaxDelay:  time.Duration(rapid.Int64Range(1, int64(10*time.Minute)).Draw(t, "max")),
		}
		attempt := rapid.IntRange(0, 200).Draw(t, "attempt")
		jitter := time.Duration(rapid.Int64Range(0, int64(2*time.Second)).Draw(t, "jitter"))

		if d := p.Delay(attempt, jitter); d > p.MaxDelay {
			t.Fatalf("delay %v exceeds max %v", d, p.MaxDelay)
		}
	})
}

func TestPolicy_DelayNonDecreasingWithoutJitter(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := Policy{
			BaseDelay: time.Duration(rapid.Int64Range(1, int64(time.Minute)).Draw(t, "base")),
			MaxDelay:  time.Duration(rapid.Int64Range(1, int64(10*time.Minute)).Draw(t, "max")),
		}
		attempt := rapid.IntRange(0, 100).Draw(t, "attempt")

		if p.Delay(attempt+1, 0) < p.Delay(attempt, 0) {
			t.Fatalf("delay decreased between attempts %d and %d", attempt, attempt+1)
		}
	})
}
