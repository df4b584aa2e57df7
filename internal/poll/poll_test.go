package poll

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOp struct {
	remaining int
	payload   string
}

func isDone(op fakeOp) bool { return op.remaining == 0 }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestUntil_ReturnsTerminalHandle(t *testing.T) {
	refetches := 0
	p := Poller{Interval: 15 * time.Second, MaxPolls: 10, Logger: quietLogger(), Sleep: noSleep}

	got, err := Until(context.Background(), p, fakeOp{remaining: 3}, isDone,
		func(_ context.Context, op fakeOp) (fakeOp, error) {
			refetches++
			op.remaining--
			if op.remaining == 0 {
				op.payload = "video"
			}
			return op, nil
		})

	require.NoError(t, err)
	assert.Equal(t, 3, refetches)
	assert.Equal(t, "video", got.payload)
}

func TestUntil_AlreadyDoneDoesNotPoll(t *testing.T) {
	p := Poller{Interval: time.Hour, Logger: quietLogger()}

	got, err := Until(context.Background(), p, fakeOp{payload: "x"}, isDone,
		func(context.Context, fakeOp) (fakeOp, error) {
			t.Fatal("refetch must not be called")
			return fakeOp{}, nil
		})

	require.NoError(t, err)
	assert.Equal(t, "x", got.payload)
}

func TestUntil_WaitsIntervalBetweenPolls(t *testing.T) {
	var waits []time.Duration
	p := Poller{
		Interval: 15 * time.Second,
		Logger:   quietLogger(),
		Sleep: func(_ context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		},
	}

	_, err := Until(context.Background(), p, fakeOp{remaining: 2}, isDone,
		func(_ context.Context, op fakeOp) (fakeOp, error) {
			op.remaining--
			return op, nil
		})

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{15 * time.Second, 15 * time.Second}, waits)
}

func TestUntil_MaxPollsExceeded(t *testing.T) {
	refetches := 0
	p := Poller{Interval: time.Second, MaxPolls: 4, Logger: quietLogger(), Sleep: noSleep}

	_, err := Until(context.Background(), p, fakeOp{remaining: 100}, isDone,
		func(_ context.Context, op fakeOp) (fakeOp, error) {
			refetches++
			return op, nil
		})

	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 4, refetches)
}

func TestUntil_DeadlineExceeded(t *testing.T) {
	p := Poller{Interval: 5 * time.Millisecond, Timeout: 30 * time.Millisecond, Logger: quietLogger()}

	_, err := Until(context.Background(), p, fakeOp{remaining: 1 << 30}, isDone,
		func(_ context.Context, op fakeOp) (fakeOp, error) {
			return op, nil
		})

	assert.ErrorIs(t, err, ErrTimeout)
}

func TestUntil_CallerCancellationIsNotTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := Poller{Interval: time.Hour, Timeout: time.Hour, Logger: quietLogger()}

	_, err := Until(ctx, p, fakeOp{remaining: 1}, isDone,
		func(_ context.Context, op fakeOp) (fakeOp, error) {
			return op, nil
		})

	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestUntil_RefetchErrorPropagates(t *testing.T) {
	boom := errors.New("status fetch failed")
	p := Poller{Interval: time.Second, MaxPolls: 5, Logger: quietLogger(), Sleep: noSleep}

	_, err := Until(context.Background(), p, fakeOp{remaining: 2}, isDone,
		func(context.Context, fakeOp) (fakeOp, error) {
			return fakeOp{}, boom
		})

	assert.Same(t, boom, err)
}

func TestDefaultPoller(t *testing.T) {
	p := DefaultPoller()
	assert.Equal(t, 15*time.Second, p.Interval)
	assert.Equal(t, 20*time.Minute, p.Timeout)
}
