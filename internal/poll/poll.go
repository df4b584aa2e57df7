// Package poll drives long-running remote operations to a terminal state.
package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrTimeout is returned when the deadline or the poll cap is reached before
// the operation reports done.
var ErrTimeout = errors.New("poll: operation did not complete in time")

// Poller configures Until.
type Poller struct {
	// Interval is the wait between two status refetches.
	Interval time.Duration
	// Timeout bounds the total wait. Zero disables the deadline.
	Timeout time.Duration
	// MaxPolls caps the number of refetches. Zero disables the cap.
	MaxPolls int

	Logger *slog.Logger
	// Sleep waits for d or until ctx is done. Defaults to a timer wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPoller polls every 15 seconds for at most 20 minutes.
func DefaultPoller() Poller {
	return Poller{
		Interval: 15 * time.Second,
		Timeout:  20 * time.Minute,
	}
}

// Until refetches handle until done reports true and returns the terminal
// handle. Refetch errors are returned unchanged. At least one of Timeout or
// MaxPolls should be set, otherwise a stuck operation is polled forever.
func Until[H any](ctx context.Context, p Poller, handle H, done func(H) bool, refetch func(context.Context, H) (H, error)) (H, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	parent := ctx
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	// Distinguishes our own deadline from cancellation by the caller.
	timedOut := func(polls int) error {
		if parent.Err() == nil && ctx.Err() != nil {
			return fmt.Errorf("%w: gave up after %s (%d polls)", ErrTimeout, p.Timeout, polls)
		}
		return nil
	}

	polls := 0
	for !done(handle) {
		if p.MaxPolls > 0 && polls >= p.MaxPolls {
			return handle, fmt.Errorf("%w: still running after %d polls", ErrTimeout, polls)
		}

		if err := sleep(ctx, p.Interval); err != nil {
			if terr := timedOut(polls); terr != nil {
				return handle, terr
			}
			return handle, fmt.Errorf("poll: wait cancelled: %w", err)
		}

		polls++
		logger.Info("waiting for operation", slog.Int("poll", polls))

		next, err := refetch(ctx, handle)
		if err != nil {
			if terr := timedOut(polls); terr != nil {
				return handle, terr
			}
			return handle, err
		}
		handle = next
	}

	return handle, nil
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
