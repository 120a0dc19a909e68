package formfill

import (
	"context"
	"time"
)

// Waiter blocks until the target window is ready for input.
type Waiter interface {
	Wait(ctx context.Context) error
}

// FixedDelay waits a constant duration.
type FixedDelay time.Duration

func (d FixedDelay) Wait(ctx context.Context) error { return Sleep(ctx, time.Duration(d)) }

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
