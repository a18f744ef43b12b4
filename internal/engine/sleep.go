package engine

import (
	"context"
	"time"
)

// Sleeper suspends the run loop between marks.
//
// Sleep returns early with ctx.Err() when the context is cancelled. The
// engine treats an early return as benign and goes straight to its
// cancellation check.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper sleeps on a real timer.
type TimerSleeper struct{}

// Sleep waits for d or until ctx is done, whichever comes first.
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
