package clock

import (
	"context"
	"time"
)

// Sleeper suspends the caller for a duration or until ctx is done
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Real sleeps on the wall clock
type Real struct{}

// Sleep returns nil after d, or ctx.Err() if the context ends first.
func (Real) Sleep(ctx context.Context, d time.Duration) error {
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

// Millis converts a script millisecond count to a Duration
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
