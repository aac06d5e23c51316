package director

import (
	"context"
	"time"
)

// waitCond polls cond once per interval until it holds, the timeout lapses
// or the context is cancelled. Cancellation unblocks immediately; it never
// waits out the remaining timeout. Returns whether cond was met.
func waitCond(ctx context.Context, timeout, interval time.Duration, cond func() bool) bool {
	if cond() {
		return true
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return cond()
		case <-tick.C:
			if cond() {
				return true
			}
		}
	}
}

// sleepCtx waits d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// sleepDetached waits d unconditionally; used after the match is already
// terminal, where nothing should cut the delay short.
func sleepDetached(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}
