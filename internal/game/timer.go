package game

import (
	"context"
	"github.com/benbjohnson/clock"
	"sync"
	"time"
)

// Timer calls a function on every tick of its interval until the context is cancelled.
type Timer struct {
	clock    clock.Clock
	interval time.Duration
}

func NewTimer(c clock.Clock, interval time.Duration) Timer {
	return Timer{clock: c, interval: interval}
}

// Start creates the ticker right away and calls fn from a new goroutine on every tick until ctx is cancelled.
// Ticks that arrive while fn is still running are coalesced. wg tracks the goroutine.
func (t Timer) Start(ctx context.Context, wg *sync.WaitGroup, fn func(ctx context.Context)) {
	ticker := t.clock.Ticker(t.interval)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()
}

// remainingMs converts the time left to milliseconds, clamped at zero.
func remainingMs(deadline, now time.Time) int64 {
	return max(deadline.Sub(now), 0).Milliseconds()
}
