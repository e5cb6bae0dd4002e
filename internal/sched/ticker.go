// Package sched decouples book-mutation frequency from consumption
// frequency: consumers read the live book at tick time instead of on every
// network message.
package sched

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is the standard analytics/render cadence.
const DefaultInterval = 500 * time.Millisecond

// Ticker fires registered callbacks on a fixed interval and maintains a
// monotonically increasing tick counter. The counter is a cheap dependency
// signal: reactive consumers re-read the book only when it changes, no
// book diffing required. The ticker does not guarantee the book is
// quiescent at tick time; consumers read whatever state is current.
type Ticker struct {
	interval time.Duration
	count    atomic.Int64

	mu   sync.Mutex
	subs []func()

	stopOnce sync.Once
	stop     chan struct{}
}

// New creates a stopped ticker with the given interval. A non-positive
// interval falls back to DefaultInterval.
func New(interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Ticker{
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// OnTick registers a callback invoked on every tick. Callbacks run
// sequentially on the ticker goroutine; a slow callback delays the next
// tick rather than stacking concurrent passes.
func (t *Ticker) OnTick(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subs = append(t.subs, fn)
}

// Count returns the number of ticks fired so far.
func (t *Ticker) Count() int64 { return t.count.Load() }

// Run fires ticks until the context is cancelled or Stop is called. It
// blocks and is intended to run on its own goroutine.
func (t *Ticker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case <-ticker.C:
			t.count.Add(1)
			t.mu.Lock()
			subs := make([]func(), len(t.subs))
			copy(subs, t.subs)
			t.mu.Unlock()
			for _, fn := range subs {
				fn()
			}
		}
	}
}

// Stop halts the ticker. Safe to call multiple times and concurrently
// with Run.
func (t *Ticker) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}
