// Package clock provides the real-time tick driver: a component that owns
// nothing but a cadence and a callback, external to the executor's own
// logic (spec.md section 2, component 1).
package clock

import (
	"sync"
	"time"
)

// Callback is invoked once per tick. It has no return value; callers that
// need to stop on error do so from within the callback by calling
// Ticker.Stop.
type Callback func()

// Ticker periodically invokes a callback on its own goroutine, independent
// of any executor lock (spec.md section 5: "A separate clock thread emits
// tick events"). It owns only a cadence and a callback, matching the
// "~5%" budget spec.md section 2 assigns to the clock component.
type Ticker struct {
	period   time.Duration
	callback Callback

	mu      sync.Mutex
	timer   *time.Ticker
	stopCh  chan struct{}
	running bool
}

// New returns a Ticker that calls cb every period once Start is called.
func New(period time.Duration, cb Callback) *Ticker {
	return &Ticker{period: period, callback: cb}
}

// Start begins emitting ticks on a new goroutine. Calling Start on an
// already-running Ticker is a no-op.
func (t *Ticker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}
	t.timer = time.NewTicker(t.period)
	t.stopCh = make(chan struct{})
	t.running = true
	go t.run(t.timer, t.stopCh)
}

func (t *Ticker) run(timer *time.Ticker, stop chan struct{}) {
	for {
		select {
		case <-timer.C:
			t.callback()
		case <-stop:
			return
		}
	}
}

// Stop halts tick emission. It does not cancel a callback already in
// flight (spec.md section 5: "does not cancel an in-flight solve()").
// Calling Stop on a non-running Ticker is a no-op.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.timer.Stop()
	close(t.stopCh)
	t.running = false
}

// Running reports whether the ticker is currently emitting ticks.
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}
