package testutil

import (
	"sync"
	"time"
)

// InstantTimer is a backoff.Timer that fires immediately and records every
// wait it was asked for. Retry tests use it to assert delays without
// sleeping.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type InstantTimer struct {
	mu    sync.Mutex
	waits []time.Duration
	c     chan time.Time
}

// NewInstantTimer creates a timer with no recorded waits.
func NewInstantTimer() *InstantTimer {
	return &InstantTimer{}
}

// Start records d and makes C ready.
func (t *InstantTimer) Start(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.waits = append(t.waits, d)
	t.c = make(chan time.Time, 1)
	t.c <- time.Now()
}

// Stop is a no-op.
func (t *InstantTimer) Stop() {}

// C returns the channel armed by the last Start.
func (t *InstantTimer) C() <-chan time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.c
}

// Waits returns a copy of the recorded waits in order.
func (t *InstantTimer) Waits() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Duration(nil), t.waits...)
}

// Reset clears the recorded waits.
func (t *InstantTimer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.waits = nil
}
