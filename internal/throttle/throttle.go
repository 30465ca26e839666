// Package throttle provides a pacing primitive that enforces a minimum
// interval between calls to a shared downstream resource.
package throttle

import (
	"sync"
	"time"
)

// Throttle limits grants to at most the configured rate. The zero value
// and any non-positive rate perform no pacing.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// New creates a throttle allowing at most rps grants per second.
func New(rps float64) *Throttle {
	t := &Throttle{}
	if rps > 0 {
		t.interval = time.Duration(float64(time.Second) / rps)
	}
	return t
}

// Acquire blocks until the caller may proceed. It never fails.
//
// The deficit wait and the grant stamp both happen inside one critical
// section: releasing the lock before stamping would let two callers read
// the same stale last-grant time and both proceed.
func (t *Throttle) Acquire() {
	if t.interval <= 0 {
		return
	}
	t.mu.Lock()
	if wait := t.interval - time.Since(t.last); wait > 0 {
		time.Sleep(wait)
	}
	t.last = time.Now()
	t.mu.Unlock()
}

// Interval returns the minimum spacing between grants.
func (t *Throttle) Interval() time.Duration {
	return t.interval
}
