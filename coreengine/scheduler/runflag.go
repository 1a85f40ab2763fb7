package scheduler

import (
	"sync"
	"sync/atomic"
	"time"
)

// RunFlag is the single shared switch that keeps the transport loop and the
// host tick alive. Waiters wake as soon as it is cleared.
type RunFlag struct {
	set     atomic.Bool
	cleared chan struct{}
	mu      sync.Mutex
}

// NewRunFlag returns a cleared flag.
func NewRunFlag() *RunFlag {
	ch := make(chan struct{})
	close(ch)
	return &RunFlag{cleared: ch}
}

// Set raises the flag. Returns false if it was already set.
func (f *RunFlag) Set() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.set.Load() {
		return false
	}
	f.cleared = make(chan struct{})
	f.set.Store(true)
	return true
}

// Clear lowers the flag and wakes every waiter. Returns false if it was not set.
func (f *RunFlag) Clear() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.set.Load() {
		return false
	}
	f.set.Store(false)
	close(f.cleared)
	return true
}

// IsSet reports the current state without locking.
func (f *RunFlag) IsSet() bool {
	return f.set.Load()
}

// WaitCleared blocks until the flag is cleared or timeout elapses.
// Returns true if the flag was cleared.
func (f *RunFlag) WaitCleared(timeout time.Duration) bool {
	f.mu.Lock()
	ch := f.cleared
	f.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
		return true
	case <-timer.C:
		return !f.set.Load()
	}
}
