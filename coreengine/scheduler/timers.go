package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/blendmate/bridge/coreengine/observability"
)

// Stop is returned by a TimerFunc that does not want to run again.
const Stop time.Duration = -1

// TimerFunc runs on the host context and returns the delay until its next
// run, or Stop.
type TimerFunc func() time.Duration

// Host is the host's cooperative timer API. Callbacks registered here run
// only on the host's safe execution context.
type Host interface {
	Register(name string, fn TimerFunc, first time.Duration)
	Unregister(name string)
	IsRegistered(name string) bool
}

type timer struct {
	name string
	fn   TimerFunc
	due  time.Time
	seq  uint64
}

// Timers is an in-process Host. Whatever goroutine calls RunDue or Run
// becomes the safe execution context.
type Timers struct {
	timers map[string]*timer
	seq    uint64
	now    func() time.Time
	logger observability.Logger
	mu     sync.Mutex
}

// NewTimers creates an empty registry.
func NewTimers(logger observability.Logger) *Timers {
	return &Timers{
		timers: make(map[string]*timer),
		now:    time.Now,
		logger: observability.OrNop(logger),
	}
}

// SetClock replaces the time source. Intended for tests.
func (t *Timers) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// Register schedules fn to run after first. Registering an existing name
// replaces it.
func (t *Timers) Register(name string, fn TimerFunc, first time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if first < 0 {
		first = 0
	}
	t.seq++
	t.timers[name] = &timer{name: name, fn: fn, due: t.now().Add(first), seq: t.seq}
}

// Unregister removes a timer. Unknown names are ignored.
func (t *Timers) Unregister(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.timers, name)
}

// IsRegistered reports whether name is scheduled.
func (t *Timers) IsRegistered(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.timers[name]
	return ok
}

// RunDue runs every timer whose due time has passed, in due order, and
// returns how many ran. A panicking callback is logged and unregistered.
func (t *Timers) RunDue() int {
	t.mu.Lock()
	now := t.now()
	due := make([]*timer, 0, len(t.timers))
	for _, tm := range t.timers {
		if !tm.due.After(now) {
			due = append(due, tm)
		}
	}
	t.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].due.Equal(due[j].due) {
			return due[i].seq < due[j].seq
		}
		return due[i].due.Before(due[j].due)
	})

	for _, tm := range due {
		next := t.invoke(tm)

		t.mu.Lock()
		// The callback may have unregistered or replaced itself.
		if current, ok := t.timers[tm.name]; ok && current == tm {
			if next < 0 {
				delete(t.timers, tm.name)
			} else {
				tm.due = t.now().Add(next)
			}
		}
		t.mu.Unlock()
	}
	return len(due)
}

func (t *Timers) invoke(tm *timer) (next time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("timer_panic_recovered", "timer", tm.name, "panic", r)
			next = Stop
		}
	}()
	return tm.fn()
}

// Run pumps RunDue every resolution until ctx is done. The calling
// goroutine is the safe execution context for the duration.
func (t *Timers) Run(ctx context.Context, resolution time.Duration) {
	if resolution <= 0 {
		resolution = 10 * time.Millisecond
	}
	ticker := time.NewTicker(resolution)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.RunDue()
		}
	}
}

var _ Host = (*Timers)(nil)
