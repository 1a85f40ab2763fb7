// Package throttle coalesces bursts of host change notifications.
//
// Features:
//   - One bucket per event kind, created on first occurrence
//   - Last-write-wins for scalar payload fields
//   - Set-union for designated array fields such as changed_object_ids
//   - Reasons unioned across the burst
//   - Batch metadata (batch_id, batch_size) when more than one occurrence merged
//   - Window clamped to 10ms..1s, re-arm delay floored at 10ms
//   - Thread-safe implementation
package throttle

import (
	"math"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blendmate/bridge/coreengine/observability"
)

const (
	// MinInterval is the shortest allowed window.
	MinInterval = 10 * time.Millisecond
	// MaxInterval is the longest allowed window.
	MaxInterval = time.Second
	// DefaultInterval is used when no window is configured.
	DefaultInterval = 100 * time.Millisecond
	// MinRearm is the floor for the next tick delay.
	MinRearm = 10 * time.Millisecond
)

// DefaultSetFields are the payload arrays merged by union.
var DefaultSetFields = []string{"changed_object_ids", "geometry_changed_ids", "selected_ids"}

// =============================================================================
// Config & Event
// =============================================================================

// Config defines throttle behavior.
type Config struct {
	Interval  time.Duration `json:"interval"`
	SetFields []string      `json:"set_fields"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Interval:  DefaultInterval,
		SetFields: append([]string(nil), DefaultSetFields...),
	}
}

// Event is one coalesced notification ready to send.
type Event struct {
	Kind    string
	Payload map[string]any
	Count   int
}

// ClampInterval bounds d to [MinInterval, MaxInterval]. Zero or negative
// selects DefaultInterval.
func ClampInterval(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultInterval
	}
	if d < MinInterval {
		return MinInterval
	}
	if d > MaxInterval {
		return MaxInterval
	}
	return d
}

// =============================================================================
// Bucket
// =============================================================================

// orderedSet keeps first-seen order for deterministic output.
type orderedSet struct {
	items []any
	seen  map[any]struct{}
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[any]struct{})}
}

// addAll appends unseen values. Numbers compare by value, so 1 and 1.0 are
// one member. Unhashable values are always kept.
func (s *orderedSet) addAll(values []any) {
	for _, v := range values {
		key, ok := setKey(v)
		if !ok {
			s.items = append(s.items, v)
			continue
		}
		if _, dup := s.seen[key]; dup {
			continue
		}
		s.seen[key] = struct{}{}
		s.items = append(s.items, v)
	}
}

// bucket accumulates every occurrence of one kind since the last flush.
type bucket struct {
	kind      string
	latest    map[string]any
	firstSeen time.Time
	sets      map[string]*orderedSet
	count     int
	reasons   map[string]struct{}
}

func (b *bucket) age(now time.Time) time.Duration {
	return now.Sub(b.firstSeen)
}

// =============================================================================
// Engine
// =============================================================================

// Engine holds pending buckets and decides when they flush.
type Engine struct {
	interval  time.Duration
	setFields map[string]struct{}
	buckets   map[string]*bucket
	order     []string
	armed     bool
	now       func() time.Time
	newID     func() string
	mu        sync.Mutex
}

// New creates an Engine. A nil config uses DefaultConfig.
func New(cfg *Config) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	fields := make(map[string]struct{}, len(cfg.SetFields))
	for _, f := range cfg.SetFields {
		fields[f] = struct{}{}
	}
	return &Engine{
		interval:  ClampInterval(cfg.Interval),
		setFields: fields,
		buckets:   make(map[string]*bucket),
		now:       time.Now,
		newID:     func() string { return uuid.NewString()[:8] },
	}
}

// SetClock replaces the time source. Intended for tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

// Interval returns the current window.
func (e *Engine) Interval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.interval
}

// SetInterval changes the window, clamped to the allowed range.
func (e *Engine) SetInterval(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.interval = ClampInterval(d)
}

// Pending returns the number of unflushed buckets.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.buckets)
}

// Submit records one occurrence of kind. It returns true when the caller
// must arm the flush timer; the engine then considers itself armed until a
// Tick reports there is nothing left.
func (e *Engine) Submit(kind string, payload map[string]any, reason string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.buckets[kind]
	if !ok {
		b = &bucket{
			kind:      kind,
			firstSeen: e.now(),
			sets:      make(map[string]*orderedSet),
			reasons:   make(map[string]struct{}),
		}
		e.buckets[kind] = b
		e.order = append(e.order, kind)
	}

	b.latest = copyPayload(payload)
	for field := range e.setFields {
		if values, ok := asList(payload[field]); ok {
			set, exists := b.sets[field]
			if !exists {
				set = newOrderedSet()
				b.sets[field] = set
			}
			set.addAll(values)
		}
	}
	b.count++
	if reason != "" {
		b.reasons[reason] = struct{}{}
	}

	observability.RecordThrottleOccurrence(kind)

	if e.armed {
		return false
	}
	e.armed = true
	return true
}

// Tick flushes every bucket whose age reached the window. It returns the
// flushed events, the delay until the next tick, and false when nothing is
// pending, meaning the timer should stop.
func (e *Engine) Tick() ([]Event, time.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	var flushed []Event
	remaining := make([]string, 0, len(e.order))
	next := time.Duration(-1)

	for _, kind := range e.order {
		b := e.buckets[kind]
		age := b.age(now)
		if age >= e.interval {
			flushed = append(flushed, e.build(b))
			delete(e.buckets, kind)
			continue
		}
		remaining = append(remaining, kind)
		if wait := e.interval - age; next < 0 || wait < next {
			next = wait
		}
	}
	e.order = remaining

	if len(e.buckets) == 0 {
		e.armed = false
		return flushed, 0, false
	}
	if next < MinRearm {
		next = MinRearm
	}
	return flushed, next, true
}

// FlushAll drains every bucket regardless of age.
func (e *Engine) FlushAll() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	flushed := make([]Event, 0, len(e.order))
	for _, kind := range e.order {
		flushed = append(flushed, e.build(e.buckets[kind]))
		delete(e.buckets, kind)
	}
	e.order = nil
	e.armed = false
	return flushed
}

// build renders a bucket's payload. Caller holds the lock.
func (e *Engine) build(b *bucket) Event {
	payload := copyPayload(b.latest)
	for field, set := range b.sets {
		payload[field] = set.items
	}
	if len(b.reasons) > 0 {
		reasons := make([]string, 0, len(b.reasons))
		for r := range b.reasons {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)
		payload["reasons"] = reasons
	}
	if b.count > 1 {
		payload["batch_id"] = e.newID()
		payload["batch_size"] = b.count
	}

	observability.RecordThrottleFlush(b.kind)
	return Event{Kind: b.kind, Payload: payload, Count: b.count}
}

func copyPayload(p map[string]any) map[string]any {
	out := make(map[string]any, len(p)+3)
	for k, v := range p {
		out[k] = v
	}
	return out
}

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case nil, []byte:
		return nil, false
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// setKey returns the dedup key for v. Integral numbers of any type share
// an int64 key.
func setKey(v any) (any, bool) {
	switch n := v.(type) {
	case string, bool, nil:
		return v, true
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return uintKey(uint64(n)), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return uintKey(n), true
	case float32:
		return floatKey(float64(n)), true
	case float64:
		return floatKey(n), true
	}
	return nil, false
}

func uintKey(n uint64) any {
	if n <= math.MaxInt64 {
		return int64(n)
	}
	return n
}

func floatKey(f float64) any {
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return int64(f)
	}
	return f
}
