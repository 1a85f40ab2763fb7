// Package bridge owns one host ⇄ counterpart connection.
//
// The Bridge composes:
//   - transport.Manager (socket goroutine, reconnect loop)
//   - Outbound and inbound queues crossing the goroutine boundary
//   - throttle.Engine (coalesces noisy notifications)
//   - session.Session (protocol negotiation)
//   - commands.Registry (request dispatch)
//
// All of its state lives on the instance. An embedder constructs it once
// and drives it with Start and Stop; host change handlers call Notify.
//
// Usage:
//
//	timers := scheduler.NewTimers(logger)
//	b, err := bridge.New(cfg, host, bridge.WithTimers(timers), bridge.WithLogger(logger))
//	if err := b.Start(); err != nil { ... }
//	go timers.Run(ctx, 10*time.Millisecond) // the host context
//	b.Notify("depsgraph_update", payload, envelope.ReasonUser)
//	_ = b.Stop(ctx)
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blendmate/bridge/coreengine/commands"
	"github.com/blendmate/bridge/coreengine/config"
	"github.com/blendmate/bridge/coreengine/envelope"
	"github.com/blendmate/bridge/coreengine/observability"
	"github.com/blendmate/bridge/coreengine/scheduler"
	"github.com/blendmate/bridge/coreengine/session"
	"github.com/blendmate/bridge/coreengine/throttle"
	"github.com/blendmate/bridge/coreengine/transport"
)

// Timer names registered with the host.
const (
	TimerProcessQueues = "bridge.process_queues"
	TimerThrottleFlush = "bridge.throttle_flush"
	TimerHeartbeat     = "bridge.heartbeat"
)

// DefaultStopTimeout bounds the transport join when Stop's context has no deadline.
const DefaultStopTimeout = 2 * time.Second

// minStopTimeout is the shortest join Stop allows, even past the deadline.
const minStopTimeout = 50 * time.Millisecond

var (
	// ErrAlreadyStarted is returned by Start on a running bridge.
	ErrAlreadyStarted = errors.New("bridge: already started")
	// ErrStopTimeout is returned when the transport goroutine did not exit in time.
	ErrStopTimeout = errors.New("bridge: transport did not stop in time")
)

// StatusSource reports host state for heartbeats and the upgrade confirmation.
type StatusSource interface {
	ActiveObjectName() any
	Mode() string
	Filepath() string
}

// ConnectionListener is told about every socket open and close.
type ConnectionListener func(connected bool)

// =============================================================================
// OPTIONS
// =============================================================================

// Option customizes a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger.
func WithLogger(l observability.Logger) Option {
	return func(b *Bridge) { b.logger = observability.OrNop(l) }
}

// WithTimers sets the host timer API. Without it the bridge creates its own
// scheduler.Timers, reachable through Timers().
func WithTimers(t scheduler.Host) Option {
	return func(b *Bridge) { b.timers = t }
}

// WithMiddleware adds registry middleware after the built-in logging,
// metrics and tracing middleware.
func WithMiddleware(mw ...commands.Middleware) Option {
	return func(b *Bridge) { b.middleware = append(b.middleware, mw...) }
}

// WithPolicy overrides the operator policy.
func WithPolicy(p *commands.OperatorPolicy) Option {
	return func(b *Bridge) { b.policy = p }
}

// WithStatus sets the heartbeat source. Hosts that implement StatusSource
// are used automatically.
func WithStatus(s StatusSource) Option {
	return func(b *Bridge) { b.status = s }
}

// =============================================================================
// BRIDGE
// =============================================================================

// Bridge is one bridge instance.
type Bridge struct {
	cfg    *config.BridgeConfig
	logger observability.Logger

	// Subsystems
	flag      *scheduler.RunFlag
	outbound  *scheduler.Queue[queued]
	inbound   *scheduler.Queue[[]byte]
	throttle  *throttle.Engine
	throttled map[string]struct{}
	session   *session.Session
	registry  *commands.Registry
	transport *transport.Manager
	timers    scheduler.Host
	status    StatusSource

	middleware []commands.Middleware
	policy     *commands.OperatorPolicy

	listeners []ConnectionListener
	listenMu  sync.RWMutex

	// frameMu orders enqueues against upgrades and reconnects. epoch counts
	// socket opens.
	frameMu sync.Mutex
	epoch   atomic.Uint64

	// Lifecycle
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	mu      sync.Mutex
}

// New builds a bridge over host. cfg nil means defaults.
func New(cfg *config.BridgeConfig, host commands.Host, opts ...Option) (*Bridge, error) {
	if cfg == nil {
		cfg = config.DefaultBridgeConfig()
	}
	c := *cfg
	c.Normalize()

	b := &Bridge{
		cfg:       &c,
		logger:    observability.NopLogger,
		flag:      scheduler.NewRunFlag(),
		outbound:  scheduler.NewQueue[queued](),
		inbound:   scheduler.NewQueue[[]byte](),
		throttle:  throttle.New(c.ThrottleConfig()),
		throttled: make(map[string]struct{}, len(c.ThrottledKinds)),
	}
	for _, kind := range c.ThrottledKinds {
		b.throttled[kind] = struct{}{}
	}
	if s, ok := host.(StatusSource); ok {
		b.status = s
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.timers == nil {
		b.timers = scheduler.NewTimers(b.logger)
	}

	b.session = session.New(c.Identity(), []int{envelope.ProtocolVersion}, b.logger)
	if b.status != nil {
		b.session.SetFilepathSource(b.status.Filepath)
	}

	b.registry = commands.NewRegistry(b.logger)
	b.registry.Use(commands.NewLoggingMiddleware(b.logger))
	b.registry.Use(commands.NewMetricsMiddleware())
	b.registry.Use(commands.NewTracingMiddleware(nil))
	for _, mw := range b.middleware {
		b.registry.Use(mw)
	}
	if _, err := commands.RegisterBuiltins(b.registry, host, b.policy, b.logger); err != nil {
		return nil, fmt.Errorf("register builtins: %w", err)
	}

	b.transport = transport.New(c.TransportConfig(), b.flag, transport.Handlers{
		OnOpen:    b.onOpen,
		OnMessage: b.onMessage,
		OnClose:   b.onClose,
	}, b.logger)

	return b, nil
}

// Config returns the normalized configuration.
func (b *Bridge) Config() *config.BridgeConfig { return b.cfg }

// Registry exposes the command registry, e.g. to register extra actions.
func (b *Bridge) Registry() *commands.Registry { return b.registry }

// Session exposes the protocol state.
func (b *Bridge) Session() *session.Session { return b.session }

// Timers returns the host timer API the bridge schedules on.
func (b *Bridge) Timers() scheduler.Host { return b.timers }

// Transport exposes the transport manager.
func (b *Bridge) Transport() *transport.Manager { return b.transport }

// Connected reports whether the socket is open.
func (b *Bridge) Connected() bool { return b.transport.Connected() }

// Running reports whether Start has been called without a matching Stop.
func (b *Bridge) Running() bool { return b.flag.IsSet() }

// OnConnectionChange registers a listener. Listeners run on the transport
// goroutine and must not touch the host.
func (b *Bridge) OnConnectionChange(l ConnectionListener) {
	b.listenMu.Lock()
	defer b.listenMu.Unlock()
	b.listeners = append(b.listeners, l)
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Start spawns the transport goroutine and arms the host timers.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return ErrAlreadyStarted
	}

	b.flag.Set()
	b.outbound.Reopen()
	b.inbound.Reopen()
	b.ctx, b.cancel = context.WithCancel(context.Background())

	if err := b.transport.Start(); err != nil {
		b.flag.Clear()
		b.cancel()
		return fmt.Errorf("start transport: %w", err)
	}

	b.timers.Register(TimerProcessQueues, b.processQueues, b.cfg.TickInterval())
	if b.cfg.HeartbeatInterval() > 0 && b.status != nil {
		b.timers.Register(TimerHeartbeat, b.heartbeat, b.cfg.HeartbeatInterval())
	}
	if b.throttle.Pending() > 0 {
		b.timers.Register(TimerThrottleFlush, b.flushThrottle, b.throttle.Interval())
	}
	b.started = true

	b.logger.Info("bridge_started",
		"url", b.cfg.SocketURL,
		"throttle_interval_ms", b.cfg.ThrottleIntervalMS,
		"tick_interval_ms", b.cfg.TickIntervalMS,
	)
	return nil
}

// Stop clears the run-flag, flushes pending throttled events, sends what it
// can, force-closes the socket and joins the transport goroutine. Call it
// from the host context. Messages that could not be sent stay queued for
// the next Start.
func (b *Bridge) Stop(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return nil
	}
	b.started = false
	b.flag.Clear()

	b.timers.Unregister(TimerProcessQueues)
	b.timers.Unregister(TimerThrottleFlush)
	b.timers.Unregister(TimerHeartbeat)

	flushed := b.throttle.FlushAll()
	for _, ev := range flushed {
		b.enqueue(envelope.Event(ev.Kind, ev.Payload))
	}
	sent := b.sendOutbound()
	b.outbound.Close()
	b.inbound.Close()

	b.transport.Close()

	timeout := DefaultStopTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = max(time.Until(deadline), minStopTimeout)
	}
	joined := b.transport.Wait(timeout)
	b.cancel()

	b.logger.Info("bridge_stopped",
		"flushed_events", len(flushed),
		"sent", sent,
		"unsent", b.outbound.Len(),
	)
	if !joined {
		return ErrStopTimeout
	}
	return nil
}

// =============================================================================
// INGRESS
// =============================================================================

// Notify queues a host change notification. Kinds configured as throttled
// are coalesced first. Safe to call from any goroutine.
func (b *Bridge) Notify(kind string, payload map[string]any, reason string) {
	if _, ok := b.throttled[kind]; ok {
		if b.throttle.Submit(kind, payload, reason) && b.flag.IsSet() {
			b.timers.Register(TimerThrottleFlush, b.flushThrottle, b.throttle.Interval())
		}
		return
	}
	if !b.enqueue(envelope.Event(kind, payload)) {
		observability.RecordMessage("outbound", "dropped")
		b.logger.Debug("notify_dropped", "kind", kind)
	}
}

// Enqueue puts a prepared message on the outbound queue.
func (b *Bridge) Enqueue(msg envelope.Outbound) bool {
	return b.enqueue(msg)
}

// queued is an outbound message whose framing was fixed when it was queued.
type queued struct {
	msg     envelope.Outbound
	version int
	epoch   uint64
}

func (b *Bridge) enqueue(msgs ...envelope.Outbound) bool {
	b.frameMu.Lock()
	defer b.frameMu.Unlock()
	return b.enqueueLocked(msgs...)
}

func (b *Bridge) enqueueLocked(msgs ...envelope.Outbound) bool {
	version, epoch := b.session.Version(), b.epoch.Load()
	ok := true
	for _, msg := range msgs {
		if !b.outbound.Push(queued{msg: msg, version: version, epoch: epoch}) {
			ok = false
		}
	}
	return ok
}

// upgrade negotiates under frameMu so everything queued before it keeps the
// old framing and everything after it follows the confirmation.
func (b *Bridge) upgrade(req *commands.Request) {
	b.frameMu.Lock()
	defer b.frameMu.Unlock()
	b.enqueueLocked(b.session.Upgrade(req.ID, req.Params)...)
}

// encode frames q for the wire. Messages left over from an earlier
// connection are sent legacy since every connection starts legacy.
func (b *Bridge) encode(q queued) ([]byte, error) {
	version := q.version
	if q.epoch != b.epoch.Load() {
		version = envelope.LegacyVersion
	}
	return q.msg.Encode(version)
}

// =============================================================================
// TRANSPORT CALLBACKS (transport goroutine)
// =============================================================================

func (b *Bridge) onOpen() {
	b.frameMu.Lock()
	b.session.Reset()
	b.epoch.Add(1)
	b.enqueueLocked(b.session.ConnectedEvent())
	b.frameMu.Unlock()
	b.fireConnection(true)
}

func (b *Bridge) onMessage(data []byte) {
	frame := make([]byte, len(data))
	copy(frame, data)
	if !b.inbound.Push(frame) {
		observability.RecordMessage("inbound", "dropped")
	}
}

func (b *Bridge) onClose(error) {
	b.fireConnection(false)
}

func (b *Bridge) fireConnection(connected bool) {
	b.listenMu.RLock()
	listeners := append([]ConnectionListener(nil), b.listeners...)
	b.listenMu.RUnlock()
	for _, l := range listeners {
		l(connected)
	}
}
