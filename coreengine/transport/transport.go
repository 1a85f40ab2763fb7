// Package transport owns the single websocket to the counterpart.
//
// One goroutine dials, reads and reconnects for the lifetime of the bridge.
// It never touches the host graph; inbound frames are handed to a callback
// that only enqueues.
package transport

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/blendmate/bridge/coreengine/observability"
	"github.com/blendmate/bridge/coreengine/scheduler"
)

// ErrNotConnected is returned by Send when no socket is open.
var ErrNotConnected = errors.New("transport: not connected")

// ErrAlreadyRunning is returned by Start when the loop is active.
var ErrAlreadyRunning = errors.New("transport: already running")

const (
	// MinBackoff and MaxBackoff bound the reconnect wait.
	MinBackoff = 2 * time.Second
	MaxBackoff = 5 * time.Second
)

// =============================================================================
// CONFIG
// =============================================================================

// Config defines connection behavior.
type Config struct {
	URL              string        `json:"url"`
	ReconnectBackoff time.Duration `json:"reconnect_backoff"`
	HandshakeTimeout time.Duration `json:"handshake_timeout"`
	PingInterval     time.Duration `json:"ping_interval"`
	PongTimeout      time.Duration `json:"pong_timeout"`
	WriteTimeout     time.Duration `json:"write_timeout"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		URL:              "ws://127.0.0.1:32123",
		ReconnectBackoff: MaxBackoff,
		HandshakeTimeout: 5 * time.Second,
		PingInterval:     10 * time.Second,
		PongTimeout:      5 * time.Second,
		WriteTimeout:     5 * time.Second,
	}
}

// ClampBackoff bounds d to [MinBackoff, MaxBackoff].
func ClampBackoff(d time.Duration) time.Duration {
	if d < MinBackoff {
		return MinBackoff
	}
	if d > MaxBackoff {
		return MaxBackoff
	}
	return d
}

// Handlers are the transport callbacks. They run on the transport
// goroutine and must not touch the host graph.
type Handlers struct {
	OnOpen    func()
	OnMessage func(data []byte)
	OnClose   func(err error)
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager runs the connect/read/reconnect loop.
type Manager struct {
	cfg      Config
	backoff  time.Duration
	dialer   *websocket.Dialer
	flag     *scheduler.RunFlag
	handlers Handlers
	logger   observability.Logger

	conn    *websocket.Conn
	connMu  sync.Mutex
	writeMu sync.Mutex

	done    chan struct{}
	running bool
	runMu   sync.Mutex
}

// New creates a Manager. The loop runs while flag is set.
func New(cfg *Config, flag *scheduler.RunFlag, handlers Handlers, logger observability.Logger) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	defaults := DefaultConfig()
	if c.URL == "" {
		c.URL = defaults.URL
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = defaults.HandshakeTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = defaults.PingInterval
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = defaults.PongTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaults.WriteTimeout
	}

	return &Manager{
		cfg:      c,
		backoff:  ClampBackoff(c.ReconnectBackoff),
		dialer:   &websocket.Dialer{HandshakeTimeout: c.HandshakeTimeout},
		flag:     flag,
		handlers: handlers,
		logger:   observability.OrNop(logger),
	}
}

// SetBackoff overrides the reconnect wait without clamping. Intended for tests.
func (m *Manager) SetBackoff(d time.Duration) {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	m.backoff = d
}

// Start launches the transport goroutine.
func (m *Manager) Start() error {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.running {
		return ErrAlreadyRunning
	}
	m.running = true
	m.done = make(chan struct{})
	go m.loop(m.done, m.backoff)
	return nil
}

// Wait joins the transport goroutine. Returns false if it is still running
// after timeout.
func (m *Manager) Wait(timeout time.Duration) bool {
	m.runMu.Lock()
	done := m.done
	m.runMu.Unlock()
	if done == nil {
		return true
	}
	select {
	case <-done:
		return true
	default:
	}
	if timeout <= 0 {
		return false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// Connected reports whether a socket is open.
func (m *Manager) Connected() bool {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	return m.conn != nil
}

// Close force-closes the current socket, unblocking the read loop.
func (m *Manager) Close() {
	m.connMu.Lock()
	conn := m.conn
	m.connMu.Unlock()
	if conn == nil {
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bridge stopping"),
		time.Now().Add(time.Second))
	_ = conn.Close()
}

// Send writes one text frame.
func (m *Manager) Send(data []byte) error {
	m.connMu.Lock()
	conn := m.conn
	m.connMu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		observability.RecordMessage("outbound", "error")
		return fmt.Errorf("transport: write: %w", err)
	}
	observability.RecordMessage("outbound", "ok")
	return nil
}

// =============================================================================
// LOOP
// =============================================================================

func (m *Manager) loop(done chan struct{}, backoff time.Duration) {
	defer func() {
		m.runMu.Lock()
		m.running = false
		m.runMu.Unlock()
		close(done)
	}()

	m.logger.Info("transport_loop_started", "url", m.cfg.URL)
	for m.flag.IsSet() {
		m.attempt()
		if !m.flag.IsSet() {
			break
		}
		m.logger.Debug("transport_reconnect_wait", "backoff_ms", backoff.Milliseconds())
		if m.flag.WaitCleared(backoff) {
			break
		}
	}
	m.logger.Info("transport_loop_stopped")
}

// attempt runs one connect/read cycle. Panics are contained here so the
// loop survives them.
func (m *Manager) attempt() {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("transport_panic_recovered",
				"panic", r,
				"stack", string(debug.Stack()),
			)
			m.detach(fmt.Errorf("panic: %v", r))
		}
	}()

	conn, _, err := m.dialer.Dial(m.cfg.URL, nil)
	if err != nil {
		observability.RecordConnect("error")
		m.logger.Debug("transport_connect_failed", "url", m.cfg.URL, "error", err.Error())
		return
	}
	observability.RecordConnect("success")

	m.connMu.Lock()
	m.conn = conn
	m.connMu.Unlock()

	// Stop may have raced the dial.
	if !m.flag.IsSet() {
		m.detach(nil)
		return
	}

	observability.SetConnected(true)
	m.logger.Info("transport_connected", "url", m.cfg.URL)
	if m.handlers.OnOpen != nil {
		m.handlers.OnOpen()
	}

	err = m.readLoop(conn)
	m.detach(err)
}

func (m *Manager) readLoop(conn *websocket.Conn) error {
	deadline := m.cfg.PingInterval + m.cfg.PongTimeout
	_ = conn.SetReadDeadline(time.Now().Add(deadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(deadline))
	})

	stopPing := m.startPinger(conn)
	defer stopPing()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(deadline))
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		observability.RecordMessage("inbound", "ok")
		if m.handlers.OnMessage != nil {
			m.handlers.OnMessage(data)
		}
	}
}

// startPinger sends keepalive pings until the returned func is called.
func (m *Manager) startPinger(conn *websocket.Conn) func() {
	ticker := time.NewTicker(m.cfg.PingInterval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(m.cfg.WriteTimeout)); err != nil {
					m.logger.Debug("transport_ping_failed", "error", err.Error())
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { close(done) }
}

// detach drops the current socket and reports the close.
func (m *Manager) detach(cause error) {
	m.connMu.Lock()
	conn := m.conn
	m.conn = nil
	m.connMu.Unlock()
	if conn == nil {
		return
	}
	_ = conn.Close()
	observability.SetConnected(false)

	if cause != nil && !websocket.IsCloseError(cause, websocket.CloseNormalClosure, websocket.CloseGoingAway) && m.flag.IsSet() {
		m.logger.Warn("transport_disconnected", "error", cause.Error())
	} else {
		m.logger.Info("transport_disconnected")
	}
	if m.handlers.OnClose != nil {
		m.handlers.OnClose(cause)
	}
}
