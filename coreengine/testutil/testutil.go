// Package testutil provides shared test doubles for bridge packages.
package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/blendmate/bridge/coreengine/observability"
)

// =============================================================================
// MOCK LOGGER
// =============================================================================

// MockLogger implements observability.Logger for testing.
type MockLogger struct {
	// Logs captures all log entries.
	Logs []LogEntry

	mu sync.Mutex
}

// LogEntry represents a captured log entry.
type LogEntry struct {
	Level   string
	Message string
	Fields  map[string]any
}

// NewMockLogger creates a MockLogger.
func NewMockLogger() *MockLogger {
	return &MockLogger{
		Logs: make([]LogEntry, 0),
	}
}

func (m *MockLogger) Debug(msg string, keysAndValues ...any) {
	m.log("debug", msg, keysAndValues...)
}

func (m *MockLogger) Info(msg string, keysAndValues ...any) {
	m.log("info", msg, keysAndValues...)
}

func (m *MockLogger) Warn(msg string, keysAndValues ...any) {
	m.log("warn", msg, keysAndValues...)
}

func (m *MockLogger) Error(msg string, keysAndValues ...any) {
	m.log("error", msg, keysAndValues...)
}

func (m *MockLogger) log(level, msg string, keysAndValues ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fields := make(map[string]any)
	for i := 0; i < len(keysAndValues)-1; i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			fields[key] = keysAndValues[i+1]
		}
	}

	m.Logs = append(m.Logs, LogEntry{
		Level:   level,
		Message: msg,
		Fields:  fields,
	})
}

// GetLogs returns captured logs (thread-safe).
func (m *MockLogger) GetLogs() []LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([]LogEntry, len(m.Logs))
	copy(copied, m.Logs)
	return copied
}

// HasLog checks if a log message exists at the given level.
func (m *MockLogger) HasLog(level, message string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, log := range m.Logs {
		if log.Level == level && log.Message == message {
			return true
		}
	}
	return false
}

// Clear removes all captured logs.
func (m *MockLogger) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = nil
}

var _ observability.Logger = (*MockLogger)(nil)

// =============================================================================
// FAKE COUNTERPART
// =============================================================================

// Counterpart is a websocket server standing in for the desktop application.
// It accepts one connection at a time and records every text frame.
type Counterpart struct {
	Server *httptest.Server

	upgrader websocket.Upgrader
	conn     *websocket.Conn
	frames   []map[string]any
	accepted int
	mu       sync.Mutex
	notify   chan struct{}
}

// NewCounterpart starts a fake counterpart. It is closed with t.Cleanup.
func NewCounterpart(t *testing.T) *Counterpart {
	t.Helper()
	c := &Counterpart{notify: make(chan struct{}, 1)}
	c.Server = httptest.NewServer(http.HandlerFunc(c.handle))
	t.Cleanup(c.Close)
	return c
}

// URL returns the ws:// address of the server.
func (c *Counterpart) URL() string {
	return "ws" + strings.TrimPrefix(c.Server.URL, "http")
}

func (c *Counterpart) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c.mu.Lock()
	c.conn = conn
	c.accepted++
	c.mu.Unlock()
	c.signal()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var m map[string]any
		if json.Unmarshal(data, &m) != nil {
			continue
		}
		c.mu.Lock()
		c.frames = append(c.frames, m)
		c.mu.Unlock()
		c.signal()
	}
}

func (c *Counterpart) signal() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// Accepted returns how many connections have been accepted.
func (c *Counterpart) Accepted() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accepted
}

// Frames returns a copy of every frame received so far.
func (c *Counterpart) Frames() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, len(c.frames))
	copy(out, c.frames)
	return out
}

// Send writes a JSON frame to the connected client.
func (c *Counterpart) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return websocket.ErrCloseSent
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// SendRaw writes raw bytes as a text frame.
func (c *Counterpart) SendRaw(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return websocket.ErrCloseSent
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// DropConnection closes the current client connection from the server side.
func (c *Counterpart) DropConnection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// WaitFor polls until cond holds for the received frames or timeout elapses.
func (c *Counterpart) WaitFor(ctx context.Context, timeout time.Duration, cond func(frames []map[string]any) bool) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	poll := time.NewTicker(5 * time.Millisecond)
	defer poll.Stop()

	for {
		if cond(c.Frames()) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return cond(c.Frames())
		case <-c.notify:
		case <-poll.C:
		}
	}
}

// Close shuts the server down.
func (c *Counterpart) Close() {
	c.DropConnection()
	c.Server.Close()
}
