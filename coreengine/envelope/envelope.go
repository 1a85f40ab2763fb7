package envelope

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ENVELOPE
// =============================================================================

// Envelope is the versioned frame exchanged once a session has upgraded.
type Envelope struct {
	Version   int            `json:"v"`
	Type      string         `json:"type"`
	Timestamp int64          `json:"ts"`
	ID        string         `json:"id"`
	Source    Source         `json:"source"`
	Body      map[string]any `json:"body"`
	ReplyTo   string         `json:"reply_to,omitempty"`
}

// Option customizes an Envelope built by New.
type Option func(*Envelope)

// WithReplyTo correlates the envelope with a request id.
func WithReplyTo(id string) Option {
	return func(e *Envelope) { e.ReplyTo = id }
}

// WithSource overrides the default host_addon source.
func WithSource(s Source) Option {
	return func(e *Envelope) { e.Source = s }
}

// WithVersion overrides the protocol version stamped on the envelope.
func WithVersion(v int) Option {
	return func(e *Envelope) { e.Version = v }
}

// nowFunc is swapped in tests.
var nowFunc = time.Now

// NewID returns an 8 character message id.
func NewID() string {
	return uuid.NewString()[:8]
}

// New builds an envelope with a fresh id and the current timestamp.
func New(msgType string, body map[string]any, opts ...Option) *Envelope {
	if body == nil {
		body = map[string]any{}
	}
	e := &Envelope{
		Version:   ProtocolVersion,
		Type:      msgType,
		Timestamp: nowFunc().UnixMilli(),
		ID:        NewID(),
		Source:    SourceHostAddon,
		Body:      body,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Encode always renders envelope framing regardless of session version.
func (e *Envelope) Encode(int) ([]byte, error) {
	return json.Marshal(e)
}

// IsEnvelope reports whether a decoded JSON object looks like an envelope.
func IsEnvelope(raw map[string]any) bool {
	_, hasV := raw["v"]
	body, hasBody := raw["body"]
	if !hasV || !hasBody {
		return false
	}
	_, ok := body.(map[string]any)
	return ok
}

// Decode parses a frame into either an envelope or a legacy message.
// Exactly one of the returned values is non-nil on success.
func Decode(data []byte) (*Envelope, LegacyMessage, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("decode frame: %w", err)
	}
	if raw == nil {
		return nil, nil, fmt.Errorf("decode frame: not a JSON object")
	}
	if !IsEnvelope(raw) {
		return nil, LegacyMessage(raw), nil
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, nil, fmt.Errorf("decode envelope: %w", err)
	}
	return &env, nil, nil
}

// =============================================================================
// OUTBOUND
// =============================================================================

// Outbound is anything the bridge can put on the wire. Encode receives the
// session version that was current when the message was queued.
type Outbound interface {
	Encode(sessionVersion int) ([]byte, error)
}

var (
	_ Outbound = (*Envelope)(nil)
	_ Outbound = LegacyMessage(nil)
	_ Outbound = (*Response)(nil)
)
