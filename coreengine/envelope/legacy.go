package envelope

import (
	"encoding/json"
	"fmt"
)

// LegacyMessage is a flat pre-envelope message such as
// {"type":"event","event":"save_post","filepath":"..."}.
type LegacyMessage map[string]any

// Type returns the legacy type field.
func (m LegacyMessage) Type() string {
	t, _ := m["type"].(string)
	return t
}

// Encode renders the message flat for legacy sessions and wrapped otherwise.
func (m LegacyMessage) Encode(sessionVersion int) ([]byte, error) {
	if sessionVersion < ProtocolVersion {
		return json.Marshal(map[string]any(m))
	}
	return json.Marshal(WrapLegacy(m))
}

// Clone returns a shallow copy.
func (m LegacyMessage) Clone() LegacyMessage {
	out := make(LegacyMessage, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// WrapLegacy converts a legacy message into an envelope. The full original
// is kept under _legacy so UnwrapLegacy can restore it exactly.
func WrapLegacy(m LegacyMessage) *Envelope {
	original := m.Clone()

	switch m.Type() {
	case LegacyTypeEvent:
		name, _ := m["event"].(string)
		if name == "" {
			name = "unknown"
		}
		body := make(map[string]any, len(m))
		for k, v := range m {
			if k == "type" || k == "event" {
				continue
			}
			body[k] = v
		}
		body[LegacyKey] = original
		return New(EventType(name), body)

	case LegacyTypeResponse:
		requestID, _ := m["id"].(string)
		if requestID == "" {
			requestID = "unknown"
		}
		body := map[string]any{
			"ok":      legacyResponseOK(m),
			LegacyKey: original,
		}
		if action, ok := m["action"].(string); ok && action != "" {
			body["action"] = action
		}
		if data, ok := m["data"]; ok {
			body["data"] = data
		}
		if msg, ok := m["error"]; ok && msg != nil {
			code := CodeInternalError
			if c, ok := m["error_code"].(string); ok && ErrorCode(c).IsValid() {
				code = ErrorCode(c)
			}
			body["error"] = map[string]any{
				"code":    string(code),
				"message": fmt.Sprint(msg),
			}
		}
		return New(TypeResponse, body, WithReplyTo(requestID))

	case LegacyTypeHeartbeat:
		filepath, _ := m["filepath"].(string)
		if filepath == "" {
			filepath = UnsavedFilepath
		}
		body := HeartbeatBody(m["active_object"], m["mode"], filepath)
		body[LegacyKey] = original
		return New(TypeHeartbeat, body)

	case LegacyTypeContext:
		nodeID, _ := m["node_id"].(string)
		if nodeID == "" {
			nodeID = "unknown"
		}
		body := NodeActiveChangedBody(nodeID, m["area"])
		body[LegacyKey] = original
		return New(TypeNodeActiveChanged, body)
	}

	body := original.Clone()
	body[LegacyKey] = original
	t := m.Type()
	if t == "" {
		t = "unknown"
	}
	return New("legacy."+t, body)
}

// UnwrapLegacy returns the legacy message carried by e, if any.
func UnwrapLegacy(e *Envelope) (LegacyMessage, bool) {
	if e == nil || e.Body == nil {
		return nil, false
	}
	switch v := e.Body[LegacyKey].(type) {
	case LegacyMessage:
		return v.Clone(), true
	case map[string]any:
		return LegacyMessage(v).Clone(), true
	}
	return nil, false
}

func legacyResponseOK(m LegacyMessage) bool {
	if ok, present := m["ok"].(bool); present {
		return ok
	}
	_, hasError := m["error"]
	return !hasError
}
