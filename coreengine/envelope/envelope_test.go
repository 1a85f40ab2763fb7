package envelope

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func freezeClock(t *testing.T, at time.Time) {
	t.Helper()
	prev := nowFunc
	nowFunc = func() time.Time { return at }
	t.Cleanup(func() { nowFunc = prev })
}

func decodeMap(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

// =============================================================================
// ENVELOPE TESTS
// =============================================================================

func TestNew(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_123)
	freezeClock(t, at)

	env := New("event.scene.file_saved", map[string]any{"filepath": "/tmp/a.blend"}, WithReplyTo("req1"))

	assert.Equal(t, ProtocolVersion, env.Version)
	assert.Equal(t, int64(1_700_000_000_123), env.Timestamp)
	assert.Len(t, env.ID, 8)
	assert.Equal(t, SourceHostAddon, env.Source)
	assert.Equal(t, "req1", env.ReplyTo)
}

func TestNew_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		id := New("heartbeat", nil).ID
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestEnvelope_WireKeys(t *testing.T) {
	env := New("heartbeat", nil, WithSource(SourceCounterpart))
	data, err := env.Encode(LegacyVersion)
	require.NoError(t, err)

	m := decodeMap(t, data)
	assert.Contains(t, m, "v")
	assert.Contains(t, m, "ts")
	assert.Equal(t, "counterpart", m["source"])
	assert.NotContains(t, m, "reply_to")
}

func TestDecode(t *testing.T) {
	t.Run("envelope", func(t *testing.T) {
		env, legacy, err := Decode([]byte(`{"v":1,"type":"request","ts":1,"id":"abcd1234","source":"counterpart","body":{"action":"property.get"}}`))
		require.NoError(t, err)
		require.NotNil(t, env)
		assert.Nil(t, legacy)
		assert.Equal(t, "property.get", env.Body["action"])
	})

	t.Run("legacy", func(t *testing.T) {
		env, legacy, err := Decode([]byte(`{"action":"object.rename","id":"r1"}`))
		require.NoError(t, err)
		assert.Nil(t, env)
		assert.Equal(t, "object.rename", legacy["action"])
	})

	t.Run("malformed", func(t *testing.T) {
		_, _, err := Decode([]byte(`{not json`))
		assert.Error(t, err)
	})

	t.Run("not an object", func(t *testing.T) {
		_, _, err := Decode([]byte(`null`))
		assert.Error(t, err)
	})
}

// =============================================================================
// LEGACY WRAPPING TESTS
// =============================================================================

func TestWrapLegacy_EventTypes(t *testing.T) {
	tests := []struct {
		event    string
		expected string
	}{
		{"connected", "event.scene.connected"},
		{"load_post", "event.scene.file_loaded"},
		{"save_post", "event.scene.file_saved"},
		{"depsgraph_update", "event.depsgraph.updated"},
		{"frame_change", "event.timeline.frame_changed"},
		{"context", "event.node.active_changed"},
		{"something_new", "event.legacy.something_new"},
	}

	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			env := WrapLegacy(LegacyMessage{"type": "event", "event": tt.event, "x": 1})
			assert.Equal(t, tt.expected, env.Type)
			assert.Equal(t, 1, env.Body["x"])
			assert.NotContains(t, env.Body, "event")
		})
	}
}

func TestWrapUnwrap_Lossless(t *testing.T) {
	messages := []LegacyMessage{
		{"type": "event", "event": "save_post", "filepath": "/tmp/a.blend"},
		{"type": "response", "id": "r1", "action": "property.get", "ok": true, "data": map[string]any{"value": 2.0}},
		{"type": "response", "id": "r2", "error": "boom", "error_code": "NOT_FOUND"},
		{"type": "heartbeat", "active_object": "Cube", "mode": "OBJECT"},
		{"type": "context", "node_id": "Group Input", "area": "NODE_EDITOR"},
		{"type": "custom", "payload": []any{1.0, 2.0}},
	}

	for _, msg := range messages {
		t.Run(msg.Type(), func(t *testing.T) {
			env := WrapLegacy(msg)

			// Through the wire and back.
			data, err := env.Encode(ProtocolVersion)
			require.NoError(t, err)
			decoded, _, err := Decode(data)
			require.NoError(t, err)
			require.NotNil(t, decoded)

			restored, ok := UnwrapLegacy(decoded)
			require.True(t, ok)

			expected := decodeMap(t, mustJSON(t, msg))
			assert.Equal(t, expected, map[string]any(restored))
		})
	}
}

func TestWrapLegacy_Response(t *testing.T) {
	env := WrapLegacy(LegacyMessage{"type": "response", "id": "r2", "error": "missing", "error_code": "NOT_FOUND"})

	assert.Equal(t, TypeResponse, env.Type)
	assert.Equal(t, "r2", env.ReplyTo)
	assert.Equal(t, false, env.Body["ok"])
	errBody := env.Body["error"].(map[string]any)
	assert.Equal(t, "NOT_FOUND", errBody["code"])
	assert.Equal(t, "missing", errBody["message"])
}

func TestUnwrapLegacy_NoLegacy(t *testing.T) {
	_, ok := UnwrapLegacy(New("heartbeat", nil))
	assert.False(t, ok)

	_, ok = UnwrapLegacy(nil)
	assert.False(t, ok)
}

func TestLegacyMessage_EncodeByVersion(t *testing.T) {
	msg := Event("save_post", map[string]any{"filepath": "/x.blend"})

	flat, err := msg.Encode(LegacyVersion)
	require.NoError(t, err)
	m := decodeMap(t, flat)
	assert.Equal(t, "event", m["type"])
	assert.Equal(t, "save_post", m["event"])

	wrapped, err := msg.Encode(ProtocolVersion)
	require.NoError(t, err)
	m = decodeMap(t, wrapped)
	assert.Equal(t, "event.scene.file_saved", m["type"])
	assert.EqualValues(t, 1, m["v"])
}

// =============================================================================
// RESPONSE TESTS
// =============================================================================

func TestResponse_EnvelopeShape(t *testing.T) {
	t.Run("success with warnings", func(t *testing.T) {
		r := Success("req9", "property.set_batch", map[string]any{"count": 3})
		r.Warnings = []string{"objects['Nope']: not found"}

		data, err := r.Encode(ProtocolVersion)
		require.NoError(t, err)
		m := decodeMap(t, data)

		assert.Equal(t, "response", m["type"])
		assert.Equal(t, "req9", m["reply_to"])
		body := m["body"].(map[string]any)
		assert.Equal(t, true, body["ok"])
		assert.Equal(t, "property.set_batch", body["action"])
		assert.EqualValues(t, 3, body["data"].(map[string]any)["count"])
		assert.Len(t, body["warnings"], 1)
		assert.NotContains(t, body, "error")
	})

	t.Run("failure with data", func(t *testing.T) {
		r := Failure("req1", "protocol.upgrade", CodeUnsupportedVersion, "nope")
		r.ErrorData = map[string]any{"supported_versions": []int{1}}

		m := decodeMap(t, mustEncode(t, r, ProtocolVersion))
		body := m["body"].(map[string]any)
		assert.Equal(t, false, body["ok"])
		assert.NotContains(t, body, "data")
		errBody := body["error"].(map[string]any)
		assert.Equal(t, "UNSUPPORTED_VERSION", errBody["code"])
		assert.Equal(t, "nope", errBody["message"])
		assert.Contains(t, errBody, "data")
	})
}

func TestResponse_LegacyShape(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		m := decodeMap(t, mustEncode(t, Success("r1", "object.rename", map[string]any{"name": "Hero"}), LegacyVersion))
		assert.Equal(t, "response", m["type"])
		assert.Equal(t, "r1", m["id"])
		assert.Equal(t, true, m["ok"])
		assert.Equal(t, "Hero", m["data"].(map[string]any)["name"])
	})

	t.Run("failure merges error data", func(t *testing.T) {
		r := Failure("r2", "protocol.upgrade", CodeUnsupportedVersion, "unsupported")
		r.ErrorData = map[string]any{"supported_versions": []int{1}, "type": "spoofed"}

		m := decodeMap(t, mustEncode(t, r, LegacyVersion))
		assert.Equal(t, "response", m["type"])
		assert.Equal(t, false, m["ok"])
		assert.Equal(t, "unsupported", m["error"])
		assert.Equal(t, "UNSUPPORTED_VERSION", m["error_code"])
		assert.Equal(t, []any{1.0}, m["supported_versions"])
	})

	t.Run("force legacy", func(t *testing.T) {
		r := Success("r3", "protocol.upgrade", nil)
		r.ForceLegacy = true
		m := decodeMap(t, mustEncode(t, r, ProtocolVersion))
		assert.Equal(t, "r3", m["id"])
		assert.NotContains(t, m, "v")
	})
}

func TestFailure_Defaults(t *testing.T) {
	r := Failure("x", "", CodeOK, "")
	assert.Equal(t, CodeInternalError, r.Code)
	assert.Equal(t, "Unknown error", r.Message)
	assert.False(t, r.OK)
}

// =============================================================================
// EVENT BODY TESTS
// =============================================================================

func TestDepsgraphUpdatedBody(t *testing.T) {
	single := DepsgraphUpdatedBody([]string{"Cube"}, nil, "", "b1", 1)
	assert.NotContains(t, single, "batch_id")
	assert.Equal(t, ReasonUnknown, single["reason"])
	assert.Equal(t, []string{}, single["geometry_changed_ids"])

	batched := DepsgraphUpdatedBody([]string{"Cube"}, []string{"Cube"}, ReasonUser, "b1", 4)
	assert.Equal(t, "b1", batched["batch_id"])
	assert.Equal(t, 4, batched["batch_size"])
}

func TestConnectedEvent(t *testing.T) {
	supported := []int{1}
	msg := ConnectedEvent(HostIdentity{HostName: "blender", HostVersion: "4.2.0", AddonVersion: "0.3.0"}, supported)
	supported[0] = 99

	assert.Equal(t, "event", msg.Type())
	assert.Equal(t, "connected", msg["event"])
	assert.Equal(t, LegacyVersion, msg["protocol_version"])
	assert.Equal(t, []int{1}, msg["supported_versions"])
}

func TestHeartbeat_UnsavedFile(t *testing.T) {
	hb := Heartbeat("Cube", "OBJECT", "")
	assert.Equal(t, UnsavedFilepath, hb["filepath"])

	env := WrapLegacy(hb)
	assert.Equal(t, TypeHeartbeat, env.Type)
	assert.Equal(t, "Cube", env.Body["active_object"])
}

func TestErrorCode_IsValid(t *testing.T) {
	assert.True(t, CodeTimeout.IsValid())
	assert.False(t, ErrorCode("NOPE").IsValid())
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func mustEncode(t *testing.T, o Outbound, version int) []byte {
	t.Helper()
	data, err := o.Encode(version)
	require.NoError(t, err)
	return data
}
