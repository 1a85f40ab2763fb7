// Package envelope provides the wire vocabulary shared with the counterpart.
//
// Features:
//   - Versioned envelope framing with short ids and millisecond timestamps
//   - Legacy flat messages and lossless wrapping via the reserved _legacy key
//   - Response rendering in either framing
//   - Event body contracts for scene, depsgraph, timeline and node events
package envelope

// ProtocolVersion is the newest envelope version this side speaks.
const ProtocolVersion = 1

// LegacyVersion marks a session that has not negotiated envelopes.
const LegacyVersion = 0

// LegacyKey is the reserved body key holding the original legacy message.
const LegacyKey = "_legacy"

// ErrorCode is a stable, machine-readable failure classification.
type ErrorCode string

const (
	// CodeOK indicates success.
	CodeOK ErrorCode = "OK"
	// CodeInvalidParams indicates malformed or missing parameters.
	CodeInvalidParams ErrorCode = "INVALID_PARAMS"
	// CodeNotFound indicates a missing object, property or handler.
	CodeNotFound ErrorCode = "NOT_FOUND"
	// CodeInvalidContext indicates wrong host mode or missing selection.
	CodeInvalidContext ErrorCode = "INVALID_CONTEXT"
	// CodeOperatorFailed indicates a host operator reported failure.
	CodeOperatorFailed ErrorCode = "OPERATOR_FAILED"
	// CodePermissionDenied indicates a policy rejection.
	CodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	// CodeUnsupportedVersion indicates a protocol version outside the supported set.
	CodeUnsupportedVersion ErrorCode = "UNSUPPORTED_VERSION"
	// CodeTimeout indicates an operation ran out of time.
	CodeTimeout ErrorCode = "TIMEOUT"
	// CodeInternalError indicates an unexpected failure.
	CodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// IsValid reports whether c is one of the known codes.
func (c ErrorCode) IsValid() bool {
	switch c {
	case CodeOK, CodeInvalidParams, CodeNotFound, CodeInvalidContext,
		CodeOperatorFailed, CodePermissionDenied, CodeUnsupportedVersion,
		CodeTimeout, CodeInternalError:
		return true
	}
	return false
}

// Source identifies who produced a message.
type Source string

const (
	// SourceHostAddon is this side of the bridge.
	SourceHostAddon Source = "host_addon"
	// SourceCounterpart is the desktop application.
	SourceCounterpart Source = "counterpart"
	// SourceExternalAgent is an automated agent driving the counterpart.
	SourceExternalAgent Source = "external_agent"
)

// Legacy message types.
const (
	LegacyTypeEvent     = "event"
	LegacyTypeResponse  = "response"
	LegacyTypeHeartbeat = "heartbeat"
	LegacyTypeContext   = "context"
)

// Envelope message types.
const (
	TypeResponse  = "response"
	TypeHeartbeat = "heartbeat"

	TypeSceneConnected       = "event.scene.connected"
	TypeSceneFileLoaded      = "event.scene.file_loaded"
	TypeSceneFileSaved       = "event.scene.file_saved"
	TypeDepsgraphUpdated     = "event.depsgraph.updated"
	TypeTimelineFrameChanged = "event.timeline.frame_changed"
	TypeNodeActiveChanged    = "event.node.active_changed"
	TypeSelectionChanged     = "event.selection.changed"
)

// legacyEventTypes maps legacy event names to hierarchical envelope types.
var legacyEventTypes = map[string]string{
	"connected":                TypeSceneConnected,
	"load_post":                TypeSceneFileLoaded,
	"save_post":                TypeSceneFileSaved,
	"depsgraph_update":         TypeDepsgraphUpdated,
	"frame_change":             TypeTimelineFrameChanged,
	"frame_changed":            TypeTimelineFrameChanged,
	"context":                  TypeNodeActiveChanged,
	"active_object_changed":    TypeSelectionChanged,
	"selection_changed":        TypeSelectionChanged,
	"object_transform_changed": "event.object.transform_changed",
	"object_name_changed":      "event.object.renamed",
}

// EventType returns the hierarchical type for a legacy event name.
// Unknown names map to event.legacy.<name>.
func EventType(legacyEvent string) string {
	if t, ok := legacyEventTypes[legacyEvent]; ok {
		return t
	}
	return "event.legacy." + legacyEvent
}
