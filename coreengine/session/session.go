// Package session negotiates the wire protocol version for one connection.
//
// Every connection starts in legacy mode (version 0). The counterpart may
// send protocol.upgrade to switch to envelope framing; the acknowledgement
// is always legacy framed and is followed by exactly one envelope framed
// confirmation event.
package session

import (
	"fmt"
	"sort"
	"sync"

	"github.com/blendmate/bridge/coreengine/envelope"
	"github.com/blendmate/bridge/coreengine/observability"
	"github.com/blendmate/bridge/coreengine/typeutil"
)

// UpgradeAction is the request action handled by the negotiator.
const UpgradeAction = "protocol.upgrade"

// Session holds the negotiated protocol state of the current connection.
// Reset runs on the transport goroutine while Version and Upgrade run on
// the host tick, so all access is guarded.
type Session struct {
	identity  envelope.HostIdentity
	supported map[int]struct{}
	logger    observability.Logger

	// filepath reports the current host file for the confirmation event.
	filepath func() string

	version int
	mu      sync.RWMutex
}

// New creates a session that can negotiate to any of the supported versions.
func New(identity envelope.HostIdentity, supported []int, logger observability.Logger) *Session {
	if len(supported) == 0 {
		supported = []int{envelope.ProtocolVersion}
	}
	set := make(map[int]struct{}, len(supported))
	for _, v := range supported {
		set[v] = struct{}{}
	}
	return &Session{
		identity:  identity,
		supported: set,
		logger:    observability.OrNop(logger),
		version:   envelope.LegacyVersion,
	}
}

// SetFilepathSource sets the callback used to fill the confirmation event.
// The callback runs on the host tick.
func (s *Session) SetFilepathSource(fn func() string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filepath = fn
}

// Reset returns the session to legacy mode. Called for every new connection.
func (s *Session) Reset() {
	s.mu.Lock()
	s.version = envelope.LegacyVersion
	s.mu.Unlock()
	observability.SetProtocolVersion(envelope.LegacyVersion)
}

// Version returns the negotiated version (0 for legacy).
func (s *Session) Version() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Supported returns the negotiable versions in ascending order.
func (s *Session) Supported() []int {
	out := make([]int, 0, len(s.supported))
	for v := range s.supported {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// Identity returns the host identity announced on connect.
func (s *Session) Identity() envelope.HostIdentity {
	return s.identity
}

// ConnectedEvent builds the legacy notification sent when a socket opens.
func (s *Session) ConnectedEvent() envelope.LegacyMessage {
	return envelope.ConnectedEvent(s.identity, s.Supported())
}

// Upgrade handles a protocol.upgrade request and returns the messages to
// enqueue, in order.
func (s *Session) Upgrade(requestID string, params map[string]any) []envelope.Outbound {
	requested, present := params["version"]
	if !present || requested == nil {
		return []envelope.Outbound{s.reject(requestID, envelope.CodeInvalidParams, "Missing required parameter: version")}
	}

	version, ok := typeutil.Int(requested)
	if !ok {
		return []envelope.Outbound{s.reject(requestID, envelope.CodeInvalidParams,
			fmt.Sprintf("Invalid protocol version: %v", requested))}
	}

	if _, ok := s.supported[version]; !ok {
		s.logger.Warn("protocol_upgrade_rejected", "requested", version, "supported", s.Supported())
		return []envelope.Outbound{s.reject(requestID, envelope.CodeUnsupportedVersion,
			fmt.Sprintf("Unsupported protocol version: %d", version))}
	}

	s.mu.Lock()
	current := s.version
	if current == version {
		s.mu.Unlock()
		ack := envelope.Success(requestID, UpgradeAction, map[string]any{
			"version":        version,
			"already_active": true,
		})
		ack.ForceLegacy = true
		return []envelope.Outbound{ack}
	}
	s.version = version
	filepath := s.filepath
	s.mu.Unlock()

	observability.SetProtocolVersion(version)
	s.logger.Info("protocol_upgraded", "from", current, "to", version)

	ack := envelope.Success(requestID, UpgradeAction, map[string]any{"version": version})
	ack.ForceLegacy = true

	path := ""
	if filepath != nil {
		path = filepath()
	}
	body := envelope.SceneConnectedBody(s.identity, path, version)
	body["confirmed"] = true
	confirmation := envelope.New(envelope.TypeSceneConnected, body, envelope.WithVersion(version))

	return []envelope.Outbound{ack, confirmation}
}

func (s *Session) reject(requestID string, code envelope.ErrorCode, message string) *envelope.Response {
	r := envelope.Failure(requestID, UpgradeAction, code, message)
	r.ErrorData = map[string]any{"supported_versions": s.Supported()}
	r.ForceLegacy = true
	return r
}
