package envelope

// UnsavedFilepath is reported when the host file has never been saved.
const UnsavedFilepath = "(unsaved)"

// Update reasons carried by depsgraph events.
const (
	ReasonUser    = "user"
	ReasonCommand = "command"
	ReasonUndo    = "undo"
	ReasonRedo    = "redo"
	ReasonUnknown = "unknown"
)

// =============================================================================
// EVENT BODIES
// =============================================================================

// HostIdentity describes the host application and this add-on.
type HostIdentity struct {
	HostName     string `json:"host_name"`
	HostVersion  string `json:"host_version"`
	AddonVersion string `json:"addon_version"`
}

// ConnectedEvent is the legacy notification sent right after a socket opens.
func ConnectedEvent(id HostIdentity, supported []int) LegacyMessage {
	versions := make([]int, len(supported))
	copy(versions, supported)
	return LegacyMessage{
		"type":               LegacyTypeEvent,
		"event":              "connected",
		"host":               id.HostName,
		"host_version":       id.HostVersion,
		"addon_version":      id.AddonVersion,
		"protocol_version":   LegacyVersion,
		"supported_versions": versions,
	}
}

// SceneConnectedBody is the body of event.scene.connected.
func SceneConnectedBody(id HostIdentity, filepath string, protocolVersion int) map[string]any {
	if filepath == "" {
		filepath = UnsavedFilepath
	}
	return map[string]any{
		"host":             id.HostName,
		"host_version":     id.HostVersion,
		"addon_version":    id.AddonVersion,
		"filepath":         filepath,
		"protocol_version": protocolVersion,
	}
}

// SelectionChangedBody is the body of event.selection.changed.
func SelectionChangedBody(activeObjectID any, selectedIDs []string, mode string) map[string]any {
	if selectedIDs == nil {
		selectedIDs = []string{}
	}
	return map[string]any{
		"active_object_id": activeObjectID,
		"selected_ids":     selectedIDs,
		"mode":             mode,
	}
}

// FileLoadedBody is the body of event.scene.file_loaded.
func FileLoadedBody(filepath string, id HostIdentity) map[string]any {
	return map[string]any{
		"filepath":      filepath,
		"host_version":  id.HostVersion,
		"addon_version": id.AddonVersion,
	}
}

// FileSavedBody is the body of event.scene.file_saved.
func FileSavedBody(filepath string) map[string]any {
	return map[string]any{"filepath": filepath}
}

// DepsgraphUpdatedBody is the body of event.depsgraph.updated.
// Batch fields are included only when batchSize > 1.
func DepsgraphUpdatedBody(changedIDs, geometryIDs []string, reason, batchID string, batchSize int) map[string]any {
	if changedIDs == nil {
		changedIDs = []string{}
	}
	if geometryIDs == nil {
		geometryIDs = []string{}
	}
	if reason == "" {
		reason = ReasonUnknown
	}
	body := map[string]any{
		"changed_object_ids":   changedIDs,
		"geometry_changed_ids": geometryIDs,
		"reason":               reason,
	}
	if batchSize > 1 && batchID != "" {
		body["batch_id"] = batchID
		body["batch_size"] = batchSize
	}
	return body
}

// FrameChangedBody is the body of event.timeline.frame_changed.
func FrameChangedBody(frame int) map[string]any {
	return map[string]any{"frame": frame}
}

// NodeActiveChangedBody is the body of event.node.active_changed.
func NodeActiveChangedBody(nodeID string, nodeTree any) map[string]any {
	return map[string]any{
		"node_id":   nodeID,
		"node_tree": nodeTree,
	}
}

// HeartbeatBody is the body of heartbeat.
func HeartbeatBody(activeObject, mode any, filepath string) map[string]any {
	return map[string]any{
		"active_object": activeObject,
		"mode":          mode,
		"filepath":      filepath,
	}
}

// Heartbeat builds a legacy heartbeat message.
func Heartbeat(activeObject, mode any, filepath string) LegacyMessage {
	if filepath == "" {
		filepath = UnsavedFilepath
	}
	return LegacyMessage{
		"type":          LegacyTypeHeartbeat,
		"active_object": activeObject,
		"mode":          mode,
		"filepath":      filepath,
	}
}

// Event builds a legacy event message from a kind and payload.
func Event(kind string, payload map[string]any) LegacyMessage {
	m := make(LegacyMessage, len(payload)+2)
	for k, v := range payload {
		m[k] = v
	}
	m["type"] = LegacyTypeEvent
	m["event"] = kind
	return m
}
