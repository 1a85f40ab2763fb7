package envelope

import "encoding/json"

// Response is the reply to one counterpart request.
type Response struct {
	RequestID string
	Action    string
	OK        bool
	Data      any
	Code      ErrorCode
	Message   string
	ErrorData map[string]any
	Warnings  []string

	// ForceLegacy renders the flat legacy shape regardless of session version.
	ForceLegacy bool
}

// Success builds a successful response.
func Success(requestID, action string, data any) *Response {
	return &Response{RequestID: requestID, Action: action, OK: true, Data: data, Code: CodeOK}
}

// Failure builds a failed response.
func Failure(requestID, action string, code ErrorCode, message string) *Response {
	if code == "" || code == CodeOK {
		code = CodeInternalError
	}
	if message == "" {
		message = "Unknown error"
	}
	return &Response{RequestID: requestID, Action: action, Code: code, Message: message}
}

// Encode renders the response for the given session version.
func (r *Response) Encode(sessionVersion int) ([]byte, error) {
	if r.ForceLegacy || sessionVersion < ProtocolVersion {
		return json.Marshal(r.Legacy())
	}
	return json.Marshal(r.Envelope())
}

// Envelope renders the response in envelope framing.
func (r *Response) Envelope() *Envelope {
	body := map[string]any{"ok": r.OK}
	if r.Action != "" {
		body["action"] = r.Action
	}
	if r.OK {
		if r.Data != nil {
			body["data"] = r.Data
		}
	} else {
		errBody := map[string]any{
			"code":    string(r.Code),
			"message": r.Message,
		}
		if len(r.ErrorData) > 0 {
			errBody["data"] = r.ErrorData
		}
		body["error"] = errBody
	}
	if len(r.Warnings) > 0 {
		body["warnings"] = r.Warnings
	}
	return New(TypeResponse, body, WithReplyTo(r.RequestID))
}

// Legacy renders the flat response shape.
func (r *Response) Legacy() LegacyMessage {
	m := LegacyMessage{
		"type": LegacyTypeResponse,
		"id":   r.RequestID,
		"ok":   r.OK,
	}
	if r.Action != "" {
		m["action"] = r.Action
	}
	if r.OK {
		if r.Data != nil {
			m["data"] = r.Data
		}
	} else {
		// Extra error fields sit at top level; reserved keys win.
		for k, v := range r.ErrorData {
			m[k] = v
		}
		m["type"] = LegacyTypeResponse
		m["id"] = r.RequestID
		m["ok"] = false
		m["error"] = r.Message
		m["error_code"] = string(r.Code)
	}
	if len(r.Warnings) > 0 {
		m["warnings"] = r.Warnings
	}
	return m
}
