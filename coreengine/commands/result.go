package commands

import (
	"fmt"

	"github.com/blendmate/bridge/coreengine/envelope"
)

// Result is the outcome of one command. Handlers always return one; they
// never let an error escape.
type Result struct {
	Success  bool
	Data     any
	Error    string
	Code     envelope.ErrorCode
	Warnings []string
}

// OK builds a successful result.
func OK(data any) *Result {
	return &Result{Success: true, Data: data, Code: envelope.CodeOK}
}

// Fail builds a failed result with a formatted message.
func Fail(code envelope.ErrorCode, format string, args ...any) *Result {
	return &Result{Code: code, Error: fmt.Sprintf(format, args...)}
}

// FromError builds a failed result, classifying err with CodeOf.
func FromError(err error) *Result {
	if err == nil {
		return OK(nil)
	}
	return &Result{Code: CodeOf(err), Error: err.Error()}
}

// WithWarnings attaches non-fatal warnings.
func (r *Result) WithWarnings(warnings ...string) *Result {
	r.Warnings = append(r.Warnings, warnings...)
	return r
}

// Response converts the result into the reply for requestID.
func (r *Result) Response(requestID, action string) *envelope.Response {
	var resp *envelope.Response
	if r.Success {
		resp = envelope.Success(requestID, action, r.Data)
	} else {
		resp = envelope.Failure(requestID, action, r.Code, r.Error)
	}
	if len(r.Warnings) > 0 {
		resp.Warnings = append([]string(nil), r.Warnings...)
	}
	return resp
}
