package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/blendmate/bridge/coreengine/envelope"
	"github.com/blendmate/bridge/coreengine/pathres"
)

// =============================================================================
// SENTINELS
// =============================================================================

var (
	// ErrInvalidContext is returned by a host when the current mode or
	// selection does not allow the operation.
	ErrInvalidContext = errors.New("invalid context")

	// ErrOperatorFailed is returned by a host when an operator ran and failed.
	ErrOperatorFailed = errors.New("operator failed")
)

// =============================================================================
// COMMAND ERROR
// =============================================================================

// CommandError is a handler failure carrying an explicit error code.
type CommandError struct {
	Code    envelope.ErrorCode
	Message string
	Cause   error
}

func (e *CommandError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CommandError) Unwrap() error {
	return e.Cause
}

// NewCommandError creates a CommandError.
func NewCommandError(code envelope.ErrorCode, message string, cause error) *CommandError {
	return &CommandError{Code: code, Message: message, Cause: cause}
}

// HandlerAlreadyRegisteredError is returned when an action is registered twice.
type HandlerAlreadyRegisteredError struct {
	Action string
}

func (e *HandlerAlreadyRegisteredError) Error() string {
	return fmt.Sprintf("handler already registered for %s", e.Action)
}

// NewHandlerAlreadyRegisteredError creates a HandlerAlreadyRegisteredError.
func NewHandlerAlreadyRegisteredError(action string) *HandlerAlreadyRegisteredError {
	return &HandlerAlreadyRegisteredError{Action: action}
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// CodeOf maps an error to the most specific error code.
func CodeOf(err error) envelope.ErrorCode {
	if err == nil {
		return envelope.CodeOK
	}

	var cmdErr *CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code.IsValid() {
		return cmdErr.Code
	}

	switch {
	case errors.Is(err, pathres.ErrNotFound),
		errors.Is(err, pathres.ErrUnknownRoot):
		return envelope.CodeNotFound
	case errors.Is(err, pathres.ErrSyntax),
		errors.Is(err, pathres.ErrTypeMismatch),
		errors.Is(err, pathres.ErrReadOnly):
		return envelope.CodeInvalidParams
	case errors.Is(err, ErrInvalidContext):
		return envelope.CodeInvalidContext
	case errors.Is(err, ErrOperatorFailed):
		return envelope.CodeOperatorFailed
	case errors.Is(err, context.DeadlineExceeded):
		return envelope.CodeTimeout
	}
	return envelope.CodeInternalError
}
