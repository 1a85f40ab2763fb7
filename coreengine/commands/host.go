package commands

import (
	"context"
	"fmt"

	"github.com/blendmate/bridge/coreengine/envelope"
	"github.com/blendmate/bridge/coreengine/pathres"
	"github.com/blendmate/bridge/coreengine/typeutil"
)

// =============================================================================
// REQUEST
// =============================================================================

// Request is one counterpart command.
type Request struct {
	ID     string         `json:"id"`
	Action string         `json:"action"`
	Target string         `json:"target"`
	Params map[string]any `json:"params"`
}

// RequestFromMap reads a request from a decoded message body. Params that
// are not an object are treated as empty.
func RequestFromMap(m map[string]any) *Request {
	req := &Request{
		ID:     typeutil.StringDefault(m["id"], ""),
		Action: typeutil.StringDefault(m["action"], ""),
		Target: typeutil.StringDefault(m["target"], ""),
		Params: typeutil.MapDefault(m["params"], map[string]any{}),
	}
	return req
}

// Param returns a parameter and whether it is present and non-null.
func (r *Request) Param(name string) (any, bool) {
	v, ok := r.Params[name]
	return v, ok && v != nil
}

// StringParam returns a string parameter, or def when absent.
func (r *Request) StringParam(name, def string) (string, error) {
	v, ok := r.Param(name)
	if !ok {
		return def, nil
	}
	s, ok := typeutil.String(v)
	if !ok {
		return "", NewCommandError(envelope.CodeInvalidParams, fmt.Sprintf("parameter '%s' must be a string", name), nil)
	}
	return s, nil
}

// BoolParam returns a bool parameter, or def when absent.
func (r *Request) BoolParam(name string, def bool) (bool, error) {
	v, ok := r.Param(name)
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, NewCommandError(envelope.CodeInvalidParams, fmt.Sprintf("parameter '%s' must be a boolean", name), nil)
	}
	return b, nil
}

// =============================================================================
// HOST
// =============================================================================

// Object is a selectable, renameable host object.
type Object interface {
	Name() string
	// Rename applies name and returns the name the host actually assigned,
	// which may carry a uniqueness suffix.
	Rename(name string) string
	Selected() bool
	SetSelected(selected bool)
}

// Host is the live object model commands operate on. All methods are
// called from the host's single safe execution context.
type Host interface {
	// Root is the attribute namespace paths resolve against.
	Root() pathres.Attributer

	Object(name string) (Object, bool)
	DeselectAll() error
	SetActiveObject(obj Object) error

	// PushUndo records an undo checkpoint before a mutation.
	PushUndo(message string) error

	HasOperatorCategory(category string) bool
	HasOperator(category, name string) bool
	// CallOperator runs an operator and returns its status string.
	CallOperator(ctx context.Context, category, name string, params map[string]any) (string, error)
}
