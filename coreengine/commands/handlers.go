package commands

import (
	"context"
	"fmt"

	"github.com/blendmate/bridge/coreengine/envelope"
	"github.com/blendmate/bridge/coreengine/observability"
	"github.com/blendmate/bridge/coreengine/pathres"
)

// Built-in action names.
const (
	ActionPropertyGet      = "property.get"
	ActionPropertySet      = "property.set"
	ActionPropertySetBatch = "property.set_batch"
	ActionObjectSelect     = "object.select"
	ActionObjectRename     = "object.rename"
	ActionOperatorCall     = "operator.call"
	ActionGetCapabilities  = "get_capabilities"
)

// undoPrefix tags every undo checkpoint the bridge creates.
const undoPrefix = "Blendmate: "

// Builtins holds the dependencies of the built-in handlers.
type Builtins struct {
	host     Host
	policy   *OperatorPolicy
	roots    []string
	logger   observability.Logger
	registry *Registry
}

// RegisterBuiltins registers every built-in handler on reg.
func RegisterBuiltins(reg *Registry, host Host, policy *OperatorPolicy, logger observability.Logger) (*Builtins, error) {
	if policy == nil {
		policy = DefaultOperatorPolicy()
	}
	b := &Builtins{
		host:     host,
		policy:   policy,
		roots:    pathres.AllowedRoots,
		logger:   observability.OrNop(logger),
		registry: reg,
	}

	handlers := []struct {
		action string
		fn     HandlerFunc
	}{
		{ActionPropertyGet, b.propertyGet},
		{ActionPropertySet, b.propertySet},
		{ActionPropertySetBatch, b.propertySetBatch},
		{ActionObjectSelect, b.objectSelect},
		{ActionObjectRename, b.objectRename},
		{ActionOperatorCall, b.operatorCall},
		{ActionGetCapabilities, b.getCapabilities},
	}
	for _, h := range handlers {
		if err := reg.Register(h.action, h.fn); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *Builtins) resolver() *pathres.Resolver {
	return pathres.NewResolver(b.host.Root(), b.roots...)
}

// pushUndo records a checkpoint. Failure never aborts the mutation.
func (b *Builtins) pushUndo(message string) {
	if err := b.host.PushUndo(undoPrefix + message); err != nil {
		b.logger.Warn("undo_push_failed", "message", message, "error", err.Error())
	}
}

// =============================================================================
// PROPERTY HANDLERS
// =============================================================================

func (b *Builtins) propertyGet(_ context.Context, req *Request) *Result {
	path, err := req.StringParam("path", "")
	if err != nil {
		return FromError(err)
	}
	value, err := b.resolver().Get(req.Target, path)
	if err != nil {
		return FromError(err)
	}
	return OK(pathres.ToJSONValue(value))
}

func (b *Builtins) propertySet(_ context.Context, req *Request) *Result {
	value, ok := req.Param("value")
	if !ok {
		return Fail(envelope.CodeInvalidParams, "Missing 'value' parameter")
	}

	target := req.Target
	path, err := req.StringParam("path", "")
	if err != nil {
		return FromError(err)
	}
	if _, given := req.Param("path"); !given {
		target, path, err = pathres.SplitTarget(req.Target)
		if err != nil {
			return Fail(envelope.CodeInvalidParams,
				"Cannot parse target path: %s. Expected format: collection['name'].property", req.Target)
		}
	}
	if path == "" {
		return Fail(envelope.CodeInvalidParams, "Property path is required")
	}

	resolver := b.resolver()
	if _, err := resolver.Get(target, ""); err != nil {
		return FromError(NewCommandError(CodeOf(err), fmt.Sprintf("Cannot resolve target '%s'", target), err))
	}

	value, res := b.resolveReference(path, value)
	if res != nil {
		return res
	}

	b.pushUndo(fmt.Sprintf("Set %s.%s", target, path))
	if err := resolver.Set(target, path, value); err != nil {
		return FromError(err)
	}

	current, err := resolver.Get(target, path)
	if err != nil {
		return FromError(err)
	}
	return OK(pathres.ToJSONValue(current))
}

// resolveReference turns a string assigned to an "object" property into the
// named object.
func (b *Builtins) resolveReference(path string, value any) (any, *Result) {
	name, ok := value.(string)
	if !ok {
		return value, nil
	}
	last, err := pathres.LastSegment(path)
	if err != nil || last.Kind != pathres.SegmentAttr || last.Name != "object" {
		return value, nil
	}
	obj, found := b.host.Object(name)
	if !found {
		return nil, Fail(envelope.CodeNotFound, "Object '%s' not found for reference", name)
	}
	return obj, nil
}

func (b *Builtins) propertySetBatch(_ context.Context, req *Request) *Result {
	raw, _ := req.Param("properties")
	items, _ := raw.([]any)
	if len(items) == 0 {
		return Fail(envelope.CodeInvalidParams, "No properties to set")
	}

	b.pushUndo(fmt.Sprintf("Batch update %s", req.Target))

	resolver := b.resolver()
	count := 0
	var warnings []string
	for i, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("item %d: expected object", i))
			continue
		}
		path, _ := entry["path"].(string)
		value, hasValue := entry["value"]
		if path == "" || !hasValue || value == nil {
			b.logger.Warn("batch_item_skipped", "index", i, "target", req.Target)
			warnings = append(warnings, fmt.Sprintf("item %d: missing path or value", i))
			continue
		}
		if err := resolver.Set(req.Target, path, value); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		count++
	}

	res := OK(map[string]any{"count": count})
	if len(warnings) > 0 {
		res.WithWarnings(warnings...)
	}
	return res
}

// =============================================================================
// OBJECT HANDLERS
// =============================================================================

func (b *Builtins) objectSelect(_ context.Context, req *Request) *Result {
	obj, ok := b.host.Object(req.Target)
	if !ok {
		return Fail(envelope.CodeNotFound, "Object '%s' not found", req.Target)
	}
	mode, err := req.StringParam("mode", "set")
	if err != nil {
		return FromError(err)
	}
	makeActive, err := req.BoolParam("active", true)
	if err != nil {
		return FromError(err)
	}

	switch mode {
	case "set", "add", "remove", "toggle":
	default:
		return Fail(envelope.CodeInvalidParams, "Unknown mode: %s", mode)
	}

	b.pushUndo(fmt.Sprintf("Select %s", req.Target))
	switch mode {
	case "set":
		if err := b.host.DeselectAll(); err != nil {
			return FromError(err)
		}
		obj.SetSelected(true)
	case "add":
		obj.SetSelected(true)
	case "remove":
		obj.SetSelected(false)
	case "toggle":
		obj.SetSelected(!obj.Selected())
	}

	active := makeActive && obj.Selected()
	if active {
		if err := b.host.SetActiveObject(obj); err != nil {
			return FromError(err)
		}
	}
	return OK(map[string]any{"name": obj.Name(), "selected": obj.Selected(), "active": active})
}

func (b *Builtins) objectRename(_ context.Context, req *Request) *Result {
	obj, ok := b.host.Object(req.Target)
	if !ok {
		return Fail(envelope.CodeNotFound, "Object '%s' not found", req.Target)
	}
	name, err := req.StringParam("name", "")
	if err != nil {
		return FromError(err)
	}
	if name == "" {
		return Fail(envelope.CodeInvalidParams, "Missing 'name' parameter")
	}

	b.pushUndo(fmt.Sprintf("Rename %s to %s", req.Target, name))
	return OK(map[string]any{"name": obj.Rename(name)})
}

// =============================================================================
// OPERATOR HANDLERS
// =============================================================================

func (b *Builtins) operatorCall(ctx context.Context, req *Request) *Result {
	category, name, err := ParseOperator(req.Target)
	if err != nil {
		return FromError(err)
	}
	if err := b.policy.Check(category, name); err != nil {
		return FromError(err)
	}
	full := category + "." + name
	if !b.host.HasOperatorCategory(category) {
		return Fail(envelope.CodeNotFound, "Unknown operator category: %s", category)
	}
	if !b.host.HasOperator(category, name) {
		return Fail(envelope.CodeNotFound, "Unknown operator: %s", full)
	}

	b.pushUndo(full)
	status, err := b.host.CallOperator(ctx, category, name, req.Params)
	if err != nil {
		code := CodeOf(err)
		if code == envelope.CodeInternalError {
			code = envelope.CodeOperatorFailed
		}
		return FromError(NewCommandError(code, fmt.Sprintf("Operator '%s' failed", full), err))
	}
	return OK(map[string]any{"result": status})
}

func (b *Builtins) getCapabilities(_ context.Context, _ *Request) *Result {
	caps := &Capabilities{
		Operators:          OperatorCatalog,
		Modifiers:          ModifierCatalog,
		ObjectTypes:        ObjectTypes,
		PrimitiveMeshes:    PrimitiveMeshes,
		OperatorCategories: b.policy.Categories(),
		BlockedOperators:   b.policy.Blocked(),
		Actions:            b.registry.Actions(),
	}
	return OK(caps.ToMap())
}
