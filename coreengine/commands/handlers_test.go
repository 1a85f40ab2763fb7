package commands_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blendmate/bridge/coreengine/commands"
	"github.com/blendmate/bridge/coreengine/envelope"
	"github.com/blendmate/bridge/coreengine/scene"
	"github.com/blendmate/bridge/coreengine/testutil"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fixture struct {
	scene    *scene.Scene
	registry *commands.Registry
	logger   *testutil.MockLogger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := scene.NewDefault()
	logger := testutil.NewMockLogger()
	reg := commands.NewRegistry(logger)
	_, err := commands.RegisterBuiltins(reg, s, nil, logger)
	require.NoError(t, err)
	return &fixture{scene: s, registry: reg, logger: logger}
}

func (f *fixture) do(action, target string, params map[string]any) *commands.Result {
	if params == nil {
		params = map[string]any{}
	}
	return f.registry.Handle(context.Background(), &commands.Request{
		ID:     "req-1",
		Action: action,
		Target: target,
		Params: params,
	})
}

func (f *fixture) cube(t *testing.T) *scene.Object {
	t.Helper()
	o, ok := f.scene.Lookup("Cube")
	require.True(t, ok)
	return o
}

func TestRegisterBuiltins_Twice(t *testing.T) {
	f := newFixture(t)
	_, err := commands.RegisterBuiltins(f.registry, f.scene, nil, nil)
	assert.Error(t, err)
}

// =============================================================================
// PROPERTY.GET
// =============================================================================

func TestPropertyGet(t *testing.T) {
	f := newFixture(t)

	res := f.do(commands.ActionPropertyGet, "objects['Cube']", map[string]any{"path": "location"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, []any{0.0, 0.0, 0.0}, res.Data)

	res = f.do(commands.ActionPropertyGet, "objects['Cube']", map[string]any{"path": "scale[-1]"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 1.0, res.Data)

	res = f.do(commands.ActionPropertyGet, "objects['Cube']", nil)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "Cube", res.Data, "data blocks project to their name")
}

func TestPropertyGet_Errors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		target string
		path   string
		want   envelope.ErrorCode
	}{
		{"unknown root", "__import__['os']", "", envelope.CodeNotFound},
		{"non-whitelisted root", "bpy['os']", "", envelope.CodeNotFound},
		{"missing object", "objects['Ghost']", "location", envelope.CodeNotFound},
		{"missing property", "objects['Cube']", "nope", envelope.CodeNotFound},
		{"bad syntax", "objects['Cube'", "", envelope.CodeInvalidParams},
		{"index out of range", "objects['Cube']", "location[7]", envelope.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.do(commands.ActionPropertyGet, tt.target, map[string]any{"path": tt.path})
			assert.False(t, res.Success)
			assert.Equal(t, tt.want, res.Code, res.Error)
		})
	}
}

// =============================================================================
// PROPERTY.SET
// =============================================================================

func TestPropertySet_WithPath(t *testing.T) {
	f := newFixture(t)

	res := f.do(commands.ActionPropertySet, "objects['Cube']", map[string]any{
		"path":  "location",
		"value": []any{1.0, 2.0, 3.0},
	})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, []any{1.0, 2.0, 3.0}, res.Data)
	assert.Equal(t, []float64{1, 2, 3}, f.cube(t).Location.Values())
	assert.Equal(t, []string{"Blendmate: Set objects['Cube'].location"}, f.scene.UndoHistory())
}

func TestPropertySet_SplitsTarget(t *testing.T) {
	f := newFixture(t)

	res := f.do(commands.ActionPropertySet, "objects['Cube'].location[2]", map[string]any{"value": 4.5})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 4.5, res.Data)
	assert.Equal(t, []float64{0, 0, 4.5}, f.cube(t).Location.Values())
}

func TestPropertySet_FalsyValuesAreValid(t *testing.T) {
	f := newFixture(t)
	f.cube(t).AddModifier("Bevel", "BEVEL")

	res := f.do(commands.ActionPropertySet, "objects['Cube']", map[string]any{
		"path":  "modifiers['Bevel'].segments",
		"value": 0.0,
	})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 0, res.Data)

	res = f.do(commands.ActionPropertySet, "objects['Cube']", map[string]any{
		"path":  "modifiers['Bevel'].show_viewport",
		"value": false,
	})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, false, res.Data)
}

func TestPropertySet_ObjectReference(t *testing.T) {
	f := newFixture(t)
	f.cube(t).AddModifier("Boolean", "BOOLEAN")

	res := f.do(commands.ActionPropertySet, "objects['Cube'].modifiers['Boolean'].object", map[string]any{"value": "Light"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "Light", res.Data)

	res = f.do(commands.ActionPropertySet, "objects['Cube'].modifiers['Boolean'].object", map[string]any{"value": "Ghost"})
	assert.Equal(t, envelope.CodeNotFound, res.Code)
	assert.Equal(t, "Object 'Ghost' not found for reference", res.Error)
}

func TestPropertySet_Errors(t *testing.T) {
	f := newFixture(t)

	res := f.do(commands.ActionPropertySet, "objects['Cube']", map[string]any{"path": "location"})
	assert.Equal(t, envelope.CodeInvalidParams, res.Code)
	assert.Equal(t, "Missing 'value' parameter", res.Error)

	res = f.do(commands.ActionPropertySet, "objects", map[string]any{"value": 1.0})
	assert.Equal(t, envelope.CodeInvalidParams, res.Code)
	assert.Contains(t, res.Error, "Cannot parse target path")

	res = f.do(commands.ActionPropertySet, "objects['Cube']", map[string]any{"value": 1.0})
	assert.Equal(t, envelope.CodeInvalidParams, res.Code)
	assert.Equal(t, "Property path is required", res.Error)

	res = f.do(commands.ActionPropertySet, "objects['Ghost']", map[string]any{"path": "location", "value": []any{1.0, 1.0, 1.0}})
	assert.Equal(t, envelope.CodeNotFound, res.Code)
	assert.Contains(t, res.Error, "Cannot resolve target 'objects['Ghost']'")

	res = f.do(commands.ActionPropertySet, "objects['Cube']", map[string]any{"path": "location", "value": "up"})
	assert.Equal(t, envelope.CodeInvalidParams, res.Code)

	res = f.do(commands.ActionPropertySet, "objects['Cube']", map[string]any{"path": "type", "value": "LIGHT"})
	assert.Equal(t, envelope.CodeInvalidParams, res.Code)
}

func TestPropertySet_UndoFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.scene.FailUndo(errors.New("undo unavailable"))

	res := f.do(commands.ActionPropertySet, "objects['Cube'].hide_viewport", map[string]any{"value": true})
	require.True(t, res.Success, res.Error)
	assert.True(t, f.cube(t).Hidden)
	assert.True(t, f.logger.HasLog("warn", "undo_push_failed"))
}

// =============================================================================
// PROPERTY.SET_BATCH
// =============================================================================

func TestPropertySetBatch_PartialFailure(t *testing.T) {
	f := newFixture(t)

	res := f.do(commands.ActionPropertySetBatch, "objects['Cube']", map[string]any{
		"properties": []any{
			map[string]any{"path": "location[0]", "value": 1.0},
			map[string]any{"path": "no_such_prop", "value": 2.0},
			map[string]any{"path": "scale", "value": []any{2.0, 2.0, 2.0}},
			map[string]any{"path": "hide_viewport", "value": false},
		},
	})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, map[string]any{"count": 3}, res.Data)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "no_such_prop")

	cube := f.cube(t)
	assert.Equal(t, []float64{1, 0, 0}, cube.Location.Values())
	assert.Equal(t, []float64{2, 2, 2}, cube.Scale.Values())
	assert.Equal(t, []string{"Blendmate: Batch update objects['Cube']"}, f.scene.UndoHistory(), "one checkpoint for the batch")
}

func TestPropertySetBatch_MalformedItems(t *testing.T) {
	f := newFixture(t)

	res := f.do(commands.ActionPropertySetBatch, "objects['Cube']", map[string]any{
		"properties": []any{
			"not-an-object",
			map[string]any{"path": "location[1]"},
			map[string]any{"path": "location[1]", "value": nil},
			map[string]any{"path": "location[1]", "value": 0.0},
		},
	})
	require.True(t, res.Success)
	assert.Equal(t, map[string]any{"count": 1}, res.Data)
	assert.Len(t, res.Warnings, 3)
}

func TestPropertySetBatch_Empty(t *testing.T) {
	f := newFixture(t)
	res := f.do(commands.ActionPropertySetBatch, "objects['Cube']", map[string]any{"properties": []any{}})
	assert.Equal(t, envelope.CodeInvalidParams, res.Code)
	assert.Equal(t, "No properties to set", res.Error)
}

// =============================================================================
// OBJECT HANDLERS
// =============================================================================

func TestObjectSelect_Modes(t *testing.T) {
	f := newFixture(t)

	res := f.do(commands.ActionObjectSelect, "Light", nil)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, []string{"Light"}, f.scene.SelectedNames())
	assert.Equal(t, "Light", f.scene.ActiveObjectName())

	res = f.do(commands.ActionObjectSelect, "Camera", map[string]any{"mode": "add", "active": false})
	require.True(t, res.Success)
	assert.Equal(t, []string{"Camera", "Light"}, f.scene.SelectedNames())
	assert.Equal(t, "Light", f.scene.ActiveObjectName())

	res = f.do(commands.ActionObjectSelect, "Light", map[string]any{"mode": "remove"})
	require.True(t, res.Success)
	assert.Equal(t, []string{"Camera"}, f.scene.SelectedNames())
	assert.Equal(t, false, res.Data.(map[string]any)["active"])

	res = f.do(commands.ActionObjectSelect, "Camera", map[string]any{"mode": "toggle"})
	require.True(t, res.Success)
	assert.Empty(t, f.scene.SelectedNames())
}

func TestObjectSelect_Errors(t *testing.T) {
	f := newFixture(t)

	res := f.do(commands.ActionObjectSelect, "Ghost", nil)
	assert.Equal(t, envelope.CodeNotFound, res.Code)

	res = f.do(commands.ActionObjectSelect, "Cube", map[string]any{"mode": "explode"})
	assert.Equal(t, envelope.CodeInvalidParams, res.Code)
	assert.Equal(t, "Unknown mode: explode", res.Error)

	res = f.do(commands.ActionObjectSelect, "Cube", map[string]any{"active": "yes"})
	assert.Equal(t, envelope.CodeInvalidParams, res.Code)
}

func TestObjectRename(t *testing.T) {
	f := newFixture(t)

	res := f.do(commands.ActionObjectRename, "Cube", map[string]any{"name": "Box"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, map[string]any{"name": "Box"}, res.Data)

	res = f.do(commands.ActionObjectRename, "Light", map[string]any{"name": "Box"})
	require.True(t, res.Success)
	assert.Equal(t, map[string]any{"name": "Box.001"}, res.Data, "collisions get a suffix")

	res = f.do(commands.ActionObjectRename, "Camera", nil)
	assert.Equal(t, envelope.CodeInvalidParams, res.Code)

	res = f.do(commands.ActionObjectRename, "Cube", map[string]any{"name": "Again"})
	assert.Equal(t, envelope.CodeNotFound, res.Code)

	assert.Equal(t, []string{
		"Blendmate: Rename Cube to Box",
		"Blendmate: Rename Light to Box",
	}, f.scene.UndoHistory())
}

// =============================================================================
// OPERATOR.CALL
// =============================================================================

func TestOperatorCall_Success(t *testing.T) {
	f := newFixture(t)

	res := f.do(commands.ActionOperatorCall, "mesh.primitive_uv_sphere_add", map[string]any{
		"location": []any{0.0, 0.0, 2.0},
	})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, map[string]any{"result": scene.StatusFinished}, res.Data)

	sphere, ok := f.scene.Lookup("Sphere")
	require.True(t, ok)
	assert.Equal(t, []float64{0, 0, 2}, sphere.Location.Values())
	assert.Equal(t, "Sphere", f.scene.ActiveObjectName())
	assert.Equal(t, []string{"Blendmate: mesh.primitive_uv_sphere_add"}, f.scene.UndoHistory())
}

func TestOperatorCall_Policy(t *testing.T) {
	f := newFixture(t)

	res := f.do(commands.ActionOperatorCall, "wm.quit_blender", nil)
	assert.Equal(t, envelope.CodePermissionDenied, res.Code)
	assert.Contains(t, res.Error, "blocked for security")

	res = f.do(commands.ActionOperatorCall, "script.python_file_run", map[string]any{"filepath": "/tmp/x.py"})
	assert.Equal(t, envelope.CodePermissionDenied, res.Code)

	res = f.do(commands.ActionOperatorCall, "render.render", nil)
	assert.Equal(t, envelope.CodePermissionDenied, res.Code)
	assert.Contains(t, res.Error, "is not allowed")

	assert.Empty(t, f.scene.UndoHistory(), "rejected operators never checkpoint")
}

func TestOperatorCall_Failures(t *testing.T) {
	f := newFixture(t)

	res := f.do(commands.ActionOperatorCall, "object.nonexistent", nil)
	assert.Equal(t, envelope.CodeNotFound, res.Code)
	assert.Equal(t, "Unknown operator: object.nonexistent", res.Error)

	res = f.do(commands.ActionOperatorCall, "pose.anything", nil)
	assert.Equal(t, envelope.CodeNotFound, res.Code)
	assert.Equal(t, "Unknown operator category: pose", res.Error)

	res = f.do(commands.ActionOperatorCall, "not-an-operator", nil)
	assert.Equal(t, envelope.CodeInvalidParams, res.Code)

	res = f.do(commands.ActionOperatorCall, "object.modifier_add", map[string]any{"type": "FLUFFY"})
	assert.Equal(t, envelope.CodeOperatorFailed, res.Code)

	require.NoError(t, f.scene.DeselectAll())
	res = f.do(commands.ActionOperatorCall, "transform.translate", map[string]any{"value": []any{1.0, 0.0, 0.0}})
	assert.Equal(t, envelope.CodeInvalidContext, res.Code)
}

func TestOperatorCall_CancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := f.registry.Handle(ctx, &commands.Request{Action: commands.ActionOperatorCall, Target: "object.delete"})
	assert.False(t, res.Success)
	assert.Equal(t, envelope.CodeOperatorFailed, res.Code)
}

// =============================================================================
// GET_CAPABILITIES
// =============================================================================

func TestGetCapabilities(t *testing.T) {
	f := newFixture(t)

	res := f.do(commands.ActionGetCapabilities, "", nil)
	require.True(t, res.Success)

	caps, ok := res.Data.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, caps["operators"], "mesh.primitive_cube_add")
	assert.Contains(t, caps["modifiers"], "BEVEL")
	assert.Contains(t, caps["object_types"], "MESH")
	assert.Contains(t, caps["primitive_meshes"], "monkey")
	assert.Contains(t, caps["operator_categories"], "mesh")
	assert.Contains(t, caps["blocked_operators"], "wm.quit_blender")
	assert.Contains(t, caps["actions"], commands.ActionOperatorCall)
}
