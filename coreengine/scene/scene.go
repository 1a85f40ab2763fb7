// Package scene is an in-memory host object model.
//
// It stands in for the live 3D application when the bridge runs as a
// standalone process or under test: objects with transforms and modifier
// stacks, generic data blocks, selection, an undo history and a registry of
// callable operators. Every mutation is reported through a Notifier, the
// same way host change handlers feed the bridge.
//
// A Scene is not safe for concurrent use. Drive it from the host context.
package scene

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/blendmate/bridge/coreengine/commands"
	"github.com/blendmate/bridge/coreengine/envelope"
	"github.com/blendmate/bridge/coreengine/pathres"
)

// MaxUndo bounds the undo history.
const MaxUndo = 64

// Modes the scene can be in.
var Modes = []string{"OBJECT", "EDIT", "SCULPT", "POSE", "WEIGHT_PAINT", "TEXTURE_PAINT", "VERTEX_PAINT"}

// dataRoots are the data block collections every scene carries.
var dataRoots = []string{
	"meshes", "materials", "lights", "cameras", "worlds", "collections",
	"node_groups", "images", "textures", "actions", "scenes",
}

// Notifier receives change notifications.
type Notifier func(kind string, payload map[string]any, reason string)

// OperatorFunc implements one operator.
type OperatorFunc func(ctx context.Context, s *Scene, params map[string]any) (string, error)

// Scene is the in-memory host.
type Scene struct {
	objects *Collection[*Object]
	data    map[string]*Collection[*Datablock]

	active   *Object
	mode     string
	frame    int
	filepath string

	undo    []string
	undoErr error

	operators map[string]OperatorFunc
	notifier  Notifier
	reason    string
}

// New creates an empty scene with the stock operators registered.
func New() *Scene {
	s := &Scene{
		objects:   NewCollection[*Object](),
		data:      make(map[string]*Collection[*Datablock], len(dataRoots)),
		mode:      "OBJECT",
		frame:     1,
		operators: make(map[string]OperatorFunc),
		reason:    envelope.ReasonUser,
	}
	for _, root := range dataRoots {
		s.data[root] = NewCollection[*Datablock]()
	}
	s.data["scenes"].Add(NewDatablock("Scene", map[string]any{"frame_start": 1, "frame_end": 250}))
	registerStockOperators(s)
	return s
}

// NewDefault creates the startup scene: a selected, active cube plus a
// camera and a light.
func NewDefault() *Scene {
	s := New()
	s.AddData("meshes", "Cube", map[string]any{"vertices": 8, "polygons": 6})
	s.AddData("materials", "Material", map[string]any{"roughness": 0.5, "metallic": 0.0})
	s.AddData("cameras", "Camera", map[string]any{"lens": 50.0})
	s.AddData("lights", "Light", map[string]any{"energy": 1000.0, "type": "POINT"})

	cube := s.AddObject("Cube", "MESH")
	cube.Data = "Cube"
	cam := s.AddObject("Camera", "CAMERA")
	cam.Data = "Camera"
	_ = cam.Location.Set([]float64{7.36, -6.93, 4.96})
	light := s.AddObject("Light", "LIGHT")
	light.Data = "Light"
	_ = light.Location.Set([]float64{4.08, 1.01, 5.9})

	cube.selected = true
	s.active = cube
	return s
}

// SetNotifier installs the change listener.
func (s *Scene) SetNotifier(n Notifier) {
	s.notifier = n
}

// SetUpdateReason sets the reason attached to subsequent notifications and
// returns the previous one.
func (s *Scene) SetUpdateReason(reason string) string {
	prev := s.reason
	s.reason = reason
	return prev
}

func (s *Scene) notify(kind string, payload map[string]any) {
	if s.notifier != nil {
		s.notifier(kind, payload, s.reason)
	}
}

func (s *Scene) objectChanged(name string, geometry bool) {
	var geo []string
	if geometry {
		geo = []string{name}
	}
	s.notify("depsgraph_update", envelope.DepsgraphUpdatedBody([]string{name}, geo, s.reason, "", 0))
}

func (s *Scene) selectionChanged() {
	s.notify("selection_changed", envelope.SelectionChangedBody(s.ActiveObjectName(), s.SelectedNames(), s.mode))
}

// =============================================================================
// ROOT NAMESPACE
// =============================================================================

// Attr implements pathres.Attributer for the root collections.
func (s *Scene) Attr(name string) (any, bool) {
	if name == "objects" {
		return s.objects, true
	}
	c, ok := s.data[name]
	if !ok {
		return nil, false
	}
	return c, true
}

// Root implements commands.Host.
func (s *Scene) Root() pathres.Attributer {
	return s
}

// AddData adds a data block to a root collection and returns it.
func (s *Scene) AddData(root, name string, props map[string]any) *Datablock {
	c, ok := s.data[root]
	if !ok {
		c = NewCollection[*Datablock]()
		s.data[root] = c
	}
	d := NewDatablock(c.UniqueName(name), props)
	c.Add(d)
	return d
}

// =============================================================================
// OBJECTS
// =============================================================================

// AddObject creates an object with a unique name.
func (s *Scene) AddObject(name, objType string) *Object {
	o := newObject(s, s.objects.UniqueName(name), objType)
	s.objects.Add(o)
	s.objectChanged(o.name, true)
	return o
}

// RemoveObject deletes an object.
func (s *Scene) RemoveObject(name string) bool {
	o, ok := s.objects.Get(name)
	if !ok {
		return false
	}
	s.objects.Remove(name)
	for _, other := range s.objects.Items() {
		if other.Parent == o {
			other.Parent = nil
		}
	}
	if s.active == o {
		s.active = nil
	}
	s.objectChanged(name, true)
	if o.selected {
		s.selectionChanged()
	}
	return true
}

// Objects returns all objects in creation order.
func (s *Scene) Objects() []*Object {
	return s.objects.Items()
}

// Lookup returns the concrete object named name.
func (s *Scene) Lookup(name string) (*Object, bool) {
	return s.objects.Get(name)
}

// Object implements commands.Host.
func (s *Scene) Object(name string) (commands.Object, bool) {
	o, ok := s.objects.Get(name)
	if !ok {
		return nil, false
	}
	return o, true
}

// DeselectAll implements commands.Host.
func (s *Scene) DeselectAll() error {
	changed := false
	for _, o := range s.objects.Items() {
		if o.selected {
			o.selected = false
			changed = true
		}
	}
	if changed {
		s.selectionChanged()
	}
	return nil
}

// SetActiveObject implements commands.Host.
func (s *Scene) SetActiveObject(obj commands.Object) error {
	o, ok := obj.(*Object)
	if !ok || o.scene != s {
		return fmt.Errorf("%w: object does not belong to this scene", commands.ErrInvalidContext)
	}
	if s.active == o {
		return nil
	}
	s.active = o
	s.selectionChanged()
	return nil
}

// ActiveObject returns the active object, or nil.
func (s *Scene) ActiveObject() *Object {
	return s.active
}

// ActiveObjectName returns the active object's name, or nil when none.
func (s *Scene) ActiveObjectName() any {
	if s.active == nil {
		return nil
	}
	return s.active.name
}

// SelectedNames returns the selected object names, sorted.
func (s *Scene) SelectedNames() []string {
	out := make([]string, 0)
	for _, o := range s.objects.Items() {
		if o.selected {
			out = append(out, o.name)
		}
	}
	sort.Strings(out)
	return out
}

// SelectedObjects returns the selected objects in creation order.
func (s *Scene) SelectedObjects() []*Object {
	var out []*Object
	for _, o := range s.objects.Items() {
		if o.selected {
			out = append(out, o)
		}
	}
	return out
}

// =============================================================================
// MODE, TIMELINE, FILE
// =============================================================================

// Mode returns the interaction mode.
func (s *Scene) Mode() string {
	return s.mode
}

// SetMode switches the interaction mode.
func (s *Scene) SetMode(mode string) error {
	mode = strings.ToUpper(mode)
	for _, m := range Modes {
		if m == mode {
			if mode != "OBJECT" && s.active == nil {
				return fmt.Errorf("%w: %s mode needs an active object", commands.ErrInvalidContext, mode)
			}
			s.mode = mode
			return nil
		}
	}
	return fmt.Errorf("%w: unknown mode %s", pathres.ErrTypeMismatch, mode)
}

// Frame returns the current frame.
func (s *Scene) Frame() int {
	return s.frame
}

// SetFrame moves the playhead.
func (s *Scene) SetFrame(frame int) {
	if frame == s.frame {
		return
	}
	s.frame = frame
	s.notify("frame_changed", envelope.FrameChangedBody(frame))
}

// Filepath returns the saved file path, empty when unsaved.
func (s *Scene) Filepath() string {
	return s.filepath
}

// Save records a save to path.
func (s *Scene) Save(path string) {
	s.filepath = path
	s.notify("save_post", envelope.FileSavedBody(path))
}

// =============================================================================
// UNDO
// =============================================================================

// PushUndo implements commands.Host.
func (s *Scene) PushUndo(message string) error {
	if s.undoErr != nil {
		return s.undoErr
	}
	s.undo = append(s.undo, message)
	if len(s.undo) > MaxUndo {
		s.undo = s.undo[len(s.undo)-MaxUndo:]
	}
	return nil
}

// FailUndo makes PushUndo return err until cleared with nil.
func (s *Scene) FailUndo(err error) {
	s.undoErr = err
}

// UndoHistory returns the recorded checkpoints, oldest first.
func (s *Scene) UndoHistory() []string {
	return append([]string(nil), s.undo...)
}

// =============================================================================
// OPERATORS
// =============================================================================

// RegisterOperator adds or replaces an operator under "category.name".
func (s *Scene) RegisterOperator(full string, fn OperatorFunc) {
	s.operators[full] = fn
}

// HasOperatorCategory implements commands.Host.
func (s *Scene) HasOperatorCategory(category string) bool {
	prefix := category + "."
	for name := range s.operators {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// HasOperator implements commands.Host.
func (s *Scene) HasOperator(category, name string) bool {
	_, ok := s.operators[category+"."+name]
	return ok
}

// CallOperator implements commands.Host.
func (s *Scene) CallOperator(ctx context.Context, category, name string, params map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fn, ok := s.operators[category+"."+name]
	if !ok {
		return "", fmt.Errorf("%w: %s.%s", pathres.ErrNotFound, category, name)
	}
	if params == nil {
		params = map[string]any{}
	}
	return fn(ctx, s, params)
}

var _ commands.Host = (*Scene)(nil)
