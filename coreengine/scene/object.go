package scene

import (
	"fmt"

	"github.com/blendmate/bridge/coreengine/commands"
	"github.com/blendmate/bridge/coreengine/pathres"
)

// Object is a scene object with a transform and a modifier stack.
type Object struct {
	name     string
	Type     string
	Data     string
	Location *Vector
	Rotation *Vector
	Scale    *Vector
	Hidden   bool
	Parent   *Object

	Modifiers *Collection[*Modifier]

	scene    *Scene
	selected bool
	props    map[string]any
}

func newObject(s *Scene, name, objType string) *Object {
	o := &Object{
		name:      name,
		Type:      objType,
		Modifiers: NewCollection[*Modifier](),
		scene:     s,
		props:     make(map[string]any),
	}
	onChange := func() { o.changed(false) }
	o.Location = NewVector(onChange, 0, 0, 0)
	o.Rotation = NewVector(onChange, 0, 0, 0)
	o.Scale = NewVector(onChange, 1, 1, 1)
	return o
}

// Name implements pathres.Named and commands.Object.
func (o *Object) Name() string { return o.name }

// Selected implements commands.Object.
func (o *Object) Selected() bool { return o.selected }

// SetSelected implements commands.Object.
func (o *Object) SetSelected(selected bool) {
	if o.selected == selected {
		return
	}
	o.selected = selected
	o.scene.selectionChanged()
}

// Rename implements commands.Object. The scene may add a suffix to keep
// names unique.
func (o *Object) Rename(name string) string {
	if name == o.name || name == "" {
		return o.name
	}
	old := o.name
	final := o.scene.objects.UniqueName(name)
	o.scene.objects.rename(old, final)
	o.name = final
	o.scene.notify("object_name_changed", map[string]any{"old_name": old, "object": final})
	return final
}

// AddModifier appends a modifier of modType and returns it.
func (o *Object) AddModifier(name, modType string) *Modifier {
	if name == "" {
		name = modType
	}
	m := newModifier(o, o.Modifiers.UniqueName(name), modType)
	o.Modifiers.Add(m)
	o.changed(true)
	return m
}

// SetProp sets a custom property.
func (o *Object) SetProp(name string, value any) {
	o.props[name] = value
}

func (o *Object) changed(geometry bool) {
	o.scene.objectChanged(o.name, geometry)
}

// =============================================================================
// ATTRIBUTES
// =============================================================================

// Attr implements pathres.Attributer.
func (o *Object) Attr(name string) (any, bool) {
	switch name {
	case "name":
		return o.name, true
	case "type":
		return o.Type, true
	case "data":
		return o.Data, true
	case "location":
		return o.Location, true
	case "rotation_euler":
		return o.Rotation, true
	case "scale":
		return o.Scale, true
	case "hide_viewport":
		return o.Hidden, true
	case "parent":
		if o.Parent == nil {
			return nil, true
		}
		return o.Parent, true
	case "modifiers":
		return o.Modifiers, true
	case "select":
		return o.selected, true
	}
	v, ok := o.props[name]
	return v, ok
}

// SetAttr implements pathres.AttrSetter.
func (o *Object) SetAttr(name string, value any) error {
	switch name {
	case "type", "data", "modifiers":
		return fmt.Errorf("%w: %s", pathres.ErrReadOnly, name)
	case "name":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: name must be a string", pathres.ErrTypeMismatch)
		}
		o.Rename(s)
		return nil
	case "location", "rotation_euler", "scale":
		vec, ok := value.([]float64)
		if !ok {
			return fmt.Errorf("%w: %s expects a list of floats", pathres.ErrTypeMismatch, name)
		}
		return o.vector(name).Set(vec)
	case "hide_viewport":
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("%w: hide_viewport expects a bool", pathres.ErrTypeMismatch)
		}
		o.Hidden = b
		o.changed(false)
		return nil
	case "select":
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("%w: select expects a bool", pathres.ErrTypeMismatch)
		}
		o.SetSelected(b)
		return nil
	case "parent":
		if value == nil {
			o.Parent = nil
		} else {
			p, ok := value.(*Object)
			if !ok {
				return fmt.Errorf("%w: parent expects an object", pathres.ErrTypeMismatch)
			}
			if p == o {
				return fmt.Errorf("%w: object cannot parent itself", pathres.ErrTypeMismatch)
			}
			o.Parent = p
		}
		o.changed(false)
		return nil
	}
	if _, ok := o.props[name]; !ok {
		return pathres.ErrNotFound
	}
	o.props[name] = value
	o.changed(false)
	return nil
}

func (o *Object) vector(name string) *Vector {
	switch name {
	case "location":
		return o.Location
	case "rotation_euler":
		return o.Rotation
	}
	return o.Scale
}

var (
	_ commands.Object     = (*Object)(nil)
	_ pathres.Attributer  = (*Object)(nil)
	_ pathres.AttrSetter  = (*Object)(nil)
	_ pathres.Named       = (*Object)(nil)
	_ pathres.Keyed       = (*Collection[*Object])(nil)
	_ pathres.Indexed     = (*Collection[*Object])(nil)
	_ pathres.AttrSetter  = (*Modifier)(nil)
	_ pathres.AttrSetter  = (*Datablock)(nil)
	_ pathres.IndexSetter = (*Vector)(nil)
	_ pathres.Lister      = (*Vector)(nil)
)

// =============================================================================
// VECTOR
// =============================================================================

// Vector is a fixed-length float vector that reports writes to its owner.
type Vector struct {
	vals     []float64
	onChange func()
}

// NewVector creates a vector with the given components.
func NewVector(onChange func(), vals ...float64) *Vector {
	return &Vector{vals: append([]float64(nil), vals...), onChange: onChange}
}

// Values returns a copy of the components.
func (v *Vector) Values() []float64 {
	return append([]float64(nil), v.vals...)
}

// Set replaces all components. The length must match.
func (v *Vector) Set(vals []float64) error {
	if len(vals) != len(v.vals) {
		return fmt.Errorf("%w: expected %d components, got %d", pathres.ErrTypeMismatch, len(v.vals), len(vals))
	}
	copy(v.vals, vals)
	v.fire()
	return nil
}

// Len implements pathres.Indexed.
func (v *Vector) Len() int { return len(v.vals) }

// At implements pathres.Indexed.
func (v *Vector) At(i int) (any, bool) {
	if i < 0 || i >= len(v.vals) {
		return nil, false
	}
	return v.vals[i], true
}

// SetAt implements pathres.IndexSetter.
func (v *Vector) SetAt(i int, value any) error {
	f, ok := value.(float64)
	if !ok {
		return fmt.Errorf("%w: expected float, got %T", pathres.ErrTypeMismatch, value)
	}
	v.vals[i] = f
	v.fire()
	return nil
}

// ToList implements pathres.Lister.
func (v *Vector) ToList() []any {
	out := make([]any, len(v.vals))
	for i, f := range v.vals {
		out[i] = f
	}
	return out
}

func (v *Vector) fire() {
	if v.onChange != nil {
		v.onChange()
	}
}
