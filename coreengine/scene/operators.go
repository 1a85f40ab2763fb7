package scene

import (
	"context"
	"fmt"
	"strings"

	"github.com/blendmate/bridge/coreengine/commands"
)

// Operator results, matching the host's status sets.
const (
	StatusFinished  = "{'FINISHED'}"
	StatusCancelled = "{'CANCELLED'}"
)

// primitives maps operator suffixes to default object names.
var primitives = map[string]string{
	"cube":       "Cube",
	"plane":      "Plane",
	"circle":     "Circle",
	"grid":       "Grid",
	"uv_sphere":  "Sphere",
	"ico_sphere": "Icosphere",
	"cylinder":   "Cylinder",
	"cone":       "Cone",
	"torus":      "Torus",
	"monkey":     "Suzanne",
}

func registerStockOperators(s *Scene) {
	for shape, name := range primitives {
		s.RegisterOperator("mesh.primitive_"+shape+"_add", primitiveAdd(name))
	}
	s.RegisterOperator("object.delete", objectDelete)
	s.RegisterOperator("object.duplicate", objectDuplicate)
	s.RegisterOperator("object.select_all", objectSelectAll)
	s.RegisterOperator("object.shade_smooth", shade(true))
	s.RegisterOperator("object.shade_flat", shade(false))
	s.RegisterOperator("object.modifier_add", modifierAdd)
	s.RegisterOperator("object.modifier_remove", modifierRemove)
	s.RegisterOperator("object.mode_set", modeSet)
	s.RegisterOperator("transform.translate", translate)
	s.RegisterOperator("screen.frame_jump", frameJump)
	s.RegisterOperator("wm.save_mainfile", saveMainfile)
	s.RegisterOperator("wm.quit_blender", func(context.Context, *Scene, map[string]any) (string, error) {
		return StatusFinished, nil
	})
}

// =============================================================================
// OBJECT OPERATORS
// =============================================================================

func primitiveAdd(defaultName string) OperatorFunc {
	return func(_ context.Context, s *Scene, params map[string]any) (string, error) {
		if err := requireObjectMode(s); err != nil {
			return "", err
		}
		mesh := s.AddData("meshes", defaultName, nil)
		o := s.AddObject(defaultName, "MESH")
		o.Data = mesh.Name()
		if loc, ok, err := floatList(params, "location", 3); err != nil {
			return "", err
		} else if ok {
			_ = o.Location.Set(loc)
		}
		if rot, ok, err := floatList(params, "rotation", 3); err != nil {
			return "", err
		} else if ok {
			_ = o.Rotation.Set(rot)
		}
		_ = s.DeselectAll()
		o.SetSelected(true)
		_ = s.SetActiveObject(o)
		return StatusFinished, nil
	}
}

func objectDelete(_ context.Context, s *Scene, _ map[string]any) (string, error) {
	if err := requireObjectMode(s); err != nil {
		return "", err
	}
	selected := s.SelectedObjects()
	if len(selected) == 0 {
		return StatusCancelled, nil
	}
	for _, o := range selected {
		s.RemoveObject(o.name)
	}
	return StatusFinished, nil
}

func objectDuplicate(_ context.Context, s *Scene, _ map[string]any) (string, error) {
	if err := requireObjectMode(s); err != nil {
		return "", err
	}
	selected := s.SelectedObjects()
	if len(selected) == 0 {
		return StatusCancelled, nil
	}
	_ = s.DeselectAll()
	var last *Object
	for _, src := range selected {
		dup := s.AddObject(src.name, src.Type)
		dup.Data = src.Data
		_ = dup.Location.Set(src.Location.Values())
		_ = dup.Rotation.Set(src.Rotation.Values())
		_ = dup.Scale.Set(src.Scale.Values())
		for _, m := range src.Modifiers.Items() {
			copied := dup.AddModifier(m.name, m.Type)
			for k, v := range m.props {
				copied.props[k] = v
			}
		}
		dup.SetSelected(true)
		last = dup
	}
	_ = s.SetActiveObject(last)
	return StatusFinished, nil
}

func objectSelectAll(_ context.Context, s *Scene, params map[string]any) (string, error) {
	action := "TOGGLE"
	if a, ok := params["action"].(string); ok {
		action = strings.ToUpper(a)
	}
	objs := s.Objects()
	switch action {
	case "SELECT":
		for _, o := range objs {
			o.SetSelected(true)
		}
	case "DESELECT":
		_ = s.DeselectAll()
	case "INVERT":
		for _, o := range objs {
			o.SetSelected(!o.selected)
		}
	case "TOGGLE":
		if len(s.SelectedObjects()) > 0 {
			_ = s.DeselectAll()
		} else {
			for _, o := range objs {
				o.SetSelected(true)
			}
		}
	default:
		return "", fmt.Errorf("%w: unknown select_all action %s", commands.ErrOperatorFailed, action)
	}
	return StatusFinished, nil
}

func shade(smooth bool) OperatorFunc {
	return func(_ context.Context, s *Scene, _ map[string]any) (string, error) {
		meshes := 0
		for _, o := range s.SelectedObjects() {
			if o.Type != "MESH" {
				continue
			}
			o.SetProp("shade_smooth", smooth)
			o.changed(true)
			meshes++
		}
		if meshes == 0 {
			return "", fmt.Errorf("%w: no selected mesh objects", commands.ErrInvalidContext)
		}
		return StatusFinished, nil
	}
}

func modifierAdd(_ context.Context, s *Scene, params map[string]any) (string, error) {
	o := s.ActiveObject()
	if o == nil {
		return "", fmt.Errorf("%w: no active object", commands.ErrInvalidContext)
	}
	modType, _ := params["type"].(string)
	modType = strings.ToUpper(modType)
	if _, known := commands.ModifierCatalog[modType]; !known {
		if _, known = modifierDefaults[modType]; !known {
			return "", fmt.Errorf("%w: unknown modifier type '%s'", commands.ErrOperatorFailed, modType)
		}
	}
	name, _ := params["name"].(string)
	o.AddModifier(name, modType)
	return StatusFinished, nil
}

func modifierRemove(_ context.Context, s *Scene, params map[string]any) (string, error) {
	o := s.ActiveObject()
	if o == nil {
		return "", fmt.Errorf("%w: no active object", commands.ErrInvalidContext)
	}
	name, _ := params["modifier"].(string)
	if !o.Modifiers.Remove(name) {
		return "", fmt.Errorf("%w: modifier '%s' not found", commands.ErrOperatorFailed, name)
	}
	o.changed(true)
	return StatusFinished, nil
}

func modeSet(_ context.Context, s *Scene, params map[string]any) (string, error) {
	mode, _ := params["mode"].(string)
	if err := s.SetMode(mode); err != nil {
		return "", err
	}
	return StatusFinished, nil
}

// =============================================================================
// TRANSFORM, SCREEN, WM
// =============================================================================

func translate(_ context.Context, s *Scene, params map[string]any) (string, error) {
	delta, ok, err := floatList(params, "value", 3)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: missing translation value", commands.ErrOperatorFailed)
	}
	selected := s.SelectedObjects()
	if len(selected) == 0 {
		return "", fmt.Errorf("%w: nothing selected", commands.ErrInvalidContext)
	}
	for _, o := range selected {
		loc := o.Location.Values()
		for i := range loc {
			loc[i] += delta[i]
		}
		_ = o.Location.Set(loc)
	}
	return StatusFinished, nil
}

func frameJump(_ context.Context, s *Scene, params map[string]any) (string, error) {
	end, _ := params["end"].(bool)
	sc, _ := s.data["scenes"].Get("Scene")
	key := "frame_start"
	if end {
		key = "frame_end"
	}
	frame := 1
	if sc != nil {
		if v, ok := sc.props[key].(int); ok {
			frame = v
		}
	}
	s.SetFrame(frame)
	return StatusFinished, nil
}

func saveMainfile(_ context.Context, s *Scene, params map[string]any) (string, error) {
	path, _ := params["filepath"].(string)
	if path == "" {
		path = s.filepath
	}
	if path == "" {
		return "", fmt.Errorf("%w: no file path", commands.ErrOperatorFailed)
	}
	s.Save(path)
	return StatusFinished, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func requireObjectMode(s *Scene) error {
	if s.mode != "OBJECT" {
		return fmt.Errorf("%w: operator requires OBJECT mode, scene is in %s", commands.ErrInvalidContext, s.mode)
	}
	return nil
}

func floatList(params map[string]any, key string, n int) ([]float64, bool, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return nil, false, nil
	}
	items, ok := raw.([]any)
	if !ok || len(items) != n {
		return nil, false, fmt.Errorf("%w: %s expects %d numbers", commands.ErrOperatorFailed, key, n)
	}
	out := make([]float64, n)
	for i, item := range items {
		f, ok := item.(float64)
		if !ok {
			return nil, false, fmt.Errorf("%w: %s expects %d numbers", commands.ErrOperatorFailed, key, n)
		}
		out[i] = f
	}
	return out, true, nil
}
