package scene

import (
	"fmt"
	"strings"

	"github.com/blendmate/bridge/coreengine/pathres"
)

// =============================================================================
// COLLECTION
// =============================================================================

// Collection is an ordered, name-keyed set of data blocks.
type Collection[T pathres.Named] struct {
	order []string
	items map[string]T
}

// NewCollection creates an empty collection.
func NewCollection[T pathres.Named]() *Collection[T] {
	return &Collection[T]{items: make(map[string]T)}
}

// Add inserts item under its current name.
func (c *Collection[T]) Add(item T) {
	name := item.Name()
	if _, exists := c.items[name]; !exists {
		c.order = append(c.order, name)
	}
	c.items[name] = item
}

// Get returns the item named name.
func (c *Collection[T]) Get(name string) (T, bool) {
	item, ok := c.items[name]
	return item, ok
}

// Remove deletes the item named name.
func (c *Collection[T]) Remove(name string) bool {
	if _, ok := c.items[name]; !ok {
		return false
	}
	delete(c.items, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// Names returns item names in insertion order.
func (c *Collection[T]) Names() []string {
	return append([]string(nil), c.order...)
}

// Items returns items in insertion order.
func (c *Collection[T]) Items() []T {
	out := make([]T, 0, len(c.order))
	for _, n := range c.order {
		out = append(out, c.items[n])
	}
	return out
}

// UniqueName returns base, or base with the first free ".NNN" suffix.
func (c *Collection[T]) UniqueName(base string) string {
	if _, taken := c.items[base]; !taken {
		return base
	}
	stem := base
	if i := strings.LastIndex(base, "."); i > 0 && isDigits(base[i+1:]) {
		stem = base[:i]
	}
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s.%03d", stem, n)
		if _, taken := c.items[candidate]; !taken {
			return candidate
		}
	}
}

func (c *Collection[T]) rename(old, name string) {
	item, ok := c.items[old]
	if !ok {
		return
	}
	delete(c.items, old)
	c.items[name] = item
	for i, n := range c.order {
		if n == old {
			c.order[i] = name
		}
	}
}

// Key implements pathres.Keyed.
func (c *Collection[T]) Key(key string) (any, bool) {
	item, ok := c.items[key]
	if !ok {
		return nil, false
	}
	return item, true
}

// Len implements pathres.Indexed.
func (c *Collection[T]) Len() int {
	return len(c.order)
}

// At implements pathres.Indexed.
func (c *Collection[T]) At(i int) (any, bool) {
	if i < 0 || i >= len(c.order) {
		return nil, false
	}
	return c.items[c.order[i]], true
}

// ToList implements pathres.Lister so a collection projects to its items.
func (c *Collection[T]) ToList() []any {
	out := make([]any, 0, len(c.order))
	for _, n := range c.order {
		out = append(out, c.items[n])
	}
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// =============================================================================
// DATABLOCK
// =============================================================================

// Datablock is a generic named block with free-form properties, standing in
// for meshes, materials, lights and similar data.
type Datablock struct {
	name  string
	props map[string]any
}

// NewDatablock creates a data block with initial properties.
func NewDatablock(name string, props map[string]any) *Datablock {
	p := make(map[string]any, len(props))
	for k, v := range props {
		p[k] = v
	}
	return &Datablock{name: name, props: p}
}

// Name implements pathres.Named.
func (d *Datablock) Name() string { return d.name }

// Attr implements pathres.Attributer.
func (d *Datablock) Attr(name string) (any, bool) {
	if name == "name" {
		return d.name, true
	}
	v, ok := d.props[name]
	return v, ok
}

// SetAttr implements pathres.AttrSetter. Only existing properties can be set.
func (d *Datablock) SetAttr(name string, value any) error {
	if name == "name" {
		return fmt.Errorf("%w: rename data blocks through their collection", pathres.ErrReadOnly)
	}
	if _, ok := d.props[name]; !ok {
		return pathres.ErrNotFound
	}
	d.props[name] = value
	return nil
}

// =============================================================================
// MODIFIER
// =============================================================================

// Modifier is one entry of an object's modifier stack.
type Modifier struct {
	name  string
	Type  string
	owner *Object
	props map[string]any
}

// Name implements pathres.Named.
func (m *Modifier) Name() string { return m.name }

// Attr implements pathres.Attributer.
func (m *Modifier) Attr(name string) (any, bool) {
	switch name {
	case "name":
		return m.name, true
	case "type":
		return m.Type, true
	}
	v, ok := m.props[name]
	return v, ok
}

// SetAttr implements pathres.AttrSetter.
func (m *Modifier) SetAttr(name string, value any) error {
	switch name {
	case "type":
		return fmt.Errorf("%w: modifier type", pathres.ErrReadOnly)
	case "name":
		s, ok := value.(string)
		if !ok || s == "" {
			return fmt.Errorf("%w: name must be a non-empty string", pathres.ErrTypeMismatch)
		}
		if s == m.name {
			return nil
		}
		final := m.owner.Modifiers.UniqueName(s)
		m.owner.Modifiers.rename(m.name, final)
		m.name = final
	default:
		if _, ok := m.props[name]; !ok {
			return pathres.ErrNotFound
		}
		if name == "object" && value != nil {
			if _, ok := value.(*Object); !ok {
				return fmt.Errorf("%w: object reference expected", pathres.ErrTypeMismatch)
			}
		}
		m.props[name] = value
	}
	m.owner.changed(true)
	return nil
}

// modifierDefaults are the initial properties per modifier type.
var modifierDefaults = map[string]map[string]any{
	"ARRAY":       {"count": 2, "use_relative_offset": true, "relative_offset_displace": []float64{1, 0, 0}},
	"BEVEL":       {"width": 0.1, "segments": 1},
	"BOOLEAN":     {"operation": "DIFFERENCE", "object": nil, "solver": "EXACT"},
	"MIRROR":      {"use_axis": []bool{true, false, false}, "use_clip": false},
	"SOLIDIFY":    {"thickness": 0.01, "offset": -1.0, "use_even_offset": false},
	"SUBDIVISION": {"levels": 1, "render_levels": 2},
	"WELD":        {"merge_threshold": 0.001},
}

func newModifier(owner *Object, name, modType string) *Modifier {
	props := make(map[string]any)
	for k, v := range modifierDefaults[modType] {
		switch x := v.(type) {
		case []float64:
			props[k] = append([]float64(nil), x...)
		case []bool:
			props[k] = append([]bool(nil), x...)
		default:
			props[k] = v
		}
	}
	props["show_viewport"] = true
	props["show_render"] = true
	return &Modifier{name: name, Type: modType, owner: owner, props: props}
}
