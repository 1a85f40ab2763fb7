package pathres

import (
	"fmt"
)

// AllowedRoots are the collections a path may start from.
var AllowedRoots = []string{
	"objects", "meshes", "materials", "node_groups", "collections",
	"lights", "cameras", "curves", "textures", "images", "armatures",
	"actions", "particles", "worlds", "scenes", "texts", "fonts",
	"grease_pencils", "libraries", "brushes", "palettes", "lattices",
}

// =============================================================================
// HOST INTERFACES
// =============================================================================

// Attributer exposes named attributes.
type Attributer interface {
	Attr(name string) (any, bool)
}

// AttrSetter assigns named attributes.
type AttrSetter interface {
	SetAttr(name string, value any) error
}

// Keyed exposes string-keyed members, e.g. a collection by name.
type Keyed interface {
	Key(key string) (any, bool)
}

// KeySetter assigns string-keyed members.
type KeySetter interface {
	SetKey(key string, value any) error
}

// Indexed exposes positional members.
type Indexed interface {
	Len() int
	At(i int) (any, bool)
}

// IndexSetter assigns positional members.
type IndexSetter interface {
	SetAt(i int, value any) error
}

// =============================================================================
// RESOLVER
// =============================================================================

// Resolver walks paths from a host root.
type Resolver struct {
	root    Attributer
	allowed map[string]struct{}
}

// NewResolver creates a resolver over root. With no roots given, AllowedRoots applies.
func NewResolver(root Attributer, roots ...string) *Resolver {
	if len(roots) == 0 {
		roots = AllowedRoots
	}
	allowed := make(map[string]struct{}, len(roots))
	for _, r := range roots {
		allowed[r] = struct{}{}
	}
	return &Resolver{root: root, allowed: allowed}
}

// IsAllowedRoot reports whether name may start a path.
func (r *Resolver) IsAllowedRoot(name string) bool {
	_, ok := r.allowed[name]
	return ok
}

// Resolve returns the value at path.
func (r *Resolver) Resolve(path string) (any, error) {
	segs, err := Tokenize(path)
	if err != nil {
		return nil, err
	}
	return r.ResolveSegments(path, segs)
}

// ResolveSegments walks already tokenized segments. The root check happens
// before the host is touched.
func (r *Resolver) ResolveSegments(path string, segs []Segment) (any, error) {
	if len(segs) == 0 {
		return nil, newSyntaxError(path, 0, "empty path")
	}
	first := segs[0]
	if first.Kind != SegmentAttr {
		return nil, &ResolveError{Path: path, Segment: first.String(), Err: fmt.Errorf("%w: path must start with a collection name", ErrUnknownRoot)}
	}
	if !r.IsAllowedRoot(first.Name) {
		return nil, &ResolveError{Path: path, Segment: first.Name, Err: ErrUnknownRoot}
	}

	cur, err := step(r.root, first)
	if err != nil {
		return nil, newResolveError(path, first, err)
	}
	for _, seg := range segs[1:] {
		cur, err = step(cur, seg)
		if err != nil {
			return nil, newResolveError(path, seg, err)
		}
	}
	return cur, nil
}

// Get resolves target and then reads path relative to it.
// An empty path returns the target itself.
func (r *Resolver) Get(target, path string) (any, error) {
	segs, full, err := joinPaths(target, path)
	if err != nil {
		return nil, err
	}
	return r.ResolveSegments(full, segs)
}

// Set resolves target, walks all but the last segment of path, converts
// value against the current value and performs a single assignment.
func (r *Resolver) Set(target, path string, value any) error {
	if path == "" {
		return &ResolveError{Path: target, Err: fmt.Errorf("%w: missing property path", ErrNotFound)}
	}
	segs, full, err := joinPaths(target, path)
	if err != nil {
		return err
	}
	parent, err := r.ResolveSegments(full, segs[:len(segs)-1])
	if err != nil {
		return err
	}
	last := segs[len(segs)-1]

	current, err := step(parent, last)
	if err != nil {
		return newResolveError(full, last, err)
	}
	converted, err := ConvertValue(value, current)
	if err != nil {
		return newResolveError(full, last, err)
	}
	if err := assign(parent, last, converted); err != nil {
		return newResolveError(full, last, err)
	}
	return nil
}

// SplitTarget splits "objects['Cube'].location[0]" into the object target
// "objects['Cube']" and the property path "location[0]".
func SplitTarget(full string) (target, path string, err error) {
	segs, err := Tokenize(full)
	if err != nil {
		return "", "", err
	}
	if len(segs) < 2 || segs[0].Kind != SegmentAttr || segs[1].Kind != SegmentKey {
		return "", "", &ResolveError{Path: full, Err: fmt.Errorf("%w: expected collection['name'] prefix", ErrTypeMismatch)}
	}
	return Format(segs[:2]), Format(segs[2:]), nil
}

// LastSegment returns the final segment of path.
func LastSegment(path string) (Segment, error) {
	segs, err := Tokenize(path)
	if err != nil {
		return Segment{}, err
	}
	return segs[len(segs)-1], nil
}

func joinPaths(target, path string) ([]Segment, string, error) {
	segs, err := Tokenize(target)
	if err != nil {
		return nil, "", err
	}
	if path == "" {
		return segs, target, nil
	}
	rest, err := Tokenize(path)
	if err != nil {
		return nil, "", err
	}
	segs = append(segs, rest...)
	return segs, Format(segs), nil
}

// =============================================================================
// STRUCTURAL WALK
// =============================================================================

func step(cur any, seg Segment) (any, error) {
	if cur == nil {
		return nil, ErrNotFound
	}
	switch seg.Kind {
	case SegmentAttr:
		switch v := cur.(type) {
		case Attributer:
			if out, ok := v.Attr(seg.Name); ok {
				return out, nil
			}
			return nil, ErrNotFound
		case map[string]any:
			if out, ok := v[seg.Name]; ok {
				return out, nil
			}
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %T has no attributes", ErrNotFound, cur)

	case SegmentKey:
		switch v := cur.(type) {
		case Keyed:
			if out, ok := v.Key(seg.Name); ok {
				return out, nil
			}
			return nil, ErrNotFound
		case map[string]any:
			if out, ok := v[seg.Name]; ok {
				return out, nil
			}
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %T is not keyed", ErrTypeMismatch, cur)

	case SegmentIndex:
		switch v := cur.(type) {
		case Indexed:
			i, ok := normalizeIndex(seg.Index, v.Len())
			if !ok {
				return nil, ErrNotFound
			}
			if out, ok := v.At(i); ok {
				return out, nil
			}
			return nil, ErrNotFound
		case []any:
			i, ok := normalizeIndex(seg.Index, len(v))
			if !ok {
				return nil, ErrNotFound
			}
			return v[i], nil
		case []float64:
			i, ok := normalizeIndex(seg.Index, len(v))
			if !ok {
				return nil, ErrNotFound
			}
			return v[i], nil
		case []int:
			i, ok := normalizeIndex(seg.Index, len(v))
			if !ok {
				return nil, ErrNotFound
			}
			return v[i], nil
		case []bool:
			i, ok := normalizeIndex(seg.Index, len(v))
			if !ok {
				return nil, ErrNotFound
			}
			return v[i], nil
		}
		return nil, fmt.Errorf("%w: %T is not indexable", ErrTypeMismatch, cur)
	}
	return nil, fmt.Errorf("%w: unknown segment kind", ErrTypeMismatch)
}

func assign(parent any, seg Segment, value any) error {
	switch seg.Kind {
	case SegmentAttr:
		switch v := parent.(type) {
		case AttrSetter:
			return v.SetAttr(seg.Name, value)
		case map[string]any:
			v[seg.Name] = value
			return nil
		}

	case SegmentKey:
		switch v := parent.(type) {
		case KeySetter:
			return v.SetKey(seg.Name, value)
		case map[string]any:
			v[seg.Name] = value
			return nil
		}

	case SegmentIndex:
		switch v := parent.(type) {
		case IndexSetter:
			i, ok := normalizeIndex(seg.Index, lenOf(parent))
			if !ok {
				return ErrNotFound
			}
			return v.SetAt(i, value)
		case []any:
			i, ok := normalizeIndex(seg.Index, len(v))
			if !ok {
				return ErrNotFound
			}
			v[i] = value
			return nil
		case []float64:
			i, ok := normalizeIndex(seg.Index, len(v))
			if !ok {
				return ErrNotFound
			}
			f, ok := value.(float64)
			if !ok {
				return fmt.Errorf("%w: expected float, got %T", ErrTypeMismatch, value)
			}
			v[i] = f
			return nil
		case []int:
			i, ok := normalizeIndex(seg.Index, len(v))
			if !ok {
				return ErrNotFound
			}
			n, ok := value.(int)
			if !ok {
				return fmt.Errorf("%w: expected int, got %T", ErrTypeMismatch, value)
			}
			v[i] = n
			return nil
		case []bool:
			i, ok := normalizeIndex(seg.Index, len(v))
			if !ok {
				return ErrNotFound
			}
			b, ok := value.(bool)
			if !ok {
				return fmt.Errorf("%w: expected bool, got %T", ErrTypeMismatch, value)
			}
			v[i] = b
			return nil
		}
	}
	return fmt.Errorf("%w: cannot assign %s on %T", ErrReadOnly, seg.String(), parent)
}

func lenOf(v any) int {
	if ix, ok := v.(Indexed); ok {
		return ix.Len()
	}
	return 0
}

func normalizeIndex(i, n int) (int, bool) {
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, false
	}
	return i, true
}
