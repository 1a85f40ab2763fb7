package pathres

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fakeRoot map[string]any

func (r fakeRoot) Attr(name string) (any, bool) {
	v, ok := r[name]
	return v, ok
}

type fakeCollection struct {
	names []string
	items map[string]any
}

func (c *fakeCollection) Key(key string) (any, bool) {
	v, ok := c.items[key]
	return v, ok
}

func (c *fakeCollection) Len() int { return len(c.names) }

func (c *fakeCollection) At(i int) (any, bool) {
	return c.items[c.names[i]], true
}

type fakeObject struct {
	name  string
	props map[string]any
}

func (o *fakeObject) Name() string { return o.name }

func (o *fakeObject) Attr(name string) (any, bool) {
	if name == "name" {
		return o.name, true
	}
	v, ok := o.props[name]
	return v, ok
}

func (o *fakeObject) SetAttr(name string, value any) error {
	if name == "name" {
		s, ok := value.(string)
		if !ok {
			return ErrTypeMismatch
		}
		o.name = s
		return nil
	}
	o.props[name] = value
	return nil
}

type vec3 [3]float64

func (v *vec3) ToList() []any { return []any{v[0], v[1], v[2]} }

// guardRoot fails the test if the host is touched.
type guardRoot struct{ t *testing.T }

func (p guardRoot) Attr(name string) (any, bool) {
	p.t.Fatalf("host accessed for %q", name)
	return nil, false
}

func newTestResolver() (*Resolver, *fakeObject) {
	cube := &fakeObject{
		name: "Cube",
		props: map[string]any{
			"location":      []float64{0, 0, 0},
			"hide_viewport": false,
			"pass_index":    0,
			"modifiers": map[string]any{
				"GeometryNodes": map[string]any{"show_viewport": true},
			},
			"material_slots": []any{"Red", "Blue"},
		},
	}
	objects := &fakeCollection{names: []string{"Cube"}, items: map[string]any{"Cube": cube}}
	return NewResolver(fakeRoot{"objects": objects, "meshes": &fakeCollection{items: map[string]any{}}}), cube
}

// =============================================================================
// TOKENIZER TESTS
// =============================================================================

func TestTokenize_Valid(t *testing.T) {
	segs, err := Tokenize(`objects['Cube'].modifiers["Geo Nodes"].inputs[-1]`)
	require.NoError(t, err)
	require.Len(t, segs, 6)

	assert.Equal(t, Segment{Kind: SegmentAttr, Name: "objects"}, segs[0])
	assert.Equal(t, Segment{Kind: SegmentKey, Name: "Cube"}, segs[1])
	assert.Equal(t, Segment{Kind: SegmentAttr, Name: "modifiers"}, segs[2])
	assert.Equal(t, Segment{Kind: SegmentKey, Name: "Geo Nodes"}, segs[3])
	assert.Equal(t, Segment{Kind: SegmentAttr, Name: "inputs"}, segs[4])
	assert.Equal(t, Segment{Kind: SegmentIndex, Index: -1}, segs[5])
}

func TestTokenize_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		offset int
	}{
		{"empty", "", 0},
		{"unterminated bracket", "objects['Cube'", 14},
		{"unterminated index", "location[0", 10},
		{"call syntax", "objects.get('x')", 11},
		{"leading dot", ".objects", 0},
		{"double dot", "objects..name", 8},
		{"trailing dot", "objects.", 8},
		{"dot before bracket", "objects.[0]", 8},
		{"ident after bracket", "location[0]x", 11},
		{"empty key", "objects['']", 8},
		{"bare bracket word", "objects[Cube]", 8},
		{"digit start", "0objects", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tokenize(tt.path)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSyntax))

			var syn *SyntaxError
			require.True(t, errors.As(err, &syn))
			assert.Equal(t, tt.offset, syn.Offset)
		})
	}
}

func TestFormat_RoundTrip(t *testing.T) {
	paths := []string{
		"objects['Cube'].location[0]",
		`objects["it's"].name`,
		"scenes['Scene'].frame_current",
	}
	for _, p := range paths {
		segs, err := Tokenize(p)
		require.NoError(t, err)
		assert.Equal(t, p, Format(segs))
	}
}

// =============================================================================
// RESOLVER TESTS
// =============================================================================

func TestResolve_RootWhitelist(t *testing.T) {
	r := NewResolver(guardRoot{t: t})

	for _, path := range []string{"bpy.ops", "__class__", "window_managers['x']", "['objects']"} {
		_, err := r.Resolve(path)
		require.Error(t, err, path)
		assert.True(t, errors.Is(err, ErrUnknownRoot), path)
	}
}

func TestResolve_Paths(t *testing.T) {
	r, cube := newTestResolver()

	v, err := r.Resolve("objects['Cube']")
	require.NoError(t, err)
	assert.Same(t, cube, v)

	v, err = r.Resolve("objects[0].name")
	require.NoError(t, err)
	assert.Equal(t, "Cube", v)

	v, err = r.Resolve(`objects['Cube'].modifiers["GeometryNodes"].show_viewport`)
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = r.Resolve("objects['Cube'].material_slots[-1]")
	require.NoError(t, err)
	assert.Equal(t, "Blue", v)
}

func TestResolve_Errors(t *testing.T) {
	r, _ := newTestResolver()

	tests := []struct {
		path string
		want error
	}{
		{"objects['Nope']", ErrNotFound},
		{"objects['Cube'].nothing", ErrNotFound},
		{"objects['Cube'].material_slots[5]", ErrNotFound},
		{"objects['Cube'].material_slots[-3]", ErrNotFound},
		{"objects['Cube'].hide_viewport['x']", ErrTypeMismatch},
		{"objects['Cube'].hide_viewport[0]", ErrTypeMismatch},
		{"meshes['Cube']", ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := r.Resolve(tt.path)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)

			var re *ResolveError
			assert.True(t, errors.As(err, &re))
		})
	}
}

func TestGetSet_Split(t *testing.T) {
	r, cube := newTestResolver()

	require.NoError(t, r.Set("objects['Cube']", "location", []any{1.0, 2, 3.5}))
	assert.Equal(t, []float64{1, 2, 3.5}, cube.props["location"])

	require.NoError(t, r.Set("objects['Cube']", "location[1]", 9))
	v, err := r.Get("objects['Cube']", "location[1]")
	require.NoError(t, err)
	assert.Equal(t, 9.0, v)

	// Falsy values are real values.
	require.NoError(t, r.Set("objects['Cube']", "hide_viewport", false))
	require.NoError(t, r.Set("objects['Cube']", "pass_index", 0.0))
	assert.Equal(t, 0, cube.props["pass_index"])

	require.NoError(t, r.Set("objects['Cube']", `modifiers["GeometryNodes"].show_viewport`, false))
	v, err = r.Get("objects['Cube']", `modifiers["GeometryNodes"].show_viewport`)
	require.NoError(t, err)
	assert.Equal(t, false, v)

	v, err = r.Get("objects['Cube']", "")
	require.NoError(t, err)
	assert.Same(t, cube, v)
}

func TestSet_Errors(t *testing.T) {
	r, _ := newTestResolver()

	err := r.Set("objects['Cube']", "", 1)
	assert.True(t, errors.Is(err, ErrNotFound))

	err = r.Set("objects['Cube']", "missing", 1)
	assert.True(t, errors.Is(err, ErrNotFound))

	err = r.Set("objects['Cube']", "location", []any{1.0, 2.0})
	assert.True(t, errors.Is(err, ErrTypeMismatch))

	err = r.Set("objects['Cube']", "hide_viewport", "yes")
	assert.True(t, errors.Is(err, ErrTypeMismatch))

	err = r.Set("objects['Cube']", "location[", 1)
	assert.True(t, errors.Is(err, ErrSyntax))

	err = r.Set("objects['Cube']", "name.upper", 1)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSplitTarget(t *testing.T) {
	target, path, err := SplitTarget("objects['Cube'].modifiers['GN'].show_viewport")
	require.NoError(t, err)
	assert.Equal(t, "objects['Cube']", target)
	assert.Equal(t, "modifiers['GN'].show_viewport", path)

	target, path, err = SplitTarget("objects['Cube']")
	require.NoError(t, err)
	assert.Equal(t, "objects['Cube']", target)
	assert.Equal(t, "", path)

	_, _, err = SplitTarget("objects.location")
	assert.True(t, errors.Is(err, ErrTypeMismatch))
}

// =============================================================================
// CONVERSION TESTS
// =============================================================================

func TestConvertValue(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		current any
		want    any
		wantErr bool
	}{
		{"nil current passes through", "x", nil, "x", false},
		{"nil value passes through", nil, 1.0, nil, false},
		{"int to float", 3, 1.5, 3.0, false},
		{"integral float to int", 4.0, 1, 4, false},
		{"fractional float to int", 4.5, 1, nil, true},
		{"bool stays bool", false, true, false, false},
		{"number to bool", 1.0, true, nil, true},
		{"string", "Hero", "Cube", "Hero", false},
		{"vector", []any{1, 2.5, 3}, []float64{0, 0, 0}, []float64{1, 2.5, 3}, false},
		{"vector length mismatch", []any{1, 2}, []float64{0, 0, 0}, nil, true},
		{"vector bad item", []any{1, "a", 3}, []float64{0, 0, 0}, nil, true},
		{"lister current", []any{1, 2, 3}, &vec3{}, []float64{1, 2, 3}, false},
		{"int list", []any{1.0, 2.0}, []int{0, 0}, []int{1, 2}, false},
		{"bool list", []any{true, false}, []bool{false, false}, []bool{true, false}, false},
		{"unknown current passes through", "x", struct{}{}, "x", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConvertValue(tt.value, tt.current)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrTypeMismatch))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToJSONValue(t *testing.T) {
	cube := &fakeObject{name: "Cube"}

	assert.Nil(t, ToJSONValue(nil))
	assert.Equal(t, "Cube", ToJSONValue(cube))
	assert.Equal(t, []any{1.0, 2.0, 3.0}, ToJSONValue(&vec3{1, 2, 3}))
	assert.Equal(t, []any{1.0, nil}, ToJSONValue([]float64{1, math.NaN()}))
	assert.Equal(t, []any{"Cube", 2}, ToJSONValue([]any{cube, 2}))
	assert.Equal(t, map[string]any{"a": 1, "b": "Cube"}, ToJSONValue(map[string]any{"a": 1, "b": cube}))
	assert.Equal(t, map[string]any{"x": 1.5}, ToJSONValue(map[string]float64{"x": 1.5}))
	assert.Equal(t, "{1 2}", ToJSONValue(struct{ A, B int }{1, 2}))
}
