package commands

// OperatorInfo describes one operator for the counterpart.
type OperatorInfo struct {
	Desc   string            `json:"desc"`
	Params map[string]string `json:"params,omitempty"`
}

// ModifierInfo describes one modifier type and its key properties.
type ModifierInfo struct {
	Desc  string            `json:"desc"`
	Props map[string]string `json:"props,omitempty"`
}

// Capabilities is the get_capabilities payload.
type Capabilities struct {
	Operators          map[string]OperatorInfo `json:"operators"`
	Modifiers          map[string]ModifierInfo `json:"modifiers"`
	ObjectTypes        []string                `json:"object_types"`
	PrimitiveMeshes    []string                `json:"primitive_meshes"`
	OperatorCategories []string                `json:"operator_categories"`
	BlockedOperators   []string                `json:"blocked_operators"`
	Actions            []string                `json:"actions"`
}

// ToMap renders the payload as a plain JSON object.
func (c *Capabilities) ToMap() map[string]any {
	ops := make(map[string]any, len(c.Operators))
	for name, op := range c.Operators {
		entry := map[string]any{"desc": op.Desc}
		if len(op.Params) > 0 {
			entry["params"] = stringMap(op.Params)
		}
		ops[name] = entry
	}
	mods := make(map[string]any, len(c.Modifiers))
	for name, mod := range c.Modifiers {
		entry := map[string]any{"desc": mod.Desc}
		if len(mod.Props) > 0 {
			entry["props"] = stringMap(mod.Props)
		}
		mods[name] = entry
	}
	return map[string]any{
		"operators":           ops,
		"modifiers":           mods,
		"object_types":        anySlice(c.ObjectTypes),
		"primitive_meshes":    anySlice(c.PrimitiveMeshes),
		"operator_categories": anySlice(c.OperatorCategories),
		"blocked_operators":   anySlice(c.BlockedOperators),
		"actions":             anySlice(c.Actions),
	}
}

func stringMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func anySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// =============================================================================
// CATALOG
// =============================================================================

// ObjectTypes lists the object types that can be created.
var ObjectTypes = []string{
	"MESH", "CURVE", "SURFACE", "META", "FONT", "CURVES", "POINTCLOUD",
	"VOLUME", "GPENCIL", "GREASEPENCIL", "ARMATURE", "LATTICE",
	"EMPTY", "LIGHT", "LIGHT_PROBE", "CAMERA", "SPEAKER",
}

// PrimitiveMeshes lists the primitive mesh shapes.
var PrimitiveMeshes = []string{
	"plane", "cube", "circle", "uv_sphere", "ico_sphere",
	"cylinder", "cone", "torus", "grid", "monkey",
}

// OperatorCatalog lists the commonly used modeling operators.
var OperatorCatalog = map[string]OperatorInfo{
	// mesh primitives
	"mesh.primitive_cube_add": {
		Desc:   "Add cube",
		Params: map[string]string{"size": "float=2", "location": "[x,y,z]", "rotation": "[x,y,z] radians"},
	},
	"mesh.primitive_cylinder_add": {
		Desc:   "Add cylinder",
		Params: map[string]string{"radius": "float=1", "depth": "float=2", "vertices": "int=32", "location": "[x,y,z]"},
	},
	"mesh.primitive_uv_sphere_add": {
		Desc:   "Add UV sphere",
		Params: map[string]string{"radius": "float=1", "segments": "int=32", "ring_count": "int=16", "location": "[x,y,z]"},
	},
	"mesh.primitive_ico_sphere_add": {
		Desc:   "Add ico sphere",
		Params: map[string]string{"radius": "float=1", "subdivisions": "int=2", "location": "[x,y,z]"},
	},
	"mesh.primitive_cone_add": {
		Desc:   "Add cone",
		Params: map[string]string{"radius1": "float=1", "radius2": "float=0", "depth": "float=2", "vertices": "int=32", "location": "[x,y,z]"},
	},
	"mesh.primitive_torus_add": {
		Desc:   "Add torus (donut)",
		Params: map[string]string{"major_radius": "float=1", "minor_radius": "float=0.25", "major_segments": "int=48", "minor_segments": "int=12", "location": "[x,y,z]"},
	},
	"mesh.primitive_plane_add": {
		Desc:   "Add plane",
		Params: map[string]string{"size": "float=2", "location": "[x,y,z]"},
	},
	"mesh.primitive_circle_add": {
		Desc:   "Add circle (edge loop)",
		Params: map[string]string{"radius": "float=1", "vertices": "int=32", "fill_type": "'NOTHING'|'NGON'|'TRIFAN'", "location": "[x,y,z]"},
	},
	"mesh.primitive_grid_add": {
		Desc:   "Add subdivided plane grid",
		Params: map[string]string{"x_subdivisions": "int=10", "y_subdivisions": "int=10", "size": "float=2", "location": "[x,y,z]"},
	},
	"mesh.primitive_monkey_add": {
		Desc:   "Add Suzanne monkey head",
		Params: map[string]string{"size": "float=2", "location": "[x,y,z]"},
	},

	// object
	"object.delete":         {Desc: "Delete selected objects", Params: map[string]string{"use_global": "bool=False"}},
	"object.duplicate":      {Desc: "Duplicate selected objects", Params: map[string]string{"linked": "bool=False"}},
	"object.duplicate_move": {Desc: "Duplicate and move"},
	"object.join":           {Desc: "Join selected objects into active"},
	"object.origin_set": {
		Desc:   "Set object origin",
		Params: map[string]string{"type": "'ORIGIN_GEOMETRY'|'ORIGIN_CURSOR'|'ORIGIN_CENTER_OF_MASS'|'GEOMETRY_ORIGIN'"},
	},
	"object.shade_smooth":    {Desc: "Set smooth shading"},
	"object.shade_flat":      {Desc: "Set flat shading"},
	"object.convert":         {Desc: "Convert object type", Params: map[string]string{"target": "'MESH'|'CURVE'|'GPENCIL'"}},
	"object.modifier_add":    {Desc: "Add modifier to active object", Params: map[string]string{"type": "modifier type, see modifiers"}},
	"object.modifier_remove": {Desc: "Remove modifier", Params: map[string]string{"modifier": "str - modifier name"}},
	"object.modifier_apply":  {Desc: "Apply modifier permanently", Params: map[string]string{"modifier": "str - modifier name"}},
	"object.select_all":      {Desc: "Select/deselect all", Params: map[string]string{"action": "'SELECT'|'DESELECT'|'INVERT'|'TOGGLE'"}},

	// transform
	"transform.translate": {Desc: "Move selected objects", Params: map[string]string{"value": "[x,y,z]"}},
	"transform.rotate":    {Desc: "Rotate selected objects", Params: map[string]string{"value": "float radians", "orient_axis": "'X'|'Y'|'Z'"}},
	"transform.resize":    {Desc: "Scale selected objects", Params: map[string]string{"value": "[x,y,z]"}},
	"transform.mirror":    {Desc: "Mirror selected objects", Params: map[string]string{"constraint_axis": "[bool,bool,bool]"}},

	// mesh editing
	"mesh.extrude_region_move":     {Desc: "Extrude faces"},
	"mesh.inset":                   {Desc: "Inset faces", Params: map[string]string{"thickness": "float", "depth": "float"}},
	"mesh.bevel":                   {Desc: "Bevel edges/vertices", Params: map[string]string{"offset": "float", "segments": "int"}},
	"mesh.subdivide":               {Desc: "Subdivide selected", Params: map[string]string{"number_cuts": "int=1"}},
	"mesh.loop_cut_slide":          {Desc: "Add loop cut"},
	"mesh.fill":                    {Desc: "Fill selected edge loop"},
	"mesh.bridge_edge_loops":       {Desc: "Bridge two edge loops"},
	"mesh.separate":                {Desc: "Separate mesh parts", Params: map[string]string{"type": "'SELECTED'|'MATERIAL'|'LOOSE'"}},
	"mesh.flip_normals":            {Desc: "Flip face normals"},
	"mesh.normals_make_consistent": {Desc: "Recalculate normals", Params: map[string]string{"inside": "bool=False"}},

	// curves
	"curve.primitive_bezier_circle_add": {Desc: "Add bezier circle", Params: map[string]string{"radius": "float=1", "location": "[x,y,z]"}},
	"curve.primitive_bezier_curve_add":  {Desc: "Add bezier curve", Params: map[string]string{"location": "[x,y,z]"}},
	"curve.primitive_nurbs_circle_add":  {Desc: "Add NURBS circle", Params: map[string]string{"radius": "float=1", "location": "[x,y,z]"}},
	"curve.primitive_nurbs_path_add":    {Desc: "Add NURBS path", Params: map[string]string{"location": "[x,y,z]"}},
}

// ModifierCatalog lists modifier types and their key properties.
var ModifierCatalog = map[string]ModifierInfo{
	"ARRAY": {Desc: "Duplicate object in array", Props: map[string]string{
		"count":                    "int - number of copies",
		"relative_offset_displace": "[x,y,z] - offset multiplier",
		"constant_offset_displace": "[x,y,z] - absolute offset",
		"use_relative_offset":      "bool",
		"use_constant_offset":      "bool",
		"use_merge_vertices":       "bool",
	}},
	"BEVEL": {Desc: "Bevel edges", Props: map[string]string{
		"width":        "float - bevel width",
		"segments":     "int - number of segments",
		"limit_method": "'NONE'|'ANGLE'|'WEIGHT'|'VGROUP'",
		"angle_limit":  "float radians - for ANGLE method",
	}},
	"BOOLEAN": {Desc: "Boolean operation with another object", Props: map[string]string{
		"operation": "'INTERSECT'|'UNION'|'DIFFERENCE'",
		"object":    "str - name of the cutter object",
		"solver":    "'FAST'|'EXACT'",
	}},
	"DECIMATE":      {Desc: "Reduce polygon count", Props: map[string]string{"ratio": "float 0-1", "decimate_type": "'COLLAPSE'|'UNSUBDIV'|'DISSOLVE'"}},
	"MIRROR":        {Desc: "Mirror mesh across axis", Props: map[string]string{"use_axis": "[bool,bool,bool]", "use_clip": "bool", "mirror_object": "str - object name"}},
	"REMESH":        {Desc: "Recreate mesh topology", Props: map[string]string{"mode": "'BLOCKS'|'SMOOTH'|'SHARP'|'VOXEL'", "voxel_size": "float"}},
	"SCREW":         {Desc: "Lathe/screw extrusion", Props: map[string]string{"angle": "float radians", "steps": "int", "screw_offset": "float"}},
	"SOLIDIFY":      {Desc: "Add thickness to surface", Props: map[string]string{"thickness": "float", "offset": "float -1 to 1", "use_even_offset": "bool"}},
	"SUBDIVISION":   {Desc: "Subdivide mesh smoothly (Catmull-Clark)", Props: map[string]string{"levels": "int - viewport levels", "render_levels": "int"}},
	"TRIANGULATE":   {Desc: "Convert all faces to triangles"},
	"WELD":          {Desc: "Merge vertices by distance", Props: map[string]string{"merge_threshold": "float"}},
	"WIREFRAME":     {Desc: "Convert to wireframe mesh", Props: map[string]string{"thickness": "float"}},
	"DISPLACE":      {Desc: "Displace vertices by texture", Props: map[string]string{"strength": "float", "direction": "'X'|'Y'|'Z'|'NORMAL'"}},
	"SHRINKWRAP":    {Desc: "Shrink to target surface", Props: map[string]string{"target": "str - object name", "offset": "float"}},
	"SIMPLE_DEFORM": {Desc: "Twist/bend/taper/stretch", Props: map[string]string{"deform_method": "'TWIST'|'BEND'|'TAPER'|'STRETCH'", "angle": "float radians"}},
	"SMOOTH":        {Desc: "Smooth vertices", Props: map[string]string{"factor": "float", "iterations": "int"}},
}
