package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/blendmate/bridge/coreengine/envelope"
)

// DefaultSafeCategories are the operator categories open to the counterpart.
var DefaultSafeCategories = []string{
	"object", "mesh", "curve", "surface", "armature", "lattice",
	"transform", "view3d", "node", "material", "texture",
	"uv", "paint", "sculpt", "gpencil", "anim", "action",
	"marker", "pose", "constraint", "screen", "wm",
}

// DefaultBlockedOperators are rejected regardless of category.
var DefaultBlockedOperators = []string{
	"wm.quit_blender", "wm.save_mainfile", "wm.open_mainfile",
	"wm.read_factory_settings", "wm.recover_auto_save",
	"wm.recover_last_session", "preferences.addon_install",
	"preferences.addon_remove", "script.python_file_run",
	"script.execute_preset", "text.run_script",
}

// OperatorPolicy decides which operators may be called: a category
// whitelist plus a blacklist of specific operators. The blacklist wins.
type OperatorPolicy struct {
	categories map[string]struct{}
	blocked    map[string]struct{}
}

// NewOperatorPolicy creates a policy from explicit lists.
func NewOperatorPolicy(categories, blocked []string) *OperatorPolicy {
	p := &OperatorPolicy{
		categories: make(map[string]struct{}, len(categories)),
		blocked:    make(map[string]struct{}, len(blocked)),
	}
	for _, c := range categories {
		p.categories[c] = struct{}{}
	}
	for _, b := range blocked {
		p.blocked[b] = struct{}{}
	}
	return p
}

// DefaultOperatorPolicy returns the stock policy.
func DefaultOperatorPolicy() *OperatorPolicy {
	return NewOperatorPolicy(DefaultSafeCategories, DefaultBlockedOperators)
}

// ParseOperator splits "category.name".
func ParseOperator(full string) (category, name string, err error) {
	category, name, ok := strings.Cut(full, ".")
	if !ok || category == "" || name == "" || strings.Contains(name, ".") {
		return "", "", NewCommandError(envelope.CodeInvalidParams, fmt.Sprintf("Invalid operator path: %s", full), nil)
	}
	return category, name, nil
}

// Check returns a PERMISSION_DENIED error when the operator may not run.
func (p *OperatorPolicy) Check(category, name string) error {
	full := category + "." + name
	if _, blocked := p.blocked[full]; blocked {
		return NewCommandError(envelope.CodePermissionDenied, fmt.Sprintf("Operator '%s' is blocked for security", full), nil)
	}
	if _, ok := p.categories[category]; !ok {
		return NewCommandError(envelope.CodePermissionDenied, fmt.Sprintf("Operator category '%s' is not allowed", category), nil)
	}
	return nil
}

// Categories returns the whitelisted categories, sorted.
func (p *OperatorPolicy) Categories() []string {
	return sortedKeys(p.categories)
}

// Blocked returns the blacklisted operators, sorted.
func (p *OperatorPolicy) Blocked() []string {
	return sortedKeys(p.blocked)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
