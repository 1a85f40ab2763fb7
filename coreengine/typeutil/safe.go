// Package typeutil reads loosely typed values decoded from JSON, YAML or
// command line input without panicking on a failed type assertion.
package typeutil

import (
	"math"
	"strings"
)

// Map asserts value to map[string]any.
func Map(value any) (map[string]any, bool) {
	m, ok := value.(map[string]any)
	return m, ok && m != nil
}

// MapDefault returns value as a map, or defaultVal.
func MapDefault(value any, defaultVal map[string]any) map[string]any {
	if m, ok := Map(value); ok {
		return m
	}
	return defaultVal
}

// String asserts value to string.
func String(value any) (string, bool) {
	s, ok := value.(string)
	return s, ok
}

// StringDefault returns value as a string, or defaultVal.
func StringDefault(value any, defaultVal string) string {
	if s, ok := String(value); ok {
		return s
	}
	return defaultVal
}

// Int accepts Go integers and integral floats (JSON numbers decode as
// float64). 2.5, NaN and infinities are rejected.
func Int(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float32:
		return Int(float64(v))
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	}
	return 0, false
}

// StringList reads a list of strings from []string, []any or a comma
// separated string. Non-string items and blank entries are skipped.
func StringList(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return append([]string(nil), v...), true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	case string:
		out := make([]string, 0)
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, true
	}
	return nil, false
}
