package pathres

import (
	"fmt"
	"math"
	"reflect"
	"sort"
)

// Lister is implemented by host values that project to a list, e.g. vectors.
type Lister interface {
	ToList() []any
}

// Named is implemented by host data blocks, which serialize as their name.
type Named interface {
	Name() string
}

// =============================================================================
// CONVERSION
// =============================================================================

// ConvertValue coerces a decoded JSON value to the shape of current, the
// value it will replace:
//
//   - nil current or nil value: value is returned unchanged
//   - float current: any number becomes float64
//   - int current: integral numbers become int
//   - bool and string currents require the same kind
//   - []float64, []int, []bool and Lister currents take a list of equal length
//
// Anything else passes through for the host to validate.
func ConvertValue(value, current any) (any, error) {
	if value == nil || current == nil {
		return value, nil
	}

	switch cur := current.(type) {
	case bool:
		if b, ok := value.(bool); ok {
			return b, nil
		}
	case string:
		if s, ok := value.(string); ok {
			return s, nil
		}
	case float64, float32:
		if f, ok := toFloat(value); ok {
			return f, nil
		}
	case int, int64, int32:
		if n, ok := toInt(value); ok {
			return n, nil
		}
	case []float64:
		return convertList(value, len(cur), toFloat)
	case []int:
		return convertList(value, len(cur), toInt)
	case []bool:
		return convertList(value, len(cur), func(v any) (bool, bool) {
			b, ok := v.(bool)
			return b, ok
		})
	case Lister:
		return convertList(value, len(cur.ToList()), toFloat)
	default:
		return value, nil
	}
	return nil, fmt.Errorf("%w: cannot assign %T to %T", ErrTypeMismatch, value, current)
}

func convertList[T any](value any, want int, conv func(any) (T, bool)) ([]T, error) {
	items, ok := toList(value)
	if !ok {
		return nil, fmt.Errorf("%w: expected a list, got %T", ErrTypeMismatch, value)
	}
	if len(items) != want {
		return nil, fmt.Errorf("%w: expected %d items, got %d", ErrTypeMismatch, want, len(items))
	}
	out := make([]T, len(items))
	for i, item := range items {
		v, ok := conv(item)
		if !ok {
			return nil, fmt.Errorf("%w: item %d has type %T", ErrTypeMismatch, i, item)
		}
		out[i] = v
	}
	return out, nil
}

func toList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case Lister:
		return l.ToList(), true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case float64:
		if n == math.Trunc(n) && !math.IsInf(n, 0) {
			return int(n), true
		}
	case float32:
		if f := float64(n); f == math.Trunc(f) && !math.IsInf(f, 0) {
			return int(f), true
		}
	}
	return 0, false
}

// =============================================================================
// JSON PROJECTION
// =============================================================================

// ToJSONValue projects a host value onto something encoding/json can
// always marshal. Data blocks become their names, vectors become lists,
// non-finite floats become null and unknown types fall back to their
// string form.
func ToJSONValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case bool, string, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return x
	case float64:
		return finite(x)
	case float32:
		return finite(float64(x))
	case Lister:
		return ToJSONValue(x.ToList())
	case Named:
		return x.Name()
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = ToJSONValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = ToJSONValue(item)
		}
		return out
	case fmt.Stringer:
		return x.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = ToJSONValue(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		out := make(map[string]any, len(keys))
		for _, k := range keys {
			out[k.String()] = ToJSONValue(rv.MapIndex(k).Interface())
		}
		return out
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
	}
	return fmt.Sprint(v)
}

func finite(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}
