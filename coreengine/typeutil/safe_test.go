package typeutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMap(t *testing.T) {
	m, ok := Map(map[string]any{"a": 1})
	assert.True(t, ok)
	assert.Equal(t, 1, m["a"])

	_, ok = Map(nil)
	assert.False(t, ok)
	_, ok = Map(map[string]any(nil))
	assert.False(t, ok)
	_, ok = Map([]any{})
	assert.False(t, ok)

	def := map[string]any{}
	assert.Equal(t, def, MapDefault("x", def))
}

func TestString(t *testing.T) {
	s, ok := String("abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", s)

	_, ok = String(nil)
	assert.False(t, ok)
	assert.Equal(t, "fallback", StringDefault(12, "fallback"))
	assert.Equal(t, "", StringDefault("", "fallback"), "an empty string is still a string")
}

func TestInt(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  int
		ok    bool
	}{
		{"int", 7, 7, true},
		{"int64", int64(-3), -3, true},
		{"int32", int32(9), 9, true},
		{"integral float", 2.0, 2, true},
		{"float32", float32(4), 4, true},
		{"fractional float", 2.5, 0, false},
		{"nan", math.NaN(), 0, false},
		{"inf", math.Inf(1), 0, false},
		{"string", "2", 0, false},
		{"bool", true, 0, false},
		{"nil", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Int(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStringList(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  []string
		ok    bool
	}{
		{"string slice", []string{"a", "b"}, []string{"a", "b"}, true},
		{"any slice skips non-strings", []any{"a", 1, "b"}, []string{"a", "b"}, true},
		{"comma string", " a, ,b ", []string{"a", "b"}, true},
		{"empty string", "", []string{}, true},
		{"number", 3, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := StringList(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStringList_Copies(t *testing.T) {
	src := []string{"a"}
	got, _ := StringList(src)
	got[0] = "z"
	assert.Equal(t, "a", src[0])
}
