package rules

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		name     string
		ref      string
		expected []PathSegment
	}{
		{
			name:     "bare key",
			ref:      "email",
			expected: []PathSegment{{Key: "email"}},
		},
		{
			name:     "dotted path",
			ref:      "user.name",
			expected: []PathSegment{{Key: "user"}, {Key: "name"}},
		},
		{
			name: "bracket index",
			ref:  "items[0].name",
			expected: []PathSegment{
				{Key: "items"},
				{Index: 0, IsIndex: true},
				{Key: "name"},
			},
		},
		{
			name: "index only segment",
			ref:  "rows[2]",
			expected: []PathSegment{
				{Key: "rows"},
				{Index: 2, IsIndex: true},
			},
		},
		{
			name:     "stray dots dropped",
			ref:      "a..b.",
			expected: []PathSegment{{Key: "a"}, {Key: "b"}},
		},
		{
			name:     "unbalanced bracket kept literal",
			ref:      "weird[key",
			expected: []PathSegment{{Key: "weird[key"}},
		},
		{
			name:     "non-numeric bracket treated as key",
			ref:      "map[name]",
			expected: []PathSegment{{Key: "map"}, {Key: "name"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParsePath(tt.ref)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("ParsePath(%q) = %+v, expected %+v", tt.ref, got, tt.expected)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	ctx := map[string]any{
		"email": "ann@example.com",
		"user":  map[string]any{"name": "Ann", "tags": []any{"vip", "beta"}},
		"items": []any{
			map[string]any{"price": float64(10)},
			map[string]any{"price": float64(20)},
		},
		"nothing": nil,
		"formData": map[string]any{
			"phone": "555-0100",
		},
		"submission": map[string]any{
			"data": map[string]any{
				"company": "Acme",
			},
		},
	}

	tests := []struct {
		name     string
		ref      string
		expected any
		ok       bool
	}{
		{"top-level key", "email", "ann@example.com", true},
		{"nested object", "user.name", "Ann", true},
		{"array index", "items[1].price", float64(20), true},
		{"array of scalars", "user.tags[0]", "vip", true},
		{"resolved null", "nothing", nil, true},
		{"bare key falls back to formData", "phone", "555-0100", true},
		{"bare key falls back to submission.data", "company", "Acme", true},
		{"missing key", "absent", nil, false},
		{"missing nested key", "user.age", nil, false},
		{"index out of range", "items[5].price", nil, false},
		{"negative index", "items[-1]", nil, false},
		{"scalar mid-path", "email.domain", nil, false},
		{"index on object", "user[0]", nil, false},
		{"empty reference", "", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Resolve(tt.ref, ctx)
			if ok != tt.ok {
				t.Fatalf("Resolve(%q) ok = %v, expected %v", tt.ref, ok, tt.ok)
			}
			if ok && !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Resolve(%q) = %v, expected %v", tt.ref, got, tt.expected)
			}
		})
	}
}

func TestResolve_NilContext(t *testing.T) {
	if _, ok := Resolve("key", nil); ok {
		t.Error("expected unresolved for nil context")
	}
}

func TestResolve_DepthLimit(t *testing.T) {
	// 17 segments exceeds MaxPathDepth
	ref := "a.b.c.d.e.f.g.h.i.j.k.l.m.n.o.p.q"
	if _, ok := Resolve(ref, map[string]any{"a": "x"}); ok {
		t.Error("expected over-deep reference to be unresolved")
	}
}

// Top-level values must shadow the fallback sub-objects.
func TestResolve_TopLevelWins(t *testing.T) {
	ctx := map[string]any{
		"name":     "top",
		"formData": map[string]any{"name": "nested"},
	}
	got, ok := Resolve("name", ctx)
	if !ok || got != "top" {
		t.Errorf("Resolve(name) = %v, %v; expected top, true", got, ok)
	}
}

func TestResolve_PropertyNeverPanics(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("resolution never panics on arbitrary references", prop.ForAll(
		func(ref string) bool {
			ctx := map[string]any{
				"a": map[string]any{"b": []any{map[string]any{"c": 1}}},
			}
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("Resolve(%q) panicked: %v", ref, r)
				}
			}()
			_, _ = Resolve(ref, ctx)
			return true
		},
		gen.AnyString(),
	))

	properties.Property("resolution is deterministic", prop.ForAll(
		func(ref string) bool {
			ctx := map[string]any{"x": []any{"y", "z"}}
			v1, ok1 := Resolve(ref, ctx)
			v2, ok2 := Resolve(ref, ctx)
			return ok1 == ok2 && reflect.DeepEqual(v1, v2)
		},
		gen.RegexMatch(`[a-z.\[\]0-9]{0,20}`),
	))

	properties.TestingRun(t)
}
