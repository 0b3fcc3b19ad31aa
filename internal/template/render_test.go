package template

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/CamDog38/formrelay/internal/types"
)

func TestRender_Variables(t *testing.T) {
	ctx := map[string]any{
		"name":  "Ann",
		"user":  map[string]any{"city": "Oslo"},
		"count": float64(3),
		"price": float64(49.9),
		"ok":    true,
		"blank": nil,
		"items": []any{"a", "b"},
	}

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{"simple variable", "Hello {{name}}", "Hello Ann"},
		{"dotted path", "City: {{user.city}}", "City: Oslo"},
		{"whitespace inside tag", "Hello {{ name }}", "Hello Ann"},
		{"integer-valued float", "n={{count}}", "n=3"},
		{"fractional float", "p={{price}}", "p=49.9"},
		{"boolean", "ok={{ok}}", "ok=true"},
		{"resolved null renders empty", "[{{blank}}]", "[]"},
		{"array renders as JSON", "{{items}}", `["a","b"]`},
		{"unresolved stays verbatim", "Hello {{missing}}", "Hello {{missing}}"},
		{"unresolved dotted stays verbatim", "{{user.zip}}", "{{user.zip}}"},
		{"unterminated tag verbatim", "Hi {{name", "Hi {{name"},
		{"plain text untouched", "no tags here", "no tags here"},
		{"empty template", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.template, ctx); got != tt.expected {
				t.Errorf("Render(%q) = %q, expected %q", tt.template, got, tt.expected)
			}
		})
	}
}

func TestRender_Conditionals(t *testing.T) {
	ctx := map[string]any{
		"vip":   true,
		"plain": false,
		"name":  "Ann",
		"empty": "",
		"zero":  float64(0),
		"tags":  []any{"x"},
	}

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{"truthy bool", "{{#if vip}}VIP{{/if}}", "VIP"},
		{"falsy bool", "{{#if plain}}upgrade{{/if}}", ""},
		{"non-empty string truthy", "{{#if name}}hi {{name}}{{/if}}", "hi Ann"},
		{"empty string falsy", "{{#if empty}}x{{/if}}", ""},
		{"zero falsy", "{{#if zero}}x{{/if}}", ""},
		{"non-empty array truthy", "{{#if tags}}tagged{{/if}}", "tagged"},
		{"unresolved falsy", "{{#if missing}}x{{/if}}", ""},
		{"else branch", "{{#if plain}}a{{else}}b{{/if}}", "b"},
		{"else not taken", "{{#if vip}}a{{else}}b{{/if}}", "a"},
		{
			"nested if keeps own else",
			"{{#if vip}}{{#if plain}}1{{else}}2{{/if}}{{else}}3{{/if}}",
			"2",
		},
		{"unterminated if verbatim", "{{#if vip}}open", "{{#if vip}}open"},
		{"stray closer verbatim", "text {{/if}}", "text {{/if}}"},
		{"stray else verbatim", "a {{else}} b", "a {{else}} b"},
		{"unknown block verbatim", "{{#unless vip}}x{{/unless}}", "{{#unless vip}}x{{/unless}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.template, ctx); got != tt.expected {
				t.Errorf("Render(%q) = %q, expected %q", tt.template, got, tt.expected)
			}
		})
	}
}

func TestRender_Iteration(t *testing.T) {
	ctx := map[string]any{
		"items": []any{
			map[string]any{"description": "first", "qty": float64(1)},
			map[string]any{"description": "second", "qty": float64(2)},
		},
		"names":  []any{"Ann", "Bo"},
		"single": "not an array",
		"title":  "Order",
	}

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{
			"object elements expose fields",
			"{{#each items}}{{description}};{{/each}}",
			"first;second;",
		},
		{
			"scalar elements via this",
			"{{#each names}}{{this}},{{/each}}",
			"Ann,Bo,",
		},
		{
			"outer context visible inside block",
			"{{#each names}}{{title}}:{{this}} {{/each}}",
			"Order:Ann Order:Bo ",
		},
		{"non-array renders zero iterations", "{{#each single}}x{{/each}}", ""},
		{"unresolved renders zero iterations", "{{#each missing}}x{{/each}}", ""},
		{"unterminated each verbatim", "{{#each names}}x", "{{#each names}}x"},
		{
			"nested each",
			"{{#each items}}{{#each names}}{{this}}{{/each}}|{{/each}}",
			"AnnBo|AnnBo|",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.template, ctx); got != tt.expected {
				t.Errorf("Render(%q) = %q, expected %q", tt.template, got, tt.expected)
			}
		})
	}
}

func TestBuildContext(t *testing.T) {
	sub := types.Submission{
		SubmissionID: types.NewSubmissionID(),
		FormID:       types.NewFormID(),
		Data:         types.SubmissionData(`{"email": "ann@example.com", "formId": "custom"}`),
	}

	ctx := BuildContext(sub)

	if got := Render("{{email}}", ctx); got != "ann@example.com" {
		t.Errorf("flattened field = %q", got)
	}
	if got := Render("{{formData.email}}", ctx); got != "ann@example.com" {
		t.Errorf("formData path = %q", got)
	}
	if got := Render("{{submission.data.email}}", ctx); got != "ann@example.com" {
		t.Errorf("submission.data path = %q", got)
	}
	if got := Render("{{submissionId}}", ctx); got != string(sub.SubmissionID) {
		t.Errorf("submissionId alias = %q", got)
	}

	// Field values shadow computed aliases
	if got := Render("{{formId}}", ctx); got != "custom" {
		t.Errorf("formId = %q, expected field value to win over alias", got)
	}

	if got := Render("{{submittedAt}}", ctx); got == "{{submittedAt}}" || got == "" {
		t.Errorf("submittedAt alias unresolved: %q", got)
	}
}

func TestBuildContext_MalformedData(t *testing.T) {
	sub := types.Submission{
		SubmissionID: types.NewSubmissionID(),
		FormID:       types.NewFormID(),
		Data:         types.SubmissionData(`{broken`),
	}

	ctx := BuildContext(sub)
	if got := Render("{{anything}}", ctx); got != "{{anything}}" {
		t.Errorf("malformed data should behave as no fields, got %q", got)
	}
	if got := Render("{{submissionId}}", ctx); got != string(sub.SubmissionID) {
		t.Errorf("aliases must survive malformed data, got %q", got)
	}
}

func TestRender_PropertyTotality(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	ctx := map[string]any{
		"name":  "Ann",
		"items": []any{map[string]any{"q": float64(1)}},
	}

	properties.Property("rendering never panics on arbitrary input", prop.ForAll(
		func(input string) bool {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("Render(%q) panicked: %v", input, r)
				}
			}()
			_ = Render(input, ctx)
			return true
		},
		gen.AnyString(),
	))

	properties.Property("templates without tags pass through unchanged", prop.ForAll(
		func(input string) bool {
			if strings.Contains(input, "{{") {
				return true
			}
			return Render(input, ctx) == input
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
