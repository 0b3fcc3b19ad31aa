package template

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/CamDog38/formrelay/internal/rules"
	"github.com/CamDog38/formrelay/internal/types"
)

/*
 * Template rendering.
 *
 * Expands the persisted placeholder grammar against a context map:
 *
 *   {{name}} / {{a.b.c}}            variable reference
 *   {{#if name}}...{{else}}...{{/if}}  conditional block (else optional)
 *   {{#each name}}...{{/each}}      iteration block
 *
 * The grammar is a stable on-disk compatibility contract; previously stored
 * templates must keep rendering identically.
 *
 * Unresolved references stay verbatim in the output, never replaced with an
 * empty string: a missing binding is visible in the rendered message instead
 * of silently disappearing, which downstream debugging relies on.
 *
 * Rendering is total. Unterminated blocks, unknown block types, and stray
 * closers are emitted as-is and rendering continues after them; at worst the
 * output is the template with some placeholders unexpanded.
 *
 * References resolve through the field-path resolver (internal/rules), so
 * the same dotted/bracket syntax and flattened-alias fallback apply in
 * conditions and templates alike.
 */

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// Render expands a template against the context. It never returns an error;
// see the package comment for degradation behavior on malformed input.
func Render(template string, ctx map[string]any) string {
	var out strings.Builder
	out.Grow(len(template))
	renderInto(&out, template, ctx, 0)
	return out.String()
}

func renderInto(out *strings.Builder, input string, ctx map[string]any, depth int) {
	for {
		open := strings.Index(input, openDelim)
		if open < 0 {
			out.WriteString(input)
			return
		}
		out.WriteString(input[:open])
		input = input[open:]

		end := strings.Index(input, closeDelim)
		if end < 0 {
			// Unterminated tag: emit remainder verbatim
			out.WriteString(input)
			return
		}

		rawTag := input[:end+len(closeDelim)]
		tag := strings.TrimSpace(input[len(openDelim):end])
		rest := input[end+len(closeDelim):]

		switch {
		case strings.HasPrefix(tag, "#if "):
			name := strings.TrimSpace(tag[len("#if "):])
			body, after, found := spanBlock(rest, "#if", "/if")
			if !found || depth >= types.MaxTemplateNesting {
				out.WriteString(rawTag)
				input = rest
				continue
			}
			thenPart, elsePart := splitElse(body)
			if truthy(resolveRef(name, ctx)) {
				renderInto(out, thenPart, ctx, depth+1)
			} else {
				renderInto(out, elsePart, ctx, depth+1)
			}
			input = after

		case strings.HasPrefix(tag, "#each "):
			name := strings.TrimSpace(tag[len("#each "):])
			body, after, found := spanBlock(rest, "#each", "/each")
			if !found || depth >= types.MaxTemplateNesting {
				out.WriteString(rawTag)
				input = rest
				continue
			}
			if value, ok := rules.Resolve(name, ctx); ok {
				if items, isList := value.([]any); isList {
					for _, item := range items {
						renderInto(out, body, elementContext(ctx, item), depth+1)
					}
				}
			}
			// Non-array or unresolved name renders zero iterations
			input = after

		case strings.HasPrefix(tag, "#"):
			// Unknown block type: leave markup intact
			out.WriteString(rawTag)
			input = rest

		case tag == "/if" || tag == "/each" || tag == "else":
			// Stray closer without opener
			out.WriteString(rawTag)
			input = rest

		default:
			if value, ok := rules.Resolve(tag, ctx); ok {
				out.WriteString(formatValue(value))
			} else {
				out.WriteString(rawTag)
			}
			input = rest
		}
	}
}

// spanBlock finds the interior of a block whose opener was just consumed,
// honoring nested blocks of the same kind. Returns the interior, the input
// after the matching closer, and whether a closer was found.
func spanBlock(input, opener, closer string) (body, after string, found bool) {
	depth := 1
	pos := 0
	for {
		open := strings.Index(input[pos:], openDelim)
		if open < 0 {
			return "", "", false
		}
		start := pos + open
		end := strings.Index(input[start:], closeDelim)
		if end < 0 {
			return "", "", false
		}
		tag := strings.TrimSpace(input[start+len(openDelim) : start+end])
		tagEnd := start + end + len(closeDelim)

		switch {
		case tag == closer:
			depth--
			if depth == 0 {
				return input[:start], input[tagEnd:], true
			}
		case strings.HasPrefix(tag, opener+" "):
			depth++
		}
		pos = tagEnd
	}
}

// splitElse splits a conditional body at the first top-level {{else}}.
// Nested conditionals keep their own else branches.
func splitElse(body string) (thenPart, elsePart string) {
	depth := 0
	pos := 0
	for {
		open := strings.Index(body[pos:], openDelim)
		if open < 0 {
			return body, ""
		}
		start := pos + open
		end := strings.Index(body[start:], closeDelim)
		if end < 0 {
			return body, ""
		}
		tag := strings.TrimSpace(body[start+len(openDelim) : start+end])
		tagEnd := start + end + len(closeDelim)

		switch {
		case strings.HasPrefix(tag, "#if "):
			depth++
		case tag == "/if":
			depth--
		case tag == "else" && depth == 0:
			return body[:start], body[tagEnd:]
		}
		pos = tagEnd
	}
}

// elementContext merges an iteration element into a copy of the enclosing
// context. Object elements expose their fields directly ({{description}}
// refers to the current element); every element is also bound to "this" for
// scalar lists.
func elementContext(ctx map[string]any, item any) map[string]any {
	local := make(map[string]any, len(ctx)+2)
	for k, v := range ctx {
		local[k] = v
	}
	if m, ok := item.(map[string]any); ok {
		for k, v := range m {
			local[k] = v
		}
	}
	local["this"] = item
	return local
}

// resolveRef resolves a reference for truthiness checks; unresolved counts
// as nil (falsy).
func resolveRef(name string, ctx map[string]any) any {
	value, ok := rules.Resolve(name, ctx)
	if !ok {
		return nil
	}
	return value
}

// truthy implements block-condition truthiness: non-empty string, non-zero
// number, non-empty array or object, true.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

// formatValue renders a resolved value as output text. Resolved JSON null
// renders empty (the reference existed); composite values render as compact
// JSON.
func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		encoded, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}
