package rules

import (
	"strconv"
	"strings"

	"github.com/CamDog38/formrelay/internal/types"
)

/*
 * Field path resolution for submission contexts.
 *
 * Resolves dotted/bracket references ("a.b.c", "items[0].name") and bare
 * keys against a decoded context map. Bare keys that miss at the top level
 * fall back into the well-known "formData" and "submission.data" sub-objects,
 * mirroring how callers flatten submission data before rendering: templates
 * authored against either {{field}} or {{formData.field}} resolve the same
 * value.
 *
 * Key functions:
 *   - ParsePath: Splits a reference into path segments
 *   - Resolve: Traverses the context following segments
 *
 * Resolution never returns an error: missing or untraversable references
 * report unresolved via the ok flag. MaxPathDepth is enforced at resolution
 * time; over-deep references are unresolved, not faults.
 */

// PathSegment represents one component of a field path.
// String for object keys, int for array indices.
type PathSegment struct {
	Key     string // object key (mutually exclusive with Index)
	Index   int    // array index (mutually exclusive with Key)
	IsIndex bool   // disambiguates Index=0 from unset
}

// ParsePath splits a reference into segments. Dots separate object keys and
// "[n]" suffixes address array elements, so "items[0].name" yields three
// segments. Empty segments from stray dots are dropped.
func ParsePath(ref string) []PathSegment {
	var segments []PathSegment
	for _, part := range strings.Split(ref, ".") {
		if part == "" {
			continue
		}
		for {
			open := strings.IndexByte(part, '[')
			if open < 0 {
				segments = append(segments, PathSegment{Key: part})
				break
			}
			close := strings.IndexByte(part, ']')
			if close < open {
				// Unbalanced bracket: treat remainder as a literal key
				segments = append(segments, PathSegment{Key: part})
				break
			}
			if open > 0 {
				segments = append(segments, PathSegment{Key: part[:open]})
			}
			idx, err := strconv.Atoi(part[open+1 : close])
			if err != nil {
				segments = append(segments, PathSegment{Key: part[open+1 : close]})
			} else {
				segments = append(segments, PathSegment{Index: idx, IsIndex: true})
			}
			part = part[close+1:]
			if part == "" {
				break
			}
		}
	}
	return segments
}

// Aliases tried, in order, when a bare key misses at the top level.
// "formData" holds the flattened submission mapping; "submission" nests the
// same mapping under "data".
var bareKeyFallbacks = [][]string{
	{"formData"},
	{"submission", "data"},
}

// Resolve looks up a reference in the context. Dotted/bracket references
// traverse segment by segment; a bare key is tried at the top level first
// and then inside the flattened-alias sub-objects. The second return value
// reports whether the reference resolved; a resolved JSON null returns
// (nil, true).
func Resolve(ref string, ctx map[string]any) (any, bool) {
	if ctx == nil || ref == "" {
		return nil, false
	}

	segments := ParsePath(ref)
	if len(segments) == 0 || len(segments) > types.MaxPathDepth {
		return nil, false
	}

	if len(segments) == 1 && !segments[0].IsIndex {
		key := segments[0].Key
		if v, ok := ctx[key]; ok {
			return v, true
		}
		for _, prefix := range bareKeyFallbacks {
			sub := any(ctx)
			ok := true
			for _, p := range prefix {
				m, isMap := sub.(map[string]any)
				if !isMap {
					ok = false
					break
				}
				if sub, ok = m[p]; !ok {
					break
				}
			}
			if !ok {
				continue
			}
			if m, isMap := sub.(map[string]any); isMap {
				if v, found := m[key]; found {
					return v, true
				}
			}
		}
		return nil, false
	}

	return resolveSegments(segments, ctx)
}

// resolveSegments walks nested maps and arrays following path segments.
// Any missing key, out-of-range index, or scalar hit mid-path reports
// unresolved.
func resolveSegments(segments []PathSegment, current any) (any, bool) {
	for _, seg := range segments {
		switch v := current.(type) {
		case map[string]any:
			if seg.IsIndex {
				return nil, false
			}
			val, ok := v[seg.Key]
			if !ok {
				return nil, false
			}
			current = val
		case []any:
			if !seg.IsIndex {
				return nil, false
			}
			if seg.Index < 0 || seg.Index >= len(v) {
				return nil, false
			}
			current = v[seg.Index]
		default:
			// Scalar or null at intermediate position
			return nil, false
		}
	}
	return current, true
}
