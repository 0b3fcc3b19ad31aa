package rules

import (
	"encoding/json"
	"sort"

	"github.com/CamDog38/formrelay/internal/types"
)

/*
 * Condition tree normalization.
 *
 * Stored rule conditions arrive in two on-disk shapes, both supported
 * indefinitely for backward compatibility:
 *
 *   legacy flattened:  {"email": {"$ne": null}, "plan": "pro"}
 *                      (implicit AND; bare scalar values mean $eq)
 *   explicit tree:     {"and": [...]} / {"or": [...]} with nested trees or
 *                      clause objects {"field": ..., "operator": ..., "value": ...}
 *
 * Normalize converts either shape into one tagged ConditionNode variant
 * (Clause | And | Or) so evaluation never inspects raw JSON. Normalization
 * is total: malformed input produces a node that evaluates false, while an
 * empty or absent tree produces a node that always matches (a rule with no
 * conditions is unconditionally active).
 *
 * Determinism: implicit-AND field entries are sorted by field name so the
 * same stored bytes always normalize to the same tree.
 */

// NodeKind tags the ConditionNode variant.
type NodeKind int

const (
	KindClause NodeKind = iota
	KindAnd
	KindOr
)

// ConditionNode is the internal representation of a condition tree.
// Clause nodes carry Field/Op/Value; And/Or nodes carry Children.
type ConditionNode struct {
	Kind     NodeKind
	Field    string
	Op       Operator
	Value    any
	Children []ConditionNode
}

// alwaysMatch is the normalization of an empty tree: an AND with no
// children is vacuously true.
func alwaysMatch() ConditionNode {
	return ConditionNode{Kind: KindAnd}
}

// neverMatch represents malformed input: a clause with OpInvalid compares
// false for every submission.
func neverMatch() ConditionNode {
	return ConditionNode{Kind: KindClause, Op: OpInvalid}
}

// Normalize parses stored condition JSON into a ConditionNode. It never
// returns an error: nil, "null", "{}" and "[]" normalize to always-match,
// and anything unparsable normalizes to never-match so a broken rule cannot
// fire.
func Normalize(raw json.RawMessage) ConditionNode {
	if len(raw) == 0 {
		return alwaysMatch()
	}

	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return neverMatch()
	}

	budget := types.MaxConditionNodes
	node, ok := normalizeValue(parsed, &budget)
	if !ok {
		return neverMatch()
	}
	return node
}

// normalizeValue converts one decoded JSON value into a node. The budget
// counter bounds total node count across the whole tree.
func normalizeValue(v any, budget *int) (ConditionNode, bool) {
	if *budget <= 0 {
		return ConditionNode{}, false
	}
	*budget--

	switch t := v.(type) {
	case nil:
		return alwaysMatch(), true
	case map[string]any:
		if len(t) == 0 {
			return alwaysMatch(), true
		}
		return normalizeObject(t, budget)
	case []any:
		// A bare array is an implicit AND of its elements (some stored
		// rules wrap clause objects in a list).
		if len(t) == 0 {
			return alwaysMatch(), true
		}
		children, ok := normalizeList(t, budget)
		if !ok {
			return ConditionNode{}, false
		}
		return ConditionNode{Kind: KindAnd, Children: children}, true
	default:
		// Scalar at tree position is malformed
		return ConditionNode{}, false
	}
}

// normalizeObject dispatches on object shape: combinator, explicit clause,
// or legacy flattened field map.
func normalizeObject(obj map[string]any, budget *int) (ConditionNode, bool) {
	if children, ok := combinatorList(obj, "and"); ok {
		nodes, valid := normalizeList(children, budget)
		if !valid {
			return ConditionNode{}, false
		}
		return ConditionNode{Kind: KindAnd, Children: nodes}, true
	}
	if children, ok := combinatorList(obj, "or"); ok {
		nodes, valid := normalizeList(children, budget)
		if !valid {
			return ConditionNode{}, false
		}
		return ConditionNode{Kind: KindOr, Children: nodes}, true
	}

	if field, isClause := obj["field"].(string); isClause {
		opName, _ := obj["operator"].(string)
		return ConditionNode{
			Kind:  KindClause,
			Field: field,
			Op:    ParseOperator(opName),
			Value: obj["value"],
		}, true
	}

	return normalizeFlattened(obj, budget)
}

// combinatorList extracts the child list for a combinator key, accepting
// the "$"-prefixed alias used by some stored rules.
func combinatorList(obj map[string]any, name string) ([]any, bool) {
	for _, key := range []string{name, "$" + name} {
		if v, ok := obj[key]; ok {
			list, isList := v.([]any)
			return list, isList
		}
	}
	return nil, false
}

// normalizeFlattened converts the legacy per-field map into an implicit AND
// of clauses. A field mapped to an operator object yields one clause per
// operator entry; a field mapped to a bare scalar yields an $eq clause.
// Field and operator iteration is sorted for stable normalization.
func normalizeFlattened(obj map[string]any, budget *int) (ConditionNode, bool) {
	fields := make([]string, 0, len(obj))
	for k := range obj {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	node := ConditionNode{Kind: KindAnd}
	for _, field := range fields {
		switch spec := obj[field].(type) {
		case map[string]any:
			ops := make([]string, 0, len(spec))
			for op := range spec {
				ops = append(ops, op)
			}
			sort.Strings(ops)
			for _, op := range ops {
				if *budget <= 0 {
					return ConditionNode{}, false
				}
				*budget--
				node.Children = append(node.Children, ConditionNode{
					Kind:  KindClause,
					Field: field,
					Op:    ParseOperator(op),
					Value: spec[op],
				})
			}
		default:
			if *budget <= 0 {
				return ConditionNode{}, false
			}
			*budget--
			node.Children = append(node.Children, ConditionNode{
				Kind:  KindClause,
				Field: field,
				Op:    OpEq,
				Value: spec,
			})
		}
	}
	return node, true
}

// normalizeList normalizes each element of a combinator child list.
func normalizeList(list []any, budget *int) ([]ConditionNode, bool) {
	nodes := make([]ConditionNode, 0, len(list))
	for _, elem := range list {
		n, ok := normalizeValue(elem, budget)
		if !ok {
			return nil, false
		}
		nodes = append(nodes, n)
	}
	return nodes, true
}
