package rules

import (
	"encoding/json"
)

/*
 * Condition evaluation.
 *
 * Evaluates a normalized ConditionNode against decoded submission data with
 * short-circuit semantics: AND stops on the first non-match, OR stops on the
 * first match. Evaluation is pure and synchronous so matching can be safely
 * repeated for idempotence testing.
 *
 * Clause handling:
 *   1. Resolve the field reference (flattened fallback included)
 *   2. Unresolved field -> clause is false for every operator, including
 *      existence checks; a rule can never fire on an absent field
 *   3. Resolved value -> operator comparison, type mismatches false
 *
 * An AND with no children is vacuously true, which is how an empty
 * condition tree means "always matches". An OR with no children is false.
 */

// Evaluate checks whether the condition tree matches the submission data.
func Evaluate(node ConditionNode, data map[string]any) bool {
	switch node.Kind {
	case KindAnd:
		for _, child := range node.Children {
			if !Evaluate(child, data) {
				return false
			}
		}
		return true
	case KindOr:
		for _, child := range node.Children {
			if Evaluate(child, data) {
				return true
			}
		}
		return false
	default:
		return evaluateClause(node, data)
	}
}

// EvaluateRaw normalizes stored condition JSON and evaluates it in one step.
// Malformed trees evaluate false, empty trees true, per Normalize.
func EvaluateRaw(raw json.RawMessage, data map[string]any) bool {
	return Evaluate(Normalize(raw), data)
}

// evaluateClause resolves the clause field and applies its operator.
func evaluateClause(clause ConditionNode, data map[string]any) bool {
	value, ok := Resolve(clause.Field, data)
	if !ok {
		return false
	}
	return Compare(clause.Op, value, clause.Value)
}
