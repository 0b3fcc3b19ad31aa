package rules

import (
	"strconv"
	"strings"
)

/*
 * Operator comparison logic.
 *
 * Implements the condition operators with type-tolerant comparison rules.
 * Operator application on a type-mismatched value (numeric compare on a
 * non-numeric string, contains on a number) evaluates to false rather than
 * raising; clause-level faults never propagate.
 *
 * Operators:
 *   - $eq/$ne: Equality with numeric type mixing
 *   - $exists/$notNull: Null/presence checks
 *   - $contains: Substring or array membership
 *   - $gt/$lt/$gte/$lte: Numeric comparison only
 *
 * The set is extensible: unknown operator names parse to OpInvalid, which
 * compares false for every input. Adding an operator is one case here plus
 * one alias entry in ParseOperator.
 *
 * Why function-based: the operators differ by a few lines of comparison
 * each; a switch reads better than nine single-method implementations.
 */

// Operator identifies a condition clause operator. The zero value is
// OpInvalid, which never matches.
type Operator string

const (
	OpInvalid  Operator = ""
	OpEq       Operator = "$eq"
	OpNe       Operator = "$ne"
	OpExists   Operator = "$exists"
	OpNotNull  Operator = "$notNull"
	OpContains Operator = "$contains"
	OpGt       Operator = "$gt"
	OpLt       Operator = "$lt"
	OpGte      Operator = "$gte"
	OpLte      Operator = "$lte"
)

// ParseOperator normalizes a stored operator name. The leading "$" is
// optional and legacy aliases are accepted; anything unrecognized maps to
// OpInvalid (unknown operators default to non-matching).
func ParseOperator(s string) Operator {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "$")) {
	case "eq", "equals":
		return OpEq
	case "ne", "neq", "not_equals":
		return OpNe
	case "exists":
		return OpExists
	case "notnull", "not_null", "isnotnull":
		return OpNotNull
	case "contains":
		return OpContains
	case "gt":
		return OpGt
	case "lt":
		return OpLt
	case "gte":
		return OpGte
	case "lte":
		return OpLte
	default:
		return OpInvalid
	}
}

// Compare applies the operator to a resolved field value and the clause
// target. The value has already been resolved; unresolved fields are handled
// by the evaluator before Compare is reached and never match.
func Compare(op Operator, value, target any) bool {
	switch op {
	case OpEq:
		return compareEqual(value, target)
	case OpNe:
		return !compareEqual(value, target)
	case OpExists:
		// {"$exists": false} inverts the presence check for a resolved
		// null value; a field that never resolved is handled upstream.
		if want, ok := target.(bool); ok {
			return (value != nil) == want
		}
		return value != nil
	case OpNotNull:
		return value != nil
	case OpContains:
		return compareContains(value, target)
	case OpGt:
		cmp, ok := compareNumeric(value, target)
		return ok && cmp > 0
	case OpLt:
		cmp, ok := compareNumeric(value, target)
		return ok && cmp < 0
	case OpGte:
		cmp, ok := compareNumeric(value, target)
		return ok && cmp >= 0
	case OpLte:
		cmp, ok := compareNumeric(value, target)
		return ok && cmp <= 0
	default:
		return false
	}
}

// compareEqual performs equality comparison with numeric type coercion.
// Handles float64/int/int64 mixing for JSON compatibility.
func compareEqual(a, b any) bool {
	if na, nb, ok := asNumbers(a, b); ok {
		return na == nb
	}
	return a == b
}

// compareNumeric performs three-way numeric comparison (-1/0/1).
// The ok flag is false for incomparable types so ordered operators can
// evaluate false instead of treating a mismatch as equal.
func compareNumeric(a, b any) (int, bool) {
	na, nb, ok := asNumbers(a, b)
	if !ok {
		return 0, false
	}
	switch {
	case na < nb:
		return -1, true
	case na > nb:
		return 1, true
	default:
		return 0, true
	}
}

// asNumbers attempts to convert both values to float64 for numeric
// comparison. Numeric strings are accepted because form field values arrive
// as strings even for number inputs.
func asNumbers(a, b any) (float64, float64, bool) {
	na, oka := toFloat64(a)
	nb, okb := toFloat64(b)
	return na, nb, oka && okb
}

// toFloat64 converts value to float64 if it is numeric or a numeric string.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// compareContains checks substring containment for string values and
// membership (equality semantics) for array values. Other value types
// never match.
func compareContains(value, target any) bool {
	switch v := value.(type) {
	case string:
		t, ok := asString(target)
		if !ok {
			return false
		}
		return strings.Contains(v, t)
	case []any:
		for _, elem := range v {
			if compareEqual(elem, target) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// asString converts scalar targets to their string form for substring
// checks; checkbox-style fields store numbers as strings.
func asString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}
