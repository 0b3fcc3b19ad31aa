package rules

import (
	"encoding/json"
	"fmt"
	"testing"
)

func TestNormalize_EmptyTrees(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"nil", ""},
		{"null", `null`},
		{"empty object", `{}`},
		{"empty array", `[]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := Normalize(json.RawMessage(tt.raw))
			if node.Kind != KindAnd || len(node.Children) != 0 {
				t.Errorf("Normalize(%q) = %+v, expected empty AND", tt.raw, node)
			}
			if !Evaluate(node, map[string]any{}) {
				t.Errorf("empty tree must always match")
			}
		})
	}
}

func TestNormalize_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"truncated JSON", `{"email": {"$eq"`},
		{"bare string", `"pro"`},
		{"bare number", `42`},
		{"scalar in combinator", `{"and": [1, 2]}`},
		{"combinator not a list", `{"or": "nope"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := Normalize(json.RawMessage(tt.raw))
			if Evaluate(node, map[string]any{"email": "a@b.c"}) {
				t.Errorf("malformed tree %q must never match", tt.raw)
			}
		})
	}
}

func TestNormalize_LegacyFlattened(t *testing.T) {
	raw := `{"plan": "pro", "email": {"$ne": null}}`
	node := Normalize(json.RawMessage(raw))

	if node.Kind != KindAnd {
		t.Fatalf("expected AND root, got %+v", node)
	}
	if len(node.Children) != 2 {
		t.Fatalf("expected 2 clauses, got %d", len(node.Children))
	}

	// Fields sorted: email before plan
	if node.Children[0].Field != "email" || node.Children[0].Op != OpNe {
		t.Errorf("first clause = %+v, expected email $ne", node.Children[0])
	}
	if node.Children[1].Field != "plan" || node.Children[1].Op != OpEq || node.Children[1].Value != "pro" {
		t.Errorf("second clause = %+v, expected plan $eq pro", node.Children[1])
	}
}

func TestNormalize_MultipleOperatorsPerField(t *testing.T) {
	raw := `{"age": {"$gte": 18, "$lt": 65}}`
	node := Normalize(json.RawMessage(raw))

	if node.Kind != KindAnd || len(node.Children) != 2 {
		t.Fatalf("expected 2-clause AND, got %+v", node)
	}
	for _, c := range node.Children {
		if c.Field != "age" {
			t.Errorf("clause field = %q, expected age", c.Field)
		}
	}
}

func TestNormalize_ExplicitTree(t *testing.T) {
	raw := `{
		"or": [
			{"field": "plan", "operator": "eq", "value": "pro"},
			{"and": [
				{"field": "seats", "operator": "$gte", "value": 10},
				{"field": "trial", "operator": "exists", "value": false}
			]}
		]
	}`
	node := Normalize(json.RawMessage(raw))

	if node.Kind != KindOr || len(node.Children) != 2 {
		t.Fatalf("expected 2-child OR, got %+v", node)
	}
	if node.Children[0].Kind != KindClause || node.Children[0].Op != OpEq {
		t.Errorf("first child = %+v, expected eq clause", node.Children[0])
	}
	if node.Children[1].Kind != KindAnd || len(node.Children[1].Children) != 2 {
		t.Errorf("second child = %+v, expected 2-clause AND", node.Children[1])
	}
}

func TestNormalize_DollarCombinatorAlias(t *testing.T) {
	raw := `{"$and": [{"field": "x", "operator": "eq", "value": 1}]}`
	node := Normalize(json.RawMessage(raw))
	if node.Kind != KindAnd || len(node.Children) != 1 {
		t.Errorf("$and alias not accepted: %+v", node)
	}
}

func TestNormalize_UnknownOperator(t *testing.T) {
	raw := `{"field": "x", "operator": "$regex", "value": ".*"}`
	node := Normalize(json.RawMessage(raw))
	if node.Op != OpInvalid {
		t.Fatalf("unknown operator parsed to %q, expected OpInvalid", node.Op)
	}
	if Evaluate(node, map[string]any{"x": "anything"}) {
		t.Error("unknown operator must evaluate false")
	}
}

func TestNormalize_NodeBudget(t *testing.T) {
	// Overshoot MaxConditionNodes with a wide implicit AND
	obj := map[string]any{}
	for i := 0; i < 400; i++ {
		obj[fmt.Sprintf("field%03d", i)] = i
	}
	raw, _ := json.Marshal(obj)

	node := Normalize(raw)
	if Evaluate(node, map[string]any{}) {
		t.Error("over-budget tree must never match")
	}
}
