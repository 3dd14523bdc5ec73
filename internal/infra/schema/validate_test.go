package schema

import "testing"

func TestValidateMapInline(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"customer_name": map[string]any{"type": "string"},
		},
		"required": []any{"customer_name"},
	}
	if err := ValidateMap(schema, map[string]any{"customer_name": "x"}); err != nil {
		t.Fatalf("expected valid payload: %v", err)
	}
	if err := ValidateMap(schema, map[string]any{}); err == nil {
		t.Fatalf("expected validation error for missing required field")
	}
	if err := ValidateMap(schema, map[string]any{"customer_name": 7}); err == nil {
		t.Fatalf("expected validation error for wrong type")
	}
}

func TestValidateMapNestedPayload(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"order": map[string]any{
				"type":     "object",
				"required": []any{"id"},
			},
		},
	}
	payload := map[string]any{"order": map[string]any{"id": "o-1"}}
	if err := ValidateMap(schema, payload); err != nil {
		t.Fatalf("nested payload rejected: %v", err)
	}
	if err := ValidateMap(schema, map[string]any{"order": map[string]any{}}); err == nil {
		t.Fatalf("expected validation error for nested required field")
	}
}

func TestValidateMapEmptySchema(t *testing.T) {
	if err := ValidateMap(nil, map[string]any{"k": "v"}); err == nil {
		t.Fatalf("expected error for empty schema")
	}
}

func TestCheckSchema(t *testing.T) {
	if err := CheckSchema(nil); err != nil {
		t.Fatalf("empty schema should pass: %v", err)
	}
	ok := map[string]any{"type": "object"}
	if err := CheckSchema(ok); err != nil {
		t.Fatalf("valid schema rejected: %v", err)
	}
	bad := map[string]any{"type": 42}
	if err := CheckSchema(bad); err == nil {
		t.Fatalf("expected compile error for malformed schema")
	}
}
