// Package schema validates run-trigger inputs against the JSON Schema a
// workflow declares inline. Schemas are checked at save time and payloads
// at trigger time; nothing here touches schema registries or raw documents.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

const inlineSchemaID = "inmemory://inline"

func compile(schema map[string]any) (*jsonschema.Schema, error) {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(inlineSchemaID, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(inlineSchemaID)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return compiled, nil
}

// ValidateMap checks a decoded JSON payload against an inline schema map.
func ValidateMap(schema map[string]any, value map[string]any) error {
	if len(schema) == 0 {
		return fmt.Errorf("schema is empty")
	}
	compiled, err := compile(schema)
	if err != nil {
		return err
	}
	if err := compiled.Validate(map[string]any(value)); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// CheckSchema compiles a schema map without validating a payload, so a
// malformed schema is rejected at save time rather than at run time. An
// absent schema is fine; declaring one is optional.
func CheckSchema(schema map[string]any) error {
	if len(schema) == 0 {
		return nil
	}
	_, err := compile(schema)
	return err
}
