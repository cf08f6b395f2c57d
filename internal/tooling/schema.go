package tooling

import (
	"encoding/json"
	"fmt"

	invopopSchema "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"peek/internal/domain"
)

// marshalFunc is the JSON marshaler used by GenerateSchema. Package-level so
// tests can inject a failing marshaler.
var marshalFunc = json.Marshal

// GenerateSchema reflects a JSON Schema object from a Go struct using
// invopop/jsonschema. Meta keys ($schema, $id) are dropped since providers
// only want the object schema. Returns nil if the schema cannot be encoded.
func GenerateSchema(input any) map[string]any {
	reflector := invopopSchema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(input)

	data, err := marshalFunc(schema)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out
}

// ValidateArguments checks raw tool-call arguments against def's parameter
// schema with santhosh-tekuri/jsonschema. A definition without parameters
// accepts any JSON object.
func ValidateArguments(def domain.ToolDefinition, raw string) error {
	var args any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return fmt.Errorf("invalid JSON arguments: %w", err)
	}
	if len(def.Parameters) == 0 {
		if _, ok := args.(map[string]any); !ok {
			return fmt.Errorf("arguments must be a JSON object")
		}
		return nil
	}

	schemaText, err := marshalFunc(def.Parameters)
	if err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}
	schema, err := jsonschema.CompileString(def.Name+".json", string(schemaText))
	if err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}
	if err := schema.Validate(args); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}
