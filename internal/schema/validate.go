package schema

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// validateURL is a synthetic resource name; Validate compiles the raw
// parameter schema itself as a meta-schema-conformant document rather than
// validating an instance against it, so the only thing we're checking is
// "is this structurally a valid JSON Schema", not any particular payload.
const validateURL = "mem://tool-parameters.json"

// Validate reports whether raw is a structurally well-formed JSON Schema
// document. It is a diagnostic gate run once at tool registration time,
// before Sanitize ever sees the schema. Sanitize itself never errors and
// still runs even when Validate fails, so a malformed tool schema never
// takes the registry down; the caller is expected to log the error.
func Validate(raw map[string]any) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("schema: marshal for validation: %w", err)
	}
	if _, err := jsonschema.CompileString(validateURL, string(data)); err != nil {
		return fmt.Errorf("schema: invalid tool parameter schema: %w", err)
	}
	return nil
}
