package report

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is the JSON Schema for the report artifact. Kept in source so the
// CLI can validate reports produced by older builds without a network fetch.
const Schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "flakespec retry report",
  "type": "object",
  "required": ["retries"],
  "properties": {
    "runId": {"type": "string"},
    "time": {"type": "string"},
    "retries": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "maxRetriesAllowed", "attemptedRetries", "reason", "fixable"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "maxRetriesAllowed": {"type": "integer", "minimum": 1},
          "attemptedRetries": {"type": "integer", "minimum": 0},
          "reason": {"type": "string", "minLength": 1},
          "fixable": {"type": "boolean"}
        }
      }
    }
  }
}`

// ValidateBytes checks raw report data against the schema and returns a
// single error listing every violation.
func ValidateBytes(data []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(Schema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var errs []string
	for _, desc := range result.Errors() {
		errs = append(errs, desc.String())
	}
	return fmt.Errorf("report does not match schema: %s", strings.Join(errs, "; "))
}
