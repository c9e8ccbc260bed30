// Package validation holds JSON-schema checks for outbound payloads and struct-tag checks for
// inbound requests.
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// FieldError is a single violation at a JSON path.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// SchemaError lists every violation found in one document.
type SchemaError struct {
	Errors []FieldError
}

func (e *SchemaError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fmt.Sprintf("%s: %s", fe.Field, fe.Message)
	}
	return "schema validation failed: " + strings.Join(parts, "; ")
}

// Schema is a compiled JSON schema.
type Schema struct {
	schema *gojsonschema.Schema
}

// CompileSchema parses a JSON schema document.
func CompileSchema(source string) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &Schema{schema: s}, nil
}

// MustCompileSchema is CompileSchema for package-level schemas.
func MustCompileSchema(source string) *Schema {
	s, err := CompileSchema(source)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks doc, which may be any value encoding/json can marshal. A violation is
// returned as *SchemaError.
func (s *Schema) Validate(doc interface{}) error {
	result, err := s.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	out := &SchemaError{Errors: make([]FieldError, 0, len(result.Errors()))}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, FieldError{
			Field:   desc.Field(),
			Message: desc.Description(),
		})
	}
	return out
}
