// Package schema validates LLM structured output against JSON schemas.
// Invalid output is rejected outright; nothing here attempts repair.
package schema

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a compiled JSON schema.
type Schema struct {
	compiled *gojsonschema.Schema
}

// MustCompile compiles a schema or panics. Reserved for package-level schema
// constants that are validated by tests.
func MustCompile(schemaJSON string) *Schema {
	compiled, err := Compile(schemaJSON)
	if err != nil {
		panic(err)
	}
	return compiled
}

// Compile parses and compiles a JSON schema.
func Compile(schemaJSON string) (*Schema, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{compiled: compiled}, nil
}

// Validate checks a JSON document against the schema. The returned error
// lists every violation.
func (s *Schema) Validate(document []byte) error {
	result, err := s.compiled.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("validate document: %w", err)
	}
	if result.Valid() {
		return nil
	}
	var violations []string
	for _, issue := range result.Errors() {
		violations = append(violations, issue.String())
	}
	return fmt.Errorf("schema violations: %s", strings.Join(violations, "; "))
}
