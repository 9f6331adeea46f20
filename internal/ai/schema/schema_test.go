package schema

import (
	"strings"
	"testing"
)

const testSchema = `{
	"type": "object",
	"required": ["relevant"],
	"properties": {
		"relevant": {"type": "boolean"},
		"reason": {"type": "string"}
	},
	"additionalProperties": false
}`

func TestValidate(t *testing.T) {
	compiled, err := Compile(testSchema)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	if err := compiled.Validate([]byte(`{"relevant": true, "reason": "mentions stratagem"}`)); err != nil {
		t.Errorf("valid document rejected: %v", err)
	}

	err = compiled.Validate([]byte(`{"reason": "no verdict"}`))
	if err == nil || !strings.Contains(err.Error(), "relevant") {
		t.Errorf("err = %v, want missing-property violation", err)
	}

	if err := compiled.Validate([]byte(`{"relevant": "yes"}`)); err == nil {
		t.Error("expected type violation")
	}

	if err := compiled.Validate([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed document")
	}
}

func TestCompileRejectsBadSchema(t *testing.T) {
	if _, err := Compile(`{"type": 12}`); err == nil {
		t.Error("expected compile error")
	}
}
