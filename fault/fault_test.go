package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorString(t *testing.T) {
	err := Validation("bad flag", FieldError{Field: "name", Message: "must match pattern"})
	assert.Equal(t, `validation: bad flag (name: must match pattern)`, err.Error())

	plain := NotFound("template", "greet")
	assert.Equal(t, `not_found: template "greet" not found`, plain.Error())
}

func TestPayloadConvention(t *testing.T) {
	err := Validation("bad flag",
		FieldError{Field: "name", Message: "must match pattern"},
		FieldError{Field: "value", Message: "unsupported type"})
	p := err.Payload()

	assert.Equal(t, "bad flag", p["error"])
	assert.Equal(t, "validation", p["error_type"])
	assert.NotEmpty(t, p["instruction"])

	fields := p["fields"].([]map[string]any)
	require.Len(t, fields, 2)
	assert.Equal(t, "name", fields[0]["field"])
}

func TestPayloadOmitsEmptyFields(t *testing.T) {
	p := Security("escape attempt").Payload()
	_, present := p["fields"]
	assert.False(t, present)
	assert.Equal(t, "security", p["error_type"])
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", Validation("x"), KindValidation},
		{"not found", NotFound("a", "b"), KindNotFound},
		{"template render", TemplateRender("t", errors.New("boom")), KindTemplateRender},
		{"file read", FileRead("/p", errors.New("io")), KindFileRead},
		{"security", Security("x"), KindSecurity},
		{"no project", NoProject(), KindNoProject},
		{"save", Save("/p", errors.New("disk")), KindSave},
		{"wrapped", fmt.Errorf("context: %w", Security("x")), KindSecurity},
		{"foreign error", errors.New("plain"), Kind("")},
		{"nil-safe kind", fmt.Errorf("no fault here"), Kind("")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestAsPayloadForeignError(t *testing.T) {
	p := AsPayload(errors.New("disk on fire"))
	assert.Equal(t, "disk on fire", p["error"])
	assert.Equal(t, "internal", p["error_type"])
	assert.NotEmpty(t, p["instruction"])
}

func TestAsPayloadUnwraps(t *testing.T) {
	wrapped := fmt.Errorf("while rendering: %w", NotFound("partial", "header"))
	p := AsPayload(wrapped)
	assert.Equal(t, "not_found", p["error_type"])
}
