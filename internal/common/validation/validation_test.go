package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pointSchema = `{
  "type": "object",
  "required": ["x", "y"],
  "properties": {
    "x": {"type": "integer", "minimum": 0},
    "y": {"type": "integer", "enum": [0, 1]}
  }
}`

func TestSchemaValidate(t *testing.T) {
	s := MustCompileSchema(pointSchema)

	tests := []struct {
		name      string
		doc       interface{}
		wantField string
	}{
		{name: "valid", doc: map[string]interface{}{"x": 3, "y": 1}},
		{name: "missing y", doc: map[string]interface{}{"x": 3}, wantField: "(root)"},
		{name: "y out of enum", doc: map[string]interface{}{"x": 3, "y": 2}, wantField: "y"},
		{name: "negative x", doc: map[string]interface{}{"x": -1, "y": 0}, wantField: "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Validate(tt.doc)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var se *SchemaError
			require.ErrorAs(t, err, &se)
			require.NotEmpty(t, se.Errors)
			assert.Equal(t, tt.wantField, se.Errors[0].Field)
		})
	}
}

func TestCompileSchema_Invalid(t *testing.T) {
	_, err := CompileSchema(`{"type": 12}`)
	assert.Error(t, err)
}

type submitRequest struct {
	ExamCode string `json:"exam_code" validate:"required,max=255"`
}

func TestStruct(t *testing.T) {
	assert.Nil(t, Struct(submitRequest{ExamCode: "EX-1"}))

	errs := Struct(submitRequest{})
	require.Contains(t, errs, "exam_code")
	assert.Equal(t, "The exam_code field is required.", errs["exam_code"][0])

	errs = Struct(submitRequest{ExamCode: strings.Repeat("a", 256)})
	require.Contains(t, errs, "exam_code")
	assert.Contains(t, errs["exam_code"][0], "255")
}
