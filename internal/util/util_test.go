package util

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type address struct {
	City string `json:"city" description:"City name"`
	Zip  string `json:"zip,omitempty"`
}

type person struct {
	Name    string    `json:"name"`
	Age     int       `json:"age"`
	Tags    []string  `json:"tags,omitempty"`
	Home    address   `json:"home"`
	Spouse  *person   `json:"spouse,omitempty"`
	Ignored string    `json:"-"`
	Extra   any       `json:"extra,omitempty"`
	Scores  []float64 `json:"scores"`
}

func TestTypeSchema_Struct(t *testing.T) {
	schema := TypeSchema(reflect.TypeOf(person{}))

	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, false, schema["additionalProperties"])
	assert.ElementsMatch(t, []string{"name", "age", "home", "scores"}, schema["required"])

	props := schema["properties"].(map[string]any)
	assert.NotContains(t, props, "Ignored")

	tags := props["tags"].(map[string]any)
	assert.Equal(t, "array", tags["type"])
	assert.Equal(t, map[string]any{"type": "string"}, tags["items"])

	home := props["home"].(map[string]any)
	homeProps := home["properties"].(map[string]any)
	assert.Equal(t, "City name", homeProps["city"].(map[string]any)["description"])

	// recursive type terminates
	spouse := props["spouse"].(map[string]any)
	assert.Equal(t, "object", spouse["type"])

	assert.Equal(t, map[string]any{}, props["extra"])
}

func TestTypeSchema_Scalars(t *testing.T) {
	assert.Equal(t, map[string]any{"type": "string"}, TypeSchema(reflect.TypeOf("")))
	assert.Equal(t, map[string]any{"type": "integer"}, TypeSchema(reflect.TypeOf(0)))
	assert.Equal(t, map[string]any{"type": "boolean"}, TypeSchema(reflect.TypeOf(true)))

	list := TypeSchema(reflect.TypeOf([]int{}))
	assert.Equal(t, "array", list["type"])
}

func TestCreateSchema_NonStruct(t *testing.T) {
	schema := CreateSchema(42)
	assert.Equal(t, "object", schema["type"])
	assert.Empty(t, schema["properties"])
}

func TestValidateParameters(t *testing.T) {
	schema := CreateSchema(address{})

	require.NoError(t, ValidateParameters(map[string]any{"city": "Berlin"}, schema))

	err := ValidateParameters(map[string]any{}, schema)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "city", verr.Field)

	err = ValidateParameters(map[string]any{"city": 1.0}, schema)
	require.ErrorAs(t, err, &verr)

	decoded := map[string]any{"required": []any{"q"}, "properties": map[string]any{}}
	assert.Error(t, ValidateParameters(map[string]any{}, decoded))
}

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("plain", "no markers", nil)
	require.NoError(t, err)
	assert.Equal(t, "no markers", out)

	out, err = RenderTemplate("greet", "Hi {{ .name | upper }}", map[string]any{"name": "bob"})
	require.NoError(t, err)
	assert.Equal(t, "Hi BOB", out)

	_, err = RenderTemplate("missing", "Hi {{ .name }}", map[string]any{})
	assert.Error(t, err)

	_, err = RenderTemplate("broken", "Hi {{ .name ", nil)
	assert.Error(t, err)

	out, err = RenderTemplate("struct", "{{ .City }}", address{City: "Oslo"})
	require.NoError(t, err)
	assert.Equal(t, "Oslo", out)
}
