package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGenerator(t *testing.T) {
	gen := NewGenerator()

	require.NotNil(t, gen)
	require.NotNil(t, gen.reflector)
}

func TestGenerator_Generate_ConfigSchema(t *testing.T) {
	gen := NewGenerator()

	data, err := gen.Generate(SchemaTypeConfig)

	require.NoError(t, err)
	require.NotEmpty(t, data)

	// Verify it's valid JSON
	var schema map[string]interface{}
	err = json.Unmarshal(data, &schema)
	require.NoError(t, err)

	assert.Contains(t, schema, "$schema")
	assert.Contains(t, schema, "title")
	assert.Equal(t, "Auth Gateway Configuration", schema["title"])
	assert.Equal(t, false, schema["x-runtime-updatable"])
}

func TestGenerator_Generate_PoliciesSchema(t *testing.T) {
	gen := NewGenerator()

	data, err := gen.Generate(SchemaTypePolicies)

	require.NoError(t, err)
	require.NotEmpty(t, data)

	var schema map[string]interface{}
	err = json.Unmarshal(data, &schema)
	require.NoError(t, err)

	assert.Equal(t, "Auth Gateway Rate Limit Policies", schema["title"])
	assert.Equal(t, true, schema["x-runtime-updatable"])
	assert.Contains(t, schema, "examples")
}

func TestGenerator_Generate_DefaultType(t *testing.T) {
	gen := NewGenerator()

	// Empty schema type should default to config
	data, err := gen.Generate("")

	require.NoError(t, err)
	require.NotEmpty(t, data)

	var schema map[string]interface{}
	err = json.Unmarshal(data, &schema)
	require.NoError(t, err)

	assert.Equal(t, "Auth Gateway Configuration", schema["title"])
}

func TestGenerator_Generate_NoPascalCaseRefs(t *testing.T) {
	gen := NewGenerator()

	data, err := gen.Generate(SchemaTypeConfig)
	require.NoError(t, err)

	for _, name := range configTypeNames() {
		assert.NotContains(t, string(data), `"#/$defs/`+name+`"`, name)
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Config", "config"},
		{"ServerConfig", "server_config"},
		{"APIKeyConfig", "api_key_config"},
		{"APIKey", "api_key"},
		{"CSRFConfig", "csrf_config"},
		{"CSRF", "csrf"},
		{"TTL", "ttl"},
		{"URL", "url"},
		{"ID", "id"},
		{"CamelCase", "camel_case"},
		{"simpleword", "simpleword"},
		{"XMLParser", "xml_parser"},
		{"JSONData", "json_data"},
		{"myVar", "my_var"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := toSnakeCase(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseSchemaType(t *testing.T) {
	tests := []struct {
		input    string
		expected SchemaType
		ok       bool
	}{
		{"config", SchemaTypeConfig, true},
		{"Config", SchemaTypeConfig, true},
		{"policies", SchemaTypePolicies, true},
		{"POLICIES", SchemaTypePolicies, true},
		{"rules", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		st, ok := ParseSchemaType(tt.input)
		assert.Equal(t, tt.ok, ok, tt.input)
		assert.Equal(t, tt.expected, st, tt.input)
	}
}

func TestGetAvailableSchemas(t *testing.T) {
	assert.Equal(t, []SchemaType{SchemaTypeConfig, SchemaTypePolicies}, GetAvailableSchemas())
}
