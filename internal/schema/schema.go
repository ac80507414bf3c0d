// Package schema provides JSON Schema generation for configuration files.
package schema

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/your-org/auth-gateway/internal/config"
)

// SchemaType represents the type of schema to generate.
type SchemaType string

const (
	SchemaTypeConfig   SchemaType = "config"
	SchemaTypePolicies SchemaType = "policies"
)

// PoliciesFile mirrors the shape of the hot-reloadable policies file.
type PoliciesFile struct {
	Policies map[string]config.PolicyConfig `mapstructure:"policies" jsonschema:"description=Named rate limit policies keyed by policy name."`
}

// Generator generates JSON schemas for auth-gateway configuration files.
type Generator struct {
	reflector *jsonschema.Reflector
}

// NewGenerator creates a new schema generator.
func NewGenerator() *Generator {
	r := &jsonschema.Reflector{
		ExpandedStruct: false,
		// Fields are optional unless tagged jsonschema:"required"; defaults
		// are applied at load time.
		RequiredFromJSONSchemaTags: true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == reflect.TypeOf(time.Duration(0)) {
				return &jsonschema.Schema{
					Type:        "string",
					Pattern:     `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
					Description: "Duration string (e.g., '30s', '5m', '1h')",
					Examples:    []interface{}{"10s", "5m", "1h", "30s"},
				}
			}
			return nil
		},
	}

	return &Generator{reflector: r}
}

// Generate generates a JSON schema for the specified type.
func (g *Generator) Generate(schemaType SchemaType) ([]byte, error) {
	var schema *jsonschema.Schema

	switch schemaType {
	case SchemaTypePolicies:
		schema = g.generatePoliciesSchema()
	default:
		schema = g.generateConfigSchema()
	}

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, err
	}

	output := g.postProcessJSON(string(data), schemaType)

	return []byte(output), nil
}

// generateConfigSchema generates schema for config.yaml.
func (g *Generator) generateConfigSchema() *jsonschema.Schema {
	schema := g.reflector.Reflect(&config.Config{})
	g.processSchema(schema)

	schema.Title = "Auth Gateway Configuration"
	schema.Description = "Static gateway configuration loaded at startup.\n\n" +
		"Changing any of these settings requires a restart. Rate limit\n" +
		"policies can additionally live in a separate hot-reloadable file\n" +
		"(rate_limit.policies_path)."
	schema.ID = "https://github.com/your-org/auth-gateway/schemas/config.schema.json"

	if schema.Extras == nil {
		schema.Extras = make(map[string]interface{})
	}
	schema.Extras["x-runtime-updatable"] = false

	return schema
}

// generatePoliciesSchema generates schema for the policies file.
func (g *Generator) generatePoliciesSchema() *jsonschema.Schema {
	schema := g.reflector.Reflect(&PoliciesFile{})
	g.processSchema(schema)

	schema.Title = "Auth Gateway Rate Limit Policies"
	schema.Description = "Named rate limit policies.\n\n" +
		"Each policy grants max_points attempts per window; exhausting the\n" +
		"window blocks the identity for block_duration.\n" +
		"This file is runtime-updatable (x-runtime-updatable: true)."
	schema.ID = "https://github.com/your-org/auth-gateway/schemas/policies.schema.json"

	if schema.Extras == nil {
		schema.Extras = make(map[string]interface{})
	}
	schema.Extras["x-runtime-updatable"] = true

	schema.Examples = []interface{}{
		map[string]interface{}{
			"policies": map[string]interface{}{
				"login": map[string]interface{}{
					"max_points":     5,
					"window":         "15m",
					"block_duration": "15m",
				},
				"apiKeyUsage": map[string]interface{}{
					"max_points":     1000,
					"window":         "1m",
					"block_duration": "5m",
				},
			},
		},
	}

	return schema
}

// processSchema recursively processes schema definitions.
func (g *Generator) processSchema(schema *jsonschema.Schema) {
	if schema == nil {
		return
	}

	if schema.Definitions != nil {
		for _, def := range schema.Definitions {
			g.processSchemaProperties(def)
		}
	}

	g.processSchemaProperties(schema)
}

func (g *Generator) processSchemaProperties(schema *jsonschema.Schema) {
	if schema == nil || schema.Properties == nil {
		return
	}

	newProps := jsonschema.NewProperties()
	for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
		key := pair.Key
		value := pair.Value

		snakeKey := toSnakeCase(key)
		newProps.Set(snakeKey, value)

		if value != nil {
			g.processSchemaProperties(value)
		}
	}
	schema.Properties = newProps

	if len(schema.Required) > 0 {
		newRequired := make([]string, len(schema.Required))
		for i, req := range schema.Required {
			newRequired[i] = toSnakeCase(req)
		}
		schema.Required = newRequired
	}
}

// postProcessJSON fixes PascalCase references in the JSON.
func (g *Generator) postProcessJSON(jsonStr string, schemaType SchemaType) string {
	var typeNames []string

	switch schemaType {
	case SchemaTypePolicies:
		typeNames = policiesTypeNames()
	default:
		typeNames = configTypeNames()
	}

	result := jsonStr

	for _, name := range typeNames {
		snake := toSnakeCase(name)
		result = strings.ReplaceAll(result, `"#/$defs/`+name+`"`, `"#/$defs/`+snake+`"`)
		result = strings.ReplaceAll(result, `"`+name+`":`, `"`+snake+`":`)
	}

	// Handle external package types
	result = strings.ReplaceAll(result,
		`"#/$defs/github.com/your-org/auth-gateway/pkg/logger.Config"`,
		`"#/$defs/logger_config"`)
	result = strings.ReplaceAll(result,
		`"github.com/your-org/auth-gateway/pkg/logger.Config":`,
		`"logger_config":`)

	return result
}

func configTypeNames() []string {
	return []string{
		"Config", "EnvConfig", "ServerConfig", "SessionConfig",
		"APIKeyConfig", "APIKeyCacheConfig", "SignatureConfig",
		"RateLimitConfig", "PolicyConfig", "EdgeLimitConfig",
		"EdgeHeadersConfig", "RedisConfig", "CSRFConfig", "AuditConfig",
		"StdoutExportConfig", "BoltExportConfig", "StoreConfig",
		"CircuitBreakerConfig",
	}
}

func policiesTypeNames() []string {
	return []string{
		"PoliciesFile", "PolicyConfig",
	}
}

// toSnakeCase converts PascalCase/camelCase to snake_case.
// Handles initialisms like API, CSRF and TTL correctly.
func toSnakeCase(s string) string {
	special := map[string]string{
		"APIKeyConfig":      "api_key_config",
		"APIKeyCacheConfig": "api_key_cache_config",
		"APIKey":            "api_key",
		"CSRFConfig":        "csrf_config",
		"CSRF":              "csrf",
		"TTL":               "ttl",
		"URL":               "url",
		"ID":                "id",
		"IP":                "ip",
	}

	if val, ok := special[s]; ok {
		return val
	}

	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := rune(s[i-1])
			if prev >= 'a' && prev <= 'z' {
				result.WriteByte('_')
			} else if i+1 < len(s) {
				next := rune(s[i+1])
				if next >= 'a' && next <= 'z' && prev >= 'A' && prev <= 'Z' {
					result.WriteByte('_')
				}
			}
		}
		if r >= 'A' && r <= 'Z' {
			result.WriteRune(r + 32) // toLower
		} else {
			result.WriteRune(r)
		}
	}

	return result.String()
}

// GetAvailableSchemas returns list of available schema types.
func GetAvailableSchemas() []SchemaType {
	return []SchemaType{
		SchemaTypeConfig,
		SchemaTypePolicies,
	}
}

// ParseSchemaType parses a string to SchemaType.
func ParseSchemaType(s string) (SchemaType, bool) {
	switch strings.ToLower(s) {
	case "config":
		return SchemaTypeConfig, true
	case "policies":
		return SchemaTypePolicies, true
	default:
		return "", false
	}
}
