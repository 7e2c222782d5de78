package middleware

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	contextutils "bugtracker/internal/utils"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Request body schema names
const (
	SchemaAIBulkUpdate   = "AIBulkUpdateRequest"
	SchemaProgressUpdate = "ProgressUpdateRequest"
	SchemaAssign         = "AssignRequest"
)

//go:embed schemas/*.yaml
var schemaFS embed.FS

// SchemaLoader holds compiled JSON schemas keyed by name
type SchemaLoader struct {
	schemas map[string]*gojsonschema.Schema
}

// NewSchemaLoader creates an empty schema loader
func NewSchemaLoader() *SchemaLoader {
	return &SchemaLoader{
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

// DefaultSchemaLoader returns a loader with the embedded request schemas compiled
func DefaultSchemaLoader() (*SchemaLoader, error) {
	loader := NewSchemaLoader()
	if err := loader.LoadSchemas(schemaFS); err != nil {
		return nil, err
	}
	return loader, nil
}

// LoadSchemas compiles every components/schemas entry of the *.yaml files in fsys.
// Entries may $ref each other across files.
func (sl *SchemaLoader) LoadSchemas(fsys fs.FS) error {
	files, err := fs.Glob(fsys, "schemas/*.yaml")
	if err != nil {
		return contextutils.WrapError(err, "failed to list schema files")
	}
	if len(files) == 0 {
		return contextutils.ErrorWithContextf("no schema files found")
	}

	all := make(map[string]interface{})
	for _, file := range files {
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return contextutils.WrapErrorf(err, "failed to read schema file %s", file)
		}

		var doc struct {
			Components struct {
				Schemas map[string]interface{} `yaml:"schemas"`
			} `yaml:"components"`
		}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return contextutils.WrapErrorf(err, "failed to parse schema file %s", file)
		}
		for name, schema := range doc.Components.Schemas {
			converted, err := convertToJSONCompatible(schema)
			if err != nil {
				return contextutils.WrapErrorf(err, "failed to convert schema %s", name)
			}
			all[name] = converted
		}
	}

	for name := range all {
		completeSchemaDoc := map[string]interface{}{
			"$schema": "http://json-schema.org/draft-07/schema#",
			"components": map[string]interface{}{
				"schemas": all,
			},
			"$ref": "#/components/schemas/" + name,
		}
		schemaBytes, err := json.Marshal(completeSchemaDoc)
		if err != nil {
			return contextutils.WrapErrorf(err, "failed to marshal schema %s", name)
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaBytes))
		if err != nil {
			return contextutils.WrapErrorf(err, "failed to compile schema %s", name)
		}
		sl.schemas[name] = schema
	}
	return nil
}

// Names lists the loaded schema names in order
func (sl *SchemaLoader) Names() []string {
	names := make([]string, 0, len(sl.schemas))
	for name := range sl.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// convertToJSONCompatible normalizes YAML values for JSON encoding and rewrites
// OpenAPI "nullable: true" into a JSON Schema type union with null.
func convertToJSONCompatible(data interface{}) (interface{}, error) {
	switch v := data.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		hasNullable := false
		for key, val := range v {
			if key == "nullable" {
				if nullable, ok := val.(bool); ok && nullable {
					hasNullable = true
				}
				continue
			}
			convertedVal, err := convertToJSONCompatible(val)
			if err != nil {
				return nil, err
			}
			result[key] = convertedVal
		}

		if hasNullable {
			if ref, hasRef := result["$ref"].(string); hasRef {
				result["oneOf"] = []interface{}{
					map[string]interface{}{"$ref": ref},
					map[string]interface{}{"type": "null"},
				}
				delete(result, "$ref")
			} else if typeVal, hasType := result["type"].(string); hasType {
				result["type"] = []interface{}{typeVal, "null"}
			}
		}
		return result, nil
	case map[interface{}]interface{}:
		result := make(map[string]interface{}, len(v))
		for k, val := range v {
			keyStr, ok := k.(string)
			if !ok {
				return nil, contextutils.ErrorWithContextf("key is not a string: %v", k)
			}
			result[keyStr] = val
		}
		return convertToJSONCompatible(result)
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, val := range v {
			convertedVal, err := convertToJSONCompatible(val)
			if err != nil {
				return nil, err
			}
			result[i] = convertedVal
		}
		return result, nil
	default:
		return data, nil
	}
}

// ValidateJSON validates a raw JSON document against a named schema. Violations are
// reported as VALIDATION_FAILED listing each field.
func (sl *SchemaLoader) ValidateJSON(body []byte, schemaName string) error {
	schema, exists := sl.schemas[schemaName]
	if !exists {
		return contextutils.ErrorWithContextf("schema %s not found", schemaName)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return contextutils.WrapWithCode(err, contextutils.ErrorCodeInvalidFormat, "request body is not valid JSON")
	}

	if !result.Valid() {
		var validationErrors []string
		for _, validationErr := range result.Errors() {
			validationErrors = append(validationErrors, fmt.Sprintf("%s: %s", validationErr.Field(), validationErr.Description()))
		}
		return contextutils.Detailf(contextutils.ErrValidationFailed, "schema validation failed: %s", strings.Join(validationErrors, "; "))
	}
	return nil
}

// ValidateData validates a decoded value against a named schema
func (sl *SchemaLoader) ValidateData(data interface{}, schemaName string) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return contextutils.WrapError(err, "failed to marshal data")
	}
	return sl.ValidateJSON(jsonData, schemaName)
}
