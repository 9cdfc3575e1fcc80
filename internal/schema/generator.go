// Package schema turns tool parameter structs into the JSON Schema objects
// sent in the tool catalogue.
package schema

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/xiaokk2024/mymanus1/llm"
)

// Generator converts parameter structs to JSON schemas. Per field it reads
// the json name, a description tag, and the schema tag options required,
// enum:a|b and pattern:<regexp>.
type Generator struct{}

// NewGenerator creates a new schema generator
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate returns the object schema for v, a struct or a pointer to one.
func (g *Generator) Generate(v interface{}) (map[string]interface{}, error) {
	t := reflect.TypeOf(v)
	if t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("parameters must be a struct, got %v", t)
	}
	return g.object(t), nil
}

// ToolDefinition builds the catalogue entry for one tool.
func (g *Generator) ToolDefinition(name, description string, params interface{}) (llm.ToolDefinition, error) {
	schema, err := g.Generate(params)
	if err != nil {
		return llm.ToolDefinition{}, fmt.Errorf("tool %s: %w", name, err)
	}
	return llm.ToolDefinition{
		Name:        name,
		Description: description,
		Parameters:  schema,
	}, nil
}

func (g *Generator) object(t reflect.Type) map[string]interface{} {
	properties := make(map[string]interface{})
	required := []string{}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		jsonTag := field.Tag.Get("json")
		if !field.IsExported() || jsonTag == "-" {
			continue
		}

		name, opts, _ := strings.Cut(jsonTag, ",")
		if name == "" {
			name = field.Name
		}

		prop := g.property(field.Type)
		if desc := field.Tag.Get("description"); desc != "" {
			prop["description"] = desc
		}

		schemaTag := field.Tag.Get("schema")
		applyOptions(schemaTag, prop)
		if hasOption(schemaTag, "required") || !strings.Contains(opts, "omitempty") {
			required = append(required, name)
		}
		properties[name] = prop
	}

	return map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func (g *Generator) property(t reflect.Type) map[string]interface{} {
	switch t.Kind() {
	case reflect.Ptr:
		return g.property(t.Elem())
	case reflect.String:
		return map[string]interface{}{"type": "string"}
	case reflect.Bool:
		return map[string]interface{}{"type": "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return map[string]interface{}{"type": "integer"}
	case reflect.Float32, reflect.Float64:
		return map[string]interface{}{"type": "number"}
	case reflect.Slice, reflect.Array:
		return map[string]interface{}{"type": "array", "items": g.property(t.Elem())}
	case reflect.Struct:
		return g.object(t)
	case reflect.Map:
		return map[string]interface{}{"type": "object"}
	default:
		return map[string]interface{}{"type": "string"}
	}
}

func applyOptions(tag string, prop map[string]interface{}) {
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "enum:"):
			prop["enum"] = strings.Split(strings.TrimPrefix(part, "enum:"), "|")
		case strings.HasPrefix(part, "pattern:"):
			prop["pattern"] = strings.TrimPrefix(part, "pattern:")
		}
	}
}

// hasOption reports whether a comma-separated tag contains opt exactly.
func hasOption(tag, opt string) bool {
	for _, part := range strings.Split(tag, ",") {
		if strings.TrimSpace(part) == opt {
			return true
		}
	}
	return false
}
