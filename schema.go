package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	"github.com/google/jsonschema-go/jsonschema"
)

// FieldType is the primitive type of an input field.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeInteger FieldType = "integer"
	TypeBoolean FieldType = "boolean"
	TypeEnum    FieldType = "enum"
)

// Field declares one named argument of a tool.
type Field struct {
	Name        string
	Type        FieldType
	Description string
	Required    bool
	Enum        []string // allowed values when Type is TypeEnum
}

// InputSchema is the flat, ordered argument shape of a tool.
type InputSchema struct {
	Fields []Field
}

// Schema builds an InputSchema from fields.
func Schema(fields ...Field) InputSchema {
	return InputSchema{Fields: fields}
}

// String declares a required string field.
func String(name, description string) Field {
	return Field{Name: name, Type: TypeString, Description: description, Required: true}
}

// Number declares a required number field.
func Number(name, description string) Field {
	return Field{Name: name, Type: TypeNumber, Description: description, Required: true}
}

// Integer declares a required integer field.
func Integer(name, description string) Field {
	return Field{Name: name, Type: TypeInteger, Description: description, Required: true}
}

// Boolean declares a required boolean field.
func Boolean(name, description string) Field {
	return Field{Name: name, Type: TypeBoolean, Description: description, Required: true}
}

// Enum declares a required string field restricted to values.
func Enum(name, description string, values ...string) Field {
	return Field{Name: name, Type: TypeEnum, Description: description, Required: true, Enum: values}
}

// Optional returns a copy of f that may be omitted.
func (f Field) Optional() Field {
	f.Required = false
	return f
}

func (s InputSchema) check() error {
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("schema field name required")
		}
		if seen[f.Name] {
			return fmt.Errorf("schema field %q declared twice", f.Name)
		}
		seen[f.Name] = true
		switch f.Type {
		case TypeString, TypeNumber, TypeInteger, TypeBoolean:
		case TypeEnum:
			if len(f.Enum) == 0 {
				return fmt.Errorf("schema field %q: enum requires values", f.Name)
			}
		default:
			return fmt.Errorf("schema field %q: unknown type %q", f.Name, f.Type)
		}
	}
	return nil
}

// Validate checks args against the schema. Failures are reported for
// every offending field, in declaration order.
func (s InputSchema) Validate(args json.RawMessage) []FieldError {
	obj, err := decodeObject(args)
	if err != nil {
		return []FieldError{{Reason: err.Error()}}
	}

	var errs []FieldError
	for _, f := range s.Fields {
		raw, ok := obj[f.Name]
		if !ok {
			if f.Required {
				errs = append(errs, FieldError{Field: f.Name, Reason: "required"})
			}
			continue
		}
		if reason := f.check(raw); reason != "" {
			errs = append(errs, FieldError{Field: f.Name, Reason: reason})
		}
	}
	return errs
}

func decodeObject(args json.RawMessage) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]json.RawMessage{}, nil
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("arguments must be an object")
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, fmt.Errorf("arguments are not valid JSON: %v", err)
	}
	return obj, nil
}

func (f Field) check(raw json.RawMessage) string {
	switch f.Type {
	case TypeString:
		var v string
		if !isJSONString(raw) || json.Unmarshal(raw, &v) != nil {
			return "expected string"
		}
	case TypeNumber:
		var v float64
		if !isJSONNumber(raw) || json.Unmarshal(raw, &v) != nil {
			return "expected number"
		}
	case TypeInteger:
		// Only plain integer literals decode into Go int fields.
		if _, err := strconv.ParseInt(string(bytes.TrimSpace(raw)), 10, 64); err != nil {
			return "expected integer"
		}
	case TypeBoolean:
		var v bool
		if json.Unmarshal(raw, &v) != nil || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return "expected boolean"
		}
	case TypeEnum:
		var v string
		if !isJSONString(raw) || json.Unmarshal(raw, &v) != nil {
			return "expected string"
		}
		if !slices.Contains(f.Enum, v) {
			return fmt.Sprintf("must be one of %v", f.Enum)
		}
	}
	return ""
}

func isJSONString(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '"'
}

func isJSONNumber(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && (raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9'))
}

// JSONSchema renders the schema as a JSON Schema object.
func (s InputSchema) JSONSchema() *jsonschema.Schema {
	js := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(s.Fields)),
	}
	for _, f := range s.Fields {
		prop := &jsonschema.Schema{Description: f.Description}
		switch f.Type {
		case TypeEnum:
			prop.Type = "string"
			for _, v := range f.Enum {
				prop.Enum = append(prop.Enum, v)
			}
		default:
			prop.Type = string(f.Type)
		}
		js.Properties[f.Name] = prop
		if f.Required {
			js.Required = append(js.Required, f.Name)
		}
	}
	return js
}
