package capability

import (
	"fmt"
	"slices"
	"strings"

	cgerrors "github.com/vintoniuk/anadeabot/pkg/convgraph/errors"
)

// FieldType is the value type of a structured output field.
type FieldType string

// Supported field types.
const (
	TypeBool   FieldType = "boolean"
	TypeString FieldType = "string"
	TypeEnum   FieldType = "enum"
)

// Field describes one attribute of a structured classification.
type Field struct {
	Name        string
	Description string
	Type        FieldType
	// Enum lists allowed values for TypeEnum fields.
	Enum []string
	// Required fields must be present and non-null.
	Required bool
}

// Schema is the declared output shape of a classification.
type Schema struct {
	Name        string
	Description string
	Fields      []Field
}

// Field returns the named field.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// JSONSchema renders the schema in the strict structured-output dialect:
// every property is listed as required and optional ones accept null.
func (s Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Fields))
	required := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		prop := map[string]any{}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		typ := string(f.Type)
		if f.Type == TypeEnum {
			typ = "string"
			enum := make([]any, 0, len(f.Enum)+1)
			for _, v := range f.Enum {
				enum = append(enum, v)
			}
			if !f.Required {
				enum = append(enum, nil)
			}
			prop["enum"] = enum
		}
		if f.Required {
			prop["type"] = typ
		} else {
			prop["type"] = []any{typ, "null"}
		}
		props[f.Name] = prop
		required = append(required, f.Name)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

// Validate checks r against the schema and returns a normalised copy.
// Null optional fields are dropped and enum values are mapped onto their
// canonical spelling. Unknown fields are rejected.
func (s Schema) Validate(r Record) (Record, error) {
	out := make(Record, len(r))
	for name, v := range r {
		f, ok := s.Field(name)
		if !ok {
			return nil, &cgerrors.ValidationError{Field: name, Message: "unknown field"}
		}
		if v == nil {
			if f.Required {
				return nil, &cgerrors.ValidationError{Field: name, Message: "must not be null"}
			}
			continue
		}
		switch f.Type {
		case TypeBool:
			b, ok := v.(bool)
			if !ok {
				return nil, &cgerrors.ValidationError{Field: name, Message: fmt.Sprintf("expected boolean, got %T", v)}
			}
			out[name] = b
		case TypeString:
			str, ok := v.(string)
			if !ok {
				return nil, &cgerrors.ValidationError{Field: name, Message: fmt.Sprintf("expected string, got %T", v)}
			}
			out[name] = str
		case TypeEnum:
			str, ok := v.(string)
			if !ok {
				return nil, &cgerrors.ValidationError{Field: name, Message: fmt.Sprintf("expected string, got %T", v)}
			}
			canonical, ok := matchEnum(f.Enum, str)
			if !ok {
				return nil, &cgerrors.ValidationError{
					Field:   name,
					Message: fmt.Sprintf("%q is not one of %s", str, strings.Join(f.Enum, ", ")),
				}
			}
			out[name] = canonical
		default:
			return nil, &cgerrors.ValidationError{Field: name, Message: fmt.Sprintf("unsupported type %q", f.Type)}
		}
	}
	for _, f := range s.Fields {
		if f.Required && !out.Has(f.Name) {
			return nil, &cgerrors.ValidationError{Field: f.Name, Message: "missing"}
		}
	}
	return out, nil
}

func matchEnum(allowed []string, v string) (string, bool) {
	if slices.Contains(allowed, v) {
		return v, true
	}
	for _, a := range allowed {
		if strings.EqualFold(a, strings.TrimSpace(v)) {
			return a, true
		}
	}
	return "", false
}

// Record is a structured classification result keyed by field name.
type Record map[string]any

// Has reports whether the field is present.
func (r Record) Has(name string) bool {
	_, ok := r[name]
	return ok
}

// Bool returns a boolean field, false when absent.
func (r Record) Bool(name string) bool {
	b, _ := r[name].(bool)
	return b
}

// String returns a string field, empty when absent.
func (r Record) String(name string) string {
	s, _ := r[name].(string)
	return s
}
