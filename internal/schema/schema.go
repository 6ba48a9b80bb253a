// Package schema implements the declarative field-validation engine used
// by both the pre-write (deny) and post-write (block) hook paths. It is
// the single canonical validator: there is exactly one place that knows
// how to check a front-matter object against a schema.
package schema

import (
	"fmt"
	"strings"
	"time"
)

// FieldType is one of the declared schema value types.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeInteger FieldType = "integer"
	TypeBoolean FieldType = "boolean"
	TypeDate    FieldType = "date"
	TypeEnum    FieldType = "enum"
	TypeArray   FieldType = "array"
	TypeObject  FieldType = "object"
)

// Field is one declared schema entry: {type, required, values?, items?,
// properties?, default?}.
type Field struct {
	Type       FieldType
	Required   bool
	Values     []string     // for TypeEnum
	Items      FieldType    // for TypeArray, scalar item type
	Properties []NamedField // for TypeObject, nested field declarations, in order
	Default    any
}

// Schema maps field names to their declarations, in registration order
// (order matters: validation errors are reported in declaration order).
type Schema struct {
	Name   string
	Fields []NamedField
}

// NamedField pairs a field name with its declaration, preserving order.
type NamedField struct {
	Name  string
	Field Field
}

// Validate checks obj against s and returns every error found, in
// declaration order. Unknown keys in obj are ignored. A Schema with no
// declared fields passes by definition.
func (s Schema) Validate(obj map[string]any) []string {
	var errs []string
	for _, nf := range s.Fields {
		errs = append(errs, validateField(nf.Name, nf.Field, obj[nf.Name], hasKey(obj, nf.Name))...)
	}
	return errs
}

func hasKey(obj map[string]any, key string) bool {
	if obj == nil {
		return false
	}
	v, ok := obj[key]
	return ok && v != nil
}

func validateField(path string, f Field, value any, present bool) []string {
	if !present {
		if f.Required {
			return []string{fmt.Sprintf("%s is required", path)}
		}
		return nil
	}

	switch f.Type {
	case TypeString:
		if _, ok := value.(string); !ok {
			return []string{fmt.Sprintf("%s must be a string", path)}
		}
	case TypeInteger:
		if !isInteger(value) {
			return []string{fmt.Sprintf("%s must be an integer", path)}
		}
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return []string{fmt.Sprintf("%s must be a boolean", path)}
		}
	case TypeDate:
		s, ok := value.(string)
		if !ok {
			return []string{fmt.Sprintf("%s must be a date string", path)}
		}
		if _, err := time.Parse("2006-01-02", s); err != nil {
			return []string{fmt.Sprintf("%s must be an ISO-8601 date", path)}
		}
	case TypeEnum:
		s := fmt.Sprintf("%v", value)
		if !contains(f.Values, s) {
			return []string{fmt.Sprintf("%s must be one of %s", path, strings.Join(f.Values, ", "))}
		}
	case TypeArray:
		arr, ok := value.([]any)
		if !ok {
			return []string{fmt.Sprintf("%s must be an array", path)}
		}
		if f.Items != "" {
			for i, item := range arr {
				if errs := validateScalar(fmt.Sprintf("%s[%d]", path, i), f.Items, item); len(errs) > 0 {
					return errs[:1] // first offending index only
				}
			}
		}
	case TypeObject:
		obj, ok := value.(map[string]any)
		if !ok || obj == nil {
			return []string{fmt.Sprintf("%s must be an object", path)}
		}
		var errs []string
		for _, nf := range f.Properties {
			errs = append(errs, validateField(path+"."+nf.Name, nf.Field, obj[nf.Name], hasKey(obj, nf.Name))...)
		}
		return errs
	}

	return nil
}

func validateScalar(path string, t FieldType, value any) []string {
	switch t {
	case TypeString:
		if _, ok := value.(string); !ok {
			return []string{fmt.Sprintf("%s must be a string", path)}
		}
	case TypeInteger:
		if !isInteger(value) {
			return []string{fmt.Sprintf("%s must be an integer", path)}
		}
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return []string{fmt.Sprintf("%s must be a boolean", path)}
		}
	}
	return nil
}

func isInteger(v any) bool {
	_, ok := v.(int)
	return ok
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
