// Package schema provides a small set of concrete validators implementing
// pumped.Schema, for hosts that don't already standardize on a schema
// vendor of their own. The core never imports this package: it depends
// only on the pumped.Schema interface, validated through the facade in
// flow input/output and tag read/write paths.
package schema

import (
	"fmt"
	"reflect"

	pumped "github.com/pumped-run/pumped-go"
)

// ValidationError reports where in a nested structure validation failed.
type ValidationError struct {
	Message string
	Path    []string
}

func (e *ValidationError) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("%s at path %v", e.Message, e.Path)
	}
	return e.Message
}

// String validates that a value is a string within length bounds.
type StringSchema struct {
	MinLength int
	MaxLength int
}

func String() *StringSchema { return &StringSchema{} }

func (s *StringSchema) Validate(value any) (any, error) {
	str, ok := value.(string)
	if !ok {
		return nil, &ValidationError{Message: fmt.Sprintf("value %v is not a string", value)}
	}
	if s.MinLength > 0 && len(str) < s.MinLength {
		return nil, &ValidationError{Message: fmt.Sprintf("string length %d below minimum %d", len(str), s.MinLength)}
	}
	if s.MaxLength > 0 && len(str) > s.MaxLength {
		return nil, &ValidationError{Message: fmt.Sprintf("string length %d above maximum %d", len(str), s.MaxLength)}
	}
	return str, nil
}

// NumberSchema validates numeric values, coercing to float64 for the bound
// checks but returning the original typed value.
type NumberSchema struct {
	Min, Max         float64
	HasMin, HasMax   bool
	Integer          bool
}

func Number() *NumberSchema { return &NumberSchema{} }

func (s *NumberSchema) Validate(value any) (any, error) {
	num, ok := toFloat64(value)
	if !ok {
		return nil, &ValidationError{Message: fmt.Sprintf("value %v is not a number", value)}
	}
	if s.HasMin && num < s.Min {
		return nil, &ValidationError{Message: fmt.Sprintf("number %v below minimum %v", num, s.Min)}
	}
	if s.HasMax && num > s.Max {
		return nil, &ValidationError{Message: fmt.Sprintf("number %v above maximum %v", num, s.Max)}
	}
	if s.Integer && float64(int64(num)) != num {
		return nil, &ValidationError{Message: fmt.Sprintf("number %v is not an integer", num)}
	}
	return value, nil
}

func toFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

// BooleanSchema validates booleans.
type BooleanSchema struct{}

func Boolean() *BooleanSchema { return &BooleanSchema{} }

func (s *BooleanSchema) Validate(value any) (any, error) {
	if _, ok := value.(bool); !ok {
		return nil, &ValidationError{Message: fmt.Sprintf("value %v is not a boolean", value)}
	}
	return value, nil
}

// Object validates struct or map values against per-field schemas.
type ObjectSchema struct {
	Fields   map[string]pumped.Schema
	Required []string
}

func Object(fields map[string]pumped.Schema) *ObjectSchema {
	return &ObjectSchema{Fields: fields}
}

func (s *ObjectSchema) Validate(value any) (any, error) {
	v := reflect.ValueOf(value)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Map && v.Kind() != reflect.Struct {
		return nil, &ValidationError{Message: fmt.Sprintf("value %v is not an object", value)}
	}

	get := func(name string) (any, bool) {
		if v.Kind() == reflect.Map {
			mv := v.MapIndex(reflect.ValueOf(name))
			if !mv.IsValid() {
				return nil, false
			}
			return mv.Interface(), true
		}
		fv := v.FieldByName(name)
		if !fv.IsValid() {
			return nil, false
		}
		return fv.Interface(), true
	}

	for _, req := range s.Required {
		if _, ok := get(req); !ok {
			return nil, &ValidationError{Message: fmt.Sprintf("required field %q missing", req)}
		}
	}

	for name, fieldSchema := range s.Fields {
		fv, ok := get(name)
		if !ok {
			continue
		}
		if _, err := fieldSchema.Validate(fv); err != nil {
			if ve, ok := err.(*ValidationError); ok {
				ve.Path = append([]string{name}, ve.Path...)
			}
			return nil, err
		}
	}

	return value, nil
}

// Any accepts every value unchanged; useful as a placeholder schema during
// development or for genuinely untyped payloads.
type AnySchema struct{}

func Any() *AnySchema { return &AnySchema{} }

func (s *AnySchema) Validate(value any) (any, error) { return value, nil }
