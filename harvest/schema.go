// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package harvest

import (
	"math"
)

// FieldKind narrows what values a schema field accepts.
type FieldKind int

const (
	KindString FieldKind = iota
	KindInt
	KindFloat
	KindBool
	KindTime
	KindStringList
)

func (k FieldKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindStringList:
		return "string list"
	default:
		return "unknown"
	}
}

type Field struct {
	Name     string
	Kind     FieldKind
	Required bool
}

// FieldError reports one schema violation in a harvested record. Any
// violation aborts the run, the remote data does not look like what the
// endpoint descriptor promised.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return "field " + e.Field + ": " + e.Reason
}

// Schema describes the record shape an endpoint is expected to return.
// Declared fields are checked for presence and kind. Undeclared fields
// pass unless the schema is strict, services grow fields all the time.
type Schema struct {
	Name   string
	Fields []Field

	strict bool
	index  map[string]struct{}
}

func NewSchema(name string, fields ...Field) *Schema {
	s := &Schema{
		Name:   name,
		Fields: fields,
		index:  make(map[string]struct{}, len(fields)),
	}
	for i := range fields {
		s.index[fields[i].Name] = struct{}{}
	}
	return s
}

// Strict makes undeclared fields a violation.
func (s *Schema) Strict() *Schema {
	s.strict = true
	return s
}

// Validate checks one record against the schema and returns a *FieldError
// describing the first violation found.
func (s *Schema) Validate(rec RawRecord) error {
	for i := range s.Fields {
		f := s.Fields[i]
		v, ok := rec[f.Name]
		if !ok || v == nil {
			if f.Required {
				return &FieldError{Field: f.Name, Reason: "required field is missing"}
			}
			continue
		}
		if err := checkKind(f, v); err != nil {
			return err
		}
	}

	if s.strict {
		for key := range rec {
			if _, ok := s.index[key]; !ok {
				return &FieldError{Field: key, Reason: "field is not declared in schema " + s.Name}
			}
		}
	}
	return nil
}

func checkKind(f Field, v interface{}) error {
	switch f.Kind {
	case KindString:
		if _, ok := v.(string); !ok {
			return kindError(f, v)
		}
	case KindInt:
		// json numbers always decode as float64
		x, ok := v.(float64)
		if !ok {
			return kindError(f, v)
		}
		if x != math.Trunc(x) {
			return &FieldError{Field: f.Name, Reason: "expected an integer value"}
		}
	case KindFloat:
		if _, ok := v.(float64); !ok {
			return kindError(f, v)
		}
	case KindBool:
		if _, ok := v.(bool); !ok {
			return kindError(f, v)
		}
	case KindTime:
		s, ok := v.(string)
		if !ok {
			return kindError(f, v)
		}
		if _, err := ParseTime(s); err != nil {
			return &FieldError{Field: f.Name, Reason: "unparseable timestamp " + s}
		}
	case KindStringList:
		switch x := v.(type) {
		case []string:
		case []interface{}:
			for i := range x {
				if x[i] == nil {
					continue
				}
				if _, ok := x[i].(string); !ok {
					return &FieldError{Field: f.Name, Reason: "list contains a non-string entry"}
				}
			}
		default:
			return kindError(f, v)
		}
	}
	return nil
}

func kindError(f Field, v interface{}) *FieldError {
	return &FieldError{
		Field:  f.Name,
		Reason: "expected " + f.Kind.String() + ", got " + typeName(v),
	}
}

func typeName(v interface{}) string {
	switch v.(type) {
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "bool"
	case []interface{}, []string:
		return "list"
	case map[string]interface{}:
		return "object"
	default:
		return "unknown"
	}
}
