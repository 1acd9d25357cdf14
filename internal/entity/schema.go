// Package entity provides a generic record type with field-name mapping,
// change tracking and plain-map serialization. Concrete models describe
// themselves with a Schema and embed *Record.
package entity

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidSchema is returned by NewSchema for malformed field maps.
var ErrInvalidSchema = errors.New("invalid schema")

// Accessor computes the value returned by Get for a field.
type Accessor func(r *Record) any

// Mutator handles Set for a field. It is responsible for writing the value
// into the record, usually through SetAttribute.
type Mutator func(r *Record, value any)

// Schema describes how a family of records maps and gates its fields.
// A Schema is immutable after NewSchema returns and may be shared between
// records.
//
// The field map associates external names (storage columns, transport keys)
// with internal ones:
//
//	entity.WithFieldMap(map[string]string{
//	    "emailId": "email_id",
//	})
type Schema struct {
	fieldMap  map[string]string
	allowed   map[string]struct{}
	accessors map[string]Accessor
	mutators  map[string]Mutator
	defaults  map[string]any
}

// SchemaOption configures a Schema.
type SchemaOption func(*Schema)

// WithFieldMap sets the external -> internal name map.
func WithFieldMap(m map[string]string) SchemaOption {
	return func(s *Schema) {
		for from, to := range m {
			s.fieldMap[from] = to
		}
	}
}

// WithAllowedFields closes the schema to the given internal names.
// Without it any name may be read or written.
func WithAllowedFields(names ...string) SchemaOption {
	return func(s *Schema) {
		for _, n := range names {
			s.allowed[n] = struct{}{}
		}
	}
}

// WithAccessor registers a custom getter for the internal field name.
func WithAccessor(name string, fn Accessor) SchemaOption {
	return func(s *Schema) {
		s.accessors[name] = fn
	}
}

// WithMutator registers a custom setter for the internal field name.
func WithMutator(name string, fn Mutator) SchemaOption {
	return func(s *Schema) {
		s.mutators[name] = fn
	}
}

// WithDefaults sets the attributes every new record starts with.
func WithDefaults(d map[string]any) SchemaOption {
	return func(s *Schema) {
		for k, v := range d {
			s.defaults[k] = v
		}
	}
}

// NewSchema builds and validates a Schema.
func NewSchema(opts ...SchemaOption) (*Schema, error) {
	s := &Schema{
		fieldMap:  make(map[string]string),
		allowed:   make(map[string]struct{}),
		accessors: make(map[string]Accessor),
		mutators:  make(map[string]Mutator),
		defaults:  make(map[string]any),
	}

	for _, opt := range opts {
		opt(s)
	}

	if err := s.validate(); err != nil {
		return nil, err
	}

	return s, nil
}

// MustSchema is like NewSchema but panics on error. It is meant for
// package-level schema variables.
func MustSchema(opts ...SchemaOption) *Schema {
	s, err := NewSchema(opts...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) validate() error {
	keys := make([]string, 0, len(s.fieldMap))
	for from := range s.fieldMap {
		keys = append(keys, from)
	}
	sort.Strings(keys)

	for _, from := range keys {
		to := s.fieldMap[from]
		if from == "" {
			return fmt.Errorf("%w: empty external name mapped to %q", ErrInvalidSchema, to)
		}
		// resolution is single step, so a target must not be another source
		if to != "" && to != from {
			if _, chained := s.fieldMap[to]; chained {
				return fmt.Errorf("%w: %q maps to %q which is itself mapped", ErrInvalidSchema, from, to)
			}
		}
	}

	return nil
}

// Resolve returns the internal name for name, or name itself when it is not
// mapped.
func (s *Schema) Resolve(name string) string {
	if to, ok := s.fieldMap[name]; ok && to != "" {
		return to
	}
	return name
}

// FieldMap returns a copy of the external -> internal name map.
func (s *Schema) FieldMap() map[string]string {
	out := make(map[string]string, len(s.fieldMap))
	for k, v := range s.fieldMap {
		out[k] = v
	}
	return out
}

// Closed reports whether the schema restricts field names.
func (s *Schema) Closed() bool {
	return len(s.allowed) > 0
}

func (s *Schema) allows(name string) bool {
	if !s.Closed() {
		return true
	}
	_, ok := s.allowed[name]
	return ok
}

func (s *Schema) accessor(name string) (Accessor, bool) {
	fn, ok := s.accessors[name]
	return fn, ok
}

func (s *Schema) mutator(name string) (Mutator, bool) {
	fn, ok := s.mutators[name]
	return fn, ok
}
