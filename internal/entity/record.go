package entity

import (
	"encoding/json"
	"reflect"
	"strings"
)

// Serializable is implemented by every record variant that can be turned into
// plain data for persistence or transport.
type Serializable interface {
	ToArray(opts ...ArrayOption) map[string]any
}

var _ Serializable = (*Record)(nil)

// internalPrefix marks attributes that are never serialized by ToArray.
const internalPrefix = "_"

// Fill sets every key/value pair of data through Set. A nil map is a no-op.
func (r *Record) Fill(data map[string]any) {
	for k, v := range data {
		r.Set(k, v)
	}
}

// Dirty reports whether any attribute differs from the original snapshot.
func (r *Record) Dirty() bool {
	return !reflect.DeepEqual(r.original, r.attributes)
}

// HasChanged reports whether the attribute with the given internal name
// differs from its original value. A key present only in the current
// attributes counts as changed; a key absent from both does not.
func (r *Record) HasChanged(name string) bool {
	orig, inOriginal := r.original[name]
	cur, inAttributes := r.attributes[name]

	switch {
	case !inOriginal && !inAttributes:
		return false
	case !inOriginal:
		return true
	case !inAttributes:
		return true
	}

	return !reflect.DeepEqual(orig, cur)
}

// SyncOriginal makes the current attributes the new change baseline.
func (r *Record) SyncOriginal() {
	r.original = cloneMap(r.attributes)
}

// ToRawArray returns a copy of the raw attributes, or only the changed ones.
func (r *Record) ToRawArray(onlyChanged bool) map[string]any {
	if !onlyChanged {
		return cloneMap(r.attributes)
	}

	out := make(map[string]any)
	for k, v := range r.attributes {
		if r.HasChanged(k) {
			out[k] = cloneValue(v)
		}
	}
	return out
}

type arrayOptions struct {
	onlyChanged bool
	withMapped  bool
	onlyMapped  bool
}

// ArrayOption tunes ToArray.
type ArrayOption func(*arrayOptions)

// OnlyChanged limits ToArray to changed attributes.
func OnlyChanged() ArrayOption {
	return func(o *arrayOptions) { o.onlyChanged = true }
}

// WithoutMapped stops ToArray from adding external names.
func WithoutMapped() ArrayOption {
	return func(o *arrayOptions) { o.withMapped = false }
}

// OnlyMapped keeps only keys that are external names in the field map.
func OnlyMapped() ArrayOption {
	return func(o *arrayOptions) { o.onlyMapped = true }
}

// ToArray builds the externally visible representation of the record.
// Values go through Get, so accessors apply. Attributes whose name starts
// with an underscore are skipped. By default every mapped external name whose
// target is present is added next to the internal one.
func (r *Record) ToArray(opts ...ArrayOption) map[string]any {
	o := arrayOptions{withMapped: true}
	for _, opt := range opts {
		opt(&o)
	}

	out := make(map[string]any, len(r.attributes))

	for k := range r.attributes {
		if strings.HasPrefix(k, internalPrefix) {
			continue
		}
		if o.onlyChanged && !r.HasChanged(k) {
			continue
		}
		out[k] = r.Get(k)
	}

	if o.withMapped {
		for from, to := range r.schema.fieldMap {
			if _, ok := out[to]; ok {
				out[from] = r.Get(to)
			}
		}
	}

	if o.onlyMapped {
		for k := range out {
			if _, ok := r.schema.fieldMap[k]; !ok {
				delete(out, k)
			}
		}
	}

	return out
}

// RemoveUnmappedProperties drops every attribute that is not a field map
// target. Targets without a value are kept as nil unless removeNulls is set,
// in which case nil values are dropped as well.
func (r *Record) RemoveUnmappedProperties(removeNulls bool) {
	kept := make(map[string]any, len(r.schema.fieldMap))

	for _, to := range r.schema.fieldMap {
		if to == "" {
			continue
		}
		v := r.attributes[to]
		if removeNulls && v == nil {
			continue
		}
		kept[to] = v
	}

	r.attributes = kept
}

// MarshalJSON encodes ToArray with default options.
func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ToArray())
}
