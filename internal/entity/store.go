package entity

// Record holds the current and original attribute values of one row.
// A Record is owned by a single goroutine; it performs no locking.
type Record struct {
	schema     *Schema
	attributes map[string]any
	original   map[string]any
}

// New creates a record for schema, starting from the schema defaults and
// filling it with data. The result has no changes.
func New(schema *Schema, data map[string]any) *Record {
	if schema == nil {
		schema = MustSchema()
	}

	r := &Record{
		schema:     schema,
		attributes: cloneMap(schema.defaults),
	}

	r.Fill(data)
	r.SyncOriginal()

	return r
}

// Schema returns the schema the record was built with.
func (r *Record) Schema() *Schema {
	return r.schema
}

// Get returns the value of a field by external or internal name. It returns
// nil when the field is unset or not allowed by the schema.
func (r *Record) Get(name string) any {
	key := r.schema.Resolve(name)

	if fn, ok := r.schema.accessor(key); ok {
		return fn(r)
	}

	if !r.schema.allows(key) {
		return nil
	}

	return r.attributes[key]
}

// Set writes a field by external or internal name. Writes to fields outside a
// closed schema are dropped.
func (r *Record) Set(name string, value any) {
	key := r.schema.Resolve(name)

	if fn, ok := r.schema.mutator(key); ok {
		fn(r, value)
		return
	}

	if !r.schema.allows(key) {
		return
	}

	r.attributes[key] = value
}

// Has reports whether the field has an accessor or a stored value.
func (r *Record) Has(name string) bool {
	key := r.schema.Resolve(name)

	if _, ok := r.schema.accessor(key); ok {
		return true
	}

	_, ok := r.attributes[key]
	return ok
}

// Remove deletes the current value of a field. The original value is kept,
// so the field reports as changed afterwards.
func (r *Record) Remove(name string) {
	delete(r.attributes, r.schema.Resolve(name))
}

// Attribute reads a raw attribute by internal name, bypassing mapping,
// gating and accessors.
func (r *Record) Attribute(name string) (any, bool) {
	v, ok := r.attributes[name]
	return v, ok
}

// SetAttribute writes a raw attribute by internal name, bypassing mapping,
// gating and mutators. Mutators use it to store their result.
func (r *Record) SetAttribute(name string, value any) {
	r.attributes[name] = value
}

// Attributes returns a copy of the raw attributes.
func (r *Record) Attributes() map[string]any {
	return cloneMap(r.attributes)
}

// SetAttributes replaces the raw attributes without mutators and marks them
// as the new baseline.
func (r *Record) SetAttributes(data map[string]any) {
	r.attributes = cloneMap(data)
	r.SyncOriginal()
}
