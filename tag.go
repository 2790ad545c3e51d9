package pumped

import "fmt"

// taggable is any store a Tag can read from or write to: an executor, a
// flow definition, a scope, or a flow execution context's data store.
type taggable interface {
	getTag(key any) (any, bool)
	setTag(key any, val any)
}

// Tag is a typed, symbol-keyed accessor for a value living in a store. A
// store is any taggable: an executor's metadata, a scope's tag registry, or
// a flow's execution context data store. Unlike Meta, tags may be written
// at runtime (context stores) as well as at construction time.
type Tag[T any] struct {
	key         string
	schema      Schema
	hasDefault  bool
	defaultVal  T
}

// NewTag creates a tag keyed by the given name, with no validation and no
// default.
func NewTag[T any](key string) Tag[T] {
	return Tag[T]{key: key}
}

// NewValidatedTag creates a tag whose writes (Set) and reads (Get) are
// validated against schema. The schema is held behind a pointer so the tag
// stays usable as a store key even when the schema's dynamic type (a
// SchemaFunc, for one) is not comparable.
func NewValidatedTag[T any](key string, schema Schema) Tag[T] {
	if schema == nil {
		return Tag[T]{key: key}
	}
	return Tag[T]{key: key, schema: &schemaRef{schema}}
}

type schemaRef struct{ Schema }

// WithDefault returns a copy of the tag carrying a default value, returned
// by Find when the store has no value for this tag.
func (t Tag[T]) WithDefault(val T) Tag[T] {
	t.hasDefault = true
	t.defaultVal = val
	return t
}

// Key returns the tag's unique symbol (its string key).
func (t Tag[T]) Key() string {
	return t.key
}

// Get retrieves the value from source, validating a stored value against
// the tag's schema (if any). It returns an error when the tag has no value
// there and no configured default, or when the stored value fails
// validation.
func (t Tag[T]) Get(source taggable) (T, error) {
	if v, ok := source.getTag(t); ok {
		typed, ok := v.(T)
		if !ok {
			var zero T
			return zero, fmt.Errorf("tag %s: value %v is not of type %T", t.key, v, zero)
		}
		if _, err := validate(t.schema, typed); err != nil {
			var zero T
			return zero, schemaValidationFailed("tag-read:"+t.key, err)
		}
		return typed, nil
	}
	if t.hasDefault {
		return t.defaultVal, nil
	}
	var zero T
	return zero, fmt.Errorf("tag %s: no value present and no default configured", t.key)
}

// Find retrieves the value, or the tag's default (or the zero value, if no
// default is configured), without ever erroring.
func (t Tag[T]) Find(source taggable) (T, bool) {
	if v, ok := source.getTag(t); ok {
		if typed, ok := v.(T); ok {
			return typed, true
		}
	}
	if t.hasDefault {
		return t.defaultVal, true
	}
	var zero T
	return zero, false
}

// Set validates val against the tag's schema (if any) and writes it into
// store.
func (t Tag[T]) Set(store taggable, val T) error {
	if t.schema != nil {
		validated, err := t.schema.Validate(val)
		if err != nil {
			return schemaValidationFailed("tag-write:"+t.key, err)
		}
		store.setTag(t, validated)
		return nil
	}
	store.setTag(t, val)
	return nil
}

// Tagged pairs a tag with a concrete value, suitable for attaching to
// executors (Provide), flow definitions (WithFlowTag) or flow invocations
// (WithExecuteTag).
type Tagged struct {
	key   any
	value any
}

// With produces a Tagged record ready to attach at construction time.
func (t Tag[T]) With(val T) Tagged {
	return Tagged{key: t, value: val}
}

// Meta is the immutable counterpart to Tag: installed at executor or flow
// construction time and read-only at runtime. Unlike Tag, Meta never
// validates on read because it was already validated (or simply accepted)
// when attached.
type Meta[T any] struct {
	key string
}

// NewMeta creates a meta key.
func NewMeta[T any](key string) Meta[T] {
	return Meta[T]{key: key}
}

func (m Meta[T]) Key() string { return m.key }

// Get retrieves the meta value attached to source.
func (m Meta[T]) Get(source taggable) (T, bool) {
	v, ok := source.getTag(m)
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		var zero T
		return zero, false
	}
	return typed, true
}

// With produces a Tagged record for attaching at construction time.
func (m Meta[T]) With(val T) Tagged {
	return Tagged{key: m, value: val}
}

// simpleTagStore is a basic taggable backed by a plain map, used by Scope's
// tag registry and by ExecutionCtx's data store.
type simpleTagStore struct {
	data map[any]any
}

func newSimpleTagStore() *simpleTagStore {
	return &simpleTagStore{data: make(map[any]any)}
}

func (s *simpleTagStore) getTag(key any) (any, bool) {
	v, ok := s.data[key]
	return v, ok
}

func (s *simpleTagStore) setTag(key any, val any) {
	s.data[key] = val
}
