package model

import (
	"fmt"
	"maps"
)

// Instance is a live model object: values keyed by field name, plus the set
// of fields changed since the last persist or load (dirty) and the set
// populated from storage (fetched).
//
// An Instance is not safe for concurrent mutation.
type Instance struct {
	schema   *Schema
	values   map[string]any
	dirty    map[string]struct{}
	fetched  map[string]struct{}
	isNew    bool
	building bool
}

// New builds a fresh instance. Attributes with a non-nil default start with
// it and count as dirty; fields are then assigned in declaration order
// through the same pipeline as Set, except that read-only attributes accept
// their initial value.
func (s *Schema) New(fields map[string]any) (*Instance, error) {
	inst := s.blank(true)
	for name := range fields {
		if _, ok := s.byName[name]; !ok {
			return nil, fieldError(name, ErrUnknownAttribute, "not declared by "+s.name)
		}
	}
	for _, a := range s.fields {
		if a.def == nil {
			continue
		}
		v, err := a.Validate(a.def)
		if err != nil {
			return nil, err
		}
		inst.values[a.name] = v
		inst.dirty[a.name] = struct{}{}
	}

	inst.building = true
	defer func() { inst.building = false }()
	for _, a := range s.fields {
		raw, ok := fields[a.name]
		if !ok {
			continue
		}
		if err := inst.set(a, raw); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

// MustNew is like New but panics on error.
func (s *Schema) MustNew(fields map[string]any) *Instance {
	inst, err := s.New(fields)
	if err != nil {
		panic(err)
	}
	return inst
}

// Loaded returns an empty, persisted instance to be filled through the
// LoadWire and LoadValue decode path.
func (s *Schema) Loaded() *Instance {
	return s.blank(false)
}

func (s *Schema) blank(isNew bool) *Instance {
	return &Instance{
		schema:  s,
		values:  make(map[string]any, len(s.fields)),
		dirty:   make(map[string]struct{}),
		fetched: make(map[string]struct{}),
		isNew:   isNew,
	}
}

// Schema returns the schema the instance belongs to.
func (i *Instance) Schema() *Schema { return i.schema }

// IsNew reports whether the instance has never been persisted or loaded.
func (i *Instance) IsNew() bool { return i.isNew }

// Set validates raw, enforces the attribute's write policy, applies its input
// filter and marks the field dirty.
func (i *Instance) Set(name string, raw any) error {
	a, err := i.schema.Attr(name)
	if err != nil {
		return err
	}
	return i.set(a, raw)
}

func (i *Instance) set(a *Attribute, raw any) error {
	v, err := a.Validate(raw)
	if err != nil {
		return err
	}
	v, err = a.FilterInput(i, v)
	if err != nil {
		return err
	}
	i.values[a.name] = v
	i.dirty[a.name] = struct{}{}
	return nil
}

// Update applies Set to every entry of fields in declaration order and stops
// at the first failure. Fields assigned before the failure keep their value.
func (i *Instance) Update(fields map[string]any) error {
	for name := range fields {
		if _, ok := i.schema.byName[name]; !ok {
			return fieldError(name, ErrUnknownAttribute, "not declared by "+i.schema.name)
		}
	}
	for _, a := range i.schema.fields {
		raw, ok := fields[a.name]
		if !ok {
			continue
		}
		if err := i.set(a, raw); err != nil {
			return err
		}
	}
	return nil
}

// Assign validates raw and stores it, marking the field dirty, without
// applying write policy or input filters. It is meant for input filters and
// save hooks that derive values (timestamps, generated keys).
func (i *Instance) Assign(name string, raw any) error {
	a, err := i.schema.Attr(name)
	if err != nil {
		return err
	}
	v, err := a.Validate(raw)
	if err != nil {
		return err
	}
	i.values[name] = v
	i.dirty[name] = struct{}{}
	return nil
}

// Get returns the current value of name.
func (i *Instance) Get(name string) (any, error) {
	if _, err := i.schema.Attr(name); err != nil {
		return nil, err
	}
	return i.values[name], nil
}

// Value returns the current value of name, or nil if it is null or undeclared.
func (i *Instance) Value(name string) any {
	return i.values[name]
}

// ValueOf returns the value of name as T. ok is false when the value is null
// or of another type.
func ValueOf[T any](i *Instance, name string) (v T, ok bool) {
	v, ok = i.values[name].(T)
	return v, ok
}

// AsMap returns a copy of all non-null values.
func (i *Instance) AsMap() map[string]any {
	out := make(map[string]any, len(i.values))
	for k, v := range i.values {
		if v != nil {
			out[k] = v
		}
	}
	return out
}

// Dirty returns the dirty field names in declaration order.
func (i *Instance) Dirty() []string { return i.ordered(i.dirty) }

// Fetched returns the field names populated from storage in declaration order.
func (i *Instance) Fetched() []string { return i.ordered(i.fetched) }

// IsDirty reports whether name changed since the last save or load.
func (i *Instance) IsDirty(name string) bool {
	_, ok := i.dirty[name]
	return ok
}

func (i *Instance) ordered(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for _, a := range i.schema.fields {
		if _, ok := set[a.name]; ok {
			out = append(out, a.name)
		}
	}
	return out
}

// WireValue encodes the current value of name. A null value encodes to nil.
func (i *Instance) WireValue(name string) ([]byte, error) {
	a, err := i.schema.Attr(name)
	if err != nil {
		return nil, err
	}
	return a.ToWire(i.values[name])
}

// LoadWire decodes a stored column into name and marks it fetched.
func (i *Instance) LoadWire(name string, b []byte) error {
	a, err := i.schema.Attr(name)
	if err != nil {
		return err
	}
	v, err := a.FromWire(b)
	if err != nil {
		return err
	}
	i.values[name] = v
	i.fetched[name] = struct{}{}
	return nil
}

// LoadValue stores an already decoded value into name and marks it fetched.
func (i *Instance) LoadValue(name string, v any) error {
	a, err := i.schema.Attr(name)
	if err != nil {
		return err
	}
	if v, err = a.Validate(v); err != nil {
		return err
	}
	i.values[name] = v
	i.fetched[name] = struct{}{}
	return nil
}

// MarkPersisted records a successful save: the dirty set is cleared and the
// instance is no longer new.
func (i *Instance) MarkPersisted() {
	clear(i.dirty)
	i.isNew = false
}

// Reset nulls the named fields and returns the instance to the new state. It
// follows a delete, where the key no longer refers to stored data. The
// remaining non-null fields become dirty, as if the instance had just been
// constructed with them, so a later save writes them again.
func (i *Instance) Reset(names ...string) {
	for _, name := range names {
		delete(i.values, name)
	}
	clear(i.dirty)
	clear(i.fetched)
	for name, v := range i.values {
		if v != nil {
			i.dirty[name] = struct{}{}
		}
	}
	i.isNew = true
}

// Clone returns a deep copy of the bookkeeping; values are shared.
func (i *Instance) Clone() *Instance {
	return &Instance{
		schema:  i.schema,
		values:  maps.Clone(i.values),
		dirty:   maps.Clone(i.dirty),
		fetched: maps.Clone(i.fetched),
		isNew:   i.isNew,
	}
}

func (i *Instance) String() string {
	return fmt.Sprintf("%s%v", i.schema.name, i.AsMap())
}
