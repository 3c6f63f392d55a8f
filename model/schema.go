package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/jacentio/strata/codec"
)

// Strategy selects how instances of a schema are laid out in storage.
type Strategy uint8

const (
	// RowKeyed stores one physical row per instance.
	RowKeyed Strategy = iota
	// ColumnKeyed packs many instances into one physical row, one cell group
	// per column-key value.
	ColumnKeyed
)

func (s Strategy) String() string {
	switch s {
	case RowKeyed:
		return "row"
	case ColumnKeyed:
		return "column"
	default:
		return fmt.Sprintf("Strategy(%d)", uint8(s))
	}
}

// Field binds a name to an attribute declaration.
type Field struct {
	Name string
	Attr *Attribute
}

// F is shorthand for Field{Name: name, Attr: attr}.
func F(name string, attr *Attribute) Field {
	return Field{Name: name, Attr: attr}
}

// Definition is the input to NewSchema.
type Definition struct {
	// Name identifies the model type, e.g. "invoice".
	Name string

	// Family is the storage column family. Defaults to Name.
	Family string

	Strategy Strategy
	Fields   []Field

	// PreSave and PostSave run once per save, each after the matching
	// per-attribute hooks.
	PreSave  Hook
	PostSave Hook
}

// Schema is the immutable, shared description of a model type.
type Schema struct {
	name     string
	family   string
	strategy Strategy
	fields   []*Attribute
	byName   map[string]*Attribute
	rowKey   *Attribute
	colKey   *Attribute
	preSave  Hook
	postSave Hook
}

// NewSchema validates def and builds a Schema. Attributes are copied, so one
// declaration may be reused across schemas.
func NewSchema(def Definition) (*Schema, error) {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s: %s", ErrSchema, def.Name, fmt.Sprintf(format, args...)))
	}

	s := &Schema{
		name:     def.Name,
		family:   def.Family,
		strategy: def.Strategy,
		byName:   make(map[string]*Attribute, len(def.Fields)),
		preSave:  def.PreSave,
		postSave: def.PostSave,
	}
	if s.name == "" {
		fail("empty model name")
	}
	if s.family == "" {
		s.family = s.name
	}

	var rowKeys, colKeys int
	for i, f := range def.Fields {
		switch {
		case f.Name == "":
			fail("field %d has no name", i)
			continue
		case f.Attr == nil:
			fail("field %q has no attribute", f.Name)
			continue
		case s.byName[f.Name] != nil:
			fail("duplicate field %q", f.Name)
			continue
		}
		a := f.Attr.clone()
		a.name = f.Name
		s.fields = append(s.fields, a)
		s.byName[a.name] = a

		if a.IsRowKey() {
			rowKeys++
			s.rowKey = a
		}
		if a.IsColumnKey() {
			colKeys++
			s.colKey = a
			if a.codec.Width() == 0 {
				fail("column key %q must have a fixed-width encoding, %s has none", a.name, a.codec.Name())
			}
		}
		if a.Kind() == codec.KindSealed && a.flags&(Indexed|RowKey|ColumnKey) != 0 {
			fail("encrypted field %q cannot be indexed or a key", a.name)
		}
		if a.def != nil {
			if _, err := a.Validate(a.def); err != nil {
				fail("default for %q: %v", a.name, err)
			}
		}
	}

	if rowKeys != 1 {
		fail("need exactly one row key, have %d", rowKeys)
	}
	switch s.strategy {
	case RowKeyed:
		if colKeys != 0 {
			fail("row-keyed model cannot declare a column key")
		}
	case ColumnKeyed:
		if colKeys != 1 {
			fail("need exactly one column key, have %d", colKeys)
		}
	default:
		fail("unknown strategy %v", s.strategy)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return s, nil
}

// MustSchema is like NewSchema but panics on error. It is meant for
// package-level declarations.
func MustSchema(def Definition) *Schema {
	s, err := NewSchema(def)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the model name.
func (s *Schema) Name() string { return s.name }

// Family returns the storage column family.
func (s *Schema) Family() string { return s.family }

// Strategy returns the storage layout.
func (s *Schema) Strategy() Strategy { return s.strategy }

// RowKey returns the row-key attribute.
func (s *Schema) RowKey() *Attribute { return s.rowKey }

// ColumnKey returns the column-key attribute, or nil for row-keyed schemas.
func (s *Schema) ColumnKey() *Attribute { return s.colKey }

// Fields returns all attributes in declaration order.
func (s *Schema) Fields() []*Attribute {
	return append([]*Attribute(nil), s.fields...)
}

// ValueFields returns the non-key attributes in declaration order. These are
// the ones stored as columns.
func (s *Schema) ValueFields() []*Attribute {
	out := make([]*Attribute, 0, len(s.fields))
	for _, a := range s.fields {
		if !a.isKey() {
			out = append(out, a)
		}
	}
	return out
}

// ValueNames returns the names of ValueFields.
func (s *Schema) ValueNames() []string {
	var names []string
	for _, a := range s.fields {
		if !a.isKey() {
			names = append(names, a.name)
		}
	}
	return names
}

// Lookup returns the attribute for name.
func (s *Schema) Lookup(name string) (*Attribute, bool) {
	a, ok := s.byName[name]
	return a, ok
}

// Attr returns the attribute for name or an ErrUnknownAttribute error.
func (s *Schema) Attr(name string) (*Attribute, error) {
	a, ok := s.byName[name]
	if !ok {
		return nil, fieldError(name, ErrUnknownAttribute, "not declared by "+s.name)
	}
	return a, nil
}

// RunAttributePreSave runs every attribute pre-save hook in declaration order.
func (s *Schema) RunAttributePreSave(ctx context.Context, inst *Instance) error {
	for _, a := range s.fields {
		if a.preSave == nil {
			continue
		}
		if err := a.preSave(ctx, inst); err != nil {
			return fmt.Errorf("pre-save %s.%s: %w", s.name, a.name, err)
		}
	}
	return nil
}

// RunPreSave runs the model-level pre-save hook.
func (s *Schema) RunPreSave(ctx context.Context, inst *Instance) error {
	if s.preSave == nil {
		return nil
	}
	if err := s.preSave(ctx, inst); err != nil {
		return fmt.Errorf("pre-save %s: %w", s.name, err)
	}
	return nil
}

// RunPostSave runs the attribute post-save hooks, then the model-level one.
func (s *Schema) RunPostSave(ctx context.Context, inst *Instance) error {
	for _, a := range s.fields {
		if a.postSave == nil {
			continue
		}
		if err := a.postSave(ctx, inst); err != nil {
			return fmt.Errorf("post-save %s.%s: %w", s.name, a.name, err)
		}
	}
	if s.postSave != nil {
		if err := s.postSave(ctx, inst); err != nil {
			return fmt.Errorf("post-save %s: %w", s.name, err)
		}
	}
	return nil
}

// CheckRequired reports every required attribute that is null on inst.
func (s *Schema) CheckRequired(inst *Instance) error {
	var errs []error
	for _, a := range s.fields {
		if a.IsRequired() && inst.values[a.name] == nil {
			errs = append(errs, fieldError(a.name, ErrRequired, ""))
		}
	}
	return errors.Join(errs...)
}
