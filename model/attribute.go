package model

import (
	"context"
	"fmt"
	"reflect"
	"regexp"

	"github.com/jacentio/strata/codec"
)

// Flags holds the write policy and key role of an attribute.
type Flags uint8

const (
	Indexed Flags = 1 << iota
	Required
	ReadOnly
	WriteOnce
	RowKey
	ColumnKey
)

// Hook runs around a save. It may block; ctx is the save's context.
type Hook func(ctx context.Context, inst *Instance) error

// InputFilter post-processes an assigned value. It may derive other fields
// through inst.Assign and returns the value to store.
type InputFilter func(inst *Instance, value any) (any, error)

// Option configures an Attribute.
type Option func(*Attribute)

// With sets policy and key flags.
func With(flags Flags) Option {
	return func(a *Attribute) { a.flags |= flags }
}

// Default sets the value new instances start with.
func Default(v any) Option {
	return func(a *Attribute) { a.def = v }
}

// Filter installs an input filter.
func Filter(fn InputFilter) Option {
	return func(a *Attribute) { a.filter = fn }
}

// BeforeSave installs a per-attribute pre-save hook.
func BeforeSave(h Hook) Option {
	return func(a *Attribute) { a.preSave = h }
}

// AfterSave installs a per-attribute post-save hook.
func AfterSave(h Hook) Option {
	return func(a *Attribute) { a.postSave = h }
}

// MaxLength limits string attributes to n characters.
func MaxLength(n int) Option {
	return func(a *Attribute) { a.maxLength = n }
}

// Pattern requires string attributes to match re.
func Pattern(re *regexp.Regexp) Option {
	return func(a *Attribute) { a.pattern = re }
}

// Attribute describes one declared model field: its codec, domain type,
// write policy and hooks. The name is assigned when the attribute is added to
// a Schema and never changes afterwards.
type Attribute struct {
	name   string
	codec  codec.Codec
	domain reflect.Type // nil accepts any value
	coerce func(a *Attribute, v any) (any, error)
	flags  Flags
	def    any
	ref    string

	filter   InputFilter
	preSave  Hook
	postSave Hook

	maxLength int
	pattern   *regexp.Regexp
}

func newAttribute(c codec.Codec, domain reflect.Type, coerce func(*Attribute, any) (any, error), opts []Option) *Attribute {
	a := &Attribute{codec: c, domain: domain, coerce: coerce}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the field name assigned by the schema.
func (a *Attribute) Name() string { return a.name }

// Codec returns the wire codec.
func (a *Attribute) Codec() codec.Codec { return a.codec }

// Kind returns the wire layout of the codec.
func (a *Attribute) Kind() codec.Kind { return a.codec.Kind() }

// Flags returns the policy and key flags.
func (a *Attribute) Flags() Flags { return a.flags }

// Has reports whether every flag in f is set.
func (a *Attribute) Has(f Flags) bool { return a.flags&f == f }

// DefaultValue returns the value new instances start with, or nil.
func (a *Attribute) DefaultValue() any { return a.def }

// References returns the target model of a foreign key, or "".
func (a *Attribute) References() string { return a.ref }

// IsIndexed reports whether the store indexes the field.
func (a *Attribute) IsIndexed() bool { return a.Has(Indexed) }

// IsRequired reports whether the field must be non-null on save.
func (a *Attribute) IsRequired() bool { return a.Has(Required) }

// IsRowKey reports whether the field holds the row key.
func (a *Attribute) IsRowKey() bool { return a.Has(RowKey) }

// IsColumnKey reports whether the field holds the column key.
func (a *Attribute) IsColumnKey() bool { return a.Has(ColumnKey) }

func (a *Attribute) isKey() bool { return a.flags&(RowKey|ColumnKey) != 0 }

func (a *Attribute) clone() *Attribute {
	c := *a
	return &c
}

func (a *Attribute) domainName() string {
	if a.domain == nil {
		return "any"
	}
	return a.domain.String()
}

// Validate coerces raw to the attribute's domain type. Null passes through.
func (a *Attribute) Validate(raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	v, err := a.coerce(a, raw)
	if err != nil {
		return nil, err
	}
	if v != nil && a.domain != nil && reflect.TypeOf(v) != a.domain {
		return nil, fieldError(a.name, ErrTypeMismatch, fmt.Sprintf("need %s, got %T", a.domainName(), v))
	}
	return v, nil
}

// FilterInput enforces the write policy for an assignment on inst and then
// applies the input filter, if any.
func (a *Attribute) FilterInput(inst *Instance, v any) (any, error) {
	switch {
	case a.Has(ReadOnly) && !inst.building:
		return nil, fieldError(a.name, ErrReadOnly, "")
	case a.Has(WriteOnce) && !inst.isNew:
		return nil, fieldError(a.name, ErrWriteOnce, "")
	case a.Has(Required) && v == nil:
		return nil, fieldError(a.name, ErrRequired, "")
	}
	if a.filter != nil {
		return a.filter(inst, v)
	}
	return v, nil
}

// ToWire encodes a validated value. Null encodes to nil.
func (a *Attribute) ToWire(v any) ([]byte, error) {
	b, err := a.codec.Encode(v)
	if err != nil {
		return nil, fieldErrorCause(a.name, ErrTypeMismatch, err)
	}
	return b, nil
}

// FromWire decodes a stored column value. Nil decodes to null.
func (a *Attribute) FromWire(b []byte) (any, error) {
	v, err := a.codec.Decode(b)
	if err != nil {
		return nil, fieldErrorCause(a.name, ErrTypeMismatch, err)
	}
	return v, nil
}

// Encode validates raw and encodes it in one step.
func (a *Attribute) Encode(raw any) ([]byte, error) {
	v, err := a.Validate(raw)
	if err != nil {
		return nil, err
	}
	return a.ToWire(v)
}

// Compare builds a predicate against this attribute.
func (a *Attribute) Compare(op Operator, raw any) (Predicate, error) {
	if raw == nil {
		return Predicate{}, fieldError(a.name, ErrTypeMismatch, "cannot compare against null")
	}
	b, err := a.Encode(raw)
	if err != nil {
		return Predicate{}, err
	}
	return Predicate{Field: a.name, Op: op, Value: b}, nil
}

// Eq builds an equality predicate.
func (a *Attribute) Eq(v any) (Predicate, error) { return a.Compare(EQ, v) }

// Lt builds a less-than predicate.
func (a *Attribute) Lt(v any) (Predicate, error) { return a.Compare(LT, v) }

// Lte builds a less-or-equal predicate.
func (a *Attribute) Lte(v any) (Predicate, error) { return a.Compare(LTE, v) }

// Gt builds a greater-than predicate.
func (a *Attribute) Gt(v any) (Predicate, error) { return a.Compare(GT, v) }

// Gte builds a greater-or-equal predicate.
func (a *Attribute) Gte(v any) (Predicate, error) { return a.Compare(GTE, v) }

// Ne builds a client-side exclusion; the index cannot evaluate inequality.
func (a *Attribute) Ne(v any) (Predicate, error) { return a.Compare(NE, v) }
