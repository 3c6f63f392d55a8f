package model

import (
	"errors"
	"fmt"
)

var (
	// ErrTypeMismatch is returned when a value cannot be coerced to an attribute's domain type.
	ErrTypeMismatch = errors.New("strata: type mismatch")

	// ErrReadOnly is returned when a read-only attribute is set after construction.
	ErrReadOnly = errors.New("strata: attribute is read-only")

	// ErrWriteOnce is returned when a write-once attribute is set on a persisted instance.
	ErrWriteOnce = errors.New("strata: attribute is write-once")

	// ErrRequired is returned when a required attribute is null.
	ErrRequired = errors.New("strata: required attribute is null")

	// ErrSchema is returned when a model definition is inconsistent.
	ErrSchema = errors.New("strata: invalid schema")

	// ErrUnknownAttribute is returned when a field name is not declared by the schema.
	ErrUnknownAttribute = errors.New("strata: unknown attribute")
)

// FieldError reports a failure tied to one attribute.
// errors.Is matches both the kind (e.g. ErrReadOnly) and the underlying cause.
type FieldError struct {
	Field  string
	Err    error
	Detail string
	cause  error
}

func (e *FieldError) Error() string {
	msg := fmt.Sprintf("%v: %q", e.Err, e.Field)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *FieldError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.cause}
}

func fieldError(field string, kind error, detail string) error {
	return &FieldError{Field: field, Err: kind, Detail: detail}
}

func fieldErrorCause(field string, kind error, cause error) error {
	return &FieldError{Field: field, Err: kind, cause: cause}
}
