package store

import "errors"

var (
	// ErrUnsupportedQuery is returned when a query asks for something the
	// index scan cannot serve, such as more than one sort field.
	ErrUnsupportedQuery = errors.New("strata: unsupported query")

	// ErrStoreFailure wraps any error returned by the Client. The original
	// error stays reachable through errors.Is and errors.As.
	ErrStoreFailure = errors.New("strata: store failure")

	// ErrMissingKey is returned when an operation needs a key the instance
	// does not have, such as saving a cell without its row key.
	ErrMissingKey = errors.New("strata: missing key")

	// ErrWrongSchema is returned when an instance is handed to a store bound
	// to another schema.
	ErrWrongSchema = errors.New("strata: instance belongs to another schema")
)
