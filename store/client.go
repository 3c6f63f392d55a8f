package store

import (
	"context"

	"github.com/jacentio/strata/model"
)

// Column is one named value within a row. Names are byte strings: composite
// models pack binary column keys into them.
type Column struct {
	Name  string
	Value []byte
}

// KeySlice is a row key with some of its columns, as returned by an index scan.
type KeySlice struct {
	Key     []byte
	Columns []Column
}

// IndexExpression is one server-side clause of an index scan. Op is never
// model.NE.
type IndexExpression struct {
	Column string
	Op     model.Operator
	Value  []byte
}

// MutationMap is the nested write submitted in one BatchMutate call:
// row key -> column family -> column name -> value. A nil value deletes the
// column. Row keys are raw bytes held in a string.
type MutationMap map[string]map[string]map[string][]byte

// Client is the column store as seen by this package. Implementations must
// be safe for concurrent use.
//
// names restricts the columns returned: nil means all columns of the row and
// an empty, non-nil slice means none (keys only). A row with no stored
// columns does not exist.
type Client interface {
	// GetSlice reads columns of one row. A missing row yields no columns.
	GetSlice(ctx context.Context, family string, rowKey []byte, names []string) ([]Column, error)

	// MultigetSlice reads columns of many rows, keyed by string(rowKey).
	// Missing rows are absent from the result; count caps the columns per
	// row, 0 meaning no cap. The result carries no order.
	MultigetSlice(ctx context.Context, family string, rowKeys [][]byte, names []string, count int) (map[string][]Column, error)

	// GetIndexedSlices returns rows matching every expression, starting at
	// startKey (nil for the beginning) and returning at most count rows (0
	// meaning all). Rows come back in the store's key order; startKey may be
	// inclusive or exclusive. No expressions means every row of the family.
	GetIndexedSlices(ctx context.Context, family string, exprs []IndexExpression, names []string, startKey []byte, count int) ([]KeySlice, error)

	// BatchMutate applies all mutations. Writes to one row are atomic.
	BatchMutate(ctx context.Context, mutations MutationMap) error

	// Remove deletes a whole row.
	Remove(ctx context.Context, family string, rowKey []byte) error
}
