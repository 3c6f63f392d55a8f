// Package store persists model instances in a sparse column store and
// answers filtered, sorted, paginated queries over them.
//
// The store itself is reached through the narrow [Client] interface
// (get-slice, multiget-slice, indexed-slice scan, batch-mutate, remove).
// Package memstore provides an in-process Client; package dynamo maps it
// onto DynamoDB.
//
// # Persistence strategies
//
// [RowStore] keeps one physical row per instance, keyed by the encoded row
// key, with one column per non-key field.
//
// [ColumnStore] packs many instances into one physical row. Each instance is
// identified by a fixed-width column key, and each of its fields is stored in
// a column named column_key_bytes ++ field_name (see [PackColumnName]).
//
// Both write only dirty fields, in one BatchMutate call per save:
//
//	inv := Invoice.MustNew(map[string]any{"customer_id": cid, "number": 42})
//	if err := invoices.Save(ctx, inv); err != nil {
//	    return err
//	}
//
// # Queries
//
// Queries are immutable builders:
//
//	q := invoices.Query().
//	    Where("customer_id", model.EQ, cid).
//	    Where("status", model.NE, "void").
//	    Sort("-number").
//	    Offset(20).
//	    Limit(10)
//	res, err := invoices.Execute(ctx, q)
//
// Execution has two phases. An index scan returns the keys of matching rows
// with only the columns needed to filter and sort; NE predicates, which the
// index cannot answer, are applied to that partial data. The survivors are
// sorted and counted ([Result.Total]), the page is cut, and only the rows of
// the page are fetched in full.
//
// # Configuration
//
// Use [DefaultConfig] and set a logger, metrics and tracer as needed:
//
//	cfg := store.DefaultConfig()
//	cfg.Logger = logger
//	cfg.Metrics = store.NewMetrics(prometheus.DefaultRegisterer)
//
// # Errors
//
// Validation and policy failures come from package model and never reach
// the store. This package adds:
//
//   - [ErrUnsupportedQuery] - more than one sort clause, or an index
//     predicate on an unindexed field
//   - [ErrStoreFailure] - wraps every Client error
//   - [ErrMissingKey] - a key needed by the operation is null
//   - [ErrWrongSchema] - an instance or query of another schema
//
// A get that finds nothing returns nil and no error.
package store
