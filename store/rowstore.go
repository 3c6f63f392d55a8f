package store

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jacentio/strata/model"
)

// RowStore persists instances of a row-keyed schema, one physical row each.
type RowStore struct {
	client Client
	schema *model.Schema
	cfg    Config
}

// NewRowStore binds a row-keyed schema to a client.
func NewRowStore(client Client, schema *model.Schema, cfg Config) (*RowStore, error) {
	if schema.Strategy() != model.RowKeyed {
		return nil, fmt.Errorf("%w: %s is %s-keyed", model.ErrSchema, schema.Name(), schema.Strategy())
	}
	cfg.validate()
	return &RowStore{client: client, schema: schema, cfg: cfg}, nil
}

// Schema returns the bound schema.
func (s *RowStore) Schema() *model.Schema { return s.schema }

// Save writes the dirty fields of inst. A new instance without a row key
// gets a generated one first.
func (s *RowStore) Save(ctx context.Context, inst *model.Instance) (err error) {
	if err := checkSchema(s.schema, inst); err != nil {
		return err
	}
	ctx, op := s.cfg.begin(ctx, s.schema.Family(), "save")
	defer func() { op.end(err) }()

	return persist(ctx, &s.cfg, s.client, inst,
		func(inst *model.Instance) error { return ensureKey(inst, s.schema.RowKey()) },
		RowMutation,
	)
}

// MutationMap returns what Save would submit for inst in its current state,
// without running hooks or generating keys.
func (s *RowStore) MutationMap(inst *model.Instance) (MutationMap, error) {
	if err := checkSchema(s.schema, inst); err != nil {
		return nil, err
	}
	return RowMutation(inst)
}

// Get loads the row with the given key. A row with no stored columns is not
// found and yields nil without error.
func (s *RowStore) Get(ctx context.Context, key any) (inst *model.Instance, err error) {
	k, err := s.schema.RowKey().Encode(key)
	if err != nil {
		return nil, err
	}
	if k == nil {
		return nil, fmt.Errorf("%w: %s.%s is null", ErrMissingKey, s.schema.Name(), s.schema.RowKey().Name())
	}

	ctx, op := s.cfg.begin(ctx, s.schema.Family(), "get")
	defer func() { op.end(err) }()

	cols, err := s.client.GetSlice(ctx, s.schema.Family(), k, s.schema.ValueNames())
	if err != nil {
		return nil, storeErr("get_slice", err)
	}
	if len(cols) == 0 {
		op.span.SetAttributes(attribute.Bool("strata.found", false))
		return nil, nil
	}
	return DecodeRow(s.schema, k, cols)
}

// Delete removes the row of a persisted instance and clears its key and
// audit timestamps. It reports false, without calling the store, when the
// instance has never been persisted.
func (s *RowStore) Delete(ctx context.Context, inst *model.Instance) (deleted bool, err error) {
	if err := checkSchema(s.schema, inst); err != nil {
		return false, err
	}
	key, err := inst.WireValue(s.schema.RowKey().Name())
	if err != nil {
		return false, err
	}
	if key == nil || inst.IsNew() {
		return false, nil
	}

	ctx, op := s.cfg.begin(ctx, s.schema.Family(), "delete")
	defer func() { op.end(err) }()

	if err := s.client.Remove(ctx, s.schema.Family(), key); err != nil {
		return false, storeErr("remove", err)
	}
	inst.Reset(s.schema.RowKey().Name(), model.DateCreated, model.DateModified)
	return true, nil
}

// Query starts a query over the bound schema.
func (s *RowStore) Query() *Query {
	return NewQuery(s.schema)
}
