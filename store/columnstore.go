package store

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/jacentio/strata/model"
)

// ColumnStore persists instances of a column-keyed schema. All instances
// sharing a row key live in one physical row; each field of an instance is
// a column named by the packed column key and field name.
type ColumnStore struct {
	client Client
	schema *model.Schema
	width  int
	cfg    Config
}

// NewColumnStore binds a column-keyed schema to a client.
func NewColumnStore(client Client, schema *model.Schema, cfg Config) (*ColumnStore, error) {
	if schema.Strategy() != model.ColumnKeyed {
		return nil, fmt.Errorf("%w: %s is %s-keyed", model.ErrSchema, schema.Name(), schema.Strategy())
	}
	cfg.validate()
	return &ColumnStore{
		client: client,
		schema: schema,
		width:  schema.ColumnKey().Codec().Width(),
		cfg:    cfg,
	}, nil
}

// Schema returns the bound schema.
func (s *ColumnStore) Schema() *model.Schema { return s.schema }

// Save writes the dirty fields of one cell. The row key must be set; a new
// instance without a column key gets a generated one.
func (s *ColumnStore) Save(ctx context.Context, inst *model.Instance) (err error) {
	if err := checkSchema(s.schema, inst); err != nil {
		return err
	}
	ctx, op := s.cfg.begin(ctx, s.schema.Family(), "save")
	defer func() { op.end(err) }()

	return persist(ctx, &s.cfg, s.client, inst,
		func(inst *model.Instance) error {
			if _, err := requireKey(inst, s.schema.RowKey()); err != nil {
				return err
			}
			return ensureKey(inst, s.schema.ColumnKey())
		},
		ColumnMutation,
	)
}

// MutationMap returns what Save would submit for inst in its current state.
func (s *ColumnStore) MutationMap(inst *model.Instance) (MutationMap, error) {
	if err := checkSchema(s.schema, inst); err != nil {
		return nil, err
	}
	return ColumnMutation(inst)
}

func (s *ColumnStore) encodeKey(a *model.Attribute, v any) ([]byte, error) {
	b, err := a.Encode(v)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("%w: %s.%s is null", ErrMissingKey, s.schema.Name(), a.Name())
	}
	return b, nil
}

// Get loads every instance stored under rowKey, ordered by column key. An
// empty row yields no instances and no error.
func (s *ColumnStore) Get(ctx context.Context, rowKey any) (insts []*model.Instance, err error) {
	rk, err := s.encodeKey(s.schema.RowKey(), rowKey)
	if err != nil {
		return nil, err
	}
	ctx, op := s.cfg.begin(ctx, s.schema.Family(), "get")
	defer func() { op.end(err) }()

	cols, err := s.client.GetSlice(ctx, s.schema.Family(), rk, nil)
	if err != nil {
		return nil, storeErr("get_slice", err)
	}
	insts, err = DecodeCells(s.schema, rk, cols)
	if err != nil {
		return nil, err
	}
	op.span.SetAttributes(attribute.Int("strata.cells", len(insts)))
	return insts, nil
}

// GetCell loads the one instance at (rowKey, colKey), or nil if it has no
// stored fields.
func (s *ColumnStore) GetCell(ctx context.Context, rowKey, colKey any) (inst *model.Instance, err error) {
	rk, err := s.encodeKey(s.schema.RowKey(), rowKey)
	if err != nil {
		return nil, err
	}
	ck, err := s.encodeKey(s.schema.ColumnKey(), colKey)
	if err != nil {
		return nil, err
	}
	ctx, op := s.cfg.begin(ctx, s.schema.Family(), "get_cell")
	defer func() { op.end(err) }()

	cols, err := s.client.GetSlice(ctx, s.schema.Family(), rk, s.cellColumns(ck))
	if err != nil {
		return nil, storeErr("get_slice", err)
	}
	if len(cols) == 0 {
		return nil, nil
	}
	insts, err := DecodeCells(s.schema, rk, cols)
	if err != nil {
		return nil, err
	}
	if len(insts) != 1 {
		return nil, fmt.Errorf("%w: cell read returned %d cells", ErrStoreFailure, len(insts))
	}
	return insts[0], nil
}

func (s *ColumnStore) cellColumns(colKey []byte) []string {
	fields := s.schema.ValueNames()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = PackColumnName(colKey, f)
	}
	return names
}

// Delete removes one cell by deleting every one of its columns, then clears
// the column key and audit timestamps of inst. It reports false, without
// calling the store, when the instance has never been persisted.
func (s *ColumnStore) Delete(ctx context.Context, inst *model.Instance) (deleted bool, err error) {
	if err := checkSchema(s.schema, inst); err != nil {
		return false, err
	}
	if inst.IsNew() {
		return false, nil
	}
	rk, err := inst.WireValue(s.schema.RowKey().Name())
	if err != nil {
		return false, err
	}
	ck, err := inst.WireValue(s.schema.ColumnKey().Name())
	if err != nil {
		return false, err
	}
	if rk == nil || ck == nil {
		return false, nil
	}

	ctx, op := s.cfg.begin(ctx, s.schema.Family(), "delete")
	defer func() { op.end(err) }()

	tombstones := make(map[string][]byte)
	for _, name := range s.cellColumns(ck) {
		tombstones[name] = nil
	}
	m := MutationMap{}
	m.put(rk, s.schema.Family(), tombstones)
	if err := s.client.BatchMutate(ctx, m); err != nil {
		return false, storeErr("batch_mutate", err)
	}
	inst.Reset(s.schema.ColumnKey().Name(), model.DateCreated, model.DateModified)
	return true, nil
}

// DeleteRow removes every instance stored under rowKey.
func (s *ColumnStore) DeleteRow(ctx context.Context, rowKey any) (err error) {
	rk, err := s.encodeKey(s.schema.RowKey(), rowKey)
	if err != nil {
		return err
	}
	ctx, op := s.cfg.begin(ctx, s.schema.Family(), "delete_row")
	defer func() { op.end(err) }()

	if err := s.client.Remove(ctx, s.schema.Family(), rk); err != nil {
		return storeErr("remove", err)
	}
	return nil
}

// Query starts a query over the bound schema, for use with Select.
func (s *ColumnStore) Query() *Query {
	return NewQuery(s.schema)
}

// Select evaluates q against the instances of one row. Every predicate,
// including NE, is applied client-side; indexes are not needed. Without a
// sort clause instances keep column-key order. Column restrictions do not
// apply: the row is read whole.
func (s *ColumnStore) Select(ctx context.Context, rowKey any, q *Query) (*Result, error) {
	if q.schema != s.schema {
		return nil, fmt.Errorf("%w: query over %s, store holds %s", ErrWrongSchema, q.schema.Name(), s.schema.Name())
	}
	if q.err != nil {
		return nil, q.err
	}
	p, err := planQuery(q, s.cfg.DefaultLimit, false, s.schema.ColumnKey())
	if err != nil {
		return nil, err
	}

	insts, err := s.Get(ctx, rowKey)
	if err != nil {
		return nil, err
	}

	attrs := []*model.Attribute{p.sort}
	for _, f := range p.filters {
		attrs = append(attrs, f.attr)
	}
	type cell struct {
		inst *model.Instance
		wire map[string][]byte
	}
	matches := make([]cell, 0, len(insts))
	for _, inst := range insts {
		c := cell{inst: inst, wire: make(map[string][]byte, len(attrs))}
		for _, a := range attrs {
			b, err := inst.WireValue(a.Name())
			if err != nil {
				return nil, err
			}
			c.wire[a.Name()] = b
		}
		if p.keep(func(a *model.Attribute) []byte { return c.wire[a.Name()] }) {
			matches = append(matches, c)
		}
	}
	orderBy(matches, p.sort, p.desc, func(c cell) []byte { return c.wire[p.sort.Name()] })

	lo, hi := window(len(matches), p.offset, p.limit)
	items := make([]*model.Instance, 0, hi-lo)
	for _, c := range matches[lo:hi] {
		items = append(items, c.inst)
	}
	s.cfg.Logger.Debug("select executed",
		zap.Stringer("query", q),
		zap.Int("cells", len(insts)),
		zap.Int("total", len(matches)),
	)
	return &Result{items: items, total: len(matches)}, nil
}
