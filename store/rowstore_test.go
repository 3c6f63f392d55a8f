package store_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/strata/memstore"
	"github.com/jacentio/strata/model"
	"github.com/jacentio/strata/store"
)

func widgetSchema() *model.Schema {
	return model.MustSchema(model.Definition{
		Name:   "widget",
		Family: "widgets",
		Fields: []model.Field{
			model.F("id", model.UUID(model.With(model.RowKey))),
			model.F("name", model.String(model.With(model.Required))),
			model.F("rank", model.Int64(model.With(model.Indexed))),
			model.F("color", model.String(model.With(model.Indexed))),
			model.F("note", model.String()),
		},
	})
}

func newRowStore(t *testing.T) (*store.RowStore, *memstore.Store) {
	t.Helper()
	s := widgetSchema()
	mem := memstore.New()
	mem.Register(s)
	rs, err := store.NewRowStore(mem, s, store.DefaultConfig())
	require.NoError(t, err)
	return rs, mem
}

func TestNewRowStore_RejectsColumnKeyed(t *testing.T) {
	_, err := store.NewRowStore(memstore.New(), readingSchema(), store.DefaultConfig())
	assert.ErrorIs(t, err, model.ErrSchema)
}

func TestRowStore_SaveAndGet(t *testing.T) {
	rs, mem := newRowStore(t)
	ctx := context.Background()

	w := rs.Schema().MustNew(map[string]any{"name": "gear", "rank": 7})
	require.NoError(t, rs.Save(ctx, w))

	assert.False(t, w.IsNew())
	assert.Empty(t, w.Dirty())
	id, ok := model.ValueOf[uuid.UUID](w, "id")
	require.True(t, ok)
	assert.Equal(t, uuid.Version(1), id.Version())
	assert.Equal(t, 1, mem.Calls(memstore.OpBatchMutate))

	got, err := rs.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.IsNew())
	assert.Empty(t, got.Dirty())
	assert.Equal(t, []string{"id", "name", "rank"}, got.Fetched())
	assert.Equal(t, w.AsMap(), got.AsMap())
}

func TestRowStore_SaveKeepsExplicitKey(t *testing.T) {
	rs, _ := newRowStore(t)
	id := uuid.New()

	w := rs.Schema().MustNew(map[string]any{"id": id, "name": "gear"})
	require.NoError(t, rs.Save(context.Background(), w))
	assert.Equal(t, id, w.Value("id"))
}

func TestRowStore_Get_NotFound(t *testing.T) {
	rs, _ := newRowStore(t)

	got, err := rs.Get(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = rs.Get(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, model.ErrTypeMismatch)
}

func TestRowStore_MutationMap_OnlyDirty(t *testing.T) {
	rs, _ := newRowStore(t)
	ctx := context.Background()

	w := rs.Schema().MustNew(map[string]any{"name": "gear", "rank": 1, "note": "n"})
	require.NoError(t, rs.Save(ctx, w))

	require.NoError(t, w.Set("rank", 2))
	require.NoError(t, w.Set("note", nil))

	m, err := rs.MutationMap(w)
	require.NoError(t, err)

	key, err := w.WireValue("id")
	require.NoError(t, err)
	rank, err := w.WireValue("rank")
	require.NoError(t, err)
	assert.Equal(t, store.MutationMap{
		string(key): {"widgets": {"rank": rank, "note": nil}},
	}, m)
}

func TestRowStore_Save_ClearsNullColumn(t *testing.T) {
	rs, _ := newRowStore(t)
	ctx := context.Background()

	w := rs.Schema().MustNew(map[string]any{"name": "gear", "note": "n"})
	require.NoError(t, rs.Save(ctx, w))
	require.NoError(t, w.Set("note", nil))
	require.NoError(t, rs.Save(ctx, w))

	got, err := rs.Get(ctx, w.Value("id"))
	require.NoError(t, err)
	assert.Nil(t, got.Value("note"))
	assert.NotContains(t, got.Fetched(), "note")
}

func TestRowStore_Save_RequiredMissing(t *testing.T) {
	rs, mem := newRowStore(t)

	w := rs.Schema().MustNew(map[string]any{"rank": 1})
	err := rs.Save(context.Background(), w)

	assert.ErrorIs(t, err, model.ErrRequired)
	assert.Zero(t, mem.Calls(memstore.OpBatchMutate))
	assert.True(t, w.IsNew())
	assert.Equal(t, []string{"id", "rank"}, w.Dirty())
}

func TestRowStore_Save_MissingForeignKey(t *testing.T) {
	s := model.MustSchema(model.Definition{
		Name:   "invoice",
		Family: "invoices",
		Fields: []model.Field{
			model.F("id", model.UUID(model.With(model.RowKey))),
			model.F("customer_id", model.ForeignKey("customer")),
			model.F("number", model.Int64()),
		},
	})
	mem := memstore.New()
	rs, err := store.NewRowStore(mem, s, store.DefaultConfig())
	require.NoError(t, err)

	err = rs.Save(context.Background(), s.MustNew(map[string]any{"number": 1}))

	var fe *model.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "customer_id", fe.Field)
	assert.ErrorIs(t, err, model.ErrRequired)
	assert.Zero(t, mem.Calls(memstore.OpBatchMutate))
}

func TestRowStore_Save_StoreFailureKeepsDirty(t *testing.T) {
	rs, mem := newRowStore(t)
	boom := errors.New("connection reset")
	mem.FailNext(memstore.OpBatchMutate, boom)

	w := rs.Schema().MustNew(map[string]any{"name": "gear"})
	err := rs.Save(context.Background(), w)

	assert.ErrorIs(t, err, store.ErrStoreFailure)
	assert.ErrorIs(t, err, boom)
	assert.True(t, w.IsNew())
	assert.Contains(t, w.Dirty(), "name")

	require.NoError(t, rs.Save(context.Background(), w))
	assert.Equal(t, 1, mem.Len("widgets"))
}

func TestRowStore_Save_HookOrderAndAbort(t *testing.T) {
	var calls []string
	hook := func(name string, err error) model.Hook {
		return func(context.Context, *model.Instance) error {
			calls = append(calls, name)
			return err
		}
	}
	abort := errors.New("abort")

	s := model.MustSchema(model.Definition{
		Name: "hooked",
		Fields: []model.Field{
			model.F("id", model.UUID(model.With(model.RowKey))),
			model.F("a", model.String(model.BeforeSave(hook("a.pre", nil)), model.AfterSave(hook("a.post", nil)))),
		},
		PreSave:  hook("pre", nil),
		PostSave: hook("post", nil),
	})
	mem := memstore.New()
	rs, err := store.NewRowStore(mem, s, store.DefaultConfig())
	require.NoError(t, err)

	require.NoError(t, rs.Save(context.Background(), s.MustNew(map[string]any{"a": "x"})))
	assert.Equal(t, []string{"a.pre", "pre", "a.post", "post"}, calls)

	failing := model.MustSchema(model.Definition{
		Name: "failing",
		Fields: []model.Field{
			model.F("id", model.UUID(model.With(model.RowKey))),
			model.F("a", model.String()),
		},
		PreSave: hook("pre", abort),
	})
	fs, err := store.NewRowStore(mem, failing, store.DefaultConfig())
	require.NoError(t, err)

	mem.ResetCalls()
	err = fs.Save(context.Background(), failing.MustNew(map[string]any{"a": "x"}))
	assert.ErrorIs(t, err, abort)
	assert.Zero(t, mem.Calls(memstore.OpBatchMutate))
}

func TestRowStore_Save_PostHookFailureStillPersists(t *testing.T) {
	late := errors.New("notify failed")
	s := model.MustSchema(model.Definition{
		Name: "late",
		Fields: []model.Field{
			model.F("id", model.UUID(model.With(model.RowKey))),
			model.F("a", model.String()),
		},
		PostSave: func(context.Context, *model.Instance) error { return late },
	})
	rs, err := store.NewRowStore(memstore.New(), s, store.DefaultConfig())
	require.NoError(t, err)

	inst := s.MustNew(map[string]any{"a": "x"})
	err = rs.Save(context.Background(), inst)
	assert.ErrorIs(t, err, late)
	assert.False(t, inst.IsNew())
	assert.Empty(t, inst.Dirty())
}

func TestRowStore_Save_AuditStamps(t *testing.T) {
	s := model.MustSchema(model.Definition{
		Name: "audited",
		Fields: append([]model.Field{
			model.F("id", model.UUID(model.With(model.RowKey))),
			model.F("a", model.String()),
		}, model.AuditFields()...),
		PreSave: model.StampAudit,
	})
	rs, err := store.NewRowStore(memstore.New(), s, store.DefaultConfig())
	require.NoError(t, err)

	inst := s.MustNew(map[string]any{"a": "x"})
	require.NoError(t, rs.Save(context.Background(), inst))

	got, err := rs.Get(context.Background(), inst.Value("id"))
	require.NoError(t, err)
	assert.NotNil(t, got.Value(model.DateCreated))
	assert.Equal(t, inst.Value(model.DateModified), got.Value(model.DateModified))
}

func TestRowStore_Delete(t *testing.T) {
	rs, mem := newRowStore(t)
	ctx := context.Background()

	fresh := rs.Schema().MustNew(map[string]any{"name": "gear"})
	ok, err := rs.Delete(ctx, fresh)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, mem.Calls(memstore.OpRemove))

	require.NoError(t, rs.Save(ctx, fresh))
	id := fresh.Value("id")

	ok, err = rs.Delete(ctx, fresh)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, fresh.Value("id"))
	assert.True(t, fresh.IsNew())

	got, err := rs.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRowStore_DeleteThenSave(t *testing.T) {
	rs, mem := newRowStore(t)
	ctx := context.Background()

	w := rs.Schema().MustNew(map[string]any{"name": "gear", "rank": 3})
	require.NoError(t, rs.Save(ctx, w))
	ok, err := rs.Delete(ctx, w)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, rs.Save(ctx, w))
	assert.Equal(t, 1, mem.Len("widgets"))

	got, err := rs.Get(ctx, w.Value("id"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "gear", got.Value("name"))
	assert.Equal(t, int64(3), got.Value("rank"))
}

func TestRowStore_WrongSchema(t *testing.T) {
	rs, _ := newRowStore(t)
	other := widgetSchema().MustNew(map[string]any{"name": "x"})

	assert.ErrorIs(t, rs.Save(context.Background(), other), store.ErrWrongSchema)
	_, err := rs.Execute(context.Background(), store.NewQuery(widgetSchema()))
	assert.ErrorIs(t, err, store.ErrWrongSchema)
}

func TestRowStore_Metrics(t *testing.T) {
	s := widgetSchema()
	mem := memstore.New()
	mem.Register(s)

	reg := prometheus.NewRegistry()
	cfg := store.DefaultConfig()
	cfg.Metrics = store.NewMetrics(reg)
	rs, err := store.NewRowStore(mem, s, cfg)
	require.NoError(t, err)
	ctx := context.Background()

	for i := range 3 {
		require.NoError(t, rs.Save(ctx, s.MustNew(map[string]any{"name": fmt.Sprint(i)})))
	}
	mem.FailNext(memstore.OpBatchMutate, errors.New("down"))
	require.Error(t, rs.Save(ctx, s.MustNew(map[string]any{"name": "x"})))

	_, err = rs.Execute(ctx, rs.Query())
	require.NoError(t, err)

	expected := `
# HELP strata_store_operations_total Number of save/get/delete/query operations by outcome
# TYPE strata_store_operations_total counter
strata_store_operations_total{family="widgets",op="query",outcome="ok"} 1
strata_store_operations_total{family="widgets",op="save",outcome="error"} 1
strata_store_operations_total{family="widgets",op="save",outcome="ok"} 3
`
	err = testutil.GatherAndCompare(reg, strings.NewReader(expected), "strata_store_operations_total")
	assert.NoError(t, err)
	n, err := testutil.GatherAndCount(reg, "strata_query_scanned_rows")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
