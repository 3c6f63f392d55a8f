package memstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/strata/codec"
	"github.com/jacentio/strata/memstore"
	"github.com/jacentio/strata/model"
	"github.com/jacentio/strata/store"
)

func enc(t *testing.T, v int64) []byte {
	t.Helper()
	b, err := codec.Int64{}.Encode(v)
	require.NoError(t, err)
	return b
}

func seed(t *testing.T) *memstore.Store {
	t.Helper()
	s := memstore.New()
	s.Register(model.MustSchema(model.Definition{
		Name: "t",
		Fields: []model.Field{
			model.F("id", model.Bytes(model.With(model.RowKey))),
			model.F("n", model.Int64(model.With(model.Indexed))),
			model.F("s", model.String()),
		},
	}))
	m := store.MutationMap{
		"a": {"t": {"n": enc(t, -5), "s": []byte("x")}},
		"b": {"t": {"n": enc(t, 3), "s": []byte("y")}},
		"c": {"t": {"n": enc(t, 10)}},
	}
	require.NoError(t, s.BatchMutate(context.Background(), m))
	return s
}

func TestGetSlice(t *testing.T) {
	s := seed(t)
	ctx := context.Background()

	cols, err := s.GetSlice(ctx, "t", []byte("a"), nil)
	require.NoError(t, err)
	assert.Equal(t, []store.Column{{Name: "n", Value: enc(t, -5)}, {Name: "s", Value: []byte("x")}}, cols)

	cols, err = s.GetSlice(ctx, "t", []byte("a"), []string{"s", "missing"})
	require.NoError(t, err)
	assert.Equal(t, []store.Column{{Name: "s", Value: []byte("x")}}, cols)

	cols, err = s.GetSlice(ctx, "t", []byte("zz"), nil)
	require.NoError(t, err)
	assert.Empty(t, cols)

	cols, err = s.GetSlice(ctx, "t", []byte("a"), []string{})
	require.NoError(t, err)
	assert.Empty(t, cols)
}

func TestGetIndexedSlices_SignedOrder(t *testing.T) {
	s := seed(t)

	// Raw bytes would put -5 (0xff...) above 3; the registered codec does not.
	got, err := s.GetIndexedSlices(context.Background(), "t",
		[]store.IndexExpression{{Column: "n", Op: model.LT, Value: enc(t, 4)}},
		[]string{}, nil, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []byte("a"), got[0].Key)
	assert.Equal(t, []byte("b"), got[1].Key)
	assert.Empty(t, got[0].Columns)
}

func TestGetIndexedSlices_Paging(t *testing.T) {
	s := seed(t)
	ctx := context.Background()

	page, err := s.GetIndexedSlices(ctx, "t", nil, []string{"n"}, nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "b", string(page[1].Key))

	// Start keys are inclusive.
	page, err = s.GetIndexedSlices(ctx, "t", nil, []string{"n"}, page[1].Key, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "b", string(page[0].Key))
	assert.Equal(t, "c", string(page[1].Key))
}

func TestMultigetSlice(t *testing.T) {
	s := seed(t)

	got, err := s.MultigetSlice(context.Background(), "t", [][]byte{[]byte("c"), []byte("nope"), []byte("a")}, nil, 1)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Len(t, got["a"], 1)
	assert.NotContains(t, got, "nope")
}

func TestBatchMutate_DeleteColumns(t *testing.T) {
	s := seed(t)
	ctx := context.Background()

	require.NoError(t, s.BatchMutate(ctx, store.MutationMap{"c": {"t": {"n": nil}}}))
	assert.Equal(t, 2, s.Len("t"))

	require.NoError(t, s.BatchMutate(ctx, store.MutationMap{"a": {"t": {"s": nil}}}))
	cols, err := s.GetSlice(ctx, "t", []byte("a"), nil)
	require.NoError(t, err)
	assert.Len(t, cols, 1)
}

func TestRemove(t *testing.T) {
	s := seed(t)
	require.NoError(t, s.Remove(context.Background(), "t", []byte("b")))
	assert.Equal(t, 2, s.Len("t"))
}

func TestFailNextAndCalls(t *testing.T) {
	s := seed(t)
	boom := errors.New("boom")
	s.FailNext(memstore.OpRemove, boom)

	err := s.Remove(context.Background(), "t", []byte("a"))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, s.Len("t"))

	require.NoError(t, s.Remove(context.Background(), "t", []byte("a")))
	assert.Equal(t, 2, s.Calls(memstore.OpRemove))
	assert.Equal(t, 1, s.Calls(memstore.OpBatchMutate))

	s.ResetCalls()
	assert.Zero(t, s.Calls(memstore.OpRemove))
}

func TestCanceledContext(t *testing.T) {
	s := seed(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.GetSlice(ctx, "t", []byte("a"), nil)
	assert.ErrorIs(t, err, context.Canceled)
}
