// Package memstore is an in-process store.Client. It keeps rows in memory,
// evaluates index expressions with the ordering of each column's codec, and
// counts calls so tests can assert which RPCs an operation issued.
package memstore

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/jacentio/strata/codec"
	"github.com/jacentio/strata/model"
	"github.com/jacentio/strata/store"
)

// Call names, as used by Calls and FailNext.
const (
	OpGetSlice         = "get_slice"
	OpMultigetSlice    = "multiget_slice"
	OpGetIndexedSlices = "get_indexed_slices"
	OpBatchMutate      = "batch_mutate"
	OpRemove           = "remove"
)

type row map[string][]byte

// Store is a store.Client backed by maps. The zero value is not usable; call
// New.
type Store struct {
	mu       sync.RWMutex
	families map[string]map[string]row
	codecs   map[string]map[string]codec.Codec
	calls    map[string]int
	failures map[string]error
}

var _ store.Client = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{
		families: make(map[string]map[string]row),
		codecs:   make(map[string]map[string]codec.Codec),
		calls:    make(map[string]int),
		failures: make(map[string]error),
	}
}

// Register records the column codecs of row-keyed schemas so index
// expressions compare values in domain order. Columns of unregistered
// families compare as raw bytes.
func (s *Store) Register(schemas ...*model.Schema) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sc := range schemas {
		if sc.Strategy() != model.RowKeyed {
			continue
		}
		cs := make(map[string]codec.Codec)
		for _, a := range sc.ValueFields() {
			cs[a.Name()] = a.Codec()
		}
		s.codecs[sc.Family()] = cs
	}
}

// Calls returns how many times op was called.
func (s *Store) Calls(op string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[op]
}

// ResetCalls zeroes all call counters.
func (s *Store) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.calls)
}

// FailNext makes the next call of op return err without touching any data.
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

// Len returns the number of rows in family.
func (s *Store) Len(family string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.families[family])
}

// enter counts a call and returns a pending injected failure. The caller
// must hold s.mu for writing.
func (s *Store) enter(op string) error {
	s.calls[op]++
	if err, ok := s.failures[op]; ok {
		delete(s.failures, op)
		return err
	}
	return nil
}

// GetSlice returns the named columns of one row; nil names means all.
func (s *Store) GetSlice(ctx context.Context, family string, rowKey []byte, names []string) ([]store.Column, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpGetSlice); err != nil {
		return nil, err
	}
	r, ok := s.families[family][string(rowKey)]
	if !ok {
		return nil, nil
	}
	return r.slice(names, 0), nil
}

// MultigetSlice reads several rows, keeping at most count columns each.
func (s *Store) MultigetSlice(ctx context.Context, family string, rowKeys [][]byte, names []string, count int) (map[string][]store.Column, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpMultigetSlice); err != nil {
		return nil, err
	}
	out := make(map[string][]store.Column, len(rowKeys))
	for _, k := range rowKeys {
		if r, ok := s.families[family][string(k)]; ok {
			out[string(k)] = r.slice(names, count)
		}
	}
	return out, nil
}

// GetIndexedSlices scans rows matching exprs in key order, starting at
// startKey inclusive.
func (s *Store) GetIndexedSlices(ctx context.Context, family string, exprs []store.IndexExpression, names []string, startKey []byte, count int) ([]store.KeySlice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpGetIndexedSlices); err != nil {
		return nil, err
	}

	rows := s.families[family]
	keys := make([]string, 0, len(rows))
	for k := range rows {
		if startKey == nil || k >= string(startKey) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var out []store.KeySlice
	for _, k := range keys {
		r := rows[k]
		if !s.matches(family, r, exprs) {
			continue
		}
		out = append(out, store.KeySlice{Key: []byte(k), Columns: r.slice(names, 0)})
		if count > 0 && len(out) == count {
			break
		}
	}
	return out, nil
}

func (s *Store) matches(family string, r row, exprs []store.IndexExpression) bool {
	for _, e := range exprs {
		c, ok := s.codecs[family][e.Column]
		if !ok {
			c = codec.Bytes{}
		}
		p := model.Predicate{Field: e.Column, Op: e.Op, Value: e.Value}
		if !p.Matches(c, r[e.Column]) {
			return false
		}
	}
	return true
}

// BatchMutate applies every column write and delete in mutations.
func (s *Store) BatchMutate(ctx context.Context, mutations store.MutationMap) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpBatchMutate); err != nil {
		return err
	}
	for key, fams := range mutations {
		for family, cols := range fams {
			rows, ok := s.families[family]
			if !ok {
				rows = make(map[string]row)
				s.families[family] = rows
			}
			r, ok := rows[key]
			if !ok {
				r = make(row)
			}
			for name, v := range cols {
				if v == nil {
					delete(r, name)
					continue
				}
				r[name] = bytes.Clone(v)
			}
			if len(r) == 0 {
				delete(rows, key)
			} else {
				rows[key] = r
			}
		}
	}
	return nil
}

// Remove deletes a whole row.
func (s *Store) Remove(ctx context.Context, family string, rowKey []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpRemove); err != nil {
		return err
	}
	delete(s.families[family], string(rowKey))
	return nil
}

// slice copies the requested columns in name order. nil names selects all;
// count > 0 caps the result.
func (r row) slice(names []string, count int) []store.Column {
	var selected []string
	if names == nil {
		for name := range r {
			selected = append(selected, name)
		}
	} else {
		for _, name := range names {
			if _, ok := r[name]; ok {
				selected = append(selected, name)
			}
		}
	}
	sort.Strings(selected)
	if count > 0 && len(selected) > count {
		selected = selected[:count]
	}

	out := make([]store.Column, len(selected))
	for i, name := range selected {
		out[i] = store.Column{Name: name, Value: bytes.Clone(r[name])}
	}
	return out
}
