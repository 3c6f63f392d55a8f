package store

import (
	"sort"

	"github.com/jacentio/strata/model"
)

// DecodeRow builds a loaded instance of a row-keyed schema from the columns
// of one row. Columns the schema does not declare are skipped.
func DecodeRow(s *model.Schema, rowKey []byte, cols []Column) (*model.Instance, error) {
	inst := s.Loaded()
	if err := inst.LoadWire(s.RowKey().Name(), rowKey); err != nil {
		return nil, err
	}
	for _, c := range cols {
		a, ok := s.Lookup(c.Name)
		if !ok || a.IsRowKey() {
			continue
		}
		if err := inst.LoadWire(c.Name, c.Value); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

// DecodeCells splits the columns of one physical row of a column-keyed
// schema into instances, one per column key, ordered by column key.
func DecodeCells(s *model.Schema, rowKey []byte, cols []Column) ([]*model.Instance, error) {
	ck := s.ColumnKey()
	width := ck.Codec().Width()

	byKey := make(map[string]*model.Instance)
	var keys []string
	for _, c := range cols {
		colKey, field, err := UnpackColumnName(c.Name, width)
		if err != nil {
			return nil, err
		}
		a, ok := s.Lookup(field)
		if !ok || a.IsRowKey() || a.IsColumnKey() {
			continue
		}
		inst, ok := byKey[string(colKey)]
		if !ok {
			inst = s.Loaded()
			if err := inst.LoadWire(s.RowKey().Name(), rowKey); err != nil {
				return nil, err
			}
			if err := inst.LoadWire(ck.Name(), colKey); err != nil {
				return nil, err
			}
			byKey[string(colKey)] = inst
			keys = append(keys, string(colKey))
		}
		if err := inst.LoadWire(field, c.Value); err != nil {
			return nil, err
		}
	}

	sort.Slice(keys, func(i, j int) bool {
		return ck.Codec().Compare([]byte(keys[i]), []byte(keys[j])) < 0
	})
	out := make([]*model.Instance, len(keys))
	for i, k := range keys {
		out[i] = byKey[k]
	}
	return out, nil
}
