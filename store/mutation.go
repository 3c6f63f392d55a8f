package store

import (
	"fmt"

	"github.com/jacentio/strata/codec"
	"github.com/jacentio/strata/model"
)

// PackColumnName joins a fixed-width column key and a field name into the
// physical column name used by column-keyed models.
func PackColumnName(colKey []byte, field string) string {
	return string(colKey) + field
}

// UnpackColumnName splits a physical column name at the column-key width.
func UnpackColumnName(name string, width int) (colKey []byte, field string, err error) {
	if len(name) < width {
		return nil, "", fmt.Errorf("%w: column name %x shorter than key width %d", codec.ErrMalformed, name, width)
	}
	return []byte(name[:width]), name[width:], nil
}

// RowMutation builds the mutation map for a row-keyed instance: one row
// holding every dirty non-key field. Null fields become deletions.
func RowMutation(inst *model.Instance) (MutationMap, error) {
	s := inst.Schema()
	key, err := requireKey(inst, s.RowKey())
	if err != nil {
		return nil, err
	}
	cols, err := dirtyColumns(inst, func(field string) string { return field })
	if err != nil {
		return nil, err
	}
	m := MutationMap{}
	m.put(key, s.Family(), cols)
	return m, nil
}

// ColumnMutation builds the mutation map for a column-keyed instance: the
// dirty non-key fields of one cell, each stored under its packed name.
func ColumnMutation(inst *model.Instance) (MutationMap, error) {
	s := inst.Schema()
	rowKey, err := requireKey(inst, s.RowKey())
	if err != nil {
		return nil, err
	}
	colKey, err := requireKey(inst, s.ColumnKey())
	if err != nil {
		return nil, err
	}
	cols, err := dirtyColumns(inst, func(field string) string { return PackColumnName(colKey, field) })
	if err != nil {
		return nil, err
	}
	m := MutationMap{}
	m.put(rowKey, s.Family(), cols)
	return m, nil
}

func requireKey(inst *model.Instance, a *model.Attribute) ([]byte, error) {
	b, err := inst.WireValue(a.Name())
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("%w: %s.%s is null", ErrMissingKey, inst.Schema().Name(), a.Name())
	}
	return b, nil
}

func dirtyColumns(inst *model.Instance, column func(field string) string) (map[string][]byte, error) {
	s := inst.Schema()
	cols := make(map[string][]byte)
	for _, name := range inst.Dirty() {
		a, _ := s.Lookup(name)
		if a.IsRowKey() || a.IsColumnKey() {
			continue
		}
		b, err := inst.WireValue(name)
		if err != nil {
			return nil, err
		}
		cols[column(name)] = b
	}
	return cols, nil
}

func (m MutationMap) put(rowKey []byte, family string, cols map[string][]byte) {
	if len(cols) == 0 {
		return
	}
	fams, ok := m[string(rowKey)]
	if !ok {
		fams = make(map[string]map[string][]byte)
		m[string(rowKey)] = fams
	}
	dst, ok := fams[family]
	if !ok {
		dst = make(map[string][]byte, len(cols))
		fams[family] = dst
	}
	for name, v := range cols {
		dst[name] = v
	}
}

// Merge copies every mutation of other into m. Later values win.
func (m MutationMap) Merge(other MutationMap) {
	for row, fams := range other {
		for family, cols := range fams {
			m.put([]byte(row), family, cols)
		}
	}
}

// Len returns the number of column mutations.
func (m MutationMap) Len() int {
	n := 0
	for _, fams := range m {
		for _, cols := range fams {
			n += len(cols)
		}
	}
	return n
}
