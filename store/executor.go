package store

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/jacentio/strata/codec"
	"github.com/jacentio/strata/model"
)

// clientFilter is a predicate evaluated after the index scan.
type clientFilter struct {
	attr *model.Attribute
	pred model.Predicate
}

// plan is a Query resolved against its schema.
type plan struct {
	exprs   []IndexExpression
	filters []clientFilter
	sort    *model.Attribute
	desc    bool
	offset  int
	limit   int
	scan    []string // columns read by the index scan
	fetch   []string // columns read for result instances

	// restricted is set when the query names its columns; keysOnly when
	// none of them is a value column.
	restricted bool
	keysOnly   bool
}

// planQuery resolves q. With indexed set, EQ/LT/LTE/GT/GTE predicates on
// non-key fields become index expressions and must target indexed
// attributes; everything else is filtered client-side. defaultSort names the
// field used when q has no sort clause.
func planQuery(q *Query, defaultLimit int, indexed bool, defaultSort *model.Attribute) (*plan, error) {
	s := q.schema
	p := &plan{
		sort:   defaultSort,
		limit:  defaultLimit,
		scan:   []string{},
		fetch:  s.ValueNames(),
		offset: 0,
	}
	if q.offset != nil {
		p.offset = *q.offset
	}
	if q.limit != nil {
		p.limit = *q.limit
	}

	switch len(q.sorts) {
	case 0:
	case 1:
		name := q.sorts[0]
		p.desc = strings.HasPrefix(name, "-")
		a, err := s.Attr(strings.TrimLeft(name, "+-"))
		if err != nil {
			return nil, err
		}
		p.sort = a
	default:
		return nil, fmt.Errorf("%w: %d sort clauses %v, at most one is allowed", ErrUnsupportedQuery, len(q.sorts), q.sorts)
	}
	if !p.sort.IsRowKey() && !p.sort.IsColumnKey() {
		p.scan = appendUnique(p.scan, p.sort.Name())
	}

	for _, pred := range q.preds {
		a, err := s.Attr(pred.Field)
		if err != nil {
			return nil, err
		}
		if indexed && pred.Op.Indexed() && !a.IsRowKey() {
			if !a.IsIndexed() {
				return nil, fmt.Errorf("%w: %s.%s is not indexed", ErrUnsupportedQuery, s.Name(), a.Name())
			}
			p.exprs = append(p.exprs, IndexExpression{Column: a.Name(), Op: pred.Op, Value: pred.Value})
			continue
		}
		p.filters = append(p.filters, clientFilter{attr: a, pred: pred})
		if !a.IsRowKey() && !a.IsColumnKey() {
			p.scan = appendUnique(p.scan, a.Name())
		}
	}

	if q.columns != nil {
		p.restricted = true
		p.fetch = []string{}
		for _, name := range q.columns {
			if a, _ := s.Lookup(name); !a.IsRowKey() && !a.IsColumnKey() {
				p.fetch = appendUnique(p.fetch, name)
			}
		}
		p.keysOnly = len(p.fetch) == 0
	}
	return p, nil
}

func appendUnique(names []string, name string) []string {
	if slices.Contains(names, name) {
		return names
	}
	return append(names, name)
}

// keep reports whether a row passes every client-side filter. value returns
// the encoded field of the row, or nil when absent.
func (p *plan) keep(value func(*model.Attribute) []byte) bool {
	for _, f := range p.filters {
		if !f.pred.Matches(f.attr.Codec(), value(f.attr)) {
			return false
		}
	}
	return true
}

// orderBy sorts rows by the plan's sort field. The sort is stable and nulls
// come first; descending order is the exact reverse of ascending.
func orderBy[T any](rows []T, sortAttr *model.Attribute, desc bool, value func(T) []byte) {
	c := sortAttr.Codec()
	sort.SliceStable(rows, func(i, j int) bool {
		return compareNullable(c, value(rows[i]), value(rows[j])) < 0
	})
	if desc {
		slices.Reverse(rows)
	}
}

func compareNullable(c codec.Codec, a, b []byte) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return c.Compare(a, b)
}

// window returns the bounds of [offset, offset+limit) clipped to n.
func window(n, offset, limit int) (lo, hi int) {
	lo = min(offset, n)
	if limit > n-lo {
		return lo, n
	}
	return lo, lo + limit
}

// scanned is one row of the index-scan phase.
type scanned struct {
	key  []byte
	cols map[string][]byte
}

func (r scanned) value(a *model.Attribute) []byte {
	if a.IsRowKey() {
		return r.key
	}
	return r.cols[a.Name()]
}

// Execute runs q in two phases. The index scan reads only the columns needed
// to filter and sort; client-side filters (NE, row-key predicates) and the
// sort are applied to that partial data, the page is cut, and only the rows
// of the page are fetched in full.
//
// Total counts the rows that pass every predicate, client-side ones
// included, before offset and limit apply.
func (s *RowStore) Execute(ctx context.Context, q *Query) (res *Result, err error) {
	if q.schema != s.schema {
		return nil, fmt.Errorf("%w: query over %s, store holds %s", ErrWrongSchema, q.schema.Name(), s.schema.Name())
	}
	if q.err != nil {
		return nil, q.err
	}
	p, err := planQuery(q, s.cfg.DefaultLimit, true, s.schema.RowKey())
	if err != nil {
		return nil, err
	}

	family := s.schema.Family()
	ctx, op := s.cfg.begin(ctx, family, "query", attribute.String("strata.query", q.String()))
	defer func() { op.end(err) }()

	rows, err := s.scan(ctx, p)
	if err != nil {
		return nil, err
	}
	s.cfg.Metrics.observeScan(family, len(rows))

	survivors := make([]scanned, 0, len(rows))
	for _, r := range rows {
		if p.keep(r.value) {
			survivors = append(survivors, r)
		}
	}
	orderBy(survivors, p.sort, p.desc, func(r scanned) []byte { return r.value(p.sort) })

	total := len(survivors)
	lo, hi := window(total, p.offset, p.limit)
	items, err := s.fetch(ctx, p, survivors[lo:hi])
	if err != nil {
		return nil, err
	}

	op.span.SetAttributes(
		attribute.Int("strata.scanned", len(rows)),
		attribute.Int("strata.total", total),
		attribute.Int("strata.returned", len(items)),
	)
	s.cfg.Logger.Debug("query executed",
		zap.Stringer("query", q),
		zap.Int("scanned", len(rows)),
		zap.Int("total", total),
		zap.Int("returned", len(items)),
	)
	return &Result{items: items, total: total}, nil
}

// scan pages through the index scan. A page that starts with the previous
// page's last key is treated as an inclusive restart and that row dropped.
func (s *RowStore) scan(ctx context.Context, p *plan) ([]scanned, error) {
	family := s.schema.Family()
	size := s.cfg.ScanPageSize

	var (
		out   []scanned
		start []byte
	)
	for {
		page, err := s.client.GetIndexedSlices(ctx, family, p.exprs, p.scan, start, size)
		if err != nil {
			return nil, storeErr("get_indexed_slices", err)
		}
		n := len(page)
		if start != nil && n > 0 && bytes.Equal(page[0].Key, start) {
			page = page[1:]
		}
		for _, ks := range page {
			r := scanned{key: ks.Key, cols: make(map[string][]byte, len(ks.Columns))}
			for _, c := range ks.Columns {
				r.cols[c.Name] = c.Value
			}
			out = append(out, r)
		}
		if size == 0 || n < size || len(page) == 0 {
			return out, nil
		}
		start = out[len(out)-1].key
	}
}

// fetch loads full instances for the page, in page order. Unless the query
// restricts its columns, rows removed between the scan and the fetch are
// dropped.
func (s *RowStore) fetch(ctx context.Context, p *plan, page []scanned) ([]*model.Instance, error) {
	if len(page) == 0 {
		return []*model.Instance{}, nil
	}
	keys := make([][]byte, len(page))
	for i, r := range page {
		keys[i] = r.key
	}

	var rows map[string][]Column
	if !p.keysOnly {
		var err error
		rows, err = s.client.MultigetSlice(ctx, s.schema.Family(), keys, p.fetch, 0)
		if err != nil {
			return nil, storeErr("multiget_slice", err)
		}
	}

	items := make([]*model.Instance, 0, len(keys))
	for _, k := range keys {
		cols, ok := rows[string(k)]
		if !ok && !p.restricted {
			s.cfg.Logger.Debug("row vanished between scan and fetch", zap.Binary("key", k))
			continue
		}
		inst, err := DecodeRow(s.schema, k, cols)
		if err != nil {
			return nil, err
		}
		items = append(items, inst)
	}
	return items, nil
}
