package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jacentio/strata/model"
)

// Query describes a filtered, sorted page of instances. Queries are
// immutable: every builder method returns a new Query. The first builder
// error is kept and reported by Err and by Execute.
type Query struct {
	schema  *model.Schema
	preds   []model.Predicate
	sorts   []string
	offset  *int
	limit   *int
	columns []string
	err     error
}

// NewQuery starts an empty query over s.
func NewQuery(s *model.Schema) *Query {
	return &Query{schema: s}
}

func (q *Query) clone() *Query {
	c := *q
	c.preds = append([]model.Predicate(nil), q.preds...)
	c.sorts = append([]string(nil), q.sorts...)
	c.columns = append([]string(nil), q.columns...)
	return &c
}

func (q *Query) fail(err error) *Query {
	c := q.clone()
	if c.err == nil {
		c.err = err
	}
	return c
}

// Where adds the predicate "field op value". value goes through the
// attribute's validation and encoding.
func (q *Query) Where(field string, op model.Operator, value any) *Query {
	a, err := q.schema.Attr(field)
	if err != nil {
		return q.fail(err)
	}
	p, err := a.Compare(op, value)
	if err != nil {
		return q.fail(err)
	}
	return q.Filter(p)
}

// Filter adds predicates built with the attribute comparators.
func (q *Query) Filter(preds ...model.Predicate) *Query {
	for _, p := range preds {
		if _, err := q.schema.Attr(p.Field); err != nil {
			return q.fail(err)
		}
	}
	c := q.clone()
	c.preds = append(c.preds, preds...)
	return c
}

// Sort orders results by field, ascending, or descending when the name is
// prefixed with "-". A "+" prefix is accepted and ignored.
func (q *Query) Sort(field string) *Query {
	if _, err := q.schema.Attr(strings.TrimLeft(field, "+-")); err != nil {
		return q.fail(err)
	}
	c := q.clone()
	c.sorts = append(c.sorts, field)
	return c
}

// Offset skips the first n matches.
func (q *Query) Offset(n int) *Query {
	if n < 0 {
		return q.fail(fmt.Errorf("%w: negative offset %d", ErrUnsupportedQuery, n))
	}
	c := q.clone()
	c.offset = &n
	return c
}

// Limit returns at most n matches.
func (q *Query) Limit(n int) *Query {
	if n < 0 {
		return q.fail(fmt.Errorf("%w: negative limit %d", ErrUnsupportedQuery, n))
	}
	c := q.clone()
	c.limit = &n
	return c
}

// Columns restricts the fields loaded into result instances. Keys are
// always loaded.
func (q *Query) Columns(names ...string) *Query {
	for _, name := range names {
		if _, err := q.schema.Attr(name); err != nil {
			return q.fail(err)
		}
	}
	c := q.clone()
	c.columns = append(c.columns, names...)
	return c
}

// And combines two queries over the same schema. Predicates, sorts and
// columns are concatenated; offset and limit come from other when set there.
func (q *Query) And(other *Query) *Query {
	if other.schema != q.schema {
		return q.fail(fmt.Errorf("%w: cannot combine %s and %s queries", model.ErrSchema, q.schema.Name(), other.schema.Name()))
	}
	c := q.clone()
	c.err = errors.Join(q.err, other.err)
	c.preds = append(c.preds, other.preds...)
	c.sorts = append(c.sorts, other.sorts...)
	c.columns = append(c.columns, other.columns...)
	if other.offset != nil {
		c.offset = other.offset
	}
	if other.limit != nil {
		c.limit = other.limit
	}
	return c
}

// Schema returns the schema the query targets.
func (q *Query) Schema() *model.Schema { return q.schema }

// Err returns the first error recorded while building the query.
func (q *Query) Err() error { return q.err }

// Predicates returns a copy of the accumulated predicates.
func (q *Query) Predicates() []model.Predicate {
	return append([]model.Predicate(nil), q.preds...)
}

// Sorts returns a copy of the accumulated sort clauses.
func (q *Query) Sorts() []string {
	return append([]string(nil), q.sorts...)
}

func (q *Query) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "query %s", q.schema.Name())
	for i, p := range q.preds {
		if i == 0 {
			b.WriteString(" where ")
		} else {
			b.WriteString(" and ")
		}
		b.WriteString(p.String())
	}
	if len(q.sorts) > 0 {
		fmt.Fprintf(&b, " sort %s", strings.Join(q.sorts, ","))
	}
	if q.offset != nil {
		fmt.Fprintf(&b, " offset %d", *q.offset)
	}
	if q.limit != nil {
		fmt.Fprintf(&b, " limit %d", *q.limit)
	}
	return b.String()
}
