package model

import (
	"fmt"

	"github.com/jacentio/strata/codec"
)

// Operator is a comparison used in a query predicate.
type Operator uint8

const (
	EQ Operator = iota
	LT
	LTE
	GT
	GTE
	// NE cannot be answered by the secondary index and is applied client-side.
	NE
)

func (o Operator) String() string {
	switch o {
	case EQ:
		return "EQ"
	case LT:
		return "LT"
	case LTE:
		return "LTE"
	case GT:
		return "GT"
	case GTE:
		return "GTE"
	case NE:
		return "NE"
	default:
		return fmt.Sprintf("Operator(%d)", uint8(o))
	}
}

// Indexed reports whether the store's secondary index can evaluate the operator.
func (o Operator) Indexed() bool { return o <= GTE }

// Predicate compares one field against a wire-encoded value.
type Predicate struct {
	Field string
	Op    Operator
	Value []byte
}

// Matches evaluates the predicate against an encoded column value using the
// column's ordering. A missing value (nil) never satisfies an indexed
// operator and always satisfies NE.
func (p Predicate) Matches(c codec.Codec, value []byte) bool {
	if value == nil {
		return p.Op == NE
	}
	cmp := c.Compare(value, p.Value)
	switch p.Op {
	case EQ:
		return cmp == 0
	case LT:
		return cmp < 0
	case LTE:
		return cmp <= 0
	case GT:
		return cmp > 0
	case GTE:
		return cmp >= 0
	case NE:
		return cmp != 0
	default:
		return false
	}
}

func (p Predicate) String() string {
	return fmt.Sprintf("%s %s %x", p.Field, p.Op, p.Value)
}
