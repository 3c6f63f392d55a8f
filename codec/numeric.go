package codec

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Int32 packs int32 values.
type Int32 struct{}

func (Int32) Kind() Kind   { return KindInt32 }
func (Int32) Name() string { return "int32" }
func (Int32) Width() int   { return 4 }

func (c Int32) Encode(v any) ([]byte, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case int32:
		return putInt32(x), nil
	default:
		return nil, unsupported(c, v)
	}
}

func (c Int32) Decode(b []byte) (any, error) {
	if b == nil {
		return nil, nil
	}
	if len(b) != 4 {
		return nil, malformed(c, b, nil)
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

func (Int32) Compare(a, b []byte) int { return compareFixed(a, b, 4) }

// Int64 packs int64 values.
type Int64 struct{}

func (Int64) Kind() Kind   { return KindInt64 }
func (Int64) Name() string { return "int64" }
func (Int64) Width() int   { return 8 }

func (c Int64) Encode(v any) ([]byte, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case int64:
		return putInt64(x), nil
	default:
		return nil, unsupported(c, v)
	}
}

func (c Int64) Decode(b []byte) (any, error) {
	if b == nil {
		return nil, nil
	}
	if len(b) != 8 {
		return nil, malformed(c, b, nil)
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

func (Int64) Compare(a, b []byte) int { return compareFixed(a, b, 8) }

// Bool packs booleans using the int32 layout.
type Bool struct{}

func (Bool) Kind() Kind   { return KindBool }
func (Bool) Name() string { return "bool" }
func (Bool) Width() int   { return 4 }

func (c Bool) Encode(v any) ([]byte, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool:
		if x {
			return putInt32(1), nil
		}
		return putInt32(0), nil
	default:
		return nil, unsupported(c, v)
	}
}

func (c Bool) Decode(b []byte) (any, error) {
	if b == nil {
		return nil, nil
	}
	if len(b) != 4 {
		return nil, malformed(c, b, nil)
	}
	return binary.BigEndian.Uint32(b) != 0, nil
}

func (Bool) Compare(a, b []byte) int { return compareFixed(a, b, 4) }

// Decimal packs decimal.Decimal values as round(value * 10^Places) in the
// int64 layout. Digits beyond Places are rounded away.
type Decimal struct {
	Places int32
}

func (Decimal) Kind() Kind   { return KindDecimal }
func (Decimal) Name() string { return "decimal" }
func (Decimal) Width() int   { return 8 }

var (
	maxScaled = decimal.New(math.MaxInt64, 0)
	minScaled = decimal.New(math.MinInt64, 0)
)

func (c Decimal) Encode(v any) ([]byte, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case decimal.Decimal:
		scaled := x.Mul(decimal.New(1, c.Places)).Round(0)
		if scaled.Cmp(maxScaled) > 0 || scaled.Cmp(minScaled) < 0 {
			return nil, unsupported(c, v)
		}
		return putInt64(scaled.IntPart()), nil
	default:
		return nil, unsupported(c, v)
	}
}

func (c Decimal) Decode(b []byte) (any, error) {
	if b == nil {
		return nil, nil
	}
	if len(b) != 8 {
		return nil, malformed(c, b, nil)
	}
	return decimal.New(int64(binary.BigEndian.Uint64(b)), -c.Places), nil
}

func (Decimal) Compare(a, b []byte) int { return compareFixed(a, b, 8) }

// Timestamp packs time.Time values as whole seconds since the Unix epoch.
// Decoded values are in UTC; sub-second precision is not kept.
type Timestamp struct{}

func (Timestamp) Kind() Kind   { return KindTimestamp }
func (Timestamp) Name() string { return "timestamp" }
func (Timestamp) Width() int   { return 8 }

func (c Timestamp) Encode(v any) ([]byte, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return putInt64(x.Unix()), nil
	default:
		return nil, unsupported(c, v)
	}
}

func (c Timestamp) Decode(b []byte) (any, error) {
	if b == nil {
		return nil, nil
	}
	if len(b) != 8 {
		return nil, malformed(c, b, nil)
	}
	return time.Unix(int64(binary.BigEndian.Uint64(b)), 0).UTC(), nil
}

func (Timestamp) Compare(a, b []byte) int { return compareFixed(a, b, 8) }

func putInt32(v int32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(v))
	return b
}

func putInt64(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}
