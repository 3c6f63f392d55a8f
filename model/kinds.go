package model

import (
	"fmt"
	"math"
	"net"
	"net/netip"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/shopspring/decimal"

	"github.com/jacentio/strata/codec"
)

var (
	typeInt32   = reflect.TypeOf(int32(0))
	typeInt64   = reflect.TypeOf(int64(0))
	typeBool    = reflect.TypeOf(false)
	typeString  = reflect.TypeOf("")
	typeBytes   = reflect.TypeOf([]byte(nil))
	typeDecimal = reflect.TypeOf(decimal.Decimal{})
	typeUUID    = reflect.TypeOf(uuid.UUID{})
	typeTime    = reflect.TypeOf(time.Time{})
	typeAddr    = reflect.TypeOf(netip.Addr{})
)

var emailPattern = regexp.MustCompile(`(?i)^[-a-z0-9_.+]+@(?:[-a-z0-9]+\.)+[a-z]{2,}$`)

// Int32 declares a signed 32-bit integer attribute.
func Int32(opts ...Option) *Attribute {
	return newAttribute(codec.Int32{}, typeInt32, coerceInt32, opts)
}

// Int64 declares a signed 64-bit integer attribute.
func Int64(opts ...Option) *Attribute {
	return newAttribute(codec.Int64{}, typeInt64, coerceInt64, opts)
}

// Bool declares a boolean attribute, stored in the int32 layout.
func Bool(opts ...Option) *Attribute {
	return newAttribute(codec.Bool{}, typeBool, coerceBool, opts)
}

// String declares a UTF-8 string attribute.
func String(opts ...Option) *Attribute {
	return newAttribute(codec.String{}, typeString, coerceString, opts)
}

// Email declares a string attribute that must look like an e-mail address.
func Email(opts ...Option) *Attribute {
	return String(append([]Option{Pattern(emailPattern)}, opts...)...)
}

// Bytes declares an opaque byte-string attribute.
func Bytes(opts ...Option) *Attribute {
	return newAttribute(codec.Bytes{}, typeBytes, coerceBytes, opts)
}

// JSON declares an attribute holding any JSON-serializable tree. It has no
// domain type check, but values that cannot be serialized are rejected.
func JSON(opts ...Option) *Attribute {
	return newAttribute(codec.JSON{}, nil, coerceJSON, opts)
}

// IPAddress declares an IPv4 or IPv6 address attribute, stored as its
// canonical text.
func IPAddress(opts ...Option) *Attribute {
	return newAttribute(codec.IPAddr{}, typeAddr, coerceAddr, opts)
}

// PhoneNumber declares a phone number attribute. Numbers without a country
// code are read as local to region (e.g. "US") and stored in E.164 form.
func PhoneNumber(region string, opts ...Option) *Attribute {
	coerce := func(a *Attribute, v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, mismatch(a, v)
		}
		num, err := phonenumbers.Parse(s, region)
		if err != nil {
			return nil, fieldErrorCause(a.name, ErrTypeMismatch, err)
		}
		if !phonenumbers.IsValidNumber(num) {
			return nil, fieldError(a.name, ErrTypeMismatch, fmt.Sprintf("%q is not a valid phone number", s))
		}
		return phonenumbers.Format(num, phonenumbers.E164), nil
	}
	return newAttribute(codec.String{}, typeString, coerce, opts)
}

// EncryptedString declares a string attribute sealed with c before it is
// stored. Sealed values cannot be indexed or compared.
func EncryptedString(c codec.Sealed, opts ...Option) *Attribute {
	return newAttribute(c, typeString, coerceString, opts)
}

// Decimal declares a fixed-point attribute stored as round(value * 10^places).
// Values with more than maxDigits significant digits (after rounding to
// places) are rejected; maxDigits <= 0 disables the check.
func Decimal(maxDigits, places int32, opts ...Option) *Attribute {
	coerce := func(a *Attribute, v any) (any, error) {
		d, err := coerceDecimal(a, v)
		if err != nil {
			return nil, err
		}
		if maxDigits > 0 && decimalDigits(d, places) > int(maxDigits) {
			return nil, fieldError(a.name, ErrTypeMismatch, fmt.Sprintf("more than %d digits", maxDigits))
		}
		return d, nil
	}
	return newAttribute(codec.Decimal{Places: places}, typeDecimal, coerce, opts)
}

// UUID declares a UUID attribute stored as 16 raw bytes.
func UUID(opts ...Option) *Attribute {
	return newAttribute(codec.UUID{}, typeUUID, coerceUUID, opts)
}

// ForeignKey declares a UUID reference to a row of the target model. It is
// indexed, required and write-once.
func ForeignKey(target string, opts ...Option) *Attribute {
	a := UUID(append([]Option{With(Indexed | Required | WriteOnce)}, opts...)...)
	a.ref = target
	return a
}

// Timestamp declares a time attribute stored as whole seconds since the
// epoch. Values are normalized to UTC with sub-second precision dropped.
func Timestamp(opts ...Option) *Attribute {
	return newAttribute(codec.Timestamp{}, typeTime, coerceTime, opts)
}

func mismatch(a *Attribute, v any) error {
	return fieldError(a.name, ErrTypeMismatch, fmt.Sprintf("cannot use %T as %s", v, a.domainName()))
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case float32:
		return toInt64(float64(x))
	case float64:
		if x != math.Trunc(x) || x > math.MaxInt64 || x < math.MinInt64 {
			return 0, false
		}
		return int64(x), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func coerceInt32(a *Attribute, v any) (any, error) {
	n, ok := toInt64(v)
	if !ok || n > math.MaxInt32 || n < math.MinInt32 {
		return nil, mismatch(a, v)
	}
	return int32(n), nil
}

func coerceInt64(a *Attribute, v any) (any, error) {
	n, ok := toInt64(v)
	if !ok {
		return nil, mismatch(a, v)
	}
	return n, nil
}

func coerceBool(a *Attribute, v any) (any, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(x)
		if err != nil {
			return nil, mismatch(a, v)
		}
		return b, nil
	}
	if n, ok := toInt64(v); ok {
		return n != 0, nil
	}
	return nil, mismatch(a, v)
}

func coerceString(a *Attribute, v any) (any, error) {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case []byte:
		s = string(x)
	case fmt.Stringer:
		s = x.String()
	default:
		return nil, mismatch(a, v)
	}
	if !utf8.ValidString(s) {
		return nil, fieldError(a.name, ErrTypeMismatch, "invalid UTF-8")
	}
	if a.maxLength > 0 && utf8.RuneCountInString(s) > a.maxLength {
		return nil, fieldError(a.name, ErrTypeMismatch, fmt.Sprintf("longer than %d characters", a.maxLength))
	}
	if a.pattern != nil && !a.pattern.MatchString(s) {
		return nil, fieldError(a.name, ErrTypeMismatch, fmt.Sprintf("%q does not match %s", s, a.pattern))
	}
	return s, nil
}

func coerceBytes(a *Attribute, v any) (any, error) {
	switch x := v.(type) {
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	default:
		return nil, mismatch(a, v)
	}
}

func coerceDecimal(a *Attribute, v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		if err != nil {
			return decimal.Decimal{}, fieldErrorCause(a.name, ErrTypeMismatch, err)
		}
		return d, nil
	case float32:
		return decimal.NewFromFloat32(x), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Decimal{}, mismatch(a, v)
		}
		return decimal.NewFromFloat(x), nil
	}
	if n, ok := toInt64(v); ok {
		return decimal.New(n, 0), nil
	}
	return decimal.Decimal{}, mismatch(a, v)
}

// decimalDigits counts significant digits of d once rounded to places.
func decimalDigits(d decimal.Decimal, places int32) int {
	s := d.Round(places).Abs().StringFixed(places)
	s = strings.Replace(s, ".", "", 1)
	s = strings.TrimLeft(s, "0")
	if s == "" {
		return 1
	}
	return len(s)
}

func coerceJSON(a *Attribute, v any) (any, error) {
	if _, err := gojson.Marshal(v); err != nil {
		return nil, fieldErrorCause(a.name, ErrTypeMismatch, err)
	}
	return v, nil
}

func coerceAddr(a *Attribute, v any) (any, error) {
	switch x := v.(type) {
	case netip.Addr:
		if !x.IsValid() {
			return nil, mismatch(a, v)
		}
		return x, nil
	case net.IP:
		addr, ok := netip.AddrFromSlice(x)
		if !ok {
			return nil, mismatch(a, v)
		}
		return addr.Unmap(), nil
	case string:
		addr, err := netip.ParseAddr(strings.TrimSpace(x))
		if err != nil {
			return nil, fieldErrorCause(a.name, ErrTypeMismatch, err)
		}
		return addr, nil
	default:
		return nil, mismatch(a, v)
	}
}

func coerceUUID(a *Attribute, v any) (any, error) {
	switch x := v.(type) {
	case uuid.UUID:
		return x, nil
	case [16]byte:
		return uuid.UUID(x), nil
	case string:
		u, err := uuid.Parse(x)
		if err != nil {
			return nil, fieldErrorCause(a.name, ErrTypeMismatch, err)
		}
		return u, nil
	case []byte:
		u, err := uuid.FromBytes(x)
		if err != nil {
			return nil, fieldErrorCause(a.name, ErrTypeMismatch, err)
		}
		return u, nil
	default:
		return nil, mismatch(a, v)
	}
}

func coerceTime(a *Attribute, v any) (any, error) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Truncate(time.Second), nil
	case string:
		t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(x))
		if err != nil {
			return nil, fieldErrorCause(a.name, ErrTypeMismatch, err)
		}
		return t.UTC().Truncate(time.Second), nil
	}
	if n, ok := toInt64(v); ok {
		return time.Unix(n, 0).UTC(), nil
	}
	return nil, mismatch(a, v)
}
