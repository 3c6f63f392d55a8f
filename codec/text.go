package codec

import (
	"bytes"
	"unicode/utf8"

	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// String packs UTF-8 strings as their raw bytes.
type String struct{}

func (String) Kind() Kind   { return KindString }
func (String) Name() string { return "string" }
func (String) Width() int   { return 0 }

func (c String) Encode(v any) ([]byte, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		if !utf8.ValidString(x) {
			return nil, unsupported(c, v)
		}
		// Empty is a value, nil is null.
		return append([]byte{}, x...), nil
	default:
		return nil, unsupported(c, v)
	}
}

func (c String) Decode(b []byte) (any, error) {
	if b == nil {
		return nil, nil
	}
	if !utf8.Valid(b) {
		return nil, malformed(c, b, nil)
	}
	return string(b), nil
}

func (String) Compare(a, b []byte) int { return bytes.Compare(a, b) }

// Bytes passes opaque byte slices through unchanged.
type Bytes struct{}

func (Bytes) Kind() Kind   { return KindBytes }
func (Bytes) Name() string { return "bytes" }
func (Bytes) Width() int   { return 0 }

func (c Bytes) Encode(v any) ([]byte, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		if x == nil {
			return nil, nil
		}
		return append([]byte{}, x...), nil
	default:
		return nil, unsupported(c, v)
	}
}

func (Bytes) Decode(b []byte) (any, error) {
	if b == nil {
		return nil, nil
	}
	return append([]byte{}, b...), nil
}

func (Bytes) Compare(a, b []byte) int { return bytes.Compare(a, b) }

// JSON packs any tree of primitives as JSON text. Numbers decode as float64.
type JSON struct{}

func (JSON) Kind() Kind   { return KindJSON }
func (JSON) Name() string { return "json" }
func (JSON) Width() int   { return 0 }

func (c JSON) Encode(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, err := gojson.Marshal(v)
	if err != nil {
		return nil, unsupported(c, v)
	}
	return b, nil
}

func (c JSON) Decode(b []byte) (any, error) {
	if b == nil {
		return nil, nil
	}
	var out any
	if err := gojson.Unmarshal(b, &out); err != nil {
		return nil, malformed(c, b, err)
	}
	return out, nil
}

func (JSON) Compare(a, b []byte) int { return bytes.Compare(a, b) }

// UUID packs uuid.UUID values as their 16 raw bytes.
type UUID struct{}

func (UUID) Kind() Kind   { return KindUUID }
func (UUID) Name() string { return "uuid" }
func (UUID) Width() int   { return 16 }

func (c UUID) Encode(v any) ([]byte, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case uuid.UUID:
		return append([]byte{}, x[:]...), nil
	default:
		return nil, unsupported(c, v)
	}
}

func (c UUID) Decode(b []byte) (any, error) {
	if b == nil {
		return nil, nil
	}
	u, err := uuid.FromBytes(b)
	if err != nil {
		return nil, malformed(c, b, err)
	}
	return u, nil
}

func (UUID) Compare(a, b []byte) int { return bytes.Compare(a, b) }
