// Package codec packs typed values into the fixed binary layouts kept in
// column values, and unpacks them again.
//
// Layouts are a compatibility boundary: rows written by one version must decode
// with the next, so none of the encodings below may change.
//
//   - int32, bool: 4 bytes, big-endian two's complement (bool is 0 or 1)
//   - int64: 8 bytes, big-endian two's complement
//   - string, bytes: raw bytes, no length prefix
//   - json: UTF-8 JSON text
//   - decimal: int64 layout holding round(value * 10^places)
//   - uuid: 16 raw bytes
//   - timestamp: int64 layout holding whole seconds since the Unix epoch
//   - ipaddr: string layout holding the canonical address text
//   - sealed: 24-byte nonce followed by XChaCha20-Poly1305 ciphertext
//
// A nil value encodes to a nil slice, and a nil slice decodes to nil.
package codec

import (
	"bytes"
	"errors"
	"fmt"
)

// Kind identifies a wire layout.
type Kind uint8

const (
	KindBytes Kind = iota
	KindString
	KindInt32
	KindInt64
	KindBool
	KindJSON
	KindDecimal
	KindUUID
	KindTimestamp
	KindIPAddr
	KindSealed
)

var kindNames = [...]string{
	KindBytes:     "bytes",
	KindString:    "string",
	KindInt32:     "int32",
	KindInt64:     "int64",
	KindBool:      "bool",
	KindJSON:      "json",
	KindDecimal:   "decimal",
	KindUUID:      "uuid",
	KindTimestamp: "timestamp",
	KindIPAddr:    "ipaddr",
	KindSealed:    "sealed",
}

// String returns the stable name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

var (
	// ErrUnsupportedValue is returned when Encode receives a Go type the codec does not pack.
	ErrUnsupportedValue = errors.New("codec: unsupported value")

	// ErrMalformed is returned when Decode receives bytes that do not fit the layout.
	ErrMalformed = errors.New("codec: malformed value")
)

// Codec converts one wire-representable Go type to and from bytes.
// Implementations are immutable and safe for concurrent use.
type Codec interface {
	Kind() Kind

	// Name returns the stable name of the layout.
	Name() string

	// Width returns the fixed encoded size in bytes, or 0 for variable-width layouts.
	Width() int

	Encode(v any) ([]byte, error)
	Decode(b []byte) (any, error)

	// Compare orders two encoded values the way the store's index orders them.
	Compare(a, b []byte) int
}

func unsupported(c Codec, v any) error {
	return fmt.Errorf("%w: %s cannot encode %T", ErrUnsupportedValue, c.Name(), v)
}

func malformed(c Codec, b []byte, cause error) error {
	if cause != nil {
		return fmt.Errorf("%w: %s (%d bytes): %w", ErrMalformed, c.Name(), len(b), cause)
	}
	return fmt.Errorf("%w: %s (%d bytes)", ErrMalformed, c.Name(), len(b))
}

// compareFixed orders signed big-endian values of equal width, falling back
// to byte order when either side has the wrong length.
func compareFixed(a, b []byte, width int) int {
	if len(a) != width || len(b) != width {
		return bytes.Compare(a, b)
	}
	// Flipping the sign bit turns two's complement order into unsigned byte order.
	if a[0]^0x80 != b[0]^0x80 {
		if a[0]^0x80 < b[0]^0x80 {
			return -1
		}
		return 1
	}
	return bytes.Compare(a[1:], b[1:])
}
