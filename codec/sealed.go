package codec

import (
	"bytes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/chacha20poly1305"
)

// Sealed packs strings encrypted with XChaCha20-Poly1305. The layout is a
// 24-byte random nonce followed by the ciphertext and tag, so equal
// plaintexts encode differently and stored values cannot be compared.
type Sealed struct {
	aead cipher.AEAD
}

// NewSealed returns a Sealed codec for a 32-byte key.
func NewSealed(key []byte) (Sealed, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return Sealed{}, fmt.Errorf("codec: sealed key: %w", err)
	}
	return Sealed{aead: aead}, nil
}

func (Sealed) Kind() Kind   { return KindSealed }
func (Sealed) Name() string { return "sealed" }
func (Sealed) Width() int   { return 0 }

func (c Sealed) Encode(v any) ([]byte, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		if c.aead == nil || !utf8.ValidString(x) {
			return nil, unsupported(c, v)
		}
		nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(x)+c.aead.Overhead())
		if _, err := rand.Read(nonce); err != nil {
			return nil, fmt.Errorf("codec: sealed nonce: %w", err)
		}
		return c.aead.Seal(nonce, nonce, []byte(x), nil), nil
	default:
		return nil, unsupported(c, v)
	}
}

func (c Sealed) Decode(b []byte) (any, error) {
	if b == nil {
		return nil, nil
	}
	if c.aead == nil || len(b) < c.aead.NonceSize()+c.aead.Overhead() {
		return nil, malformed(c, b, nil)
	}
	n := c.aead.NonceSize()
	plain, err := c.aead.Open(nil, b[:n], b[n:], nil)
	if err != nil {
		return nil, malformed(c, b, err)
	}
	if !utf8.Valid(plain) {
		return nil, malformed(c, b, nil)
	}
	return string(plain), nil
}

func (Sealed) Compare(a, b []byte) int { return bytes.Compare(a, b) }
