package codec

import (
	"bytes"
	"net/netip"
)

// IPAddr packs netip.Addr values in the string layout, as their canonical
// text form.
type IPAddr struct{}

func (IPAddr) Kind() Kind   { return KindIPAddr }
func (IPAddr) Name() string { return "ipaddr" }
func (IPAddr) Width() int   { return 0 }

func (c IPAddr) Encode(v any) ([]byte, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case netip.Addr:
		if !x.IsValid() {
			return nil, unsupported(c, v)
		}
		return []byte(x.String()), nil
	default:
		return nil, unsupported(c, v)
	}
}

func (c IPAddr) Decode(b []byte) (any, error) {
	if b == nil {
		return nil, nil
	}
	addr, err := netip.ParseAddr(string(b))
	if err != nil {
		return nil, malformed(c, b, err)
	}
	return addr, nil
}

func (IPAddr) Compare(a, b []byte) int { return bytes.Compare(a, b) }
