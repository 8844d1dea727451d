package der

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/remiblancher/derpki/internal/oid"
)

// ObjectIdentifier is an OBJECT IDENTIFIER. The dotted form is computed
// once, when the node is built or parsed.
type ObjectIdentifier struct {
	primitive
	dotted string
}

// NewOID encodes a dotted OID such as "1.2.840.113549.1.1.1".
//
// The first two arcs share one subidentifier, first*40+second, so the
// second arc must be below 40 for the value to decode back unchanged.
func NewOID(dotted string) (*ObjectIdentifier, error) {
	content, err := encodeOID(dotted)
	if err != nil {
		return nil, err
	}
	canonical, err := decodeOID(content)
	if err != nil {
		return nil, err
	}
	return &ObjectIdentifier{primitive{TagOID, content}, canonical}, nil
}

// MustOID is like NewOID but panics on a malformed OID. Use it for
// compiled-in constants only.
func MustOID(dotted string) *ObjectIdentifier {
	o, err := NewOID(dotted)
	if err != nil {
		panic(err)
	}
	return o
}

// String returns the dotted form.
func (o *ObjectIdentifier) String() string { return o.dotted }

// Name returns the registered name, or the dotted form when unknown.
func (o *ObjectIdentifier) Name() string { return oid.Name(o.dotted) }

// Is reports whether the OID equals dotted.
func (o *ObjectIdentifier) Is(dotted string) bool { return o.dotted == dotted }

func encodeOID(dotted string) ([]byte, error) {
	parts := strings.Split(dotted, ".")
	if len(parts) < 2 {
		return nil, fmt.Errorf("invalid OID %q: at least two arcs required", dotted)
	}
	arcs := make([]uint64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid OID %q: arc %q: %w", dotted, p, err)
		}
		arcs[i] = v
	}
	if arcs[1] >= 40 {
		return nil, fmt.Errorf("invalid OID %q: second arc must be below 40", dotted)
	}
	if arcs[0] > (^uint64(0)-39)/40 {
		return nil, fmt.Errorf("invalid OID %q: first arc too large", dotted)
	}

	out := appendBase128(nil, arcs[0]*40+arcs[1])
	for _, a := range arcs[2:] {
		out = appendBase128(out, a)
	}
	return out, nil
}

func appendBase128(b []byte, v uint64) []byte {
	n := 1
	for t := v >> 7; t > 0; t >>= 7 {
		n++
	}
	for i := n - 1; i >= 0; i-- {
		c := byte(v>>(7*uint(i))) & 0x7F
		if i != 0 {
			c |= 0x80
		}
		b = append(b, c)
	}
	return b
}

func decodeOID(content []byte) (string, error) {
	if len(content) == 0 {
		return "", malformed("empty OBJECT IDENTIFIER")
	}
	var sb strings.Builder
	first := true
	for i := 0; i < len(content); {
		if content[i] == 0x80 {
			return "", malformed("non-minimal OID subidentifier at byte %d", i)
		}
		start := i
		for i < len(content) && content[i]&0x80 != 0 {
			i++
		}
		if i == len(content) {
			return "", malformed("truncated OID subidentifier")
		}
		i++
		arc := content[start:i]

		if first {
			v, ok := smallArc(arc)
			if !ok {
				return "", Unsupported("OID first subidentifier too large")
			}
			fmt.Fprintf(&sb, "%d.%d", v/40, v%40)
			first = false
			continue
		}
		sb.WriteByte('.')
		if v, ok := smallArc(arc); ok {
			sb.WriteString(strconv.FormatUint(v, 10))
		} else {
			sb.WriteString(bigArc(arc).String())
		}
	}
	return sb.String(), nil
}

// smallArc decodes a base-128 subidentifier that fits in 63 bits.
func smallArc(arc []byte) (uint64, bool) {
	if len(arc) > 9 {
		return 0, false
	}
	var v uint64
	for _, c := range arc {
		v = v<<7 | uint64(c&0x7F)
	}
	return v, true
}

func bigArc(arc []byte) *big.Int {
	v := new(big.Int)
	for _, c := range arc {
		v.Lsh(v, 7)
		v.Or(v, big.NewInt(int64(c&0x7F)))
	}
	return v
}

func parseOID(tag byte, content []byte, _ int) (Node, error) {
	dotted, err := decodeOID(content)
	if err != nil {
		return nil, err
	}
	return &ObjectIdentifier{primitive{tag, content}, dotted}, nil
}
