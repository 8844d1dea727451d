package der

import (
	"fmt"
	"math/big"
)

var bigOne = big.NewInt(1)

// Integer is an INTEGER in two's-complement big-endian form.
type Integer struct{ primitive }

// NewInteger encodes v in minimal two's-complement form.
func NewInteger(v *big.Int) *Integer {
	return &Integer{primitive{TagInteger, integerBytes(v)}}
}

// NewInt64 encodes v in minimal two's-complement form.
func NewInt64(v int64) *Integer {
	return NewInteger(big.NewInt(v))
}

func integerBytes(v *big.Int) []byte {
	switch v.Sign() {
	case 0:
		return []byte{0x00}
	case 1:
		b := v.Bytes()
		if b[0]&0x80 != 0 {
			b = append([]byte{0x00}, b...)
		}
		return b
	default:
		// -v-1 inverted is the two's-complement magnitude of v
		m := new(big.Int).Neg(v)
		m.Sub(m, bigOne)
		b := m.Bytes()
		for i := range b {
			b[i] ^= 0xFF
		}
		if len(b) == 0 || b[0]&0x80 == 0 {
			b = append([]byte{0xFF}, b...)
		}
		return b
	}
}

// BigInt returns the value as an arbitrary-precision integer.
func (i *Integer) BigInt() *big.Int {
	v := new(big.Int).SetBytes(i.content)
	if i.content[0]&0x80 != 0 {
		v.Sub(v, new(big.Int).Lsh(bigOne, uint(len(i.content))*8))
	}
	return v
}

// Int64 returns the value when it fits in 64 bits.
func (i *Integer) Int64() (int64, error) {
	if len(i.content) > 8 {
		return 0, Unsupported("integer of %d bytes does not fit in 64 bits", len(i.content))
	}
	v := int64(int8(i.content[0]))
	for _, b := range i.content[1:] {
		v = v<<8 | int64(b)
	}
	return v, nil
}

// Sign returns -1, 0 or +1.
func (i *Integer) Sign() int {
	if i.content[0]&0x80 != 0 {
		return -1
	}
	for _, b := range i.content {
		if b != 0 {
			return 1
		}
	}
	return 0
}

func parseInteger(tag byte, content []byte, _ int) (Node, error) {
	if len(content) == 0 {
		return nil, malformed("empty INTEGER")
	}
	return &Integer{primitive{tag, content}}, nil
}

func (i *Integer) String() string {
	if len(i.content) > 8 {
		return fmt.Sprintf("0x%x", i.content)
	}
	return i.BigInt().String()
}
