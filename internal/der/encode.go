package der

import (
	"io"

	"github.com/valyala/bytebufferpool"
)

var bufferPool bytebufferpool.Pool

// Encode returns the DER encoding of n. The returned slice is owned by the
// caller.
func Encode(n Node) []byte {
	buf := bufferPool.Get()
	defer bufferPool.Put(buf)
	n.encode(buf)
	out := make([]byte, buf.Len())
	copy(out, buf.B)
	return out
}

// Write encodes n to w.
func Write(w io.Writer, n Node) (int64, error) {
	buf := bufferPool.Get()
	defer bufferPool.Put(buf)
	n.encode(buf)
	return buf.WriteTo(w)
}

// headerLength returns the size of the tag and length octets for a
// content of the given length.
func headerLength(length int) int {
	if length < 0x80 {
		return 2
	}
	n := 1
	for v := length; v > 0; v >>= 8 {
		n++
	}
	return 1 + n
}

func writeHeader(buf *bytebufferpool.ByteBuffer, tag byte, length int) {
	buf.B = append(buf.B, tag)
	buf.B = appendLength(buf.B, length)
}

// appendLength appends the short form below 128 and otherwise the long
// form with the minimal number of length octets.
func appendLength(b []byte, length int) []byte {
	if length < 0x80 {
		return append(b, byte(length))
	}
	n := 0
	for v := length; v > 0; v >>= 8 {
		n++
	}
	b = append(b, 0x80|byte(n))
	for i := n - 1; i >= 0; i-- {
		b = append(b, byte(length>>(8*uint(i))))
	}
	return b
}
