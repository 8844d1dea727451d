package der

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// BitString is a BIT STRING. The first content octet counts the unused
// bits in the final octet.
type BitString struct{ primitive }

// NewBitString encodes data with the given number of unused trailing bits.
func NewBitString(data []byte, unused int) (*BitString, error) {
	if unused < 0 || unused > 7 {
		return nil, fmt.Errorf("invalid BIT STRING: %d unused bits", unused)
	}
	if len(data) == 0 && unused != 0 {
		return nil, fmt.Errorf("invalid BIT STRING: unused bits without data")
	}
	content := make([]byte, 1+len(data))
	content[0] = byte(unused)
	copy(content[1:], data)
	if len(data) > 0 {
		content[len(content)-1] &^= byte(1<<uint(unused)) - 1
	}
	return &BitString{primitive{TagBitString, content}}, nil
}

// NewBitStringBytes wraps whole octets, such as a signature or public key.
func NewBitStringBytes(data []byte) *BitString {
	b, _ := NewBitString(data, 0)
	return b
}

// Unused returns the number of unused bits in the final octet.
func (b *BitString) Unused() int { return int(b.content[0]) }

// Data returns the bit octets without the unused-bits prefix.
func (b *BitString) Data() []byte { return b.content[1:] }

// BitLen returns the number of meaningful bits.
func (b *BitString) BitLen() int { return len(b.content[1:])*8 - b.Unused() }

// At reports whether bit i is set, counting from the most significant bit
// of the first octet.
func (b *BitString) At(i int) bool {
	if i < 0 || i >= b.BitLen() {
		return false
	}
	return b.content[1+i/8]&(0x80>>uint(i%8)) != 0
}

func parseBitString(tag byte, content []byte, _ int) (Node, error) {
	if len(content) == 0 {
		return nil, malformed("empty BIT STRING")
	}
	unused := content[0]
	if unused > 7 || (len(content) == 1 && unused != 0) {
		return nil, malformed("invalid BIT STRING unused-bits count %d", unused)
	}
	return &BitString{primitive{tag, content}}, nil
}

// String is one of the character string types: UTF8String,
// PrintableString, IA5String or T61String.
type String struct{ primitive }

// NewUTF8String encodes s as a UTF8String.
func NewUTF8String(s string) (*String, error) {
	if !utf8.ValidString(s) {
		return nil, fmt.Errorf("invalid UTF8String %q", s)
	}
	return &String{primitive{TagUTF8String, []byte(s)}}, nil
}

// NewPrintableString encodes s as a PrintableString.
func NewPrintableString(s string) (*String, error) {
	if !IsPrintable(s) {
		return nil, fmt.Errorf("invalid PrintableString %q", s)
	}
	return &String{primitive{TagPrintableString, []byte(s)}}, nil
}

// NewIA5String encodes s as an IA5String.
func NewIA5String(s string) (*String, error) {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return nil, fmt.Errorf("invalid IA5String %q", s)
		}
	}
	return &String{primitive{TagIA5String, []byte(s)}}, nil
}

// IsPrintable reports whether s uses only the PrintableString alphabet.
func IsPrintable(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		case c == ' ', c == '\'', c == '(', c == ')', c == '+', c == ',',
			c == '-', c == '.', c == '/', c == ':', c == '=', c == '?':
		default:
			return false
		}
	}
	return true
}

// String returns the text of the string value.
func (s *String) String() string { return string(s.content) }

func parseString(tag byte, content []byte, _ int) (Node, error) {
	if tag == TagUTF8String && !utf8.Valid(content) {
		return nil, malformed("invalid UTF-8 in UTF8String")
	}
	return &String{primitive{tag, content}}, nil
}

const (
	utcTimeLayout         = "060102150405"
	generalizedTimeLayout = "20060102150405"
)

// UTCTime is a UTCTime in its DER form YYMMDDHHMMSSZ.
type UTCTime struct {
	primitive
	t time.Time
}

// NewUTCTime encodes t, which must fall in 1950 through 2049.
func NewUTCTime(t time.Time) (*UTCTime, error) {
	t = t.UTC().Truncate(time.Second)
	if y := t.Year(); y < 1950 || y > 2049 {
		return nil, fmt.Errorf("year %d cannot be encoded as UTCTime", y)
	}
	content := []byte(t.Format(utcTimeLayout) + "Z")
	return &UTCTime{primitive{TagUTCTime, content}, t}, nil
}

// Time returns the decoded instant in UTC.
func (u *UTCTime) Time() time.Time { return u.t }

func parseUTCTime(tag byte, content []byte, _ int) (Node, error) {
	t, err := decodeUTCTime(content)
	if err != nil {
		return nil, err
	}
	return &UTCTime{primitive{tag, content}, t}, nil
}

// decodeUTCTime applies the two-digit year rule: a first digit below '5'
// means 20xx, otherwise 19xx.
func decodeUTCTime(content []byte) (time.Time, error) {
	if len(content) != 13 || content[12] != 'Z' {
		return time.Time{}, malformed("UTCTime %q is not in YYMMDDHHMMSSZ form", content)
	}
	century := "19"
	if content[0] < '5' {
		century = "20"
	}
	t, err := time.Parse(generalizedTimeLayout, century+string(content[:12]))
	if err != nil {
		return time.Time{}, malformed("UTCTime %q: %v", content, err)
	}
	return t, nil
}

// GeneralizedTime is a GeneralizedTime in its DER form YYYYMMDDHHMMSSZ.
type GeneralizedTime struct {
	primitive
	t time.Time
}

// NewGeneralizedTime encodes t with second precision.
func NewGeneralizedTime(t time.Time) *GeneralizedTime {
	t = t.UTC().Truncate(time.Second)
	content := []byte(t.Format(generalizedTimeLayout) + "Z")
	return &GeneralizedTime{primitive{TagGeneralizedTime, content}, t}
}

// Time returns the decoded instant in UTC.
func (g *GeneralizedTime) Time() time.Time { return g.t }

func parseGeneralizedTime(tag byte, content []byte, _ int) (Node, error) {
	if len(content) != 15 || content[14] != 'Z' {
		return nil, malformed("GeneralizedTime %q is not in YYYYMMDDHHMMSSZ form", content)
	}
	t, err := time.Parse(generalizedTimeLayout, string(content[:14]))
	if err != nil {
		return nil, malformed("GeneralizedTime %q: %v", content, err)
	}
	return &GeneralizedTime{primitive{tag, content}, t}, nil
}

// NewTime encodes t as UTCTime through 2049 and as GeneralizedTime after,
// the X.509 validity convention.
func NewTime(t time.Time) Node {
	if u, err := NewUTCTime(t); err == nil {
		return u
	}
	return NewGeneralizedTime(t)
}

// TimeOf returns the instant carried by a UTCTime or GeneralizedTime node.
func TimeOf(n Node) (time.Time, error) {
	switch v := n.(type) {
	case *UTCTime:
		return v.Time(), nil
	case *GeneralizedTime:
		return v.Time(), nil
	}
	return time.Time{}, Unsupported("expected time, got %s", describeNode(n))
}
