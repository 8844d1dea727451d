package der

import "fmt"

// Universal tags handled by the engine.
const (
	TagBoolean         byte = 0x01
	TagInteger         byte = 0x02
	TagBitString       byte = 0x03
	TagOctetString     byte = 0x04
	TagNull            byte = 0x05
	TagOID             byte = 0x06
	TagUTF8String      byte = 0x0C
	TagPrintableString byte = 0x13
	TagT61String       byte = 0x14
	TagIA5String       byte = 0x16
	TagUTCTime         byte = 0x17
	TagGeneralizedTime byte = 0x18
	TagSequence        byte = 0x30
	TagSet             byte = 0x31
)

// Tag octet layout.
const (
	ClassMask            byte = 0xC0
	ClassUniversal       byte = 0x00
	ClassApplication     byte = 0x40
	ClassContextSpecific byte = 0x80
	ClassPrivate         byte = 0xC0
	Constructed          byte = 0x20
	NumberMask           byte = 0x1F
)

var tagNames = map[byte]string{
	TagBoolean:         "BOOLEAN",
	TagInteger:         "INTEGER",
	TagBitString:       "BIT STRING",
	TagOctetString:     "OCTET STRING",
	TagNull:            "NULL",
	TagOID:             "OBJECT IDENTIFIER",
	TagUTF8String:      "UTF8String",
	TagPrintableString: "PrintableString",
	TagT61String:       "T61String",
	TagIA5String:       "IA5String",
	TagUTCTime:         "UTCTime",
	TagGeneralizedTime: "GeneralizedTime",
	TagSequence:        "SEQUENCE",
	TagSet:             "SET",
}

// TagName returns a readable name for a tag octet: the universal type name,
// "[n]" for context-specific tags, or the hex value otherwise.
func TagName(tag byte) string {
	if name, ok := tagNames[tag]; ok {
		return name
	}
	if tag&ClassMask == ClassContextSpecific {
		return fmt.Sprintf("[%d]", tag&NumberMask)
	}
	return fmt.Sprintf("[0x%02x]", tag)
}

// MaxTagNumber is the largest tag number that fits the single identifier
// octet. Higher numbers need the high-tag-number form, which Parse rejects.
const MaxTagNumber = 30

// ContextTag returns the context-specific tag octet for number n. It panics
// when n is outside 0..MaxTagNumber; callers pass compiled-in constants.
func ContextTag(n int, constructed bool) byte {
	if n < 0 || n > MaxTagNumber {
		panic(fmt.Sprintf("der: context tag number %d outside [0..%d]", n, MaxTagNumber))
	}
	tag := ClassContextSpecific | byte(n)
	if constructed {
		tag |= Constructed
	}
	return tag
}
