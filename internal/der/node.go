// Package der implements ASN.1 Distinguished Encoding Rules as a tree of
// tag-length-value nodes.
//
// A Node is one of a closed set of variants: Boolean, Integer, BitString,
// OctetString, Null, ObjectIdentifier, String, UTCTime, GeneralizedTime,
// Sequence, Set, ContextSpecific and Raw. Parse dispatches on the tag octet
// through a constructor table; unknown context-specific tags become
// ContextSpecific nodes and any other unknown tag becomes a Raw node that
// re-encodes its bytes unchanged.
//
// Primitive nodes returned by Parse borrow their content from the input
// buffer. The buffer must not be modified while nodes parsed from it are in
// use. Nodes are immutable and safe for concurrent use.
package der

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/valyala/bytebufferpool"
)

// Node is a single DER tag-length-value element.
type Node interface {
	// Tag returns the identifier octet.
	Tag() byte

	// Len returns the content length in bytes.
	Len() int

	// FullLength returns the encoded size: tag, length octets and content.
	FullLength() int

	// Bytes returns the content octets. For primitive nodes the slice is
	// shared with the node and must not be modified.
	Bytes() []byte

	encode(buf *bytebufferpool.ByteBuffer)
}

// primitive holds the tag and content shared by every non-collection node.
type primitive struct {
	tag     byte
	content []byte
}

func (p *primitive) Tag() byte       { return p.tag }
func (p *primitive) Len() int        { return len(p.content) }
func (p *primitive) FullLength() int { return headerLength(len(p.content)) + len(p.content) }
func (p *primitive) Bytes() []byte   { return p.content }

func (p *primitive) encode(buf *bytebufferpool.ByteBuffer) {
	writeHeader(buf, p.tag, len(p.content))
	_, _ = buf.Write(p.content)
}

// collection is an ordered list of children with a cached content length.
type collection struct {
	tag      byte
	children []Node
	length   int
}

// newCollection copies children so later writes to the caller's slice
// cannot change the node.
func newCollection(tag byte, children []Node) collection {
	owned := make([]Node, len(children))
	copy(owned, children)
	length := 0
	for _, c := range owned {
		length += c.FullLength()
	}
	return collection{tag: tag, children: owned, length: length}
}

func (c *collection) Tag() byte       { return c.tag }
func (c *collection) Len() int        { return c.length }
func (c *collection) FullLength() int { return headerLength(c.length) + c.length }

func (c *collection) Bytes() []byte {
	buf := bufferPool.Get()
	defer bufferPool.Put(buf)
	for _, child := range c.children {
		child.encode(buf)
	}
	out := make([]byte, buf.Len())
	copy(out, buf.B)
	return out
}

func (c *collection) encode(buf *bytebufferpool.ByteBuffer) {
	writeHeader(buf, c.tag, c.length)
	for _, child := range c.children {
		child.encode(buf)
	}
}

// NumChildren returns the number of children.
func (c *collection) NumChildren() int { return len(c.children) }

// Child returns the i-th child, or nil when i is out of range.
func (c *collection) Child(i int) Node {
	if i < 0 || i >= len(c.children) {
		return nil
	}
	return c.children[i]
}

// Children returns a copy of the child list.
func (c *collection) Children() []Node {
	out := make([]Node, len(c.children))
	copy(out, c.children)
	return out
}

// Sequence is an ordered SEQUENCE or SEQUENCE OF.
type Sequence struct{ collection }

// Set is a SET or SET OF. Children keep their insertion or parse order.
type Set struct{ collection }

// NewSequence builds a SEQUENCE from children in order.
func NewSequence(children ...Node) *Sequence {
	return &Sequence{newCollection(TagSequence, children)}
}

// NewSet builds a SET keeping children in the given order.
func NewSet(children ...Node) *Set {
	return &Set{newCollection(TagSet, children)}
}

// NewSetOf builds a SET OF with members sorted by their encodings, as DER
// requires for SET OF values with more than one member.
func NewSetOf(children ...Node) *Set {
	type member struct {
		node Node
		enc  []byte
	}
	members := make([]member, len(children))
	for i, c := range children {
		members[i] = member{node: c, enc: Encode(c)}
	}
	sort.SliceStable(members, func(i, j int) bool {
		return bytes.Compare(members[i].enc, members[j].enc) < 0
	})
	sorted := make([]Node, len(members))
	for i, m := range members {
		sorted[i] = m.node
	}
	return &Set{newCollection(TagSet, sorted)}
}

// Boolean is a BOOLEAN.
type Boolean struct{ primitive }

// NewBoolean encodes v as 0xFF or 0x00.
func NewBoolean(v bool) *Boolean {
	c := byte(0x00)
	if v {
		c = 0xFF
	}
	return &Boolean{primitive{TagBoolean, []byte{c}}}
}

// Value reports whether the content octet is non-zero.
func (b *Boolean) Value() bool { return b.content[0] != 0 }

// OctetString is an OCTET STRING.
type OctetString struct{ primitive }

// NewOctetString wraps data. The slice is retained, not copied.
func NewOctetString(data []byte) *OctetString {
	return &OctetString{primitive{TagOctetString, data}}
}

// NewOctetStringOf wraps the encoding of n, the usual shape of extension
// values and PKCS#12 content.
func NewOctetStringOf(n Node) *OctetString {
	return NewOctetString(Encode(n))
}

// Null is a NULL.
type Null struct{ primitive }

// NewNull returns a NULL value.
func NewNull() *Null {
	return &Null{primitive{TagNull, nil}}
}

// ContextSpecific is a context-specific tagged value whose content is kept
// raw and can be reinterpreted on demand.
type ContextSpecific struct{ primitive }

// NewContextSpecific builds an implicitly tagged value with raw content.
// It panics unless tag is a low-tag-number context-specific octet, such as
// one returned by ContextTag.
func NewContextSpecific(tag byte, content []byte) *ContextSpecific {
	if tag&ClassMask != ClassContextSpecific || tag&NumberMask == NumberMask {
		panic(fmt.Sprintf("der: 0x%02x is not a context-specific tag in [0..%d]", tag, MaxTagNumber))
	}
	return &ContextSpecific{primitive{tag, content}}
}

// NewExplicit builds the constructed tag [n] wrapping the encodings of
// inner in order. It panics when n is outside 0..MaxTagNumber.
func NewExplicit(n int, inner ...Node) *ContextSpecific {
	tag := ContextTag(n, true)
	buf := bufferPool.Get()
	defer bufferPool.Put(buf)
	for _, child := range inner {
		child.encode(buf)
	}
	content := make([]byte, buf.Len())
	copy(content, buf.B)
	return &ContextSpecific{primitive{tag, content}}
}

// Number returns the tag number.
func (c *ContextSpecific) Number() int { return int(c.tag & NumberMask) }

// IsConstructed reports whether the constructed bit is set.
func (c *ContextSpecific) IsConstructed() bool { return c.tag&Constructed != 0 }

// Explicit parses the content as exactly one inner node.
func (c *ContextSpecific) Explicit() (Node, error) {
	return Parse(c.content)
}

// Children parses the content as a concatenation of nodes.
func (c *ContextSpecific) Children() ([]Node, error) {
	return ParseAll(c.content)
}

// Raw is a node with a tag the engine does not interpret. It re-encodes
// its bytes unchanged.
type Raw struct{ primitive }

// NewRaw builds a node with an arbitrary tag and content.
func NewRaw(tag byte, content []byte) *Raw {
	return &Raw{primitive{tag, content}}
}

// Equal reports whether a and b have identical encodings.
func Equal(a, b Node) bool {
	return bytes.Equal(Encode(a), Encode(b))
}
