package der

// maxDepth bounds collection nesting during a single parse.
const maxDepth = 64

type constructor func(tag byte, content []byte, depth int) (Node, error)

var constructors map[byte]constructor

func init() {
	constructors = map[byte]constructor{
		TagBoolean:         parseBoolean,
		TagInteger:         parseInteger,
		TagBitString:       parseBitString,
		TagOctetString:     parseOctetString,
		TagNull:            parseNull,
		TagOID:             parseOID,
		TagUTF8String:      parseString,
		TagPrintableString: parseString,
		TagT61String:       parseString,
		TagIA5String:       parseString,
		TagUTCTime:         parseUTCTime,
		TagGeneralizedTime: parseGeneralizedTime,
		TagSequence:        parseSequence,
		TagSet:             parseSet,
	}
}

// Parse decodes exactly one node spanning all of b.
func Parse(b []byte) (Node, error) {
	n, next, err := parseAt(b, 0, 0)
	if err != nil {
		return nil, err
	}
	if next != len(b) {
		return nil, malformed("%d trailing bytes after %s", len(b)-next, TagName(n.Tag()))
	}
	return n, nil
}

// ParseAt decodes one node starting at off and returns the offset just past
// it.
func ParseAt(b []byte, off int) (Node, int, error) {
	return parseAt(b, off, 0)
}

// ParseAll decodes a concatenation of nodes filling all of b.
func ParseAll(b []byte) ([]Node, error) {
	return parseChildren(b, 0)
}

func parseAt(b []byte, off, depth int) (Node, int, error) {
	if depth > maxDepth {
		return nil, 0, malformed("nesting deeper than %d levels", maxDepth)
	}
	if off < 0 || off >= len(b) {
		return nil, 0, malformed("truncated input: no tag at offset %d", off)
	}
	tag := b[off]
	if tag&NumberMask == NumberMask {
		return nil, 0, malformed("high-tag-number form at offset %d is not supported", off)
	}
	length, octets, err := readLength(b, off+1)
	if err != nil {
		return nil, 0, err
	}
	start := off + 1 + octets
	if uint64(length) > uint64(len(b)-start) {
		return nil, 0, malformed("length %d at offset %d exceeds the %d remaining bytes", length, off, len(b)-start)
	}
	end := start + int(length)
	content := b[start:end:end]

	ctor, ok := constructors[tag]
	if !ok {
		ctor = parseRaw
		if tag&ClassMask == ClassContextSpecific {
			ctor = parseContextSpecific
		}
	}
	n, err := ctor(tag, content, depth)
	if err != nil {
		return nil, 0, err
	}
	return n, end, nil
}

// readLength decodes the length octets at off.
func readLength(b []byte, off int) (uint64, int, error) {
	if off >= len(b) {
		return 0, 0, malformed("truncated input: no length at offset %d", off)
	}
	first := b[off]
	if first < 0x80 {
		return uint64(first), 1, nil
	}
	count := int(first & 0x7F)
	if count == 0 {
		return 0, 0, malformed("indefinite length at offset %d is not supported", off)
	}
	if count > 4 {
		return 0, 0, malformed("%d length octets at offset %d", count, off)
	}
	if count > len(b)-off-1 {
		return 0, 0, malformed("truncated length at offset %d", off)
	}
	var length uint64
	for _, c := range b[off+1 : off+1+count] {
		length = length<<8 | uint64(c)
	}
	if b[off+1] == 0 || length < 0x80 {
		return 0, 0, malformed("non-minimal length encoding at offset %d", off)
	}
	return length, 1 + count, nil
}

func parseChildren(content []byte, depth int) ([]Node, error) {
	var children []Node
	for off := 0; off < len(content); {
		child, next, err := parseAt(content, off, depth)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
		off = next
	}
	return children, nil
}

func parseSequence(tag byte, content []byte, depth int) (Node, error) {
	children, err := parseChildren(content, depth+1)
	if err != nil {
		return nil, err
	}
	return &Sequence{newCollection(tag, children)}, nil
}

func parseSet(tag byte, content []byte, depth int) (Node, error) {
	children, err := parseChildren(content, depth+1)
	if err != nil {
		return nil, err
	}
	return &Set{newCollection(tag, children)}, nil
}

func parseBoolean(tag byte, content []byte, _ int) (Node, error) {
	if len(content) != 1 {
		return nil, malformed("BOOLEAN of %d bytes", len(content))
	}
	return &Boolean{primitive{tag, content}}, nil
}

func parseOctetString(tag byte, content []byte, _ int) (Node, error) {
	return &OctetString{primitive{tag, content}}, nil
}

func parseNull(tag byte, content []byte, _ int) (Node, error) {
	if len(content) != 0 {
		return nil, malformed("NULL with %d content bytes", len(content))
	}
	return &Null{primitive{tag, content}}, nil
}

func parseContextSpecific(tag byte, content []byte, _ int) (Node, error) {
	return &ContextSpecific{primitive{tag, content}}, nil
}

func parseRaw(tag byte, content []byte, _ int) (Node, error) {
	return &Raw{primitive{tag, content}}, nil
}
