package der

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"
)

// hexLimit is the size above which byte strings are abbreviated.
const hexLimit = 20

// Dump writes an indented tree of n to w, one node per line.
func Dump(w io.Writer, n Node) error {
	return dump(w, n, "")
}

// Sprint returns the Dump output as a string.
func Sprint(n Node) string {
	var sb strings.Builder
	_ = Dump(&sb, n)
	return sb.String()
}

func dump(w io.Writer, n Node, indent string) error {
	if _, err := fmt.Fprintf(w, "%s%s\n", indent, Describe(n)); err != nil {
		return err
	}
	for _, child := range nestedNodes(n) {
		if err := dump(w, child, indent+"  "); err != nil {
			return err
		}
	}
	return nil
}

// nestedNodes returns the children shown under n: collection members, and
// DER found inside explicit tags, OCTET STRINGs and BIT STRINGs.
func nestedNodes(n Node) []Node {
	switch v := n.(type) {
	case *Sequence:
		return v.children
	case *Set:
		return v.children
	case *ContextSpecific:
		if v.IsConstructed() {
			if children, err := v.Children(); err == nil {
				return children
			}
		}
	case *OctetString:
		if inner, ok := embedded(v.content); ok {
			return []Node{inner}
		}
	case *BitString:
		if v.Unused() == 0 {
			if inner, ok := embedded(v.Data()); ok {
				return []Node{inner}
			}
		}
	}
	return nil
}

// embedded parses b as one constructed node when it looks like one.
func embedded(b []byte) (Node, bool) {
	if len(b) < 2 || b[0]&Constructed == 0 {
		return nil, false
	}
	n, err := Parse(b)
	if err != nil {
		return nil, false
	}
	return n, true
}

// Describe returns the one-line summary of n used by Dump.
func Describe(n Node) string {
	head := fmt.Sprintf("%s (%d+%d)", TagName(n.Tag()), n.FullLength()-n.Len(), n.Len())
	value := describeValue(n)
	if value == "" {
		return head
	}
	return head + " " + value
}

func describeValue(n Node) string {
	switch v := n.(type) {
	case *Boolean:
		return fmt.Sprintf("%t", v.Value())
	case *Integer:
		return v.String()
	case *BitString:
		return fmt.Sprintf("%d bits %s", v.BitLen(), HexSummary(v.Data()))
	case *OctetString:
		return HexSummary(v.content)
	case *Null:
		return ""
	case *ObjectIdentifier:
		if name := v.Name(); name != v.dotted {
			return fmt.Sprintf("%s (%s)", v.dotted, name)
		}
		return v.dotted
	case *String:
		return fmt.Sprintf("%q", v.String())
	case *UTCTime:
		return v.Time().Format(time.RFC3339)
	case *GeneralizedTime:
		return v.Time().Format(time.RFC3339)
	case *Sequence:
		return fmt.Sprintf("%d elem", v.NumChildren())
	case *Set:
		return fmt.Sprintf("%d elem", v.NumChildren())
	case *ContextSpecific:
		if !v.IsConstructed() && isText(v.content) {
			return fmt.Sprintf("%q", v.content)
		}
		return HexSummary(v.content)
	default:
		return HexSummary(n.Bytes())
	}
}

// HexSummary renders b in hex, abbreviating values longer than 20 bytes to
// the first 10 and last 5 bytes.
func HexSummary(b []byte) string {
	if len(b) <= hexLimit {
		return hex.EncodeToString(b)
	}
	return hex.EncodeToString(b[:10]) + "...." + hex.EncodeToString(b[len(b)-5:])
}

func isText(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if c < 0x20 || c > 0x7E {
			return false
		}
	}
	return true
}
