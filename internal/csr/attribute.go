package csr

import (
	"fmt"

	"github.com/remiblancher/derpki/internal/der"
	"github.com/remiblancher/derpki/internal/oid"
	"github.com/remiblancher/derpki/internal/x509util"
)

// Attribute is a PKCS#10 attribute:
//
//	Attribute ::= SEQUENCE {
//	    type    OBJECT IDENTIFIER,
//	    values  SET OF ANY DEFINED BY type
//	}
//
// Attributes of unknown types are kept as parsed.
type Attribute struct {
	Type   string
	Values []der.Node

	node der.Node
}

// NewAttribute builds an attribute. Values are sorted by encoding.
func NewAttribute(attrType string, values ...der.Node) (Attribute, error) {
	o, err := der.NewOID(attrType)
	if err != nil {
		return Attribute{}, fmt.Errorf("attribute type: %w", err)
	}
	set := der.NewSetOf(values...)
	return Attribute{Type: o.String(), Values: set.Children(), node: der.NewSequence(o, set)}, nil
}

// ExtensionRequest wraps exts in an extensionRequest attribute.
func ExtensionRequest(exts x509util.Extensions) Attribute {
	a, _ := NewAttribute(oid.PKCS9ExtensionRequest, exts.DER())
	return a
}

// ChallengePassword builds a challengePassword attribute, as a
// PrintableString when possible.
func ChallengePassword(password string) (Attribute, error) {
	var (
		value der.Node
		err   error
	)
	if der.IsPrintable(password) {
		value, err = der.NewPrintableString(password)
	} else {
		value, err = der.NewUTF8String(password)
	}
	if err != nil {
		return Attribute{}, fmt.Errorf("challenge password: %w", err)
	}
	return NewAttribute(oid.PKCS9ChallengePassword, value)
}

// AttributeFromDER decodes an attribute, keeping its node.
func AttributeFromDER(n der.Node) (Attribute, error) {
	seq, err := der.As[*der.Sequence](n)
	if err != nil {
		return Attribute{}, fmt.Errorf("attribute: %w", err)
	}
	if seq.NumChildren() != 2 {
		return Attribute{}, fmt.Errorf("attribute: %w", der.Unsupported("%d elements, want 2", seq.NumChildren()))
	}
	o, err := der.ChildAs[*der.ObjectIdentifier](seq, 0)
	if err != nil {
		return Attribute{}, fmt.Errorf("attribute type: %w", err)
	}
	set, err := der.ChildAs[*der.Set](seq, 1)
	if err != nil {
		return Attribute{}, fmt.Errorf("attribute %s values: %w", o.Name(), err)
	}
	return Attribute{Type: o.String(), Values: set.Children(), node: seq}, nil
}

// DER returns the attribute node.
func (a Attribute) DER() der.Node { return a.node }

// Name returns the registered attribute name.
func (a Attribute) Name() string { return oid.Name(a.Type) }

// String returns a one-line summary of the values.
func (a Attribute) String() string {
	if len(a.Values) == 1 {
		if s, ok := a.Values[0].(*der.String); ok {
			return s.String()
		}
	}
	return fmt.Sprintf("%d value(s)", len(a.Values))
}

func extensionsFromAttribute(a Attribute) (x509util.Extensions, error) {
	if len(a.Values) != 1 {
		return nil, fmt.Errorf("extensionRequest: %w", der.Unsupported("%d values, want 1", len(a.Values)))
	}
	exts, err := x509util.ExtensionsFromDER(a.Values[0])
	if err != nil {
		return nil, fmt.Errorf("extensionRequest: %w", err)
	}
	return exts, nil
}
