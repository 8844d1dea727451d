package x509util

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/remiblancher/derpki/internal/der"
	"github.com/remiblancher/derpki/internal/oid"
)

// ErrNameFormat reports a distinguished-name string that cannot be parsed or
// that uses an unknown attribute type.
var ErrNameFormat = errors.New("x509util: name format error")

// Short attribute type names accepted in DN strings.
var rdnTypes = map[string]string{
	"CN":               oid.CommonName,
	"SN":               oid.Surname,
	"SERIALNUMBER":     oid.SerialNumber,
	"C":                oid.Country,
	"L":                oid.Locality,
	"ST":               oid.StateOrProvince,
	"STREET":           oid.Street,
	"O":                oid.Organization,
	"OU":               oid.OrganizationalUnit,
	"T":                oid.Title,
	"TITLE":            oid.Title,
	"BUSINESSCATEGORY": oid.BusinessCategory,
	"POSTALCODE":       oid.PostalCode,
	"GIVENNAME":        oid.GivenName,
	"DC":               oid.DomainComponent,
	"UID":              oid.UserID,
	"EMAILADDRESS":     oid.EmailAddress,
}

// rdnTypeNames gives the name printed for each type.
var rdnTypeNames = map[string]string{
	oid.CommonName:         "CN",
	oid.Surname:            "SN",
	oid.SerialNumber:       "SERIALNUMBER",
	oid.Country:            "C",
	oid.Locality:           "L",
	oid.StateOrProvince:    "ST",
	oid.Street:             "STREET",
	oid.Organization:       "O",
	oid.OrganizationalUnit: "OU",
	oid.Title:              "T",
	oid.BusinessCategory:   "BUSINESSCATEGORY",
	oid.PostalCode:         "POSTALCODE",
	oid.GivenName:          "GIVENNAME",
	oid.DomainComponent:    "DC",
	oid.UserID:             "UID",
	oid.EmailAddress:       "EMAILADDRESS",
}

// Attribute is one AttributeTypeAndValue of a relative distinguished name.
type Attribute struct {
	// Type is the dotted attribute type OID.
	Type string

	// Value is the text of a string value. It is empty when the value is
	// not a string type.
	Value string

	node der.Node
}

// Node returns the DER value of the attribute.
func (a Attribute) Node() der.Node { return a.node }

// RDN is a relative distinguished name: one or more attributes.
type RDN []Attribute

// Name is an X.501 Name: an RDNSequence in DER order.
//
// DN strings list RDNs in the reverse of their DER order, so
// "CN=foo,O=bar" encodes the O attribute first.
type Name struct {
	rdns []RDN
	node der.Node
}

// ParseName parses a comma-separated distinguished name such as
// "CN=Certificate Corp,O=no,OU=Test".
func ParseName(dn string) (Name, error) {
	if strings.TrimSpace(dn) == "" {
		return Name{node: der.NewSequence()}, nil
	}

	components := splitUnescaped(dn, ',')
	rdns := make([]RDN, 0, len(components))
	for i := len(components) - 1; i >= 0; i-- {
		var rdn RDN
		for _, part := range splitUnescaped(components[i], '+') {
			attr, err := parseAttribute(part)
			if err != nil {
				return Name{}, err
			}
			rdn = append(rdn, attr)
		}
		rdns = append(rdns, rdn)
	}
	return newName(rdns), nil
}

// MustParseName is like ParseName but panics on error.
func MustParseName(dn string) Name {
	n, err := ParseName(dn)
	if err != nil {
		panic(err)
	}
	return n
}

func parseAttribute(s string) (Attribute, error) {
	eq := strings.IndexByte(s, '=')
	if eq <= 0 {
		return Attribute{}, fmt.Errorf("%w: Invalid name: %s", ErrNameFormat, strings.TrimSpace(s))
	}
	typeName := strings.TrimSpace(s[:eq])
	rawValue := trimValue(s[eq+1:])

	attrType, ok := rdnTypes[strings.ToUpper(typeName)]
	if !ok {
		if !isDottedOID(typeName) {
			return Attribute{}, fmt.Errorf("%w: Unknown DN type name %s", ErrNameFormat, typeName)
		}
		attrType = typeName
	}

	if strings.HasPrefix(rawValue, "#") {
		node, err := hexValue(rawValue[1:])
		if err != nil {
			return Attribute{}, fmt.Errorf("%w: Invalid name: %s: %v", ErrNameFormat, typeName, err)
		}
		return attributeFromNode(attrType, node), nil
	}

	value, err := unescapeValue(rawValue)
	if err != nil {
		return Attribute{}, fmt.Errorf("%w: Invalid name: %s: %v", ErrNameFormat, typeName, err)
	}
	node, err := stringValue(attrType, value)
	if err != nil {
		return Attribute{}, fmt.Errorf("%w: Invalid name: %s: %v", ErrNameFormat, typeName, err)
	}
	return Attribute{Type: attrType, Value: value, node: node}, nil
}

// stringValue picks the string type for an attribute: IA5String for
// e-mail and domain components, PrintableString when the alphabet allows,
// UTF8String otherwise.
func stringValue(attrType, value string) (der.Node, error) {
	switch attrType {
	case oid.EmailAddress, oid.DomainComponent:
		return der.NewIA5String(value)
	}
	if der.IsPrintable(value) {
		return der.NewPrintableString(value)
	}
	return der.NewUTF8String(value)
}

func hexValue(s string) (der.Node, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return der.Parse(b)
}

func isDottedOID(s string) bool {
	_, err := der.NewOID(s)
	return err == nil && s != "" && s[0] >= '0' && s[0] <= '9'
}

// NameFromDER decodes an RDNSequence. The node is kept so the name
// re-encodes to the same bytes.
func NameFromDER(n der.Node) (Name, error) {
	seq, err := der.As[*der.Sequence](n)
	if err != nil {
		return Name{}, fmt.Errorf("name: %w", err)
	}
	rdns := make([]RDN, 0, seq.NumChildren())
	for i := 0; i < seq.NumChildren(); i++ {
		set, err := der.ChildAs[*der.Set](seq, i)
		if err != nil {
			return Name{}, fmt.Errorf("name RDN %d: %w", i, err)
		}
		if set.NumChildren() == 0 {
			return Name{}, fmt.Errorf("name RDN %d: %w", i, der.Unsupported("empty RDN"))
		}
		var rdn RDN
		for j := 0; j < set.NumChildren(); j++ {
			atv, err := der.ChildAs[*der.Sequence](set, j)
			if err != nil {
				return Name{}, fmt.Errorf("name RDN %d: %w", i, err)
			}
			if atv.NumChildren() != 2 {
				return Name{}, fmt.Errorf("name RDN %d: %w", i, der.Unsupported("attribute with %d elements", atv.NumChildren()))
			}
			attrType, err := der.ChildAs[*der.ObjectIdentifier](atv, 0)
			if err != nil {
				return Name{}, fmt.Errorf("name RDN %d: %w", i, err)
			}
			rdn = append(rdn, attributeFromNode(attrType.String(), atv.Child(1)))
		}
		rdns = append(rdns, rdn)
	}
	return Name{rdns: rdns, node: seq}, nil
}

func attributeFromNode(attrType string, value der.Node) Attribute {
	attr := Attribute{Type: attrType, node: value}
	if s, ok := value.(*der.String); ok {
		attr.Value = s.String()
	}
	return attr
}

func newName(rdns []RDN) Name {
	sets := make([]der.Node, len(rdns))
	for i, rdn := range rdns {
		members := make([]der.Node, len(rdn))
		for j, attr := range rdn {
			members[j] = der.NewSequence(der.MustOID(attr.Type), attr.node)
		}
		sets[i] = der.NewSetOf(members...)
	}
	return Name{rdns: rdns, node: der.NewSequence(sets...)}
}

// DER returns the RDNSequence node.
func (n Name) DER() der.Node {
	if n.node == nil {
		return der.NewSequence()
	}
	return n.node
}

// RDNs returns the RDNs in DER order.
func (n Name) RDNs() []RDN {
	out := make([]RDN, len(n.rdns))
	for i, rdn := range n.rdns {
		out[i] = append(RDN(nil), rdn...)
	}
	return out
}

// IsEmpty reports whether the name has no RDNs.
func (n Name) IsEmpty() bool { return len(n.rdns) == 0 }

// Value returns the first value of the given attribute type, or "".
func (n Name) Value(attrType string) string {
	for _, rdn := range n.rdns {
		for _, attr := range rdn {
			if attr.Type == attrType {
				return attr.Value
			}
		}
	}
	return ""
}

// CommonName returns the CN value.
func (n Name) CommonName() string { return n.Value(oid.CommonName) }

// Organization returns the O value.
func (n Name) Organization() string { return n.Value(oid.Organization) }

// Equal reports whether both names encode to the same bytes.
func (n Name) Equal(other Name) bool {
	return der.Equal(n.DER(), other.DER())
}

// String renders the name as "CN=x,O=y", last RDN first.
func (n Name) String() string {
	parts := make([]string, 0, len(n.rdns))
	for i := len(n.rdns) - 1; i >= 0; i-- {
		attrs := make([]string, len(n.rdns[i]))
		for j, attr := range n.rdns[i] {
			attrs[j] = attr.format()
		}
		parts = append(parts, strings.Join(attrs, "+"))
	}
	return strings.Join(parts, ",")
}

func (a Attribute) format() string {
	typeName, ok := rdnTypeNames[a.Type]
	if !ok {
		typeName = a.Type
	}
	if _, isString := a.node.(*der.String); !isString {
		return typeName + "=#" + hex.EncodeToString(der.Encode(a.node))
	}
	return typeName + "=" + escapeValue(a.Value)
}

// =============================================================================
// Escaping
// =============================================================================

func splitUnescaped(s string, sep byte) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case sep:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// trimValue drops surrounding spaces, keeping a trailing space that is
// escaped.
func trimValue(v string) string {
	v = strings.TrimLeft(v, " ")
	for len(v) > 0 && v[len(v)-1] == ' ' {
		if len(v) > 1 && v[len(v)-2] == '\\' {
			break
		}
		v = v[:len(v)-1]
	}
	return v
}

func escapeValue(v string) string {
	var sb strings.Builder
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case strings.IndexByte(",+\"\\<>;=", c) >= 0,
			c == '#' && i == 0,
			c == ' ' && (i == 0 || i == len(v)-1):
			sb.WriteByte('\\')
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

func unescapeValue(v string) (string, error) {
	if !strings.Contains(v, "\\") {
		return v, nil
	}
	var sb strings.Builder
	for i := 0; i < len(v); i++ {
		if v[i] != '\\' {
			sb.WriteByte(v[i])
			continue
		}
		i++
		if i == len(v) {
			return "", fmt.Errorf("dangling escape")
		}
		if i+1 < len(v) && isHex(v[i]) && isHex(v[i+1]) {
			b, _ := hex.DecodeString(v[i : i+2])
			sb.Write(b)
			i++
			continue
		}
		sb.WriteByte(v[i])
	}
	return sb.String(), nil
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
