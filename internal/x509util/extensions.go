package x509util

import (
	"encoding/hex"
	"fmt"
	"net"
	"strings"

	"golang.org/x/net/idna"

	"github.com/remiblancher/derpki/internal/der"
	"github.com/remiblancher/derpki/internal/oid"
)

// =============================================================================
// Extension envelope
// =============================================================================

// Extension is one X.509 v3 extension:
//
//	Extension ::= SEQUENCE {
//	    extnID     OBJECT IDENTIFIER,
//	    critical   BOOLEAN DEFAULT FALSE,
//	    extnValue  OCTET STRING
//	}
type Extension struct {
	// ID is the dotted extension OID.
	ID string

	Critical bool

	// Value is the DER payload carried in extnValue.
	Value []byte

	node der.Node
}

// NewExtension builds an extension from a raw payload. The critical flag
// is omitted from the encoding when false.
func NewExtension(id string, critical bool, value []byte) (Extension, error) {
	o, err := der.NewOID(id)
	if err != nil {
		return Extension{}, fmt.Errorf("extension: %w", err)
	}
	return newExtension(o, critical, value), nil
}

// NewExtensionFrom wraps a typed value in its extension envelope.
func NewExtensionFrom(v ExtensionValue, critical bool) Extension {
	return newExtension(der.MustOID(v.OID()), critical, v.Marshal())
}

func newExtension(id *der.ObjectIdentifier, critical bool, value []byte) Extension {
	children := []der.Node{id}
	if critical {
		children = append(children, der.NewBoolean(true))
	}
	children = append(children, der.NewOctetString(value))
	return Extension{ID: id.String(), Critical: critical, Value: value, node: der.NewSequence(children...)}
}

// ExtensionFromDER decodes an Extension, keeping the node so the
// extension re-encodes unchanged.
func ExtensionFromDER(n der.Node) (Extension, error) {
	seq, err := der.As[*der.Sequence](n)
	if err != nil {
		return Extension{}, fmt.Errorf("extension: %w", err)
	}
	id, err := der.ChildAs[*der.ObjectIdentifier](seq, 0)
	if err != nil {
		return Extension{}, fmt.Errorf("extension: %w", err)
	}
	ext := Extension{ID: id.String(), node: seq}
	next := 1
	if b, ok := seq.Child(1).(*der.Boolean); ok {
		ext.Critical = b.Value()
		next = 2
	}
	value, err := der.ChildAs[*der.OctetString](seq, next)
	if err != nil {
		return Extension{}, fmt.Errorf("extension %s: %w", oid.Name(ext.ID), err)
	}
	if seq.NumChildren() != next+1 {
		return Extension{}, fmt.Errorf("extension %s: %w", oid.Name(ext.ID),
			der.Unsupported("%d elements", seq.NumChildren()))
	}
	ext.Value = value.Bytes()
	return ext, nil
}

// DER returns the Extension node.
func (e Extension) DER() der.Node { return e.node }

// Name returns the registered extension name.
func (e Extension) Name() string { return oid.Name(e.ID) }

// Decode returns the typed value of a known extension, or an
// UnknownExtension carrying the payload unchanged.
func (e Extension) Decode() (ExtensionValue, error) {
	decode, ok := extensionDecoders[e.ID]
	if !ok {
		return UnknownExtension{ID: e.ID, Value: e.Value}, nil
	}
	v, err := decode(e.Value)
	if err != nil {
		return nil, fmt.Errorf("extension %s: %w", e.Name(), err)
	}
	return v, nil
}

// ExtensionValue is a decoded extension payload.
type ExtensionValue interface {
	// OID returns the extension OID.
	OID() string

	// Marshal returns the DER payload for extnValue.
	Marshal() []byte

	String() string
}

var extensionDecoders = map[string]func([]byte) (ExtensionValue, error){
	oid.ExtKeyUsage:         decodeKeyUsage,
	oid.ExtBasicConstraints: decodeBasicConstraints,
	oid.ExtSubjectAltName:   decodeSubjectAltName,
	oid.ExtExtendedKeyUsage: decodeExtKeyUsage,
	oid.ExtSubjectKeyID:     decodeSubjectKeyID,
	oid.ExtAuthorityKeyID:   decodeAuthorityKeyID,
}

// UnknownExtension is the payload of an extension with no typed decoder.
type UnknownExtension struct {
	ID    string
	Value []byte
}

func (u UnknownExtension) OID() string     { return u.ID }
func (u UnknownExtension) Marshal() []byte { return u.Value }
func (u UnknownExtension) String() string  { return der.HexSummary(u.Value) }

// =============================================================================
// KeyUsage
// =============================================================================

// KeyUsage is the set of key usage bits. Bit positions follow RFC 5280.
type KeyUsage uint16

const (
	KeyUsageDigitalSignature KeyUsage = 1 << iota
	KeyUsageContentCommitment
	KeyUsageKeyEncipherment
	KeyUsageDataEncipherment
	KeyUsageKeyAgreement
	KeyUsageCertSign
	KeyUsageCRLSign
	KeyUsageEncipherOnly
	KeyUsageDecipherOnly
)

const keyUsageBits = 9

var keyUsageNames = [keyUsageBits]string{
	"digitalSignature",
	"nonRepudiation",
	"keyEncipherment",
	"dataEncipherment",
	"keyAgreement",
	"keyCertSign",
	"cRLSign",
	"encipherOnly",
	"decipherOnly",
}

// Has reports whether every bit of flag is set.
func (k KeyUsage) Has(flag KeyUsage) bool { return k&flag == flag }

func (k KeyUsage) OID() string { return oid.ExtKeyUsage }

// Marshal encodes the bits as a BIT STRING without trailing zero bits.
func (k KeyUsage) Marshal() []byte {
	highest := -1
	for i := 0; i < keyUsageBits; i++ {
		if k&(1<<uint(i)) != 0 {
			highest = i
		}
	}
	if highest < 0 {
		return der.Encode(der.NewBitStringBytes(nil))
	}
	data := make([]byte, highest/8+1)
	for i := 0; i <= highest; i++ {
		if k&(1<<uint(i)) != 0 {
			data[i/8] |= 0x80 >> uint(i%8)
		}
	}
	bits, _ := der.NewBitString(data, 7-highest%8)
	return der.Encode(bits)
}

// String lists the set usages, such as "digitalSignature, keyCertSign".
func (k KeyUsage) String() string {
	var names []string
	for i, name := range keyUsageNames {
		if k&(1<<uint(i)) != 0 {
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}

// ParseKeyUsage maps RFC 5280 usage names to bits. "contentCommitment"
// is accepted for nonRepudiation.
func ParseKeyUsage(names ...string) (KeyUsage, error) {
	var k KeyUsage
	for _, name := range names {
		if name == "contentCommitment" {
			name = "nonRepudiation"
		}
		found := false
		for i, n := range keyUsageNames {
			if n == name {
				k |= 1 << uint(i)
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown key usage %q", name)
		}
	}
	return k, nil
}

func decodeKeyUsage(b []byte) (ExtensionValue, error) {
	n, err := der.Parse(b)
	if err != nil {
		return nil, err
	}
	bits, err := der.As[*der.BitString](n)
	if err != nil {
		return nil, err
	}
	var k KeyUsage
	for i := 0; i < keyUsageBits; i++ {
		if bits.At(i) {
			k |= 1 << uint(i)
		}
	}
	return k, nil
}

// =============================================================================
// BasicConstraints
// =============================================================================

// BasicConstraints marks a certificate as a CA and bounds the path below
// it.
type BasicConstraints struct {
	CA bool

	// PathLen is the pathLenConstraint, meaningful when HasPathLen is set.
	PathLen    int
	HasPathLen bool
}

func (bc BasicConstraints) OID() string { return oid.ExtBasicConstraints }

// Marshal omits cA when false, its DER default.
func (bc BasicConstraints) Marshal() []byte {
	var children []der.Node
	if bc.CA {
		children = append(children, der.NewBoolean(true))
	}
	if bc.HasPathLen {
		children = append(children, der.NewInt64(int64(bc.PathLen)))
	}
	return der.Encode(der.NewSequence(children...))
}

func (bc BasicConstraints) String() string {
	s := fmt.Sprintf("CA:%t", bc.CA)
	if bc.HasPathLen {
		s += fmt.Sprintf(", pathlen:%d", bc.PathLen)
	}
	return s
}

func decodeBasicConstraints(b []byte) (ExtensionValue, error) {
	n, err := der.Parse(b)
	if err != nil {
		return nil, err
	}
	seq, err := der.As[*der.Sequence](n)
	if err != nil {
		return nil, err
	}
	var bc BasicConstraints
	i := 0
	if v, ok := seq.Child(i).(*der.Boolean); ok {
		bc.CA = v.Value()
		i++
	}
	if v, ok := seq.Child(i).(*der.Integer); ok {
		pathLen, err := v.Int64()
		if err != nil || pathLen < 0 || pathLen > 1<<31-1 {
			return nil, der.Unsupported("pathLenConstraint %s", v.String())
		}
		bc.PathLen = int(pathLen)
		bc.HasPathLen = true
		i++
	}
	if i != seq.NumChildren() {
		return nil, der.Unsupported("unexpected %s in basic constraints", der.TagName(seq.Child(i).Tag()))
	}
	return bc, nil
}

// =============================================================================
// SubjectAltName
// =============================================================================

// GeneralNameKind is the context tag number of a GeneralName choice.
type GeneralNameKind int

const (
	GeneralNameOther        GeneralNameKind = 0
	GeneralNameEmail        GeneralNameKind = 1
	GeneralNameDNS          GeneralNameKind = 2
	GeneralNameX400         GeneralNameKind = 3
	GeneralNameDirectory    GeneralNameKind = 4
	GeneralNameEDIParty     GeneralNameKind = 5
	GeneralNameURI          GeneralNameKind = 6
	GeneralNameIP           GeneralNameKind = 7
	GeneralNameRegisteredID GeneralNameKind = 8
)

// GeneralName is one entry of a SubjectAltName. rfc822Name, dNSName, URI
// and iPAddress entries are interpreted; other choices are kept opaque.
type GeneralName struct {
	Kind GeneralNameKind

	// Value is the text of email, DNS and URI entries.
	Value string

	// IP is set for iPAddress entries.
	IP net.IP

	node der.Node
}

// DNSName returns a dNSName entry. The name is used as given; see
// ExtensionsBuilder.AddDNSName for IDNA conversion.
func DNSName(name string) GeneralName { return textName(GeneralNameDNS, name) }

// EmailName returns an rfc822Name entry.
func EmailName(addr string) GeneralName { return textName(GeneralNameEmail, addr) }

// URIName returns a uniformResourceIdentifier entry.
func URIName(uri string) GeneralName { return textName(GeneralNameURI, uri) }

// IPName returns an iPAddress entry in its 4- or 16-byte form.
func IPName(ip net.IP) GeneralName {
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}
	b := append([]byte(nil), ip...)
	return GeneralName{
		Kind: GeneralNameIP,
		IP:   net.IP(b),
		node: der.NewContextSpecific(der.ContextTag(int(GeneralNameIP), false), b),
	}
}

func textName(kind GeneralNameKind, s string) GeneralName {
	return GeneralName{
		Kind:  kind,
		Value: s,
		node:  der.NewContextSpecific(der.ContextTag(int(kind), false), []byte(s)),
	}
}

// GeneralNameFromDER decodes one GeneralName.
func GeneralNameFromDER(n der.Node) (GeneralName, error) {
	c, err := der.As[*der.ContextSpecific](n)
	if err != nil {
		return GeneralName{}, err
	}
	gn := GeneralName{Kind: GeneralNameKind(c.Number()), node: c}
	switch gn.Kind {
	case GeneralNameEmail, GeneralNameDNS, GeneralNameURI:
		if c.IsConstructed() {
			return GeneralName{}, der.Unsupported("constructed [%d] general name", c.Number())
		}
		gn.Value = string(c.Bytes())
	case GeneralNameIP:
		if l := c.Len(); l == net.IPv4len || l == net.IPv6len {
			gn.IP = net.IP(append([]byte(nil), c.Bytes()...))
		}
	}
	return gn, nil
}

// DER returns the tagged GeneralName node.
func (g GeneralName) DER() der.Node { return g.node }

func (g GeneralName) String() string {
	switch g.Kind {
	case GeneralNameDNS:
		return "DNS:" + g.Value
	case GeneralNameEmail:
		return "email:" + g.Value
	case GeneralNameURI:
		return "URI:" + g.Value
	case GeneralNameIP:
		if g.IP != nil {
			return "IP:" + g.IP.String()
		}
	}
	return fmt.Sprintf("[%d]:%s", g.Kind, hex.EncodeToString(g.node.Bytes()))
}

// SubjectAltName is the ordered GeneralNames of a subjectAltName extension.
type SubjectAltName struct {
	Names []GeneralName
}

func (s SubjectAltName) OID() string { return oid.ExtSubjectAltName }

func (s SubjectAltName) Marshal() []byte {
	nodes := make([]der.Node, len(s.Names))
	for i, gn := range s.Names {
		nodes[i] = gn.node
	}
	return der.Encode(der.NewSequence(nodes...))
}

func (s SubjectAltName) String() string {
	parts := make([]string, len(s.Names))
	for i, gn := range s.Names {
		parts[i] = gn.String()
	}
	return strings.Join(parts, ", ")
}

// DNSNames returns the dNSName entries in order.
func (s SubjectAltName) DNSNames() []string { return s.values(GeneralNameDNS) }

// EmailAddresses returns the rfc822Name entries in order.
func (s SubjectAltName) EmailAddresses() []string { return s.values(GeneralNameEmail) }

// URIs returns the URI entries in order.
func (s SubjectAltName) URIs() []string { return s.values(GeneralNameURI) }

// IPAddresses returns the iPAddress entries in order.
func (s SubjectAltName) IPAddresses() []net.IP {
	var ips []net.IP
	for _, gn := range s.Names {
		if gn.Kind == GeneralNameIP && gn.IP != nil {
			ips = append(ips, gn.IP)
		}
	}
	return ips
}

func (s SubjectAltName) values(kind GeneralNameKind) []string {
	var out []string
	for _, gn := range s.Names {
		if gn.Kind == kind {
			out = append(out, gn.Value)
		}
	}
	return out
}

func decodeSubjectAltName(b []byte) (ExtensionValue, error) {
	n, err := der.Parse(b)
	if err != nil {
		return nil, err
	}
	seq, err := der.As[*der.Sequence](n)
	if err != nil {
		return nil, err
	}
	san := SubjectAltName{Names: make([]GeneralName, 0, seq.NumChildren())}
	for i := 0; i < seq.NumChildren(); i++ {
		gn, err := GeneralNameFromDER(seq.Child(i))
		if err != nil {
			return nil, fmt.Errorf("general name %d: %w", i, err)
		}
		san.Names = append(san.Names, gn)
	}
	return san, nil
}

// =============================================================================
// ExtKeyUsage, key identifiers
// =============================================================================

// ExtKeyUsage lists key purpose OIDs.
type ExtKeyUsage struct {
	Purposes []string
}

func (e ExtKeyUsage) OID() string { return oid.ExtExtendedKeyUsage }

func (e ExtKeyUsage) Marshal() []byte {
	nodes := make([]der.Node, len(e.Purposes))
	for i, p := range e.Purposes {
		nodes[i] = der.MustOID(p)
	}
	return der.Encode(der.NewSequence(nodes...))
}

func (e ExtKeyUsage) String() string {
	names := make([]string, len(e.Purposes))
	for i, p := range e.Purposes {
		names[i] = oid.Name(p)
	}
	return strings.Join(names, ", ")
}

func decodeExtKeyUsage(b []byte) (ExtensionValue, error) {
	n, err := der.Parse(b)
	if err != nil {
		return nil, err
	}
	seq, err := der.As[*der.Sequence](n)
	if err != nil {
		return nil, err
	}
	var eku ExtKeyUsage
	for i := 0; i < seq.NumChildren(); i++ {
		p, err := der.ChildAs[*der.ObjectIdentifier](seq, i)
		if err != nil {
			return nil, err
		}
		eku.Purposes = append(eku.Purposes, p.String())
	}
	return eku, nil
}

// SubjectKeyID is the subjectKeyIdentifier extension.
type SubjectKeyID []byte

func (s SubjectKeyID) OID() string     { return oid.ExtSubjectKeyID }
func (s SubjectKeyID) Marshal() []byte { return der.Encode(der.NewOctetString(s)) }
func (s SubjectKeyID) String() string  { return hex.EncodeToString(s) }

func decodeSubjectKeyID(b []byte) (ExtensionValue, error) {
	n, err := der.Parse(b)
	if err != nil {
		return nil, err
	}
	os, err := der.As[*der.OctetString](n)
	if err != nil {
		return nil, err
	}
	return SubjectKeyID(os.Bytes()), nil
}

// AuthorityKeyID is the keyIdentifier form of authorityKeyIdentifier.
// Issuer and serial fields are ignored on decode.
type AuthorityKeyID []byte

func (a AuthorityKeyID) OID() string { return oid.ExtAuthorityKeyID }

func (a AuthorityKeyID) Marshal() []byte {
	return der.Encode(der.NewSequence(der.NewContextSpecific(der.ContextTag(0, false), a)))
}

func (a AuthorityKeyID) String() string { return hex.EncodeToString(a) }

func decodeAuthorityKeyID(b []byte) (ExtensionValue, error) {
	n, err := der.Parse(b)
	if err != nil {
		return nil, err
	}
	seq, err := der.As[*der.Sequence](n)
	if err != nil {
		return nil, err
	}
	for i := 0; i < seq.NumChildren(); i++ {
		if c, ok := seq.Child(i).(*der.ContextSpecific); ok && c.Number() == 0 && !c.IsConstructed() {
			return AuthorityKeyID(c.Bytes()), nil
		}
	}
	return AuthorityKeyID(nil), nil
}

// =============================================================================
// Extension lists
// =============================================================================

// Extensions is an ordered list of extensions with unique OIDs.
type Extensions []Extension

// ExtensionsFromDER decodes a SEQUENCE OF Extension.
func ExtensionsFromDER(n der.Node) (Extensions, error) {
	seq, err := der.As[*der.Sequence](n)
	if err != nil {
		return nil, fmt.Errorf("extensions: %w", err)
	}
	exts := make(Extensions, 0, seq.NumChildren())
	seen := make(map[string]bool, seq.NumChildren())
	for i := 0; i < seq.NumChildren(); i++ {
		ext, err := ExtensionFromDER(seq.Child(i))
		if err != nil {
			return nil, err
		}
		if seen[ext.ID] {
			return nil, fmt.Errorf("extensions: %w", der.Unsupported("duplicate extension %s", ext.Name()))
		}
		seen[ext.ID] = true
		exts = append(exts, ext)
	}
	return exts, nil
}

// DER returns the SEQUENCE OF Extension node.
func (es Extensions) DER() der.Node {
	nodes := make([]der.Node, len(es))
	for i, e := range es {
		nodes[i] = e.node
	}
	return der.NewSequence(nodes...)
}

// Find returns the extension with the given OID.
func (es Extensions) Find(id string) (Extension, bool) {
	for _, e := range es {
		if e.ID == id {
			return e, true
		}
	}
	return Extension{}, false
}

// KeyUsage returns the decoded key usage and whether it is present.
func (es Extensions) KeyUsage() (KeyUsage, bool, error) {
	return decodeTyped[KeyUsage](es, oid.ExtKeyUsage)
}

// BasicConstraints returns the decoded basic constraints and whether they
// are present.
func (es Extensions) BasicConstraints() (BasicConstraints, bool, error) {
	return decodeTyped[BasicConstraints](es, oid.ExtBasicConstraints)
}

// SubjectAltName returns the decoded subject alternative names and whether
// they are present.
func (es Extensions) SubjectAltName() (SubjectAltName, bool, error) {
	return decodeTyped[SubjectAltName](es, oid.ExtSubjectAltName)
}

// ExtKeyUsage returns the decoded extended key usage and whether it is
// present.
func (es Extensions) ExtKeyUsage() (ExtKeyUsage, bool, error) {
	return decodeTyped[ExtKeyUsage](es, oid.ExtExtendedKeyUsage)
}

// SubjectKeyID returns the subject key identifier, or nil.
func (es Extensions) SubjectKeyID() []byte {
	v, _, _ := decodeTyped[SubjectKeyID](es, oid.ExtSubjectKeyID)
	return v
}

func decodeTyped[T ExtensionValue](es Extensions, id string) (T, bool, error) {
	var zero T
	ext, ok := es.Find(id)
	if !ok {
		return zero, false, nil
	}
	v, err := ext.Decode()
	if err != nil {
		return zero, true, err
	}
	return v.(T), true, nil
}

// =============================================================================
// Builder
// =============================================================================

// ExtensionsBuilder collects extensions for a certificate or request.
// Adding an extension whose OID is already present replaces it in place.
// Subject alternative names accumulate and are emitted as one extension.
type ExtensionsBuilder struct {
	exts Extensions
	san  []GeneralName
	err  error
}

// NewExtensionsBuilder returns an empty builder.
func NewExtensionsBuilder() *ExtensionsBuilder {
	return &ExtensionsBuilder{}
}

// MarkCA adds critical basic constraints with cA set. A negative pathLen
// leaves the path length unconstrained.
func (b *ExtensionsBuilder) MarkCA(pathLen int) *ExtensionsBuilder {
	bc := BasicConstraints{CA: true}
	if pathLen >= 0 {
		bc.PathLen = pathLen
		bc.HasPathLen = true
	}
	return b.Add(bc, true)
}

// KeyUsage adds a critical key usage extension.
func (b *ExtensionsBuilder) KeyUsage(k KeyUsage) *ExtensionsBuilder {
	return b.Add(k, true)
}

// ExtKeyUsage adds an extended key usage extension. Each purpose is a
// registered name such as "serverAuth" or a dotted OID.
func (b *ExtensionsBuilder) ExtKeyUsage(purposes ...string) *ExtensionsBuilder {
	resolved := make([]string, 0, len(purposes))
	for _, p := range purposes {
		if dotted, ok := oid.Lookup(p); ok {
			resolved = append(resolved, dotted)
			continue
		}
		if _, err := der.NewOID(p); err != nil {
			b.fail(fmt.Errorf("key purpose: %w", err))
			return b
		}
		resolved = append(resolved, p)
	}
	return b.Add(ExtKeyUsage{Purposes: resolved}, false)
}

// SubjectKeyID adds a subject key identifier.
func (b *ExtensionsBuilder) SubjectKeyID(id []byte) *ExtensionsBuilder {
	return b.Add(SubjectKeyID(id), false)
}

// AuthorityKeyID adds an authority key identifier.
func (b *ExtensionsBuilder) AuthorityKeyID(id []byte) *ExtensionsBuilder {
	return b.Add(AuthorityKeyID(id), false)
}

// AddDNSName appends a dNSName, converting internationalized names to
// their ASCII form. A leading "*." wildcard label is kept.
func (b *ExtensionsBuilder) AddDNSName(name string) *ExtensionsBuilder {
	ascii, err := toASCII(name)
	if err != nil {
		b.fail(err)
		return b
	}
	b.san = append(b.san, DNSName(ascii))
	return b
}

// AddIP appends an iPAddress.
func (b *ExtensionsBuilder) AddIP(ip net.IP) *ExtensionsBuilder {
	if ip.To16() == nil {
		b.fail(fmt.Errorf("invalid IP address %v", ip))
		return b
	}
	b.san = append(b.san, IPName(ip))
	return b
}

// AddEmail appends an rfc822Name.
func (b *ExtensionsBuilder) AddEmail(addr string) *ExtensionsBuilder {
	b.san = append(b.san, EmailName(addr))
	return b
}

// AddURI appends a uniformResourceIdentifier.
func (b *ExtensionsBuilder) AddURI(uri string) *ExtensionsBuilder {
	b.san = append(b.san, URIName(uri))
	return b
}

// Add attaches a typed extension.
func (b *ExtensionsBuilder) Add(v ExtensionValue, critical bool) *ExtensionsBuilder {
	return b.AddExtension(NewExtensionFrom(v, critical))
}

// AddExtension attaches a prebuilt extension.
func (b *ExtensionsBuilder) AddExtension(ext Extension) *ExtensionsBuilder {
	for i, e := range b.exts {
		if e.ID == ext.ID {
			b.exts[i] = ext
			return b
		}
	}
	b.exts = append(b.exts, ext)
	return b
}

// Build returns the extensions, or the first error recorded while adding
// them.
func (b *ExtensionsBuilder) Build() (Extensions, error) {
	if b.err != nil {
		return nil, b.err
	}
	out := &ExtensionsBuilder{exts: append(Extensions(nil), b.exts...)}
	if len(b.san) > 0 {
		out.Add(SubjectAltName{Names: append([]GeneralName(nil), b.san...)}, false)
	}
	return out.exts, nil
}

func (b *ExtensionsBuilder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func toASCII(name string) (string, error) {
	prefix := ""
	if strings.HasPrefix(name, "*.") {
		prefix, name = "*.", name[2:]
	}
	ascii, err := idna.Lookup.ToASCII(name)
	if err != nil {
		return "", fmt.Errorf("invalid DNS name %q: %w", prefix+name, err)
	}
	return prefix + ascii, nil
}
