// Package pkcs12 reads PKCS#12 (PFX) key stores for inspection.
//
// Only the unencrypted structure is decoded: the AuthenticatedSafe, its
// data ContentInfos and their SafeBags. encryptedData and envelopedData
// content is kept opaque. There is no write path and no MAC or password
// handling.
package pkcs12

import (
	"fmt"
	"unicode/utf16"

	"github.com/remiblancher/derpki/internal/cert"
	"github.com/remiblancher/derpki/internal/der"
	"github.com/remiblancher/derpki/internal/oid"
	"github.com/remiblancher/derpki/internal/x509util"
)

// tagBMPString is the universal BMPString tag used by friendlyName.
const tagBMPString byte = 0x1E

// KeyStore is a decoded PFX:
//
//	PFX ::= SEQUENCE {
//	    version   INTEGER {v3(3)},
//	    authSafe  ContentInfo,
//	    macData   MacData OPTIONAL
//	}
type KeyStore struct {
	Version int

	// AuthSafe is the outer ContentInfo, normally of type data.
	AuthSafe ContentInfo

	// Contents is the AuthenticatedSafe carried by AuthSafe.
	Contents []ContentInfo

	// MacData is nil when the PFX has no integrity MAC.
	MacData *MacData

	node der.Node
}

// ContentInfo is a PKCS#7 ContentInfo:
//
//	ContentInfo ::= SEQUENCE {
//	    contentType  OBJECT IDENTIFIER,
//	    content      [0] EXPLICIT ANY DEFINED BY contentType OPTIONAL
//	}
type ContentInfo struct {
	ContentType string

	// Content is the node inside [0], or nil when absent.
	Content der.Node

	// Bags holds the SafeContents of a data ContentInfo. It is empty for
	// opaque content types.
	Bags []SafeBag

	node der.Node
}

// SafeBag is one entry of a SafeContents:
//
//	SafeBag ::= SEQUENCE {
//	    bagId          OBJECT IDENTIFIER,
//	    bagValue       [0] EXPLICIT ANY DEFINED BY bagId,
//	    bagAttributes  SET OF PKCS12Attribute OPTIONAL
//	}
type SafeBag struct {
	BagID string

	// Value is the node inside [0].
	Value der.Node

	// Inner is the DER parsed from Value when Value is an OCTET STRING that
	// wraps an encoding, and nil otherwise.
	Inner der.Node

	Attributes []Attribute

	// Cert is set for certBag entries.
	Cert *CertBag

	// Nested holds the bags of a safeContentsBag.
	Nested []SafeBag

	node der.Node
}

// CertBag carries a certificate:
//
//	CertBag ::= SEQUENCE {
//	    certId     BAG-TYPE.&id,
//	    certValue  [0] EXPLICIT BAG-TYPE.&Type
//	}
type CertBag struct {
	CertType string

	// Certificate is the certificate DER for x509Certificate bags, or the
	// raw octets otherwise.
	Certificate []byte
}

// Attribute is a bag attribute.
type Attribute struct {
	Type   string
	Values []der.Node
}

// MacData is the PFX integrity MAC:
//
//	MacData ::= SEQUENCE {
//	    mac         DigestInfo,
//	    macSalt     OCTET STRING,
//	    iterations  INTEGER DEFAULT 1
//	}
type MacData struct {
	Algorithm  x509util.AlgorithmIdentifier
	Digest     []byte
	Salt       []byte
	Iterations int
}

// Parse decodes a DER PFX.
func Parse(b []byte) (*KeyStore, error) {
	n, err := der.Parse(b)
	if err != nil {
		return nil, fmt.Errorf("pfx: %w", err)
	}
	seq, err := der.As[*der.Sequence](n)
	if err != nil {
		return nil, fmt.Errorf("pfx: %w", err)
	}
	if seq.NumChildren() < 2 || seq.NumChildren() > 3 {
		return nil, fmt.Errorf("pfx: %w", der.Unsupported("%d elements", seq.NumChildren()))
	}

	version, err := der.ChildAs[*der.Integer](seq, 0)
	if err != nil {
		return nil, fmt.Errorf("pfx version: %w", err)
	}
	v, err := version.Int64()
	if err != nil {
		return nil, fmt.Errorf("pfx version: %w", err)
	}
	ks := &KeyStore{Version: int(v), node: seq}

	if ks.AuthSafe, err = parseContentInfo(seq.Child(1), false); err != nil {
		return nil, fmt.Errorf("pfx authSafe: %w", err)
	}
	if ks.AuthSafe.ContentType == oid.PKCS7Data {
		data, err := der.As[*der.OctetString](ks.AuthSafe.Content)
		if err != nil {
			return nil, fmt.Errorf("pfx authSafe: %w", err)
		}
		if ks.Contents, err = parseAuthenticatedSafe(data.Bytes()); err != nil {
			return nil, fmt.Errorf("pfx authSafe: %w", err)
		}
	}

	if seq.NumChildren() == 3 {
		mac, err := parseMacData(seq.Child(2))
		if err != nil {
			return nil, fmt.Errorf("pfx macData: %w", err)
		}
		ks.MacData = mac
	}
	return ks, nil
}

func parseAuthenticatedSafe(b []byte) ([]ContentInfo, error) {
	n, err := der.Parse(b)
	if err != nil {
		return nil, err
	}
	seq, err := der.As[*der.Sequence](n)
	if err != nil {
		return nil, err
	}
	infos := make([]ContentInfo, 0, seq.NumChildren())
	for i, child := range seq.Children() {
		ci, err := parseContentInfo(child, true)
		if err != nil {
			return nil, fmt.Errorf("content info %d: %w", i, err)
		}
		infos = append(infos, ci)
	}
	return infos, nil
}

// parseContentInfo decodes a ContentInfo. With bags set, the content of a
// data ContentInfo is decoded as SafeContents.
func parseContentInfo(n der.Node, bags bool) (ContentInfo, error) {
	seq, err := der.As[*der.Sequence](n)
	if err != nil {
		return ContentInfo{}, err
	}
	if seq.NumChildren() < 1 || seq.NumChildren() > 2 {
		return ContentInfo{}, der.Unsupported("content info with %d elements", seq.NumChildren())
	}
	typ, err := der.ChildAs[*der.ObjectIdentifier](seq, 0)
	if err != nil {
		return ContentInfo{}, err
	}
	ci := ContentInfo{ContentType: typ.String(), node: seq}
	if seq.NumChildren() == 1 {
		return ci, nil
	}
	if ci.Content, err = der.Unwrap(seq.Child(1), 0); err != nil {
		return ContentInfo{}, fmt.Errorf("%s content: %w", typ.Name(), err)
	}

	if bags && ci.ContentType == oid.PKCS7Data {
		data, err := der.As[*der.OctetString](ci.Content)
		if err != nil {
			return ContentInfo{}, fmt.Errorf("data content: %w", err)
		}
		contents, err := der.Parse(data.Bytes())
		if err != nil {
			return ContentInfo{}, fmt.Errorf("safe contents: %w", err)
		}
		if ci.Bags, err = parseSafeContents(contents); err != nil {
			return ContentInfo{}, err
		}
	}
	return ci, nil
}

func parseSafeContents(n der.Node) ([]SafeBag, error) {
	seq, err := der.As[*der.Sequence](n)
	if err != nil {
		return nil, fmt.Errorf("safe contents: %w", err)
	}
	bags := make([]SafeBag, 0, seq.NumChildren())
	for i, child := range seq.Children() {
		bag, err := parseSafeBag(child)
		if err != nil {
			return nil, fmt.Errorf("safe bag %d: %w", i, err)
		}
		bags = append(bags, bag)
	}
	return bags, nil
}

func parseSafeBag(n der.Node) (SafeBag, error) {
	seq, err := der.As[*der.Sequence](n)
	if err != nil {
		return SafeBag{}, err
	}
	if seq.NumChildren() < 2 || seq.NumChildren() > 3 {
		return SafeBag{}, der.Unsupported("%d elements", seq.NumChildren())
	}
	id, err := der.ChildAs[*der.ObjectIdentifier](seq, 0)
	if err != nil {
		return SafeBag{}, err
	}
	bag := SafeBag{BagID: id.String(), node: seq}
	if bag.Value, err = der.Unwrap(seq.Child(1), 0); err != nil {
		return SafeBag{}, fmt.Errorf("%s value: %w", id.Name(), err)
	}
	if octets, ok := bag.Value.(*der.OctetString); ok {
		if inner, err := der.Parse(octets.Bytes()); err == nil {
			bag.Inner = inner
		}
	}

	switch bag.BagID {
	case oid.PKCS12CertBag:
		cb, err := parseCertBag(bag.Value)
		if err != nil {
			return SafeBag{}, fmt.Errorf("certBag: %w", err)
		}
		bag.Cert = &cb
	case oid.PKCS12SafeContentsBag:
		if bag.Nested, err = parseSafeContents(bag.Value); err != nil {
			return SafeBag{}, fmt.Errorf("safeContentsBag: %w", err)
		}
	}

	if seq.NumChildren() == 3 {
		if bag.Attributes, err = parseAttributes(seq.Child(2)); err != nil {
			return SafeBag{}, fmt.Errorf("%s attributes: %w", id.Name(), err)
		}
	}
	return bag, nil
}

func parseCertBag(n der.Node) (CertBag, error) {
	seq, err := der.As[*der.Sequence](n)
	if err != nil {
		return CertBag{}, err
	}
	if seq.NumChildren() != 2 {
		return CertBag{}, der.Unsupported("%d elements, want 2", seq.NumChildren())
	}
	id, err := der.ChildAs[*der.ObjectIdentifier](seq, 0)
	if err != nil {
		return CertBag{}, err
	}
	value, err := der.Unwrap(seq.Child(1), 0)
	if err != nil {
		return CertBag{}, err
	}
	octets, err := der.As[*der.OctetString](value)
	if err != nil {
		return CertBag{}, err
	}
	return CertBag{CertType: id.String(), Certificate: octets.Bytes()}, nil
}

func parseAttributes(n der.Node) ([]Attribute, error) {
	set, err := der.As[*der.Set](n)
	if err != nil {
		return nil, err
	}
	attrs := make([]Attribute, 0, set.NumChildren())
	for _, child := range set.Children() {
		seq, err := der.As[*der.Sequence](child)
		if err != nil {
			return nil, err
		}
		typ, err := der.ChildAs[*der.ObjectIdentifier](seq, 0)
		if err != nil {
			return nil, err
		}
		values, err := der.ChildAs[*der.Set](seq, 1)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", typ.Name(), err)
		}
		attrs = append(attrs, Attribute{Type: typ.String(), Values: values.Children()})
	}
	return attrs, nil
}

func parseMacData(n der.Node) (*MacData, error) {
	seq, err := der.As[*der.Sequence](n)
	if err != nil {
		return nil, err
	}
	if seq.NumChildren() < 2 || seq.NumChildren() > 3 {
		return nil, der.Unsupported("%d elements", seq.NumChildren())
	}
	digestInfo, err := der.ChildAs[*der.Sequence](seq, 0)
	if err != nil {
		return nil, fmt.Errorf("mac: %w", err)
	}
	alg, err := x509util.AlgorithmIdentifierFromDER(digestInfo.Child(0))
	if err != nil {
		return nil, fmt.Errorf("mac: %w", err)
	}
	digest, err := der.ChildAs[*der.OctetString](digestInfo, 1)
	if err != nil {
		return nil, fmt.Errorf("mac digest: %w", err)
	}
	salt, err := der.ChildAs[*der.OctetString](seq, 1)
	if err != nil {
		return nil, fmt.Errorf("macSalt: %w", err)
	}

	mac := &MacData{Algorithm: alg, Digest: digest.Bytes(), Salt: salt.Bytes(), Iterations: 1}
	if seq.NumChildren() == 3 {
		iter, err := der.ChildAs[*der.Integer](seq, 2)
		if err != nil {
			return nil, fmt.Errorf("iterations: %w", err)
		}
		v, err := iter.Int64()
		if err != nil || v < 1 {
			return nil, der.Unsupported("iterations %s", iter)
		}
		mac.Iterations = int(v)
	}
	return mac, nil
}

// DER returns the PFX root node.
func (k *KeyStore) DER() der.Node { return k.node }

// Bags returns every SafeBag in the data ContentInfos, with the contents of
// safeContentsBag entries flattened in place.
func (k *KeyStore) Bags() []SafeBag {
	var out []SafeBag
	var walk func(bags []SafeBag)
	walk = func(bags []SafeBag) {
		for _, b := range bags {
			out = append(out, b)
			walk(b.Nested)
		}
	}
	for _, ci := range k.Contents {
		walk(ci.Bags)
	}
	return out
}

// Certificates parses the x509Certificate bags.
func (k *KeyStore) Certificates() ([]*cert.Certificate, error) {
	var certs []*cert.Certificate
	for _, b := range k.Bags() {
		if b.Cert == nil || b.Cert.CertType != oid.PKCS9X509Certificate {
			continue
		}
		c, err := cert.Parse(b.Cert.Certificate)
		if err != nil {
			return nil, fmt.Errorf("certBag %q: %w", b.FriendlyName(), err)
		}
		certs = append(certs, c)
	}
	return certs, nil
}

// DER returns the SafeBag node.
func (b SafeBag) DER() der.Node { return b.node }

// Name returns the registered bag type name.
func (b SafeBag) Name() string { return oid.Name(b.BagID) }

// Attribute returns the first attribute of the given type.
func (b SafeBag) Attribute(attrType string) (Attribute, bool) {
	for _, a := range b.Attributes {
		if a.Type == attrType {
			return a, true
		}
	}
	return Attribute{}, false
}

// FriendlyName returns the friendlyName attribute, or "" when absent.
func (b SafeBag) FriendlyName() string {
	a, ok := b.Attribute(oid.PKCS9FriendlyName)
	if !ok || len(a.Values) == 0 {
		return ""
	}
	return decodeText(a.Values[0])
}

// LocalKeyID returns the localKeyID attribute, or nil when absent.
func (b SafeBag) LocalKeyID() []byte {
	a, ok := b.Attribute(oid.PKCS9LocalKeyID)
	if !ok || len(a.Values) == 0 {
		return nil
	}
	octets, ok := a.Values[0].(*der.OctetString)
	if !ok {
		return nil
	}
	return octets.Bytes()
}

// Name returns the registered content type name.
func (c ContentInfo) Name() string { return oid.Name(c.ContentType) }

// IsOpaque reports whether the content was kept without decoding.
func (c ContentInfo) IsOpaque() bool { return c.ContentType != oid.PKCS7Data }

// decodeText returns the text of a BMPString or character string node.
func decodeText(n der.Node) string {
	if s, ok := n.(*der.String); ok {
		return s.String()
	}
	b := n.Bytes()
	if n.Tag() != tagBMPString || len(b)%2 != 0 {
		return der.HexSummary(b)
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = uint16(b[2*i])<<8 | uint16(b[2*i+1])
	}
	return string(utf16.Decode(units))
}

// BMPString encodes s as a BMPString node, the form friendlyName uses.
func BMPString(s string) der.Node {
	units := utf16.Encode([]rune(s))
	b := make([]byte, 0, 2*len(units))
	for _, u := range units {
		b = append(b, byte(u>>8), byte(u))
	}
	return der.NewRaw(tagBMPString, b)
}
