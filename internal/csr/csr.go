// Package csr models PKCS#10 certification requests over the DER node
// tree.
package csr

import (
	"crypto"
	"crypto/rand"
	"errors"
	"fmt"

	pkicrypto "github.com/remiblancher/derpki/internal/crypto"
	"github.com/remiblancher/derpki/internal/der"
	"github.com/remiblancher/derpki/internal/oid"
	"github.com/remiblancher/derpki/internal/x509util"
)

var (
	// ErrBuilderSpent is returned by every Builder method once the builder
	// has produced a signed request.
	ErrBuilderSpent = errors.New("csr: builder already signed")

	// ErrSignatureInvalid is returned when the self-signature does not
	// verify.
	ErrSignatureInvalid = errors.New("csr: signature verification failed")
)

// CertificateRequest is a signed PKCS#10 request:
//
//	CertificationRequest ::= SEQUENCE {
//	    certificationRequestInfo  CertificationRequestInfo,
//	    signatureAlgorithm        AlgorithmIdentifier,
//	    signature                 BIT STRING
//	}
//
//	CertificationRequestInfo ::= SEQUENCE {
//	    version        INTEGER { v1(0) },
//	    subject        Name,
//	    subjectPKInfo  SubjectPublicKeyInfo,
//	    attributes     [0] IMPLICIT SET OF Attribute
//	}
type CertificateRequest struct {
	raw     []byte
	rawInfo []byte
	node    *der.Sequence

	subject   x509util.Name
	spki      x509util.PublicKeyInfo
	attrs     []Attribute
	sigAlg    x509util.AlgorithmIdentifier
	signature []byte
}

// Parse decodes a DER certification request. The input must not be
// modified while the request is in use.
func Parse(b []byte) (*CertificateRequest, error) {
	n, err := der.Parse(b)
	if err != nil {
		return nil, fmt.Errorf("certification request: %w", err)
	}
	seq, err := der.As[*der.Sequence](n)
	if err != nil {
		return nil, fmt.Errorf("certification request: %w", err)
	}
	if seq.NumChildren() != 3 {
		return nil, fmt.Errorf("certification request: %w", der.Unsupported("%d elements, want 3", seq.NumChildren()))
	}

	info, err := der.ChildAs[*der.Sequence](seq, 0)
	if err != nil {
		return nil, fmt.Errorf("certification request info: %w", err)
	}
	r := &CertificateRequest{raw: b, node: seq}
	hdr := len(b) - seq.Len()
	r.rawInfo = b[hdr : hdr+info.FullLength()]

	if err := r.parseInfo(info); err != nil {
		return nil, fmt.Errorf("certification request info: %w", err)
	}

	if r.sigAlg, err = x509util.AlgorithmIdentifierFromDER(seq.Child(1)); err != nil {
		return nil, fmt.Errorf("certification request: signatureAlgorithm: %w", err)
	}
	sig, err := der.ChildAs[*der.BitString](seq, 2)
	if err != nil {
		return nil, fmt.Errorf("certification request: signature: %w", err)
	}
	if sig.Unused() != 0 {
		return nil, fmt.Errorf("certification request: %w", der.Unsupported("signature with %d unused bits", sig.Unused()))
	}
	r.signature = sig.Data()
	return r, nil
}

func (r *CertificateRequest) parseInfo(info *der.Sequence) error {
	if info.NumChildren() < 3 || info.NumChildren() > 4 {
		return der.Unsupported("%d elements", info.NumChildren())
	}
	version, err := der.ChildAs[*der.Integer](info, 0)
	if err != nil {
		return fmt.Errorf("version: %w", err)
	}
	if version.Sign() != 0 {
		return der.Unsupported("version %s, want 0", version)
	}
	if r.subject, err = x509util.NameFromDER(info.Child(1)); err != nil {
		return fmt.Errorf("subject: %w", err)
	}
	if r.spki, err = x509util.PublicKeyInfoFromDER(info.Child(2)); err != nil {
		return fmt.Errorf("subjectPKInfo: %w", err)
	}

	// Some encoders drop an empty [0]; accept it missing.
	if info.NumChildren() == 3 {
		return nil
	}
	attrs, err := der.As[*der.ContextSpecific](info.Child(3))
	if err != nil || attrs.Number() != 0 || !attrs.IsConstructed() {
		return der.Unsupported("attributes must be [0] IMPLICIT SET OF Attribute")
	}
	nodes, err := attrs.Children()
	if err != nil {
		return fmt.Errorf("attributes: %w", err)
	}
	for _, n := range nodes {
		a, err := AttributeFromDER(n)
		if err != nil {
			return err
		}
		r.attrs = append(r.attrs, a)
	}
	return nil
}

// Raw returns the complete DER encoding.
func (r *CertificateRequest) Raw() []byte { return r.raw }

// InfoBytes returns the exact encoded certificationRequestInfo the
// signature covers.
func (r *CertificateRequest) InfoBytes() []byte { return r.rawInfo }

// DER returns the root node.
func (r *CertificateRequest) DER() der.Node { return r.node }

// Subject returns the requested subject name.
func (r *CertificateRequest) Subject() x509util.Name { return r.subject }

// PublicKeyInfo returns the subject public key info.
func (r *CertificateRequest) PublicKeyInfo() x509util.PublicKeyInfo { return r.spki }

// PublicKey returns the subject public key as a Go key value.
func (r *CertificateRequest) PublicKey() (crypto.PublicKey, error) { return r.spki.PublicKey() }

// Attributes returns every attribute, including ones of unknown type.
func (r *CertificateRequest) Attributes() []Attribute {
	return append([]Attribute(nil), r.attrs...)
}

// Attribute returns the first attribute of the given type.
func (r *CertificateRequest) Attribute(attrType string) (Attribute, bool) {
	for _, a := range r.attrs {
		if a.Type == attrType {
			return a, true
		}
	}
	return Attribute{}, false
}

// Extensions returns the extensions carried in the extensionRequest
// attribute, or nil when there is none. A malformed extensionRequest
// yields ErrUnsupportedStructure.
func (r *CertificateRequest) Extensions() (x509util.Extensions, error) {
	a, ok := r.Attribute(oid.PKCS9ExtensionRequest)
	if !ok {
		return nil, nil
	}
	return extensionsFromAttribute(a)
}

// DNSNames returns the dNSName entries of a requested subject alternative
// name.
func (r *CertificateRequest) DNSNames() []string {
	exts, err := r.Extensions()
	if err != nil {
		return nil
	}
	san, _, _ := exts.SubjectAltName()
	return san.DNSNames()
}

// SignatureAlgorithm returns the signature AlgorithmIdentifier.
func (r *CertificateRequest) SignatureAlgorithm() x509util.AlgorithmIdentifier { return r.sigAlg }

// Signature returns the signature octets.
func (r *CertificateRequest) Signature() []byte { return r.signature }

// Verify checks the self-signature with the enclosed public key.
func (r *CertificateRequest) Verify() error {
	pub, err := r.spki.PublicKey()
	if err != nil {
		return fmt.Errorf("failed to decode public key: %w", err)
	}
	alg, err := pkicrypto.AlgorithmFromSignatureOID(r.sigAlg.OID, pub)
	if err != nil {
		return err
	}
	if !pkicrypto.Verify(alg, pub, r.rawInfo, r.signature) {
		return fmt.Errorf("%w (%s)", ErrSignatureInvalid, alg)
	}
	return nil
}

// Builder assembles a CertificationRequestInfo and signs it. It is consumed
// by a successful SignWithKey.
type Builder struct {
	subject x509util.Name
	spki    *x509util.PublicKeyInfo
	exts    x509util.Extensions
	attrs   []Attribute

	err   error
	spent bool
}

// NewBuilder returns an empty request builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Subject sets the requested subject name.
func (b *Builder) Subject(name x509util.Name) *Builder {
	if b.usable() {
		b.subject = name
	}
	return b
}

// PublicKey sets the public key. When unset, SignWithKey uses the
// signer's public key.
func (b *Builder) PublicKey(pub crypto.PublicKey) *Builder {
	if !b.usable() {
		return b
	}
	spki, err := x509util.NewPublicKeyInfo(pub)
	if err != nil {
		b.fail(err)
		return b
	}
	b.spki = &spki
	return b
}

// Extensions sets the extensions sent in the extensionRequest attribute.
func (b *Builder) Extensions(exts x509util.Extensions) *Builder {
	if b.usable() {
		b.exts = append(x509util.Extensions(nil), exts...)
	}
	return b
}

// AddAttribute appends an attribute other than extensionRequest.
func (b *Builder) AddAttribute(a Attribute) *Builder {
	if !b.usable() {
		return b
	}
	if a.DER() == nil {
		b.fail(fmt.Errorf("attribute is empty"))
		return b
	}
	if a.Type == oid.PKCS9ExtensionRequest {
		b.fail(fmt.Errorf("use Extensions to set extensionRequest"))
		return b
	}
	b.attrs = append(b.attrs, a)
	return b
}

// Err returns the first error recorded by a setter.
func (b *Builder) Err() error {
	if b.spent {
		return ErrBuilderSpent
	}
	return b.err
}

// SignWithKey signs the request with signer. A signer error comes back
// wrapped in crypto.ErrSigningFailure and the builder stays usable.
func (b *Builder) SignWithKey(signer pkicrypto.Signer) (*CertificateRequest, error) {
	if err := b.Err(); err != nil {
		return nil, err
	}
	if signer == nil {
		return nil, fmt.Errorf("signer is nil")
	}

	spki := b.spki
	if spki == nil {
		own, err := x509util.NewPublicKeyInfo(signer.Public())
		if err != nil {
			return nil, err
		}
		spki = &own
	}
	sigAlg, err := x509util.SignatureAlgorithm(signer.Algorithm().SignatureOID())
	if err != nil {
		return nil, fmt.Errorf("signature algorithm for %s: %w", signer.Algorithm(), err)
	}

	attrNodes := make([]der.Node, 0, len(b.attrs)+1)
	if len(b.exts) > 0 {
		attrNodes = append(attrNodes, ExtensionRequest(b.exts).DER())
	}
	for _, a := range b.attrs {
		attrNodes = append(attrNodes, a.DER())
	}
	// [0] IMPLICIT SET OF: the SET content under a context tag, always
	// present even when empty.
	attrSet := der.NewSetOf(attrNodes...)
	attrs := der.NewContextSpecific(der.ContextTag(0, true), attrSet.Bytes())

	info := der.NewSequence(der.NewInt64(0), b.subject.DER(), spki.DER(), attrs)
	infoDER := der.Encode(info)

	signature, err := pkicrypto.SignMessage(rand.Reader, signer, infoDER)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pkicrypto.ErrSigningFailure, err)
	}

	reqDER := der.Encode(der.NewSequence(info, sigAlg.DER(), der.NewBitStringBytes(signature)))
	r, err := Parse(reqDER)
	if err != nil {
		return nil, fmt.Errorf("failed to re-parse signed request: %w", err)
	}
	b.spent = true
	return r, nil
}

func (b *Builder) usable() bool {
	return !b.spent && b.err == nil
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}
