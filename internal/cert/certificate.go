// Package cert models X.509 v3 certificates over the DER node tree.
//
// A Certificate is built with a Builder, signed once, and from then on is
// read-only. Parsed certificates keep every node they were decoded from, so
// Raw and TBSBytes return exactly the bytes that were parsed.
package cert

import (
	"crypto"
	"errors"
	"fmt"
	"math/big"
	"net"
	"time"

	pkicrypto "github.com/remiblancher/derpki/internal/crypto"
	"github.com/remiblancher/derpki/internal/der"
	"github.com/remiblancher/derpki/internal/x509util"
)

// ErrSignatureInvalid is returned when a certificate signature does not
// verify.
var ErrSignatureInvalid = errors.New("cert: signature verification failed")

// Certificate is a signed X.509 certificate:
//
//	Certificate ::= SEQUENCE {
//	    tbsCertificate      TBSCertificate,
//	    signatureAlgorithm  AlgorithmIdentifier,
//	    signatureValue      BIT STRING
//	}
type Certificate struct {
	raw    []byte
	rawTBS []byte
	node   *der.Sequence

	version   int
	serial    *big.Int
	sigAlg    x509util.AlgorithmIdentifier
	issuer    x509util.Name
	subject   x509util.Name
	notBefore time.Time
	notAfter  time.Time
	spki      x509util.PublicKeyInfo
	exts      x509util.Extensions
	signature []byte
}

// Parse decodes a DER certificate. The input must not be modified while
// the certificate is in use.
func Parse(b []byte) (*Certificate, error) {
	n, err := der.Parse(b)
	if err != nil {
		return nil, fmt.Errorf("certificate: %w", err)
	}
	seq, err := der.As[*der.Sequence](n)
	if err != nil {
		return nil, fmt.Errorf("certificate: %w", err)
	}
	if seq.NumChildren() != 3 {
		return nil, fmt.Errorf("certificate: %w", der.Unsupported("%d elements, want 3", seq.NumChildren()))
	}

	tbs, err := der.ChildAs[*der.Sequence](seq, 0)
	if err != nil {
		return nil, fmt.Errorf("certificate: tbsCertificate: %w", err)
	}
	c := &Certificate{raw: b, node: seq}

	// The TBS is the first element, right after the outer header.
	hdr := len(b) - seq.Len()
	c.rawTBS = b[hdr : hdr+tbs.FullLength()]

	if err := c.parseTBS(tbs); err != nil {
		return nil, fmt.Errorf("certificate: %w", err)
	}

	outer, err := x509util.AlgorithmIdentifierFromDER(seq.Child(1))
	if err != nil {
		return nil, fmt.Errorf("certificate: signatureAlgorithm: %w", err)
	}
	if !outer.Equal(c.sigAlg) {
		return nil, fmt.Errorf("certificate: %w", der.Unsupported("signature algorithm %s does not match tbsCertificate %s",
			outer.OID, c.sigAlg.OID))
	}

	sig, err := der.ChildAs[*der.BitString](seq, 2)
	if err != nil {
		return nil, fmt.Errorf("certificate: signatureValue: %w", err)
	}
	if sig.Unused() != 0 {
		return nil, fmt.Errorf("certificate: %w", der.Unsupported("signature with %d unused bits", sig.Unused()))
	}
	c.signature = sig.Data()
	return c, nil
}

func (c *Certificate) parseTBS(tbs *der.Sequence) error {
	children := tbs.Children()
	i := 0
	next := func() der.Node {
		if i >= len(children) {
			return nil
		}
		n := children[i]
		i++
		return n
	}

	// Version defaults to v1 when [0] is absent.
	c.version = 1
	if len(children) > 0 && der.IsContext(children[0], 0) {
		inner, err := der.Unwrap(next(), 0)
		if err != nil {
			return fmt.Errorf("version: %w", err)
		}
		v, err := der.As[*der.Integer](inner)
		if err != nil {
			return fmt.Errorf("version: %w", err)
		}
		n, err := v.Int64()
		if err != nil || n < 0 || n > 2 {
			return fmt.Errorf("version: %w", der.Unsupported("version %s", v))
		}
		c.version = int(n) + 1
	}

	serial, err := der.As[*der.Integer](next())
	if err != nil {
		return fmt.Errorf("serialNumber: %w", err)
	}
	c.serial = serial.BigInt()

	if c.sigAlg, err = x509util.AlgorithmIdentifierFromDER(next()); err != nil {
		return fmt.Errorf("signature: %w", err)
	}
	if c.issuer, err = x509util.NameFromDER(next()); err != nil {
		return fmt.Errorf("issuer: %w", err)
	}
	if err := c.parseValidity(next()); err != nil {
		return fmt.Errorf("validity: %w", err)
	}
	if c.subject, err = x509util.NameFromDER(next()); err != nil {
		return fmt.Errorf("subject: %w", err)
	}
	if c.spki, err = x509util.PublicKeyInfoFromDER(next()); err != nil {
		return fmt.Errorf("subjectPublicKeyInfo: %w", err)
	}

	// Optional issuerUniqueID [1] and subjectUniqueID [2] are skipped;
	// their bytes stay in the TBS node.
	for i < len(children) && (der.IsContext(children[i], 1) || der.IsContext(children[i], 2)) {
		i++
	}

	if i < len(children) && der.IsContext(children[i], 3) {
		inner, err := der.Unwrap(next(), 3)
		if err != nil {
			return fmt.Errorf("extensions: %w", err)
		}
		if c.exts, err = x509util.ExtensionsFromDER(inner); err != nil {
			return fmt.Errorf("extensions: %w", err)
		}
	}

	if i != len(children) {
		return der.Unsupported("%d unexpected elements after tbsCertificate fields", len(children)-i)
	}
	return nil
}

func (c *Certificate) parseValidity(n der.Node) error {
	seq, err := der.As[*der.Sequence](n)
	if err != nil {
		return err
	}
	if seq.NumChildren() != 2 {
		return der.Unsupported("%d elements, want 2", seq.NumChildren())
	}
	if c.notBefore, err = der.TimeOf(seq.Child(0)); err != nil {
		return fmt.Errorf("notBefore: %w", err)
	}
	if c.notAfter, err = der.TimeOf(seq.Child(1)); err != nil {
		return fmt.Errorf("notAfter: %w", err)
	}
	return nil
}

// Raw returns the complete DER encoding.
func (c *Certificate) Raw() []byte { return c.raw }

// TBSBytes returns the exact encoded tbsCertificate the signature covers.
func (c *Certificate) TBSBytes() []byte { return c.rawTBS }

// DER returns the root node of the certificate.
func (c *Certificate) DER() der.Node { return c.node }

// Version returns the X.509 version (1, 2 or 3).
func (c *Certificate) Version() int { return c.version }

// SerialNumber returns a copy of the serial number.
func (c *Certificate) SerialNumber() *big.Int { return new(big.Int).Set(c.serial) }

// SignatureAlgorithm returns the signature AlgorithmIdentifier.
func (c *Certificate) SignatureAlgorithm() x509util.AlgorithmIdentifier { return c.sigAlg }

// Issuer returns the issuer name.
func (c *Certificate) Issuer() x509util.Name { return c.issuer }

// Subject returns the subject name.
func (c *Certificate) Subject() x509util.Name { return c.subject }

// NotBefore returns the start of the validity period.
func (c *Certificate) NotBefore() time.Time { return c.notBefore }

// NotAfter returns the end of the validity period.
func (c *Certificate) NotAfter() time.Time { return c.notAfter }

// PublicKeyInfo returns the subject public key info.
func (c *Certificate) PublicKeyInfo() x509util.PublicKeyInfo { return c.spki }

// PublicKey returns the subject public key as a Go key value.
func (c *Certificate) PublicKey() (crypto.PublicKey, error) { return c.spki.PublicKey() }

// Extensions returns the v3 extensions in encoded order.
func (c *Certificate) Extensions() x509util.Extensions {
	return append(x509util.Extensions(nil), c.exts...)
}

// Signature returns the signature octets.
func (c *Certificate) Signature() []byte { return c.signature }

// IsCA reports whether BasicConstraints marks the subject as a CA.
func (c *Certificate) IsCA() bool {
	bc, ok, err := c.exts.BasicConstraints()
	return ok && err == nil && bc.CA
}

// KeyUsage returns the key usage bits, or zero when the extension is absent.
func (c *Certificate) KeyUsage() x509util.KeyUsage {
	ku, _, _ := c.exts.KeyUsage()
	return ku
}

// DNSNames returns the dNSName entries of the subject alternative name.
func (c *Certificate) DNSNames() []string {
	san, _, _ := c.exts.SubjectAltName()
	return san.DNSNames()
}

// IPAddresses returns the iPAddress entries of the subject alternative name.
func (c *Certificate) IPAddresses() []net.IP {
	san, _, _ := c.exts.SubjectAltName()
	return san.IPAddresses()
}

// IsSelfSigned reports whether issuer and subject are the same name.
func (c *Certificate) IsSelfSigned() bool { return c.issuer.Equal(c.subject) }

// Verify checks the signature with the certificate's own public key.
func (c *Certificate) Verify() error {
	return c.verifyWith(c.spki)
}

// CheckSignatureFrom checks that parent issued c: the issuer name must
// match the parent subject and the signature must verify under the
// parent's public key.
func (c *Certificate) CheckSignatureFrom(parent *Certificate) error {
	if parent == nil {
		return fmt.Errorf("parent certificate is nil")
	}
	if !c.issuer.Equal(parent.subject) {
		return fmt.Errorf("issuer %q does not match parent subject %q", c.issuer, parent.subject)
	}
	return c.verifyWith(parent.spki)
}

func (c *Certificate) verifyWith(spki x509util.PublicKeyInfo) error {
	pub, err := spki.PublicKey()
	if err != nil {
		return fmt.Errorf("failed to decode public key: %w", err)
	}
	alg, err := pkicrypto.AlgorithmFromSignatureOID(c.sigAlg.OID, pub)
	if err != nil {
		return err
	}
	if !pkicrypto.Verify(alg, pub, c.rawTBS, c.signature) {
		return fmt.Errorf("%w (%s)", ErrSignatureInvalid, alg)
	}
	return nil
}
