package cert

import (
	"crypto"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	pkicrypto "github.com/remiblancher/derpki/internal/crypto"
	"github.com/remiblancher/derpki/internal/der"
	"github.com/remiblancher/derpki/internal/x509util"
)

// ErrBuilderSpent is returned by every Builder method once the builder has
// produced a signed certificate.
var ErrBuilderSpent = errors.New("cert: builder already signed")

// Builder assembles a TBSCertificate and signs it. A Builder is owned by a
// single goroutine and is consumed by a successful SignWithKey.
//
// Example:
//
//	c, err := cert.NewBuilder().
//	    RandomSerial().
//	    Subject(subject).
//	    Issuer(issuer).
//	    Validity(notBefore, notAfter).
//	    PublicKey(pub).
//	    Extensions(exts).
//	    SignWithKey(signer)
type Builder struct {
	serial    *big.Int
	issuer    x509util.Name
	subject   x509util.Name
	notBefore time.Time
	notAfter  time.Time
	spki      *x509util.PublicKeyInfo
	exts      x509util.Extensions

	err   error
	spent bool
}

// NewBuilder returns an empty certificate builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// SerialNumber sets the serial number. It must be positive.
func (b *Builder) SerialNumber(serial *big.Int) *Builder {
	if !b.usable() {
		return b
	}
	if serial == nil || serial.Sign() <= 0 {
		b.fail(fmt.Errorf("serial number must be positive"))
		return b
	}
	b.serial = new(big.Int).Set(serial)
	return b
}

// RandomSerial sets a random 128-bit positive serial number.
func (b *Builder) RandomSerial() *Builder {
	if !b.usable() {
		return b
	}
	serial, err := RandomSerialNumber()
	if err != nil {
		b.fail(err)
		return b
	}
	b.serial = serial
	return b
}

// Issuer sets the issuer name.
func (b *Builder) Issuer(name x509util.Name) *Builder {
	if b.usable() {
		b.issuer = name
	}
	return b
}

// Subject sets the subject name.
func (b *Builder) Subject(name x509util.Name) *Builder {
	if b.usable() {
		b.subject = name
	}
	return b
}

// Validity sets the validity period. notBefore must not be after notAfter.
func (b *Builder) Validity(notBefore, notAfter time.Time) *Builder {
	if b.usable() {
		b.notBefore = notBefore
		b.notAfter = notAfter
	}
	return b
}

// PublicKey sets the subject public key.
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

// PublicKeyInfo sets an already encoded subject public key info, for
// example one copied from a CSR.
func (b *Builder) PublicKeyInfo(spki x509util.PublicKeyInfo) *Builder {
	if !b.usable() {
		return b
	}
	if spki.DER() == nil {
		b.fail(fmt.Errorf("public key info is empty"))
		return b
	}
	b.spki = &spki
	return b
}

// Extensions sets the v3 extensions.
func (b *Builder) Extensions(exts x509util.Extensions) *Builder {
	if b.usable() {
		b.exts = append(x509util.Extensions(nil), exts...)
	}
	return b
}

// Err returns the first error recorded by a setter.
func (b *Builder) Err() error {
	if b.spent {
		return ErrBuilderSpent
	}
	return b.err
}

// TBS returns the TBSCertificate node that SignWithKey would sign with the
// given signature algorithm.
func (b *Builder) TBS(sigAlg x509util.AlgorithmIdentifier) (der.Node, error) {
	if err := b.Err(); err != nil {
		return nil, err
	}
	if err := b.validate(); err != nil {
		return nil, err
	}

	validity := der.NewSequence(der.NewTime(b.notBefore), der.NewTime(b.notAfter))
	children := []der.Node{
		der.NewExplicit(0, der.NewInt64(2)), // v3
		der.NewInteger(b.serial),
		sigAlg.DER(),
		b.issuer.DER(),
		validity,
		b.subject.DER(),
		b.spki.DER(),
	}
	if len(b.exts) > 0 {
		children = append(children, der.NewExplicit(3, b.exts.DER()))
	}
	return der.NewSequence(children...), nil
}

// SignWithKey fills the signature algorithm from signer, signs the encoded
// TBSCertificate and returns the certificate. A signer error comes back
// wrapped in crypto.ErrSigningFailure and the builder stays usable; other
// errors are validation failures. After a successful call the builder is
// spent.
func (b *Builder) SignWithKey(signer pkicrypto.Signer) (*Certificate, error) {
	if err := b.Err(); err != nil {
		return nil, err
	}
	if signer == nil {
		return nil, fmt.Errorf("signer is nil")
	}

	sigAlg, err := x509util.SignatureAlgorithm(signer.Algorithm().SignatureOID())
	if err != nil {
		return nil, fmt.Errorf("signature algorithm for %s: %w", signer.Algorithm(), err)
	}
	tbs, err := b.TBS(sigAlg)
	if err != nil {
		return nil, err
	}
	tbsDER := der.Encode(tbs)

	signature, err := pkicrypto.SignMessage(rand.Reader, signer, tbsDER)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pkicrypto.ErrSigningFailure, err)
	}

	certDER := der.Encode(der.NewSequence(tbs, sigAlg.DER(), der.NewBitStringBytes(signature)))
	c, err := Parse(certDER)
	if err != nil {
		return nil, fmt.Errorf("failed to re-parse signed certificate: %w", err)
	}
	b.spent = true
	return c, nil
}

func (b *Builder) validate() error {
	if b.serial == nil {
		return fmt.Errorf("serial number is required")
	}
	if b.spki == nil {
		return fmt.Errorf("public key is required")
	}
	if b.notBefore.IsZero() || b.notAfter.IsZero() {
		return fmt.Errorf("validity period is required")
	}
	if b.notBefore.After(b.notAfter) {
		return fmt.Errorf("notBefore %s is after notAfter %s",
			b.notBefore.UTC().Format(time.RFC3339), b.notAfter.UTC().Format(time.RFC3339))
	}
	return nil
}

func (b *Builder) usable() bool {
	if b.spent {
		return false
	}
	return b.err == nil
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// RandomSerialNumber returns a random positive serial number of at most
// 128 bits.
func RandomSerialNumber() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	for {
		serial, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to generate serial number: %w", err)
		}
		if serial.Sign() > 0 {
			return serial, nil
		}
	}
}
