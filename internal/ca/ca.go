// Package ca signs certificates: it creates self-signed roots and issues
// server and client certificates from PKCS#10 requests under an issuance
// profile.
package ca

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/remiblancher/derpki/internal/audit"
	"github.com/remiblancher/derpki/internal/cert"
	pkicrypto "github.com/remiblancher/derpki/internal/crypto"
	"github.com/remiblancher/derpki/internal/csr"
	"github.com/remiblancher/derpki/internal/der"
	"github.com/remiblancher/derpki/internal/profile"
	"github.com/remiblancher/derpki/internal/x509util"
)

var (
	// ErrKeyMismatch is returned when the signer does not hold the key of
	// the CA certificate.
	ErrKeyMismatch = errors.New("ca: signer does not match CA certificate")

	// ErrNotCA is returned when the certificate cannot issue others.
	ErrNotCA = errors.New("ca: certificate is not a CA")

	// ErrCAExpired is returned when the CA certificate no longer covers the
	// start of the issued validity window.
	ErrCAExpired = errors.New("ca: certificate has expired")
)

// Profile names used by IssueServer and IssueClient.
const (
	ProfileServer = "server"
	ProfileClient = "client"
	ProfileCA     = "ca"
)

// CreateCA returns a self-signed CA certificate for subject, valid from now
// for validity. Basic constraints (cA) and key usage (keyCertSign, cRLSign)
// are critical; the serial number is random.
func CreateCA(subject x509util.Name, signer pkicrypto.Signer, validity time.Duration) (*cert.Certificate, error) {
	if subject.IsEmpty() {
		return nil, fmt.Errorf("CA subject is required")
	}
	p, err := profile.Load(ProfileCA)
	if err != nil {
		return nil, err
	}
	if validity > 0 {
		withValidity := *p
		withValidity.Validity = validity
		p = &withValidity
	}

	spki, err := x509util.NewPublicKeyInfo(signer.Public())
	if err != nil {
		return nil, err
	}
	exts, err := p.Extensions(spki.KeyID(), nil, nil)
	if err != nil {
		return nil, err
	}
	notBefore, notAfter := p.Window(time.Now())
	return cert.NewBuilder().
		RandomSerial().
		Subject(subject).
		Issuer(subject).
		Validity(notBefore, notAfter).
		PublicKeyInfo(spki).
		Extensions(exts).
		SignWithKey(signer)
}

// CA issues certificates with a loaded CA certificate and signer. A CA
// without a store uses random serial numbers and keeps nothing on disk.
type CA struct {
	cert     *cert.Certificate
	signer   pkicrypto.Signer
	store    *Store
	profiles map[string]*profile.Profile
}

// New returns a CA over caCert and signer after checking that they belong
// together.
func New(caCert *cert.Certificate, signer pkicrypto.Signer) (*CA, error) {
	if !caCert.IsCA() {
		return nil, ErrNotCA
	}
	own, err := x509util.NewPublicKeyInfo(signer.Public())
	if err != nil {
		return nil, err
	}
	if !der.Equal(own.DER(), caCert.PublicKeyInfo().DER()) {
		return nil, ErrKeyMismatch
	}
	return &CA{cert: caCert, signer: signer, profiles: map[string]*profile.Profile{}}, nil
}

// Initialize creates a CA in store: the directory layout, a self-signed
// certificate and its private key.
func Initialize(store *Store, subject x509util.Name, signer *pkicrypto.SoftwareSigner, validity time.Duration, passphrase []byte) (*CA, error) {
	if store.Exists() {
		return nil, fmt.Errorf("CA already exists at %s", store.BasePath())
	}
	if err := store.Init(); err != nil {
		return nil, err
	}
	caCert, err := CreateCA(subject, signer, validity)
	if err != nil {
		_ = audit.LogCACreated(store.BasePath(), subject.String(), string(signer.Algorithm()), false)
		return nil, fmt.Errorf("failed to create CA certificate: %w", err)
	}
	if err := signer.SavePrivateKey(store.CAKeyPath(), passphrase); err != nil {
		return nil, fmt.Errorf("failed to save CA key: %w", err)
	}
	if err := store.SaveCACert(caCert); err != nil {
		return nil, err
	}
	if err := audit.LogCACreated(store.BasePath(), subject.String(), string(signer.Algorithm()), true); err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}

	c, err := New(caCert, signer)
	if err != nil {
		return nil, err
	}
	c.store = store
	return c, nil
}

// Load opens the CA in store, reading its key with passphrase.
func Load(store *Store, passphrase []byte) (*CA, error) {
	caCert, err := store.LoadCACert()
	if err != nil {
		_ = audit.LogCALoaded(store.BasePath(), "", false)
		return nil, err
	}
	signer, err := pkicrypto.LoadPrivateKey(store.CAKeyPath(), passphrase)
	if err != nil {
		_ = audit.LogKeyAccessed(store.CAKeyPath(), false, err.Error())
		return nil, err
	}
	if err := audit.LogKeyAccessed(store.CAKeyPath(), true, ""); err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}
	c, err := New(caCert, signer)
	if err != nil {
		_ = audit.LogCALoaded(store.BasePath(), caCert.Subject().String(), false)
		return nil, err
	}
	if err := audit.LogCALoaded(store.BasePath(), caCert.Subject().String(), true); err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}
	c.store = store
	return c, nil
}

// Certificate returns the CA certificate.
func (c *CA) Certificate() *cert.Certificate { return c.cert }

// Store returns the backing store, or nil.
func (c *CA) Store() *Store { return c.store }

// SetProfile registers p, replacing a builtin or earlier profile of the
// same name.
func (c *CA) SetProfile(p *profile.Profile) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("profile %s: %w", p.Name, err)
	}
	c.profiles[p.Name] = p
	return nil
}

// Profile resolves name against registered profiles, then files and
// builtins.
func (c *CA) Profile(name string) (*profile.Profile, error) {
	if p, ok := c.profiles[name]; ok {
		return p, nil
	}
	return profile.Load(name)
}

// IssueServer issues a TLS server certificate for req.
func (c *CA) IssueServer(req *csr.CertificateRequest) (*cert.Certificate, error) {
	return c.IssueWithProfile(req, ProfileServer)
}

// IssueClient issues a TLS client certificate for req.
func (c *CA) IssueClient(req *csr.CertificateRequest) (*cert.Certificate, error) {
	return c.IssueWithProfile(req, ProfileClient)
}

// IssueWithProfile verifies the self-signature of req and issues a
// certificate carrying its subject and public key under the named profile.
func (c *CA) IssueWithProfile(req *csr.CertificateRequest, profileName string) (*cert.Certificate, error) {
	p, err := c.Profile(profileName)
	if err != nil {
		return nil, err
	}
	issued, err := c.issue(req, p)
	if err != nil {
		_ = audit.LogCertSigned(c.path(), "", req.Subject().String(), p.Name, string(c.signer.Algorithm()), false)
		return nil, err
	}
	if err := audit.LogCertSigned(c.path(), serialHex(issued.SerialNumber()), issued.Subject().String(),
		p.Name, string(c.signer.Algorithm()), true); err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}
	return issued, nil
}

func (c *CA) issue(req *csr.CertificateRequest, p *profile.Profile) (*cert.Certificate, error) {
	if err := req.Verify(); err != nil {
		return nil, fmt.Errorf("certification request: %w", err)
	}
	if req.Subject().IsEmpty() {
		return nil, fmt.Errorf("certification request has an empty subject")
	}
	requested, err := req.Extensions()
	if err != nil {
		return nil, fmt.Errorf("certification request: %w", err)
	}

	spki := req.PublicKeyInfo()
	exts, err := p.Extensions(spki.KeyID(), c.keyID(), requested)
	if err != nil {
		return nil, err
	}
	serial, err := c.nextSerial()
	if err != nil {
		return nil, err
	}

	notBefore, notAfter := p.Window(time.Now())
	caEnd := c.cert.NotAfter()
	if !caEnd.After(notBefore) {
		return nil, fmt.Errorf("%w: notAfter %s", ErrCAExpired, caEnd.UTC().Format(time.RFC3339))
	}
	if notAfter.After(caEnd) {
		notAfter = caEnd
	}
	issued, err := cert.NewBuilder().
		SerialNumber(serial).
		Issuer(c.cert.Subject()).
		Subject(req.Subject()).
		Validity(notBefore, notAfter).
		PublicKeyInfo(spki).
		Extensions(exts).
		SignWithKey(c.signer)
	if err != nil {
		return nil, fmt.Errorf("failed to issue certificate: %w", err)
	}
	if c.store != nil {
		if err := c.store.SaveCert(issued); err != nil {
			return nil, err
		}
	}
	return issued, nil
}

// keyID is the CA subject key identifier, or one derived from its key.
func (c *CA) keyID() []byte {
	if id := c.cert.Extensions().SubjectKeyID(); len(id) > 0 {
		return id
	}
	return c.cert.PublicKeyInfo().KeyID()
}

func (c *CA) nextSerial() (*big.Int, error) {
	if c.store == nil {
		return cert.RandomSerialNumber()
	}
	return c.store.NextSerial()
}

func (c *CA) path() string {
	if c.store == nil {
		return ""
	}
	return c.store.BasePath()
}
