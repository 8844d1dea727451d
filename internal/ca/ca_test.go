package ca

import (
	"crypto"
	"crypto/x509"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/remiblancher/derpki/internal/cert"
	pkicrypto "github.com/remiblancher/derpki/internal/crypto"
	"github.com/remiblancher/derpki/internal/csr"
	"github.com/remiblancher/derpki/internal/oid"
	"github.com/remiblancher/derpki/internal/profile"
	"github.com/remiblancher/derpki/internal/x509util"
)

// =============================================================================
// Test Helpers
// =============================================================================

func newSigner(t *testing.T, alg pkicrypto.AlgorithmID) *pkicrypto.SoftwareSigner {
	t.Helper()
	s, err := pkicrypto.GenerateSoftwareSigner(alg)
	if err != nil {
		t.Fatalf("GenerateSoftwareSigner(%s) error = %v", alg, err)
	}
	return s
}

func newRequest(t *testing.T, alg pkicrypto.AlgorithmID, dn string, dnsNames ...string) *csr.CertificateRequest {
	t.Helper()
	b := csr.NewBuilder().Subject(x509util.MustParseName(dn))
	if len(dnsNames) > 0 {
		eb := x509util.NewExtensionsBuilder()
		for _, n := range dnsNames {
			eb.AddDNSName(n)
		}
		exts, err := eb.Build()
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		b.Extensions(exts)
	}
	req, err := b.SignWithKey(newSigner(t, alg))
	if err != nil {
		t.Fatalf("SignWithKey() error = %v", err)
	}
	return req
}

func newCA(t *testing.T, alg pkicrypto.AlgorithmID) *CA {
	t.Helper()
	signer := newSigner(t, alg)
	caCert, err := CreateCA(x509util.MustParseName("CN=Test Root,O=derpki"), signer, 24*time.Hour)
	if err != nil {
		t.Fatalf("CreateCA() error = %v", err)
	}
	c, err := New(caCert, signer)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

// =============================================================================
// CreateCA Tests
// =============================================================================

func TestU_CreateCA(t *testing.T) {
	for _, alg := range []pkicrypto.AlgorithmID{pkicrypto.AlgECDSAP256, pkicrypto.AlgEd25519, pkicrypto.AlgMLDSA65} {
		t.Run(string(alg), func(t *testing.T) {
			signer := newSigner(t, alg)
			c, err := CreateCA(x509util.MustParseName("CN=Root"), signer, 48*time.Hour)
			if err != nil {
				t.Fatalf("CreateCA() error = %v", err)
			}
			if !c.IsCA() || !c.IsSelfSigned() {
				t.Error("CA certificate must be self-signed with cA set")
			}
			if c.Issuer().CommonName() != "Root" {
				t.Errorf("issuer CN = %q", c.Issuer().CommonName())
			}
			if !c.KeyUsage().Has(x509util.KeyUsageCertSign | x509util.KeyUsageCRLSign) {
				t.Errorf("KeyUsage = %v", c.KeyUsage())
			}
			for _, id := range []string{oid.ExtBasicConstraints, oid.ExtKeyUsage} {
				ext, ok := c.Extensions().Find(id)
				if !ok || !ext.Critical {
					t.Errorf("%s must be present and critical", oid.Name(id))
				}
			}
			if got := c.NotAfter().Sub(c.NotBefore()); got != 48*time.Hour {
				t.Errorf("validity = %v", got)
			}
			if err := c.Verify(); err != nil {
				t.Errorf("Verify() error = %v", err)
			}
		})
	}
}

func TestU_CreateCA_EmptySubject(t *testing.T) {
	if _, err := CreateCA(x509util.Name{}, newSigner(t, pkicrypto.AlgEd25519), time.Hour); err == nil {
		t.Error("CreateCA() should reject an empty subject")
	}
}

func TestU_New_Mismatch(t *testing.T) {
	c := newCA(t, pkicrypto.AlgEd25519)
	if _, err := New(c.Certificate(), newSigner(t, pkicrypto.AlgEd25519)); !errors.Is(err, ErrKeyMismatch) {
		t.Errorf("New() error = %v, want ErrKeyMismatch", err)
	}
}

// =============================================================================
// Issuance Tests
// =============================================================================

func TestU_IssueServer(t *testing.T) {
	c := newCA(t, pkicrypto.AlgECDSAP256)
	req := newRequest(t, pkicrypto.AlgECDSAP256, "CN=www.example.com,O=Example", "www.example.com", "example.com")

	leaf, err := c.IssueServer(req)
	if err != nil {
		t.Fatalf("IssueServer() error = %v", err)
	}
	if leaf.IsCA() {
		t.Error("server certificate must not be a CA")
	}
	if !leaf.Subject().Equal(req.Subject()) || !leaf.Issuer().Equal(c.Certificate().Subject()) {
		t.Errorf("subject %s issuer %s", leaf.Subject(), leaf.Issuer())
	}
	if got := leaf.DNSNames(); len(got) != 2 || got[0] != "www.example.com" {
		t.Errorf("DNSNames() = %v", got)
	}
	eku, ok, _ := leaf.Extensions().ExtKeyUsage()
	if !ok || eku.Purposes[0] != oid.KeyPurposeServerAuth {
		t.Errorf("ExtKeyUsage = %+v", eku)
	}
	if err := leaf.CheckSignatureFrom(c.Certificate()); err != nil {
		t.Errorf("CheckSignatureFrom() error = %v", err)
	}
	if leaf.NotAfter().After(c.Certificate().NotAfter()) {
		t.Error("leaf must not outlive the CA")
	}

	// crypto/x509 accepts the chain.
	root, err := x509.ParseCertificate(c.Certificate().Raw())
	if err != nil {
		t.Fatalf("x509.ParseCertificate(root) error = %v", err)
	}
	stdLeaf, err := x509.ParseCertificate(leaf.Raw())
	if err != nil {
		t.Fatalf("x509.ParseCertificate(leaf) error = %v", err)
	}
	pool := x509.NewCertPool()
	pool.AddCert(root)
	if _, err := stdLeaf.Verify(x509.VerifyOptions{Roots: pool, DNSName: "example.com"}); err != nil {
		t.Errorf("x509 Verify() error = %v", err)
	}
}

func TestU_IssueServer_RequiresSAN(t *testing.T) {
	c := newCA(t, pkicrypto.AlgEd25519)
	if _, err := c.IssueServer(newRequest(t, pkicrypto.AlgEd25519, "CN=nosan")); err == nil {
		t.Error("IssueServer() should require a subjectAltName")
	}
}

func TestU_IssueClient(t *testing.T) {
	c := newCA(t, pkicrypto.AlgEd25519)
	leaf, err := c.IssueClient(newRequest(t, pkicrypto.AlgMLDSA65, "CN=alice"))
	if err != nil {
		t.Fatalf("IssueClient() error = %v", err)
	}
	eku, ok, _ := leaf.Extensions().ExtKeyUsage()
	if !ok || eku.Purposes[0] != oid.KeyPurposeClientAuth {
		t.Errorf("ExtKeyUsage = %+v", eku)
	}
	if !leaf.KeyUsage().Has(x509util.KeyUsageDigitalSignature) {
		t.Errorf("KeyUsage = %v", leaf.KeyUsage())
	}
	if err := leaf.CheckSignatureFrom(c.Certificate()); err != nil {
		t.Errorf("CheckSignatureFrom() error = %v", err)
	}
}

func TestU_Issue_RejectsTamperedRequest(t *testing.T) {
	c := newCA(t, pkicrypto.AlgEd25519)
	req := newRequest(t, pkicrypto.AlgEd25519, "CN=x", "x.example")
	raw := append([]byte(nil), req.Raw()...)
	raw[len(raw)-1] ^= 0xff
	tampered, err := csr.Parse(raw)
	if err != nil {
		t.Fatalf("csr.Parse() error = %v", err)
	}
	if _, err := c.IssueServer(tampered); !errors.Is(err, csr.ErrSignatureInvalid) {
		t.Errorf("IssueServer() error = %v, want ErrSignatureInvalid", err)
	}
}

// revokedTokenSigner holds the CA key but fails every Sign call.
type revokedTokenSigner struct {
	*pkicrypto.SoftwareSigner
}

func (revokedTokenSigner) Sign(io.Reader, []byte, crypto.SignerOpts) ([]byte, error) {
	return nil, errors.New("token removed")
}

func TestU_Issue_SignerFailure(t *testing.T) {
	base := newCA(t, pkicrypto.AlgEd25519)
	c, err := New(base.Certificate(), revokedTokenSigner{base.signer.(*pkicrypto.SoftwareSigner)})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = c.IssueServer(newRequest(t, pkicrypto.AlgEd25519, "CN=x", "x.example"))
	if !errors.Is(err, pkicrypto.ErrSigningFailure) {
		t.Errorf("IssueServer() error = %v, want ErrSigningFailure", err)
	}
}

func TestU_Issue_ExpiredCA(t *testing.T) {
	signer := newSigner(t, pkicrypto.AlgEd25519)
	spki, err := x509util.NewPublicKeyInfo(signer.Public())
	if err != nil {
		t.Fatalf("NewPublicKeyInfo() error = %v", err)
	}
	exts, err := x509util.NewExtensionsBuilder().
		MarkCA(-1).
		KeyUsage(x509util.KeyUsageCertSign).
		SubjectKeyID(spki.KeyID()).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	name := x509util.MustParseName("CN=Expired Root")
	past := time.Now().Add(-48 * time.Hour)
	caCert, err := cert.NewBuilder().
		RandomSerial().
		Subject(name).
		Issuer(name).
		Validity(past, past.Add(time.Hour)).
		PublicKeyInfo(spki).
		Extensions(exts).
		SignWithKey(signer)
	if err != nil {
		t.Fatalf("SignWithKey() error = %v", err)
	}
	c, err := New(caCert, signer)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = c.IssueServer(newRequest(t, pkicrypto.AlgEd25519, "CN=late", "late.example"))
	if !errors.Is(err, ErrCAExpired) {
		t.Errorf("IssueServer() error = %v, want ErrCAExpired", err)
	}
	if errors.Is(err, pkicrypto.ErrSigningFailure) {
		t.Errorf("an expired CA must not be reported as a signing failure: %v", err)
	}
}

func TestU_Issue_CustomProfile(t *testing.T) {
	c := newCA(t, pkicrypto.AlgEd25519)
	if err := c.SetProfile(&profile.Profile{Name: "short", Validity: time.Hour, KeyUsage: []string{"digitalSignature"}}); err != nil {
		t.Fatalf("SetProfile() error = %v", err)
	}
	leaf, err := c.IssueWithProfile(newRequest(t, pkicrypto.AlgEd25519, "CN=short"), "short")
	if err != nil {
		t.Fatalf("IssueWithProfile() error = %v", err)
	}
	if got := leaf.NotAfter().Sub(leaf.NotBefore()); got != time.Hour {
		t.Errorf("validity = %v", got)
	}
	if _, err := c.IssueWithProfile(newRequest(t, pkicrypto.AlgEd25519, "CN=x"), "missing"); err == nil {
		t.Error("unknown profile should fail")
	}
	if err := c.SetProfile(&profile.Profile{Name: "bad"}); err == nil {
		t.Error("SetProfile() should validate")
	}
}

// =============================================================================
// Store-backed CA Tests
// =============================================================================

func TestU_Initialize_LoadAndIssue(t *testing.T) {
	store := NewStore(t.TempDir())
	signer := newSigner(t, pkicrypto.AlgECDSAP256)

	created, err := Initialize(store, x509util.MustParseName("CN=Stored Root"), signer, 24*time.Hour, nil)
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if !store.Exists() {
		t.Fatal("Exists() should be true after Initialize")
	}
	if _, err := Initialize(store, x509util.MustParseName("CN=Again"), signer, time.Hour, nil); err == nil {
		t.Error("Initialize() over an existing CA should fail")
	}

	loaded, err := Load(store, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(loaded.Certificate().Raw()) != string(created.Certificate().Raw()) {
		t.Error("loaded CA certificate differs")
	}

	leaf, err := loaded.IssueServer(newRequest(t, pkicrypto.AlgECDSAP256, "CN=svc", "svc.internal"))
	if err != nil {
		t.Fatalf("IssueServer() error = %v", err)
	}
	if leaf.SerialNumber().Int64() != 1 {
		t.Errorf("serial = %v, want 1", leaf.SerialNumber())
	}
	saved, err := store.LoadCert(leaf.SerialNumber())
	if err != nil {
		t.Fatalf("LoadCert() error = %v", err)
	}
	if string(saved.Raw()) != string(leaf.Raw()) {
		t.Error("stored certificate differs")
	}

	entries, err := store.ReadIndex()
	if err != nil {
		t.Fatalf("ReadIndex() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Subject != "CN=svc" || entries[0].Status != "V" {
		t.Errorf("index = %+v", entries)
	}
}

func TestU_LoadCertificate_Errors(t *testing.T) {
	if _, err := LoadCertificate("/nonexistent/ca.crt"); err == nil {
		t.Error("LoadCertificate() of a missing file should fail")
	}
}
