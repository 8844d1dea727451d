package cert

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"io"
	"math/big"
	"os"
	"testing"
	"time"

	pkicrypto "github.com/remiblancher/derpki/internal/crypto"
	"github.com/remiblancher/derpki/internal/der"
	"github.com/remiblancher/derpki/internal/oid"
	"github.com/remiblancher/derpki/internal/pemutil"
	"github.com/remiblancher/derpki/internal/x509util"
)

// =============================================================================
// Test Helpers
// =============================================================================

func newSigner(t *testing.T, alg pkicrypto.AlgorithmID) *pkicrypto.SoftwareSigner {
	t.Helper()
	signer, err := pkicrypto.GenerateSoftwareSigner(alg)
	if err != nil {
		t.Fatalf("GenerateSoftwareSigner(%s) failed: %v", alg, err)
	}
	return signer
}

func caExtensions(t *testing.T, pub crypto.PublicKey) x509util.Extensions {
	t.Helper()
	spki, err := x509util.NewPublicKeyInfo(pub)
	if err != nil {
		t.Fatalf("NewPublicKeyInfo failed: %v", err)
	}
	exts, err := x509util.NewExtensionsBuilder().
		MarkCA(-1).
		KeyUsage(x509util.KeyUsageCertSign | x509util.KeyUsageCRLSign).
		SubjectKeyID(spki.KeyID()).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return exts
}

func selfSigned(t *testing.T, signer pkicrypto.Signer, dn string) *Certificate {
	t.Helper()
	name := x509util.MustParseName(dn)
	now := time.Now().UTC().Truncate(time.Second)
	c, err := NewBuilder().
		RandomSerial().
		Subject(name).
		Issuer(name).
		Validity(now, now.AddDate(10, 0, 0)).
		PublicKey(signer.Public()).
		Extensions(caExtensions(t, signer.Public())).
		SignWithKey(signer)
	if err != nil {
		t.Fatalf("SignWithKey failed: %v", err)
	}
	return c
}

// failingSigner reports err from every Sign call.
type failingSigner struct {
	pub crypto.PublicKey
	err error
}

func (f *failingSigner) Public() crypto.PublicKey         { return f.pub }
func (f *failingSigner) Algorithm() pkicrypto.AlgorithmID { return pkicrypto.AlgEd25519 }

func (f *failingSigner) Sign(io.Reader, []byte, crypto.SignerOpts) ([]byte, error) {
	return nil, f.err
}

// =============================================================================
// Self-Signed CA Tests
// =============================================================================

func TestSelfSignedCA_RoundTrip(t *testing.T) {
	algs := []pkicrypto.AlgorithmID{
		pkicrypto.AlgRSA2048,
		pkicrypto.AlgECDSAP256,
		pkicrypto.AlgEd25519,
		pkicrypto.AlgMLDSA65,
	}

	for _, alg := range algs {
		t.Run(string(alg), func(t *testing.T) {
			signer := newSigner(t, alg)
			c := selfSigned(t, signer, "CN=Test Root CA,O=Example,C=FR")

			parsed, err := Parse(c.Raw())
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if !bytes.Equal(der.Encode(parsed.DER()), c.Raw()) {
				t.Error("re-encoding differs from the signed bytes")
			}
			if parsed.Version() != 3 {
				t.Errorf("Version() = %d, want 3", parsed.Version())
			}
			if got := parsed.Issuer().CommonName(); got != "Test Root CA" {
				t.Errorf("issuer CN = %q", got)
			}
			if !parsed.IsCA() {
				t.Error("IsCA() = false")
			}
			if !parsed.KeyUsage().Has(x509util.KeyUsageCertSign) {
				t.Errorf("KeyUsage() = %v, want keyCertSign", parsed.KeyUsage())
			}
			if !parsed.IsSelfSigned() {
				t.Error("IsSelfSigned() = false")
			}
			if parsed.SignatureAlgorithm().OID != alg.SignatureOID() {
				t.Errorf("signature OID = %s, want %s", parsed.SignatureAlgorithm().OID, alg.SignatureOID())
			}
			if err := parsed.Verify(); err != nil {
				t.Errorf("Verify failed: %v", err)
			}
			if err := parsed.CheckSignatureFrom(parsed); err != nil {
				t.Errorf("CheckSignatureFrom failed: %v", err)
			}
		})
	}
}

func TestSelfSignedCA_CryptoX509(t *testing.T) {
	for _, alg := range []pkicrypto.AlgorithmID{pkicrypto.AlgRSA2048, pkicrypto.AlgECDSAP256, pkicrypto.AlgEd25519} {
		t.Run(string(alg), func(t *testing.T) {
			c := selfSigned(t, newSigner(t, alg), "CN=Interop CA,O=Example")

			std, err := x509.ParseCertificate(c.Raw())
			if err != nil {
				t.Fatalf("x509.ParseCertificate failed: %v", err)
			}
			if std.Subject.CommonName != "Interop CA" {
				t.Errorf("CommonName = %q", std.Subject.CommonName)
			}
			if !std.IsCA || !std.BasicConstraintsValid {
				t.Error("crypto/x509 does not see a CA")
			}
			if std.SerialNumber.Cmp(c.SerialNumber()) != 0 {
				t.Errorf("serial = %v, want %v", std.SerialNumber, c.SerialNumber())
			}
			if !std.NotAfter.Equal(c.NotAfter()) {
				t.Errorf("NotAfter = %v, want %v", std.NotAfter, c.NotAfter())
			}
			if err := std.CheckSignatureFrom(std); err != nil {
				t.Errorf("crypto/x509 signature check failed: %v", err)
			}
			if !bytes.Equal(std.RawTBSCertificate, c.TBSBytes()) {
				t.Error("TBS bytes differ from crypto/x509")
			}
		})
	}
}

// =============================================================================
// Issued Certificate Tests
// =============================================================================

func TestBuilder_IssuedByCA(t *testing.T) {
	caSigner := newSigner(t, pkicrypto.AlgEd25519)
	ca := selfSigned(t, caSigner, "CN=Issuing CA")
	leafSigner := newSigner(t, pkicrypto.AlgMLDSA65)

	exts, err := x509util.NewExtensionsBuilder().
		KeyUsage(x509util.KeyUsageDigitalSignature).
		ExtKeyUsage("serverAuth").
		AuthorityKeyID(ca.Extensions().SubjectKeyID()).
		AddDNSName("www.example.com").
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	now := time.Now()
	leaf, err := NewBuilder().
		SerialNumber(big.NewInt(42)).
		Issuer(ca.Subject()).
		Subject(x509util.MustParseName("CN=www.example.com")).
		Validity(now, now.Add(24*time.Hour)).
		PublicKey(leafSigner.Public()).
		Extensions(exts).
		SignWithKey(caSigner)
	if err != nil {
		t.Fatalf("SignWithKey failed: %v", err)
	}

	if err := leaf.CheckSignatureFrom(ca); err != nil {
		t.Errorf("CheckSignatureFrom(ca) failed: %v", err)
	}
	if err := leaf.Verify(); err == nil {
		t.Error("Verify with the leaf key should fail")
	}
	if leaf.IsCA() {
		t.Error("leaf IsCA() = true")
	}
	if got := leaf.DNSNames(); len(got) != 1 || got[0] != "www.example.com" {
		t.Errorf("DNSNames() = %v", got)
	}
	if leaf.SerialNumber().Int64() != 42 {
		t.Errorf("serial = %v", leaf.SerialNumber())
	}
	if leaf.PublicKeyInfo().Algorithm.OID != oid.MLDSA65 {
		t.Errorf("key algorithm = %s", leaf.PublicKeyInfo().Algorithm.OID)
	}

	other := selfSigned(t, caSigner, "CN=Other CA")
	if err := leaf.CheckSignatureFrom(other); err == nil {
		t.Error("CheckSignatureFrom should fail on issuer mismatch")
	}
}

func TestBuilder_ValidityAfter2049(t *testing.T) {
	signer := newSigner(t, pkicrypto.AlgEd25519)
	name := x509util.MustParseName("CN=Long Lived")
	notBefore := time.Date(2049, 12, 31, 23, 59, 59, 0, time.UTC)
	notAfter := time.Date(2051, 6, 1, 0, 0, 0, 0, time.UTC)

	c, err := NewBuilder().RandomSerial().Subject(name).Issuer(name).
		Validity(notBefore, notAfter).PublicKey(signer.Public()).SignWithKey(signer)
	if err != nil {
		t.Fatalf("SignWithKey failed: %v", err)
	}
	if !c.NotBefore().Equal(notBefore) || !c.NotAfter().Equal(notAfter) {
		t.Errorf("validity = %v .. %v", c.NotBefore(), c.NotAfter())
	}

	std, err := x509.ParseCertificate(c.Raw())
	if err != nil {
		t.Fatalf("x509.ParseCertificate failed: %v", err)
	}
	if !std.NotAfter.Equal(notAfter) {
		t.Errorf("crypto/x509 NotAfter = %v", std.NotAfter)
	}
}

// =============================================================================
// Builder Lifecycle Tests
// =============================================================================

func TestBuilder_SpentAfterSign(t *testing.T) {
	signer := newSigner(t, pkicrypto.AlgEd25519)
	name := x509util.MustParseName("CN=Once")
	now := time.Now()

	b := NewBuilder().RandomSerial().Subject(name).Issuer(name).
		Validity(now, now.Add(time.Hour)).PublicKey(signer.Public())
	if _, err := b.SignWithKey(signer); err != nil {
		t.Fatalf("SignWithKey failed: %v", err)
	}

	if _, err := b.SignWithKey(signer); !errors.Is(err, ErrBuilderSpent) {
		t.Errorf("second SignWithKey error = %v, want ErrBuilderSpent", err)
	}
	if err := b.Subject(x509util.MustParseName("CN=Twice")).Err(); !errors.Is(err, ErrBuilderSpent) {
		t.Errorf("setter after sign error = %v, want ErrBuilderSpent", err)
	}
}

func TestBuilder_SignerErrorWrapped(t *testing.T) {
	signer := newSigner(t, pkicrypto.AlgEd25519)
	cause := errors.New("token removed")
	name := x509util.MustParseName("CN=Fails")
	now := time.Now()

	b := NewBuilder().RandomSerial().Subject(name).Issuer(name).
		Validity(now, now.Add(time.Hour)).PublicKey(signer.Public())

	_, err := b.SignWithKey(&failingSigner{pub: signer.Public(), err: cause})
	if !errors.Is(err, cause) || !errors.Is(err, pkicrypto.ErrSigningFailure) {
		t.Fatalf("error = %v, want the signer error wrapped as ErrSigningFailure", err)
	}
	if b.Err() != nil {
		t.Errorf("builder unusable after a failed sign: %v", b.Err())
	}
	if _, err := b.SignWithKey(signer); err != nil {
		t.Errorf("retry with a working signer failed: %v", err)
	}
}

func TestBuilder_ValidationNotSigningFailure(t *testing.T) {
	signer := newSigner(t, pkicrypto.AlgEd25519)
	name := x509util.MustParseName("CN=Backwards")
	now := time.Now()

	_, err := NewBuilder().RandomSerial().Subject(name).Issuer(name).
		Validity(now, now.Add(-time.Hour)).PublicKey(signer.Public()).
		SignWithKey(signer)
	if err == nil {
		t.Fatal("expected error for notAfter before notBefore")
	}
	if errors.Is(err, pkicrypto.ErrSigningFailure) {
		t.Errorf("validation error reported as a signing failure: %v", err)
	}
}

func TestBuilder_Validation(t *testing.T) {
	signer := newSigner(t, pkicrypto.AlgEd25519)
	name := x509util.MustParseName("CN=Invalid")
	now := time.Now()

	tests := []struct {
		name  string
		build func() *Builder
	}{
		{"notBefore after notAfter", func() *Builder {
			return NewBuilder().RandomSerial().Subject(name).Issuer(name).
				Validity(now, now.Add(-time.Hour)).PublicKey(signer.Public())
		}},
		{"zero serial", func() *Builder {
			return NewBuilder().SerialNumber(big.NewInt(0)).Subject(name).Issuer(name).
				Validity(now, now.Add(time.Hour)).PublicKey(signer.Public())
		}},
		{"negative serial", func() *Builder {
			return NewBuilder().SerialNumber(big.NewInt(-5)).Subject(name).Issuer(name).
				Validity(now, now.Add(time.Hour)).PublicKey(signer.Public())
		}},
		{"missing serial", func() *Builder {
			return NewBuilder().Subject(name).Issuer(name).
				Validity(now, now.Add(time.Hour)).PublicKey(signer.Public())
		}},
		{"missing public key", func() *Builder {
			return NewBuilder().RandomSerial().Subject(name).Issuer(name).
				Validity(now, now.Add(time.Hour))
		}},
		{"missing validity", func() *Builder {
			return NewBuilder().RandomSerial().Subject(name).Issuer(name).PublicKey(signer.Public())
		}},
		{"unsupported key", func() *Builder {
			return NewBuilder().RandomSerial().Subject(name).Issuer(name).
				Validity(now, now.Add(time.Hour)).PublicKey("not a key")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.build().SignWithKey(signer); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRandomSerialNumber(t *testing.T) {
	a, err := RandomSerialNumber()
	if err != nil {
		t.Fatalf("RandomSerialNumber failed: %v", err)
	}
	b, _ := RandomSerialNumber()
	if a.Sign() <= 0 || a.BitLen() > 128 {
		t.Errorf("serial %v out of range", a)
	}
	if a.Cmp(b) == 0 {
		t.Error("two random serials are equal")
	}
}

// =============================================================================
// Parse Tests
// =============================================================================

func loadGoogle(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/www.google.com.pem")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	raw, _, err := pemutil.ToDER(data, pemutil.LabelCertificate)
	if err != nil {
		t.Fatalf("ToDER failed: %v", err)
	}
	return raw
}

func TestParse_GoogleLeaf(t *testing.T) {
	raw := loadGoogle(t)

	c, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !bytes.Equal(der.Encode(c.DER()), raw) {
		t.Fatal("re-encoding is not byte-identical")
	}

	if got := c.SerialNumber().Text(16); got != "8b270e1ec0aacb550904c364ee3d1544" {
		t.Errorf("serial = %s", got)
	}
	if got := c.Issuer().String(); got != "CN=WR2,O=Google Trust Services,C=US" {
		t.Errorf("issuer = %q", got)
	}
	if got := c.Subject().CommonName(); got != "www.google.com" {
		t.Errorf("subject CN = %q", got)
	}
	if got := c.SignatureAlgorithm().OID; got != oid.SHA256WithRSAEncryption {
		t.Errorf("signature algorithm = %s", got)
	}
	if got := c.PublicKeyInfo().Algorithm.OID; got != oid.ECPublicKey {
		t.Errorf("key algorithm = %s", got)
	}
	wantNotAfter := time.Date(2026, 2, 16, 8, 41, 4, 0, time.UTC)
	if !c.NotAfter().Equal(wantNotAfter) {
		t.Errorf("NotAfter = %v, want %v", c.NotAfter(), wantNotAfter)
	}
	if got := c.DNSNames(); len(got) != 1 || got[0] != "www.google.com" {
		t.Errorf("DNSNames() = %v", got)
	}
	if c.IsCA() {
		t.Error("IsCA() = true")
	}
	if c.KeyUsage() != x509util.KeyUsageDigitalSignature {
		t.Errorf("KeyUsage() = %v", c.KeyUsage())
	}
	if got := hex.EncodeToString(c.Extensions().SubjectKeyID()); got != "1fe39cba51b59ee2cd9ae3e699a83db638425a26" {
		t.Errorf("SubjectKeyID = %s", got)
	}
	if len(c.Extensions()) != 10 {
		t.Errorf("len(Extensions()) = %d, want 10", len(c.Extensions()))
	}

	pub, err := c.PublicKey()
	if err != nil {
		t.Fatalf("PublicKey failed: %v", err)
	}
	if ec, ok := pub.(*ecdsa.PublicKey); !ok || ec.Curve != elliptic.P256() {
		t.Errorf("PublicKey() = %T", pub)
	}

	std, err := x509.ParseCertificate(raw)
	if err != nil {
		t.Fatalf("x509.ParseCertificate failed: %v", err)
	}
	if !bytes.Equal(std.RawTBSCertificate, c.TBSBytes()) {
		t.Error("TBS bytes differ from crypto/x509")
	}
	if !bytes.Equal(std.Signature, c.Signature()) {
		t.Error("signature differs from crypto/x509")
	}
}

func TestParse_GitHubLeaf(t *testing.T) {
	// testdata/github.com.pem holds the leaf followed by its issuing CA,
	// both encoded by OpenSSL.
	data, err := os.ReadFile("testdata/github.com.pem")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	blocks, err := pemutil.DecodeAll(data)
	if err != nil {
		t.Fatalf("DecodeAll failed: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("got %d PEM blocks, want 2", len(blocks))
	}
	leafDER, caDER := blocks[0].Bytes, blocks[1].Bytes

	leaf, err := Parse(leafDER)
	if err != nil {
		t.Fatalf("Parse(leaf) failed: %v", err)
	}
	ca, err := Parse(caDER)
	if err != nil {
		t.Fatalf("Parse(ca) failed: %v", err)
	}
	if !bytes.Equal(der.Encode(leaf.DER()), leafDER) {
		t.Error("re-encoding is not byte-identical")
	}

	if got := leaf.Subject().Organization(); got != "GitHub, Inc." {
		t.Errorf("Organization = %q", got)
	}
	if got := leaf.Subject().CommonName(); got != "github.com" {
		t.Errorf("subject CN = %q", got)
	}
	if got := leaf.DNSNames(); len(got) != 2 || got[0] != "github.com" || got[1] != "www.github.com" {
		t.Errorf("DNSNames() = %v", got)
	}
	if got := leaf.SerialNumber().Text(16); got != "e8bf3770d92d196f0bb61f93c4166be" {
		t.Errorf("serial = %s", got)
	}
	if got := leaf.Issuer().CommonName(); got != "derpki Fixture TLS CA" {
		t.Errorf("issuer CN = %q", got)
	}
	if got := leaf.SignatureAlgorithm().OID; got != oid.SHA256WithRSAEncryption {
		t.Errorf("signature algorithm = %s", got)
	}
	if got := leaf.PublicKeyInfo().Algorithm.OID; got != oid.ECPublicKey {
		t.Errorf("key algorithm = %s", got)
	}
	if leaf.IsCA() || leaf.KeyUsage() != x509util.KeyUsageDigitalSignature {
		t.Errorf("IsCA() = %v, KeyUsage() = %v", leaf.IsCA(), leaf.KeyUsage())
	}
	eku, ok, err := leaf.Extensions().ExtKeyUsage()
	if err != nil || !ok || len(eku.Purposes) != 2 || eku.Purposes[0] != oid.KeyPurposeServerAuth {
		t.Errorf("ExtKeyUsage() = %v, %v, %v", eku, ok, err)
	}
	if got := hex.EncodeToString(leaf.Extensions().SubjectKeyID()); got != "d2184c381668e4f079a376e067bca1e2ebafb99a" {
		t.Errorf("SubjectKeyID = %s", got)
	}
	if len(leaf.Extensions()) != 9 {
		t.Errorf("len(Extensions()) = %d, want 9", len(leaf.Extensions()))
	}

	std, err := x509.ParseCertificate(leafDER)
	if err != nil {
		t.Fatalf("x509.ParseCertificate failed: %v", err)
	}
	if !bytes.Equal(std.RawTBSCertificate, leaf.TBSBytes()) {
		t.Error("TBS bytes differ from crypto/x509")
	}
	if !bytes.Equal(std.AuthorityKeyId, ca.Extensions().SubjectKeyID()) {
		t.Errorf("authority key ID %x does not name the CA key %x", std.AuthorityKeyId, ca.Extensions().SubjectKeyID())
	}

	if err := leaf.CheckSignatureFrom(ca); err != nil {
		t.Errorf("CheckSignatureFrom failed: %v", err)
	}
	if err := ca.Verify(); err != nil {
		t.Errorf("ca.Verify failed: %v", err)
	}
	if !ca.IsCA() {
		t.Error("issuer must be a CA")
	}
}

func TestParse_TamperedSignature(t *testing.T) {
	c := selfSigned(t, newSigner(t, pkicrypto.AlgEd25519), "CN=Tamper")
	raw := append([]byte(nil), c.Raw()...)
	raw[len(raw)-1] ^= 0xFF

	tampered, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if err := tampered.Verify(); !errors.Is(err, ErrSignatureInvalid) {
		t.Errorf("Verify error = %v, want ErrSignatureInvalid", err)
	}
}

func TestParse_Errors(t *testing.T) {
	c := selfSigned(t, newSigner(t, pkicrypto.AlgEd25519), "CN=Errors")
	seq := c.DER().(*der.Sequence)
	rsaAlg, _ := x509util.SignatureAlgorithm(oid.SHA256WithRSAEncryption)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, der.ErrMalformedEncoding},
		{"truncated", c.Raw()[:len(c.Raw())-10], der.ErrMalformedEncoding},
		{"not a sequence", der.Encode(der.NewNull()), der.ErrUnsupportedStructure},
		{"two elements", der.Encode(der.NewSequence(seq.Child(0), seq.Child(1))), der.ErrUnsupportedStructure},
		{"algorithm mismatch", der.Encode(der.NewSequence(seq.Child(0), rsaAlg.DER(), seq.Child(2))), der.ErrUnsupportedStructure},
		{"tbs not a sequence", der.Encode(der.NewSequence(der.NewNull(), seq.Child(1), seq.Child(2))), der.ErrUnsupportedStructure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse error = %v, want %v", err, tt.want)
			}
		})
	}
}
