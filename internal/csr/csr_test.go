package csr

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"io"
	"testing"

	pkicrypto "github.com/remiblancher/derpki/internal/crypto"
	"github.com/remiblancher/derpki/internal/der"
	"github.com/remiblancher/derpki/internal/oid"
	"github.com/remiblancher/derpki/internal/x509util"
)

func newSigner(t *testing.T, alg pkicrypto.AlgorithmID) *pkicrypto.SoftwareSigner {
	t.Helper()
	signer, err := pkicrypto.GenerateSoftwareSigner(alg)
	if err != nil {
		t.Fatalf("GenerateSoftwareSigner(%s) failed: %v", alg, err)
	}
	return signer
}

func sanExtensions(t *testing.T, names ...string) x509util.Extensions {
	t.Helper()
	b := x509util.NewExtensionsBuilder()
	for _, n := range names {
		b.AddDNSName(n)
	}
	exts, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return exts
}

// =============================================================================
// Round-Trip Tests
// =============================================================================

func TestCSR_RoundTripWithDNSSAN(t *testing.T) {
	algs := []pkicrypto.AlgorithmID{
		pkicrypto.AlgRSA2048,
		pkicrypto.AlgECDSAP256,
		pkicrypto.AlgEd25519,
		pkicrypto.AlgMLDSA65,
	}

	for _, alg := range algs {
		t.Run(string(alg), func(t *testing.T) {
			signer := newSigner(t, alg)
			subject := x509util.MustParseName("CN=www.example.com,O=Example Org,C=FR")

			req, err := NewBuilder().
				Subject(subject).
				Extensions(sanExtensions(t, "www.example.com", "example.com")).
				SignWithKey(signer)
			if err != nil {
				t.Fatalf("SignWithKey failed: %v", err)
			}

			parsed, err := Parse(req.Raw())
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if !bytes.Equal(der.Encode(parsed.DER()), req.Raw()) {
				t.Error("re-encoding differs from the signed bytes")
			}
			if !parsed.Subject().Equal(subject) {
				t.Errorf("Subject() = %s, want %s", parsed.Subject(), subject)
			}

			want, _ := x509util.NewPublicKeyInfo(signer.Public())
			if !der.Equal(parsed.PublicKeyInfo().DER(), want.DER()) {
				t.Error("public key differs from the signer's")
			}
			if got := parsed.DNSNames(); len(got) != 2 || got[0] != "www.example.com" || got[1] != "example.com" {
				t.Errorf("DNSNames() = %v", got)
			}
			if err := parsed.Verify(); err != nil {
				t.Errorf("Verify failed: %v", err)
			}
		})
	}
}

func TestCSR_CryptoX509Accepts(t *testing.T) {
	for _, alg := range []pkicrypto.AlgorithmID{pkicrypto.AlgRSA2048, pkicrypto.AlgECDSAP256, pkicrypto.AlgEd25519} {
		t.Run(string(alg), func(t *testing.T) {
			req, err := NewBuilder().
				Subject(x509util.MustParseName("CN=interop.example.com")).
				Extensions(sanExtensions(t, "interop.example.com")).
				SignWithKey(newSigner(t, alg))
			if err != nil {
				t.Fatalf("SignWithKey failed: %v", err)
			}

			std, err := x509.ParseCertificateRequest(req.Raw())
			if err != nil {
				t.Fatalf("x509.ParseCertificateRequest failed: %v", err)
			}
			if err := std.CheckSignature(); err != nil {
				t.Errorf("crypto/x509 signature check failed: %v", err)
			}
			if !bytes.Equal(req.InfoBytes(), std.RawTBSCertificateRequest) {
				t.Error("InfoBytes() differs from the signed request info")
			}
			if std.Subject.CommonName != "interop.example.com" {
				t.Errorf("CommonName = %q", std.Subject.CommonName)
			}
			if len(std.DNSNames) != 1 || std.DNSNames[0] != "interop.example.com" {
				t.Errorf("DNSNames = %v", std.DNSNames)
			}
		})
	}
}

func TestParse_CryptoX509Request(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	tmpl := &x509.CertificateRequest{
		Subject:        pkix.Name{CommonName: "go.example.com", Organization: []string{"Gophers"}},
		DNSNames:       []string{"go.example.com"},
		EmailAddresses: []string{"admin@example.com"},
	}
	raw, err := x509.CreateCertificateRequest(rand.Reader, tmpl, key)
	if err != nil {
		t.Fatalf("CreateCertificateRequest failed: %v", err)
	}

	req, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !bytes.Equal(der.Encode(req.DER()), raw) {
		t.Error("re-encoding is not byte-identical")
	}
	if got := req.Subject().Organization(); got != "Gophers" {
		t.Errorf("Organization = %q", got)
	}
	exts, err := req.Extensions()
	if err != nil {
		t.Fatalf("Extensions failed: %v", err)
	}
	san, ok, err := exts.SubjectAltName()
	if err != nil || !ok {
		t.Fatalf("SubjectAltName() = %v, %v", ok, err)
	}
	if got := san.EmailAddresses(); len(got) != 1 || got[0] != "admin@example.com" {
		t.Errorf("EmailAddresses() = %v", got)
	}
	if err := req.Verify(); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
}

// =============================================================================
// Attribute Tests
// =============================================================================

func TestCSR_EmptyAttributesAlwaysEncoded(t *testing.T) {
	req, err := NewBuilder().
		Subject(x509util.MustParseName("CN=bare")).
		SignWithKey(newSigner(t, pkicrypto.AlgEd25519))
	if err != nil {
		t.Fatalf("SignWithKey failed: %v", err)
	}

	info := req.DER().(*der.Sequence).Child(0).(*der.Sequence)
	if info.NumChildren() != 4 {
		t.Fatalf("info has %d elements, want 4", info.NumChildren())
	}
	attrs := info.Child(3)
	if attrs.Tag() != 0xA0 || attrs.Len() != 0 {
		t.Errorf("attributes = tag %#x len %d, want empty [0]", attrs.Tag(), attrs.Len())
	}

	exts, err := req.Extensions()
	if err != nil || exts != nil {
		t.Errorf("Extensions() = %v, %v", exts, err)
	}
	if len(req.Attributes()) != 0 {
		t.Errorf("Attributes() = %v", req.Attributes())
	}
}

func TestCSR_UnknownAttributeRetained(t *testing.T) {
	custom, err := NewAttribute("1.3.6.1.4.1.99999.1", der.NewNull())
	if err != nil {
		t.Fatalf("NewAttribute failed: %v", err)
	}
	pw, err := ChallengePassword("s3cret")
	if err != nil {
		t.Fatalf("ChallengePassword failed: %v", err)
	}

	req, err := NewBuilder().
		Subject(x509util.MustParseName("CN=attrs")).
		Extensions(sanExtensions(t, "attrs.example.com")).
		AddAttribute(custom).
		AddAttribute(pw).
		SignWithKey(newSigner(t, pkicrypto.AlgEd25519))
	if err != nil {
		t.Fatalf("SignWithKey failed: %v", err)
	}

	parsed, err := Parse(req.Raw())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(parsed.Attributes()) != 3 {
		t.Fatalf("len(Attributes()) = %d, want 3", len(parsed.Attributes()))
	}
	got, ok := parsed.Attribute("1.3.6.1.4.1.99999.1")
	if !ok || len(got.Values) != 1 || got.Values[0].Tag() != der.TagNull {
		t.Errorf("unknown attribute = %+v, %v", got, ok)
	}
	if a, ok := parsed.Attribute(oid.PKCS9ChallengePassword); !ok || a.String() != "s3cret" {
		t.Errorf("challengePassword = %v, %v", a, ok)
	}
	if got := parsed.DNSNames(); len(got) != 1 {
		t.Errorf("DNSNames() = %v", got)
	}
	if err := parsed.Verify(); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
}

func TestCSR_MalformedExtensionRequest(t *testing.T) {
	signer := newSigner(t, pkicrypto.AlgEd25519)
	spki, _ := x509util.NewPublicKeyInfo(signer.Public())
	bogus, _ := NewAttribute(oid.PKCS9ExtensionRequest, der.NewInt64(7))
	attrs := der.NewContextSpecific(der.ContextTag(0, true), der.Encode(bogus.DER()))
	info := der.NewSequence(der.NewInt64(0), x509util.MustParseName("CN=bad").DER(), spki.DER(), attrs)
	alg, _ := x509util.SignatureAlgorithm(oid.Ed25519)
	raw := der.Encode(der.NewSequence(info, alg.DER(), der.NewBitStringBytes(make([]byte, 64))))

	req, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(req.Attributes()) != 1 {
		t.Errorf("len(Attributes()) = %d", len(req.Attributes()))
	}
	if _, err := req.Extensions(); !errors.Is(err, der.ErrUnsupportedStructure) {
		t.Errorf("Extensions() error = %v, want ErrUnsupportedStructure", err)
	}
	if err := req.Verify(); !errors.Is(err, ErrSignatureInvalid) {
		t.Errorf("Verify() error = %v, want ErrSignatureInvalid", err)
	}
}

func TestBuilder_RejectsExtensionRequestAttribute(t *testing.T) {
	a := ExtensionRequest(sanExtensions(t, "x.example.com"))
	if err := NewBuilder().AddAttribute(a).Err(); err == nil {
		t.Error("expected error")
	}
}

// =============================================================================
// Builder Lifecycle Tests
// =============================================================================

func TestBuilder_SpentAfterSign(t *testing.T) {
	signer := newSigner(t, pkicrypto.AlgEd25519)
	b := NewBuilder().Subject(x509util.MustParseName("CN=once"))
	if _, err := b.SignWithKey(signer); err != nil {
		t.Fatalf("SignWithKey failed: %v", err)
	}
	if _, err := b.SignWithKey(signer); !errors.Is(err, ErrBuilderSpent) {
		t.Errorf("second SignWithKey error = %v, want ErrBuilderSpent", err)
	}
	if err := b.PublicKey(signer.Public()).Err(); !errors.Is(err, ErrBuilderSpent) {
		t.Errorf("setter after sign error = %v, want ErrBuilderSpent", err)
	}
}

// offlineSigner keeps the public half of a key but cannot sign.
type offlineSigner struct {
	*pkicrypto.SoftwareSigner
}

func (offlineSigner) Sign(io.Reader, []byte, crypto.SignerOpts) ([]byte, error) {
	return nil, errors.New("device offline")
}

func TestBuilder_SignerFailure(t *testing.T) {
	signer := newSigner(t, pkicrypto.AlgECDSAP256)
	b := NewBuilder().Subject(x509util.MustParseName("CN=offline"))
	if _, err := b.SignWithKey(offlineSigner{signer}); !errors.Is(err, pkicrypto.ErrSigningFailure) {
		t.Fatalf("SignWithKey error = %v, want ErrSigningFailure", err)
	}
	if _, err := b.SignWithKey(signer); err != nil {
		t.Errorf("retry with a working signer failed: %v", err)
	}
}

func TestBuilder_ExplicitPublicKey(t *testing.T) {
	signer := newSigner(t, pkicrypto.AlgEd25519)
	other := newSigner(t, pkicrypto.AlgEd25519)

	req, err := NewBuilder().
		Subject(x509util.MustParseName("CN=mismatch")).
		PublicKey(other.Public()).
		SignWithKey(signer)
	if err != nil {
		t.Fatalf("SignWithKey failed: %v", err)
	}
	if err := req.Verify(); !errors.Is(err, ErrSignatureInvalid) {
		t.Errorf("Verify() error = %v, want ErrSignatureInvalid", err)
	}
}

// =============================================================================
// Parse Error Tests
// =============================================================================

func TestParse_Errors(t *testing.T) {
	signer := newSigner(t, pkicrypto.AlgEd25519)
	spki, _ := x509util.NewPublicKeyInfo(signer.Public())
	name := x509util.MustParseName("CN=err").DER()
	alg, _ := x509util.SignatureAlgorithm(oid.Ed25519)
	sig := der.NewBitStringBytes(make([]byte, 64))
	emptyAttrs := der.NewContextSpecific(der.ContextTag(0, true), nil)

	wrap := func(info der.Node) []byte {
		return der.Encode(der.NewSequence(info, alg.DER(), sig))
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, der.ErrMalformedEncoding},
		{"not a sequence", der.Encode(der.NewInt64(1)), der.ErrUnsupportedStructure},
		{"version 1", wrap(der.NewSequence(der.NewInt64(1), name, spki.DER(), emptyAttrs)), der.ErrUnsupportedStructure},
		{"attributes not [0]", wrap(der.NewSequence(der.NewInt64(0), name, spki.DER(), der.NewSet())), der.ErrUnsupportedStructure},
		{"missing public key", wrap(der.NewSequence(der.NewInt64(0), name)), der.ErrUnsupportedStructure},
		{"two elements", der.Encode(der.NewSequence(der.NewSequence(), alg.DER())), der.ErrUnsupportedStructure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.data); !errors.Is(err, tt.want) {
				t.Errorf("Parse error = %v, want %v", err, tt.want)
			}
		})
	}
}
