package pkcs12

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	encoding_asn1 "encoding/asn1"
	"math/big"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/remiblancher/derpki/internal/der"
	"github.com/remiblancher/derpki/internal/oid"
)

var (
	tagContext0 = cryptobyte_asn1.Tag(0).ContextSpecific().Constructed()
	tagBMP      = cryptobyte_asn1.Tag(tagBMPString)
)

func asn1OID(t *testing.T, dotted string) encoding_asn1.ObjectIdentifier {
	t.Helper()
	var out encoding_asn1.ObjectIdentifier
	for _, arc := range strings.Split(dotted, ".") {
		n, err := strconv.Atoi(arc)
		require.NoError(t, err)
		out = append(out, n)
	}
	return out
}

// fixture holds the pieces of a PFX built with cryptobyte.
type fixture struct {
	certDER []byte
	keyDER  []byte
	pfx     []byte
}

func newFixture(t *testing.T, withMac, withIterations bool) fixture {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(7),
		Subject:      pkix.Name{CommonName: "alice", Organization: []string{"Example"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	certDER, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, pub, priv)
	require.NoError(t, err)
	keyDER, err := x509.MarshalPKCS8PrivateKey(priv)
	require.NoError(t, err)

	attrs := func(b *cryptobyte.Builder) {
		b.AddASN1(cryptobyte_asn1.SET, func(b *cryptobyte.Builder) {
			b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
				b.AddASN1ObjectIdentifier(asn1OID(t, oid.PKCS9FriendlyName))
				b.AddASN1(cryptobyte_asn1.SET, func(b *cryptobyte.Builder) {
					b.AddASN1(tagBMP, func(b *cryptobyte.Builder) {
						b.AddBytes([]byte{0x00, 'a', 0x00, 'l', 0x00, 'i', 0x00, 'c', 0x00, 'e'})
					})
				})
			})
			b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
				b.AddASN1ObjectIdentifier(asn1OID(t, oid.PKCS9LocalKeyID))
				b.AddASN1(cryptobyte_asn1.SET, func(b *cryptobyte.Builder) {
					b.AddASN1OctetString([]byte{0x01, 0x02, 0x03, 0x04})
				})
			})
		})
	}

	var safeContents cryptobyte.Builder
	safeContents.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		// certBag
		b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(asn1OID(t, oid.PKCS12CertBag))
			b.AddASN1(tagContext0, func(b *cryptobyte.Builder) {
				b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
					b.AddASN1ObjectIdentifier(asn1OID(t, oid.PKCS9X509Certificate))
					b.AddASN1(tagContext0, func(b *cryptobyte.Builder) {
						b.AddASN1OctetString(certDER)
					})
				})
			})
			attrs(b)
		})
		// keyBag
		b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(asn1OID(t, oid.PKCS12KeyBag))
			b.AddASN1(tagContext0, func(b *cryptobyte.Builder) {
				b.AddBytes(keyDER)
			})
		})
		// safeContentsBag holding a secretBag whose value wraps DER
		b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(asn1OID(t, oid.PKCS12SafeContentsBag))
			b.AddASN1(tagContext0, func(b *cryptobyte.Builder) {
				b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
					b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
						b.AddASN1ObjectIdentifier(asn1OID(t, oid.PKCS12SecretBag))
						b.AddASN1(tagContext0, func(b *cryptobyte.Builder) {
							b.AddASN1OctetString([]byte{0x05, 0x00})
						})
					})
				})
			})
		})
	})
	safeContentsDER, err := safeContents.Bytes()
	require.NoError(t, err)

	var authSafe cryptobyte.Builder
	authSafe.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(asn1OID(t, oid.PKCS7Data))
			b.AddASN1(tagContext0, func(b *cryptobyte.Builder) {
				b.AddASN1OctetString(safeContentsDER)
			})
		})
		b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(asn1OID(t, oid.PKCS7EncryptedData))
			b.AddASN1(tagContext0, func(b *cryptobyte.Builder) {
				b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
					b.AddASN1Int64(0)
					b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
						b.AddASN1ObjectIdentifier(asn1OID(t, oid.PKCS7Data))
					})
				})
			})
		})
	})
	authSafeDER, err := authSafe.Bytes()
	require.NoError(t, err)

	var pfx cryptobyte.Builder
	pfx.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1Int64(3)
		b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(asn1OID(t, oid.PKCS7Data))
			b.AddASN1(tagContext0, func(b *cryptobyte.Builder) {
				b.AddASN1OctetString(authSafeDER)
			})
		})
		if !withMac {
			return
		}
		b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
				b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
					b.AddASN1ObjectIdentifier(asn1OID(t, oid.SHA256))
					b.AddASN1NULL()
				})
				b.AddASN1OctetString(bytes.Repeat([]byte{0xAB}, 32))
			})
			b.AddASN1OctetString([]byte{1, 2, 3, 4, 5, 6, 7, 8})
			if withIterations {
				b.AddASN1Int64(2048)
			}
		})
	})
	pfxDER, err := pfx.Bytes()
	require.NoError(t, err)

	return fixture{certDER: certDER, keyDER: keyDER, pfx: pfxDER}
}

func TestParse_KeyStore(t *testing.T) {
	fx := newFixture(t, true, true)

	ks, err := Parse(fx.pfx)
	require.NoError(t, err)

	assert.Equal(t, 3, ks.Version)
	assert.Equal(t, oid.PKCS7Data, ks.AuthSafe.ContentType)
	assert.Equal(t, fx.pfx, der.Encode(ks.DER()), "re-encoding must be byte-identical")

	require.Len(t, ks.Contents, 2)
	assert.False(t, ks.Contents[0].IsOpaque())
	assert.Len(t, ks.Contents[0].Bags, 3)
	assert.True(t, ks.Contents[1].IsOpaque())
	assert.Equal(t, "encryptedData", ks.Contents[1].Name())
	assert.Empty(t, ks.Contents[1].Bags)

	bags := ks.Bags()
	require.Len(t, bags, 4)
	assert.Equal(t, "certBag", bags[0].Name())
	assert.Equal(t, "keyBag", bags[1].Name())
	assert.Equal(t, "safeContentsBag", bags[2].Name())
	assert.Equal(t, "secretBag", bags[3].Name())

	certBag := bags[0]
	assert.Equal(t, "alice", certBag.FriendlyName())
	assert.Equal(t, []byte{1, 2, 3, 4}, certBag.LocalKeyID())
	require.NotNil(t, certBag.Cert)
	assert.Equal(t, oid.PKCS9X509Certificate, certBag.Cert.CertType)
	assert.Equal(t, fx.certDER, certBag.Cert.Certificate)

	keyBag := bags[1]
	assert.Equal(t, fx.keyDER, der.Encode(keyBag.Value))
	assert.Empty(t, keyBag.FriendlyName())
	assert.Nil(t, keyBag.LocalKeyID())

	secret := bags[3]
	require.NotNil(t, secret.Inner, "OCTET STRING wrapping DER is parsed")
	assert.Equal(t, der.TagNull, secret.Inner.Tag())

	require.NotNil(t, ks.MacData)
	assert.Equal(t, oid.SHA256, ks.MacData.Algorithm.OID)
	assert.Equal(t, 2048, ks.MacData.Iterations)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, ks.MacData.Salt)
	assert.Len(t, ks.MacData.Digest, 32)
}

func TestParse_MacDataDefaults(t *testing.T) {
	ks, err := Parse(newFixture(t, true, false).pfx)
	require.NoError(t, err)
	require.NotNil(t, ks.MacData)
	assert.Equal(t, 1, ks.MacData.Iterations)

	ks, err = Parse(newFixture(t, false, false).pfx)
	require.NoError(t, err)
	assert.Nil(t, ks.MacData)
}

func TestKeyStore_Certificates(t *testing.T) {
	ks, err := Parse(newFixture(t, true, true).pfx)
	require.NoError(t, err)

	certs, err := ks.Certificates()
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.Equal(t, "alice", certs[0].Subject().CommonName())
	assert.NoError(t, certs[0].Verify())
}

func TestKeyStore_Dump(t *testing.T) {
	ks, err := Parse(newFixture(t, true, true).pfx)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ks.Dump(&buf))
	out := buf.String()

	for _, want := range []string{
		"PFX: version=3",
		"AuthSafe: data (2 content infos)",
		"ContentInfo: data (3 bags)",
		"SafeBag: certBag",
		"friendlyName: alice",
		"localKeyID: 01020304",
		"certificate: CN=alice,O=Example",
		"SafeBag: keyBag",
		"SafeBag: secretBag",
		"ContentInfo: encryptedData (opaque",
		"MacData: sha256, salt=0102030405060708, iterations=2048",
	} {
		assert.Contains(t, out, want)
	}
}

func TestParse_Errors(t *testing.T) {
	fx := newFixture(t, true, true)

	notOctets := der.Encode(der.NewSequence(
		der.NewInt64(3),
		der.NewSequence(der.MustOID(oid.PKCS7Data), der.NewExplicit(0, der.NewNull())),
	))
	badSafe := der.Encode(der.NewSequence(
		der.NewInt64(3),
		der.NewSequence(der.MustOID(oid.PKCS7Data), der.NewExplicit(0, der.NewOctetString([]byte{0x02, 0x01, 0x00}))),
	))

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, der.ErrMalformedEncoding},
		{"truncated", fx.pfx[:len(fx.pfx)-3], der.ErrMalformedEncoding},
		{"not a sequence", der.Encode(der.NewNull()), der.ErrUnsupportedStructure},
		{"missing authSafe", der.Encode(der.NewSequence(der.NewInt64(3))), der.ErrUnsupportedStructure},
		{"data content not octets", notOctets, der.ErrUnsupportedStructure},
		{"authenticated safe not a sequence", badSafe, der.ErrUnsupportedStructure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBMPString(t *testing.T) {
	n := BMPString("Zoë 🔑")
	assert.Equal(t, tagBMPString, n.Tag())
	assert.Equal(t, "Zoë 🔑", decodeText(n))

	parsed, err := der.Parse(der.Encode(n))
	require.NoError(t, err)
	assert.Equal(t, "Zoë 🔑", decodeText(parsed))
}
