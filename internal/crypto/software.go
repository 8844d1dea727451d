package crypto

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"os"

	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
)

// PEM labels accepted for private keys. Only the first two are written.
const (
	labelPKCS8   = "PRIVATE KEY"
	labelMLDSA65 = "ML-DSA-65 PRIVATE KEY"
	labelEC      = "EC PRIVATE KEY"
	labelPKCS1   = "RSA PRIVATE KEY"
)

// keyDecoders turns the body of a private key PEM block into a key.
var keyDecoders = map[string]func([]byte) (crypto.PrivateKey, error){
	labelPKCS8: func(b []byte) (crypto.PrivateKey, error) {
		return x509.ParsePKCS8PrivateKey(b)
	},
	labelEC: func(b []byte) (crypto.PrivateKey, error) {
		return x509.ParseECPrivateKey(b)
	},
	labelPKCS1: func(b []byte) (crypto.PrivateKey, error) {
		return x509.ParsePKCS1PrivateKey(b)
	},
	labelMLDSA65: func(b []byte) (crypto.PrivateKey, error) {
		k := new(mldsa65.PrivateKey)
		if err := k.UnmarshalBinary(b); err != nil {
			return nil, err
		}
		return k, nil
	},
}

// SoftwareSigner is a Signer over an in-memory private key stored as PEM.
type SoftwareSigner struct {
	alg     AlgorithmID
	priv    crypto.PrivateKey
	pub     crypto.PublicKey
	keyPath string
}

var _ Signer = (*SoftwareSigner)(nil)

// NewSoftwareSigner wraps a generated key pair.
func NewSoftwareSigner(kp *KeyPair) (*SoftwareSigner, error) {
	if kp == nil {
		return nil, fmt.Errorf("key pair is nil")
	}
	return &SoftwareSigner{alg: kp.Algorithm, priv: kp.PrivateKey, pub: kp.PublicKey}, nil
}

// GenerateSoftwareSigner creates a fresh key for alg.
func GenerateSoftwareSigner(alg AlgorithmID) (*SoftwareSigner, error) {
	kp, err := GenerateKeyPair(alg)
	if err != nil {
		return nil, err
	}
	return NewSoftwareSigner(kp)
}

func (s *SoftwareSigner) Algorithm() AlgorithmID        { return s.alg }
func (s *SoftwareSigner) Public() crypto.PublicKey      { return s.pub }
func (s *SoftwareSigner) PrivateKey() crypto.PrivateKey { return s.priv }

// KeyPath is the file the key was loaded from or saved to, if any.
func (s *SoftwareSigner) KeyPath() string { return s.keyPath }

// Sign implements crypto.Signer. RSA and ECDSA expect a digest; Ed25519 and
// ML-DSA-65 sign the whole message.
func (s *SoftwareSigner) Sign(random io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	if k, ok := s.priv.(*rsa.PrivateKey); ok {
		h := s.alg.Hash()
		if opts != nil && opts.HashFunc() != 0 {
			h = opts.HashFunc()
		}
		return rsa.SignPKCS1v15(random, k, h, digest)
	}
	if k, ok := s.priv.(*ecdsa.PrivateKey); ok {
		return ecdsa.SignASN1(random, k, digest)
	}
	if k, ok := s.priv.(ed25519.PrivateKey); ok {
		return ed25519.Sign(k, digest), nil
	}
	if k, ok := s.priv.(*mldsa65.PrivateKey); ok {
		return k.Sign(random, digest, crypto.Hash(0))
	}
	return nil, fmt.Errorf("unsupported private key type: %T", s.priv)
}

// MarshalPrivateKeyPEM serializes the key. Classical keys are written as
// PKCS#8 and ML-DSA-65 keys in packed form. A passphrase encrypts the
// block with AES-256.
func (s *SoftwareSigner) MarshalPrivateKeyPEM(passphrase []byte) ([]byte, error) {
	label, body, err := s.pemBody()
	if err != nil {
		return nil, err
	}
	block := &pem.Block{Type: label, Bytes: body}
	if len(passphrase) > 0 {
		block, err = x509.EncryptPEMBlock(rand.Reader, label, body, passphrase, x509.PEMCipherAES256) //nolint:staticcheck
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt private key: %w", err)
		}
	}
	return pem.EncodeToMemory(block), nil
}

func (s *SoftwareSigner) pemBody() (string, []byte, error) {
	switch k := s.priv.(type) {
	case *mldsa65.PrivateKey:
		return labelMLDSA65, k.Bytes(), nil
	case *ecdsa.PrivateKey, ed25519.PrivateKey, *rsa.PrivateKey:
		b, err := x509.MarshalPKCS8PrivateKey(k)
		if err != nil {
			return "", nil, fmt.Errorf("failed to marshal private key: %w", err)
		}
		return labelPKCS8, b, nil
	}
	return "", nil, fmt.Errorf("unsupported private key type: %T", s.priv)
}

// SavePrivateKey writes the key to path with mode 0600.
func (s *SoftwareSigner) SavePrivateKey(path string, passphrase []byte) error {
	data, err := s.MarshalPrivateKeyPEM(passphrase)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	s.keyPath = path
	return nil
}

// LoadPrivateKey reads a PEM private key from path.
func LoadPrivateKey(path string, passphrase []byte) (*SoftwareSigner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	s, err := ParsePrivateKeyPEM(data, passphrase)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.keyPath = path
	return s, nil
}

// ParsePrivateKeyPEM decodes the first PEM block of data. PKCS#8, SEC 1,
// PKCS#1 and packed ML-DSA-65 keys are accepted, optionally encrypted.
func ParsePrivateKeyPEM(data, passphrase []byte) (*SoftwareSigner, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	decode, ok := keyDecoders[block.Type]
	if !ok {
		return nil, fmt.Errorf("unknown PEM type: %s", block.Type)
	}

	body := block.Bytes
	if x509.IsEncryptedPEMBlock(block) { //nolint:staticcheck
		if len(passphrase) == 0 {
			return nil, fmt.Errorf("private key is encrypted but no passphrase provided")
		}
		var err error
		if body, err = x509.DecryptPEMBlock(block, passphrase); err != nil { //nolint:staticcheck
			return nil, fmt.Errorf("failed to decrypt private key: %w", err)
		}
	}

	priv, err := decode(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", block.Type, err)
	}
	alg, pub, err := algorithmForKey(priv)
	if err != nil {
		return nil, err
	}
	return &SoftwareSigner{alg: alg, priv: priv, pub: pub}, nil
}

// WithAlgorithm returns a copy of s that signs with alg. Only RSA keys can
// switch, for instance to SHA-512 on a 4096-bit key.
func (s *SoftwareSigner) WithAlgorithm(alg AlgorithmID) (*SoftwareSigner, error) {
	if !alg.IsValid() {
		return nil, fmt.Errorf("unknown algorithm: %s", alg)
	}
	inferred, _, err := algorithmForKey(s.priv)
	if err != nil {
		return nil, err
	}
	if inferred != alg && !(rsaAlgorithms[inferred] && rsaAlgorithms[alg]) {
		return nil, fmt.Errorf("algorithm %s does not match %s key", alg, inferred)
	}
	out := *s
	out.alg = alg
	return &out, nil
}
