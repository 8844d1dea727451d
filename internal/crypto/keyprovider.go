package crypto

import (
	"fmt"
	"os"
	"strings"
)

// KeyStorageConfig describes where a software key lives.
type KeyStorageConfig struct {
	KeyPath    string `json:"key_path,omitempty" yaml:"key_path,omitempty"`
	Passphrase string `json:"-" yaml:"-"` // Never serialized
}

// KeyProvider loads and creates signing keys.
//
// Usage:
//
//	kp := NewKeyProvider()
//	signer, err := kp.Generate(AlgEd25519, KeyStorageConfig{
//	    KeyPath: "/path/to/key.pem",
//	})
type KeyProvider interface {
	// Load reads an existing key and returns a Signer.
	Load(cfg KeyStorageConfig) (Signer, error)

	// Generate creates a new key, stores it and returns a Signer.
	Generate(alg AlgorithmID, cfg KeyStorageConfig) (Signer, error)
}

// SoftwareKeyProvider implements KeyProvider with PEM files on disk.
type SoftwareKeyProvider struct{}

// Ensure SoftwareKeyProvider implements KeyProvider.
var _ KeyProvider = (*SoftwareKeyProvider)(nil)

// NewKeyProvider returns the software key provider.
func NewKeyProvider() *SoftwareKeyProvider {
	return &SoftwareKeyProvider{}
}

// Load loads a private key from disk.
func (m *SoftwareKeyProvider) Load(cfg KeyStorageConfig) (Signer, error) {
	if cfg.KeyPath == "" {
		return nil, fmt.Errorf("key_path is required for software key storage")
	}
	return LoadPrivateKey(cfg.KeyPath, ResolvePassphrase(cfg.Passphrase))
}

// Generate generates a new key pair, saves it to disk and returns a Signer.
func (m *SoftwareKeyProvider) Generate(alg AlgorithmID, cfg KeyStorageConfig) (Signer, error) {
	if cfg.KeyPath == "" {
		return nil, fmt.Errorf("key_path is required for software key storage")
	}

	signer, err := GenerateSoftwareSigner(alg)
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s key: %w", alg, err)
	}

	if err := signer.SavePrivateKey(cfg.KeyPath, ResolvePassphrase(cfg.Passphrase)); err != nil {
		return nil, fmt.Errorf("failed to save private key: %w", err)
	}
	return signer, nil
}

// ResolvePassphrase resolves a passphrase that may be "env:VAR_NAME".
func ResolvePassphrase(passphrase string) []byte {
	if passphrase == "" {
		return nil
	}
	if name, ok := strings.CutPrefix(passphrase, "env:"); ok && name != "" {
		return []byte(os.Getenv(name))
	}
	return []byte(passphrase)
}
