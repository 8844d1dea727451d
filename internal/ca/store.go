package ca

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/remiblancher/derpki/internal/cert"
	"github.com/remiblancher/derpki/internal/pemutil"
)

// indexTime is the OpenSSL index.txt timestamp layout.
const indexTime = "060102150405Z"

// Store keeps a CA on the filesystem:
//
//	{base}/
//	  ├── ca.crt           # CA certificate
//	  ├── private/ca.key   # CA private key
//	  ├── certs/           # Issued certificates
//	  │   └── {serial}.crt
//	  ├── index.txt        # Certificate database (OpenSSL-like)
//	  └── serial           # Next serial number
type Store struct {
	basePath string
	mu       sync.Mutex
}

// NewStore returns a store rooted at basePath.
func NewStore(basePath string) *Store {
	return &Store{basePath: basePath}
}

// Init creates the directory layout, the serial counter and the index.
// Existing files are left alone.
func (s *Store) Init() error {
	for _, dir := range []string{s.basePath, s.path("certs"), s.path("private")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := os.Chmod(s.path("private"), 0700); err != nil {
		return fmt.Errorf("failed to restrict private directory: %w", err)
	}
	for name, initial := range map[string]string{"serial": "01\n", "index.txt": ""} {
		p := s.path(name)
		if _, err := os.Stat(p); os.IsNotExist(err) {
			if err := os.WriteFile(p, []byte(initial), 0644); err != nil {
				return fmt.Errorf("failed to create %s: %w", name, err)
			}
		}
	}
	return nil
}

func (s *Store) path(elem ...string) string {
	return filepath.Join(append([]string{s.basePath}, elem...)...)
}

// BasePath returns the store root.
func (s *Store) BasePath() string { return s.basePath }

// CACertPath returns the path of the CA certificate.
func (s *Store) CACertPath() string { return s.path("ca.crt") }

// CAKeyPath returns the path of the CA private key.
func (s *Store) CAKeyPath() string { return s.path("private", "ca.key") }

// CertPath returns the path of the issued certificate with serial.
func (s *Store) CertPath(serial *big.Int) string {
	return s.path("certs", serialHex(serial)+".crt")
}

// Exists reports whether a CA certificate has been stored.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.CACertPath())
	return err == nil
}

// SaveCACert writes the CA certificate.
func (s *Store) SaveCACert(c *cert.Certificate) error {
	return saveCert(s.CACertPath(), c)
}

// LoadCACert reads the CA certificate.
func (s *Store) LoadCACert() (*cert.Certificate, error) {
	return LoadCertificate(s.CACertPath())
}

// SaveCert writes an issued certificate and records it in the index.
func (s *Store) SaveCert(c *cert.Certificate) error {
	if err := saveCert(s.CertPath(c.SerialNumber()), c); err != nil {
		return err
	}
	return s.appendIndex(c)
}

// LoadCert reads an issued certificate by serial.
func (s *Store) LoadCert(serial *big.Int) (*cert.Certificate, error) {
	return LoadCertificate(s.CertPath(serial))
}

// NextSerial returns the next serial number and advances the counter.
func (s *Store) NextSerial() (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path("serial"))
	if err != nil {
		return nil, fmt.Errorf("failed to read serial file: %w", err)
	}
	serial, ok := new(big.Int).SetString(strings.TrimSpace(string(data)), 16)
	if !ok || serial.Sign() <= 0 {
		return nil, fmt.Errorf("failed to parse serial %q", strings.TrimSpace(string(data)))
	}
	next := new(big.Int).Add(serial, big.NewInt(1))
	if err := os.WriteFile(s.path("serial"), []byte(serialHex(next)+"\n"), 0644); err != nil {
		return nil, fmt.Errorf("failed to update serial file: %w", err)
	}
	return serial, nil
}

// serialHex renders serial as an even number of lowercase hex digits.
func serialHex(serial *big.Int) string {
	h := serial.Text(16)
	if len(h)%2 == 1 {
		h = "0" + h
	}
	return h
}

func saveCert(path string, c *cert.Certificate) error {
	if err := os.WriteFile(path, pemutil.Encode(pemutil.LabelCertificate, c.Raw()), 0644); err != nil {
		return fmt.Errorf("failed to write certificate: %w", err)
	}
	return nil
}

// LoadCertificate reads a PEM or DER certificate file.
func LoadCertificate(path string) (*cert.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate file: %w", err)
	}
	b, _, err := pemutil.ToDER(data, pemutil.LabelCertificate)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c, err := cert.Parse(b)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return c, nil
}

// IndexEntry is one line of index.txt.
type IndexEntry struct {
	Status  string // V valid, R revoked, E expired
	Expiry  time.Time
	Serial  *big.Int
	Subject string
}

// appendIndex adds "V\t{expiry}\t\t{serial}\tunknown\t{subject}".
func (s *Store) appendIndex(c *cert.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path("index.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer func() { _ = f.Close() }()

	entry := fmt.Sprintf("V\t%s\t\t%s\tunknown\t%s\n",
		c.NotAfter().UTC().Format(indexTime),
		serialHex(c.SerialNumber()),
		c.Subject(),
	)
	if _, err := f.WriteString(entry); err != nil {
		return fmt.Errorf("failed to write index entry: %w", err)
	}
	return nil
}

// ReadIndex returns every well-formed index entry.
func (s *Store) ReadIndex() ([]IndexEntry, error) {
	data, err := os.ReadFile(s.path("index.txt"))
	if err != nil {
		return nil, fmt.Errorf("failed to read index file: %w", err)
	}
	var entries []IndexEntry
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		entry, err := parseIndexLine(line)
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func parseIndexLine(line string) (IndexEntry, error) {
	parts := strings.Split(line, "\t")
	if len(parts) < 6 {
		return IndexEntry{}, fmt.Errorf("malformed index line")
	}
	entry := IndexEntry{Status: parts[0], Subject: parts[5]}
	if t, err := time.Parse(indexTime, parts[1]); err == nil {
		entry.Expiry = t
	}
	serial, err := hex.DecodeString(parts[3])
	if err != nil || len(serial) == 0 {
		return IndexEntry{}, fmt.Errorf("invalid serial %q", parts[3])
	}
	entry.Serial = new(big.Int).SetBytes(serial)
	return entry, nil
}
