// Package profile defines issuance profiles: the key usages, extended key
// usages, validity and subject alternative name policy applied when the CA
// signs a certificate.
package profile

import (
	"fmt"
	"time"

	"github.com/remiblancher/derpki/internal/der"
	"github.com/remiblancher/derpki/internal/oid"
	"github.com/remiblancher/derpki/internal/x509util"
)

// SANPolicy controls how subject alternative names reach the certificate.
type SANPolicy struct {
	// CopyFromRequest copies the subjectAltName extension of the CSR.
	CopyFromRequest bool `yaml:"copyFromRequest,omitempty" json:"copyFromRequest,omitempty"`

	// Required rejects requests without a subjectAltName.
	Required bool `yaml:"required,omitempty" json:"required,omitempty"`
}

// Profile is one certificate type.
type Profile struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`

	// Validity is the certificate lifetime starting at issuance.
	Validity time.Duration `yaml:"-" json:"validity"`

	// CA marks the certificate as a CA. PathLen < 0 leaves the path length
	// unconstrained.
	CA      bool `yaml:"ca,omitempty" json:"ca,omitempty"`
	PathLen int  `yaml:"pathLen,omitempty" json:"pathLen,omitempty"`

	// KeyUsage holds RFC 5280 usage names such as "digitalSignature".
	KeyUsage []string `yaml:"keyUsage,omitempty" json:"keyUsage,omitempty"`

	// ExtKeyUsage holds key purpose names ("serverAuth") or dotted OIDs.
	ExtKeyUsage []string `yaml:"extKeyUsage,omitempty" json:"extKeyUsage,omitempty"`

	SubjectAltName SANPolicy `yaml:"subjectAltName,omitempty" json:"subjectAltName,omitempty"`
}

// Validate checks that the profile can produce a certificate.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile name is required")
	}
	if p.Validity <= 0 {
		return fmt.Errorf("validity must be positive")
	}
	if _, err := x509util.ParseKeyUsage(p.KeyUsage...); err != nil {
		return err
	}
	if _, err := p.keyPurposes(); err != nil {
		return err
	}
	if p.CA && p.SubjectAltName.Required {
		return fmt.Errorf("a CA profile cannot require subjectAltName")
	}
	return nil
}

func (p *Profile) keyPurposes() ([]string, error) {
	out := make([]string, 0, len(p.ExtKeyUsage))
	for _, name := range p.ExtKeyUsage {
		if id, ok := oid.Lookup(name); ok {
			out = append(out, id)
			continue
		}
		if _, err := der.NewOID(name); err != nil {
			return nil, fmt.Errorf("unknown extended key usage %q", name)
		}
		out = append(out, name)
	}
	return out, nil
}

// Window returns the validity period of a certificate issued at now.
func (p *Profile) Window(now time.Time) (notBefore, notAfter time.Time) {
	notBefore = now.UTC().Truncate(time.Second)
	return notBefore, notBefore.Add(p.Validity)
}

// Extensions builds the certificate extensions for a subject with key
// identifier subjectKeyID, issued by a CA with key identifier issuerKeyID.
// requested carries the CSR's extensionRequest, if any.
func (p *Profile) Extensions(subjectKeyID, issuerKeyID []byte, requested x509util.Extensions) (x509util.Extensions, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("profile %s: %w", p.Name, err)
	}

	b := x509util.NewExtensionsBuilder()
	if p.CA {
		b.MarkCA(p.PathLen)
	} else {
		b.Add(x509util.BasicConstraints{}, true)
	}
	if len(p.KeyUsage) > 0 {
		ku, _ := x509util.ParseKeyUsage(p.KeyUsage...)
		b.KeyUsage(ku)
	}
	if purposes, _ := p.keyPurposes(); len(purposes) > 0 {
		b.ExtKeyUsage(purposes...)
	}
	if len(subjectKeyID) > 0 {
		b.SubjectKeyID(subjectKeyID)
	}
	if len(issuerKeyID) > 0 {
		b.AuthorityKeyID(issuerKeyID)
	}

	san, hasSAN := requested.Find(oid.ExtSubjectAltName)
	if p.SubjectAltName.Required && !hasSAN {
		return nil, fmt.Errorf("profile %s requires a subjectAltName", p.Name)
	}
	if p.SubjectAltName.CopyFromRequest && hasSAN {
		if _, err := san.Decode(); err != nil {
			return nil, fmt.Errorf("requested subjectAltName: %w", err)
		}
		b.AddExtension(san)
	}
	return b.Build()
}
