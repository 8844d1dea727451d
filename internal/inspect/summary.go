package inspect

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/remiblancher/derpki/internal/cert"
	"github.com/remiblancher/derpki/internal/csr"
	"github.com/remiblancher/derpki/internal/der"
	"github.com/remiblancher/derpki/internal/oid"
	"github.com/remiblancher/derpki/internal/x509util"
)

const timeLayout = "2006-01-02 15:04:05 UTC"

// Field is one labelled line of a summary.
type Field struct {
	Name  string `json:"name" cbor:"name"`
	Value string `json:"value" cbor:"value"`
}

// Title returns the heading printed above the summary.
func (d Document) Title() string {
	switch d.Kind {
	case KindCertificate:
		return "Certificate"
	case KindCSR:
		return "Certificate Request"
	case KindPKCS12:
		return "PKCS#12"
	case KindPKCS7:
		return fmt.Sprintf("PKCS#7 bundle (%d certificates)", len(d.Bundle))
	default:
		return "DER"
	}
}

// Summary returns the decoded fields of the document.
func (d Document) Summary() []Field {
	switch {
	case d.Certificate != nil:
		return certificateFields(d.Certificate)
	case d.Request != nil:
		return requestFields(d.Request)
	case d.KeyStore != nil:
		fields := []Field{
			{"Version", fmt.Sprint(d.KeyStore.Version)},
			{"Content Infos", fmt.Sprint(len(d.KeyStore.Contents))},
			{"Safe Bags", fmt.Sprint(len(d.KeyStore.Bags()))},
		}
		if m := d.KeyStore.MacData; m != nil {
			fields = append(fields, Field{"MAC", fmt.Sprintf("%s, %d iterations", m.Algorithm.Name(), m.Iterations)})
		}
		return fields
	case d.Bundle != nil:
		fields := make([]Field, 0, len(d.Bundle))
		for i, c := range d.Bundle {
			fields = append(fields, Field{fmt.Sprintf("Certificate %d", i+1), c.Subject().String()})
		}
		return fields
	}
	return []Field{
		{"Tag", der.TagName(d.Root.Tag())},
		{"Length", fmt.Sprint(d.Root.FullLength())},
	}
}

func certificateFields(c *cert.Certificate) []Field {
	fields := []Field{
		{"Version", fmt.Sprint(c.Version())},
		{"Serial Number", formatHex(c.SerialNumber().Bytes())},
		{"Subject", c.Subject().String()},
		{"Issuer", c.Issuer().String()},
		{"Not Before", c.NotBefore().UTC().Format(timeLayout)},
		{"Not After", c.NotAfter().UTC().Format(timeLayout)},
		{"Signature Alg", c.SignatureAlgorithm().Name()},
		{"Public Key Alg", publicKeyName(c.PublicKeyInfo())},
		{"CA", fmt.Sprint(c.IsCA())},
	}
	return append(fields, extensionFields(c.Extensions())...)
}

func requestFields(r *csr.CertificateRequest) []Field {
	fields := []Field{
		{"Subject", r.Subject().String()},
		{"Signature Alg", r.SignatureAlgorithm().Name()},
		{"Public Key Alg", publicKeyName(r.PublicKeyInfo())},
	}
	status := "valid"
	if err := r.Verify(); err != nil {
		status = "invalid (" + err.Error() + ")"
	}
	fields = append(fields, Field{"Signature", status})
	for _, a := range r.Attributes() {
		if a.Type == oid.PKCS9ExtensionRequest {
			continue
		}
		fields = append(fields, Field{"Attribute", a.String()})
	}
	exts, err := r.Extensions()
	if err != nil {
		return append(fields, Field{"Extensions", "malformed (" + err.Error() + ")"})
	}
	return append(fields, extensionFields(exts)...)
}

func extensionFields(exts x509util.Extensions) []Field {
	fields := make([]Field, 0, len(exts))
	for _, e := range exts {
		name := e.Name()
		if e.Critical {
			name += " (critical)"
		}
		value := der.HexSummary(e.Value)
		if v, err := e.Decode(); err == nil {
			value = v.String()
		}
		fields = append(fields, Field{name, value})
	}
	return fields
}

func publicKeyName(spki x509util.PublicKeyInfo) string {
	name := spki.Algorithm.Name()
	if spki.Algorithm.OID != oid.RSAEncryption {
		return name
	}
	if n, _, err := spki.RSA(); err == nil {
		return fmt.Sprintf("%s (%d bits)", name, n.BitLen())
	}
	return name
}

func formatHex(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = hex.EncodeToString([]byte{v})
	}
	return strings.Join(parts, ":")
}

// WriteText writes the title, the aligned summary fields and, for key
// stores, the bag listing.
func (d Document) WriteText(w io.Writer) error {
	fields := d.Summary()
	width := 0
	for _, f := range fields {
		width = max(width, len(f.Name))
	}
	if _, err := fmt.Fprintf(w, "%s:\n", d.Title()); err != nil {
		return err
	}
	for _, f := range fields {
		if _, err := fmt.Fprintf(w, "  %-*s  %s\n", width+1, f.Name+":", f.Value); err != nil {
			return err
		}
	}
	if d.KeyStore != nil {
		return d.KeyStore.Dump(w)
	}
	return nil
}

// WriteTree writes the indented node tree.
func (d Document) WriteTree(w io.Writer) error {
	return der.Dump(w, d.Root)
}

// Tree returns the serializable node tree.
func (d Document) Tree() der.TreeNode {
	return der.Tree(d.Root)
}
