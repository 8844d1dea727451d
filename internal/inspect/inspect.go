// Package inspect detects what a PEM or DER input holds and decodes it
// with the structure models: certificates, certification requests, PKCS#12
// key stores and PKCS#7 certificate bundles. Anything else that is valid
// DER is reported as a bare node tree.
package inspect

import (
	"errors"
	"fmt"

	"github.com/cloudflare/cfssl/crypto/pkcs7"

	"github.com/remiblancher/derpki/internal/cert"
	"github.com/remiblancher/derpki/internal/csr"
	"github.com/remiblancher/derpki/internal/der"
	"github.com/remiblancher/derpki/internal/oid"
	"github.com/remiblancher/derpki/internal/pemutil"
	"github.com/remiblancher/derpki/internal/pkcs12"
)

// Kind names the structure found in a document.
type Kind string

const (
	KindCertificate Kind = "certificate"
	KindCSR         Kind = "certificate-request"
	KindPKCS12      Kind = "pkcs12"
	KindPKCS7       Kind = "pkcs7"
	KindDER         Kind = "der"
)

// Document is one decoded input. Exactly one of Certificate, Request,
// KeyStore or Bundle is set unless Kind is KindDER.
type Document struct {
	Kind  Kind
	Label string // PEM label, empty for binary input
	DER   []byte
	Root  der.Node

	Certificate *cert.Certificate
	Request     *csr.CertificateRequest
	KeyStore    *pkcs12.KeyStore
	Bundle      []*cert.Certificate
}

// Decode returns one document per PEM block of data, or a single document
// for binary DER.
func Decode(data []byte) ([]Document, error) {
	if !pemutil.IsPEM(data) {
		d, err := DecodeDER(data, "")
		if err != nil {
			return nil, err
		}
		return []Document{d}, nil
	}
	blocks, err := pemutil.DecodeAll(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", der.ErrMalformedEncoding, err)
	}
	docs := make([]Document, 0, len(blocks))
	for i, b := range blocks {
		d, err := DecodeDER(b.Bytes, b.Label)
		if err != nil {
			return nil, fmt.Errorf("PEM block %d (%s): %w", i+1, b.Label, err)
		}
		docs = append(docs, d)
	}
	return docs, nil
}

// DecodeDER decodes b. A PEM label selects the model; without one each
// model is tried in turn.
func DecodeDER(b []byte, label string) (Document, error) {
	root, err := der.Parse(b)
	if err != nil {
		return Document{}, err
	}
	d := Document{Kind: KindDER, Label: label, DER: b, Root: root}

	switch label {
	case pemutil.LabelCertificate:
		d.Certificate, err = cert.Parse(b)
		d.Kind = KindCertificate
		return d, err
	case pemutil.LabelCertificateRequest, "NEW CERTIFICATE REQUEST":
		d.Request, err = csr.Parse(b)
		d.Kind = KindCSR
		return d, err
	case pemutil.LabelPKCS7:
		d.Bundle, err = parseBundle(b)
		d.Kind = KindPKCS7
		return d, err
	}

	if c, err := cert.Parse(b); err == nil {
		d.Kind, d.Certificate = KindCertificate, c
		return d, nil
	}
	if r, err := csr.Parse(b); err == nil {
		d.Kind, d.Request = KindCSR, r
		return d, nil
	}
	if ks, err := pkcs12.Parse(b); err == nil {
		d.Kind, d.KeyStore = KindPKCS12, ks
		return d, nil
	}
	if bundle, err := parseBundle(b); err == nil {
		d.Kind, d.Bundle = KindPKCS7, bundle
		return d, nil
	}
	return d, nil
}

// DecodePKCS12 decodes data as a PFX regardless of what else it could be.
func DecodePKCS12(data []byte) (Document, error) {
	b, _, err := pemutil.ToDER(data, "")
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", der.ErrMalformedEncoding, err)
	}
	root, err := der.Parse(b)
	if err != nil {
		return Document{}, err
	}
	ks, err := pkcs12.Parse(b)
	if err != nil {
		return Document{}, err
	}
	return Document{Kind: KindPKCS12, DER: b, Root: root, KeyStore: ks}, nil
}

var errEmptyBundle = errors.New("PKCS#7 bundle holds no certificates")

// parseBundle reads the certificates of a degenerate SignedData and
// re-parses each with the certificate model.
func parseBundle(b []byte) ([]*cert.Certificate, error) {
	p, err := pkcs7.ParsePKCS7(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", der.ErrUnsupportedStructure, err)
	}
	if len(p.Content.SignedData.Certificates) == 0 {
		return nil, fmt.Errorf("%w: %v", der.ErrUnsupportedStructure, errEmptyBundle)
	}
	out := make([]*cert.Certificate, 0, len(p.Content.SignedData.Certificates))
	for i, c := range p.Content.SignedData.Certificates {
		parsed, err := cert.Parse(c.Raw)
		if err != nil {
			return nil, fmt.Errorf("bundle certificate %d: %w", i+1, err)
		}
		out = append(out, parsed)
	}
	return out, nil
}

// EncodeBundle returns a degenerate PKCS#7 SignedData carrying certs in
// order, with no signers and an empty CRL set.
func EncodeBundle(certs []*cert.Certificate) ([]byte, error) {
	if len(certs) == 0 {
		return nil, errEmptyBundle
	}
	var raw []byte
	for _, c := range certs {
		raw = append(raw, c.Raw()...)
	}
	signed := der.NewSequence(
		der.NewInt64(1),
		der.NewSet(),
		der.NewSequence(der.MustOID(oid.PKCS7Data)),
		der.NewContextSpecific(der.ContextTag(0, true), raw),
		der.NewContextSpecific(der.ContextTag(1, true), nil),
		der.NewSet(),
	)
	return der.Encode(der.NewSequence(der.MustOID(oid.PKCS7SignedData), der.NewExplicit(0, signed))), nil
}
