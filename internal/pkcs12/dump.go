package pkcs12

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/remiblancher/derpki/internal/cert"
	"github.com/remiblancher/derpki/internal/der"
	"github.com/remiblancher/derpki/internal/oid"
)

// Dump writes an indented description of the key store to w.
func (k *KeyStore) Dump(w io.Writer) error {
	d := &dumper{w: w}
	d.line(0, "PFX: version=%d", k.Version)
	d.line(1, "AuthSafe: %s (%d content infos)", k.AuthSafe.Name(), len(k.Contents))
	for _, ci := range k.Contents {
		d.contentInfo(2, ci)
	}
	if m := k.MacData; m != nil {
		d.line(1, "MacData: %s, salt=%s, iterations=%d", m.Algorithm.Name(), hex.EncodeToString(m.Salt), m.Iterations)
		d.line(2, "digest: %s", hex.EncodeToString(m.Digest))
	}
	return d.err
}

type dumper struct {
	w   io.Writer
	err error
}

func (d *dumper) line(depth int, format string, args ...any) {
	if d.err != nil {
		return
	}
	_, d.err = fmt.Fprintf(d.w, "%s%s\n", strings.Repeat("  ", depth), fmt.Sprintf(format, args...))
}

func (d *dumper) contentInfo(depth int, ci ContentInfo) {
	if ci.IsOpaque() {
		size := 0
		if ci.Content != nil {
			size = ci.Content.FullLength()
		}
		d.line(depth, "ContentInfo: %s (opaque, %d bytes)", ci.Name(), size)
		return
	}
	d.line(depth, "ContentInfo: %s (%d bags)", ci.Name(), len(ci.Bags))
	for _, bag := range ci.Bags {
		d.safeBag(depth+1, bag)
	}
}

func (d *dumper) safeBag(depth int, bag SafeBag) {
	d.line(depth, "SafeBag: %s", bag.Name())
	if name := bag.FriendlyName(); name != "" {
		d.line(depth+1, "friendlyName: %s", name)
	}
	if id := bag.LocalKeyID(); id != nil {
		d.line(depth+1, "localKeyID: %s", hex.EncodeToString(id))
	}
	for _, a := range bag.Attributes {
		if a.Type == oid.PKCS9FriendlyName || a.Type == oid.PKCS9LocalKeyID {
			continue
		}
		d.line(depth+1, "%s: %d value(s)", oid.Name(a.Type), len(a.Values))
	}

	switch {
	case bag.Cert != nil:
		d.certBag(depth+1, bag.Cert)
	case len(bag.Nested) > 0:
		for _, nested := range bag.Nested {
			d.safeBag(depth+1, nested)
		}
	case bag.Inner != nil:
		d.line(depth+1, "value: %s", der.Describe(bag.Inner))
	default:
		d.line(depth+1, "value: %s", der.Describe(bag.Value))
	}
}

func (d *dumper) certBag(depth int, cb *CertBag) {
	if cb.CertType != oid.PKCS9X509Certificate {
		d.line(depth, "certificate: %s, %d bytes", oid.Name(cb.CertType), len(cb.Certificate))
		return
	}
	c, err := cert.Parse(cb.Certificate)
	if err != nil {
		d.line(depth, "certificate: unparseable (%v)", err)
		return
	}
	d.line(depth, "certificate: %s", c.Subject())
	d.line(depth+1, "issuer: %s", c.Issuer())
	d.line(depth+1, "serial: %s", c.SerialNumber().Text(16))
	d.line(depth+1, "notAfter: %s", c.NotAfter().UTC().Format("2006-01-02 15:04:05 MST"))
}
