// Package pemutil converts between PEM armor and the DER bytes consumed by
// the codec.
package pemutil

import (
	"bytes"
	"encoding/pem"
	"fmt"
)

// Block labels.
const (
	LabelCertificate        = "CERTIFICATE"
	LabelCertificateRequest = "CERTIFICATE REQUEST"
	LabelPKCS7              = "PKCS7"
)

// Block is one decoded PEM block.
type Block struct {
	Label string
	Bytes []byte
}

// Encode armors der under label, base64 wrapped at 64 columns.
func Encode(label string, der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: label, Bytes: der})
}

// IsPEM reports whether data starts, after leading whitespace, with a PEM
// header line.
func IsPEM(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte("-----BEGIN "))
}

// DecodeAll returns every PEM block in data, in order.
func DecodeAll(data []byte) ([]Block, error) {
	var blocks []Block
	rest := data
	for {
		var b *pem.Block
		b, rest = pem.Decode(rest)
		if b == nil {
			break
		}
		blocks = append(blocks, Block{Label: b.Type, Bytes: b.Bytes})
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("no PEM block found")
	}
	return blocks, nil
}

// ToDER returns data unchanged when it is binary, or the bytes of its first
// PEM block with the given label. An empty label accepts any block. The
// label found is returned alongside.
func ToDER(data []byte, label string) ([]byte, string, error) {
	if !IsPEM(data) {
		return data, "", nil
	}
	blocks, err := DecodeAll(data)
	if err != nil {
		return nil, "", err
	}
	for _, b := range blocks {
		if label == "" || b.Label == label {
			return b.Bytes, b.Label, nil
		}
	}
	return nil, "", fmt.Errorf("no %s PEM block found", label)
}
