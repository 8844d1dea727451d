package pemutil

import (
	"bytes"
	"strings"
	"testing"
)

func TestEncode_WrapsAt64Columns(t *testing.T) {
	der := bytes.Repeat([]byte{0x30}, 100)
	out := string(Encode(LabelCertificate, der))

	if !strings.HasPrefix(out, "-----BEGIN CERTIFICATE-----\n") {
		t.Errorf("missing header: %q", out)
	}
	if !strings.HasSuffix(out, "-----END CERTIFICATE-----\n") {
		t.Errorf("missing footer: %q", out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	for _, line := range lines[1 : len(lines)-1] {
		if len(line) > 64 {
			t.Errorf("line longer than 64 columns: %d", len(line))
		}
	}
	if len(lines[1]) != 64 {
		t.Errorf("first body line = %d columns, want 64", len(lines[1]))
	}
}

func TestToDER(t *testing.T) {
	der := []byte{0x30, 0x03, 0x02, 0x01, 0x01}
	csr := []byte{0x30, 0x00}
	bundle := append(Encode(LabelCertificateRequest, csr), Encode(LabelCertificate, der)...)

	tests := []struct {
		name      string
		data      []byte
		label     string
		want      []byte
		wantLabel string
		wantErr   bool
	}{
		{"binary passthrough", der, LabelCertificate, der, "", false},
		{"first block", bundle, "", csr, LabelCertificateRequest, false},
		{"by label", bundle, LabelCertificate, der, LabelCertificate, false},
		{"missing label", bundle, LabelPKCS7, nil, "", true},
		{"leading whitespace", append([]byte("\n  "), bundle...), LabelCertificate, der, LabelCertificate, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, label, err := ToDER(tt.data, tt.label)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ToDER() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("ToDER() = %x, want %x", got, tt.want)
			}
			if label != tt.wantLabel {
				t.Errorf("label = %q, want %q", label, tt.wantLabel)
			}
		})
	}
}

func TestDecodeAll_Empty(t *testing.T) {
	if _, err := DecodeAll([]byte("-----BEGIN broken")); err == nil {
		t.Error("expected error")
	}
}
