package x509util

import (
	"testing"

	"github.com/remiblancher/derpki/internal/der"
)

// =============================================================================
// Decoder Fuzz Tests
// =============================================================================

// Names, public keys and extensions all arrive from untrusted requests
// and certificates; the decoders must reject bad input without panicking.

func fuzzSeeds(f *testing.F) {
	f.Add([]byte{0x30, 0x00})                         // Empty SEQUENCE
	f.Add([]byte{0x30, 0x03, 0x02, 0x01, 0x00})       // SEQUENCE with INTEGER 0
	f.Add([]byte{0x30, 0x80})                         // Indefinite length
	f.Add([]byte{0xa0, 0x00})                         // Context-specific tag [0]
	f.Add([]byte{0x00, 0x00, 0x00, 0x00})             // Null bytes
	f.Add([]byte{0xff, 0xff, 0xff, 0xff})             // All 1s
	f.Add([]byte{0x30, 0x82, 0x00, 0x00})             // Non-minimal long form length
	f.Add(der.Encode(MustParseName("CN=fuzz,O=derpki").DER()))
	f.Add([]byte{0x30, 0x06, 0x31, 0x04, 0x30, 0x02, 0x06, 0x00}) // RDN with empty OID
}

func FuzzNameFromDER(f *testing.F) {
	fuzzSeeds(f)
	f.Fuzz(func(t *testing.T, data []byte) {
		n, err := der.Parse(data)
		if err != nil {
			return
		}
		name, err := NameFromDER(n)
		if err != nil {
			return
		}
		_ = name.String()
	})
}

func FuzzPublicKeyInfoFromDER(f *testing.F) {
	fuzzSeeds(f)
	f.Fuzz(func(t *testing.T, data []byte) {
		n, err := der.Parse(data)
		if err != nil {
			return
		}
		spki, err := PublicKeyInfoFromDER(n)
		if err != nil {
			return
		}
		_, _ = spki.PublicKey()
	})
}

func FuzzExtensionsFromDER(f *testing.F) {
	fuzzSeeds(f)
	f.Fuzz(func(t *testing.T, data []byte) {
		n, err := der.Parse(data)
		if err != nil {
			return
		}
		exts, err := ExtensionsFromDER(n)
		if err != nil {
			return
		}
		for _, e := range exts {
			if v, err := e.Decode(); err == nil {
				_ = v.String()
			}
		}
	})
}
