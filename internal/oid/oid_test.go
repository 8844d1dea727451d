package oid

import "testing"

func TestName(t *testing.T) {
	tests := []struct {
		name   string
		dotted string
		want   string
	}{
		{"common name", CommonName, "commonName"},
		{"rsa encryption", RSAEncryption, "rsaEncryption"},
		{"sha256 with rsa", SHA256WithRSAEncryption, "sha256WithRSAEncryption"},
		{"extension request", PKCS9ExtensionRequest, "extensionRequest"},
		{"cert bag", PKCS12CertBag, "certBag"},
		{"unknown prints dotted", "1.2.3.4.5", "1.2.3.4.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Name(tt.dotted); got != tt.want {
				t.Errorf("Name(%q) = %q, want %q", tt.dotted, got, tt.want)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	if got, ok := Lookup("keyUsage"); !ok || got != ExtKeyUsage {
		t.Errorf("Lookup(keyUsage) = %q, %v", got, ok)
	}
	if got, ok := Lookup("KEYUSAGE"); !ok || got != ExtKeyUsage {
		t.Errorf("Lookup is not case-insensitive: %q, %v", got, ok)
	}
	if got, ok := Lookup(ExtBasicConstraints); !ok || got != ExtBasicConstraints {
		t.Errorf("Lookup(dotted) = %q, %v", got, ok)
	}
	if _, ok := Lookup("noSuchName"); ok {
		t.Error("Lookup(noSuchName) should fail")
	}
}

func TestKnown(t *testing.T) {
	if !Known(ExtSubjectKeyID) {
		t.Error("Known() should report a registered OID")
	}
	if Known("1.2.3.4.5") {
		t.Error("Known() should reject an unregistered OID")
	}
}

func TestLess(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"2.5.4.3", "2.5.4.10", true},
		{"2.5.4.10", "2.5.4.3", false},
		{"1.2", "1.2.840", true},
		{"1.2.840", "1.2.840", false},
		{"0.9.2342", "1.2", true},
	}
	for _, tt := range tests {
		if got := Less(tt.a, tt.b); got != tt.want {
			t.Errorf("Less(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestAll_Sorted(t *testing.T) {
	entries := All()
	if len(entries) != len(names) {
		t.Fatalf("All() returned %d entries, want %d", len(entries), len(names))
	}
	for i := 1; i < len(entries); i++ {
		if Less(entries[i].OID, entries[i-1].OID) {
			t.Errorf("entries out of order: %s before %s", entries[i-1].OID, entries[i].OID)
		}
	}
}
