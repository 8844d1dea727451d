// Package oid provides the compiled-in registry of object identifiers used
// by the DER codec and the X.509, PKCS#10 and PKCS#12 models.
//
// OIDs are kept in dotted form. The registry is read-only: it is populated
// at package initialization and never written afterwards, so it is safe for
// concurrent use.
package oid

import (
	"sort"
	"strconv"
	"strings"
)

// X.500 attribute types.
const (
	CommonName         = "2.5.4.3"
	Surname            = "2.5.4.4"
	SerialNumber       = "2.5.4.5"
	Country            = "2.5.4.6"
	Locality           = "2.5.4.7"
	StateOrProvince    = "2.5.4.8"
	Street             = "2.5.4.9"
	Organization       = "2.5.4.10"
	OrganizationalUnit = "2.5.4.11"
	Title              = "2.5.4.12"
	BusinessCategory   = "2.5.4.15"
	PostalCode         = "2.5.4.17"
	GivenName          = "2.5.4.42"
	DomainComponent    = "0.9.2342.19200300.100.1.25"
	UserID             = "0.9.2342.19200300.100.1.1"
	EmailAddress       = "1.2.840.113549.1.9.1"

	// Jurisdiction attributes used by EV certificates
	JurisdictionLocality = "1.3.6.1.4.1.311.60.2.1.1"
	JurisdictionState    = "1.3.6.1.4.1.311.60.2.1.2"
	JurisdictionCountry  = "1.3.6.1.4.1.311.60.2.1.3"
)

// X.509v3 certificate extensions.
const (
	ExtSubjectKeyID          = "2.5.29.14"
	ExtKeyUsage              = "2.5.29.15"
	ExtSubjectAltName        = "2.5.29.17"
	ExtIssuerAltName         = "2.5.29.18"
	ExtBasicConstraints      = "2.5.29.19"
	ExtCRLDistributionPoints = "2.5.29.31"
	ExtCertificatePolicies   = "2.5.29.32"
	ExtAuthorityKeyID        = "2.5.29.35"
	ExtExtendedKeyUsage      = "2.5.29.37"
	ExtAuthorityInfoAccess   = "1.3.6.1.5.5.7.1.1"
	ExtSCTList               = "1.3.6.1.4.1.11129.2.4.2"
)

// Extended key usage purposes.
const (
	KeyPurposeServerAuth = "1.3.6.1.5.5.7.3.1"
	KeyPurposeClientAuth = "1.3.6.1.5.5.7.3.2"
)

// Public key and signature algorithms.
const (
	RSAEncryption           = "1.2.840.113549.1.1.1"
	SHA1WithRSAEncryption   = "1.2.840.113549.1.1.5"
	RSASSAPSS               = "1.2.840.113549.1.1.10"
	SHA256WithRSAEncryption = "1.2.840.113549.1.1.11"
	SHA384WithRSAEncryption = "1.2.840.113549.1.1.12"
	SHA512WithRSAEncryption = "1.2.840.113549.1.1.13"

	ECPublicKey     = "1.2.840.10045.2.1"
	ECDSAWithSHA256 = "1.2.840.10045.4.3.2"
	ECDSAWithSHA384 = "1.2.840.10045.4.3.3"
	CurveP256       = "1.2.840.10045.3.1.7"
	CurveP384       = "1.3.132.0.34"

	Ed25519 = "1.3.101.112"

	// ML-DSA (FIPS 204)
	MLDSA44 = "2.16.840.1.101.3.4.3.17"
	MLDSA65 = "2.16.840.1.101.3.4.3.18"
	MLDSA87 = "2.16.840.1.101.3.4.3.19"

	SHA1   = "1.3.14.3.2.26"
	SHA256 = "2.16.840.1.101.3.4.2.1"
	SHA512 = "2.16.840.1.101.3.4.2.3"
)

// PKCS#7 content types.
const (
	PKCS7Data          = "1.2.840.113549.1.7.1"
	PKCS7SignedData    = "1.2.840.113549.1.7.2"
	PKCS7EnvelopedData = "1.2.840.113549.1.7.3"
	PKCS7DigestedData  = "1.2.840.113549.1.7.5"
	PKCS7EncryptedData = "1.2.840.113549.1.7.6"
)

// PKCS#9 attributes.
const (
	PKCS9ChallengePassword = "1.2.840.113549.1.9.7"
	PKCS9ExtensionRequest  = "1.2.840.113549.1.9.14"
	PKCS9FriendlyName      = "1.2.840.113549.1.9.20"
	PKCS9LocalKeyID        = "1.2.840.113549.1.9.21"
	PKCS9X509Certificate   = "1.2.840.113549.1.9.22.1"
)

// PKCS#12 bag types and password-based encryption schemes.
const (
	PKCS12KeyBag               = "1.2.840.113549.1.12.10.1.1"
	PKCS12PKCS8ShroudedKeyBag  = "1.2.840.113549.1.12.10.1.2"
	PKCS12CertBag              = "1.2.840.113549.1.12.10.1.3"
	PKCS12CRLBag               = "1.2.840.113549.1.12.10.1.4"
	PKCS12SecretBag            = "1.2.840.113549.1.12.10.1.5"
	PKCS12SafeContentsBag      = "1.2.840.113549.1.12.10.1.6"
	PBEWithSHAAnd3KeyTripleDES = "1.2.840.113549.1.12.1.3"
	PBEWithSHAAnd40BitRC2CBC   = "1.2.840.113549.1.12.1.6"
	PBES2                      = "1.2.840.113549.1.5.13"
	PBKDF2                     = "1.2.840.113549.1.5.12"
	HMACWithSHA256             = "1.2.840.113549.2.9"
	AES256CBC                  = "2.16.840.1.101.3.4.1.42"
)

var names = map[string]string{
	CommonName:           "commonName",
	Surname:              "surname",
	SerialNumber:         "serialNumber",
	Country:              "countryName",
	Locality:             "localityName",
	StateOrProvince:      "stateOrProvinceName",
	Street:               "streetAddress",
	Organization:         "organizationName",
	OrganizationalUnit:   "organizationalUnitName",
	Title:                "title",
	BusinessCategory:     "businessCategory",
	PostalCode:           "postalCode",
	GivenName:            "givenName",
	DomainComponent:      "domainComponent",
	UserID:               "userId",
	EmailAddress:         "emailAddress",
	JurisdictionLocality: "jurisdictionLocalityName",
	JurisdictionState:    "jurisdictionStateOrProvinceName",
	JurisdictionCountry:  "jurisdictionCountryName",

	ExtSubjectKeyID:          "subjectKeyIdentifier",
	ExtKeyUsage:              "keyUsage",
	ExtSubjectAltName:        "subjectAltName",
	ExtIssuerAltName:         "issuerAltName",
	ExtBasicConstraints:      "basicConstraints",
	ExtCRLDistributionPoints: "cRLDistributionPoints",
	ExtCertificatePolicies:   "certificatePolicies",
	ExtAuthorityKeyID:        "authorityKeyIdentifier",
	ExtExtendedKeyUsage:      "extKeyUsage",
	ExtAuthorityInfoAccess:   "authorityInfoAccess",
	ExtSCTList:               "signedCertificateTimestampList",

	KeyPurposeServerAuth: "serverAuth",
	KeyPurposeClientAuth: "clientAuth",

	RSAEncryption:           "rsaEncryption",
	SHA1WithRSAEncryption:   "sha1WithRSAEncryption",
	RSASSAPSS:               "rsassa-pss",
	SHA256WithRSAEncryption: "sha256WithRSAEncryption",
	SHA384WithRSAEncryption: "sha384WithRSAEncryption",
	SHA512WithRSAEncryption: "sha512WithRSAEncryption",
	ECPublicKey:             "ecPublicKey",
	ECDSAWithSHA256:         "ecdsa-with-SHA256",
	ECDSAWithSHA384:         "ecdsa-with-SHA384",
	CurveP256:               "prime256v1",
	CurveP384:               "secp384r1",
	Ed25519:                 "Ed25519",
	MLDSA44:                 "id-ml-dsa-44",
	MLDSA65:                 "id-ml-dsa-65",
	MLDSA87:                 "id-ml-dsa-87",
	SHA1:                    "sha1",
	SHA256:                  "sha256",
	SHA512:                  "sha512",

	PKCS7Data:          "data",
	PKCS7SignedData:    "signedData",
	PKCS7EnvelopedData: "envelopedData",
	PKCS7DigestedData:  "digestedData",
	PKCS7EncryptedData: "encryptedData",

	PKCS9ChallengePassword: "challengePassword",
	PKCS9ExtensionRequest:  "extensionRequest",
	PKCS9FriendlyName:      "friendlyName",
	PKCS9LocalKeyID:        "localKeyID",
	PKCS9X509Certificate:   "x509Certificate",

	PKCS12KeyBag:               "keyBag",
	PKCS12PKCS8ShroudedKeyBag:  "pkcs8ShroudedKeyBag",
	PKCS12CertBag:              "certBag",
	PKCS12CRLBag:               "crlBag",
	PKCS12SecretBag:            "secretBag",
	PKCS12SafeContentsBag:      "safeContentsBag",
	PBEWithSHAAnd3KeyTripleDES: "pbeWithSHAAnd3-KeyTripleDES-CBC",
	PBEWithSHAAnd40BitRC2CBC:   "pbeWithSHAAnd40BitRC2-CBC",
	PBES2:                      "PBES2",
	PBKDF2:                     "PBKDF2",
	HMACWithSHA256:             "hmacWithSHA256",
	AES256CBC:                  "aes256-CBC",
}

var byName = func() map[string]string {
	m := make(map[string]string, len(names))
	for dotted, name := range names {
		m[strings.ToLower(name)] = dotted
	}
	return m
}()

// Name returns the registered name for a dotted OID, or the dotted string
// itself when the OID is unknown.
func Name(dotted string) string {
	if name, ok := names[dotted]; ok {
		return name
	}
	return dotted
}

// Known reports whether the dotted OID has a registered name.
func Known(dotted string) bool {
	_, ok := names[dotted]
	return ok
}

// Lookup resolves a registered name (case-insensitive) or a dotted OID to
// its dotted form.
func Lookup(nameOrDotted string) (string, bool) {
	if _, ok := names[nameOrDotted]; ok {
		return nameOrDotted, true
	}
	dotted, ok := byName[strings.ToLower(nameOrDotted)]
	return dotted, ok
}

// Entry is one row of the registry.
type Entry struct {
	OID  string
	Name string
}

// All returns every registered OID, ordered by arc value.
func All() []Entry {
	entries := make([]Entry, 0, len(names))
	for dotted, name := range names {
		entries = append(entries, Entry{OID: dotted, Name: name})
	}
	sort.Slice(entries, func(i, j int) bool {
		return Less(entries[i].OID, entries[j].OID)
	})
	return entries
}

// Less orders dotted OIDs arc by arc numerically.
func Less(a, b string) bool {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		if as[i] == bs[i] {
			continue
		}
		ai, aerr := strconv.ParseUint(as[i], 10, 64)
		bi, berr := strconv.ParseUint(bs[i], 10, 64)
		if aerr != nil || berr != nil {
			return as[i] < bs[i]
		}
		return ai < bi
	}
	return len(as) < len(bs)
}
