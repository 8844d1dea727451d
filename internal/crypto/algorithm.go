// Package crypto provides the signing primitive used by the certificate and
// CSR builders. It supports RSA, ECDSA and Ed25519 from the standard library
// and post-quantum ML-DSA-65 via the cloudflare/circl library.
package crypto

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"fmt"
	"sort"

	"github.com/cloudflare/circl/sign/mldsa/mldsa65"

	"github.com/remiblancher/derpki/internal/oid"
)

// AlgorithmID identifies a signature algorithm and key type.
type AlgorithmID string

// Classical signature algorithms.
const (
	AlgRSA2048       AlgorithmID = "rsa-2048"
	AlgRSA4096       AlgorithmID = "rsa-4096"
	AlgRSA4096SHA512 AlgorithmID = "rsa-4096-sha512"
	AlgECDSAP256     AlgorithmID = "ecdsa-p256"
	AlgECDSAP384     AlgorithmID = "ecdsa-p384"
	AlgEd25519       AlgorithmID = "ed25519"
)

// Post-quantum signature algorithms (FIPS 204 ML-DSA).
const (
	AlgMLDSA65 AlgorithmID = "ml-dsa-65"
)

// algorithmInfo holds metadata about an algorithm.
type algorithmInfo struct {
	SignatureOID string
	Hash         crypto.Hash
	KeySizeBits  int
	PQC          bool
	Description  string
}

// algorithms maps AlgorithmID to its metadata.
var algorithms = map[AlgorithmID]algorithmInfo{
	AlgRSA2048: {
		SignatureOID: oid.SHA256WithRSAEncryption,
		Hash:         crypto.SHA256,
		KeySizeBits:  2048,
		Description:  "RSA 2048-bit, PKCS#1 v1.5 with SHA-256",
	},
	AlgRSA4096: {
		SignatureOID: oid.SHA256WithRSAEncryption,
		Hash:         crypto.SHA256,
		KeySizeBits:  4096,
		Description:  "RSA 4096-bit, PKCS#1 v1.5 with SHA-256",
	},
	AlgRSA4096SHA512: {
		SignatureOID: oid.SHA512WithRSAEncryption,
		Hash:         crypto.SHA512,
		KeySizeBits:  4096,
		Description:  "RSA 4096-bit, PKCS#1 v1.5 with SHA-512",
	},
	AlgECDSAP256: {
		SignatureOID: oid.ECDSAWithSHA256,
		Hash:         crypto.SHA256,
		KeySizeBits:  256,
		Description:  "ECDSA with P-256 curve",
	},
	AlgECDSAP384: {
		SignatureOID: oid.ECDSAWithSHA384,
		Hash:         crypto.SHA384,
		KeySizeBits:  384,
		Description:  "ECDSA with P-384 curve",
	},
	AlgEd25519: {
		SignatureOID: oid.Ed25519,
		KeySizeBits:  256,
		Description:  "Ed25519 (EdDSA with Curve25519)",
	},
	AlgMLDSA65: {
		SignatureOID: oid.MLDSA65,
		PQC:          true,
		Description:  "ML-DSA-65 (NIST Level 3)",
	},
}

// IsValid returns true if the algorithm is recognized.
func (a AlgorithmID) IsValid() bool {
	_, ok := algorithms[a]
	return ok
}

// IsPQC returns true for post-quantum algorithms.
func (a AlgorithmID) IsPQC() bool {
	return algorithms[a].PQC
}

// SignatureOID returns the dotted signature algorithm OID, or "" when the
// algorithm is unknown.
func (a AlgorithmID) SignatureOID() string {
	return algorithms[a].SignatureOID
}

// Hash returns the digest applied before signing. It is zero for
// algorithms that sign the message directly (Ed25519, ML-DSA).
func (a AlgorithmID) Hash() crypto.Hash {
	return algorithms[a].Hash
}

// Description returns a human-readable description of the algorithm.
func (a AlgorithmID) Description() string {
	if info, ok := algorithms[a]; ok {
		return info.Description
	}
	return "Unknown algorithm"
}

// String returns the algorithm identifier as a string.
func (a AlgorithmID) String() string {
	return string(a)
}

// ParseAlgorithm parses a string into an AlgorithmID.
// Returns an error if the algorithm is not recognized.
func ParseAlgorithm(s string) (AlgorithmID, error) {
	alg := AlgorithmID(s)
	if !alg.IsValid() {
		return "", fmt.Errorf("unknown algorithm: %s", s)
	}
	return alg, nil
}

// AllAlgorithms returns the supported algorithm IDs in name order.
func AllAlgorithms() []AlgorithmID {
	result := make([]AlgorithmID, 0, len(algorithms))
	for alg := range algorithms {
		result = append(result, alg)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// AlgorithmFromSignatureOID maps a signature algorithm OID and the
// verifying key to an AlgorithmID. The key disambiguates RSA key sizes.
func AlgorithmFromSignatureOID(sigOID string, pub crypto.PublicKey) (AlgorithmID, error) {
	switch sigOID {
	case oid.SHA256WithRSAEncryption, oid.SHA512WithRSAEncryption:
		k, ok := pub.(*rsa.PublicKey)
		if !ok {
			return "", fmt.Errorf("signature algorithm %s needs an RSA key, got %T", oid.Name(sigOID), pub)
		}
		if sigOID == oid.SHA512WithRSAEncryption {
			return AlgRSA4096SHA512, nil
		}
		if k.N.BitLen() > 2048 {
			return AlgRSA4096, nil
		}
		return AlgRSA2048, nil
	case oid.ECDSAWithSHA256, oid.ECDSAWithSHA384:
		if _, ok := pub.(*ecdsa.PublicKey); !ok {
			return "", fmt.Errorf("signature algorithm %s needs an ECDSA key, got %T", oid.Name(sigOID), pub)
		}
		if sigOID == oid.ECDSAWithSHA384 {
			return AlgECDSAP384, nil
		}
		return AlgECDSAP256, nil
	case oid.Ed25519:
		if _, ok := pub.(ed25519.PublicKey); !ok {
			return "", fmt.Errorf("signature algorithm Ed25519 needs an Ed25519 key, got %T", pub)
		}
		return AlgEd25519, nil
	case oid.MLDSA65:
		if _, ok := pub.(*mldsa65.PublicKey); !ok {
			return "", fmt.Errorf("signature algorithm ML-DSA-65 needs an ML-DSA-65 key, got %T", pub)
		}
		return AlgMLDSA65, nil
	}
	return "", fmt.Errorf("unsupported signature algorithm %s", oid.Name(sigOID))
}
