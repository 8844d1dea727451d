package crypto

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"

	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
)

var rsaAlgorithms = map[AlgorithmID]bool{
	AlgRSA2048:       true,
	AlgRSA4096:       true,
	AlgRSA4096SHA512: true,
}

type verifyFunc func(alg AlgorithmID, pub crypto.PublicKey, message, signature []byte) bool

var verifiers = map[AlgorithmID]verifyFunc{
	AlgRSA2048:       verifyRSA,
	AlgRSA4096:       verifyRSA,
	AlgRSA4096SHA512: verifyRSA,
	AlgECDSAP256:     verifyECDSA,
	AlgECDSAP384:     verifyECDSA,
	AlgEd25519:       verifyEd25519,
	AlgMLDSA65:       verifyMLDSA65,
}

// Verify reports whether signature is valid for message under pub. The
// message is hashed first when alg carries a digest.
func Verify(alg AlgorithmID, pub crypto.PublicKey, message, signature []byte) bool {
	v, ok := verifiers[alg]
	if !ok {
		return false
	}
	return v(alg, pub, message, signature)
}

func messageDigest(alg AlgorithmID, message []byte) []byte {
	h := alg.Hash().New()
	h.Write(message)
	return h.Sum(nil)
}

func verifyRSA(alg AlgorithmID, pub crypto.PublicKey, message, signature []byte) bool {
	k, ok := pub.(*rsa.PublicKey)
	return ok && rsa.VerifyPKCS1v15(k, alg.Hash(), messageDigest(alg, message), signature) == nil
}

func verifyECDSA(alg AlgorithmID, pub crypto.PublicKey, message, signature []byte) bool {
	k, ok := pub.(*ecdsa.PublicKey)
	return ok && ecdsa.VerifyASN1(k, messageDigest(alg, message), signature)
}

func verifyEd25519(_ AlgorithmID, pub crypto.PublicKey, message, signature []byte) bool {
	k, ok := pub.(ed25519.PublicKey)
	return ok && ed25519.Verify(k, message, signature)
}

func verifyMLDSA65(_ AlgorithmID, pub crypto.PublicKey, message, signature []byte) bool {
	k, ok := pub.(*mldsa65.PublicKey)
	return ok && mldsa65.Verify(k, message, nil, signature)
}
