package crypto

import (
	"crypto"
	_ "crypto/sha256" // digests for RSA and ECDSA
	_ "crypto/sha512"
	"errors"
	"fmt"
	"io"
)

// ErrSigningFailure classifies errors raised by a signing primitive. The
// certificate and CSR builders return signer errors unchanged; callers
// at the process boundary wrap them with this sentinel.
var ErrSigningFailure = errors.New("signing failure")

// Signer extends crypto.Signer with algorithm metadata.
type Signer interface {
	crypto.Signer

	// Algorithm returns the algorithm identifier for this signer.
	Algorithm() AlgorithmID
}

// SignMessage signs message with s, hashing it first when the algorithm
// requires a digest.
func SignMessage(random io.Reader, s Signer, message []byte) ([]byte, error) {
	hash := s.Algorithm().Hash()
	if hash == 0 {
		return s.Sign(random, message, crypto.Hash(0))
	}
	if !hash.Available() {
		return nil, fmt.Errorf("hash %v not available", hash)
	}
	h := hash.New()
	h.Write(message)
	return s.Sign(random, h.Sum(nil), hash)
}
