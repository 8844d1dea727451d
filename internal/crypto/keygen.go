package crypto

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"io"

	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
)

// KeyPair is a generated key and the algorithm it was made for.
type KeyPair struct {
	Algorithm  AlgorithmID
	PrivateKey crypto.PrivateKey
	PublicKey  crypto.PublicKey
}

// keyGenerators maps each algorithm to the function creating its private
// key. Every key type implements crypto.Signer, which yields the public half.
var keyGenerators = map[AlgorithmID]func(io.Reader) (crypto.Signer, error){
	AlgRSA2048:       rsaGenerator(2048),
	AlgRSA4096:       rsaGenerator(4096),
	AlgRSA4096SHA512: rsaGenerator(4096),
	AlgECDSAP256:     ecdsaGenerator(elliptic.P256()),
	AlgECDSAP384:     ecdsaGenerator(elliptic.P384()),
	AlgEd25519: func(r io.Reader) (crypto.Signer, error) {
		_, priv, err := ed25519.GenerateKey(r)
		return priv, err
	},
	AlgMLDSA65: func(r io.Reader) (crypto.Signer, error) {
		_, priv, err := mldsa65.GenerateKey(r)
		return priv, err
	},
}

func rsaGenerator(bits int) func(io.Reader) (crypto.Signer, error) {
	return func(r io.Reader) (crypto.Signer, error) { return rsa.GenerateKey(r, bits) }
}

func ecdsaGenerator(curve elliptic.Curve) func(io.Reader) (crypto.Signer, error) {
	return func(r io.Reader) (crypto.Signer, error) { return ecdsa.GenerateKey(curve, r) }
}

// GenerateKeyPair generates a key pair for alg from crypto/rand.
func GenerateKeyPair(alg AlgorithmID) (*KeyPair, error) {
	return GenerateKeyPairWithRand(rand.Reader, alg)
}

// GenerateKeyPairWithRand generates a key pair for alg from random.
func GenerateKeyPairWithRand(random io.Reader, alg AlgorithmID) (*KeyPair, error) {
	gen, ok := keyGenerators[alg]
	if !ok {
		return nil, fmt.Errorf("unsupported algorithm: %s", alg)
	}
	priv, err := gen(random)
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s key: %w", alg, err)
	}
	return &KeyPair{Algorithm: alg, PrivateKey: priv, PublicKey: priv.Public()}, nil
}

// algorithmForKey infers the AlgorithmID of a loaded private key.
func algorithmForKey(priv crypto.PrivateKey) (AlgorithmID, crypto.PublicKey, error) {
	switch k := priv.(type) {
	case *rsa.PrivateKey:
		if k.N.BitLen() > 2048 {
			return AlgRSA4096, &k.PublicKey, nil
		}
		return AlgRSA2048, &k.PublicKey, nil
	case *ecdsa.PrivateKey:
		switch k.Curve {
		case elliptic.P256():
			return AlgECDSAP256, &k.PublicKey, nil
		case elliptic.P384():
			return AlgECDSAP384, &k.PublicKey, nil
		}
		return "", nil, fmt.Errorf("unsupported curve: %s", k.Curve.Params().Name)
	case ed25519.PrivateKey:
		return AlgEd25519, k.Public(), nil
	case *mldsa65.PrivateKey:
		return AlgMLDSA65, k.Public(), nil
	}
	return "", nil, fmt.Errorf("unsupported private key type: %T", priv)
}
