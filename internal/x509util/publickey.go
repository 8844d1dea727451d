package x509util

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/sha1"
	"fmt"
	"math/big"

	"github.com/cloudflare/circl/sign/mldsa/mldsa65"

	"github.com/remiblancher/derpki/internal/der"
	"github.com/remiblancher/derpki/internal/oid"
)

// PublicKeyInfo is a SubjectPublicKeyInfo:
//
//	SubjectPublicKeyInfo ::= SEQUENCE {
//	    algorithm         AlgorithmIdentifier,
//	    subjectPublicKey  BIT STRING
//	}
type PublicKeyInfo struct {
	Algorithm AlgorithmIdentifier

	// Key is the subjectPublicKey octets.
	Key []byte

	node der.Node
}

// NewPublicKeyInfo encodes an RSA, ECDSA, Ed25519 or ML-DSA-65 public key.
func NewPublicKeyInfo(pub crypto.PublicKey) (PublicKeyInfo, error) {
	var (
		alg AlgorithmIdentifier
		key []byte
		err error
	)
	switch k := pub.(type) {
	case *rsa.PublicKey:
		alg, err = NewAlgorithmIdentifier(oid.RSAEncryption, der.NewNull())
		key = der.Encode(der.NewSequence(der.NewInteger(k.N), der.NewInt64(int64(k.E))))
	case *ecdsa.PublicKey:
		var curve string
		switch k.Curve {
		case elliptic.P256():
			curve = oid.CurveP256
		case elliptic.P384():
			curve = oid.CurveP384
		default:
			return PublicKeyInfo{}, der.Unsupported("elliptic curve %s", k.Curve.Params().Name)
		}
		point, ecErr := k.ECDH()
		if ecErr != nil {
			return PublicKeyInfo{}, fmt.Errorf("public key info: %w", ecErr)
		}
		key = point.Bytes()
		alg, err = NewAlgorithmIdentifier(oid.ECPublicKey, der.MustOID(curve))
	case ed25519.PublicKey:
		alg, err = NewAlgorithmIdentifier(oid.Ed25519, nil)
		key = append([]byte(nil), k...)
	case *mldsa65.PublicKey:
		alg, err = NewAlgorithmIdentifier(oid.MLDSA65, nil)
		if err == nil {
			key, err = k.MarshalBinary()
		}
	default:
		return PublicKeyInfo{}, der.Unsupported("public key type %T", pub)
	}
	if err != nil {
		return PublicKeyInfo{}, fmt.Errorf("public key info: %w", err)
	}
	return PublicKeyInfo{
		Algorithm: alg,
		Key:       key,
		node:      der.NewSequence(alg.DER(), der.NewBitStringBytes(key)),
	}, nil
}

// PublicKeyInfoFromDER decodes a SubjectPublicKeyInfo.
func PublicKeyInfoFromDER(n der.Node) (PublicKeyInfo, error) {
	seq, err := der.As[*der.Sequence](n)
	if err != nil {
		return PublicKeyInfo{}, fmt.Errorf("public key info: %w", err)
	}
	if seq.NumChildren() != 2 {
		return PublicKeyInfo{}, fmt.Errorf("public key info: %w", der.Unsupported("%d elements", seq.NumChildren()))
	}
	alg, err := AlgorithmIdentifierFromDER(seq.Child(0))
	if err != nil {
		return PublicKeyInfo{}, fmt.Errorf("public key info: %w", err)
	}
	bits, err := der.ChildAs[*der.BitString](seq, 1)
	if err != nil {
		return PublicKeyInfo{}, fmt.Errorf("public key info: %w", err)
	}
	if bits.Unused() != 0 {
		return PublicKeyInfo{}, fmt.Errorf("public key info: %w", der.Unsupported("key with %d unused bits", bits.Unused()))
	}
	return PublicKeyInfo{Algorithm: alg, Key: bits.Data(), node: seq}, nil
}

// DER returns the SubjectPublicKeyInfo node.
func (p PublicKeyInfo) DER() der.Node { return p.node }

// RSA returns the modulus and public exponent of an RSA key.
func (p PublicKeyInfo) RSA() (*big.Int, int, error) {
	if p.Algorithm.OID != oid.RSAEncryption {
		return nil, 0, der.Unsupported("%s is not an RSA key", p.Algorithm.Name())
	}
	n, err := der.Parse(p.Key)
	if err != nil {
		return nil, 0, fmt.Errorf("RSA public key: %w", err)
	}
	seq, err := der.As[*der.Sequence](n)
	if err != nil {
		return nil, 0, fmt.Errorf("RSA public key: %w", err)
	}
	modulus, err := der.ChildAs[*der.Integer](seq, 0)
	if err != nil {
		return nil, 0, fmt.Errorf("RSA modulus: %w", err)
	}
	exponent, err := der.ChildAs[*der.Integer](seq, 1)
	if err != nil {
		return nil, 0, fmt.Errorf("RSA exponent: %w", err)
	}
	e, err := exponent.Int64()
	if err != nil || e < 3 || e > 1<<31-1 {
		return nil, 0, der.Unsupported("RSA exponent %s", exponent.String())
	}
	return modulus.BigInt(), int(e), nil
}

// PublicKey converts the key into its crypto package form.
func (p PublicKeyInfo) PublicKey() (crypto.PublicKey, error) {
	switch p.Algorithm.OID {
	case oid.RSAEncryption:
		n, e, err := p.RSA()
		if err != nil {
			return nil, err
		}
		return &rsa.PublicKey{N: n, E: e}, nil
	case oid.ECPublicKey:
		return p.ecdsaKey()
	case oid.Ed25519:
		if len(p.Key) != ed25519.PublicKeySize {
			return nil, der.Unsupported("Ed25519 key of %d bytes", len(p.Key))
		}
		return ed25519.PublicKey(append([]byte(nil), p.Key...)), nil
	case oid.MLDSA65:
		var pub mldsa65.PublicKey
		if err := pub.UnmarshalBinary(p.Key); err != nil {
			return nil, fmt.Errorf("ML-DSA-65 public key: %w", err)
		}
		return &pub, nil
	}
	return nil, der.Unsupported("public key algorithm %s", p.Algorithm.Name())
}

func (p PublicKeyInfo) ecdsaKey() (*ecdsa.PublicKey, error) {
	curveOID, ok := p.Algorithm.Params.(*der.ObjectIdentifier)
	if !ok {
		return nil, der.Unsupported("EC key without named curve")
	}
	var curve elliptic.Curve
	switch curveOID.String() {
	case oid.CurveP256:
		curve = elliptic.P256()
	case oid.CurveP384:
		curve = elliptic.P384()
	default:
		return nil, der.Unsupported("elliptic curve %s", curveOID.Name())
	}
	pub, err := ecdsa.ParseUncompressedPublicKey(curve, p.Key)
	if err != nil {
		return nil, der.Unsupported("invalid EC point: %v", err)
	}
	return pub, nil
}

// KeyID returns the SHA-1 of the subjectPublicKey octets, the usual subject
// key identifier.
func (p PublicKeyInfo) KeyID() []byte {
	sum := sha1.Sum(p.Key)
	return sum[:]
}
