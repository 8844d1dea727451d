// Package x509util provides the X.509 building blocks shared by the
// certificate and CSR models: distinguished names, algorithm identifiers,
// subject public key info and typed v3 extensions, all expressed over the
// DER node model.
package x509util

import (
	"fmt"

	"github.com/remiblancher/derpki/internal/der"
	"github.com/remiblancher/derpki/internal/oid"
)

// AlgorithmIdentifier is the X.509 AlgorithmIdentifier:
//
//	AlgorithmIdentifier ::= SEQUENCE {
//	    algorithm   OBJECT IDENTIFIER,
//	    parameters  ANY DEFINED BY algorithm OPTIONAL
//	}
type AlgorithmIdentifier struct {
	// OID is the dotted algorithm OID.
	OID string

	// Params holds the parameters, or nil when absent.
	Params der.Node

	node der.Node
}

// NewAlgorithmIdentifier builds an identifier with optional parameters.
func NewAlgorithmIdentifier(algorithm string, params der.Node) (AlgorithmIdentifier, error) {
	o, err := der.NewOID(algorithm)
	if err != nil {
		return AlgorithmIdentifier{}, err
	}
	children := []der.Node{o}
	if params != nil {
		children = append(children, params)
	}
	return AlgorithmIdentifier{OID: o.String(), Params: params, node: der.NewSequence(children...)}, nil
}

// SignatureAlgorithm returns the identifier for a signature algorithm OID.
// RSA PKCS#1 v1.5 algorithms carry NULL parameters; ECDSA, Ed25519 and
// ML-DSA carry none.
func SignatureAlgorithm(algorithm string) (AlgorithmIdentifier, error) {
	switch algorithm {
	case oid.RSAEncryption, oid.SHA1WithRSAEncryption, oid.SHA256WithRSAEncryption,
		oid.SHA384WithRSAEncryption, oid.SHA512WithRSAEncryption:
		return NewAlgorithmIdentifier(algorithm, der.NewNull())
	}
	return NewAlgorithmIdentifier(algorithm, nil)
}

// AlgorithmIdentifierFromDER decodes an AlgorithmIdentifier, keeping the
// node for byte-exact re-encoding.
func AlgorithmIdentifierFromDER(n der.Node) (AlgorithmIdentifier, error) {
	seq, err := der.As[*der.Sequence](n)
	if err != nil {
		return AlgorithmIdentifier{}, fmt.Errorf("algorithm identifier: %w", err)
	}
	if seq.NumChildren() < 1 || seq.NumChildren() > 2 {
		return AlgorithmIdentifier{}, fmt.Errorf("algorithm identifier: %w",
			der.Unsupported("%d elements", seq.NumChildren()))
	}
	o, err := der.ChildAs[*der.ObjectIdentifier](seq, 0)
	if err != nil {
		return AlgorithmIdentifier{}, fmt.Errorf("algorithm identifier: %w", err)
	}
	return AlgorithmIdentifier{OID: o.String(), Params: seq.Child(1), node: seq}, nil
}

// DER returns the AlgorithmIdentifier node.
func (a AlgorithmIdentifier) DER() der.Node { return a.node }

// Name returns the registered algorithm name.
func (a AlgorithmIdentifier) Name() string { return oid.Name(a.OID) }

// Equal reports whether both identifiers encode identically.
func (a AlgorithmIdentifier) Equal(other AlgorithmIdentifier) bool {
	if a.node == nil || other.node == nil {
		return a.node == other.node
	}
	return der.Equal(a.node, other.node)
}
