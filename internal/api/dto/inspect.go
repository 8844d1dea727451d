package dto

import (
	"github.com/remiblancher/derpki/internal/der"
	"github.com/remiblancher/derpki/internal/inspect"
)

// InspectRequest represents an auto-detect inspection request.
type InspectRequest struct {
	// Data is the data to inspect.
	Data BinaryData `json:"data" cbor:"data"`

	// PKCS12 forces decoding as a PFX.
	PKCS12 bool `json:"pkcs12,omitempty" cbor:"pkcs12,omitempty"`

	// Tree includes the node tree of each document.
	Tree bool `json:"tree,omitempty" cbor:"tree,omitempty"`
}

// InspectResponse represents inspection results.
type InspectResponse struct {
	// Format is "PEM" or "DER".
	Format string `json:"format" cbor:"format"`

	// Documents holds one entry per PEM block, or one for DER input.
	Documents []InspectDocument `json:"documents" cbor:"documents"`
}

// InspectDocument describes one decoded structure.
type InspectDocument struct {
	// Type is the detected kind: certificate, certificate-request, pkcs12,
	// pkcs7 or der.
	Type string `json:"type" cbor:"type"`

	// Label is the PEM label, if any.
	Label string `json:"label,omitempty" cbor:"label,omitempty"`

	Title  string  `json:"title" cbor:"title"`
	Fields []Field `json:"fields,omitempty" cbor:"fields,omitempty"`

	Tree *der.TreeNode `json:"tree,omitempty" cbor:"tree,omitempty"`
}

// NewInspectDocument converts a decoded document, optionally with its
// node tree.
func NewInspectDocument(d inspect.Document, withTree bool) InspectDocument {
	out := InspectDocument{Type: string(d.Kind), Label: d.Label, Title: d.Title()}
	for _, f := range d.Summary() {
		out.Fields = append(out.Fields, Field{Name: f.Name, Value: f.Value})
	}
	if withTree {
		tree := d.Tree()
		out.Tree = &tree
	}
	return out
}
