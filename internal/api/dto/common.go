// Package dto provides Data Transfer Objects for the REST API.
package dto

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Binary data encodings.
const (
	EncodingPEM    = "pem"
	EncodingBase64 = "base64"
)

// BinaryData represents binary data with encoding metadata.
type BinaryData struct {
	// Data is the encoded content (base64 or PEM).
	Data string `json:"data" cbor:"data"`

	// Encoding is "pem", "base64" or empty. Empty treats data that starts
	// with a PEM boundary as PEM and anything else as base64.
	Encoding string `json:"encoding,omitempty" cbor:"encoding,omitempty"`
}

// Decode decodes the binary data based on its encoding.
func (b *BinaryData) Decode() ([]byte, error) {
	if b == nil || b.Data == "" {
		return nil, fmt.Errorf("binary data is empty")
	}
	switch b.Encoding {
	case EncodingPEM:
		return []byte(b.Data), nil
	case EncodingBase64:
		return base64.StdEncoding.DecodeString(b.Data)
	case "":
		if strings.HasPrefix(strings.TrimSpace(b.Data), "-----BEGIN ") {
			return []byte(b.Data), nil
		}
		return base64.StdEncoding.DecodeString(strings.TrimSpace(b.Data))
	default:
		return nil, fmt.Errorf("unsupported encoding: %s", b.Encoding)
	}
}

// NewPEMData wraps PEM text.
func NewPEMData(pemText []byte) BinaryData {
	return BinaryData{Data: string(pemText), Encoding: EncodingPEM}
}

// APIError represents a standardized error response.
type APIError struct {
	// Code is a machine-readable error code.
	Code string `json:"code" cbor:"code"`

	// Message is a human-readable error message.
	Message string `json:"message" cbor:"message"`

	// Details provides additional context about the error.
	Details map[string]string `json:"details,omitempty" cbor:"details,omitempty"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	// Status is "ok" or "degraded".
	Status string `json:"status"`

	// Version is the server version.
	Version string `json:"version"`

	// Services lists enabled services and their status.
	Services map[string]string `json:"services,omitempty"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	// Ready indicates if the server is ready to accept requests.
	Ready bool `json:"ready"`

	// Checks lists individual readiness checks.
	Checks map[string]bool `json:"checks,omitempty"`
}

// Field is one labelled summary line.
type Field struct {
	Name  string `json:"name" cbor:"name"`
	Value string `json:"value" cbor:"value"`
}
