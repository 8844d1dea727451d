package dto

// CSRVerifyRequest represents a CSR verification request.
type CSRVerifyRequest struct {
	// CSR is the CSR to verify.
	CSR BinaryData `json:"csr"`
}

// CSRVerifyResponse represents the result of CSR verification.
type CSRVerifyResponse struct {
	// Valid indicates if the CSR signature is valid.
	Valid bool `json:"valid"`

	// Errors lists verification errors.
	Errors []string `json:"errors,omitempty"`

	// Info contains CSR information.
	Info *CSRInfo `json:"info,omitempty"`
}

// CSRInfo describes a certification request.
type CSRInfo struct {
	Subject            string   `json:"subject"`
	PublicKeyAlgorithm string   `json:"public_key_algorithm"`
	SignatureAlgorithm string   `json:"signature_algorithm"`
	DNSNames           []string `json:"dns_names,omitempty"`

	// Extensions lists the requested extension names.
	Extensions []string `json:"extensions,omitempty"`
}
