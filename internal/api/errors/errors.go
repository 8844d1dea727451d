// Package errors provides error handling and HTTP status code mapping.
package errors

import (
	"errors"
	"net/http"

	"github.com/remiblancher/derpki/internal/api/dto"
	"github.com/remiblancher/derpki/internal/cert"
	pkicrypto "github.com/remiblancher/derpki/internal/crypto"
	"github.com/remiblancher/derpki/internal/csr"
	"github.com/remiblancher/derpki/internal/der"
	"github.com/remiblancher/derpki/internal/x509util"
)

// Error codes for API responses.
const (
	CodeInvalidRequest       = "INVALID_REQUEST"
	CodeNotFound             = "NOT_FOUND"
	CodeMalformedEncoding    = "MALFORMED_ENCODING"
	CodeUnsupportedStructure = "UNSUPPORTED_STRUCTURE"
	CodeNameFormat           = "NAME_FORMAT"
	CodeSignatureInvalid     = "SIGNATURE_INVALID"
	CodeSigningFailure       = "SIGNING_FAILURE"
	CodeInternal             = "INTERNAL_ERROR"
)

// MapError maps an internal error to an HTTP status code and APIError.
func MapError(err error) (int, *dto.APIError) {
	if err == nil {
		return http.StatusOK, nil
	}

	switch {
	case errors.Is(err, der.ErrMalformedEncoding):
		return http.StatusBadRequest, &dto.APIError{
			Code:    CodeMalformedEncoding,
			Message: err.Error(),
		}
	case errors.Is(err, der.ErrUnsupportedStructure):
		return http.StatusUnprocessableEntity, &dto.APIError{
			Code:    CodeUnsupportedStructure,
			Message: err.Error(),
		}
	case errors.Is(err, x509util.ErrNameFormat):
		return http.StatusBadRequest, &dto.APIError{
			Code:    CodeNameFormat,
			Message: err.Error(),
		}
	case errors.Is(err, csr.ErrSignatureInvalid), errors.Is(err, cert.ErrSignatureInvalid):
		return http.StatusUnprocessableEntity, &dto.APIError{
			Code:    CodeSignatureInvalid,
			Message: err.Error(),
		}
	case errors.Is(err, pkicrypto.ErrSigningFailure):
		return http.StatusInternalServerError, &dto.APIError{
			Code:    CodeSigningFailure,
			Message: err.Error(),
		}
	}

	// Default internal error
	return http.StatusInternalServerError, &dto.APIError{
		Code:    CodeInternal,
		Message: "An internal error occurred",
	}
}

// NewBadRequest creates a bad request error.
func NewBadRequest(message string) *dto.APIError {
	return &dto.APIError{
		Code:    CodeInvalidRequest,
		Message: message,
	}
}

// NewNotFound creates a not found error.
func NewNotFound(resource, id string) *dto.APIError {
	return &dto.APIError{
		Code:    CodeNotFound,
		Message: resource + " not found",
		Details: map[string]string{"id": id},
	}
}
