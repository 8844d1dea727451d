package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/remiblancher/derpki/internal/api/dto"
	apierrors "github.com/remiblancher/derpki/internal/api/errors"
	"github.com/remiblancher/derpki/internal/csr"
	"github.com/remiblancher/derpki/internal/der"
	"github.com/remiblancher/derpki/internal/pemutil"
)

// CSRHandler handles CSR-related HTTP requests.
type CSRHandler struct{}

// NewCSRHandler creates a new CSRHandler.
func NewCSRHandler() *CSRHandler {
	return &CSRHandler{}
}

// Verify handles POST /api/v1/csr/verify. A request that parses but fails
// signature verification is reported with valid=false and status 200.
func (h *CSRHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req dto.CSRVerifyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, apierrors.NewBadRequest("Invalid JSON request body"))
		return
	}
	data, err := req.CSR.Decode()
	if err != nil {
		respondError(w, http.StatusBadRequest, apierrors.NewBadRequest(err.Error()))
		return
	}
	b, _, err := pemutil.ToDER(data, pemutil.LabelCertificateRequest)
	if err != nil {
		respondMapped(w, fmt.Errorf("%w: %v", der.ErrMalformedEncoding, err))
		return
	}
	cr, err := csr.Parse(b)
	if err != nil {
		respondMapped(w, err)
		return
	}

	resp := dto.CSRVerifyResponse{Valid: true, Info: csrInfo(cr)}
	if err := cr.Verify(); err != nil {
		resp.Valid = false
		resp.Errors = []string{err.Error()}
	}
	respondJSON(w, http.StatusOK, resp)
}

func csrInfo(cr *csr.CertificateRequest) *dto.CSRInfo {
	info := &dto.CSRInfo{
		Subject:            cr.Subject().String(),
		PublicKeyAlgorithm: cr.PublicKeyInfo().Algorithm.Name(),
		SignatureAlgorithm: cr.SignatureAlgorithm().Name(),
		DNSNames:           cr.DNSNames(),
	}
	exts, _ := cr.Extensions()
	for _, e := range exts {
		info.Extensions = append(info.Extensions, e.Name())
	}
	return info
}
