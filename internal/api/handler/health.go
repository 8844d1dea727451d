// Package handler provides HTTP handlers for the REST API.
package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/remiblancher/derpki/internal/api/dto"
	apierrors "github.com/remiblancher/derpki/internal/api/errors"
)

// Content types the handlers produce.
const (
	ContentTypeJSON = "application/json"
	ContentTypeCBOR = "application/cbor"
)

// HealthHandler handles health and readiness endpoints.
type HealthHandler struct {
	version  string
	services []string
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(version string, services []string) *HealthHandler {
	return &HealthHandler{
		version:  version,
		services: services,
	}
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	serviceStatus := make(map[string]string)
	for _, s := range h.services {
		serviceStatus[s] = "ok"
	}

	resp := dto.HealthResponse{
		Status:   "ok",
		Version:  h.version,
		Services: serviceStatus,
	}

	respondJSON(w, http.StatusOK, resp)
}

// Ready handles GET /ready.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, dto.ReadyResponse{
		Ready:  true,
		Checks: map[string]bool{"server": true},
	})
}

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

// respond writes CBOR when the client accepts it and JSON otherwise.
func respond(w http.ResponseWriter, r *http.Request, status int, data any) {
	if !wantsCBOR(r) {
		respondJSON(w, status, data)
		return
	}
	b, err := cbor.Marshal(data)
	if err != nil {
		respondError(w, http.StatusInternalServerError, &dto.APIError{
			Code:    apierrors.CodeInternal,
			Message: "failed to encode response",
		})
		return
	}
	w.Header().Set("Content-Type", ContentTypeCBOR)
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

func wantsCBOR(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), ContentTypeCBOR)
}

// respondError writes an error response.
func respondError(w http.ResponseWriter, status int, apiErr *dto.APIError) {
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiErr)
}

// respondMapped writes the status and body MapError assigns to err.
func respondMapped(w http.ResponseWriter, err error) {
	status, apiErr := apierrors.MapError(err)
	respondError(w, status, apiErr)
}
