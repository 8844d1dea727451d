package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/remiblancher/derpki/internal/api/dto"
	apierrors "github.com/remiblancher/derpki/internal/api/errors"
	"github.com/remiblancher/derpki/internal/oid"
)

// OIDHandler serves the OID registry.
type OIDHandler struct{}

// NewOIDHandler creates a new OIDHandler.
func NewOIDHandler() *OIDHandler {
	return &OIDHandler{}
}

// List handles GET /api/v1/oids.
func (h *OIDHandler) List(w http.ResponseWriter, r *http.Request) {
	entries := oid.All()
	resp := dto.OIDListResponse{OIDs: make([]dto.OIDInfo, 0, len(entries))}
	for _, e := range entries {
		resp.OIDs = append(resp.OIDs, dto.OIDInfo{OID: e.OID, Name: e.Name})
	}
	respondJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/oids/{name}, accepting a name or a dotted OID.
func (h *OIDHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	dotted, ok := oid.Lookup(name)
	if !ok {
		respondError(w, http.StatusNotFound, apierrors.NewNotFound("OID", name))
		return
	}
	respondJSON(w, http.StatusOK, dto.OIDInfo{OID: dotted, Name: oid.Name(dotted)})
}
