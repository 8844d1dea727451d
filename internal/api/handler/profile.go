package handler

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/remiblancher/derpki/internal/api/dto"
	apierrors "github.com/remiblancher/derpki/internal/api/errors"
	"github.com/remiblancher/derpki/internal/profile"
)

// ProfileHandler lists issuance profiles.
type ProfileHandler struct {
	profiles map[string]*profile.Profile
}

// NewProfileHandler creates a new ProfileHandler over profiles.
func NewProfileHandler(profiles map[string]*profile.Profile) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// List handles GET /api/v1/profiles.
func (h *ProfileHandler) List(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.profiles))
	for name := range h.profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := dto.ProfileListResponse{Profiles: make([]dto.ProfileInfo, 0, len(names))}
	for _, name := range names {
		resp.Profiles = append(resp.Profiles, profileDTO(h.profiles[name]))
	}
	respondJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/profiles/{name}.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	p, ok := h.profiles[name]
	if !ok {
		respondError(w, http.StatusNotFound, apierrors.NewNotFound("profile", name))
		return
	}
	respondJSON(w, http.StatusOK, profileDTO(p))
}

func profileDTO(p *profile.Profile) dto.ProfileInfo {
	return dto.ProfileInfo{
		Name:        p.Name,
		Description: p.Description,
		Validity:    p.Validity.String(),
		IsCA:        p.CA,
		KeyUsage:    p.KeyUsage,
		ExtKeyUsage: p.ExtKeyUsage,
		SANRequired: p.SubjectAltName.Required,
	}
}
