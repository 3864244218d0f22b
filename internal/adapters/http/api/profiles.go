package api

import (
	"net/http"
)

// ProfilesHandler handles profile set requests.
type ProfilesHandler struct {
	deps Dependencies
}

// NewProfilesHandler creates a new profiles handler.
func NewProfilesHandler(deps Dependencies) *ProfilesHandler {
	return &ProfilesHandler{deps: deps}
}

// HandleGetProfiles handles GET /profiles requests.
func (h *ProfilesHandler) HandleGetProfiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	info, err := h.deps.Profiles(r.Context())
	if err != nil {
		writeSelectError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}
