package api

import (
	"net/http"

	"github.com/tronix365/sensegrid/internal/auth"
)

// handleGetProfile returns the authenticated user's profile.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := s.owner.GetProfile(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleUpdateProfile applies a partial profile update. Omitted fields are
// unchanged.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var patch auth.ProfilePatch
	if !s.decodeJSON(w, r, &patch) {
		return
	}

	user, err := s.owner.UpdateProfile(r.Context(), userFrom(r.Context()).ID, patch)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
