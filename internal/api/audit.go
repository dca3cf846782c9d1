package api

import (
	"net/http"
	"strconv"

	"github.com/tronix365/sensegrid/internal/audit"
	"github.com/tronix365/sensegrid/internal/validate"
)

// handleListAudit returns the caller's own audit trail, newest first.
//
// Query parameters: action, entity_type, entity_id, limit, offset.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := limitParam(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	offset := 0
	if raw := q.Get("offset"); raw != "" {
		if offset, err = strconv.Atoi(raw); err != nil || offset < 0 {
			s.writeServiceError(w, r, validate.Field("offset", "must be a non-negative integer"))
			return
		}
	}

	result, err := s.owner.ListAudit(r.Context(), userFrom(r.Context()).ID, audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
