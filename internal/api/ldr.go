package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tronix365/sensegrid/internal/validate"
)

// createOutputRequest is the body for POST /ldr/{id}/outputs.
type createOutputRequest struct {
	Name     string `json:"output_name"`
	GPIOPin  *int   `json:"gpio_pin"`
	IsActive bool   `json:"is_active"`
}

// setOutputRequest is the body for PUT /ldr/outputs/{output_id}.
type setOutputRequest struct {
	IsActive *bool `json:"is_active"`
}

func (s *Server) handleListLightReadings(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	readings, err := s.owner.ListLightReadings(r.Context(), userFrom(r.Context()).ID, chi.URLParam(r, "id"), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, readings)
}

func (s *Server) handleListOutputs(w http.ResponseWriter, r *http.Request) {
	outputs, err := s.owner.ListOutputs(r.Context(), userFrom(r.Context()).ID, chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outputs)
}

func (s *Server) handleCreateOutput(w http.ResponseWriter, r *http.Request) {
	var req createOutputRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	// -1 fails the pin range check, so a missing pin reports gpio_pin.
	pin := -1
	if req.GPIOPin != nil {
		pin = *req.GPIOPin
	}

	o, err := s.owner.CreateOutput(r.Context(), userFrom(r.Context()).ID, chi.URLParam(r, "id"), req.Name, pin, req.IsActive)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

// handleSetOutputState switches an output on or off.
func (s *Server) handleSetOutputState(w http.ResponseWriter, r *http.Request) {
	outputID, err := strconv.ParseInt(chi.URLParam(r, "output_id"), 10, 64)
	if err != nil {
		writeNotFound(w, "not found")
		return
	}

	var req setOutputRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.IsActive == nil {
		s.writeServiceError(w, r, validate.Field("is_active", "is required"))
		return
	}

	o, err := s.owner.SetOutputState(r.Context(), userFrom(r.Context()).ID, outputID, *req.IsActive)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
