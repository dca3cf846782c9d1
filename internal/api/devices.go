package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tronix365/sensegrid/internal/validate"
)

// registerDeviceRequest is the body for POST /devices.
type registerDeviceRequest struct {
	DeviceID   string `json:"device_id"`
	DeviceType string `json:"device_type"`
}

// handleListDevices returns the caller's devices, oldest first.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.owner.ListDevices(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

// handleRegisterDevice registers a device and returns it with its token.
func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req registerDeviceRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	d, err := s.owner.RegisterDevice(r.Context(), userFrom(r.Context()).ID, req.DeviceID, req.DeviceType)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	d, err := s.owner.GetDevice(r.Context(), userFrom(r.Context()).ID, chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleRotateDeviceToken issues a new device token. The old one stops
// working immediately.
func (s *Server) handleRotateDeviceToken(w http.ResponseWriter, r *http.Request) {
	d, err := s.owner.RotateDeviceToken(r.Context(), userFrom(r.Context()).ID, chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleListReadings(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	readings, err := s.owner.ListReadings(r.Context(), userFrom(r.Context()).ID, chi.URLParam(r, "id"), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, readings)
}

// limitParam parses ?limit=. Absent means 0, which the service treats as
// the default.
func limitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, validate.Field("limit", "must be an integer")
	}
	return n, nil
}
