package api

import (
	"io"
	"net/http"

	"github.com/tronix365/sensegrid/internal/validate"
)

// deviceToken returns the Device-Token header, writing 401 when absent.
func deviceToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	token := r.Header.Get(headerDeviceToken)
	if token == "" {
		writeUnauthorized(w, "missing device token")
		return "", false
	}
	return token, true
}

// ingestRequest reads the device token and the (size-limited) body. On
// failure the response has been written and the rejection counted.
func (s *Server) ingestRequest(w http.ResponseWriter, r *http.Request) (token string, body []byte, ok bool) {
	if token, ok = deviceToken(w, r); !ok {
		s.ingest.rejected.Add(1)
		return "", nil, false
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.rejectIngest(w, r, err)
		return "", nil, false
	}
	return token, body, true
}

func (s *Server) rejectIngest(w http.ResponseWriter, r *http.Request, err error) {
	s.ingest.rejected.Add(1)
	s.writeServiceError(w, r, err)
}

// handleIngest accepts a sensor reading from a device.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	token, body, ok := s.ingestRequest(w, r)
	if !ok {
		return
	}

	payload, err := s.parser.ParseReading(body, "")
	if err != nil {
		s.rejectIngest(w, r, err)
		return
	}
	reading, err := s.pipeline.Ingest(r.Context(), payload.DeviceID, token, payload.Sample)
	if err != nil {
		s.rejectIngest(w, r, err)
		return
	}

	s.ingest.readings.Add(1)
	writeJSON(w, http.StatusCreated, reading)
}

// handleIngestLight accepts an LDR reading from a device.
func (s *Server) handleIngestLight(w http.ResponseWriter, r *http.Request) {
	token, body, ok := s.ingestRequest(w, r)
	if !ok {
		return
	}

	payload, err := s.parser.ParseLight(body, "")
	if err != nil {
		s.rejectIngest(w, r, err)
		return
	}
	reading, err := s.pipeline.IngestLight(r.Context(), payload.DeviceID, token, payload.LightSample)
	if err != nil {
		s.rejectIngest(w, r, err)
		return
	}

	s.ingest.light.Add(1)
	writeJSON(w, http.StatusCreated, reading)
}

// handleIngestOutputs lets firmware poll the desired state of its outputs.
func (s *Server) handleIngestOutputs(w http.ResponseWriter, r *http.Request) {
	token, ok := deviceToken(w, r)
	if !ok {
		return
	}
	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		s.writeServiceError(w, r, validate.Field("device_id", "is required"))
		return
	}

	outputs, err := s.pipeline.ListOutputStates(r.Context(), deviceID, token)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outputs)
}
