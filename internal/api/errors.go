package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tronix365/sensegrid/internal/auth"
	"github.com/tronix365/sensegrid/internal/device"
	"github.com/tronix365/sensegrid/internal/ownership"
	"github.com/tronix365/sensegrid/internal/telemetry"
	"github.com/tronix365/sensegrid/internal/validate"
)

// Error is the body of every non-2xx response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// Error codes. Clients switch on these, not on Message.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeUnauthorized   = "unauthorised"
	ErrCodeConflict       = "conflict"
	ErrCodeInternal       = "internal_error"
	ErrCodeValidation     = "validation_error"
	ErrCodeMethodNotAllow = "method_not_allowed"
	ErrCodeRateLimited    = "rate_limited"
	ErrCodeTooLarge       = "payload_too_large"
)

// writeJSON sends v with status; a nil v sends headers only.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeValidationError writes a 422 naming the offending field.
func writeValidationError(w http.ResponseWriter, verr *validate.Error) {
	writeJSON(w, http.StatusUnprocessableEntity, Error{
		Status:  http.StatusUnprocessableEntity,
		Code:    ErrCodeValidation,
		Message: verr.Message,
		Field:   verr.Field,
	})
}

// sentinelResponses is scanned in order; the first errors.Is match wins.
var sentinelResponses = []struct {
	target  error
	status  int
	code    string
	message string
}{
	{ownership.ErrNotFound, http.StatusNotFound, ErrCodeNotFound, "not found"},
	{device.ErrUnknownDevice, http.StatusNotFound, ErrCodeNotFound, "device not found"},
	{auth.ErrTokenExpired, http.StatusUnauthorized, ErrCodeUnauthorized, "token has expired"},
	{auth.ErrTokenMalformed, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid token"},
	{auth.ErrUnknownSubject, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid token"},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid credentials"},
	{device.ErrInvalidDeviceToken, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid device token"},
	{ownership.ErrConflict, http.StatusConflict, ErrCodeConflict, "device or output already exists"},
	{auth.ErrEmailExists, http.StatusConflict, ErrCodeConflict, "email already registered"},
	{telemetry.ErrMalformedPayload, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body"},
}

// writeServiceError turns a domain error into its response. Unmapped
// errors are logged and leave the client with a bare 500.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if verr, ok := validate.As(err); ok {
		writeValidationError(w, verr)
		return
	}
	if isTooLarge(err) {
		writeError(w, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "request body too large")
		return
	}
	for _, resp := range sentinelResponses {
		if errors.Is(err, resp.target) {
			writeError(w, resp.status, resp.code, resp.message)
			return
		}
	}

	s.logger.Error("request failed",
		"error", err,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", requestIDFrom(r.Context()),
	)
	writeInternalError(w, "internal server error")
}

// decodeJSON reads the request body into v. On failure it writes the
// response and returns false.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if isTooLarge(err) {
			s.writeServiceError(w, r, err)
			return false
		}
		writeBadRequest(w, "invalid JSON body")
		return false
	}
	return true
}

func isTooLarge(err error) bool {
	var maxBytes *http.MaxBytesError
	return errors.As(err, &maxBytes)
}
