package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-amp/internal/bridges/amp"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`

	// BusCode is the transport code when the amplifier bus failed.
	BusCode string `json:"bus_code,omitempty"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeForbidden    = "forbidden"
	ErrCodeInternal     = "internal_error"
	ErrCodeUnavailable  = "unavailable"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeForbidden writes a 403 error response.
func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeUnavailable writes a 503 error response.
func writeUnavailable(w http.ResponseWriter, message string) {
	writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, message)
}

// writeAmpError maps a bridge error to an HTTP status. The code is the
// bridge's MQTT error code so both surfaces report failures alike.
func writeAmpError(w http.ResponseWriter, err error) {
	writeJSON(w, ampErrorStatus(err), Error{
		Status:  ampErrorStatus(err),
		Code:    amp.ErrorCode(err),
		Message: err.Error(),
		BusCode: amp.BusCodeOf(err),
	})
}

func ampErrorStatus(err error) int {
	switch amp.ErrorCode(err) {
	case amp.ErrCodeInvalidCommand, amp.ErrCodeInvalidParameters:
		return http.StatusBadRequest
	case amp.ErrCodeNotConfigured:
		return http.StatusNotFound
	case amp.ErrCodeDeviceFailed:
		return http.StatusConflict
	case amp.ErrCodeDeviceUnreachable:
		return http.StatusBadGateway
	default:
		if errors.Is(err, amp.ErrBridgeStopping) {
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	}
}
