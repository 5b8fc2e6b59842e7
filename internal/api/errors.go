package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/fog-access-core/internal/infrastructure/database"
)

// Error represents a structured error response. Detail repeats Message
// under the "error" key that device firmware reads.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"error"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeUnauthorized   = "unauthorised"
	ErrCodeForbidden      = "forbidden"
	ErrCodeConflict       = "conflict"
	ErrCodeInternal       = "internal_error"
	ErrCodeValidation     = "validation_error"
	ErrCodeUnavailable    = "storage_unavailable"
	ErrCodeTimeout        = "storage_timeout"
	ErrCodeBadGateway     = "backend_error"
	ErrCodeNotImplemented = "not_configured"
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
		Detail:  message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeStorageError writes a 503 for a storage fault. Writes that fail
// this way are safe for the device to retry.
func writeStorageError(w http.ResponseWriter, err error) {
	if errors.Is(err, database.ErrTimeout) {
		writeError(w, http.StatusServiceUnavailable, ErrCodeTimeout, "storage timed out, retry later")
		return
	}
	writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "storage unavailable, retry later")
}
