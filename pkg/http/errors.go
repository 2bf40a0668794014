package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/BradenHooton/authgate/internal/models"
)

// ErrorResponse represents a standard API error response
type ErrorResponse struct {
	Error   string `json:"error"`             // Machine-readable error code
	Message string `json:"message"`           // Human-readable message
	Details string `json:"details,omitempty"` // Optional additional context
}

// WriteJSON writes v as a JSON body with the given status code
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	WriteErrorWithDetails(w, statusCode, errorCode, message, "")
}

// WriteErrorWithDetails writes a JSON error response with additional details
func WriteErrorWithDetails(w http.ResponseWriter, statusCode int, errorCode, message, details string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error:   errorCode,
		Message: message,
		Details: details,
	})
}

func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message)
}

// StatusFor maps a service error to its HTTP status
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrAccountLocked), errors.Is(err, models.ErrMFATooManyAttempts):
		return http.StatusTooManyRequests
	case errors.Is(err, models.ErrAccountDisabled):
		return http.StatusForbidden
	case errors.Is(err, models.ErrMFAAlreadyEnrolled), errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrSessionNotFound), errors.Is(err, models.ErrMFAFactorNotFound),
		errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrMFANotEnrolled), errors.Is(err, models.ErrNoEnrolledFactor),
		errors.Is(err, models.ErrBadRequest):
		return http.StatusBadRequest
	}

	switch models.KindOf(err) {
	case models.KindValidation:
		return http.StatusBadRequest
	case models.KindCredential, models.KindMFA, models.KindToken:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// WriteServiceError writes err using its stable code. Unknown errors are
// reported as a generic internal error so storage details never leak.
func WriteServiceError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		WriteInternalError(w, "internal server error")
		return
	}

	code := models.CodeOf(err)
	if code == "" {
		code = http.StatusText(status)
	}
	WriteError(w, status, code, err.Error())
}
