package http_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/authgate/internal/models"
	pkghttp "github.com/BradenHooton/authgate/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()

	pkghttp.WriteError(w, 400, "test_error", "Test message")

	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "test_error", resp.Error)
	assert.Equal(t, "Test message", resp.Message)
	assert.Empty(t, resp.Details)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{models.ErrInvalidCredentials, http.StatusUnauthorized},
		{fmt.Errorf("login: %w", models.ErrAccountLocked), http.StatusTooManyRequests},
		{models.ErrAccountDisabled, http.StatusForbidden},
		{models.ErrMFAExpiredToken, http.StatusUnauthorized},
		{models.ErrMFAInvalidCode, http.StatusUnauthorized},
		{models.ErrMFAAlreadyEnrolled, http.StatusConflict},
		{models.ErrMFANotEnrolled, http.StatusBadRequest},
		{models.ErrTokenRevoked, http.StatusUnauthorized},
		{models.ErrSessionNotFound, http.StatusNotFound},
		{models.NewValidationError("email", "required"), http.StatusBadRequest},
		{models.ErrConflict, http.StatusConflict},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, pkghttp.StatusFor(tt.err), tt.err.Error())
	}
}

func TestWriteServiceError_UsesStableCode(t *testing.T) {
	w := httptest.NewRecorder()

	pkghttp.WriteServiceError(w, fmt.Errorf("verify: %w", models.ErrMFAExpiredToken))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "MFA_EXPIRED_TOKEN", resp.Error)
}

func TestWriteServiceError_HidesInternalDetails(t *testing.T) {
	w := httptest.NewRecorder()

	pkghttp.WriteServiceError(w, errors.New("pq: password authentication failed for user postgres"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "postgres")
}
