package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/BradenHooton/authgate/internal/auth"
	"github.com/BradenHooton/authgate/internal/models"
	"github.com/BradenHooton/authgate/internal/services"
	pkghttp "github.com/BradenHooton/authgate/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds access-token claims and the raw bearer token to the
// request context, the way auth.AuthMiddleware does
func WithAuthContext(req *http.Request, accountID, email string) *http.Request {
	claims := &models.TokenClaims{
		UserID: accountID,
		Email:  email,
		Type:   models.TokenTypeAccess,
	}
	ctx := context.WithValue(req.Context(), auth.ClaimsContextKey, claims)
	ctx = context.WithValue(ctx, auth.TokenContextKey, "access-token-"+accountID)
	return req.WithContext(ctx)
}

// WithURLParam sets a chi route parameter on the request
func WithURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(req.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc             func(ctx context.Context, req services.LoginRequest) (*services.LoginResult, error)
	VerifyMFAFunc         func(ctx context.Context, req services.MFALoginRequest) (*services.LoginResult, error)
	RefreshFunc           func(ctx context.Context, refreshToken string, meta models.RequestMeta) (*models.TokenPair, error)
	LogoutFunc            func(ctx context.Context, accessToken, refreshToken string, meta models.RequestMeta) error
	RegisterFunc          func(ctx context.Context, email, password string, meta models.RequestMeta) (*models.Account, error)
	DeactivateAccountFunc func(ctx context.Context, accountID, actorID string, meta models.RequestMeta) error
}

func (m *MockAuthService) Login(ctx context.Context, req services.LoginRequest) (*services.LoginResult, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrInvalidCredentials
	}
	return m.LoginFunc(ctx, req)
}

func (m *MockAuthService) VerifyMFA(ctx context.Context, req services.MFALoginRequest) (*services.LoginResult, error) {
	if m.VerifyMFAFunc == nil {
		return nil, models.ErrMFAInvalidToken
	}
	return m.VerifyMFAFunc(ctx, req)
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string, meta models.RequestMeta) (*models.TokenPair, error) {
	if m.RefreshFunc == nil {
		return nil, models.ErrTokenMalformed
	}
	return m.RefreshFunc(ctx, refreshToken, meta)
}

func (m *MockAuthService) Logout(ctx context.Context, accessToken, refreshToken string, meta models.RequestMeta) error {
	if m.LogoutFunc == nil {
		return nil
	}
	return m.LogoutFunc(ctx, accessToken, refreshToken, meta)
}

func (m *MockAuthService) Register(ctx context.Context, email, password string, meta models.RequestMeta) (*models.Account, error) {
	if m.RegisterFunc == nil {
		return nil, models.ErrConflict
	}
	return m.RegisterFunc(ctx, email, password, meta)
}

func (m *MockAuthService) DeactivateAccount(ctx context.Context, accountID, actorID string, meta models.RequestMeta) error {
	if m.DeactivateAccountFunc == nil {
		return nil
	}
	return m.DeactivateAccountFunc(ctx, accountID, actorID, meta)
}

// MockMFAService implements MFAServiceInterface for testing
type MockMFAService struct {
	EnrollFunc                func(ctx context.Context, accountID, name string, meta models.RequestMeta) (*models.MFAEnrollment, error)
	ConfirmEnrollFunc         func(ctx context.Context, accountID, factorID, code string, meta models.RequestMeta) error
	DisableFunc               func(ctx context.Context, accountID string, meta models.RequestMeta) error
	RegenerateBackupCodesFunc func(ctx context.Context, accountID string, meta models.RequestMeta) ([]string, error)
	StatusFunc                func(ctx context.Context, accountID string) (*models.MFAStatus, error)
}

func (m *MockMFAService) Enroll(ctx context.Context, accountID, name string, meta models.RequestMeta) (*models.MFAEnrollment, error) {
	if m.EnrollFunc == nil {
		return nil, models.ErrMFAAlreadyEnrolled
	}
	return m.EnrollFunc(ctx, accountID, name, meta)
}

func (m *MockMFAService) ConfirmEnroll(ctx context.Context, accountID, factorID, code string, meta models.RequestMeta) error {
	if m.ConfirmEnrollFunc == nil {
		return nil
	}
	return m.ConfirmEnrollFunc(ctx, accountID, factorID, code, meta)
}

func (m *MockMFAService) Disable(ctx context.Context, accountID string, meta models.RequestMeta) error {
	if m.DisableFunc == nil {
		return nil
	}
	return m.DisableFunc(ctx, accountID, meta)
}

func (m *MockMFAService) RegenerateBackupCodes(ctx context.Context, accountID string, meta models.RequestMeta) ([]string, error) {
	if m.RegenerateBackupCodesFunc == nil {
		return nil, models.ErrMFANotEnrolled
	}
	return m.RegenerateBackupCodesFunc(ctx, accountID, meta)
}

func (m *MockMFAService) Status(ctx context.Context, accountID string) (*models.MFAStatus, error) {
	if m.StatusFunc == nil {
		return &models.MFAStatus{}, nil
	}
	return m.StatusFunc(ctx, accountID)
}

// MockSessionService implements SessionServiceInterface for testing
type MockSessionService struct {
	ListActiveFunc func(ctx context.Context, accountID string, meta models.RequestMeta) ([]*models.Session, error)
	RevokeFunc     func(ctx context.Context, accountID, sessionID, revokedBy string, meta models.RequestMeta) (*models.Session, error)
	RevokeAllFunc  func(ctx context.Context, accountID string, exceptCurrent bool, meta models.RequestMeta, revokedBy string) (int, error)
}

func (m *MockSessionService) ListActive(ctx context.Context, accountID string, meta models.RequestMeta) ([]*models.Session, error) {
	if m.ListActiveFunc == nil {
		return nil, nil
	}
	return m.ListActiveFunc(ctx, accountID, meta)
}

func (m *MockSessionService) Revoke(ctx context.Context, accountID, sessionID, revokedBy string, meta models.RequestMeta) (*models.Session, error) {
	if m.RevokeFunc == nil {
		return nil, models.ErrSessionNotFound
	}
	return m.RevokeFunc(ctx, accountID, sessionID, revokedBy, meta)
}

func (m *MockSessionService) RevokeAll(ctx context.Context, accountID string, exceptCurrent bool, meta models.RequestMeta, revokedBy string) (int, error) {
	if m.RevokeAllFunc == nil {
		return 0, nil
	}
	return m.RevokeAllFunc(ctx, accountID, exceptCurrent, meta, revokedBy)
}

// MockAuditService implements AuditServiceInterface for testing
type MockAuditService struct {
	ListForAccountFunc func(ctx context.Context, accountID string, limit, offset int) ([]*models.AuthEvent, error)
}

func (m *MockAuditService) ListForAccount(ctx context.Context, accountID string, limit, offset int) ([]*models.AuthEvent, error) {
	if m.ListForAccountFunc == nil {
		return nil, nil
	}
	return m.ListForAccountFunc(ctx, accountID, limit, offset)
}
