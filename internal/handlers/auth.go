package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/BradenHooton/authgate/internal/auth"
	"github.com/BradenHooton/authgate/internal/models"
	"github.com/BradenHooton/authgate/internal/services"
	pkghttp "github.com/BradenHooton/authgate/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, req services.LoginRequest) (*services.LoginResult, error)
	VerifyMFA(ctx context.Context, req services.MFALoginRequest) (*services.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string, meta models.RequestMeta) (*models.TokenPair, error)
	Logout(ctx context.Context, accessToken, refreshToken string, meta models.RequestMeta) error
	Register(ctx context.Context, email, password string, meta models.RequestMeta) (*models.Account, error)
	DeactivateAccount(ctx context.Context, accountID, actorID string, meta models.RequestMeta) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service AuthServiceInterface
	ip      *pkghttp.IPExtractor
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, ip *pkghttp.IPExtractor) *AuthHandler {
	return &AuthHandler{
		service: service,
		ip:      ip,
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email      string `json:"email" validate:"required,email,max=254"`
	Password   string `json:"password" validate:"required,max=128"`
	RememberMe bool   `json:"remember_me"`
}

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

// RefreshTokenRequest represents the request body for token refresh
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LogoutRequest optionally names the refresh token whose session should end
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LoginResponse is either a completed login or an MFA challenge
type LoginResponse struct {
	MFARequired bool              `json:"mfa_required"`
	MFAToken    string            `json:"mfa_token,omitempty"`
	Tokens      *models.TokenPair `json:"tokens,omitempty"`
	Session     *models.Session   `json:"session,omitempty"`
	Account     *models.Account   `json:"account,omitempty"`
}

func newLoginResponse(res *services.LoginResult) LoginResponse {
	if res.MFARequired {
		return LoginResponse{MFARequired: true, MFAToken: res.MFAToken}
	}
	return LoginResponse{
		Tokens:  res.Tokens,
		Session: res.Session,
		Account: res.Account,
	}
}

// MessageResponse is a plain acknowledgement
type MessageResponse struct {
	Message string `json:"message"`
}

// requestMeta captures the client address and user agent of r
func requestMeta(r *http.Request, ip *pkghttp.IPExtractor) models.RequestMeta {
	return models.RequestMeta{
		IPAddress: ip.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// decodeAndValidate decodes the JSON body into dst and runs the validator.
// It writes the 400 response itself and reports whether the handler may continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := pkghttp.DecodeJSON(r, dst); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return false
	}
	if err := ValidateRequest(dst); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return false
	}
	return true
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	account, err := h.service.Register(r.Context(), req.Email, req.Password, requestMeta(r, h.ip))
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, account)
}

// Login handles POST /auth/login. Accounts with MFA get a challenge token
// instead of a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	meta := requestMeta(r, h.ip)
	res, err := h.service.Login(r.Context(), services.LoginRequest{
		Email:      req.Email,
		Password:   req.Password,
		RememberMe: req.RememberMe,
		IP:         meta.IPAddress,
		UserAgent:  meta.UserAgent,
	})
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, newLoginResponse(res))
}

// VerifyMFA handles POST /auth/mfa/verify, the second step of an MFA login
func (h *AuthHandler) VerifyMFA(w http.ResponseWriter, r *http.Request) {
	var req VerifyMFACodeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	meta := requestMeta(r, h.ip)
	res, err := h.service.VerifyMFA(r.Context(), services.MFALoginRequest{
		MFAToken:  req.MFAToken,
		Code:      req.Code,
		IP:        meta.IPAddress,
		UserAgent: meta.UserAgent,
	})
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, newLoginResponse(res))
}

// Refresh handles POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	tokens, err := h.service.Refresh(r.Context(), req.RefreshToken, requestMeta(r, h.ip))
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, tokens)
}

// Logout handles POST /auth/logout. The access token comes from the
// authenticated context; the body may name a refresh token to end its session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	accessToken, err := auth.TokenFromContext(r.Context())
	if err != nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req LogoutRequest
	if err := pkghttp.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := h.service.Logout(r.Context(), accessToken, req.RefreshToken, requestMeta(r, h.ip)); err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "logged out"})
}
