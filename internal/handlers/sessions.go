package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/BradenHooton/authgate/internal/auth"
	"github.com/BradenHooton/authgate/internal/models"
	pkghttp "github.com/BradenHooton/authgate/pkg/http"
)

// SessionServiceInterface is the caller-facing part of the session registry
type SessionServiceInterface interface {
	ListActive(ctx context.Context, accountID string, meta models.RequestMeta) ([]*models.Session, error)
	Revoke(ctx context.Context, accountID, sessionID, revokedBy string, meta models.RequestMeta) (*models.Session, error)
	RevokeAll(ctx context.Context, accountID string, exceptCurrent bool, meta models.RequestMeta, revokedBy string) (int, error)
}

// SessionHandler lets an account inspect and end its own sessions
type SessionHandler struct {
	service SessionServiceInterface
	ip      *pkghttp.IPExtractor
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(service SessionServiceInterface, ip *pkghttp.IPExtractor) *SessionHandler {
	return &SessionHandler{service: service, ip: ip}
}

// SessionListResponse wraps the active sessions of an account
type SessionListResponse struct {
	Sessions []SessionView `json:"sessions"`
	Count    int           `json:"count"`
}

// SessionView adds display names to a session
type SessionView struct {
	*models.Session
	DeviceName   string `json:"device_name"`
	LocationName string `json:"location_name"`
}

func newSessionView(s *models.Session) SessionView {
	return SessionView{
		Session:      s,
		DeviceName:   s.DeviceName(),
		LocationName: s.LocationName(),
	}
}

// List handles GET /sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	sessions, err := h.service.ListActive(r.Context(), claims.UserID, requestMeta(r, h.ip))
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	views := make([]SessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, newSessionView(s))
	}
	pkghttp.WriteJSON(w, http.StatusOK, SessionListResponse{Sessions: views, Count: len(views)})
}

// Revoke handles DELETE /sessions/{id}
func (h *SessionHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	sessionID := chi.URLParam(r, "id")
	if _, err := uuid.Parse(sessionID); err != nil {
		pkghttp.WriteBadRequest(w, "invalid session id")
		return
	}

	session, err := h.service.Revoke(r.Context(), claims.UserID, sessionID, models.RevokedByUser, requestMeta(r, h.ip))
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, newSessionView(session))
}

// RevokeAll handles POST /sessions/revoke-all
func (h *SessionHandler) RevokeAll(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req RevokeAllSessionsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	n, err := h.service.RevokeAll(r.Context(), claims.UserID, req.ExceptCurrent, requestMeta(r, h.ip), models.RevokedByUser)
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, RevokeAllSessionsResponse{Revoked: n})
}
