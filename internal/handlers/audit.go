package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/BradenHooton/authgate/internal/auth"
	"github.com/BradenHooton/authgate/internal/models"
	pkghttp "github.com/BradenHooton/authgate/pkg/http"
)

// AuditServiceInterface reads the security audit trail
type AuditServiceInterface interface {
	ListForAccount(ctx context.Context, accountID string, limit, offset int) ([]*models.AuthEvent, error)
}

// AuditHandler handles audit log HTTP requests
type AuditHandler struct {
	service AuditServiceInterface
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(service AuditServiceInterface) *AuditHandler {
	return &AuditHandler{service: service}
}

// AuditEventsResponse is one page of audit events, newest first
type AuditEventsResponse struct {
	Events []*models.AuthEvent `json:"events"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

// ListOwn handles GET /audit/events for the authenticated account
func (h *AuditHandler) ListOwn(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}
	h.list(w, r, claims.UserID)
}

// ListForAccount handles GET /admin/accounts/{id}/events
func (h *AuditHandler) ListForAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	if _, err := uuid.Parse(accountID); err != nil {
		pkghttp.WriteBadRequest(w, "invalid account id")
		return
	}
	h.list(w, r, accountID)
}

func (h *AuditHandler) list(w http.ResponseWriter, r *http.Request, accountID string) {
	limit, offset, ok := pagination(r)
	if !ok {
		pkghttp.WriteBadRequest(w, "limit and offset must be non-negative integers")
		return
	}

	events, err := h.service.ListForAccount(r.Context(), accountID, limit, offset)
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}
	if events == nil {
		events = []*models.AuthEvent{}
	}

	pkghttp.WriteJSON(w, http.StatusOK, AuditEventsResponse{Events: events, Limit: limit, Offset: offset})
}

// pagination reads ?limit and ?offset. Limit defaults to 50 and is capped at 100.
func pagination(r *http.Request) (limit, offset int, ok bool) {
	limit = 50
	q := r.URL.Query()

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return 0, 0, false
		}
		if n > 0 {
			limit = min(n, 100)
		}
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}
