package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/BradenHooton/authgate/internal/auth"
	pkghttp "github.com/BradenHooton/authgate/pkg/http"
)

// AdminHandler handles operator actions. Routes are gated by
// middleware.RequireAccountIDs.
type AdminHandler struct {
	service AuthServiceInterface
	ip      *pkghttp.IPExtractor
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(service AuthServiceInterface, ip *pkghttp.IPExtractor) *AdminHandler {
	return &AdminHandler{service: service, ip: ip}
}

// DeactivateAccount handles POST /admin/accounts/{id}/deactivate. Every
// session of the target account is revoked.
func (h *AdminHandler) DeactivateAccount(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	accountID := chi.URLParam(r, "id")
	if _, err := uuid.Parse(accountID); err != nil {
		pkghttp.WriteBadRequest(w, "invalid account id")
		return
	}
	if accountID == claims.UserID {
		pkghttp.WriteBadRequest(w, "cannot deactivate your own account")
		return
	}

	if err := h.service.DeactivateAccount(r.Context(), accountID, claims.UserID, requestMeta(r, h.ip)); err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "account deactivated"})
}
