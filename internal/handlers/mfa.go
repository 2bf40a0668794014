package handlers

import (
	"context"
	"net/http"

	"github.com/BradenHooton/authgate/internal/auth"
	"github.com/BradenHooton/authgate/internal/models"
	pkghttp "github.com/BradenHooton/authgate/pkg/http"
)

// MFAServiceInterface is the enrollment side of the MFA service
type MFAServiceInterface interface {
	Enroll(ctx context.Context, accountID, name string, meta models.RequestMeta) (*models.MFAEnrollment, error)
	ConfirmEnroll(ctx context.Context, accountID, factorID, code string, meta models.RequestMeta) error
	Disable(ctx context.Context, accountID string, meta models.RequestMeta) error
	RegenerateBackupCodes(ctx context.Context, accountID string, meta models.RequestMeta) ([]string, error)
	Status(ctx context.Context, accountID string) (*models.MFAStatus, error)
}

// MFAHandler handles MFA-related HTTP requests
type MFAHandler struct {
	service MFAServiceInterface
	ip      *pkghttp.IPExtractor
}

// NewMFAHandler creates a new MFA handler
func NewMFAHandler(service MFAServiceInterface, ip *pkghttp.IPExtractor) *MFAHandler {
	return &MFAHandler{
		service: service,
		ip:      ip,
	}
}

// Enroll handles POST /mfa/enroll. The secret, QR code and backup codes are
// returned only in this response.
func (h *MFAHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req EnrollMFARequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	enrollment, err := h.service.Enroll(r.Context(), claims.UserID, req.Name, requestMeta(r, h.ip))
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, enrollment)
}

// Confirm handles POST /mfa/enroll/confirm
func (h *MFAHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req ConfirmMFARequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.ConfirmEnroll(r.Context(), claims.UserID, req.FactorID, req.Code, requestMeta(r, h.ip)); err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "mfa enabled"})
}

// Disable handles POST /mfa/disable
func (h *MFAHandler) Disable(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	if err := h.service.Disable(r.Context(), claims.UserID, requestMeta(r, h.ip)); err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "mfa disabled"})
}

// RegenerateBackupCodes handles POST /mfa/backup-codes
func (h *MFAHandler) RegenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	codes, err := h.service.RegenerateBackupCodes(r.Context(), claims.UserID, requestMeta(r, h.ip))
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, BackupCodesResponse{BackupCodes: codes})
}

// Status handles GET /mfa/status
func (h *MFAHandler) Status(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	status, err := h.service.Status(r.Context(), claims.UserID)
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, status)
}
