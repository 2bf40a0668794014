package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/BradenHooton/authgate/internal/auth"
	"github.com/BradenHooton/authgate/internal/handlers"
	"github.com/BradenHooton/authgate/internal/middleware"
	pkghttp "github.com/BradenHooton/authgate/pkg/http"
)

// Handlers groups the HTTP handlers mounted by RegisterRoutes
type Handlers struct {
	Auth     *handlers.AuthHandler
	MFA      *handlers.MFAHandler
	Sessions *handlers.SessionHandler
	Audit    *handlers.AuditHandler
	Admin    *handlers.AdminHandler
	Health   *handlers.HealthHandler
}

// Options configures the guard chain around the handlers
type Options struct {
	Validator       auth.TokenValidator
	IPExtractor     *pkghttp.IPExtractor
	RateLimit       middleware.RateLimitConfig
	AdminAccountIDs []string
	Metrics         http.Handler
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, h Handlers, opts Options) {
	rateLimit := middleware.RateLimitByIP(opts.RateLimit, opts.IPExtractor)

	router.Get("/healthz", h.Health.Live)
	router.Get("/readyz", h.Health.Ready)
	if opts.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	// Public routes - no authentication required
	router.Group(func(r chi.Router) {
		r.Use(rateLimit)
		r.Post("/auth/register", h.Auth.Register)
		r.Post("/auth/login", h.Auth.Login)
		r.Post("/auth/mfa/verify", h.Auth.VerifyMFA)
		r.Post("/auth/refresh", h.Auth.Refresh)
	})

	// Protected routes - access token required
	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(opts.Validator))

		r.Post("/auth/logout", h.Auth.Logout)

		r.Get("/mfa/status", h.MFA.Status)
		r.Post("/mfa/enroll", h.MFA.Enroll)
		r.Post("/mfa/enroll/confirm", h.MFA.Confirm)
		r.Post("/mfa/disable", h.MFA.Disable)
		r.Post("/mfa/backup-codes", h.MFA.RegenerateBackupCodes)

		r.Get("/sessions", h.Sessions.List)
		r.Delete("/sessions/{id}", h.Sessions.Revoke)
		r.Post("/sessions/revoke-all", h.Sessions.RevokeAll)

		r.Get("/audit/events", h.Audit.ListOwn)

		// Operator routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAccountIDs(opts.AdminAccountIDs))
			r.Post("/admin/accounts/{id}/deactivate", h.Admin.DeactivateAccount)
			r.Get("/admin/accounts/{id}/events", h.Audit.ListForAccount)
		})
	})
}
