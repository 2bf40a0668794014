package middleware

import (
	"net/http"

	"github.com/BradenHooton/authgate/internal/auth"
	pkghttp "github.com/BradenHooton/authgate/pkg/http"
)

// RequireAccountIDs only lets through callers whose access token belongs to
// one of the listed accounts. It must run after auth.AuthMiddleware. An empty
// list rejects everyone.
func RequireAccountIDs(ids []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		allowed[id] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := auth.ClaimsFromContext(r.Context())
			if claims == nil {
				pkghttp.WriteUnauthorized(w, "Unauthorized")
				return
			}
			if _, ok := allowed[claims.UserID]; !ok {
				pkghttp.WriteError(w, http.StatusForbidden, "forbidden", "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
