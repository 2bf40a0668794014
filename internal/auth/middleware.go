package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/BradenHooton/authgate/internal/models"
	pkghttp "github.com/BradenHooton/authgate/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// ClaimsContextKey is the key for storing token claims in context
	ClaimsContextKey contextKey = "claims"
	// TokenContextKey is the key for storing the raw bearer token in context
	TokenContextKey contextKey = "bearer_token"
)

// TokenValidator validates an access token including its revocation status
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*models.TokenClaims, error)
}

// AuthMiddleware validates bearer access tokens and injects claims into context.
// Refresh tokens are rejected; they are only accepted by the refresh endpoint.
func AuthMiddleware(validator TokenValidator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := BearerToken(r)
			if !ok {
				pkghttp.WriteUnauthorized(w, "missing or malformed authorization header")
				return
			}

			claims, err := validator.Validate(r.Context(), tokenString)
			if err != nil {
				if models.KindOf(err) == models.KindToken {
					pkghttp.WriteServiceError(w, err)
					return
				}
				pkghttp.WriteError(w, http.StatusServiceUnavailable, "unavailable", "unable to verify token status")
				return
			}

			if claims.Type != models.TokenTypeAccess {
				pkghttp.WriteUnauthorized(w, "refresh tokens cannot be used for API access")
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			ctx = context.WithValue(ctx, TokenContextKey, tokenString)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// ClaimsFromContext extracts token claims from request context
func ClaimsFromContext(ctx context.Context) *models.TokenClaims {
	claims, ok := ctx.Value(ClaimsContextKey).(*models.TokenClaims)
	if !ok {
		return nil
	}
	return claims
}

// TokenFromContext returns the raw bearer token stored by AuthMiddleware
func TokenFromContext(ctx context.Context) (string, error) {
	token, ok := ctx.Value(TokenContextKey).(string)
	if !ok || token == "" {
		return "", errors.New("no bearer token in context")
	}
	return token, nil
}
