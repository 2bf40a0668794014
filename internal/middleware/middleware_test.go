package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/authgate/internal/auth"
	"github.com/BradenHooton/authgate/internal/metrics"
	"github.com/BradenHooton/authgate/internal/models"
	pkghttp "github.com/BradenHooton/authgate/pkg/http"
)

// ============================================================================
// Rate Limit Tests (2 tests)
// ============================================================================

func TestRateLimitByIP_BlocksAfterLimit(t *testing.T) {
	handler := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 2}, pkghttp.NewIPExtractor(nil))(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("POST", "/auth/login", nil)
		req.RemoteAddr = "198.51.100.7:5000"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		codes = append(codes, w.Code)

		if w.Code == http.StatusTooManyRequests {
			var resp pkghttp.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "rate_limit_exceeded", resp.Error)
		}
	}

	assert.Equal(t, []int{200, 200, 429}, codes)
}

func TestRateLimitByIP_IgnoresSpoofedForwardedFor(t *testing.T) {
	handler := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 1}, pkghttp.NewIPExtractor(nil))(okHandler())

	first := httptest.NewRequest("POST", "/auth/login", nil)
	first.RemoteAddr = "198.51.100.8:5000"
	first.Header.Set("X-Forwarded-For", "10.0.0.1")
	w1 := httptest.NewRecorder()
	handler.ServeHTTP(w1, first)

	second := httptest.NewRequest("POST", "/auth/login", nil)
	second.RemoteAddr = "198.51.100.8:5001"
	second.Header.Set("X-Forwarded-For", "10.0.0.2")
	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, second)

	assert.Equal(t, http.StatusOK, w1.Code)
	assert.Equal(t, http.StatusTooManyRequests, w2.Code)
}

// ============================================================================
// Admin Gate Tests (3 tests)
// ============================================================================

func withClaims(r *http.Request, accountID string) *http.Request {
	claims := &models.TokenClaims{UserID: accountID, Type: models.TokenTypeAccess}
	return r.WithContext(context.WithValue(r.Context(), auth.ClaimsContextKey, claims))
}

func TestRequireAccountIDs(t *testing.T) {
	handler := RequireAccountIDs([]string{"admin-1"})(okHandler())

	allowed := httptest.NewRecorder()
	handler.ServeHTTP(allowed, withClaims(httptest.NewRequest("GET", "/", nil), "admin-1"))
	assert.Equal(t, http.StatusOK, allowed.Code)

	denied := httptest.NewRecorder()
	handler.ServeHTTP(denied, withClaims(httptest.NewRequest("GET", "/", nil), "user-2"))
	assert.Equal(t, http.StatusForbidden, denied.Code)
}

func TestRequireAccountIDs_NoClaims(t *testing.T) {
	handler := RequireAccountIDs([]string{"admin-1"})(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAccountIDs_EmptyListDeniesAll(t *testing.T) {
	handler := RequireAccountIDs(nil)(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, withClaims(httptest.NewRequest("GET", "/", nil), "admin-1"))

	assert.Equal(t, http.StatusForbidden, w.Code)
}

// ============================================================================
// CORS Tests (2 tests)
// ============================================================================

func TestCORS_AllowedOrigin(t *testing.T) {
	handler := CORS(DefaultCORSConfig([]string{"https://app.example.com"}))(okHandler())

	req := httptest.NewRequest("OPTIONS", "/auth/login", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_UnlistedOrigin(t *testing.T) {
	handler := CORS(DefaultCORSConfig([]string{"https://app.example.com"}))(okHandler())

	req := httptest.NewRequest("GET", "/mfa/status", nil)
	req.Header.Set("Origin", "https://evil.example.net")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

// ============================================================================
// Logging / Metrics Tests (2 tests)
// ============================================================================

func TestRequestLogger_RedactsSensitiveQuery(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/auth/refresh?refresh_token=eyJhbGci", nil))

	out := buf.String()
	assert.True(t, strings.Contains(out, `"status":401`))
	assert.True(t, strings.Contains(out, "[REDACTED]"))
	assert.False(t, strings.Contains(out, "eyJhbGci"))
}

func TestMetrics_UsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(Metrics(m))
	r.Delete("/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, id := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("DELETE", "/sessions/"+id, nil))
	}

	families, err := reg.Gather()
	require.NoError(t, err)
	var series []string
	for _, mf := range families {
		if mf.GetName() != "authgate_http_requests_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == "route" {
					series = append(series, lp.GetValue())
				}
			}
			assert.Equal(t, float64(2), metric.GetCounter().GetValue())
		}
	}
	assert.Equal(t, []string{"/sessions/{id}"}, series)
}
