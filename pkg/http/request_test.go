package http_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	pkghttp "github.com/BradenHooton/authgate/pkg/http"
	"github.com/stretchr/testify/assert"
)

func TestClientIP_DirectConnection_IgnoresHeaders(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.10:54321"
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")
	req.Header.Set("X-Real-IP", "192.168.1.1")

	ex := pkghttp.NewIPExtractor([]string{"10.0.0.0/8", "127.0.0.1/32"})

	assert.Equal(t, "203.0.113.10", ex.ClientIP(req))
}

func TestClientIP_TrustedProxy_UsesXForwardedFor(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.5:54321"
	req.Header.Set("X-Forwarded-For", "203.0.113.42, 10.0.0.5")

	ex := pkghttp.NewIPExtractor([]string{"10.0.0.0/8"})

	assert.Equal(t, "203.0.113.42", ex.ClientIP(req))
}

func TestClientIP_TrustedProxy_FallsBackToXRealIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.5:54321"
	req.Header.Set("X-Forwarded-For", "garbage")
	req.Header.Set("X-Real-IP", "198.51.100.7")

	ex := pkghttp.NewIPExtractor([]string{"10.0.0.0/8"})

	assert.Equal(t, "198.51.100.7", ex.ClientIP(req))
}

func TestClientIP_IPv6_TrustedProxy(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "[fd00::1]:443"
	req.Header.Set("X-Forwarded-For", "2001:db8::42")

	ex := pkghttp.NewIPExtractor([]string{"fd00::/8"})

	assert.Equal(t, "2001:db8::42", ex.ClientIP(req))
}

func TestClientIP_NoTrustedProxies(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "1.2.3.4")

	assert.Equal(t, "127.0.0.1", pkghttp.NewIPExtractor(nil).ClientIP(req))
	assert.Equal(t, "127.0.0.1", pkghttp.NewIPExtractor([]string{"not-a-cidr"}).ClientIP(req))

	var nilExtractor *pkghttp.IPExtractor
	assert.Equal(t, "127.0.0.1", nilExtractor.ClientIP(req))
}

func TestDecodeJSON_RejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"email":"a@x.com","admin":true}`))

	var dst struct {
		Email string `json:"email"`
	}
	assert.Error(t, pkghttp.DecodeJSON(req, &dst))
}

func TestDecodeJSON_Success(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"email":"a@x.com"}`))

	var dst struct {
		Email string `json:"email"`
	}
	assert.NoError(t, pkghttp.DecodeJSON(req, &dst))
	assert.Equal(t, "a@x.com", dst.Email)
}
