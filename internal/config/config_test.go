package config

import (
	"encoding/base64"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	os.Clearenv()
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("MFA_ENCRYPTION_KEY", base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32))))
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)
	defer os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)

	tests := []struct {
		name     string
		actual   time.Duration
		expected time.Duration
	}{
		{"AccessTokenExpiry", cfg.Auth.AccessTokenExpiry, 60 * time.Minute},
		{"RefreshTokenExpiry", cfg.Auth.RefreshTokenExpiry, 7 * 24 * time.Hour},
		{"RememberMeExpiry", cfg.Auth.RememberMeExpiry, 30 * 24 * time.Hour},
		{"MFAPendingExpiry", cfg.Auth.MFAPendingExpiry, 5 * time.Minute},
		{"UnconfirmedRetention", cfg.Auth.UnconfirmedRetention, 24 * time.Hour},
		{"UsedCodeRetention", cfg.Auth.UsedCodeRetention, 90 * 24 * time.Hour},
		{"LockoutCooloff", cfg.Lockout.Cooloff, 30 * time.Minute},
		{"ReadTimeout", cfg.Server.ReadTimeout, 15 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.actual, tt.name)
	}

	assert.True(t, cfg.Auth.RotateRefreshTokens)
	assert.Equal(t, 10, cfg.Auth.BackupCodeCount)
	assert.Equal(t, 5, cfg.Lockout.FailureLimit)
	assert.False(t, cfg.MFA.FailuresCountToLockout)
	assert.Len(t, cfg.MFA.EncryptionKey, 32)
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("ACCESS_TOKEN_EXPIRY", "10m")
	os.Setenv("ROTATE_REFRESH_TOKENS", "false")
	os.Setenv("MFA_CLEANUP_DELAY", "30m")
	os.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 172.16.0.0/12")
	os.Setenv("ADMIN_ACCOUNT_IDS", "11111111-1111-1111-1111-111111111111")
	defer os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10*time.Minute, cfg.Auth.AccessTokenExpiry)
	assert.False(t, cfg.Auth.RotateRefreshTokens)
	assert.Equal(t, 30*time.Minute, cfg.MFA.CleanupDelay)
	assert.Equal(t, []string{"10.0.0.0/8", "172.16.0.0/12"}, cfg.Server.TrustedProxies)
	assert.Equal(t, []string{"11111111-1111-1111-1111-111111111111"}, cfg.Server.AdminAccountIDs)
	assert.Empty(t, cfg.Server.AllowedOrigins)
}

func TestLoad_MissingRequired(t *testing.T) {
	tests := []struct {
		name  string
		unset string
		want  string
	}{
		{"jwt secret", "JWT_SECRET", "JWT_SECRET is required"},
		{"db password", "DB_PASSWORD", "DB_PASSWORD is required"},
		{"mfa key", "MFA_ENCRYPTION_KEY", "MFA_ENCRYPTION_KEY is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			os.Unsetenv(tt.unset)
			defer os.Clearenv()

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_ShortEncryptionKey(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("MFA_ENCRYPTION_KEY", base64.StdEncoding.EncodeToString([]byte("short")))
	defer os.Clearenv()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "32 bytes")
}

func TestValidateJWTSecret(t *testing.T) {
	assert.Error(t, validateJWTSecret("short", "development"))
	assert.Error(t, validateJWTSecret("sixteen-chars-ok", "production"))
	assert.NoError(t, validateJWTSecret("sixteen-chars-ok", "development"))
	assert.NoError(t, validateJWTSecret(strings.Repeat("x", 32), "production"))
}

func TestToModel(t *testing.T) {
	setRequiredEnv(t)
	defer os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)

	m := cfg.ToModel()
	assert.Equal(t, "HS256", m.Algorithm)
	assert.Equal(t, cfg.Auth.JWTSecret, m.SigningSecret)
	assert.Equal(t, 5*time.Minute, m.MFAPendingTTL)
	assert.Equal(t, 30*24*time.Hour, m.RefreshTTLFor(true))
}
