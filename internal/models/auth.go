package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenTypeAccess     = "access"
	TokenTypeRefresh    = "refresh"
	TokenTypeMFAPending = "mfa_pending"
)

// TokenClaims are carried by access and refresh tokens
type TokenClaims struct {
	Type       string `json:"typ"`
	UserID     string `json:"uid"`
	Email      string `json:"email,omitempty"`
	RememberMe bool   `json:"remember_me,omitempty"`
	jwt.RegisteredClaims
}

// MFAPendingClaims are carried by the short-lived MFA challenge token.
// The token is never persisted.
type MFAPendingClaims struct {
	Type       string `json:"typ"`
	UserID     string `json:"uid"`
	MFAPending bool   `json:"mfa_pending"`
	RememberMe bool   `json:"remember_me"`
	jwt.RegisteredClaims
}

// TokenPair is the result of a full login or refresh
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	AccessJTI        string    `json:"-"`
	RefreshJTI       string    `json:"-"`
}

// RefreshRotation describes one atomic refresh-token swap.
type RefreshRotation struct {
	AccountID    string
	OldJTI       string
	OldExpiresAt time.Time
	NewJTI       string
	NewExpiresAt time.Time
}

// AuthConfig is the immutable configuration of the auth core
type AuthConfig struct {
	AccessTTL                  time.Duration
	RefreshTTL                 time.Duration
	RememberMeRefreshTTL       time.Duration
	RotateRefreshTokens        bool
	SigningSecret              string
	Algorithm                  string
	MFAPendingTTL              time.Duration
	UnconfirmedFactorRetention time.Duration
	UsedBackupCodeRetention    time.Duration

	BackupCodeCount         int
	BackupCodeHashCost      int
	MFAIssuer               string
	MFAMaxAttempts          int
	MFAAttemptWindow        time.Duration
	MFAFailuresCountLockout bool
	MFACleanupDelay         time.Duration
}

// RefreshTTLFor returns the refresh lifetime for a login with or without remember-me.
func (c AuthConfig) RefreshTTLFor(rememberMe bool) time.Duration {
	if rememberMe && c.RememberMeRefreshTTL > 0 {
		return c.RememberMeRefreshTTL
	}
	return c.RefreshTTL
}
