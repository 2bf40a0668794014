package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")
)

// ErrorKind groups auth errors so callers can branch on the family
// without listing every sentinel.
type ErrorKind string

const (
	KindCredential ErrorKind = "credential"
	KindMFA        ErrorKind = "mfa"
	KindToken      ErrorKind = "token"
	KindSession    ErrorKind = "session"
	KindValidation ErrorKind = "validation"
)

// AuthError is a sentinel auth failure with a stable code and kind.
type AuthError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

func newAuthError(kind ErrorKind, code, message string) *AuthError {
	return &AuthError{Kind: kind, Code: code, Message: message}
}

// Credential errors
var (
	ErrInvalidCredentials = newAuthError(KindCredential, "INVALID_CREDENTIALS", "invalid email or password")
	ErrAccountDisabled    = newAuthError(KindCredential, "ACCOUNT_DISABLED", "account is disabled")
	ErrAccountLocked      = newAuthError(KindCredential, "ACCOUNT_LOCKED", "account is temporarily locked")
)

// MFA errors
var (
	ErrMFAInvalidToken    = newAuthError(KindMFA, "MFA_INVALID_TOKEN", "invalid mfa token")
	ErrMFAExpiredToken    = newAuthError(KindMFA, "MFA_EXPIRED_TOKEN", "mfa token has expired")
	ErrMFAInvalidCode     = newAuthError(KindMFA, "MFA_INVALID_CODE", "invalid or used code")
	ErrNoEnrolledFactor   = newAuthError(KindMFA, "MFA_NO_ENROLLED_FACTOR", "no enrolled mfa factor")
	ErrMFAAlreadyEnrolled = newAuthError(KindMFA, "MFA_ALREADY_ENROLLED", "mfa is already enabled")
	ErrMFANotEnrolled     = newAuthError(KindMFA, "MFA_NOT_ENROLLED", "mfa is not enabled")
	ErrMFAFactorNotFound  = newAuthError(KindMFA, "MFA_DEVICE_NOT_FOUND", "mfa factor not found")
	ErrMFATooManyAttempts = newAuthError(KindMFA, "MFA_TOO_MANY_ATTEMPTS", "too many mfa attempts")
)

// Token errors
var (
	ErrTokenMalformed = newAuthError(KindToken, "TOKEN_MALFORMED", "malformed token")
	ErrTokenExpired   = newAuthError(KindToken, "TOKEN_EXPIRED", "token has expired")
	ErrTokenRevoked   = newAuthError(KindToken, "TOKEN_REVOKED", "token has been revoked")
)

// Session errors
var (
	ErrSessionNotFound = newAuthError(KindSession, "SESSION_NOT_FOUND", "session not found")
)

// ErrValidation is the sentinel matched by every *ValidationError.
var ErrValidation = newAuthError(KindValidation, "VALIDATION_ERROR", "validation failed")

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// KindOf returns the auth error kind carried by err, or "" if err is not an auth error.
func KindOf(err error) ErrorKind {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return KindValidation
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// CodeOf returns the stable error code carried by err, or "" if none.
func CodeOf(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ErrValidation.Code
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
