package models

import (
	"strings"
	"time"
)

type Account struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	PasswordHash       string     `json:"-"`
	IsActive           bool       `json:"is_active"`
	MFAEnrolled        bool       `json:"mfa_enrolled"`
	FailedAttemptCount int        `json:"-"`
	LockedUntil        *time.Time `json:"-"`
	MustChangePassword bool       `json:"must_change_password"`
	LastPasswordChange *time.Time `json:"last_password_change,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// IsLocked reports whether the account is inside a lockout window at now.
func (a *Account) IsLocked(now time.Time) bool {
	return a.LockedUntil != nil && a.LockedUntil.After(now)
}

// NormalizeEmail is the canonical form used for lookups and lockout identity.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// LockoutState is the result of an atomic failed-attempt increment.
type LockoutState struct {
	FailedAttempts int
	LockedUntil    *time.Time
}

// LoginAttempt is a historical record of a credential check.
type LoginAttempt struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	Success   bool      `json:"success"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
