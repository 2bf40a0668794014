package models

import (
	"time"
)

// MFAFactor is a TOTP authenticator registered for an account
type MFAFactor struct {
	ID              string
	AccountID       string
	Name            string
	SecretEncrypted []byte // AES-256-GCM encrypted base32 secret
	SecretNonce     []byte // GCM nonce (12 bytes)
	Confirmed       bool
	ConfirmedAt     *time.Time
	LastUsedAt      *time.Time
	CreatedAt       time.Time
}

// BackupCode is a single-use fallback credential. Only the bcrypt hash is stored.
type BackupCode struct {
	ID        string
	AccountID string
	CodeHash  string
	Used      bool
	UsedAt    *time.Time
	CreatedAt time.Time
}

// MFACleanupJob is a deferred removal of backup codes and unconfirmed
// factors left behind by an MFA disable.
type MFACleanupJob struct {
	AccountID  string
	DisabledAt time.Time
	RunAfter   time.Time
}

// MFAEnrollment is returned once, at enroll-start.
type MFAEnrollment struct {
	FactorID        string   `json:"factor_id"`
	Secret          string   `json:"secret"`
	ProvisioningURI string   `json:"provisioning_uri"`
	QRCode          string   `json:"qr_code"` // PNG data URL
	BackupCodes     []string `json:"backup_codes"`
}

// MFAStatus summarizes an account's second factor state
type MFAStatus struct {
	Enrolled             bool `json:"mfa_enrolled"`
	ConfirmedFactors     int  `json:"confirmed_factors"`
	RemainingBackupCodes int  `json:"remaining_backup_codes"`
}

const (
	MFAMethodTOTP       = "totp"
	MFAMethodBackupCode = "backup_code"
)
