package handlers

// MFA enrollment DTOs

// EnrollMFARequest starts enrollment of a new authenticator
type EnrollMFARequest struct {
	Name string `json:"name" validate:"omitempty,max=255"`
}

// ConfirmMFARequest proves possession of the new authenticator
type ConfirmMFARequest struct {
	FactorID string `json:"factor_id" validate:"required,uuid"`
	Code     string `json:"code" validate:"required,len=6,numeric"`
}

// Verification DTOs

// VerifyMFACodeRequest is the request to verify an MFA code during login
type VerifyMFACodeRequest struct {
	MFAToken string `json:"mfa_token" validate:"required"`
	Code     string `json:"code" validate:"required,max=20,mfacode"` // TOTP (6 digits) or backup code (XXXX-XXXX)
}

// Backup code DTOs

// BackupCodesResponse carries freshly generated plaintext backup codes. They
// are shown exactly once.
type BackupCodesResponse struct {
	BackupCodes []string `json:"backup_codes"`
}

// Session DTOs

// RevokeAllSessionsRequest ends every active session of the caller
type RevokeAllSessionsRequest struct {
	ExceptCurrent bool `json:"except_current"`
}

// RevokeAllSessionsResponse reports how many sessions were ended
type RevokeAllSessionsResponse struct {
	Revoked int `json:"revoked"`
}
