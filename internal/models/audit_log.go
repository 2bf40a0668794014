package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Auth event types
const (
	EventLoginSuccess           = "login_success"
	EventLoginFailed            = "login_failed"
	EventLoginMFARequired       = "login_mfa_required"
	EventLogout                 = "logout"
	EventRegister               = "register"
	EventMFAEnroll              = "mfa_enroll"
	EventMFAVerify              = "mfa_verify"
	EventMFADisable             = "mfa_disable"
	EventBackupCodesRegenerated = "backup_codes_regenerated"
	EventSessionCreated         = "session_created"
	EventSessionRevoked         = "session_revoked"
	EventTokenRefreshed         = "token_refreshed"
	EventAccountDeactivated     = "account_deactivated"
)

// AuthEvent is an append-only record of a security-relevant action
type AuthEvent struct {
	ID        string       `json:"id"`
	AccountID *string      `json:"account_id,omitempty"`
	EventType string       `json:"event_type"`
	Success   bool         `json:"success"`
	IPAddress string       `json:"ip_address"`
	UserAgent string       `json:"user_agent"`
	Details   EventDetails `json:"details"`
	CreatedAt time.Time    `json:"created_at"`
}

// EventDetails holds additional context for audit events
type EventDetails map[string]interface{}

// Scan implements sql.Scanner for JSONB
func (d *EventDetails) Scan(value interface{}) error {
	if value == nil {
		*d = make(EventDetails)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return ErrBadRequest
	}

	var m map[string]interface{}
	if err := json.Unmarshal(bytes, &m); err != nil {
		return err
	}
	*d = EventDetails(m)
	return nil
}

// Value implements driver.Valuer for JSONB
func (d EventDetails) Value() (driver.Value, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]interface{}(d))
}
