package models

import (
	"strings"
	"time"
)

const (
	RevokedByUser   = "user"
	RevokedByAdmin  = "admin"
	RevokedBySystem = "system"
)

// DeviceInfo is whatever the device resolver could extract from the user agent
type DeviceInfo struct {
	DeviceType string `json:"device_type"`
	OS         string `json:"os"`
	Browser    string `json:"browser"`
}

// LocationInfo is a best-effort IP location
type LocationInfo struct {
	Country string `json:"country"`
	City    string `json:"city"`
}

type Session struct {
	ID           string       `json:"id"`
	AccountID    string       `json:"-"`
	RefreshJTI   string       `json:"-"`
	IPAddress    string       `json:"ip_address"`
	UserAgent    string       `json:"user_agent"`
	Device       DeviceInfo   `json:"device"`
	Location     LocationInfo `json:"location"`
	CreatedAt    time.Time    `json:"created_at"`
	LastActivity time.Time    `json:"last_activity"`
	ExpiresAt    time.Time    `json:"expires_at"`
	IsActive     bool         `json:"is_active"`
	IsCurrent    bool         `json:"is_current"`
	RevokedAt    *time.Time   `json:"revoked_at,omitempty"`
	RevokedBy    *string      `json:"revoked_by,omitempty"`
}

// IsExpired reports whether the session lifetime has elapsed at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// DeviceName renders a display name such as "Chrome on Windows".
func (s *Session) DeviceName() string {
	browser := s.Device.Browser
	if browser == "" {
		browser = "Unknown browser"
	}
	if s.Device.OS == "" {
		return browser
	}
	return browser + " on " + s.Device.OS
}

// LocationName renders "City, Country" with whatever parts are known.
func (s *Session) LocationName() string {
	parts := make([]string, 0, 2)
	if s.Location.City != "" {
		parts = append(parts, s.Location.City)
	}
	if s.Location.Country != "" {
		parts = append(parts, s.Location.Country)
	}
	if len(parts) == 0 {
		return "Unknown location"
	}
	return strings.Join(parts, ", ")
}

// RequestMeta is the client metadata attached to an auth request
type RequestMeta struct {
	IPAddress string
	UserAgent string
}
