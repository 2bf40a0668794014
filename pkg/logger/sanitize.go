package logger

import (
	"log/slog"
	"net/url"
	"strings"
)

// SanitizedEmail masks an email address for logging (e.g., "u***@e***.com")
func SanitizedEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "[invalid-email]"
	}

	username := parts[0]
	domain := parts[1]

	// Mask username: keep first char, mask rest
	if len(username) > 1 {
		username = string(username[0]) + strings.Repeat("*", len(username)-1)
	}

	// Mask domain: keep TLD, mask the rest
	domainParts := strings.Split(domain, ".")
	if len(domainParts) > 1 {
		for i := 0; i < len(domainParts)-1; i++ {
			domainParts[i] = strings.Repeat("*", len(domainParts[i]))
		}
		domain = strings.Join(domainParts, ".")
	}

	return username + "@" + domain
}

// RedactedAttr returns an attribute whose value never reaches the log
func RedactedAttr(key string) slog.Attr {
	return slog.String(key, "[REDACTED]")
}

var sensitiveParams = []string{
	"password", "token", "secret", "code", "email", "otp", "key",
}

// IsSensitiveQuery reports whether any query parameter name looks like it
// carries a credential, code or token
func IsSensitiveQuery(rawQuery string) bool {
	if rawQuery == "" {
		return false
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return true
	}
	for name := range values {
		name = strings.ToLower(name)
		for _, s := range sensitiveParams {
			if strings.Contains(name, s) {
				return true
			}
		}
	}
	return false
}
