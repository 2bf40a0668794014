package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizedEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice@example.com", "a****@*******.com"},
		{"a@example.co.uk", "a@*******.**.uk"},
		{"no-at-sign", "[invalid-email]"},
		{"a@b@c", "[invalid-email]"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizedEmail(tt.in))
		})
	}
}

func TestIsSensitiveQuery(t *testing.T) {
	assert.False(t, IsSensitiveQuery(""))
	assert.False(t, IsSensitiveQuery("limit=10&offset=20"))
	assert.True(t, IsSensitiveQuery("refresh_token=abc"))
	assert.True(t, IsSensitiveQuery("mfa_code=123456"))
	assert.True(t, IsSensitiveQuery("Email=a%40b.com"))
	assert.True(t, IsSensitiveQuery("%zz"))
}

func TestRedactedAttr(t *testing.T) {
	attr := RedactedAttr("query")

	assert.Equal(t, "query", attr.Key)
	assert.Equal(t, "[REDACTED]", attr.Value.String())
}
