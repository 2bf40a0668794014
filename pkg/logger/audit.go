package logger

import (
	"context"
	"log/slog"
	"sort"
)

// AuditEntry is the log-side view of an auth event
type AuditEntry struct {
	EventType string
	AccountID string
	IPAddress string
	UserAgent string
	Success   bool
	Details   map[string]any
}

// AuditLogger writes auth events as structured log lines
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// Log emits one audit line. Failures log at WARN so they stand out in dashboards.
func (al *AuditLogger) Log(ctx context.Context, entry AuditEntry) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", entry.EventType),
		slog.Bool("success", entry.Success),
	}

	if entry.AccountID != "" {
		attrs = append(attrs, slog.String("account_id", entry.AccountID))
	}
	if entry.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", entry.IPAddress))
	}
	if entry.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", entry.UserAgent))
	}

	keys := make([]string, 0, len(entry.Details))
	for k := range entry.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, entry.Details[k]))
	}

	level := slog.LevelInfo
	if !entry.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit", attrs...)
}
