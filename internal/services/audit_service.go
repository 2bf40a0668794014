package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/BradenHooton/authgate/internal/metrics"
	"github.com/BradenHooton/authgate/internal/models"
	pkglogger "github.com/BradenHooton/authgate/pkg/logger"
)

// AuthEventRepository is the append-only audit store
type AuthEventRepository interface {
	Create(ctx context.Context, event *models.AuthEvent) error
	CountFailures(ctx context.Context, accountID, eventType string, since time.Time) (int, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*models.AuthEvent, error)
}

// AuditEvent is one security-relevant outcome
type AuditEvent struct {
	Type      string
	AccountID string
	Success   bool
	Meta      models.RequestMeta
	Details   models.EventDetails
}

// AuditService handles audit logging with dual-write pattern (slog + database).
// Persistence is best-effort: a failed write is logged and counted but never
// returned to the caller.
type AuditService struct {
	repo    AuthEventRepository
	audit   *pkglogger.AuditLogger
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewAuditService creates a new AuditService
func NewAuditService(repo AuthEventRepository, logger *slog.Logger, m *metrics.Metrics) *AuditService {
	return &AuditService{
		repo:    repo,
		audit:   pkglogger.NewAuditLogger(logger),
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Record writes the event to the log stream and the audit table
func (s *AuditService) Record(ctx context.Context, ev AuditEvent) {
	s.audit.Log(ctx, pkglogger.AuditEntry{
		EventType: ev.Type,
		AccountID: ev.AccountID,
		IPAddress: ev.Meta.IPAddress,
		UserAgent: ev.Meta.UserAgent,
		Success:   ev.Success,
		Details:   ev.Details,
	})

	event := &models.AuthEvent{
		EventType: ev.Type,
		Success:   ev.Success,
		IPAddress: ev.Meta.IPAddress,
		UserAgent: ev.Meta.UserAgent,
		Details:   ev.Details,
		CreatedAt: s.now(),
	}
	if ev.AccountID != "" {
		id := ev.AccountID
		event.AccountID = &id
	}

	if err := s.repo.Create(ctx, event); err != nil {
		s.metrics.AuditWriteFailed()
		s.logger.ErrorContext(ctx, "failed to persist audit event",
			slog.String("event_type", ev.Type),
			slog.Any("error", err),
		)
	}
}

// RecentFailures counts failed events of one type for an account within window
func (s *AuditService) RecentFailures(ctx context.Context, accountID, eventType string, window time.Duration) (int, error) {
	return s.repo.CountFailures(ctx, accountID, eventType, s.now().Add(-window))
}

// ListForAccount returns an account's audit trail, newest first
func (s *AuditService) ListForAccount(ctx context.Context, accountID string, limit, offset int) ([]*models.AuthEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByAccount(ctx, accountID, limit, offset)
}
