package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/authgate/internal/metrics"
	"github.com/BradenHooton/authgate/internal/models"
)

// SessionRepository persists login sessions
type SessionRepository interface {
	Create(ctx context.Context, s *models.Session) (*models.Session, error)
	GetByID(ctx context.Context, id string) (*models.Session, error)
	GetByRefreshJTI(ctx context.Context, jti string) (*models.Session, error)
	ListActive(ctx context.Context, accountID string, now time.Time) ([]*models.Session, error)
	Revoke(ctx context.Context, id, accountID, revokedBy string, now time.Time) (*models.Session, bool, error)
	RevokeAll(ctx context.Context, accountID string, exceptIDs []string, revokedBy string, now time.Time) ([]*models.Session, error)
	Touch(ctx context.Context, id string, now time.Time) error
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// SessionTokenRevoker blacklists the refresh tokens of ended sessions
type SessionTokenRevoker interface {
	RevokeSessionTokens(ctx context.Context, accountID string, sessions []*models.Session, reason string) error
}

// DeviceResolver extracts device and location details from request metadata
type DeviceResolver interface {
	Resolve(ip, userAgent string) (models.DeviceInfo, models.LocationInfo)
}

// SessionService tracks the active logins of each account
type SessionService struct {
	repo     SessionRepository
	tokens   SessionTokenRevoker
	resolver DeviceResolver
	audit    *AuditService
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

func NewSessionService(
	repo SessionRepository,
	tokens SessionTokenRevoker,
	resolver DeviceResolver,
	audit *AuditService,
	m *metrics.Metrics,
	logger *slog.Logger,
) *SessionService {
	return &SessionService{
		repo:     repo,
		tokens:   tokens,
		resolver: resolver,
		audit:    audit,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// MarkCurrent reports whether session looks like the one making the request.
// Sessions are matched on IP and user agent only, so two browsers behind the
// same NAT with identical user agents are indistinguishable.
func MarkCurrent(session *models.Session, ip, userAgent string, now time.Time) bool {
	return session.IsActive &&
		!session.IsExpired(now) &&
		session.IPAddress == ip &&
		session.UserAgent == userAgent
}

// Create records a new session bound to refreshJTI
func (s *SessionService) Create(ctx context.Context, accountID, refreshJTI string, meta models.RequestMeta, expiresAt time.Time) (*models.Session, error) {
	device, location := s.resolver.Resolve(meta.IPAddress, meta.UserAgent)

	now := s.now()
	session, err := s.repo.Create(ctx, &models.Session{
		AccountID:    accountID,
		RefreshJTI:   refreshJTI,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
		Device:       device,
		Location:     location,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    expiresAt,
		IsActive:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// ListActive returns the account's live sessions, most recently used first,
// with the caller's own session flagged.
func (s *SessionService) ListActive(ctx context.Context, accountID string, meta models.RequestMeta) ([]*models.Session, error) {
	now := s.now()
	sessions, err := s.repo.ListActive(ctx, accountID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	for _, session := range sessions {
		session.IsCurrent = MarkCurrent(session, meta.IPAddress, meta.UserAgent, now)
	}
	return sessions, nil
}

// Revoke ends one session. Revoking an already revoked session returns it
// unchanged. Unknown or foreign sessions are ErrSessionNotFound.
func (s *SessionService) Revoke(ctx context.Context, accountID, sessionID, revokedBy string, meta models.RequestMeta) (*models.Session, error) {
	session, changed, err := s.repo.Revoke(ctx, sessionID, accountID, revokedBy, s.now())
	if err != nil {
		if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrBadRequest) {
			return nil, models.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to revoke session: %w", err)
	}

	// Blacklist even when the session was already inactive: an earlier call
	// may have failed after the row was updated. The insert is idempotent.
	if err := s.tokens.RevokeSessionTokens(ctx, accountID, []*models.Session{session}, "session_revoked"); err != nil {
		return nil, err
	}
	if !changed {
		return session, nil
	}

	s.metrics.SessionsRevoked(revokedBy, 1)
	s.audit.Record(ctx, AuditEvent{
		Type:      models.EventSessionRevoked,
		AccountID: accountID,
		Success:   true,
		Meta:      meta,
		Details: models.EventDetails{
			"session_id": session.ID,
			"revoked_by": revokedBy,
		},
	})
	return session, nil
}

// RevokeAll ends every active session of the account, optionally sparing the
// caller's own. Returns the number of sessions revoked.
func (s *SessionService) RevokeAll(ctx context.Context, accountID string, exceptCurrent bool, meta models.RequestMeta, revokedBy string) (int, error) {
	now := s.now()

	var except []string
	if exceptCurrent {
		active, err := s.repo.ListActive(ctx, accountID, now)
		if err != nil {
			return 0, fmt.Errorf("failed to list sessions: %w", err)
		}
		for _, session := range active {
			if MarkCurrent(session, meta.IPAddress, meta.UserAgent, now) {
				except = append(except, session.ID)
			}
		}
	}

	revoked, err := s.repo.RevokeAll(ctx, accountID, except, revokedBy, now)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke sessions: %w", err)
	}
	if err := s.tokens.RevokeSessionTokens(ctx, accountID, revoked, "session_revoked"); err != nil {
		return 0, err
	}

	s.metrics.SessionsRevoked(revokedBy, len(revoked))
	s.audit.Record(ctx, AuditEvent{
		Type:      models.EventSessionRevoked,
		AccountID: accountID,
		Success:   true,
		Meta:      meta,
		Details: models.EventDetails{
			"count":          len(revoked),
			"except_current": exceptCurrent,
			"revoked_by":     revokedBy,
		},
	})
	return len(revoked), nil
}

// RevokeByRefreshJTI ends the session bound to a refresh token, if any
func (s *SessionService) RevokeByRefreshJTI(ctx context.Context, accountID, jti, revokedBy string, meta models.RequestMeta) error {
	session, err := s.repo.GetByRefreshJTI(ctx, jti)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load session: %w", err)
	}
	if session.AccountID != accountID {
		return nil
	}

	_, err = s.Revoke(ctx, accountID, session.ID, revokedBy, meta)
	if errors.Is(err, models.ErrSessionNotFound) {
		return nil
	}
	return err
}

// RecordRevoked accounts for sessions revoked by a bulk store operation such
// as account deactivation, blacklisting their refresh tokens.
func (s *SessionService) RecordRevoked(ctx context.Context, accountID string, sessions []*models.Session, revokedBy string) error {
	if err := s.tokens.RevokeSessionTokens(ctx, accountID, sessions, "account_deactivated"); err != nil {
		return err
	}
	s.metrics.SessionsRevoked(revokedBy, len(sessions))
	return nil
}

func (s *SessionService) Touch(ctx context.Context, sessionID string) error {
	return s.repo.Touch(ctx, sessionID, s.now())
}

// SweepExpired marks sessions past expires_at as revoked by the system
func (s *SessionService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.SweepExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep sessions: %w", err)
	}
	return n, nil
}
