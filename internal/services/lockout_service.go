package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/authgate/internal/models"
	pkglogger "github.com/BradenHooton/authgate/pkg/logger"
)

// LockoutGuard decides whether an identity may attempt to log in.
// Identities are normalized emails.
type LockoutGuard interface {
	RecordFailure(ctx context.Context, identity string) error
	RecordSuccess(ctx context.Context, identity string) error
	IsLocked(ctx context.Context, identity string) (bool, error)
}

// LockoutRepository holds the per-account failure counter
type LockoutRepository interface {
	IncrementFailedAttempts(ctx context.Context, email string, limit int, cooloff time.Duration, now time.Time) (*models.LockoutState, error)
	ResetFailedAttempts(ctx context.Context, email string, now time.Time) error
	GetLockout(ctx context.Context, email string) (*models.LockoutState, error)
}

// LockoutConfig holds the failure threshold and lock duration
type LockoutConfig struct {
	FailureLimit int
	Cooloff      time.Duration
}

// LockoutService is the default LockoutGuard. Counting happens in a single
// UPDATE so concurrent failures never lose an increment.
type LockoutService struct {
	repo   LockoutRepository
	config LockoutConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewLockoutService creates a new LockoutService
func NewLockoutService(repo LockoutRepository, config LockoutConfig, logger *slog.Logger) *LockoutService {
	if config.FailureLimit < 1 {
		config.FailureLimit = 5
	}
	if config.Cooloff <= 0 {
		config.Cooloff = 30 * time.Minute
	}
	return &LockoutService{
		repo:   repo,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// RecordFailure counts one failed attempt. Unknown identities are ignored.
func (s *LockoutService) RecordFailure(ctx context.Context, identity string) error {
	state, err := s.repo.IncrementFailedAttempts(ctx, identity, s.config.FailureLimit, s.config.Cooloff, s.now())
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to record login failure: %w", err)
	}

	if state.LockedUntil != nil && state.FailedAttempts == s.config.FailureLimit {
		s.logger.WarnContext(ctx, "account locked",
			slog.String("email", pkglogger.SanitizedEmail(identity)),
			slog.Int("failed_attempts", state.FailedAttempts),
			slog.Time("locked_until", *state.LockedUntil),
		)
	}
	return nil
}

// RecordSuccess clears the failure counter
func (s *LockoutService) RecordSuccess(ctx context.Context, identity string) error {
	if err := s.repo.ResetFailedAttempts(ctx, identity, s.now()); err != nil && !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to reset login failures: %w", err)
	}
	return nil
}

// IsLocked reports whether identity is inside a lockout window. Store
// errors are returned so the caller fails closed.
func (s *LockoutService) IsLocked(ctx context.Context, identity string) (bool, error) {
	state, err := s.repo.GetLockout(ctx, identity)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read lockout state: %w", err)
	}
	return state.LockedUntil != nil && state.LockedUntil.After(s.now()), nil
}
