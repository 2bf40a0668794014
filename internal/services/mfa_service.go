package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/authgate/internal/auth"
	"github.com/BradenHooton/authgate/internal/metrics"
	"github.com/BradenHooton/authgate/internal/models"
)

// FactorRepository persists TOTP factors
type FactorRepository interface {
	Create(ctx context.Context, factor *models.MFAFactor) (*models.MFAFactor, error)
	GetByID(ctx context.Context, id string) (*models.MFAFactor, error)
	ListConfirmed(ctx context.Context, accountID string) ([]*models.MFAFactor, error)
	Confirm(ctx context.Context, factorID, accountID string, now time.Time) error
	DisableAll(ctx context.Context, accountID string, now time.Time) (int64, error)
	TouchLastUsed(ctx context.Context, factorID string, now time.Time) error
	DeleteUnconfirmedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteUnconfirmedForAccount(ctx context.Context, accountID string, createdBefore time.Time) (int64, error)
}

// MFACleanupRepository queues the deferred cleanup that follows a disable
type MFACleanupRepository interface {
	ScheduleCleanup(ctx context.Context, job models.MFACleanupJob) error
	ClaimDueCleanups(ctx context.Context, now time.Time, limit int) ([]models.MFACleanupJob, error)
}

// MFAVerification is the outcome of a successful second-factor check
type MFAVerification struct {
	Account    *models.Account
	Method     string
	RememberMe bool
}

const cleanupBatchSize = 100

// MFAService handles MFA challenge, verification, enrollment and disable
type MFAService struct {
	accounts AccountReader
	factors  FactorRepository
	cleanups MFACleanupRepository
	codes    *BackupCodeService
	totp     *auth.TOTPManager
	tokens   *auth.TokenManager
	audit    *AuditService
	guard    LockoutGuard
	notifier SecurityNotifier
	cfg      models.AuthConfig
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewMFAService creates a new MFA service
func NewMFAService(
	accounts AccountReader,
	factors FactorRepository,
	cleanups MFACleanupRepository,
	codes *BackupCodeService,
	totpMgr *auth.TOTPManager,
	tokens *auth.TokenManager,
	audit *AuditService,
	cfg models.AuthConfig,
	m *metrics.Metrics,
	logger *slog.Logger,
) *MFAService {
	return &MFAService{
		accounts: accounts,
		factors:  factors,
		cleanups: cleanups,
		codes:    codes,
		totp:     totpMgr,
		tokens:   tokens,
		audit:    audit,
		cfg:      cfg,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// WithLockoutGuard makes failed MFA codes count toward the account lockout
// when MFAFailuresCountLockout is enabled.
func (s *MFAService) WithLockoutGuard(guard LockoutGuard) *MFAService {
	s.guard = guard
	return s
}

// WithNotifier enables security notifications on disable
func (s *MFAService) WithNotifier(n SecurityNotifier) *MFAService {
	s.notifier = n
	return s
}

// loadAccount maps missing and malformed ids to models.ErrNotFound
func (s *MFAService) loadAccount(ctx context.Context, accountID string) (*models.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrBadRequest) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return account, nil
}

// IssueChallenge returns a pending token for an account that passed the
// password stage and has MFA enrolled.
func (s *MFAService) IssueChallenge(account *models.Account, rememberMe bool) (string, error) {
	if !account.MFAEnrolled {
		return "", models.ErrNoEnrolledFactor
	}
	return s.tokens.GeneratePendingToken(account.ID, rememberMe, s.cfg.MFAPendingTTL)
}

// VerifyChallenge checks code against the account named by pendingToken.
// Every confirmed TOTP factor is tried before falling back to backup codes.
func (s *MFAService) VerifyChallenge(ctx context.Context, pendingToken, code string, meta models.RequestMeta) (*MFAVerification, error) {
	claims, err := s.tokens.ValidatePendingToken(pendingToken)
	if err != nil {
		return nil, err
	}

	account, err := s.loadAccount(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrMFAInvalidToken
		}
		return nil, err
	}
	if !account.IsActive {
		return nil, models.ErrMFAInvalidToken
	}

	factors, err := s.factors.ListConfirmed(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load mfa factors: %w", err)
	}
	if len(factors) == 0 {
		return nil, models.ErrNoEnrolledFactor
	}

	if s.cfg.MFAMaxAttempts > 0 {
		failures, err := s.audit.RecentFailures(ctx, account.ID, models.EventMFAVerify, s.cfg.MFAAttemptWindow)
		if err != nil {
			return nil, fmt.Errorf("failed to count mfa failures: %w", err)
		}
		if failures >= s.cfg.MFAMaxAttempts {
			s.logger.WarnContext(ctx, "mfa attempt limit reached",
				slog.String("account_id", account.ID),
				slog.Int("failures", failures))
			s.metrics.MFAVerification("none", "rate_limited")
			s.recordVerify(ctx, account.ID, false, meta, models.EventDetails{"reason": "too_many_attempts"})
			return nil, models.ErrMFATooManyAttempts
		}
	}

	for _, factor := range factors {
		secret, err := s.totp.DecryptSecret(factor.SecretEncrypted, factor.SecretNonce)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to decrypt TOTP secret",
				slog.String("factor_id", factor.ID),
				slog.Any("error", err))
			continue
		}
		if !s.totp.ValidateCode(string(secret), code) {
			continue
		}

		if err := s.factors.TouchLastUsed(ctx, factor.ID, s.now()); err != nil {
			s.logger.WarnContext(ctx, "failed to update factor last_used_at", slog.Any("error", err))
		}
		s.metrics.MFAVerification(models.MFAMethodTOTP, "success")
		s.recordVerify(ctx, account.ID, true, meta, models.EventDetails{
			"method":    models.MFAMethodTOTP,
			"factor_id": factor.ID,
		})
		return &MFAVerification{Account: account, Method: models.MFAMethodTOTP, RememberMe: claims.RememberMe}, nil
	}

	ok, err := s.codes.Consume(ctx, account.ID, code)
	if err != nil {
		return nil, err
	}
	if ok {
		s.metrics.MFAVerification(models.MFAMethodBackupCode, "success")
		s.recordVerify(ctx, account.ID, true, meta, models.EventDetails{"method": models.MFAMethodBackupCode})
		return &MFAVerification{Account: account, Method: models.MFAMethodBackupCode, RememberMe: claims.RememberMe}, nil
	}

	s.metrics.MFAVerification("none", "invalid_code")
	s.recordVerify(ctx, account.ID, false, meta, models.EventDetails{"reason": "invalid_code"})
	if s.cfg.MFAFailuresCountLockout && s.guard != nil {
		if err := s.guard.RecordFailure(ctx, account.Email); err != nil {
			s.logger.ErrorContext(ctx, "failed to record mfa failure toward lockout", slog.Any("error", err))
		}
	}
	return nil, models.ErrMFAInvalidCode
}

func (s *MFAService) recordVerify(ctx context.Context, accountID string, success bool, meta models.RequestMeta, details models.EventDetails) {
	s.audit.Record(ctx, AuditEvent{
		Type:      models.EventMFAVerify,
		AccountID: accountID,
		Success:   success,
		Meta:      meta,
		Details:   details,
	})
}

// Enroll starts enrollment: it creates an unconfirmed factor and a fresh
// backup-code batch. The secret and codes are only ever returned here.
func (s *MFAService) Enroll(ctx context.Context, accountID, name string, meta models.RequestMeta) (*models.MFAEnrollment, error) {
	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.MFAEnrolled {
		return nil, models.ErrMFAAlreadyEnrolled
	}

	generated, err := s.totp.GenerateSecret(account.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP secret: %w", err)
	}

	factor, err := s.factors.Create(ctx, &models.MFAFactor{
		AccountID:       account.ID,
		Name:            name,
		SecretEncrypted: generated.Encrypted,
		SecretNonce:     generated.Nonce,
	})
	if err != nil {
		return nil, err
	}

	codes, err := s.codes.Regenerate(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEvent{
		Type:      models.EventMFAEnroll,
		AccountID: account.ID,
		Success:   true,
		Meta:      meta,
		Details:   models.EventDetails{"factor_id": factor.ID, "stage": "started"},
	})
	s.logger.InfoContext(ctx, "MFA enrollment started",
		slog.String("account_id", account.ID),
		slog.String("factor_id", factor.ID))

	return &models.MFAEnrollment{
		FactorID:        factor.ID,
		Secret:          generated.Secret,
		ProvisioningURI: generated.ProvisioningURI,
		QRCode:          generated.QRCode,
		BackupCodes:     codes,
	}, nil
}

// ConfirmEnroll validates the first code against the pending factor and
// marks it confirmed. A wrong code leaves the factor pending.
func (s *MFAService) ConfirmEnroll(ctx context.Context, accountID, factorID, code string, meta models.RequestMeta) error {
	factor, err := s.factors.GetByID(ctx, factorID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrBadRequest) {
			return models.ErrMFAFactorNotFound
		}
		return fmt.Errorf("failed to load mfa factor: %w", err)
	}
	if factor.AccountID != accountID || factor.Confirmed {
		return models.ErrMFAFactorNotFound
	}

	secret, err := s.totp.DecryptSecret(factor.SecretEncrypted, factor.SecretNonce)
	if err != nil {
		return fmt.Errorf("failed to decrypt TOTP secret: %w", err)
	}

	if !s.totp.ValidateCode(string(secret), code) {
		s.audit.Record(ctx, AuditEvent{
			Type:      models.EventMFAEnroll,
			AccountID: accountID,
			Success:   false,
			Meta:      meta,
			Details:   models.EventDetails{"factor_id": factorID, "reason": "invalid_code"},
		})
		return models.ErrMFAInvalidCode
	}

	if err := s.factors.Confirm(ctx, factorID, accountID, s.now()); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrMFAFactorNotFound
		}
		return fmt.Errorf("failed to confirm mfa factor: %w", err)
	}

	s.audit.Record(ctx, AuditEvent{
		Type:      models.EventMFAEnroll,
		AccountID: accountID,
		Success:   true,
		Meta:      meta,
		Details:   models.EventDetails{"factor_id": factorID, "stage": "confirmed"},
	})
	return nil
}

// Disable removes every confirmed factor. Backup codes and abandoned
// factors are cleaned up now or, with a cleanup delay, by the sweep.
func (s *MFAService) Disable(ctx context.Context, accountID string, meta models.RequestMeta) error {
	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if !account.MFAEnrolled {
		return models.ErrMFANotEnrolled
	}

	now := s.now()
	removed, err := s.factors.DisableAll(ctx, accountID, now)
	if err != nil {
		return fmt.Errorf("failed to disable mfa: %w", err)
	}

	if s.cfg.MFACleanupDelay > 0 {
		err = s.cleanups.ScheduleCleanup(ctx, models.MFACleanupJob{
			AccountID:  accountID,
			DisabledAt: now,
			RunAfter:   now.Add(s.cfg.MFACleanupDelay),
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to schedule mfa cleanup", slog.Any("error", err))
		}
	} else if err := s.cleanup(ctx, accountID, now); err != nil {
		s.logger.ErrorContext(ctx, "mfa cleanup failed, deferring to sweep", slog.Any("error", err))
		if err := s.cleanups.ScheduleCleanup(ctx, models.MFACleanupJob{AccountID: accountID, DisabledAt: now, RunAfter: now}); err != nil {
			s.logger.ErrorContext(ctx, "failed to requeue mfa cleanup, backup codes remain",
				slog.String("account_id", accountID),
				slog.Any("error", err))
		}
	}

	s.audit.Record(ctx, AuditEvent{
		Type:      models.EventMFADisable,
		AccountID: accountID,
		Success:   true,
		Meta:      meta,
		Details:   models.EventDetails{"factors_removed": removed},
	})

	if s.notifier != nil {
		if err := s.notifier.NotifyMFADisabled(ctx, account.Email); err != nil {
			s.logger.WarnContext(ctx, "failed to send mfa disabled notification", slog.Any("error", err))
		}
	}
	return nil
}

// cleanup removes backup codes and unconfirmed factors created at or before disabledAt
func (s *MFAService) cleanup(ctx context.Context, accountID string, disabledAt time.Time) error {
	if _, err := s.codes.PurgeAccount(ctx, accountID, disabledAt); err != nil {
		return fmt.Errorf("failed to purge backup codes: %w", err)
	}
	if _, err := s.factors.DeleteUnconfirmedForAccount(ctx, accountID, disabledAt); err != nil {
		return fmt.Errorf("failed to purge unconfirmed factors: %w", err)
	}
	return nil
}

// RegenerateBackupCodes replaces the unused codes of an enrolled account
func (s *MFAService) RegenerateBackupCodes(ctx context.Context, accountID string, meta models.RequestMeta) ([]string, error) {
	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !account.MFAEnrolled {
		return nil, models.ErrMFANotEnrolled
	}

	codes, err := s.codes.Regenerate(ctx, accountID)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEvent{
		Type:      models.EventBackupCodesRegenerated,
		AccountID: accountID,
		Success:   true,
		Meta:      meta,
		Details:   models.EventDetails{"count": len(codes)},
	})
	return codes, nil
}

func (s *MFAService) Status(ctx context.Context, accountID string) (*models.MFAStatus, error) {
	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	factors, err := s.factors.ListConfirmed(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load mfa factors: %w", err)
	}
	remaining, err := s.codes.RemainingCount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to count backup codes: %w", err)
	}

	return &models.MFAStatus{
		Enrolled:             account.MFAEnrolled,
		ConfirmedFactors:     len(factors),
		RemainingBackupCodes: remaining,
	}, nil
}

// SweepUnconfirmedFactors deletes enrollments abandoned for longer than the retention window
func (s *MFAService) SweepUnconfirmedFactors(ctx context.Context) (int64, error) {
	if s.cfg.UnconfirmedFactorRetention <= 0 {
		return 0, nil
	}
	return s.factors.DeleteUnconfirmedBefore(ctx, s.now().Add(-s.cfg.UnconfirmedFactorRetention))
}

// RunDueCleanups executes deferred disable cleanups whose delay has passed.
// A job that fails is requeued.
func (s *MFAService) RunDueCleanups(ctx context.Context) (int64, error) {
	now := s.now()
	jobs, err := s.cleanups.ClaimDueCleanups(ctx, now, cleanupBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to claim mfa cleanups: %w", err)
	}

	var done int64
	for _, job := range jobs {
		if err := s.cleanup(ctx, job.AccountID, job.DisabledAt); err != nil {
			s.logger.ErrorContext(ctx, "mfa cleanup failed",
				slog.String("account_id", job.AccountID),
				slog.Any("error", err))
			job.RunAfter = now.Add(time.Minute)
			if err := s.cleanups.ScheduleCleanup(ctx, job); err != nil {
				s.logger.ErrorContext(ctx, "failed to requeue mfa cleanup", slog.Any("error", err))
			}
			continue
		}
		done++
	}
	return done, nil
}
