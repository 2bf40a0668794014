package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/authgate/internal/metrics"
)

// SweepReport counts the rows each maintenance sweep touched
type SweepReport struct {
	ExpiredSessions      int64 `json:"expired_sessions"`
	BlacklistPurged      int64 `json:"blacklist_purged"`
	UnconfirmedFactors   int64 `json:"unconfirmed_factors"`
	UsedBackupCodes      int64 `json:"used_backup_codes"`
	MFACleanups          int64 `json:"mfa_cleanups"`
	LoginAttemptsRemoved int64 `json:"login_attempts_removed"`
}

// MaintenanceService runs the periodic retention and expiry sweeps
type MaintenanceService struct {
	sessions         *SessionService
	tokens           *TokenService
	mfa              *MFAService
	codes            *BackupCodeService
	attempts         LoginAttemptRepository
	attemptRetention time.Duration
	metrics          *metrics.Metrics
	logger           *slog.Logger
	now              func() time.Time
}

func NewMaintenanceService(
	sessions *SessionService,
	tokens *TokenService,
	mfa *MFAService,
	codes *BackupCodeService,
	attempts LoginAttemptRepository,
	attemptRetention time.Duration,
	m *metrics.Metrics,
	logger *slog.Logger,
) *MaintenanceService {
	return &MaintenanceService{
		sessions:         sessions,
		tokens:           tokens,
		mfa:              mfa,
		codes:            codes,
		attempts:         attempts,
		attemptRetention: attemptRetention,
		metrics:          m,
		logger:           logger,
		now:              time.Now,
	}
}

// RunAll executes every sweep. A failing sweep does not stop the others;
// their errors are joined.
func (s *MaintenanceService) RunAll(ctx context.Context) (*SweepReport, error) {
	report := &SweepReport{}
	var errs []error

	run := func(name string, dst *int64, sweep func(context.Context) (int64, error)) {
		n, err := sweep(ctx)
		if err != nil {
			s.logger.ErrorContext(ctx, "maintenance sweep failed",
				slog.String("sweep", name),
				slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = n
		s.metrics.SweepRemoved(name, n)
	}

	run("sessions", &report.ExpiredSessions, s.sessions.SweepExpired)
	run("blacklist", &report.BlacklistPurged, s.tokens.PurgeExpiredBlacklist)
	run("unconfirmed_factors", &report.UnconfirmedFactors, s.mfa.SweepUnconfirmedFactors)
	run("backup_codes", &report.UsedBackupCodes, s.codes.RetentionSweep)
	run("mfa_cleanups", &report.MFACleanups, s.mfa.RunDueCleanups)
	run("login_attempts", &report.LoginAttemptsRemoved, s.purgeLoginAttempts)

	return report, errors.Join(errs...)
}

func (s *MaintenanceService) purgeLoginAttempts(ctx context.Context) (int64, error) {
	if s.attempts == nil || s.attemptRetention <= 0 {
		return 0, nil
	}
	return s.attempts.DeleteOlderThan(ctx, s.now().Add(-s.attemptRetention))
}
