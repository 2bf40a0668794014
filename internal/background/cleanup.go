package background

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/authgate/internal/services"
)

// Sweeper runs one pass of every retention and expiry sweep
type Sweeper interface {
	RunAll(ctx context.Context) (*services.SweepReport, error)
}

// CleanupManager periodically runs the maintenance sweeps: expired sessions,
// blacklist rows, abandoned MFA enrollments, used backup codes, deferred
// MFA cleanups and old login attempts.
type CleanupManager struct {
	sweeper  Sweeper
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(sweeper Sweeper, logger *slog.Logger, interval time.Duration) *CleanupManager {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &CleanupManager{
		sweeper:  sweeper,
		logger:   logger,
		interval: interval,
		timeout:  30 * time.Second,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic cleanup task. It blocks until Stop is called or
// ctx is cancelled.
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			cm.RunOnce(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// RunOnce executes a single sweep pass with a bounded timeout
func (cm *CleanupManager) RunOnce(ctx context.Context) *services.SweepReport {
	cleanupCtx, cancel := context.WithTimeout(ctx, cm.timeout)
	defer cancel()

	report, err := cm.sweeper.RunAll(cleanupCtx)
	if err != nil {
		cm.logger.Error("maintenance sweep finished with errors", slog.Any("error", err))
	}
	if report == nil {
		return nil
	}

	cm.logger.Info("maintenance sweep completed",
		slog.Int64("expired_sessions", report.ExpiredSessions),
		slog.Int64("blacklist_purged", report.BlacklistPurged),
		slog.Int64("unconfirmed_factors", report.UnconfirmedFactors),
		slog.Int64("used_backup_codes", report.UsedBackupCodes),
		slog.Int64("mfa_cleanups", report.MFACleanups),
		slog.Int64("login_attempts_removed", report.LoginAttemptsRemoved),
	)
	return report
}

// Stop signals the cleanup manager to stop. Safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
