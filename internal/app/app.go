// Package app wires repositories, caches and services into a running auth
// core. It is shared by cmd/api and cmd/authctl.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/authgate/internal/auth"
	"github.com/BradenHooton/authgate/internal/cache"
	"github.com/BradenHooton/authgate/internal/config"
	"github.com/BradenHooton/authgate/internal/database"
	"github.com/BradenHooton/authgate/internal/metrics"
	"github.com/BradenHooton/authgate/internal/repositories"
	"github.com/BradenHooton/authgate/internal/services"
	pkgauth "github.com/BradenHooton/authgate/pkg/auth"
)

// App holds the wired services
type App struct {
	Auth        *services.AuthService
	MFA         *services.MFAService
	Sessions    *services.SessionService
	Tokens      *services.TokenService
	Audit       *services.AuditService
	Maintenance *services.MaintenanceService

	closers []func() error
}

// New builds the auth core on top of db. m may be nil.
func New(ctx context.Context, cfg *config.Config, db *database.DB, m *metrics.Metrics, logger *slog.Logger) (*App, error) {
	a := &App{}
	authCfg := cfg.ToModel()

	// Repositories
	accountRepo := repositories.NewAccountRepository(db)
	factorRepo := repositories.NewFactorRepository(db)
	backupRepo := repositories.NewBackupCodeRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	eventRepo := repositories.NewAuthEventRepository(db)
	blacklistRepo := repositories.NewTokenBlacklistRepository(db)
	attemptRepo := repositories.NewLoginAttemptRepository(db)

	// Blacklist cache: go-cache in process, Redis shared when configured
	var l2 cache.Cache
	if cfg.Cache.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cfg.Cache.RedisURL, "authgate:")
		if err != nil {
			logger.Warn("redis unavailable, using in-process blacklist cache only", slog.Any("error", err))
		} else {
			l2 = rc
			a.closers = append(a.closers, rc.Close)
		}
	}
	l1 := cache.NewMemory(cfg.Cache.BlacklistTTL, cfg.Cache.LocalSweepTime)
	blacklist := cache.NewBlacklist(blacklistRepo, cache.NewTiered(l1, l2, logger), cfg.Cache.BlacklistTTL)

	// Crypto
	tm, err := auth.NewTokenManager(authCfg.SigningSecret, authCfg.Algorithm)
	if err != nil {
		return nil, fmt.Errorf("token manager: %w", err)
	}
	totpMgr, err := auth.NewTOTPManager(cfg.MFA.EncryptionKey, authCfg.MFAIssuer)
	if err != nil {
		return nil, fmt.Errorf("totp manager: %w", err)
	}
	hasher := pkgauth.NewHasher(cfg.Auth.PasswordHashCost)
	timing := auth.NewTimingDelay(auth.TimingConfig{
		Floor:  cfg.Timing.FailureFloor,
		Jitter: cfg.Timing.FailureJitter,
	})

	// Collaborators
	var geo services.GeoLocator
	if cfg.Server.GeoIPDBPath != "" {
		locator, err := services.NewMaxMindLocator(cfg.Server.GeoIPDBPath)
		if err != nil {
			logger.Warn("geoip database not loaded", slog.Any("error", err))
		} else {
			geo = locator
			a.closers = append(a.closers, locator.Close)
		}
	}
	resolver := services.NewHeuristicDeviceResolver(geo, logger)

	var notifier services.SecurityNotifier = services.NewLogNotifier(logger)
	if cfg.Email.Enabled {
		ses, err := services.NewSESNotifier(ctx, cfg.Email.AWSRegion, cfg.Email.From, logger)
		if err != nil {
			return nil, fmt.Errorf("ses notifier: %w", err)
		}
		notifier = ses
	}

	// Services
	audit := services.NewAuditService(eventRepo, logger, m)
	codes := services.NewBackupCodeService(backupRepo, authCfg, logger)
	tokens := services.NewTokenService(tm, blacklistRepo, blacklist, accountRepo, sessionRepo, authCfg, m, logger)
	lockout := services.NewLockoutService(accountRepo, services.LockoutConfig{
		FailureLimit: cfg.Lockout.FailureLimit,
		Cooloff:      cfg.Lockout.Cooloff,
	}, logger)
	verifier := services.NewCredentialVerifier(accountRepo, lockout, hasher)
	sessions := services.NewSessionService(sessionRepo, tokens, resolver, audit, m, logger)
	mfa := services.NewMFAService(accountRepo, factorRepo, factorRepo, codes, totpMgr, tm, audit, authCfg, m, logger).
		WithLockoutGuard(lockout).
		WithNotifier(notifier)

	a.Auth = services.NewAuthService(services.AuthDeps{
		Accounts: accountRepo,
		Verifier: verifier,
		Guard:    lockout,
		Attempts: attemptRepo,
		MFA:      mfa,
		Tokens:   tokens,
		Sessions: sessions,
		Audit:    audit,
		Hasher:   hasher,
		Timing:   timing,
		Notifier: notifier,
		Metrics:  m,
	}, logger)
	a.MFA = mfa
	a.Sessions = sessions
	a.Tokens = tokens
	a.Audit = audit
	a.Maintenance = services.NewMaintenanceService(sessions, tokens, mfa, codes, attemptRepo,
		cfg.Cleanup.LoginAttemptRetention, m, logger)

	return a, nil
}

// Close releases the Redis client and the GeoIP reader, if any
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
