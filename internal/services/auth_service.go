package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/authgate/internal/auth"
	"github.com/BradenHooton/authgate/internal/metrics"
	"github.com/BradenHooton/authgate/internal/models"
	pkgauth "github.com/BradenHooton/authgate/pkg/auth"
	pkglogger "github.com/BradenHooton/authgate/pkg/logger"
)

// AccountRepository is the full account store used by the orchestrator
type AccountRepository interface {
	AccountReader
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	Deactivate(ctx context.Context, id string, revokedBy string) ([]*models.Session, error)
}

// LoginAttemptRepository keeps the password-stage history
type LoginAttemptRepository interface {
	RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type LoginRequest struct {
	Email      string
	Password   string
	RememberMe bool
	IP         string
	UserAgent  string
}

type MFALoginRequest struct {
	MFAToken  string
	Code      string
	IP        string
	UserAgent string
}

// LoginResult is either a completed login (Tokens and Session set) or an
// MFA challenge (MFARequired and MFAToken set).
type LoginResult struct {
	MFARequired bool
	MFAToken    string
	Tokens      *models.TokenPair
	Session     *models.Session
	Account     *models.Account
}

// AuthDeps are the collaborators of AuthService
type AuthDeps struct {
	Accounts AccountRepository
	Verifier *CredentialVerifier
	Guard    LockoutGuard
	Attempts LoginAttemptRepository
	MFA      *MFAService
	Tokens   *TokenService
	Sessions *SessionService
	Audit    *AuditService
	Hasher   *pkgauth.Hasher
	Timing   *auth.TimingDelay
	Notifier SecurityNotifier
	Metrics  *metrics.Metrics
}

// AuthService orchestrates the login state machine:
// password -> (MFA challenge ->) session, plus refresh, logout and
// account lifecycle.
type AuthService struct {
	accounts AccountRepository
	verifier *CredentialVerifier
	guard    LockoutGuard
	attempts LoginAttemptRepository
	mfa      *MFAService
	tokens   *TokenService
	sessions *SessionService
	audit    *AuditService
	hasher   *pkgauth.Hasher
	timing   *auth.TimingDelay
	notifier SecurityNotifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(deps AuthDeps, logger *slog.Logger) *AuthService {
	return &AuthService{
		accounts: deps.Accounts,
		verifier: deps.Verifier,
		guard:    deps.Guard,
		attempts: deps.Attempts,
		mfa:      deps.MFA,
		tokens:   deps.Tokens,
		sessions: deps.Sessions,
		audit:    deps.Audit,
		hasher:   deps.Hasher,
		timing:   deps.Timing,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		logger:   logger,
	}
}

// Login runs the password stage. Accounts with MFA get a challenge token
// instead of a session.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	start := time.Now()
	meta := models.RequestMeta{IPAddress: req.IP, UserAgent: req.UserAgent}
	email := models.NormalizeEmail(req.Email)

	if email == "" {
		return nil, models.NewValidationError("email", "is required")
	}
	if req.Password == "" {
		return nil, models.NewValidationError("password", "is required")
	}

	account, err := s.verifier.Verify(ctx, email, req.Password)
	if err != nil {
		reason := failureReason(err)
		if errors.Is(err, models.ErrInvalidCredentials) {
			if gerr := s.guard.RecordFailure(ctx, email); gerr != nil {
				s.logger.ErrorContext(ctx, "failed to record login failure", slog.Any("error", gerr))
			}
		}
		s.recordAttempt(ctx, email, meta, false, reason)
		if models.KindOf(err) == models.KindCredential {
			s.audit.Record(ctx, AuditEvent{
				Type:    models.EventLoginFailed,
				Success: false,
				Meta:    meta,
				Details: models.EventDetails{
					"reason": reason,
					"email":  pkglogger.SanitizedEmail(email),
				},
			})
		}
		s.metrics.LoginAttempt(reason)
		s.timing.WaitFrom(ctx, start, false)
		return nil, err
	}

	if err := s.guard.RecordSuccess(ctx, email); err != nil {
		s.logger.WarnContext(ctx, "failed to reset login failures", slog.Any("error", err))
	}
	s.recordAttempt(ctx, email, meta, true, "")

	if account.MFAEnrolled {
		token, err := s.mfa.IssueChallenge(account, req.RememberMe)
		if err != nil {
			return nil, err
		}
		s.audit.Record(ctx, AuditEvent{
			Type:      models.EventLoginMFARequired,
			AccountID: account.ID,
			Success:   true,
			Meta:      meta,
		})
		s.metrics.LoginAttempt("mfa_required")
		return &LoginResult{MFARequired: true, MFAToken: token, Account: account}, nil
	}

	return s.completeLogin(ctx, account, req.RememberMe, meta, "password")
}

// VerifyMFA completes a login that was paused at the MFA challenge
func (s *AuthService) VerifyMFA(ctx context.Context, req MFALoginRequest) (*LoginResult, error) {
	start := time.Now()
	meta := models.RequestMeta{IPAddress: req.IP, UserAgent: req.UserAgent}

	if strings.TrimSpace(req.Code) == "" {
		return nil, models.NewValidationError("code", "is required")
	}

	verified, err := s.mfa.VerifyChallenge(ctx, req.MFAToken, req.Code, meta)
	if err != nil {
		s.timing.WaitFrom(ctx, start, false)
		return nil, err
	}

	return s.completeLogin(ctx, verified.Account, verified.RememberMe, meta, verified.Method)
}

func (s *AuthService) completeLogin(ctx context.Context, account *models.Account, rememberMe bool, meta models.RequestMeta, method string) (*LoginResult, error) {
	pair, err := s.tokens.Issue(ctx, account, rememberMe)
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}

	session, err := s.sessions.Create(ctx, account.ID, pair.RefreshJTI, meta, pair.RefreshExpiresAt)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEvent{
		Type:      models.EventLoginSuccess,
		AccountID: account.ID,
		Success:   true,
		Meta:      meta,
		Details: models.EventDetails{
			"method":      method,
			"remember_me": rememberMe,
		},
	})
	s.audit.Record(ctx, AuditEvent{
		Type:      models.EventSessionCreated,
		AccountID: account.ID,
		Success:   true,
		Meta:      meta,
		Details: models.EventDetails{
			"session_id": session.ID,
			"device":     session.DeviceName(),
			"location":   session.LocationName(),
		},
	})
	s.metrics.LoginAttempt("success")

	if s.notifier != nil {
		if err := s.notifier.NotifyNewSession(ctx, account.Email, session.DeviceName()); err != nil {
			s.logger.WarnContext(ctx, "failed to send new session notification", slog.Any("error", err))
		}
	}

	return &LoginResult{Tokens: pair, Session: session, Account: account}, nil
}

// Refresh exchanges a refresh token for a new pair
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta models.RequestMeta) (*models.TokenPair, error) {
	if refreshToken == "" {
		return nil, models.NewValidationError("refresh_token", "is required")
	}

	pair, account, err := s.tokens.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEvent{
		Type:      models.EventTokenRefreshed,
		AccountID: account.ID,
		Success:   true,
		Meta:      meta,
	})
	return pair, nil
}

// Logout blacklists the access token and ends the session bound to the
// refresh token, when one is supplied and belongs to the same account.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string, meta models.RequestMeta) error {
	claims, err := s.tokens.Parse(accessToken)
	if err != nil {
		return err
	}

	if err := s.tokens.Blacklist(ctx, accessToken, "logout"); err != nil {
		return err
	}

	if refreshToken != "" {
		rc, err := s.tokens.Parse(refreshToken)
		switch {
		case err != nil:
			s.logger.DebugContext(ctx, "logout with unusable refresh token", slog.Any("error", err))
		case rc.Type != models.TokenTypeRefresh || rc.UserID != claims.UserID:
			s.logger.WarnContext(ctx, "logout refresh token does not match access token",
				slog.String("account_id", claims.UserID))
		default:
			if err := s.tokens.Blacklist(ctx, refreshToken, "logout"); err != nil {
				return err
			}
			if err := s.sessions.RevokeByRefreshJTI(ctx, claims.UserID, rc.ID, models.RevokedByUser, meta); err != nil {
				return err
			}
		}
	}

	s.audit.Record(ctx, AuditEvent{
		Type:      models.EventLogout,
		AccountID: claims.UserID,
		Success:   true,
		Meta:      meta,
	})
	return nil
}

// Register creates an active account without MFA
func (s *AuthService) Register(ctx context.Context, email, password string, meta models.RequestMeta) (*models.Account, error) {
	email = models.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, models.NewValidationError("email", "must be a valid email address")
	}
	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, models.NewValidationError("password", err.Error())
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.Create(ctx, &models.Account{
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.audit.Record(ctx, AuditEvent{
		Type:      models.EventRegister,
		AccountID: account.ID,
		Success:   true,
		Meta:      meta,
	})
	s.logger.InfoContext(ctx, "account registered", slog.String("account_id", account.ID))
	return account, nil
}

// DeactivateAccount disables the account and revokes every session in the
// same transaction, then blacklists the revoked refresh tokens.
func (s *AuthService) DeactivateAccount(ctx context.Context, accountID, actorID string, meta models.RequestMeta) error {
	revoked, err := s.accounts.Deactivate(ctx, accountID, models.RevokedByAdmin)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrBadRequest) {
			return models.ErrNotFound
		}
		return fmt.Errorf("failed to deactivate account: %w", err)
	}

	if err := s.sessions.RecordRevoked(ctx, accountID, revoked, models.RevokedByAdmin); err != nil {
		return err
	}

	s.audit.Record(ctx, AuditEvent{
		Type:      models.EventAccountDeactivated,
		AccountID: accountID,
		Success:   true,
		Meta:      meta,
		Details: models.EventDetails{
			"actor_id":         actorID,
			"sessions_revoked": len(revoked),
		},
	})
	return nil
}

func (s *AuthService) recordAttempt(ctx context.Context, email string, meta models.RequestMeta, success bool, reason string) {
	if s.attempts == nil {
		return
	}
	err := s.attempts.RecordAttempt(ctx, &models.LoginAttempt{
		Email:     email,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   success,
		Reason:    reason,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to record login attempt", slog.Any("error", err))
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, models.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, models.ErrAccountLocked):
		return "account_locked"
	case errors.Is(err, models.ErrAccountDisabled):
		return "account_disabled"
	default:
		return "error"
	}
}
