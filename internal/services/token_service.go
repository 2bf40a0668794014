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

// TokenBlacklistRepository is the durable revocation store
type TokenBlacklistRepository interface {
	Revoke(ctx context.Context, jti, accountID, tokenType string, expiresAt time.Time, reason string) error
	RevokeMany(ctx context.Context, jtis []string, expiries []time.Time, accountID, reason string) error
	RotateRefresh(ctx context.Context, rot models.RefreshRotation, now time.Time) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// RevocationChecker answers blacklist lookups, normally through a cache
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string, expiresAt time.Time) (bool, error)
	Remember(ctx context.Context, jti string, expiresAt time.Time)
}

// TokenService issues, validates, rotates and revokes access/refresh tokens
type TokenService struct {
	tm          *auth.TokenManager
	blacklist   TokenBlacklistRepository
	revocations RevocationChecker
	accounts    AccountReader
	sessions    SessionRepository
	cfg         models.AuthConfig
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func NewTokenService(
	tm *auth.TokenManager,
	blacklist TokenBlacklistRepository,
	revocations RevocationChecker,
	accounts AccountReader,
	sessions SessionRepository,
	cfg models.AuthConfig,
	m *metrics.Metrics,
	logger *slog.Logger,
) *TokenService {
	return &TokenService{
		tm:          tm,
		blacklist:   blacklist,
		revocations: revocations,
		accounts:    accounts,
		sessions:    sessions,
		cfg:         cfg,
		metrics:     m,
		logger:      logger,
	}
}

// Issue creates a fresh access/refresh pair for account
func (s *TokenService) Issue(_ context.Context, account *models.Account, rememberMe bool) (*models.TokenPair, error) {
	access, err := s.tm.GenerateToken(models.TokenTypeAccess, account.ID, account.Email, rememberMe, s.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tm.GenerateToken(models.TokenTypeRefresh, account.ID, account.Email, rememberMe, s.cfg.RefreshTTLFor(rememberMe))
	if err != nil {
		return nil, err
	}

	return &models.TokenPair{
		AccessToken:      access.Token,
		RefreshToken:     refresh.Token,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
		AccessJTI:        access.JTI,
		RefreshJTI:       refresh.JTI,
	}, nil
}

// Parse verifies signature and expiry without consulting the blacklist
func (s *TokenService) Parse(token string) (*models.TokenClaims, error) {
	return s.tm.ValidateToken(token)
}

// Validate verifies signature and expiry, then consults the blacklist.
func (s *TokenService) Validate(ctx context.Context, token string) (*models.TokenClaims, error) {
	claims, err := s.tm.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID, claims.ExpiresAt.Time)
	if err != nil {
		return nil, fmt.Errorf("failed to check token revocation: %w", err)
	}
	if revoked {
		s.metrics.BlacklistLookup("revoked")
		return nil, models.ErrTokenRevoked
	}
	s.metrics.BlacklistLookup("valid")
	return claims, nil
}

// Refresh exchanges a refresh token. With rotation enabled the old token is
// blacklisted and its session moved to the new jti atomically, so of two
// concurrent refreshes with the same token only one succeeds.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, *models.Account, error) {
	claims, err := s.Validate(ctx, refreshToken)
	if err != nil {
		return nil, nil, err
	}
	if claims.Type != models.TokenTypeRefresh {
		return nil, nil, fmt.Errorf("%w: not a refresh token", models.ErrTokenMalformed)
	}

	account, err := s.accounts.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil, models.ErrTokenRevoked
		}
		return nil, nil, fmt.Errorf("failed to load account: %w", err)
	}
	if !account.IsActive {
		return nil, nil, models.ErrAccountDisabled
	}
	if account.LastPasswordChange != nil && claims.IssuedAt != nil &&
		claims.IssuedAt.Time.Before(account.LastPasswordChange.Truncate(time.Second)) {
		s.logger.InfoContext(ctx, "refresh blocked: token issued before password change",
			slog.String("account_id", account.ID))
		return nil, nil, models.ErrTokenRevoked
	}

	if !s.cfg.RotateRefreshTokens {
		session, err := s.sessions.GetByRefreshJTI(ctx, claims.ID)
		switch {
		case err == nil:
			if !session.IsActive {
				s.metrics.TokenRefresh("session_revoked")
				return nil, nil, models.ErrTokenRevoked
			}
		case errors.Is(err, models.ErrNotFound):
			session = nil
		default:
			return nil, nil, fmt.Errorf("failed to load session: %w", err)
		}

		access, err := s.tm.GenerateToken(models.TokenTypeAccess, account.ID, account.Email, claims.RememberMe, s.cfg.AccessTTL)
		if err != nil {
			return nil, nil, err
		}
		if session != nil {
			if err := s.sessions.Touch(ctx, session.ID, s.tm.Now()); err != nil {
				s.logger.WarnContext(ctx, "failed to touch session", slog.Any("error", err))
			}
		}
		s.metrics.TokenRefresh("reused")
		return &models.TokenPair{
			AccessToken:      access.Token,
			RefreshToken:     refreshToken,
			AccessExpiresAt:  access.ExpiresAt,
			RefreshExpiresAt: claims.ExpiresAt.Time,
			AccessJTI:        access.JTI,
			RefreshJTI:       claims.ID,
		}, account, nil
	}

	pair, err := s.Issue(ctx, account, claims.RememberMe)
	if err != nil {
		return nil, nil, err
	}

	err = s.blacklist.RotateRefresh(ctx, models.RefreshRotation{
		AccountID:    account.ID,
		OldJTI:       claims.ID,
		OldExpiresAt: claims.ExpiresAt.Time,
		NewJTI:       pair.RefreshJTI,
		NewExpiresAt: pair.RefreshExpiresAt,
	}, s.tm.Now())
	if err != nil {
		if errors.Is(err, models.ErrTokenRevoked) {
			s.metrics.TokenRefresh("replayed")
			s.logger.WarnContext(ctx, "refresh token reuse rejected", slog.String("account_id", account.ID))
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	s.revocations.Remember(ctx, claims.ID, claims.ExpiresAt.Time)
	s.metrics.TokenRefresh("rotated")

	return pair, account, nil
}

// Blacklist revokes a token by its jti. Expired tokens are already unusable
// so blacklisting one is a successful no-op.
func (s *TokenService) Blacklist(ctx context.Context, token, reason string) error {
	claims, err := s.tm.ValidateToken(token)
	if err != nil {
		if errors.Is(err, models.ErrTokenExpired) {
			return nil
		}
		return err
	}

	if err := s.blacklist.Revoke(ctx, claims.ID, claims.UserID, claims.Type, claims.ExpiresAt.Time, reason); err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}
	s.revocations.Remember(ctx, claims.ID, claims.ExpiresAt.Time)
	return nil
}

// RevokeSessionTokens blacklists the refresh tokens bound to sessions
func (s *TokenService) RevokeSessionTokens(ctx context.Context, accountID string, sessions []*models.Session, reason string) error {
	if len(sessions) == 0 {
		return nil
	}
	jtis := make([]string, len(sessions))
	expiries := make([]time.Time, len(sessions))
	for i, session := range sessions {
		jtis[i] = session.RefreshJTI
		expiries[i] = session.ExpiresAt
	}

	if err := s.blacklist.RevokeMany(ctx, jtis, expiries, accountID, reason); err != nil {
		return fmt.Errorf("failed to blacklist session tokens: %w", err)
	}
	for i := range jtis {
		s.revocations.Remember(ctx, jtis[i], expiries[i])
	}
	return nil
}

// PurgeExpiredBlacklist drops blacklist rows for tokens past their exp
func (s *TokenService) PurgeExpiredBlacklist(ctx context.Context) (int64, error) {
	return s.blacklist.PurgeExpired(ctx, s.tm.Now())
}
