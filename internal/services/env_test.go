package services

import (
	"context"
	"crypto/rand"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/BradenHooton/authgate/internal/auth"
	"github.com/BradenHooton/authgate/internal/cache"
	"github.com/BradenHooton/authgate/internal/models"
	pkgauth "github.com/BradenHooton/authgate/pkg/auth"
)

const testPassword = "Correct-Horse-42!"

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	clock    *testClock
	store    *MemoryStore
	cfg      models.AuthConfig
	tm       *auth.TokenManager
	totp     *auth.TOTPManager
	hasher   *pkgauth.Hasher
	audit    *AuditService
	codes    *BackupCodeService
	tokens   *TokenService
	lockout  *LockoutService
	verifier *CredentialVerifier
	sessions *SessionService
	mfa      *MFAService
	auth     *AuthService
	maint    *MaintenanceService
	notifier *MockNotifier
}

func testAuthConfig() models.AuthConfig {
	return models.AuthConfig{
		AccessTTL:                  60 * time.Minute,
		RefreshTTL:                 7 * 24 * time.Hour,
		RememberMeRefreshTTL:       30 * 24 * time.Hour,
		RotateRefreshTokens:        true,
		SigningSecret:              "test-secret-32-characters-long!!",
		Algorithm:                  "HS256",
		MFAPendingTTL:              5 * time.Minute,
		UnconfirmedFactorRetention: 24 * time.Hour,
		UsedBackupCodeRetention:    90 * 24 * time.Hour,
		BackupCodeCount:            10,
		BackupCodeHashCost:         bcrypt.MinCost,
		MFAIssuer:                  "authgate-test",
		MFAMaxAttempts:             5,
		MFAAttemptWindow:           5 * time.Minute,
	}
}

func newTestEnv(t *testing.T, tweaks ...func(*models.AuthConfig)) *testEnv {
	t.Helper()

	cfg := testAuthConfig()
	for _, tweak := range tweaks {
		tweak(&cfg)
	}

	logger := discardLogger()
	clock := &testClock{t: time.Now().Truncate(time.Second)}
	store := NewMemoryStore(clock.Now)

	tm, err := auth.NewTokenManager(cfg.SigningSecret, cfg.Algorithm)
	require.NoError(t, err)
	tm.SetClock(clock.Now)

	key := make([]byte, 32)
	_, err = rand.Read(key)
	require.NoError(t, err)
	totpMgr, err := auth.NewTOTPManager(key, cfg.MFAIssuer)
	require.NoError(t, err)
	totpMgr.SetClock(clock.Now)

	hasher := pkgauth.NewHasher(bcrypt.MinCost)

	audit := NewAuditService(store.Events(), logger, nil)
	audit.now = clock.Now

	codes := NewBackupCodeService(store.BackupCodes(), cfg, logger)
	codes.now = clock.Now

	blacklist := cache.NewBlacklist(store, cache.NewMemory(time.Minute, time.Minute), time.Minute)
	tokens := NewTokenService(tm, store.Blacklist(), blacklist, store.Accounts(), store.Sessions(), cfg, nil, logger)

	lockout := NewLockoutService(store.Accounts(), LockoutConfig{FailureLimit: 5, Cooloff: 15 * time.Minute}, logger)
	lockout.now = clock.Now

	verifier := NewCredentialVerifier(store.Accounts(), lockout, hasher)

	sessions := NewSessionService(store.Sessions(), tokens, &MockDeviceResolver{}, audit, nil, logger)
	sessions.now = clock.Now

	notifier := &MockNotifier{}
	mfa := NewMFAService(store.Accounts(), store.Factors(), store.Factors(), codes, totpMgr, tm, audit, cfg, nil, logger).
		WithLockoutGuard(lockout).
		WithNotifier(notifier)
	mfa.now = clock.Now

	authSvc := NewAuthService(AuthDeps{
		Accounts: store.Accounts(),
		Verifier: verifier,
		Guard:    lockout,
		Attempts: store.Attempts(),
		MFA:      mfa,
		Tokens:   tokens,
		Sessions: sessions,
		Audit:    audit,
		Hasher:   hasher,
	}, logger)

	maint := NewMaintenanceService(sessions, tokens, mfa, codes, store.Attempts(), 30*24*time.Hour, nil, logger)
	maint.now = clock.Now

	return &testEnv{
		clock:    clock,
		store:    store,
		cfg:      cfg,
		tm:       tm,
		totp:     totpMgr,
		hasher:   hasher,
		audit:    audit,
		codes:    codes,
		tokens:   tokens,
		lockout:  lockout,
		verifier: verifier,
		sessions: sessions,
		mfa:      mfa,
		auth:     authSvc,
		maint:    maint,
		notifier: notifier,
	}
}

// seedAccount stores an active account with testPassword
func (e *testEnv) seedAccount(t *testing.T, email string) *models.Account {
	t.Helper()
	hash, err := e.hasher.Hash(testPassword)
	require.NoError(t, err)
	account, err := e.store.Accounts().Create(context.Background(), &models.Account{
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
	})
	require.NoError(t, err)
	return account
}

// enroll runs enroll + confirm and returns the TOTP secret and backup codes
func (e *testEnv) enroll(t *testing.T, accountID string) (string, []string) {
	t.Helper()
	ctx := context.Background()

	enrollment, err := e.mfa.Enroll(ctx, accountID, "Phone", models.RequestMeta{})
	require.NoError(t, err)

	require.NoError(t, e.mfa.ConfirmEnroll(ctx, accountID, enrollment.FactorID, e.code(t, enrollment.Secret), models.RequestMeta{}))
	return enrollment.Secret, enrollment.BackupCodes
}

// code returns the current TOTP code for secret
func (e *testEnv) code(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, e.clock.Now())
	require.NoError(t, err)
	return code
}

// wrongCode returns a well-formed code outside the validation window
func (e *testEnv) wrongCode(t *testing.T, secret string) string {
	t.Helper()
	for offset := 10; ; offset++ {
		code, err := totp.GenerateCode(secret, e.clock.Now().Add(time.Duration(offset)*30*time.Second))
		require.NoError(t, err)
		if !e.totp.ValidateCode(secret, code) {
			return code
		}
	}
}

// login performs a password-only login for an account without MFA
func (e *testEnv) login(t *testing.T, email, ip, ua string) *LoginResult {
	t.Helper()
	res, err := e.auth.Login(context.Background(), LoginRequest{
		Email:     email,
		Password:  testPassword,
		IP:        ip,
		UserAgent: ua,
	})
	require.NoError(t, err)
	require.False(t, res.MFARequired)
	return res
}
