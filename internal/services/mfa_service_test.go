package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/authgate/internal/models"
)

// ============================================================================
// Enrollment Tests (7 tests)
// ============================================================================

func TestMFAService_Enroll_ReturnsSecretAndBackupCodes(t *testing.T) {
	env := newTestEnv(t)
	account := env.seedAccount(t, "alice@example.com")

	enrollment, err := env.mfa.Enroll(context.Background(), account.ID, "Phone", models.RequestMeta{})

	require.NoError(t, err)
	assert.NotEmpty(t, enrollment.FactorID)
	assert.NotEmpty(t, enrollment.Secret)
	assert.True(t, strings.HasPrefix(enrollment.ProvisioningURI, "otpauth://totp/"))
	assert.True(t, strings.HasPrefix(enrollment.QRCode, "data:image/png;base64,"))
	assert.Len(t, enrollment.BackupCodes, 10)

	factor, err := env.store.Factors().GetByID(context.Background(), enrollment.FactorID)
	require.NoError(t, err)
	assert.False(t, factor.Confirmed)
	assert.NotContains(t, string(factor.SecretEncrypted), enrollment.Secret)

	stored, err := env.store.Accounts().GetByID(context.Background(), account.ID)
	require.NoError(t, err)
	assert.False(t, stored.MFAEnrolled, "enrollment is not active until confirmed")
}

func TestMFAService_Enroll_UnknownAccount(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.mfa.Enroll(context.Background(), "missing", "Phone", models.RequestMeta{})

	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMFAService_Enroll_AlreadyEnrolled(t *testing.T) {
	env := newTestEnv(t)
	account := env.seedAccount(t, "alice@example.com")
	env.enroll(t, account.ID)

	_, err := env.mfa.Enroll(context.Background(), account.ID, "Tablet", models.RequestMeta{})

	assert.ErrorIs(t, err, models.ErrMFAAlreadyEnrolled)
}

func TestMFAService_ConfirmEnroll_ActivatesFactor(t *testing.T) {
	env := newTestEnv(t)
	account := env.seedAccount(t, "alice@example.com")

	env.enroll(t, account.ID)

	status, err := env.mfa.Status(context.Background(), account.ID)
	require.NoError(t, err)
	assert.True(t, status.Enrolled)
	assert.Equal(t, 1, status.ConfirmedFactors)
	assert.Equal(t, 10, status.RemainingBackupCodes)

	var stages []interface{}
	for _, e := range env.store.EventsOfType(models.EventMFAEnroll) {
		stages = append(stages, e.Details["stage"])
	}
	assert.Equal(t, []interface{}{"started", "confirmed"}, stages)
}

func TestMFAService_ConfirmEnroll_WrongCodeLeavesFactorPending(t *testing.T) {
	env := newTestEnv(t)
	account := env.seedAccount(t, "alice@example.com")
	ctx := context.Background()

	enrollment, err := env.mfa.Enroll(ctx, account.ID, "Phone", models.RequestMeta{})
	require.NoError(t, err)

	err = env.mfa.ConfirmEnroll(ctx, account.ID, enrollment.FactorID, env.wrongCode(t, enrollment.Secret), models.RequestMeta{})
	assert.ErrorIs(t, err, models.ErrMFAInvalidCode)

	factor, err := env.store.Factors().GetByID(ctx, enrollment.FactorID)
	require.NoError(t, err)
	assert.False(t, factor.Confirmed)

	require.NoError(t, env.mfa.ConfirmEnroll(ctx, account.ID, enrollment.FactorID, env.code(t, enrollment.Secret), models.RequestMeta{}))
}

func TestMFAService_ConfirmEnroll_ForeignFactor(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedAccount(t, "alice@example.com")
	bob := env.seedAccount(t, "bob@example.com")
	ctx := context.Background()

	enrollment, err := env.mfa.Enroll(ctx, alice.ID, "Phone", models.RequestMeta{})
	require.NoError(t, err)

	err = env.mfa.ConfirmEnroll(ctx, bob.ID, enrollment.FactorID, env.code(t, enrollment.Secret), models.RequestMeta{})

	assert.ErrorIs(t, err, models.ErrMFAFactorNotFound)
}

func TestMFAService_ConfirmEnroll_AlreadyConfirmed(t *testing.T) {
	env := newTestEnv(t)
	account := env.seedAccount(t, "alice@example.com")
	ctx := context.Background()

	enrollment, err := env.mfa.Enroll(ctx, account.ID, "Phone", models.RequestMeta{})
	require.NoError(t, err)
	code := env.code(t, enrollment.Secret)
	require.NoError(t, env.mfa.ConfirmEnroll(ctx, account.ID, enrollment.FactorID, code, models.RequestMeta{}))

	err = env.mfa.ConfirmEnroll(ctx, account.ID, enrollment.FactorID, code, models.RequestMeta{})

	assert.ErrorIs(t, err, models.ErrMFAFactorNotFound)
}

// ============================================================================
// Challenge Verification Tests (7 tests)
// ============================================================================

func TestMFAService_IssueChallenge_NotEnrolled(t *testing.T) {
	env := newTestEnv(t)
	account := env.seedAccount(t, "alice@example.com")

	_, err := env.mfa.IssueChallenge(account, false)

	assert.ErrorIs(t, err, models.ErrNoEnrolledFactor)
}

func TestMFAService_VerifyChallenge_CarriesRememberMe(t *testing.T) {
	env := newTestEnv(t)
	account := env.seedAccount(t, "alice@example.com")
	secret, _ := env.enroll(t, account.ID)
	stored, err := env.store.Accounts().GetByID(context.Background(), account.ID)
	require.NoError(t, err)

	token, err := env.mfa.IssueChallenge(stored, true)
	require.NoError(t, err)

	verified, err := env.mfa.VerifyChallenge(context.Background(), token, env.code(t, secret), models.RequestMeta{})

	require.NoError(t, err)
	assert.True(t, verified.RememberMe)
	assert.Equal(t, models.MFAMethodTOTP, verified.Method)
	assert.Equal(t, account.ID, verified.Account.ID)
}

func TestMFAService_VerifyChallenge_ToleratesOneStepSkew(t *testing.T) {
	env := newTestEnv(t)
	account := env.seedAccount(t, "alice@example.com")
	secret, _ := env.enroll(t, account.ID)
	stored, _ := env.store.Accounts().GetByID(context.Background(), account.ID)
	token, err := env.mfa.IssueChallenge(stored, false)
	require.NoError(t, err)

	code := env.code(t, secret)
	env.clock.Advance(30 * time.Second)

	_, err = env.mfa.VerifyChallenge(context.Background(), token, code, models.RequestMeta{})
	assert.NoError(t, err)
}

func TestMFAService_VerifyChallenge_AcceptsFormattedBackupCode(t *testing.T) {
	env := newTestEnv(t)
	account := env.seedAccount(t, "alice@example.com")
	_, codes := env.enroll(t, account.ID)
	stored, _ := env.store.Accounts().GetByID(context.Background(), account.ID)
	token, err := env.mfa.IssueChallenge(stored, false)
	require.NoError(t, err)

	formatted := strings.ToLower(codes[3][:4] + "-" + codes[3][4:])
	verified, err := env.mfa.VerifyChallenge(context.Background(), token, formatted, models.RequestMeta{})

	require.NoError(t, err)
	assert.Equal(t, models.MFAMethodBackupCode, verified.Method)
}

func TestMFAService_VerifyChallenge_TamperedToken(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.mfa.VerifyChallenge(context.Background(), "eyJhbGciOiJIUzI1NiJ9.e30.bad", "123456", models.RequestMeta{})

	assert.ErrorIs(t, err, models.ErrMFAInvalidToken)
}

func TestMFAService_VerifyChallenge_AccessTokenIsNotAChallenge(t *testing.T) {
	env := newTestEnv(t)
	account := env.seedAccount(t, "alice@example.com")
	pair, err := env.tokens.Issue(context.Background(), account, false)
	require.NoError(t, err)

	_, err = env.mfa.VerifyChallenge(context.Background(), pair.AccessToken, "123456", models.RequestMeta{})

	assert.ErrorIs(t, err, models.ErrMFAInvalidToken)
}

func TestMFAService_VerifyChallenge_AttemptCap(t *testing.T) {
	env := newTestEnv(t)
	account := env.seedAccount(t, "alice@example.com")
	secret, _ := env.enroll(t, account.ID)
	stored, _ := env.store.Accounts().GetByID(context.Background(), account.ID)
	ctx := context.Background()

	token, err := env.mfa.IssueChallenge(stored, false)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := env.mfa.VerifyChallenge(ctx, token, env.wrongCode(t, secret), models.RequestMeta{})
		require.ErrorIs(t, err, models.ErrMFAInvalidCode)
	}

	_, err = env.mfa.VerifyChallenge(ctx, token, env.code(t, secret), models.RequestMeta{})
	assert.ErrorIs(t, err, models.ErrMFATooManyAttempts)

	env.clock.Advance(6 * time.Minute)
	token, err = env.mfa.IssueChallenge(stored, false)
	require.NoError(t, err)
	_, err = env.mfa.VerifyChallenge(ctx, token, env.code(t, secret), models.RequestMeta{})
	assert.NoError(t, err)
}

// ============================================================================
// Disable and Regenerate Tests (8 tests)
// ============================================================================

func TestMFAService_Disable_ImmediateCleanup(t *testing.T) {
	env := newTestEnv(t)
	account := env.seedAccount(t, "alice@example.com")
	env.enroll(t, account.ID)
	ctx := context.Background()

	var notified string
	env.notifier.NotifyMFADisabledFunc = func(_ context.Context, email string) error {
		notified = email
		return nil
	}

	require.NoError(t, env.mfa.Disable(ctx, account.ID, models.RequestMeta{}))

	status, err := env.mfa.Status(ctx, account.ID)
	require.NoError(t, err)
	assert.False(t, status.Enrolled)
	assert.Zero(t, status.ConfirmedFactors)
	assert.Zero(t, status.RemainingBackupCodes)
	assert.Empty(t, env.store.PendingCleanups())
	assert.Equal(t, "alice@example.com", notified)

	res := env.login(t, "alice@example.com", testIP, chromeUA)
	assert.NotNil(t, res.Tokens)
}

func TestMFAService_Disable_DeferredCleanup(t *testing.T) {
	env := newTestEnv(t, func(c *models.AuthConfig) { c.MFACleanupDelay = time.Hour })
	account := env.seedAccount(t, "alice@example.com")
	env.enroll(t, account.ID)
	ctx := context.Background()

	require.NoError(t, env.mfa.Disable(ctx, account.ID, models.RequestMeta{}))

	remaining, err := env.codes.RemainingCount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, remaining, "codes survive until the cleanup job runs")
	require.Len(t, env.store.PendingCleanups(), 1)

	n, err := env.mfa.RunDueCleanups(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	env.clock.Advance(61 * time.Minute)
	n, err = env.mfa.RunDueCleanups(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	remaining, err = env.codes.RemainingCount(ctx, account.ID)
	require.NoError(t, err)
	assert.Zero(t, remaining)
	assert.Empty(t, env.store.PendingCleanups())
}

func TestMFAService_Disable_CleanupSparesReenrollment(t *testing.T) {
	env := newTestEnv(t, func(c *models.AuthConfig) { c.MFACleanupDelay = time.Hour })
	account := env.seedAccount(t, "alice@example.com")
	env.enroll(t, account.ID)
	ctx := context.Background()

	require.NoError(t, env.mfa.Disable(ctx, account.ID, models.RequestMeta{}))
	env.clock.Advance(time.Minute)
	env.enroll(t, account.ID)

	env.clock.Advance(time.Hour)
	_, err := env.mfa.RunDueCleanups(ctx)
	require.NoError(t, err)

	status, err := env.mfa.Status(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, status.Enrolled)
	assert.Equal(t, 10, status.RemainingBackupCodes)
}

func TestMFAService_Disable_NotEnrolled(t *testing.T) {
	env := newTestEnv(t)
	account := env.seedAccount(t, "alice@example.com")

	err := env.mfa.Disable(context.Background(), account.ID, models.RequestMeta{})

	assert.ErrorIs(t, err, models.ErrMFANotEnrolled)
}

func TestMFAService_Disable_NotifierFailureIsIgnored(t *testing.T) {
	env := newTestEnv(t)
	account := env.seedAccount(t, "alice@example.com")
	env.enroll(t, account.ID)
	env.notifier.NotifyMFADisabledFunc = func(context.Context, string) error {
		return errors.New("smtp down")
	}

	err := env.mfa.Disable(context.Background(), account.ID, models.RequestMeta{})

	assert.NoError(t, err)
	assert.Len(t, env.store.EventsOfType(models.EventMFADisable), 1)
}

// failingCodeRepo fails account purges
type failingCodeRepo struct {
	BackupCodeRepository
}

func (failingCodeRepo) DeleteForAccount(context.Context, string, time.Time) (int64, error) {
	return 0, errors.New("db blip")
}

// cleanupQueue wraps the cleanup queue with an optional schedule error
type cleanupQueue struct {
	MFACleanupRepository
	err error
}

func (q cleanupQueue) ScheduleCleanup(ctx context.Context, job models.MFACleanupJob) error {
	if q.err != nil {
		return q.err
	}
	return q.MFACleanupRepository.ScheduleCleanup(ctx, job)
}

func TestMFAService_Disable_FailedCleanupIsRequeued(t *testing.T) {
	env := newTestEnv(t)
	account := env.seedAccount(t, "alice@example.com")
	env.enroll(t, account.ID)
	env.codes.repo = failingCodeRepo{BackupCodeRepository: env.store.BackupCodes()}
	ctx := context.Background()

	require.NoError(t, env.mfa.Disable(ctx, account.ID, models.RequestMeta{}))

	require.Len(t, env.store.PendingCleanups(), 1)
	assert.Equal(t, account.ID, env.store.PendingCleanups()[0].AccountID)
}

func TestMFAService_Disable_RequeueFailureIsLogged(t *testing.T) {
	env := newTestEnv(t)
	account := env.seedAccount(t, "alice@example.com")
	env.enroll(t, account.ID)
	env.codes.repo = failingCodeRepo{BackupCodeRepository: env.store.BackupCodes()}
	env.mfa.cleanups = cleanupQueue{MFACleanupRepository: env.store.Factors(), err: errors.New("queue down")}

	var logs strings.Builder
	env.mfa.logger = slog.New(slog.NewTextHandler(&logs, nil))

	require.NoError(t, env.mfa.Disable(context.Background(), account.ID, models.RequestMeta{}))

	assert.Empty(t, env.store.PendingCleanups())
	assert.Contains(t, logs.String(), "level=ERROR")
	assert.Contains(t, logs.String(), "failed to requeue mfa cleanup")
	assert.Contains(t, logs.String(), "queue down")
}

func TestMFAService_RegenerateBackupCodes_InvalidatesOldBatch(t *testing.T) {
	env := newTestEnv(t)
	account := env.seedAccount(t, "alice@example.com")
	_, oldCodes := env.enroll(t, account.ID)
	ctx := context.Background()

	newCodes, err := env.mfa.RegenerateBackupCodes(ctx, account.ID, models.RequestMeta{})
	require.NoError(t, err)
	assert.Len(t, newCodes, 10)

	ok, err := env.codes.Consume(ctx, account.ID, oldCodes[0])
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = env.codes.Consume(ctx, account.ID, newCodes[0])
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, env.store.EventsOfType(models.EventBackupCodesRegenerated), 1)
}

func TestMFAService_RegenerateBackupCodes_NotEnrolled(t *testing.T) {
	env := newTestEnv(t)
	account := env.seedAccount(t, "alice@example.com")

	_, err := env.mfa.RegenerateBackupCodes(context.Background(), account.ID, models.RequestMeta{})

	assert.ErrorIs(t, err, models.ErrMFANotEnrolled)
}

// ============================================================================
// Sweep Tests (1 test)
// ============================================================================

func TestMFAService_SweepUnconfirmedFactors(t *testing.T) {
	env := newTestEnv(t)
	account := env.seedAccount(t, "alice@example.com")
	ctx := context.Background()

	abandoned, err := env.mfa.Enroll(ctx, account.ID, "Old", models.RequestMeta{})
	require.NoError(t, err)

	env.clock.Advance(25 * time.Hour)
	fresh, err := env.mfa.Enroll(ctx, account.ID, "New", models.RequestMeta{})
	require.NoError(t, err)

	n, err := env.mfa.SweepUnconfirmedFactors(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = env.store.Factors().GetByID(ctx, abandoned.FactorID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = env.store.Factors().GetByID(ctx, fresh.FactorID)
	assert.NoError(t, err)
}
