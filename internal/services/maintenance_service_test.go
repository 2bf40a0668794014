package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/authgate/internal/models"
)

func TestMaintenanceService_RunAll(t *testing.T) {
	env := newTestEnv(t, func(c *models.AuthConfig) { c.MFACleanupDelay = time.Hour })
	ctx := context.Background()

	// expired session + blacklisted token
	env.seedAccount(t, "alice@example.com")
	login := env.login(t, "alice@example.com", testIP, chromeUA)
	require.NoError(t, env.auth.Logout(ctx, login.Tokens.AccessToken, "", models.RequestMeta{}))

	// abandoned enrollment
	carol := env.seedAccount(t, "carol@example.com")
	_, err := env.mfa.Enroll(ctx, carol.ID, "Phone", models.RequestMeta{})
	require.NoError(t, err)

	// used backup code + deferred disable cleanup
	bob := env.seedAccount(t, "bob@example.com")
	_, codes := env.enroll(t, bob.ID)
	ok, err := env.codes.Consume(ctx, bob.ID, codes[0])
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, env.mfa.Disable(ctx, bob.ID, models.RequestMeta{}))

	env.clock.Advance(91 * 24 * time.Hour)
	report, err := env.maint.RunAll(ctx)

	require.NoError(t, err)
	assert.Equal(t, int64(1), report.ExpiredSessions)
	assert.Equal(t, int64(1), report.BlacklistPurged)
	assert.Equal(t, int64(1), report.UnconfirmedFactors)
	assert.Equal(t, int64(1), report.UsedBackupCodes)
	assert.Equal(t, int64(1), report.MFACleanups)
	assert.Equal(t, int64(1), report.LoginAttemptsRemoved)

	remaining, err := env.codes.RemainingCount(ctx, bob.ID)
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestMaintenanceService_RunAll_NothingToDo(t *testing.T) {
	env := newTestEnv(t)

	report, err := env.maint.RunAll(context.Background())

	require.NoError(t, err)
	assert.Equal(t, &SweepReport{}, report)
}
