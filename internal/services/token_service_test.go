package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/authgate/internal/models"
)

// ============================================================================
// Refresh Tests (7 tests)
// ============================================================================

func TestTokenService_Refresh_ConcurrentReuseHasOneWinner(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "alice@example.com")
	login := env.login(t, "alice@example.com", testIP, chromeUA)

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		revoked   int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := env.tokens.Refresh(context.Background(), login.Tokens.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, models.ErrTokenRevoked):
				revoked++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, revoked)
}

func TestTokenService_Refresh_RejectsAccessToken(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "alice@example.com")
	login := env.login(t, "alice@example.com", testIP, chromeUA)

	_, _, err := env.tokens.Refresh(context.Background(), login.Tokens.AccessToken)

	assert.ErrorIs(t, err, models.ErrTokenMalformed)
}

func TestTokenService_Refresh_ExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "alice@example.com")
	login := env.login(t, "alice@example.com", testIP, chromeUA)

	env.clock.Advance(env.cfg.RefreshTTL + time.Second)
	_, _, err := env.tokens.Refresh(context.Background(), login.Tokens.RefreshToken)

	assert.ErrorIs(t, err, models.ErrTokenExpired)
}

func TestTokenService_Refresh_BlockedAfterPasswordChange(t *testing.T) {
	env := newTestEnv(t)
	account := env.seedAccount(t, "alice@example.com")
	login := env.login(t, "alice@example.com", testIP, chromeUA)

	env.clock.Advance(2 * time.Second)
	changed := env.clock.Now()
	stored, err := env.store.Accounts().GetByID(context.Background(), account.ID)
	require.NoError(t, err)
	stored.LastPasswordChange = &changed
	env.store.Accounts().Put(stored)

	_, _, err = env.tokens.Refresh(context.Background(), login.Tokens.RefreshToken)

	assert.ErrorIs(t, err, models.ErrTokenRevoked)
}

func TestTokenService_Refresh_DeletedAccount(t *testing.T) {
	env := newTestEnv(t)
	ghost := &models.Account{ID: "11111111-1111-1111-1111-111111111111", Email: "ghost@example.com", IsActive: true}
	pair, err := env.tokens.Issue(context.Background(), ghost, false)
	require.NoError(t, err)

	_, _, err = env.tokens.Refresh(context.Background(), pair.RefreshToken)

	assert.ErrorIs(t, err, models.ErrTokenRevoked)
}

func TestTokenService_Refresh_WithoutRotationKeepsRefreshToken(t *testing.T) {
	env := newTestEnv(t, func(c *models.AuthConfig) { c.RotateRefreshTokens = false })
	env.seedAccount(t, "alice@example.com")
	login := env.login(t, "alice@example.com", testIP, chromeUA)
	ctx := context.Background()

	env.clock.Advance(time.Minute)
	pair, _, err := env.tokens.Refresh(ctx, login.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, login.Tokens.RefreshToken, pair.RefreshToken)
	assert.NotEqual(t, login.Tokens.AccessJTI, pair.AccessJTI)

	session, err := env.store.Sessions().GetByID(ctx, login.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, env.clock.Now(), session.LastActivity)

	_, _, err = env.tokens.Refresh(ctx, login.Tokens.RefreshToken)
	assert.NoError(t, err)
}

func TestTokenService_Refresh_WithoutRotationRejectsInactiveSession(t *testing.T) {
	env := newTestEnv(t, func(c *models.AuthConfig) { c.RotateRefreshTokens = false })
	account := env.seedAccount(t, "alice@example.com")
	login := env.login(t, "alice@example.com", testIP, chromeUA)
	ctx := context.Background()

	// Session row revoked without the matching blacklist entry
	_, changed, err := env.store.Sessions().Revoke(ctx, login.Session.ID, account.ID, models.RevokedByUser, env.clock.Now())
	require.NoError(t, err)
	require.True(t, changed)

	_, _, err = env.tokens.Refresh(ctx, login.Tokens.RefreshToken)

	assert.ErrorIs(t, err, models.ErrTokenRevoked)
}

// ============================================================================
// Blacklist Tests (4 tests)
// ============================================================================

func TestTokenService_Blacklist_ExpiredTokenIsNoop(t *testing.T) {
	env := newTestEnv(t)
	account := env.seedAccount(t, "alice@example.com")
	pair, err := env.tokens.Issue(context.Background(), account, false)
	require.NoError(t, err)

	env.clock.Advance(env.cfg.AccessTTL + time.Second)

	assert.NoError(t, env.tokens.Blacklist(context.Background(), pair.AccessToken, "logout"))
	revoked, _ := env.store.IsRevoked(context.Background(), pair.AccessJTI)
	assert.False(t, revoked)
}

func TestTokenService_Blacklist_MalformedToken(t *testing.T) {
	env := newTestEnv(t)

	err := env.tokens.Blacklist(context.Background(), "garbage", "logout")

	assert.ErrorIs(t, err, models.ErrTokenMalformed)
}

func TestTokenService_Validate_RevokedAccessToken(t *testing.T) {
	env := newTestEnv(t)
	account := env.seedAccount(t, "alice@example.com")
	pair, err := env.tokens.Issue(context.Background(), account, false)
	require.NoError(t, err)

	_, err = env.tokens.Validate(context.Background(), pair.AccessToken)
	require.NoError(t, err)

	require.NoError(t, env.tokens.Blacklist(context.Background(), pair.AccessToken, "logout"))

	_, err = env.tokens.Validate(context.Background(), pair.AccessToken)
	assert.ErrorIs(t, err, models.ErrTokenRevoked)
}

func TestTokenService_PurgeExpiredBlacklist(t *testing.T) {
	env := newTestEnv(t)
	account := env.seedAccount(t, "alice@example.com")
	ctx := context.Background()
	pair, err := env.tokens.Issue(ctx, account, false)
	require.NoError(t, err)
	require.NoError(t, env.tokens.Blacklist(ctx, pair.AccessToken, "logout"))
	require.NoError(t, env.tokens.Blacklist(ctx, pair.RefreshToken, "logout"))

	env.clock.Advance(env.cfg.AccessTTL + time.Minute)
	n, err := env.tokens.PurgeExpiredBlacklist(ctx)

	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	revoked, _ := env.store.IsRevoked(ctx, pair.RefreshJTI)
	assert.True(t, revoked)
}
