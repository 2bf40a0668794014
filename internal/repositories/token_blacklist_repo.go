package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/authgate/internal/database"
	"github.com/BradenHooton/authgate/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
)

// TokenBlacklistRepository stores revoked token ids until their natural expiry
type TokenBlacklistRepository struct {
	db *database.DB
}

func NewTokenBlacklistRepository(db *database.DB) *TokenBlacklistRepository {
	return &TokenBlacklistRepository{db: db}
}

func nullableUUID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

// Revoke adds a token to the blacklist. Revoking the same jti twice is a no-op.
func (r *TokenBlacklistRepository) Revoke(ctx context.Context, jti, accountID, tokenType string, expiresAt time.Time, reason string) error {
	query := `
		INSERT INTO revoked_tokens (jti, account_id, token_type, expires_at, reason)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (jti) DO NOTHING
	`
	_, err := r.db.Pool.Exec(ctx, query, jti, nullableUUID(accountID), tokenType, expiresAt, reason)
	return database.MapPostgresError(err)
}

// RevokeMany blacklists a batch of refresh tokens sharing an owner
func (r *TokenBlacklistRepository) RevokeMany(ctx context.Context, jtis []string, expiries []time.Time, accountID, reason string) error {
	if len(jtis) == 0 {
		return nil
	}
	expiryStrings := make([]string, len(expiries))
	for i, e := range expiries {
		expiryStrings[i] = e.UTC().Format(time.RFC3339Nano)
	}

	query := `
		INSERT INTO revoked_tokens (jti, account_id, token_type, expires_at, reason)
		SELECT t.jti, $3::uuid, $4::text, t.expires_at::timestamptz, $5::text
		FROM unnest($1::text[], $2::text[]) AS t(jti, expires_at)
		ON CONFLICT (jti) DO NOTHING
	`
	_, err := r.db.Pool.Exec(ctx, query,
		pq.Array(jtis), pq.Array(expiryStrings), nullableUUID(accountID), models.TokenTypeRefresh, reason)
	return database.MapPostgresError(err)
}

func (r *TokenBlacklistRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE jti = $1)`, jti).Scan(&exists)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}

// RotateRefresh blacklists the old refresh jti and moves its session to the
// new jti in one transaction. Either step affecting no rows means the old
// token was already used or its session is gone, and nothing is committed.
func (r *TokenBlacklistRepository) RotateRefresh(ctx context.Context, rot models.RefreshRotation, now time.Time) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO revoked_tokens (jti, account_id, token_type, expires_at, reason)
			VALUES ($1, $2, $3, $4, 'rotated')
			ON CONFLICT (jti) DO NOTHING`,
			rot.OldJTI, nullableUUID(rot.AccountID), models.TokenTypeRefresh, rot.OldExpiresAt)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if tag.RowsAffected() == 0 {
			return models.ErrTokenRevoked
		}

		tag, err = tx.Exec(ctx, `
			UPDATE sessions
			SET refresh_jti = $2, last_activity = $3, expires_at = $4
			WHERE refresh_jti = $1 AND is_active = TRUE`,
			rot.OldJTI, rot.NewJTI, now, rot.NewExpiresAt)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if tag.RowsAffected() == 0 {
			return models.ErrTokenRevoked
		}
		return nil
	})
}

// PurgeExpired removes blacklist rows whose tokens can no longer validate anyway
func (r *TokenBlacklistRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
