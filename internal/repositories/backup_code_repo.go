package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/authgate/internal/database"
	"github.com/BradenHooton/authgate/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
)

// BackupCodeRepository stores hashed single-use backup codes
type BackupCodeRepository struct {
	db *database.DB
}

func NewBackupCodeRepository(db *database.DB) *BackupCodeRepository {
	return &BackupCodeRepository{db: db}
}

func insertCodes(ctx context.Context, q database.Querier, accountID string, hashes []string) error {
	if len(hashes) == 0 {
		return nil
	}
	_, err := q.Exec(ctx, `
		INSERT INTO backup_codes (account_id, code_hash)
		SELECT $1, h FROM unnest($2::text[]) AS h`,
		accountID, pq.Array(hashes))
	return database.MapPostgresError(err)
}

// InsertBatch stores a fresh set of code hashes for an account
func (r *BackupCodeRepository) InsertBatch(ctx context.Context, accountID string, hashes []string) error {
	if err := insertCodes(ctx, r.db.Pool, accountID, hashes); err != nil {
		return fmt.Errorf("failed to insert backup codes: %w", err)
	}
	return nil
}

// ReplaceUnused deletes every unused code and inserts the new hashes in one
// transaction. Used codes are kept until retention sweeps them.
func (r *BackupCodeRepository) ReplaceUnused(ctx context.Context, accountID string, hashes []string) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM backup_codes WHERE account_id = $1 AND used = FALSE`, accountID); err != nil {
			return database.MapPostgresError(err)
		}
		return insertCodes(ctx, tx, accountID, hashes)
	})
}

// ListUnused returns the unused codes for an account
func (r *BackupCodeRepository) ListUnused(ctx context.Context, accountID string) ([]*models.BackupCode, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, account_id, code_hash, used, used_at, created_at
		FROM backup_codes
		WHERE account_id = $1 AND used = FALSE
		ORDER BY created_at`, accountID)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	codes := make([]*models.BackupCode, 0)
	for rows.Next() {
		var c models.BackupCode
		if err := rows.Scan(&c.ID, &c.AccountID, &c.CodeHash, &c.Used, &c.UsedAt, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan backup code: %w", err)
		}
		codes = append(codes, &c)
	}
	return codes, rows.Err()
}

// MarkUsed consumes a code. It returns false when another request consumed
// it first, so a code can succeed at most once.
func (r *BackupCodeRepository) MarkUsed(ctx context.Context, id string, now time.Time) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE backup_codes SET used = TRUE, used_at = $2 WHERE id = $1 AND used = FALSE`,
		id, now)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *BackupCodeRepository) CountUnused(ctx context.Context, accountID string) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM backup_codes WHERE account_id = $1 AND used = FALSE`,
		accountID).Scan(&count)
	return count, database.MapPostgresError(err)
}

// DeleteUsedBefore purges consumed codes whose used_at is older than cutoff
func (r *BackupCodeRepository) DeleteUsedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM backup_codes WHERE used = TRUE AND used_at < $1`, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}

// DeleteForAccount removes an account's codes created at or before createdBefore
func (r *BackupCodeRepository) DeleteForAccount(ctx context.Context, accountID string, createdBefore time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM backup_codes WHERE account_id = $1 AND created_at <= $2`,
		accountID, createdBefore)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
