package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/authgate/internal/database"
	"github.com/BradenHooton/authgate/internal/models"
	"github.com/jackc/pgx/v5"
)

// FactorRepository persists TOTP factors and deferred MFA cleanup jobs
type FactorRepository struct {
	db *database.DB
}

func NewFactorRepository(db *database.DB) *FactorRepository {
	return &FactorRepository{db: db}
}

const factorColumns = `id, account_id, name, secret_encrypted, secret_nonce, confirmed,
	confirmed_at, last_used_at, created_at`

func scanFactorRow(scanner rowScanner) (*models.MFAFactor, error) {
	var f models.MFAFactor
	err := scanner.Scan(
		&f.ID, &f.AccountID, &f.Name, &f.SecretEncrypted, &f.SecretNonce, &f.Confirmed,
		&f.ConfirmedAt, &f.LastUsedAt, &f.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &f, nil
}

func scanFactorRows(rows pgx.Rows) ([]*models.MFAFactor, error) {
	defer rows.Close()

	factors := make([]*models.MFAFactor, 0)
	for rows.Next() {
		f, err := scanFactorRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan MFA factor: %w", err)
		}
		factors = append(factors, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating MFA factors: %w", err)
	}
	return factors, nil
}

// Create inserts an unconfirmed factor. An unknown account maps to models.ErrNotFound.
func (r *FactorRepository) Create(ctx context.Context, factor *models.MFAFactor) (*models.MFAFactor, error) {
	query := `
		INSERT INTO mfa_factors (account_id, name, secret_encrypted, secret_nonce)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + factorColumns

	name := factor.Name
	if name == "" {
		name = "Authenticator"
	}

	created, err := scanFactorRow(r.db.Pool.QueryRow(ctx, query,
		factor.AccountID, name, factor.SecretEncrypted, factor.SecretNonce,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create MFA factor: %w", err)
	}
	return created, nil
}

func (r *FactorRepository) GetByID(ctx context.Context, id string) (*models.MFAFactor, error) {
	query := `SELECT ` + factorColumns + ` FROM mfa_factors WHERE id = $1`
	return scanFactorRow(r.db.Pool.QueryRow(ctx, query, id))
}

// ListConfirmed returns the confirmed factors for an account, oldest first
func (r *FactorRepository) ListConfirmed(ctx context.Context, accountID string) ([]*models.MFAFactor, error) {
	query := `
		SELECT ` + factorColumns + `
		FROM mfa_factors
		WHERE account_id = $1 AND confirmed = TRUE
		ORDER BY confirmed_at ASC
	`
	rows, err := r.db.Pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query MFA factors: %w", database.MapPostgresError(err))
	}
	return scanFactorRows(rows)
}

// Confirm marks an unconfirmed factor as confirmed and flips the account's
// mfa_enrolled flag in the same transaction. Returns models.ErrNotFound when
// the factor does not exist, belongs to another account or is already confirmed.
func (r *FactorRepository) Confirm(ctx context.Context, factorID, accountID string, now time.Time) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE mfa_factors
			SET confirmed = TRUE, confirmed_at = $3
			WHERE id = $1 AND account_id = $2 AND confirmed = FALSE`,
			factorID, accountID, now)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if tag.RowsAffected() == 0 {
			return models.ErrNotFound
		}

		_, err = tx.Exec(ctx,
			`UPDATE accounts SET mfa_enrolled = TRUE, updated_at = $2 WHERE id = $1`,
			accountID, now)
		return database.MapPostgresError(err)
	})
}

// DisableAll removes every confirmed factor and clears mfa_enrolled in one
// transaction. Returns the number of factors removed.
func (r *FactorRepository) DisableAll(ctx context.Context, accountID string, now time.Time) (int64, error) {
	var removed int64
	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`DELETE FROM mfa_factors WHERE account_id = $1 AND confirmed = TRUE`, accountID)
		if err != nil {
			return database.MapPostgresError(err)
		}
		removed = tag.RowsAffected()

		_, err = tx.Exec(ctx,
			`UPDATE accounts SET mfa_enrolled = FALSE, updated_at = $2 WHERE id = $1`,
			accountID, now)
		return database.MapPostgresError(err)
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// TouchLastUsed records a successful verification against a factor
func (r *FactorRepository) TouchLastUsed(ctx context.Context, factorID string, now time.Time) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE mfa_factors SET last_used_at = $2 WHERE id = $1`, factorID, now)
	if err != nil {
		return fmt.Errorf("failed to update last_used_at: %w", database.MapPostgresError(err))
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteUnconfirmedBefore removes abandoned enrollments created before cutoff
func (r *FactorRepository) DeleteUnconfirmedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM mfa_factors WHERE confirmed = FALSE AND created_at < $1`, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}

// DeleteUnconfirmedForAccount removes an account's unconfirmed factors created at or before createdBefore
func (r *FactorRepository) DeleteUnconfirmedForAccount(ctx context.Context, accountID string, createdBefore time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM mfa_factors WHERE account_id = $1 AND confirmed = FALSE AND created_at <= $2`,
		accountID, createdBefore)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}

// ScheduleCleanup upserts a deferred cleanup job for the account
func (r *FactorRepository) ScheduleCleanup(ctx context.Context, job models.MFACleanupJob) error {
	query := `
		INSERT INTO mfa_cleanup_jobs (account_id, disabled_at, run_after)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id) DO UPDATE
		SET disabled_at = EXCLUDED.disabled_at, run_after = EXCLUDED.run_after
	`
	_, err := r.db.Pool.Exec(ctx, query, job.AccountID, job.DisabledAt, job.RunAfter)
	return database.MapPostgresError(err)
}

// ClaimDueCleanups deletes and returns the jobs whose run_after has passed.
// Concurrent workers never receive the same job.
func (r *FactorRepository) ClaimDueCleanups(ctx context.Context, now time.Time, limit int) ([]models.MFACleanupJob, error) {
	query := `
		DELETE FROM mfa_cleanup_jobs
		WHERE account_id IN (
			SELECT account_id FROM mfa_cleanup_jobs
			WHERE run_after <= $1
			ORDER BY run_after
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING account_id, disabled_at, run_after
	`
	rows, err := r.db.Pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	jobs := make([]models.MFACleanupJob, 0)
	for rows.Next() {
		var job models.MFACleanupJob
		if err := rows.Scan(&job.AccountID, &job.DisabledAt, &job.RunAfter); err != nil {
			return nil, fmt.Errorf("failed to scan cleanup job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
