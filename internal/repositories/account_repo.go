package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/authgate/internal/database"
	"github.com/BradenHooton/authgate/internal/models"
	"github.com/jackc/pgx/v5"
)

type AccountRepository struct {
	db *database.DB
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

const accountColumns = `id, email, password_hash, is_active, mfa_enrolled, failed_attempt_count,
	locked_until, must_change_password, last_password_change, created_at, updated_at`

func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var a models.Account
	err := scanner.Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.IsActive, &a.MFAEnrolled, &a.FailedAttemptCount,
		&a.LockedUntil, &a.MustChangePassword, &a.LastPasswordChange, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &a, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccountRow(r.db.Pool.QueryRow(ctx, query, id))
}

// GetByEmail looks up an account by its normalized email
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return scanAccountRow(r.db.Pool.QueryRow(ctx, query, models.NormalizeEmail(email)))
}

// Create inserts a new account inside a transaction. A duplicate email maps to models.ErrConflict.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	var created *models.Account
	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO accounts (email, password_hash, is_active, must_change_password, last_password_change)
			VALUES ($1, $2, TRUE, $3, NOW())
			RETURNING ` + accountColumns

		var err error
		created, err = scanAccountRow(tx.QueryRow(ctx, query,
			models.NormalizeEmail(account.Email),
			account.PasswordHash,
			account.MustChangePassword,
		))
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Deactivate disables the account and revokes every active session in one
// transaction. The revoked sessions are returned so their refresh tokens can
// be blacklisted.
func (r *AccountRepository) Deactivate(ctx context.Context, id string, revokedBy string) ([]*models.Session, error) {
	var revoked []*models.Session
	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE accounts SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if tag.RowsAffected() == 0 {
			return models.ErrNotFound
		}

		rows, err := tx.Query(ctx, `
			UPDATE sessions
			SET is_active = FALSE, revoked_at = NOW(), revoked_by = $2
			WHERE account_id = $1 AND is_active = TRUE
			RETURNING `+sessionColumns, id, revokedBy)
		if err != nil {
			return database.MapPostgresError(err)
		}
		revoked, err = scanSessionRows(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return revoked, nil
}

// IncrementFailedAttempts atomically bumps the failure counter for email and
// sets locked_until once the limit is reached. A counter left over from an
// expired lock restarts at 1. Returns models.ErrNotFound for unknown emails.
func (r *AccountRepository) IncrementFailedAttempts(ctx context.Context, email string, limit int, cooloff time.Duration, now time.Time) (*models.LockoutState, error) {
	query := `
		UPDATE accounts SET
			failed_attempt_count = CASE
				WHEN locked_until IS NOT NULL AND locked_until <= $2 THEN 1
				ELSE failed_attempt_count + 1
			END,
			locked_until = CASE
				WHEN locked_until IS NOT NULL AND locked_until <= $2 THEN
					CASE WHEN $3 <= 1 THEN $2 + $4::interval ELSE NULL END
				WHEN failed_attempt_count + 1 >= $3 THEN $2 + $4::interval
				ELSE locked_until
			END,
			updated_at = $2
		WHERE email = $1
		RETURNING failed_attempt_count, locked_until
	`

	var state models.LockoutState
	err := r.db.Pool.QueryRow(ctx, query,
		models.NormalizeEmail(email), now, limit, cooloff.String(),
	).Scan(&state.FailedAttempts, &state.LockedUntil)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &state, nil
}

// ResetFailedAttempts clears the counter after a successful login. An
// active lock is left in place.
func (r *AccountRepository) ResetFailedAttempts(ctx context.Context, email string, now time.Time) error {
	query := `
		UPDATE accounts
		SET failed_attempt_count = 0, locked_until = NULL, updated_at = $2
		WHERE email = $1 AND (locked_until IS NULL OR locked_until <= $2)
		  AND (failed_attempt_count > 0 OR locked_until IS NOT NULL)
	`
	_, err := r.db.Pool.Exec(ctx, query, models.NormalizeEmail(email), now)
	return database.MapPostgresError(err)
}

// GetLockout returns the lockout counters for email
func (r *AccountRepository) GetLockout(ctx context.Context, email string) (*models.LockoutState, error) {
	var state models.LockoutState
	err := r.db.Pool.QueryRow(ctx,
		`SELECT failed_attempt_count, locked_until FROM accounts WHERE email = $1`,
		models.NormalizeEmail(email),
	).Scan(&state.FailedAttempts, &state.LockedUntil)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &state, nil
}
