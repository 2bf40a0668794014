package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/authgate/internal/database"
	"github.com/BradenHooton/authgate/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
)

type SessionRepository struct {
	db *database.DB
}

func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, account_id, refresh_jti, ip_address, user_agent, device_type, os, browser,
	country, city, created_at, last_activity, expires_at, is_active, revoked_at, revoked_by`

// scanSessionRow handles nullable revocation fields
func scanSessionRow(scanner rowScanner) (*models.Session, error) {
	var s models.Session
	err := scanner.Scan(
		&s.ID, &s.AccountID, &s.RefreshJTI, &s.IPAddress, &s.UserAgent,
		&s.Device.DeviceType, &s.Device.OS, &s.Device.Browser,
		&s.Location.Country, &s.Location.City,
		&s.CreatedAt, &s.LastActivity, &s.ExpiresAt, &s.IsActive, &s.RevokedAt, &s.RevokedBy,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &s, nil
}

func scanSessionRows(rows pgx.Rows) ([]*models.Session, error) {
	defer rows.Close()

	sessions := make([]*models.Session, 0)
	for rows.Next() {
		s, err := scanSessionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session rows: %w", err)
	}
	return sessions, nil
}

func (r *SessionRepository) Create(ctx context.Context, s *models.Session) (*models.Session, error) {
	query := `
		INSERT INTO sessions (account_id, refresh_jti, ip_address, user_agent, device_type, os, browser,
			country, city, created_at, last_activity, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10, $11)
		RETURNING ` + sessionColumns

	created, err := scanSessionRow(r.db.Pool.QueryRow(ctx, query,
		s.AccountID, s.RefreshJTI, s.IPAddress, s.UserAgent,
		s.Device.DeviceType, s.Device.OS, s.Device.Browser,
		s.Location.Country, s.Location.City,
		s.CreatedAt, s.ExpiresAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return created, nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	return scanSessionRow(r.db.Pool.QueryRow(ctx, query, id))
}

// GetByRefreshJTI finds the session bound to a refresh token
func (r *SessionRepository) GetByRefreshJTI(ctx context.Context, jti string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE refresh_jti = $1`
	return scanSessionRow(r.db.Pool.QueryRow(ctx, query, jti))
}

// ListActive returns unexpired active sessions, most recently used first
func (r *SessionRepository) ListActive(ctx context.Context, accountID string, now time.Time) ([]*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE account_id = $1 AND is_active = TRUE AND expires_at > $2
		ORDER BY last_activity DESC
	`
	rows, err := r.db.Pool.Query(ctx, query, accountID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", database.MapPostgresError(err))
	}
	return scanSessionRows(rows)
}

// Revoke deactivates one session owned by accountID. The boolean reports
// whether this call performed the transition; when false the session was
// already inactive and is returned as stored.
func (r *SessionRepository) Revoke(ctx context.Context, id, accountID, revokedBy string, now time.Time) (*models.Session, bool, error) {
	query := `
		UPDATE sessions
		SET is_active = FALSE, revoked_at = $3, revoked_by = $4
		WHERE id = $1 AND account_id = $2 AND is_active = TRUE
		RETURNING ` + sessionColumns

	s, err := scanSessionRow(r.db.Pool.QueryRow(ctx, query, id, accountID, now, revokedBy))
	if err == nil {
		return s, true, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, false, err
	}

	existing, err := scanSessionRow(r.db.Pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1 AND account_id = $2`, id, accountID))
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// RevokeAll deactivates every active session of the account except those in
// exceptIDs and returns the sessions it revoked.
func (r *SessionRepository) RevokeAll(ctx context.Context, accountID string, exceptIDs []string, revokedBy string, now time.Time) ([]*models.Session, error) {
	if exceptIDs == nil {
		exceptIDs = []string{}
	}
	query := `
		UPDATE sessions
		SET is_active = FALSE, revoked_at = $2, revoked_by = $3
		WHERE account_id = $1 AND is_active = TRUE AND NOT (id::text = ANY($4::text[]))
		RETURNING ` + sessionColumns

	rows, err := r.db.Pool.Query(ctx, query, accountID, now, revokedBy, pq.Array(exceptIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to revoke sessions: %w", database.MapPostgresError(err))
	}
	return scanSessionRows(rows)
}

// Touch bumps last_activity on an active session
func (r *SessionRepository) Touch(ctx context.Context, id string, now time.Time) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE sessions SET last_activity = $2 WHERE id = $1 AND is_active = TRUE`, id, now)
	return database.MapPostgresError(err)
}

// SweepExpired marks expired sessions inactive with revoked_by=system
func (r *SessionRepository) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE sessions
		SET is_active = FALSE, revoked_at = $1, revoked_by = 'system'
		WHERE is_active = TRUE AND expires_at < $1`, now)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
