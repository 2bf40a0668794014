package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/authgate/internal/database"
	"github.com/BradenHooton/authgate/internal/models"
	"github.com/jackc/pgx/v5"
)

// AuthEventRepository is the append-only store behind the audit trail
type AuthEventRepository struct {
	db *database.DB
}

func NewAuthEventRepository(db *database.DB) *AuthEventRepository {
	return &AuthEventRepository{db: db}
}

const authEventColumns = `id, account_id, event_type, success, ip_address, user_agent, details, created_at`

func scanAuthEventRow(row rowScanner) (*models.AuthEvent, error) {
	var e models.AuthEvent
	err := row.Scan(&e.ID, &e.AccountID, &e.EventType, &e.Success, &e.IPAddress, &e.UserAgent, &e.Details, &e.CreatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &e, nil
}

func scanAuthEventRows(rows pgx.Rows) ([]*models.AuthEvent, error) {
	defer rows.Close()

	events := make([]*models.AuthEvent, 0)
	for rows.Next() {
		e, err := scanAuthEventRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auth event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auth event rows: %w", err)
	}
	return events, nil
}

// Create appends an event
func (r *AuthEventRepository) Create(ctx context.Context, event *models.AuthEvent) error {
	query := `
		INSERT INTO auth_events (account_id, event_type, success, ip_address, user_agent, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.db.Pool.Exec(ctx, query,
		event.AccountID, event.EventType, event.Success, event.IPAddress, event.UserAgent, event.Details, createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create auth event: %w", database.MapPostgresError(err))
	}
	return nil
}

// CountFailures counts failed events of one type for an account since the given time
func (r *AuthEventRepository) CountFailures(ctx context.Context, accountID, eventType string, since time.Time) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM auth_events
		WHERE account_id = $1 AND event_type = $2 AND success = FALSE AND created_at >= $3`,
		accountID, eventType, since).Scan(&count)
	return count, database.MapPostgresError(err)
}

// ListByAccount returns an account's events, newest first
func (r *AuthEventRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*models.AuthEvent, error) {
	query := `
		SELECT ` + authEventColumns + `
		FROM auth_events
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Pool.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query auth events: %w", database.MapPostgresError(err))
	}
	return scanAuthEventRows(rows)
}
