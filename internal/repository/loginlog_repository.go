package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LoginLogRepository defines the interface for the append-only audit log
type LoginLogRepository interface {
	Record(ctx context.Context, entry *LoginLog) error
	List(ctx context.Context, userID *uuid.UUID, limit int) ([]LoginLog, error)
}

// loginLogRepository implements LoginLogRepository using PostgreSQL
type loginLogRepository struct {
	pool *pgxpool.Pool
}

// NewLoginLogRepository creates a new LoginLogRepository instance
func NewLoginLogRepository(pool *pgxpool.Pool) LoginLogRepository {
	return &loginLogRepository{pool: pool}
}

// Record appends one audit entry. Entries are never mutated or deleted.
func (r *loginLogRepository) Record(ctx context.Context, entry *LoginLog) error {
	query := `
		INSERT INTO login_logs (user_id, email, ip_address, user_agent, success, failure_reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	return r.pool.QueryRow(ctx, query,
		entry.UserID,
		entry.Email,
		entry.IPAddress,
		entry.UserAgent,
		entry.Success,
		entry.FailureReason,
	).Scan(&entry.ID, &entry.CreatedAt)
}

// List returns the latest audit entries, optionally filtered by user
func (r *loginLogRepository) List(ctx context.Context, userID *uuid.UUID, limit int) ([]LoginLog, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, user_id, email, ip_address, user_agent, success, failure_reason, created_at
		FROM login_logs
	`
	args := []interface{}{}
	if userID != nil {
		query += ` WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
		args = append(args, *userID, limit)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []LoginLog
	for rows.Next() {
		var entry LoginLog
		err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.Email,
			&entry.IPAddress,
			&entry.UserAgent,
			&entry.Success,
			&entry.FailureReason,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}
