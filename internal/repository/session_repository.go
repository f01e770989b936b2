package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Session repository errors
var (
	ErrSessionNotFound = errors.New("session not found")
)

// SessionRepository defines the interface for session data access
type SessionRepository interface {
	Create(ctx context.Context, session *Session) error
	// ResolveUser returns the owner of an unexpired session joined to a
	// non-archived user, or ErrSessionNotFound.
	ResolveUser(ctx context.Context, tokenHash string) (*User, error)
	// Expire sets expires_at to now for the matching session. Unknown
	// tokens are not an error; logout is idempotent.
	Expire(ctx context.Context, tokenHash string) error
}

// sessionRepository implements SessionRepository using PostgreSQL
type sessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository instance
func NewSessionRepository(pool *pgxpool.Pool) SessionRepository {
	return &sessionRepository{pool: pool}
}

// Create inserts a new session row
func (r *sessionRepository) Create(ctx context.Context, session *Session) error {
	query := `
		INSERT INTO user_sessions (user_id, token_hash, ip_address, user_agent, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	return r.pool.QueryRow(ctx, query,
		session.UserID,
		session.TokenHash,
		session.IPAddress,
		session.UserAgent,
		session.ExpiresAt,
	).Scan(&session.ID, &session.CreatedAt)
}

// ResolveUser resolves a token hash to its owning user. Expiry is absolute:
// the row must satisfy expires_at > now, and the owner must not be archived.
func (r *sessionRepository) ResolveUser(ctx context.Context, tokenHash string) (*User, error) {
	query := `
		SELECT ` + prefixedUserColumns + `
		FROM user_sessions s
		JOIN users u ON s.user_id = u.id
		WHERE s.token_hash = $1 AND s.expires_at > $2 AND u.is_archived = FALSE
	`

	user, err := scanUser(r.pool.QueryRow(ctx, query, tokenHash, time.Now().UTC()))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return user, nil
}

// Expire invalidates a session immediately. The row is retained for audit.
func (r *sessionRepository) Expire(ctx context.Context, tokenHash string) error {
	query := `UPDATE user_sessions SET expires_at = $1 WHERE token_hash = $2`

	_, err := r.pool.Exec(ctx, query, time.Now().UTC(), tokenHash)
	return err
}

const prefixedUserColumns = `u.id, u.email, u.password_hash, u.full_name, u.role, u.is_blocked, u.is_approved, u.is_archived, u.created_at, u.updated_at, u.last_login`
