package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Common errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailAlreadyExists = errors.New("email already exists")
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	List(ctx context.Context) ([]User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID) error
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
	SetBlocked(ctx context.Context, id uuid.UUID, blocked bool) error
	SetApproved(ctx context.Context, id uuid.UUID, approved bool) error
	UpdateInfo(ctx context.Context, id uuid.UUID, fullName, role *string) error
	Archive(ctx context.Context, id uuid.UUID) error
}

// userRepository implements UserRepository using PostgreSQL
type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository instance
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, email, password_hash, full_name, role, is_blocked, is_approved, is_archived, created_at, updated_at, last_login`

func scanUser(row pgx.Row) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FullName,
		&user.Role,
		&user.IsBlocked,
		&user.IsApproved,
		&user.IsArchived,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.LastLogin,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// Create inserts a new user. Email is stored lowercase.
func (r *userRepository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (email, password_hash, full_name, role, is_approved)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		strings.ToLower(user.Email),
		user.PasswordHash,
		user.FullName,
		user.Role,
		user.IsApproved,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if strings.Contains(err.Error(), "users_email") {
			return ErrEmailAlreadyExists
		}
		return err
	}

	user.Email = strings.ToLower(user.Email)
	return nil
}

// GetByID retrieves a user by ID, archived or not
func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// GetByEmail retrieves a user by email, case-insensitive. Archived users are
// included; the login flow decides how to respond to them.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

// EmailExists checks if an email is taken, regardless of archived state
func (r *userRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(email) = LOWER($1))`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, email).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// List returns all non-archived users, unapproved first, newest first
func (r *userRepository) List(ctx context.Context) ([]User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE is_archived = FALSE
		ORDER BY is_approved ASC, created_at DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// UpdateLastLogin updates the last_login timestamp for a user
func (r *userRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE users SET last_login = $1 WHERE id = $2`

	result, err := r.pool.Exec(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdatePasswordHash replaces the stored password hash. Archived users are
// skipped, matching the admin update contract.
func (r *userRepository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	query := `
		UPDATE users SET password_hash = $1, updated_at = $2
		WHERE id = $3 AND is_archived = FALSE
	`
	return r.execOnUser(ctx, query, hash, time.Now().UTC(), id)
}

// SetBlocked toggles the is_blocked flag
func (r *userRepository) SetBlocked(ctx context.Context, id uuid.UUID, blocked bool) error {
	query := `
		UPDATE users SET is_blocked = $1, updated_at = $2
		WHERE id = $3 AND is_archived = FALSE
	`
	return r.execOnUser(ctx, query, blocked, time.Now().UTC(), id)
}

// SetApproved toggles the is_approved flag
func (r *userRepository) SetApproved(ctx context.Context, id uuid.UUID, approved bool) error {
	query := `
		UPDATE users SET is_approved = $1, updated_at = $2
		WHERE id = $3 AND is_archived = FALSE
	`
	return r.execOnUser(ctx, query, approved, time.Now().UTC(), id)
}

// UpdateInfo updates full name and/or role when provided
func (r *userRepository) UpdateInfo(ctx context.Context, id uuid.UUID, fullName, role *string) error {
	now := time.Now().UTC()
	if fullName != nil {
		query := `
			UPDATE users SET full_name = $1, updated_at = $2
			WHERE id = $3 AND is_archived = FALSE
		`
		if err := r.execOnUser(ctx, query, *fullName, now, id); err != nil {
			return err
		}
	}
	if role != nil {
		query := `
			UPDATE users SET role = $1, updated_at = $2
			WHERE id = $3 AND is_archived = FALSE
		`
		if err := r.execOnUser(ctx, query, *role, now, id); err != nil {
			return err
		}
	}
	return nil
}

// Archive soft-deletes a user. Rows are never physically removed.
func (r *userRepository) Archive(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE users SET is_archived = TRUE, updated_at = $1 WHERE id = $2`
	return r.execOnUser(ctx, query, time.Now().UTC(), id)
}

func (r *userRepository) execOnUser(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
