package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Material repository errors
var (
	ErrMaterialNotFound = errors.New("material not found")
)

// MaterialRepository defines the interface for material data access
type MaterialRepository interface {
	List(ctx context.Context) ([]Material, error)
	GetByID(ctx context.Context, id string) (*Material, error)
	Create(ctx context.Context, material *Material) error
	Update(ctx context.Context, id string, update MaterialUpdate) error
	Delete(ctx context.Context, ids []string) (int, error)
	Upsert(ctx context.Context, materials []Material) (int, error)
}

// MaterialRepo implements MaterialRepository using PostgreSQL
type MaterialRepo struct {
	db *sqlx.DB
}

// NewMaterialRepo creates a new MaterialRepo instance
func NewMaterialRepo(db *sqlx.DB) *MaterialRepo {
	return &MaterialRepo{db: db}
}

// List returns all materials, newest capture first
func (r *MaterialRepo) List(ctx context.Context) ([]Material, error) {
	query := `
		SELECT id, file_name, captured_at, preview_url, status,
		       violation_type, violation_code, created_at, updated_at
		FROM materials
		ORDER BY captured_at DESC NULLS LAST
	`

	var materials []Material
	if err := r.db.SelectContext(ctx, &materials, query); err != nil {
		return nil, err
	}
	return materials, nil
}

// GetByID retrieves a single material
func (r *MaterialRepo) GetByID(ctx context.Context, id string) (*Material, error) {
	query := `
		SELECT id, file_name, captured_at, preview_url, status,
		       violation_type, violation_code, created_at, updated_at
		FROM materials
		WHERE id = $1
	`

	material := &Material{}
	if err := r.db.GetContext(ctx, material, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMaterialNotFound
		}
		return nil, err
	}
	return material, nil
}

// Create inserts a new material row
func (r *MaterialRepo) Create(ctx context.Context, material *Material) error {
	query := `
		INSERT INTO materials (id, file_name, captured_at, preview_url, status, violation_type, violation_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	if material.Status == "" {
		material.Status = "pending"
	}

	return r.db.QueryRowxContext(ctx, query,
		material.ID,
		material.FileName,
		material.CapturedAt,
		material.PreviewURL,
		material.Status,
		material.ViolationType,
		material.ViolationCode,
	).Scan(&material.CreatedAt, &material.UpdatedAt)
}

// Update applies a partial update built from the provided fields
func (r *MaterialRepo) Update(ctx context.Context, id string, update MaterialUpdate) error {
	setParts := []string{}
	args := []interface{}{}
	argIdx := 1

	if update.Status != nil {
		setParts = append(setParts, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *update.Status)
		argIdx++
	}
	if update.ViolationType != nil {
		setParts = append(setParts, fmt.Sprintf("violation_type = $%d", argIdx))
		args = append(args, *update.ViolationType)
		argIdx++
	}
	if update.ViolationCode != nil {
		setParts = append(setParts, fmt.Sprintf("violation_code = $%d", argIdx))
		args = append(args, *update.ViolationCode)
		argIdx++
	}

	setParts = append(setParts, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE materials SET %s WHERE id = $%d", strings.Join(setParts, ", "), argIdx)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrMaterialNotFound
	}
	return nil
}

// Delete removes materials by ID and returns the number deleted
func (r *MaterialRepo) Delete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(`DELETE FROM materials WHERE id IN (?)`, ids)
	if err != nil {
		return 0, err
	}
	query = r.db.Rebind(query)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// Upsert inserts materials, updating review fields on ID conflict
func (r *MaterialRepo) Upsert(ctx context.Context, materials []Material) (int, error) {
	query := `
		INSERT INTO materials (id, file_name, captured_at, preview_url, status, violation_type, violation_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			violation_type = EXCLUDED.violation_type,
			violation_code = EXCLUDED.violation_code,
			updated_at = CURRENT_TIMESTAMP
	`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	count := 0
	for i := range materials {
		m := &materials[i]
		if m.Status == "" {
			m.Status = "pending"
		}
		if _, err := tx.ExecContext(ctx, query,
			m.ID, m.FileName, m.CapturedAt, m.PreviewURL,
			m.Status, m.ViolationType, m.ViolationCode,
		); err != nil {
			return 0, err
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}
