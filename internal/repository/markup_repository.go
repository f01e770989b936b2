package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// Markup repository errors
var (
	ErrMarkupNotFound = errors.New("markup not found")
)

// MarkupRepository defines the interface for markup data access
type MarkupRepository interface {
	GetByMaterialID(ctx context.Context, materialID string) (*Markup, []MarkupRegion, []ViolationParameter, error)
	List(ctx context.Context) ([]MarkupSummary, error)
	// Upsert saves the markup for a material along with its regions and
	// parameters, replacing previous regions/parameters in one transaction.
	Upsert(ctx context.Context, markup *Markup, regions []MarkupRegion, params []ViolationParameter) error
	Update(ctx context.Context, markup *Markup) error
}

// MarkupRepo implements MarkupRepository using PostgreSQL
type MarkupRepo struct {
	db *sqlx.DB
}

// NewMarkupRepo creates a new MarkupRepo instance
func NewMarkupRepo(db *sqlx.DB) *MarkupRepo {
	return &MarkupRepo{db: db}
}

// GetByMaterialID returns the markup for a material with its regions and parameters
func (r *MarkupRepo) GetByMaterialID(ctx context.Context, materialID string) (*Markup, []MarkupRegion, []ViolationParameter, error) {
	markup := &Markup{}
	query := `
		SELECT id, material_id, violation_code, notes, is_training_data, created_at, updated_at
		FROM violation_markups
		WHERE material_id = $1
	`
	if err := r.db.GetContext(ctx, markup, query, materialID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil, ErrMarkupNotFound
		}
		return nil, nil, nil, err
	}

	var regions []MarkupRegion
	regionQuery := `
		SELECT id, material_id, x, y, width, height, label, region_type
		FROM markup_regions
		WHERE material_id = $1
		ORDER BY id
	`
	if err := r.db.SelectContext(ctx, &regions, regionQuery, materialID); err != nil {
		return nil, nil, nil, err
	}

	var params []ViolationParameter
	paramQuery := `
		SELECT id, markup_id, parameter_id, parameter_name, value
		FROM violation_parameters
		WHERE markup_id = $1
		ORDER BY id
	`
	if err := r.db.SelectContext(ctx, &params, paramQuery, markup.ID); err != nil {
		return nil, nil, nil, err
	}

	return markup, regions, params, nil
}

// List returns all markups joined with their material and region count
func (r *MarkupRepo) List(ctx context.Context) ([]MarkupSummary, error) {
	query := `
		SELECT vm.id, vm.material_id, vm.violation_code, vm.notes, vm.is_training_data,
		       vm.created_at, vm.updated_at, m.file_name,
		       COUNT(mr.id) AS regions_count
		FROM violation_markups vm
		JOIN materials m ON vm.material_id = m.id
		LEFT JOIN markup_regions mr ON vm.material_id = mr.material_id
		GROUP BY vm.id, m.file_name
		ORDER BY vm.created_at DESC
	`

	var markups []MarkupSummary
	if err := r.db.SelectContext(ctx, &markups, query); err != nil {
		return nil, err
	}
	return markups, nil
}

// Upsert stores a markup and replaces its regions and parameters atomically
func (r *MarkupRepo) Upsert(ctx context.Context, markup *Markup, regions []MarkupRegion, params []ViolationParameter) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	markupQuery := `
		INSERT INTO violation_markups (material_id, violation_code, notes, is_training_data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (material_id) DO UPDATE SET
			violation_code = EXCLUDED.violation_code,
			notes = EXCLUDED.notes,
			is_training_data = EXCLUDED.is_training_data,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRowxContext(ctx, markupQuery,
		markup.MaterialID,
		markup.ViolationCode,
		markup.Notes,
		markup.IsTrainingData,
	).Scan(&markup.ID, &markup.CreatedAt, &markup.UpdatedAt)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM markup_regions WHERE material_id = $1`, markup.MaterialID); err != nil {
		return err
	}
	regionQuery := `
		INSERT INTO markup_regions (id, material_id, x, y, width, height, label, region_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, region := range regions {
		if _, err := tx.ExecContext(ctx, regionQuery,
			region.ID, markup.MaterialID,
			region.X, region.Y, region.Width, region.Height,
			region.Label, region.RegionType,
		); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM violation_parameters WHERE markup_id = $1`, markup.ID); err != nil {
		return err
	}
	paramQuery := `
		INSERT INTO violation_parameters (markup_id, parameter_id, parameter_name, value)
		VALUES ($1, $2, $3, $4)
	`
	for _, param := range params {
		if _, err := tx.ExecContext(ctx, paramQuery,
			markup.ID, param.ParameterID, param.Name, param.Value,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Update modifies an existing markup without touching regions or parameters
func (r *MarkupRepo) Update(ctx context.Context, markup *Markup) error {
	query := `
		UPDATE violation_markups
		SET violation_code = $1, notes = $2, is_training_data = $3, updated_at = CURRENT_TIMESTAMP
		WHERE material_id = $4
		RETURNING id
	`

	err := r.db.QueryRowxContext(ctx, query,
		markup.ViolationCode,
		markup.Notes,
		markup.IsTrainingData,
		markup.MaterialID,
	).Scan(&markup.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrMarkupNotFound
		}
		return err
	}
	return nil
}
