package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// TrainingRepository defines the interface for training-data access
type TrainingRepository interface {
	ListMetrics(ctx context.Context, limit int) ([]TrainingMetric, error)
	InsertMetric(ctx context.Context, metric *TrainingMetric) error
	ListTrainingSamples(ctx context.Context) ([]TrainingSample, error)
	DatasetStats(ctx context.Context) (*DatasetStats, error)
	// CodeFrequencies returns training-flagged violation codes ordered by
	// frequency, most common first. Input for the heuristic scorer.
	CodeFrequencies(ctx context.Context) ([]CodeFrequency, error)
	RecordFeedback(ctx context.Context, markupID int64, isCorrect bool) error
}

// TrainingRepo implements TrainingRepository using PostgreSQL
type TrainingRepo struct {
	db *sqlx.DB
}

// NewTrainingRepo creates a new TrainingRepo instance
func NewTrainingRepo(db *sqlx.DB) *TrainingRepo {
	return &TrainingRepo{db: db}
}

// ListMetrics returns the most recent training runs
func (r *TrainingRepo) ListMetrics(ctx context.Context, limit int) ([]TrainingMetric, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, model_version, accuracy, precision_score, recall_score, f1_score,
		       training_samples_count, notes, training_date
		FROM ai_training_metrics
		ORDER BY training_date DESC
		LIMIT $1
	`

	var metrics []TrainingMetric
	if err := r.db.SelectContext(ctx, &metrics, query, limit); err != nil {
		return nil, err
	}
	return metrics, nil
}

// InsertMetric records one training run
func (r *TrainingRepo) InsertMetric(ctx context.Context, metric *TrainingMetric) error {
	query := `
		INSERT INTO ai_training_metrics
			(model_version, accuracy, precision_score, recall_score, f1_score, training_samples_count, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, training_date
	`

	return r.db.QueryRowxContext(ctx, query,
		metric.ModelVersion,
		metric.Accuracy,
		metric.Precision,
		metric.Recall,
		metric.F1Score,
		metric.SamplesCount,
		metric.Notes,
	).Scan(&metric.ID, &metric.TrainingDate)
}

// ListTrainingSamples returns materials whose markup is flagged as training data
func (r *TrainingRepo) ListTrainingSamples(ctx context.Context) ([]TrainingSample, error) {
	query := `
		SELECT m.id AS material_id, m.file_name, vm.violation_code, vm.notes,
		       COUNT(mr.id) AS regions_count
		FROM materials m
		JOIN violation_markups vm ON m.id = vm.material_id
		LEFT JOIN markup_regions mr ON m.id = mr.material_id
		WHERE vm.is_training_data = TRUE
		GROUP BY m.id, m.file_name, vm.violation_code, vm.notes, m.created_at
		ORDER BY m.created_at DESC
	`

	var samples []TrainingSample
	if err := r.db.SelectContext(ctx, &samples, query); err != nil {
		return nil, err
	}
	return samples, nil
}

// DatasetStats summarizes the annotation dataset
func (r *TrainingRepo) DatasetStats(ctx context.Context) (*DatasetStats, error) {
	query := `
		SELECT COUNT(*) AS total_samples,
		       COUNT(DISTINCT violation_code) AS violation_types,
		       COALESCE(SUM(CASE WHEN is_training_data THEN 1 ELSE 0 END), 0) AS training_samples
		FROM violation_markups
	`

	stats := &DatasetStats{}
	if err := r.db.GetContext(ctx, stats, query); err != nil {
		return nil, err
	}
	return stats, nil
}

// CodeFrequencies returns violation codes by training-sample count
func (r *TrainingRepo) CodeFrequencies(ctx context.Context) ([]CodeFrequency, error) {
	query := `
		SELECT violation_code, COUNT(*) AS count
		FROM violation_markups
		WHERE is_training_data = TRUE AND violation_code IS NOT NULL
		GROUP BY violation_code
		ORDER BY count DESC, violation_code
	`

	var freqs []CodeFrequency
	if err := r.db.SelectContext(ctx, &freqs, query); err != nil {
		return nil, err
	}
	return freqs, nil
}

// RecordFeedback stores a reviewer verdict on a prediction for one markup
func (r *TrainingRepo) RecordFeedback(ctx context.Context, markupID int64, isCorrect bool) error {
	query := `
		INSERT INTO ai_training_feedback (markup_id, is_correct)
		VALUES ($1, $2)
		ON CONFLICT (markup_id) DO UPDATE SET
			is_correct = EXCLUDED.is_correct,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query, markupID, isCorrect)
	return err
}
