package training

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/trafficlens/photo-review/backend/internal/repository"
)

// DetectedObject is one object found on a photo by the scorer
type DetectedObject struct {
	Type       string     `json:"type"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"`
}

// Prediction is the scorer verdict for one material
type Prediction struct {
	HasViolation    bool             `json:"has_violation"`
	Confidence      float64          `json:"confidence"`
	ViolationCode   *string          `json:"violation_code,omitempty"`
	ViolationType   *string          `json:"violation_type,omitempty"`
	DetectedObjects []DetectedObject `json:"detected_objects"`
}

// ViolationScorer produces a violation verdict for a material.
// Implementations must be safe for concurrent use.
type ViolationScorer interface {
	Score(ctx context.Context, material *repository.Material) (*Prediction, error)
	// Name identifies the strategy in logs and metrics
	Name() string
}

// cannedObjects is the fixed detection set every scorer reports
func cannedObjects() []DetectedObject {
	return []DetectedObject{
		{Type: "vehicle", Confidence: 0.95, BBox: [4]float64{0.2, 0.3, 0.4, 0.5}},
		{Type: "plate", Confidence: 0.92, BBox: [4]float64{0.25, 0.45, 0.15, 0.08}},
	}
}

// MockScorer returns a canned verdict with a seeded random confidence.
// It stands in for the vision model in development and tests.
type MockScorer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewMockScorer creates a mock scorer. The same seed yields the same
// confidence sequence.
func NewMockScorer(seed int64) *MockScorer {
	return &MockScorer{rng: rand.New(rand.NewSource(seed))}
}

// Name identifies the mock strategy
func (s *MockScorer) Name() string { return "mock" }

// Score always reports a speeding violation with confidence in [0.80, 0.95)
func (s *MockScorer) Score(ctx context.Context, material *repository.Material) (*Prediction, error) {
	s.mu.Lock()
	confidence := 0.80 + s.rng.Float64()*0.15
	s.mu.Unlock()

	code := "12.9.2"
	violationType := "Speeding"
	return &Prediction{
		HasViolation:    true,
		Confidence:      confidence,
		ViolationCode:   &code,
		ViolationType:   &violationType,
		DetectedObjects: cannedObjects(),
	}, nil
}

// HeuristicScorer derives its verdict from the persisted training
// annotations: the most frequent violation code wins, with confidence
// growing with its share of the dataset.
type HeuristicScorer struct {
	training repository.TrainingRepository
}

// NewHeuristicScorer creates a heuristic scorer over the training data
func NewHeuristicScorer(training repository.TrainingRepository) *HeuristicScorer {
	return &HeuristicScorer{training: training}
}

// Name identifies the heuristic strategy
func (s *HeuristicScorer) Name() string { return "heuristic" }

// Score predicts the dominant violation code of the training set.
// Without any training data it reports no violation at zero confidence.
func (s *HeuristicScorer) Score(ctx context.Context, material *repository.Material) (*Prediction, error) {
	freqs, err := s.training.CodeFrequencies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load code frequencies: %w", err)
	}

	if len(freqs) == 0 {
		return &Prediction{
			HasViolation:    false,
			Confidence:      0,
			DetectedObjects: []DetectedObject{},
		}, nil
	}

	total := 0
	for _, f := range freqs {
		total += f.Count
	}

	top := freqs[0]
	// Share of the dominant code, floored so a small dataset still
	// produces a usable signal and capped below certainty.
	confidence := float64(top.Count) / float64(total)
	if confidence < 0.5 {
		confidence = 0.5
	}
	if confidence > 0.95 {
		confidence = 0.95
	}

	code := top.ViolationCode
	return &Prediction{
		HasViolation:    true,
		Confidence:      confidence,
		ViolationCode:   &code,
		DetectedObjects: cannedObjects(),
	}, nil
}
