package training

import (
	"context"
	"testing"

	"github.com/trafficlens/photo-review/backend/internal/repository"
)

func TestMockScorer(t *testing.T) {
	ctx := context.Background()
	material := &repository.Material{ID: "m-1", FileName: "a.jpg", Status: "pending"}

	t.Run("confidence stays in band", func(t *testing.T) {
		scorer := NewMockScorer(7)
		for i := 0; i < 200; i++ {
			p, err := scorer.Score(ctx, material)
			if err != nil {
				t.Fatalf("Score: %v", err)
			}
			if p.Confidence < 0.80 || p.Confidence >= 0.95 {
				t.Fatalf("confidence = %v, want [0.80, 0.95)", p.Confidence)
			}
		}
	})

	t.Run("same seed yields same sequence", func(t *testing.T) {
		a := NewMockScorer(42)
		b := NewMockScorer(42)
		for i := 0; i < 20; i++ {
			pa, _ := a.Score(ctx, material)
			pb, _ := b.Score(ctx, material)
			if pa.Confidence != pb.Confidence {
				t.Fatalf("step %d: %v != %v", i, pa.Confidence, pb.Confidence)
			}
		}
	})

	t.Run("canned verdict", func(t *testing.T) {
		p, err := NewMockScorer(1).Score(ctx, material)
		if err != nil {
			t.Fatalf("Score: %v", err)
		}
		if !p.HasViolation {
			t.Error("mock always reports a violation")
		}
		if p.ViolationCode == nil || *p.ViolationCode != "12.9.2" {
			t.Errorf("violation code = %v, want 12.9.2", p.ViolationCode)
		}
		if len(p.DetectedObjects) != 2 {
			t.Fatalf("detected objects = %d, want 2", len(p.DetectedObjects))
		}
		vehicle := p.DetectedObjects[0]
		if vehicle.Type != "vehicle" || vehicle.Confidence != 0.95 {
			t.Errorf("first object = %+v, want vehicle at 0.95", vehicle)
		}
		plate := p.DetectedObjects[1]
		if plate.Type != "plate" || plate.BBox != [4]float64{0.25, 0.45, 0.15, 0.08} {
			t.Errorf("second object = %+v, want plate bbox", plate)
		}
	})
}

func TestHeuristicScorer(t *testing.T) {
	ctx := context.Background()
	material := &repository.Material{ID: "m-1", FileName: "a.jpg", Status: "pending"}

	tests := []struct {
		name           string
		freqs          []repository.CodeFrequency
		wantViolation  bool
		wantCode       string
		wantConfidence float64
	}{
		{
			name:          "no training data",
			freqs:         nil,
			wantViolation: false,
		},
		{
			name: "dominant code wins",
			freqs: []repository.CodeFrequency{
				{ViolationCode: "12.9.2", Count: 8},
				{ViolationCode: "12.16.1", Count: 2},
			},
			wantViolation:  true,
			wantCode:       "12.9.2",
			wantConfidence: 0.8,
		},
		{
			name: "small share floored at 0.5",
			freqs: []repository.CodeFrequency{
				{ViolationCode: "12.9.2", Count: 3},
				{ViolationCode: "12.16.1", Count: 3},
				{ViolationCode: "12.12.1", Count: 3},
			},
			wantViolation:  true,
			wantCode:       "12.9.2",
			wantConfidence: 0.5,
		},
		{
			name: "unanimous dataset capped at 0.95",
			freqs: []repository.CodeFrequency{
				{ViolationCode: "12.16.1", Count: 40},
			},
			wantViolation:  true,
			wantCode:       "12.16.1",
			wantConfidence: 0.95,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockTrainingRepository()
			repo.freqs = tt.freqs
			scorer := NewHeuristicScorer(repo)

			p, err := scorer.Score(ctx, material)
			if err != nil {
				t.Fatalf("Score: %v", err)
			}
			if p.HasViolation != tt.wantViolation {
				t.Fatalf("has_violation = %v, want %v", p.HasViolation, tt.wantViolation)
			}
			if !tt.wantViolation {
				if p.Confidence != 0 {
					t.Errorf("confidence = %v, want 0", p.Confidence)
				}
				if p.DetectedObjects == nil {
					t.Error("detected objects must be a non-nil slice")
				}
				return
			}
			if p.ViolationCode == nil || *p.ViolationCode != tt.wantCode {
				t.Errorf("violation code = %v, want %s", p.ViolationCode, tt.wantCode)
			}
			if !almostEqual(p.Confidence, tt.wantConfidence) {
				t.Errorf("confidence = %v, want %v", p.Confidence, tt.wantConfidence)
			}
		})
	}
}
