// Package markup implements violation annotation storage for materials.
package markup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"

	"github.com/trafficlens/photo-review/backend/internal/appctx"
	"github.com/trafficlens/photo-review/backend/internal/repository"
)

// Service errors
var (
	ErrMarkupNotFound   = errors.New("markup not found")
	ErrMaterialRequired = errors.New("material_id is required")
)

// Service handles markup business logic
type Service struct {
	markups   repository.MarkupRepository
	materials repository.MaterialRepository
	sanitizer *bluemonday.Policy
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewService creates a new markup service
func NewService(markups repository.MarkupRepository, materials repository.MaterialRepository, logger *slog.Logger) *Service {
	return &Service{
		markups:   markups,
		materials: materials,
		sanitizer: bluemonday.StrictPolicy(),
		validate:  validator.New(),
		logger:    logger,
	}
}

// RegionRequest is one rectangular annotation in a save request
type RegionRequest struct {
	ID     string  `json:"id" validate:"required"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width" validate:"gte=0"`
	Height float64 `json:"height" validate:"gte=0"`
	Label  string  `json:"label"`
	Type   string  `json:"type"`
}

// ParameterRequest is one named measurement in a save request
type ParameterRequest struct {
	ParameterID string `json:"parameter_id" validate:"required"`
	Name        string `json:"parameter_name"`
	Value       string `json:"value"`
}

// SaveRequest is the payload for creating or replacing a markup
type SaveRequest struct {
	MaterialID     string             `json:"material_id" validate:"required"`
	ViolationCode  *string            `json:"violation_code,omitempty"`
	Notes          string             `json:"notes"`
	IsTrainingData bool               `json:"is_training_data"`
	Regions        []RegionRequest    `json:"regions" validate:"omitempty,dive"`
	Parameters     []ParameterRequest `json:"parameters" validate:"omitempty,dive"`
}

// MarkupDetail is a markup with its regions and parameters
type MarkupDetail struct {
	repository.Markup
	Regions    []repository.MarkupRegion       `json:"regions"`
	Parameters []repository.ViolationParameter `json:"parameters"`
}

// Get returns the markup for one material with regions and parameters
func (s *Service) Get(ctx context.Context, materialID string) (*MarkupDetail, error) {
	if materialID == "" {
		return nil, ErrMaterialRequired
	}

	markup, regions, params, err := s.markups.GetByMaterialID(ctx, materialID)
	if err != nil {
		if errors.Is(err, repository.ErrMarkupNotFound) {
			return nil, ErrMarkupNotFound
		}
		return nil, fmt.Errorf("failed to get markup: %w", err)
	}

	if regions == nil {
		regions = []repository.MarkupRegion{}
	}
	if params == nil {
		params = []repository.ViolationParameter{}
	}
	return &MarkupDetail{Markup: *markup, Regions: regions, Parameters: params}, nil
}

// List returns all markups joined with their material file names
func (s *Service) List(ctx context.Context) ([]repository.MarkupSummary, error) {
	summaries, err := s.markups.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list markups: %w", err)
	}
	return summaries, nil
}

// Save creates or fully replaces the markup of one material. Regions
// and parameters are replaced as a set; saving twice with the same
// payload is idempotent.
func (s *Service) Save(ctx context.Context, req SaveRequest) (*MarkupDetail, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	if _, err := s.materials.GetByID(ctx, req.MaterialID); err != nil {
		if errors.Is(err, repository.ErrMaterialNotFound) {
			return nil, ErrMarkupNotFound
		}
		return nil, fmt.Errorf("failed to check material: %w", err)
	}

	markup := &repository.Markup{
		MaterialID:     req.MaterialID,
		ViolationCode:  req.ViolationCode,
		Notes:          s.sanitizer.Sanitize(req.Notes),
		IsTrainingData: req.IsTrainingData,
	}

	regions := make([]repository.MarkupRegion, 0, len(req.Regions))
	for _, reg := range req.Regions {
		regions = append(regions, repository.MarkupRegion{
			ID:         reg.ID,
			MaterialID: req.MaterialID,
			X:          reg.X,
			Y:          reg.Y,
			Width:      reg.Width,
			Height:     reg.Height,
			Label:      s.sanitizer.Sanitize(reg.Label),
			RegionType: reg.Type,
		})
	}

	params := make([]repository.ViolationParameter, 0, len(req.Parameters))
	for _, p := range req.Parameters {
		params = append(params, repository.ViolationParameter{
			ParameterID: p.ParameterID,
			Name:        s.sanitizer.Sanitize(p.Name),
			Value:       s.sanitizer.Sanitize(p.Value),
		})
	}

	if err := s.markups.Upsert(ctx, markup, regions, params); err != nil {
		return nil, fmt.Errorf("failed to save markup: %w", err)
	}

	attrs := []any{
		slog.String("material_id", req.MaterialID),
		slog.Int("regions", len(regions)),
	}
	if userID, ok := appctx.UserID(ctx); ok {
		attrs = append(attrs, slog.String("user_id", userID.String()))
	}
	s.logger.Info("markup saved", attrs...)
	return &MarkupDetail{Markup: *markup, Regions: regions, Parameters: params}, nil
}

// UpdateRequest is the payload for updating markup fields without
// touching regions.
type UpdateRequest struct {
	MaterialID     string  `json:"material_id" validate:"required"`
	ViolationCode  *string `json:"violation_code,omitempty"`
	Notes          string  `json:"notes"`
	IsTrainingData bool    `json:"is_training_data"`
}

// Update modifies the markup row of one material
func (s *Service) Update(ctx context.Context, req UpdateRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return err
	}

	markup := &repository.Markup{
		MaterialID:     req.MaterialID,
		ViolationCode:  req.ViolationCode,
		Notes:          s.sanitizer.Sanitize(req.Notes),
		IsTrainingData: req.IsTrainingData,
	}
	if err := s.markups.Update(ctx, markup); err != nil {
		if errors.Is(err, repository.ErrMarkupNotFound) {
			return ErrMarkupNotFound
		}
		return fmt.Errorf("failed to update markup: %w", err)
	}
	return nil
}
