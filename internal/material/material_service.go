// Package material implements CRUD for photo evidence records.
package material

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trafficlens/photo-review/backend/internal/repository"
	"github.com/trafficlens/photo-review/backend/internal/storage"
)

// Service errors
var (
	ErrMaterialNotFound = errors.New("material not found")
	ErrNoIDs            = errors.New("at least one material id is required")
)

// PhotoStore is the subset of the storage layer the service needs.
// Nil disables external preview storage and previews stay inline.
type PhotoStore interface {
	UploadPreview(ctx context.Context, materialID, contentType string, data []byte) (string, error)
	PresignURL(ctx context.Context, key string) (string, error)
	DeletePreviews(ctx context.Context, materialIDs []string) error
}

// Service handles material business logic
type Service struct {
	materials repository.MaterialRepository
	photos    PhotoStore
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewService creates a new material service
func NewService(materials repository.MaterialRepository, photos PhotoStore, logger *slog.Logger) *Service {
	return &Service{
		materials: materials,
		photos:    photos,
		validate:  validator.New(),
		logger:    logger,
	}
}

// CreateRequest is the payload for creating one material
type CreateRequest struct {
	ID            string  `json:"id" validate:"required,max=128"`
	FileName      string  `json:"fileName" validate:"required,max=255"`
	Timestamp     *string `json:"timestamp,omitempty"`
	Preview       *string `json:"preview,omitempty"`
	Status        string  `json:"status,omitempty" validate:"omitempty,oneof=pending processed rejected"`
	ViolationType *string `json:"violationType,omitempty"`
	ViolationCode *string `json:"violationCode,omitempty"`
}

// UpdateRequest is the payload for a partial material update
type UpdateRequest struct {
	ID            string  `json:"id" validate:"required"`
	Status        *string `json:"status,omitempty" validate:"omitempty,oneof=pending processed rejected"`
	ViolationType *string `json:"violationType,omitempty"`
	ViolationCode *string `json:"violationCode,omitempty"`
}

// List returns all materials, resolving stored preview keys into
// presigned URLs when a photo store is configured.
func (s *Service) List(ctx context.Context) ([]repository.Material, error) {
	materials, err := s.materials.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list materials: %w", err)
	}

	if s.photos != nil {
		for i := range materials {
			s.resolvePreview(ctx, &materials[i])
		}
	}
	return materials, nil
}

// Create validates and inserts one material
func (s *Service) Create(ctx context.Context, req CreateRequest) (*repository.Material, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	material := &repository.Material{
		ID:            strings.TrimSpace(req.ID),
		FileName:      req.FileName,
		CapturedAt:    parseTimestamp(req.Timestamp),
		Status:        req.Status,
		ViolationType: req.ViolationType,
		ViolationCode: req.ViolationCode,
	}
	material.PreviewURL = s.storePreview(ctx, material.ID, req.Preview)

	if err := s.materials.Create(ctx, material); err != nil {
		return nil, fmt.Errorf("failed to create material: %w", err)
	}

	s.logger.Info("material created", slog.String("material_id", material.ID))
	return material, nil
}

// Update applies a partial update to one material
func (s *Service) Update(ctx context.Context, req UpdateRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return err
	}

	err := s.materials.Update(ctx, req.ID, repository.MaterialUpdate{
		Status:        req.Status,
		ViolationType: req.ViolationType,
		ViolationCode: req.ViolationCode,
	})
	if err != nil {
		if errors.Is(err, repository.ErrMaterialNotFound) {
			return ErrMaterialNotFound
		}
		return fmt.Errorf("failed to update material: %w", err)
	}
	return nil
}

// Delete removes materials and their stored previews
func (s *Service) Delete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, ErrNoIDs
	}

	deleted, err := s.materials.Delete(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete materials: %w", err)
	}

	if s.photos != nil {
		if err := s.photos.DeletePreviews(ctx, ids); err != nil {
			s.logger.Warn("failed to delete previews", slog.String("error", err.Error()))
		}
	}

	s.logger.Info("materials deleted", slog.Int("count", deleted))
	return deleted, nil
}

// BulkCreate upserts a batch of materials. Re-uploading an existing ID
// refreshes its status and violation fields; the stored file metadata
// and preview are left as first uploaded.
func (s *Service) BulkCreate(ctx context.Context, reqs []CreateRequest) (int, error) {
	if len(reqs) == 0 {
		return 0, ErrNoIDs
	}

	materials := make([]repository.Material, 0, len(reqs))
	for _, req := range reqs {
		if err := s.validate.Struct(req); err != nil {
			return 0, err
		}
		m := repository.Material{
			ID:            strings.TrimSpace(req.ID),
			FileName:      req.FileName,
			CapturedAt:    parseTimestamp(req.Timestamp),
			Status:        req.Status,
			ViolationType: req.ViolationType,
			ViolationCode: req.ViolationCode,
		}
		m.PreviewURL = s.storePreview(ctx, m.ID, req.Preview)
		materials = append(materials, m)
	}

	count, err := s.materials.Upsert(ctx, materials)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk create materials: %w", err)
	}

	s.logger.Info("materials bulk created", slog.Int("count", count))
	return count, nil
}

// storePreview uploads a base64 data URL preview to the photo store
// and returns the storage key. Non data-URL values and upload
// failures leave the preview inline.
func (s *Service) storePreview(ctx context.Context, materialID string, preview *string) *string {
	if preview == nil || *preview == "" {
		return nil
	}
	if s.photos == nil {
		return preview
	}

	contentType, data, ok := storage.DecodeDataURL(*preview)
	if !ok {
		return preview
	}

	key, err := s.photos.UploadPreview(ctx, materialID, contentType, data)
	if err != nil {
		s.logger.Warn("failed to store preview, keeping inline",
			slog.String("material_id", materialID),
			slog.String("error", err.Error()),
		)
		return preview
	}
	return &key
}

func (s *Service) resolvePreview(ctx context.Context, m *repository.Material) {
	if m.PreviewURL == nil || !strings.HasPrefix(*m.PreviewURL, "previews/") {
		return
	}
	url, err := s.photos.PresignURL(ctx, *m.PreviewURL)
	if err != nil {
		s.logger.Warn("failed to presign preview URL",
			slog.String("material_id", m.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	m.PreviewURL = &url
}

// parseTimestamp accepts RFC 3339 or date-only values from upload tools
func parseTimestamp(raw *string) *time.Time {
	if raw == nil || *raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, *raw); err == nil {
			return &t
		}
	}
	return nil
}
