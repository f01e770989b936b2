package repository

import (
	"time"

	"github.com/google/uuid"
)

// Role values for User.Role
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Audit failure reasons recorded in login_logs
const (
	FailureInvalidCredentials = "invalid_credentials"
	FailureNotApproved        = "not_approved"
	FailureBlocked            = "blocked"
)

// User represents a reviewer account in the database
type User struct {
	ID           uuid.UUID  `db:"id"`
	Email        string     `db:"email"`
	PasswordHash string     `db:"password_hash"`
	FullName     string     `db:"full_name"`
	Role         string     `db:"role"`
	IsBlocked    bool       `db:"is_blocked"`
	IsApproved   bool       `db:"is_approved"`
	IsArchived   bool       `db:"is_archived"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
	LastLogin    *time.Time `db:"last_login"`
}

// Session represents an authentication session in the database.
// Only the SHA-256 hash of the opaque token is stored.
type Session struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	TokenHash string    `db:"token_hash"`
	IPAddress string    `db:"ip_address"`
	UserAgent string    `db:"user_agent"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

// LoginLog is an append-only audit record of a login attempt
type LoginLog struct {
	ID            uuid.UUID  `db:"id"`
	UserID        *uuid.UUID `db:"user_id"`
	Email         string     `db:"email"`
	IPAddress     string     `db:"ip_address"`
	UserAgent     string     `db:"user_agent"`
	Success       bool       `db:"success"`
	FailureReason *string    `db:"failure_reason"`
	CreatedAt     time.Time  `db:"created_at"`
}

// Material represents a photo evidence record. IDs are client-supplied
// strings, matching the upload tool's identifiers.
type Material struct {
	ID            string     `db:"id" json:"id"`
	FileName      string     `db:"file_name" json:"fileName"`
	CapturedAt    *time.Time `db:"captured_at" json:"timestamp,omitempty"`
	PreviewURL    *string    `db:"preview_url" json:"preview,omitempty"`
	Status        string     `db:"status" json:"status"`
	ViolationType *string    `db:"violation_type" json:"violationType,omitempty"`
	ViolationCode *string    `db:"violation_code" json:"violationCode,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updatedAt"`
}

// MaterialUpdate holds the mutable material fields for partial updates
type MaterialUpdate struct {
	Status        *string
	ViolationType *string
	ViolationCode *string
}

// Markup represents the human annotation of one material
type Markup struct {
	ID             int64     `db:"id" json:"id"`
	MaterialID     string    `db:"material_id" json:"material_id"`
	ViolationCode  *string   `db:"violation_code" json:"violation_code,omitempty"`
	Notes          string    `db:"notes" json:"notes"`
	IsTrainingData bool      `db:"is_training_data" json:"is_training_data"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// MarkupRegion is a rectangular annotation on a material
type MarkupRegion struct {
	ID         string  `db:"id" json:"id"`
	MaterialID string  `db:"material_id" json:"-"`
	X          float64 `db:"x" json:"x"`
	Y          float64 `db:"y" json:"y"`
	Width      float64 `db:"width" json:"width"`
	Height     float64 `db:"height" json:"height"`
	Label      string  `db:"label" json:"label"`
	RegionType string  `db:"region_type" json:"type"`
}

// ViolationParameter is a named measurement attached to a markup
type ViolationParameter struct {
	ID          int64  `db:"id" json:"id"`
	MarkupID    int64  `db:"markup_id" json:"markup_id"`
	ParameterID string `db:"parameter_id" json:"parameter_id"`
	Name        string `db:"parameter_name" json:"parameter_name"`
	Value       string `db:"value" json:"value"`
}

// MarkupSummary is a markup row joined with its material for list responses
type MarkupSummary struct {
	Markup
	FileName     string `db:"file_name" json:"file_name"`
	RegionsCount int    `db:"regions_count" json:"regions_count"`
}

// TrainingSample is a training-flagged markup with its region count
type TrainingSample struct {
	MaterialID    string  `db:"material_id" json:"material_id"`
	FileName      string  `db:"file_name" json:"file_name"`
	ViolationCode *string `db:"violation_code" json:"violation_code,omitempty"`
	Notes         string  `db:"notes" json:"notes"`
	RegionsCount  int     `db:"regions_count" json:"regions_count"`
}

// DatasetStats summarizes the annotation dataset
type DatasetStats struct {
	TotalSamples    int `db:"total_samples" json:"total_samples"`
	ViolationTypes  int `db:"violation_types" json:"violation_types"`
	TrainingSamples int `db:"training_samples" json:"training_samples"`
}

// CodeFrequency is a violation code with its training-sample count
type CodeFrequency struct {
	ViolationCode string `db:"violation_code" json:"violation_code"`
	Count         int    `db:"count" json:"count"`
}

// TrainingMetric records one model training run
type TrainingMetric struct {
	ID           int64     `db:"id" json:"id"`
	ModelVersion string    `db:"model_version" json:"model_version"`
	Accuracy     float64   `db:"accuracy" json:"accuracy"`
	Precision    float64   `db:"precision_score" json:"precision"`
	Recall       float64   `db:"recall_score" json:"recall"`
	F1Score      float64   `db:"f1_score" json:"f1_score"`
	SamplesCount int       `db:"training_samples_count" json:"training_samples_count"`
	Notes        string    `db:"notes" json:"notes"`
	TrainingDate time.Time `db:"training_date" json:"training_date"`
}
