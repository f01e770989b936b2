// Package users implements the admin-only user management operations.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/trafficlens/photo-review/backend/internal/auth"
	"github.com/trafficlens/photo-review/backend/internal/repository"
)

// Service errors
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrInvalidRole   = errors.New("role must be user or admin")
	ErrUnknownAction = errors.New("unknown update action")
)

// Service handles user management business logic
type Service struct {
	users     repository.UserRepository
	loginLogs repository.LoginLogRepository
	logger    *slog.Logger
}

// NewService creates a new user management service
func NewService(users repository.UserRepository, loginLogs repository.LoginLogRepository, logger *slog.Logger) *Service {
	return &Service{users: users, loginLogs: loginLogs, logger: logger}
}

// List returns all non-archived accounts, pending approvals first.
func (s *Service) List(ctx context.Context) ([]auth.UserProfile, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	profiles := make([]auth.UserProfile, 0, len(users))
	for i := range users {
		profiles = append(profiles, profileOf(&users[i]))
	}
	return profiles, nil
}

// LoginLogs returns the most recent audit entries, optionally scoped
// to one user.
func (s *Service) LoginLogs(ctx context.Context, userID *uuid.UUID, limit int) ([]repository.LoginLog, error) {
	logs, err := s.loginLogs.List(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list login logs: %w", err)
	}
	return logs, nil
}

// Create adds a pre-approved account on behalf of an administrator.
// Validation matches self-service registration except approval.
func (s *Service) Create(ctx context.Context, email, password, fullName, role string) (*auth.UserProfile, error) {
	email = auth.NormalizeEmail(email)
	if email == "" {
		return nil, auth.ErrEmailRequired
	}
	if !strings.Contains(email, "@") {
		return nil, auth.ErrInvalidEmail
	}
	if password == "" {
		return nil, auth.ErrPasswordRequired
	}
	if err := auth.ValidatePassword(password); err != nil {
		return nil, err
	}
	if role == "" {
		role = repository.RoleUser
	}
	if role != repository.RoleUser && role != repository.RoleAdmin {
		return nil, ErrInvalidRole
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &repository.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(fullName),
		Role:         role,
		IsApproved:   true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailAlreadyExists) {
			return nil, auth.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user created by admin",
		slog.String("user_id", user.ID.String()),
		slog.String("email", user.Email),
		slog.String("role", user.Role),
	)
	profile := profileOf(user)
	return &profile, nil
}

// UpdateRequest carries the body of a PUT /users call
type UpdateRequest struct {
	UserID      string  `json:"user_id"`
	Action      string  `json:"action"`
	NewPassword string  `json:"new_password,omitempty"`
	FullName    *string `json:"full_name,omitempty"`
	Role        *string `json:"role,omitempty"`
}

// Update applies one admin action to a user. Archived rows are never
// touched; the repository reports them as not found.
func (s *Service) Update(ctx context.Context, req UpdateRequest) error {
	id, err := uuid.Parse(req.UserID)
	if err != nil {
		return ErrUserNotFound
	}

	switch req.Action {
	case "change_password":
		if err := auth.ValidatePassword(req.NewPassword); err != nil {
			return err
		}
		hash, err := auth.HashPassword(req.NewPassword)
		if err != nil {
			return err
		}
		err = s.users.UpdatePasswordHash(ctx, id, hash)
		return s.mapUpdateErr(err, id, req.Action)
	case "block":
		return s.mapUpdateErr(s.users.SetBlocked(ctx, id, true), id, req.Action)
	case "unblock":
		return s.mapUpdateErr(s.users.SetBlocked(ctx, id, false), id, req.Action)
	case "approve":
		return s.mapUpdateErr(s.users.SetApproved(ctx, id, true), id, req.Action)
	case "unapprove":
		return s.mapUpdateErr(s.users.SetApproved(ctx, id, false), id, req.Action)
	case "update_info":
		if req.Role != nil && *req.Role != repository.RoleUser && *req.Role != repository.RoleAdmin {
			return ErrInvalidRole
		}
		return s.mapUpdateErr(s.users.UpdateInfo(ctx, id, req.FullName, req.Role), id, req.Action)
	default:
		return ErrUnknownAction
	}
}

// Archive soft-deletes an account. Its sessions die with it because
// session resolution joins on is_archived.
func (s *Service) Archive(ctx context.Context, userID string) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return ErrUserNotFound
	}
	if err := s.users.Archive(ctx, id); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to archive user: %w", err)
	}
	s.logger.Info("user archived", slog.String("user_id", userID))
	return nil
}

func (s *Service) mapUpdateErr(err error, id uuid.UUID, action string) error {
	if err == nil {
		s.logger.Info("user updated",
			slog.String("user_id", id.String()),
			slog.String("action", action),
		)
		return nil
	}
	if errors.Is(err, repository.ErrUserNotFound) {
		return ErrUserNotFound
	}
	return fmt.Errorf("failed to update user: %w", err)
}

func profileOf(user *repository.User) auth.UserProfile {
	return auth.UserProfile{
		ID:         user.ID.String(),
		Email:      user.Email,
		FullName:   user.FullName,
		Role:       user.Role,
		IsApproved: user.IsApproved,
		IsBlocked:  user.IsBlocked,
		CreatedAt:  user.CreatedAt,
		LastLogin:  user.LastLogin,
	}
}
