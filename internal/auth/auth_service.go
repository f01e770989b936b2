// Package auth implements registration, login, logout and session
// verification for the photo review backend.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/trafficlens/photo-review/backend/internal/metrics"
	"github.com/trafficlens/photo-review/backend/internal/repository"
)

// Service errors
var (
	ErrEmailRequired      = errors.New("email is required")
	ErrPasswordRequired   = errors.New("password is required")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotApproved        = errors.New("account pending approval")
	ErrBlocked            = errors.New("account is blocked")
	ErrInvalidSession     = errors.New("invalid or expired session")
)

// UserProfile is the non-sensitive projection returned to clients.
// The password hash never leaves the service.
type UserProfile struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	FullName   string     `json:"full_name"`
	Role       string     `json:"role"`
	IsApproved bool       `json:"is_approved"`
	IsBlocked  bool       `json:"is_blocked"`
	CreatedAt  time.Time  `json:"created_at"`
	LastLogin  *time.Time `json:"last_login,omitempty"`
}

// LoginResult carries the session token and its owner after a successful login
type LoginResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      UserProfile `json:"user"`
}

// RequestMeta carries the client network details attached to audit rows
// and session rows.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// Service handles authentication business logic
type Service struct {
	users      repository.UserRepository
	sessions   repository.SessionRepository
	loginLogs  repository.LoginLogRepository
	sessionTTL time.Duration
	logger     *slog.Logger
}

// NewService creates a new authentication service
func NewService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	loginLogs repository.LoginLogRepository,
	sessionTTL time.Duration,
	logger *slog.Logger,
) *Service {
	if sessionTTL <= 0 {
		sessionTTL = 7 * 24 * time.Hour
	}
	return &Service{
		users:      users,
		sessions:   sessions,
		loginLogs:  loginLogs,
		sessionTTL: sessionTTL,
		logger:     logger,
	}
}

// Register creates a new unapproved account. No session is issued;
// an administrator must approve the account before it can log in.
func (s *Service) Register(ctx context.Context, email, password, fullName string) (*UserProfile, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	if !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	// Uniqueness covers archived accounts too: an archived email can
	// never be re-registered.
	exists, err := s.users.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, ErrDuplicateEmail
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &repository.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(fullName),
		Role:         repository.RoleUser,
		IsApproved:   false,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailAlreadyExists) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered",
		slog.String("user_id", user.ID.String()),
		slog.String("email", user.Email),
	)
	profile := profileOf(user)
	return &profile, nil
}

// Login authenticates a user and issues an opaque session token.
// Every attempt, successful or not, appends one audit row. Unknown
// email, wrong password and archived accounts are indistinguishable
// to the caller.
func (s *Service) Login(ctx context.Context, email, password string, meta RequestMeta) (*LoginResult, error) {
	email = NormalizeEmail(email)

	var user *repository.User
	if email != "" {
		u, err := s.users.GetByEmail(ctx, email)
		if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
			return nil, fmt.Errorf("failed to look up user: %w", err)
		}
		user = u
	}

	ok := false
	legacy := false
	if password != "" && user != nil && !user.IsArchived {
		ok, legacy = CheckPassword(password, user.PasswordHash)
	}
	if !ok {
		// user stays attached to the audit row even when archived
		s.audit(ctx, user, email, meta, false, repository.FailureInvalidCredentials)
		return nil, ErrInvalidCredentials
	}
	if !user.IsApproved {
		s.audit(ctx, user, email, meta, false, repository.FailureNotApproved)
		return nil, ErrNotApproved
	}
	if user.IsBlocked {
		s.audit(ctx, user, email, meta, false, repository.FailureBlocked)
		return nil, ErrBlocked
	}

	if legacy {
		// Upgrade pre-migration SHA-256 hashes now that we hold the
		// plaintext. A failure here must not fail the login.
		if hash, hashErr := HashPassword(password); hashErr == nil {
			if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
				s.logger.Warn("failed to upgrade legacy password hash",
					slog.String("user_id", user.ID.String()),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	token, err := GenerateToken()
	if err != nil {
		return nil, err
	}

	session := &repository.Session{
		UserID:    user.ID,
		TokenHash: HashToken(token),
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		ExpiresAt: time.Now().UTC().Add(s.sessionTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	metrics.SessionsIssued.Inc()

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("failed to update last login",
			slog.String("user_id", user.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	s.audit(ctx, user, email, meta, true, "")

	s.logger.Info("user logged in",
		slog.String("user_id", user.ID.String()),
		slog.String("email", user.Email),
		slog.String("ip", meta.IPAddress),
	)

	return &LoginResult{
		Token:     token,
		ExpiresAt: session.ExpiresAt,
		User:      profileOf(user),
	}, nil
}

// Logout expires the session matching a token. Unknown and already
// expired tokens are not errors; logout is idempotent.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.sessions.Expire(ctx, HashToken(token)); err != nil {
		return fmt.Errorf("failed to expire session: %w", err)
	}
	return nil
}

// VerifySession resolves a token to its owner. Blocked users fail
// verification even while their session row is still live.
func (s *Service) VerifySession(ctx context.Context, token string) (*UserProfile, error) {
	user, err := s.sessions.ResolveUser(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, fmt.Errorf("failed to resolve session: %w", err)
	}
	if user.IsBlocked {
		return nil, ErrBlocked
	}
	profile := profileOf(user)
	return &profile, nil
}

// audit appends one login_logs row. Audit failures are logged and
// swallowed so they cannot mask the authentication outcome.
func (s *Service) audit(ctx context.Context, user *repository.User, email string, meta RequestMeta, success bool, reason string) {
	outcome := "success"
	if !success {
		outcome = reason
	}
	metrics.LoginAttemptsTotal.WithLabelValues(outcome).Inc()

	entry := &repository.LoginLog{
		Email:     email,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   success,
	}
	if user != nil {
		id := user.ID
		entry.UserID = &id
	}
	if reason != "" {
		entry.FailureReason = &reason
	}
	if err := s.loginLogs.Record(ctx, entry); err != nil {
		s.logger.Error("failed to record login attempt",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
	}
}

func profileOf(user *repository.User) UserProfile {
	return UserProfile{
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
