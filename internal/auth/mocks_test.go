package auth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trafficlens/photo-review/backend/internal/repository"
)

// Mock implementations for testing

// mockUserRepository implements repository.UserRepository for testing
type mockUserRepository struct {
	users map[string]*repository.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[string]*repository.User)}
}

func (m *mockUserRepository) Create(ctx context.Context, user *repository.User) error {
	email := strings.ToLower(user.Email)
	for _, u := range m.users {
		if strings.ToLower(u.Email) == email {
			return repository.ErrEmailAlreadyExists
		}
	}
	user.ID = uuid.New()
	user.Email = email
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID.String()] = user
	return nil
}

func (m *mockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*repository.User, error) {
	if user, ok := m.users[id.String()]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	email = strings.ToLower(email)
	for _, user := range m.users {
		if strings.ToLower(user.Email) == email {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := m.GetByEmail(ctx, email)
	if err == nil {
		return true, nil
	}
	return false, nil
}

func (m *mockUserRepository) List(ctx context.Context) ([]repository.User, error) {
	var users []repository.User
	for _, u := range m.users {
		if !u.IsArchived {
			users = append(users, *u)
		}
	}
	return users, nil
}

func (m *mockUserRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	user, ok := m.users[id.String()]
	if !ok {
		return repository.ErrUserNotFound
	}
	now := time.Now().UTC()
	user.LastLogin = &now
	return nil
}

func (m *mockUserRepository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	user, ok := m.users[id.String()]
	if !ok || user.IsArchived {
		return repository.ErrUserNotFound
	}
	user.PasswordHash = hash
	return nil
}

func (m *mockUserRepository) SetBlocked(ctx context.Context, id uuid.UUID, blocked bool) error {
	user, ok := m.users[id.String()]
	if !ok || user.IsArchived {
		return repository.ErrUserNotFound
	}
	user.IsBlocked = blocked
	return nil
}

func (m *mockUserRepository) SetApproved(ctx context.Context, id uuid.UUID, approved bool) error {
	user, ok := m.users[id.String()]
	if !ok || user.IsArchived {
		return repository.ErrUserNotFound
	}
	user.IsApproved = approved
	return nil
}

func (m *mockUserRepository) UpdateInfo(ctx context.Context, id uuid.UUID, fullName, role *string) error {
	user, ok := m.users[id.String()]
	if !ok || user.IsArchived {
		return repository.ErrUserNotFound
	}
	if fullName != nil {
		user.FullName = *fullName
	}
	if role != nil {
		user.Role = *role
	}
	return nil
}

func (m *mockUserRepository) Archive(ctx context.Context, id uuid.UUID) error {
	user, ok := m.users[id.String()]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.IsArchived = true
	return nil
}

// mockSessionRepository implements repository.SessionRepository for testing
type mockSessionRepository struct {
	sessions map[string]*repository.Session
	users    *mockUserRepository
}

func newMockSessionRepository(users *mockUserRepository) *mockSessionRepository {
	return &mockSessionRepository{
		sessions: make(map[string]*repository.Session),
		users:    users,
	}
}

func (m *mockSessionRepository) Create(ctx context.Context, session *repository.Session) error {
	session.ID = uuid.New()
	session.CreatedAt = time.Now().UTC()
	m.sessions[session.TokenHash] = session
	return nil
}

func (m *mockSessionRepository) ResolveUser(ctx context.Context, tokenHash string) (*repository.User, error) {
	session, ok := m.sessions[tokenHash]
	if !ok || !session.ExpiresAt.After(time.Now().UTC()) {
		return nil, repository.ErrSessionNotFound
	}
	user, ok := m.users.users[session.UserID.String()]
	if !ok || user.IsArchived {
		return nil, repository.ErrSessionNotFound
	}
	return user, nil
}

func (m *mockSessionRepository) Expire(ctx context.Context, tokenHash string) error {
	if session, ok := m.sessions[tokenHash]; ok {
		session.ExpiresAt = time.Now().UTC()
	}
	return nil
}

// mockLoginLogRepository implements repository.LoginLogRepository for testing
type mockLoginLogRepository struct {
	entries []repository.LoginLog
}

func newMockLoginLogRepository() *mockLoginLogRepository {
	return &mockLoginLogRepository{}
}

func (m *mockLoginLogRepository) Record(ctx context.Context, entry *repository.LoginLog) error {
	entry.ID = uuid.New()
	entry.CreatedAt = time.Now().UTC()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockLoginLogRepository) List(ctx context.Context, userID *uuid.UUID, limit int) ([]repository.LoginLog, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []repository.LoginLog
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		entry := m.entries[i]
		if userID != nil && (entry.UserID == nil || *entry.UserID != *userID) {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (m *mockLoginLogRepository) last() *repository.LoginLog {
	if len(m.entries) == 0 {
		return nil
	}
	return &m.entries[len(m.entries)-1]
}
