package users

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/trafficlens/photo-review/backend/internal/auth"
	"github.com/trafficlens/photo-review/backend/internal/repository"
)

type mockUserRepository struct {
	users map[uuid.UUID]*repository.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[uuid.UUID]*repository.User)}
}

func (m *mockUserRepository) Create(ctx context.Context, user *repository.User) error {
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrEmailAlreadyExists
		}
	}
	user.ID = uuid.New()
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*repository.User, error) {
	return m.active(id)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	for _, u := range m.users {
		if u.Email == email && !u.IsArchived {
			return u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	for _, u := range m.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepository) List(ctx context.Context) ([]repository.User, error) {
	out := make([]repository.User, 0, len(m.users))
	for _, u := range m.users {
		if !u.IsArchived {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *mockUserRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	_, err := m.active(id)
	return err
}

func (m *mockUserRepository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	u, err := m.active(id)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (m *mockUserRepository) SetBlocked(ctx context.Context, id uuid.UUID, blocked bool) error {
	u, err := m.active(id)
	if err != nil {
		return err
	}
	u.IsBlocked = blocked
	return nil
}

func (m *mockUserRepository) SetApproved(ctx context.Context, id uuid.UUID, approved bool) error {
	u, err := m.active(id)
	if err != nil {
		return err
	}
	u.IsApproved = approved
	return nil
}

func (m *mockUserRepository) UpdateInfo(ctx context.Context, id uuid.UUID, fullName, role *string) error {
	u, err := m.active(id)
	if err != nil {
		return err
	}
	if fullName != nil {
		u.FullName = *fullName
	}
	if role != nil {
		u.Role = *role
	}
	return nil
}

func (m *mockUserRepository) Archive(ctx context.Context, id uuid.UUID) error {
	u, err := m.active(id)
	if err != nil {
		return err
	}
	u.IsArchived = true
	return nil
}

// active mirrors the production queries, which all filter on
// is_archived = FALSE.
func (m *mockUserRepository) active(id uuid.UUID) (*repository.User, error) {
	u, ok := m.users[id]
	if !ok || u.IsArchived {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

type mockLoginLogRepository struct {
	entries []repository.LoginLog
}

func (m *mockLoginLogRepository) Record(ctx context.Context, entry *repository.LoginLog) error {
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockLoginLogRepository) List(ctx context.Context, userID *uuid.UUID, limit int) ([]repository.LoginLog, error) {
	out := make([]repository.LoginLog, 0, len(m.entries))
	for _, e := range m.entries {
		if userID != nil && (e.UserID == nil || *e.UserID != *userID) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func newTestService(t *testing.T) (*Service, *mockUserRepository, *mockLoginLogRepository) {
	t.Helper()
	users := newMockUserRepository()
	logs := &mockLoginLogRepository{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(users, logs, logger), users, logs
}

func TestCreate_PreApprovedAccount(t *testing.T) {
	svc, repo, _ := newTestService(t)

	profile, err := svc.Create(context.Background(), "Inspector@Example.com", "secret1", "Jane Inspector", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !profile.IsApproved {
		t.Error("admin-created account should be pre-approved")
	}
	if profile.Email != "inspector@example.com" {
		t.Errorf("email = %q, want normalized lowercase", profile.Email)
	}
	if profile.Role != repository.RoleUser {
		t.Errorf("role = %q, want default %q", profile.Role, repository.RoleUser)
	}

	stored, err := repo.GetByEmail(context.Background(), "inspector@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if ok, _ := auth.CheckPassword("secret1", stored.PasswordHash); !ok {
		t.Error("stored hash does not verify the original password")
	}
	if stored.PasswordHash == "secret1" {
		t.Error("password stored in plaintext")
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)

	tests := []struct {
		name     string
		email    string
		password string
		role     string
		wantErr  error
	}{
		{"empty email", "", "secret1", "", auth.ErrEmailRequired},
		{"malformed email", "not-an-email", "secret1", "", auth.ErrInvalidEmail},
		{"empty password", "a@b.com", "", "", auth.ErrPasswordRequired},
		{"short password", "a@b.com", "abc", "", auth.ErrPasswordTooShort},
		{"bogus role", "a@b.com", "secret1", "superuser", ErrInvalidRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.email, tt.password, "", tt.role)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Create() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreate_DuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "dup@example.com", "secret1", "", "admin"); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	_, err := svc.Create(ctx, "DUP@example.com", "secret2", "", "user")
	if !errors.Is(err, auth.ErrDuplicateEmail) {
		t.Fatalf("Create() error = %v, want ErrDuplicateEmail", err)
	}
}

func TestUpdate_Actions(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	profile, err := svc.Create(ctx, "target@example.com", "secret1", "Target", "user")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	id := uuid.MustParse(profile.ID)

	t.Run("block and unblock", func(t *testing.T) {
		if err := svc.Update(ctx, UpdateRequest{UserID: profile.ID, Action: "block"}); err != nil {
			t.Fatalf("block: %v", err)
		}
		if u, _ := repo.GetByID(ctx, id); !u.IsBlocked {
			t.Error("user not blocked")
		}
		if err := svc.Update(ctx, UpdateRequest{UserID: profile.ID, Action: "unblock"}); err != nil {
			t.Fatalf("unblock: %v", err)
		}
		if u, _ := repo.GetByID(ctx, id); u.IsBlocked {
			t.Error("user still blocked")
		}
	})

	t.Run("unapprove and approve", func(t *testing.T) {
		if err := svc.Update(ctx, UpdateRequest{UserID: profile.ID, Action: "unapprove"}); err != nil {
			t.Fatalf("unapprove: %v", err)
		}
		if u, _ := repo.GetByID(ctx, id); u.IsApproved {
			t.Error("user still approved")
		}
		if err := svc.Update(ctx, UpdateRequest{UserID: profile.ID, Action: "approve"}); err != nil {
			t.Fatalf("approve: %v", err)
		}
		if u, _ := repo.GetByID(ctx, id); !u.IsApproved {
			t.Error("user not approved")
		}
	})

	t.Run("change password", func(t *testing.T) {
		err := svc.Update(ctx, UpdateRequest{UserID: profile.ID, Action: "change_password", NewPassword: "newsecret"})
		if err != nil {
			t.Fatalf("change_password: %v", err)
		}
		u, _ := repo.GetByID(ctx, id)
		if ok, _ := auth.CheckPassword("newsecret", u.PasswordHash); !ok {
			t.Error("new password does not verify")
		}
		if ok, _ := auth.CheckPassword("secret1", u.PasswordHash); ok {
			t.Error("old password still verifies")
		}
	})

	t.Run("change password rejects short password", func(t *testing.T) {
		err := svc.Update(ctx, UpdateRequest{UserID: profile.ID, Action: "change_password", NewPassword: "abc"})
		if !errors.Is(err, auth.ErrPasswordTooShort) {
			t.Fatalf("error = %v, want ErrPasswordTooShort", err)
		}
	})

	t.Run("update info", func(t *testing.T) {
		name := "Renamed"
		role := "admin"
		err := svc.Update(ctx, UpdateRequest{UserID: profile.ID, Action: "update_info", FullName: &name, Role: &role})
		if err != nil {
			t.Fatalf("update_info: %v", err)
		}
		u, _ := repo.GetByID(ctx, id)
		if u.FullName != "Renamed" || u.Role != "admin" {
			t.Errorf("got %q/%q, want Renamed/admin", u.FullName, u.Role)
		}
	})

	t.Run("update info rejects bogus role", func(t *testing.T) {
		role := "root"
		err := svc.Update(ctx, UpdateRequest{UserID: profile.ID, Action: "update_info", Role: &role})
		if !errors.Is(err, ErrInvalidRole) {
			t.Fatalf("error = %v, want ErrInvalidRole", err)
		}
	})

	t.Run("unknown action", func(t *testing.T) {
		err := svc.Update(ctx, UpdateRequest{UserID: profile.ID, Action: "promote"})
		if !errors.Is(err, ErrUnknownAction) {
			t.Fatalf("error = %v, want ErrUnknownAction", err)
		}
	})

	t.Run("unknown user id", func(t *testing.T) {
		err := svc.Update(ctx, UpdateRequest{UserID: uuid.NewString(), Action: "block"})
		if !errors.Is(err, ErrUserNotFound) {
			t.Fatalf("error = %v, want ErrUserNotFound", err)
		}
	})

	t.Run("malformed user id", func(t *testing.T) {
		err := svc.Update(ctx, UpdateRequest{UserID: "not-a-uuid", Action: "block"})
		if !errors.Is(err, ErrUserNotFound) {
			t.Fatalf("error = %v, want ErrUserNotFound", err)
		}
	})
}

func TestArchive(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	profile, err := svc.Create(ctx, "gone@example.com", "secret1", "", "user")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.Archive(ctx, profile.ID); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	// Archived accounts vanish from listings and updates report not found.
	list, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, p := range list {
		if p.ID == profile.ID {
			t.Fatal("archived user still listed")
		}
	}
	if err := svc.Update(ctx, UpdateRequest{UserID: profile.ID, Action: "block"}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("update archived: error = %v, want ErrUserNotFound", err)
	}
	if err := svc.Archive(ctx, profile.ID); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("second archive: error = %v, want ErrUserNotFound", err)
	}

	// The email remains reserved even after archiving.
	if _, err := svc.Create(ctx, "gone@example.com", "secret1", "", "user"); !errors.Is(err, auth.ErrDuplicateEmail) {
		t.Fatalf("recreate archived email: error = %v, want ErrDuplicateEmail", err)
	}
}

func TestLoginLogs_FilterAndLimit(t *testing.T) {
	svc, _, logs := newTestService(t)
	ctx := context.Background()

	alice := uuid.New()
	bob := uuid.New()
	for i := 0; i < 3; i++ {
		logs.entries = append(logs.entries, repository.LoginLog{UserID: &alice, Email: "alice@example.com", Success: true})
	}
	logs.entries = append(logs.entries, repository.LoginLog{UserID: &bob, Email: "bob@example.com", Success: false})

	got, err := svc.LoginLogs(ctx, &alice, 2)
	if err != nil {
		t.Fatalf("LoginLogs: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	for _, e := range got {
		if e.Email != "alice@example.com" {
			t.Errorf("unexpected entry for %s", e.Email)
		}
	}
}
