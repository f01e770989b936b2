package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/trafficlens/photo-review/backend/internal/repository"
)

func newTestService() (*Service, *mockUserRepository, *mockSessionRepository, *mockLoginLogRepository) {
	users := newMockUserRepository()
	sessions := newMockSessionRepository(users)
	logs := newMockLoginLogRepository()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(users, sessions, logs, 7*24*time.Hour, logger), users, sessions, logs
}

// failer is the overlap of *testing.T and *rapid.T that seedUser needs
type failer interface {
	Helper()
	Fatalf(format string, args ...interface{})
}

func seedUser(t failer, svc *Service, users *mockUserRepository, email, password string, approved, blocked bool) *repository.User {
	t.Helper()
	profile, err := svc.Register(context.Background(), email, password, "Test User")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	for _, u := range users.users {
		if u.Email == profile.Email {
			u.IsApproved = approved
			u.IsBlocked = blocked
			return u
		}
	}
	t.Fatalf("registered user %s not found in store", email)
	return nil
}

func emailGen() *rapid.Generator[string] {
	return rapid.Custom(func(t *rapid.T) string {
		local := rapid.StringMatching(`[a-z0-9]{1,12}`).Draw(t, "local")
		domain := rapid.StringMatching(`[a-z]{1,8}\.(com|org|ru)`).Draw(t, "domain")
		return local + "@" + domain
	})
}

func TestRegister_CreatesUnapprovedUser(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		svc, users, _, _ := newTestService()
		email := emailGen().Draw(rt, "email")
		password := rapid.StringMatching(`[a-zA-Z0-9]{6,32}`).Draw(rt, "password")

		profile, err := svc.Register(context.Background(), email, password, "Someone")
		if err != nil {
			rt.Fatalf("Register() error = %v", err)
		}
		if profile.IsApproved {
			rt.Fatal("new registrations must not be approved")
		}
		if profile.Role != repository.RoleUser {
			rt.Fatalf("Role = %q, want %q", profile.Role, repository.RoleUser)
		}
		if profile.Email != NormalizeEmail(email) {
			rt.Fatalf("Email = %q, want normalized %q", profile.Email, NormalizeEmail(email))
		}

		// Login must be rejected until an admin approves the account,
		// and the attempt must still be audited.
		_, err = svc.Login(context.Background(), email, password, RequestMeta{})
		if !errors.Is(err, ErrNotApproved) {
			rt.Fatalf("Login() before approval error = %v, want ErrNotApproved", err)
		}
		if len(users.users) != 1 {
			rt.Fatalf("user count = %d, want 1", len(users.users))
		}
	})
}

func TestRegister_EmailNormalization(t *testing.T) {
	svc, _, _, _ := newTestService()

	profile, err := svc.Register(context.Background(), "  Inspector@Example.COM ", "secret1", "")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if profile.Email != "inspector@example.com" {
		t.Fatalf("Email = %q, want lowercased and trimmed", profile.Email)
	}

	// Same email in different case is a duplicate.
	_, err = svc.Register(context.Background(), "INSPECTOR@example.com", "secret1", "")
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("Register() duplicate error = %v, want ErrDuplicateEmail", err)
	}
}

func TestRegister_DuplicateEmailIncludesArchived(t *testing.T) {
	svc, users, _, _ := newTestService()
	user := seedUser(t, svc, users, "gone@example.com", "secret1", true, false)
	user.IsArchived = true

	_, err := svc.Register(context.Background(), "gone@example.com", "secret1", "")
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("Register() on archived email error = %v, want ErrDuplicateEmail", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"empty email", "", "secret1", ErrEmailRequired},
		{"whitespace email", "   ", "secret1", ErrEmailRequired},
		{"no at sign", "not-an-email", "secret1", ErrInvalidEmail},
		{"empty password", "a@b.com", "", ErrPasswordRequired},
		{"short password", "a@b.com", "12345", ErrPasswordTooShort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _, _ := newTestService()
			_, err := svc.Register(context.Background(), tt.email, tt.password, "")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Register() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLogin_CheckOrderAndAudit(t *testing.T) {
	tests := []struct {
		name       string
		email      string
		password   string
		approved   bool
		blocked    bool
		archived   bool
		loginEmail string
		loginPass  string
		wantErr    error
		wantReason string
		wantUserID bool
	}{
		{
			name:  "unknown email",
			email: "known@example.com", password: "secret1", approved: true,
			loginEmail: "unknown@example.com", loginPass: "secret1",
			wantErr: ErrInvalidCredentials, wantReason: repository.FailureInvalidCredentials,
			wantUserID: false,
		},
		{
			name:  "wrong password",
			email: "known@example.com", password: "secret1", approved: true,
			loginEmail: "known@example.com", loginPass: "wrong-password",
			wantErr: ErrInvalidCredentials, wantReason: repository.FailureInvalidCredentials,
			wantUserID: true,
		},
		{
			name:  "archived user hides as invalid credentials",
			email: "known@example.com", password: "secret1", approved: true, archived: true,
			loginEmail: "known@example.com", loginPass: "secret1",
			wantErr: ErrInvalidCredentials, wantReason: repository.FailureInvalidCredentials,
			wantUserID: true,
		},
		{
			name:  "unapproved",
			email: "known@example.com", password: "secret1", approved: false,
			loginEmail: "known@example.com", loginPass: "secret1",
			wantErr: ErrNotApproved, wantReason: repository.FailureNotApproved,
			wantUserID: true,
		},
		{
			name:  "blocked outranks nothing but approval",
			email: "known@example.com", password: "secret1", approved: true, blocked: true,
			loginEmail: "known@example.com", loginPass: "secret1",
			wantErr: ErrBlocked, wantReason: repository.FailureBlocked,
			wantUserID: true,
		},
		{
			name:  "unapproved and blocked reports not approved first",
			email: "known@example.com", password: "secret1", approved: false, blocked: true,
			loginEmail: "known@example.com", loginPass: "secret1",
			wantErr: ErrNotApproved, wantReason: repository.FailureNotApproved,
			wantUserID: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, users, _, logs := newTestService()
			user := seedUser(t, svc, users, tt.email, tt.password, tt.approved, tt.blocked)
			user.IsArchived = tt.archived

			_, err := svc.Login(context.Background(), tt.loginEmail, tt.loginPass, RequestMeta{IPAddress: "10.0.0.1"})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Login() error = %v, want %v", err, tt.wantErr)
			}

			entry := logs.last()
			if entry == nil {
				t.Fatal("login attempt was not audited")
			}
			if entry.Success {
				t.Fatal("audit row marked success for a failed login")
			}
			if entry.FailureReason == nil || *entry.FailureReason != tt.wantReason {
				t.Fatalf("failure_reason = %v, want %q", entry.FailureReason, tt.wantReason)
			}
			if tt.wantUserID && entry.UserID == nil {
				t.Fatal("audit row missing resolvable user id")
			}
			if !tt.wantUserID && entry.UserID != nil {
				t.Fatal("audit row has user id for unknown email")
			}
		})
	}
}

func TestLogin_EmptyCredentialsAudited(t *testing.T) {
	t.Run("empty password with known email", func(t *testing.T) {
		svc, users, _, logs := newTestService()
		seedUser(t, svc, users, "known@example.com", "secret1", true, false)

		_, err := svc.Login(context.Background(), "known@example.com", "", RequestMeta{IPAddress: "10.0.0.1"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("Login() error = %v, want ErrInvalidCredentials", err)
		}

		entry := logs.last()
		if entry == nil {
			t.Fatal("empty-password login attempt was not audited")
		}
		if entry.Success {
			t.Fatal("audit row marked success")
		}
		if entry.FailureReason == nil || *entry.FailureReason != repository.FailureInvalidCredentials {
			t.Fatalf("failure_reason = %v, want %q", entry.FailureReason, repository.FailureInvalidCredentials)
		}
		if entry.UserID == nil {
			t.Fatal("audit row missing user id for resolvable email")
		}
	})

	t.Run("empty email", func(t *testing.T) {
		svc, _, _, logs := newTestService()

		_, err := svc.Login(context.Background(), "", "secret1", RequestMeta{IPAddress: "10.0.0.1"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("Login() error = %v, want ErrInvalidCredentials", err)
		}

		entry := logs.last()
		if entry == nil {
			t.Fatal("empty-email login attempt was not audited")
		}
		if entry.UserID != nil {
			t.Fatal("audit row has user id without an email to resolve")
		}
	})
}

func TestLogin_Success(t *testing.T) {
	svc, users, sessions, logs := newTestService()
	seedUser(t, svc, users, "ok@example.com", "secret1", true, false)

	before := time.Now().UTC()
	result, err := svc.Login(context.Background(), "ok@example.com", "secret1", RequestMeta{IPAddress: "10.0.0.1", UserAgent: "test"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if result.Token == "" {
		t.Fatal("no token issued")
	}
	if len(result.Token) < 43 {
		t.Fatalf("token too short for 256 bits: %d chars", len(result.Token))
	}
	wantExpiry := before.Add(7 * 24 * time.Hour)
	if result.ExpiresAt.Before(wantExpiry) || result.ExpiresAt.After(wantExpiry.Add(time.Minute)) {
		t.Fatalf("ExpiresAt = %v, want about %v", result.ExpiresAt, wantExpiry)
	}

	// Only the hash is persisted, never the raw token.
	session, ok := sessions.sessions[HashToken(result.Token)]
	if !ok {
		t.Fatal("session not stored under token hash")
	}
	if session.TokenHash == result.Token {
		t.Fatal("raw token stored in session row")
	}

	entry := logs.last()
	if entry == nil || !entry.Success {
		t.Fatal("successful login not audited")
	}

	user, _ := users.GetByEmail(context.Background(), "ok@example.com")
	if user.LastLogin == nil {
		t.Fatal("last_login not updated")
	}
}

func TestLogin_LegacyHashUpgradedToBcrypt(t *testing.T) {
	svc, users, _, _ := newTestService()
	user := seedUser(t, svc, users, "old@example.com", "secret1", true, false)

	// Simulate a row migrated from the legacy system.
	user.PasswordHash = "5b11618c2e44027877d0cd0921ed166b9f176f50587fc91e7534dd2946db77d6"
	ok, legacy := CheckPassword("secret1", user.PasswordHash)
	if !ok || !legacy {
		t.Fatalf("CheckPassword(legacy) = (%v, %v), want (true, true)", ok, legacy)
	}

	if _, err := svc.Login(context.Background(), "old@example.com", "secret1", RequestMeta{}); err != nil {
		t.Fatalf("Login() with legacy hash error = %v", err)
	}

	if isLegacyHash(user.PasswordHash) {
		t.Fatal("legacy hash not upgraded after successful login")
	}
	if ok, _ := CheckPassword("secret1", user.PasswordHash); !ok {
		t.Fatal("upgraded hash no longer verifies the password")
	}
}

func TestVerifySession(t *testing.T) {
	svc, users, sessions, _ := newTestService()
	user := seedUser(t, svc, users, "v@example.com", "secret1", true, false)

	result, err := svc.Login(context.Background(), "v@example.com", "secret1", RequestMeta{})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	profile, err := svc.VerifySession(context.Background(), result.Token)
	if err != nil {
		t.Fatalf("VerifySession() error = %v", err)
	}
	if profile.Email != "v@example.com" {
		t.Fatalf("Email = %q", profile.Email)
	}

	t.Run("expired token rejected", func(t *testing.T) {
		sessions.sessions[HashToken(result.Token)].ExpiresAt = time.Now().UTC().Add(-time.Second)
		if _, err := svc.VerifySession(context.Background(), result.Token); !errors.Is(err, ErrInvalidSession) {
			t.Fatalf("error = %v, want ErrInvalidSession", err)
		}
		sessions.sessions[HashToken(result.Token)].ExpiresAt = time.Now().UTC().Add(time.Hour)
	})

	t.Run("blocked user fails with live session", func(t *testing.T) {
		user.IsBlocked = true
		_, err := svc.VerifySession(context.Background(), result.Token)
		if !errors.Is(err, ErrBlocked) {
			t.Fatalf("error = %v, want ErrBlocked", err)
		}
		// The session row itself is untouched.
		if _, ok := sessions.sessions[HashToken(result.Token)]; !ok {
			t.Fatal("session row removed by blocking")
		}
		user.IsBlocked = false
	})

	t.Run("archived user fails", func(t *testing.T) {
		user.IsArchived = true
		if _, err := svc.VerifySession(context.Background(), result.Token); !errors.Is(err, ErrInvalidSession) {
			t.Fatalf("error = %v, want ErrInvalidSession", err)
		}
		user.IsArchived = false
	})

	t.Run("garbage token rejected", func(t *testing.T) {
		if _, err := svc.VerifySession(context.Background(), "not-a-real-token"); !errors.Is(err, ErrInvalidSession) {
			t.Fatalf("error = %v, want ErrInvalidSession", err)
		}
	})
}

func TestLogout_InvalidatesSessionImmediately(t *testing.T) {
	svc, users, _, _ := newTestService()
	seedUser(t, svc, users, "out@example.com", "secret1", true, false)

	result, err := svc.Login(context.Background(), "out@example.com", "secret1", RequestMeta{})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if err := svc.Logout(context.Background(), result.Token); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, err := svc.VerifySession(context.Background(), result.Token); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("VerifySession() after logout error = %v, want ErrInvalidSession", err)
	}

	// Logout is idempotent: unknown or already expired tokens succeed.
	if err := svc.Logout(context.Background(), result.Token); err != nil {
		t.Fatalf("repeated Logout() error = %v", err)
	}
	if err := svc.Logout(context.Background(), "never-issued"); err != nil {
		t.Fatalf("Logout() of unknown token error = %v", err)
	}
}

func TestConcurrentSessionsPerUser(t *testing.T) {
	svc, users, _, _ := newTestService()
	seedUser(t, svc, users, "multi@example.com", "secret1", true, false)

	first, err := svc.Login(context.Background(), "multi@example.com", "secret1", RequestMeta{})
	if err != nil {
		t.Fatalf("first Login() error = %v", err)
	}
	second, err := svc.Login(context.Background(), "multi@example.com", "secret1", RequestMeta{})
	if err != nil {
		t.Fatalf("second Login() error = %v", err)
	}
	if first.Token == second.Token {
		t.Fatal("two logins issued the same token")
	}

	// Logging out one session leaves the other alive.
	if err := svc.Logout(context.Background(), first.Token); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, err := svc.VerifySession(context.Background(), second.Token); err != nil {
		t.Fatalf("second session died with the first: %v", err)
	}
}

func TestAuthRoundTrip(t *testing.T) {
	svc, users, _, _ := newTestService()
	ctx := context.Background()

	profile, err := svc.Register(ctx, "trip@example.com", "secret1", "Round Trip")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if profile.IsApproved {
		t.Fatal("fresh registration approved")
	}

	if _, err := svc.Login(ctx, "trip@example.com", "secret1", RequestMeta{}); !errors.Is(err, ErrNotApproved) {
		t.Fatalf("pre-approval Login() error = %v, want ErrNotApproved", err)
	}

	for _, u := range users.users {
		u.IsApproved = true
	}

	result, err := svc.Login(ctx, "trip@example.com", "secret1", RequestMeta{})
	if err != nil {
		t.Fatalf("post-approval Login() error = %v", err)
	}
	if _, err := svc.VerifySession(ctx, result.Token); err != nil {
		t.Fatalf("VerifySession() error = %v", err)
	}
	if err := svc.Logout(ctx, result.Token); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, err := svc.VerifySession(ctx, result.Token); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("VerifySession() after logout error = %v, want ErrInvalidSession", err)
	}
}

func TestLogin_PropertyWrongPasswordNeverAuthenticates(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		svc, users, _, _ := newTestService()
		password := rapid.StringMatching(`[a-zA-Z0-9]{6,24}`).Draw(rt, "password")
		wrong := rapid.StringMatching(`[a-zA-Z0-9]{6,24}`).Draw(rt, "wrong")
		if wrong == password {
			return
		}
		seedUser(rt, svc, users, "prop@example.com", password, true, false)

		if _, err := svc.Login(context.Background(), "prop@example.com", wrong, RequestMeta{}); !errors.Is(err, ErrInvalidCredentials) {
			rt.Fatalf("Login() with wrong password error = %v, want ErrInvalidCredentials", err)
		}
	})
}
