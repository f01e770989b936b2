package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/trafficlens/photo-review/backend/internal/api"
	"github.com/trafficlens/photo-review/backend/internal/appctx"
	"github.com/trafficlens/photo-review/backend/internal/auth"
)

// AuthMiddleware gates routes behind session verification
type AuthMiddleware struct {
	service *auth.Service
	logger  *slog.Logger
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(service *auth.Service, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{service: service, logger: logger}
}

// Authenticate verifies the session token and stores the user identity
// in the request context. Failures keep the session error taxonomy.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.ExtractToken(r)
		if token == "" {
			api.WriteError(w, http.StatusUnauthorized, api.CodeAuthTokenMissing, "authentication token is required", nil)
			return
		}

		profile, err := m.service.VerifySession(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidSession):
				api.WriteError(w, http.StatusUnauthorized, api.CodeInvalidSession, "session is invalid or expired", nil)
			case errors.Is(err, auth.ErrBlocked):
				api.WriteError(w, http.StatusForbidden, api.CodeBlocked, "account is blocked", nil)
			default:
				api.WriteInternal(w, err)
			}
			return
		}

		uid, err := uuid.Parse(profile.ID)
		if err != nil {
			api.WriteInternal(w, err)
			return
		}

		ctx := appctx.WithUser(r.Context(), uid, profile.Email, profile.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin admits only admin sessions. Every failure mode,
// missing token, bad session, blocked account or insufficient role,
// produces the same 403 body so callers cannot probe which it was.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.ExtractToken(r)
		if token == "" {
			m.forbidden(w)
			return
		}

		profile, err := m.service.VerifySession(r.Context(), token)
		if err != nil {
			if !errors.Is(err, auth.ErrInvalidSession) && !errors.Is(err, auth.ErrBlocked) {
				m.logger.Error("session verification failed",
					slog.String("error", err.Error()),
				)
			}
			m.forbidden(w)
			return
		}

		if profile.Role != "admin" {
			m.forbidden(w)
			return
		}

		uid, err := uuid.Parse(profile.ID)
		if err != nil {
			m.forbidden(w)
			return
		}

		ctx := appctx.WithUser(r.Context(), uid, profile.Email, profile.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) forbidden(w http.ResponseWriter) {
	api.WriteError(w, http.StatusForbidden, api.CodeForbidden, "admin access required", nil)
}
