package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/trafficlens/photo-review/backend/internal/api"
)

// Handler handles authentication HTTP requests
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates a new authentication handler
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Handle dispatches on the action query parameter. The upload tools
// address every auth operation through this single endpoint.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Query().Get("action")

	switch r.Method {
	case http.MethodPost:
		switch action {
		case "register":
			h.register(w, r)
		case "login":
			h.login(w, r)
		case "logout":
			h.logout(w, r)
		default:
			api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, "unknown action: "+action, nil)
		}
	case http.MethodGet:
		if action == "verify" {
			h.verify(w, r)
			return
		}
		api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, "unknown action: "+action, nil)
	default:
		api.WriteError(w, http.StatusMethodNotAllowed, api.CodeValidationError, "method not allowed", nil)
	}
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, "invalid request body", nil)
		return
	}

	profile, err := h.service.Register(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicateEmail):
			api.WriteError(w, http.StatusBadRequest, api.CodeDuplicateEmail, "email is already registered", nil)
		case errors.Is(err, ErrEmailRequired), errors.Is(err, ErrInvalidEmail),
			errors.Is(err, ErrPasswordRequired), errors.Is(err, ErrPasswordTooShort):
			api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, err.Error(), nil)
		default:
			api.WriteInternal(w, err)
		}
		return
	}

	api.WriteSuccess(w, http.StatusCreated, map[string]interface{}{
		"user":    profile,
		"message": "Registration successful. An administrator must approve your account before you can sign in.",
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, "invalid request body", nil)
		return
	}

	meta := RequestMeta{
		IPAddress: api.ClientIP(r),
		UserAgent: r.UserAgent(),
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password, meta)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			api.WriteError(w, http.StatusUnauthorized, api.CodeInvalidCredentials, "invalid email or password", nil)
		case errors.Is(err, ErrNotApproved):
			api.WriteError(w, http.StatusForbidden, api.CodeNotApproved, "account is pending administrator approval", nil)
		case errors.Is(err, ErrBlocked):
			api.WriteError(w, http.StatusForbidden, api.CodeBlocked, "account is blocked", nil)
		default:
			api.WriteInternal(w, err)
		}
		return
	}

	api.WriteSuccess(w, http.StatusOK, result)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	token := ExtractToken(r)
	if token == "" {
		api.WriteError(w, http.StatusBadRequest, api.CodeAuthTokenMissing, "authentication token is required", nil)
		return
	}

	if err := h.service.Logout(r.Context(), token); err != nil {
		api.WriteInternal(w, err)
		return
	}

	api.WriteSuccess(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	token := ExtractToken(r)
	if token == "" {
		api.WriteError(w, http.StatusUnauthorized, api.CodeAuthTokenMissing, "authentication token is required", nil)
		return
	}

	profile, err := h.service.VerifySession(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidSession):
			api.WriteError(w, http.StatusUnauthorized, api.CodeInvalidSession, "session is invalid or expired", nil)
		case errors.Is(err, ErrBlocked):
			api.WriteError(w, http.StatusForbidden, api.CodeBlocked, "account is blocked", nil)
		default:
			api.WriteInternal(w, err)
		}
		return
	}

	api.WriteSuccess(w, http.StatusOK, map[string]interface{}{"user": profile})
}

// ExtractToken pulls the session token from the Authorization header
// (with or without a Bearer prefix), the X-Authorization header, or
// the X-Auth-Token header.
func ExtractToken(r *http.Request) string {
	if authz := strings.TrimSpace(r.Header.Get("Authorization")); authz != "" {
		if len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
			return strings.TrimSpace(authz[7:])
		}
		return authz
	}
	if xauthz := strings.TrimSpace(r.Header.Get("X-Authorization")); xauthz != "" {
		return xauthz
	}
	return strings.TrimSpace(r.Header.Get("X-Auth-Token"))
}
