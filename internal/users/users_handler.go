package users

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/trafficlens/photo-review/backend/internal/api"
	"github.com/trafficlens/photo-review/backend/internal/auth"
)

// Handler handles user management HTTP requests
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates a new user management handler
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes mounts the user management endpoints. The caller is
// expected to wrap the router in the admin gate.
func RegisterRoutes(r chi.Router, handler *Handler) {
	r.Get("/users", handler.Get)
	r.Post("/users", handler.Create)
	r.Put("/users", handler.Update)
	r.Delete("/users", handler.Archive)
}

// Get dispatches GET requests on the action query parameter:
// list (default) or logs.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	switch action := r.URL.Query().Get("action"); action {
	case "", "list":
		h.list(w, r)
	case "logs":
		h.loginLogs(w, r)
	default:
		api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, "unknown action: "+action, nil)
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.service.List(r.Context())
	if err != nil {
		api.WriteInternal(w, err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"users": profiles,
		"total": len(profiles),
	})
}

func (h *Handler) loginLogs(w http.ResponseWriter, r *http.Request) {
	var userID *uuid.UUID
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, "invalid user_id", nil)
			return
		}
		userID = &id
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	logs, err := h.service.LoginLogs(r.Context(), userID, limit)
	if err != nil {
		api.WriteInternal(w, err)
		return
	}

	type logEntry struct {
		ID            string  `json:"id"`
		UserID        *string `json:"user_id,omitempty"`
		Email         string  `json:"email"`
		IPAddress     string  `json:"ip_address"`
		UserAgent     string  `json:"user_agent"`
		Success       bool    `json:"success"`
		FailureReason *string `json:"failure_reason,omitempty"`
		CreatedAt     string  `json:"created_at"`
	}
	entries := make([]logEntry, 0, len(logs))
	for _, l := range logs {
		entry := logEntry{
			ID:            l.ID.String(),
			Email:         l.Email,
			IPAddress:     l.IPAddress,
			UserAgent:     l.UserAgent,
			Success:       l.Success,
			FailureReason: l.FailureReason,
			CreatedAt:     l.CreatedAt.UTC().Format(time.RFC3339),
		}
		if l.UserID != nil {
			id := l.UserID.String()
			entry.UserID = &id
		}
		entries = append(entries, entry)
	}

	api.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"logs":  entries,
		"total": len(entries),
	})
}

type createRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// Create adds a pre-approved account
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, "invalid request body", nil)
		return
	}

	profile, err := h.service.Create(r.Context(), req.Email, req.Password, req.FullName, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrDuplicateEmail):
			api.WriteError(w, http.StatusBadRequest, api.CodeDuplicateEmail, "email is already registered", nil)
		case errors.Is(err, auth.ErrEmailRequired), errors.Is(err, auth.ErrInvalidEmail),
			errors.Is(err, auth.ErrPasswordRequired), errors.Is(err, auth.ErrPasswordTooShort),
			errors.Is(err, ErrInvalidRole):
			api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, err.Error(), nil)
		default:
			api.WriteInternal(w, err)
		}
		return
	}

	api.WriteSuccess(w, http.StatusCreated, map[string]interface{}{"user": profile})
}

// Update applies one admin action carried in the request body
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, "invalid request body", nil)
		return
	}

	if err := h.service.Update(r.Context(), req); err != nil {
		switch {
		case errors.Is(err, ErrUserNotFound):
			api.WriteError(w, http.StatusNotFound, api.CodeNotFound, "user not found", nil)
		case errors.Is(err, ErrUnknownAction), errors.Is(err, ErrInvalidRole),
			errors.Is(err, auth.ErrPasswordTooShort):
			api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, err.Error(), nil)
		default:
			api.WriteInternal(w, err)
		}
		return
	}

	api.WriteSuccess(w, http.StatusOK, map[string]string{"message": "User updated"})
}

type archiveRequest struct {
	UserID string `json:"user_id"`
}

// Archive soft-deletes a user account
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	var req archiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, "invalid request body", nil)
		return
	}

	if err := h.service.Archive(r.Context(), req.UserID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			api.WriteError(w, http.StatusNotFound, api.CodeNotFound, "user not found", nil)
			return
		}
		api.WriteInternal(w, err)
		return
	}

	api.WriteSuccess(w, http.StatusOK, map[string]string{"message": "User archived"})
}
