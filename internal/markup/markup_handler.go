package markup

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/trafficlens/photo-review/backend/internal/api"
)

// Handler handles markup HTTP requests
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates a new markup handler
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes mounts the markup endpoints
func RegisterRoutes(r chi.Router, handler *Handler) {
	r.Get("/markup", handler.Get)
	r.Post("/markup", handler.Save)
	r.Put("/markup", handler.Update)
}

// Get returns one markup by material_id, or the full markup list when
// no material_id is given.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	materialID := r.URL.Query().Get("material_id")
	if materialID == "" {
		summaries, err := h.service.List(r.Context())
		if err != nil {
			api.WriteInternal(w, err)
			return
		}
		api.WriteSuccess(w, http.StatusOK, map[string]interface{}{
			"markups": summaries,
			"total":   len(summaries),
		})
		return
	}

	detail, err := h.service.Get(r.Context(), materialID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]interface{}{"markup": detail})
}

// Save creates or replaces a markup
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, "invalid request body", nil)
		return
	}

	detail, err := h.service.Save(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	api.WriteSuccess(w, http.StatusCreated, map[string]interface{}{"markup": detail})
}

// Update modifies markup fields without replacing regions
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, "invalid request body", nil)
		return
	}

	if err := h.service.Update(r.Context(), req); err != nil {
		h.writeServiceError(w, err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]string{"message": "Markup updated"})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrs):
		details := map[string][]string{}
		for _, fe := range validationErrs {
			details[fe.Field()] = append(details[fe.Field()], fe.Tag())
		}
		api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, "validation failed", details)
	case errors.Is(err, ErrMaterialRequired):
		api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, err.Error(), nil)
	case errors.Is(err, ErrMarkupNotFound):
		api.WriteError(w, http.StatusNotFound, api.CodeNotFound, "markup not found", nil)
	default:
		api.WriteInternal(w, err)
	}
}
