package material

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/trafficlens/photo-review/backend/internal/api"
)

// Handler handles material HTTP requests
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates a new material handler
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes mounts the materials endpoint
func RegisterRoutes(r chi.Router, handler *Handler) {
	r.Post("/materials", handler.Handle)
}

type request struct {
	Action    string          `json:"action"`
	Material  *CreateRequest  `json:"material,omitempty"`
	Materials []CreateRequest `json:"materials,omitempty"`
	Update    *UpdateRequest  `json:"update,omitempty"`
	IDs       []string        `json:"ids,omitempty"`
}

// Handle dispatches on the action field carried in the request body,
// matching the upload tool's single-endpoint contract.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, "invalid request body", nil)
		return
	}

	switch req.Action {
	case "", "list":
		h.list(w, r)
	case "create":
		h.create(w, r, req.Material)
	case "update":
		h.update(w, r, req.Update)
	case "delete":
		h.delete(w, r, req.IDs)
	case "bulk_create":
		h.bulkCreate(w, r, req.Materials)
	default:
		api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, "unknown action: "+req.Action, nil)
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	materials, err := h.service.List(r.Context())
	if err != nil {
		api.WriteInternal(w, err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"materials": materials,
		"total":     len(materials),
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request, req *CreateRequest) {
	if req == nil {
		api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, "material is required", nil)
		return
	}

	material, err := h.service.Create(r.Context(), *req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	api.WriteSuccess(w, http.StatusCreated, map[string]interface{}{"material": material})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request, req *UpdateRequest) {
	if req == nil {
		api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, "update is required", nil)
		return
	}

	if err := h.service.Update(r.Context(), *req); err != nil {
		h.writeServiceError(w, err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]string{"message": "Material updated"})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request, ids []string) {
	deleted, err := h.service.Delete(r.Context(), ids)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]interface{}{"deleted": deleted})
}

func (h *Handler) bulkCreate(w http.ResponseWriter, r *http.Request, reqs []CreateRequest) {
	count, err := h.service.BulkCreate(r.Context(), reqs)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	api.WriteSuccess(w, http.StatusCreated, map[string]interface{}{"created": count})
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
	case errors.Is(err, ErrMaterialNotFound):
		api.WriteError(w, http.StatusNotFound, api.CodeNotFound, "material not found", nil)
	case errors.Is(err, ErrNoIDs):
		api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, err.Error(), nil)
	default:
		api.WriteInternal(w, err)
	}
}
