package training

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/trafficlens/photo-review/backend/internal/api"
)

// Handler handles training HTTP requests
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates a new training handler
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes mounts the training endpoints
func RegisterRoutes(r chi.Router, handler *Handler) {
	r.Get("/training", handler.Get)
	r.Post("/training", handler.Post)
	r.Put("/training", handler.Feedback)
}

// Get dispatches on the action query parameter:
// metrics (default), training-data or dataset-stats.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	switch action := r.URL.Query().Get("action"); action {
	case "", "metrics":
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				limit = n
			}
		}
		metrics, err := h.service.Metrics(r.Context(), limit)
		if err != nil {
			api.WriteInternal(w, err)
			return
		}
		api.WriteSuccess(w, http.StatusOK, map[string]interface{}{"metrics": metrics})
	case "training-data":
		samples, err := h.service.TrainingData(r.Context())
		if err != nil {
			api.WriteInternal(w, err)
			return
		}
		api.WriteSuccess(w, http.StatusOK, map[string]interface{}{"training_data": samples})
	case "dataset-stats":
		stats, err := h.service.DatasetStats(r.Context())
		if err != nil {
			api.WriteInternal(w, err)
			return
		}
		api.WriteSuccess(w, http.StatusOK, map[string]interface{}{"stats": stats})
	default:
		api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, "unknown action: "+action, nil)
	}
}

type postRequest struct {
	Action       string `json:"action"`
	MaterialID   string `json:"material_id,omitempty"`
	ModelVersion string `json:"model_version,omitempty"`
}

// Post dispatches on the action body field: train-model or predict
func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, "invalid request body", nil)
		return
	}

	switch req.Action {
	case "train-model":
		h.trainModel(w, r)
	case "predict":
		h.predict(w, r, req)
	default:
		api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, "unknown action: "+req.Action, nil)
	}
}

func (h *Handler) trainModel(w http.ResponseWriter, r *http.Request) {
	metric, err := h.service.TrainModel(r.Context())
	if err != nil {
		if errors.Is(err, ErrInsufficientData) {
			api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, err.Error(), nil)
			return
		}
		api.WriteInternal(w, err)
		return
	}

	api.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"model_version":    metric.ModelVersion,
		"metric_id":        metric.ID,
		"training_samples": metric.SamplesCount,
		"metrics": map[string]float64{
			"accuracy":  metric.Accuracy,
			"precision": metric.Precision,
			"recall":    metric.Recall,
			"f1_score":  metric.F1Score,
		},
	})
}

func (h *Handler) predict(w http.ResponseWriter, r *http.Request, req postRequest) {
	if req.MaterialID == "" {
		api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, "material_id is required", nil)
		return
	}

	prediction, err := h.service.Predict(r.Context(), req.MaterialID)
	if err != nil {
		if errors.Is(err, ErrMaterialNotFound) {
			api.WriteError(w, http.StatusNotFound, api.CodeNotFound, "material not found", nil)
			return
		}
		api.WriteInternal(w, err)
		return
	}

	modelVersion := req.ModelVersion
	if modelVersion == "" {
		modelVersion = "latest"
	}
	api.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"prediction":    prediction,
		"model_version": modelVersion,
	})
}

type feedbackRequest struct {
	MarkupID  *int64 `json:"markup_id"`
	IsCorrect *bool  `json:"is_correct"`
}

// Feedback records a reviewer verdict on a prediction
func (h *Handler) Feedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, "invalid request body", nil)
		return
	}
	if req.MarkupID == nil || req.IsCorrect == nil {
		api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, "markup_id and is_correct are required", nil)
		return
	}

	if err := h.service.RecordFeedback(r.Context(), *req.MarkupID, *req.IsCorrect); err != nil {
		api.WriteInternal(w, err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]string{"message": "Feedback recorded"})
}
