// Package health provides health, readiness and liveness endpoints.
package health

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ServiceStatus represents the status of a single dependency
type ServiceStatus struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse represents the structured health check response
type HealthResponse struct {
	Status    string                   `json:"status"`
	Timestamp string                   `json:"timestamp"`
	Services  map[string]ServiceStatus `json:"services"`
	Version   string                   `json:"version,omitempty"`
}

// ReadinessResponse represents the readiness probe response
type ReadinessResponse struct {
	Ready     bool   `json:"ready"`
	Timestamp string `json:"timestamp"`
}

// LivenessResponse represents the liveness probe response
type LivenessResponse struct {
	Alive     bool   `json:"alive"`
	Timestamp string `json:"timestamp"`
}

// Handler handles health check requests
type Handler struct {
	authPool  *pgxpool.Pool
	contentDB *sql.DB
	version   string
	timeout   time.Duration
	ready     bool
	mu        sync.RWMutex
}

// Config holds health handler configuration
type Config struct {
	// AuthPool is the pgx pool backing the auth repositories
	AuthPool *pgxpool.Pool
	// ContentDB is the database/sql handle backing the content repositories
	ContentDB *sql.DB
	Version   string
	Timeout   time.Duration
}

// NewHandler creates a new health check handler
func NewHandler(cfg Config) *Handler {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &Handler{
		authPool:  cfg.AuthPool,
		contentDB: cfg.ContentDB,
		version:   cfg.Version,
		timeout:   timeout,
		ready:     true,
	}
}

// SetReady sets the readiness state, flipped off during shutdown
func (h *Handler) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
}

// IsReady returns the current readiness state
func (h *Handler) IsReady() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ready
}

// Health handles the main health check endpoint
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	services := make(map[string]ServiceStatus)
	overallStatus := "healthy"

	dbStatus := h.checkDatabase(ctx)
	services["database"] = dbStatus
	if dbStatus.Status != "up" {
		overallStatus = "degraded"
	}

	response := HealthResponse{
		Status:    overallStatus,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  services,
		Version:   h.version,
	}

	w.Header().Set("Content-Type", "application/json")
	if overallStatus == "healthy" {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(response)
}

// Readiness handles the readiness probe endpoint
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ready := h.IsReady()
	if ready {
		if status := h.checkDatabase(ctx); status.Status != "up" {
			ready = false
		}
	}

	response := ReadinessResponse{
		Ready:     ready,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(response)
}

// Liveness handles the liveness probe endpoint
func (h *Handler) Liveness(w http.ResponseWriter, r *http.Request) {
	response := LivenessResponse{
		Alive:     true,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// checkDatabase pings both database handles. The service is up only
// when every configured handle answers.
func (h *Handler) checkDatabase(ctx context.Context) ServiceStatus {
	if h.authPool == nil && h.contentDB == nil {
		return ServiceStatus{
			Status: "down",
			Error:  "database not configured",
		}
	}

	start := time.Now()
	if h.authPool != nil {
		if err := h.authPool.Ping(ctx); err != nil {
			return ServiceStatus{
				Status:  "down",
				Latency: time.Since(start).String(),
				Error:   err.Error(),
			}
		}
	}
	if h.contentDB != nil {
		if err := h.contentDB.PingContext(ctx); err != nil {
			return ServiceStatus{
				Status:  "down",
				Latency: time.Since(start).String(),
				Error:   err.Error(),
			}
		}
	}

	return ServiceStatus{
		Status:  "up",
		Latency: time.Since(start).String(),
	}
}
