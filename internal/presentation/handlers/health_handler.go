package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthChecker defines the interface for health checking components
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// dependency is one health-checked component. A failing critical dependency
// makes the service unhealthy and not ready; any other only degrades it.
type dependency struct {
	name     string
	checker  HealthChecker
	critical bool
}

// HealthHandler serves liveness, readiness and dependency health
type HealthHandler struct {
	deps []dependency
}

// NewHealthHandler creates a new health handler. cache may be nil when the
// snapshot cache is disabled; pipeline reports whether dispersal is running.
func NewHealthHandler(db, cache, pipeline HealthChecker) *HealthHandler {
	deps := []dependency{
		{name: "database", checker: db, critical: true},
		{name: "pipeline", checker: pipeline, critical: true},
	}
	if cache != nil {
		deps = append(deps, dependency{name: "cache", checker: cache})
	}
	return &HealthHandler{deps: deps}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  make(map[string]string, len(h.deps)),
	}

	for _, dep := range h.deps {
		err := dep.checker.HealthCheck(ctx)
		if err == nil {
			response.Services[dep.name] = "healthy"
			continue
		}

		response.Services[dep.name] = "unhealthy: " + err.Error()
		switch {
		case dep.critical:
			response.Status = "unhealthy"
		case response.Status == "healthy":
			response.Status = "degraded"
		}
	}

	status := http.StatusOK
	if response.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

// Ready handles GET /ready; only critical dependencies count
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for _, dep := range h.deps {
		if !dep.critical {
			continue
		}
		if err := dep.checker.HealthCheck(ctx); err != nil {
			http.Error(w, "not ready: "+dep.name, http.StatusServiceUnavailable)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Live handles GET /live
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("alive"))
}
