package handlers

import (
	"fmt"
	"net/http"

	"modex-hq/aegis/pkg/backend"
)

// HealthResponse is the public health payload.
type HealthResponse struct {
	// API is the service's own status, always "healthy" when serving.
	API string `json:"api"`

	// BackendServer summarizes backend connectivity: "healthy" when every
	// backend is up, "degraded" when some are, "unhealthy" when none are.
	BackendServer string `json:"backend_server"`

	// ModelStatus maps "kind/version" to that backend's status.
	ModelStatus map[string]string `json:"model_status"`
}

// HealthHandler serves GET /health with per-backend detail.
type HealthHandler struct {
	registry *backend.Registry
}

// NewHealthHandler creates the public health handler.
func NewHealthHandler(registry *backend.Registry) *HealthHandler {
	return &HealthHandler{registry: registry}
}

// ServeHTTP reports API and backend health. The response is always 200 with
// status detail in the body; probe endpoints carry the status-code contract.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	snapshot := h.registry.HealthSnapshot()
	modelStatus := make(map[string]string, len(snapshot))
	healthy := 0
	for name, health := range snapshot {
		if health.IsHealthy {
			modelStatus[name] = "healthy"
			healthy++
			continue
		}
		status := "unhealthy"
		if health.LastError != nil {
			status = fmt.Sprintf("unhealthy: %v", health.LastError)
		}
		modelStatus[name] = status
	}

	backendServer := "unhealthy"
	switch {
	case healthy == len(snapshot) && len(snapshot) > 0:
		backendServer = "healthy"
	case healthy > 0:
		backendServer = "degraded"
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		API:           "healthy",
		BackendServer: backendServer,
		ModelStatus:   modelStatus,
	})
}
