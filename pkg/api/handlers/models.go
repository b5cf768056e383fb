package handlers

import (
	"net/http"

	"modex-hq/aegis/pkg/backend"
	"modex-hq/aegis/pkg/routing"
)

// ModelInfo describes one registered backend version.
type ModelInfo struct {
	Kind          string `json:"kind"`
	Version       string `json:"version"`
	SupportsBatch bool   `json:"supports_batch"`
	Healthy       bool   `json:"healthy"`
	TrafficWeight int    `json:"traffic_weight"`
}

// ModelsResponse is the payload for GET /models.
type ModelsResponse struct {
	Models        []ModelInfo `json:"models"`
	PolicyVersion int64       `json:"policy_version"`
}

// ModelsHandler serves GET /models: every registered backend version with
// its health and current traffic share.
type ModelsHandler struct {
	registry *backend.Registry
	store    *routing.Store
}

// NewModelsHandler creates the model inventory handler.
func NewModelsHandler(registry *backend.Registry, store *routing.Store) *ModelsHandler {
	return &ModelsHandler{registry: registry, store: store}
}

// ServeHTTP lists models in canonical kind order with versions sorted.
func (h *ModelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	policy := h.store.Current()

	weights := make(map[string]int)
	var policyVersion int64
	if policy != nil {
		policyVersion = policy.Version
		for _, kind := range policy.Kinds() {
			for _, vw := range policy.Weights(kind) {
				weights[string(kind)+"/"+vw.Version] = vw.Weight
			}
		}
	}

	var models []ModelInfo
	for _, kind := range h.registry.Kinds() {
		for _, version := range h.registry.Versions(kind) {
			inv, err := h.registry.Client(kind, version)
			if err != nil {
				continue
			}
			models = append(models, ModelInfo{
				Kind:          string(kind),
				Version:       version,
				SupportsBatch: inv.SupportsBatch(),
				Healthy:       inv.IsHealthy(),
				TrafficWeight: weights[string(kind)+"/"+version],
			})
		}
	}

	writeJSON(w, http.StatusOK, ModelsResponse{
		Models:        models,
		PolicyVersion: policyVersion,
	})
}
