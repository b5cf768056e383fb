package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"modex-hq/aegis/pkg/api/middleware"
	"modex-hq/aegis/pkg/backend"
	"modex-hq/aegis/pkg/routing"
	"modex-hq/aegis/pkg/telemetry/metrics"
)

// RoutingStateResponse is the payload for GET /admin/routing.
type RoutingStateResponse struct {
	PolicyVersion int64                                           `json:"policy_version"`
	Policy        map[string][]routing.VersionWeight              `json:"policy"`
	Selections    map[backend.Kind]map[string]routing.VersionStats `json:"selections"`
}

// PromoteRequest is the payload for POST /admin/routing/promote.
type PromoteRequest struct {
	Kind    string `json:"kind"`
	Version string `json:"version"`
}

// PolicyUpdateRequest is the payload for POST /admin/routing/policy.
type PolicyUpdateRequest struct {
	Policy map[string][]routing.VersionWeight `json:"policy"`
}

// AdminRoutingHandler serves the routing administration endpoints: policy
// inspection, version promotion, and full policy replacement. Updates are
// atomic — a rejected policy leaves the previous snapshot active. Policy
// changes drive the backends' model-control surface: versions entering the
// policy are loaded before the snapshot swap, retired versions are unloaded
// after it.
type AdminRoutingHandler struct {
	router   *routing.Router
	registry *backend.Registry  // nil skips model-control calls
	metrics  *metrics.Collector // nil when metrics are disabled
	logger   *slog.Logger
}

// NewAdminRoutingHandler creates the routing admin handler.
func NewAdminRoutingHandler(router *routing.Router, registry *backend.Registry, collector *metrics.Collector) *AdminRoutingHandler {
	return &AdminRoutingHandler{
		router:   router,
		registry: registry,
		metrics:  collector,
		logger:   slog.Default().With("component", "api.admin.routing"),
	}
}

// State serves GET /admin/routing.
func (h *AdminRoutingHandler) State(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	policy := h.router.Store().Current()
	resp := RoutingStateResponse{
		Policy:     make(map[string][]routing.VersionWeight),
		Selections: h.router.Stats().Snapshot(),
	}
	if policy != nil {
		resp.PolicyVersion = policy.Version
		for _, kind := range policy.Kinds() {
			resp.Policy[string(kind)] = policy.Weights(kind)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Promote serves POST /admin/routing/promote: send 100% of a kind's traffic
// to one version.
func (h *AdminRoutingHandler) Promote(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	var req PromoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body", requestID)
		return
	}

	kind := backend.Kind(req.Kind)
	if err := h.loadVersion(r.Context(), kind, req.Version); err != nil {
		h.recordUpdate(false)
		code := http.StatusBadGateway
		if errors.Is(err, backend.ErrUnknownKind) || errors.Is(err, backend.ErrUnknownVersion) {
			code = http.StatusBadRequest
		}
		writeError(w, code, fmt.Sprintf("failed to load %s/%s: %v", req.Kind, req.Version, err), requestID)
		return
	}

	previous := h.router.Store().Current()
	policy, err := h.router.Store().Promote(kind, req.Version)
	if err != nil {
		h.recordUpdate(false)
		code := http.StatusBadRequest
		if errors.Is(err, routing.ErrNoPolicy) {
			code = http.StatusNotFound
		}
		writeError(w, code, err.Error(), requestID)
		return
	}
	h.unloadRetired(r.Context(), previous, policy)

	h.recordUpdate(true)
	h.logger.Info("version promoted",
		"request_id", requestID,
		"kind", req.Kind,
		"version", req.Version,
		"policy_version", policy.Version,
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"policy_version": policy.Version,
	})
}

// UpdatePolicy serves POST /admin/routing/policy: replace the whole rollout
// policy.
func (h *AdminRoutingHandler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	var req PolicyUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body", requestID)
		return
	}

	weights := make(map[backend.Kind][]routing.VersionWeight, len(req.Policy))
	for kind, vws := range req.Policy {
		weights[backend.Kind(kind)] = vws
	}

	previous := h.router.Store().Current()
	if err := h.loadEntering(r.Context(), previous, weights); err != nil {
		h.recordUpdate(false)
		writeError(w, http.StatusBadGateway, err.Error(), requestID)
		return
	}

	policy, err := h.router.Store().Install(weights)
	if err != nil {
		h.recordUpdate(false)
		writeError(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}
	h.unloadRetired(r.Context(), previous, policy)

	h.recordUpdate(true)
	h.logger.Info("routing policy replaced",
		"request_id", requestID,
		"policy_version", policy.Version,
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"policy_version": policy.Version,
	})
}

// loadVersion issues the model-control load call for one version.
func (h *AdminRoutingHandler) loadVersion(ctx context.Context, kind backend.Kind, version string) error {
	if h.registry == nil {
		return nil
	}
	client, err := h.registry.Client(kind, version)
	if err != nil {
		return err
	}
	return client.Load(ctx)
}

// loadEntering loads every version the candidate policy adds over the
// previous snapshot. A failed load rejects the update before any swap.
func (h *AdminRoutingHandler) loadEntering(ctx context.Context, previous *routing.Policy, weights map[backend.Kind][]routing.VersionWeight) error {
	if h.registry == nil {
		return nil
	}
	for kind, vws := range weights {
		active := make(map[string]bool)
		if previous != nil {
			for _, vw := range previous.Weights(kind) {
				active[vw.Version] = true
			}
		}
		for _, vw := range vws {
			if active[vw.Version] {
				continue
			}
			if err := h.loadVersion(ctx, kind, vw.Version); err != nil {
				return fmt.Errorf("failed to load %s/%s: %w", kind, vw.Version, err)
			}
		}
	}
	return nil
}

// unloadRetired unloads every version the new snapshot dropped. Retirement
// is best-effort: the policy has already swapped, so failures only log.
func (h *AdminRoutingHandler) unloadRetired(ctx context.Context, previous, current *routing.Policy) {
	if h.registry == nil || previous == nil {
		return
	}
	for _, kind := range previous.Kinds() {
		retained := make(map[string]bool)
		for _, vw := range current.Weights(kind) {
			retained[vw.Version] = true
		}
		for _, vw := range previous.Weights(kind) {
			if retained[vw.Version] {
				continue
			}
			client, err := h.registry.Client(kind, vw.Version)
			if err != nil {
				continue
			}
			if err := client.Unload(ctx); err != nil {
				h.logger.Warn("failed to unload retired version",
					"kind", string(kind),
					"version", vw.Version,
					"error", err,
				)
			}
		}
	}
}

// recordUpdate emits policy update metrics when enabled.
func (h *AdminRoutingHandler) recordUpdate(accepted bool) {
	if h.metrics == nil {
		return
	}
	h.metrics.Routing().RecordPolicyUpdate(accepted)
	if accepted {
		if policy := h.router.Store().Current(); policy != nil {
			h.metrics.Routing().SetPolicyVersion(policy.Version)
		}
	}
}
