package handlers

import (
	"net/http"

	"github.com/BaSui01/agentflow/api"
	"github.com/BaSui01/agentflow/llm"
	"go.uber.org/zap"
)

// =============================================================================
// 🏥 健康检查 Handler
// =============================================================================

// HealthHandler serves GET /health and GET / (spec §4.8).
type HealthHandler struct {
	registry *llm.ProviderRegistry
	logger   *zap.Logger
}

// NewHealthHandler constructs a HealthHandler backed by registry.
func NewHealthHandler(registry *llm.ProviderRegistry, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{registry: registry, logger: logger}
}

// HandleHealth serves GET /health: overall status plus a per-provider
// breakdown (spec §4.8 "{status, providers:{<id>:{status, base_url?, error?}},
// registered_providers:[…]}"), 500 on internal failure.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ids := h.registry.GetAllIDs()
	statuses := h.registry.HealthCheckAll(r.Context())

	resp := api.HealthResponse{
		Status:              "healthy",
		Providers:           make(map[string]api.ProviderHealth, len(ids)),
		RegisteredProviders: ids,
	}

	for _, id := range ids {
		status, ok := statuses[id]
		entry := api.ProviderHealth{Status: "unknown"}
		switch {
		case !ok:
			entry.Status = "unknown"
		case status.Healthy:
			entry.Status = "healthy"
		default:
			entry.Status = "unhealthy"
			entry.Error = status.Error
			resp.Status = "degraded"
		}
		resp.Providers[id] = entry
	}

	if len(ids) == 0 {
		resp.Status = "degraded"
	}

	WriteJSON(w, http.StatusOK, resp)
}

// HandleRoot serves the static GET / API info (spec §4.8).
func (h *HealthHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, api.RootInfo{
		Name:    "agentflow-gateway",
		Version: "1.0.0",
		Docs:    "/v1/chat/completions, /v1/models, /health",
	})
}
