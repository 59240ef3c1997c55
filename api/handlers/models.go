package handlers

import (
	"net/http"

	"github.com/BaSui01/agentflow/api"
	"github.com/BaSui01/agentflow/llm"
	"github.com/BaSui01/agentflow/router"
	"go.uber.org/zap"
)

// ModelsHandler serves GET /v1/models (spec §4.8).
type ModelsHandler struct {
	router *router.Router
	logger *zap.Logger
}

// NewModelsHandler constructs a ModelsHandler backed by r.
func NewModelsHandler(r *router.Router, logger *zap.Logger) *ModelsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelsHandler{router: r, logger: logger}
}

// HandleList serves GET /v1/models[?provider=<id>], returning the named
// provider's models or (unspecified) the active provider's as the aggregate
// policy (spec §4.7 list_models).
func (h *ModelsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	providerID := r.URL.Query().Get("provider")

	models, err := h.router.ListModels(r.Context(), providerID)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	if models == nil {
		models = []llm.Model{}
	}

	WriteJSON(w, http.StatusOK, api.ModelsResponse{Object: "list", Data: models})
}
