package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BaSui01/agentflow/api"
	"github.com/BaSui01/agentflow/llm"
	"github.com/BaSui01/agentflow/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRegistryWithModels(t *testing.T, id string, models []llm.Model) *router.Router {
	t.Helper()
	reg := llm.NewProviderRegistry(nil, nil)
	reg.Register(id, &mockProvider{id: id, modelsFunc: func() []llm.Model { return models }})
	return router.New(reg, nil, nil)
}

func TestModelsHandler_HandleList_NamedProvider(t *testing.T) {
	logger := zap.NewNop()

	reg := newTestRegistryWithModels(t, "p1", []llm.Model{{ID: "qwen3-max", Object: "model"}})
	handler := NewModelsHandler(reg, logger)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1/models?provider=p1", nil)
	handler.HandleList(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var resp api.ModelsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "list", resp.Object)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "qwen3-max", resp.Data[0].ID)
}

func TestModelsHandler_HandleList_UnknownProvider(t *testing.T) {
	logger := zap.NewNop()
	reg := newTestRegistryWithModels(t, "p1", nil)
	handler := NewModelsHandler(reg, logger)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1/models?provider=nope", nil)
	handler.HandleList(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
}
