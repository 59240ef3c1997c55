package handlers

import (
	"bytes"
	"context"
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

// =============================================================================
// 🧪 模拟提供商
// =============================================================================

type mockProvider struct {
	id             string
	completionFunc func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)
	streamFunc     func(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error)
	modelsFunc     func() []llm.Model
}

func (m *mockProvider) ID() string   { return m.id }
func (m *mockProvider) Name() string { return m.id }
func (m *mockProvider) Type() string { return "mock" }
func (m *mockProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	return m.completionFunc(ctx, req)
}
func (m *mockProvider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	return m.streamFunc(ctx, req)
}
func (m *mockProvider) ListModels(ctx context.Context) ([]llm.Model, error) {
	if m.modelsFunc != nil {
		return m.modelsFunc(), nil
	}
	return nil, nil
}
func (m *mockProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}
func (m *mockProvider) Destroy() error { return nil }

func newTestRouter(p *mockProvider) *router.Router {
	reg := llm.NewProviderRegistry(nil, nil)
	reg.Register(p.id, p)
	return router.New(reg, nil, nil)
}

// =============================================================================
// 🧪 ChatHandler 测试
// =============================================================================

func TestChatHandler_HandleCompletion(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name           string
		request        api.ChatCompletionRequest
		mockResponse   *llm.ChatResponse
		expectedStatus int
		checkResponse  func(*testing.T, *llm.ChatResponse)
	}{
		{
			name: "successful completion",
			request: api.ChatCompletionRequest{ChatRequest: llm.ChatRequest{
				Model:    "gpt-4",
				Messages: []llm.Message{{Role: llm.RoleUser, Content: "Hello"}},
			}},
			mockResponse: &llm.ChatResponse{
				ID:    "test-id",
				Model: "gpt-4",
				Choices: []llm.ChatChoice{{
					Index: 0, FinishReason: "stop",
					Message: llm.Message{Role: llm.RoleAssistant, Content: "Hi there!"},
				}},
				Usage: llm.ChatUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
			},
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, resp *llm.ChatResponse) {
				assert.Equal(t, "test-id", resp.ID)
				assert.Len(t, resp.Choices, 1)
				assert.Equal(t, "Hi there!", resp.Choices[0].Message.Content)
			},
		},
		{
			name: "missing model",
			request: api.ChatCompletionRequest{ChatRequest: llm.ChatRequest{
				Messages: []llm.Message{{Role: llm.RoleUser, Content: "Hello"}},
			}},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "empty messages",
			request: api.ChatCompletionRequest{ChatRequest: llm.ChatRequest{
				Model: "gpt-4",
			}},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "invalid temperature",
			request: api.ChatCompletionRequest{ChatRequest: llm.ChatRequest{
				Model:       "gpt-4",
				Messages:    []llm.Message{{Role: llm.RoleUser, Content: "Hello"}},
				Temperature: 3.0,
			}},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &mockProvider{
				id: "mock",
				completionFunc: func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
					return tt.mockResponse, nil
				},
			}
			handler := NewChatHandler(newTestRouter(provider), logger)

			body, err := json.Marshal(tt.request)
			require.NoError(t, err)

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
			r.Header.Set("Content-Type", "application/json")

			handler.HandleCompletion(w, r)

			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.expectedStatus == http.StatusOK && tt.checkResponse != nil {
				var resp llm.ChatResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
				tt.checkResponse(t, &resp)
			}
		})
	}
}

func TestChatHandler_HandleCompletion_Stream(t *testing.T) {
	logger := zap.NewNop()

	chunks := []llm.StreamChunk{
		{ID: "test-id", Model: "gpt-4", Delta: llm.ChunkDelta{Role: llm.RoleAssistant, Content: "Hello"}},
		{ID: "test-id", Model: "gpt-4", Delta: llm.ChunkDelta{Content: " world"}, FinishReason: strPtr("stop")},
	}

	provider := &mockProvider{
		id: "mock",
		streamFunc: func(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
			ch := make(chan llm.StreamChunk, len(chunks))
			for _, c := range chunks {
				ch <- c
			}
			close(ch)
			return ch, nil
		},
	}
	handler := NewChatHandler(newTestRouter(provider), logger)

	request := api.ChatCompletionRequest{ChatRequest: llm.ChatRequest{
		Model:    "gpt-4",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "Hello"}},
		Stream:   true,
	}}

	body, err := json.Marshal(request)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")

	handler.HandleCompletion(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "data: [DONE]")
}

func TestChatHandler_HandleCompletion_Stream_InvalidRequest(t *testing.T) {
	logger := zap.NewNop()
	provider := &mockProvider{id: "mock"}
	handler := NewChatHandler(newTestRouter(provider), logger)

	request := api.ChatCompletionRequest{ChatRequest: llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "Hello"}},
		Stream:   true,
	}}

	body, err := json.Marshal(request)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")

	handler.HandleCompletion(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidateChatRequest(t *testing.T) {
	tests := []struct {
		name    string
		request *llm.ChatRequest
		wantErr bool
	}{
		{
			name:    "valid request",
			request: &llm.ChatRequest{Model: "gpt-4", Messages: []llm.Message{{Role: llm.RoleUser, Content: "Hello"}}, Temperature: 0.7, TopP: 0.9},
		},
		{name: "missing model", request: &llm.ChatRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: "Hello"}}}, wantErr: true},
		{name: "empty messages", request: &llm.ChatRequest{Model: "gpt-4"}, wantErr: true},
		{name: "invalid temperature too low", request: &llm.ChatRequest{Model: "gpt-4", Messages: []llm.Message{{Role: llm.RoleUser, Content: "Hello"}}, Temperature: -0.1}, wantErr: true},
		{name: "invalid temperature too high", request: &llm.ChatRequest{Model: "gpt-4", Messages: []llm.Message{{Role: llm.RoleUser, Content: "Hello"}}, Temperature: 2.1}, wantErr: true},
		{name: "invalid top_p too low", request: &llm.ChatRequest{Model: "gpt-4", Messages: []llm.Message{{Role: llm.RoleUser, Content: "Hello"}}, TopP: -0.1}, wantErr: true},
		{name: "invalid top_p too high", request: &llm.ChatRequest{Model: "gpt-4", Messages: []llm.Message{{Role: llm.RoleUser, Content: "Hello"}}, TopP: 1.1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateChatRequest(tt.request)
			if tt.wantErr {
				assert.NotNil(t, err)
			} else {
				assert.Nil(t, err)
			}
		})
	}
}

func TestResolveProviderField(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("X-Provider-Id", "from-header")

	assert.Equal(t, "from-body", resolveProviderField("from-body", r))
	assert.Equal(t, "from-header", resolveProviderField("", r))
}

func strPtr(s string) *string { return &s }
