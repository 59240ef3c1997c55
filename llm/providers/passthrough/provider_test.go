package passthrough

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BaSui01/agentflow/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_Completion_ForwardsUnchanged(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		resp := llm.ChatResponse{
			ID: "resp-1", Object: "chat.completion", Model: "local-model",
			Choices: []llm.ChatChoice{{Index: 0, FinishReason: "stop", Message: llm.Message{Role: llm.RoleAssistant, Content: "hi"}}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := New(Config{ID: "local", Name: "Local Studio", Type: "lm_studio", BaseURL: srv.URL, APIKey: "secret"}, nil)
	resp, err := p.Completion(context.Background(), &llm.ChatRequest{
		Model:    "local-model",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Choices[0].Message.Content)
	assert.Equal(t, "local-model", gotBody["model"])
	assert.Equal(t, false, gotBody["stream"])
}

func TestProvider_Completion_MapsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("rate limited"))
	}))
	defer srv.Close()

	p := New(Config{ID: "local", BaseURL: srv.URL}, nil)
	_, err := p.Completion(context.Background(), &llm.ChatRequest{Model: "m", Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}}})
	require.Error(t, err)
	llmErr, ok := err.(*llm.Error)
	require.True(t, ok)
	assert.Equal(t, llm.ErrUpstreamRateLimited, llmErr.Code)
	assert.True(t, llmErr.Retryable)
}

func TestProvider_Stream_RelaysChunksUntilDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		frames := []string{
			`{"id":"1","object":"chat.completion.chunk","model":"m","delta":{"role":"assistant","content":"he"},"finish_reason":null}`,
			`{"id":"1","object":"chat.completion.chunk","model":"m","delta":{"content":"llo"},"finish_reason":null}`,
			`{"id":"1","object":"chat.completion.chunk","model":"m","delta":{},"finish_reason":"stop"}`,
		}
		for _, f := range frames {
			_, _ = w.Write([]byte("data: " + f + "\n\n"))
			flusher.Flush()
		}
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
		flusher.Flush()
	}))
	defer srv.Close()

	p := New(Config{ID: "local", BaseURL: srv.URL}, nil)
	ch, err := p.Stream(context.Background(), &llm.ChatRequest{Model: "m", Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}}})
	require.NoError(t, err)

	var got []llm.StreamChunk
	for c := range ch {
		got = append(got, c)
	}
	require.Len(t, got, 3)
	assert.Equal(t, "he", got[0].Delta.Content)
	assert.Equal(t, "llo", got[1].Delta.Content)
	require.NotNil(t, got[2].FinishReason)
	assert.Equal(t, "stop", *got[2].FinishReason)
}
