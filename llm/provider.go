// Package llm provides the unified LLM provider abstraction, lifecycle
// registry, and OpenAI-wire-shaped request/response types.
package llm

import (
	"context"
	"time"

	"github.com/BaSui01/agentflow/types"
)

// Re-exported shared wire types, kept here so callers only need to import llm.
type (
	Message    = types.Message
	Role       = types.Role
	ToolCall   = types.ToolCall
	ToolSchema = types.ToolSchema
	ToolResult = types.ToolResult
	Error      = types.Error
	ErrorCode  = types.ErrorCode
)

const (
	RoleSystem    = types.RoleSystem
	RoleUser      = types.RoleUser
	RoleAssistant = types.RoleAssistant
	RoleTool      = types.RoleTool
)

const (
	ErrValidation           = types.ErrValidation
	ErrCredentialsMissing   = types.ErrCredentialsMissing
	ErrCredentialsExpired   = types.ErrCredentialsExpired
	ErrSessionMissing       = types.ErrSessionMissing
	ErrConfigInvalid        = types.ErrConfigInvalid
	ErrProviderNotFound     = types.ErrProviderNotFound
	ErrProviderNotLoaded    = types.ErrProviderNotLoaded
	ErrProviderDisabled     = types.ErrProviderDisabled
	ErrUpstreamRateLimited  = types.ErrUpstreamRateLimited
	ErrUpstreamServerError  = types.ErrUpstreamServerError
	ErrUpstreamNetworkError = types.ErrUpstreamNetworkError
	ErrUpstreamClient4xx    = types.ErrUpstreamClient4xx
	ErrServerError          = types.ErrServerError
)

// Provider is the polymorphic capability every upstream adapter exposes
// (spec §4.5): chat (sync or streaming), list_models, health_check, destroy.
// The registry is the exclusive owner of live Provider instances; callers
// elsewhere hold only borrowed handles.
type Provider interface {
	// ID returns the provider's catalog id.
	ID() string
	// Name returns the provider's display name.
	Name() string
	// Type returns the provider's catalog type (qwen_direct, qwen_proxy, lm_studio, ...).
	Type() string

	// Completion performs a non-streaming chat request.
	Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	// Stream performs a streaming chat request. The returned channel is
	// closed by the provider when the upstream stream ends normally; a
	// final StreamChunk with Err set, followed by channel close, signals
	// an error that occurred after the stream had already started.
	Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error)

	// ListModels returns the provider's configured/advertised models.
	ListModels(ctx context.Context) ([]Model, error)
	// HealthCheck performs a lightweight liveness probe.
	HealthCheck(ctx context.Context) (*HealthStatus, error)
	// Destroy releases any resources owned exclusively by this provider
	// (e.g. a Qwen-direct provider's session-sweep goroutine).
	Destroy() error
}

// HealthStatus represents a provider health check result.
type HealthStatus struct {
	Healthy   bool          `json:"healthy"`
	Latency   time.Duration `json:"latency"`
	Error     string        `json:"error,omitempty"`
}

// ChatRequest is the OpenAI chat-completion request shape this gateway accepts.
type ChatRequest struct {
	Model       string       `json:"model"`
	Messages    []Message    `json:"messages"`
	Stream      bool         `json:"stream,omitempty"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature float32      `json:"temperature,omitempty"`
	TopP        float32      `json:"top_p,omitempty"`
	Stop        []string     `json:"stop,omitempty"`
	Tools       []ToolSchema `json:"tools,omitempty"`
	ToolChoice  string       `json:"tool_choice,omitempty"`

	// Timeout overrides the gateway's default per-request timeout (§5).
	Timeout time.Duration `json:"-"`
	// ProviderID, when non-empty, names the provider to route to
	// explicitly (spec §4.7 "explicit per-request field").
	ProviderID string `json:"-"`
}

// ChatResponse is an OpenAI chat-completion object (spec §4.3.2 non-streaming).
type ChatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   ChatUsage    `json:"usage"`
}

// ChatChoice is a single choice within a ChatResponse.
type ChatChoice struct {
	Index        int     `json:"index"`
	FinishReason string  `json:"finish_reason"`
	Message      Message `json:"message"`
}

// ChatUsage carries token usage; zeroed when the upstream omits it (spec §4.3.2).
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamChunk is an OpenAI chat-completion.chunk (spec §4.3.2 streaming).
// Err is non-nil only for the router's internal use (never serialized as
// part of the normal delta); the router/provider translate a non-nil Err
// into a single OpenAI error-envelope SSE frame before closing the stream.
type StreamChunk struct {
	ID           string      `json:"id"`
	Object       string      `json:"object"`
	Created      int64       `json:"created"`
	Model        string      `json:"model"`
	Index        int         `json:"index"`
	Delta        ChunkDelta  `json:"delta"`
	FinishReason *string     `json:"finish_reason"`
	Usage        *ChatUsage  `json:"usage,omitempty"`
	Err          *Error      `json:"-"`
}

// ChunkDelta is the incremental content carried by one stream chunk.
type ChunkDelta struct {
	Role    Role   `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// Model represents a single entry in an OpenAI models-list response.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// IsRetryable reports whether err is a *Error marked retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}
