// Package api defines the gateway's OpenAI-compatible wire types (spec §6).
// Chat completion request/response/chunk shapes are re-exported directly
// from llm, since llm.ChatRequest/ChatResponse/StreamChunk are already
// OpenAI-wire-shaped (spec §9 "no separate internal representation") — this
// package only adds the envelope types the HTTP front end needs on top:
// the request's optional provider-routing field, the models list, the
// error envelope, and the health response.
package api

import "github.com/BaSui01/agentflow/llm"

// ChatCompletionRequest is the POST /v1/chat/completions body (spec §6).
// Provider is this gateway's implementation-defined routing field (spec
// §4.7 step 1 "explicit per-request field, may be a header or body field");
// when empty, the X-Provider-Id header is checked next, then settings.
type ChatCompletionRequest struct {
	llm.ChatRequest
	Provider string `json:"provider,omitempty"`
}

// ChatCompletionResponse is the non-streaming OpenAI chat-completion object.
type ChatCompletionResponse = llm.ChatResponse

// ChatCompletionChunk is a single OpenAI chat-completion.chunk SSE frame.
type ChatCompletionChunk = llm.StreamChunk

// ModelsResponse is the GET /v1/models response (spec §4.8, §6).
type ModelsResponse struct {
	Object string     `json:"object"`
	Data   []llm.Model `json:"data"`
}

// ErrorEnvelope is the OpenAI-shaped error body (spec §7): {error:{message, type, code}}.
type ErrorEnvelope struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the mapped envelope type alongside the gateway's own
// wire error code (spec §8 scenario 4: type:"server_error", code:"credentials_missing").
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// ProviderHealth is one entry of HealthResponse.Providers (spec §4.8).
type ProviderHealth struct {
	Status  string `json:"status"`
	BaseURL string `json:"base_url,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse is the GET /health body (spec §4.8).
type HealthResponse struct {
	Status              string                    `json:"status"`
	Providers           map[string]ProviderHealth `json:"providers"`
	RegisteredProviders []string                  `json:"registered_providers"`
}

// RootInfo is the static GET / API info body.
type RootInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Docs    string `json:"docs,omitempty"`
}
