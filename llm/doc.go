// Copyright 2024 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a MIT license that can be
// found in the LICENSE file.

/*
Package llm provides the unified LLM provider abstraction and its
process-wide lifecycle registry.

# Architecture

	┌─────────────────────────────────────────────────────────────┐
	│                        HTTP front end (api)                  │
	├─────────────────────────────────────────────────────────────┤
	│                         Router (router)                      │
	├─────────────────────────────────────────────────────────────┤
	│              ProviderRegistry (llm.ProviderRegistry)          │
	│   Register / Unregister / Reload / Clear / HealthCheckAll    │
	├──────────────┬──────────────┬────────────────────────────────┤
	│ qwen-direct  │ qwen-proxy   │ lm-studio / generic-openai     │
	│ (hard)       │ (passthrough)│ (passthrough)                 │
	└──────────────┴──────────────┴────────────────────────────────┘

# Provider Interface

	type Provider interface {
	    ID() string
	    Name() string
	    Type() string
	    Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	    Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error)
	    ListModels(ctx context.Context) ([]Model, error)
	    HealthCheck(ctx context.Context) (*HealthStatus, error)
	    Destroy() error
	}

ChatRequest/ChatResponse/StreamChunk/Model are OpenAI-wire-shaped; providers
translate between this shape and whatever the upstream actually speaks
(llm/providers/qwendirect does the hard direction, llm/providers/passthrough
forwards bytes unchanged).

# Registry

ProviderRegistry is the single process-wide owner of live Provider
instances. It is constructed with a Factory (llm/factory.Factory) used for
LoadAll/Reload/ReloadAll; callers elsewhere only ever hold borrowed handles
obtained via Get/GetSafe.

Use IsRetryable to check whether a returned *Error permits a caller-level retry.
*/
package llm
