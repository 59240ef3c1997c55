// Package router implements the gateway's request router (spec §4.7):
// resolving which provider handles a chat request, delegating to it, and
// translating uncaught provider/registry errors into OpenAI error envelopes.
package router

import (
	"context"

	"github.com/BaSui01/agentflow/llm"
	llmmiddleware "github.com/BaSui01/agentflow/llm/middleware"
	"go.uber.org/zap"
)

// SettingsSource supplies the process-wide active provider id, read from
// durable settings (spec §6 "active_provider"). config.Settings satisfies
// this.
type SettingsSource interface {
	ActiveProvider() string
}

// Router resolves a target provider and delegates chat/list_models calls to
// it (spec §4.7). It owns no provider state itself — the registry does.
type Router struct {
	registry  *llm.ProviderRegistry
	settings  SettingsSource
	logger    *zap.Logger
	rewriters *llmmiddleware.RewriterChain
}

// New constructs a Router. Every request is passed through a fixed rewriter
// chain before dispatch; currently this clears tool_choice on requests with
// an empty tools list, since upstream APIs reject that combination.
func New(registry *llm.ProviderRegistry, settings SettingsSource, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		registry:  registry,
		settings:  settings,
		logger:    logger.With(zap.String("component", "router")),
		rewriters: llmmiddleware.NewRewriterChain(llmmiddleware.NewEmptyToolsCleaner()),
	}
}

// resolveProvider implements spec §4.7 step 1: explicit per-request field,
// else the process-wide active provider, else the first registered
// provider, else error.
func (r *Router) resolveProvider(explicitID string) (llm.Provider, error) {
	if explicitID != "" {
		return r.registry.Get(explicitID)
	}
	if r.settings != nil {
		if active := r.settings.ActiveProvider(); active != "" {
			if p, ok := r.registry.GetSafe(active); ok {
				return p, nil
			}
		}
	}
	return r.registry.Default()
}

// Completion routes a non-streaming chat request to the resolved provider
// (spec §4.7 steps 1-3).
func (r *Router) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	p, err := r.resolveProvider(req.ProviderID)
	if err != nil {
		return nil, err
	}
	req, err = r.rewriters.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	req.Stream = false
	return p.Completion(ctx, req)
}

// Stream routes a streaming chat request to the resolved provider (spec
// §4.7 step 4). The returned channel is exactly the provider's; the router
// does no translation of its own on the happy path.
func (r *Router) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	p, err := r.resolveProvider(req.ProviderID)
	if err != nil {
		return nil, err
	}
	req, err = r.rewriters.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	req.Stream = true
	return p.Stream(ctx, req)
}

// ListModels returns providerID's model list, or (when providerID is empty)
// the resolved active provider's list as the aggregate policy (spec §4.7
// "implementation may choose active-provider-only"). An explicit but unknown
// providerID yields an empty list rather than an error (spec §8).
func (r *Router) ListModels(ctx context.Context, providerID string) ([]llm.Model, error) {
	if providerID != "" {
		p, ok := r.registry.GetSafe(providerID)
		if !ok {
			return []llm.Model{}, nil
		}
		return p.ListModels(ctx)
	}
	p, err := r.resolveProvider("")
	if err != nil {
		return nil, err
	}
	return p.ListModels(ctx)
}
