package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Factory creates a Provider from the durable catalog by id (spec §4.6).
// Defined here (rather than imported from llm/factory) so the registry can
// depend on it without creating an import cycle; llm/factory.Factory
// satisfies this interface.
type Factory interface {
	Create(ctx context.Context, providerID string) (Provider, error)
}

// ProviderRegistry is the process-wide, thread-safe owner of all live
// Provider instances (spec §3 "the registry exclusively owns all live
// Provider instances"). Mutation happens only via Register/Unregister/
// Reload/Clear; reads never observe a partially-swapped provider because
// the map is replaced under a single write lock.
type ProviderRegistry struct {
	providers       map[string]Provider
	defaultProvider string
	factory         Factory
	logger          *zap.Logger
	mu              sync.RWMutex
}

// NewProviderRegistry creates an empty ProviderRegistry backed by factory
// for load_all/reload operations.
func NewProviderRegistry(factory Factory, logger *zap.Logger) *ProviderRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProviderRegistry{
		providers: make(map[string]Provider),
		factory:   factory,
		logger:    logger.With(zap.String("component", "provider_registry")),
	}
}

// Register adds a provider to the registry under its own id, overwriting
// (and destroying) any existing provider with the same id.
func (r *ProviderRegistry) Register(id string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.providers[id]; ok {
		r.logger.Warn("overwriting already-registered provider", zap.String("id", id))
		if existing != nil {
			_ = existing.Destroy()
		}
	}
	r.providers[id] = p
}

// Get retrieves a provider by id, raising if absent (spec §4.6 "get(id) → Provider (throws on absence)").
func (r *ProviderRegistry) Get(id string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	if !ok {
		return nil, &Error{Code: ErrProviderNotFound, Message: fmt.Sprintf("provider %q not registered", id)}
	}
	return p, nil
}

// GetSafe retrieves a provider by id without raising.
func (r *ProviderRegistry) GetSafe(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

// Has reports whether id is currently registered.
func (r *ProviderRegistry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.providers[id]
	return ok
}

// Default returns the default provider, falling back to the first
// registered provider (by id, ascending) when no default has been set
// (spec §4.7 "fall back to the first registered provider").
func (r *ProviderRegistry) Default() (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.defaultProvider != "" {
		if p, ok := r.providers[r.defaultProvider]; ok {
			return p, nil
		}
	}
	ids := r.sortedIDsLocked()
	if len(ids) == 0 {
		return nil, &Error{Code: ErrProviderNotLoaded, Message: "no providers registered"}
	}
	return r.providers[ids[0]], nil
}

// SetDefault designates an existing registered provider as the default.
func (r *ProviderRegistry) SetDefault(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[id]; !ok {
		return &Error{Code: ErrProviderNotFound, Message: fmt.Sprintf("provider %q not registered", id)}
	}
	r.defaultProvider = id
	return nil
}

// GetAll returns every registered provider, keyed by id.
func (r *ProviderRegistry) GetAll() map[string]Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Provider, len(r.providers))
	for id, p := range r.providers {
		out[id] = p
	}
	return out
}

// GetAllIDs returns the sorted ids of all registered providers.
func (r *ProviderRegistry) GetAllIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedIDsLocked()
}

func (r *ProviderRegistry) sortedIDsLocked() []string {
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GetByType returns every registered provider whose Type() matches t.
func (r *ProviderRegistry) GetByType(t string) []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Provider
	for _, id := range r.sortedIDsLocked() {
		if p := r.providers[id]; p.Type() == t {
			out = append(out, p)
		}
	}
	return out
}

// Count returns the number of registered providers.
func (r *ProviderRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// Unregister removes a provider, calling Destroy on it first, and clears
// the default designation if it pointed at the removed id.
func (r *ProviderRegistry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[id]
	if !ok {
		return false
	}
	_ = p.Destroy()
	delete(r.providers, id)
	if r.defaultProvider == id {
		r.defaultProvider = ""
	}
	return true
}

// Clear destroys and removes every registered provider.
func (r *ProviderRegistry) Clear() {
	r.mu.Lock()
	providers := r.providers
	r.providers = make(map[string]Provider)
	r.defaultProvider = ""
	r.mu.Unlock()

	for id, p := range providers {
		if err := p.Destroy(); err != nil {
			r.logger.Warn("provider destroy failed during clear", zap.String("id", id), zap.Error(err))
		}
	}
}

// LoadAll reads all enabled catalog records via the factory and registers
// each one, running an opportunistic health check that is logged but never
// prevents registration (spec §4.6).
func (r *ProviderRegistry) LoadAll(ctx context.Context, ids []string) (int, error) {
	loaded := 0
	for _, id := range ids {
		p, err := r.factory.Create(ctx, id)
		if err != nil {
			r.logger.Error("failed to create provider from catalog", zap.String("id", id), zap.Error(err))
			continue
		}
		r.Register(id, p)
		loaded++

		if status, err := p.HealthCheck(ctx); err != nil || !status.Healthy {
			r.logger.Warn("provider failed opportunistic health check on load",
				zap.String("id", id), zap.Error(err))
		}
	}
	return loaded, nil
}

// Reload unregisters (if present) and re-creates a single provider from the catalog.
func (r *ProviderRegistry) Reload(ctx context.Context, id string) error {
	r.Unregister(id)
	p, err := r.factory.Create(ctx, id)
	if err != nil {
		return err
	}
	r.Register(id, p)
	return nil
}

// ReloadAll clears the registry and reloads every id in ids.
func (r *ProviderRegistry) ReloadAll(ctx context.Context, ids []string) (int, error) {
	r.Clear()
	return r.LoadAll(ctx, ids)
}

// HealthCheckAll runs HealthCheck concurrently via errgroup, one goroutine
// per registered provider with no concurrency limit, and returns a status
// map keyed by id.
func (r *ProviderRegistry) HealthCheckAll(ctx context.Context) map[string]*HealthStatus {
	providers := r.GetAll()
	results := make(map[string]*HealthStatus, len(providers))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for id, p := range providers {
		id, p := id, p
		g.Go(func() error {
			status, err := p.HealthCheck(gctx)
			if err != nil {
				status = &HealthStatus{Healthy: false, Error: err.Error()}
			}
			mu.Lock()
			results[id] = status
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}
