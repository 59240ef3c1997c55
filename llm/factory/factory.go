// Package factory implements llm.Factory: building a live llm.Provider from
// the durable catalog (spec §4.6). This is the only place that knows the
// mapping from a catalog "type" string to a concrete provider constructor,
// which is why it lives apart from the llm package (it must import the
// concrete provider packages; llm must not, to avoid a cycle).
package factory

import (
	"context"
	"errors"
	"fmt"

	"github.com/BaSui01/agentflow/llm"
	"github.com/BaSui01/agentflow/llm/catalog"
	"github.com/BaSui01/agentflow/llm/credstore"
	"github.com/BaSui01/agentflow/llm/providers/passthrough"
	"github.com/BaSui01/agentflow/llm/providers/qwendirect"
	"go.uber.org/zap"
)

// typeDefaults supplies fallback config values per catalog provider type,
// applied before the stored config bag (bag entries always win).
var typeDefaults = map[string]map[string]string{
	"lm_studio": {"base_url": "http://localhost:1234/v1"},
}

// requiredKeys lists config keys each type cannot construct without.
var requiredKeys = map[string][]string{
	"qwen_proxy": {"base_url"},
	"lm_studio":  {"base_url"},
	"generic":    {"base_url"},
}

// Factory implements llm.Factory against the durable catalog and the
// process-wide Qwen credential store.
type Factory struct {
	store  *catalog.Store
	creds  *credstore.Store
	logger *zap.Logger
}

// NewFactory constructs a Factory.
func NewFactory(store *catalog.Store, creds *credstore.Store, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{store: store, creds: creds, logger: logger.With(zap.String("component", "provider_factory"))}
}

// Create builds a live llm.Provider for providerID, implementing spec
// §4.6's six-step algorithm: load record, load+merge config bag, validate,
// load model bindings, then dispatch to a concrete constructor by type
// (unknown types fall back to the generic passthrough adapter).
func (f *Factory) Create(ctx context.Context, providerID string) (llm.Provider, error) {
	rec, err := f.store.GetProvider(ctx, providerID)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, &llm.Error{Code: llm.ErrProviderNotFound, Message: fmt.Sprintf("provider %q not found in catalog", providerID), HTTPStatus: 404}
	}
	if err != nil {
		return nil, &llm.Error{Code: llm.ErrServerError, Message: err.Error()}
	}
	if !rec.Enabled {
		return nil, &llm.Error{Code: llm.ErrProviderDisabled, Message: fmt.Sprintf("provider %q is disabled", providerID), HTTPStatus: 409}
	}

	bag, err := f.store.GetConfigBag(ctx, providerID)
	if err != nil {
		return nil, &llm.Error{Code: llm.ErrServerError, Message: err.Error()}
	}
	merged := mergeConfig(rec.Type, bag)

	if err := validateConfig(rec.Type, merged); err != nil {
		return nil, &llm.Error{Code: llm.ErrConfigInvalid, Message: err.Error(), Provider: providerID}
	}

	defaultModel, err := f.store.DefaultModelID(ctx, providerID)
	if err != nil {
		return nil, &llm.Error{Code: llm.ErrServerError, Message: err.Error()}
	}

	return f.construct(rec.Type, rec.ID, rec.Name, merged, defaultModel), nil
}

func mergeConfig(providerType string, bag map[string]string) map[string]string {
	merged := make(map[string]string, len(bag))
	for k, v := range typeDefaults[providerType] {
		merged[k] = v
	}
	for k, v := range bag {
		merged[k] = v
	}
	return merged
}

func validateConfig(providerType string, merged map[string]string) error {
	for _, key := range requiredKeys[providerType] {
		if merged[key] == "" {
			return fmt.Errorf("provider type %q is missing required config key %q", providerType, key)
		}
	}
	return nil
}

// construct dispatches to the concrete provider constructor for
// providerType, falling back to the generic passthrough adapter for any
// type it does not recognize (spec §4.6 "unknown→generic fallback").
func (f *Factory) construct(providerType, id, name string, cfg map[string]string, defaultModel string) llm.Provider {
	switch providerType {
	case "qwen_direct":
		return qwendirect.New(qwendirect.Config{
			ID: id, Name: name, BaseURL: cfg["base_url"], DefaultModel: defaultModel,
		}, f.creds, f.logger)
	case "qwen_proxy", "lm_studio":
		return passthrough.New(passthrough.Config{
			ID: id, Name: name, Type: providerType, BaseURL: cfg["base_url"], APIKey: cfg["api_key"],
		}, f.logger)
	default:
		if providerType != "generic" {
			f.logger.Warn("unknown provider type, falling back to generic passthrough",
				zap.String("id", id), zap.String("type", providerType))
		}
		return passthrough.New(passthrough.Config{
			ID: id, Name: name, Type: "generic", BaseURL: cfg["base_url"], APIKey: cfg["api_key"],
		}, f.logger)
	}
}
