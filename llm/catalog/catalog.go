// Package catalog is the durable store for provider records, their config
// bags, the model list, and provider↔model bindings (spec §3, §6). It backs
// llm/factory.Factory.Create, which reads a ProviderRecord plus its
// ProviderConfig bag and ProviderModel bindings to construct a live
// llm.Provider.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ProviderRecord is a configured provider entry (table "providers").
type ProviderRecord struct {
	ID          string    `gorm:"column:id;primaryKey;size:64" json:"id"`
	Name        string    `gorm:"column:name;size:200;not null" json:"name"`
	Type        string    `gorm:"column:type;size:32;not null;index" json:"type"` // lm_studio | qwen_proxy | qwen_direct | generic
	Enabled     bool      `gorm:"column:enabled;default:true" json:"enabled"`
	Priority    int       `gorm:"column:priority;default:100" json:"priority"`
	Description string    `gorm:"column:description;type:text" json:"description"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (ProviderRecord) TableName() string { return "providers" }

// ProviderConfig is a single key/value entry in a provider's config bag
// (table "provider_configs"). IsSensitive marks values (tokens, base URLs
// with embedded credentials) that should never be logged verbatim.
type ProviderConfig struct {
	ID          uint   `gorm:"column:id;primaryKey" json:"id"`
	ProviderID  string `gorm:"column:provider_id;size:64;not null;uniqueIndex:idx_provider_key" json:"provider_id"`
	Key         string `gorm:"column:key;size:100;not null;uniqueIndex:idx_provider_key" json:"key"`
	Value       string `gorm:"column:value;type:text" json:"value"`
	IsSensitive bool   `gorm:"column:is_sensitive;default:false" json:"is_sensitive"`
}

func (ProviderConfig) TableName() string { return "provider_configs" }

// Model is an abstract model name offered through the gateway (table "models").
type Model struct {
	ID           string `gorm:"column:id;primaryKey;size:100" json:"id"`
	Name         string `gorm:"column:name;size:200" json:"name"`
	Description  string `gorm:"column:description;type:text" json:"description"`
	Capabilities string `gorm:"column:capabilities;type:text" json:"capabilities"` // JSON array, stored flat
}

func (Model) TableName() string { return "models" }

// ProviderModel binds a Model to a ProviderRecord, with at most one default
// per provider (table "provider_models").
type ProviderModel struct {
	ID         uint   `gorm:"column:id;primaryKey" json:"id"`
	ProviderID string `gorm:"column:provider_id;size:64;not null;index:idx_provider" json:"provider_id"`
	ModelID    string `gorm:"column:model_id;size:100;not null;index:idx_model" json:"model_id"`
	IsDefault  bool   `gorm:"column:is_default;default:false" json:"is_default"`
}

func (ProviderModel) TableName() string { return "provider_models" }

// Setting is a single startup-loaded key/value row (table "settings"). Per
// spec §6, values found here override both defaults and environment
// variables (the reverse of the ambient config loader's own priority).
type Setting struct {
	Key   string `gorm:"column:key;primaryKey;size:100" json:"key"`
	Value string `gorm:"column:value;type:text" json:"value"`
}

func (Setting) TableName() string { return "settings" }

// AllModels returns every GORM model owned by this package, for AutoMigrate.
func AllModels() []any {
	return []any{&ProviderRecord{}, &ProviderConfig{}, &Model{}, &ProviderModel{}, &Setting{}}
}

// ErrNotFound is returned when a catalog lookup finds no matching row.
var ErrNotFound = errors.New("catalog: not found")

// Store is the read/write façade the factory, router, and config glue use
// against the durable catalog tables.
type Store struct {
	db *gorm.DB
}

// NewStore wraps an existing *gorm.DB connection.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates/updates the catalog tables. This is the dev-convenience
// path; internal/migration's golang-migrate runner is the source of truth
// for production schema changes (spec §6 "column names must be preserved").
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(AllModels()...)
}

// GetProvider loads a single provider record by id.
func (s *Store) GetProvider(ctx context.Context, id string) (*ProviderRecord, error) {
	var rec ProviderRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// ListProviders returns every provider record, optionally filtered to
// enabled-only, ordered by priority descending then id ascending.
func (s *Store) ListProviders(ctx context.Context, enabledOnly bool) ([]ProviderRecord, error) {
	q := s.db.WithContext(ctx).Order("priority DESC, id ASC")
	if enabledOnly {
		q = q.Where("enabled = ?", true)
	}
	var recs []ProviderRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// GetConfigBag loads a provider's config bag as a plain key→value map. The
// is_sensitive flag is consulted by callers before logging values, never by
// this method (it has no logging side effects of its own).
func (s *Store) GetConfigBag(ctx context.Context, providerID string) (map[string]string, error) {
	var rows []ProviderConfig
	if err := s.db.WithContext(ctx).Where("provider_id = ?", providerID).Find(&rows).Error; err != nil {
		return nil, err
	}
	bag := make(map[string]string, len(rows))
	for _, r := range rows {
		bag[r.Key] = r.Value
	}
	return bag, nil
}

// SetConfigBag replaces a provider's entire config bag atomically
// (delete-then-insert, mirroring the credential store's replace semantics).
func (s *Store) SetConfigBag(ctx context.Context, providerID string, bag map[string]string, sensitive map[string]bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("provider_id = ?", providerID).Delete(&ProviderConfig{}).Error; err != nil {
			return err
		}
		if len(bag) == 0 {
			return nil
		}
		rows := make([]ProviderConfig, 0, len(bag))
		for k, v := range bag {
			rows = append(rows, ProviderConfig{
				ProviderID:  providerID,
				Key:         k,
				Value:       v,
				IsSensitive: sensitive[k],
			})
		}
		return tx.Create(&rows).Error
	})
}

// ProviderModelBinding is a ProviderModel joined with its Model row.
type ProviderModelBinding struct {
	ProviderModel
	Model Model
}

// GetProviderModels returns every model bound to a provider, with the
// default (if any) first.
func (s *Store) GetProviderModels(ctx context.Context, providerID string) ([]ProviderModelBinding, error) {
	var bindings []ProviderModel
	if err := s.db.WithContext(ctx).
		Where("provider_id = ?", providerID).
		Order("is_default DESC, model_id ASC").
		Find(&bindings).Error; err != nil {
		return nil, err
	}
	out := make([]ProviderModelBinding, 0, len(bindings))
	for _, b := range bindings {
		var m Model
		if err := s.db.WithContext(ctx).First(&m, "id = ?", b.ModelID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, ProviderModelBinding{ProviderModel: b, Model: m})
	}
	return out, nil
}

// DefaultModelID returns the provider's default model id, or "" if none is bound.
func (s *Store) DefaultModelID(ctx context.Context, providerID string) (string, error) {
	bindings, err := s.GetProviderModels(ctx, providerID)
	if err != nil {
		return "", err
	}
	for _, b := range bindings {
		if b.IsDefault {
			return b.ModelID, nil
		}
	}
	if len(bindings) > 0 {
		return bindings[0].ModelID, nil
	}
	return "", nil
}

// GetSetting reads a single settings row, returning ("", false) if absent.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var row Setting
	if err := s.db.WithContext(ctx).First(&row, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return row.Value, true, nil
}

// AllSettings loads every settings row as a map, for the config loader's
// final DB-overrides-env pass (spec §6).
func (s *Store) AllSettings(ctx context.Context) (map[string]string, error) {
	var rows []Setting
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

// DecodeCapabilities best-effort decodes a Model's flat JSON capabilities
// column into a string slice; an empty/invalid column yields nil, never an error.
func DecodeCapabilities(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
