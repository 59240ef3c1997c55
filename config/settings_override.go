package config

import (
	"context"
	"strconv"
	"time"

	"github.com/BaSui01/agentflow/llm/catalog"
)

// settingsKey names a single row in the durable "settings" table (spec §6).
const (
	settingsKeyServerPort    = "server.port"
	settingsKeyServerHost    = "server.host"
	settingsKeyRequestTO     = "server.request_timeout"
	settingsKeyLogLevel      = "logging.level"
	settingsKeyLogRequests   = "logging.log_requests"
	settingsKeyLogResponses  = "logging.log_responses"
	settingsKeyActiveProvider = "active_provider"
)

// ApplySettingsOverrides applies the durable "settings" table on top of cfg,
// which has already resolved defaults → YAML → env. Per spec §6/§9 this is
// the final, highest-priority layer: a row present in the database always
// wins. Unknown or malformed rows are skipped rather than erroring, since a
// single bad row should not prevent startup (spec gives no fail-fast
// requirement for this layer).
func ApplySettingsOverrides(ctx context.Context, cfg *Settings, store *catalog.Store) error {
	rows, err := store.AllSettings(ctx)
	if err != nil {
		return err
	}

	if v, ok := rows[settingsKeyServerPort]; ok {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v, ok := rows[settingsKeyServerHost]; ok {
		cfg.Server.Host = v
	}
	if v, ok := rows[settingsKeyRequestTO]; ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.RequestTimeout = d
		}
	}
	if v, ok := rows[settingsKeyLogLevel]; ok {
		cfg.Logging.Level = v
	}
	if v, ok := rows[settingsKeyLogRequests]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Logging.LogRequests = b
		}
	}
	if v, ok := rows[settingsKeyLogResponses]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Logging.LogResponses = b
		}
	}
	if v, ok := rows[settingsKeyActiveProvider]; ok {
		cfg.ActiveProviderID = v
	}

	return nil
}
