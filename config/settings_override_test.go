//go:build cgo
// +build cgo

package config

import (
	"context"
	"testing"
	"time"

	"github.com/BaSui01/agentflow/llm/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestCatalog(t *testing.T) (*catalog.Store, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	store := catalog.NewStore(db)
	require.NoError(t, store.AutoMigrate())
	return store, db
}

func TestApplySettingsOverrides_EmptyStoreLeavesDefaults(t *testing.T) {
	store, _ := setupTestCatalog(t)
	cfg := DefaultSettings()

	require.NoError(t, ApplySettingsOverrides(context.Background(), cfg, store))

	assert.Equal(t, DefaultSettings().Server.Port, cfg.Server.Port)
	assert.Empty(t, cfg.ActiveProviderID)
}

func TestApplySettingsOverrides_DatabaseWinsOverEnvAndDefaults(t *testing.T) {
	store, db := setupTestCatalog(t)

	rows := []catalog.Setting{
		{Key: settingsKeyServerPort, Value: "9000"},
		{Key: settingsKeyServerHost, Value: "db-host"},
		{Key: settingsKeyRequestTO, Value: "45s"},
		{Key: settingsKeyLogLevel, Value: "debug"},
		{Key: settingsKeyLogRequests, Value: "true"},
		{Key: settingsKeyActiveProvider, Value: "qwen-main"},
	}
	require.NoError(t, db.Create(&rows).Error)

	cfg := DefaultSettings()
	cfg.Server.Port = 1234 // simulate an env-set value that the DB must override

	require.NoError(t, ApplySettingsOverrides(context.Background(), cfg, store))

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "db-host", cfg.Server.Host)
	assert.Equal(t, 45*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.LogRequests)
	assert.Equal(t, "qwen-main", cfg.ActiveProviderID)
}

func TestApplySettingsOverrides_MalformedRowIsSkipped(t *testing.T) {
	store, db := setupTestCatalog(t)

	require.NoError(t, db.Create(&catalog.Setting{Key: settingsKeyServerPort, Value: "not-a-number"}).Error)

	cfg := DefaultSettings()
	require.NoError(t, ApplySettingsOverrides(context.Background(), cfg, store))

	assert.Equal(t, DefaultSettings().Server.Port, cfg.Server.Port)
}
