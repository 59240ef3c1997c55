//go:build cgo
// +build cgo

package factory

import (
	"context"
	"testing"

	"github.com/BaSui01/agentflow/llm"
	"github.com/BaSui01/agentflow/llm/catalog"
	"github.com/BaSui01/agentflow/llm/credstore"
	"github.com/BaSui01/agentflow/llm/providers/passthrough"
	"github.com/BaSui01/agentflow/llm/providers/qwendirect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fixture struct {
	db   *gorm.DB
	cat  *catalog.Store
	cred *credstore.Store
}

func setup(t *testing.T) *fixture {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	cat := catalog.NewStore(db)
	require.NoError(t, cat.AutoMigrate())
	cred := credstore.NewStore(db)
	require.NoError(t, cred.AutoMigrate())
	return &fixture{db: db, cat: cat, cred: cred}
}

func TestFactory_Create_QwenDirect(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	require.NoError(t, fx.db.Create(&catalog.ProviderRecord{ID: "q1", Name: "Qwen Direct", Type: "qwen_direct", Enabled: true}).Error)

	f := NewFactory(fx.cat, fx.cred, nil)
	p, err := f.Create(ctx, "q1")
	require.NoError(t, err)
	assert.IsType(t, &qwendirect.Provider{}, p)
	assert.Equal(t, "qwen_direct", p.Type())
	_ = p.Destroy()
}

func TestFactory_Create_LMStudio_UsesDefaultBaseURL(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	require.NoError(t, fx.db.Create(&catalog.ProviderRecord{ID: "lm1", Name: "LM Studio", Type: "lm_studio", Enabled: true}).Error)

	f := NewFactory(fx.cat, fx.cred, nil)
	p, err := f.Create(ctx, "lm1")
	require.NoError(t, err)
	assert.IsType(t, &passthrough.Provider{}, p)
}

func TestFactory_Create_GenericRequiresBaseURL(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	require.NoError(t, fx.db.Create(&catalog.ProviderRecord{ID: "g1", Name: "Generic", Type: "generic", Enabled: true}).Error)

	f := NewFactory(fx.cat, fx.cred, nil)
	_, err := f.Create(ctx, "g1")
	require.Error(t, err)
	llmErr, ok := err.(*llm.Error)
	require.True(t, ok)
	assert.Equal(t, llm.ErrConfigInvalid, llmErr.Code)
}

func TestFactory_Create_UnknownTypeFallsBackToGeneric(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	require.NoError(t, fx.db.Create(&catalog.ProviderRecord{ID: "x1", Name: "Mystery", Type: "something_new", Enabled: true}).Error)
	require.NoError(t, fx.cat.SetConfigBag(ctx, "x1", map[string]string{"base_url": "http://localhost:9999"}, nil))

	f := NewFactory(fx.cat, fx.cred, nil)
	p, err := f.Create(ctx, "x1")
	require.NoError(t, err)
	assert.Equal(t, "generic", p.Type())
}

func TestFactory_Create_DisabledProvider(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	require.NoError(t, fx.db.Create(&catalog.ProviderRecord{ID: "d1", Name: "Disabled", Type: "qwen_direct", Enabled: false}).Error)

	f := NewFactory(fx.cat, fx.cred, nil)
	_, err := f.Create(ctx, "d1")
	require.Error(t, err)
	llmErr, ok := err.(*llm.Error)
	require.True(t, ok)
	assert.Equal(t, llm.ErrProviderDisabled, llmErr.Code)
}

func TestFactory_Create_NotFound(t *testing.T) {
	fx := setup(t)
	f := NewFactory(fx.cat, fx.cred, nil)
	_, err := f.Create(context.Background(), "nope")
	require.Error(t, err)
	llmErr, ok := err.(*llm.Error)
	require.True(t, ok)
	assert.Equal(t, llm.ErrProviderNotFound, llmErr.Code)
}
