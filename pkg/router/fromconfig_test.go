package router

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arfandy/toolbridge/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Providers = []config.ProviderConfig{
		{Name: "desktop", Command: "desktop-tools", Args: []string{"--stdio"}},
	}
	cfg.Routes = map[string]config.RouteConfig{
		"type_and_submit": {
			Provider:     "desktop",
			Tool:         "fill",
			FollowUpTool: "press_key",
			FollowUpArgs: map[string]interface{}{"key": "Enter"},
		},
	}
	cfg.Recorder = config.RecorderConfig{
		Mode:          "sqlite",
		Path:          filepath.Join(t.TempDir(), "events.db"),
		MaxEventBytes: 1024,
	}
	return cfg
}

func TestNewFromConfig(t *testing.T) {
	r, err := NewFromConfig(testConfig(t))
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, []string{"desktop"}, r.Pool().Names())

	r.mu.RLock()
	route, ok := r.routes["type_and_submit"]
	r.mu.RUnlock()
	require.True(t, ok)
	assert.Equal(t, "fill", route.Tool)
	require.NotNil(t, route.FollowUp)
	assert.Equal(t, "press_key", route.FollowUp.Tool)

	r.mu.RLock()
	rec := r.rec
	r.mu.RUnlock()
	require.NotNil(t, rec)
	assert.True(t, rec.Running())
}

func TestNewFromConfig_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Providers[0].Name = ""

	_, err := NewFromConfig(cfg)
	assert.Error(t, err)
}

func TestNewFromConfig_BadRefreshExpression(t *testing.T) {
	cfg := testConfig(t)
	cfg.CatalogRefresh = "nope"

	_, err := NewFromConfig(cfg)
	assert.Error(t, err)
}

func TestApplyConfig_ReconcilesProvidersAndRoutes(t *testing.T) {
	r, err := NewFromConfig(testConfig(t))
	require.NoError(t, err)
	defer r.Close()

	next := config.DefaultConfig()
	next.Providers = []config.ProviderConfig{
		{Name: "browser", Command: "browser-tools"},
	}
	next.Routes = map[string]config.RouteConfig{
		"open_page": {Provider: "browser", Tool: "navigate"},
	}
	require.NoError(t, r.ApplyConfig(next))

	assert.Equal(t, []string{"browser"}, r.Pool().Names())

	// The old route is gone; executing it now reports tool not found.
	res := decode(t, r.Execute(context.Background(), "type_and_submit", nil))
	assert.Equal(t, "tool_not_found", res["code"])
}

func TestClose_Idempotent(t *testing.T) {
	r, err := NewFromConfig(testConfig(t))
	require.NoError(t, err)

	r.Close()
	r.Close()
}
