package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Providers = []ProviderConfig{
		{Name: "desktop", Command: "desktop-tools", Args: []string{"--stdio"}},
	}
	cfg.Routes = map[string]RouteConfig{
		"type_and_submit": {Provider: "desktop", Tool: "fill", FollowUpTool: "press_key"},
	}
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 30, cfg.Timeouts.ConnectSeconds)
	assert.Equal(t, 60, cfg.Timeouts.ExecuteSeconds)
	assert.Equal(t, "off", cfg.Recorder.Mode)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"empty provider name", func(c *Config) { c.Providers[0].Name = "" }, "name is required"},
		{"dotted provider name", func(c *Config) { c.Providers[0].Name = "a.b" }, "must not contain"},
		{"duplicate provider", func(c *Config) {
			c.Providers = append(c.Providers, c.Providers[0])
		}, "duplicate"},
		{"missing command", func(c *Config) { c.Providers[0].Command = "" }, "command is required"},
		{"route to unknown provider", func(c *Config) {
			c.Routes["x"] = RouteConfig{Provider: "ghost", Tool: "t"}
		}, "unknown provider"},
		{"route missing tool", func(c *Config) {
			c.Routes["x"] = RouteConfig{Provider: "desktop"}
		}, "tool are required"},
		{"zero connect timeout", func(c *Config) { c.Timeouts.ConnectSeconds = 0 }, "connect_seconds"},
		{"bad recorder mode", func(c *Config) { c.Recorder.Mode = "carrier-pigeon" }, "unknown mode"},
		{"websocket without url", func(c *Config) { c.Recorder.Mode = "websocket" }, "url is required"},
		{"sqlite without path", func(c *Config) { c.Recorder.Mode = "sqlite" }, "path is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoader_MissingFileReturnsDefaults(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "absent.json"))

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoader_ParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toolbridge.json")
	content := `{
		"providers": [
			{"name": "desktop", "command": "desktop-tools", "args": ["--stdio"], "env": {"DEBUG": "1"}}
		],
		"routes": {
			"type_and_submit": {"provider": "desktop", "tool": "fill", "follow_up_tool": "press_key"}
		},
		"timeouts": {"connect_seconds": 10, "execute_seconds": 20},
		"catalog_refresh": "*/10 * * * *",
		"recorder": {"mode": "sqlite", "path": "/tmp/events.db"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, "desktop", cfg.Providers[0].Name)
	assert.Equal(t, []string{"--stdio"}, cfg.Providers[0].Args)
	assert.Equal(t, "1", cfg.Providers[0].Env["DEBUG"])

	route := cfg.Routes["type_and_submit"]
	assert.Equal(t, "fill", route.Tool)
	assert.Equal(t, "press_key", route.FollowUpTool)

	assert.Equal(t, 10, cfg.Timeouts.ConnectSeconds)
	assert.Equal(t, "*/10 * * * *", cfg.CatalogRefresh)
	assert.Equal(t, "sqlite", cfg.Recorder.Mode)
	assert.Equal(t, 4096, cfg.Recorder.MaxEventBytes, "defaults survive partial sections")
}

func TestLoader_InvalidConfigRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toolbridge.json")
	content := `{"providers": [{"name": "bad.dot", "command": "x"}]}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := NewLoader(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}
