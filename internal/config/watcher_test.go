package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "toolbridge.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0644))

	loader := NewLoader(path)
	changed := make(chan *Config, 4)

	w := NewWatcher(loader, func(cfg *Config) { changed <- cfg })
	require.NoError(t, w.Start())
	defer w.Stop()

	next := `{"providers": [{"name": "desktop", "command": "desktop-tools"}]}`
	require.NoError(t, os.WriteFile(path, []byte(next), 0644))

	select {
	case cfg := <-changed:
		require.Len(t, cfg.Providers, 1)
		assert.Equal(t, "desktop", cfg.Providers[0].Name)
	case <-time.After(3 * time.Second):
		t.Fatal("config change was not observed")
	}
}

func TestWatcher_KeepsRunningOnInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "toolbridge.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0644))

	changed := make(chan *Config, 4)
	w := NewWatcher(NewLoader(path), func(cfg *Config) { changed <- cfg })
	require.NoError(t, w.Start())
	defer w.Stop()

	// Broken config: rejected, callback not fired.
	require.NoError(t, os.WriteFile(path, []byte(`{"providers": [{"name": ""}]}`), 0644))

	select {
	case <-changed:
		t.Fatal("invalid config must not be applied")
	case <-time.After(300 * time.Millisecond):
	}

	// A later valid write still lands.
	require.NoError(t, os.WriteFile(path, []byte(`{"providers": [{"name": "ok", "command": "x"}]}`), 0644))
	select {
	case cfg := <-changed:
		assert.Equal(t, "ok", cfg.Providers[0].Name)
	case <-time.After(3 * time.Second):
		t.Fatal("valid config change was not observed")
	}
}

func TestWatcher_StopIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toolbridge.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0644))

	w := NewWatcher(NewLoader(path), func(*Config) {})
	require.NoError(t, w.Start())

	w.Stop()
	w.Stop()
}
