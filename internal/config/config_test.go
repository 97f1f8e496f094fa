package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))

	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Shell.TimeoutSeconds)
	assert.Equal(t, 1024, cfg.Shell.QueueSize)
	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, "127.0.0.1:8080", cfg.Gateway.Addr)
	assert.NotEmpty(t, cfg.Logging.File)
	assert.NotEmpty(t, cfg.History.Path)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shelldon.json")
	content := `{
		"shell": {"timeout_seconds": 5, "work_dir": "/srv"},
		"security": {"deny_prefixes": ["curl "]},
		"ai": {"provider": "anthropic", "model": "claude-sonnet-4-20250514"},
		"logging": {"level": "debug"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Shell.TimeoutSeconds)
	assert.Equal(t, "/srv", cfg.Shell.WorkDir)
	assert.Equal(t, 1024, cfg.Shell.QueueSize) // untouched default
	assert.Equal(t, []string{"curl "}, cfg.Security.DenyPrefixes)
	assert.Equal(t, "anthropic", cfg.AI.Provider)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_RejectsInvalidSchema(t *testing.T) {
	cases := map[string]string{
		"bad provider":   `{"ai": {"provider": "gemini"}}`,
		"bad timeout":    `{"shell": {"timeout_seconds": 0}}`,
		"bad level":      `{"logging": {"level": "loud"}}`,
		"prefix not str": `{"security": {"deny_prefixes": [42]}}`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "shelldon.json")
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_RejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shelldon.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "shelldon.json")
	loader := NewLoader(path)

	cfg := DefaultConfig()
	cfg.Shell.TimeoutSeconds = 42
	cfg.Security.DenyPrefixes = []string{"wget "}
	require.NoError(t, loader.Save(cfg))

	got, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 42, got.Shell.TimeoutSeconds)
	assert.Equal(t, []string{"wget "}, got.Security.DenyPrefixes)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shelldon.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0644))

	loader := NewLoader(path)
	updates := make(chan *Config, 1)
	w, err := NewWatcher(loader, func(c *Config) {
		select {
		case updates <- c:
		default:
		}
	})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte(`{"shell": {"timeout_seconds": 9}}`), 0644))

	select {
	case cfg := <-updates:
		assert.Equal(t, 9, cfg.Shell.TimeoutSeconds)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not fire")
	}
}

func TestWatcher_SkipsInvalidWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shelldon.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0644))

	loader := NewLoader(path)
	updates := make(chan *Config, 4)
	w, err := NewWatcher(loader, func(c *Config) { updates <- c })
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte(`{"ai": {"provider": "gemini"}}`), 0644))
	require.NoError(t, os.WriteFile(path, []byte(`{"shell": {"timeout_seconds": 7}}`), 0644))

	select {
	case cfg := <-updates:
		assert.Equal(t, 7, cfg.Shell.TimeoutSeconds)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not fire for valid write")
	}
}

func TestGetConfigPath_DefaultsToHome(t *testing.T) {
	loader := NewLoader("")
	path := loader.GetConfigPath()

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".shelldon", "shelldon.json"), path)
}
