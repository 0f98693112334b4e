package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "human", cfg.Logging.Format)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 300*time.Second, cfg.CommandTimeout())
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_YAML(t *testing.T) {
	dir := t.TempDir()
	content := `
logging:
  format: json
  level: debug
database:
  uri: sqlite:/var/moe/db.sqlite
commands:
  timeoutSeconds: 30
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "sqlite:/var/moe/db.sqlite", cfg.Database.URI)
	assert.Equal(t, 30*time.Second, cfg.CommandTimeout())
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"logging":{"level":"info"}}`), 0o644))
	t.Setenv("MOE_LOGGING_LEVEL", "error")
	t.Setenv("MOE_DATABASE_URI", "/tmp/equivalences.json")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, "/tmp/equivalences.json", cfg.Database.URI)
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"logging":{"format":"xml"}}`), 0o644))

	_, err := LoadConfig(dir)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "logging.format", cfgErr.Field)
}

func TestSaveAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "home")
	cfg := DefaultConfig()
	cfg.Temp.Root = "/scratch/moe"
	require.NoError(t, cfg.Save(dir))

	loaded, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "/scratch/moe", loaded.Temp.Root)
}
