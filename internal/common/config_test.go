package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "atlas.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, []string{"console", "file"}, config.Logging.Output)
	assert.Equal(t, "solid", config.Worker.Backend)
	assert.Equal(t, 1, config.Worker.Concurrency)
	assert.Equal(t, 64, config.Worker.CacheSize)
	assert.True(t, config.Janitor.Enabled)
	assert.Equal(t, "@every 5m", config.Janitor.Schedule)
	assert.Equal(t, "json", config.Exporter.Format)

	require.NoError(t, config.Validate())
}

func TestLoadFromFiles_NoPaths(t *testing.T) {
	config, err := LoadFromFiles()
	require.NoError(t, err)
	assert.Equal(t, NewDefaultConfig(), config)
}

func TestLoadFromFiles_MergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
[logging]
level = "debug"
output = ["console"]

[janitor]
enabled = false
ttl = "1h"

[exporter]
format = "yaml"
`)

	config, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, []string{"console"}, config.Logging.Output)
	assert.False(t, config.Janitor.Enabled)
	assert.Equal(t, time.Hour, config.Janitor.TTLDuration())
	assert.Equal(t, "yaml", config.Exporter.Format)

	// Sections the file does not mention keep their defaults.
	assert.Equal(t, "1s", config.Worker.PopTimeout)
	assert.Equal(t, "@every 5m", config.Janitor.Schedule)
}

func TestLoadFromFiles_LaterFileWins(t *testing.T) {
	first := writeConfig(t, "[logging]\nlevel = \"debug\"\n")
	second := writeConfig(t, "[logging]\nlevel = \"error\"\n")

	config, err := LoadFromFiles(first, second)
	require.NoError(t, err)
	assert.Equal(t, "error", config.Logging.Level)
}

func TestLoadFromFiles_MissingFile(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadFromFiles_BadDuration(t *testing.T) {
	path := writeConfig(t, "[submit]\ntimeout = \"soonish\"\n")

	_, err := LoadFromFiles(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration for submit.timeout")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "chatty" },
			wantErr: "invalid log level",
		},
		{
			name:    "bad exporter format",
			mutate:  func(c *Config) { c.Exporter.Format = "csv" },
			wantErr: "invalid exporter format",
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.Worker.Concurrency = 0 },
			wantErr: "concurrency",
		},
		{
			name:    "negative cache size",
			mutate:  func(c *Config) { c.Worker.CacheSize = -1 },
			wantErr: "cache_size must not be negative",
		},
		{
			name:    "zero page size",
			mutate:  func(c *Config) { c.Janitor.PageSize = 0 },
			wantErr: "page_size must be positive",
		},
		{
			name:    "bad worker duration",
			mutate:  func(c *Config) { c.Worker.BackoffMax = "fast" },
			wantErr: "invalid duration for worker.backoff_max",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewDefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDurationAccessors(t *testing.T) {
	worker := WorkerConfig{PopTimeout: "250ms", BackoffMin: "soon"}
	assert.Equal(t, 250*time.Millisecond, worker.PopTimeoutDuration())

	// Empty and unparseable values fall back.
	assert.Equal(t, time.Second, worker.ConnectRetryDuration())
	assert.Equal(t, 10*time.Millisecond, worker.BackoffMinDuration())
	assert.Equal(t, 5*time.Second, worker.BackoffMaxDuration())

	janitor := JanitorConfig{}
	assert.Equal(t, 15*time.Minute, janitor.TTLDuration())

	submit := SubmitConfig{}
	assert.Equal(t, 10*time.Second, submit.TimeoutDuration())
}

func TestThemesDirectory(t *testing.T) {
	themes := ThemesConfig{Directory: "/var/lib/atlas/registry"}
	assert.Equal(t, "/var/lib/atlas/registry", themes.ThemesDirectory("/io/data"))

	themes = ThemesConfig{}
	assert.Equal(t, filepath.Join("/io/data", "themes"), themes.ThemesDirectory("/io/data"))
}

func TestDiscoverConfigFiles(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	assert.Empty(t, DiscoverConfigFiles("atlas-worker"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "atlas-worker.toml"), []byte(""), 0644))
	found := DiscoverConfigFiles("atlas-worker")
	require.Len(t, found, 1)
	assert.Equal(t, "atlas-worker.toml", filepath.Base(found[0]))
}

func TestNormalizeLogLevel(t *testing.T) {
	assert.Equal(t, "info", NormalizeLogLevel(""))
	assert.Equal(t, "warn", NormalizeLogLevel("warning"))
	assert.Equal(t, "debug", NormalizeLogLevel("debug"))
}

func TestValidLogLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warning", "error"} {
		assert.True(t, ValidLogLevel(level), level)
	}
	assert.False(t, ValidLogLevel("warn"))
	assert.False(t, ValidLogLevel(""))
}
