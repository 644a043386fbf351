package common

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// -----------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------
// Core coordination settings (redis url, data root, svg paths, log level)
// arrive exclusively through CLI flags. The TOML configuration tunes the
// machinery around the core: logging sinks, janitor schedule, layer cache,
// registry location, exporter output. No environment variables are read.

// Config holds the ambient settings for the atlas binaries.
type Config struct {
	Logging  LoggingConfig  `toml:"logging"`
	Worker   WorkerConfig   `toml:"worker"`
	Janitor  JanitorConfig  `toml:"janitor"`
	Themes   ThemesConfig   `toml:"themes"`
	Exporter ExporterConfig `toml:"exporter"`
	Submit   SubmitConfig   `toml:"submit"`
}

// LoggingConfig controls the arbor logger sinks.
type LoggingConfig struct {
	Level      string   `toml:"level"`       // debug, info, warning, error
	TimeFormat string   `toml:"time_format"` // console timestamp layout
	Output     []string `toml:"output"`      // console, file
	Directory  string   `toml:"directory"`   // log file directory, default ./logs
}

// WorkerConfig tunes the job loop and the render layer cache.
type WorkerConfig struct {
	PopTimeout   string `toml:"pop_timeout"`   // bound per blocking pop, e.g. "1s"
	ConnectRetry string `toml:"connect_retry"` // delay between startup pings
	BackoffMin   string `toml:"backoff_min"`   // first retry delay after a pop error
	BackoffMax   string `toml:"backoff_max"`   // retry delay ceiling
	Concurrency  int    `toml:"concurrency"`   // job loops per process
	CacheSize    int    `toml:"cache_size"`    // prepared layers kept per process
	Backend      string `toml:"backend"`       // render backend name
}

// JanitorConfig tunes the stale job record sweeper.
type JanitorConfig struct {
	Enabled  bool    `toml:"enabled"`
	Schedule string  `toml:"schedule"`  // cron spec, e.g. "@every 5m"
	TTL      string  `toml:"ttl"`       // record age before reaping
	ScanRate float64 `toml:"scan_rate"` // records inspected per second
	PageSize int64   `toml:"page_size"` // SCAN page size
}

// ThemesConfig locates the theme registry. An empty directory means the
// worker derives it from the data root.
type ThemesConfig struct {
	Directory string `toml:"directory"`
}

// ExporterConfig supplies defaults for the project exporter CLI.
type ExporterConfig struct {
	OutputDir       string `toml:"output_dir"`
	Format          string `toml:"format"` // json, xml, yaml
	UnifyLayerNames bool   `toml:"unify_layer_names"`
}

// SubmitConfig supplies defaults for the submission CLI.
type SubmitConfig struct {
	Timeout string `toml:"timeout"`
}

// Fixed CLI defaults shared by the binaries.
const (
	DefaultDataRoot = "/io/data"
	DefaultSvgPath  = "/io/svg"
	DefaultLogLevel = "info"
)

// NewDefaultConfig returns the built-in configuration.
func NewDefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:      DefaultLogLevel,
			TimeFormat: "15:04:05",
			Output:     []string{"console", "file"},
			Directory:  "logs",
		},
		Worker: WorkerConfig{
			PopTimeout:   "1s",
			ConnectRetry: "1s",
			BackoffMin:   "10ms",
			BackoffMax:   "5s",
			Concurrency:  1,
			CacheSize:    64,
			Backend:      "solid",
		},
		Janitor: JanitorConfig{
			Enabled:  true,
			Schedule: "@every 5m",
			TTL:      "15m",
			ScanRate: 200,
			PageSize: 100,
		},
		Themes: ThemesConfig{
			Directory: "",
		},
		Exporter: ExporterConfig{
			OutputDir:       ".",
			Format:          "json",
			UnifyLayerNames: false,
		},
		Submit: SubmitConfig{
			Timeout: "10s",
		},
	}
}

// LoadFromFiles loads configuration from TOML files over the defaults.
// Later files override earlier files; missing sections keep their
// defaults because unmarshalling merges into the existing struct.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// DiscoverConfigFiles returns the config files that exist for the given
// binary name, searched beside the executable first and then in the
// working directory.
func DiscoverConfigFiles(appName string) []string {
	var candidates []string

	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), appName+".toml"))
	}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, appName+".toml"))
	}

	var found []string
	seen := make(map[string]bool)
	for _, path := range candidates {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			found = append(found, path)
		}
	}
	return found
}

// Validate reports configuration values that cannot be used.
func (c *Config) Validate() error {
	if !ValidLogLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level %q (expected debug, info, warning or error)", c.Logging.Level)
	}
	switch c.Exporter.Format {
	case "json", "xml", "yaml":
	default:
		return fmt.Errorf("invalid exporter format %q (expected json, xml or yaml)", c.Exporter.Format)
	}
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("worker concurrency must be at least 1, got %d", c.Worker.Concurrency)
	}
	if c.Worker.CacheSize < 0 {
		return fmt.Errorf("worker cache_size must not be negative, got %d", c.Worker.CacheSize)
	}
	if c.Janitor.PageSize <= 0 {
		return fmt.Errorf("janitor page_size must be positive, got %d", c.Janitor.PageSize)
	}
	for _, field := range []struct {
		name  string
		value string
	}{
		{"worker.pop_timeout", c.Worker.PopTimeout},
		{"worker.connect_retry", c.Worker.ConnectRetry},
		{"worker.backoff_min", c.Worker.BackoffMin},
		{"worker.backoff_max", c.Worker.BackoffMax},
		{"janitor.ttl", c.Janitor.TTL},
		{"submit.timeout", c.Submit.Timeout},
	} {
		if field.value == "" {
			continue
		}
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", field.name, err)
		}
	}
	return nil
}

// durationOr parses a duration string, falling back when empty or invalid.
func durationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func (c *WorkerConfig) PopTimeoutDuration() time.Duration {
	return durationOr(c.PopTimeout, time.Second)
}

func (c *WorkerConfig) ConnectRetryDuration() time.Duration {
	return durationOr(c.ConnectRetry, time.Second)
}

func (c *WorkerConfig) BackoffMinDuration() time.Duration {
	return durationOr(c.BackoffMin, 10*time.Millisecond)
}

func (c *WorkerConfig) BackoffMaxDuration() time.Duration {
	return durationOr(c.BackoffMax, 5*time.Second)
}

func (c *JanitorConfig) TTLDuration() time.Duration {
	return durationOr(c.TTL, 15*time.Minute)
}

func (c *SubmitConfig) TimeoutDuration() time.Duration {
	return durationOr(c.Timeout, 10*time.Second)
}

// ThemesDirectory resolves the registry location, deriving it from the
// data root when not configured explicitly.
func (c *ThemesConfig) ThemesDirectory(dataRoot string) string {
	if c.Directory != "" {
		return c.Directory
	}
	return filepath.Join(dataRoot, "themes")
}
