// -----------------------------------------------------------------------
// atlas-worker - Job-processing worker daemon
// -----------------------------------------------------------------------

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/atlas/internal/common"
	"github.com/ternarybob/atlas/internal/engine"
	"github.com/ternarybob/atlas/internal/interfaces"
	"github.com/ternarybob/atlas/internal/janitor"
	"github.com/ternarybob/atlas/internal/render"
	"github.com/ternarybob/atlas/internal/themes"
	"github.com/ternarybob/atlas/internal/worker"
	"github.com/ternarybob/atlas/pkg/broker"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	// Command-line flags
	configFiles configPaths
	redisURL    = flag.String("redis-url", "", "Redis connection url (required)")
	logLevel    = flag.String("log-level", "", "Log level: debug, info, warning, error")
	dataRoot    = flag.String("data-root", common.DefaultDataRoot, "Root directory for datasets and the theme registry")
	svgPath     = flag.String("svg-path", common.DefaultSvgPath, "Colon-separated SVG search paths")
	showVersion = flag.Bool("version", false, "Print version information")

	// Global state
	config *common.Config
	logger arbor.ILogger
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
}

func main() {
	common.LoadVersionFromFile()
	flag.Parse()

	if *showVersion {
		fmt.Printf("atlas-worker version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	if *redisURL == "" {
		fmt.Fprintln(os.Stderr, "atlas-worker: --redis-url is required")
		flag.Usage()
		os.Exit(1)
	}

	// Startup sequence:
	// 1. Load config (defaults -> discovered/explicit files)
	// 2. Apply CLI overrides (highest priority)
	// 3. Initialize logger
	// 4. Print banner
	if len(configFiles) == 0 {
		configFiles = common.DiscoverConfigFiles("atlas-worker")
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		arbor.NewLogger().Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration files")
		os.Exit(1)
	}
	if *logLevel != "" {
		config.Logging.Level = common.NormalizeLogLevel(*logLevel)
	}

	logger = common.InitLogger("atlas-worker", config.Logging)
	common.PrintBanner(common.GetVersion())
	common.InstallCrashHandler(config.Logging.Directory)
	defer common.RecoverWithCrashFile()

	logger.Info().
		Strs("config_files", configFiles).
		Str("redis_url", *redisURL).
		Str("data_root", *dataRoot).
		Str("svg_path", *svgPath).
		Str("log_level", config.Logging.Level).
		Int("concurrency", config.Worker.Concurrency).
		Msg("Worker configuration loaded")

	b, err := broker.New(*redisURL, broker.WithLogger(logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect broker")
		os.Exit(1)
	}
	defer b.Close()

	// The theme registry is optional for a worker: without it only
	// GetFeatureInfo resolution against stored themes is unavailable.
	var themeStore interfaces.ThemeStore
	themesDir := config.Themes.ThemesDirectory(*dataRoot)
	if store, err := themes.Open(themesDir, themes.WithLogger(logger)); err != nil {
		logger.Warn().Err(err).Str("dir", themesDir).
			Msg("Theme registry unavailable, query layers resolve against prepared layers only")
	} else {
		themeStore = store
		defer store.Close()
	}

	var backend interfaces.RenderBackend
	switch config.Worker.Backend {
	case "", "solid":
		backend = render.NewSolidBackend(
			render.WithLogger(logger),
			render.WithSvgPaths(strings.Split(*svgPath, ":")),
		)
	default:
		logger.Fatal().Str("backend", config.Worker.Backend).Msg("Unknown render backend")
		os.Exit(1)
	}

	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithCacheSize(config.Worker.CacheSize),
	}
	if themeStore != nil {
		engineOpts = append(engineOpts, engine.WithThemeStore(themeStore))
	}
	executor := engine.New(backend, engineOpts...)
	defer executor.Close()

	pool := worker.NewPool(b, executor, config.Worker.Concurrency,
		worker.WithLogger(logger),
		worker.WithConfig(worker.Config{
			PopTimeout:   config.Worker.PopTimeoutDuration(),
			ConnectRetry: config.Worker.ConnectRetryDuration(),
			BackoffMin:   config.Worker.BackoffMinDuration(),
			BackoffMax:   config.Worker.BackoffMaxDuration(),
		}),
	)

	if config.Janitor.Enabled {
		jan := janitor.New(b, janitor.Config{
			Schedule: config.Janitor.Schedule,
			TTL:      config.Janitor.TTLDuration(),
			ScanRate: config.Janitor.ScanRate,
			PageSize: config.Janitor.PageSize,
		}, janitor.WithLogger(logger))
		if err := jan.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start janitor")
			os.Exit(1)
		}
		defer jan.Stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First signal drains gracefully, a second one aborts.
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info().Msg("Interrupt signal received, finishing in-flight work")
		cancel()
		<-sigChan
		logger.Warn().Msg("Second interrupt received, exiting immediately")
		os.Exit(1)
	}()

	if err := pool.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("Worker terminated")
		os.Exit(1)
	}

	logger.Info().Msg("Worker stopped")
}
