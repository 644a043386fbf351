// -----------------------------------------------------------------------
// atlas-submit - Job submission CLI embedding the dispatcher client
// -----------------------------------------------------------------------

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/atlas/internal/common"
	"github.com/ternarybob/atlas/internal/themes"
	"github.com/ternarybob/atlas/pkg/dispatch"
	"github.com/ternarybob/atlas/pkg/models"
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
	kind        = flag.String("kind", "", "Job kind: GetMap, GetFeatureInfo, GetFeature or Legend (required)")
	payloadFile = flag.String("payload", "", "JSON payload document (required)")
	themeName   = flag.String("theme", "", "Stored theme whose layer definitions are inlined into GetMap payloads")
	storeDir    = flag.String("store", "", "Theme registry directory (required with -theme)")
	timeoutFlag = flag.Duration("timeout", 0, "Result wait budget (default from config, else 10s)")
	outFile     = flag.String("out", "", "Result output file (default stdout)")
	logLevel    = flag.String("log-level", "", "Log level: debug, info, warning, error")
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
		fmt.Printf("atlas-submit version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	for _, required := range []struct {
		name  string
		value string
	}{
		{"-redis-url", *redisURL},
		{"-kind", *kind},
		{"-payload", *payloadFile},
	} {
		if required.value == "" {
			fmt.Fprintf(os.Stderr, "atlas-submit: %s is required\n", required.name)
			flag.Usage()
			os.Exit(1)
		}
	}
	if *themeName != "" && *storeDir == "" {
		fmt.Fprintln(os.Stderr, "atlas-submit: -theme needs -store")
		flag.Usage()
		os.Exit(1)
	}

	if len(configFiles) == 0 {
		configFiles = common.DiscoverConfigFiles("atlas-submit")
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

	// With the result going to stdout, console logging and the banner would
	// corrupt piped output; keep the file sink only.
	toStdout := *outFile == ""
	if toStdout {
		config.Logging.Output = []string{"file"}
	}

	logger = common.InitLogger("atlas-submit", config.Logging)
	if !toStdout {
		common.PrintBanner(common.GetVersion())
	}

	job, err := loadJob(*kind, *payloadFile)
	if err != nil {
		fail(err)
	}

	if *themeName != "" {
		if err := inlineThemeLayers(job, *storeDir, *themeName); err != nil {
			fail(err)
		}
	}

	timeout := config.Submit.TimeoutDuration()
	if *timeoutFlag > 0 {
		timeout = *timeoutFlag
	}

	client, err := dispatch.New(*redisURL, dispatch.WithLogger(logger))
	if err != nil {
		fail(err)
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	result, err := client.Submit(ctx, job, timeout)
	if err != nil {
		fail(err)
	}

	logger.Info().
		Str("job_type", *kind).
		Str("content_type", result.ContentType).
		Int("bytes", len(result.Data)).
		Str("duration", time.Since(started).String()).
		Msg("Job succeeded")

	if toStdout {
		if _, err := os.Stdout.Write(result.Data); err != nil {
			fail(err)
		}
		return
	}
	if err := os.WriteFile(*outFile, result.Data, 0644); err != nil {
		fail(err)
	}
	logger.Info().Str("path", *outFile).Msg("Result written")
}

// loadJob reads and decodes the payload document into a typed job.
func loadJob(kindName, path string) (models.Job, error) {
	k := models.JobKind(kindName)
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %s", models.ErrUnsupportedJobKind, kindName)
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return models.DecodeJob(k, payload)
}

// inlineThemeLayers copies the stored theme's dataset definitions into a
// GetMap payload for every requested layer name the payload does not
// define itself. Other kinds carry their own datasets or none at all.
func inlineThemeLayers(job models.Job, storeDir, themeName string) error {
	mapJob, ok := job.(*models.GetMapJob)
	if !ok {
		return nil
	}

	store, err := themes.Open(storeDir, themes.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("open theme registry: %w", err)
	}
	defer store.Close()

	doc, err := store.Get(context.Background(), themeName)
	if err != nil {
		return err
	}

	for _, name := range mapJob.ServiceParams.LayerNames() {
		if _, err := mapJob.DatasetByName(name); err == nil {
			continue
		}
		switch {
		case inlineVector(mapJob, &doc.Config, name):
		case inlineRaster(mapJob, &doc.Config, name):
		case inlineCustom(mapJob, &doc.Config, name):
		default:
			return fmt.Errorf("theme %q defines no layer %q", themeName, name)
		}
	}
	return nil
}

func inlineVector(job *models.GetMapJob, config *models.ThemeConfig, name string) bool {
	if v, ok := config.VectorByName(name); ok {
		job.VectorLayers = append(job.VectorLayers, *v)
		return true
	}
	return false
}

func inlineRaster(job *models.GetMapJob, config *models.ThemeConfig, name string) bool {
	if r, ok := config.RasterByName(name); ok {
		job.RasterLayers = append(job.RasterLayers, *r)
		return true
	}
	return false
}

func inlineCustom(job *models.GetMapJob, config *models.ThemeConfig, name string) bool {
	if c, ok := config.CustomByName(name); ok {
		job.CustomLayers = append(job.CustomLayers, *c)
		return true
	}
	return false
}

// fail prints the taxonomy error and exits non-zero.
func fail(err error) {
	if logger != nil {
		logger.Error().Err(err).Msg("Submission failed")
	}
	fmt.Fprintf(os.Stderr, "atlas-submit: %v\n", err)
	os.Exit(1)
}
