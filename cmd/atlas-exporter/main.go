// -----------------------------------------------------------------------
// atlas-exporter - QGIS project flattening CLI
// -----------------------------------------------------------------------

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/atlas/internal/common"
	"github.com/ternarybob/atlas/internal/exporter"
	"github.com/ternarybob/atlas/internal/themes"
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
	projectPath = flag.String("project", "", "QGIS project file, .qgs or .qgz (required)")
	outputDir   = flag.String("output", "", "Output directory (default from config, else .)")
	format      = flag.String("format", "", "Output format: json, xml or yaml (default json)")
	unifyNames  = flag.Bool("unify-layer-names", false, "Qualify layer names with their group path")
	storeDir    = flag.String("store", "", "Theme registry directory to upsert the document into")
	themeName   = flag.String("name", "", "Theme name override (default: project name)")
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
		fmt.Printf("atlas-exporter version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	if *projectPath == "" {
		fmt.Fprintln(os.Stderr, "atlas-exporter: -project is required")
		flag.Usage()
		os.Exit(1)
	}

	if len(configFiles) == 0 {
		configFiles = common.DiscoverConfigFiles("atlas-exporter")
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

	// CLI flags override the config file.
	dir := config.Exporter.OutputDir
	if *outputDir != "" {
		dir = *outputDir
	}
	outFormat := config.Exporter.Format
	if *format != "" {
		outFormat = *format
	}
	unify := *unifyNames || config.Exporter.UnifyLayerNames

	logger = common.InitLogger("atlas-exporter", config.Logging)
	common.PrintBanner(common.GetVersion())

	exp := exporter.New(
		exporter.WithLogger(logger),
		exporter.WithUnifiedLayerNames(unify),
	)
	theme, err := exp.Extract(*projectPath)
	if err != nil {
		logger.Fatal().Err(err).Str("project", *projectPath).Msg("Project extraction failed")
		os.Exit(1)
	}

	outPath, err := exporter.Write(theme, dir, outFormat)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to write theme config")
		os.Exit(1)
	}
	logger.Info().Str("path", outPath).Msg("Theme config written")

	if *storeDir != "" {
		store, err := themes.Open(*storeDir, themes.WithLogger(logger))
		if err != nil {
			logger.Fatal().Err(err).Str("dir", *storeDir).Msg("Failed to open theme registry")
			os.Exit(1)
		}
		defer store.Close()

		doc, err := models.NewThemeDocument(*themeName, *theme)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to build theme document")
			os.Exit(1)
		}
		if err := store.Put(context.Background(), doc); err != nil {
			logger.Fatal().Err(err).Str("theme", doc.Name).Msg("Failed to store theme document")
			os.Exit(1)
		}
		logger.Info().Str("theme", doc.Name).Str("dir", *storeDir).Msg("Theme stored in registry")
	}
}
