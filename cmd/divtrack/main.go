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
	"github.com/ternarybob/divtrack/internal/app"
	"github.com/ternarybob/divtrack/internal/common"
	"github.com/ternarybob/divtrack/internal/server"
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
	configFiles configPaths
	serverPort  = flag.Int("port", 0, "Server port (overrides config)")
	serverHost  = flag.String("host", "", "Server host (overrides config)")
	showVersion = flag.Bool("version", false, "Print version information")
	runOnce     = flag.Bool("once", false, "Run the pipeline once, write the CSV and exit")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("divtrack version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	// Startup order: config (defaults -> files -> env), CLI overrides, logger, banner
	if len(configFiles) == 0 {
		if _, err := os.Stat("divtrack.toml"); err == nil {
			configFiles = append(configFiles, "divtrack.toml")
		} else if _, err := os.Stat("deployments/local/divtrack.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/divtrack.toml")
		}
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		common.GetLogger().Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	common.ApplyFlagOverrides(config, *serverPort, *serverHost)

	logger := common.SetupLogger(config)
	common.InstallCrashHandler("")
	defer common.RecoverWithCrashFile()
	common.PrintBanner(config, logger)

	logger.Debug().
		Strs("config_files", configFiles).
		Str("badger_path", config.Storage.Badger.Path).
		Str("csv_path", config.Output.CSVPath).
		Str("log_level", config.Logging.Level).
		Msg("Resolved configuration")

	if *runOnce {
		// The scheduler is pointless for a single run
		config.Scheduler.Enabled = false
	}

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}
	defer application.Close()

	if *runOnce {
		os.Exit(runPipelineOnce(application, logger))
	}

	srv := server.New(application)

	common.SafeGo(logger, "http-server", func() {
		if err := srv.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info().Msg("Interrupt signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}
}

// runPipelineOnce refreshes the dataset and returns the process exit code.
// It closes the application itself since os.Exit skips deferred calls.
func runPipelineOnce(application *app.App, logger arbor.ILogger) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dataset, err := application.DividendsService.Refresh(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Pipeline run failed")
		application.Close()
		return 1
	}

	logger.Info().
		Str("run_id", dataset.Report.RunID).
		Int("records", len(dataset.Records)).
		Str("csv", application.Config.Output.CSVPath).
		Msg("Pipeline run completed")

	application.Close()
	return 0
}
