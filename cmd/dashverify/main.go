package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dashverify/internal/common"
	"github.com/ternarybob/dashverify/internal/httpclient"
	"github.com/ternarybob/dashverify/internal/interfaces"
	"github.com/ternarybob/dashverify/internal/models"
	"github.com/ternarybob/dashverify/internal/preflight"
	"github.com/ternarybob/dashverify/internal/storage"
	"github.com/ternarybob/dashverify/internal/verify"
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
	configFiles  configPaths // Multiple -config flags supported
	loginURL     = flag.String("url", "", "Login page URL (overrides config, expected URL follows its root unless set explicitly)")
	headless     = flag.Bool("headless", true, "Run Chrome without a window (overrides config)")
	strict       = flag.Bool("strict", false, "Exit with status 1 when verification fails")
	historyLimit = flag.Int("history", 0, "Print the last N recorded runs and exit")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	// Register custom flag for multiple config files
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	defer common.RecoverWithCrashFile()
	os.Exit(run())
}

func run() int {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Dashverify version %s\n", common.GetFullVersion())
		return 0
	}

	// Startup sequence (REQUIRED ORDER):
	// 1. Load config (defaults -> file1 -> file2 -> ... -> env)
	// 2. Apply CLI overrides (highest priority)
	// 3. Validate
	// 4. Initialize logger
	// 5. Print banner

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		// Check current directory first
		if _, err := os.Stat("dashverify.toml"); err == nil {
			configFiles = append(configFiles, "dashverify.toml")
		} else if _, err := os.Stat("deployments/local/dashverify.toml"); err == nil {
			// Fallback: check deployments/local for users running from project root
			configFiles = append(configFiles, "deployments/local/dashverify.toml")
		}
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		// Use temporary logger for startup errors
		arbor.NewLogger().Error().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration files")
		return 1
	}

	common.ApplyFlagOverrides(config, *loginURL, headlessFlag(), *strict)

	if err := config.Validate(); err != nil {
		arbor.NewLogger().Error().Err(err).Msg("Configuration rejected")
		return 1
	}

	logger := common.InitLogger(config)
	common.InstallCrashHandler(config.Logging.Dir)

	if *historyLimit > 0 {
		return printHistory(config, *historyLimit, logger)
	}

	common.PrintBanner(config, logger)

	logger.Debug().
		Strs("config_files", configFiles).
		Str("log_level", config.Logging.Level).
		Strs("log_output", config.Logging.Output).
		Bool("preflight", config.Preflight.Enabled).
		Bool("history", config.History.Enabled).
		Msg("Resolved configuration")

	// Interrupts cancel the run; the runner still closes the browser
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if config.Preflight.Enabled {
		timeout := config.Preflight.RequestTimeout()
		client := httpclient.NewHTTPClientWithUserAgent(timeout, config.Browser.UserAgent)
		preflight.Run(ctx, client, config.Target.LoginURL, timeout, logger)
	}

	runner := verify.NewRunner(
		verify.PlanFromConfig(config),
		verify.ChromeOpener(verify.BrowserOptions(config), logger),
		logger,
	)
	result, runErr := runner.Run(ctx)

	if config.History.Enabled {
		saveHistory(config, result, runErr, logger)
	}

	return exitCode(result, runErr, config.Exit.Strict, logger)
}

// headlessFlag returns the -headless value only when it was given explicitly.
func headlessFlag() *bool {
	var set bool
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "headless" {
			set = true
		}
	})
	if !set {
		return nil
	}
	return headless
}

func exitCode(result *verify.Result, runErr error, strict bool, logger arbor.ILogger) int {
	if runErr != nil {
		logger.Error().Err(runErr).Msg("Verification aborted")
		return 1
	}
	if !result.Succeeded() && strict {
		return 1
	}
	return 0
}

func saveHistory(config *common.Config, result *verify.Result, runErr error, logger arbor.ILogger) {
	manager, err := storage.NewStorageManager(logger, &config.History)
	if err != nil {
		logger.Warn().Err(err).Msg("Run history unavailable")
		return
	}
	defer manager.Close()

	record := result.Record(config.Target.LoginURL)
	if runErr != nil {
		record.Error = runErr.Error()
	}

	if _, err := recordRun(context.Background(), manager.RunHistoryStorage(), record, logger); err != nil {
		logger.Warn().Err(err).Msg("Failed to record run")
	}
}

// runChange classifies a run against the one recorded before it.
type runChange string

const (
	runChangeFirst     runChange = "first"
	runChangeSame      runChange = "same"
	runChangeRegressed runChange = "regressed"
	runChangeRecovered runChange = "recovered"
)

// recordRun compares record with the latest stored run, logs a regression or
// recovery, and saves it.
func recordRun(ctx context.Context, history interfaces.RunHistoryStorage, record *models.RunRecord, logger arbor.ILogger) (runChange, error) {
	change := runChangeFirst
	previous, err := history.Latest(ctx)
	switch {
	case errors.Is(err, interfaces.ErrNoRuns):
	case err != nil:
		logger.Warn().Err(err).Msg("Failed to read previous run")
	case previous.Succeeded() && !record.Succeeded():
		change = runChangeRegressed
		logger.Warn().
			Str("previous_run", previous.ID).
			Str("previous_started", previous.StartedAt.Format(time.RFC3339)).
			Str("failed_at", record.FailedAt).
			Msg("Dashboard verification regressed since the previous run")
	case !previous.Succeeded() && record.Succeeded():
		change = runChangeRecovered
		logger.Info().
			Str("previous_run", previous.ID).
			Str("previous_error", previous.Error).
			Msg("Dashboard verification recovered since the previous run")
	default:
		change = runChangeSame
	}

	if err := history.Save(ctx, record); err != nil {
		return change, err
	}
	return change, nil
}

func printHistory(config *common.Config, limit int, logger arbor.ILogger) int {
	manager, err := storage.NewStorageManager(logger, &config.History)
	if err != nil {
		logger.Error().Err(err).Str("path", config.History.Path).Msg("Failed to open run history")
		return 1
	}
	defer manager.Close()

	records, err := manager.RunHistoryStorage().List(context.Background(), limit)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read run history")
		return 1
	}
	if err := writeHistory(os.Stdout, records); err != nil {
		logger.Warn().Err(err).Msg("Failed to write history")
	}
	return 0
}

func writeHistory(out io.Writer, records []*models.RunRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(out, interfaces.ErrNoRuns.Error())
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tOUTCOME\tSTATE\tDURATION\tARTIFACT\tERROR")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.StartedAt.Local().Format(time.DateTime),
			r.Outcome,
			r.FinalState,
			r.Duration.Round(time.Millisecond),
			r.Artifact,
			r.Error,
		)
	}
	return w.Flush()
}
