package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/qtrace/internal/config"
	"github.com/dbsmedya/qtrace/internal/logger"
	"github.com/dbsmedya/qtrace/pattern"
	"github.com/dbsmedya/qtrace/report"
	"github.com/dbsmedya/qtrace/stats"
	"github.com/dbsmedya/qtrace/tracer"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values
var (
	cfgFile   string
	logLevel  string
	logFormat string
	watch     []string
)

var rootCmd = &cobra.Command{
	Use:   "qtrace",
	Short: "SQL statement tracer and statistics collector",
	Long: `QTrace intercepts SQL statements, echoes the ones matching watch patterns
together with their call sites, and accumulates per-table call counts and
execution time.

Features:
  - Literal and regular-expression watch patterns
  - Caller frames for every watched statement
  - insert/select/update classification by table
  - Sorted statistics report at shutdown`,
	Version: Version,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Config file flag
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "qtrace.yaml",
		"Path to configuration file")

	// Logging overrides
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	// Watch overrides
	rootCmd.PersistentFlags().StringSliceVar(&watch, "watch", nil,
		"Additional literal watch patterns (repeatable)")
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// CLIOverrides contains flag values that override config file settings
type CLIOverrides struct {
	LogLevel  string
	LogFormat string
	Watch     []string
}

// GetCLIOverrides returns the CLI flag override values
func GetCLIOverrides() CLIOverrides {
	return CLIOverrides{
		LogLevel:  logLevel,
		LogFormat: logFormat,
		Watch:     watch,
	}
}

// loadConfig reads the config file, applies CLI overrides and validates the
// result. With allowMissing set, a missing default config file yields the
// built-in defaults instead of an error.
func loadConfig(allowMissing bool) (*config.Config, error) {
	configFile := GetConfigFile()

	var cfg *config.Config
	_, statErr := os.Stat(configFile)
	if allowMissing && errors.Is(statErr, os.ErrNotExist) && !rootCmd.PersistentFlags().Changed("config") {
		cfg = config.DefaultConfig()
	} else {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	overrides := GetCLIOverrides()
	cfg.ApplyOverrides(overrides.LogLevel, overrides.LogFormat, overrides.Watch)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newInterceptor builds a tracer with a fresh registry and store populated
// from cfg, echoing traces through log.
func newInterceptor(cfg *config.Config, log *logger.Logger) (*tracer.Interceptor, error) {
	registry := pattern.NewRegistry()
	if err := cfg.RegisterWatches(registry); err != nil {
		return nil, err
	}

	keep := tracer.DefaultFrameFilter()
	if len(cfg.Trace.ExcludeFrames) > 0 {
		keep = tracer.AllOf(keep, tracer.ExcludeFrames(cfg.Trace.ExcludeFrames...))
	}

	return tracer.New(
		tracer.WithRegistry(registry),
		tracer.WithStore(stats.NewStore()),
		tracer.WithSink(log.TraceSink(cfg.Trace.Prefix)),
		tracer.WithFrameFilter(keep),
		tracer.WithReportOptions(report.Options{Color: cfg.Report.Color}),
	), nil
}

// openReport resolves the report destination. The returned close function
// must be called once the report has been written.
func openReport(cmd *cobra.Command, output string) (io.Writer, func() error, error) {
	noop := func() error { return nil }

	switch output {
	case "stdout", "":
		return cmd.OutOrStdout(), noop, nil
	case "stderr":
		return cmd.ErrOrStderr(), noop, nil
	default:
		file, err := os.Create(output)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open report output: %w", err)
		}
		return file, file.Close, nil
	}
}

// flushReport writes the interceptor's statistics to the configured output.
func flushReport(cmd *cobra.Command, t *tracer.Interceptor, output string) error {
	w, closeFn, err := openReport(cmd, output)
	if err != nil {
		return err
	}
	if err := t.FlushReport(w); err != nil {
		closeFn()
		return err
	}
	return closeFn()
}
