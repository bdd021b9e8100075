package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/qtrace/internal/config"
	"github.com/dbsmedya/qtrace/internal/database"
	"github.com/dbsmedya/qtrace/internal/logger"
	"github.com/dbsmedya/qtrace/pattern"
)

var validatePing bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and watch patterns",
	Long: `Validate checks the configuration file and compiles the watch set
exactly as the tracer will at startup.

Checks performed:
  - Configuration syntax and required fields
  - Watch literals and regular-expression patterns
  - Report and logging settings
  - Database connectivity (with --ping)

Example:
  qtrace validate --config qtrace.yaml --ping`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validatePing, "ping", false,
		"Connect to the configured database and ping it")

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}

	// Compile the watch set the same way the tracer does
	registry := pattern.NewRegistry()
	if err := cfg.RegisterWatches(registry); err != nil {
		return fmt.Errorf("invalid watch configuration: %w", err)
	}

	cmd.Printf("\n=== Configuration Validation ===\n")
	cmd.Printf("Config file: %s\n", configFile)
	cmd.Printf("Watch literals: %d\n", len(cfg.Watch.Literals))
	cmd.Printf("Watch patterns: %d\n", len(cfg.Watch.Patterns))
	for _, p := range registry.Patterns() {
		cmd.Printf("   - %s\n", p)
	}
	cmd.Printf("Trace prefix: %q\n", cfg.Trace.Prefix)
	cmd.Printf("Report output: %s\n", cfg.Report.Output)

	if !cfg.HasDatabase() {
		cmd.Printf("Database: (not configured)\n")
	} else {
		cmd.Printf("Database: %s@%s:%d/%s\n", cfg.Database.User, cfg.Database.Host,
			cfg.Database.Port, cfg.Database.Database)

		if validatePing {
			if err := pingDatabase(cfg); err != nil {
				return err
			}
			cmd.Printf("✅ Database reachable\n")
		}
	}

	cmd.Println("\n=== Validation Complete ===")
	cmd.Println("✅ Configuration is valid")
	return nil
}

// pingDatabase connects to the configured database once and pings it.
func pingDatabase(cfg *config.Config) error {
	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbManager := database.NewManager(&cfg.Database)
	if err := dbManager.Connect(ctx); err != nil {
		return err
	}
	defer dbManager.Close()

	if err := dbManager.Ping(ctx); err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	log.Infow("Database reachable", "host", cfg.Database.Host, "database", cfg.Database.Database)
	return nil
}
