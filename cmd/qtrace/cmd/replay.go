package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/qtrace/internal/database"
	"github.com/dbsmedya/qtrace/internal/logger"
	"github.com/dbsmedya/qtrace/internal/sqlutil"
	"github.com/dbsmedya/qtrace/sqltrace"
	"github.com/dbsmedya/qtrace/tracer"
)

var replayKeepGoing bool

var replayCmd = &cobra.Command{
	Use:   "replay [file]",
	Short: "Execute statements against MySQL and report statistics",
	Long: `Replay executes SQL statements separated by semicolons, read from a file
or standard input, against the configured database. Every statement goes
through the tracer: watched statements are echoed with their call sites and
successful ones are timed and recorded.

The statistics report is printed when replay finishes, or as soon as
SIGINT or SIGTERM is received.

Example:
  qtrace replay workload.sql --config qtrace.yaml --watch orders`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().BoolVar(&replayKeepGoing, "keep-going", false,
		"Continue with the next statement when one fails")

	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	if !cfg.HasDatabase() {
		return fmt.Errorf("no database configured in %s", configFile)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	script, err := readScript(cmd, args)
	if err != nil {
		return err
	}
	statements := sqlutil.SplitStatements(script)

	t, err := newInterceptor(cfg, log)
	if err != nil {
		return err
	}

	// The report is printed exactly once, by whichever of the signal
	// handler and the normal exit path gets there first.
	var (
		flushOnce   sync.Once
		reportError error
	)
	flush := func() error {
		flushOnce.Do(func() {
			reportError = flushReport(cmd, t, cfg.Report.Output)
		})
		return reportError
	}

	ctx, stop := database.ShutdownContext(context.Background(), func(sig os.Signal) {
		log.Warnw("Received shutdown signal - printing statistics", "signal", sig.String())
		if err := flush(); err != nil {
			log.Errorw("Failed to write report", "error", err)
		}
	})
	defer stop()

	log.Infow("Starting replay",
		"config", configFile,
		"statements", len(statements),
	)

	dbManager := database.NewManager(&cfg.Database)
	if err := dbManager.Connect(ctx); err != nil {
		return err
	}
	defer dbManager.Close()

	db := sqltrace.Wrap(dbManager.DB, t)

	failed, err := replayAll(ctx, db, statements, replayKeepGoing, log)

	// After a signal the handler has already printed the report
	flushErr := flush()
	if err != nil {
		if flushErr != nil {
			log.Errorw("Failed to write report", "error", flushErr)
		}
		return err
	}

	log.Infow("Replay complete",
		"statements", len(statements),
		"failed", failed,
	)
	return flushErr
}

// replayAll executes statements in order and returns how many failed. It
// stops at the first failure unless keepGoing is set, and always stops when
// ctx is cancelled.
func replayAll(ctx context.Context, db *sqltrace.DB, statements []string, keepGoing bool, log *logger.Logger) (int, error) {
	failed := 0
	for _, stmt := range statements {
		err := replayStatement(ctx, db, stmt)
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			log.Warn("Replay interrupted")
			return failed, fmt.Errorf("replay interrupted: %w", err)
		}

		failed++
		log.WithStatement(tracer.Normalize(stmt)).WithLabel(statementLabel(stmt)).
			Errorw("Statement failed", "error", err)
		if !keepGoing {
			return failed, fmt.Errorf("replay stopped: %w", err)
		}
	}
	return failed, nil
}

// statementLabel names the database/sql call used for stmt.
func statementLabel(stmt string) string {
	if returnsRows(stmt) {
		return "Query"
	}
	return "Exec"
}

// replayStatement runs one statement, draining any rows it returns.
func replayStatement(ctx context.Context, db *sqltrace.DB, stmt string) error {
	if !returnsRows(stmt) {
		_, err := db.ExecContext(ctx, stmt)
		return err
	}

	rows, err := db.QueryContext(ctx, stmt)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
	}
	return rows.Err()
}

// returnsRows reports whether stmt is a query rather than a command.
func returnsRows(stmt string) bool {
	fields := strings.Fields(stmt)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "SHOW", "DESCRIBE", "DESC", "EXPLAIN", "WITH":
		return true
	}
	return false
}
