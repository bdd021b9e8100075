package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/qtrace/classify"
	"github.com/dbsmedya/qtrace/internal/logger"
	"github.com/dbsmedya/qtrace/report"
	"github.com/dbsmedya/qtrace/internal/sqlutil"
	"github.com/dbsmedya/qtrace/tracer"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [file]",
	Short: "Classify statements offline and print statistics",
	Long: `Classify reads SQL statements separated by semicolons from a file or
standard input, and shows how each one is normalized, classified and
matched against the watch set. No database connection is made; every
statement is recorded with zero duration, so the report shows call counts
per operation and table.

Example:
  qtrace classify queries.sql --watch users
  cat slow.log.sql | qtrace classify`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
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

	t, err := newInterceptor(cfg, log)
	if err != nil {
		return err
	}

	statements := sqlutil.SplitStatements(script)
	log.Debugw("Classifying statements", "count", len(statements))

	rows := [][]string{{"Watched", "Request", "Statement"}}
	for _, stmt := range statements {
		normalized := tracer.Normalize(stmt)

		request := "-"
		if key, ok := classify.Classify(normalized); ok {
			request = key.String()
		}
		watched := ""
		if t.Watched(normalized) {
			watched = "*"
		}
		rows = append(rows, []string{watched, request, normalized})

		t.Observe(stmt, 0, nil)
	}

	out := cmd.OutOrStdout()
	for _, line := range report.Table(rows) {
		fmt.Fprintln(out, line)
	}

	return flushReport(cmd, t, cfg.Report.Output)
}

// readScript returns the contents of the file named in args, or standard
// input when no file is given or the name is "-".
func readScript(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read statements: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to read statements: %w", err)
	}
	return string(data), nil
}
