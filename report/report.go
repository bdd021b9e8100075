// Package report renders accumulated statement statistics as an aligned
// plain-text table.
package report

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"

	"github.com/dbsmedya/qtrace/stats"
)

// Title is printed above the table.
const Title = "QTrace statistics"

var header = []string{"Request", "No. calls", "Time"}

// numericCell matches cells that are right-justified.
var numericCell = regexp.MustCompile(`^[\d.%]+$`)

// Options controls how Write decorates the table.
type Options struct {
	// Color highlights the title when the output supports it.
	Color bool
}

// Rows builds the table cells: the header, one row per entry sorted by call
// count (highest first, ties kept in snapshot order) and a closing Total row.
func Rows(entries []stats.Entry) [][]string {
	sorted := make([]stats.Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Count > sorted[j].Count
	})

	rows := make([][]string, 0, len(sorted)+2)
	rows = append(rows, header)

	var calls int64
	var elapsed time.Duration
	for _, e := range sorted {
		rows = append(rows, []string{e.Key, strconv.FormatInt(e.Count, 10), seconds(e.Total)})
		calls += e.Count
		elapsed += e.Total
	}

	rows = append(rows, []string{"Total", strconv.FormatInt(calls, 10), seconds(elapsed)})
	return rows
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.4f", d.Seconds())
}

// Render returns the report as lines: a blank line, the title, a blank line
// and then the table.
func Render(entries []stats.Entry) []string {
	return append([]string{"", Title, ""}, Table(Rows(entries))...)
}

// Table aligns rows into "| a | b |" lines. Each column is as wide as its
// widest cell; numeric cells are right-justified and everything else is
// left-justified.
func Table(rows [][]string) []string {
	var widths []int
	for _, row := range rows {
		for i, cell := range row {
			w := runewidth.StringWidth(cell)
			if i >= len(widths) {
				widths = append(widths, w)
			} else if w > widths[i] {
				widths[i] = w
			}
		}
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		var b strings.Builder
		for i, cell := range row {
			b.WriteString("| ")
			if numericCell.MatchString(cell) {
				b.WriteString(runewidth.FillLeft(cell, widths[i]))
			} else {
				b.WriteString(runewidth.FillRight(cell, widths[i]))
			}
			b.WriteString(" ")
		}
		b.WriteString("|")
		lines = append(lines, b.String())
	}
	return lines
}

// Write renders entries to w, one line per row.
func Write(w io.Writer, entries []stats.Entry, opts Options) error {
	for _, line := range Render(entries) {
		if line == Title && opts.Color {
			line = color.New(color.FgCyan, color.OpBold).Sprint(line)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	return nil
}
