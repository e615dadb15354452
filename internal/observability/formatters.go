// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonathan/trip-loader/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxRunsToShow is the default number of runs to display in lists
	maxRunsToShow = 10
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintRun outputs a human-readable summary of one run.
func (p *Printer) PrintRun(run *types.Run) {
	if run == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run:      %s\n", run.ID))
	sb.WriteString(fmt.Sprintf("Pipeline: %s\n", run.Pipeline))
	sb.WriteString(fmt.Sprintf("Window:   %s\n", run.Window))
	sb.WriteString(fmt.Sprintf("Status:   %s\n", run.Status))
	sb.WriteString(fmt.Sprintf("Rows:     %d read, %d merged", run.RowsRead, run.RowsMerged))
	if run.Error != "" {
		sb.WriteString(fmt.Sprintf("\nError:    %s", run.Error))
	}

	p.printBox("LOAD RUN", sb.String())
}

// PrintMergeResult outputs the merge counts for a run.
func (p *Printer) PrintMergeResult(result types.MergeResult) {
	content := fmt.Sprintf("Considered: %d\nInserted:   %d\nUpdated:    %d\nSkipped:    %d",
		result.RowsConsidered, result.RowsInserted, result.RowsUpdated,
		result.RowsConsidered-result.RowsInserted-result.RowsUpdated)
	p.printBox("MERGE RESULT", content)
}

// PrintRunList outputs a table of recent runs, newest first.
func (p *Printer) PrintRunList(runs []types.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(p.out, "No runs recorded.")
		return
	}
	if len(runs) > maxRunsToShow {
		runs = runs[:maxRunsToShow]
	}

	fmt.Fprintf(p.out, "%-36s  %-9s  %-20s  %8s  %8s\n",
		"RUN", "STATUS", "WINDOW START", "READ", "MERGED")
	for _, run := range runs {
		fmt.Fprintf(p.out, "%-36s  %-9s  %-20s  %8d  %8d\n",
			run.ID, run.Status, run.Window.Start.Format(time.RFC3339), run.RowsRead, run.RowsMerged)
	}
}
