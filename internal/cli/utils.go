// Package cli provides CLI output helpers for rankpress.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/rankpress/internal/models"
	"github.com/hyperjump/rankpress/internal/report"
	"github.com/hyperjump/rankpress/pkg/utils"
)

// OutputFormat is the format for run output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const maxPathLen = 48

// ParseOutputFormat accepts "text", "json" or "" (text).
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

// WriteRun writes one run with its metric table to w in the given format.
func WriteRun(w io.Writer, run *models.Run, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, run)
	}
	fmt.Fprintf(w, "Run %s\n", run.ID)
	fmt.Fprintf(w, "Image: %s (%dx%d)\n", run.ImagePath, run.Width, run.Height)
	fmt.Fprintf(w, "Created: %s\n", run.CreatedAt.Format("2006-01-02 15:04:05"))
	if run.ReportPath != "" {
		fmt.Fprintf(w, "Report: %s\n", run.ReportPath)
	}
	fmt.Fprintln(w)
	return report.TextWriter{}.Write(w, run.Records)
}

// WriteRuns writes a run listing to w in the given format. Text output has one line per run.
func WriteRuns(w io.Writer, runs []*models.Run, format OutputFormat) error {
	if format == OutputJSON {
		if runs == nil {
			runs = []*models.Run{}
		}
		return writeJSON(w, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, run := range runs {
		fmt.Fprintf(w, "%s  %s  %-51s %5dx%-5d ranks=%s\n",
			run.ID,
			run.CreatedAt.Format("2006-01-02 15:04"),
			utils.TruncateLeft(run.ImagePath, maxPathLen),
			run.Width, run.Height,
			formatRanks(run.Ranks))
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatRanks(ranks []int) string {
	parts := make([]string, len(ranks))
	for i, k := range ranks {
		parts[i] = fmt.Sprint(k)
	}
	return strings.Join(parts, ",")
}
