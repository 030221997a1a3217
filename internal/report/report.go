// Package report renders metric records as tabular reports.
package report

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/rankpress/internal/models"
)

// Format is a report output format.
type Format string

const (
	// FormatLaTeX is a LaTeX tabular with one row per record (default).
	FormatLaTeX Format = "latex"
	// FormatText is a human-readable table.
	FormatText Format = "text"
	// FormatJSON is an indented JSON array for machine consumption.
	FormatJSON Format = "json"
	// FormatCSV is comma-separated values with a header row.
	FormatCSV Format = "csv"
	// FormatXLSX is an Excel workbook with a single Metrics sheet.
	FormatXLSX Format = "xlsx"
)

// Writer renders records in order.
type Writer interface {
	Write(w io.Writer, records []models.MetricRecord) error
}

// NewWriter returns a writer for the given format. An empty format means LaTeX.
func NewWriter(format string) (Writer, error) {
	switch Format(strings.ToLower(format)) {
	case FormatLaTeX, "", "tex":
		return LaTeXWriter{}, nil
	case FormatText, "txt":
		return TextWriter{}, nil
	case FormatJSON:
		return JSONWriter{}, nil
	case FormatCSV:
		return CSVWriter{}, nil
	case FormatXLSX, "excel":
		return XLSXWriter{}, nil
	default:
		return nil, fmt.Errorf("unknown report format: %s (supported: latex, text, json, csv, xlsx)", format)
	}
}

// WriteFile renders records to path, creating parent directories as needed.
func WriteFile(path string, format string, records []models.MetricRecord) error {
	writer, err := NewWriter(format)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := writer.Write(f, records); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return f.Close()
}

// formatValue prints v with two decimals; an infinite PSNR prints as "inf".
func formatValue(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", v)
}
