package report

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/rankpress/internal/models"
)

// LaTeXWriter emits a three-column tabular: rank, compression ratio, PSNR.
type LaTeXWriter struct{}

func (LaTeXWriter) Write(w io.Writer, records []models.MetricRecord) error {
	bw := bufio.NewWriter(w)
	fmt.Fprint(bw, "% Auto-generated metrics from rankpress\n")
	fmt.Fprint(bw, "\\begin{tabular}{c c c}\n")
	fmt.Fprint(bw, "Rank k & Compression Ratio & PSNR (dB) \\\\\n\\hline\n")
	for _, r := range records {
		fmt.Fprintf(bw, "%d & %s & %s \\\\\n", r.Rank, formatValue(r.CompressionRatio), formatValue(r.PSNR))
	}
	fmt.Fprint(bw, "\\end{tabular}\n")
	return bw.Flush()
}

// TextWriter emits an aligned plain-text table that also names the image kind.
type TextWriter struct{}

func (TextWriter) Write(w io.Writer, records []models.MetricRecord) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%-10s %6s %18s %10s\n", "Kind", "Rank", "Compression Ratio", "PSNR (dB)")
	fmt.Fprintln(bw, "─────────────────────────────────────────────────")
	for _, r := range records {
		fmt.Fprintf(bw, "%-10s %6d %18s %10s\n", r.Kind, r.Rank, formatValue(r.CompressionRatio), formatValue(r.PSNR))
	}
	return bw.Flush()
}

// JSONWriter emits the records as an indented JSON array.
type JSONWriter struct{}

func (JSONWriter) Write(w io.Writer, records []models.MetricRecord) error {
	if records == nil {
		records = []models.MetricRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// CSVWriter emits kind, rank, compression_ratio, psnr_db rows under a header.
type CSVWriter struct{}

func (CSVWriter) Write(w io.Writer, records []models.MetricRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"kind", "rank", "compression_ratio", "psnr_db"}); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			string(r.Kind),
			strconv.Itoa(r.Rank),
			strconv.FormatFloat(r.CompressionRatio, 'f', 4, 64),
			strconv.FormatFloat(r.PSNR, 'f', 4, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

const xlsxSheet = "Metrics"

// XLSXWriter emits a workbook with one Metrics sheet.
type XLSXWriter struct{}

func (XLSXWriter) Write(w io.Writer, records []models.MetricRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	header := []interface{}{"Kind", "Rank k", "Compression Ratio", "PSNR (dB)"}
	if err := f.SetSheetRow(xlsxSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		var psnr interface{} = r.PSNR
		if r.Lossless() {
			psnr = "inf"
		}
		row := []interface{}{string(r.Kind), r.Rank, r.CompressionRatio, psnr}
		if err := f.SetSheetRow(xlsxSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
