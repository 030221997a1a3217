package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/rankpress/internal/models"
)

func sampleRecords() []models.MetricRecord {
	return []models.MetricRecord{
		{Kind: models.KindColor, Rank: 10, CompressionRatio: 4.9751, PSNR: 23.456},
		{Kind: models.KindGrayscale, Rank: 10, CompressionRatio: 4.9751, PSNR: 24.001},
		{Kind: models.KindColor, Rank: 64, CompressionRatio: 0.4961, PSNR: math.Inf(1)},
		{Kind: models.KindGrayscale, Rank: 64, CompressionRatio: 0.4961, PSNR: 310.12},
	}
}

func TestNewWriter(t *testing.T) {
	tests := []struct {
		format  string
		want    Writer
		wantErr bool
	}{
		{"", LaTeXWriter{}, false},
		{"latex", LaTeXWriter{}, false},
		{"TEXT", TextWriter{}, false},
		{"json", JSONWriter{}, false},
		{"csv", CSVWriter{}, false},
		{"xlsx", XLSXWriter{}, false},
		{"pdf", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			got, err := NewWriter(tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, got)
		})
	}
}

func TestLaTeXWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, LaTeXWriter{}.Write(&buf, sampleRecords()))
	want := "% Auto-generated metrics from rankpress\n" +
		"\\begin{tabular}{c c c}\n" +
		"Rank k & Compression Ratio & PSNR (dB) \\\\\n" +
		"\\hline\n" +
		"10 & 4.98 & 23.46 \\\\\n" +
		"10 & 4.98 & 24.00 \\\\\n" +
		"64 & 0.50 & inf \\\\\n" +
		"64 & 0.50 & 310.12 \\\\\n" +
		"\\end{tabular}\n"
	assert.Equal(t, want, buf.String())
}

func TestTextWriter_PreservesOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, TextWriter{}.Write(&buf, sampleRecords()))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[2], "color"))
	assert.True(t, strings.HasPrefix(lines[3], "grayscale"))
	assert.Contains(t, lines[4], "inf")
}

func TestJSONWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSONWriter{}.Write(&buf, sampleRecords()))
	var got []models.MetricRecord
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 4)
	assert.Equal(t, 10, got[0].Rank)
	assert.True(t, got[2].Lossless())

	buf.Reset()
	require.NoError(t, JSONWriter{}.Write(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestCSVWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSVWriter{}.Write(&buf, sampleRecords()))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"kind", "rank", "compression_ratio", "psnr_db"}, rows[0])
	assert.Equal(t, []string{"color", "10", "4.9751", "23.4560"}, rows[1])
	assert.Equal(t, "grayscale", rows[2][0])
}

func TestXLSXWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, XLSXWriter{}.Write(&buf, sampleRecords()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(xlsxSheet)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "Kind", rows[0][0])
	assert.Equal(t, "color", rows[1][0])
	assert.Equal(t, "10", rows[1][1])
	assert.Equal(t, "grayscale", rows[2][0])
	assert.Equal(t, "inf", rows[3][3])
}

func TestWriteFile_CreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results", "metrics.tex")
	require.NoError(t, WriteFile(path, "latex", sampleRecords()))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "\\end{tabular}\n"))

	assert.Error(t, WriteFile(path, "bogus", nil))
}
