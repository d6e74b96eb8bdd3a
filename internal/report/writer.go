// Package report renders run artifacts: long-format summary CSVs,
// per-date panels, correlation matrices, a markdown report, the JSON
// record dump, and the run manifest.
package report

import (
	"crypto/sha256"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	atomicio "regimelab/internal/io"
	"regimelab/internal/regime"
	"regimelab/internal/series"
	"regimelab/internal/stats"
)

const (
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

var summaryHeader = []string{"series", "regime", "column", "metric", "value"}

// Writer emits artifacts under a single output directory and tracks
// each written file in the run manifest.
type Writer struct {
	outDir   string
	formats  map[string]bool
	manifest *Manifest
}

// NewWriter prepares a writer for outDir. Only artifacts whose format
// appears in formats are written.
func NewWriter(outDir string, formats []string, configFingerprint string) *Writer {
	enabled := make(map[string]bool, len(formats))
	for _, f := range formats {
		enabled[f] = true
	}
	return &Writer{
		outDir:   outDir,
		formats:  enabled,
		manifest: NewManifest(configFingerprint),
	}
}

// Manifest returns the manifest accumulated so far.
func (w *Writer) Manifest() *Manifest {
	return w.manifest
}

// WriteSummaries writes one long-format CSV per series plus the
// combined all-series CSV.
func (w *Writer) WriteSummaries(records []stats.Record) error {
	names, bySeries := groupBySeries(records)
	w.manifest.Series = names
	w.manifest.Records = len(records)

	if !w.formats[FormatCSV] {
		return nil
	}

	for _, name := range names {
		rows := [][]string{summaryHeader}
		for _, r := range bySeries[name] {
			rows = append(rows, summaryRow(r))
		}
		if err := w.writeCSV(name+"_regime_summary.csv", rows); err != nil {
			return err
		}
	}

	combined := [][]string{summaryHeader}
	for _, r := range records {
		combined = append(combined, summaryRow(r))
	}
	return w.writeCSV("all_series_regime_summary.csv", combined)
}

// WritePanels writes the per-date panel for one series: raw close and
// derived columns next to the regime assignment, one row per trading
// day. The is_high_risk flag is 1 on pre-crisis and crisis days.
func (w *Writer) WritePanels(s *series.Series, f *series.FeatureSet, seg *regime.Segmentation) error {
	if !w.formats[FormatCSV] {
		return nil
	}

	rows := make([][]string, 0, s.Len()+1)
	rows = append(rows, []string{"date", "close", "log_return", "volatility", "drawdown", "regime", "crisis", "is_high_risk"})
	for i, p := range s.Points {
		risk := "0"
		if seg.Labels[i].IsHighRisk() {
			risk = "1"
		}
		rows = append(rows, []string{
			p.Date.Format("2006-01-02"),
			formatFloat(p.Close),
			formatFloat(f.LogReturn[i]),
			formatFloat(f.Volatility[i]),
			formatFloat(f.Drawdown[i]),
			seg.Labels[i].String(),
			seg.Crises[i],
			risk,
		})
	}
	return w.writeCSV(s.Name+"_panels.csv", rows)
}

// WriteCorrelations writes one matrix CSV per regime that had aligned
// observations.
func (w *Writer) WriteCorrelations(matrices []stats.Matrix) error {
	if !w.formats[FormatCSV] {
		return nil
	}

	for _, m := range matrices {
		rows := make([][]string, 0, len(m.Names)+1)
		rows = append(rows, append([]string{""}, m.Names...))
		for i, name := range m.Names {
			row := make([]string, 0, len(m.Names)+1)
			row = append(row, name)
			for j := range m.Names {
				row = append(row, formatFloat(m.Values[i][j]))
			}
			rows = append(rows, row)
		}
		if err := w.writeCSV("correlation_"+m.Regime+".csv", rows); err != nil {
			return err
		}
	}
	return nil
}

// WriteRecords dumps the full record set as indented JSON.
func (w *Writer) WriteRecords(records []stats.Record) error {
	if !w.formats[FormatJSON] {
		return nil
	}

	path := filepath.Join(w.outDir, "records.json")
	if err := atomicio.WriteJSONAtomic(path, records); err != nil {
		return &ReportWriteError{Path: path, Err: err}
	}
	return w.register(path)
}

// WriteSummaryMarkdown renders the human-readable report: run header,
// one statistics table per series and column, and the per-regime
// correlation matrices.
func (w *Writer) WriteSummaryMarkdown(records []stats.Record, matrices []stats.Matrix) error {
	if !w.formats[FormatMarkdown] {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Regime statistics report\n\n")
	fmt.Fprintf(&b, "- Run: `%s`\n", w.manifest.RunID)
	fmt.Fprintf(&b, "- Generated: %s\n", w.manifest.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "- Config: `%s`\n", w.manifest.ConfigFingerprint)

	names, bySeries := groupBySeries(records)
	for _, name := range names {
		fmt.Fprintf(&b, "\n## %s\n", name)
		writeSeriesTables(&b, bySeries[name])
	}

	if len(matrices) > 0 {
		fmt.Fprintf(&b, "\n## Cross-series correlations\n")
		for _, m := range matrices {
			writeMatrixTable(&b, m)
		}
	}

	path := filepath.Join(w.outDir, "summary.md")
	if err := atomicio.WriteFileAtomic(path, []byte(b.String())); err != nil {
		return &ReportWriteError{Path: path, Err: err}
	}
	return w.register(path)
}

// WriteManifest finalizes the run by writing manifest.json. The
// manifest itself is not listed as an artifact.
func (w *Writer) WriteManifest() error {
	path := filepath.Join(w.outDir, "manifest.json")
	if err := atomicio.WriteJSONAtomic(path, w.manifest); err != nil {
		return &ReportWriteError{Path: path, Err: err}
	}
	return nil
}

func (w *Writer) writeCSV(name string, rows [][]string) error {
	path := filepath.Join(w.outDir, name)
	if err := atomicio.WriteCSVAtomic(path, rows); err != nil {
		return &ReportWriteError{Path: path, Err: err}
	}
	return w.register(path)
}

// register checksums a freshly written artifact into the manifest.
func (w *Writer) register(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &ReportWriteError{Path: path, Err: err}
	}

	sum := sha256.Sum256(data)
	w.manifest.Artifacts = append(w.manifest.Artifacts, ArtifactEntry{
		Path:   filepath.Base(path),
		SHA256: fmt.Sprintf("%x", sum),
		Bytes:  int64(len(data)),
	})
	return nil
}

func summaryRow(r stats.Record) []string {
	return []string{r.Series, r.Regime, r.Column, r.Metric, formatFloat(r.Value)}
}

// formatFloat renders v compactly. NaN becomes an empty cell, the way
// pandas leaves missing values blank in CSV output.
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// groupBySeries splits records per series, preserving first-seen order.
func groupBySeries(records []stats.Record) ([]string, map[string][]stats.Record) {
	var names []string
	bySeries := make(map[string][]stats.Record)
	for _, r := range records {
		if _, ok := bySeries[r.Series]; !ok {
			names = append(names, r.Series)
		}
		bySeries[r.Series] = append(bySeries[r.Series], r)
	}
	return names, bySeries
}

// writeSeriesTables pivots one series' records into a table per column:
// regimes as rows, metrics as columns, in first-seen order.
func writeSeriesTables(b *strings.Builder, recs []stats.Record) {
	var columns []string
	byColumn := make(map[string][]stats.Record)
	for _, r := range recs {
		if _, ok := byColumn[r.Column]; !ok {
			columns = append(columns, r.Column)
		}
		byColumn[r.Column] = append(byColumn[r.Column], r)
	}

	for _, col := range columns {
		var metrics, regimes []string
		values := make(map[string]map[string]float64)
		for _, r := range byColumn[col] {
			if _, ok := values[r.Regime]; !ok {
				regimes = append(regimes, r.Regime)
				values[r.Regime] = make(map[string]float64)
			}
			if _, ok := values[r.Regime][r.Metric]; !ok {
				values[r.Regime][r.Metric] = r.Value
			}
			if !contains(metrics, r.Metric) {
				metrics = append(metrics, r.Metric)
			}
		}

		fmt.Fprintf(b, "\n### %s\n\n", col)
		fmt.Fprintf(b, "| regime |")
		for _, m := range metrics {
			fmt.Fprintf(b, " %s |", m)
		}
		fmt.Fprintf(b, "\n|---|")
		for range metrics {
			fmt.Fprintf(b, "---|")
		}
		fmt.Fprintf(b, "\n")
		for _, regimeName := range regimes {
			fmt.Fprintf(b, "| %s |", regimeName)
			for _, m := range metrics {
				if v, ok := values[regimeName][m]; ok {
					fmt.Fprintf(b, " %s |", formatCell(v))
				} else {
					fmt.Fprintf(b, " |")
				}
			}
			fmt.Fprintf(b, "\n")
		}
	}
}

func writeMatrixTable(b *strings.Builder, m stats.Matrix) {
	fmt.Fprintf(b, "\n### %s\n\n", m.Regime)
	fmt.Fprintf(b, "| |")
	for _, name := range m.Names {
		fmt.Fprintf(b, " %s |", name)
	}
	fmt.Fprintf(b, "\n|---|")
	for range m.Names {
		fmt.Fprintf(b, "---|")
	}
	fmt.Fprintf(b, "\n")
	for i, name := range m.Names {
		fmt.Fprintf(b, "| %s |", name)
		for j := range m.Names {
			fmt.Fprintf(b, " %s |", formatCell(m.Values[i][j]))
		}
		fmt.Fprintf(b, "\n")
	}
}

// formatCell rounds for table display, keeping counts integral.
func formatCell(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func contains(xs []string, x string) bool {
	for _, s := range xs {
		if s == x {
			return true
		}
	}
	return false
}
