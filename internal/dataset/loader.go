// Package dataset reads daily close series from CSV files on disk.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"regimelab/internal/series"
)

// Loader parses per-index CSV files into validated series.
type Loader struct {
	dateLayouts []string
}

// NewLoader creates a loader. layout, when non-empty, is tried before
// the built-in date layouts.
func NewLoader(layout string) *Loader {
	layouts := []string{
		"2006-01-02",
		"2006-01-02 15:04:05",
		time.RFC3339,
		"01/02/2006",
	}
	if layout != "" {
		layouts = append([]string{layout}, layouts...)
	}
	return &Loader{dateLayouts: layouts}
}

// LoadFile reads one CSV file into a series named name. Rows with a
// blank close are skipped and counted; the skip count is returned so
// the caller can log it. Any malformed content, duplicate date, or an
// empty result yields a DataLoadError.
func (l *Loader) LoadFile(path, name string) (*series.Series, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, &DataLoadError{Path: path, Reason: "open failed", Err: err}
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, 0, &DataLoadError{Path: path, Reason: "missing header", Err: err}
	}

	dateIdx, closeIdx, err := mapColumns(header)
	if err != nil {
		return nil, 0, &DataLoadError{Path: path, Reason: err.Error()}
	}

	var points []series.Point
	skipped := 0
	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			return nil, 0, &DataLoadError{Path: path, Reason: fmt.Sprintf("malformed row %d", row), Err: err}
		}
		if dateIdx >= len(record) || closeIdx >= len(record) {
			return nil, 0, &DataLoadError{Path: path, Reason: fmt.Sprintf("row %d has too few fields", row)}
		}

		raw := strings.TrimSpace(record[closeIdx])
		if raw == "" || strings.EqualFold(raw, "null") || strings.EqualFold(raw, "nan") {
			skipped++
			continue
		}

		date, err := l.parseDate(strings.TrimSpace(record[dateIdx]))
		if err != nil {
			return nil, 0, &DataLoadError{Path: path, Reason: fmt.Sprintf("row %d: %v", row, err)}
		}

		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, 0, &DataLoadError{Path: path, Reason: fmt.Sprintf("row %d: bad close %q", row, raw), Err: err}
		}
		if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
			return nil, 0, &DataLoadError{Path: path, Reason: fmt.Sprintf("row %d: close %v is not a positive finite price", row, price)}
		}

		points = append(points, series.Point{Date: date, Close: price})
	}

	if len(points) == 0 {
		return nil, 0, &DataLoadError{Path: path, Reason: "no usable rows"}
	}

	// Vendor exports are not always ordered; sort first, then any
	// remaining equality is a true duplicate.
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})
	for i := 1; i < len(points); i++ {
		if !points[i].Date.After(points[i-1].Date) {
			return nil, 0, &DataLoadError{
				Path:   path,
				Reason: fmt.Sprintf("duplicate timestamp %s", points[i].Date.Format("2006-01-02")),
			}
		}
	}

	return series.New(name, points), skipped, nil
}

// parseDate tries the configured layouts in order.
func (l *Loader) parseDate(value string) (time.Time, error) {
	for _, layout := range l.dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", value)
}

// mapColumns locates the date and close columns in the header. The
// first matching column wins, so "Close" beats a later "Adj Close".
func mapColumns(header []string) (dateIdx, closeIdx int, err error) {
	dateIdx, closeIdx = -1, -1
	for i, column := range header {
		switch normalizeColumnName(column) {
		case "date":
			if dateIdx == -1 {
				dateIdx = i
			}
		case "close":
			if closeIdx == -1 {
				closeIdx = i
			}
		}
	}
	if dateIdx == -1 {
		return 0, 0, fmt.Errorf("no date column in header")
	}
	if closeIdx == -1 {
		return 0, 0, fmt.Errorf("no close column in header")
	}
	return dateIdx, closeIdx, nil
}

// normalizeColumnName maps the column spellings seen in vendor CSV
// exports onto the canonical date and close columns.
func normalizeColumnName(column string) string {
	switch strings.ToLower(strings.TrimSpace(column)) {
	case "date", "time", "datetime", "timestamp", "ts":
		return "date"
	case "close", "adj close", "adj_close", "close_price", "price", "last":
		return "close"
	default:
		return ""
	}
}
