package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CSVImporter handles .csv and .tsv files.
type CSVImporter struct{}

// CanHandle returns true for CSV/TSV file extensions.
func (c *CSVImporter) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".csv" || ext == ".tsv"
}

var (
	textColumns = []string{"text", "entry", "note", "journal", "content"}
	dateColumns = []string{"timestamp", "date", "created_at", "time"}
)

// Import parses a CSV file with a header row. The entry text comes from
// the first text-like column (text, entry, note, journal, content) or the
// first column; the date from a timestamp/date column when present.
func (c *CSVImporter) Import(ctx context.Context, path string) ([]RawEntry, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	if strings.ToLower(filepath.Ext(path)) == ".tsv" {
		reader.Comma = '\t'
	}
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing CSV %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	headers := records[0]
	textCol := findColumn(headers, textColumns)
	if textCol < 0 {
		textCol = 0
	}
	dateCol := findColumn(headers, dateColumns)

	var entries []RawEntry
	for i, row := range records[1:] {
		if textCol >= len(row) {
			continue
		}
		text := strings.TrimSpace(row[textCol])
		if text == "" {
			continue
		}
		e := RawEntry{
			Text:          text,
			SourceFile:    absPath,
			SourceLine:    i + 2, // 1-indexed, skip header row
			SourceSection: fmt.Sprintf("row-%d", i+1),
		}
		if dateCol >= 0 && dateCol < len(row) {
			if ts, ok := parseDate(row[dateCol]); ok {
				e.Timestamp = ts
			}
		}
		entries = append(entries, e)
	}

	return entries, nil
}

func findColumn(headers, names []string) int {
	for _, name := range names {
		for i, h := range headers {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return i
			}
		}
	}
	return -1
}
