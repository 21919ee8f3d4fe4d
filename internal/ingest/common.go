package ingest

import (
	"context"
	"strings"
	"time"
	"unicode"
)

// RawEntry is a parsed piece of journal text ready for classification.
type RawEntry struct {
	Text          string    // The entry text
	Timestamp     time.Time // When it was written; zero means now
	SourceFile    string    // Absolute path to source file
	SourceLine    int       // Starting line number (1-indexed)
	SourceSection string    // Section header or row label
}

// Importer handles a specific file format.
type Importer interface {
	// CanHandle returns true if this importer supports the given file path.
	CanHandle(path string) bool

	// Import parses the file and returns journal entries.
	Import(ctx context.Context, path string) ([]RawEntry, error)
}

// ImportResult summarizes an import operation.
type ImportResult struct {
	FilesScanned  int           `json:"files_scanned"`
	FilesImported int           `json:"files_imported"`
	FilesSkipped  int           `json:"files_skipped"`
	EntriesNew    int           `json:"entries_new"`
	EntriesNoise  int           `json:"entries_noise"`
	Fallbacks     int           `json:"fallbacks"`
	Errors        []ImportError `json:"errors,omitempty"`
}

// Add merges another ImportResult into this one.
func (r *ImportResult) Add(other *ImportResult) {
	r.FilesScanned += other.FilesScanned
	r.FilesImported += other.FilesImported
	r.FilesSkipped += other.FilesSkipped
	r.EntriesNew += other.EntriesNew
	r.EntriesNoise += other.EntriesNoise
	r.Fallbacks += other.Fallbacks
	r.Errors = append(r.Errors, other.Errors...)
}

// ImportError records a non-fatal error during import.
type ImportError struct {
	File    string `json:"file"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

// ImportOptions configures an import operation.
type ImportOptions struct {
	Recursive   bool
	DryRun      bool
	MaxFileSize int64 // bytes, default 10MB
	ProgressFn  func(current, total int, file string)
}

// DefaultMaxFileSize is 10MB.
const DefaultMaxFileSize = 10 * 1024 * 1024

// SourceImport is recorded as the metadata source of imported entries.
const SourceImport = "import"

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006/01/02",
}

// parseDate accepts the date forms journals commonly carry. Dates without
// a zone are UTC.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// isNoise reports text with nothing to classify: no letters at all, such
// as separators, bare numbers or timestamps.
func isNoise(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
