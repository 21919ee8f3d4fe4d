package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// PlainTextImporter handles .txt and extensionless files.
type PlainTextImporter struct{}

// CanHandle returns true for plain text extensions.
func (t *PlainTextImporter) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".txt" || ext == ""
}

// Import splits a plain text file on blank lines. Each paragraph becomes
// one entry, dated by the file name when it starts with YYYY-MM-DD.
func (t *PlainTextImporter) Import(ctx context.Context, path string) ([]RawEntry, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	content := string(data)
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	entries := splitOnParagraphs(content, absPath, 1)
	if ts, ok := dateFromFileName(path); ok {
		for i := range entries {
			entries[i].Timestamp = ts
		}
	}
	return entries, nil
}

// splitOnParagraphs splits text on blank lines and tracks line numbers.
// firstLine is the line number content starts at.
func splitOnParagraphs(content, absPath string, firstLine int) []RawEntry {
	var entries []RawEntry

	content = strings.ReplaceAll(content, "\r\n", "\n")

	paragraphs := strings.Split(content, "\n\n")
	lineNum := firstLine

	for _, para := range paragraphs {
		text := strings.TrimSpace(para)
		if text != "" {
			entries = append(entries, RawEntry{
				Text:       strings.Join(strings.Fields(text), " "),
				SourceFile: absPath,
				SourceLine: lineNum + leadingNewlines(para),
			})
		}
		lineNum += strings.Count(para, "\n") + 2
	}

	return entries
}

func leadingNewlines(s string) int {
	return strings.Count(s[:len(s)-len(strings.TrimLeft(s, " \t\n"))], "\n")
}
