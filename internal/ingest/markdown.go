package ingest

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// MarkdownImporter handles .md and .markdown files.
type MarkdownImporter struct{}

// CanHandle returns true for Markdown file extensions.
func (m *MarkdownImporter) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".md" || ext == ".markdown"
}

var (
	// headerRe matches any markdown header level 1-6.
	headerRe   = regexp.MustCompile(`^(#{1,6})\s+(.+)`)
	datePrefix = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})`)
	bulletRe   = regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s+(?:\[[ xX]\]\s+)?`)
)

// Import parses a Markdown journal. Paragraphs and list items become
// entries; headers only label them. A header that starts with a date
// dates the entries under it, otherwise the front matter date or a
// YYYY-MM-DD file name applies. Fenced code blocks are skipped.
func (m *MarkdownImporter) Import(ctx context.Context, path string) ([]RawEntry, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	metadata, body, bodyLine := stripFrontMatter(content)

	var fileDate time.Time
	if ts, ok := parseDate(metadata["date"]); ok {
		fileDate = ts
	} else if ts, ok := dateFromFileName(path); ok {
		fileDate = ts
	}

	return splitMarkdown(body, absPath, bodyLine, fileDate), nil
}

// stripFrontMatter removes YAML front matter (--- delimited) from content.
// Returns the simple key: value pairs, the remaining body and the line the
// body starts on.
func stripFrontMatter(content string) (map[string]string, string, int) {
	if !strings.HasPrefix(content, "---\n") {
		return nil, content, 1
	}

	rest := content[4:]
	idx := strings.Index(rest, "\n---")
	if idx < 0 {
		return nil, content, 1
	}

	fmContent := rest[:idx]
	body := rest[idx+4:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = ""
	}

	metadata := make(map[string]string)
	for _, line := range strings.Split(fmContent, "\n") {
		line = strings.TrimSpace(line)
		if colonIdx := strings.Index(line, ":"); colonIdx > 0 {
			key := strings.TrimSpace(line[:colonIdx])
			val := strings.Trim(strings.TrimSpace(line[colonIdx+1:]), `"'`)
			if key != "" && val != "" {
				metadata[key] = val
			}
		}
	}

	consumed := len(content) - len(body)
	return metadata, body, strings.Count(content[:consumed], "\n") + 1
}

func splitMarkdown(body, absPath string, firstLine int, fileDate time.Time) []RawEntry {
	var (
		entries     []RawEntry
		para        []string
		paraLine    int
		headerStack = make([]string, 6)
		section     string
		current     = fileDate
		inCodeBlock bool
	)

	flush := func() {
		if len(para) == 0 {
			return
		}
		text := strings.Join(strings.Fields(strings.Join(para, " ")), " ")
		para = para[:0]
		if text == "" {
			return
		}
		entries = append(entries, RawEntry{
			Text:          text,
			Timestamp:     current,
			SourceFile:    absPath,
			SourceLine:    paraLine,
			SourceSection: section,
		})
	}

	for i, line := range strings.Split(body, "\n") {
		lineNum := firstLine + i
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			flush()
			inCodeBlock = !inCodeBlock
			continue
		}
		if inCodeBlock {
			continue
		}

		if m := headerRe.FindStringSubmatch(trimmed); m != nil {
			flush()
			level := len(m[1]) - 1
			title := strings.TrimSpace(m[2])
			headerStack[level] = title
			for j := level + 1; j < len(headerStack); j++ {
				headerStack[j] = ""
			}
			section = buildSectionPath(headerStack)
			if d := datePrefix.FindString(title); d != "" {
				if ts, ok := parseDate(d); ok {
					current = ts
				}
			}
			continue
		}

		if trimmed == "" || isRule(trimmed) {
			flush()
			continue
		}

		if loc := bulletRe.FindStringIndex(line); loc != nil {
			flush()
			paraLine = lineNum
			para = append(para, line[loc[1]:])
			flush()
			continue
		}

		if len(para) == 0 {
			paraLine = lineNum
		}
		para = append(para, trimmed)
	}
	flush()

	return entries
}

func isRule(s string) bool {
	return s == "---" || s == "***" || s == "___"
}

// buildSectionPath creates a hierarchical path from the header stack,
// skipping empty levels: "March > Week 2".
func buildSectionPath(stack []string) string {
	var parts []string
	for _, h := range stack {
		if h != "" {
			parts = append(parts, h)
		}
	}
	return strings.Join(parts, " > ")
}

// dateFromFileName reads a leading YYYY-MM-DD from the file's base name.
func dateFromFileName(path string) (time.Time, bool) {
	base := filepath.Base(path)
	d := datePrefix.FindString(strings.TrimSuffix(base, filepath.Ext(base)))
	if d == "" {
		return time.Time{}, false
	}
	return parseDate(d)
}
