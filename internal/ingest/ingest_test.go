package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hurttlocker/starbound/internal/classify"
	"github.com/hurttlocker/starbound/internal/journal"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

type submitted struct {
	text   string
	ts     time.Time
	source string
}

type recordingSubmitter struct {
	mu    sync.Mutex
	calls []submitted
	fail  string
}

func (r *recordingSubmitter) SubmitAt(_ context.Context, text string, ts time.Time, source string) (journal.Entry, classify.Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != "" && strings.Contains(text, r.fail) {
		return journal.Entry{}, classify.Outcome{}, errors.New("save failed")
	}
	r.calls = append(r.calls, submitted{text: text, ts: ts, source: source})
	return journal.Entry{OriginalText: text, Timestamp: ts}, classify.Outcome{Kind: classify.KindSuccess}, nil
}

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

// ==================== Markdown Importer Tests ====================

const sampleMarkdown = "---\n" +
	"title: March\n" +
	"date: 2026-03-01\n" +
	"---\n" +
	"# March journal\n" +
	"\n" +
	"Slept badly, woke at 3am.\n" +
	"Felt groggy all morning.\n" +
	"\n" +
	"## 2026-03-14 Saturday\n" +
	"\n" +
	"- Walked to the park\n" +
	"- [x] Drank water\n" +
	"\n" +
	"```\n" +
	"ignored code\n" +
	"```\n" +
	"\n" +
	"## Notes\n" +
	"\n" +
	"12:30\n"

func TestMarkdownImport_SectionsDatesAndBullets(t *testing.T) {
	path := writeFile(t, t.TempDir(), "march.md", sampleMarkdown)
	imp := &MarkdownImporter{}
	if !imp.CanHandle(path) {
		t.Fatal("CanHandle should return true for .md files")
	}

	entries, err := imp.Import(context.Background(), path)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 raw entries, got %d: %+v", len(entries), entries)
	}

	want := []struct {
		text    string
		date    string
		line    int
		section string
	}{
		{"Slept badly, woke at 3am. Felt groggy all morning.", "2026-03-01", 7, "March journal"},
		{"Walked to the park", "2026-03-14", 12, "March journal > 2026-03-14 Saturday"},
		{"Drank water", "2026-03-14", 13, "March journal > 2026-03-14 Saturday"},
		{"12:30", "2026-03-14", 21, "March journal > Notes"},
	}
	for i, w := range want {
		got := entries[i]
		if got.Text != w.text {
			t.Errorf("entry %d text = %q, want %q", i, got.Text, w.text)
		}
		if !got.Timestamp.Equal(day(w.date)) {
			t.Errorf("entry %d date = %s, want %s", i, got.Timestamp, w.date)
		}
		if got.SourceLine != w.line {
			t.Errorf("entry %d line = %d, want %d", i, got.SourceLine, w.line)
		}
		if got.SourceSection != w.section {
			t.Errorf("entry %d section = %q, want %q", i, got.SourceSection, w.section)
		}
		if !filepath.IsAbs(got.SourceFile) {
			t.Errorf("entry %d source file should be absolute, got %q", i, got.SourceFile)
		}
	}
}

func TestMarkdownImport_DateFromFileName(t *testing.T) {
	path := writeFile(t, t.TempDir(), "2026-04-02.md", "Meditated for ten minutes.\n")
	entries, err := (&MarkdownImporter{}).Import(context.Background(), path)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(entries) != 1 || !entries[0].Timestamp.Equal(day("2026-04-02")) {
		t.Fatalf("expected one entry dated 2026-04-02, got %+v", entries)
	}
}

func TestMarkdownImport_Empty(t *testing.T) {
	path := writeFile(t, t.TempDir(), "empty.md", "  \n\n")
	entries, err := (&MarkdownImporter{}).Import(context.Background(), path)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}

func TestStripFrontMatter(t *testing.T) {
	meta, body, line := stripFrontMatter("---\ndate: \"2026-01-05\"\nmood: ok\n---\nHello\n")
	if meta["date"] != "2026-01-05" || meta["mood"] != "ok" {
		t.Fatalf("unexpected metadata %v", meta)
	}
	if body != "Hello\n" {
		t.Fatalf("unexpected body %q", body)
	}
	if line != 5 {
		t.Fatalf("expected body to start on line 5, got %d", line)
	}

	meta, body, line = stripFrontMatter("No front matter\n")
	if meta != nil || body != "No front matter\n" || line != 1 {
		t.Fatalf("unexpected result %v %q %d", meta, body, line)
	}
}

// ==================== Text and CSV Importer Tests ====================

func TestPlainTextImport_Paragraphs(t *testing.T) {
	path := writeFile(t, t.TempDir(), "2026-02-10.txt", "Went running.\n\n\nDrank water at noon\nand felt better.\n")
	imp := &PlainTextImporter{}
	if !imp.CanHandle(path) {
		t.Fatal("CanHandle should return true for .txt files")
	}
	entries, err := imp.Import(context.Background(), path)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[1].Text != "Drank water at noon and felt better." || entries[1].SourceLine != 4 {
		t.Fatalf("unexpected second entry %+v", entries[1])
	}
	for _, e := range entries {
		if !e.Timestamp.Equal(day("2026-02-10")) {
			t.Fatalf("expected file name date, got %s", e.Timestamp)
		}
	}
}

func TestCSVImport_TextAndDateColumns(t *testing.T) {
	path := writeFile(t, t.TempDir(), "log.csv", "date,entry,mood\n2026-03-01,Walked 5k,good\n2026-03-02,,meh\nbad-date,Read a book,ok\n")
	imp := &CSVImporter{}
	if !imp.CanHandle(path) {
		t.Fatal("CanHandle should return true for .csv files")
	}
	entries, err := imp.Import(context.Background(), path)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d: %+v", len(entries), entries)
	}
	if entries[0].Text != "Walked 5k" || !entries[0].Timestamp.Equal(day("2026-03-01")) || entries[0].SourceLine != 2 {
		t.Fatalf("unexpected first entry %+v", entries[0])
	}
	if entries[1].Text != "Read a book" || !entries[1].Timestamp.IsZero() || entries[1].SourceSection != "row-3" {
		t.Fatalf("unexpected second entry %+v", entries[1])
	}
}

func TestCSVImport_TSVFallsBackToFirstColumn(t *testing.T) {
	path := writeFile(t, t.TempDir(), "log.tsv", "what\twhen\nStretched before bed\t2026-03-03 22:15\n")
	entries, err := (&CSVImporter{}).Import(context.Background(), path)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Text != "Stretched before bed" {
		t.Fatalf("unexpected entries %+v", entries)
	}
	if !entries[0].Timestamp.IsZero() {
		t.Fatalf("'when' is not a date column, got %s", entries[0].Timestamp)
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2026-03-01", true},
		{"2026/03/01", true},
		{"2026-03-01 08:15", true},
		{"2026-03-01T08:15:00Z", true},
		{"yesterday", false},
		{"", false},
	}
	for _, tc := range cases {
		if _, ok := parseDate(tc.in); ok != tc.ok {
			t.Errorf("parseDate(%q) ok=%v, want %v", tc.in, ok, tc.ok)
		}
	}
}

func TestIsNoise(t *testing.T) {
	for _, s := range []string{"12:30", "----", "2026-03-01", "***"} {
		if !isNoise(s) {
			t.Errorf("expected %q to be noise", s)
		}
	}
	for _, s := range []string{"ok", "Slept 8h", "café"} {
		if isNoise(s) {
			t.Errorf("expected %q not to be noise", s)
		}
	}
}

// ==================== Engine Tests ====================

func TestEngine_ImportFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "march.md", sampleMarkdown)
	sub := &recordingSubmitter{}

	res, err := NewEngine(sub, nil).ImportFile(context.Background(), path, ImportOptions{})
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if res.EntriesNew != 3 || res.EntriesNoise != 1 || res.FilesImported != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(sub.calls) != 3 {
		t.Fatalf("expected 3 submissions, got %d", len(sub.calls))
	}
	for _, c := range sub.calls {
		if c.source != SourceImport {
			t.Errorf("expected source %q, got %q", SourceImport, c.source)
		}
	}
	if !sub.calls[1].ts.Equal(day("2026-03-14")) || !sub.calls[2].ts.Equal(day("2026-03-14").Add(time.Second)) {
		t.Fatalf("same-day entries should be spaced a second apart: %s %s", sub.calls[1].ts, sub.calls[2].ts)
	}
}

func TestEngine_ImportPathDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "Walked the dog.\n")
	writeFile(t, dir, "b.csv", "text\nDrank water\nCalled mum\n")
	writeFile(t, dir, "photo.png", "not text")
	writeFile(t, dir, ".hidden.md", "Secret note.\n")
	writeFile(t, dir, "sub/c.txt", "Went to bed early.\n")

	sub := &recordingSubmitter{}
	var progress []string
	opts := ImportOptions{ProgressFn: func(current, total int, file string) {
		progress = append(progress, filepath.Base(file))
	}}

	res, err := NewEngine(sub, nil).ImportPath(context.Background(), dir, opts)
	if err != nil {
		t.Fatalf("ImportPath: %v", err)
	}
	if res.FilesScanned != 2 || res.EntriesNew != 3 {
		t.Fatalf("unexpected non-recursive result %+v", res)
	}
	if strings.Join(progress, ",") != "a.md,b.csv" {
		t.Fatalf("unexpected progress %v", progress)
	}

	sub = &recordingSubmitter{}
	opts.Recursive = true
	res, err = NewEngine(sub, nil).ImportPath(context.Background(), dir, opts)
	if err != nil {
		t.Fatalf("ImportPath recursive: %v", err)
	}
	if res.FilesScanned != 3 || res.EntriesNew != 4 {
		t.Fatalf("unexpected recursive result %+v", res)
	}
}

func TestEngine_DryRunSubmitsNothing(t *testing.T) {
	path := writeFile(t, t.TempDir(), "notes.txt", "One.\n\nTwo.\n")
	sub := &recordingSubmitter{}

	res, err := NewEngine(sub, nil).ImportFile(context.Background(), path, ImportOptions{DryRun: true})
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if res.EntriesNew != 2 {
		t.Fatalf("expected 2 entries counted, got %d", res.EntriesNew)
	}
	if len(sub.calls) != 0 {
		t.Fatalf("dry run should not submit, got %d calls", len(sub.calls))
	}
}

func TestEngine_SubmitErrorsAreCollected(t *testing.T) {
	path := writeFile(t, t.TempDir(), "notes.txt", "Fine entry.\n\nboom entry.\n\nAnother fine one.\n")
	sub := &recordingSubmitter{fail: "boom"}

	res, err := NewEngine(sub, nil).ImportFile(context.Background(), path, ImportOptions{})
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if res.EntriesNew != 2 || len(res.Errors) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Errors[0].Line != 3 {
		t.Fatalf("expected error on line 3, got %d", res.Errors[0].Line)
	}

	out := FormatImportResult(res)
	if !strings.Contains(out, "2 new") || !strings.Contains(out, "save failed") {
		t.Fatalf("unexpected summary:\n%s", out)
	}
}

func TestEngine_SkipsLargeAndUnknownFiles(t *testing.T) {
	dir := t.TempDir()
	big := writeFile(t, dir, "big.txt", strings.Repeat("word ", 10))
	sub := &recordingSubmitter{}
	e := NewEngine(sub, nil)

	res, err := e.ImportFile(context.Background(), big, ImportOptions{MaxFileSize: 5})
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if res.FilesSkipped != 1 || len(res.Errors) != 1 || len(sub.calls) != 0 {
		t.Fatalf("expected oversized file skipped, got %+v", res)
	}

	res, err = e.ImportFile(context.Background(), writeFile(t, dir, "x.png", "bin"), ImportOptions{})
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if res.FilesSkipped != 1 {
		t.Fatalf("expected unknown format skipped, got %+v", res)
	}

	if _, err := e.ImportPath(context.Background(), filepath.Join(dir, "missing"), ImportOptions{}); err == nil {
		t.Fatal("expected error for missing path")
	}
}
