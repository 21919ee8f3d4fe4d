package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hurttlocker/starbound/internal/classify"
	"github.com/hurttlocker/starbound/internal/journal"
)

// Submitter classifies and saves one entry. *journal.Service implements it.
type Submitter interface {
	SubmitAt(ctx context.Context, text string, ts time.Time, source string) (journal.Entry, classify.Outcome, error)
}

// Engine dispatches files to importers and submits what they parse.
type Engine struct {
	submitter Submitter
	importers []Importer
	logger    *zap.Logger
}

// NewEngine creates an engine with the Markdown, CSV and plain text
// importers, tried in that order.
func NewEngine(s Submitter, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		submitter: s,
		importers: []Importer{&MarkdownImporter{}, &CSVImporter{}, &PlainTextImporter{}},
		logger:    logger,
	}
}

func (e *Engine) importerFor(path string) Importer {
	for _, imp := range e.importers {
		if imp.CanHandle(path) {
			return imp
		}
	}
	return nil
}

// ImportPath imports a file, or every supported file in a directory.
// Subdirectories are only entered with opts.Recursive.
func (e *Engine) ImportPath(ctx context.Context, path string, opts ImportOptions) (*ImportResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if !info.IsDir() {
		return e.ImportFile(ctx, path, opts)
	}

	files, err := e.collectFiles(path, opts.Recursive)
	if err != nil {
		return nil, err
	}

	total := &ImportResult{}
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		if opts.ProgressFn != nil {
			opts.ProgressFn(i+1, len(files), f)
		}
		res, err := e.ImportFile(ctx, f, opts)
		if err != nil {
			total.FilesScanned++
			total.Errors = append(total.Errors, ImportError{File: f, Message: err.Error()})
			continue
		}
		total.Add(res)
	}
	return total, nil
}

func (e *Engine) collectFiles(root string, recursive bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && (!recursive || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || e.importerFor(p) == nil {
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// ImportFile parses one file and submits each entry. Entries without any
// letters are counted as noise and skipped. Entries sharing a timestamp
// are spaced a second apart so file order survives recency sorting.
func (e *Engine) ImportFile(ctx context.Context, path string, opts ImportOptions) (*ImportResult, error) {
	res := &ImportResult{FilesScanned: 1}

	imp := e.importerFor(path)
	if imp == nil {
		res.FilesSkipped = 1
		return res, nil
	}

	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if info.Size() > maxSize {
		res.FilesSkipped = 1
		res.Errors = append(res.Errors, ImportError{File: path, Message: fmt.Sprintf("file is %d bytes, limit %d", info.Size(), maxSize)})
		return res, nil
	}

	raw, err := imp.Import(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("importing %s: %w", path, err)
	}

	seen := map[time.Time]int{}
	for _, r := range raw {
		if isNoise(r.Text) {
			res.EntriesNoise++
			continue
		}
		ts := r.Timestamp
		if !ts.IsZero() {
			n := seen[ts]
			seen[ts] = n + 1
			ts = ts.Add(time.Duration(n) * time.Second)
		}
		if opts.DryRun {
			res.EntriesNew++
			continue
		}

		_, outcome, err := e.submitter.SubmitAt(ctx, r.Text, ts, SourceImport)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return res, err
			}
			res.Errors = append(res.Errors, ImportError{File: r.SourceFile, Line: r.SourceLine, Message: err.Error()})
			continue
		}
		res.EntriesNew++
		if outcome.IsFallback() {
			res.Fallbacks++
		}
	}
	if res.EntriesNew > 0 {
		res.FilesImported = 1
	}

	e.logger.Debug("imported file",
		zap.String("path", path),
		zap.Int("entries", res.EntriesNew),
		zap.Int("noise", res.EntriesNoise),
		zap.Bool("dry_run", opts.DryRun),
	)
	return res, nil
}

// FormatImportResult renders a human-readable summary.
func FormatImportResult(r *ImportResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Files:   %d scanned, %d imported, %d skipped\n", r.FilesScanned, r.FilesImported, r.FilesSkipped)
	fmt.Fprintf(&b, "Entries: %d new, %d skipped as noise", r.EntriesNew, r.EntriesNoise)
	if r.Fallbacks > 0 {
		fmt.Fprintf(&b, ", %d with basic classification", r.Fallbacks)
	}
	b.WriteString("\n")
	if len(r.Errors) > 0 {
		fmt.Fprintf(&b, "Errors:  %d\n", len(r.Errors))
		for _, e := range r.Errors {
			if e.Line > 0 {
				fmt.Fprintf(&b, "  %s:%d: %s\n", e.File, e.Line, e.Message)
			} else {
				fmt.Fprintf(&b, "  %s: %s\n", e.File, e.Message)
			}
		}
	}
	return b.String()
}
