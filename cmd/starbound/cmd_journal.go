package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hurttlocker/starbound/internal/app"
	"github.com/hurttlocker/starbound/internal/ingest"
	"github.com/hurttlocker/starbound/internal/journal"
	"github.com/hurttlocker/starbound/internal/store"
	"github.com/hurttlocker/starbound/internal/tags"
)

func newJournalCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Write and review journal entries",
	}

	add := &cobra.Command{
		Use:   "add <text>",
		Short: "Classify and save a journal entry",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.AddEntry(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return opts.printJSON(cmd.OutOrStdout(), res)
			}
			printAddResult(cmd.OutOrStdout(), a.Registry, res)
			return nil
		},
	}

	var limit int
	var raw bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent entries with near-duplicates collapsed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			var entries []journal.Entry
			if raw {
				entries, err = a.Store.RecentEntries(cmd.Context(), limit)
			} else {
				entries, err = a.Journal.Recent(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return opts.printJSON(cmd.OutOrStdout(), entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No journal entries yet.")
				return nil
			}
			for _, e := range entries {
				printEntry(cmd.OutOrStdout(), a.Registry, e)
			}
			return nil
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", journal.MaxDedupedEntries, "Maximum entries to show")
	list.Flags().BoolVar(&raw, "raw", false, "Show stored entries without deduplication")

	dedupe := &cobra.Command{
		Use:   "dedupe",
		Short: "Report which stored entries collapse as near-duplicates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Dedupe(cmd.Context())
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return opts.printJSON(cmd.OutOrStdout(), report)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d entries, %d kept after deduplication.\n", report.Scanned, len(report.Kept))
			for _, e := range report.Kept {
				printEntry(cmd.OutOrStdout(), a.Registry, e)
			}
			return nil
		},
	}

	var importOpts ingest.ImportOptions
	importCmd := &cobra.Command{
		Use:   "import <path>...",
		Short: "Import entries from Markdown, CSV or text files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			w := cmd.OutOrStdout()
			if importOpts.DryRun && !opts.jsonOut {
				fmt.Fprintln(w, "Dry run mode - no entries will be saved")
			}
			if !opts.jsonOut {
				importOpts.ProgressFn = func(current, total int, file string) {
					fmt.Fprintf(w, "  [%d/%d] %s\n", current, total, file)
				}
			}

			total := &ingest.ImportResult{}
			for _, path := range args {
				res, err := a.Import(cmd.Context(), path, importOpts)
				if err != nil {
					return err
				}
				total.Add(res)
			}
			if opts.jsonOut {
				return opts.printJSON(w, total)
			}
			fmt.Fprint(w, ingest.FormatImportResult(total))
			return nil
		},
	}
	importCmd.Flags().BoolVarP(&importOpts.Recursive, "recursive", "r", false, "Recurse into subdirectories")
	importCmd.Flags().BoolVarP(&importOpts.DryRun, "dry-run", "n", false, "Parse without saving")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one stored entry with its classification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			e, err := a.Entry(cmd.Context(), args[0])
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no entry with id %s", args[0])
			} else if err != nil {
				return err
			}
			if opts.jsonOut {
				return opts.printJSON(cmd.OutOrStdout(), e)
			}
			printEntry(cmd.OutOrStdout(), a.Registry, e)
			for _, c := range e.Classifications {
				fmt.Fprintf(cmd.OutOrStdout(), "    %s: %s (%s)\n", c.CategoryTitle, c.Sentiment, strings.Join(c.Themes.Sorted(), ", "))
			}
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.DeleteEntry(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("no entry with id %s", args[0])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}

	vacuum := &cobra.Command{
		Use:   "vacuum",
		Short: "Compact the journal database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Vacuum(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Database compacted.")
			return nil
		},
	}

	cmd.AddCommand(add, list, show, del, dedupe, importCmd, vacuum)
	return cmd
}

func printEntry(w io.Writer, reg *tags.Registry, e journal.Entry) {
	var labels []string
	for _, t := range journal.CanonicalTags(reg, e) {
		labels = append(labels, t.Emoji+" "+t.DisplayName)
	}
	fmt.Fprintf(w, "%s  %s\n", e.Timestamp.Local().Format("2006-01-02 15:04"), e.OriginalText)
	if len(labels) > 0 {
		fmt.Fprintf(w, "    %s  (confidence %.2f)\n", strings.Join(labels, ", "), e.AverageConfidence)
	}
}

func printAddResult(w io.Writer, reg *tags.Registry, res app.AddResult) {
	fmt.Fprintf(w, "Saved entry %s\n", res.Entry.ID)
	if res.Outcome.IsFallback() {
		fmt.Fprintf(w, "  (basic classification: %s)\n", res.Outcome.Reason)
	}
	printEntry(w, reg, res.Entry)
	if len(res.Nudges) > 0 {
		fmt.Fprintln(w, "\nTry one of these:")
		for _, s := range res.Nudges {
			fmt.Fprintf(w, "  #%d %s (%s)\n", s.Nudge.ID, s.Nudge.Title, s.Nudge.TimeBucket)
		}
	}
	if sg := res.Suggestion; sg != nil {
		fmt.Fprintf(w, "\nHabit idea: %s - %s\n", sg.FormattedName, sg.Description)
		fmt.Fprintf(w, "  starbound habits accept %s | starbound habits dismiss %s\n", sg.Tag, sg.Tag)
	}
}
