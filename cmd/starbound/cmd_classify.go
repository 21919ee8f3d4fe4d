package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hurttlocker/starbound/internal/bucket"
	"github.com/hurttlocker/starbound/internal/tags"
)

// loadRegistry reads the vocabulary without opening the database.
func loadRegistry(opts *rootOptions) (*tags.Registry, error) {
	if path := opts.cfg.VocabularyPath.Value; path != "" {
		return tags.LoadFile(path)
	}
	return tags.Default()
}

func newClassifyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <text>",
		Short: "Classify text without saving it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			out := a.Classify(cmd.Context(), strings.Join(args, " "))
			if opts.jsonOut {
				return opts.printJSON(cmd.OutOrStdout(), out)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Outcome: %s", out.Kind)
			if out.Reason != "" {
				fmt.Fprintf(w, " (%s)", out.Reason)
			}
			fmt.Fprintln(w)
			for _, r := range out.Results {
				fmt.Fprintf(w, "  %s [%s] confidence %.2f, %s\n", r.CategoryTitle, r.HabitKey, r.Confidence, r.Sentiment)
				if themes := r.Themes.Sorted(); len(themes) > 0 {
					fmt.Fprintf(w, "    themes:   %s\n", strings.Join(themes, ", "))
				}
				if kws := r.Keywords.Sorted(); len(kws) > 0 {
					fmt.Fprintf(w, "    keywords: %s\n", strings.Join(kws, ", "))
				}
			}
			return nil
		},
	}
}

func newBucketCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bucket",
		Short: "Map duration or energy phrases onto buckets",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "time <phrase>",
			Short: "Bucketize a duration such as '2-3 minutes'",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				b := bucket.BucketizeTime(strings.Join(args, " "))
				if opts.jsonOut {
					return opts.printJSON(cmd.OutOrStdout(), map[string]string{"time_bucket": string(b)})
				}
				fmt.Fprintln(cmd.OutOrStdout(), b)
				return nil
			},
		},
		&cobra.Command{
			Use:   "energy <phrase>",
			Short: "Normalize an energy phrase such as 'super high'",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				e := bucket.NormalizeEnergy(strings.Join(args, " "))
				if opts.jsonOut {
					return opts.printJSON(cmd.OutOrStdout(), map[string]string{"energy_level": string(e)})
				}
				fmt.Fprintln(cmd.OutOrStdout(), e)
				return nil
			},
		},
	)
	return cmd
}

func newTagsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Inspect the tag vocabulary",
	}

	resolve := &cobra.Command{
		Use:   "resolve <raw>...",
		Short: "Resolve raw tags or aliases to canonical tags",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry(opts)
			if err != nil {
				return err
			}
			type resolved struct {
				Raw     string `json:"raw"`
				Key     string `json:"key"`
				Matched bool   `json:"matched"`
			}
			var out []resolved
			for _, raw := range args {
				key, ok := reg.Resolve(raw)
				if !ok {
					key = reg.Fallback().Key
				}
				out = append(out, resolved{Raw: raw, Key: key, Matched: ok})
			}
			if opts.jsonOut {
				return opts.printJSON(cmd.OutOrStdout(), out)
			}
			for _, r := range out {
				t := reg.Lookup(r.Key)
				suffix := ""
				if !r.Matched {
					suffix = " (fallback)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s %s [%s]%s\n", r.Raw, t.Emoji, t.DisplayName, t.Key, suffix)
			}
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List canonical tags grouped by category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry(opts)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return opts.printJSON(cmd.OutOrStdout(), reg.Tags())
			}
			for _, t := range reg.Tags() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s %-20s %s\n", t.Category, t.Emoji, t.Key, strings.Join(t.Aliases, ", "))
			}
			return nil
		},
	}

	cmd.AddCommand(resolve, list)
	return cmd
}
