package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hurttlocker/starbound/internal/app"
	"github.com/hurttlocker/starbound/internal/habits"
	"github.com/hurttlocker/starbound/internal/nudge"
	"github.com/hurttlocker/starbound/internal/search"
	"github.com/hurttlocker/starbound/internal/store"
)

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var (
		limit  int
		intent string
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search journal, conversations, habits, forecasts and nudges",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			so := search.Options{Limit: limit}
			if intent != "" {
				parsed, err := search.ParseIntent(intent)
				if err != nil {
					return err
				}
				so.Intent = parsed
			}

			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			results, err := a.Search.Search(cmd.Context(), strings.Join(args, " "), so)
			if err != nil {
				return err
			}
			view := search.SelectDefaultView(results)
			if opts.jsonOut {
				return opts.printJSON(cmd.OutOrStdout(), map[string]any{
					"results":      results,
					"default_view": view,
				})
			}
			printSearch(cmd.OutOrStdout(), results, view)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", search.DefaultLimit, "Maximum results per bucket")
	cmd.Flags().StringVar(&intent, "intent", "", "Override intent: journal, askStarbound, healthForecast")
	return cmd
}

func printSearch(w io.Writer, r search.Results, view search.Tab) {
	fmt.Fprintf(w, "%d results for intent %s in %s, showing %s\n", r.TotalResults, r.DetectedIntent, r.SearchTime, view)
	shown := r.Tab(view)
	if len(shown) == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}
	for i, res := range shown {
		fmt.Fprintf(w, "%2d. [%s] %s\n", i+1, res.Type, res.Title)
		if res.Snippet != "" && res.Snippet != res.Title {
			fmt.Fprintf(w, "    %s\n", res.Snippet)
		}
	}
}

func newNudgesCmd(opts *rootOptions) *cobra.Command {
	var (
		req  app.NudgeRequest
		bank int
	)
	cmd := &cobra.Command{
		Use:   "nudges [text]",
		Short: "Suggest small nudges for text or themes",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if bank > 0 {
				banked, err := a.BankNudge(cmd.Context(), bank)
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return opts.printJSON(cmd.OutOrStdout(), banked)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Banked #%d %s\n", banked.Nudge.ID, banked.Nudge.Title)
				return nil
			}

			req.Text = strings.Join(args, " ")
			suggestions, err := a.SuggestNudges(cmd.Context(), req)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return opts.printJSON(cmd.OutOrStdout(), suggestions)
			}
			printNudges(cmd.OutOrStdout(), suggestions)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&req.Themes, "theme", nil, "Theme or tag to match (repeatable)")
	f.IntVarP(&req.Limit, "limit", "n", nudge.DefaultLimit, "Number of nudges")
	f.StringVar(&req.MaxTime, "time", "", "Time available, e.g. '5 minutes'")
	f.StringVar(&req.Energy, "energy", "", "Energy available, e.g. 'low'")
	f.IntVar(&bank, "bank", 0, "Bank the nudge with this id instead of suggesting")
	return cmd
}

func printNudges(w io.Writer, suggestions []nudge.Suggestion) {
	if len(suggestions) == 0 {
		fmt.Fprintln(w, "No nudges fit right now.")
		return
	}
	for _, s := range suggestions {
		fmt.Fprintf(w, "#%-3d %s (%s, %s energy)\n", s.Nudge.ID, s.Nudge.Title, s.Nudge.TimeBucket, s.Nudge.EnergyLevel)
		if s.Why != "" {
			fmt.Fprintf(w, "     %s\n", s.Why)
		}
	}
}

func newHabitsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "habits",
		Short: "Habit suggestions and check-in streaks",
	}

	suggest := &cobra.Command{
		Use:   "suggest",
		Short: "Show the pending habit suggestion",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			sg, ok, err := a.HabitSuggestion(cmd.Context())
			if err != nil {
				return err
			}
			if opts.jsonOut {
				var out *habits.Suggestion
				if ok {
					out = &sg
				}
				return opts.printJSON(cmd.OutOrStdout(), map[string]any{"suggestion": out})
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "No habit suggestion right now.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, seen %d times)\n  %s\n", sg.FormattedName, sg.SuggestedFrequency, sg.Occurrences, sg.Description)
			return nil
		},
	}

	resolve := func(use, short, done string, accept bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <tag>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := opts.openApp()
				if err != nil {
					return err
				}
				defer a.Close()

				if err := a.ResolveHabit(cmd.Context(), args[0], accept); err != nil {
					if errors.Is(err, habits.ErrNoPendingSuggestion) {
						return fmt.Errorf("%q is not the pending suggestion", args[0])
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", done, args[0])
				return nil
			},
		}
	}

	var (
		setDate  string
		setHabit string
		setValue string
	)
	streaks := &cobra.Command{
		Use:   "streaks",
		Short: "Show check-in streaks and weekly trends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if setHabit != "" {
				if setDate == "" {
					setDate = time.Now().Format(habits.DateLayout)
				}
				if _, err := a.CheckIn(cmd.Context(), setDate, setHabit, setValue); err != nil {
					return err
				}
			}

			s, tr, err := a.Streaks(cmd.Context())
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return opts.printJSON(cmd.OutOrStdout(), map[string]any{"streaks": s, "trends": tr})
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Current streak: %d days\nLongest streak: %d days\nCheck-ins:      %d\n", s.Current, s.Longest, s.TotalEntries)
			fmt.Fprintf(w, "Last 7 days:    %s%%\n", strconv.FormatFloat(tr.CompletionRate7d*100, 'f', 0, 64))
			for _, f := range habits.Forecasts(tr) {
				fmt.Fprintf(w, "  %s\n", f.Title)
			}
			return nil
		},
	}
	streaks.Flags().StringVar(&setHabit, "set", "", "Record a habit check-in before reporting")
	streaks.Flags().StringVar(&setValue, "value", "done", "Value for --set")
	streaks.Flags().StringVar(&setDate, "date", "", "Date for --set as YYYY-MM-DD (default: today)")

	status := &cobra.Command{
		Use:   "status <tag>",
		Short: "Show whether a tag was suggested, accepted or dismissed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			tag, st, err := a.HabitStatus(cmd.Context(), args[0])
			if errors.Is(err, store.ErrNotFound) {
				st = "never suggested"
			} else if err != nil {
				return err
			}
			if opts.jsonOut {
				return opts.printJSON(cmd.OutOrStdout(), map[string]string{"tag": tag, "status": string(st)})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", tag, st)
			return nil
		},
	}

	cmd.AddCommand(
		suggest,
		resolve("dismiss", "Dismiss the pending habit suggestion", "Dismissed", false),
		resolve("accept", "Accept the pending habit suggestion", "Accepted", true),
		status,
		streaks,
	)
	return cmd
}
