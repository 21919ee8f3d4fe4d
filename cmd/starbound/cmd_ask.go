package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hurttlocker/starbound/internal/app"
	"github.com/hurttlocker/starbound/internal/store"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var user, answer string
	var suggestions bool
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Record an Ask Starbound question and its answer",
		Long:  "Record an Ask Starbound question. Answers come from the caller; --answer stores one\nalongside the question so it shows up in history and search.",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if suggestions {
				if opts.jsonOut {
					return opts.printJSON(w, app.SuggestedQuestions)
				}
				for _, q := range app.SuggestedQuestions {
					fmt.Fprintf(w, "  %s\n", q)
				}
				return nil
			}
			if len(args) == 0 {
				return fmt.Errorf("a question is required")
			}

			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			c, err := a.RecordConversation(cmd.Context(), user, strings.Join(args, " "), answer)
			if errors.Is(err, store.ErrEmptyQuestion) {
				return fmt.Errorf("a question is required")
			} else if err != nil {
				return err
			}
			if opts.jsonOut {
				return opts.printJSON(w, c)
			}
			fmt.Fprintf(w, "Recorded question %s for %s\n", c.ID, c.UserID)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "User the question belongs to (default: "+app.DefaultUserID+")")
	cmd.Flags().StringVar(&answer, "answer", "", "Answer to store with the question")
	cmd.Flags().BoolVar(&suggestions, "suggestions", false, "List starter questions instead")
	return cmd
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var user string
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List Ask Starbound history, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			history, err := a.Conversations(cmd.Context(), user, limit)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if opts.jsonOut {
				return opts.printJSON(w, history)
			}
			if len(history) == 0 {
				fmt.Fprintln(w, "No questions asked yet.")
				return nil
			}
			for _, c := range history {
				fmt.Fprintf(w, "%s  Q: %s\n", c.CreatedAt.Local().Format("2006-01-02 15:04"), c.Question)
				if c.Answer != "" {
					fmt.Fprintf(w, "    A: %s\n", c.Answer)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "User whose history to show (default: "+app.DefaultUserID+")")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum conversations to show")
	return cmd
}
