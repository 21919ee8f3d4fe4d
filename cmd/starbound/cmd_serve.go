package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hurttlocker/starbound/internal/api"
	"github.com/hurttlocker/starbound/internal/config"
	"github.com/hurttlocker/starbound/internal/mcp"
)

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve Starbound tools over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			opts.logger.Info("mcp server starting", zap.String("db", a.Store.Path()))
			return mcp.ServeStdio(mcp.ServerConfig{App: a, Version: version})
		},
	}
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signalContext()
			defer stop()

			return api.Serve(ctx, api.ServerConfig{
				App:    a,
				Addr:   opts.cfg.HTTPAddr.Value,
				Logger: opts.logger.Named("api"),
			})
		},
	}
	cmd.Flags().StringVar(&opts.httpAddr, "addr", "", "Listen address (default: "+config.DefaultHTTPAddr+")")
	return cmd
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the resolved configuration and where each value came from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if opts.jsonOut {
				return opts.printJSON(cmd.OutOrStdout(), cfg)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "config file: %s\n", cfg.ConfigPath)
			rows := []struct {
				name string
				v    config.ResolvedValue
			}{
				{"db_path", cfg.DBPath},
				{"vocabulary", cfg.VocabularyPath},
				{"habit_window", cfg.HabitWindow},
				{"habit_threshold", cfg.HabitThreshold},
				{"log_level", cfg.LogLevel},
				{"http_addr", cfg.HTTPAddr},
			}
			for _, r := range rows {
				value := r.v.Value
				if value == "" {
					value = "(built-in)"
				}
				source := r.v.Source
				if source == "" {
					source = config.SourceDefault
				}
				fmt.Fprintf(w, "  %-16s %-40s %s\n", r.name, value, source)
			}
			return nil
		},
	}
}
