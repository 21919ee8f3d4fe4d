// Command starbound is the CLI for the Starbound wellbeing journal.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hurttlocker/starbound/internal/app"
	"github.com/hurttlocker/starbound/internal/config"
)

var version = "0.1.0-dev"

// rootOptions holds the global flags and the state PersistentPreRunE builds
// from them.
type rootOptions struct {
	verbose        bool
	jsonOut        bool
	configPath     string
	dbPath         string
	vocabulary     string
	habitWindow    string
	habitThreshold string
	logLevel       string
	httpAddr       string

	cfg    config.ResolvedConfig
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "starbound",
		Short:         "Starbound - a small-steps wellbeing journal",
		Long:          "Starbound classifies journal entries into wellbeing themes, spots repeated habits,\nsuggests small nudges and searches everything you have written.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.ResolveConfig(config.ResolveOptions{
				ConfigPath:        opts.configPath,
				CLIDBPath:         opts.dbPath,
				CLIVocabulary:     opts.vocabulary,
				CLIHabitWindow:    opts.habitWindow,
				CLIHabitThreshold: opts.habitThreshold,
				CLILogLevel:       opts.logLevel,
				CLIHTTPAddr:       opts.httpAddr,
			})
			if err != nil {
				return fmt.Errorf("resolving config: %w", err)
			}
			opts.cfg = cfg

			logger, err := buildLogger(cfg.LogLevel.Value, opts.verbose)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			opts.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	pf.BoolVar(&opts.jsonOut, "json", false, "Print JSON instead of text")
	pf.StringVar(&opts.configPath, "config", "", "Config file (default: ~/.starbound/config.yaml)")
	pf.StringVar(&opts.dbPath, "db", "", "Database path (or set STARBOUND_DB)")
	pf.StringVar(&opts.vocabulary, "vocab", "", "Tag vocabulary YAML (or set STARBOUND_VOCAB)")
	pf.StringVar(&opts.habitWindow, "habit-window", "", "Recent entries scanned for habits")
	pf.StringVar(&opts.habitThreshold, "habit-threshold", "", "Occurrences needed for a habit suggestion")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		newJournalCmd(opts),
		newClassifyCmd(opts),
		newBucketCmd(opts),
		newSearchCmd(opts),
		newNudgesCmd(opts),
		newHabitsCmd(opts),
		newTagsCmd(opts),
		newAskCmd(opts),
		newHistoryCmd(opts),
		newMCPCmd(opts),
		newServeCmd(opts),
		newConfigCmd(opts),
	)
	return root
}

// buildLogger writes JSON logs to stderr so stdout stays clean for command
// output and the MCP stdio transport.
func buildLogger(level string, verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = lvl
	}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

// openApp builds the application from the resolved config.
func (o *rootOptions) openApp() (*app.App, error) {
	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return app.New(app.FromConfig(o.cfg, logger))
}

func (o *rootOptions) printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
