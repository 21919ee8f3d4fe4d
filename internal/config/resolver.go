package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

const (
	DefaultDBPath         = "~/.starbound/starbound.db"
	DefaultHabitWindow    = 10
	DefaultHabitThreshold = 3
	DefaultLogLevel       = "info"
	DefaultHTTPAddr       = "127.0.0.1:8787"
)

type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// Int parses the value, returning fallback when it is empty, not a number
// or not positive.
func (v ResolvedValue) Int(fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(v.Value))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// ResolveOptions carries CLI flag values. Empty fields are unset.
type ResolveOptions struct {
	ConfigPath        string
	CLIDBPath         string
	CLIVocabulary     string
	CLIHabitWindow    string
	CLIHabitThreshold string
	CLILogLevel       string
	CLIHTTPAddr       string
}

type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath         ResolvedValue `json:"db_path"`
	VocabularyPath ResolvedValue `json:"vocabulary_path"`
	HabitWindow    ResolvedValue `json:"habit_window"`
	HabitThreshold ResolvedValue `json:"habit_threshold"`
	LogLevel       ResolvedValue `json:"log_level"`
	HTTPAddr       ResolvedValue `json:"http_addr"`
}

type fileConfig struct {
	DBPath     string `yaml:"db_path"`
	Vocabulary string `yaml:"vocabulary"`
	Habits     struct {
		Window    yamlInt `yaml:"window"`
		Threshold yamlInt `yaml:"threshold"`
	} `yaml:"habits"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
}

// yamlInt keeps numeric YAML scalars as text so they flow through the same
// string pipeline as env and CLI values.
type yamlInt string

func (y *yamlInt) UnmarshalYAML(n *yaml.Node) error {
	*y = yamlInt(n.Value)
	return nil
}

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".starbound", "config.yaml")
}

// ResolveConfig layers built-in defaults, the YAML file, STARBOUND_*
// environment variables and CLI flags, later layers winning.
func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{ConfigPath: path}
	applyDefault(&out.DBPath, DefaultDBPath)
	applyDefault(&out.HabitWindow, strconv.Itoa(DefaultHabitWindow))
	applyDefault(&out.HabitThreshold, strconv.Itoa(DefaultHabitThreshold))
	applyDefault(&out.LogLevel, DefaultLogLevel)
	applyDefault(&out.HTTPAddr, DefaultHTTPAddr)

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.VocabularyPath, cfg.Vocabulary, SourceConfig, path)
		apply(&out.HabitWindow, string(cfg.Habits.Window), SourceConfig, path)
		apply(&out.HabitThreshold, string(cfg.Habits.Threshold), SourceConfig, path)
		apply(&out.LogLevel, cfg.Log.Level, SourceConfig, path)
		apply(&out.HTTPAddr, cfg.HTTP.Addr, SourceConfig, path)
	}

	applyEnv(&out.DBPath, "STARBOUND_DB")
	applyEnv(&out.VocabularyPath, "STARBOUND_VOCAB")
	applyEnv(&out.HabitWindow, "STARBOUND_HABIT_WINDOW")
	applyEnv(&out.HabitThreshold, "STARBOUND_HABIT_THRESHOLD")
	applyEnv(&out.LogLevel, "STARBOUND_LOG_LEVEL")
	applyEnv(&out.HTTPAddr, "STARBOUND_HTTP_ADDR")

	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.VocabularyPath, opts.CLIVocabulary, SourceCLI, "--vocab")
	apply(&out.HabitWindow, opts.CLIHabitWindow, SourceCLI, "--habit-window")
	apply(&out.HabitThreshold, opts.CLIHabitThreshold, SourceCLI, "--habit-threshold")
	apply(&out.LogLevel, opts.CLILogLevel, SourceCLI, "--log-level")
	apply(&out.HTTPAddr, opts.CLIHTTPAddr, SourceCLI, "--addr")

	out.DBPath.Value = expandUserPath(out.DBPath.Value)
	out.VocabularyPath.Value = expandUserPath(out.VocabularyPath.Value)

	return out, nil
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyDefault(dst *ResolvedValue, v string) {
	*dst = ResolvedValue{Value: v, Source: SourceDefault, From: "built-in default"}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
