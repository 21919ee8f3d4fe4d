package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveConfig_Precedence_ConfigEnvCLI(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.yaml")
	yaml := `db_path: ~/.starbound/from-config.db
vocabulary: /etc/starbound/vocab.yaml
habits:
  window: 12
  threshold: 4
log:
  level: warn
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("STARBOUND_DB", "~/from-env.db")
	t.Setenv("STARBOUND_HABIT_THRESHOLD", "5")

	resolved, err := ResolveConfig(ResolveOptions{
		ConfigPath: cfgPath,
		CLIDBPath:  "~/from-cli.db",
	})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}

	if resolved.DBPath.Source != SourceCLI {
		t.Fatalf("expected DB path source cli, got %s", resolved.DBPath.Source)
	}
	if strings.HasPrefix(resolved.DBPath.Value, "~") {
		t.Fatalf("expected ~ to be expanded, got %q", resolved.DBPath.Value)
	}
	if resolved.HabitThreshold.Source != SourceEnv || resolved.HabitThreshold.Int(0) != 5 {
		t.Fatalf("expected threshold 5 from env, got %+v", resolved.HabitThreshold)
	}
	if resolved.HabitWindow.Source != SourceConfig || resolved.HabitWindow.Int(0) != 12 {
		t.Fatalf("expected window 12 from config, got %+v", resolved.HabitWindow)
	}
	if resolved.VocabularyPath.Value != "/etc/starbound/vocab.yaml" {
		t.Fatalf("unexpected vocabulary path %q", resolved.VocabularyPath.Value)
	}
	if resolved.LogLevel.Value != "warn" {
		t.Fatalf("expected log level warn, got %q", resolved.LogLevel.Value)
	}
	if resolved.HTTPAddr.Source != SourceDefault || resolved.HTTPAddr.Value != DefaultHTTPAddr {
		t.Fatalf("expected default http addr, got %+v", resolved.HTTPAddr)
	}
}

func TestResolveConfig_MissingFileUsesDefaults(t *testing.T) {
	resolved, err := ResolveConfig(ResolveOptions{ConfigPath: filepath.Join(t.TempDir(), "nope.yaml")})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}
	if resolved.HabitWindow.Int(0) != DefaultHabitWindow {
		t.Fatalf("expected default window, got %+v", resolved.HabitWindow)
	}
	if resolved.HabitThreshold.Source != SourceDefault {
		t.Fatalf("expected default source, got %s", resolved.HabitThreshold.Source)
	}
	if resolved.VocabularyPath.Value != "" {
		t.Fatalf("expected no vocabulary override, got %q", resolved.VocabularyPath.Value)
	}
}

func TestResolveConfig_BadYAML(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("habits: [unclosed"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := ResolveConfig(ResolveOptions{ConfigPath: cfgPath}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestResolvedValue_Int(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"7", 7},
		{" 7 ", 7},
		{"", 10},
		{"ten", 10},
		{"0", 10},
		{"-2", 10},
	}
	for _, tc := range cases {
		if got := (ResolvedValue{Value: tc.in}).Int(10); got != tc.want {
			t.Fatalf("Int(%q)=%d want %d", tc.in, got, tc.want)
		}
	}
}
