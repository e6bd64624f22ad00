package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/therealutkarshpriyadarshi/logwatch/internal/filter"
	"github.com/therealutkarshpriyadarshi/logwatch/pkg/types"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
sources:
  - /var/log/app.log
  - /var/log/app2.log
mode: follow
debug: true

filter:
  include: [error, warning]
  exclude: [healthcheck]

follow:
  poll: true
  poll_interval: 500ms

logging:
  level: debug
  format: json
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if len(cfg.Sources) != 2 {
		t.Errorf("Expected 2 sources, got %d", len(cfg.Sources))
	}
	if !cfg.Debug {
		t.Error("Expected debug to be enabled")
	}
	if got := time.Duration(cfg.Follow.PollInterval); got != 500*time.Millisecond {
		t.Errorf("Expected poll interval 500ms, got %v", got)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.Logging.Level)
	}
	if !reflect.DeepEqual(cfg.Filter.PresetExcludes, filter.DefaultPresetExcludes()) {
		t.Errorf("Expected default preset excludes, got %v", cfg.Filter.PresetExcludes)
	}
	if len(cfg.Highlight.Rules) != 3 {
		t.Errorf("Expected 3 default highlight rules, got %d", len(cfg.Highlight.Rules))
	}
}

func TestLoadYAMLAndTOMLAgree(t *testing.T) {
	yamlPath := writeConfig(t, "config.yml", `
sources: [/var/log/syslog]
mode: oneshot
color: never
filter:
  include: [sshd]
  disable_preset_excludes: true
  regex: true
highlight:
  rules:
    - name: auth
      words: [Accepted, Failed]
      color: magenta
      style: italic
follow:
  backend: tail
  poll_interval: 2s
  buffer_size: 64
logging:
  level: info
  file: /tmp/logwatch/diag.log
metrics:
  enabled: true
  address: 127.0.0.1:9100
`)

	tomlPath := writeConfig(t, "config.toml", `
sources = ["/var/log/syslog"]
mode = "oneshot"
color = "never"

[filter]
include = ["sshd"]
disable_preset_excludes = true
regex = true

[[highlight.rules]]
name = "auth"
words = ["Accepted", "Failed"]
color = "magenta"
style = "italic"

[follow]
backend = "tail"
poll_interval = "2s"
buffer_size = 64

[logging]
level = "info"
file = "/tmp/logwatch/diag.log"

[metrics]
enabled = true
address = "127.0.0.1:9100"
`)

	fromYAML, err := Load(yamlPath)
	if err != nil {
		t.Fatalf("Failed to load YAML config: %v", err)
	}
	fromTOML, err := Load(tomlPath)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}

	if !reflect.DeepEqual(fromYAML, fromTOML) {
		t.Errorf("YAML and TOML configs differ:\nyaml: %+v\ntoml: %+v", fromYAML, fromTOML)
	}

	if fromTOML.RunMode() != types.OneShot {
		t.Errorf("Expected oneshot mode, got %v", fromTOML.RunMode())
	}
	if fromTOML.Logging.MaxSizeMB != DefaultMaxSizeMB {
		t.Errorf("Expected default max size for file logging, got %d", fromTOML.Logging.MaxSizeMB)
	}
	if got := fromTOML.FollowOptions().PollInterval; got != 2*time.Second {
		t.Errorf("Expected poll interval 2s, got %v", got)
	}
}

func TestLoadConfigWithEnvVars(t *testing.T) {
	t.Setenv("LOGWATCH_SOURCE", "/var/log/from-env.log")

	configPath := writeConfig(t, "config.yaml", `
sources:
  - ${LOGWATCH_SOURCE}
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Sources[0] != "/var/log/from-env.log" {
		t.Errorf("Expected source from env var, got %s", cfg.Sources[0])
	}
}

func TestLoadConfigKeepsFilterWordsLiteral(t *testing.T) {
	t.Setenv("HOME", "/home/expanded")
	t.Setenv("LOGWATCH_DIR", "/var/log/app")

	configPath := writeConfig(t, "config.yaml", `
sources:
  - ${LOGWATCH_DIR}/app.log
filter:
  exclude: ["$HOME"]
highlight:
  rules:
    - name: path
      pattern: '\$PATH'
      color: green
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Sources[0] != "/var/log/app/app.log" {
		t.Errorf("Expected expanded source, got %s", cfg.Sources[0])
	}
	if len(cfg.Filter.Exclude) != 1 || cfg.Filter.Exclude[0] != "$HOME" {
		t.Errorf("Expected literal exclude word $HOME, got %v", cfg.Filter.Exclude)
	}
	if got := cfg.Highlight.Rules[0].Pattern; got != `\$PATH` {
		t.Errorf("Expected literal highlight pattern, got %q", got)
	}

	f, err := filter.New(cfg.FilterOptions())
	if err != nil {
		t.Fatalf("Failed to build filter: %v", err)
	}
	if f.Admit("cd $HOME") {
		t.Error("Expected a line containing $HOME to be excluded")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0] != DefaultSource {
		t.Errorf("Expected default source %s, got %v", DefaultSource, cfg.Sources)
	}
	if cfg.RunMode() != types.Follow {
		t.Errorf("Expected follow mode, got %v", cfg.RunMode())
	}
	if cfg.LoggerConfig().File != nil {
		t.Error("Expected no log file by default")
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"mode", func(c *Config) { c.Mode = "sometimes" }, "run mode"},
		{"color", func(c *Config) { c.Color = "rainbow" }, "color mode"},
		{"backend", func(c *Config) { c.Follow.Backend = "inotify" }, "backend"},
		{"log level", func(c *Config) { c.Logging.Level = "verbose" }, "log level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "log format"},
		{"empty source", func(c *Config) { c.Sources = []string{" "} }, "source 0"},
		{"poll interval", func(c *Config) { c.Follow.PollInterval = -1 }, "poll_interval"},
		{"highlight color", func(c *Config) { c.Highlight.Rules[0].Color = "teal" }, "color"},
		{"highlight style", func(c *Config) { c.Highlight.Rules[0].Style = "blink" }, "style"},
		{"metrics paths", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.HealthPath = c.Metrics.Path
		}, "differ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestValidateRejectsBadFilterWords(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Filter.Exclude = []string{"ok", ""}

	if err := cfg.Validate(); !errors.Is(err, filter.ErrInvalidPattern) {
		t.Errorf("Expected ErrInvalidPattern, got %v", err)
	}

	cfg = DefaultConfig()
	cfg.Filter.Regex = true
	cfg.Filter.Include = []string{"(unclosed"}

	if err := cfg.Validate(); !errors.Is(err, filter.ErrInvalidPattern) {
		t.Errorf("Expected ErrInvalidPattern in regex mode, got %v", err)
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
follow:
  poll_interval: soon
`)

	if _, err := Load(configPath); err == nil {
		t.Error("Expected error for invalid duration")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}
