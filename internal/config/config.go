package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/therealutkarshpriyadarshi/logwatch/internal/filter"
	"github.com/therealutkarshpriyadarshi/logwatch/internal/highlight"
	"github.com/therealutkarshpriyadarshi/logwatch/internal/logging"
	"github.com/therealutkarshpriyadarshi/logwatch/internal/source"
	"github.com/therealutkarshpriyadarshi/logwatch/pkg/types"
)

// Config represents the main configuration
type Config struct {
	Sources []string `yaml:"sources" toml:"sources"`
	Mode    string   `yaml:"mode" toml:"mode"`   // follow or oneshot
	Debug   bool     `yaml:"debug" toml:"debug"`
	Color   string   `yaml:"color" toml:"color"` // auto, always or never

	Filter    FilterConfig    `yaml:"filter" toml:"filter"`
	Highlight HighlightConfig `yaml:"highlight" toml:"highlight"`
	Follow    FollowConfig    `yaml:"follow" toml:"follow"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
}

// FilterConfig holds the include and exclude word lists
type FilterConfig struct {
	Include               []string `yaml:"include,omitempty" toml:"include,omitempty"`
	Exclude               []string `yaml:"exclude,omitempty" toml:"exclude,omitempty"`
	DisablePresetExcludes bool     `yaml:"disable_preset_excludes" toml:"disable_preset_excludes"`
	PresetExcludes        []string `yaml:"preset_excludes,omitempty" toml:"preset_excludes,omitempty"`
	Regex                 bool     `yaml:"regex" toml:"regex"`
}

// HighlightConfig holds the ordered highlight rules
type HighlightConfig struct {
	Rules []highlight.RuleSpec `yaml:"rules,omitempty" toml:"rules,omitempty"`
}

// FollowConfig tunes Follow mode
type FollowConfig struct {
	Backend       string   `yaml:"backend" toml:"backend"` // native or tail
	Poll          bool     `yaml:"poll" toml:"poll"`
	PollInterval  Duration `yaml:"poll_interval" toml:"poll_interval"`
	BufferSize    int      `yaml:"buffer_size" toml:"buffer_size"`
	ReopenRetries int      `yaml:"reopen_retries" toml:"reopen_retries"`
}

// LoggingConfig defines diagnostic logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" toml:"level"`
	Format     string `yaml:"format" toml:"format"` // json or console
	File       string `yaml:"file,omitempty" toml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty" toml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty" toml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty" toml:"max_age_days,omitempty"`
	Compress   bool   `yaml:"compress,omitempty" toml:"compress,omitempty"`
}

// MetricsConfig holds the metrics and health endpoint configuration
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled" toml:"enabled"`
	Address    string `yaml:"address" toml:"address"`
	Path       string `yaml:"path" toml:"path"`
	HealthPath string `yaml:"health_path" toml:"health_path"`
}

// Duration is a time.Duration written as "250ms" or "2s" in config files
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Default values
const (
	DefaultSource         = "/var/log/messages"
	DefaultMode           = "follow"
	DefaultColor          = "auto"
	DefaultLogLevel       = "warn"
	DefaultLogFormat      = "console"
	DefaultMaxSizeMB      = 100
	DefaultMaxBackups     = 3
	DefaultMaxAgeDays     = 28
	DefaultMetricsAddress = ":9090"
	DefaultMetricsPath    = "/metrics"
	DefaultHealthPath     = "/health"
)

// Load loads configuration from a YAML or TOML file, chosen by extension.
//
// Environment variables (${NAME} or $NAME) are expanded in the string values
// of sources, follow, logging and metrics. Filter words and highlight rules
// are taken literally, so a word such as "$HOME" or a pattern such as
// `\$PATH` reaches the matcher unchanged.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.expandEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// expandEnv substitutes environment variables in the path and address
// like settings
func (c *Config) expandEnv() {
	for i, src := range c.Sources {
		c.Sources[i] = os.ExpandEnv(src)
	}
	c.Mode = os.ExpandEnv(c.Mode)
	c.Color = os.ExpandEnv(c.Color)

	c.Follow.Backend = os.ExpandEnv(c.Follow.Backend)

	c.Logging.Level = os.ExpandEnv(c.Logging.Level)
	c.Logging.Format = os.ExpandEnv(c.Logging.Format)
	c.Logging.File = os.ExpandEnv(c.Logging.File)

	c.Metrics.Address = os.ExpandEnv(c.Metrics.Address)
	c.Metrics.Path = os.ExpandEnv(c.Metrics.Path)
	c.Metrics.HealthPath = os.ExpandEnv(c.Metrics.HealthPath)
}

// DefaultConfig returns a configuration with every default applied
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults sets default values for unspecified configuration
func (c *Config) applyDefaults() {
	if len(c.Sources) == 0 {
		c.Sources = []string{DefaultSource}
	}
	if c.Mode == "" {
		c.Mode = DefaultMode
	}
	if c.Color == "" {
		c.Color = DefaultColor
	}

	if c.Filter.PresetExcludes == nil {
		c.Filter.PresetExcludes = filter.DefaultPresetExcludes()
	}
	if len(c.Highlight.Rules) == 0 {
		c.Highlight.Rules = highlight.DefaultRuleSpecs()
	}

	if c.Follow.Backend == "" {
		c.Follow.Backend = source.BackendNative
	}
	if c.Follow.PollInterval == 0 {
		c.Follow.PollInterval = Duration(source.DefaultPollInterval)
	}
	if c.Follow.BufferSize == 0 {
		c.Follow.BufferSize = 1000
	}
	if c.Follow.ReopenRetries == 0 {
		c.Follow.ReopenRetries = source.DefaultReopenRetries
	}

	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Logging.File != "" {
		if c.Logging.MaxSizeMB == 0 {
			c.Logging.MaxSizeMB = DefaultMaxSizeMB
		}
		if c.Logging.MaxBackups == 0 {
			c.Logging.MaxBackups = DefaultMaxBackups
		}
		if c.Logging.MaxAgeDays == 0 {
			c.Logging.MaxAgeDays = DefaultMaxAgeDays
		}
	}

	if c.Metrics.Address == "" {
		c.Metrics.Address = DefaultMetricsAddress
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Metrics.HealthPath == "" {
		c.Metrics.HealthPath = DefaultHealthPath
	}
}

// Validate validates the configuration. Filter words and highlight rules are
// compiled here so a broken pattern fails before any source is opened.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source must be configured")
	}
	for i, src := range c.Sources {
		if strings.TrimSpace(src) == "" {
			return fmt.Errorf("source %d is empty", i)
		}
	}

	if _, err := types.ParseRunMode(c.Mode); err != nil {
		return err
	}

	validColors := map[string]bool{
		"auto": true, "always": true, "never": true,
	}
	if !validColors[c.Color] {
		return fmt.Errorf("invalid color mode: %s", c.Color)
	}

	if _, err := filter.New(c.FilterOptions()); err != nil {
		return err
	}
	if _, err := highlight.BuildRules(c.Highlight.Rules); err != nil {
		return err
	}

	validBackends := map[string]bool{
		source.BackendNative: true, source.BackendTail: true,
	}
	if !validBackends[c.Follow.Backend] {
		return fmt.Errorf("invalid follow backend: %s", c.Follow.Backend)
	}
	if c.Follow.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.Follow.BufferSize <= 0 {
		return fmt.Errorf("buffer_size must be positive")
	}
	if c.Follow.ReopenRetries < 0 {
		return fmt.Errorf("reopen_retries must not be negative")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "disabled": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true, "console": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Metrics.Enabled {
		if c.Metrics.Address == "" {
			return fmt.Errorf("metrics address must be set when metrics are enabled")
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") || !strings.HasPrefix(c.Metrics.HealthPath, "/") {
			return fmt.Errorf("metrics and health paths must start with /")
		}
		if c.Metrics.Path == c.Metrics.HealthPath {
			return fmt.Errorf("metrics and health paths must differ")
		}
	}

	return nil
}

// RunMode returns the parsed run mode
func (c *Config) RunMode() types.RunMode {
	mode, _ := types.ParseRunMode(c.Mode)
	return mode
}

// FilterOptions returns the filter engine options
func (c *Config) FilterOptions() filter.Options {
	return filter.Options{
		Include:               c.Filter.Include,
		Exclude:               c.Filter.Exclude,
		PresetExcludes:        c.Filter.PresetExcludes,
		DisablePresetExcludes: c.Filter.DisablePresetExcludes,
		Regex:                 c.Filter.Regex,
	}
}

// FollowOptions returns the Follow reader options
func (c *Config) FollowOptions() source.FollowOptions {
	return source.FollowOptions{
		Backend:       c.Follow.Backend,
		Poll:          c.Follow.Poll,
		PollInterval:  time.Duration(c.Follow.PollInterval),
		ReopenRetries: c.Follow.ReopenRetries,
	}
}

// LoggerConfig returns the diagnostic logger configuration
func (c *Config) LoggerConfig() logging.Config {
	cfg := logging.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
	}
	if c.Logging.File != "" {
		cfg.File = &logging.FileConfig{
			Path:       c.Logging.File,
			MaxSizeMB:  c.Logging.MaxSizeMB,
			MaxBackups: c.Logging.MaxBackups,
			MaxAgeDays: c.Logging.MaxAgeDays,
			Compress:   c.Logging.Compress,
		}
	}
	return cfg
}
