package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/therealutkarshpriyadarshi/logwatch/internal/config"
	"github.com/therealutkarshpriyadarshi/logwatch/internal/debug"
	"github.com/therealutkarshpriyadarshi/logwatch/internal/filter"
	"github.com/therealutkarshpriyadarshi/logwatch/internal/health"
	"github.com/therealutkarshpriyadarshi/logwatch/internal/highlight"
	"github.com/therealutkarshpriyadarshi/logwatch/internal/logging"
	"github.com/therealutkarshpriyadarshi/logwatch/internal/metrics"
	"github.com/therealutkarshpriyadarshi/logwatch/internal/pipeline"
	"github.com/therealutkarshpriyadarshi/logwatch/internal/server"
	"github.com/therealutkarshpriyadarshi/logwatch/internal/shutdown"
	"github.com/therealutkarshpriyadarshi/logwatch/internal/source"
)

var version = "0.1.0"

// options holds the raw command line flags
type options struct {
	configPath    string
	logFiles      []string
	disablePreset bool
	exclude       []string
	include       []string
	regex         bool
	cat           bool
	debug         bool
	color         string
	backend       string
	poll          bool
	logLevel      string
	metricsAddr   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "logwatch [flags] [FILE...]",
		Short:         "Follow log files with keyword filtering and highlighting",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, opts, args)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	opts.bind(cmd)
	return cmd
}

// bind registers the command line flags on cmd
func (o *options) bind(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&o.configPath, "config", "c", "", "YAML or TOML config file")
	flags.StringSliceVarP(&o.logFiles, "log-files", "l", nil, "log files to watch (default /var/log/messages)")
	flags.BoolVarP(&o.disablePreset, "disable-preset-excludes", "d", false, "do not apply the preset exclude words")
	flags.StringArrayVarP(&o.exclude, "exclude-words", "e", nil, "hide lines containing this word (repeatable)")
	flags.StringArrayVarP(&o.include, "include-words", "i", nil, "only show lines containing this word (repeatable)")
	flags.BoolVar(&o.regex, "regex", false, "treat filter words as regular expressions")
	flags.BoolVar(&o.cat, "cat", false, "print the files once instead of following them")
	flags.BoolVar(&o.debug, "debug", false, "print the effective sources and filters before streaming")
	flags.StringVar(&o.color, "color", config.DefaultColor, "colorize output: auto, always or never")
	flags.StringVar(&o.backend, "backend", source.BackendNative, "follow backend: native or tail")
	flags.BoolVar(&o.poll, "poll", false, "poll files instead of using filesystem notifications")
	flags.StringVar(&o.logLevel, "log-level", config.DefaultLogLevel, "diagnostic log level")
	flags.StringVar(&o.metricsAddr, "metrics-addr", "", "serve metrics and health on this address")
}

// resolveConfig loads the config file, if any, and applies the flags that
// were set on top of it
func resolveConfig(cmd *cobra.Command, opts *options, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()

	sources := append(append([]string{}, opts.logFiles...), args...)
	if len(sources) > 0 {
		cfg.Sources = sources
	}
	if flags.Changed("disable-preset-excludes") {
		cfg.Filter.DisablePresetExcludes = opts.disablePreset
	}
	if flags.Changed("exclude-words") {
		cfg.Filter.Exclude = opts.exclude
	}
	if flags.Changed("include-words") {
		cfg.Filter.Include = opts.include
	}
	if flags.Changed("regex") {
		cfg.Filter.Regex = opts.regex
	}
	if flags.Changed("cat") {
		cfg.Mode = "follow"
		if opts.cat {
			cfg.Mode = "oneshot"
		}
	}
	if flags.Changed("debug") {
		cfg.Debug = opts.debug
	}
	if flags.Changed("color") {
		cfg.Color = opts.color
	}
	if flags.Changed("backend") {
		cfg.Follow.Backend = opts.backend
	}
	if flags.Changed("poll") {
		cfg.Follow.Poll = opts.poll
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Enabled = opts.metricsAddr != ""
		cfg.Metrics.Address = opts.metricsAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, stdout io.Writer) error {
	logger := logging.New(cfg.LoggerConfig())
	logging.SetGlobal(logger)

	logger.Debug().Str("version", version).Msg("Starting logwatch")

	// Patterns are compiled before any source is opened
	f, err := filter.New(cfg.FilterOptions())
	if err != nil {
		return err
	}
	rules, err := highlight.BuildRules(cfg.Highlight.Rules)
	if err != nil {
		return err
	}

	renderer, styler := newRenderer(cfg.Color, stdout)
	collector := metrics.NewCollector()
	processor := pipeline.NewProcessor(f, highlight.New(rules, styler), collector)

	if cfg.Debug {
		summary := debug.Summary{
			Sources: cfg.Sources,
			Include: f.Include(),
			Exclude: f.Exclude(),
			Mode:    cfg.RunMode(),
		}
		if err := debug.Print(stdout, renderer, summary); err != nil {
			return err
		}
	}

	sm := shutdown.New(shutdown.Config{Logger: logger})
	ctx, cancel := sm.Listen(ctx)
	defer cancel()

	controller := pipeline.NewController(pipeline.Options{
		Mode:       cfg.RunMode(),
		Sources:    cfg.Sources,
		Factory:    source.NewFactory(cfg.FollowOptions(), logger, collector),
		BufferSize: cfg.Follow.BufferSize,
		OnReady: func() {
			notifySystemd(logger, daemon.SdNotifyReady)
		},
	}, processor, stdout, logger, collector)

	if cfg.Metrics.Enabled {
		checker := health.NewChecker(0)
		checker.Register("sources", health.SourceCheck(controller.Sources))

		srv := server.New(server.Config{
			Address:         cfg.Metrics.Address,
			MetricsPath:     cfg.Metrics.Path,
			HealthPath:      cfg.Metrics.HealthPath,
			MetricsRegistry: collector.Registry(),
			HealthChecker:   checker,
			Logger:          logger,
		})
		if err := srv.Start(); err != nil {
			return err
		}
		sm.RegisterFunc("metrics-server", srv.Stop)
	}

	sm.RegisterFunc("systemd", func(context.Context) error {
		notifySystemd(logger, daemon.SdNotifyStopping)
		return nil
	})

	runErr := controller.Run(ctx)
	if err := sm.Shutdown(); err != nil {
		logger.Warn().Err(err).Msg("Shutdown incomplete")
	}
	return runErr
}

// notifySystemd sends state to the service manager; outside systemd it does
// nothing
func notifySystemd(logger *logging.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to notify systemd")
		return
	}
	if sent {
		logger.Debug().Str("state", state).Msg("Notified systemd")
	}
}

// newRenderer picks the lipgloss renderer and highlight styler for the
// color mode
func newRenderer(mode string, out io.Writer) (*lipgloss.Renderer, highlight.Styler) {
	r := lipgloss.NewRenderer(out)

	if !colorEnabled(mode, out) {
		r.SetColorProfile(termenv.Ascii)
		return r, highlight.PlainStyler{}
	}

	if r.ColorProfile() == termenv.Ascii {
		if mode != "always" {
			return r, highlight.PlainStyler{}
		}
		r.SetColorProfile(termenv.ANSI)
	}
	return r, highlight.NewTermStyler(r.ColorProfile())
}

// colorEnabled resolves "auto" to whether out is a terminal
func colorEnabled(mode string, out io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}

	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
