// Package cli implements the achievemint command line.
package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/roach88/achievemint/internal/config"
	"github.com/roach88/achievemint/internal/program"
)

// RootOptions holds global flags for all commands and the state resolved
// from them before a command runs.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Database   string
	LogLevel   string
	Metrics    bool

	Config   *config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry

	metrics    *program.Metrics
	loaderOpts []config.LoaderOption
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the achievemint CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand()
}

func newRootCommand(loaderOpts ...config.LoaderOption) *cobra.Command {
	opts := &RootOptions{loaderOpts: loaderOpts}

	cmd := &cobra.Command{
		Use:   "achievemint",
		Short: "achievemint - achievement badges on a ledger",
		Long: `Mint, transfer and burn achievement badges.

Each badge lives at an address derived from its minter and achievement ID.
Records are checked against their derivation on every access.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return opts.dumpMetrics(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.ConfigPath, "config", "", "config file (default: achievemint.yaml in this or a parent directory)")
	flags.StringVar(&opts.Database, "db", "", "path to SQLite ledger (overrides config)")
	flags.StringVar(&opts.LogLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	flags.BoolVar(&opts.Metrics, "metrics", false, "print submission metrics after the command")

	cmd.AddCommand(NewKeygenCommand(opts))
	cmd.AddCommand(NewPubkeyCommand(opts))
	cmd.AddCommand(NewDeriveCommand(opts))
	cmd.AddCommand(NewAirdropCommand(opts))
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewMintCommand(opts))
	cmd.AddCommand(NewTransferCommand(opts))
	cmd.AddCommand(NewBurnCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewBalanceCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))

	return cmd
}

// setup validates global flags, loads configuration and builds the logger.
// Flags override the config file and environment.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	if !isValidFormat(o.Format) {
		return fmt.Errorf("invalid format %q: must be one of %v", o.Format, ValidFormats)
	}

	cfg, err := config.NewLoader(nil, o.loaderOpts...).Load(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Ledger.Path = o.Database
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = o.LogLevel
	}
	if flags.Changed("metrics") {
		cfg.Metrics.Enabled = o.Metrics
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}
	o.Config = cfg

	level, _ := config.ParseLevel(cfg.Log.Level)
	if o.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(cmd.ErrOrStderr(), handlerOpts)
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(cmd.ErrOrStderr(), handlerOpts)
	}
	o.Logger = slog.New(handler)

	if cfg.Metrics.Enabled {
		o.Registry = prometheus.NewRegistry()
		o.metrics = program.NewMetrics(o.Registry)
	}
	return nil
}

// dumpMetrics writes the registry in the text exposition format.
func (o *RootOptions) dumpMetrics(cmd *cobra.Command) error {
	if o.Registry == nil {
		return nil
	}
	families, err := o.Registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(cmd.ErrOrStderr(), mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
