package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
)

const (
	// ProjectConfigFile is the name of the project-level config file
	ProjectConfigFile = "achievemint.yaml"
	// UserConfigDir is the directory for user-level config
	UserConfigDir = ".config/achievemint"
	// UserConfigFile is the name of the user-level config file
	UserConfigFile = "config.yaml"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "ACHIEVEMINT_"
)

// Loader handles configuration loading with layered precedence.
type Loader struct {
	logger *slog.Logger
	getenv func(string) string
	home   func() (string, error)
	wd     func() (string, error)
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithEnv replaces os.Getenv, mainly for tests.
func WithEnv(getenv func(string) string) LoaderOption {
	return func(l *Loader) {
		l.getenv = getenv
	}
}

// WithDirs fixes the home and working directories used for file discovery.
func WithDirs(home, wd string) LoaderOption {
	return func(l *Loader) {
		l.home = func() (string, error) { return home, nil }
		l.wd = func() (string, error) { return wd, nil }
	}
}

// NewLoader creates a new configuration loader.
func NewLoader(logger *slog.Logger, opts ...LoaderOption) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{
		logger: logger,
		getenv: os.Getenv,
		home:   os.UserHomeDir,
		wd:     os.Getwd,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load loads configuration with layered precedence:
//  1. Default config
//  2. User config (~/.config/achievemint/config.yaml)
//  3. Project config (achievemint.yaml in current or parent directories),
//     or explicit when set
//  4. Environment variables (ACHIEVEMINT_*)
//
// A missing explicit file is an error; missing discovered files are not.
func (l *Loader) Load(explicit string) (*Config, error) {
	config := DefaultConfig()

	if path := l.userConfigPath(); path != "" {
		if err := config.apply(path); err == nil {
			l.logger.Debug("loaded user config", slog.String("path", path))
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	if explicit != "" {
		if err := config.apply(explicit); err != nil {
			return nil, err
		}
		l.logger.Debug("loaded config", slog.String("path", explicit))
	} else if path := l.findProjectConfig(); path != "" {
		if err := config.apply(path); err != nil {
			return nil, err
		}
		l.logger.Debug("loaded project config", slog.String("path", path))
	}

	if err := l.applyEnv(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnv overrides config fields from ACHIEVEMINT_* variables.
func (l *Loader) applyEnv(c *Config) error {
	strs := map[string]*string{
		"DB":         &c.Ledger.Path,
		"PROGRAM_ID": &c.Program.ID,
		"KEYPAIR":    &c.Wallet.Keypair,
		"LOG_LEVEL":  &c.Log.Level,
		"LOG_FORMAT": &c.Log.Format,
	}
	for name, dst := range strs {
		if v := l.getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"RESTRICT_MINT": &c.Program.RestrictMint,
		"METRICS":       &c.Metrics.Enabled,
	}
	for name, dst := range bools {
		v := l.getenv(EnvPrefix + name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = b
	}
	return nil
}

// userConfigPath returns the path to the user config file.
func (l *Loader) userConfigPath() string {
	home, err := l.home()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

// findProjectConfig searches for achievemint.yaml in current and parent directories.
func (l *Loader) findProjectConfig() string {
	dir, err := l.wd()
	if err != nil || dir == "" {
		return ""
	}
	for {
		path := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
