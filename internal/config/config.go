// Package config provides configuration loading for achievemint.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/achievemint/internal/address"
	"github.com/roach88/achievemint/internal/program"
)

// Config is the complete achievemint configuration.
type Config struct {
	Ledger  LedgerConfig  `yaml:"ledger"`
	Program ProgramConfig `yaml:"program"`
	Wallet  WalletConfig  `yaml:"wallet"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LedgerConfig configures ledger storage.
type LedgerConfig struct {
	// Path is the SQLite database file.
	Path string `yaml:"path"`
}

// ProgramConfig configures the badge program deployment.
type ProgramConfig struct {
	// ID is the base58 program address (empty = deployed default)
	ID string `yaml:"id"`
	// RestrictMint limits minting to the administrator.
	RestrictMint bool `yaml:"restrict_mint"`
}

// WalletConfig configures signing keys.
type WalletConfig struct {
	// Keypair is the default keypair file for signing commands.
	Keypair string `yaml:"keypair"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
}

// MetricsConfig configures submission metrics.
type MetricsConfig struct {
	// Enabled prints the metrics registry after each command.
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Ledger: LedgerConfig{
			Path: "achievemint.db",
		},
		Program: ProgramConfig{
			ID: program.DefaultProgramID.String(),
		},
		Wallet: WalletConfig{
			Keypair: "",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Ledger.Path == "" {
		return fmt.Errorf("ledger.path is required")
	}
	if _, err := c.ProgramID(); err != nil {
		return err
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// ProgramID parses the configured program address.
func (c *Config) ProgramID() (address.Address, error) {
	if c.Program.ID == "" {
		return program.DefaultProgramID, nil
	}
	id, err := address.Parse(c.Program.ID)
	if err != nil {
		return address.Zero, fmt.Errorf("program.id: %w", err)
	}
	return id, nil
}

// ProgramConfig returns the program settings.
func (c *Config) ProgramConfig() (program.Config, error) {
	id, err := c.ProgramID()
	if err != nil {
		return program.Config{}, err
	}
	return program.Config{ProgramID: id, RestrictMint: c.Program.RestrictMint}, nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log.level must be debug, info, warn or error, got %q", s)
	}
}

// LoadFromFile loads configuration from a YAML file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()
	if err := config.apply(path); err != nil {
		return nil, err
	}
	return config, nil
}

// apply overlays the keys present in a YAML file onto c.
func (c *Config) apply(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
