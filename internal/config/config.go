// Package config loads QuantaVault settings from a YAML file and QV_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// FileName is the name of the config file inside the vault directory.
const FileName = "config.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "QV_"

// Store drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// ErrConfigInsecure is returned when the config file is readable by other users.
var ErrConfigInsecure = errors.New("config: file has insecure permissions")

// ErrConfigSymlink is returned when the config file is a symlink.
var ErrConfigSymlink = errors.New("config: file is a symlink")

// ErrConfigNotOwnedByUser is returned when the config file is owned by someone else.
var ErrConfigNotOwnedByUser = errors.New("config: file not owned by current user")

// Config is the full application configuration.
type Config struct {
	Vault    VaultConfig    `yaml:"vault" envPrefix:"VAULT_"`
	Store    StoreConfig    `yaml:"store" envPrefix:"STORE_"`
	Server   ServerConfig   `yaml:"server" envPrefix:"SERVER_"`
	Log      LogConfig      `yaml:"log" envPrefix:"LOG_"`
	Security SecurityConfig `yaml:"security" envPrefix:"SECURITY_"`
}

// VaultConfig locates the keyring and journal.
type VaultConfig struct {
	Dir string `yaml:"dir" env:"DIR"`
	// Owner is the account used by the CLI and MCP server.
	Owner string `yaml:"owner" env:"OWNER"`
}

// StoreConfig selects the credential backend.
type StoreConfig struct {
	Driver string `yaml:"driver" env:"DRIVER"`
	// DSN is the Postgres connection string, or the SQLite file path
	// (defaults to vault.db inside the vault directory).
	DSN string `yaml:"dsn" env:"DSN"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// SecurityConfig tunes the security report.
type SecurityConfig struct {
	// TwoFactorScore is the externally measured two-factor coverage (0-100).
	TwoFactorScore int `yaml:"two_factor_score" env:"TWO_FACTOR_SCORE"`
}

// DefaultDir returns ~/.quantavault.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".quantavault"), nil
}

// Default returns the built-in configuration rooted at dir.
func Default(dir string) *Config {
	return &Config{
		Vault: VaultConfig{Dir: dir, Owner: "local"},
		Store: StoreConfig{Driver: DriverSQLite},
		Server: ServerConfig{
			Addr:            "127.0.0.1:8787",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration: defaults, then dir/config.yaml if it
// exists, then environment overrides. The result is validated.
func Load(dir string) (*Config, error) {
	explicit := dir != ""
	if !explicit {
		if v := os.Getenv(EnvPrefix + "VAULT_DIR"); v != "" {
			dir = v
		} else {
			d, err := DefaultDir()
			if err != nil {
				return nil, err
			}
			dir = d
		}
	}

	cfg := Default(dir)
	if err := cfg.loadFile(filepath.Join(dir, FileName)); err != nil {
		return nil, err
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment: %w", err)
	}
	// an explicit directory beats QV_VAULT_DIR
	if explicit {
		cfg.Vault.Dir = dir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile overlays the YAML file at path. A missing file is not an error.
func (c *Config) loadFile(path string) error {
	f, err := openConfigFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer f.Close()

	// fstat on the opened descriptor
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("config: failed to stat file: %w", err)
	}
	if err := checkFileAccess(info); err != nil {
		return err
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("config: failed to read file: %w", err)
	}
	if err := yaml.Unmarshal(content, c); err != nil {
		return fmt.Errorf("config: failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Validate checks the configuration and normalizes enum values.
func (c *Config) Validate() error {
	if c.Vault.Dir == "" {
		return errors.New("config: vault.dir is required")
	}
	if strings.TrimSpace(c.Vault.Owner) == "" {
		return errors.New("config: vault.owner is required")
	}

	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if c.Store.DSN == "" {
			return errors.New("config: store.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("config: invalid store.driver %q (must be %s, %s or %s)",
			c.Store.Driver, DriverSQLite, DriverPostgres, DriverMemory)
	}

	if c.Server.Addr == "" {
		return errors.New("config: server.addr is required")
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		return errors.New("config: server timeouts must not be negative")
	}

	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid log.level %q", c.Log.Level)
	}
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("config: invalid log.format %q (must be text or json)", c.Log.Format)
	}

	if c.Security.TwoFactorScore < 0 || c.Security.TwoFactorScore > 100 {
		return fmt.Errorf("config: security.two_factor_score must be between 0 and 100, got %d", c.Security.TwoFactorScore)
	}
	return nil
}

// SQLitePath returns the SQLite database path for the sqlite driver.
func (c *Config) SQLitePath() string {
	if c.Store.DSN != "" {
		return c.Store.DSN
	}
	return filepath.Join(c.Vault.Dir, "vault.db")
}

// JournalDir returns the directory holding the audit journal.
func (c *Config) JournalDir() string {
	return filepath.Join(c.Vault.Dir, "journal")
}
