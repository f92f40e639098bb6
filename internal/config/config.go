// ABOUTME: Configuration loading and parsing for ssh-blog
// ABOUTME: YAML or TOML files with ${VAR} expansion, SSHBLOG_* overrides, and duration parsing

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "SSHBLOG_"

// DefaultDatabasePath is where the database lives when nothing else is configured.
const DefaultDatabasePath = "/var/lib/ssh-blog/blog.db"

// Registration policies.
const (
	RegistrationAuto   = "auto"   // prompt on a terminal, deny otherwise
	RegistrationPrompt = "prompt" // always prompt
	RegistrationAllow  = "allow"  // register without asking
	RegistrationDeny   = "deny"   // never offer registration
)

// Config represents the complete ssh-blog configuration
type Config struct {
	Database DatabaseConfig `yaml:"database" toml:"database"`
	Auth     AuthConfig     `yaml:"auth" toml:"auth"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	// Driver is "sqlite" (pure Go) or "sqlite3" (cgo)
	Driver string `yaml:"driver" toml:"driver" env:"DATABASE_DRIVER, overwrite"`
	Path   string `yaml:"path" toml:"path" env:"DATABASE_PATH, overwrite"`
}

// AuthConfig holds session authentication policy
type AuthConfig struct {
	TrustRemoteSession bool   `yaml:"trust_remote_session" toml:"trust_remote_session" env:"AUTH_TRUST_REMOTE_SESSION, overwrite"`
	UsernameFallback   bool   `yaml:"username_fallback" toml:"username_fallback" env:"AUTH_USERNAME_FALLBACK, overwrite"`
	Registration       string `yaml:"registration" toml:"registration" env:"AUTH_REGISTRATION, overwrite"`
	DevMode            bool   `yaml:"dev_mode" toml:"dev_mode" env:"AUTH_DEV_MODE, overwrite"`

	CommandTimeout time.Duration `yaml:"-" toml:"-"`

	// Raw string value for file unmarshaling
	CommandTimeoutRaw string `yaml:"command_timeout" toml:"command_timeout" env:"AUTH_COMMAND_TIMEOUT, overwrite"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" env:"LOG_LEVEL, overwrite"`
	Format string `yaml:"format" toml:"format" env:"LOG_FORMAT, overwrite"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   DefaultDatabasePath,
		},
		Auth: AuthConfig{
			TrustRemoteSession: true,
			UsernameFallback:   true,
			Registration:       RegistrationAuto,
			CommandTimeout:     5 * time.Second,
			CommandTimeoutRaw:  "5s",
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, anything else as YAML. Values
// missing from the file keep their defaults. Environment variables in the
// format ${VAR_NAME} are expanded, then SSHBLOG_* overrides are applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expandedData, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.finish(envconfig.OsLookuper()); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads path when it exists and falls back to Default otherwise.
// Environment overrides apply either way.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	cfg := Default()
	if err := cfg.finish(envconfig.OsLookuper()); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finish applies environment overrides, parses durations and validates.
func (c *Config) finish(lookuper envconfig.Lookuper) error {
	if err := c.applyEnv(lookuper); err != nil {
		return fmt.Errorf("applying environment: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(c); err != nil {
		return fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(lookuper envconfig.Lookuper) error {
	return envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   c,
		Lookuper: envconfig.PrefixLookuper(EnvPrefix, lookuper),
	})
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("database.driver must be sqlite or sqlite3, got %q", c.Database.Driver)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Auth.Registration {
	case RegistrationAuto, RegistrationPrompt, RegistrationAllow, RegistrationDeny:
	default:
		return fmt.Errorf("auth.registration must be one of auto, prompt, allow, deny; got %q", c.Auth.Registration)
	}

	if c.Auth.CommandTimeout <= 0 {
		return fmt.Errorf("auth.command_timeout must be positive")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.Auth.CommandTimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.Auth.CommandTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing command_timeout %q: %w", cfg.Auth.CommandTimeoutRaw, err)
		}
		cfg.Auth.CommandTimeout = d
	}
	return nil
}

// Path returns the configuration file location: SSHBLOG_CONFIG, then
// $XDG_CONFIG_HOME/ssh-blog/config.yaml, then ~/.config/ssh-blog/config.yaml.
func Path() string {
	if p := os.Getenv(EnvPrefix + "CONFIG"); p != "" {
		return p
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ssh-blog", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "ssh-blog", "config.yaml")
}
