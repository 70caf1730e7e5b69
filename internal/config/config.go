// ABOUTME: Configuration loading for gitea-matrix
// ABOUTME: Loads TOML config with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the complete gitea-matrix configuration
type Config struct {
	Matrix   MatrixConfig   `toml:"matrix"`
	Database DatabaseConfig `toml:"database"`
	Webhook  WebhookConfig  `toml:"webhook"`
	Logging  LoggingConfig  `toml:"logging"`
}

// MatrixConfig holds homeserver connection settings
type MatrixConfig struct {
	Homeserver  string `toml:"homeserver"`
	UserID      string `toml:"user_id"`
	AccessToken string `toml:"access_token"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// WebhookConfig holds webhook endpoint settings
type WebhookConfig struct {
	ListenAddr   string `toml:"listen_addr"`
	Path         string `toml:"path"`
	Secret       string `toml:"secret"`
	SendAsNotice bool   `toml:"send_as_notice"`

	ShutdownTimeout time.Duration `toml:"-"`

	// Raw string value for TOML unmarshaling
	ShutdownTimeoutRaw string `toml:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `toml:"level"`
}

// Load reads config from the given path, expanding environment variables
// and parsing duration strings.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables (${VAR} syntax)
	expanded := expandEnvVars(string(data))

	var cfg Config
	if _, err := toml.Decode(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if cfg.Webhook.Path == "" {
		cfg.Webhook.Path = "/webhook"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.Webhook.ShutdownTimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.Webhook.ShutdownTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing shutdown_timeout %q: %w", cfg.Webhook.ShutdownTimeoutRaw, err)
		}
		cfg.Webhook.ShutdownTimeout = d
	}
	return nil
}

// Validate checks that required config fields are present and valid.
func (c *Config) Validate() error {
	if c.Matrix.Homeserver == "" {
		return fmt.Errorf("matrix.homeserver is required")
	}
	u, err := url.Parse(c.Matrix.Homeserver)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("matrix.homeserver is not a valid URL")
	}
	if c.Matrix.UserID == "" {
		return fmt.Errorf("matrix.user_id is required")
	}
	if c.Matrix.AccessToken == "" {
		return fmt.Errorf("matrix.access_token is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Webhook.ListenAddr == "" {
		return fmt.Errorf("webhook.listen_addr is required")
	}
	if c.Webhook.Path != "" && !strings.HasPrefix(c.Webhook.Path, "/") {
		return fmt.Errorf("webhook.path must start with /")
	}
	return nil
}
