// Package config loads moe's tool configuration: logging, the default
// equivalence database, temp directory placement and command timeouts.
// Project configuration lives in package project.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"moe/internal/paths"
)

// Config represents the moe tool configuration.
type Config struct {
	Logging  LoggingConfig  `json:"logging" mapstructure:"logging"`
	Database DatabaseConfig `json:"database" mapstructure:"database"`
	Temp     TempConfig     `json:"temp" mapstructure:"temp"`
	Commands CommandsConfig `json:"commands" mapstructure:"commands"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DatabaseConfig names the equivalence database used when neither the
// project nor the command line does.
type DatabaseConfig struct {
	URI string `json:"uri" mapstructure:"uri"`
}

// TempConfig controls where codebases are materialized.
type TempConfig struct {
	Root string `json:"root" mapstructure:"root"`
}

// CommandsConfig bounds external VCS and editor commands.
type CommandsConfig struct {
	TimeoutSeconds int `json:"timeoutSeconds" mapstructure:"timeoutSeconds"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Format: "human",
			Level:  "warn",
		},
		Commands: CommandsConfig{
			TimeoutSeconds: 300,
		},
	}
}

// CommandTimeout returns the configured timeout for external commands.
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.Commands.TimeoutSeconds) * time.Second
}

// LoadConfig loads config.{json,yaml,toml} from dir, falling back to the
// defaults when no file exists. MOE_* environment variables override file
// values, e.g. MOE_DATABASE_URI or MOE_LOGGING_LEVEL.
func LoadConfig(dir string) (*Config, error) {
	v := viper.New()

	def := DefaultConfig()
	v.SetDefault("logging.format", def.Logging.Format)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("database.uri", def.Database.URI)
	v.SetDefault("temp.root", def.Temp.Root)
	v.SetDefault("commands.timeoutSeconds", def.Commands.TimeoutSeconds)

	v.SetEnvPrefix("MOE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.AddConfigPath(dir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.Database.URI = paths.ExpandHome(cfg.Database.URI)
	cfg.Temp.Root = paths.ExpandHome(cfg.Temp.Root)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load loads the configuration from the moe home directory.
func Load() (*Config, error) {
	home, err := paths.GetMoeHome()
	if err != nil {
		return nil, err
	}
	return LoadConfig(home)
}

// Save writes the configuration to dir/config.json
func (c *Config) Save(dir string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0o644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch strings.ToLower(c.Logging.Format) {
	case "human", "json":
	default:
		return &ConfigError{Field: "logging.format", Message: "must be human or json"}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return &ConfigError{Field: "logging.level", Message: "must be debug, info, warn or error"}
	}
	if c.Commands.TimeoutSeconds <= 0 {
		return &ConfigError{Field: "commands.timeoutSeconds", Message: "must be positive"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
