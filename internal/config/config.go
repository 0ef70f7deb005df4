package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"iac-crawler/internal/redact"
)

const (
	ConfigFileName = ".iac-crawler"
	ConfigFileType = "yaml"
)

// Config holds the resolved configuration for one crawler run.
type Config struct {
	// Set from command-line arguments, not the config file.
	RepositoryPath string
	Paths          []string
	Verbose        bool

	RepositoryURL      string `mapstructure:"repository_url"`
	Platform           string `mapstructure:"platform"`
	Endpoint           string `mapstructure:"endpoint"`
	APIKey             string `mapstructure:"api_key"`
	BatchSize          int    `mapstructure:"batch_size"`
	MaxRetries         int    `mapstructure:"max_retries"`
	TimeoutSeconds     int    `mapstructure:"timeout_seconds"`
	ShowTimeoutSeconds int    `mapstructure:"show_timeout_seconds"`
	SensitiveFields    string `mapstructure:"sensitive_fields"`
	DryRun             bool   `mapstructure:"dry_run"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:          1000,
		MaxRetries:         3,
		TimeoutSeconds:     30,
		ShowTimeoutSeconds: 300,
	}
}

// RequestTimeout is the per-delivery-request timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ShowTimeout bounds each terraform subprocess invocation.
func (c *Config) ShowTimeout() time.Duration {
	return time.Duration(c.ShowTimeoutSeconds) * time.Second
}

// SensitivePatterns returns the operator-supplied sensitive field patterns,
// split from the comma-separated SENSITIVE_FIELDS form.
func (c *Config) SensitivePatterns() []string {
	var patterns []string
	for _, p := range strings.Split(c.SensitiveFields, ",") {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	return patterns
}

// Validate rejects configurations that could not produce a correct scan.
// It runs before any subprocess or network activity.
func (c *Config) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1, got %d", c.BatchSize)
	}
	if c.TimeoutSeconds < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", c.TimeoutSeconds)
	}
	return redact.NewClassifier(c.SensitivePatterns()).Validate()
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType(ConfigFileType)
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME")

	// Environment names kept from the original deployment surface.
	_ = v.BindEnv("api_key", "CXM_API_KEY")
	_ = v.BindEnv("endpoint", "CXM_API_ENDPOINT")
	_ = v.BindEnv("max_retries", "CXM_MAX_RETRIES")
	_ = v.BindEnv("timeout_seconds", "CXM_TIMEOUT_SECONDS")
	_ = v.BindEnv("show_timeout_seconds", "TERRAFORM_SHOW_TIMEOUT")
	_ = v.BindEnv("sensitive_fields", "SENSITIVE_FIELDS")

	defaults := DefaultConfig()
	v.SetDefault("batch_size", defaults.BatchSize)
	v.SetDefault("max_retries", defaults.MaxRetries)
	v.SetDefault("timeout_seconds", defaults.TimeoutSeconds)
	v.SetDefault("show_timeout_seconds", defaults.ShowTimeoutSeconds)

	return v
}

// Load reads the configuration from environment variables and the
// .iac-crawler.yaml file, searching the current directory and $HOME.
func Load() (*Config, error) {
	v := newViper()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	return &cfg, nil
}

// LoadAndMerge loads configuration and merges it with CLI flags.
// Priority: flags > environment > config file > defaults.
func LoadAndMerge(cmd *cobra.Command, args []string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if len(args) > 0 {
		abs, err := filepath.Abs(args[0])
		if err != nil {
			return nil, fmt.Errorf("failed to resolve repository path: %w", err)
		}
		cfg.RepositoryPath = abs
	}

	if cmd.Flags().Changed("repository-url") {
		cfg.RepositoryURL, _ = cmd.Flags().GetString("repository-url")
	}
	if cmd.Flags().Changed("platform") {
		cfg.Platform, _ = cmd.Flags().GetString("platform")
	}
	if cmd.Flags().Changed("path") {
		cfg.Paths, _ = cmd.Flags().GetStringArray("path")
	}
	if cmd.Flags().Changed("batch-size") {
		cfg.BatchSize, _ = cmd.Flags().GetInt("batch-size")
	}
	if cmd.Flags().Changed("max-retries") {
		cfg.MaxRetries, _ = cmd.Flags().GetInt("max-retries")
	}
	if cmd.Flags().Changed("dry-run") {
		cfg.DryRun, _ = cmd.Flags().GetBool("dry-run")
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose, _ = cmd.Flags().GetBool("verbose")
	}

	return cfg, nil
}

// Save writes the configuration to an .iac-crawler.yaml file. The file may
// contain the API key, so it is written with owner-only permissions.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = fmt.Sprintf("%s.%s", ConfigFileName, ConfigFileType)
	}

	v := viper.New()
	v.Set("endpoint", cfg.Endpoint)
	v.Set("api_key", cfg.APIKey)
	v.Set("batch_size", cfg.BatchSize)
	v.Set("max_retries", cfg.MaxRetries)
	v.Set("timeout_seconds", cfg.TimeoutSeconds)
	v.Set("sensitive_fields", cfg.SensitiveFields)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to set secure permissions on config file: %w", err)
	}
	return nil
}

// Exists checks if a config file exists in the current directory.
func Exists() bool {
	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType(ConfigFileType)
	v.AddConfigPath(".")
	return v.ReadInConfig() == nil
}
