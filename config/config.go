// Package config loads provider settings from YAML, the environment, and .env files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/haowjy/meridian-claude-go"
)

const (
	modeDirect  = "direct"
	modeBedrock = "bedrock"
)

// Environment variables that override file values.
const (
	EnvAPIKey       = "ANTHROPIC_API_KEY"
	EnvProfile      = "AWS_PROFILE"
	EnvRegion       = "AWS_REGION"
	EnvProviderMode = "MERIDIAN_PROVIDER_MODE"
)

// Config represents the adapter configuration parsed from YAML.
type Config struct {
	Provider         ProviderConfig            `yaml:"provider"`
	Cache            llmprovider.CacheBehavior `yaml:"cache"`
	Defaults         DefaultsConfig            `yaml:"defaults"`
	CapabilitiesFile string                    `yaml:"capabilities_file"`
}

// ProviderConfig selects the transport and its credentials.
type ProviderConfig struct {
	Mode       string `yaml:"mode"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Profile    string `yaml:"profile"`
	Region     string `yaml:"region"`
	MaxRetries int    `yaml:"max_retries"`
}

// DefaultsConfig holds completion options applied when a caller leaves them unset.
type DefaultsConfig struct {
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// Load reads YAML configuration from disk, applies environment overrides,
// and validates the result. ${VAR} references in the file are expanded.
func Load(path string) (Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
	}

	// Relative capability files are resolved against the config file
	if cfg.CapabilitiesFile != "" && !filepath.IsAbs(cfg.CapabilitiesFile) {
		cfg.CapabilitiesFile = filepath.Join(filepath.Dir(absPath), cfg.CapabilitiesFile)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML configuration and applies environment overrides.
// It does not validate.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return Config{}, err
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// FromEnv builds a configuration from environment variables alone.
func FromEnv() (Config, error) {
	cfg := Config{}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides file values with non-empty environment variables and
// fills in the default mode.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvProviderMode); v != "" {
		c.Provider.Mode = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.Provider.APIKey = v
	}
	if v := os.Getenv(EnvProfile); v != "" {
		c.Provider.Profile = v
	}
	if v := os.Getenv(EnvRegion); v != "" {
		c.Provider.Region = v
	}

	c.Provider.Mode = strings.ToLower(strings.TrimSpace(c.Provider.Mode))
	if c.Provider.Mode == "" {
		c.Provider.Mode = modeDirect
	}
}

// Validate performs strict sanity checks on the configuration.
func (c Config) Validate() error {
	switch c.Provider.Mode {
	case modeDirect:
		if strings.TrimSpace(c.Provider.APIKey) == "" {
			return fmt.Errorf("provider: api_key must be provided in %s mode (or set %s)", modeDirect, EnvAPIKey)
		}
	case modeBedrock:
		if strings.TrimSpace(c.Provider.Region) == "" {
			return fmt.Errorf("provider: region must be provided in %s mode (or set %s)", modeBedrock, EnvRegion)
		}
	default:
		return fmt.Errorf("provider: mode %q must be one of %q or %q", c.Provider.Mode, modeDirect, modeBedrock)
	}

	if c.Provider.MaxRetries < 0 {
		return fmt.Errorf("provider: max_retries must not be negative, got %d", c.Provider.MaxRetries)
	}

	if c.Defaults.MaxTokens < 0 {
		return fmt.Errorf("defaults: max_tokens must not be negative, got %d", c.Defaults.MaxTokens)
	}

	if c.CapabilitiesFile != "" {
		if _, err := os.Stat(c.CapabilitiesFile); err != nil {
			return fmt.Errorf("capabilities_file: %w", err)
		}
	}

	return nil
}

// IsBedrock reports whether requests go through Amazon Bedrock.
func (c Config) IsBedrock() bool {
	return c.Provider.Mode == modeBedrock
}

// ApplyDefaults fills unset completion options from Defaults.
func (c Config) ApplyDefaults(opts llmprovider.CompletionOptions) llmprovider.CompletionOptions {
	if opts.Model == "" {
		opts.Model = c.Defaults.Model
	}
	if opts.MaxTokens == nil && c.Defaults.MaxTokens > 0 {
		opts.MaxTokens = llmprovider.Ptr(c.Defaults.MaxTokens)
	}
	return opts
}

// LoadDotEnv searches for a .env file starting from the current directory
// and walking up the directory tree. It loads the first .env file found and
// returns its path, or "" if there is none. Variables already set in the
// environment are not overwritten.
func LoadDotEnv() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				return "", fmt.Errorf("load %s: %w", envPath, err)
			}
			return envPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}
