package config

import (
	"fmt"
	"os"

	"github.com/0xmhha/nft-tracker/internal/constants"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the nft-tracker launcher. The core
// library (package tracker) takes a tracker.Config built from this by the
// caller; loading from YAML/env is a collaborator concern (spec.md §6).
type Config struct {
	Chain   ChainConfig    `yaml:"chain"`
	RPC     RPCConfig      `yaml:"rpc"`
	DataDir string         `yaml:"data_dir"`
	Erc721  StandardConfig `yaml:"erc721"`
	Erc1155 StandardConfig `yaml:"erc1155"`
	Log     LogConfig      `yaml:"log"`
	Health  HealthConfig   `yaml:"health"`
}

// ChainConfig identifies the chain being tracked, for logging and
// metrics labels only.
type ChainConfig struct {
	Name string `yaml:"name"`
}

// RPCConfig holds JSON-RPC client configuration.
type RPCConfig struct {
	Endpoint  string  `yaml:"endpoint"`
	Timeout   string  `yaml:"timeout"`
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

// StandardConfig holds the scan-window parameters for one token standard.
// EndBlock is a pointer so an absent value means "scan forever".
type StandardConfig struct {
	StartFrom uint64  `yaml:"start_from"`
	Step      uint64  `yaml:"step"`
	EndBlock  *uint64 `yaml:"end_block,omitempty"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// HealthConfig holds the optional health/metrics HTTP server configuration.
type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills in zero-valued fields with sensible defaults.
func (c *Config) SetDefaults() {
	if c.RPC.Timeout == "" {
		c.RPC.Timeout = constants.DefaultRPCTimeout.String()
	}
	if c.RPC.RateLimit == 0 {
		c.RPC.RateLimit = float64(constants.DefaultRPCRateLimit)
	}
	if c.RPC.RateBurst == 0 {
		c.RPC.RateBurst = constants.DefaultRPCRateBurst
	}
	if c.Erc721.Step == 0 {
		c.Erc721.Step = 1000
	}
	if c.Erc1155.Step == 0 {
		c.Erc1155.Step = 1000
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Health.Host == "" {
		c.Health.Host = constants.DefaultHealthHost
	}
	if c.Health.Port == 0 {
		c.Health.Port = constants.DefaultHealthPort
	}
}

// LoadFromFile loads configuration from a YAML file, leaving any field
// absent from the file unchanged.
func (c *Config) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// Validate checks that the configuration is complete enough to start
// tracking.
func (c *Config) Validate() error {
	if c.Chain.Name == "" {
		return fmt.Errorf("chain name is required")
	}
	if c.RPC.Endpoint == "" {
		return fmt.Errorf("RPC endpoint is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", c.Log.Level)
	}

	validLogFormats := map[string]bool{"json": true, "console": true}
	if !validLogFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format %q, must be one of: json, console", c.Log.Format)
	}

	if c.Erc721.Step == 0 && c.Erc1155.Step == 0 {
		return fmt.Errorf("at least one of erc721.step or erc1155.step must be non-zero")
	}

	return nil
}

// Load reads and validates configuration from a YAML file, applying
// defaults for anything the file leaves unset.
func Load(configFile string) (*Config, error) {
	cfg := &Config{}
	if err := cfg.LoadFromFile(configFile); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
