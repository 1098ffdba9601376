package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/wardenhq/warden/pkg/database"
	"github.com/wardenhq/warden/pkg/llm"
	"github.com/wardenhq/warden/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvWardenEnv             = "WARDEN_ENV"
	EnvWardenShutdownTimeout = "WARDEN_SHUTDOWN_TIMEOUT"
	EnvWardenVersion         = "WARDEN_VERSION"
	EnvWardenRulesPath       = "WARDEN_RULES_PATH"
)

var databaseEnv = &database.Env{
	Host:            "WARDEN_DB_HOST",
	Port:            "WARDEN_DB_PORT",
	Name:            "WARDEN_DB_NAME",
	User:            "WARDEN_DB_USER",
	Password:        "WARDEN_DB_PASSWORD",
	SSLMode:         "WARDEN_DB_SSL_MODE",
	MaxOpenConns:    "WARDEN_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "WARDEN_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "WARDEN_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "WARDEN_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "WARDEN_STORAGE_CONTAINER_NAME",
	ConnectionString: "WARDEN_STORAGE_CONNECTION_STRING",
}

var llmEnv = &llm.Env{
	BaseURL:        "WARDEN_LLM_BASE_URL",
	APIKey:         "WARDEN_LLM_API_KEY",
	Model:          "WARDEN_LLM_MODEL",
	SecondaryModel: "WARDEN_LLM_SECONDARY_MODEL",
	MaxTokens:      "WARDEN_LLM_MAX_TOKENS",
	Timeout:        "WARDEN_LLM_TIMEOUT",
}

// Config is the root configuration for the Warden service.
type Config struct {
	Server          ServerConfig    `toml:"server"`
	Database        database.Config `toml:"database"`
	Storage         storage.Config  `toml:"storage"`
	LLM             llm.Config      `toml:"llm"`
	API             APIConfig       `toml:"api"`
	RulesPath       string          `toml:"rules_path"`
	ShutdownTimeout string          `toml:"shutdown_timeout"`
	Version         string          `toml:"version"`
}

// Env returns the WARDEN_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvWardenEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.RulesPath != "" {
		c.RulesPath = overlay.RulesPath
	}
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.LLM.Merge(&overlay.LLM)
	c.API.Merge(&overlay.API)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.LLM.Finalize(llmEnv); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvWardenShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvWardenVersion); v != "" {
		c.Version = v
	}
	if v := os.Getenv(EnvWardenRulesPath); v != "" {
		c.RulesPath = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvWardenEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
