package llm

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds provider connection and retry parameters.
type Config struct {
	BaseURL         string  `toml:"base_url"`
	APIKey          string  `toml:"api_key"`
	Model           string  `toml:"model"`
	SecondaryModel  string  `toml:"secondary_model"`
	Temperature     float64 `toml:"temperature"`
	MaxTokens       int     `toml:"max_tokens"`
	Timeout         string  `toml:"timeout"`
	MaxAttempts     int     `toml:"max_attempts"`
	RetryDelay      string  `toml:"retry_delay"`
	MaxRetryDelay   string  `toml:"max_retry_delay"`
	RetryMultiplier float64 `toml:"retry_multiplier"`
}

// Env names the environment variables that may override each field.
type Env struct {
	BaseURL        string
	APIKey         string
	Model          string
	SecondaryModel string
	MaxTokens      string
	Timeout        string
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// RetryDelayDuration returns RetryDelay as a time.Duration.
func (c *Config) RetryDelayDuration() time.Duration {
	d, _ := time.ParseDuration(c.RetryDelay)
	return d
}

// MaxRetryDelayDuration returns MaxRetryDelay as a time.Duration.
func (c *Config) MaxRetryDelayDuration() time.Duration {
	d, _ := time.ParseDuration(c.MaxRetryDelay)
	return d
}

// Verifier returns the model used for the secondary classification pass,
// falling back to the primary model.
func (c *Config) Verifier() string {
	if c.SecondaryModel != "" {
		return c.SecondaryModel
	}
	return c.Model
}

// Finalize applies defaults, then environment overrides, then validates.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overlays non-zero fields from an environment-specific config file.
func (c *Config) Merge(overlay *Config) {
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.APIKey != "" {
		c.APIKey = overlay.APIKey
	}
	if overlay.Model != "" {
		c.Model = overlay.Model
	}
	if overlay.SecondaryModel != "" {
		c.SecondaryModel = overlay.SecondaryModel
	}
	if overlay.Temperature != 0 {
		c.Temperature = overlay.Temperature
	}
	if overlay.MaxTokens != 0 {
		c.MaxTokens = overlay.MaxTokens
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
	if overlay.MaxAttempts != 0 {
		c.MaxAttempts = overlay.MaxAttempts
	}
	if overlay.RetryDelay != "" {
		c.RetryDelay = overlay.RetryDelay
	}
	if overlay.MaxRetryDelay != "" {
		c.MaxRetryDelay = overlay.MaxRetryDelay
	}
	if overlay.RetryMultiplier != 0 {
		c.RetryMultiplier = overlay.RetryMultiplier
	}
}

func (c *Config) loadDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.anthropic.com"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.3
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.Timeout == "" {
		c.Timeout = "120s"
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.RetryDelay == "" {
		c.RetryDelay = "1s"
	}
	if c.MaxRetryDelay == "" {
		c.MaxRetryDelay = "30s"
	}
	if c.RetryMultiplier == 0 {
		c.RetryMultiplier = 2.0
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.BaseURL != "" {
		if v := os.Getenv(env.BaseURL); v != "" {
			c.BaseURL = v
		}
	}
	if env.APIKey != "" {
		if v := os.Getenv(env.APIKey); v != "" {
			c.APIKey = v
		}
	}
	if env.Model != "" {
		if v := os.Getenv(env.Model); v != "" {
			c.Model = v
		}
	}
	if env.SecondaryModel != "" {
		if v := os.Getenv(env.SecondaryModel); v != "" {
			c.SecondaryModel = v
		}
	}
	if env.MaxTokens != "" {
		if v := os.Getenv(env.MaxTokens); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.MaxTokens = n
			}
		}
	}
	if env.Timeout != "" {
		if v := os.Getenv(env.Timeout); v != "" {
			c.Timeout = v
		}
	}
}

func (c *Config) validate() error {
	if c.Model == "" {
		return fmt.Errorf("model required")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be positive")
	}
	for field, value := range map[string]string{
		"timeout":         c.Timeout,
		"retry_delay":     c.RetryDelay,
		"max_retry_delay": c.MaxRetryDelay,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", field, err)
		}
	}
	return nil
}
