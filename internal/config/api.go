package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/wardenhq/warden/pkg/formatting"
	"github.com/wardenhq/warden/pkg/middleware"
	"github.com/wardenhq/warden/pkg/pagination"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "WARDEN_CORS_ENABLED",
	Origins:          "WARDEN_CORS_ORIGINS",
	AllowedMethods:   "WARDEN_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "WARDEN_CORS_ALLOWED_HEADERS",
	AllowCredentials: "WARDEN_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "WARDEN_CORS_MAX_AGE",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "WARDEN_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "WARDEN_PAGINATION_MAX_PAGE_SIZE",
}

// APIConfig holds API routing, CORS, pagination, and batch settings.
type APIConfig struct {
	BasePath      string                `toml:"base_path"`
	MaxUploadSize string                `toml:"max_upload_size"`
	BatchWorkers  int                   `toml:"batch_workers"`
	CORS          middleware.CORSConfig `toml:"cors"`
	Pagination    pagination.Config     `toml:"pagination"`
}

func (c *APIConfig) MaxUploadSizeBytes() int64 {
	size, err := formatting.ParseBytes(c.MaxUploadSize)
	if err != nil {
		return 50 * 1024 * 1024 // 50MB fallback
	}
	return size
}

// Finalize applies defaults, environment variable overrides, and validation
// for the API config and its nested CORS and pagination configs.
func (c *APIConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if c.BatchWorkers < 1 {
		return fmt.Errorf("batch_workers must be positive")
	}
	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.MaxUploadSize != "" {
		c.MaxUploadSize = overlay.MaxUploadSize
	}
	if overlay.BatchWorkers != 0 {
		c.BatchWorkers = overlay.BatchWorkers
	}

	c.CORS.Merge(&overlay.CORS)
	c.Pagination.Merge(&overlay.Pagination)
}

func (c *APIConfig) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxUploadSize == "" {
		c.MaxUploadSize = "50MB"
	}
	if c.BatchWorkers == 0 {
		c.BatchWorkers = 3
	}
}

func (c *APIConfig) loadEnv() {
	if v := os.Getenv("WARDEN_API_BASE_PATH"); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv("WARDEN_API_MAX_UPLOAD_SIZE"); v != "" {
		c.MaxUploadSize = v
	}
	if v := os.Getenv("WARDEN_API_BATCH_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.BatchWorkers = n
		}
	}
}
