package config

import (
	"fmt"
	"os"

	"github.com/JaimeStill/sdgindex/pkg/formatting"
	"github.com/JaimeStill/sdgindex/pkg/middleware"
	"github.com/JaimeStill/sdgindex/pkg/pagination"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "SDG_CORS_ENABLED",
	Origins:          "SDG_CORS_ORIGINS",
	AllowedMethods:   "SDG_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "SDG_CORS_ALLOWED_HEADERS",
	AllowCredentials: "SDG_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "SDG_CORS_MAX_AGE",
}

var authEnv = &middleware.AuthEnv{
	SigningKey: "SDG_AUTH_SIGNING_KEY",
	Issuer:     "SDG_AUTH_ISSUER",
	AdminRole:  "SDG_AUTH_ADMIN_ROLE",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "SDG_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "SDG_PAGINATION_MAX_PAGE_SIZE",
}

// APIConfig holds API routing, CORS, auth, and pagination settings.
type APIConfig struct {
	BasePath      string                `toml:"base_path"`
	MaxUploadSize string                `toml:"max_upload_size"`
	CORS          middleware.CORSConfig `toml:"cors"`
	Auth          middleware.AuthConfig `toml:"auth"`
	Pagination    pagination.Config     `toml:"pagination"`
}

// MaxUploadSizeBytes returns MaxUploadSize in bytes.
func (c *APIConfig) MaxUploadSizeBytes() int64 {
	size, err := formatting.ParseBytes(c.MaxUploadSize)
	if err != nil {
		return 10 * 1024 * 1024
	}
	return size
}

// Finalize applies defaults, environment variable overrides, and validation
// for the API config and its nested CORS, auth, and pagination configs.
func (c *APIConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Auth.Finalize(authEnv); err != nil {
		return fmt.Errorf("auth: %w", err)
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

	c.CORS.Merge(&overlay.CORS)
	c.Auth.Merge(&overlay.Auth)
	c.Pagination.Merge(&overlay.Pagination)
}

func (c *APIConfig) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxUploadSize == "" {
		c.MaxUploadSize = "10MB"
	}
}

func (c *APIConfig) loadEnv() {
	if v := os.Getenv("SDG_API_BASE_PATH"); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv("SDG_API_MAX_UPLOAD_SIZE"); v != "" {
		c.MaxUploadSize = v
	}
}
