package config

import (
	"fmt"
	"os"

	"github.com/JaimeStill/pathways/pkg/formatting"
	"github.com/JaimeStill/pathways/pkg/middleware"
	"github.com/JaimeStill/pathways/pkg/openapi"
)

const (
	EnvAPIBasePath      = "PATHWAYS_API_BASE_PATH"
	EnvAPIMaxUploadSize = "PATHWAYS_API_MAX_UPLOAD_SIZE"
)

var openAPIEnv = &openapi.ConfigEnv{
	Title:       "PATHWAYS_OPENAPI_TITLE",
	Description: "PATHWAYS_OPENAPI_DESCRIPTION",
}

var corsEnv = &middleware.CORSEnv{
	Enabled:          "PATHWAYS_CORS_ENABLED",
	Origins:          "PATHWAYS_CORS_ORIGINS",
	AllowedMethods:   "PATHWAYS_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "PATHWAYS_CORS_ALLOWED_HEADERS",
	AllowCredentials: "PATHWAYS_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "PATHWAYS_CORS_MAX_AGE",
}

// APIConfig holds API routing, upload, CORS and OpenAPI settings.
type APIConfig struct {
	BasePath      string                `toml:"base_path"`
	MaxUploadSize string                `toml:"max_upload_size"`
	CORS          middleware.CORSConfig `toml:"cors"`
	OpenAPI       openapi.Config        `toml:"openapi"`
}

// MaxUploadSizeBytes returns MaxUploadSize in bytes.
func (c *APIConfig) MaxUploadSizeBytes() int64 {
	size, err := formatting.ParseBytes(c.MaxUploadSize)
	if err != nil {
		return 25 * 1024 * 1024
	}
	return size
}

// Finalize applies defaults, environment variable overrides, and validation
// for the API config and its nested CORS and OpenAPI configs.
func (c *APIConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.OpenAPI.Finalize(openAPIEnv); err != nil {
		return fmt.Errorf("openapi: %w", err)
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
	c.OpenAPI.Merge(&overlay.OpenAPI)
}

func (c *APIConfig) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	// matches the speech model's upload limit
	if c.MaxUploadSize == "" {
		c.MaxUploadSize = "25MB"
	}
}

func (c *APIConfig) loadEnv() {
	if v := os.Getenv(EnvAPIBasePath); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv(EnvAPIMaxUploadSize); v != "" {
		c.MaxUploadSize = v
	}
}

func (c *APIConfig) validate() error {
	if _, err := formatting.ParseBytes(c.MaxUploadSize); err != nil {
		return fmt.Errorf("invalid max_upload_size: %w", err)
	}
	return nil
}
