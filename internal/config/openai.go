package config

import (
	"fmt"
	"os"
	"time"
)

const (
	EnvOpenAIBaseURL      = "PATHWAYS_OPENAI_BASE_URL"
	EnvOpenAIToken        = "PATHWAYS_OPENAI_TOKEN"
	EnvOpenAIOrganization = "PATHWAYS_OPENAI_ORGANIZATION"
	EnvOpenAITimeout      = "PATHWAYS_OPENAI_TIMEOUT"

	// EnvOpenAIAPIKey is the variable the OpenAI SDKs read by convention.
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
)

// OpenAIConfig holds the connection settings shared by the transcription and
// generation clients.
type OpenAIConfig struct {
	BaseURL      string `toml:"base_url"`
	Token        string `toml:"token"`
	Organization string `toml:"organization"`
	Timeout      string `toml:"timeout"`
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *OpenAIConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *OpenAIConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *OpenAIConfig) Merge(overlay *OpenAIConfig) {
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.Token != "" {
		c.Token = overlay.Token
	}
	if overlay.Organization != "" {
		c.Organization = overlay.Organization
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
}

func (c *OpenAIConfig) loadDefaults() {
	if c.Timeout == "" {
		c.Timeout = "5m"
	}
}

func (c *OpenAIConfig) loadEnv() {
	if c.Token == "" {
		c.Token = os.Getenv(EnvOpenAIAPIKey)
	}
	if v := os.Getenv(EnvOpenAIToken); v != "" {
		c.Token = v
	}
	if v := os.Getenv(EnvOpenAIBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv(EnvOpenAIOrganization); v != "" {
		c.Organization = v
	}
	if v := os.Getenv(EnvOpenAITimeout); v != "" {
		c.Timeout = v
	}
}

func (c *OpenAIConfig) validate() error {
	if c.Token == "" {
		return fmt.Errorf("token required (set %s or %s)", EnvOpenAIToken, EnvOpenAIAPIKey)
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	return nil
}
