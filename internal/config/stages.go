package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Stage providers.
const (
	ProviderLocal  = "local"
	ProviderRemote = "remote"
)

const (
	EnvStagesProvider      = "PATHWAYS_STAGES_PROVIDER"
	EnvStagesRemoteBaseURL = "PATHWAYS_STAGES_REMOTE_BASE_URL"
	EnvStagesRemoteTimeout = "PATHWAYS_STAGES_REMOTE_TIMEOUT"

	EnvTranscriptionModel    = "PATHWAYS_TRANSCRIPTION_MODEL"
	EnvTranscriptionLanguage = "PATHWAYS_TRANSCRIPTION_LANGUAGE"
	EnvTranscriptionMinWords = "PATHWAYS_TRANSCRIPTION_MIN_WORDS"

	EnvGenerationDefaultName = "PATHWAYS_GENERATION_DEFAULT_NAME"

	EnvRepresentativesDirectory    = "PATHWAYS_REPRESENTATIVES_DIRECTORY"
	EnvRepresentativesPostcodesURL = "PATHWAYS_REPRESENTATIVES_POSTCODES_URL"
	EnvRepresentativesTimeout      = "PATHWAYS_REPRESENTATIVES_TIMEOUT"
	EnvRepresentativesWatch        = "PATHWAYS_REPRESENTATIVES_WATCH"
)

// StagesConfig selects where the pipeline's stage calls are served from:
// in-process (OpenAI speech, the generation agent and postcodes.io), or a
// remote stage service.
type StagesConfig struct {
	Provider string       `toml:"provider"`
	Remote   RemoteConfig `toml:"remote"`
}

// RemoteConfig locates a remote stage service.
type RemoteConfig struct {
	BaseURL string `toml:"base_url"`
	Timeout string `toml:"timeout"`
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *RemoteConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *StagesConfig) Finalize() error {
	if c.Provider == "" {
		c.Provider = ProviderLocal
	}
	if c.Remote.Timeout == "" {
		c.Remote.Timeout = "5m"
	}

	if v := os.Getenv(EnvStagesProvider); v != "" {
		c.Provider = v
	}
	if v := os.Getenv(EnvStagesRemoteBaseURL); v != "" {
		c.Remote.BaseURL = v
	}
	if v := os.Getenv(EnvStagesRemoteTimeout); v != "" {
		c.Remote.Timeout = v
	}

	switch c.Provider {
	case ProviderLocal:
	case ProviderRemote:
		if c.Remote.BaseURL == "" {
			return fmt.Errorf("remote.base_url required for provider %s", ProviderRemote)
		}
	default:
		return fmt.Errorf("invalid provider %q: want %s or %s", c.Provider, ProviderLocal, ProviderRemote)
	}
	if _, err := time.ParseDuration(c.Remote.Timeout); err != nil {
		return fmt.Errorf("invalid remote.timeout: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *StagesConfig) Merge(overlay *StagesConfig) {
	if overlay.Provider != "" {
		c.Provider = overlay.Provider
	}
	if overlay.Remote.BaseURL != "" {
		c.Remote.BaseURL = overlay.Remote.BaseURL
	}
	if overlay.Remote.Timeout != "" {
		c.Remote.Timeout = overlay.Remote.Timeout
	}
}

// TranscriptionConfig configures the speech-to-text stage.
type TranscriptionConfig struct {
	Model    string `toml:"model"`
	Language string `toml:"language"`
	MinWords int    `toml:"min_words"`
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *TranscriptionConfig) Finalize() error {
	if c.Model == "" {
		c.Model = "gpt-4o-transcribe"
	}
	if c.Language == "" {
		c.Language = "en"
	}
	if c.MinWords == 0 {
		c.MinWords = 3
	}

	if v := os.Getenv(EnvTranscriptionModel); v != "" {
		c.Model = v
	}
	if v := os.Getenv(EnvTranscriptionLanguage); v != "" {
		c.Language = v
	}
	if v := os.Getenv(EnvTranscriptionMinWords); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MinWords = n
		}
	}

	if c.MinWords < 0 {
		return fmt.Errorf("invalid min_words: %d", c.MinWords)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *TranscriptionConfig) Merge(overlay *TranscriptionConfig) {
	if overlay.Model != "" {
		c.Model = overlay.Model
	}
	if overlay.Language != "" {
		c.Language = overlay.Language
	}
	if overlay.MinWords != 0 {
		c.MinWords = overlay.MinWords
	}
}

// GenerationConfig configures the document generation stage. The model and
// provider are configured on the agent.
type GenerationConfig struct {
	DefaultName string `toml:"default_name"`
}

// Finalize applies defaults and environment variable overrides.
func (c *GenerationConfig) Finalize() error {
	if c.DefaultName == "" {
		c.DefaultName = "Concerned Citizen"
	}
	if v := os.Getenv(EnvGenerationDefaultName); v != "" {
		c.DefaultName = v
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *GenerationConfig) Merge(overlay *GenerationConfig) {
	if overlay.DefaultName != "" {
		c.DefaultName = overlay.DefaultName
	}
}

// RepresentativesConfig configures the postcode to representative lookup.
type RepresentativesConfig struct {
	Directory    string `toml:"directory"`
	PostcodesURL string `toml:"postcodes_url"`
	Timeout      string `toml:"timeout"`
	Watch        *bool  `toml:"watch"`
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *RepresentativesConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// WatchEnabled reports whether the directory file is reloaded on change.
func (c *RepresentativesConfig) WatchEnabled() bool {
	return c.Watch == nil || *c.Watch
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *RepresentativesConfig) Finalize() error {
	if c.Directory == "" {
		c.Directory = "data/members.csv"
	}
	if c.PostcodesURL == "" {
		c.PostcodesURL = "https://api.postcodes.io"
	}
	if c.Timeout == "" {
		c.Timeout = "10s"
	}

	if v := os.Getenv(EnvRepresentativesDirectory); v != "" {
		c.Directory = v
	}
	if v := os.Getenv(EnvRepresentativesPostcodesURL); v != "" {
		c.PostcodesURL = v
	}
	if v := os.Getenv(EnvRepresentativesTimeout); v != "" {
		c.Timeout = v
	}
	if v := os.Getenv(EnvRepresentativesWatch); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Watch = &b
		}
	}

	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *RepresentativesConfig) Merge(overlay *RepresentativesConfig) {
	if overlay.Directory != "" {
		c.Directory = overlay.Directory
	}
	if overlay.PostcodesURL != "" {
		c.PostcodesURL = overlay.PostcodesURL
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
	if overlay.Watch != nil {
		c.Watch = overlay.Watch
	}
}
