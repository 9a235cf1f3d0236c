// Package config loads the service configuration from TOML files, an
// optional .env file and PATHWAYS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/pathways/pkg/database"
	"github.com/JaimeStill/pathways/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"
	DotEnvFile           = ".env"

	EnvPathwaysEnv             = "PATHWAYS_ENV"
	EnvPathwaysShutdownTimeout = "PATHWAYS_SHUTDOWN_TIMEOUT"
	EnvPathwaysVersion         = "PATHWAYS_VERSION"
)

var databaseEnv = &database.Env{
	Host:            "PATHWAYS_DB_HOST",
	Port:            "PATHWAYS_DB_PORT",
	Name:            "PATHWAYS_DB_NAME",
	User:            "PATHWAYS_DB_USER",
	Password:        "PATHWAYS_DB_PASSWORD",
	SSLMode:         "PATHWAYS_DB_SSL_MODE",
	MaxOpenConns:    "PATHWAYS_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "PATHWAYS_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "PATHWAYS_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "PATHWAYS_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "PATHWAYS_STORAGE_CONTAINER_NAME",
	ConnectionString: "PATHWAYS_STORAGE_CONNECTION_STRING",
	AccountURL:       "PATHWAYS_STORAGE_ACCOUNT_URL",
}

// Config is the root configuration for the Pathways service.
type Config struct {
	Server          ServerConfig          `toml:"server"`
	Database        database.Config       `toml:"database"`
	Storage         storage.Config        `toml:"storage"`
	API             APIConfig             `toml:"api"`
	Pipeline        PipelineConfig        `toml:"pipeline"`
	Stages          StagesConfig          `toml:"stages"`
	OpenAI          OpenAIConfig          `toml:"openai"`
	Agent           gaconfig.AgentConfig  `toml:"agent"`
	Transcription   TranscriptionConfig   `toml:"transcription"`
	Generation      GenerationConfig      `toml:"generation"`
	Representatives RepresentativesConfig `toml:"representatives"`
	ShutdownTimeout string                `toml:"shutdown_timeout"`
	Version         string                `toml:"version"`
}

// Env returns the PATHWAYS_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvPathwaysEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads .env (if present) into the process environment, then the base
// config (if present), applies any environment overlay, and finalizes all
// values. Variables already set in the environment win over .env entries.
func Load() (*Config, error) {
	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", DotEnvFile, err)
	}

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
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.Pipeline.Merge(&overlay.Pipeline)
	c.Stages.Merge(&overlay.Stages)
	c.OpenAI.Merge(&overlay.OpenAI)
	c.Agent.Merge(&overlay.Agent)
	c.Transcription.Merge(&overlay.Transcription)
	c.Generation.Merge(&overlay.Generation)
	c.Representatives.Merge(&overlay.Representatives)
}

// UsesDatabase reports whether snapshots are kept in PostgreSQL.
func (c *Config) UsesDatabase() bool {
	return c.Pipeline.Store == StorePostgres
}

// UsesStorage reports whether the payload slot is kept in blob storage.
func (c *Config) UsesStorage() bool {
	return c.Pipeline.Payload == PayloadBlob
}

// LocalStages reports whether stage calls are served in-process: OpenAI for
// transcription and the configured agent for document generation.
func (c *Config) LocalStages() bool {
	return c.Stages.Provider == ProviderLocal
}

// finalize resolves every section. Backend sections are only required when
// the pipeline selects that backend.
func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Pipeline.Finalize(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := c.Stages.Finalize(); err != nil {
		return fmt.Errorf("stages: %w", err)
	}
	if c.UsesDatabase() {
		if err := c.Database.Finalize(databaseEnv); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if c.UsesStorage() {
		if err := c.Storage.Finalize(storageEnv); err != nil {
			return fmt.Errorf("storage: %w", err)
		}
	}
	if c.LocalStages() {
		if err := c.OpenAI.Finalize(); err != nil {
			return fmt.Errorf("openai: %w", err)
		}
		if err := FinalizeAgent(&c.Agent); err != nil {
			return fmt.Errorf("agent: %w", err)
		}
	}
	if err := c.Transcription.Finalize(); err != nil {
		return fmt.Errorf("transcription: %w", err)
	}
	if err := c.Generation.Finalize(); err != nil {
		return fmt.Errorf("generation: %w", err)
	}
	if err := c.Representatives.Finalize(); err != nil {
		return fmt.Errorf("representatives: %w", err)
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
	if v := os.Getenv(EnvPathwaysShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvPathwaysVersion); v != "" {
		c.Version = v
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
	if env := os.Getenv(EnvPathwaysEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
