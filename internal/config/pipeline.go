package config

import (
	"fmt"
	"os"
	"time"
)

// Backends for the snapshot store and payload slot.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	PayloadMemory = "memory"
	PayloadBlob   = "blob"
)

const (
	EnvPipelineStore             = "PATHWAYS_PIPELINE_STORE"
	EnvPipelinePayload           = "PATHWAYS_PIPELINE_PAYLOAD"
	EnvPipelineGraceDelay        = "PATHWAYS_PIPELINE_GRACE_DELAY"
	EnvPipelineTranscribeTimeout = "PATHWAYS_PIPELINE_TRANSCRIBE_TIMEOUT"
	EnvPipelineLookupTimeout     = "PATHWAYS_PIPELINE_LOOKUP_TIMEOUT"
	EnvPipelineGenerateTimeout   = "PATHWAYS_PIPELINE_GENERATE_TIMEOUT"
)

// PipelineConfig selects state backends and bounds each remote call.
type PipelineConfig struct {
	Store             string `toml:"store"`
	Payload           string `toml:"payload"`
	GraceDelay        string `toml:"grace_delay"`
	TranscribeTimeout string `toml:"transcribe_timeout"`
	LookupTimeout     string `toml:"lookup_timeout"`
	GenerateTimeout   string `toml:"generate_timeout"`
}

func (c *PipelineConfig) GraceDelayDuration() time.Duration {
	d, _ := time.ParseDuration(c.GraceDelay)
	return d
}

func (c *PipelineConfig) TranscribeTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.TranscribeTimeout)
	return d
}

func (c *PipelineConfig) LookupTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.LookupTimeout)
	return d
}

func (c *PipelineConfig) GenerateTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.GenerateTimeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *PipelineConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *PipelineConfig) Merge(overlay *PipelineConfig) {
	if overlay.Store != "" {
		c.Store = overlay.Store
	}
	if overlay.Payload != "" {
		c.Payload = overlay.Payload
	}
	if overlay.GraceDelay != "" {
		c.GraceDelay = overlay.GraceDelay
	}
	if overlay.TranscribeTimeout != "" {
		c.TranscribeTimeout = overlay.TranscribeTimeout
	}
	if overlay.LookupTimeout != "" {
		c.LookupTimeout = overlay.LookupTimeout
	}
	if overlay.GenerateTimeout != "" {
		c.GenerateTimeout = overlay.GenerateTimeout
	}
}

func (c *PipelineConfig) loadDefaults() {
	if c.Store == "" {
		c.Store = StoreMemory
	}
	if c.Payload == "" {
		c.Payload = PayloadMemory
	}
	if c.GraceDelay == "" {
		c.GraceDelay = "1500ms"
	}
	if c.TranscribeTimeout == "" {
		c.TranscribeTimeout = "3m"
	}
	if c.LookupTimeout == "" {
		c.LookupTimeout = "15s"
	}
	if c.GenerateTimeout == "" {
		c.GenerateTimeout = "2m"
	}
}

func (c *PipelineConfig) loadEnv() {
	if v := os.Getenv(EnvPipelineStore); v != "" {
		c.Store = v
	}
	if v := os.Getenv(EnvPipelinePayload); v != "" {
		c.Payload = v
	}
	if v := os.Getenv(EnvPipelineGraceDelay); v != "" {
		c.GraceDelay = v
	}
	if v := os.Getenv(EnvPipelineTranscribeTimeout); v != "" {
		c.TranscribeTimeout = v
	}
	if v := os.Getenv(EnvPipelineLookupTimeout); v != "" {
		c.LookupTimeout = v
	}
	if v := os.Getenv(EnvPipelineGenerateTimeout); v != "" {
		c.GenerateTimeout = v
	}
}

func (c *PipelineConfig) validate() error {
	switch c.Store {
	case StoreMemory, StorePostgres:
	default:
		return fmt.Errorf("invalid store %q: want %s or %s", c.Store, StoreMemory, StorePostgres)
	}
	switch c.Payload {
	case PayloadMemory, PayloadBlob:
	default:
		return fmt.Errorf("invalid payload %q: want %s or %s", c.Payload, PayloadMemory, PayloadBlob)
	}

	durations := map[string]string{
		"grace_delay":        c.GraceDelay,
		"transcribe_timeout": c.TranscribeTimeout,
		"lookup_timeout":     c.LookupTimeout,
		"generate_timeout":   c.GenerateTimeout,
	}
	for name, v := range durations {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	return nil
}
