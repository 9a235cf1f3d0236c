// Package infrastructure provides core service initialization for application startup.
// It assembles common dependencies (logging, database, storage, model client)
// that domain systems require. Backends the configuration does not select are
// left nil.
package infrastructure

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/sashabaranov/go-openai"

	"github.com/JaimeStill/pathways/internal/config"
	"github.com/JaimeStill/pathways/pkg/database"
	"github.com/JaimeStill/pathways/pkg/lifecycle"
	"github.com/JaimeStill/pathways/pkg/storage"
)

// Infrastructure holds the core systems required by all domain modules.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
	OpenAI    *openai.Client
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	return NewWithLogger(cfg, slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

// NewWithLogger is New with a caller-supplied logger.
func NewWithLogger(cfg *config.Config, logger *slog.Logger) (*Infrastructure, error) {
	infra := &Infrastructure{
		Lifecycle: lifecycle.New(),
		Logger:    logger,
	}

	if cfg.UsesDatabase() {
		db, err := database.New(&cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("database init failed: %w", err)
		}
		infra.Database = db
	}

	if cfg.UsesStorage() {
		store, err := storage.New(&cfg.Storage, logger)
		if err != nil {
			return nil, fmt.Errorf("storage init failed: %w", err)
		}
		infra.Storage = store
	}

	if cfg.LocalStages() {
		infra.OpenAI = newOpenAI(&cfg.OpenAI)
	}

	return infra, nil
}

func newOpenAI(cfg *config.OpenAIConfig) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.Token)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Organization != "" {
		clientCfg.OrgID = cfg.Organization
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.TimeoutDuration()}
	return openai.NewClientWithConfig(clientCfg)
}

// Start registers the configured infrastructure systems with the lifecycle coordinator.
func (i *Infrastructure) Start() error {
	if i.Database != nil {
		if err := i.Database.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("database start failed: %w", err)
		}
	}
	if i.Storage != nil {
		if err := i.Storage.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("storage start failed: %w", err)
		}
	}
	return nil
}
