package infrastructure_test

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/JaimeStill/pathways/internal/config"
	"github.com/JaimeStill/pathways/internal/infrastructure"
)

func finalized(t *testing.T, toml string) *config.Config {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv(config.EnvOpenAIToken, "sk-test")
	if toml != "" {
		writeConfig(t, toml)
	}
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return cfg
}

func TestNewMemoryBackends(t *testing.T) {
	cfg := finalized(t, "")

	infra, err := infrastructure.NewWithLogger(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if infra.Database != nil || infra.Storage != nil {
		t.Error("memory backends should leave database and storage nil")
	}
	if infra.OpenAI == nil {
		t.Error("local stages should create an openai client")
	}
	if err := infra.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
}

func TestNewPostgresRemote(t *testing.T) {
	cfg := finalized(t, `
[pipeline]
store = "postgres"

[database]
name = "pathways"
user = "pathways"

[stages]
provider = "remote"

[stages.remote]
base_url = "http://localhost:9000/api/stages"
`)

	infra, err := infrastructure.NewWithLogger(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if infra.Database == nil {
		t.Fatal("postgres store should create a database system")
	}
	defer infra.Database.Connection().Close()

	if infra.OpenAI != nil {
		t.Error("remote provider should not create an openai client")
	}
}

func writeConfig(t *testing.T, content string) {
	t.Helper()
	if err := os.WriteFile("config.toml", []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
