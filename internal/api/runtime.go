package api

import (
	"fmt"

	"github.com/JaimeStill/go-agents/pkg/agent"

	"github.com/JaimeStill/pathways/internal/config"
	"github.com/JaimeStill/pathways/internal/generation"
	"github.com/JaimeStill/pathways/internal/infrastructure"
	"github.com/JaimeStill/pathways/internal/remote"
	"github.com/JaimeStill/pathways/internal/representatives"
	"github.com/JaimeStill/pathways/internal/submissions"
	"github.com/JaimeStill/pathways/internal/transcription"
	"github.com/JaimeStill/pathways/internal/workflow"
)

// Stages holds the stage clients the pipeline calls. Local is true when the
// clients run in-process and can also be served over the stage endpoints.
type Stages struct {
	Transcriber workflow.Transcriber
	Lookup      workflow.RepresentativeLookup
	Generator   workflow.DocumentGenerator
	Local       bool
}

// Runtime extends Infrastructure with the state backends and stage clients
// selected by configuration.
type Runtime struct {
	*infrastructure.Infrastructure
	Store    submissions.Store
	Payloads submissions.PayloadSlot
	Stages   Stages
	Timeouts workflow.Timeouts
}

// NewRuntime creates an API runtime with a module-scoped logger.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) (*Runtime, error) {
	rt := &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle: infra.Lifecycle,
			Logger:    infra.Logger.With("module", "api"),
			Database:  infra.Database,
			Storage:   infra.Storage,
			OpenAI:    infra.OpenAI,
		},
		Timeouts: workflow.Timeouts{
			Transcribe: cfg.Pipeline.TranscribeTimeoutDuration(),
			Lookup:     cfg.Pipeline.LookupTimeoutDuration(),
			Generate:   cfg.Pipeline.GenerateTimeoutDuration(),
		},
	}

	if rt.Database != nil {
		rt.Store = submissions.NewRepository(rt.Database.Connection(), rt.Logger)
	} else {
		rt.Store = submissions.NewMemoryStore()
	}

	if rt.Storage != nil {
		rt.Payloads = submissions.NewBlobSlot(rt.Storage, rt.Logger)
	} else {
		rt.Payloads = submissions.NewMemorySlot()
	}

	stages, err := newStages(cfg, rt)
	if err != nil {
		return nil, fmt.Errorf("stages: %w", err)
	}
	rt.Stages = stages

	return rt, nil
}

func newStages(cfg *config.Config, rt *Runtime) (Stages, error) {
	if !cfg.LocalStages() {
		client := remote.New(cfg.Stages.Remote.BaseURL, cfg.Stages.Remote.TimeoutDuration(), rt.Logger)
		return Stages{
			Transcriber: client,
			Lookup:      client,
			Generator:   client,
		}, nil
	}

	transcriber := transcription.New(rt.OpenAI, transcription.Options{
		Model:    cfg.Transcription.Model,
		Language: cfg.Transcription.Language,
		MinWords: cfg.Transcription.MinWords,
	}, rt.Logger)

	a, err := agent.New(&cfg.Agent)
	if err != nil {
		return Stages{}, fmt.Errorf("create agent: %w", err)
	}

	generator, err := generation.New(generation.FromAgent(a), generation.Options{
		DefaultName: cfg.Generation.DefaultName,
	}, rt.Logger)
	if err != nil {
		return Stages{}, err
	}

	directory, err := representatives.LoadDirectory(cfg.Representatives.Directory)
	if err != nil {
		return Stages{}, err
	}
	if cfg.Representatives.WatchEnabled() {
		if err := directory.Watch(rt.Lifecycle, rt.Logger); err != nil {
			return Stages{}, err
		}
	}

	lookup := representatives.New(
		representatives.NewPostcodes(cfg.Representatives.PostcodesURL, cfg.Representatives.TimeoutDuration()),
		directory,
		rt.Logger,
	)

	return Stages{
		Transcriber: transcriber,
		Lookup:      lookup,
		Generator:   generator,
		Local:       true,
	}, nil
}
