package api

import (
	"github.com/JaimeStill/pathways/internal/config"
	"github.com/JaimeStill/pathways/internal/processing"
	"github.com/JaimeStill/pathways/internal/workflow"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Processing processing.System
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(runtime *Runtime, cfg *config.Config) *Domain {
	orchestrator := workflow.New(workflow.Runtime{
		Transcriber: runtime.Stages.Transcriber,
		Lookup:      runtime.Stages.Lookup,
		Generator:   runtime.Stages.Generator,
		Store:       runtime.Store,
		Payloads:    runtime.Payloads,
		Timeouts:    runtime.Timeouts,
		Logger:      runtime.Logger,
	})

	processingSystem := processing.New(
		orchestrator,
		runtime.Store,
		runtime.Payloads,
		processing.Options{
			ResultPath: cfg.API.BasePath + "/submissions",
			GraceDelay: cfg.Pipeline.GraceDelayDuration(),
		},
		runtime.Logger,
	)

	return &Domain{
		Processing: processingSystem,
	}
}
