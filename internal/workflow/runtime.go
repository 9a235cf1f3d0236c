package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/JaimeStill/pathways/internal/submissions"
)

// Timeouts bounds each remote call. Zero disables the bound.
type Timeouts struct {
	Transcribe time.Duration
	Lookup     time.Duration
	Generate   time.Duration
}

// Runtime bundles the stage clients and state stores the orchestrator drives.
type Runtime struct {
	Transcriber Transcriber
	Lookup      RepresentativeLookup
	Generator   DocumentGenerator
	Store       submissions.Store
	Payloads    submissions.PayloadSlot
	Timeouts    Timeouts
	Logger      *slog.Logger
}

func bounded(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
