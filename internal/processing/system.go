// Package processing owns submission intake and drives submissions through
// the pipeline on request. It holds the payload slot and dedups concurrent
// runs for the same submission.
package processing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/JaimeStill/pathways/internal/submissions"
	"github.com/JaimeStill/pathways/internal/transcription"
	"github.com/JaimeStill/pathways/internal/workflow"
	"github.com/JaimeStill/pathways/pkg/formatting"
)

// System defines the contract for submission processing.
type System interface {
	Handler(maxUploadSize int64) *Handler

	Create(ctx context.Context, cmd CreateCommand) (*submissions.Submission, error)
	Find(ctx context.Context, id uuid.UUID) (*submissions.Submission, error)
	Progress(ctx context.Context, id uuid.UUID) (*workflow.ProgressView, error)
	Process(ctx context.Context, id uuid.UUID) (*Result, error)
	Retry(ctx context.Context, id uuid.UUID) (*Result, error)
}

// CreateCommand is a submission received at intake.
type CreateCommand struct {
	Data          []byte
	ContentType   string
	SubmitterName string
	LocationKey   string
}

// Result is the outcome of a completed run: the finished snapshot and where
// the caller should go to view it once the grace delay has elapsed.
type Result struct {
	Submission    *submissions.Submission `json:"submission"`
	ResultURL     string                  `json:"result_url"`
	RedirectAfter int64                   `json:"redirect_after"`
}

// Options configures the processing system.
type Options struct {
	// ResultPath is the URL prefix under which finished snapshots are served.
	ResultPath string
	GraceDelay time.Duration
}

type system struct {
	orchestrator *workflow.Orchestrator
	store        submissions.Store
	payloads     submissions.PayloadSlot
	runs         singleflight.Group
	opts         Options
	logger       *slog.Logger
}

// New creates a processing system over the given orchestrator and state stores.
func New(
	orchestrator *workflow.Orchestrator,
	store submissions.Store,
	payloads submissions.PayloadSlot,
	opts Options,
	logger *slog.Logger,
) System {
	return &system{
		orchestrator: orchestrator,
		store:        store,
		payloads:     payloads,
		opts:         opts,
		logger:       logger.With("system", "processing"),
	}
}

func (s *system) Handler(maxUploadSize int64) *Handler {
	return NewHandler(s, s.logger, maxUploadSize)
}

func (s *system) Create(ctx context.Context, cmd CreateCommand) (*submissions.Submission, error) {
	contentType := transcription.Normalize(cmd.ContentType)
	if !transcription.Supported(contentType) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, cmd.ContentType)
	}
	if contentType == transcription.ContentTypeText {
		if strings.TrimSpace(string(cmd.Data)) == "" {
			return nil, ErrEmptyPayload
		}
	} else if len(cmd.Data) == 0 {
		return nil, ErrEmptyPayload
	}

	sub := submissions.New(submissions.CreateCommand{
		ContentType:   contentType,
		SubmitterName: cmd.SubmitterName,
		LocationKey:   cmd.LocationKey,
	})

	payload := submissions.Payload{Data: cmd.Data, ContentType: contentType}
	if err := s.payloads.Set(ctx, sub.ID, payload); err != nil {
		return nil, fmt.Errorf("store payload: %w", err)
	}
	if err := s.store.Put(ctx, sub); err != nil {
		if clearErr := s.payloads.Clear(ctx, sub.ID); clearErr != nil {
			s.logger.ErrorContext(ctx, "clear payload failed", "id", sub.ID, "error", clearErr)
		}
		return nil, fmt.Errorf("store submission: %w", err)
	}

	s.logger.InfoContext(
		ctx, "submission received",
		"id", sub.ID,
		"content_type", contentType,
		"size", formatting.FormatBytes(payload.Size(), 1),
		"lookup", sub.HasLocationKey(),
	)
	return sub, nil
}

func (s *system) Find(ctx context.Context, id uuid.UUID) (*submissions.Submission, error) {
	return s.store.Get(ctx, id)
}

func (s *system) Progress(ctx context.Context, id uuid.UUID) (*workflow.ProgressView, error) {
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	view := workflow.Progress(sub)
	return &view, nil
}

func (s *system) Process(ctx context.Context, id uuid.UUID) (*Result, error) {
	return s.execute(ctx, id, func(ctx context.Context, payload *submissions.Payload) (*submissions.Submission, error) {
		sub, err := s.store.Get(ctx, id)
		if err != nil {
			if errors.Is(err, submissions.ErrNotFound) {
				return nil, &workflow.Failure{Kind: workflow.KindNotFound, Err: err}
			}
			return nil, err
		}
		return s.orchestrator.Run(ctx, sub, payload)
	})
}

func (s *system) Retry(ctx context.Context, id uuid.UUID) (*Result, error) {
	return s.execute(ctx, id, func(ctx context.Context, payload *submissions.Payload) (*submissions.Submission, error) {
		return s.orchestrator.Retry(ctx, id, payload)
	})
}

type runFunc func(ctx context.Context, payload *submissions.Payload) (*submissions.Submission, error)

// execute runs fn once per submission id at a time. Callers arriving while a
// run is in flight share its outcome. The run outlives the request context.
func (s *system) execute(ctx context.Context, id uuid.UUID, fn runFunc) (*Result, error) {
	v, err, shared := s.runs.Do(id.String(), func() (any, error) {
		runCtx := context.WithoutCancel(ctx)

		payload, err := s.payloads.Get(runCtx, id)
		if err != nil && !errors.Is(err, submissions.ErrPayloadNotFound) {
			return nil, fmt.Errorf("load payload: %w", err)
		}
		return fn(runCtx, payload)
	})
	if shared {
		s.logger.InfoContext(ctx, "joined in-flight run", "id", id)
	}
	if err != nil {
		return nil, err
	}

	sub := v.(*submissions.Submission)
	return &Result{
		Submission:    sub,
		ResultURL:     s.resultURL(sub.ID),
		RedirectAfter: s.opts.GraceDelay.Milliseconds(),
	}, nil
}

func (s *system) resultURL(id uuid.UUID) string {
	return strings.TrimSuffix(s.opts.ResultPath, "/") + "/" + id.String()
}
