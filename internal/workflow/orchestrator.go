package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/pathways/internal/submissions"
	"github.com/JaimeStill/pathways/pkg/formatting"
)

// Orchestrator sequences the pipeline stages for one submission at a time.
type Orchestrator struct {
	rt     Runtime
	logger *slog.Logger
}

// New creates an Orchestrator over the given runtime.
func New(rt Runtime) *Orchestrator {
	return &Orchestrator{
		rt:     rt,
		logger: rt.Logger.With("system", "workflow"),
	}
}

// Run drives s through both stages using payload as the stage 1 input.
// Pipeline failures are returned as *Failure. A snapshot already mid-run or
// already complete yields ErrInvalidTransition; a finished submission is only
// rerun through Retry.
func (o *Orchestrator) Run(ctx context.Context, s *submissions.Submission, payload *submissions.Payload) (*submissions.Submission, error) {
	m := NewMachine(s.Status)
	if m.State().Active() || m.State() == Complete {
		return nil, fmt.Errorf("%w: submission %s is %s", ErrInvalidTransition, s.ID, m.State())
	}
	return o.run(ctx, s, m, payload)
}

// Retry reloads the snapshot for id and reruns the pipeline from stage 1.
// A missing snapshot yields a KindNotFound failure: the caller must restart
// intake. A snapshot left mid-run by an abandoned attempt is treated as failed.
func (o *Orchestrator) Retry(ctx context.Context, id uuid.UUID, payload *submissions.Payload) (*submissions.Submission, error) {
	s, err := o.rt.Store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, submissions.ErrNotFound) {
			return nil, &Failure{Kind: KindNotFound, Err: err}
		}
		return nil, &Failure{Kind: KindInternal, Err: err}
	}

	m := NewMachine(s.Status)
	if m.State().Active() {
		o.logger.WarnContext(ctx, "retrying abandoned run", "id", id, "state", m.State())
		if err := m.Fire(Error); err != nil {
			return nil, err
		}
	}

	o.logger.InfoContext(ctx, "retry", "id", id, "previous_status", s.Status)
	return o.run(ctx, s, m, payload)
}

func (o *Orchestrator) run(ctx context.Context, s *submissions.Submission, m *Machine, payload *submissions.Payload) (*submissions.Submission, error) {
	if payload == nil || len(payload.Data) == 0 {
		return nil, &Failure{Kind: KindNotFound, Stage: submissions.StatusTranscribing, Err: ErrPayloadRequired}
	}

	if err := m.Fire(Transcribing); err != nil {
		return nil, err
	}

	// outputs from an earlier attempt stay until their stage succeeds again
	start := time.Now()
	s.Failure = nil
	s.Status = m.Status()
	s.Progress = ProgressStart
	if err := o.persist(ctx, s); err != nil {
		return nil, o.fail(ctx, s, m, err)
	}

	o.logger.InfoContext(
		ctx, "stage 1 started",
		"id", s.ID,
		"content_type", payload.ContentType,
		"size", formatting.FormatBytes(payload.Size(), 1),
		"lookup", s.HasLocationKey(),
	)

	transcript, rep, err := o.stageOne(ctx, s, *payload)
	if err != nil {
		return nil, o.fail(ctx, s, m, err)
	}

	if err := m.Fire(Preparing); err != nil {
		return nil, err
	}
	s.Transcript = transcript
	s.Representative = rep
	s.Status = m.Status()
	s.Progress = ProgressTranscribed
	if err := o.persist(ctx, s); err != nil {
		return nil, o.fail(ctx, s, m, err)
	}

	o.logger.InfoContext(ctx, "stage 2 started", "id", s.ID, "representative", rep != nil)

	public, personal, err := o.stageTwo(ctx, s)
	if err != nil {
		return nil, o.fail(ctx, s, m, err)
	}

	if err := m.Fire(Complete); err != nil {
		return nil, err
	}
	s.PublicDocument = public
	s.RepresentativeDocument = personal
	s.Status = m.Status()
	s.Progress = ProgressComplete
	if err := o.persist(ctx, s); err != nil {
		return nil, o.fail(ctx, s, m, err)
	}

	o.logger.InfoContext(ctx, "pipeline complete", "id", s.ID, "duration", time.Since(start))
	return s, nil
}

func (o *Orchestrator) stageOne(ctx context.Context, s *submissions.Submission, payload submissions.Payload) (string, *submissions.Representative, error) {
	var (
		transcript string
		rep        *submissions.Representative
	)

	tasks := []task{
		func(ctx context.Context) error {
			ctx, cancel := bounded(ctx, o.rt.Timeouts.Transcribe)
			defer cancel()

			t, err := o.rt.Transcriber.Transcribe(ctx, payload)
			if err != nil {
				return fmt.Errorf("transcribe: %w", err)
			}
			if strings.TrimSpace(t) == "" {
				return fmt.Errorf("transcribe: %w: empty transcript", ErrBadAudio)
			}
			transcript = t
			return nil
		},
	}

	if s.HasLocationKey() {
		key := s.LocationKey
		tasks = append(tasks, func(ctx context.Context) error {
			ctx, cancel := bounded(ctx, o.rt.Timeouts.Lookup)
			defer cancel()

			r, err := o.rt.Lookup.Lookup(ctx, key)
			if err != nil {
				return fmt.Errorf("lookup representative: %w", err)
			}
			if r == nil {
				return fmt.Errorf("lookup representative: empty response")
			}
			rep = r
			return nil
		})
	}

	if err := fanOut(ctx, tasks...); err != nil {
		return "", nil, err
	}
	return transcript, rep, nil
}

func (o *Orchestrator) stageTwo(ctx context.Context, s *submissions.Submission) (*submissions.Document, *submissions.Document, error) {
	var public, personal *submissions.Document

	repName := ""
	if s.Representative != nil {
		repName = s.Representative.Name
	}

	generate := func(req GenerateRequest, dst **submissions.Document) task {
		return func(ctx context.Context) error {
			ctx, cancel := bounded(ctx, o.rt.Timeouts.Generate)
			defer cancel()

			doc, err := o.rt.Generator.Generate(ctx, req)
			if err != nil {
				return fmt.Errorf("generate %s document: %w", req.Kind, err)
			}
			if doc == nil {
				return fmt.Errorf("generate %s document: empty response", req.Kind)
			}
			*dst = doc
			return nil
		}
	}

	err := fanOut(ctx,
		generate(GenerateRequest{
			Kind:          DocumentPublic,
			Transcript:    s.Transcript,
			SubmitterName: s.SubmitterName,
		}, &public),
		generate(GenerateRequest{
			Kind:               DocumentRepresentative,
			Transcript:         s.Transcript,
			SubmitterName:      s.SubmitterName,
			RepresentativeName: repName,
			LocationKey:        s.LocationKey,
		}, &personal),
	)
	if err != nil {
		return nil, nil, err
	}
	return public, personal, nil
}

func (o *Orchestrator) persist(ctx context.Context, s *submissions.Submission) error {
	s.UpdatedAt = time.Now().UTC()
	if err := o.rt.Store.Put(ctx, s); err != nil {
		return fmt.Errorf("persist submission: %w", err)
	}
	return nil
}

// fail classifies err once and applies its effect on the stored state.
// Clearing kinds drop the snapshot and payload; every other kind keeps the
// fields completed so far and records the failure on the snapshot.
func (o *Orchestrator) fail(ctx context.Context, s *submissions.Submission, m *Machine, err error) error {
	stage := m.Status()
	f := classify(stage, err)

	// state changes below must land even when the run's context is gone
	ctx = context.WithoutCancel(ctx)

	if f.Kind.ClearsState() {
		if err := o.rt.Store.Delete(ctx, s.ID); err != nil {
			o.logger.ErrorContext(ctx, "clear snapshot failed", "id", s.ID, "error", err)
		}
		if err := o.rt.Payloads.Clear(ctx, s.ID); err != nil {
			o.logger.ErrorContext(ctx, "clear payload failed", "id", s.ID, "error", err)
		}
		o.logger.WarnContext(ctx, "submission rejected", "id", s.ID, "kind", f.Kind, "stage", stage, "error", err)
		return f
	}

	if fireErr := m.Fire(Error); fireErr != nil {
		o.logger.ErrorContext(ctx, "record failure", "id", s.ID, "error", fireErr)
		return f
	}
	s.Status = m.Status()
	s.Failure = f.Record()
	if err := o.persist(ctx, s); err != nil {
		o.logger.ErrorContext(ctx, "persist failure state", "id", s.ID, "error", err)
	}

	o.logger.ErrorContext(ctx, "pipeline failed", "id", s.ID, "kind", f.Kind, "stage", stage, "error", err)
	return f
}
