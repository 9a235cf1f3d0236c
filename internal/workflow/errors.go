package workflow

import (
	"errors"
	"fmt"

	"github.com/JaimeStill/pathways/internal/submissions"
)

// Errors returned by stage clients and the orchestrator.
var (
	ErrBadAudio          = errors.New("transcript was not usable")
	ErrBadLocationKey    = errors.New("invalid location key")
	ErrPayloadRequired   = errors.New("payload required")
	ErrInvalidTransition = errors.New("invalid pipeline transition")
)

// Kind is the classification of a pipeline failure.
type Kind string

const (
	KindBadAudio       Kind = "bad_audio"
	KindBadLocationKey Kind = "bad_location_key"
	KindNotFound       Kind = "not_found"
	KindInternal       Kind = "internal"
)

var messages = map[Kind]string{
	KindBadAudio:       "Your audio recording was not usable. Please try again.",
	KindBadLocationKey: "Invalid postcode. Please try again.",
	KindNotFound:       "Submission not found. Please try recording again.",
	KindInternal:       "An error occurred while processing your submission. Please try again.",
}

// Message returns the user-facing message for the kind.
func (k Kind) Message() string {
	if m, ok := messages[k]; ok {
		return m
	}
	return messages[KindInternal]
}

// Retryable reports whether Retry can recover from the kind.
// Every other kind requires a new intake.
func (k Kind) Retryable() bool {
	return k == KindInternal
}

// ClearsState reports whether the kind discards the snapshot and payload.
func (k Kind) ClearsState() bool {
	return k == KindBadAudio || k == KindBadLocationKey
}

// Classify maps an error to its failure kind.
func Classify(err error) Kind {
	var f *Failure
	switch {
	case errors.As(err, &f):
		return f.Kind
	case errors.Is(err, ErrBadAudio):
		return KindBadAudio
	case errors.Is(err, ErrBadLocationKey):
		return KindBadLocationKey
	case errors.Is(err, ErrPayloadRequired),
		errors.Is(err, submissions.ErrNotFound),
		errors.Is(err, submissions.ErrPayloadNotFound):
		return KindNotFound
	}
	return KindInternal
}

// Failure is a classified pipeline error.
type Failure struct {
	Kind  Kind
	Stage submissions.Status
	Err   error
}

func (f *Failure) Error() string {
	if f.Stage == "" {
		return fmt.Sprintf("%s: %v", f.Kind, f.Err)
	}
	return fmt.Sprintf("%s during %s: %v", f.Kind, f.Stage, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Message returns the user-facing message for the failure.
func (f *Failure) Message() string {
	return f.Kind.Message()
}

// Record converts the failure into its persisted form.
func (f *Failure) Record() *submissions.Failure {
	return &submissions.Failure{
		Kind:    string(f.Kind),
		Stage:   f.Stage,
		Message: f.Message(),
	}
}

func classify(stage submissions.Status, err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Kind: Classify(err), Stage: stage, Err: err}
}
