// Package workflow drives a submission through the two-stage pipeline:
// transcription with an optional representative lookup, then generation of
// the public and representative documents. Each stage fans its remote calls
// out concurrently and fails fast on the first error.
package workflow

import (
	"context"

	"github.com/JaimeStill/pathways/internal/submissions"
)

// Transcriber converts a payload into transcript text.
// Unusable input is reported by wrapping ErrBadAudio.
type Transcriber interface {
	Transcribe(ctx context.Context, payload submissions.Payload) (string, error)
}

// RepresentativeLookup resolves a location key to an elected representative.
// A rejected key is reported by wrapping ErrBadLocationKey.
type RepresentativeLookup interface {
	Lookup(ctx context.Context, locationKey string) (*submissions.Representative, error)
}

// DocumentGenerator produces one document from a transcript.
type DocumentGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (*submissions.Document, error)
}

// DocumentKind selects which document a GenerateRequest produces.
type DocumentKind string

const (
	DocumentPublic         DocumentKind = "public"
	DocumentRepresentative DocumentKind = "representative"
)

// Valid reports whether k is a known document kind.
func (k DocumentKind) Valid() bool {
	return k == DocumentPublic || k == DocumentRepresentative
}

// GenerateRequest is the input to a single document generation call.
// RepresentativeName and LocationKey are empty for the public document and
// may be empty for the representative document.
type GenerateRequest struct {
	Kind               DocumentKind `json:"-"`
	Transcript         string       `json:"transcript"`
	SubmitterName      string       `json:"submitterName"`
	RepresentativeName string       `json:"representativeName,omitempty"`
	LocationKey        string       `json:"locationKey,omitempty"`
}
