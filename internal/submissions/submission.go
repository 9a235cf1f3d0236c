// Package submissions owns the submission snapshot, its persistence, and the
// single-slot payload cache that holds the raw audio or text between intake
// and processing.
package submissions

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the persisted pipeline position of a submission.
type Status string

const (
	StatusUploading    Status = "uploading"
	StatusTranscribing Status = "transcribing"
	StatusPreparing    Status = "preparing"
	StatusComplete     Status = "complete"
	StatusError        Status = "error"
)

// Representative is the elected official resolved from a location key.
type Representative struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Document is a generated subject/body pair.
type Document struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Failure records the last classified pipeline failure and the stage it occurred in.
type Failure struct {
	Kind    string `json:"kind"`
	Stage   Status `json:"stage,omitempty"`
	Message string `json:"message"`
}

// Submission is the payload-free snapshot of one unit of work.
type Submission struct {
	ID                     uuid.UUID       `json:"id"`
	ContentType            string          `json:"content_type"`
	SubmitterName          string          `json:"submitter_name"`
	LocationKey            string          `json:"location_key,omitempty"`
	Transcript             string          `json:"transcript,omitempty"`
	Representative         *Representative `json:"representative,omitempty"`
	PublicDocument         *Document       `json:"public_document,omitempty"`
	RepresentativeDocument *Document       `json:"representative_document,omitempty"`
	Status                 Status          `json:"status"`
	Progress               int             `json:"progress"`
	Failure                *Failure        `json:"failure,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// CreateCommand carries the metadata supplied at intake.
type CreateCommand struct {
	ContentType   string
	SubmitterName string
	LocationKey   string
}

// New creates a snapshot in the uploading state with a fresh id.
func New(cmd CreateCommand) *Submission {
	now := time.Now().UTC()
	return &Submission{
		ID:            uuid.New(),
		ContentType:   cmd.ContentType,
		SubmitterName: strings.TrimSpace(cmd.SubmitterName),
		LocationKey:   strings.TrimSpace(cmd.LocationKey),
		Status:        StatusUploading,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// HasLocationKey reports whether a representative lookup applies.
func (s *Submission) HasLocationKey() bool {
	return strings.TrimSpace(s.LocationKey) != ""
}

