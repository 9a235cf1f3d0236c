package workflow

import (
	"slices"

	"github.com/JaimeStill/pathways/internal/submissions"
)

// Progress checkpoints.
const (
	ProgressStart       = 10
	ProgressTranscribed = 30
	ProgressComplete    = 100
)

// Stages is the fixed stage order. Error is orthogonal to it.
var Stages = []submissions.Status{
	submissions.StatusUploading,
	submissions.StatusTranscribing,
	submissions.StatusPreparing,
	submissions.StatusComplete,
}

// StepState is the display state of one stage relative to the current one.
type StepState string

const (
	StepCompleted  StepState = "completed"
	StepInProgress StepState = "in-progress"
	StepWaiting    StepState = "waiting"
)

// StepStatus compares the position of step to current in Stages:
// earlier is completed, equal is in progress, later is waiting.
func StepStatus(step, current submissions.Status) StepState {
	si := slices.Index(Stages, step)
	ci := slices.Index(Stages, current)
	switch {
	case si < ci:
		return StepCompleted
	case si == ci:
		return StepInProgress
	}
	return StepWaiting
}

// Step is one entry in a progress view.
type Step struct {
	Stage submissions.Status `json:"stage"`
	State StepState          `json:"state"`
}

// ProgressView is the derived progress of a submission.
type ProgressView struct {
	ID      string               `json:"id"`
	Status  submissions.Status   `json:"status"`
	Percent int                  `json:"percent"`
	Steps   []Step               `json:"steps"`
	Failure *submissions.Failure `json:"failure,omitempty"`
	Retry   bool                 `json:"retry"`
}

// Progress derives the progress view of a snapshot. A failed submission
// keeps the stage it failed in marked as in progress.
func Progress(s *submissions.Submission) ProgressView {
	current := s.Status
	if current == submissions.StatusError {
		current = submissions.StatusTranscribing
		if s.Failure != nil && s.Failure.Stage != "" {
			current = s.Failure.Stage
		}
	}

	steps := make([]Step, len(Stages))
	for i, stage := range Stages {
		state := StepStatus(stage, current)
		if current == submissions.StatusComplete {
			state = StepCompleted
		}
		steps[i] = Step{Stage: stage, State: state}
	}

	view := ProgressView{
		ID:      s.ID.String(),
		Status:  s.Status,
		Percent: s.Progress,
		Steps:   steps,
		Failure: s.Failure,
	}
	if s.Failure != nil {
		view.Retry = Kind(s.Failure.Kind).Retryable()
	}
	return view
}
