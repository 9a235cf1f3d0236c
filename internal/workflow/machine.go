package workflow

import (
	"fmt"
	"slices"

	"github.com/JaimeStill/pathways/internal/submissions"
)

// State is a pipeline state.
type State int

const (
	Idle State = iota
	Transcribing
	Preparing
	Complete
	Error
)

var stateNames = [...]string{"idle", "transcribing", "preparing", "complete", "error"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Active reports whether remote calls are in flight in this state.
func (s State) Active() bool {
	return s == Transcribing || s == Preparing
}

var transitions = map[State][]State{
	Idle:         {Transcribing},
	Transcribing: {Preparing, Error},
	Preparing:    {Complete, Error},
	Error:        {Transcribing},
	Complete:     {Transcribing},
}

var statusByState = map[State]submissions.Status{
	Idle:         submissions.StatusUploading,
	Transcribing: submissions.StatusTranscribing,
	Preparing:    submissions.StatusPreparing,
	Complete:     submissions.StatusComplete,
	Error:        submissions.StatusError,
}

// Machine tracks a single run's position in the transition table.
type Machine struct {
	state State
}

// NewMachine returns a machine positioned at the state a persisted status
// represents. Unknown statuses start at Idle.
func NewMachine(status submissions.Status) *Machine {
	for state, st := range statusByState {
		if st == status {
			return &Machine{state: state}
		}
	}
	return &Machine{state: Idle}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Status returns the persisted status for the current state.
func (m *Machine) Status() submissions.Status {
	return statusByState[m.state]
}

// Can reports whether the machine may move to the given state.
func (m *Machine) Can(to State) bool {
	return slices.Contains(transitions[m.state], to)
}

// Fire moves the machine to the given state.
func (m *Machine) Fire(to State) error {
	if !m.Can(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state, to)
	}
	m.state = to
	return nil
}
