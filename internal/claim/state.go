package claim

import (
	"errors"
	"fmt"
)

// State is a step of the claim lifecycle for one batch
type State string

const (
	Analyzing            State = "ANALYZING"
	Partitioned          State = "PARTITIONED"
	CreatingClaim        State = "CREATING_CLAIM"
	Populating           State = "POPULATING"
	Uploading            State = "UPLOADING"
	Saving               State = "SAVING"
	AwaitingConfirmation State = "AWAITING_CONFIRMATION"
	Archiving            State = "ARCHIVING"
	Done                 State = "DONE"
	Failed               State = "FAILED"
)

// ErrNotConfirmed is the failure reason when the operator declines a saved claim
var ErrNotConfirmed = errors.New("operator did not confirm the claim was saved")

// Terminal reports whether no transition leaves s
func (s State) Terminal() bool {
	return s == Done || s == Failed
}

// StepResult is what running the side effects of a state produced
type StepResult struct {
	// Successes is the number of receipts that extracted cleanly
	Successes int
	// Confirmed is the operator's answer while awaiting confirmation
	Confirmed bool
	// Err is fatal for the batch
	Err error
}

// Transition returns the state following s given the step result, and the
// failure reason when the next state is Failed. Terminal states absorb.
func Transition(s State, r StepResult) (State, error) {
	if s.Terminal() {
		return s, nil
	}
	if r.Err != nil {
		return Failed, r.Err
	}

	switch s {
	case Analyzing:
		return Partitioned, nil
	case Partitioned:
		if r.Successes == 0 {
			return Done, nil
		}
		return CreatingClaim, nil
	case CreatingClaim:
		return Populating, nil
	case Populating:
		return Uploading, nil
	case Uploading:
		return Saving, nil
	case Saving:
		return AwaitingConfirmation, nil
	case AwaitingConfirmation:
		if !r.Confirmed {
			return Failed, ErrNotConfirmed
		}
		return Archiving, nil
	case Archiving:
		return Done, nil
	}
	return Failed, fmt.Errorf("unknown state %q", s)
}
