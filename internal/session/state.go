package session

import "context"

// StateID names one of the fixed session states.
type StateID string

const (
	StateWaitingForInput        StateID = "WAITING_FOR_INPUT"
	StateGatheringContext       StateID = "GATHERING_CONTEXT"
	StateGeneratingPlan         StateID = "GENERATING_PLAN"
	StateReviewingPlan          StateID = "REVIEWING_PLAN"
	StateExecutingTasks         StateID = "EXECUTING_TASKS"
	StateValidatingTasks        StateID = "VALIDATING_TASKS"
	StateFixingValidationErrors StateID = "FIXING_VALIDATION_ERRORS"
	StateGeneratingSummary      StateID = "GENERATING_SUMMARY"

	// stateTerminated ends the controller loop; it is never entered.
	stateTerminated StateID = "TERMINATED"
)

// State is one node of the session state machine. Process returns the next
// state to run; returning the state's own id signals a transient failure
// the controller should retry after a backoff.
type State interface {
	ID() StateID
	Enter(ctx context.Context, s *Session) error
	Process(ctx context.Context, s *Session) (StateID, error)
	Exit(ctx context.Context, s *Session) error
}

// baseState provides no-op Enter and Exit for states that need neither.
type baseState struct{}

func (baseState) Enter(context.Context, *Session) error { return nil }
func (baseState) Exit(context.Context, *Session) error  { return nil }
