package session

import (
	"context"
	"fmt"
	"time"

	"kodo/internal/logging"
)

// Controller runs the state machine as an iterative loop: exit the current
// state, enter the next, process, repeat. A state that returns itself is
// retried after a fixed backoff; persistent failures hit the retry ceiling
// and abort the session.
type Controller struct {
	session    *Session
	states     map[StateID]State
	backoff    time.Duration
	maxRetries int
}

// NewController wires the fixed state set to the session.
func NewController(s *Session) *Controller {
	backoff := s.Config.Session.RetryBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	states := []State{
		&waitingForInput{},
		&gatheringContext{},
		&generatingPlan{},
		&reviewingPlan{},
		&executingTasks{},
		&validatingTasks{},
		&fixingValidationErrors{},
		&generatingSummary{},
	}
	byID := make(map[StateID]State, len(states))
	for _, st := range states {
		byID[st.ID()] = st
	}

	return &Controller{
		session:    s,
		states:     byID,
		backoff:    backoff,
		maxRetries: s.Config.Session.MaxStateRetries,
	}
}

// Run drives the loop until the user quits, the context is canceled, or a
// state fails past the retry ceiling.
func (c *Controller) Run(ctx context.Context) error {
	current := c.states[StateWaitingForInput]
	if err := current.Enter(ctx, c.session); err != nil {
		return fmt.Errorf("entering %s: %w", current.ID(), err)
	}

	retries := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		next, err := current.Process(ctx, c.session)
		if err != nil {
			logging.Warn("state failed", "state", current.ID(), "error", err)
			next = current.ID()
		}

		if next == stateTerminated {
			return current.Exit(ctx, c.session)
		}

		if next == current.ID() {
			retries++
			if c.maxRetries > 0 && retries >= c.maxRetries {
				_ = current.Exit(ctx, c.session)
				return fmt.Errorf("state %s failed %d times, giving up", current.ID(), retries)
			}
			logging.Debug("retrying state", "state", current.ID(), "attempt", retries, "backoff", c.backoff)
			select {
			case <-time.After(c.backoff):
			case <-ctx.Done():
				_ = current.Exit(ctx, c.session)
				return ctx.Err()
			}
		} else {
			retries = 0
		}

		if err := current.Exit(ctx, c.session); err != nil {
			logging.Warn("state exit failed", "state", current.ID(), "error", err)
		}

		nextState, ok := c.states[next]
		if !ok {
			return fmt.Errorf("state %s transitioned to unknown state %s", current.ID(), next)
		}
		current = nextState
		if err := current.Enter(ctx, c.session); err != nil {
			return fmt.Errorf("entering %s: %w", current.ID(), err)
		}
	}
}
