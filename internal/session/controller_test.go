package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeState replays a scripted sequence of transitions and records every
// lifecycle call into a shared log.
type fakeState struct {
	id     StateID
	script []StateID
	errs   []error
	calls  int
	log    *[]string
}

func (f *fakeState) ID() StateID { return f.id }

func (f *fakeState) Enter(context.Context, *Session) error {
	*f.log = append(*f.log, "enter "+string(f.id))
	return nil
}

func (f *fakeState) Exit(context.Context, *Session) error {
	*f.log = append(*f.log, "exit "+string(f.id))
	return nil
}

func (f *fakeState) Process(context.Context, *Session) (StateID, error) {
	*f.log = append(*f.log, "process "+string(f.id))
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i >= len(f.script) {
		return stateTerminated, nil
	}
	return f.script[i], nil
}

func newTestController(maxRetries int, states ...State) (*Controller, *[]string) {
	log := &[]string{}
	byID := make(map[StateID]State, len(states))
	for _, st := range states {
		st.(*fakeState).log = log
		byID[st.ID()] = st
	}
	c := &Controller{
		session:    &Session{},
		states:     byID,
		backoff:    time.Millisecond,
		maxRetries: maxRetries,
	}
	return c, log
}

func TestControllerWalksTransitions(t *testing.T) {
	a := &fakeState{id: StateWaitingForInput, script: []StateID{StateGatheringContext}}
	b := &fakeState{id: StateGatheringContext, script: []StateID{stateTerminated}}
	c, log := newTestController(0, a, b)

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, []string{
		"enter WAITING_FOR_INPUT",
		"process WAITING_FOR_INPUT",
		"exit WAITING_FOR_INPUT",
		"enter GATHERING_CONTEXT",
		"process GATHERING_CONTEXT",
		"exit GATHERING_CONTEXT",
	}, *log)
}

func TestControllerRetriesSameStateThenMovesOn(t *testing.T) {
	a := &fakeState{id: StateWaitingForInput, script: []StateID{
		StateWaitingForInput,
		StateWaitingForInput,
		stateTerminated,
	}}
	c, _ := newTestController(0, a)

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, 3, a.calls)
}

func TestControllerTreatsProcessErrorAsRetry(t *testing.T) {
	a := &fakeState{
		id:     StateWaitingForInput,
		errs:   []error{errors.New("transient")},
		script: []StateID{"", stateTerminated},
	}
	c, _ := newTestController(0, a)

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, 2, a.calls)
}

func TestControllerRetryCeilingAborts(t *testing.T) {
	a := &fakeState{id: StateWaitingForInput, script: []StateID{
		StateWaitingForInput,
		StateWaitingForInput,
		StateWaitingForInput,
		StateWaitingForInput,
	}}
	c, _ := newTestController(3, a)

	err := c.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed 3 times, giving up")
	assert.Equal(t, 3, a.calls)
}

func TestControllerRetryCounterResetsOnTransition(t *testing.T) {
	// One retry in each state must not accumulate toward the ceiling.
	a := &fakeState{id: StateWaitingForInput, script: []StateID{
		StateWaitingForInput,
		StateGatheringContext,
	}}
	b := &fakeState{id: StateGatheringContext, script: []StateID{
		StateGatheringContext,
		stateTerminated,
	}}
	c, _ := newTestController(2, a, b)

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, 2, a.calls)
	assert.Equal(t, 2, b.calls)
}

func TestControllerStopsOnCanceledContext(t *testing.T) {
	a := &fakeState{id: StateWaitingForInput, script: []StateID{
		StateWaitingForInput,
		StateWaitingForInput,
	}}
	c, _ := newTestController(0, a)
	c.backoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := c.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestControllerRejectsUnknownTransition(t *testing.T) {
	a := &fakeState{id: StateWaitingForInput, script: []StateID{"NO_SUCH_STATE"}}
	c, _ := newTestController(0, a)

	err := c.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown state")
}
