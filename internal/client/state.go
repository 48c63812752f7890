package client

import (
	"sync"
	"time"
)

// Phase is the UI-visible stage of an assistant turn.
type Phase string

// Turn phases in their natural order. A turn without an image search
// never leaves idle; triggered marks the search tool call arriving and
// the remaining stages run after the stream's done event.
const (
	PhaseIdle       Phase = "idle"
	PhaseTriggered  Phase = "triggered"
	PhaseSearching  Phase = "searching"
	PhaseFetching   Phase = "fetching"
	PhaseProcessing Phase = "processing"
	PhaseCompleted  Phase = "completed"
	PhaseError      Phase = "error"
)

// Auto-revert delays back to idle after a turn settles.
const (
	completedRevertDelay = 3 * time.Second
	errorRevertDelay     = 5 * time.Second
)

// StateMachine tracks the phase of the active turn and reverts to idle
// after the settle delay. Safe for concurrent use.
type StateMachine struct {
	mu       sync.Mutex
	phase    Phase
	revert   *time.Timer
	onChange func(Phase)
}

// NewStateMachine creates a machine in the idle phase. onChange, if
// non-nil, is invoked for every transition including timed reverts; it
// must not call back into the machine.
func NewStateMachine(onChange func(Phase)) *StateMachine {
	return &StateMachine{phase: PhaseIdle, onChange: onChange}
}

// Phase returns the current phase.
func (m *StateMachine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Trigger records the model requesting an image search.
func (m *StateMachine) Trigger() { m.set(PhaseTriggered, 0) }

// Searching marks the post-stream image lookup being underway.
func (m *StateMachine) Searching() { m.set(PhaseSearching, 0) }

// Fetching marks image results being retrieved.
func (m *StateMachine) Fetching() { m.set(PhaseFetching, 0) }

// Processing marks final assembly of the turn's results.
func (m *StateMachine) Processing() { m.set(PhaseProcessing, 0) }

// Complete settles the turn successfully; the phase reverts to idle
// after a short delay so the UI can show the settled state.
func (m *StateMachine) Complete() { m.set(PhaseCompleted, completedRevertDelay) }

// Fail settles the turn with an error; the error phase lingers longer
// than completion before reverting.
func (m *StateMachine) Fail() { m.set(PhaseError, errorRevertDelay) }

// Stop cancels any pending revert timer. Call when tearing down the UI.
func (m *StateMachine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelRevertLocked()
}

func (m *StateMachine) set(p Phase, revertAfter time.Duration) {
	m.mu.Lock()
	m.cancelRevertLocked()
	m.phase = p
	if revertAfter > 0 {
		m.revert = time.AfterFunc(revertAfter, m.revertToIdle)
	}
	cb := m.onChange
	m.mu.Unlock()

	if cb != nil {
		cb(p)
	}
}

func (m *StateMachine) revertToIdle() {
	m.mu.Lock()
	// A new turn may have started while the timer was pending.
	if m.phase != PhaseCompleted && m.phase != PhaseError {
		m.mu.Unlock()
		return
	}
	m.phase = PhaseIdle
	m.revert = nil
	cb := m.onChange
	m.mu.Unlock()

	if cb != nil {
		cb(PhaseIdle)
	}
}

func (m *StateMachine) cancelRevertLocked() {
	if m.revert != nil {
		m.revert.Stop()
		m.revert = nil
	}
}
