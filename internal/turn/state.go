package turn

import (
	"errors"
	"slices"
	"time"
)

// Phase is a stage of a single turn.
type Phase string

const (
	// PhaseCollectingOpinions asks every selected persona for a first reaction
	// in one upstream call and reveals the opinions one by one.
	PhaseCollectingOpinions Phase = "collecting_opinions"

	// PhaseAnalyzing runs the three analysis roles concurrently.
	PhaseAnalyzing Phase = "analyzing"

	// PhaseSynthesizing streams the moderated discussion and the structured
	// turn payload.
	PhaseSynthesizing Phase = "synthesizing"

	// PhaseReconciling repairs the proposed scorecard and completes the
	// response set.
	PhaseReconciling Phase = "reconciling"

	// PhaseDone indicates the final event was emitted.
	PhaseDone Phase = "done"

	// PhaseFailed indicates the turn ended with an error event.
	PhaseFailed Phase = "failed"
)

// AllPhases returns every phase in lifecycle order.
func AllPhases() []Phase {
	return []Phase{
		PhaseCollectingOpinions,
		PhaseAnalyzing,
		PhaseSynthesizing,
		PhaseReconciling,
		PhaseDone,
		PhaseFailed,
	}
}

// IsTerminal reports whether no transition leaves p.
func (p Phase) IsTerminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

func (p Phase) String() string {
	return string(p)
}

// ValidTransitions is the turn state machine.
var ValidTransitions = map[Phase][]Phase{
	PhaseCollectingOpinions: {PhaseAnalyzing, PhaseFailed},
	PhaseAnalyzing:          {PhaseSynthesizing, PhaseFailed},
	PhaseSynthesizing:       {PhaseReconciling, PhaseFailed},
	PhaseReconciling:        {PhaseDone, PhaseFailed},

	PhaseDone:   {},
	PhaseFailed: {},
}

// CanTransition reports whether from -> to is in ValidTransitions.
func CanTransition(from, to Phase) bool {
	targets, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(targets, to)
}

var (
	// ErrInvalidTransition indicates a transition missing from ValidTransitions.
	ErrInvalidTransition = errors.New("invalid phase transition")

	// ErrTerminalPhase indicates a transition out of done or failed.
	ErrTerminalPhase = errors.New("cannot transition from terminal phase")
)

// TransitionError wraps a rejected transition. It always indicates a bug in
// the orchestrator, never bad input.
type TransitionError struct {
	From Phase
	To   Phase
	Err  error
}

func (e *TransitionError) Error() string {
	return "phase transition from " + string(e.From) + " to " + string(e.To) + " failed: " + e.Err.Error()
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// PhaseTransition records one step of the machine.
type PhaseTransition struct {
	From      Phase     `json:"from,omitempty"`
	To        Phase     `json:"to"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason,omitempty"`
}

// Machine tracks the phase of one turn. It is owned by that turn's goroutine
// and is not safe for concurrent use.
type Machine struct {
	current  Phase
	history  []PhaseTransition
	now      func() time.Time
	onChange []func(from, to Phase)
}

// NewMachine starts a machine in PhaseCollectingOpinions. A nil clock uses
// time.Now.
func NewMachine(now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	m := &Machine{current: PhaseCollectingOpinions, now: now}
	m.history = append(m.history, PhaseTransition{To: PhaseCollectingOpinions, Timestamp: now()})
	return m
}

// Current returns the current phase.
func (m *Machine) Current() Phase {
	return m.current
}

// OnChange registers a callback run after every accepted transition.
func (m *Machine) OnChange(fn func(from, to Phase)) {
	m.onChange = append(m.onChange, fn)
}

// TransitionTo moves the machine to phase to.
func (m *Machine) TransitionTo(to Phase, reason string) error {
	from := m.current
	if from.IsTerminal() {
		return &TransitionError{From: from, To: to, Err: ErrTerminalPhase}
	}
	if !CanTransition(from, to) {
		return &TransitionError{From: from, To: to, Err: ErrInvalidTransition}
	}
	m.current = to
	m.history = append(m.history, PhaseTransition{From: from, To: to, Timestamp: m.now(), Reason: reason})
	for _, fn := range m.onChange {
		fn(from, to)
	}
	return nil
}

// Fail moves the machine to PhaseFailed unless it is already terminal.
func (m *Machine) Fail(reason string) {
	if m.current.IsTerminal() {
		return
	}
	_ = m.TransitionTo(PhaseFailed, reason)
}

// History returns a copy of the recorded transitions, the initial entry
// included.
func (m *Machine) History() []PhaseTransition {
	return append([]PhaseTransition(nil), m.history...)
}

// PhaseDuration returns how long the machine spent in p. A phase that is
// still current is measured up to now; a phase never entered yields zero.
func (m *Machine) PhaseDuration(p Phase) time.Duration {
	for i, t := range m.history {
		if t.To != p {
			continue
		}
		if i+1 < len(m.history) {
			return m.history[i+1].Timestamp.Sub(t.Timestamp)
		}
		if p.IsTerminal() {
			return 0
		}
		return m.now().Sub(t.Timestamp)
	}
	return 0
}

// Elapsed returns the time from the first transition to the latest one.
func (m *Machine) Elapsed() time.Duration {
	if len(m.history) == 0 {
		return 0
	}
	return m.history[len(m.history)-1].Timestamp.Sub(m.history[0].Timestamp)
}
