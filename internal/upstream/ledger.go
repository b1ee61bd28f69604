package upstream

import (
	"sort"
	"sync"

	"github.com/Iron-Ham/ideaforge/internal/errors"
)

// CallState tracks the attempts made for one labelled call.
type CallState struct {
	Call        string `json:"call"`
	Attempts    int    `json:"attempts"`
	MaxAttempts int    `json:"maxAttempts"`
	RateLimited int    `json:"rateLimited"`
	LastError   string `json:"lastError,omitempty"`
	Succeeded   bool   `json:"succeeded,omitempty"`
}

// Exhausted reports whether the call used every attempt without succeeding.
func (s CallState) Exhausted() bool {
	return !s.Succeeded && s.Attempts >= s.MaxAttempts
}

// Ledger records upstream attempts for one turn.
// It is safe for concurrent use, and a nil *Ledger discards everything.
type Ledger struct {
	mu     sync.RWMutex
	states map[string]*CallState
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{states: make(map[string]*CallState)}
}

func (l *Ledger) begin(call string, maxAttempts int) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.states[call]; !ok {
		l.states[call] = &CallState{Call: call}
	}
	l.states[call].MaxAttempts = maxAttempts
}

func (l *Ledger) record(call string, err error) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.states[call]
	if !ok {
		return
	}
	state.Attempts++
	if err == nil {
		state.Succeeded = true
		state.LastError = ""
		return
	}
	if errors.IsRateLimited(err) {
		state.RateLimited++
	}
	state.LastError = err.Error()
}

// State returns a copy of the state for call and whether it exists.
func (l *Ledger) State(call string) (CallState, bool) {
	if l == nil {
		return CallState{}, false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	s, ok := l.states[call]
	if !ok {
		return CallState{}, false
	}
	return *s, true
}

// States returns copies of every call state, sorted by call label.
func (l *Ledger) States() []CallState {
	if l == nil {
		return nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]CallState, 0, len(l.states))
	for _, s := range l.states {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Call < out[j].Call })
	return out
}

// Failed returns the labels of calls that did not succeed.
func (l *Ledger) Failed() []string {
	var failed []string
	for _, s := range l.States() {
		if !s.Succeeded {
			failed = append(failed, s.Call)
		}
	}
	return failed
}

// TotalAttempts returns the number of attempts across every call.
func (l *Ledger) TotalAttempts() int {
	total := 0
	for _, s := range l.States() {
		total += s.Attempts
	}
	return total
}

// Reset clears all recorded state.
func (l *Ledger) Reset() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = make(map[string]*CallState)
}
