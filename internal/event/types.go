package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a "category.action" identifier, e.g. "turn.completed".
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeTurnStarted   = "turn.started"
	TypePhaseChanged  = "turn.phase"
	TypeTurnCompleted = "turn.completed"
	TypeTurnFailed    = "turn.failed"
	TypeTurnRejected  = "turn.rejected"
	TypeUpstreamRetry = "upstream.retry"
	TypeAgentFailed   = "agent.failed"
	TypeConfigReload  = "config.reloaded"
)

type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Turn Lifecycle Events
// -----------------------------------------------------------------------------

// TurnStartedEvent is emitted when a turn passes the relevance check.
type TurnStartedEvent struct {
	baseEvent
	TurnID    string
	SessionID string
	Turn      int
	Personas  []string
	Level     string
}

// NewTurnStartedEvent creates a TurnStartedEvent.
func NewTurnStartedEvent(turnID, sessionID string, turn int, personas []string, level string) TurnStartedEvent {
	return TurnStartedEvent{
		baseEvent: newBaseEvent(TypeTurnStarted),
		TurnID:    turnID,
		SessionID: sessionID,
		Turn:      turn,
		Personas:  personas,
		Level:     level,
	}
}

// PhaseChangedEvent is emitted on every turn phase transition.
type PhaseChangedEvent struct {
	baseEvent
	TurnID string
	From   string
	To     string
}

// NewPhaseChangedEvent creates a PhaseChangedEvent.
func NewPhaseChangedEvent(turnID, from, to string) PhaseChangedEvent {
	return PhaseChangedEvent{
		baseEvent: newBaseEvent(TypePhaseChanged),
		TurnID:    turnID,
		From:      from,
		To:        to,
	}
}

// TurnCompletedEvent is emitted after the final result is delivered.
type TurnCompletedEvent struct {
	baseEvent
	TurnID     string
	SessionID  string
	Turn       int
	TotalScore int
	Degraded   bool
	Duration   time.Duration
}

// NewTurnCompletedEvent creates a TurnCompletedEvent.
func NewTurnCompletedEvent(turnID, sessionID string, turn, total int, degraded bool, d time.Duration) TurnCompletedEvent {
	return TurnCompletedEvent{
		baseEvent:  newBaseEvent(TypeTurnCompleted),
		TurnID:     turnID,
		SessionID:  sessionID,
		Turn:       turn,
		TotalScore: total,
		Degraded:   degraded,
		Duration:   d,
	}
}

// TurnFailedEvent is emitted when a turn ends with an error event.
type TurnFailedEvent struct {
	baseEvent
	TurnID    string
	SessionID string
	Phase     string
	Err       error
}

// NewTurnFailedEvent creates a TurnFailedEvent.
func NewTurnFailedEvent(turnID, sessionID, phase string, err error) TurnFailedEvent {
	return TurnFailedEvent{
		baseEvent: newBaseEvent(TypeTurnFailed),
		TurnID:    turnID,
		SessionID: sessionID,
		Phase:     phase,
		Err:       err,
	}
}

// TurnRejectedEvent is emitted when the relevance check refuses the input.
type TurnRejectedEvent struct {
	baseEvent
	SessionID string
	Reason    string
}

// NewTurnRejectedEvent creates a TurnRejectedEvent.
func NewTurnRejectedEvent(sessionID, reason string) TurnRejectedEvent {
	return TurnRejectedEvent{
		baseEvent: newBaseEvent(TypeTurnRejected),
		SessionID: sessionID,
		Reason:    reason,
	}
}

// -----------------------------------------------------------------------------
// Upstream Events
// -----------------------------------------------------------------------------

// UpstreamRetryEvent is emitted before sleeping between rate-limited attempts.
type UpstreamRetryEvent struct {
	baseEvent
	Call    string
	Attempt int
	Delay   time.Duration
}

// NewUpstreamRetryEvent creates an UpstreamRetryEvent.
func NewUpstreamRetryEvent(call string, attempt int, delay time.Duration) UpstreamRetryEvent {
	return UpstreamRetryEvent{
		baseEvent: newBaseEvent(TypeUpstreamRetry),
		Call:      call,
		Attempt:   attempt,
		Delay:     delay,
	}
}

// AgentFailedEvent is emitted when one analysis agent fails and the turn
// continues without it.
type AgentFailedEvent struct {
	baseEvent
	TurnID string
	Role   string
	Err    error
}

// NewAgentFailedEvent creates an AgentFailedEvent.
func NewAgentFailedEvent(turnID, role string, err error) AgentFailedEvent {
	return AgentFailedEvent{
		baseEvent: newBaseEvent(TypeAgentFailed),
		TurnID:    turnID,
		Role:      role,
		Err:       err,
	}
}

// -----------------------------------------------------------------------------
// Runtime Events
// -----------------------------------------------------------------------------

// ConfigReloadedEvent is emitted when the config file changes on disk and
// the new values pass validation.
type ConfigReloadedEvent struct {
	baseEvent
	Path string
}

// NewConfigReloadedEvent creates a ConfigReloadedEvent.
func NewConfigReloadedEvent(path string) ConfigReloadedEvent {
	return ConfigReloadedEvent{
		baseEvent: newBaseEvent(TypeConfigReload),
		Path:      path,
	}
}
