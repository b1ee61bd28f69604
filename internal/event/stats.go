package event

import (
	"sync"
	"time"

	"github.com/Iron-Ham/ideaforge/internal/logging"
)

// Snapshot is a point-in-time copy of Stats counters.
type Snapshot struct {
	Started      int           `json:"started"`
	Completed    int           `json:"completed"`
	Degraded     int           `json:"degraded"`
	Failed       int           `json:"failed"`
	Rejected     int           `json:"rejected"`
	Retries      int           `json:"retries"`
	AgentErrors  int           `json:"agentErrors"`
	LastDuration time.Duration `json:"lastDurationNs"`
}

// Stats counts turn outcomes published on a Bus.
type Stats struct {
	mu   sync.Mutex
	snap Snapshot
}

// Attach subscribes s to every event on bus and returns the subscription ID.
func (s *Stats) Attach(bus *Bus) string {
	return bus.SubscribeAll(s.handle)
}

func (s *Stats) handle(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev := e.(type) {
	case TurnStartedEvent:
		s.snap.Started++
	case TurnCompletedEvent:
		s.snap.Completed++
		if ev.Degraded {
			s.snap.Degraded++
		}
		s.snap.LastDuration = ev.Duration
	case TurnFailedEvent:
		s.snap.Failed++
	case TurnRejectedEvent:
		s.snap.Rejected++
	case UpstreamRetryEvent:
		s.snap.Retries++
	case AgentFailedEvent:
		s.snap.AgentErrors++
	}
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// LogEvents subscribes a handler that writes every event to logger.
func LogEvents(bus *Bus, logger *logging.Logger) string {
	return bus.SubscribeAll(func(e Event) {
		switch ev := e.(type) {
		case TurnStartedEvent:
			logger.Info("turn started", "turn_id", ev.TurnID, "session_id", ev.SessionID,
				"turn", ev.Turn, "personas", ev.Personas, "level", ev.Level)
		case PhaseChangedEvent:
			logger.Debug("turn phase", "turn_id", ev.TurnID, "from", ev.From, "to", ev.To)
		case TurnCompletedEvent:
			logger.Info("turn completed", "turn_id", ev.TurnID, "session_id", ev.SessionID,
				"total", ev.TotalScore, "degraded", ev.Degraded, "duration_ms", ev.Duration.Milliseconds())
		case TurnFailedEvent:
			logger.Error("turn failed", "turn_id", ev.TurnID, "session_id", ev.SessionID,
				"phase", ev.Phase, "error", ev.Err)
		case TurnRejectedEvent:
			logger.Info("turn rejected", "session_id", ev.SessionID, "reason", ev.Reason)
		case UpstreamRetryEvent:
			logger.Warn("rate limited, retrying", "call", ev.Call, "attempt", ev.Attempt,
				"delay_ms", ev.Delay.Milliseconds())
		case AgentFailedEvent:
			logger.Warn("analysis agent failed", "turn_id", ev.TurnID, "role", ev.Role, "error", ev.Err)
		case ConfigReloadedEvent:
			logger.Info("config reloaded", "path", ev.Path)
		default:
			logger.Debug("event", "type", e.EventType())
		}
	})
}
