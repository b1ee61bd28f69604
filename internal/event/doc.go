// Package event provides a pub-sub event bus for turn lifecycle notifications.
//
// The turn orchestrator publishes events as a turn moves through its phases;
// the server and CLI subscribe to log them and keep counters without the
// orchestrator knowing who listens.
//
// # Main Types
//
//   - [Event]: Interface that all events implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub dispatcher, safe for concurrent use
//   - [Handler]: Function type for event handlers (func(Event))
//   - [Stats]: Subscriber that counts turn outcomes
//
// # Event Categories
//
// Turn lifecycle:
//   - [TurnStartedEvent], [PhaseChangedEvent], [TurnCompletedEvent],
//     [TurnFailedEvent], [TurnRejectedEvent]
//
// Upstream:
//   - [UpstreamRetryEvent], [AgentFailedEvent]
//
// Runtime:
//   - [ConfigReloadedEvent]
package event
