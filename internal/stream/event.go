// Package stream encodes turn events for long-lived client connections and
// repairs growing JSON prefixes produced by a streaming upstream call.
package stream

import "encoding/json"

// Type discriminates outbound events.
type Type string

// Event types, in the order they may appear within a turn.
const (
	TypeWarning      Type = "warning"
	TypeOpinion      Type = "opinion"
	TypeSynthesizing Type = "synthesizing"
	TypeDiscussion   Type = "discussion"
	TypeFinal        Type = "final"
	TypeError        Type = "error"
	// TypeDone is the sentinel frame type used by frame transports.
	TypeDone Type = "done"
)

// Terminal reports whether no further events follow an event of this type.
func (t Type) Terminal() bool {
	switch t {
	case TypeFinal, TypeError, TypeWarning, TypeDone:
		return true
	}
	return false
}

// Event is one outbound message.
type Event struct {
	Type Type `json:"type"`
	Data any  `json:"data,omitempty"`
}

// Decoded is an Event read back from the wire with its payload left raw.
type Decoded struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Emitter delivers events to one client. Send returns
// errors.ErrTransportClosed once the transport is closed; callers treat that
// as a signal to stop, not as a failure.
type Emitter interface {
	Send(Event) error
	// Close writes the end-of-stream sentinel once and marks the emitter closed.
	Close() error
	Closed() bool
}
