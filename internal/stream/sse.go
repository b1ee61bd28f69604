package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/Iron-Ham/ideaforge/internal/errors"
)

// SSESentinel terminates an SSE event stream.
const SSESentinel = "data: [DONE]\n\n"

type flusher interface {
	Flush() error
}

// SSEEmitter writes events as server-sent events:
//
//	data: {"type":"opinion","data":{...}}
//
// Each event is flushed immediately when the writer supports Flush() error,
// as the bufio.Writer handed out by fasthttp's body stream writer does.
type SSEEmitter struct {
	mu     sync.Mutex
	w      io.Writer
	closed atomic.Bool
}

// NewSSEEmitter creates an emitter writing to w.
func NewSSEEmitter(w io.Writer) *SSEEmitter {
	return &SSEEmitter{w: w}
}

// Send encodes and writes one event. A write failure marks the emitter
// closed; the failure itself is reported as ErrTransportClosed.
func (e *SSEEmitter) Send(ev Event) error {
	if e.closed.Load() {
		return errors.ErrTransportClosed
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	return e.write("data: " + string(payload) + "\n\n")
}

// Close writes the sentinel and marks the emitter closed. Closing twice is
// a no-op.
func (e *SSEEmitter) Close() error {
	if e.closed.Load() {
		return nil
	}
	err := e.write(SSESentinel)
	e.closed.Store(true)
	if errors.Is(err, errors.ErrTransportClosed) {
		return nil
	}
	return err
}

// Closed reports whether further sends are dropped.
func (e *SSEEmitter) Closed() bool {
	return e.closed.Load()
}

func (e *SSEEmitter) write(s string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := io.WriteString(e.w, s); err != nil {
		e.closed.Store(true)
		return errors.Join(errors.ErrTransportClosed, err)
	}
	if f, ok := e.w.(flusher); ok {
		if err := f.Flush(); err != nil {
			e.closed.Store(true)
			return errors.Join(errors.ErrTransportClosed, err)
		}
	}
	return nil
}
