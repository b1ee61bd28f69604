package stream

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Iron-Ham/ideaforge/internal/errors"
)

// JSONWriter is the subset of a WebSocket connection FrameEmitter needs.
type JSONWriter interface {
	WriteJSON(v any) error
}

// FrameEmitter writes one JSON frame per event and a {"type":"done"} frame
// on Close.
type FrameEmitter struct {
	mu     sync.Mutex
	w      JSONWriter
	closed atomic.Bool
}

// NewFrameEmitter creates an emitter writing frames to w.
func NewFrameEmitter(w JSONWriter) *FrameEmitter {
	return &FrameEmitter{w: w}
}

// Send writes ev as a single frame.
func (e *FrameEmitter) Send(ev Event) error {
	if e.closed.Load() {
		return errors.ErrTransportClosed
	}
	return e.write(ev)
}

// Close writes the done frame once.
func (e *FrameEmitter) Close() error {
	if e.closed.Load() {
		return nil
	}
	err := e.write(Event{Type: TypeDone})
	e.closed.Store(true)
	if errors.Is(err, errors.ErrTransportClosed) {
		return nil
	}
	return err
}

// Closed reports whether further sends are dropped.
func (e *FrameEmitter) Closed() bool {
	return e.closed.Load()
}

func (e *FrameEmitter) write(ev Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.w.WriteJSON(ev); err != nil {
		e.closed.Store(true)
		return errors.Join(errors.ErrTransportClosed, err)
	}
	return nil
}

// ChanEmitter forwards events to a channel. It is used by in-process
// clients such as the terminal UI. The channel is closed by Close, so the
// consumer can range over it.
type ChanEmitter struct {
	ctx    context.Context
	ch     chan Event
	once   sync.Once
	mu     sync.Mutex
	closed atomic.Bool
}

// NewChanEmitter creates an emitter with the given buffer. Sends block
// while the buffer is full, until ctx is done.
func NewChanEmitter(ctx context.Context, buffer int) *ChanEmitter {
	return &ChanEmitter{ctx: ctx, ch: make(chan Event, buffer)}
}

// Events returns the receive side of the channel.
func (e *ChanEmitter) Events() <-chan Event {
	return e.ch
}

// Send delivers ev or returns ErrTransportClosed if the emitter is closed
// or ctx is done.
func (e *ChanEmitter) Send(ev Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed.Load() {
		return errors.ErrTransportClosed
	}
	select {
	case e.ch <- ev:
		return nil
	case <-e.ctx.Done():
		e.closed.Store(true)
		return errors.Join(errors.ErrTransportClosed, e.ctx.Err())
	}
}

// Close closes the channel. The channel close is the sentinel.
func (e *ChanEmitter) Close() error {
	e.once.Do(func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.closed.Store(true)
		close(e.ch)
	})
	return nil
}

// Closed reports whether further sends are dropped.
func (e *ChanEmitter) Closed() bool {
	return e.closed.Load()
}

// Recorder keeps every event in memory. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	closed bool
	// FailAfter, when positive, makes the Recorder behave like a client that
	// disconnects after that many events.
	FailAfter int
}

// Send records ev.
func (r *Recorder) Send(ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.ErrTransportClosed
	}
	if r.FailAfter > 0 && len(r.events) >= r.FailAfter {
		r.closed = true
		return errors.ErrTransportClosed
	}
	r.events = append(r.events, ev)
	return nil
}

// Close marks the recorder closed.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Closed reports whether Close was called or the simulated disconnect hit.
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Type, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}
