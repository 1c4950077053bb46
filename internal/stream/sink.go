package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Sink receives turn events in order. Implementations are not required to be
// safe for concurrent use; the Sequencer serializes sends.
type Sink interface {
	Send(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, ev Event) error

// Send calls f.
func (f SinkFunc) Send(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Discard drops every event. Useful when a caller wants the turn side effects
// without the stream.
var Discard Sink = SinkFunc(func(context.Context, Event) error { return nil })

// WriterSink writes events as JSON lines. The ask command uses it to put the
// turn stream on stdout.
func WriterSink(w io.Writer) Sink {
	enc := json.NewEncoder(w)
	return SinkFunc(func(_ context.Context, ev Event) error {
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("encoding stream event: %w", err)
		}
		return nil
	})
}

// Recorder is a Sink that captures events for inspection in tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Send appends ev to the recorded sequence.
func (r *Recorder) Send(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded sequence.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}
