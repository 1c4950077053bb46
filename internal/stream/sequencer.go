package stream

import (
	"context"
	"errors"
	"sync"
)

// ErrTerminated is returned when an event is sent after the terminal event.
var ErrTerminated = errors.New("stream already terminated")

// Sequencer serializes events to a Sink and enforces the terminal invariant:
// exactly one done or error event ends the stream, and nothing passes after
// it. The turn runner is the single producer, but the mutex keeps misuse from
// corrupting the stream.
type Sequencer struct {
	mu         sync.Mutex
	sink       Sink
	terminated bool
}

// NewSequencer wraps sink.
func NewSequencer(sink Sink) *Sequencer {
	return &Sequencer{sink: sink}
}

// Send forwards a non-terminal event. Terminal events must go through Done or
// Fail; Send rejects them so a stray producer cannot close the stream twice.
func (s *Sequencer) Send(ctx context.Context, ev Event) error {
	if ev.Type.Terminal() {
		return errors.New("terminal events must be sent via Done or Fail")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return ErrTerminated
	}
	return s.sink.Send(ctx, ev)
}

// Done emits the success terminal and closes the stream.
func (s *Sequencer) Done(ctx context.Context, conversationID, title string) error {
	return s.terminate(ctx, Done(conversationID, title))
}

// Fail emits the failure terminal and closes the stream.
func (s *Sequencer) Fail(ctx context.Context, code, message string) error {
	return s.terminate(ctx, Fail(code, message))
}

func (s *Sequencer) terminate(ctx context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return ErrTerminated
	}
	s.terminated = true
	return s.sink.Send(ctx, ev)
}

// Terminated reports whether the terminal event has been emitted.
func (s *Sequencer) Terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminated
}
