package testutil

import (
	"bufio"
	"strings"
	"testing"
)

// SSEEvent is one parsed server-sent event.
type SSEEvent struct {
	Type string
	Data string // data lines joined with \n
}

// ParseSSE parses a raw SSE response body into events. Comment lines are
// skipped; a data line without a preceding event line gets the spec default
// type "message".
func ParseSSE(t *testing.T, body string) []SSEEvent {
	t.Helper()

	var (
		events  []SSEEvent
		current SSEEvent
		data    []string
		open    bool
	)

	flush := func() {
		if !open {
			return
		}
		current.Data = strings.Join(data, "\n")
		events = append(events, current)
		current = SSEEvent{}
		data = nil
		open = false
	}

	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, ":"):
			// Comment or keep-alive.
		case strings.HasPrefix(line, "event:"):
			current.Type = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			open = true
		case strings.HasPrefix(line, "data:"):
			if current.Type == "" {
				current.Type = "message"
			}
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			open = true
		default:
			t.Fatalf("unexpected SSE line: %q", line)
		}
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scanning SSE body: %v", err)
	}
	if open {
		t.Fatalf("SSE stream ended inside event %q (missing blank line)", current.Type)
	}
	return events
}

// FindEvent returns the first event of the given type, or nil.
func FindEvent(events []SSEEvent, typ string) *SSEEvent {
	for i := range events {
		if events[i].Type == typ {
			return &events[i]
		}
	}
	return nil
}

// FindAllEvents returns every event of the given type, in order.
func FindAllEvents(events []SSEEvent, typ string) []SSEEvent {
	var out []SSEEvent
	for _, ev := range events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}
