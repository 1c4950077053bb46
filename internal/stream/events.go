// Package stream defines the typed event sequence emitted during a turn.
//
// A turn produces an ordered stream: zero or more text-delta, tool-call-start,
// tool-call-result, and artifact events, closed by exactly one terminal event
// (done or error). Sequencer enforces the terminal invariant; Sink abstracts
// the transport (SSE response, flow callback, stdout).
package stream

import "encoding/json"

// EventType identifies the kind of a stream event.
type EventType string

const (
	TypeTextDelta      EventType = "text-delta"
	TypeToolCallStart  EventType = "tool-call-start"
	TypeToolCallResult EventType = "tool-call-result"
	TypeArtifact       EventType = "artifact"
	TypeDone           EventType = "done"
	TypeError          EventType = "error"
)

// Terminal reports whether t closes the stream.
func (t EventType) Terminal() bool {
	return t == TypeDone || t == TypeError
}

// Error codes carried by error events.
const (
	CodeValidation         = "validation_error"
	CodeBackendUnavailable = "backend_unavailable"
	CodePermission         = "permission_error"
	CodeNotFound           = "not_found"
	CodeCanceled           = "canceled"
	CodeInternal           = "internal"
)

// Event is one element of the turn stream. Payload fields are populated
// according to Type; unused fields stay empty and are omitted on the wire.
type Event struct {
	Type EventType `json:"type"`

	// Text carries incremental model output for text-delta events.
	Text string `json:"text,omitempty"`

	// Tool carries call details for tool-call-start and tool-call-result.
	Tool *ToolCall `json:"tool,omitempty"`

	// Artifact carries structured output for artifact events.
	Artifact *Artifact `json:"artifact,omitempty"`

	// ConversationID and Title identify the persisted conversation on done.
	ConversationID string `json:"conversation_id,omitempty"`
	Title          string `json:"title,omitempty"`

	// Error describes the failure on error events.
	Error *ErrorInfo `json:"error,omitempty"`
}

// ToolCall describes one tool invocation. ID correlates the start event with
// its result.
type ToolCall struct {
	ID     string          `json:"id,omitempty"`
	Name   string          `json:"name"`
	Args   json.RawMessage `json:"args,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Artifact is a structured payload rendered by the client, such as an issue
// result table.
type Artifact struct {
	Kind  string          `json:"kind"`
	Title string          `json:"title,omitempty"`
	Data  json.RawMessage `json:"data"`
}

// ErrorInfo is the machine-readable failure payload of an error event.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TextDelta builds a text-delta event.
func TextDelta(text string) Event {
	return Event{Type: TypeTextDelta, Text: text}
}

// ToolCallStart builds a tool-call-start event.
func ToolCallStart(id, name string, args json.RawMessage) Event {
	return Event{Type: TypeToolCallStart, Tool: &ToolCall{ID: id, Name: name, Args: args}}
}

// ToolCallResult builds a tool-call-result event. errMsg is empty on success.
func ToolCallResult(id, name string, result json.RawMessage, errMsg string) Event {
	return Event{Type: TypeToolCallResult, Tool: &ToolCall{ID: id, Name: name, Result: result, Error: errMsg}}
}

// NewArtifact builds an artifact event.
func NewArtifact(kind, title string, data json.RawMessage) Event {
	return Event{Type: TypeArtifact, Artifact: &Artifact{Kind: kind, Title: title, Data: data}}
}

// Done builds the success terminal event.
func Done(conversationID, title string) Event {
	return Event{Type: TypeDone, ConversationID: conversationID, Title: title}
}

// Fail builds the failure terminal event.
func Fail(code, message string) Event {
	return Event{Type: TypeError, Error: &ErrorInfo{Code: code, Message: message}}
}
