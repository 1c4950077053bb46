// Package conversation persists chat history as whole documents keyed by
// owner. Each conversation carries its messages as a single JSONB array and
// saves are last-write-wins: the turn runner rewrites the full document when
// a turn completes.
package conversation

import (
	"bytes"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/docketbot/docket/internal/stream"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Part types. A message is an ordered sequence of parts: plain text, tool
// invocations with their results, and structured artifacts.
const (
	PartText     = "text"
	PartTool     = "tool"
	PartArtifact = "artifact"
)

// Part is one element of a message. Exactly one payload field is set,
// according to Type.
type Part struct {
	Type     string           `json:"type"`
	Text     string           `json:"text,omitempty"`
	Tool     *stream.ToolCall `json:"tool,omitempty"`
	Artifact *stream.Artifact `json:"artifact,omitempty"`
}

// TextPart builds a text part.
func TextPart(text string) Part {
	return Part{Type: PartText, Text: text}
}

// ToolPart builds a tool part recording one completed invocation.
func ToolPart(call *stream.ToolCall) Part {
	return Part{Type: PartTool, Tool: call}
}

// ArtifactPart builds an artifact part.
func ArtifactPart(artifact *stream.Artifact) Part {
	return Part{Type: PartArtifact, Artifact: artifact}
}

// Message is one turn contribution. Error is set when the producing turn
// failed after emitting some parts; the parts are kept so partial output
// survives the failure.
type Message struct {
	Role      string    `json:"role"`
	Parts     []Part    `json:"parts"`
	CreatedAt time.Time `json:"created_at"`
	Error     string    `json:"error,omitempty"`
}

// UserMessage builds a user message with a single text part.
func UserMessage(text string) Message {
	return Message{
		Role:      RoleUser,
		Parts:     []Part{TextPart(text)},
		CreatedAt: time.Now().UTC(),
	}
}

// AssistantMessage builds an assistant message from produced parts.
func AssistantMessage(parts ...Part) Message {
	return Message{
		Role:      RoleAssistant,
		Parts:     parts,
		CreatedAt: time.Now().UTC(),
	}
}

// Text returns the message's text parts concatenated in order.
func (m Message) Text() string {
	var b bytes.Buffer
	for _, p := range m.Parts {
		if p.Type == PartText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

func (m Message) clone() Message {
	out := m
	out.Parts = make([]Part, len(m.Parts))
	for i, p := range m.Parts {
		out.Parts[i] = clonePart(p)
	}
	return out
}

func clonePart(p Part) Part {
	out := Part{Type: p.Type, Text: p.Text}
	if p.Tool != nil {
		tool := *p.Tool
		tool.Args = bytes.Clone(p.Tool.Args)
		tool.Result = bytes.Clone(p.Tool.Result)
		out.Tool = &tool
	}
	if p.Artifact != nil {
		artifact := *p.Artifact
		artifact.Data = bytes.Clone(p.Artifact.Data)
		out.Artifact = &artifact
	}
	return out
}

// Conversation is the full stored document.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates an empty conversation owned by userID.
func New(userID string) *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     DefaultTitle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy, so callers can mutate the result without
// affecting the stored document.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	out := *c
	out.Messages = make([]Message, len(c.Messages))
	for i, m := range c.Messages {
		out.Messages[i] = m.clone()
	}
	return &out
}

// Metadata is the listing view of a conversation, without its messages.
type Metadata struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// History renders stored messages as model history for a new turn. Tool and
// artifact parts are omitted: a completed turn already carries its outcome
// in text, and replaying stale tool traffic only confuses the model.
func History(msgs []Message) []*ai.Message {
	out := make([]*ai.Message, 0, len(msgs))
	for _, m := range msgs {
		text := m.Text()
		if text == "" {
			continue
		}
		switch m.Role {
		case RoleUser:
			out = append(out, ai.NewUserMessage(ai.NewTextPart(text)))
		case RoleAssistant:
			out = append(out, ai.NewModelMessage(ai.NewTextPart(text)))
		}
	}
	return out
}
