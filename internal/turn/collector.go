package turn

import (
	"bytes"
	"context"
	"sync"

	"github.com/docketbot/docket/internal/conversation"
	"github.com/docketbot/docket/internal/stream"
)

// collector tees events to an inner sink while accumulating them as
// conversation parts, so whatever reached the client also reaches the
// store, even when the turn dies halfway.
type collector struct {
	inner stream.Sink

	mu      sync.Mutex
	parts   []conversation.Part
	pending map[string]int // tool call id -> index into parts
}

func newCollector(inner stream.Sink) *collector {
	return &collector{inner: inner, pending: make(map[string]int)}
}

// Send records ev and forwards it. Consecutive text deltas coalesce into one
// text part; tool results attach to the part their start event opened.
func (c *collector) Send(ctx context.Context, ev stream.Event) error {
	c.mu.Lock()
	switch ev.Type {
	case stream.TypeTextDelta:
		if n := len(c.parts); n > 0 && c.parts[n-1].Type == conversation.PartText {
			c.parts[n-1].Text += ev.Text
		} else {
			c.parts = append(c.parts, conversation.TextPart(ev.Text))
		}

	case stream.TypeToolCallStart:
		if ev.Tool != nil {
			tool := *ev.Tool
			tool.Args = bytes.Clone(ev.Tool.Args)
			c.pending[tool.ID] = len(c.parts)
			c.parts = append(c.parts, conversation.ToolPart(&tool))
		}

	case stream.TypeToolCallResult:
		if ev.Tool != nil {
			if idx, ok := c.pending[ev.Tool.ID]; ok {
				tool := c.parts[idx].Tool
				tool.Result = bytes.Clone(ev.Tool.Result)
				tool.Error = ev.Tool.Error
				delete(c.pending, ev.Tool.ID)
			} else {
				// Result without a recorded start; keep it anyway.
				tool := *ev.Tool
				tool.Result = bytes.Clone(ev.Tool.Result)
				c.parts = append(c.parts, conversation.ToolPart(&tool))
			}
		}

	case stream.TypeArtifact:
		if ev.Artifact != nil {
			artifact := *ev.Artifact
			artifact.Data = bytes.Clone(ev.Artifact.Data)
			c.parts = append(c.parts, conversation.ArtifactPart(&artifact))
		}
	}
	c.mu.Unlock()

	return c.inner.Send(ctx, ev)
}

// Parts returns the accumulated parts in emission order.
func (c *collector) Parts() []conversation.Part {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]conversation.Part, len(c.parts))
	copy(out, c.parts)
	return out
}
