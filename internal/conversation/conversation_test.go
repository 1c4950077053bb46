package conversation

import (
	"encoding/json"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/go-cmp/cmp"

	"github.com/docketbot/docket/internal/stream"
)

func TestMessageText(t *testing.T) {
	t.Parallel()

	msg := Message{
		Role: RoleAssistant,
		Parts: []Part{
			TextPart("Found "),
			ToolPart(&stream.ToolCall{Name: "structured_search"}),
			TextPart("three issues."),
			ArtifactPart(&stream.Artifact{Kind: "issue-table", Data: json.RawMessage(`[]`)}),
		},
	}

	if got, want := msg.Text(), "Found three issues."; got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
}

func TestConversationClone(t *testing.T) {
	t.Parallel()

	orig := New("u-1")
	orig.Title = "Bug hunt"
	orig.Messages = []Message{
		UserMessage("find bugs"),
		AssistantMessage(
			TextPart("Searching."),
			ToolPart(&stream.ToolCall{
				ID:   "call-1",
				Name: "structured_search",
				Args: json.RawMessage(`{"query":"project = DS"}`),
			}),
		),
	}

	clone := orig.Clone()
	if diff := cmp.Diff(orig, clone); diff != "" {
		t.Fatalf("clone differs from original (-orig +clone):\n%s", diff)
	}

	clone.Messages[0].Parts[0].Text = "changed"
	clone.Messages[1].Parts[1].Tool.Args[2] = 'X'
	clone.Messages = append(clone.Messages, UserMessage("more"))

	if orig.Messages[0].Parts[0].Text != "find bugs" {
		t.Error("mutating clone text leaked into original")
	}
	if string(orig.Messages[1].Parts[1].Tool.Args) != `{"query":"project = DS"}` {
		t.Error("mutating clone tool args leaked into original")
	}
	if len(orig.Messages) != 2 {
		t.Errorf("original has %d messages, want 2", len(orig.Messages))
	}
}

func TestConversationCloneNil(t *testing.T) {
	t.Parallel()

	var conv *Conversation
	if got := conv.Clone(); got != nil {
		t.Errorf("Clone() of nil = %v, want nil", got)
	}
}

func TestHistory(t *testing.T) {
	t.Parallel()

	msgs := []Message{
		UserMessage("list all bugs in DS"),
		AssistantMessage(
			ToolPart(&stream.ToolCall{Name: "structured_search"}),
			TextPart("There are two open bugs."),
		),
		// Tool-only assistant messages carry no text and are skipped.
		AssistantMessage(ToolPart(&stream.ToolCall{Name: "semantic_search"})),
		UserMessage("who owns them?"),
	}

	history := History(msgs)
	if len(history) != 3 {
		t.Fatalf("History() returned %d messages, want 3", len(history))
	}

	wantRoles := []ai.Role{ai.RoleUser, ai.RoleModel, ai.RoleUser}
	wantTexts := []string{"list all bugs in DS", "There are two open bugs.", "who owns them?"}
	for i, msg := range history {
		if msg.Role != wantRoles[i] {
			t.Errorf("history[%d].Role = %v, want %v", i, msg.Role, wantRoles[i])
		}
		if got := msg.Content[0].Text; got != wantTexts[i] {
			t.Errorf("history[%d] text = %q, want %q", i, got, wantTexts[i])
		}
	}
}

func TestMessageJSONRoundTrip(t *testing.T) {
	t.Parallel()

	orig := AssistantMessage(
		TextPart("Here is what I found."),
		ToolPart(&stream.ToolCall{
			ID:     "call-7",
			Name:   "semantic_search",
			Args:   json.RawMessage(`{"query":"login crash","limit":5}`),
			Result: json.RawMessage(`{"count":1}`),
		}),
		ArtifactPart(&stream.Artifact{
			Kind: "issue-table",
			Data: json.RawMessage(`[{"key":"DS-1"}]`),
		}),
	)
	orig.Error = "canceled"

	raw, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Message
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if diff := cmp.Diff(orig, decoded); diff != "" {
		t.Errorf("round trip changed message (-orig +decoded):\n%s", diff)
	}
}
