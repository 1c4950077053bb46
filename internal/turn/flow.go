package turn

import (
	"context"

	"github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/genkit"

	"github.com/docketbot/docket/internal/stream"
)

// FlowName is the name the turn flow registers under in Genkit. The dev UI
// and the flow API address it by this name.
const FlowName = "docket/turn"

// LocalUser is the user id for single-user entry points such as the ask
// command and the MCP server.
const LocalUser = "local"

// FlowInput is the request payload of the turn flow.
type FlowInput struct {
	Query          string `json:"query" jsonschema_description:"Question to answer"`
	UserID         string `json:"user_id,omitempty" jsonschema_description:"Caller identity; defaults to the local user"`
	ConversationID string `json:"conversation_id,omitempty" jsonschema_description:"Existing conversation to continue"`
	ModeID         string `json:"mode_id,omitempty" jsonschema_description:"Mode override; skips classification"`
}

// FlowOutput is the final payload of the turn flow.
type FlowOutput struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
	Title          string `json:"title"`
	Mode           string `json:"mode"`
}

// Flow is the turn flow type.
type Flow = core.Flow[FlowInput, FlowOutput, stream.Event]

// DefineFlow registers the turn flow on g. Stream chunks are the same typed
// events the SSE endpoint emits, so flow callers see the identical sequence.
func (r *Runner) DefineFlow(g *genkit.Genkit) *Flow {
	return genkit.DefineStreamingFlow(g, FlowName,
		func(ctx context.Context, input FlowInput, cb func(context.Context, stream.Event) error) (FlowOutput, error) {
			sink := stream.Discard
			if cb != nil {
				sink = stream.SinkFunc(cb)
			}

			userID := input.UserID
			if userID == "" {
				userID = LocalUser
			}

			outcome, err := r.Run(ctx, Request{
				UserID:         userID,
				ConversationID: input.ConversationID,
				ModeID:         input.ModeID,
				Input:          input.Query,
			}, sink)
			if err != nil {
				return FlowOutput{}, err
			}

			return FlowOutput{
				Response:       outcome.FinalText,
				ConversationID: outcome.ConversationID,
				Title:          outcome.Title,
				Mode:           outcome.Mode,
			}, nil
		})
}
