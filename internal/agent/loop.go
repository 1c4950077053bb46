package agent

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/firebase/genkit/go/ai"

	"github.com/docketbot/docket/internal/search"
	"github.com/docketbot/docket/internal/stream"
)

// Request is one turn's input.
type Request struct {
	// System is the rendered mode prompt.
	System string

	// History is the prior conversation. Run copies it before use.
	History []*ai.Message

	// Input is the user's question.
	Input string
}

// Run executes the loop, emitting events on sink as parts become available.
// It never sends a terminal event; the caller owns the end of the stream.
//
// The loop alternates model calls and tool rounds. While under the step cap
// the model sees the search tools and genkit hands its tool requests back
// instead of auto-running them; requests are dispatched here, sequentially,
// so every invocation is streamed and recorded. At the cap the final call
// runs without tools, forcing an answer from what was gathered.
func (a *Agent) Run(ctx context.Context, req Request, sink stream.Sink) (*Result, error) {
	msgs := deepCopyMessages(req.History)
	msgs = append(msgs, ai.NewUserMessage(ai.NewTextPart(req.Input)))

	steps := 0
	calls := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		atCap := steps >= a.maxSteps
		if atCap {
			a.logger.Info("step cap reached, forcing final answer",
				"steps", steps, "tool_calls", calls)
		}

		resp, streamed, err := a.generateStep(ctx, req.System, msgs, !atCap, sink)
		if err != nil {
			return nil, err
		}

		requests := resp.ToolRequests()
		text := resp.Text()

		// Providers that do not stream still get their text delivered.
		if !streamed && text != "" {
			if err := sink.Send(ctx, stream.TextDelta(text)); err != nil {
				return nil, err
			}
		}

		if atCap || len(requests) == 0 {
			a.logger.Debug("turn finished",
				"steps", steps, "tool_calls", calls, "forced", atCap)
			return &Result{FinalText: text, Steps: steps}, nil
		}

		steps++
		msgs = append(msgs, resp.Message)

		responses := make([]*ai.Part, 0, len(requests))
		for _, tr := range requests {
			// A cancel between tool calls ends the turn before the
			// next backend request goes out.
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			calls++
			callID := tr.Ref
			if callID == "" {
				callID = "call-" + strconv.Itoa(calls)
			}

			args, err := json.Marshal(tr.Input)
			if err != nil {
				args = nil
			}
			if err := sink.Send(ctx, stream.ToolCallStart(callID, tr.Name, args)); err != nil {
				return nil, err
			}

			result := a.dispatch.Dispatch(ctx, tr.Name, tr.Input)

			payload, err := json.Marshal(result)
			if err != nil {
				payload = nil
			}
			var errMsg string
			if result.Error != nil {
				errMsg = result.Error.Message
			}
			if err := sink.Send(ctx, stream.ToolCallResult(callID, tr.Name, payload, errMsg)); err != nil {
				return nil, err
			}

			if artifact := issueArtifact(result.Data); artifact != nil {
				if err := sink.Send(ctx, *artifact); err != nil {
					return nil, err
				}
			}

			responses = append(responses, ai.NewToolResponsePart(&ai.ToolResponse{
				Name:   tr.Name,
				Ref:    tr.Ref, // correlation with the request
				Output: result,
			}))
		}
		msgs = append(msgs, &ai.Message{Role: ai.RoleTool, Content: responses})

		a.logger.Debug("completed tool round", "step", steps, "requests", len(requests))
	}
}

// generateStep runs one model call. withTools advertises the search tools
// and asks genkit to return tool requests instead of executing them.
func (a *Agent) generateStep(ctx context.Context, system string, msgs []*ai.Message, withTools bool, sink stream.Sink) (resp *ai.ModelResponse, streamed bool, err error) {
	cb := func(cbCtx context.Context, chunk *ai.ModelResponseChunk) error {
		text := chunk.Text()
		if text == "" {
			return nil
		}
		streamed = true
		return sink.Send(cbCtx, stream.TextDelta(text))
	}

	opts := []ai.GenerateOption{
		ai.WithMessages(msgs...),
		ai.WithStreaming(cb),
	}
	if system != "" {
		opts = append(opts, ai.WithSystem(system))
	}
	if withTools {
		opts = append(opts, ai.WithTools(a.toolRefs...), ai.WithReturnToolRequests(true))
	}

	resp, err = a.callModel(ctx, opts)
	return resp, streamed, err
}

// issueArtifact turns a successful search result into an issue-table
// artifact, when it holds any issues.
func issueArtifact(data any) *stream.Event {
	res, ok := data.(search.Result)
	if !ok || res.Count == 0 {
		return nil
	}
	payload, err := json.Marshal(res.Issues)
	if err != nil {
		return nil
	}
	event := stream.NewArtifact("issue-table", res.Note, payload)
	return &event
}
