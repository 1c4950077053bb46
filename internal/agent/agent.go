// Package agent runs the bounded tool-calling loop behind a turn. The model
// plans, calls search tools one at a time, reflects on each result, and
// answers; after MaxSteps tool rounds the final generation runs without
// tools so the loop always terminates.
package agent

import (
	"context"
	"errors"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/time/rate"

	"github.com/docketbot/docket/internal/log"
	"github.com/docketbot/docket/internal/tools"
)

// DefaultMaxSteps bounds tool-issuing iterations per turn.
const DefaultMaxSteps = 5

// GenerateFunc produces one model response. Production wires genkit.Generate
// over the configured model; tests inject fakes.
type GenerateFunc func(ctx context.Context, opts ...ai.GenerateOption) (*ai.ModelResponse, error)

// Dispatcher executes a named tool request and returns its envelope.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, args any) tools.Result
}

// Config carries the agent's dependencies.
type Config struct {
	Generate GenerateFunc
	Dispatch Dispatcher
	Tools    []ai.ToolRef // advertised to the model while under the step cap
	Logger   log.Logger

	// MaxSteps caps tool-issuing iterations. Zero means DefaultMaxSteps.
	MaxSteps int

	// RateLimiter throttles model calls across turns (nil = default).
	RateLimiter *rate.Limiter
}

func (cfg Config) validate() error {
	if cfg.Generate == nil {
		return errors.New("generate function is required")
	}
	if cfg.Dispatch == nil {
		return errors.New("tool dispatcher is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Agent is safe for concurrent use; all configuration is captured immutably
// at construction.
type Agent struct {
	generate GenerateFunc
	dispatch Dispatcher
	logger   log.Logger

	maxSteps int
	limiter  *rate.Limiter

	toolRefs  []ai.ToolRef
	toolNames string // cached for logging
}

// New creates an agent with the given configuration.
func New(cfg Config) (*Agent, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	// Default: 10 requests/sec sustained, burst of 30.
	limiter := cfg.RateLimiter
	if limiter == nil {
		limiter = rate.NewLimiter(10, 30)
	}

	names := make([]string, len(cfg.Tools))
	for i, t := range cfg.Tools {
		names[i] = t.Name()
	}

	return &Agent{
		generate:  cfg.Generate,
		dispatch:  cfg.Dispatch,
		logger:    cfg.Logger,
		maxSteps:  maxSteps,
		limiter:   limiter,
		toolRefs:  cfg.Tools,
		toolNames: strings.Join(names, ", "),
	}, nil
}

// Result summarizes a completed run.
type Result struct {
	FinalText string
	Steps     int // tool-issuing iterations used
}

// deepCopyMessages creates independent copies of message and part structs.
// Genkit renders messages in place, so concurrent turns sharing history
// objects would race without the copy.
func deepCopyMessages(msgs []*ai.Message) []*ai.Message {
	if msgs == nil {
		return nil
	}
	copied := make([]*ai.Message, len(msgs))
	for i, msg := range msgs {
		parts := make([]*ai.Part, len(msg.Content))
		for j, part := range msg.Content {
			parts[j] = deepCopyPart(part)
		}
		copied[i] = &ai.Message{
			Role:     msg.Role,
			Content:  parts,
			Metadata: shallowCopyMap(msg.Metadata),
		}
	}
	return copied
}

// deepCopyPart copies an ai.Part. ToolRequest.Input and ToolResponse.Output
// are copied by reference; generation never mutates tool payloads.
func deepCopyPart(p *ai.Part) *ai.Part {
	if p == nil {
		return nil
	}
	cp := &ai.Part{
		Kind:        p.Kind,
		ContentType: p.ContentType,
		Text:        p.Text,
		Custom:      shallowCopyMap(p.Custom),
		Metadata:    shallowCopyMap(p.Metadata),
	}
	if p.ToolRequest != nil {
		cp.ToolRequest = &ai.ToolRequest{
			Input: p.ToolRequest.Input,
			Name:  p.ToolRequest.Name,
			Ref:   p.ToolRequest.Ref,
		}
	}
	if p.ToolResponse != nil {
		cp.ToolResponse = &ai.ToolResponse{
			Name:   p.ToolResponse.Name,
			Output: p.ToolResponse.Output,
			Ref:    p.ToolResponse.Ref,
		}
	}
	return cp
}

// shallowCopyMap copies map keys and values but not nested structures.
func shallowCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
