// Package tools defines the agent-facing search tools: their schemas,
// Genkit registration, and the dispatcher the turn loop uses to execute
// tool requests it receives from the model.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/docketbot/docket/internal/log"
	"github.com/docketbot/docket/internal/search"
)

// Tool names visible to the model.
const (
	StructuredSearchName = "structured_search"
	SemanticSearchName   = "semantic_search"
)

// PreferSemanticMessage steers the model away from a failing tracker.
const PreferSemanticMessage = "Structured search is unavailable. Prefer the semantic_search tool for follow-up lookups."

// Kit owns the search tools and their shared gateway.
type Kit struct {
	gateway *search.Gateway
	logger  log.Logger
}

// NewKit creates a tool kit over the search gateway.
func NewKit(gateway *search.Gateway, logger log.Logger) (*Kit, error) {
	if gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Kit{
		gateway: gateway,
		logger:  logger.With("component", "tools"),
	}, nil
}

// Register defines both search tools on g and returns their references
// for Generate calls.
func (k *Kit) Register(g *genkit.Genkit) []ai.ToolRef {
	structured := genkit.DefineTool(g, StructuredSearchName,
		"Search the issue tracker with a JQL query. "+
			"Use this for precise filters on project, status, assignee, labels, or dates. "+
			"Example: project = DS AND status = Open AND assignee = \"Jane Doe\". "+
			"Returns: matching issues with key, summary, status, assignee, and URL.",
		func(ctx *ai.ToolContext, args SearchArgs) (Result, error) {
			return k.StructuredSearch(ctx, args), nil
		})

	semantic := genkit.DefineTool(g, SemanticSearchName,
		"Search issues by meaning using the vector index. "+
			"Use this for fuzzy or descriptive queries where exact filters are unknown, "+
			"or when structured search is unavailable. "+
			"Example: crashes when exporting large reports. "+
			"Returns: the closest matching issues.",
		func(ctx *ai.ToolContext, args SearchArgs) (Result, error) {
			return k.SemanticSearch(ctx, args), nil
		})

	return []ai.ToolRef{structured, semantic}
}

// StructuredSearch executes the structured_search tool.
func (k *Kit) StructuredSearch(ctx context.Context, args SearchArgs) Result {
	k.logger.Info("structured_search called", "query", args.Query, "limit", args.Limit)

	if res, ok := validateArgs(args); !ok {
		return res
	}
	return fromStructured(k.gateway.Structured(ctx, args.Query, args.Limit))
}

// SemanticSearch executes the semantic_search tool.
func (k *Kit) SemanticSearch(ctx context.Context, args SearchArgs) Result {
	k.logger.Info("semantic_search called", "query", args.Query, "limit", args.Limit)

	if res, ok := validateArgs(args); !ok {
		return res
	}
	return fromSemantic(k.gateway.Semantic(ctx, search.SemanticQuery{Text: args.Query, Limit: args.Limit}))
}

// Dispatch executes a tool request received from the model. Raw
// arguments go through a JSON round-trip into SearchArgs, so malformed
// input becomes a ValidationError result instead of a dropped turn.
func (k *Kit) Dispatch(ctx context.Context, name string, rawArgs any) Result {
	args, err := decodeArgs(rawArgs)
	if err != nil {
		return Result{
			Status: StatusError,
			Error:  &Error{Code: ErrCodeValidation, Message: fmt.Sprintf("invalid tool arguments: %v", err)},
		}
	}

	switch name {
	case StructuredSearchName:
		return k.StructuredSearch(ctx, args)
	case SemanticSearchName:
		return k.SemanticSearch(ctx, args)
	default:
		return Result{
			Status: StatusError,
			Error:  &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("unknown tool: %q", name)},
		}
	}
}

// decodeArgs converts the model's raw arguments (usually
// map[string]any) into SearchArgs, mirroring how the framework itself
// validates tool input.
func decodeArgs(raw any) (SearchArgs, error) {
	if args, ok := raw.(SearchArgs); ok {
		return args, nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return SearchArgs{}, fmt.Errorf("marshal arguments: %w", err)
	}
	var args SearchArgs
	if err := json.Unmarshal(data, &args); err != nil {
		return SearchArgs{}, fmt.Errorf("unmarshal arguments: %w", err)
	}
	return args, nil
}

func validateArgs(args SearchArgs) (Result, bool) {
	if strings.TrimSpace(args.Query) == "" {
		return Result{
			Status: StatusError,
			Error:  &Error{Code: ErrCodeValidation, Message: "query must not be empty"},
		}, false
	}
	if args.Limit < 0 {
		return Result{
			Status: StatusError,
			Error:  &Error{Code: ErrCodeValidation, Message: "limit must not be negative"},
		}, false
	}
	return Result{}, true
}

// fromStructured folds a gateway result into the tool envelope. Any
// structured failure, including one the semantic fallback absorbed,
// tells the model to prefer semantic_search from here on.
func fromStructured(res search.Result) Result {
	if res.Error != "" {
		return Result{
			Status:  StatusError,
			Message: PreferSemanticMessage,
			Error:   &Error{Code: classifyFailure(res.Error), Message: res.Error},
		}
	}

	out := Result{Status: StatusSuccess, Data: res}
	if res.Source == search.SourceSemantic {
		out.Message = PreferSemanticMessage
	}
	return out
}

func fromSemantic(res search.Result) Result {
	if res.Error != "" {
		return Result{
			Status: StatusError,
			Error:  &Error{Code: classifyFailure(res.Error), Message: res.Error},
		}
	}
	return Result{Status: StatusSuccess, Data: res}
}

// classifyFailure maps a gateway error message onto an ErrorCode.
func classifyFailure(msg string) ErrorCode {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "unavailable") ||
		strings.Contains(lower, "not configured") ||
		strings.Contains(lower, "circuit") ||
		strings.Contains(lower, "timeout"):
		return ErrCodeBackend
	case strings.Contains(lower, "permission") ||
		strings.Contains(lower, "forbidden") ||
		strings.Contains(lower, "401") ||
		strings.Contains(lower, "403"):
		return ErrCodePermission
	case strings.Contains(lower, "not found") || strings.Contains(lower, "404"):
		return ErrCodeNotFound
	case strings.Contains(lower, "invalid") || strings.Contains(lower, "must not"):
		return ErrCodeValidation
	default:
		return ErrCodeBackend
	}
}
