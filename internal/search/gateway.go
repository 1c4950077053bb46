package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/docketbot/docket/internal/config"
	"github.com/docketbot/docket/internal/log"
)

// Gateway routes searches across the two backends. Structured queries go
// to the tracker first; when the tracker cannot serve a query, the
// gateway retries once against the vector index, narrowed to the
// assignee the original query was scoped to. Gateway methods never
// return a Go error so callers always have a Result to render.
type Gateway struct {
	structured   StructuredBackend
	semantic     SemanticBackend
	defaultLimit int
	maxLimit     int
	logger       log.Logger
}

// NewGateway wires the two backends together.
func NewGateway(structured StructuredBackend, semantic SemanticBackend, cfg config.SearchConfig, logger log.Logger) *Gateway {
	defaultLimit := cfg.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < defaultLimit {
		maxLimit = defaultLimit
	}
	if logger == nil {
		logger = log.NewNop()
	}

	return &Gateway{
		structured:   structured,
		semantic:     semantic,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		logger:       logger.With("component", "search-gateway"),
	}
}

// Structured runs a tracker query, retrying once through the vector
// index when the tracker fails.
func (g *Gateway) Structured(ctx context.Context, query string, limit int) Result {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{Issues: []Issue{}, Error: "query must not be empty"}
	}
	limit = g.clampLimit(limit)

	issues, err := g.structured.Search(ctx, query, limit)
	if err == nil {
		return Result{Issues: normalize(issues), Count: len(issues), Source: SourceStructured}
	}

	// A canceled turn gets no fallback.
	if ctx.Err() != nil {
		return Result{Issues: []Issue{}, Error: err.Error()}
	}

	g.logger.Warn("structured search failed, falling back to vector index", "error", err)

	text, assignee := Rewrite(query)
	fallback, ferr := g.semantic.Search(ctx, SemanticQuery{Text: text, Assignee: assignee, Limit: limit})
	if ferr != nil {
		g.logger.Error("semantic fallback failed", "error", ferr)
		return Result{
			Issues: []Issue{},
			Error:  fmt.Sprintf("structured search failed (%v); semantic fallback failed (%v)", err, ferr),
		}
	}

	return Result{
		Issues: normalize(fallback),
		Count:  len(fallback),
		Source: SourceSemantic,
		Note:   FallbackNote,
	}
}

// Semantic runs a natural-language query directly against the index.
func (g *Gateway) Semantic(ctx context.Context, q SemanticQuery) Result {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return Result{Issues: []Issue{}, Error: "query must not be empty"}
	}
	q.Limit = g.clampLimit(q.Limit)

	issues, err := g.semantic.Search(ctx, q)
	if err != nil {
		g.logger.Error("semantic search failed", "error", err)
		return Result{Issues: []Issue{}, Error: err.Error()}
	}
	return Result{Issues: normalize(issues), Count: len(issues), Source: SourceSemantic}
}

func (g *Gateway) clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return g.defaultLimit
	case limit > g.maxLimit:
		return g.maxLimit
	default:
		return limit
	}
}

// normalize keeps a nil slice out of JSON output; clients expect an
// empty array.
func normalize(issues []Issue) []Issue {
	if issues == nil {
		return []Issue{}
	}
	return issues
}
