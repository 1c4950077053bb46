// Package search unifies structured tracker queries and semantic vector
// lookup behind one gateway. Structured queries run first; when the
// tracker rejects or cannot serve a query, the gateway retries once
// against the vector index and annotates the result so callers can tell
// where it came from.
package search

import (
	"context"
	"time"
)

// Backend sources reported in Result.Source.
const (
	SourceStructured = "structured"
	SourceSemantic   = "semantic"
)

// FallbackNote annotates results produced by the semantic retry after a
// structured query failed.
const FallbackNote = "Results from vector search (JQL unavailable)"

// Issue is a single tracker issue as returned by either backend.
type Issue struct {
	Key       string    `json:"key"`
	Summary   string    `json:"summary"`
	Status    string    `json:"status,omitempty"`
	Assignee  string    `json:"assignee,omitempty"`
	Labels    []string  `json:"labels,omitempty"`
	URL       string    `json:"url,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Result is the outcome of a search request. Failures are reported in the
// Error field rather than as a Go error, so callers always receive a
// well-formed result they can render or feed back to the model.
type Result struct {
	Issues []Issue `json:"issues"`
	Count  int     `json:"count"`
	Source string  `json:"source,omitempty"`
	Note   string  `json:"note,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// StructuredBackend executes queries written in the tracker's query
// language (JQL).
type StructuredBackend interface {
	Search(ctx context.Context, query string, limit int) ([]Issue, error)
}

// SemanticQuery is a natural-language lookup against the vector index.
type SemanticQuery struct {
	Text     string
	Assignee string // restrict to one assignee when set
	Limit    int
}

// SemanticBackend answers natural-language queries from the vector index.
type SemanticBackend interface {
	Search(ctx context.Context, q SemanticQuery) ([]Issue, error)
}
