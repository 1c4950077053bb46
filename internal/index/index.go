// Package index answers natural-language issue queries from a pgvector
// table. The table is populated by an external sync job; this package
// only reads it.
package index

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"

	"github.com/docketbot/docket/internal/log"
	"github.com/docketbot/docket/internal/search"
)

const (
	// VectorDimension is the embedding width of the issue_index table.
	// Must match the vector(768) column in db/migrations.
	VectorDimension int32 = 768

	// EmbedTimeout bounds a single embedding call.
	EmbedTimeout = 15 * time.Second

	// maxQueryLen truncates oversized queries before embedding.
	maxQueryLen = 2000

	// maxResults is the hard cap on rows returned by one lookup.
	maxResults = 200
)

const issueCols = `key, summary, status, assignee, labels, url, updated_at`

const searchSQL = `SELECT ` + issueCols + `
	FROM issue_index
	ORDER BY embedding <=> $1
	LIMIT $2`

const searchByAssigneeSQL = `SELECT ` + issueCols + `
	FROM issue_index
	WHERE assignee = $1
	ORDER BY embedding <=> $2
	LIMIT $3`

// Store queries the issue index. It implements search.SemanticBackend
// and is safe for concurrent use.
type Store struct {
	pool     *pgxpool.Pool
	embedder ai.Embedder
	logger   log.Logger
}

// NewStore creates an issue index store.
func NewStore(pool *pgxpool.Pool, embedder ai.Embedder, logger log.Logger) (*Store, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{
		pool:     pool,
		embedder: embedder,
		logger:   logger.With("component", "issue-index"),
	}, nil
}

// embed generates the query vector, truncated to the index dimension.
func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	dim := VectorDimension
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embedding query: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, errors.New("empty embedding response")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

// Search returns issues ordered by cosine similarity to the query,
// optionally restricted to one assignee.
func (s *Store) Search(ctx context.Context, q search.SemanticQuery) ([]search.Issue, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return []search.Issue{}, nil
	}
	if len(text) > maxQueryLen {
		text = text[:maxQueryLen]
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > maxResults {
		limit = maxResults
	}

	// Embed with its own timeout so a stuck provider cannot hold a DB
	// connection open.
	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()

	vec, err := s.embed(embedCtx, text)
	if err != nil {
		return nil, err
	}

	var rows pgx.Rows
	if q.Assignee != "" {
		rows, err = s.pool.Query(ctx, searchByAssigneeSQL, q.Assignee, vec, limit)
	} else {
		rows, err = s.pool.Query(ctx, searchSQL, vec, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("searching issue index: %w", err)
	}
	defer rows.Close()

	return scanIssues(rows)
}

func scanIssues(rows pgx.Rows) ([]search.Issue, error) {
	issues := []search.Issue{}
	for rows.Next() {
		var is search.Issue
		if err := rows.Scan(&is.Key, &is.Summary, &is.Status, &is.Assignee, &is.Labels, &is.URL, &is.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning issue row: %w", err)
		}
		issues = append(issues, is)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading issue rows: %w", err)
	}
	return issues, nil
}

// Disabled is a SemanticBackend for deployments without a vector index.
// Every query fails so the gateway can report the outage.
type Disabled struct{}

func (Disabled) Search(context.Context, search.SemanticQuery) ([]search.Issue, error) {
	return nil, errors.New("vector index not configured")
}
