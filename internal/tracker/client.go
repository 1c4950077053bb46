// Package tracker is the HTTP client for the issue tracker's REST search
// API. Calls go through a circuit breaker and retry with exponential
// backoff, so a flapping tracker degrades into fast failures instead of
// piled-up timeouts.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/docketbot/docket/internal/config"
	"github.com/docketbot/docket/internal/log"
	"github.com/docketbot/docket/internal/search"
)

// Jira-style timestamp with milliseconds and a numeric zone.
const wireTimeLayout = "2006-01-02T15:04:05.000-0700"

var searchFields = []string{"summary", "status", "assignee", "labels", "updated"}

// Client talks to the tracker's search endpoint. It implements
// search.StructuredBackend.
type Client struct {
	base    *url.URL
	token   string
	http    *http.Client
	breaker *Breaker
	retry   RetryConfig
	logger  log.Logger
}

// NewClient builds a tracker client from configuration.
func NewClient(cfg config.TrackerConfig, logger log.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("tracker base url is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse tracker base url: %w", err)
	}

	if logger == nil {
		logger = log.NewNop()
	}

	retry := DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxRetries = cfg.MaxRetries
	}

	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		base:    base,
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
		breaker: NewBreaker(DefaultBreakerConfig()),
		retry:   retry,
		logger:  logger.With("component", "tracker"),
	}, nil
}

// Search runs a JQL query against the tracker. Unavailability failures
// move the circuit breaker; rejected queries pass through untouched.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]search.Issue, error) {
	if err := c.breaker.Allow(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	issues, err := c.searchWithRetry(ctx, query, limit)
	switch {
	case err == nil:
		c.breaker.Success()
	case errors.Is(err, ErrUnavailable):
		c.breaker.Failure()
	}
	return issues, err
}

// doSearch performs a single search request.
func (c *Client) doSearch(ctx context.Context, jql string, limit int) ([]search.Issue, error) {
	payload, err := json.Marshal(searchRequest{
		JQL:        jql,
		MaxResults: limit,
		Fields:     searchFields,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	endpoint := c.base.JoinPath("rest", "api", "2", "search")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// A canceled caller is not tracker unavailability.
		if ctx.Err() != nil {
			return nil, fmt.Errorf("tracker request: %w", ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		msg := strings.TrimSpace(string(body))
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, msg)
		}
		return nil, &StatusError{Status: resp.StatusCode, Body: msg}
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return sr.toIssues(c.base), nil
}

type searchRequest struct {
	JQL        string   `json:"jql"`
	MaxResults int      `json:"maxResults"`
	Fields     []string `json:"fields"`
}

type searchResponse struct {
	Total  int         `json:"total"`
	Issues []wireIssue `json:"issues"`
}

type wireIssue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary string `json:"summary"`
		Status  struct {
			Name string `json:"name"`
		} `json:"status"`
		Assignee struct {
			DisplayName string `json:"displayName"`
		} `json:"assignee"`
		Labels  []string `json:"labels"`
		Updated string   `json:"updated"`
	} `json:"fields"`
}

func (sr searchResponse) toIssues(base *url.URL) []search.Issue {
	issues := make([]search.Issue, 0, len(sr.Issues))
	for _, wi := range sr.Issues {
		issues = append(issues, search.Issue{
			Key:       wi.Key,
			Summary:   wi.Fields.Summary,
			Status:    wi.Fields.Status.Name,
			Assignee:  wi.Fields.Assignee.DisplayName,
			Labels:    wi.Fields.Labels,
			URL:       base.JoinPath("browse", wi.Key).String(),
			UpdatedAt: parseWireTime(wi.Fields.Updated),
		})
	}
	return issues
}

// parseWireTime tolerates both RFC 3339 and the tracker's millisecond
// format. Unparseable values become the zero time rather than an error.
func parseWireTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse(wireTimeLayout, s); err == nil {
		return t
	}
	return time.Time{}
}

// Unconfigured is a StructuredBackend for deployments without a tracker
// base URL. Every query fails as unavailable, so the search gateway falls
// through to the vector index.
type Unconfigured struct{}

func (Unconfigured) Search(context.Context, string, int) ([]search.Issue, error) {
	return nil, fmt.Errorf("%w: no tracker base url configured", ErrUnavailable)
}
