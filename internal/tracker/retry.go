package tracker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/docketbot/docket/internal/search"
)

// RetryConfig configures the retry behavior for tracker calls.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns sensible defaults for REST API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// retryableError determines if an error should trigger a retry. Rejected
// queries (400) and auth failures are permanent; only transient
// infrastructure errors are worth another attempt.
func retryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()

	// Rate limiting always deserves a backoff.
	if containsAny(errStr, "rate limit", "quota exceeded", "429") {
		return true
	}

	// Transient server errors.
	if containsAny(errStr, "500", "502", "503", "504", "unavailable") {
		return true
	}

	// Network errors.
	if containsAny(errStr, "connection reset", "connection refused", "timeout", "temporary") {
		return true
	}

	return false
}

// containsAny checks if s contains any of the substrings (case-insensitive).
func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// searchWithRetry executes one search with exponential backoff on
// transient failures.
func (c *Client) searchWithRetry(ctx context.Context, jql string, limit int) ([]search.Issue, error) {
	var lastErr error
	delay := c.retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		issues, err := c.doSearch(ctx, jql, limit)
		if err == nil {
			c.logger.Debug("structured search succeeded",
				"attempts", attempt+1,
				"elapsed", time.Since(start),
			)
			return issues, nil
		}

		lastErr = err

		if !retryableError(err) {
			return nil, err
		}

		if attempt == c.retry.MaxRetries {
			break
		}

		c.logger.Debug("retrying tracker search",
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, c.retry.MaxInterval)
		}
	}

	return nil, fmt.Errorf("search after %d retries (elapsed: %v): %w",
		c.retry.MaxRetries, time.Since(start), lastErr)
}
