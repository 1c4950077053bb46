package tracker

import (
	"errors"
	"fmt"
	"testing"
)

func TestDefaultRetryConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultRetryConfig()
	if cfg.MaxRetries <= 0 {
		t.Errorf("MaxRetries should be positive, got %d", cfg.MaxRetries)
	}
	if cfg.InitialInterval <= 0 || cfg.MaxInterval < cfg.InitialInterval {
		t.Errorf("intervals are inconsistent: %+v", cfg)
	}
}

func TestRetryableError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "rate limited", err: errors.New("429 Too Many Requests"), want: true},
		{name: "quota", err: errors.New("quota exceeded for project"), want: true},
		{name: "bad gateway", err: errors.New("status 502: upstream reset"), want: true},
		{name: "service unavailable", err: errors.New("status 503: maintenance"), want: true},
		{name: "wrapped unavailable", err: fmt.Errorf("search: %w", ErrUnavailable), want: true},
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), want: true},
		{name: "client timeout", err: errors.New("Client.Timeout exceeded while awaiting headers"), want: true},
		{name: "rejected query", err: &StatusError{Status: 400, Body: "invalid JQL"}, want: false},
		{name: "forbidden", err: &StatusError{Status: 403, Body: "no project access"}, want: false},
		{name: "unrelated", err: errors.New("something else broke"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := retryableError(tt.err); got != tt.want {
				t.Errorf("retryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestContainsAny(t *testing.T) {
	t.Parallel()

	if !containsAny("Connection RESET by peer", "connection reset") {
		t.Error("matching should be case-insensitive")
	}
	if containsAny("all good", "timeout", "unavailable") {
		t.Error("no substring should mean no match")
	}
}
