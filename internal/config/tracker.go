package config

import (
	"encoding/json"
	"fmt"
)

// TrackerConfig holds issue tracker REST API configuration.
//
// The tracker serves structured (JQL) search. Semantic search runs against
// the local pgvector index and does not need tracker access.
type TrackerConfig struct {
	// BaseURL is the tracker API root (e.g., https://tracker.example.com).
	// Required in serve mode; when empty, structured search is unavailable
	// and every query falls back to the semantic index.
	BaseURL string `mapstructure:"base_url" json:"base_url"`
	// Token is the API bearer token (optional for anonymous instances).
	Token string `mapstructure:"token" json:"token" sensitive:"true"`
	// TimeoutMs is the per-request timeout in milliseconds (default: 10000).
	TimeoutMs int `mapstructure:"timeout_ms" json:"timeout_ms"`
	// MaxRetries is the retry budget for transient failures (default: 3).
	MaxRetries int `mapstructure:"max_retries" json:"max_retries"`
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
func (t TrackerConfig) MarshalJSON() ([]byte, error) {
	type alias TrackerConfig
	a := alias(t)
	a.Token = maskSecret(a.Token)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal tracker config: %w", err)
	}
	return data, nil
}
