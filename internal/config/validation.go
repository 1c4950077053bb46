package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	// 0. Check for nil config (defensive programming)
	if c == nil {
		return ErrConfigNil
	}

	// 1. Provider and API key validation
	switch c.Provider {
	case "", ProviderGemini, ProviderGoogleAI:
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
				"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
				ErrMissingAPIKey)
		}
	case ProviderOpenAI:
		if os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY environment variable is required", ErrMissingAPIKey)
		}
	case ProviderOllama:
		if c.OllamaHost == "" {
			return fmt.Errorf("%w: ollama_host cannot be empty when provider is %q",
				ErrInvalidOllamaHost, ProviderOllama)
		}
		if !isHTTPURL(c.OllamaHost) {
			return fmt.Errorf("%w: %q must be an http(s) URL", ErrInvalidOllamaHost, c.OllamaHost)
		}
	default:
		return fmt.Errorf("%w: %q is not supported, must be one of: %v",
			ErrInvalidProvider, c.Provider,
			[]string{ProviderGemini, ProviderOllama, ProviderOpenAI})
	}

	// 2. Model configuration validation
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	// Temperature range: 0.0 (deterministic) to 2.0 (maximum creativity)
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}

	// MaxTokens range: 1 to 2097152 (Gemini 2.5 max context window)
	if c.MaxTokens < 1 || c.MaxTokens > 2097152 {
		return fmt.Errorf("%w: must be between 1 and 2,097,152, got %d", ErrInvalidMaxTokens, c.MaxTokens)
	}

	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// 3. Agent and search bounds
	if c.Agent.MaxSteps < 1 || c.Agent.MaxSteps > 10 {
		return fmt.Errorf("%w: agent.max_steps must be between 1 and 10, got %d",
			ErrInvalidMaxSteps, c.Agent.MaxSteps)
	}

	if c.Agent.ClassifyThreshold < 0.0 || c.Agent.ClassifyThreshold > 1.0 {
		return fmt.Errorf("%w: agent.classify_threshold must be between 0.0 and 1.0, got %.2f",
			ErrInvalidThreshold, c.Agent.ClassifyThreshold)
	}

	if c.Search.DefaultLimit < 1 {
		return fmt.Errorf("%w: search.default_limit must be at least 1, got %d",
			ErrInvalidSearchLimit, c.Search.DefaultLimit)
	}

	if c.Search.MaxLimit < c.Search.DefaultLimit || c.Search.MaxLimit > 200 {
		return fmt.Errorf("%w: search.max_limit must be between default_limit (%d) and 200, got %d",
			ErrInvalidSearchLimit, c.Search.DefaultLimit, c.Search.MaxLimit)
	}

	// 4. Tracker URL format (presence is enforced by ValidateServe)
	if c.Tracker.BaseURL != "" && !isHTTPURL(c.Tracker.BaseURL) {
		return fmt.Errorf("%w: %q must be an http(s) URL", ErrInvalidTrackerURL, c.Tracker.BaseURL)
	}

	// 5. PostgreSQL configuration validation
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set in config.yaml",
			ErrInvalidPostgresPassword)
	}

	// Warn if using the default dev password (but don't block, user might be in dev)
	if c.PostgresPassword == "docket_dev_password" {
		slog.Warn("Using default development password for PostgreSQL",
			"warning", "Change postgres_password in config.yaml for production deployments")
	}

	// Validate password strength (minimum 8 characters)
	if len(c.PostgresPassword) < 8 {
		return fmt.Errorf("%w: postgres_password must be at least 8 characters (got %d)",
			ErrInvalidPostgresPassword, len(c.PostgresPassword))
	}

	// 6. PostgreSQL SSL mode validation
	// Modern SSL modes only; the deprecated allow/prefer modes are MITM vulnerable.
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if c.PostgresSSLMode == "" {
		return fmt.Errorf("%w: postgres_ssl_mode is empty (should have default from setDefaults)",
			ErrInvalidPostgresSSLMode)
	}

	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}

// ValidateServe validates serve-mode requirements on top of Validate.
// The HTTP server needs a reachable tracker for structured search; the
// one-shot ask command can run degraded without one.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.Tracker.BaseURL == "" {
		return fmt.Errorf("%w: tracker.base_url is required in serve mode "+
			"(set TRACKER_BASE_URL or tracker.base_url in config.yaml)", ErrInvalidTrackerURL)
	}

	return nil
}

// isHTTPURL reports whether s parses as an absolute http or https URL.
func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
