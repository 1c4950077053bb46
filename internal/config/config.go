// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.docket/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - AI: provider selection, model, temperature, embedder
//   - Storage: PostgreSQL connection (see storage.go)
//   - Tracker: issue tracker REST endpoint for structured search (see tracker.go)
//   - Agent: turn loop bounds and mode classification (see agent.go)
//   - Telemetry: OTLP trace export (see telemetry.go)
//
// Sensitive values (passwords, tokens) are masked in MarshalJSON and String.
// Validation uses sentinel errors so callers can branch with errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidOllamaHost indicates the Ollama host is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidTrackerURL indicates the tracker base URL is missing or malformed.
	ErrInvalidTrackerURL = errors.New("invalid tracker URL")

	// ErrInvalidMaxSteps indicates the agent step bound is out of range.
	ErrInvalidMaxSteps = errors.New("invalid max steps")

	// ErrInvalidThreshold indicates the classification threshold is out of range.
	ErrInvalidThreshold = errors.New("invalid classification threshold")

	// ErrInvalidSearchLimit indicates the search limit bounds are inconsistent.
	ErrInvalidSearchLimit = errors.New("invalid search limit")
)

// DefaultEmbedderModel is the default Gemini embedder model.
// gemini-embedding-001 outputs 3072 dimensions by default but supports
// truncation to 768 via OutputDimensionality. The pgvector schema for the
// issue index uses 768 dimensions; see index.VectorDimension.
const DefaultEmbedderModel = "gemini-embedding-001"

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini   = "gemini"
	ProviderOllama   = "ollama"
	ProviderOpenAI   = "openai"
	ProviderGoogleAI = "googleai"
)

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, API keys, tokens), update MarshalJSON.
type Config struct {
	// AI provider and model configuration
	Provider    string  `mapstructure:"provider" json:"provider"`     // "gemini" (default), "ollama", "openai"
	ModelName   string  `mapstructure:"model_name" json:"model_name"` // Model identifier (e.g., "gemini-2.5-flash", "llama3.3", "gpt-4o")
	Temperature float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Embedder model for the semantic issue index
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// Storage configuration (see storage.go for documentation)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Issue tracker configuration (see tracker.go for type definition)
	Tracker TrackerConfig `mapstructure:"tracker" json:"tracker"`

	// Agent and search configuration (see agent.go for type definitions)
	Agent  AgentConfig  `mapstructure:"agent" json:"agent"`
	Search SearchConfig `mapstructure:"search" json:"search"`

	// Telemetry configuration (see telemetry.go for type definition)
	Telemetry TelemetryConfig `mapstructure:"telemetry" json:"telemetry"`

	// Serve mode configuration
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"` // Trust X-Real-IP/X-Forwarded-For headers (set true behind reverse proxy)
	RateLimit   float64  `mapstructure:"rate_limit" json:"rate_limit"`   // Requests per second refilled per client IP
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`   // Maximum burst per client IP

	// StateDir holds local state such as the legacy conversation file.
	// Empty means the config directory (~/.docket).
	StateDir string `mapstructure:"state_dir" json:"state_dir"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	// Configuration directory: ~/.docket/
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".docket")

	// Ensure directory exists (use 0750 permission for better security)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	// Configure Viper
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	// Set default values
	setDefaults()

	// Bind environment variables
	bindEnvVariables()

	// Read configuration file (if exists)
	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	// Use Unmarshal to automatically map to struct (type-safe)
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Parse DATABASE_URL if set (highest priority for PostgreSQL config)
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if cfg.StateDir == "" {
		cfg.StateDir = configDir
	}

	// CRITICAL: Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("temperature", 0.3)
	viper.SetDefault("max_tokens", 4096)

	// Ollama defaults
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// Embedder defaults
	viper.SetDefault("embedder_model", DefaultEmbedderModel)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "docket")
	viper.SetDefault("postgres_password", "docket_dev_password")
	viper.SetDefault("postgres_db_name", "docket")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Tracker defaults
	viper.SetDefault("tracker.timeout_ms", 10000)
	viper.SetDefault("tracker.max_retries", 3)

	// Agent defaults
	viper.SetDefault("agent.max_steps", 5)
	viper.SetDefault("agent.classify_threshold", 0.3)

	// Search defaults
	viper.SetDefault("search.default_limit", 10)
	viper.SetDefault("search.max_limit", 50)

	// Telemetry defaults (endpoint empty = tracing disabled)
	viper.SetDefault("telemetry.environment", "dev")
	viper.SetDefault("telemetry.service_name", "docket")

	// CORS defaults (Vite dev server)
	viper.SetDefault("cors_origins", []string{"http://localhost:5173"})

	// Proxy trust (default: false, safe for direct exposure; set true behind reverse proxy)
	viper.SetDefault("trust_proxy", false)

	// Per-IP rate limiting (token bucket: refill rate and burst)
	viper.SetDefault("rate_limit", 1.0)
	viper.SetDefault("rate_burst", 60)
}

// bindEnvVariables binds environment variables explicitly.
// Secrets use their own conventional names; runtime overrides use the
// DOCKET_ prefix.
//
// NOTE: GEMINI_API_KEY and OPENAI_API_KEY are read directly by the Genkit
// plugins, not via Viper. Validation checks their presence based on the
// selected provider in cfg.Validate().
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail)
	// If this panics, it's a BUG in our code, not a runtime error
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	// Tracker credentials and endpoint
	mustBind("tracker.base_url", "TRACKER_BASE_URL")
	mustBind("tracker.token", "TRACKER_TOKEN")

	// OTLP trace endpoint
	mustBind("telemetry.endpoint", "DOCKET_OTLP_ENDPOINT")

	// CORS origins (serve mode, comma-separated list)
	mustBind("cors_origins", "DOCKET_CORS_ORIGINS")

	// Proxy trust (serve mode, behind reverse proxy)
	mustBind("trust_proxy", "DOCKET_TRUST_PROXY")

	// Per-IP rate limiting overrides
	mustBind("rate_limit", "DOCKET_RATE_LIMIT")
	mustBind("rate_burst", "DOCKET_RATE_BURST")

	// AI provider and model overrides
	mustBind("provider", "DOCKET_PROVIDER")
	mustBind("model_name", "DOCKET_MODEL_NAME")
	mustBind("ollama_host", "DOCKET_OLLAMA_HOST")

	// Local state directory override
	mustBind("state_dir", "DOCKET_STATE_DIR")
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks (U+2588) avoid accidental substring matches against
// real secret characters.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 bytes or fewer are fully masked to prevent substring
// matching. Longer secrets keep the first and last 2 characters for
// debug utility.
//
// This defends against accidental logging of real secrets. It is not
// cryptographically secure; if logs are compromised, rotate secrets.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	prefix := make([]byte, 2)
	suffix := make([]byte, 2)
	copy(prefix, s[:2])
	copy(suffix, s[len(s)-2:])
	return string(prefix) + "<" + maskedValue + ">" + string(suffix)
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - PostgresPassword
//   - Tracker.Token (via TrackerConfig.MarshalJSON)
//
// When adding new sensitive fields, update this method or the nested struct's
// MarshalJSON.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	// Note: Tracker.Token is handled by its own MarshalJSON
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// FullModelName returns the provider-qualified model name for Genkit.
// Examples: "googleai/gemini-2.5-flash", "ollama/llama3.3", "openai/gpt-4o".
// If ModelName already contains a "/", it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	switch c.Provider {
	case ProviderOllama:
		return ProviderOllama + "/" + c.ModelName
	case ProviderOpenAI:
		return ProviderOpenAI + "/" + c.ModelName
	default:
		return ProviderGoogleAI + "/" + c.ModelName
	}
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
