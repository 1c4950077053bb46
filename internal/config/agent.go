package config

// AgentConfig bounds the per-turn agent loop.
type AgentConfig struct {
	// MaxSteps caps the number of tool-issuing model steps in one turn.
	// When the cap is reached the model is asked for a final answer with
	// tools withheld (default: 5).
	MaxSteps int `mapstructure:"max_steps" json:"max_steps"`
	// ClassifyThreshold is the minimum classifier confidence for automatic
	// mode selection. Below it the user's default mode applies (default: 0.3).
	ClassifyThreshold float64 `mapstructure:"classify_threshold" json:"classify_threshold"`
}

// SearchConfig bounds search result sizes.
type SearchConfig struct {
	// DefaultLimit applies when a request omits the limit (default: 10).
	DefaultLimit int `mapstructure:"default_limit" json:"default_limit"`
	// MaxLimit clamps requested limits (default: 50).
	MaxLimit int `mapstructure:"max_limit" json:"max_limit"`
}
