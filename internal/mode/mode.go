// Package mode defines assistant modes and selects one per query.
//
// A mode bundles the prompt sections the agent runs with (behavior,
// formatting, constraints) and the query patterns used to pick a mode
// automatically. Registry is the ordered, process-wide authority over modes;
// Classify is the pure scoring function behind automatic selection.
package mode

import (
	"strings"
	"time"
)

// Prompt holds the prompt sections injected into the agent's system prompt.
// Formatting is required; Behavior and Constraints are optional refinements.
type Prompt struct {
	Formatting  string `json:"formatting"`
	Behavior    string `json:"behavior,omitempty"`
	Constraints string `json:"constraints,omitempty"`
}

// Render joins the non-empty sections for use as a system prompt block.
// Behavior leads (who the assistant is), then formatting, then constraints.
func (p Prompt) Render() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.Behavior, p.Formatting, p.Constraints} {
		if strings.TrimSpace(s) != "" {
			parts = append(parts, strings.TrimSpace(s))
		}
	}
	return strings.Join(parts, "\n\n")
}

// QueryPatterns drives automatic mode selection. Keywords match as
// case-insensitive substrings; Regexes are full regular expressions.
// Priority orders modes during classification (higher first).
type QueryPatterns struct {
	Keywords []string `json:"keywords"`
	Regexes  []string `json:"regexes"`
	Priority int      `json:"priority"`
}

// Mode is a named assistant configuration.
type Mode struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	DisplayName string        `json:"display_name"`
	Description string        `json:"description"`
	Prompt      Prompt        `json:"prompt"`
	Patterns    QueryPatterns `json:"patterns"`

	// IsDefault marks the mode used when no pattern matches.
	IsDefault bool `json:"is_default"`
	// OwnerID names the user who created the mode. Nil means the mode is
	// system-owned: built in, never updated or deleted, only cloned.
	OwnerID *string `json:"owner_id,omitempty"`

	// Position is the registration order, assigned by the store.
	Position  int64     `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// System reports whether the mode is system-owned and therefore immutable.
func (m *Mode) System() bool {
	return m.OwnerID == nil
}

// OwnedBy reports whether user owns the mode. System modes have no owner.
func (m *Mode) OwnedBy(user string) bool {
	return m.OwnerID != nil && *m.OwnerID == user
}

// Clone returns a deep copy. Slices and pointers are copied so callers can
// mutate the result without affecting registry state.
func (m *Mode) Clone() *Mode {
	if m == nil {
		return nil
	}
	out := *m
	out.Patterns.Keywords = append([]string(nil), m.Patterns.Keywords...)
	out.Patterns.Regexes = append([]string(nil), m.Patterns.Regexes...)
	if m.OwnerID != nil {
		owner := *m.OwnerID
		out.OwnerID = &owner
	}
	return &out
}

// Draft is the caller-supplied payload for creating or updating a mode.
type Draft struct {
	Name        string        `json:"name"`
	DisplayName string        `json:"display_name"`
	Description string        `json:"description"`
	Prompt      Prompt        `json:"prompt"`
	Patterns    QueryPatterns `json:"patterns"`
	IsDefault   bool          `json:"is_default"`
}
