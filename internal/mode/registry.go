package mode

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docketbot/docket/internal/log"
)

// Store persists modes. Insert assigns Position.
type Store interface {
	List(ctx context.Context) ([]*Mode, error)
	Insert(ctx context.Context, m *Mode) error
	Update(ctx context.Context, m *Mode) error
	Delete(ctx context.Context, id string) error
}

// Registry is the ordered authority over modes. It keeps the full mode set in
// memory for classification and writes every change through to the Store
// before updating its own state. All methods are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	store  Store
	modes  []*Mode // position order
	byID   map[string]*Mode
	byName map[string]*Mode // lowercased name

	logger log.Logger
	now    func() time.Time
	newID  func() string
}

// NewRegistry loads all modes from the store and registers any missing
// built-in modes, so the registry is never empty.
func NewRegistry(ctx context.Context, store Store, logger log.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		store:  store,
		byID:   make(map[string]*Mode),
		byName: make(map[string]*Mode),
		logger: logger.With("component", "mode-registry"),
		now:    time.Now,
		newID:  uuid.NewString,
	}

	modes, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading modes: %w", err)
	}
	for _, m := range modes {
		r.indexLocked(m)
	}

	if err := r.ensureSystemModes(ctx); err != nil {
		return nil, err
	}

	r.logger.Debug("mode registry ready", "modes", len(r.modes))
	return r, nil
}

// List returns all modes in registration order.
func (r *Registry) List() []*Mode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Mode, len(r.modes))
	for i, m := range r.modes {
		out[i] = m.Clone()
	}
	return out
}

// Get returns the mode with the given id.
func (r *Registry) Get(id string) (*Mode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return m.Clone(), nil
}

// Default returns the mode used when classification is inconclusive: the
// first registered mode flagged is_default, or the first registered mode when
// none is flagged. The registry bootstraps built-in modes, so after
// NewRegistry this never returns nil.
func (r *Registry) Default() *Mode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.modes {
		if m.IsDefault {
			return m.Clone()
		}
	}
	if len(r.modes) > 0 {
		return r.modes[0].Clone()
	}
	return nil
}

// Create registers a new mode owned by the given user.
func (r *Registry) Create(ctx context.Context, owner string, d Draft) (*Mode, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(owner) == "" {
		return nil, ErrEmptyOwner
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := strings.TrimSpace(d.Name)
	if _, taken := r.byName[nameKey(name)]; taken {
		return nil, fmt.Errorf("%w: %q", ErrNameTaken, name)
	}

	now := r.now()
	m := &Mode{
		ID:          r.newID(),
		Name:        name,
		DisplayName: displayName(d.DisplayName, name),
		Description: d.Description,
		Prompt:      d.Prompt,
		Patterns:    d.Patterns,
		IsDefault:   d.IsDefault,
		OwnerID:     &owner,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := r.store.Insert(ctx, m); err != nil {
		return nil, fmt.Errorf("storing mode %q: %w", name, err)
	}
	r.indexLocked(m)

	r.logger.Info("mode created", "mode_id", m.ID, "name", m.Name)
	return m.Clone(), nil
}

// Update replaces a user mode's definition. System-owned modes are immutable
// and only the owner may modify their own modes.
func (r *Registry) Update(ctx context.Context, id, owner string, d Draft) (*Mode, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if existing.System() {
		return nil, fmt.Errorf("%w: %q", ErrSystemOwned, existing.Name)
	}
	if !existing.OwnedBy(owner) {
		return nil, fmt.Errorf("%w: %q", ErrNotOwner, existing.Name)
	}

	name := strings.TrimSpace(d.Name)
	if other, taken := r.byName[nameKey(name)]; taken && other.ID != id {
		return nil, fmt.Errorf("%w: %q", ErrNameTaken, name)
	}

	updated := existing.Clone()
	updated.Name = name
	updated.DisplayName = displayName(d.DisplayName, name)
	updated.Description = d.Description
	updated.Prompt = d.Prompt
	updated.Patterns = d.Patterns
	updated.IsDefault = d.IsDefault
	updated.UpdatedAt = r.now()

	if err := r.store.Update(ctx, updated); err != nil {
		return nil, fmt.Errorf("updating mode %q: %w", name, err)
	}

	delete(r.byName, nameKey(existing.Name))
	*existing = *updated
	r.byName[nameKey(existing.Name)] = existing

	r.logger.Info("mode updated", "mode_id", id, "name", name)
	return updated.Clone(), nil
}

// Delete removes a user mode. System-owned modes cannot be deleted and only
// the owner may delete their own modes.
func (r *Registry) Delete(ctx context.Context, id, owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if existing.System() {
		return fmt.Errorf("%w: %q", ErrSystemOwned, existing.Name)
	}
	if !existing.OwnedBy(owner) {
		return fmt.Errorf("%w: %q", ErrNotOwner, existing.Name)
	}

	if err := r.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting mode %q: %w", existing.Name, err)
	}

	delete(r.byID, id)
	delete(r.byName, nameKey(existing.Name))
	for i, m := range r.modes {
		if m.ID == id {
			r.modes = append(r.modes[:i], r.modes[i+1:]...)
			break
		}
	}

	r.logger.Info("mode deleted", "mode_id", id, "name", existing.Name)
	return nil
}

// CloneMode copies an existing mode under the given owner with a
// disambiguated name. Cloning works on any valid id, including system-owned
// modes; the copy is a plain user mode the new owner can edit.
func (r *Registry) CloneMode(ctx context.Context, id, owner string) (*Mode, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, ErrEmptyOwner
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	src, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	now := r.now()
	cp := src.Clone()
	cp.ID = r.newID()
	cp.Name = r.cloneNameLocked(src.Name)
	cp.DisplayName = displayName("", cp.Name)
	cp.OwnerID = &owner
	cp.IsDefault = false
	cp.Position = 0
	cp.CreatedAt = now
	cp.UpdatedAt = now

	if err := r.store.Insert(ctx, cp); err != nil {
		return nil, fmt.Errorf("storing cloned mode %q: %w", cp.Name, err)
	}
	r.indexLocked(cp)

	r.logger.Info("mode cloned", "source_id", id, "mode_id", cp.ID, "name", cp.Name)
	return cp.Clone(), nil
}

// cloneNameLocked derives a free name for a copy of base:
// "base (copy)", then "base (copy 2)", "base (copy 3)", ...
func (r *Registry) cloneNameLocked(base string) string {
	candidate := base + " (copy)"
	if _, taken := r.byName[nameKey(candidate)]; !taken {
		return candidate
	}
	for n := 2; ; n++ {
		candidate = fmt.Sprintf("%s (copy %d)", base, n)
		if _, taken := r.byName[nameKey(candidate)]; !taken {
			return candidate
		}
	}
}

// indexLocked adds m to the in-memory indexes, keeping position order.
func (r *Registry) indexLocked(m *Mode) {
	r.modes = append(r.modes, m)
	sort.SliceStable(r.modes, func(i, j int) bool {
		return r.modes[i].Position < r.modes[j].Position
	})
	r.byID[m.ID] = m
	r.byName[nameKey(m.Name)] = m
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// displayName falls back to the mode name when no display name is given.
func displayName(display, name string) string {
	if d := strings.TrimSpace(display); d != "" {
		return d
	}
	return name
}

// validate checks a draft for structural problems.
func (d Draft) validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(d.Prompt.Formatting) == "" {
		return ErrEmptyFormatting
	}
	for _, pattern := range d.Patterns.Regexes {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pattern, err)
		}
	}
	return nil
}

// ensureSystemModes registers any missing built-in modes.
func (r *Registry) ensureSystemModes(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, seed := range systemModes() {
		if _, exists := r.byName[nameKey(seed.Name)]; exists {
			continue
		}

		now := r.now()
		m := seed.Clone()
		m.ID = r.newID()
		m.OwnerID = nil
		m.CreatedAt = now
		m.UpdatedAt = now

		if err := r.store.Insert(ctx, m); err != nil {
			return fmt.Errorf("registering system mode %q: %w", m.Name, err)
		}
		r.indexLocked(m)
		r.logger.Debug("registered system mode", "name", m.Name)
	}
	return nil
}

// systemModes returns the built-in mode set, in registration order.
func systemModes() []*Mode {
	return []*Mode{
		{
			Name:        "bug-triage",
			DisplayName: "Bug Triage",
			Description: "Find, group and prioritize defects.",
			Prompt: Prompt{
				Behavior:    "You are a triage engineer for the team's issue tracker. Locate the defects the user asks about, group duplicates, and call out severity and affected components.",
				Formatting:  "Start with a one-paragraph summary, then list the matching issues as a table with key, summary, status and assignee.",
				Constraints: "Only report issues returned by the search tools. Never invent issue keys.",
			},
			Patterns: QueryPatterns{
				Keywords: []string{"bug", "bugs", "defect", "crash", "broken", "regression"},
				Regexes:  []string{`(?i)\b(stack\s?trace|panic|exception)\b`},
				Priority: 10,
			},
		},
		{
			Name:        "release-notes",
			DisplayName: "Release Notes",
			Description: "Summarize shipped work for a release.",
			Prompt: Prompt{
				Behavior:    "You are a release manager writing user-facing notes. Collect the issues resolved in the requested release or time range and summarize them for end users.",
				Formatting:  "Group items under Added, Changed and Fixed headings. Keep each item to one line with the issue key in parentheses.",
				Constraints: "Skip internal-only issues and keep the wording free of implementation detail.",
			},
			Patterns: QueryPatterns{
				Keywords: []string{"release", "changelog", "shipped"},
				Regexes:  []string{`(?i)\brelease\s+notes?\b`},
				Priority: 9,
			},
		},
		{
			Name:        "sprint-planning",
			DisplayName: "Sprint Planning",
			Description: "Prepare and balance the upcoming sprint.",
			Prompt: Prompt{
				Behavior:   "You are an engineering manager preparing a sprint. Surface backlog candidates, flag unestimated or oversized issues, and balance load across assignees.",
				Formatting: "Answer with a short recommendation followed by a table of candidate issues with estimate and assignee columns.",
			},
			Patterns: QueryPatterns{
				Keywords: []string{"sprint", "planning", "backlog", "estimate", "capacity"},
				Priority: 8,
			},
		},
		{
			Name:        "general",
			DisplayName: "General",
			Description: "General questions about the tracker.",
			Prompt: Prompt{
				Behavior:   "You are a helpful assistant for the team's issue tracker. Answer the user's question using the search tools when tracker data is needed.",
				Formatting: "Answer concisely in Markdown. Cite issue keys inline when you reference specific issues.",
			},
			IsDefault: true,
		},
	}
}
