package mode

import (
	"context"
	"fmt"
	"sync"
)

// MemStore is an in-memory Store. The ask command runs on it when no database
// is configured, and tests use it as a lightweight double. Data lives only as
// long as the process.
type MemStore struct {
	mu      sync.Mutex
	modes   []*Mode
	nextPos int64
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// List returns all modes in insertion order.
func (s *MemStore) List(_ context.Context) ([]*Mode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Mode, len(s.modes))
	for i, m := range s.modes {
		out[i] = m.Clone()
	}
	return out, nil
}

// Insert stores a new mode and assigns its position.
func (s *MemStore) Insert(_ context.Context, m *Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.modes {
		if existing.ID == m.ID {
			return fmt.Errorf("mode %s already stored", m.ID)
		}
	}
	s.nextPos++
	m.Position = s.nextPos
	s.modes = append(s.modes, m.Clone())
	return nil
}

// Update rewrites a stored mode.
func (s *MemStore) Update(_ context.Context, m *Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.modes {
		if existing.ID == m.ID {
			s.modes[i] = m.Clone()
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, m.ID)
}

// Delete removes a stored mode.
func (s *MemStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.modes {
		if existing.ID == id {
			s.modes = append(s.modes[:i], s.modes[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}
