package conversation

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemStore keeps conversations in memory. The one-shot CLI uses it so a
// question can be asked without a database; nothing survives the process.
type MemStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{conversations: make(map[string]*Conversation)}
}

// Create inserts a new conversation.
func (s *MemStore) Create(_ context.Context, conv *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[conv.ID]; ok {
		return fmt.Errorf("conversation %s already exists", conv.ID)
	}
	stampForCreate(conv)
	s.conversations[conv.ID] = conv.Clone()
	return nil
}

// Save rewrites the whole document and stamps UpdatedAt.
func (s *MemStore) Save(_ context.Context, conv *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stampForSave(conv)
	s.conversations[conv.ID] = conv.Clone()
	return nil
}

// Get returns a copy of the conversation owned by userID.
func (s *MemStore) Get(_ context.Context, userID, id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok || conv.UserID != userID {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return conv.Clone(), nil
}

// Delete removes the conversation owned by userID.
func (s *MemStore) Delete(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok || conv.UserID != userID {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.conversations, id)
	return nil
}

// List returns conversation metadata for userID, newest update first.
func (s *MemStore) List(_ context.Context, userID string) ([]Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metas := make([]Metadata, 0)
	for _, conv := range s.conversations {
		if conv.UserID != userID {
			continue
		}
		metas = append(metas, Metadata{
			ID:           conv.ID,
			Title:        conv.Title,
			MessageCount: len(conv.Messages),
			CreatedAt:    conv.CreatedAt,
			UpdatedAt:    conv.UpdatedAt,
		})
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})
	return metas, nil
}
