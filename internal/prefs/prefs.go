// Package prefs stores per-user assistant preferences: the default mode and
// whether queries are auto-classified.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Preferences holds one user's settings.
type Preferences struct {
	// DefaultModeID overrides the registry default when set.
	DefaultModeID string `json:"default_mode_id,omitempty"`

	// AutoDetect routes queries through the pattern classifier.
	AutoDetect bool `json:"auto_detect"`
}

// Defaults returns the preferences of a user who never saved any:
// auto-detection on, no default mode override.
func Defaults() Preferences {
	return Preferences{AutoDetect: true}
}

// Store persists preferences per user. Get returns Defaults for unknown
// users; it never fails just because a user has no row.
type Store interface {
	Get(ctx context.Context, userID string) (Preferences, error)
	Put(ctx context.Context, userID string, p Preferences) error
}

// querier is the subset of pgx operations the store needs. Both *pgxpool.Pool
// and pgx.Tx satisfy it.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const getPreferencesSQL = `
	SELECT default_mode_id, auto_detect FROM preferences WHERE user_id = $1`

const putPreferencesSQL = `
	INSERT INTO preferences (user_id, default_mode_id, auto_detect, updated_at)
	VALUES ($1, $2, $3, now())
	ON CONFLICT (user_id) DO UPDATE
	SET default_mode_id = EXCLUDED.default_mode_id,
		auto_detect = EXCLUDED.auto_detect,
		updated_at = EXCLUDED.updated_at`

// PGStore persists preferences in PostgreSQL.
type PGStore struct {
	db querier
}

// NewPGStore returns a store backed by the given pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{db: pool}
}

// Get returns the user's preferences, or Defaults when none are stored.
func (s *PGStore) Get(ctx context.Context, userID string) (Preferences, error) {
	var (
		p      Preferences
		modeID *string
	)
	err := s.db.QueryRow(ctx, getPreferencesSQL, userID).Scan(&modeID, &p.AutoDetect)
	if errors.Is(err, pgx.ErrNoRows) {
		return Defaults(), nil
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("getting preferences: %w", err)
	}
	if modeID != nil {
		p.DefaultModeID = *modeID
	}
	return p, nil
}

// Put upserts the user's preferences.
func (s *PGStore) Put(ctx context.Context, userID string, p Preferences) error {
	var modeID *string
	if p.DefaultModeID != "" {
		modeID = &p.DefaultModeID
	}
	if _, err := s.db.Exec(ctx, putPreferencesSQL, userID, modeID, p.AutoDetect); err != nil {
		return fmt.Errorf("saving preferences: %w", err)
	}
	return nil
}

// MemStore keeps preferences in memory for the one-shot CLI and tests.
type MemStore struct {
	mu    sync.RWMutex
	prefs map[string]Preferences
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{prefs: make(map[string]Preferences)}
}

// Get returns the user's preferences, or Defaults when none are stored.
func (s *MemStore) Get(_ context.Context, userID string) (Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.prefs[userID]; ok {
		return p, nil
	}
	return Defaults(), nil
}

// Put upserts the user's preferences.
func (s *MemStore) Put(_ context.Context, userID string, p Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[userID] = p
	return nil
}
