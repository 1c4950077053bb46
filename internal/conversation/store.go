package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists conversations. Both the PostgreSQL store and the in-memory
// store used by the one-shot CLI implement it.
type Store interface {
	// Create inserts a new conversation. CreatedAt and UpdatedAt are
	// stamped when unset.
	Create(ctx context.Context, conv *Conversation) error

	// Save rewrites the whole document and stamps UpdatedAt. The last
	// writer wins; concurrent turns on one conversation are not merged.
	Save(ctx context.Context, conv *Conversation) error

	// Get returns the conversation owned by userID, or ErrNotFound.
	Get(ctx context.Context, userID, id string) (*Conversation, error)

	// Delete removes the conversation owned by userID, or ErrNotFound.
	Delete(ctx context.Context, userID, id string) error

	// List returns conversation metadata for userID, newest update first.
	List(ctx context.Context, userID string) ([]Metadata, error)
}

// querier is the subset of pgx operations the store needs. Both *pgxpool.Pool
// and pgx.Tx satisfy it.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const insertConversationSQL = `
	INSERT INTO conversations (id, user_id, title, messages, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

const saveConversationSQL = `
	INSERT INTO conversations (id, user_id, title, messages, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO UPDATE
	SET title = EXCLUDED.title,
		messages = EXCLUDED.messages,
		updated_at = EXCLUDED.updated_at`

const getConversationSQL = `
	SELECT id, user_id, title, messages, created_at, updated_at
	FROM conversations
	WHERE user_id = $1 AND id = $2`

const deleteConversationSQL = `DELETE FROM conversations WHERE user_id = $1 AND id = $2`

const listConversationsSQL = `
	SELECT id, title, jsonb_array_length(messages), created_at, updated_at
	FROM conversations
	WHERE user_id = $1
	ORDER BY updated_at DESC`

// PGStore persists conversations in PostgreSQL, one JSONB document per row.
type PGStore struct {
	db querier
}

// NewPGStore returns a store backed by the given pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{db: pool}
}

// Create inserts a new conversation document.
func (s *PGStore) Create(ctx context.Context, conv *Conversation) error {
	stampForCreate(conv)
	doc, err := json.Marshal(conv.Messages)
	if err != nil {
		return fmt.Errorf("encoding messages: %w", err)
	}
	_, err = s.db.Exec(ctx, insertConversationSQL,
		conv.ID, conv.UserID, conv.Title, doc, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting conversation: %w", err)
	}
	return nil
}

// Save upserts the whole document and stamps UpdatedAt.
func (s *PGStore) Save(ctx context.Context, conv *Conversation) error {
	stampForSave(conv)
	doc, err := json.Marshal(conv.Messages)
	if err != nil {
		return fmt.Errorf("encoding messages: %w", err)
	}
	_, err = s.db.Exec(ctx, saveConversationSQL,
		conv.ID, conv.UserID, conv.Title, doc, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving conversation: %w", err)
	}
	return nil
}

// Get returns the conversation owned by userID.
func (s *PGStore) Get(ctx context.Context, userID, id string) (*Conversation, error) {
	var (
		conv Conversation
		doc  []byte
	)
	err := s.db.QueryRow(ctx, getConversationSQL, userID, id).Scan(
		&conv.ID, &conv.UserID, &conv.Title, &doc, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting conversation: %w", err)
	}
	if err := json.Unmarshal(doc, &conv.Messages); err != nil {
		return nil, fmt.Errorf("decoding messages: %w", err)
	}
	return &conv, nil
}

// Delete removes the conversation owned by userID.
func (s *PGStore) Delete(ctx context.Context, userID, id string) error {
	tag, err := s.db.Exec(ctx, deleteConversationSQL, userID, id)
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// List returns conversation metadata for userID, newest update first.
func (s *PGStore) List(ctx context.Context, userID string) ([]Metadata, error) {
	rows, err := s.db.Query(ctx, listConversationsSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	metas := make([]Metadata, 0)
	for rows.Next() {
		var m Metadata
		if err := rows.Scan(&m.ID, &m.Title, &m.MessageCount, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		metas = append(metas, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversations: %w", err)
	}
	return metas, nil
}

func stampForCreate(conv *Conversation) {
	now := time.Now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = now
	}
}

func stampForSave(conv *Conversation) {
	now := time.Now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	conv.UpdatedAt = now
}
