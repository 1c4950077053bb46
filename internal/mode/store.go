package mode

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the subset of pgx operations the store needs. Both *pgxpool.Pool
// and pgx.Tx satisfy it.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const modeCols = `id, name, display_name, description, formatting, behavior,
	constraints, keywords, regex_patterns, priority, is_default, owner_id,
	position, created_at, updated_at`

const listModesSQL = `SELECT ` + modeCols + ` FROM modes ORDER BY position`

const insertModeSQL = `
	INSERT INTO modes (id, name, display_name, description, formatting,
		behavior, constraints, keywords, regex_patterns, priority,
		is_default, owner_id, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	RETURNING position`

const updateModeSQL = `
	UPDATE modes
	SET name = $2, display_name = $3, description = $4, formatting = $5,
		behavior = $6, constraints = $7, keywords = $8, regex_patterns = $9,
		priority = $10, is_default = $11, updated_at = $12
	WHERE id = $1`

const deleteModeSQL = `DELETE FROM modes WHERE id = $1`

// PGStore persists modes in PostgreSQL.
type PGStore struct {
	db querier
}

// NewPGStore returns a store backed by the given pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{db: pool}
}

// List returns all modes in registration order.
func (s *PGStore) List(ctx context.Context) ([]*Mode, error) {
	rows, err := s.db.Query(ctx, listModesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing modes: %w", err)
	}
	defer rows.Close()

	var modes []*Mode
	for rows.Next() {
		m, err := scanMode(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning mode: %w", err)
		}
		modes = append(modes, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating modes: %w", err)
	}
	return modes, nil
}

// Insert stores a new mode and fills m.Position from the sequence.
func (s *PGStore) Insert(ctx context.Context, m *Mode) error {
	err := s.db.QueryRow(ctx, insertModeSQL,
		m.ID, m.Name, m.DisplayName, m.Description,
		m.Prompt.Formatting, m.Prompt.Behavior, m.Prompt.Constraints,
		textArray(m.Patterns.Keywords), textArray(m.Patterns.Regexes), m.Patterns.Priority,
		m.IsDefault, m.OwnerID,
		m.CreatedAt, m.UpdatedAt,
	).Scan(&m.Position)
	if err != nil {
		return fmt.Errorf("inserting mode: %w", err)
	}
	return nil
}

// Update rewrites a mode's definition. Position, system ownership and
// creation time are immutable.
func (s *PGStore) Update(ctx context.Context, m *Mode) error {
	tag, err := s.db.Exec(ctx, updateModeSQL,
		m.ID, m.Name, m.DisplayName, m.Description,
		m.Prompt.Formatting, m.Prompt.Behavior, m.Prompt.Constraints,
		textArray(m.Patterns.Keywords), textArray(m.Patterns.Regexes), m.Patterns.Priority,
		m.IsDefault, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating mode: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, m.ID)
	}
	return nil
}

// Delete removes a mode.
func (s *PGStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, deleteModeSQL, id)
	if err != nil {
		return fmt.Errorf("deleting mode: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// textArray maps a nil slice to an empty array so the NOT NULL array
// columns accept modes without patterns.
func textArray(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

func scanMode(row pgx.Row) (*Mode, error) {
	var m Mode
	err := row.Scan(
		&m.ID, &m.Name, &m.DisplayName, &m.Description,
		&m.Prompt.Formatting, &m.Prompt.Behavior, &m.Prompt.Constraints,
		&m.Patterns.Keywords, &m.Patterns.Regexes, &m.Patterns.Priority,
		&m.IsDefault, &m.OwnerID,
		&m.Position, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
