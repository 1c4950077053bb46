//go:build integration
// +build integration

package mode

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docketbot/docket/internal/log"
	"github.com/docketbot/docket/internal/testutil"
)

func storedMode(name string) *Mode {
	now := time.Now().UTC()
	return &Mode{
		ID:          uuid.NewString(),
		Name:        name,
		Description: "test mode",
		DisplayName: name,
		Prompt: Prompt{
			Formatting:  "Use tables.",
			Behavior:    "You are a triage assistant.",
			Constraints: "Group issues by component.",
		},
		Patterns: QueryPatterns{
			Keywords: []string{"bug", "crash"},
			Regexes:  []string{`(?i)\bpanic\b`},
			Priority: 5,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestPGStore_InsertAndList_Integration(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store := NewPGStore(db.Pool)
	ctx := context.Background()

	first := storedMode("Triage")
	second := storedMode("Notes")
	second.Patterns = QueryPatterns{Keywords: []string{}, Regexes: []string{}}

	require.NoError(t, store.Insert(ctx, first), "Insert should not return error")
	require.NoError(t, store.Insert(ctx, second))
	assert.Greater(t, second.Position, first.Position,
		"positions should follow insertion order")

	modes, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, modes, 2)

	got := modes[0]
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "Triage", got.Name)
	assert.Equal(t, first.Prompt, got.Prompt)
	assert.Equal(t, []string{"bug", "crash"}, got.Patterns.Keywords)
	assert.Equal(t, []string{`(?i)\bpanic\b`}, got.Patterns.Regexes)
	assert.Equal(t, 5, got.Patterns.Priority)
	assert.True(t, got.System(), "modes stored without an owner are system-owned")
}

func TestPGStore_Update_Integration(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store := NewPGStore(db.Pool)
	ctx := context.Background()

	m := storedMode("Triage")
	require.NoError(t, store.Insert(ctx, m))

	m.Name = "Bug Review"
	m.Patterns.Keywords = []string{"defect"}
	m.Patterns.Priority = 9
	m.UpdatedAt = time.Now().UTC()
	require.NoError(t, store.Update(ctx, m), "Update should not return error")

	modes, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, modes, 1)
	assert.Equal(t, "Bug Review", modes[0].Name)
	assert.Equal(t, []string{"defect"}, modes[0].Patterns.Keywords)
	assert.Equal(t, 9, modes[0].Patterns.Priority)

	missing := storedMode("Ghost")
	assert.ErrorIs(t, store.Update(ctx, missing), ErrNotFound,
		"updating an unknown mode should report not found")
}

func TestPGStore_Delete_Integration(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store := NewPGStore(db.Pool)
	ctx := context.Background()

	m := storedMode("Triage")
	require.NoError(t, store.Insert(ctx, m))

	require.NoError(t, store.Delete(ctx, m.ID))

	modes, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, modes, "deleted mode should be gone")

	assert.ErrorIs(t, store.Delete(ctx, m.ID), ErrNotFound)
}

// TestRegistry_PGBootstrap_Integration verifies that the registry seeds its
// built-in modes exactly once per database, and that writes through one
// registry instance are visible to a fresh instance on the same pool.
func TestRegistry_PGBootstrap_Integration(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPGStore(db.Pool)

	reg, err := NewRegistry(ctx, store, log.NewNop())
	require.NoError(t, err, "NewRegistry should bootstrap built-ins")

	seeded := reg.List()
	require.NotEmpty(t, seeded)
	def := reg.Default()
	require.NotNil(t, def, "a default mode must exist after bootstrap")

	created, err := reg.Create(ctx, "user-1", Draft{
		Name:   "oncall-handoff",
		Prompt: Prompt{Formatting: "Summarize open incidents."},
	})
	require.NoError(t, err)

	// A second registry on the same database must not reseed, and must see
	// the custom mode.
	again, err := NewRegistry(ctx, NewPGStore(db.Pool), log.NewNop())
	require.NoError(t, err)
	assert.Len(t, again.List(), len(seeded)+1,
		"bootstrap should be idempotent across restarts")

	got, err := again.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "oncall-handoff", got.Name)
	assert.Equal(t, def.ID, again.Default().ID, "default should survive restart")
}
