//go:build integration
// +build integration

package conversation

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docketbot/docket/internal/stream"
	"github.com/docketbot/docket/internal/testutil"
)

func TestPGStore_CreateAndGet_Integration(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store := NewPGStore(db.Pool)
	ctx := context.Background()

	conv := New("alice")
	conv.Title = "Login failures"
	conv.Messages = []Message{
		UserMessage("why do logins fail?"),
		AssistantMessage(
			ToolPart(&stream.ToolCall{
				ID:     "call-1",
				Name:   "structured_search",
				Args:   json.RawMessage(`{"query":"status = Open"}`),
				Result: json.RawMessage(`{"count":2}`),
			}),
			TextPart("Two open issues mention login failures."),
		),
	}

	require.NoError(t, store.Create(ctx, conv), "Create should not return error")
	assert.False(t, conv.CreatedAt.IsZero(), "CreatedAt should be stamped")
	assert.False(t, conv.UpdatedAt.IsZero(), "UpdatedAt should be stamped")

	got, err := store.Get(ctx, "alice", conv.ID)
	require.NoError(t, err, "Get should not return error")
	assert.Equal(t, conv.ID, got.ID)
	assert.Equal(t, "alice", got.UserID)
	assert.Equal(t, "Login failures", got.Title)
	require.Len(t, got.Messages, 2)

	assert.Equal(t, RoleUser, got.Messages[0].Role)
	assert.Equal(t, "why do logins fail?", got.Messages[0].Text())

	assistant := got.Messages[1]
	require.Len(t, assistant.Parts, 2)
	require.NotNil(t, assistant.Parts[0].Tool, "tool part should round-trip")
	assert.Equal(t, "structured_search", assistant.Parts[0].Tool.Name)
	assert.JSONEq(t, `{"count":2}`, string(assistant.Parts[0].Tool.Result))
	assert.Equal(t, "Two open issues mention login failures.", assistant.Text())
}

func TestPGStore_SaveUpserts_Integration(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store := NewPGStore(db.Pool)
	ctx := context.Background()

	// Save without a prior Create inserts the document.
	conv := New("alice")
	conv.Messages = []Message{UserMessage("first")}
	require.NoError(t, store.Save(ctx, conv), "Save of a new conversation should insert")

	firstUpdate := conv.UpdatedAt

	// A later Save rewrites the whole document.
	conv.Title = "Renamed"
	conv.Messages = append(conv.Messages, AssistantMessage(TextPart("reply")))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, store.Save(ctx, conv), "second Save should upsert")

	got, err := store.Get(ctx, "alice", conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Len(t, got.Messages, 2)
	assert.True(t, got.UpdatedAt.After(firstUpdate), "Save should advance UpdatedAt")
}

func TestPGStore_GetScopedToOwner_Integration(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store := NewPGStore(db.Pool)
	ctx := context.Background()

	conv := New("alice")
	require.NoError(t, store.Create(ctx, conv))

	_, err := store.Get(ctx, "mallory", conv.ID)
	assert.ErrorIs(t, err, ErrNotFound, "another user's lookup should miss")

	_, err = store.Get(ctx, "alice", "no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPGStore_Delete_Integration(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store := NewPGStore(db.Pool)
	ctx := context.Background()

	conv := New("alice")
	require.NoError(t, store.Create(ctx, conv))

	assert.ErrorIs(t, store.Delete(ctx, "mallory", conv.ID), ErrNotFound,
		"another user must not delete the conversation")

	require.NoError(t, store.Delete(ctx, "alice", conv.ID))

	_, err := store.Get(ctx, "alice", conv.ID)
	assert.ErrorIs(t, err, ErrNotFound, "deleted conversation should be gone")

	assert.ErrorIs(t, store.Delete(ctx, "alice", conv.ID), ErrNotFound,
		"second delete should report not found")
}

func TestPGStore_List_Integration(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store := NewPGStore(db.Pool)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Millisecond)
	titles := []string{"oldest", "middle", "newest"}
	for i, title := range titles {
		conv := New("alice")
		conv.Title = title
		conv.Messages = []Message{UserMessage(title)}
		conv.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		conv.UpdatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Create(ctx, conv))
	}

	// Another user's conversations must not leak into the listing.
	other := New("bob")
	require.NoError(t, store.Create(ctx, other))

	metas, err := store.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, metas, 3)
	assert.Equal(t, "newest", metas[0].Title, "listing should be newest first")
	assert.Equal(t, "middle", metas[1].Title)
	assert.Equal(t, "oldest", metas[2].Title)
	assert.Equal(t, 1, metas[0].MessageCount)

	empty, err := store.List(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty, "unknown user should list no conversations")
}
