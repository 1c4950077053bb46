package conversation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/docketbot/docket/internal/log"
)

func writeLegacyHistory(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, legacyHistoryFile)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing legacy history: %v", err)
	}
	return path
}

func assertRemoved(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("legacy history still present at %s (stat err = %v)", path, err)
	}
}

func TestMigrateLegacyStringContent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	store := NewMemStore()

	path := writeLegacyHistory(t, dir, `[
		{"role": "user", "content": "Where is the 2.4 release?"},
		{"role": "model", "content": "Checking the tracker."}
	]`)

	conv, err := MigrateLegacy(ctx, dir, "u-1", store, log.NewNop())
	if err != nil {
		t.Fatalf("MigrateLegacy() error = %v", err)
	}
	if conv == nil {
		t.Fatal("MigrateLegacy() = nil, want conversation")
	}
	if conv.Title != "Where is the 2.4 release?" {
		t.Errorf("Title = %q, want %q", conv.Title, "Where is the 2.4 release?")
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("migrated %d messages, want 2", len(conv.Messages))
	}
	if conv.Messages[0].Role != RoleUser || conv.Messages[1].Role != RoleAssistant {
		t.Errorf("roles = %q, %q, want user, assistant",
			conv.Messages[0].Role, conv.Messages[1].Role)
	}
	assertRemoved(t, path)

	stored, err := store.Get(ctx, "u-1", conv.ID)
	if err != nil {
		t.Fatalf("Get() migrated conversation error = %v", err)
	}
	if stored.Messages[1].Text() != "Checking the tracker." {
		t.Errorf("stored assistant text = %q", stored.Messages[1].Text())
	}
}

func TestMigrateLegacyPartsContent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	store := NewMemStore()

	writeLegacyHistory(t, dir, `[
		{"role": "user", "content": [
			{"type": "text", "text": "List "},
			{"type": "tool", "text": ""},
			{"type": "text", "text": "open bugs"}
		]}
	]`)

	conv, err := MigrateLegacy(ctx, dir, "u-1", store, log.NewNop())
	if err != nil {
		t.Fatalf("MigrateLegacy() error = %v", err)
	}
	if conv == nil {
		t.Fatal("MigrateLegacy() = nil, want conversation")
	}
	if conv.Title != "List open bugs" {
		t.Errorf("Title = %q, want %q", conv.Title, "List open bugs")
	}
	if got := conv.Messages[0].Text(); got != "List open bugs" {
		t.Errorf("message text = %q, want %q", got, "List open bugs")
	}
}

func TestMigrateLegacyParseFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	store := NewMemStore()

	path := writeLegacyHistory(t, dir, `{"not": "an array`)

	conv, err := MigrateLegacy(ctx, dir, "u-1", store, log.NewNop())
	if err != nil {
		t.Fatalf("MigrateLegacy() error = %v, want nil on parse failure", err)
	}
	if conv != nil {
		t.Errorf("MigrateLegacy() = %+v, want nil", conv)
	}
	assertRemoved(t, path)

	metas, err := store.List(ctx, "u-1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(metas) != 0 {
		t.Errorf("store has %d conversations after failed parse, want 0", len(metas))
	}
}

func TestMigrateLegacyEmptyHistory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	store := NewMemStore()

	path := writeLegacyHistory(t, dir, `[]`)

	conv, err := MigrateLegacy(ctx, dir, "u-1", store, log.NewNop())
	if err != nil {
		t.Fatalf("MigrateLegacy() error = %v", err)
	}
	if conv != nil {
		t.Errorf("MigrateLegacy() = %+v, want nil for empty history", conv)
	}
	assertRemoved(t, path)

	metas, _ := store.List(ctx, "u-1")
	if len(metas) != 0 {
		t.Errorf("store has %d conversations after empty migration, want 0", len(metas))
	}
}

func TestMigrateLegacyUnusableMessages(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	store := NewMemStore()

	path := writeLegacyHistory(t, dir, `[
		{"role": "system", "content": "You are helpful."},
		{"role": "user", "content": "   "}
	]`)

	conv, err := MigrateLegacy(ctx, dir, "u-1", store, log.NewNop())
	if err != nil {
		t.Fatalf("MigrateLegacy() error = %v", err)
	}
	if conv != nil {
		t.Errorf("MigrateLegacy() = %+v, want nil when nothing survives conversion", conv)
	}
	assertRemoved(t, path)
}

func TestMigrateLegacyMissingFile(t *testing.T) {
	t.Parallel()

	conv, err := MigrateLegacy(context.Background(), t.TempDir(), "u-1", NewMemStore(), log.NewNop())
	if err != nil {
		t.Fatalf("MigrateLegacy() error = %v", err)
	}
	if conv != nil {
		t.Errorf("MigrateLegacy() = %+v, want nil when no file exists", conv)
	}
}

func TestMigrateLegacyIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	store := NewMemStore()

	writeLegacyHistory(t, dir, `[{"role": "user", "content": "hello"}]`)

	first, err := MigrateLegacy(ctx, dir, "u-1", store, log.NewNop())
	if err != nil {
		t.Fatalf("first MigrateLegacy() error = %v", err)
	}
	if first == nil {
		t.Fatal("first MigrateLegacy() = nil, want conversation")
	}

	second, err := MigrateLegacy(ctx, dir, "u-1", store, log.NewNop())
	if err != nil {
		t.Fatalf("second MigrateLegacy() error = %v", err)
	}
	if second != nil {
		t.Errorf("second MigrateLegacy() = %+v, want nil", second)
	}

	metas, err := store.List(ctx, "u-1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(metas) != 1 {
		t.Errorf("store has %d conversations, want exactly 1", len(metas))
	}
}

func TestMigrateLegacyTitleMatchesDirectDerivation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	store := NewMemStore()

	writeLegacyHistory(t, dir, `[
		{"role": "user", "content": "  What   broke\nin prod? "},
		{"role": "model", "content": "The login service."}
	]`)

	conv, err := MigrateLegacy(ctx, dir, "u-1", store, log.NewNop())
	if err != nil {
		t.Fatalf("MigrateLegacy() error = %v", err)
	}
	if conv == nil {
		t.Fatal("MigrateLegacy() = nil, want conversation")
	}

	direct := Title([]Message{UserMessage("  What   broke\nin prod? ")})
	if conv.Title != direct {
		t.Errorf("migrated title %q differs from direct derivation %q", conv.Title, direct)
	}
}

type failingStore struct {
	Store
}

func (failingStore) Create(context.Context, *Conversation) error {
	return errors.New("database down")
}

func TestMigrateLegacyStoreFailureStillRemovesFile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	path := writeLegacyHistory(t, dir, `[{"role": "user", "content": "hello"}]`)

	_, err := MigrateLegacy(ctx, dir, "u-1", failingStore{NewMemStore()}, log.NewNop())
	if err == nil {
		t.Fatal("MigrateLegacy() succeeded, want error when store fails")
	}
	// Removal is unconditional so migration never runs twice.
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Errorf("legacy history still present after migration attempt: %v", statErr)
	}
}
