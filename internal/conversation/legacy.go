package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/docketbot/docket/internal/log"
)

// legacyHistoryFile is the single-conversation history that releases before
// the conversation store kept under the state directory.
const legacyHistoryFile = "history.json"

// legacyLockRetry is how often a blocked migration rechecks the file lock.
const legacyLockRetry = 100 * time.Millisecond

type legacyMessage struct {
	Role string `json:"role"`
	// Content was a bare string in the earliest files and a part array
	// in later ones.
	Content json.RawMessage `json:"content"`
}

// MigrateLegacy imports the legacy history file into the store, once. The
// file is consumed regardless of outcome: it is removed even when its
// contents cannot be parsed, so a corrupt file cannot wedge every startup.
// An empty or unusable history produces no conversation. Concurrent
// processes coordinate through a file lock next to the history file.
func MigrateLegacy(ctx context.Context, stateDir, userID string, store Store, logger log.Logger) (*Conversation, error) {
	if logger == nil {
		logger = slog.Default()
	}
	path := filepath.Join(stateDir, legacyHistoryFile)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("checking legacy history: %w", err)
	}

	lock := flock.New(path + ".lock")
	if _, err := lock.TryLockContext(ctx, legacyLockRetry); err != nil {
		return nil, fmt.Errorf("locking legacy history: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	raw, err := os.ReadFile(path)
	if err != nil {
		// Another process finished the migration while we waited.
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading legacy history: %w", err)
	}

	var legacy []legacyMessage
	if err := json.Unmarshal(raw, &legacy); err != nil {
		logger.Warn("legacy history unreadable, discarding", "path", path, "error", err)
		removeLegacy(path, logger)
		return nil, nil
	}

	msgs := convertLegacy(legacy)
	if len(msgs) == 0 {
		removeLegacy(path, logger)
		return nil, nil
	}

	conv := New(userID)
	conv.Title = Title(msgs)
	conv.Messages = msgs
	if err := store.Create(ctx, conv); err != nil {
		// The file is removed regardless: migration runs once, and a
		// half-migrated history replayed on the next startup would
		// duplicate the conversation.
		removeLegacy(path, logger)
		return nil, fmt.Errorf("storing migrated history: %w", err)
	}
	removeLegacy(path, logger)

	logger.Info("migrated legacy history",
		"conversation_id", conv.ID,
		"messages", len(msgs))
	return conv, nil
}

// convertLegacy maps legacy messages onto the stored message model. Messages
// with an unknown role or no usable text are dropped.
func convertLegacy(legacy []legacyMessage) []Message {
	now := time.Now().UTC()
	msgs := make([]Message, 0, len(legacy))
	for _, lm := range legacy {
		role := lm.Role
		switch role {
		case RoleUser:
		case RoleAssistant, "model":
			role = RoleAssistant
		default:
			continue
		}
		parts := legacyParts(lm.Content)
		if len(parts) == 0 {
			continue
		}
		msgs = append(msgs, Message{Role: role, Parts: parts, CreatedAt: now})
	}
	return msgs
}

func legacyParts(content json.RawMessage) []Part {
	var text string
	if err := json.Unmarshal(content, &text); err == nil {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []Part{TextPart(text)}
	}

	var structured []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(content, &structured); err != nil {
		return nil
	}
	var parts []Part
	for _, p := range structured {
		if p.Type != PartText || strings.TrimSpace(p.Text) == "" {
			continue
		}
		parts = append(parts, TextPart(p.Text))
	}
	return parts
}

func removeLegacy(path string, logger log.Logger) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("could not remove legacy history", "path", path, "error", err)
	}
}
