package api

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/docketbot/docket/internal/conversation"
	"github.com/docketbot/docket/internal/log"
)

// conversationHandler exposes the conversation store over HTTP. Every
// operation is scoped to the caller's user identity.
type conversationHandler struct {
	store  conversation.Store
	logger log.Logger
}

// list handles GET /api/v1/conversations — metadata only, newest first.
func (h *conversationHandler) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	items, err := h.store.List(r.Context(), userID)
	if err != nil {
		h.logger.Error("listing conversations", "error", err, "user", userID)
		WriteError(w, http.StatusInternalServerError, "list_failed", "failed to list conversations", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": len(items),
	}, h.logger)
}

// get handles GET /api/v1/conversations/{id} — the full message history.
func (h *conversationHandler) get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	conv, err := h.store.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err, "getting conversation", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, conv, h.logger)
}

// delete handles DELETE /api/v1/conversations/{id}.
func (h *conversationHandler) delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		writeDomainError(w, err, "deleting conversation", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"}, h.logger)
}

// export handles GET /api/v1/conversations/{id}/export.
// Query parameter: format=json (default) or format=markdown.
func (h *conversationHandler) export(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	conv, err := h.store.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err, "exporting conversation", h.logger)
		return
	}

	switch r.URL.Query().Get("format") {
	case "markdown":
		h.exportMarkdown(w, conv)
	case "", "json":
		w.Header().Set("Content-Disposition",
			mime.FormatMediaType("attachment", map[string]string{
				"filename": fmt.Sprintf("conversation-%s.json", conv.ID),
			}))
		WriteJSON(w, http.StatusOK, conv, h.logger)
	default:
		WriteError(w, http.StatusBadRequest, "invalid_format",
			"unsupported export format; use 'json' or 'markdown'", h.logger)
	}
}

// exportMarkdown renders a conversation as a Markdown document. Only text
// content is included; tool calls and artifacts stay in the JSON export.
func (h *conversationHandler) exportMarkdown(w http.ResponseWriter, conv *conversation.Conversation) {
	var b strings.Builder
	title := sanitizeTitle(conv.Title)
	if title == "" {
		title = "Untitled Conversation"
	}
	b.WriteString("# ")
	b.WriteString(title)
	b.WriteString("\n\n")

	for _, msg := range conv.Messages {
		var role string
		switch msg.Role {
		case conversation.RoleUser:
			role = "User"
		case conversation.RoleAssistant:
			role = "Assistant"
		default:
			role = msg.Role
		}

		b.WriteString("**")
		b.WriteString(role)
		b.WriteString("**: ")
		b.WriteString(sanitizeMarkdownContent(msg.Text()))
		b.WriteString("\n\n")

		if msg.Error != "" {
			b.WriteString("_(turn failed: ")
			b.WriteString(sanitizeTitle(msg.Error))
			b.WriteString(")_\n\n")
		}
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{
			"filename": fmt.Sprintf("conversation-%s.md", conv.ID),
		}))
	if _, err := io.WriteString(w, b.String()); err != nil {
		h.logger.Error("writing markdown export", "error", err)
	}
}

// titleReplacer strips newlines to prevent Markdown heading breakout.
// strings.Replacer is safe for concurrent use.
var titleReplacer = strings.NewReplacer("\n", " ", "\r", " ")

// sanitizeTitle replaces newline characters to prevent Markdown heading
// breakout.
func sanitizeTitle(s string) string {
	return titleReplacer.Replace(s)
}

// sanitizeMarkdownContent escapes leading Markdown structural characters
// to prevent structural injection in exported Markdown documents.
//
// Escapes: ATX headings (# ...), setext heading underlines (===, ---).
// Threat model: output is consumed as static text (editor, pandoc, etc.).
// If browser rendering is added, link/image/HTML sanitization must be
// implemented.
func sanitizeMarkdownContent(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		switch {
		case strings.HasPrefix(trimmed, "#"):
			// ATX heading: place backslash immediately before # to escape it.
			indent := line[:len(line)-len(trimmed)]
			lines[i] = indent + `\` + trimmed
		case isSetextUnderline(trimmed):
			// Setext underline: escape to prevent previous line promotion.
			indent := line[:len(line)-len(trimmed)]
			lines[i] = indent + `\` + trimmed
		}
	}
	return strings.Join(lines, "\n")
}

// isSetextUnderline reports whether trimmed (leading whitespace already
// removed) consists entirely of '=' or entirely of '-' characters, with
// optional trailing whitespace. Such lines promote the previous paragraph
// to a setext heading in CommonMark.
func isSetextUnderline(trimmed string) bool {
	s := strings.TrimRight(trimmed, " \t")
	if s == "" {
		return false
	}
	return strings.Trim(s, "=") == "" || strings.Trim(s, "-") == ""
}
