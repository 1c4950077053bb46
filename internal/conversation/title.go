package conversation

import "strings"

// DefaultTitle names conversations with no user text to derive a title from.
const DefaultTitle = "New Conversation"

// titleMaxRunes bounds derived titles; longer text is cut and ellipsized.
const titleMaxRunes = 50

// Title derives a conversation title from the first user message: its text
// parts concatenated, whitespace collapsed, truncated to titleMaxRunes. A
// history with no user text yields DefaultTitle.
func Title(msgs []Message) string {
	for _, m := range msgs {
		if m.Role != RoleUser {
			continue
		}
		text := strings.Join(strings.Fields(m.Text()), " ")
		if text == "" {
			return DefaultTitle
		}
		runes := []rune(text)
		if len(runes) > titleMaxRunes {
			return string(runes[:titleMaxRunes]) + "…"
		}
		return text
	}
	return DefaultTitle
}
