package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/chatsearch/internal/output"
	"github.com/Aman-CERP/chatsearch/internal/store"
)

// markToBold turns <mark> highlights into markdown emphasis.
var markToBold = strings.NewReplacer("<mark>", "**", "</mark>", "**")

// FormatSearchResults renders hits as markdown.
func FormatSearchResults(query string, hits []*store.Hit) string {
	if len(hits) == 0 {
		return fmt.Sprintf("No conversations found for \"%s\"", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Results for \"%s\"\n\n", query)
	fmt.Fprintf(&sb, "Found %d match", len(hits))
	if len(hits) != 1 {
		sb.WriteString("es")
	}
	sb.WriteString("\n\n")

	for i, h := range hits {
		fmt.Fprintf(&sb, "### %d. %s", i+1, output.RoleLabel(h.Role))
		if h.Project != "" {
			fmt.Fprintf(&sb, " in `%s`", h.Project)
		}
		sb.WriteString("\n\n")
		fmt.Fprintf(&sb, "Session: `%s`", h.SessionID)
		if h.Timestamp != "" {
			fmt.Fprintf(&sb, " | %s", h.Timestamp)
		}
		sb.WriteString("\n\n")
		sb.WriteString(quote(markToBold.Replace(h.Snippet)))
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// FormatConversation renders a whole session as markdown.
func FormatConversation(sessionID string, msgs []*store.Message) string {
	if len(msgs) == 0 {
		return fmt.Sprintf("No messages found for session `%s`", sessionID)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Conversation %s\n\n", sessionID)
	if msgs[0].Project != "" {
		fmt.Fprintf(&sb, "Project: `%s`\n\n", msgs[0].Project)
	}

	for _, m := range msgs {
		fmt.Fprintf(&sb, "## %s", output.RoleLabel(m.Role))
		if m.Timestamp != "" {
			fmt.Fprintf(&sb, " (%s)", m.Timestamp)
		}
		sb.WriteString("\n\n")
		sb.WriteString(strings.TrimSpace(m.Content))
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// quote prefixes every line with "> ".
func quote(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i, l := range lines {
		lines[i] = "> " + l
	}
	return strings.Join(lines, "\n")
}
