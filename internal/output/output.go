// Package output renders CLI results: status lines, search hits and whole
// conversations, either styled for a terminal or as JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/Aman-CERP/chatsearch/internal/search"
	"github.com/Aman-CERP/chatsearch/internal/store"
	"github.com/Aman-CERP/chatsearch/internal/ui"
)

// markPattern matches one highlighted span in a snippet.
var markPattern = regexp.MustCompile(`<mark>(.*?)</mark>`)

// Writer writes formatted output.
type Writer struct {
	out     io.Writer
	styles  ui.Styles
	noColor bool
}

// New creates a Writer without colors.
func New(out io.Writer) *Writer {
	return NewStyled(out, true)
}

// NewStyled creates a Writer, using lipgloss styles unless noColor is set.
func NewStyled(out io.Writer, noColor bool) *Writer {
	return &Writer{out: out, styles: ui.GetStyles(noColor), noColor: noColor}
}

// Status prints a message after an icon. Write errors are ignored.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf is Status with formatting.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success line.
func (w *Writer) Success(msg string) {
	w.Status(w.styles.Success.Render("✓"), msg)
}

// Successf is Success with formatting.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning line.
func (w *Writer) Warning(msg string) {
	w.Status(w.styles.Warning.Render("!"), msg)
}

// Warningf is Warning with formatting.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error line.
func (w *Writer) Error(msg string) {
	w.Status(w.styles.Error.Render("✗"), msg)
}

// Errorf is Error with formatting.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// JSON writes v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Hits renders a search response. An inline query error is printed as a
// warning rather than returned.
func (w *Writer) Hits(resp *search.SearchResponse) {
	if resp.Error != "" {
		w.Warningf("Query failed: %s", resp.Error)
		return
	}
	if len(resp.Results) == 0 {
		w.Status("", fmt.Sprintf("No matches for %q", resp.Query))
		return
	}

	noun := "matches"
	if resp.Count == 1 {
		noun = "match"
	}
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render(fmt.Sprintf("%d %s for %q", resp.Count, noun, resp.Query)))
	w.Newline()

	for i, h := range resp.Results {
		w.hit(i+1, h)
	}
}

func (w *Writer) hit(n int, h *store.Hit) {
	header := fmt.Sprintf("%2d. %s", n, RoleLabel(h.Role))
	if h.Project != "" {
		header += " " + w.styles.Label.Render("in "+h.Project)
	}
	if h.Timestamp != "" {
		header += "  " + w.styles.Dim.Render(h.Timestamp)
	}
	_, _ = fmt.Fprintln(w.out, header)
	_, _ = fmt.Fprintf(w.out, "    %s %s\n", w.styles.Dim.Render("session"), h.SessionID)
	for _, line := range strings.Split(w.Highlight(h.Snippet), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		_, _ = fmt.Fprintf(w.out, "    %s\n", line)
	}
	w.Newline()
}

// Highlight renders <mark> spans: styled on a color terminal, as **word**
// otherwise.
func (w *Writer) Highlight(snippet string) string {
	return markPattern.ReplaceAllStringFunc(snippet, func(m string) string {
		word := markPattern.FindStringSubmatch(m)[1]
		if w.noColor {
			return "**" + word + "**"
		}
		return w.styles.Mark.Render(word)
	})
}

// Conversation renders every message of a session.
func (w *Writer) Conversation(resp *search.ConversationResponse) {
	if len(resp.Messages) == 0 {
		w.Warningf("No messages found for session %s", resp.SessionID)
		return
	}

	title := "Session " + resp.SessionID
	if p := resp.Messages[0].Project; p != "" {
		title += " (" + p + ")"
	}
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render(title))
	w.Newline()

	for _, m := range resp.Messages {
		label := RoleLabel(m.Role)
		if m.Role == "user" {
			label = w.styles.Active.Render(label)
		} else {
			label = w.styles.Label.Render(label)
		}
		if m.Timestamp != "" {
			label += "  " + w.styles.Dim.Render(m.Timestamp)
		}
		_, _ = fmt.Fprintln(w.out, label)
		for _, line := range strings.Split(strings.TrimSpace(m.Content), "\n") {
			_, _ = fmt.Fprintf(w.out, "  %s\n", line)
		}
		w.Newline()
	}
}

// RoleLabel capitalises the known roles.
func RoleLabel(role string) string {
	switch role {
	case "user":
		return "User"
	case "assistant":
		return "Assistant"
	case "":
		return "Message"
	default:
		return role
	}
}
