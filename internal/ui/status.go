package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// JobInfo describes an indexing job for status display.
type JobInfo struct {
	Running  bool    `json:"running"`
	Progress int     `json:"progress"`
	Total    int     `json:"total"`
	Percent  float64 `json:"percent"`
	Messages int     `json:"messages"`
	Error    string  `json:"error,omitempty"`
}

// StatusInfo contains index health information.
type StatusInfo struct {
	Indexed      bool      `json:"indexed"`
	LastIndexed  time.Time `json:"last_indexed,omitzero"`
	MessageCount int       `json:"message_count"`
	Sessions     int       `json:"sessions"`

	Backend   string `json:"backend"`
	IndexPath string `json:"index_path"`
	IndexSize int64  `json:"index_size"`

	ProjectsDir string   `json:"projects_dir"`
	Server      string   `json:"server"` // "running" or "stopped"
	Job         *JobInfo `json:"job,omitempty"`
}

// StatusRenderer displays index status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Index Status"))

	if !info.Indexed {
		_, _ = fmt.Fprintf(r.out, "  %s\n", r.styles.Warning.Render("not indexed"))
	} else {
		_, _ = fmt.Fprintf(r.out, "  Messages:     %d\n", info.MessageCount)
		_, _ = fmt.Fprintf(r.out, "  Sessions:     %d\n", info.Sessions)
		if !info.LastIndexed.IsZero() {
			_, _ = fmt.Fprintf(r.out, "  Last indexed: %s\n", formatTime(info.LastIndexed))
		}
	}
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Storage:")
	_, _ = fmt.Fprintf(r.out, "    Backend: %s\n", info.Backend)
	_, _ = fmt.Fprintf(r.out, "    Path:    %s\n", info.IndexPath)
	_, _ = fmt.Fprintf(r.out, "    Size:    %s\n", FormatBytes(info.IndexSize))
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintf(r.out, "  Transcripts: %s\n", info.ProjectsDir)
	if info.Server != "" {
		_, _ = fmt.Fprintf(r.out, "  Server:      %s\n", r.renderStatus(info.Server))
	}

	if j := info.Job; j != nil {
		switch {
		case j.Running:
			_, _ = fmt.Fprintf(r.out, "  Indexing:    %d/%d files (%.0f%%)\n", j.Progress, j.Total, j.Percent)
		case j.Error != "":
			_, _ = fmt.Fprintf(r.out, "  Last job:    %s\n", r.styles.Error.Render("failed: "+j.Error))
		}
	}
	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

func (r *StatusRenderer) renderStatus(status string) string {
	switch status {
	case "running":
		return r.styles.Success.Render(status)
	case "stopped":
		return r.styles.Warning.Render(status)
	default:
		return status
	}
}

// formatTime formats a time relative to now.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day")
	default:
		return t.Local().Format("2006-01-02 15:04")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit + " ago"
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
