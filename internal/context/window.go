package context

import (
	"fmt"
	"strings"
)

// Entry is one (path, content-slice) pair inside a context window.
type Entry struct {
	Path      string
	Text      string
	Language  string
	Warning   string // non-empty when content is a placeholder
	Truncated bool
	Tokens    int
}

// Window is the token-bounded payload assembled from the current
// selection. Built fresh per request; never cached across requests.
type Window struct {
	Workspace string
	Entries   []Entry
	Tokens    int
	Budget    int
	Truncated bool
}

// Render flattens the window into the text block sent to the model.
func (w *Window) Render() string {
	var sb strings.Builder
	for _, e := range w.Entries {
		fmt.Fprintf(&sb, "=== %s ===\n", e.Path)
		if e.Warning != "" {
			fmt.Fprintf(&sb, "[%s]\n", e.Warning)
		}
		if e.Text != "" {
			sb.WriteString(e.Text)
			if !strings.HasSuffix(e.Text, "\n") {
				sb.WriteByte('\n')
			}
			if e.Truncated {
				sb.WriteString("[content truncated]\n")
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Paths returns the included paths in window order.
func (w *Window) Paths() []string {
	paths := make([]string, len(w.Entries))
	for i, e := range w.Entries {
		paths[i] = e.Path
	}
	return paths
}
