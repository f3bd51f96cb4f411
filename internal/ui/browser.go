package ui

import (
	"fmt"
	"path/filepath"
	"strings"

	"glance/internal/index"
)

// browser is the file tree pane: a cursor over the listing of the current
// directory, with multi-select in selection order.
type browser struct {
	cache   *index.Cache
	root    string
	dir     string
	entries []*index.FileNode
	cursor  int

	// selection keeps insertion order; order is priority for context.
	selection []string
	selected  map[string]bool

	styles *Styles
	height int
}

func newBrowser(cache *index.Cache, root string, styles *Styles) *browser {
	b := &browser{
		cache:    cache,
		root:     root,
		dir:      root,
		selected: make(map[string]bool),
		styles:   styles,
	}
	b.refresh()
	return b
}

func (b *browser) refresh() {
	b.entries = b.cache.List(b.dir)
	if b.cursor >= len(b.entries) {
		b.cursor = len(b.entries) - 1
	}
	if b.cursor < 0 {
		b.cursor = 0
	}
}

func (b *browser) moveUp() {
	if b.cursor > 0 {
		b.cursor--
	}
}

func (b *browser) moveDown() {
	if b.cursor < len(b.entries)-1 {
		b.cursor++
	}
}

// enter descends into a directory under the cursor, or toggles selection
// on a file. Returns the new path when the directory changed.
func (b *browser) enter() (string, bool) {
	if b.cursor >= len(b.entries) {
		return "", false
	}
	node := b.entries[b.cursor]
	if node.IsDir() {
		b.dir = node.Path
		b.cursor = 0
		b.refresh()
		return b.dir, true
	}
	b.toggle(node.Path)
	return "", false
}

// up ascends to the parent directory, stopping at the workspace root.
func (b *browser) up() (string, bool) {
	if b.dir == b.root {
		return "", false
	}
	b.dir = filepath.Dir(b.dir)
	b.cursor = 0
	b.refresh()
	return b.dir, true
}

func (b *browser) toggle(path string) {
	if b.selected[path] {
		delete(b.selected, path)
		for i, p := range b.selection {
			if p == path {
				b.selection = append(b.selection[:i], b.selection[i+1:]...)
				break
			}
		}
		return
	}
	b.selected[path] = true
	b.selection = append(b.selection, path)
}

func (b *browser) toggleCursor() {
	if b.cursor < len(b.entries) {
		b.toggle(b.entries[b.cursor].Path)
	}
}

// prune drops selected paths that no longer exist in the index.
func (b *browser) prune() {
	kept := b.selection[:0]
	for _, path := range b.selection {
		if _, ok := b.cache.Get(path); ok {
			kept = append(kept, path)
		} else {
			delete(b.selected, path)
		}
	}
	b.selection = kept
}

func (b *browser) view() string {
	var sb strings.Builder
	rel, err := filepath.Rel(b.root, b.dir)
	if err != nil || rel == "." {
		rel = "/"
	}
	sb.WriteString(b.styles.Title.Render(rel) + "\n")

	visible := b.entries
	maxRows := b.height - 2
	if maxRows > 0 && len(visible) > maxRows {
		start := b.cursor - maxRows/2
		if start < 0 {
			start = 0
		}
		if start+maxRows > len(visible) {
			start = len(visible) - maxRows
		}
		visible = visible[start : start+maxRows]
	}

	for i, node := range visible {
		name := filepath.Base(node.Path)
		style := b.styles.File
		if node.IsDir() {
			style = b.styles.Dir
			name += "/"
		}

		marker := "  "
		if b.selected[node.Path] {
			marker = b.styles.Selected.Render("* ")
		}

		line := marker + style.Render(name)
		if !node.IsDir() {
			line += b.styles.Status.Render(fmt.Sprintf(" %s", humanSize(node.Size)))
		}

		idx := i
		if len(visible) != len(b.entries) {
			// Account for scroll offset when matching the cursor row.
			for j, e := range b.entries {
				if e == node {
					idx = j
					break
				}
			}
		}
		if idx == b.cursor {
			line = b.styles.Cursor.Render(line)
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1fM", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1fK", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%dB", n)
	}
}
