// Package context assembles token-bounded text payloads from the current
// file selection, extracting content on demand through the metadata cache.
package context

import (
	"context"
	"strings"
	"time"

	"glance/internal/config"
	"glance/internal/extract"
	"glance/internal/index"
	"glance/internal/logging"
)

// Per-entry overhead for the path header around each content slice.
const entryOverheadTokens = 8

const pollInterval = 25 * time.Millisecond

// Builder assembles context windows.
type Builder struct {
	cache    *index.Cache
	registry *extract.Registry
	wait     time.Duration
}

// NewBuilder creates a context builder over the given cache and extractors.
func NewBuilder(cache *index.Cache, registry *extract.Registry, cfg config.ExtractConfig) *Builder {
	wait := cfg.Wait
	if wait <= 0 {
		wait = config.DefaultExtractWait
	}
	return &Builder{cache: cache, registry: registry, wait: wait}
}

// Build produces a window for the selection, in selection order, stopping
// before the cumulative token budget would be exceeded. Directories expand
// to their immediate file children only.
func (b *Builder) Build(ctx context.Context, workspace string, selected []string, budget int) (*Window, error) {
	window := &Window{Workspace: workspace, Budget: budget}

	for _, path := range b.expand(selected) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if window.Truncated {
			break
		}

		entry := b.entryFor(ctx, path)
		cost := entry.Tokens + entryOverheadTokens

		if window.Tokens+cost > budget {
			// Slice an oversized entry down to whatever budget remains;
			// drop it entirely when not even the header fits.
			remaining := budget - window.Tokens - entryOverheadTokens
			if remaining > 0 && entry.Text != "" {
				entry.Text = sliceToBudget(entry.Text, remaining)
				entry.Tokens = EstimateTokens(entry.Text)
				entry.Truncated = true
				window.Entries = append(window.Entries, entry)
				window.Tokens += entry.Tokens + entryOverheadTokens
			}
			window.Truncated = true
			break
		}

		window.Entries = append(window.Entries, entry)
		window.Tokens += cost
	}

	return window, nil
}

// expand resolves directories in the selection to their immediate file
// children, preserving selection order and dropping duplicates.
func (b *Builder) expand(selected []string) []string {
	seen := make(map[string]struct{})
	var out []string

	add := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		out = append(out, path)
	}

	for _, path := range selected {
		node, ok := b.cache.Get(path)
		if !ok {
			add(path)
			continue
		}
		if !node.IsDir() {
			add(path)
			continue
		}
		for _, child := range b.cache.List(path) {
			if !child.IsDir() {
				add(child.Path)
			}
		}
	}
	return out
}

// entryFor fetches or triggers extraction for one file, waiting a bounded
// time before substituting a placeholder.
func (b *Builder) entryFor(ctx context.Context, path string) Entry {
	node, ok := b.cache.Get(path)
	if !ok {
		return Entry{Path: path, Warning: "file not indexed"}
	}

	deadline := time.Now().Add(b.wait)
	for {
		switch node.ExtractState {
		case index.Extracted:
			if content, ok := b.cache.ContentFor(path); ok {
				return contentEntry(path, content)
			}
			// Evicted between state check and fetch; fall through and retry.
			fallthrough
		case index.NotExtracted, index.ExtractFailed:
			if b.cache.MarkExtracting(path) {
				go b.runExtraction(path)
			}
		case index.Extracting:
			// Another goroutine owns it; just wait.
		}

		if time.Now().After(deadline) {
			return Entry{Path: path, Warning: "content unavailable, extraction in progress"}
		}
		select {
		case <-ctx.Done():
			return Entry{Path: path, Warning: "content unavailable, extraction in progress"}
		case <-time.After(pollInterval):
		}

		node, ok = b.cache.Get(path)
		if !ok {
			return Entry{Path: path, Warning: "file removed during extraction"}
		}

		if node.ExtractState == index.ExtractFailed {
			if content, ok := b.cache.ContentFor(path); ok && content.Err != "" {
				return Entry{Path: path, Warning: "extraction failed: " + content.Err}
			}
			return Entry{Path: path, Warning: "extraction failed"}
		}
	}
}

func (b *Builder) runExtraction(path string) {
	content, err := b.registry.Extract(context.Background(), path)
	if err != nil {
		logging.Warn("extraction aborted", "path", path, "error", err)
		b.cache.StoreContent(path, &index.Content{Path: path, Err: err.Error()})
		return
	}
	b.cache.StoreContent(path, content)
}

func contentEntry(path string, content *index.Content) Entry {
	entry := Entry{
		Path:      path,
		Text:      content.Text,
		Language:  content.Language,
		Truncated: content.Truncated,
	}
	if content.Err != "" {
		entry.Text = ""
		entry.Warning = "extraction failed: " + content.Err
	}
	entry.Tokens = EstimateTokens(entry.Text)
	return entry
}

// sliceToBudget cuts text so its estimate fits within budget tokens.
func sliceToBudget(text string, budget int) string {
	for len(text) > 0 && EstimateTokens(text) > budget {
		// Estimates scale near-linearly with length; shrink proportionally
		// with a safety margin and re-check.
		next := len(text) * budget / EstimateTokens(text)
		next = next * 9 / 10
		if next >= len(text) {
			next = len(text) - 1
		}
		text = text[:next]
	}
	// A byte-level cut can split a rune; drop the partial sequence.
	return strings.ToValidUTF8(text, "")
}
