// Package index maintains the in-memory metadata and content cache shared
// by the explorer listing and the context builder. All mutations flow
// through ApplyBatch on the watcher goroutine; reads may proceed
// concurrently and observe whole-node snapshots.
package index

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	lru "github.com/hashicorp/golang-lru/v2"

	"glance/internal/logging"
	"glance/internal/watch"
)

// Cache is the metadata index for a workspace.
type Cache struct {
	mu      sync.RWMutex
	nodes   map[string]*FileNode
	content *lru.Cache[string, *Content]

	includeHidden bool
}

// New creates an empty cache. contentCap bounds the number of extracted
// bodies kept resident; evicted bodies are re-extracted on demand.
func New(contentCap int, includeHidden bool) *Cache {
	if contentCap < 1 {
		contentCap = 64
	}
	content, _ := lru.New[string, *Content](contentCap)
	return &Cache{
		nodes:         make(map[string]*FileNode),
		content:       content,
		includeHidden: includeHidden,
	}
}

// Get returns the node for a path, or false if unknown. The returned node
// is a snapshot and must not be mutated.
func (c *Cache) Get(path string) (*FileNode, bool) {
	c.mu.RLock()
	node, ok := c.nodes[path]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	// An evicted body downgrades the state lazily: the node still claims
	// Extracted but the content is gone, so report it as not extracted.
	if node.ExtractState == Extracted {
		if _, ok := c.content.Get(path); !ok {
			stale := *node
			stale.ExtractState = NotExtracted
			return &stale, true
		}
	}
	return node, true
}

// ContentFor returns the extracted content for a path if resident.
func (c *Cache) ContentFor(path string) (*Content, bool) {
	return c.content.Get(path)
}

// List returns the immediate children of a directory, directories before
// files, each group in lexicographic order.
func (c *Cache) List(dir string) []*FileNode {
	dir = filepath.Clean(dir)
	prefix := dir + string(filepath.Separator)

	c.mu.RLock()
	var children []*FileNode
	for path, node := range c.nodes {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		if strings.ContainsRune(path[len(prefix):], filepath.Separator) {
			continue
		}
		if node.Hidden && !c.includeHidden {
			continue
		}
		children = append(children, node)
	}
	c.mu.RUnlock()

	sort.Slice(children, func(i, j int) bool {
		if children[i].IsDir() != children[j].IsDir() {
			return children[i].IsDir()
		}
		return children[i].Path < children[j].Path
	})
	return children
}

// ApplyBatch applies one coalesced watch batch. Single-writer: only the
// watch loop may call this.
func (c *Cache) ApplyBatch(events []watch.Event) {
	for _, ev := range events {
		switch ev.Op {
		case watch.OpCreated, watch.OpModified:
			c.upsert(ev.Path)
		case watch.OpDeleted:
			c.remove(ev.Path)
		case watch.OpRenamed:
			c.remove(ev.OldPath)
			c.upsert(ev.Path)
			if ev.IsDir {
				// Children moved with the directory; re-observe them
				// under their new paths.
				c.seedSubtree(ev.Path, nil)
			}
		}
	}
}

// Invalidate drops a node's extracted content and resets its state.
func (c *Cache) Invalidate(path string) {
	c.content.Remove(path)

	c.mu.Lock()
	defer c.mu.Unlock()
	if node, ok := c.nodes[path]; ok {
		next := *node
		next.ExtractState = NotExtracted
		c.nodes[path] = &next
	}
}

// SeedTree primes the index with the current state of a directory tree.
// Used at startup and after a resync signal. The walk is reconciling: paths
// under root that are no longer observed on disk are dropped, so a resync
// after an event storm also clears nodes whose deletions were never
// delivered.
func (c *Cache) SeedTree(root string) error {
	if _, err := os.Stat(root); err != nil {
		return err
	}
	seen := make(map[string]struct{})
	c.seedSubtree(root, seen)
	c.pruneUnseen(root, seen)
	return nil
}

// MarkExtracting transitions a file to Extracting. Returns false when the
// node is unknown, a directory, or extraction is already in flight.
func (c *Cache) MarkExtracting(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.nodes[path]
	if !ok || node.IsDir() || node.ExtractState == Extracting {
		return false
	}
	next := *node
	next.ExtractState = Extracting
	c.nodes[path] = &next
	return true
}

// StoreContent records the result of an extraction and publishes the
// matching node state.
func (c *Cache) StoreContent(path string, content *Content) {
	state := Extracted
	if content.Err != "" {
		state = ExtractFailed
	}
	c.content.Add(path, content)

	c.mu.Lock()
	defer c.mu.Unlock()
	node, ok := c.nodes[path]
	if !ok {
		// Deleted while extracting; drop the result.
		c.content.Remove(path)
		return
	}
	next := *node
	next.ExtractState = state
	c.nodes[path] = &next
}

// Len returns the number of known paths.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.nodes)
}

// seedSubtree walks a subtree and upserts every observed path. When seen is
// non-nil, observed paths are recorded there for reconciliation.
func (c *Cache) seedSubtree(root string, seen map[string]struct{}) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.Warn("seed: skipping inaccessible path", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			base := filepath.Base(path)
			if path != root && strings.HasPrefix(base, ".") && !c.includeHidden {
				return filepath.SkipDir
			}
		}
		c.upsert(path)
		if seen != nil {
			seen[path] = struct{}{}
		}
		return nil
	})
}

// pruneUnseen drops every node under root that a reconciling walk did not
// re-observe, along with its cached content.
func (c *Cache) pruneUnseen(root string, seen map[string]struct{}) {
	prefix := root + string(filepath.Separator)

	c.mu.Lock()
	var stale []string
	for path := range c.nodes {
		if path != root && !strings.HasPrefix(path, prefix) {
			continue
		}
		if _, ok := seen[path]; !ok {
			stale = append(stale, path)
		}
	}
	for _, p := range stale {
		delete(c.nodes, p)
	}
	c.mu.Unlock()

	for _, p := range stale {
		c.content.Remove(p)
	}
}

// upsert re-stats a path and swaps in a fresh node. An unchanged content
// hash preserves the extraction state, so timestamp-only touches and
// re-applied batches are no-ops for extracted content.
func (c *Cache) upsert(path string) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			c.remove(path)
		} else {
			logging.Warn("stat failed", "path", path, "error", err)
		}
		return
	}

	node := &FileNode{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Hidden:  strings.HasPrefix(filepath.Base(path), "."),
	}

	if info.IsDir() {
		node.Kind = KindDir
	} else {
		node.Kind = KindFile
		node.Hash = hashFile(path)
		if mt, err := mimetype.DetectFile(path); err == nil {
			node.MIME = mt.String()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.nodes[path]; ok && !prev.IsDir() && !node.IsDir() && prev.Hash == node.Hash && node.Hash != "" {
		node.ExtractState = prev.ExtractState
	} else if prev, ok := c.nodes[path]; ok && prev.Hash != node.Hash {
		c.content.Remove(path)
	}
	c.nodes[path] = node
}

// remove deletes a node, its content, and on directories every descendant.
func (c *Cache) remove(path string) {
	prefix := path + string(filepath.Separator)

	c.mu.Lock()
	delete(c.nodes, path)
	var descendants []string
	for p := range c.nodes {
		if strings.HasPrefix(p, prefix) {
			descendants = append(descendants, p)
		}
	}
	for _, p := range descendants {
		delete(c.nodes, p)
	}
	c.mu.Unlock()

	c.content.Remove(path)
	for _, p := range descendants {
		c.content.Remove(p)
	}
}

func hashFile(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}
