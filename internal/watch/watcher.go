// Package watch monitors a directory tree and turns raw OS notifications
// into debounced, coalesced change batches.
package watch

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	ignore "github.com/sabhiram/go-gitignore"

	"glance/internal/config"
	"glance/internal/logging"
)

var (
	// ErrWatchLimit is returned when the OS watch descriptor budget or the
	// configured MaxWatches ceiling is exhausted. Not retried automatically.
	ErrWatchLimit = errors.New("watch limit exceeded")

	// ErrRootGone is carried by the terminal batch when the watch root
	// itself disappears.
	ErrRootGone = errors.New("watch root removed")
)

// Service creates watches over directory roots.
type Service struct {
	cfg     config.WatcherConfig
	mu      sync.Mutex
	handles map[*Handle]struct{}
}

// NewService creates a new watch service.
func NewService(cfg config.WatcherConfig) *Service {
	return &Service{
		cfg:     cfg,
		handles: make(map[*Handle]struct{}),
	}
}

// Watch starts monitoring root recursively and returns a handle whose
// Batches channel delivers coalesced change batches. The channel is closed
// after a terminal batch or Close.
func (s *Service) Watch(root string) (*Handle, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("watch root is not a directory")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		if errors.Is(err, syscall.EMFILE) || errors.Is(err, syscall.ENFILE) {
			return nil, ErrWatchLimit
		}
		return nil, err
	}

	h := &Handle{
		root:    root,
		fw:      fw,
		cfg:     s.cfg,
		pending: make(map[string]*pendingEntry),
		batches: make(chan Batch, 8),
		done:    make(chan struct{}),
	}

	if s.cfg.RespectGitignore {
		if gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
			h.gitignore = gi
		}
	}

	if err := h.addRecursive(root); err != nil {
		fw.Close()
		return nil, err
	}

	h.wg.Add(2)
	go h.readLoop()
	go h.flushLoop()
	go func() {
		h.wg.Wait()
		close(h.batches)
	}()

	s.mu.Lock()
	s.handles[h] = struct{}{}
	s.mu.Unlock()

	return h, nil
}

// Unwatch tears down a watch previously returned by Watch.
func (s *Service) Unwatch(h *Handle) {
	s.mu.Lock()
	delete(s.handles, h)
	s.mu.Unlock()
	h.Close()
}

// Close tears down every active watch.
func (s *Service) Close() {
	s.mu.Lock()
	handles := make([]*Handle, 0, len(s.handles))
	for h := range s.handles {
		handles = append(handles, h)
	}
	s.handles = make(map[*Handle]struct{})
	s.mu.Unlock()

	for _, h := range handles {
		h.Close()
	}
}

type pendingEntry struct {
	op          Op
	isDir       bool
	renamedAway bool
	last        time.Time
}

// Handle is one active watch over a root directory.
type Handle struct {
	root      string
	fw        *fsnotify.Watcher
	cfg       config.WatcherConfig
	gitignore *ignore.GitIgnore

	mu       sync.Mutex
	pending  map[string]*pendingEntry
	overflow bool

	batches   chan Batch
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Root returns the watched root directory.
func (h *Handle) Root() string {
	return h.root
}

// Batches returns the channel of coalesced change batches.
func (h *Handle) Batches() <-chan Batch {
	return h.batches
}

// Close stops the watch. Safe to call more than once.
func (h *Handle) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.fw.Close()
	})
}

// ignored reports whether a path is excluded from watching.
func (h *Handle) ignored(path string) bool {
	base := filepath.Base(path)
	if !h.cfg.IncludeHidden && strings.HasPrefix(base, ".") && path != h.root {
		return true
	}
	// Editor droppings
	if strings.HasSuffix(base, "~") || strings.HasPrefix(base, "#") {
		return true
	}

	rel, err := filepath.Rel(h.root, path)
	if err != nil || rel == "." {
		return false
	}
	rel = filepath.ToSlash(rel)

	for _, pattern := range h.cfg.Ignore {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, "/"+rel+"/"); ok {
			return true
		}
	}

	if h.gitignore != nil && h.gitignore.MatchesPath(rel) {
		return true
	}
	return false
}

// addRecursive registers root and all non-ignored subdirectories.
func (h *Handle) addRecursive(root string) error {
	count := len(h.fw.WatchList())

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip inaccessible paths
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && h.ignored(path) {
			return filepath.SkipDir
		}

		if h.cfg.MaxWatches > 0 && count >= h.cfg.MaxWatches {
			return ErrWatchLimit
		}
		if err := h.fw.Add(path); err != nil {
			if errors.Is(err, syscall.ENOSPC) {
				return ErrWatchLimit
			}
			logging.Warn("failed to watch directory", "path", path, "error", err)
			return nil
		}
		count++
		return nil
	})
}

// readLoop consumes raw fsnotify events.
func (h *Handle) readLoop() {
	defer h.wg.Done()
	for {
		select {
		case <-h.done:
			return
		case ev, ok := <-h.fw.Events:
			if !ok {
				return
			}
			h.handleRaw(ev)
		case err, ok := <-h.fw.Errors:
			if !ok {
				return
			}
			logging.Warn("watcher error", "root", h.root, "error", err)
		}
	}
}

func (h *Handle) handleRaw(ev fsnotify.Event) {
	path := ev.Name

	// The root disappearing is terminal for this watch.
	if path == h.root && ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		h.terminate(ErrRootGone)
		return
	}

	if ev.Op == fsnotify.Chmod {
		return
	}
	if h.ignored(path) {
		return
	}

	now := time.Now()

	switch {
	case ev.Op&fsnotify.Create != 0:
		info, err := os.Stat(path)
		isDir := err == nil && info.IsDir()
		if isDir {
			// New subtree: register it and synthesize events for contents
			// already present before the watch landed.
			if err := h.addRecursive(path); err != nil {
				if errors.Is(err, ErrWatchLimit) {
					// A blind subtree cannot be papered over; the watch is
					// no longer trustworthy for this root.
					h.terminate(ErrWatchLimit)
					return
				}
				logging.Warn("failed to watch new directory", "path", path, "error", err)
			}
			h.merge(path, OpCreated, true, false, now)
			h.synthesizeChildren(path, now)
		} else {
			h.merge(path, OpCreated, false, false, now)
		}
	case ev.Op&fsnotify.Write != 0:
		h.merge(path, OpModified, false, false, now)
	case ev.Op&fsnotify.Remove != 0:
		h.merge(path, OpDeleted, false, false, now)
	case ev.Op&fsnotify.Rename != 0:
		// The path this event names no longer exists under that name.
		h.merge(path, OpDeleted, false, true, now)
	}
}

// synthesizeChildren records Created events for files inside a freshly
// created directory, which inotify may have missed.
func (h *Handle) synthesizeChildren(dir string, now time.Time) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || path == dir {
			return nil
		}
		if h.ignored(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		h.merge(path, OpCreated, d.IsDir(), false, now)
		return nil
	})
}

func (h *Handle) merge(path string, op Op, isDir, renamedAway bool, now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if entry, ok := h.pending[path]; ok {
		entry.op = coalesce(entry.op, op)
		// A Write following a directory Create still describes a directory.
		entry.isDir = entry.isDir || isDir
		entry.renamedAway = renamedAway && entry.op == OpDeleted
		entry.last = now
		return
	}

	if h.cfg.QueueSize > 0 && len(h.pending) >= h.cfg.QueueSize {
		// Event storm: drop the incremental stream and tell subscribers
		// to re-list instead.
		h.pending = make(map[string]*pendingEntry)
		h.overflow = true
		return
	}

	h.pending[path] = &pendingEntry{op: op, isDir: isDir, renamedAway: renamedAway, last: now}
}

// flushLoop periodically flushes pending entries that have gone quiet.
func (h *Handle) flushLoop() {
	defer h.wg.Done()
	interval := h.cfg.Debounce / 2
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			h.flush(time.Now())
		}
	}
}

func (h *Handle) flush(now time.Time) {
	h.mu.Lock()

	if h.overflow {
		h.overflow = false
		h.pending = make(map[string]*pendingEntry)
		h.mu.Unlock()
		h.emit(Batch{Root: h.root, Resync: true})
		return
	}

	flushAll := h.cfg.BatchCeiling > 0 && len(h.pending) >= h.cfg.BatchCeiling

	var events []Event
	for path, entry := range h.pending {
		if !flushAll && now.Sub(entry.last) < h.cfg.Debounce {
			continue
		}
		events = append(events, Event{
			Op:    entry.op,
			Path:  path,
			IsDir: entry.isDir,
			Time:  entry.last,
		})
		if entry.renamedAway {
			events[len(events)-1].OldPath = path
		}
		delete(h.pending, path)
	}
	h.mu.Unlock()

	if len(events) == 0 {
		return
	}

	events = pairRenames(events)
	sortEvents(events)
	h.emit(Batch{Root: h.root, Events: events})
}

// pairRenames re-expresses a renamed-away path plus a single Created path
// in the same flush as one Renamed event. Anything more ambiguous stays as
// independent Delete/Create.
func pairRenames(events []Event) []Event {
	var away, created []int
	for i, ev := range events {
		if ev.Op == OpDeleted && ev.OldPath != "" {
			away = append(away, i)
		}
		if ev.Op == OpCreated {
			created = append(created, i)
		}
	}
	if len(away) != 1 || len(created) != 1 {
		// Drop the rename marker; these flush as plain deletes.
		for _, i := range away {
			events[i].OldPath = ""
		}
		return events
	}

	old := events[away[0]]
	moved := events[created[0]]
	renamed := Event{
		Op:      OpRenamed,
		Path:    moved.Path,
		OldPath: old.Path,
		IsDir:   moved.IsDir,
		Time:    moved.Time,
	}

	out := events[:0]
	for i, ev := range events {
		if i == away[0] || i == created[0] {
			continue
		}
		ev.OldPath = ""
		out = append(out, ev)
	}
	return append(out, renamed)
}

func sortEvents(events []Event) {
	// Stable order inside a batch: observation time, then path.
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Time.Equal(events[j].Time) {
			return events[i].Time.Before(events[j].Time)
		}
		return events[i].Path < events[j].Path
	})
}

func (h *Handle) emit(b Batch) {
	select {
	case h.batches <- b:
	case <-h.done:
	}
}

// terminate emits a terminal error batch and tears down the watch.
func (h *Handle) terminate(err error) {
	logging.Error("watch terminated", "root", h.root, "error", err)
	select {
	case h.batches <- Batch{Root: h.root, Err: err}:
	case <-h.done:
	}
	h.Close()
}
