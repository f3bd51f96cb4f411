// Package app wires the core services together and exposes the operations
// the frontend calls: browse, select, ask.
package app

import (
	gocontext "context"
	"errors"
	"fmt"
	"sync"

	"glance/internal/ai"
	"glance/internal/config"
	buildctx "glance/internal/context"
	"glance/internal/event"
	"glance/internal/extract"
	"glance/internal/index"
	"glance/internal/logging"
	"glance/internal/watch"
)

// App owns the core services for one workspace session.
type App struct {
	cfg     *config.Config
	bus     *event.Bus
	cache   *index.Cache
	builder *buildctx.Builder
	watches *watch.Service
	coord   *ai.Coordinator

	workspace string

	mu        sync.Mutex
	current   string // current browse path
	selection []string
	handle    *watch.Handle
}

// New constructs the application. Configuration-level failures (bad
// provider, missing API key, inaccessible workspace) are fatal here.
func New(cfg *config.Config, workspace string) (*App, error) {
	bus := event.NewBus()
	cache := index.New(cfg.Extract.ContentCacheSize, cfg.Watcher.IncludeHidden)
	registry := extract.NewRegistry(cfg.Extract)
	builder := buildctx.NewBuilder(cache, registry, cfg.Extract)

	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}

	limiter := ai.NewTokenBucket(cfg.RateLimit.RequestsPerMinute)
	coord := ai.NewCoordinator(client, bus, cfg.Retry, limiter)

	return &App{
		cfg:       cfg,
		bus:       bus,
		cache:     cache,
		builder:   builder,
		watches:   watch.NewService(cfg.Watcher),
		coord:     coord,
		workspace: workspace,
		current:   workspace,
	}, nil
}

func newClient(cfg *config.Config) (ai.Client, error) {
	switch cfg.API.GetProvider() {
	case "gemini":
		return ai.NewGeminiClient(gocontext.Background(), cfg)
	case "ollama":
		return ai.NewOllamaClient(cfg)
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.API.Provider)
	}
}

// Bus returns the event bus frontends subscribe to.
func (a *App) Bus() *event.Bus {
	return a.bus
}

// Cache exposes the metadata index for listings.
func (a *App) Cache() *index.Cache {
	return a.cache
}

// Workspace returns the workspace root.
func (a *App) Workspace() string {
	return a.workspace
}

// Run primes the index, starts the watch, and applies change batches until
// ctx is cancelled or the watch terminates.
func (a *App) Run(ctx gocontext.Context) error {
	if err := a.cache.SeedTree(a.workspace); err != nil {
		return fmt.Errorf("workspace inaccessible: %w", err)
	}

	handle, err := a.watches.Watch(a.workspace)
	if err != nil {
		if errors.Is(err, watch.ErrWatchLimit) {
			return fmt.Errorf("cannot watch %s: %w", a.workspace, err)
		}
		return err
	}
	a.mu.Lock()
	a.handle = handle
	a.mu.Unlock()

	a.bus.Publish(event.StatusMessage{Text: "watching " + a.workspace})

	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-handle.Batches():
			if !ok {
				return nil
			}
			a.applyBatch(batch)
			if batch.Err != nil {
				// Terminal for this watch root; the session keeps serving
				// cached state and AI requests.
				return nil
			}
		}
	}
}

func (a *App) applyBatch(batch watch.Batch) {
	switch {
	case batch.Err != nil:
		logging.Error("watch failed", "root", batch.Root, "error", batch.Err)
		a.bus.Publish(event.ErrorOccurred{Text: "watch stopped: " + batch.Err.Error()})
	case batch.Resync:
		logging.Warn("watch overflow, resyncing", "root", batch.Root)
		if err := a.cache.SeedTree(batch.Root); err != nil {
			a.bus.Publish(event.ErrorOccurred{Text: "resync failed: " + err.Error()})
			return
		}
		a.bus.Publish(batch)
	default:
		a.cache.ApplyBatch(batch.Events)
		a.bus.Publish(batch)
	}
}

// SetPath changes the current browse path.
func (a *App) SetPath(path string) {
	a.mu.Lock()
	a.current = path
	a.mu.Unlock()
	a.bus.Publish(event.PathChanged{Path: path})
}

// SetSelection replaces the selected file set. Order is meaningful: it is
// the priority order for context assembly.
func (a *App) SetSelection(paths []string) {
	a.mu.Lock()
	a.selection = append([]string(nil), paths...)
	a.mu.Unlock()
	a.bus.Publish(event.SelectionChanged{Paths: paths})
}

// Selection returns the current selection.
func (a *App) Selection() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.selection...)
}

// Ask assembles a context window from the current selection and submits a
// model request. Returns the request ticket.
func (a *App) Ask(ctx gocontext.Context, instruction string) (*ai.Ticket, error) {
	a.mu.Lock()
	selected := append([]string(nil), a.selection...)
	a.mu.Unlock()

	window, err := a.builder.Build(ctx, a.workspace, selected, a.cfg.Context.TokenBudget)
	if err != nil {
		return nil, err
	}

	return a.coord.Submit(ai.Request{
		Workspace:   a.workspace,
		Selected:    window.Paths(),
		Instruction: instruction,
		Window:      window,
	})
}

// CancelRequest cancels an in-flight model request.
func (a *App) CancelRequest(id string) {
	a.coord.Cancel(id)
}

// Close shuts down watches, the coordinator, and the bus.
func (a *App) Close() {
	a.watches.Close()
	if err := a.coord.Close(); err != nil {
		logging.Warn("coordinator close", "error", err)
	}
	a.bus.Close()
}
