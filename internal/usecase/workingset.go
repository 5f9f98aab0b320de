package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"FinanceFlow/internal/domain"
	"FinanceFlow/internal/logging"
)

// Refresher produces a fully annotated item list.
type Refresher interface {
	Refresh(ctx context.Context) ([]domain.Item, error)
}

// WorkingSetOptions configures the in-process result cache.
type WorkingSetOptions struct {
	TTL time.Duration
	// ServeStale returns the previous set immediately while a refresh runs
	// in the background. When false every caller waits for the refresh.
	ServeStale bool
}

// WorkingSetCache holds the last published WorkingSet and makes sure at
// most one refresh runs at a time. The in-flight marker and the published
// set are only touched under mu.
type WorkingSetCache struct {
	refresher  Refresher
	ttl        time.Duration
	serveStale bool
	now        func() time.Time
	logger     *slog.Logger

	mu       sync.Mutex
	current  domain.WorkingSet
	inflight *flight
}

type flight struct {
	done chan struct{}
	set  domain.WorkingSet
	err  error
}

// NewWorkingSetCache wraps refresher. A TTL below one second is raised to one second.
func NewWorkingSetCache(refresher Refresher, opts WorkingSetOptions, logger *slog.Logger) *WorkingSetCache {
	return &WorkingSetCache{
		refresher:  refresher,
		ttl:        max(opts.TTL, time.Second),
		serveStale: opts.ServeStale,
		now:        time.Now,
		logger:     logging.OrNop(logger),
	}
}

// Get returns the current set, refreshing it first when it is stale.
// A failed refresh falls back to the previous set without error; the
// refresh error is returned only when nothing was ever published.
func (c *WorkingSetCache) Get(ctx context.Context) (domain.WorkingSet, error) {
	c.mu.Lock()
	if c.current.FreshAt(c.now()) {
		set := c.current
		c.mu.Unlock()
		return set, nil
	}
	f := c.startLocked(ctx)
	previous := c.current
	c.mu.Unlock()

	if c.serveStale && !previous.Empty() {
		return previous, nil
	}
	return c.wait(ctx, f, true)
}

// Refresh forces a refresh, joining one already in flight, and returns its
// outcome. Unlike Get, a failure is reported even when a previous set exists.
func (c *WorkingSetCache) Refresh(ctx context.Context) (domain.WorkingSet, error) {
	c.mu.Lock()
	f := c.startLocked(ctx)
	c.mu.Unlock()
	return c.wait(ctx, f, false)
}

// Invalidate marks the current set stale. The set itself is kept so it
// can still be served while the next refresh runs.
func (c *WorkingSetCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.current.Empty() {
		c.current.StaleAt = c.now()
	}
}

// Peek returns the current set and whether it is fresh, without triggering work.
func (c *WorkingSetCache) Peek() (domain.WorkingSet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.current.FreshAt(c.now())
}

// Refreshing reports whether a refresh is in flight.
func (c *WorkingSetCache) Refreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight != nil
}

// startLocked returns the in-flight refresh or launches a new one. The
// refresh is detached from the caller's cancellation but keeps its values.
func (c *WorkingSetCache) startLocked(ctx context.Context) *flight {
	if c.inflight != nil {
		return c.inflight
	}
	f := &flight{done: make(chan struct{})}
	c.inflight = f
	go c.run(context.WithoutCancel(ctx), f)
	return f
}

func (c *WorkingSetCache) run(ctx context.Context, f *flight) {
	items, err := c.refresher.Refresh(ctx)

	c.mu.Lock()
	if err == nil {
		now := c.now()
		c.current = domain.WorkingSet{Items: items, RefreshedAt: now, StaleAt: now.Add(c.ttl)}
	}
	f.set, f.err = c.current, err
	c.inflight = nil
	c.mu.Unlock()
	close(f.done)

	if err != nil {
		c.logger.WarnContext(ctx, "working set refresh failed, keeping previous set",
			"error", err, "previous_items", len(f.set.Items))
		return
	}
	c.logger.InfoContext(ctx, "working set published", "items", len(items), "stale_at", f.set.StaleAt)
}

func (c *WorkingSetCache) wait(ctx context.Context, f *flight, fallback bool) (domain.WorkingSet, error) {
	select {
	case <-f.done:
	case <-ctx.Done():
		return domain.WorkingSet{}, ctx.Err()
	}
	if f.err != nil && !(fallback && !f.set.Empty()) {
		return f.set, f.err
	}
	return f.set, nil
}
