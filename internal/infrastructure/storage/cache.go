package storage

import (
	"context"
	"fmt"
	"log/slog"

	"FinanceFlow/internal/domain"
	"FinanceFlow/internal/logging"
	"FinanceFlow/internal/ports"
)

// Backend is a raw annotation store. Errors are reported as-is; Cache
// turns them into misses.
type Backend interface {
	Name() string
	Get(ctx context.Context, id string) (domain.Annotation, bool, error)
	Put(ctx context.Context, id string, annotation domain.Annotation) error
	Close() error
}

// Cache adapts a Backend to ports.AnnotationCache.
type Cache struct {
	backend Backend
	logger  *slog.Logger
}

var _ ports.AnnotationCache = (*Cache)(nil)

// NewCache wraps backend; a nil backend behaves like Nop.
func NewCache(backend Backend, logger *slog.Logger) *Cache {
	if backend == nil {
		backend = Nop{}
	}
	return &Cache{backend: backend, logger: logging.OrNop(logger)}
}

// Lookup returns the stored annotation. Backend failures degrade to a miss.
func (c *Cache) Lookup(ctx context.Context, id string) (domain.Annotation, bool) {
	annotation, ok, err := c.backend.Get(ctx, id)
	if err != nil {
		c.logger.WarnContext(ctx, "annotation lookup failed, treating as miss",
			"backend", c.backend.Name(), "id", id, "error", err)
		return domain.Annotation{}, false
	}
	return annotation, ok
}

// Store writes the annotation through to the backend.
func (c *Cache) Store(ctx context.Context, id string, annotation domain.Annotation) error {
	if err := c.backend.Put(ctx, id, annotation); err != nil {
		return fmt.Errorf("%s store %s: %w", c.backend.Name(), id, err)
	}
	return nil
}

// Backend exposes the wrapped store, mostly for logging.
func (c *Cache) Backend() string {
	return c.backend.Name()
}

// Close releases the backend.
func (c *Cache) Close() error {
	return c.backend.Close()
}

// Nop misses on every lookup and discards writes.
type Nop struct{}

var _ Backend = Nop{}

func (Nop) Name() string { return "none" }

func (Nop) Get(context.Context, string) (domain.Annotation, bool, error) {
	return domain.Annotation{}, false, nil
}

func (Nop) Put(context.Context, string, domain.Annotation) error { return nil }

func (Nop) Close() error { return nil }
