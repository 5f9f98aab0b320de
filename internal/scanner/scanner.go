package scanner

import (
	"context"
	"fmt"
	"time"
)

// Request carries all parameters required to execute a scan of one source.
type Request struct {
	SourceName string
	URL        string
	Limit      int
	Options    map[string]string
}

// Entry is a raw record as read from a source, before normalization.
type Entry struct {
	GUID        string
	Title       string
	Body        string
	URL         string
	Category    string
	PublishedAt *time.Time
}

// Scanner captures a single strategy implementation (RSS, HTML listing, etc.).
// Malformed entries are skipped by the strategy; an error means the whole
// source could not be read.
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) ([]Entry, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}
