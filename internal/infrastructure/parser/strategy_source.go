package parser

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"FinanceFlow/internal/domain"
	"FinanceFlow/internal/logging"
	"FinanceFlow/internal/ports"
	"FinanceFlow/internal/scanner"
)

// StrategySource implements ItemFetcher via registered scanner strategies.
type StrategySource struct {
	registry     *scanner.Registry
	minBodyChars int
	now          func() time.Time
	logger       *slog.Logger
}

var _ ports.ItemFetcher = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry. Entries whose body has fewer
// than minBodyChars characters are discarded.
func NewStrategySource(reg *scanner.Registry, minBodyChars int, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry:     reg,
		minBodyChars: minBodyChars,
		now:          time.Now,
		logger:       logging.OrNop(log),
	}
}

// Fetch runs the source's scanner once and normalizes the result. Any
// failure yields an empty slice; the pipeline tolerates partial availability.
func (s *StrategySource) Fetch(ctx context.Context, src domain.Source) []domain.Item {
	log := s.logger.With("source", src.Name, "scanner", src.Scanner)

	if s.registry == nil {
		log.Warn("scanner registry is not configured")
		return nil
	}
	strategy, err := s.registry.Resolve(src.Scanner)
	if err != nil {
		log.Warn("source skipped", "error", err)
		return nil
	}

	started := s.now()
	entries, err := strategy.Scan(ctx, scanner.Request{
		SourceName: src.Name,
		URL:        src.URL,
		Limit:      src.Limit,
		Options:    src.Options,
	})
	if err != nil {
		log.Warn("source fetch failed", "url", src.URL, "error", err)
		return nil
	}

	items := s.normalize(src, entries, started)
	log.Debug("source produced items", "entries", len(entries), "items", len(items),
		"duration_ms", s.now().Sub(started).Milliseconds())
	return items
}

func (s *StrategySource) normalize(src domain.Source, entries []scanner.Entry, fetchedAt time.Time) []domain.Item {
	items := make([]domain.Item, 0, len(entries))
	short := 0
	for _, e := range entries {
		if src.Limit > 0 && len(items) >= src.Limit {
			break
		}
		if utf8.RuneCountInString(e.Body) < s.minBodyChars {
			short++
			continue
		}

		id := domain.CanonicalID(e.URL, e.GUID, src.Name, e.Title)
		if id == "" {
			s.logger.Warn("skip entry without identity", "source", src.Name, "title", e.Title)
			continue
		}

		published := fetchedAt.UTC()
		if e.PublishedAt != nil && !e.PublishedAt.IsZero() {
			published = e.PublishedAt.UTC()
		}

		category := e.Category
		if category == "" {
			category = src.Category
		}

		items = append(items, domain.Item{
			ID:          id,
			Title:       e.Title,
			Body:        e.Body,
			URL:         e.URL,
			Source:      src.Name,
			Category:    category,
			PublishedAt: published,
		})
	}
	if short > 0 {
		s.logger.Debug("discarded short entries", "source", src.Name, "count", short, "min_body_chars", s.minBodyChars)
	}
	return items
}
