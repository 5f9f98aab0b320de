package usecase

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"FinanceFlow/internal/domain"
	"FinanceFlow/internal/logging"
	"FinanceFlow/internal/ports"
)

// Enricher calls the analysis service for items that lack an annotation.
type Enricher struct {
	analyzer     ports.Analyzer
	concurrency  int
	maxBodyChars int
	level        string
	logger       *slog.Logger
}

// NewEnricher bounds in-flight analysis calls by concurrency. Bodies are
// cut to maxBodyChars characters before they leave the process.
func NewEnricher(analyzer ports.Analyzer, concurrency, maxBodyChars int, logger *slog.Logger) *Enricher {
	return &Enricher{
		analyzer:     analyzer,
		concurrency:  max(concurrency, 1),
		maxBodyChars: maxBodyChars,
		logger:       logging.OrNop(logger),
	}
}

// Enabled reports whether an analysis service is wired.
func (e *Enricher) Enabled() bool {
	return e != nil && e.analyzer != nil
}

// Enrich annotates one item. Any failure is logged and reported as false.
func (e *Enricher) Enrich(ctx context.Context, item domain.Item) (domain.Annotation, bool) {
	if !e.Enabled() {
		return domain.Annotation{}, false
	}
	if item.Title == "" && item.Body == "" {
		return domain.Annotation{}, false
	}

	started := time.Now()
	annotation, err := e.analyzer.Analyze(ctx, domain.AnalysisRequest{
		ItemID: item.ID,
		Source: item.Source,
		Title:  item.Title,
		Body:   truncateRunes(item.Body, e.maxBodyChars),
		Level:  e.level,
	})
	if err != nil {
		e.logger.WarnContext(ctx, "enrichment failed", "item_id", item.ID, "source", item.Source, "error", err)
		return domain.Annotation{}, false
	}
	e.logger.DebugContext(ctx, "item enriched", "item_id", item.ID,
		"impact", annotation.Impact, "duration_ms", time.Since(started).Milliseconds())
	return annotation, true
}

// EnrichAll annotates items with at most concurrency calls in flight. The
// result is aligned with items; nil marks a failure.
func (e *Enricher) EnrichAll(ctx context.Context, items []domain.Item) []*domain.Annotation {
	results := make([]*domain.Annotation, len(items))
	if !e.Enabled() || len(items) == 0 {
		return results
	}

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, item := range items {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if annotation, ok := e.Enrich(ctx, item); ok {
				results[i] = &annotation
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
