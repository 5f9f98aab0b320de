package ports

import (
	"context"
	"time"

	"FinanceFlow/internal/domain"
)

// ItemFetcher pulls items for a single configured source. A failing source
// yields an empty result rather than an error.
type ItemFetcher interface {
	Fetch(ctx context.Context, src domain.Source) []domain.Item
}

// AnnotationCache is the durable id -> annotation store. Lookup failures
// surface as misses.
type AnnotationCache interface {
	Lookup(ctx context.Context, id string) (domain.Annotation, bool)
	Store(ctx context.Context, id string, annotation domain.Annotation) error
}

// Analyzer produces annotations through the external analysis service.
type Analyzer interface {
	Analyze(ctx context.Context, req domain.AnalysisRequest) (domain.Annotation, error)
}

// Assistant answers free-form questions and writes market briefs over recent items.
type Assistant interface {
	Answer(ctx context.Context, question string, items []domain.Item) (string, error)
	Brief(ctx context.Context, items []domain.Item, assets []string) (domain.Brief, error)
}

// QuoteProvider retrieves price snapshots for ticker symbols.
type QuoteProvider interface {
	Quotes(ctx context.Context, symbols []string) (map[string]domain.Quote, error)
}

// Notifier streams digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when refreshes execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
