package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"FinanceFlow/internal/domain"
	"FinanceFlow/internal/logging"
	"FinanceFlow/internal/ports"
)

const writeThroughTimeout = 10 * time.Second

var tracer = otel.Tracer("FinanceFlow/internal/usecase")

// PipelineDeps wires all driven adapters into the refresh pipeline.
type PipelineDeps struct {
	Fetcher  ports.ItemFetcher
	Sources  []domain.Source
	Cache    ports.AnnotationCache
	Analyzer ports.Analyzer
	Notifier ports.Notifier
	Logger   *slog.Logger
}

// PipelineOptions bounds one refresh run.
type PipelineOptions struct {
	MaxItems          int
	FetchConcurrency  int
	LookupConcurrency int
	EnrichConcurrency int
	MaxBodyChars      int
	RefreshTimeout    time.Duration
	// Level is the reader level annotations are written for. It is part of
	// the persistent-cache key, so each (item, level) pair is enriched once.
	Level string
	// AlertImpact is the minimum impact of a newly enriched item that is
	// pushed to the notifier; 0 disables alerts.
	AlertImpact int
}

// RunResult describes one completed refresh.
type RunResult struct {
	RunID     string
	Items     []domain.Item
	Fetched   int
	Merged    int
	CacheHits int
	Enriched  int
	Dropped   int
	Duration  time.Duration
}

// Pipeline implements fetch, merge, cache partition, enrichment and write-through.
type Pipeline struct {
	fetcher  ports.ItemFetcher
	sources  []domain.Source
	cache    ports.AnnotationCache
	enricher *Enricher
	notifier ports.Notifier
	opts     PipelineOptions
	logger   *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps, opts PipelineOptions) *Pipeline {
	logger := logging.OrNop(deps.Logger)
	opts.FetchConcurrency = max(opts.FetchConcurrency, 1)
	opts.LookupConcurrency = max(opts.LookupConcurrency, 1)

	enricher := NewEnricher(deps.Analyzer, opts.EnrichConcurrency, opts.MaxBodyChars, logger.With("component", "enricher"))
	enricher.level = opts.Level

	return &Pipeline{
		fetcher:  deps.Fetcher,
		sources:  deps.Sources,
		cache:    deps.Cache,
		enricher: enricher,
		notifier: deps.Notifier,
		opts:     opts,
		logger:   logger,
	}
}

// Refresh runs the pipeline and returns only the published items.
func (p *Pipeline) Refresh(ctx context.Context) ([]domain.Item, error) {
	result, err := p.Run(ctx)
	if err != nil {
		return nil, err
	}
	return result.Items, nil
}

// Run executes one refresh. Every item in the result carries an annotation.
// It fails with domain.ErrNoItems when no source produced anything, with
// domain.ErrNothingAnnotated when nothing could be annotated, and with the
// context error when the run outlives RefreshTimeout.
func (p *Pipeline) Run(ctx context.Context) (RunResult, error) {
	result := RunResult{RunID: uuid.NewString()}
	started := time.Now()

	ctx, span := tracer.Start(ctx, "pipeline.refresh")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", result.RunID), attribute.Int("sources", len(p.sources)))

	if p.opts.RefreshTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.RefreshTimeout)
		defer cancel()
	}

	log := p.logger.With("run_id", result.RunID)
	log.InfoContext(ctx, "refresh started", "sources", len(p.sources))

	fail := func(err error) (RunResult, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.WarnContext(ctx, "refresh failed", "error", err, "duration_ms", time.Since(started).Milliseconds())
		return RunResult{}, err
	}

	batches := p.fetchAll(ctx)
	for _, batch := range batches {
		result.Fetched += len(batch)
	}
	if result.Fetched == 0 {
		if err := ctx.Err(); err != nil {
			return fail(fmt.Errorf("refresh abandoned: %w", err))
		}
		return fail(domain.ErrNoItems)
	}

	merged := Merge(p.opts.MaxItems, batches...)
	result.Merged = len(merged)

	cached := p.lookupAll(ctx, merged)
	var misses []domain.Item
	for i, annotation := range cached {
		if annotation != nil {
			result.CacheHits++
			continue
		}
		misses = append(misses, merged[i])
	}

	enriched := p.enricher.EnrichAll(ctx, misses)
	fresh := make(map[string]*domain.Annotation, len(misses))
	for i, annotation := range enriched {
		if annotation != nil {
			fresh[misses[i].ID] = annotation
		}
	}
	result.Enriched = len(fresh)

	p.writeThrough(ctx, log, fresh)

	if err := ctx.Err(); err != nil {
		return fail(fmt.Errorf("refresh abandoned: %w", err))
	}

	items := make([]domain.Item, 0, len(merged))
	var alerts []domain.Item
	for i, item := range merged {
		annotation := cached[i]
		if annotation == nil {
			annotation = fresh[item.ID]
			if annotation != nil && p.opts.AlertImpact > 0 && annotation.Impact >= p.opts.AlertImpact {
				alerts = append(alerts, withAnnotation(item, annotation))
			}
		}
		if annotation == nil {
			result.Dropped++
			continue
		}
		items = append(items, withAnnotation(item, annotation))
	}
	if len(items) == 0 {
		return fail(fmt.Errorf("%w: %d items, %d enrichment failures", domain.ErrNothingAnnotated, len(merged), result.Dropped))
	}
	result.Items = items
	result.Duration = time.Since(started)

	span.SetAttributes(
		attribute.Int("items.fetched", result.Fetched),
		attribute.Int("items.merged", result.Merged),
		attribute.Int("items.cache_hits", result.CacheHits),
		attribute.Int("items.enriched", result.Enriched),
		attribute.Int("items.dropped", result.Dropped),
	)
	log.InfoContext(ctx, "refresh completed",
		"fetched", result.Fetched,
		"merged", result.Merged,
		"cache_hits", result.CacheHits,
		"enriched", result.Enriched,
		"dropped", result.Dropped,
		"duration_ms", result.Duration.Milliseconds())

	p.alert(ctx, log, alerts)
	return result, nil
}

func (p *Pipeline) fetchAll(ctx context.Context) [][]domain.Item {
	batches := make([][]domain.Item, len(p.sources))
	if p.fetcher == nil {
		return batches
	}

	var g errgroup.Group
	g.SetLimit(p.opts.FetchConcurrency)
	for i, src := range p.sources {
		g.Go(func() error {
			batches[i] = p.fetcher.Fetch(ctx, src)
			return nil
		})
	}
	_ = g.Wait()
	return batches
}

func (p *Pipeline) lookupAll(ctx context.Context, items []domain.Item) []*domain.Annotation {
	results := make([]*domain.Annotation, len(items))
	if p.cache == nil {
		return results
	}

	var g errgroup.Group
	g.SetLimit(p.opts.LookupConcurrency)
	for i, item := range items {
		g.Go(func() error {
			annotation, ok := p.cache.Lookup(ctx, domain.AnnotationKey(item.ID, p.opts.Level))
			if !ok {
				return nil
			}
			if err := annotation.Validate(); err != nil {
				p.logger.WarnContext(ctx, "cached annotation rejected, treating as miss", "item_id", item.ID, "error", err)
				return nil
			}
			results[i] = &annotation
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// writeThrough persists new annotations. It outlives the run deadline so
// work already paid for is kept even when the run is abandoned.
func (p *Pipeline) writeThrough(ctx context.Context, log *slog.Logger, fresh map[string]*domain.Annotation) {
	if p.cache == nil || len(fresh) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeThroughTimeout)
	defer cancel()

	var g errgroup.Group
	g.SetLimit(p.opts.LookupConcurrency)
	for id, annotation := range fresh {
		g.Go(func() error {
			if err := p.cache.Store(ctx, domain.AnnotationKey(id, p.opts.Level), *annotation); err != nil {
				log.WarnContext(ctx, "annotation store failed", "item_id", id, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (p *Pipeline) alert(ctx context.Context, log *slog.Logger, items []domain.Item) {
	if p.notifier == nil || len(items) == 0 {
		return
	}
	if err := p.notifier.PublishDigest(ctx, buildDigestMessage(items)); err != nil {
		log.WarnContext(ctx, "alert delivery failed", "items", len(items), "error", err)
		return
	}
	log.InfoContext(ctx, "alert delivered", "items", len(items))
}

func withAnnotation(item domain.Item, annotation *domain.Annotation) domain.Item {
	a := *annotation
	item.Annotation = &a
	return item
}

func buildDigestMessage(items []domain.Item) string {
	var b strings.Builder
	for _, item := range items {
		a := item.Annotation
		fmt.Fprintf(&b, "- %s\nImpact: %d/10 (%s)", item.Title, a.Impact, a.Sentiment)
		if symbols := a.ValidSymbols(); len(symbols) > 0 {
			fmt.Fprintf(&b, " %s", strings.Join(symbols, ", "))
		}
		fmt.Fprintf(&b, "\n%s\n%s\n\n", a.Synthesis, item.URL)
	}
	return strings.TrimSpace(b.String())
}
