package usecase

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"FinanceFlow/internal/domain"
)

var _ = Describe("Pipeline", func() {
	var (
		fetcher  *mockFetcher
		analyzer *mockAnalyzer
		cache    *memoryCache
		notifier *mockNotifier
		sources  []domain.Source
		opts     PipelineOptions
		ctx      context.Context
	)

	newPipeline := func() *Pipeline {
		return NewPipeline(PipelineDeps{
			Fetcher:  fetcher,
			Sources:  sources,
			Cache:    cache,
			Analyzer: analyzer,
			Notifier: notifier,
		}, opts)
	}

	BeforeEach(func() {
		ctx = context.Background()
		sources = []domain.Source{{Name: "alpha"}, {Name: "beta"}, {Name: "gamma"}}
		fetcher = &mockFetcher{fetchFn: func(_ context.Context, src domain.Source) []domain.Item {
			switch src.Name {
			case "alpha":
				return []domain.Item{newsItem("a1", 1), newsItem("shared", 5)}
			case "beta":
				return []domain.Item{newsItem("b1", 2), newsItem("shared", 5)}
			default:
				return nil
			}
		}}
		analyzer = &mockAnalyzer{}
		cache = newMemoryCache()
		notifier = &mockNotifier{}
		opts = PipelineOptions{
			MaxItems:          10,
			FetchConcurrency:  2,
			LookupConcurrency: 4,
			EnrichConcurrency: 2,
			MaxBodyChars:      1500,
			RefreshTimeout:    5 * time.Second,
		}
	})

	It("publishes a merged, fully annotated set", func() {
		result, err := newPipeline().Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(ids(result.Items)).To(Equal([]string{"a1", "b1", "shared"}))
		for _, item := range result.Items {
			Expect(item.Annotation).NotTo(BeNil())
		}
		Expect(result.RunID).NotTo(BeEmpty())
		Expect(result.Fetched).To(Equal(4))
		Expect(result.Merged).To(Equal(3))
		Expect(result.Enriched).To(Equal(3))
		Expect(cache.size()).To(Equal(3))
	})

	It("enriches each id at most once across runs", func() {
		p := newPipeline()
		_, err := p.Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		result, err := p.Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(result.CacheHits).To(Equal(3))
		Expect(result.Enriched).To(Equal(0))
		for _, id := range []string{"a1", "b1", "shared"} {
			Expect(analyzer.callsFor(id)).To(Equal(1), id)
		}
	})

	It("drops items whose enrichment fails", func() {
		analyzer.analyzeFn = func(_ context.Context, req domain.AnalysisRequest) (domain.Annotation, error) {
			if req.ItemID == "b1" {
				return domain.Annotation{}, errors.New("model overloaded")
			}
			return annotationFor(req.Title, 4), nil
		}

		result, err := newPipeline().Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(ids(result.Items)).To(Equal([]string{"a1", "shared"}))
		Expect(result.Dropped).To(Equal(1))
	})

	It("serves cache hits without calling the analyzer", func() {
		Expect(cache.Store(ctx, "a1", annotationFor("cached", 3))).To(Succeed())

		result, err := newPipeline().Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(analyzer.callsFor("a1")).To(Equal(0))
		Expect(result.CacheHits).To(Equal(1))
		Expect(result.Items[0].Annotation.Synthesis).To(Equal("Synthesis of cached"))
	})

	It("treats a cached annotation missing required fields as a miss", func() {
		Expect(cache.Store(ctx, "a1", domain.Annotation{})).To(Succeed())
		Expect(cache.Store(ctx, "b1", domain.Annotation{Synthesis: "old row", Sentiment: "bullish", Impact: 0})).To(Succeed())

		result, err := newPipeline().Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.CacheHits).To(Equal(0))
		Expect(analyzer.callsFor("a1")).To(Equal(1))
		Expect(analyzer.callsFor("b1")).To(Equal(1))
		for _, item := range result.Items {
			Expect(item.Annotation.Validate()).To(Succeed())
		}

		repaired, ok := cache.Lookup(ctx, "a1")
		Expect(ok).To(BeTrue())
		Expect(repaired.Synthesis).NotTo(BeEmpty())
	})

	It("keys cached annotations by reader level", func() {
		Expect(cache.Store(ctx, "a1", annotationFor("intermediate copy", 3))).To(Succeed())
		opts.Level = domain.LevelBeginner
		analyzer.analyzeFn = func(_ context.Context, req domain.AnalysisRequest) (domain.Annotation, error) {
			if req.Level != domain.LevelBeginner {
				return domain.Annotation{}, errors.New("unexpected level " + req.Level)
			}
			return annotationFor(req.Title, 4), nil
		}

		result, err := newPipeline().Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Items).To(HaveLen(3))
		Expect(result.CacheHits).To(Equal(0))
		Expect(analyzer.callsFor("a1")).To(Equal(1))

		_, ok := cache.Lookup(ctx, "a1|beginner")
		Expect(ok).To(BeTrue())
	})

	It("truncates bodies before they reach the analyzer", func() {
		long := newsItem("long", 0)
		long.Body = strings.Repeat("é", 10000)
		fetcher.fetchFn = func(context.Context, domain.Source) []domain.Item {
			return []domain.Item{long}
		}

		_, err := newPipeline().Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(utf8.RuneCountInString(analyzer.bodyFor("long"))).To(Equal(1500))
	})

	It("keeps enrichment within the worker budget", func() {
		var batch []domain.Item
		for _, id := range []string{"1", "2", "3", "4", "5", "6", "7", "8"} {
			batch = append(batch, newsItem(id, 0))
		}
		fetcher.fetchFn = func(context.Context, domain.Source) []domain.Item { return batch }
		analyzer.analyzeFn = func(_ context.Context, req domain.AnalysisRequest) (domain.Annotation, error) {
			time.Sleep(10 * time.Millisecond)
			return annotationFor(req.Title, 2), nil
		}

		result, err := newPipeline().Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Items).To(HaveLen(8))
		Expect(analyzer.peak.Load()).To(BeNumerically("<=", 2))
	})

	It("fails with ErrNoItems when every source is empty", func() {
		fetcher.fetchFn = func(context.Context, domain.Source) []domain.Item { return nil }

		_, err := newPipeline().Run(ctx)
		Expect(err).To(MatchError(domain.ErrNoItems))
		Expect(analyzer.calls.Load()).To(BeZero())
	})

	It("fails with ErrNothingAnnotated when no item can be annotated", func() {
		analyzer.analyzeFn = func(context.Context, domain.AnalysisRequest) (domain.Annotation, error) {
			return domain.Annotation{}, domain.ErrInvalidAnnotation
		}

		_, err := newPipeline().Run(ctx)
		Expect(errors.Is(err, domain.ErrNothingAnnotated)).To(BeTrue())
	})

	It("publishes only cache hits when no analyzer is configured", func() {
		Expect(cache.Store(ctx, "shared", annotationFor("cached", 3))).To(Succeed())

		p := NewPipeline(PipelineDeps{Fetcher: fetcher, Sources: sources, Cache: cache}, opts)
		result, err := p.Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(ids(result.Items)).To(Equal([]string{"shared"}))
	})

	It("tolerates a failing persistent store", func() {
		cache.storeErr = errors.New("read-only filesystem")

		result, err := newPipeline().Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Items).To(HaveLen(3))
	})

	It("abandons the run when the deadline passes", func() {
		opts.RefreshTimeout = 50 * time.Millisecond
		analyzer.analyzeFn = func(ctx context.Context, _ domain.AnalysisRequest) (domain.Annotation, error) {
			<-ctx.Done()
			return domain.Annotation{}, ctx.Err()
		}

		_, err := newPipeline().Run(ctx)
		Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
	})

	It("alerts on newly enriched high-impact items only", func() {
		opts.AlertImpact = 8
		Expect(cache.Store(ctx, "shared", annotationFor("cached", 10))).To(Succeed())
		analyzer.analyzeFn = func(_ context.Context, req domain.AnalysisRequest) (domain.Annotation, error) {
			if req.ItemID == "a1" {
				return annotationFor(req.Title, 9), nil
			}
			return annotationFor(req.Title, 3), nil
		}

		_, err := newPipeline().Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		sent := notifier.sent()
		Expect(sent).To(HaveLen(1))
		Expect(sent[0]).To(ContainSubstring("Headline a1"))
		Expect(sent[0]).To(ContainSubstring("Impact: 9/10"))
		Expect(sent[0]).NotTo(ContainSubstring("Headline shared"))
		Expect(sent[0]).NotTo(ContainSubstring("Headline b1"))
	})

	It("does not fail the run when the alert cannot be delivered", func() {
		opts.AlertImpact = 1
		notifier.publishFn = func(context.Context, string) error { return errors.New("telegram down") }

		_, err := newPipeline().Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(notifier.sent()).To(HaveLen(1))
	})
})
