package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"FinanceFlow/internal/domain"
)

var _ = Describe("WorkingSetCache", func() {
	var (
		clock *fakeClock
		ctx   context.Context
	)

	newCache := func(r Refresher, serveStale bool) *WorkingSetCache {
		c := NewWorkingSetCache(r, WorkingSetOptions{TTL: 10 * time.Minute, ServeStale: serveStale}, nil)
		c.now = clock.Now
		return c
	}

	BeforeEach(func() {
		clock = newFakeClock()
		ctx = context.Background()
	})

	It("serves a fresh set without refreshing", func() {
		var calls atomic.Int32
		c := newCache(refresherFunc(func(context.Context) ([]domain.Item, error) {
			calls.Add(1)
			return annotated(newsItem("a", 0)), nil
		}), true)

		first, err := c.Get(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(first.Items).To(HaveLen(1))
		Expect(first.StaleAt).To(Equal(clock.Now().Add(10 * time.Minute)))

		clock.Advance(9 * time.Minute)
		second, err := c.Get(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(second).To(Equal(first))
		Expect(calls.Load()).To(Equal(int32(1)))
	})

	It("runs a single refresh for concurrent callers", func() {
		var calls atomic.Int32
		release := make(chan struct{})
		c := newCache(refresherFunc(func(context.Context) ([]domain.Item, error) {
			calls.Add(1)
			<-release
			return annotated(newsItem("a", 0)), nil
		}), false)

		var wg sync.WaitGroup
		results := make([]domain.WorkingSet, 4)
		for i := range results {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				set, err := c.Get(ctx)
				Expect(err).NotTo(HaveOccurred())
				results[i] = set
			}()
		}

		Eventually(c.Refreshing).Should(BeTrue())
		close(release)
		wg.Wait()

		Expect(calls.Load()).To(Equal(int32(1)))
		for _, set := range results {
			Expect(set.Items).To(HaveLen(1))
		}
	})

	It("fetches each source once for two concurrent gets through the pipeline", func() {
		release := make(chan struct{})
		fetcher := &mockFetcher{fetchFn: func(_ context.Context, src domain.Source) []domain.Item {
			<-release
			return []domain.Item{newsItem(src.Name, 0)}
		}}
		sources := []domain.Source{{Name: "alpha"}, {Name: "beta"}}
		p := NewPipeline(PipelineDeps{
			Fetcher:  fetcher,
			Sources:  sources,
			Cache:    newMemoryCache(),
			Analyzer: &mockAnalyzer{},
		}, PipelineOptions{MaxItems: 10, EnrichConcurrency: 2})
		c := newCache(p, false)

		var wg sync.WaitGroup
		for range 2 {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				set, err := c.Get(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(set.Items).To(HaveLen(2))
			}()
		}

		Eventually(c.Refreshing).Should(BeTrue())
		close(release)
		wg.Wait()

		Expect(fetcher.callsFor("alpha")).To(Equal(1))
		Expect(fetcher.callsFor("beta")).To(Equal(1))
	})

	It("keeps the previous set when a refresh fails after the ttl", func() {
		var fail atomic.Bool
		c := newCache(refresherFunc(func(context.Context) ([]domain.Item, error) {
			if fail.Load() {
				return nil, domain.ErrNoItems
			}
			return annotated(newsItem("1", 1), newsItem("2", 2), newsItem("3", 3), newsItem("4", 4), newsItem("5", 5)), nil
		}), false)

		_, err := c.Get(ctx)
		Expect(err).NotTo(HaveOccurred())

		fail.Store(true)
		clock.Advance(11 * time.Minute)

		set, err := c.Get(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(set.Items).To(HaveLen(5))

		_, fresh := c.Peek()
		Expect(fresh).To(BeFalse())
	})

	It("returns the refresh error when nothing was ever published", func() {
		c := newCache(refresherFunc(func(context.Context) ([]domain.Item, error) {
			return nil, domain.ErrNoItems
		}), true)

		_, err := c.Get(ctx)
		Expect(err).To(MatchError(domain.ErrNoItems))

		set, fresh := c.Peek()
		Expect(set.Empty()).To(BeTrue())
		Expect(fresh).To(BeFalse())
	})

	It("serves the stale set immediately while refreshing in the background", func() {
		var round atomic.Int32
		release := make(chan struct{})
		c := newCache(refresherFunc(func(context.Context) ([]domain.Item, error) {
			if round.Add(1) == 1 {
				return annotated(newsItem("old", 10)), nil
			}
			<-release
			return annotated(newsItem("new", 0)), nil
		}), true)

		_, err := c.Get(ctx)
		Expect(err).NotTo(HaveOccurred())
		clock.Advance(11 * time.Minute)

		stale, err := c.Get(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(ids(stale.Items)).To(Equal([]string{"old"}))
		Expect(c.Refreshing()).To(BeTrue())

		close(release)
		Eventually(c.Refreshing).Should(BeFalse())

		current, err := c.Get(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(ids(current.Items)).To(Equal([]string{"new"}))
	})

	It("makes callers wait for the new set when stale serving is off", func() {
		var round atomic.Int32
		c := newCache(refresherFunc(func(context.Context) ([]domain.Item, error) {
			if round.Add(1) == 1 {
				return annotated(newsItem("old", 10)), nil
			}
			return annotated(newsItem("new", 0)), nil
		}), false)

		_, err := c.Get(ctx)
		Expect(err).NotTo(HaveOccurred())
		clock.Advance(11 * time.Minute)

		current, err := c.Get(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(ids(current.Items)).To(Equal([]string{"new"}))
	})

	It("refreshes again after Invalidate", func() {
		var calls atomic.Int32
		c := newCache(refresherFunc(func(context.Context) ([]domain.Item, error) {
			calls.Add(1)
			return annotated(newsItem("a", 0)), nil
		}), false)

		_, err := c.Get(ctx)
		Expect(err).NotTo(HaveOccurred())

		c.Invalidate()
		set, fresh := c.Peek()
		Expect(fresh).To(BeFalse())
		Expect(set.Items).To(HaveLen(1))

		_, err = c.Get(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(calls.Load()).To(Equal(int32(2)))
	})

	It("reports refresh failures from Refresh even with a previous set", func() {
		var fail atomic.Bool
		c := newCache(refresherFunc(func(context.Context) ([]domain.Item, error) {
			if fail.Load() {
				return nil, errors.New("upstream down")
			}
			return annotated(newsItem("a", 0)), nil
		}), true)

		_, err := c.Refresh(ctx)
		Expect(err).NotTo(HaveOccurred())

		fail.Store(true)
		set, err := c.Refresh(ctx)
		Expect(err).To(MatchError("upstream down"))
		Expect(set.Items).To(HaveLen(1))
	})

	It("stops waiting when the caller gives up but still publishes", func() {
		release := make(chan struct{})
		c := newCache(refresherFunc(func(ctx context.Context) ([]domain.Item, error) {
			<-release
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return annotated(newsItem("a", 0)), nil
		}), false)

		callerCtx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := c.Get(callerCtx)
		Expect(err).To(MatchError(context.Canceled))

		close(release)
		Eventually(func() bool {
			_, fresh := c.Peek()
			return fresh
		}).Should(BeTrue())
	})
})
