package usecase

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"FinanceFlow/internal/domain"
)

var _ = Describe("Enricher", func() {
	It("truncates on rune boundaries", func() {
		Expect(truncateRunes("héllo", 2)).To(Equal("hé"))
		Expect(truncateRunes("short", 10)).To(Equal("short"))
		Expect(truncateRunes("anything", 0)).To(Equal("anything"))
	})

	It("reports nothing when no analyzer is wired", func() {
		e := NewEnricher(nil, 2, 100, nil)
		Expect(e.Enabled()).To(BeFalse())
		Expect(e.EnrichAll(context.Background(), []domain.Item{newsItem("a", 0)})).To(Equal([]*domain.Annotation{nil}))
	})

	It("aligns results with the input and isolates failures", func() {
		analyzer := &mockAnalyzer{analyzeFn: func(_ context.Context, req domain.AnalysisRequest) (domain.Annotation, error) {
			if req.ItemID == "bad" {
				return domain.Annotation{}, errors.New("timeout")
			}
			return annotationFor(req.Title, 6), nil
		}}
		e := NewEnricher(analyzer, 3, 100, nil)

		results := e.EnrichAll(context.Background(), []domain.Item{newsItem("ok1", 0), newsItem("bad", 0), newsItem("ok2", 0)})
		Expect(results).To(HaveLen(3))
		Expect(results[0]).NotTo(BeNil())
		Expect(results[1]).To(BeNil())
		Expect(results[2].Synthesis).To(Equal("Synthesis of Headline ok2"))
	})

	It("skips items that carry no content", func() {
		analyzer := &mockAnalyzer{}
		_, ok := NewEnricher(analyzer, 1, 100, nil).Enrich(context.Background(), domain.Item{ID: "empty"})
		Expect(ok).To(BeFalse())
		Expect(analyzer.calls.Load()).To(BeZero())
	})
})
