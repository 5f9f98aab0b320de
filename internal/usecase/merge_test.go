package usecase

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"FinanceFlow/internal/domain"
)

func ids(items []domain.Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

var _ = Describe("Merge", func() {
	It("keeps one item per id with the last occurrence winning", func() {
		first := newsItem("a", 10)
		again := newsItem("a", 10)
		again.Title = "Updated headline"

		merged := Merge(0, []domain.Item{first, newsItem("b", 5)}, []domain.Item{again})

		Expect(ids(merged)).To(Equal([]string{"b", "a"}))
		Expect(merged[1].Title).To(Equal("Updated headline"))
	})

	It("is idempotent", func() {
		batches := [][]domain.Item{
			{newsItem("a", 1), newsItem("b", 2), newsItem("a", 1)},
			{newsItem("c", 3), newsItem("b", 2)},
		}
		once := Merge(0, batches...)
		twice := Merge(0, once, once)

		Expect(twice).To(Equal(once))
		Expect(once).To(HaveLen(3))
	})

	It("orders most recent first and breaks ties by id", func() {
		merged := Merge(0,
			[]domain.Item{newsItem("z", 30), newsItem("m", 0)},
			[]domain.Item{newsItem("b", 30), newsItem("a", 45)},
		)

		Expect(ids(merged)).To(Equal([]string{"m", "b", "z", "a"}))
		for i := 1; i < len(merged); i++ {
			Expect(merged[i-1].PublishedAt.Before(merged[i].PublishedAt)).To(BeFalse())
		}
	})

	It("truncates to the limit after ordering", func() {
		merged := Merge(2, []domain.Item{newsItem("old", 60), newsItem("new", 1), newsItem("mid", 30)})
		Expect(ids(merged)).To(Equal([]string{"new", "mid"}))
	})

	It("skips items without identity and tolerates empty input", func() {
		Expect(Merge(5)).To(BeEmpty())
		Expect(Merge(5, []domain.Item{{Title: "anonymous"}}, nil)).To(BeEmpty())
	})
})
