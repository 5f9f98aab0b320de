package usecase

import (
	"sort"

	"FinanceFlow/internal/domain"
)

// Merge combines batches into one set keyed by item ID. When an ID repeats
// the last occurrence wins. The result is ordered by PublishedAt descending
// (ties by ID ascending) and truncated to limit; limit <= 0 keeps everything.
func Merge(limit int, batches ...[]domain.Item) []domain.Item {
	index := make(map[string]int)
	var merged []domain.Item
	for _, batch := range batches {
		for _, item := range batch {
			if item.ID == "" {
				continue
			}
			if pos, ok := index[item.ID]; ok {
				merged[pos] = item
				continue
			}
			index[item.ID] = len(merged)
			merged = append(merged, item)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.After(b.PublishedAt)
		}
		return a.ID < b.ID
	})

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}
