package handler_test

import (
	"context"

	"FinanceFlow/internal/domain"
)

type mockWorkingSet struct {
	getFn       func(ctx context.Context) (domain.WorkingSet, error)
	fresh       bool
	set         domain.WorkingSet
	refreshing  bool
	invalidated int
}

func (m *mockWorkingSet) Get(ctx context.Context) (domain.WorkingSet, error) {
	if m.getFn != nil {
		return m.getFn(ctx)
	}
	return m.set, nil
}

func (m *mockWorkingSet) Peek() (domain.WorkingSet, bool) {
	return m.set, m.fresh
}

func (m *mockWorkingSet) Invalidate() {
	m.invalidated++
}

func (m *mockWorkingSet) Refreshing() bool {
	return m.refreshing
}

type mockAssistant struct {
	answerFn func(ctx context.Context, question string, items []domain.Item) (string, error)
	briefFn  func(ctx context.Context, items []domain.Item, assets []string) (domain.Brief, error)
}

func (m *mockAssistant) Answer(ctx context.Context, question string, items []domain.Item) (string, error) {
	if m.answerFn != nil {
		return m.answerFn(ctx, question, items)
	}
	return "", nil
}

func (m *mockAssistant) Brief(ctx context.Context, items []domain.Item, assets []string) (domain.Brief, error) {
	if m.briefFn != nil {
		return m.briefFn(ctx, items, assets)
	}
	return domain.Brief{}, nil
}

type mockQuotes struct {
	quotesFn func(ctx context.Context, symbols []string) (map[string]domain.Quote, error)
}

func (m *mockQuotes) Quotes(ctx context.Context, symbols []string) (map[string]domain.Quote, error) {
	if m.quotesFn != nil {
		return m.quotesFn(ctx, symbols)
	}
	return map[string]domain.Quote{}, nil
}
