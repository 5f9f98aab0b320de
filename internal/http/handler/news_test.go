package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"FinanceFlow/internal/domain"
	"FinanceFlow/internal/http/handler"
	"FinanceFlow/internal/http/router"
	"FinanceFlow/internal/ports"
)

func sampleSet(n int) domain.WorkingSet {
	refreshed := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	set := domain.WorkingSet{RefreshedAt: refreshed, StaleAt: refreshed.Add(10 * time.Minute)}
	for i := range n {
		set.Items = append(set.Items, domain.Item{
			ID:          fmt.Sprintf("id-%d", i),
			Title:       fmt.Sprintf("Headline %d", i),
			PublishedAt: refreshed.Add(-time.Duration(i) * time.Minute),
			Annotation: &domain.Annotation{
				Synthesis: "synthesis",
				Sentiment: domain.SentimentPositive,
				Impact:    5,
				Symbols:   []string{"AAPL", "not a ticker", "", "BRK.B"},
			},
		})
	}
	return set
}

type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

var _ = Describe("NewsHandler", func() {
	var (
		engine    *gin.Engine
		ws        *mockWorkingSet
		assistant *mockAssistant
		quotes    *mockQuotes
		withAI    bool
		withQuote bool
	)

	build := func() {
		var a ports.Assistant
		var q ports.QuoteProvider
		if withAI {
			a = assistant
		}
		if withQuote {
			q = quotes
		}
		engine = router.New(handler.NewNewsHandler(ws, a, q, nil), router.RouterConfig{})
	}

	do := func(method, path string, body any) (*httptest.ResponseRecorder, envelope) {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		var env envelope
		_ = json.Unmarshal(w.Body.Bytes(), &env)
		return w, env
	}

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		ws = &mockWorkingSet{set: sampleSet(3), fresh: true}
		assistant = &mockAssistant{}
		quotes = &mockQuotes{}
		withAI, withQuote = true, true
	})

	Describe("GET /healthz", func() {
		It("reports working-set freshness", func() {
			ws.refreshing = true
			build()

			w, _ := do(http.MethodGet, "/healthz", nil)
			Expect(w.Code).To(Equal(http.StatusOK))

			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["status"]).To(Equal("ok"))
			status := resp["working_set"].(map[string]any)
			Expect(status["items"]).To(BeNumerically("==", 3))
			Expect(status["fresh"]).To(BeTrue())
			Expect(status["refreshing"]).To(BeTrue())
		})
	})

	Describe("GET /api/news", func() {
		It("returns the working set with quotes for valid symbols", func() {
			var asked []string
			quotes.quotesFn = func(_ context.Context, symbols []string) (map[string]domain.Quote, error) {
				asked = symbols
				return map[string]domain.Quote{"AAPL": {Symbol: "AAPL", Price: 190}}, nil
			}
			build()

			w, env := do(http.MethodGet, "/api/news?limit=2", nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(env.Status).To(Equal("success"))

			var data struct {
				Items  []domain.Item           `json:"items"`
				Fresh  bool                    `json:"fresh"`
				Quotes map[string]domain.Quote `json:"quotes"`
			}
			Expect(json.Unmarshal(env.Data, &data)).To(Succeed())
			Expect(data.Items).To(HaveLen(2))
			Expect(data.Fresh).To(BeTrue())
			Expect(data.Quotes).To(HaveKey("AAPL"))
			Expect(asked).To(Equal([]string{"AAPL", "BRK.B"}))
		})

		It("still answers when quotes fail", func() {
			quotes.quotesFn = func(context.Context, []string) (map[string]domain.Quote, error) {
				return nil, errors.New("quote service down")
			}
			build()

			w, env := do(http.MethodGet, "/api/news", nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(string(env.Data)).NotTo(ContainSubstring("quotes"))
		})

		It("rejects a malformed limit", func() {
			build()
			w, env := do(http.MethodGet, "/api/news?limit=abc", nil)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(env.Status).To(Equal("error"))
		})

		It("returns 503 when no set can be produced", func() {
			ws.getFn = func(context.Context) (domain.WorkingSet, error) {
				return domain.WorkingSet{}, domain.ErrNoItems
			}
			build()

			w, env := do(http.MethodGet, "/api/news", nil)
			Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
			Expect(env.Message).To(Equal("no sources returned news"))
		})
	})

	Describe("POST /api/ask", func() {
		It("passes the question and bounded context to the assistant", func() {
			ws.set = sampleSet(30)
			var got []domain.Item
			assistant.answerFn = func(_ context.Context, question string, items []domain.Item) (string, error) {
				got = items
				Expect(question).To(Equal("What moved Apple?"))
				return "Earnings.", nil
			}
			build()

			w, env := do(http.MethodPost, "/api/ask", map[string]any{"question": " What moved Apple? ", "context_items": 50})
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(got).To(HaveLen(20))
			Expect(got[0].ID).To(Equal("id-0"))
			Expect(string(env.Data)).To(ContainSubstring("Earnings."))
		})

		It("rejects an empty question", func() {
			build()
			w, _ := do(http.MethodPost, "/api/ask", map[string]any{"question": "   "})
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 503 when the assistant is disabled", func() {
			withAI = false
			build()
			w, _ := do(http.MethodPost, "/api/ask", map[string]any{"question": "hi"})
			Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
		})

		It("returns 502 when the assistant fails", func() {
			assistant.answerFn = func(context.Context, string, []domain.Item) (string, error) {
				return "", errors.New("rate limited")
			}
			build()
			w, _ := do(http.MethodPost, "/api/ask", map[string]any{"question": "hi"})
			Expect(w.Code).To(Equal(http.StatusBadGateway))
		})
	})

	Describe("GET /api/daily-brief", func() {
		It("builds a brief for the requested assets", func() {
			var gotAssets []string
			assistant.briefFn = func(_ context.Context, items []domain.Item, assets []string) (domain.Brief, error) {
				gotAssets = assets
				return domain.Brief{Date: "March 03, 2025", MarketOverview: "Mixed."}, nil
			}
			build()

			w, env := do(http.MethodGet, "/api/daily-brief?assets=aapl,%20btc,", nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(gotAssets).To(Equal([]string{"aapl", "btc"}))

			var brief domain.Brief
			Expect(json.Unmarshal(env.Data, &brief)).To(Succeed())
			Expect(brief.MarketOverview).To(Equal("Mixed."))
		})

		It("defaults the assets", func() {
			var gotAssets []string
			assistant.briefFn = func(_ context.Context, _ []domain.Item, assets []string) (domain.Brief, error) {
				gotAssets = assets
				return domain.Brief{MarketOverview: "ok"}, nil
			}
			build()

			w, _ := do(http.MethodGet, "/api/daily-brief", nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(gotAssets).To(Equal([]string{"tesla", "bitcoin"}))
		})

		It("returns 502 when the brief cannot be generated", func() {
			assistant.briefFn = func(context.Context, []domain.Item, []string) (domain.Brief, error) {
				return domain.Brief{}, errors.New("boom")
			}
			build()
			w, _ := do(http.MethodGet, "/api/daily-brief", nil)
			Expect(w.Code).To(Equal(http.StatusBadGateway))
		})
	})

	Describe("POST /api/news/invalidate", func() {
		It("marks the working set stale", func() {
			build()
			w, _ := do(http.MethodPost, "/api/news/invalidate", nil)
			Expect(w.Code).To(Equal(http.StatusAccepted))
			Expect(ws.invalidated).To(Equal(1))
		})
	})
})
