package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"FinanceFlow/internal/domain"
	"FinanceFlow/internal/http/dto"
	"FinanceFlow/internal/logging"
	"FinanceFlow/internal/ports"
)

const (
	defaultAskContext = 10
	maxAskContext     = 20
	briefHeadlines    = 10
	defaultAssets     = "tesla,bitcoin"
)

// WorkingSetService is the slice of the working-set cache the handlers need.
type WorkingSetService interface {
	Get(ctx context.Context) (domain.WorkingSet, error)
	Peek() (domain.WorkingSet, bool)
	Invalidate()
	Refreshing() bool
}

type NewsHandler struct {
	workingSet WorkingSetService
	assistant  ports.Assistant
	quotes     ports.QuoteProvider
	logger     *slog.Logger
}

// NewNewsHandler wires the handler. assistant and quotes may be nil.
func NewNewsHandler(workingSet WorkingSetService, assistant ports.Assistant, quotes ports.QuoteProvider, logger *slog.Logger) *NewsHandler {
	return &NewsHandler{
		workingSet: workingSet,
		assistant:  assistant,
		quotes:     quotes,
		logger:     logging.OrNop(logger),
	}
}

func (h *NewsHandler) Health(c *gin.Context) {
	set, fresh := h.workingSet.Peek()
	status := dto.WorkingSetStatus{
		Items:      len(set.Items),
		Fresh:      fresh,
		Refreshing: h.workingSet.Refreshing(),
	}
	if !set.Empty() {
		refreshed := set.RefreshedAt
		status.RefreshedAt = &refreshed
	}
	c.JSON(http.StatusOK, dto.HealthResponse{Status: "ok", WorkingSet: status})
}

func (h *NewsHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			fail(c, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	set, ok := h.currentSet(c)
	if !ok {
		return
	}
	_, fresh := h.workingSet.Peek()

	items := set.Items
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	resp := dto.NewsResponse{
		Items:       items,
		RefreshedAt: set.RefreshedAt,
		StaleAt:     set.StaleAt,
		Fresh:       fresh,
	}
	resp.Quotes = h.lookupQuotes(ctx, domain.WorkingSet{Items: items})

	succeed(c, http.StatusOK, resp)
}

func (h *NewsHandler) lookupQuotes(ctx context.Context, set domain.WorkingSet) map[string]domain.Quote {
	if h.quotes == nil {
		return nil
	}
	symbols := set.Symbols()
	if len(symbols) == 0 {
		return nil
	}
	quotes, err := h.quotes.Quotes(ctx, symbols)
	if err != nil {
		h.logger.WarnContext(ctx, "quote lookup failed", "symbols", len(symbols), "error", err)
		return nil
	}
	return quotes
}

func (h *NewsHandler) Ask(c *gin.Context) {
	var req dto.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		fail(c, http.StatusBadRequest, "question is required")
		return
	}
	if h.assistant == nil {
		fail(c, http.StatusServiceUnavailable, "assistant is not configured")
		return
	}

	set, ok := h.currentSet(c)
	if !ok {
		return
	}

	n := req.ContextItems
	if n == 0 {
		n = defaultAskContext
	}
	n = min(n, maxAskContext, len(set.Items))

	answer, err := h.assistant.Answer(c.Request.Context(), strings.TrimSpace(req.Question), set.Items[:n])
	if err != nil {
		h.logger.WarnContext(c.Request.Context(), "assistant answer failed", "error", err)
		fail(c, http.StatusBadGateway, "assistant failed to answer")
		return
	}
	succeed(c, http.StatusOK, dto.AskResponse{Answer: answer, ContextItems: n})
}

func (h *NewsHandler) DailyBrief(c *gin.Context) {
	if h.assistant == nil {
		fail(c, http.StatusServiceUnavailable, "assistant is not configured")
		return
	}

	assets := parseAssets(c.DefaultQuery("assets", defaultAssets))

	set, ok := h.currentSet(c)
	if !ok {
		return
	}
	items := set.Items
	if len(items) > briefHeadlines {
		items = items[:briefHeadlines]
	}

	brief, err := h.assistant.Brief(c.Request.Context(), items, assets)
	if err != nil {
		h.logger.WarnContext(c.Request.Context(), "daily brief failed", "error", err)
		fail(c, http.StatusBadGateway, "could not generate daily brief")
		return
	}
	succeed(c, http.StatusOK, brief)
}

func (h *NewsHandler) Invalidate(c *gin.Context) {
	h.workingSet.Invalidate()
	succeed(c, http.StatusAccepted, gin.H{"invalidated": true})
}

// currentSet writes a 503 and returns false when no set can be produced.
func (h *NewsHandler) currentSet(c *gin.Context) (domain.WorkingSet, bool) {
	set, err := h.workingSet.Get(c.Request.Context())
	if err != nil {
		h.logger.WarnContext(c.Request.Context(), "working set unavailable", "error", err)
		msg := "news is temporarily unavailable"
		if errors.Is(err, domain.ErrNoItems) {
			msg = "no sources returned news"
		}
		fail(c, http.StatusServiceUnavailable, msg)
		return domain.WorkingSet{}, false
	}
	return set, true
}

func parseAssets(raw string) []string {
	var assets []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			assets = append(assets, part)
		}
	}
	return assets
}

func succeed(c *gin.Context, status int, data any) {
	c.JSON(status, dto.Envelope{Status: "success", Data: data})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, dto.Envelope{Status: "error", Message: message})
}
