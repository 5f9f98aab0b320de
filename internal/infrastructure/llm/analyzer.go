package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"FinanceFlow/internal/domain"
	"FinanceFlow/internal/logging"
	"FinanceFlow/internal/ports"
)

const (
	defaultDifficulty     = domain.LevelIntermediate
	defaultReadingMinutes = 2
	briefDateLayout       = "January 02, 2006"
)

// Analyzer turns completions into annotations, answers and briefs.
type Analyzer struct {
	completer Completer
	timeout   time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

var (
	_ ports.Analyzer  = (*Analyzer)(nil)
	_ ports.Assistant = (*Analyzer)(nil)
)

// NewAnalyzer bounds every call by timeout (0 means no extra bound).
func NewAnalyzer(completer Completer, timeout time.Duration, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		completer: completer,
		timeout:   timeout,
		now:       time.Now,
		logger:    logging.OrNop(logger),
	}
}

// Analyze requests an annotation for one item. Responses missing the
// synthesis, with an unknown sentiment or an impact outside 1..10 are
// rejected with domain.ErrInvalidAnnotation.
func (a *Analyzer) Analyze(ctx context.Context, req domain.AnalysisRequest) (domain.Annotation, error) {
	raw, err := a.complete(ctx, analysisSystemPrompt, analysisUserPrompt(req))
	if err != nil {
		return domain.Annotation{}, fmt.Errorf("analyze %s: %w", req.ItemID, err)
	}

	var payload analysisPayload
	if err := DecodeJSON(raw, &payload); err != nil {
		a.logger.Warn("undecodable analysis response", "item_id", req.ItemID, "payload", snippet(raw), "error", err)
		return domain.Annotation{}, fmt.Errorf("analyze %s: %w: %v", req.ItemID, domain.ErrInvalidAnnotation, err)
	}

	annotation, err := a.toAnnotation(payload, req.Level)
	if err != nil {
		a.logger.Warn("analysis response rejected", "item_id", req.ItemID, "payload", snippet(raw), "error", err)
		return domain.Annotation{}, fmt.Errorf("analyze %s: %w", req.ItemID, err)
	}
	return annotation, nil
}

func (a *Analyzer) toAnnotation(p analysisPayload, level string) (domain.Annotation, error) {
	if p.Impact == nil {
		return domain.Annotation{}, fmt.Errorf("%w: missing impact", domain.ErrInvalidAnnotation)
	}

	difficulty := strings.ToLower(strings.TrimSpace(p.Difficulty))
	if !domain.ValidLevel(difficulty) {
		difficulty = defaultDifficulty
		if domain.ValidLevel(level) {
			difficulty = level
		}
	}

	minutes := defaultReadingMinutes
	if p.ReadingMinutes != nil {
		minutes = max(int(*p.ReadingMinutes), 1)
	}

	annotation := domain.Annotation{
		Synthesis:      strings.TrimSpace(p.Synthesis),
		Sentiment:      domain.Sentiment(strings.ToLower(strings.TrimSpace(p.Sentiment))),
		Impact:         int(*p.Impact),
		Symbols:        trimAll(p.Symbols),
		KeyPoints:      trimAll(p.KeyPoints),
		Implications:   strings.TrimSpace(p.Implications),
		Difficulty:     difficulty,
		ReadingMinutes: minutes,
		Model:          a.completer.Model(),
		AnalyzedAt:     a.now().UTC(),
	}
	if err := annotation.Validate(); err != nil {
		return domain.Annotation{}, err
	}
	return annotation, nil
}

// Answer responds to a free-form question using items as context.
func (a *Analyzer) Answer(ctx context.Context, question string, items []domain.Item) (string, error) {
	raw, err := a.complete(ctx, answerSystemPrompt, answerUserPrompt(question, items))
	if err != nil {
		return "", fmt.Errorf("answer: %w", err)
	}

	var payload answerPayload
	if err := DecodeJSON(raw, &payload); err != nil {
		a.logger.Warn("undecodable answer response", "payload", snippet(raw), "error", err)
		return "", fmt.Errorf("decode answer: %w", err)
	}
	answer := strings.TrimSpace(payload.Answer)
	if answer == "" {
		return "", fmt.Errorf("empty answer")
	}
	return answer, nil
}

// Brief writes the daily market roll-up over the given headlines.
func (a *Analyzer) Brief(ctx context.Context, items []domain.Item, assets []string) (domain.Brief, error) {
	date := a.now().Format(briefDateLayout)

	raw, err := a.complete(ctx, briefSystemPrompt, briefUserPrompt(items, assets, date))
	if err != nil {
		return domain.Brief{}, fmt.Errorf("brief: %w", err)
	}

	var payload briefPayload
	if err := DecodeJSON(raw, &payload); err != nil {
		a.logger.Warn("undecodable brief response", "payload", snippet(raw), "error", err)
		return domain.Brief{}, fmt.Errorf("decode brief: %w", err)
	}
	overview := strings.TrimSpace(payload.MarketOverview)
	if overview == "" {
		return domain.Brief{}, fmt.Errorf("brief without market overview")
	}

	if strings.TrimSpace(payload.Date) != "" {
		date = strings.TrimSpace(payload.Date)
	}
	return domain.Brief{
		Date:           date,
		MarketOverview: overview,
		KeyThemes:      trimAll(payload.KeyThemes),
		TomorrowWatch:  trimAll(payload.TomorrowWatch),
	}, nil
}

func (a *Analyzer) complete(ctx context.Context, system, user string) (string, error) {
	if a == nil || a.completer == nil {
		return "", domain.ErrNotConfigured
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	return a.completer.CompleteJSON(ctx, system, user)
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
