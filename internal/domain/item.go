package domain

import (
	"fmt"
	"strings"
	"time"
)

// Item is one piece of source content fetched from a feed.
type Item struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Body        string      `json:"body"`
	URL         string      `json:"url"`
	Source      string      `json:"source"`
	Category    string      `json:"category,omitempty"`
	PublishedAt time.Time   `json:"published_at"`
	Annotation  *Annotation `json:"annotation,omitempty"`
}

// Annotated reports whether enrichment (or a cache hit) has populated the item.
func (i Item) Annotated() bool {
	return i.Annotation != nil
}

// Sentiment classifies the tone of an item for investors.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Valid reports whether s is one of the known sentiment values.
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// Impact score bounds.
const (
	MinImpact = 1
	MaxImpact = 10
)

// Annotation is the enrichment result attached to an Item.
type Annotation struct {
	Synthesis      string    `json:"synthesis"`
	Sentiment      Sentiment `json:"sentiment"`
	Impact         int       `json:"impact"`
	Symbols        []string  `json:"symbols"`
	KeyPoints      []string  `json:"key_points,omitempty"`
	Implications   string    `json:"implications,omitempty"`
	Difficulty     string    `json:"difficulty,omitempty"`
	ReadingMinutes int       `json:"reading_minutes,omitempty"`
	Model          string    `json:"model,omitempty"`
	AnalyzedAt     time.Time `json:"analyzed_at"`
}

// Validate reports whether the annotation carries the fields every published
// item needs. Failures wrap ErrInvalidAnnotation.
func (a Annotation) Validate() error {
	if strings.TrimSpace(a.Synthesis) == "" {
		return fmt.Errorf("%w: missing synthesis", ErrInvalidAnnotation)
	}
	if !a.Sentiment.Valid() {
		return fmt.Errorf("%w: unknown sentiment %q", ErrInvalidAnnotation, a.Sentiment)
	}
	if a.Impact < MinImpact || a.Impact > MaxImpact {
		return fmt.Errorf("%w: impact %d out of range", ErrInvalidAnnotation, a.Impact)
	}
	return nil
}

// ValidSymbols returns the referenced symbols that pass the ticker syntax rule.
func (a Annotation) ValidSymbols() []string {
	return FilterSymbols(a.Symbols)
}

// Source describes one configured feed.
type Source struct {
	Name     string
	Scanner  string
	URL      string
	Category string
	Limit    int
	Options  map[string]string
}

// Reader levels the synthesis can be written for.
const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
)

// ValidLevel reports whether level is a known reader level.
func ValidLevel(level string) bool {
	switch level {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return true
	}
	return false
}

// AnnotationKey is the persistent-cache key for an item analyzed for the
// given reader level. An empty level keys by id alone.
func AnnotationKey(id, level string) string {
	if level == "" {
		return id
	}
	return id + "|" + level
}

// AnalysisRequest is the input handed to the enrichment collaborator.
type AnalysisRequest struct {
	ItemID string
	Source string
	Title  string
	Body   string
	Level  string
}

// WorkingSet is the published result of one pipeline run.
type WorkingSet struct {
	Items       []Item    `json:"items"`
	RefreshedAt time.Time `json:"refreshed_at"`
	StaleAt     time.Time `json:"stale_at"`
}

// Empty reports whether the set has never been published.
func (w WorkingSet) Empty() bool {
	return w.RefreshedAt.IsZero()
}

// FreshAt reports whether the set is still fresh at the given instant.
func (w WorkingSet) FreshAt(now time.Time) bool {
	return !w.Empty() && now.Before(w.StaleAt)
}

// Symbols collects the distinct valid symbols referenced across the set, in first-seen order.
func (w WorkingSet) Symbols() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, item := range w.Items {
		if item.Annotation == nil {
			continue
		}
		for _, sym := range item.Annotation.ValidSymbols() {
			if _, ok := seen[sym]; ok {
				continue
			}
			seen[sym] = struct{}{}
			out = append(out, sym)
		}
	}
	return out
}

// Brief is the daily market roll-up generated from current headlines.
type Brief struct {
	Date           string   `json:"date"`
	MarketOverview string   `json:"market_overview"`
	KeyThemes      []string `json:"key_themes"`
	TomorrowWatch  []string `json:"tomorrow_watch"`
}

// Quote is a price snapshot for a ticker symbol.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Currency      string    `json:"currency,omitempty"`
	AsOf          time.Time `json:"as_of"`
}
