package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"

	"FinanceFlow/internal/domain"
)

type analysisPayload struct {
	Synthesis      string   `json:"synthesis" jsonschema_description:"One plain-language paragraph explaining the news as if to a friend."`
	Sentiment      string   `json:"sentiment" jsonschema:"enum=positive,enum=neutral,enum=negative"`
	Impact         *flexInt `json:"impact" jsonschema:"minimum=1,maximum=10" jsonschema_description:"Expected market impact from 1 (negligible) to 10 (market moving)."`
	Symbols        []string `json:"symbols" jsonschema_description:"Ticker symbols of companies or assets the article is about. Uppercase, no exchange prefix."`
	KeyPoints      []string `json:"key_points" jsonschema_description:"The 3 or 4 most important points of the article."`
	Implications   string   `json:"implications" jsonschema_description:"Balanced investment considerations. No direct financial advice."`
	Difficulty     string   `json:"difficulty" jsonschema:"enum=beginner,enum=intermediate,enum=advanced"`
	ReadingMinutes *flexInt `json:"reading_minutes" jsonschema_description:"Reading time of the synthesis in whole minutes."`
}

type answerPayload struct {
	Answer string `json:"answer" jsonschema_description:"Answer grounded in the provided articles."`
}

type briefPayload struct {
	Date           string   `json:"date"`
	MarketOverview string   `json:"market_overview" jsonschema_description:"One paragraph on overall market sentiment: positive, negative or mixed."`
	KeyThemes      []string `json:"key_themes" jsonschema_description:"Two or three major themes in today's news."`
	TomorrowWatch  []string `json:"tomorrow_watch" jsonschema_description:"Two or three things investors should watch tomorrow."`
}

var (
	analysisSchema = renderSchema[analysisPayload]()
	answerSchema   = renderSchema[answerPayload]()
	briefSchema    = renderSchema[briefPayload]()
)

func renderSchema[T any]() string {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	raw, err := json.MarshalIndent(reflector.Reflect(v), "", "  ")
	if err != nil {
		panic(fmt.Sprintf("render schema: %v", err))
	}
	return string(raw)
}

func withSchema(role, schema string) string {
	return role + "\n\nRespond with a single JSON object matching this JSON Schema. " +
		"Do not include any introductory text or markdown.\n" + schema
}

var (
	analysisSystemPrompt = withSchema(
		"You are an expert financial analyst who simplifies complex news for investors.",
		analysisSchema)
	answerSystemPrompt = withSchema(
		"You are a financial news assistant. Answer the user's question using only the articles provided. "+
			"If the articles do not cover the question, say so.",
		answerSchema)
	briefSystemPrompt = withSchema(
		"You are the financial news editor of FinanceFlow. Write a concise daily market briefing.",
		briefSchema)
)

var levelHints = map[string]string{
	domain.LevelBeginner:     "Avoid jargon and explain any financial term you use.",
	domain.LevelIntermediate: "Assume familiarity with common market terms.",
	domain.LevelAdvanced:     "Be technical; cover valuation, positioning and second-order effects.",
}

func analysisUserPrompt(req domain.AnalysisRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Source: %s\n", req.Source)
	if hint, ok := levelHints[req.Level]; ok {
		fmt.Fprintf(&b, "Reader level: %s. %s\n", req.Level, hint)
	}
	fmt.Fprintf(&b, "Article Title: %q\n", req.Title)
	fmt.Fprintf(&b, "Article Content: %q\n", req.Body)
	return b.String()
}

func answerUserPrompt(question string, items []domain.Item) string {
	var b strings.Builder
	b.WriteString("Articles:\n")
	for i, item := range items {
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, item.Title, item.Source)
		if item.Annotation != nil {
			fmt.Fprintf(&b, "   %s\n", item.Annotation.Synthesis)
		}
	}
	fmt.Fprintf(&b, "\nQuestion: %s\n", question)
	return b.String()
}

func briefUserPrompt(items []domain.Item, assets []string, date string) string {
	scope := "general market"
	if len(assets) > 0 {
		scope = strings.Join(assets, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Reader interests: %s\nDate: %s\n\nToday's key news headlines are:\n", scope, date)
	for _, item := range items {
		fmt.Fprintf(&b, "- %q\n", item.Title)
	}
	return b.String()
}
