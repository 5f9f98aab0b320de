package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"

	"FinanceFlow/internal/logging"
	"FinanceFlow/internal/scanner"
)

// RSSScanner reads RSS and Atom feeds.
type RSSScanner struct {
	client *http.Client
	logger *slog.Logger
}

var _ scanner.Scanner = (*RSSScanner)(nil)

// NewRSSScanner wires an HTTP client; a nil client gets a 20s timeout.
func NewRSSScanner(client *http.Client, logger *slog.Logger) *RSSScanner {
	return &RSSScanner{client: defaultClient(client), logger: logging.OrNop(logger)}
}

// Name identifies the strategy inside the registry.
func (s *RSSScanner) Name() string {
	return "rss"
}

// Scan fetches the feed and converts its items into entries.
func (s *RSSScanner) Scan(ctx context.Context, req scanner.Request) ([]scanner.Entry, error) {
	body, err := fetch(ctx, s.client, req.URL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	feed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	entries := make([]scanner.Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		entry, ok := s.toEntry(item)
		if !ok {
			s.logger.Warn("skip malformed feed item", "source", req.SourceName, "guid", item.GUID, "title", item.Title)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *RSSScanner) toEntry(item *gofeed.Item) (scanner.Entry, bool) {
	title := collapseSpace(item.Title)
	link := strings.TrimSpace(item.Link)
	if title == "" || (link == "" && strings.TrimSpace(item.GUID) == "") {
		return scanner.Entry{}, false
	}

	body := plainText(item.Content)
	if desc := plainText(item.Description); len(desc) > len(body) {
		body = desc
	}

	published := item.PublishedParsed
	if published == nil {
		published = item.UpdatedParsed
	}

	var category string
	if len(item.Categories) > 0 {
		category = strings.TrimSpace(item.Categories[0])
	}

	return scanner.Entry{
		GUID:        strings.TrimSpace(item.GUID),
		Title:       title,
		Body:        body,
		URL:         link,
		Category:    category,
		PublishedAt: published,
	}, true
}
