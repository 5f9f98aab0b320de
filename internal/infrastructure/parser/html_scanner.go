package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"FinanceFlow/internal/logging"
	"FinanceFlow/internal/scanner"
)

// Option keys understood by HTMLScanner.
const (
	OptItem       = "item"
	OptTitle      = "title"
	OptLink       = "link"
	OptBody       = "body"
	OptDate       = "date"
	OptDateAttr   = "dateAttr"
	OptDateLayout = "dateLayout"
	OptPageParam  = "pageParam"
	OptMaxPages   = "maxPages"
)

var defaultSelectors = map[string]string{
	OptItem:     "article",
	OptTitle:    "h1, h2, h3",
	OptLink:     "a[href]",
	OptBody:     "p",
	OptDate:     "time",
	OptDateAttr: "datetime",
}

var (
	dayMonthYear = regexp.MustCompile(`\d{1,2} [A-Za-z]{3} \d{4}`)
	dateLayouts  = []string{
		time.RFC3339,
		time.RFC1123Z,
		time.RFC1123,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
		"January 2, 2006",
		"Jan 2, 2006",
	}
)

// HTMLScanner extracts entries from listing pages using CSS selectors taken
// from the source options.
type HTMLScanner struct {
	client *http.Client
	logger *slog.Logger
}

var _ scanner.Scanner = (*HTMLScanner)(nil)

// NewHTMLScanner wires an HTTP client; a nil client gets a 20s timeout.
func NewHTMLScanner(client *http.Client, logger *slog.Logger) *HTMLScanner {
	return &HTMLScanner{client: defaultClient(client), logger: logging.OrNop(logger)}
}

// Name identifies the strategy inside the registry.
func (h *HTMLScanner) Name() string {
	return "html"
}

// Scan walks the listing (optionally paginated) until the limit is reached or a page yields nothing new.
func (h *HTMLScanner) Scan(ctx context.Context, req scanner.Request) ([]scanner.Entry, error) {
	opts := selectorsFor(req.Options)
	maxPages := 1
	if opts[OptPageParam] != "" {
		maxPages = 5
		if n, err := strconv.Atoi(opts[OptMaxPages]); err == nil && n > 0 {
			maxPages = n
		}
	}

	var results []scanner.Entry
	seen := map[string]struct{}{}

	for page := 1; page <= maxPages; page++ {
		pageURL, err := buildPageURL(req.URL, opts[OptPageParam], page)
		if err != nil {
			return nil, err
		}

		doc, base, err := h.fetchDocument(ctx, pageURL)
		if err != nil {
			if page > 1 {
				h.logger.Warn("stop paging after fetch error", "source", req.SourceName, "page", page, "error", err)
				break
			}
			return nil, err
		}

		fresh := 0
		doc.Find(opts[OptItem]).Each(func(_ int, sel *goquery.Selection) {
			entry, err := parseEntry(sel, base, opts)
			if err != nil {
				h.logger.Warn("skip malformed entry", "source", req.SourceName, "error", err)
				return
			}
			if _, ok := seen[entry.URL]; ok {
				return
			}
			seen[entry.URL] = struct{}{}
			results = append(results, entry)
			fresh++
		})

		if fresh == 0 || (req.Limit > 0 && len(results) >= req.Limit) {
			break
		}
	}

	return results, nil
}

func (h *HTMLScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, *url.URL, error) {
	body, err := fetch(ctx, h.client, pageURL)
	if err != nil {
		return nil, nil, err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, nil, fmt.Errorf("parse document: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse page url: %w", err)
	}
	return doc, base, nil
}

func selectorsFor(options map[string]string) map[string]string {
	out := make(map[string]string, len(defaultSelectors)+len(options))
	for k, v := range defaultSelectors {
		out[k] = v
	}
	for k, v := range options {
		if v = strings.TrimSpace(v); v != "" {
			out[k] = v
		}
	}
	return out
}

func parseEntry(sel *goquery.Selection, base *url.URL, opts map[string]string) (scanner.Entry, error) {
	title := collapseSpace(sel.Find(opts[OptTitle]).First().Text())
	if title == "" {
		return scanner.Entry{}, fmt.Errorf("entry has no title")
	}

	href, ok := sel.Find(opts[OptLink]).First().Attr("href")
	if !ok && goquery.NodeName(sel) == "a" {
		href, ok = sel.Attr("href")
	}
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return scanner.Entry{}, fmt.Errorf("entry %q has no link", title)
	}
	link, err := base.Parse(href)
	if err != nil {
		return scanner.Entry{}, fmt.Errorf("entry %q: invalid link %s: %w", title, href, err)
	}

	var paragraphs []string
	sel.Find(opts[OptBody]).Each(func(_ int, p *goquery.Selection) {
		if text := collapseSpace(p.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})

	return scanner.Entry{
		Title:       title,
		Body:        strings.Join(paragraphs, "\n"),
		URL:         link.String(),
		PublishedAt: parseDate(sel.Find(opts[OptDate]).First(), opts),
	}, nil
}

func parseDate(sel *goquery.Selection, opts map[string]string) *time.Time {
	if sel.Length() == 0 {
		return nil
	}
	raw, _ := sel.Attr(opts[OptDateAttr])
	if strings.TrimSpace(raw) == "" {
		raw = sel.Text()
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	layouts := dateLayouts
	if custom := opts[OptDateLayout]; custom != "" {
		layouts = append([]string{custom}, dateLayouts...)
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	if match := dayMonthYear.FindString(raw); match != "" {
		if t, err := time.Parse("2 Jan 2006", match); err == nil {
			return &t
		}
	}
	return nil
}

func buildPageURL(base, pageParam string, page int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid source url %s: %w", base, err)
	}
	if pageParam == "" {
		return parsed.String(), nil
	}

	query := parsed.Query()
	query.Set(pageParam, strconv.Itoa(page))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
