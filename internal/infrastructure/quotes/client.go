package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"FinanceFlow/internal/domain"
	"FinanceFlow/internal/ports"
)

// Client fetches price snapshots from an HTTP quote service:
// GET {endpoint}?symbols=A,B returning {"quotes":[...]}.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.QuoteProvider = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
	}
}

type quotesResponse struct {
	Quotes []domain.Quote `json:"quotes"`
}

// Quotes returns snapshots keyed by symbol. Symbols the service does not
// know are simply absent.
func (c *Client) Quotes(ctx context.Context, symbols []string) (map[string]domain.Quote, error) {
	result := make(map[string]domain.Quote)
	if len(symbols) == 0 {
		return result, nil
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse quotes endpoint: %w", err)
	}
	query := u.Query()
	query.Set("symbols", strings.Join(symbols, ","))
	u.RawQuery = query.Encode()

	var resp quotesResponse
	if err := c.get(ctx, u.String(), &resp); err != nil {
		return nil, err
	}

	for _, q := range resp.Quotes {
		symbol := strings.ToUpper(strings.TrimSpace(q.Symbol))
		if symbol == "" {
			continue
		}
		q.Symbol = symbol
		result[symbol] = q
	}
	return result, nil
}

func (c *Client) get(ctx context.Context, endpoint string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			return fmt.Errorf("unexpected status %s, close body: %v", resp.Status, closeErr)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		_ = resp.Body.Close()
		return fmt.Errorf("decode response: %w", err)
	}

	if err := resp.Body.Close(); err != nil {
		return fmt.Errorf("close response body: %w", err)
	}

	return nil
}
