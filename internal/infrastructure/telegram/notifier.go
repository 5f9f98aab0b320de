package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"FinanceFlow/internal/ports"
)

const (
	defaultAPIBase = "https://api.telegram.org"
	// Bot API limit for a single sendMessage text.
	maxMessageRunes = 4096
)

// Notifier sends alert digests to a Telegram chat via the Bot API.
type Notifier struct {
	apiBase  string
	botToken string
	chatID   string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		apiBase:  defaultAPIBase,
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// WithAPIBase points the notifier at another Bot API host.
func (n *Notifier) WithAPIBase(base string) *Notifier {
	n.apiBase = strings.TrimRight(base, "/")
	return n
}

// PublishDigest posts the digest as plain text. Digests over the Bot API
// limit are split on paragraph boundaries and sent in order; the first
// failed part aborts the rest.
func (n *Notifier) PublishDigest(ctx context.Context, digest string) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	parts := splitMessage(strings.TrimSpace(digest), maxMessageRunes)
	for i, part := range parts {
		if err := n.send(ctx, part); err != nil {
			return fmt.Errorf("telegram part %d/%d: %w", i+1, len(parts), err)
		}
	}
	return nil
}

func (n *Notifier) send(ctx context.Context, text string) error {
	payload, err := json.Marshal(sendMessageRequest{ChatID: n.chatID, Text: text, DisableWebPagePreview: true})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	var body apiResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)
	if resp.StatusCode == http.StatusOK && decodeErr == nil && body.OK {
		return nil
	}

	msg := body.Description
	if msg == "" {
		msg = "unexpected response"
	}
	if body.Parameters.RetryAfter > 0 {
		return fmt.Errorf("telegram error %s: %s (retry after %ds)", resp.Status, msg, body.Parameters.RetryAfter)
	}
	return fmt.Errorf("telegram error %s: %s", resp.Status, msg)
}

// splitMessage cuts text into chunks of at most limit runes, preferring
// blank-line boundaries, then line breaks, then a hard cut.
func splitMessage(text string, limit int) []string {
	if text == "" {
		return nil
	}

	var parts []string
	runes := []rune(text)
	for len(runes) > limit {
		window := string(runes[:limit])
		cut := strings.LastIndex(window, "\n\n")
		if cut <= 0 {
			cut = strings.LastIndex(window, "\n")
		}
		var head string
		if cut <= 0 {
			head = window
			runes = runes[limit:]
		} else {
			head = window[:cut]
			runes = runes[len([]rune(head)):]
		}
		parts = append(parts, strings.TrimSpace(head))
		runes = []rune(strings.TrimLeft(string(runes), "\n"))
	}
	if rest := strings.TrimSpace(string(runes)); rest != "" {
		parts = append(parts, rest)
	}
	return parts
}
