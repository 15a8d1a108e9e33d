package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const apiURL = "https://api.telegram.org"

// Client is a minimal Telegram Bot API client covering what the bot
// actually sends. Inbound updates are handled elsewhere; this is the
// outbound transport.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Telegram client for the given bot token
func NewClient(token string) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	return &Client{
		token:   token,
		baseURL: apiURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// SendMessage sends a MarkdownV2 message, optionally threaded as a reply.
// replyTo of zero means no threading.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, replyTo int) error {
	payload := map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "MarkdownV2",
	}
	if replyTo != 0 {
		payload["reply_to_message_id"] = replyTo
		// Don't fail delivery when the original message was deleted.
		payload["allow_sending_without_reply"] = true
	}

	return c.call(ctx, "sendMessage", payload)
}

func (c *Client) call(ctx context.Context, method string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("telegram API error (%d): %s", resp.StatusCode, string(respBody))
	}
	if !result.OK {
		return fmt.Errorf("telegram API error (%d): %s", resp.StatusCode, result.Description)
	}
	return nil
}

// markdownSpecials are the characters MarkdownV2 requires escaped
const markdownSpecials = `_*[]()~` + "`" + `>#+-=|{}.!\`

// EscapeMarkdown escapes MarkdownV2-significant characters in user content
func EscapeMarkdown(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(markdownSpecials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
