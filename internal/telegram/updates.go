package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/artmoskal/TGHandyUtils-sub000/internal/logging"
	"github.com/artmoskal/TGHandyUtils-sub000/internal/types"
)

// update mirrors the subset of the Bot API update payload the bot reads
type update struct {
	UpdateID int64 `json:"update_id"`
	Message  struct {
		MessageID int `json:"message_id"`
		From      struct {
			ID        int64  `json:"id"`
			FirstName string `json:"first_name"`
			Username  string `json:"username"`
		} `json:"from"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text    string `json:"text"`
		Caption string `json:"caption"`
	} `json:"message"`
}

type getUpdatesResponse struct {
	OK     bool     `json:"ok"`
	Result []update `json:"result"`
}

// Poll long-polls getUpdates and hands each text message to handler until
// ctx is cancelled. Non-text updates (stickers, joins) are skipped; photo
// captions come through as the message content.
func (c *Client) Poll(ctx context.Context, handler func(types.InboundMessage)) {
	var offset int64
	for {
		if err := c.pollOnce(ctx, &offset, handler); err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.Warn("telegram", "poll error: %v", err)
			time.Sleep(2 * time.Second)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (c *Client) pollOnce(ctx context.Context, offset *int64, handler func(types.InboundMessage)) error {
	payload := map[string]any{
		"timeout": 20,
	}
	if v := atomic.LoadInt64(offset); v > 0 {
		payload["offset"] = v
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/getUpdates", c.baseURL, c.token)
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

	var result getUpdatesResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("telegram API error (%d): %s", resp.StatusCode, string(respBody))
	}
	if !result.OK {
		return fmt.Errorf("telegram API error (%d): %s", resp.StatusCode, string(respBody))
	}

	for _, upd := range result.Result {
		if upd.UpdateID >= atomic.LoadInt64(offset) {
			atomic.StoreInt64(offset, upd.UpdateID+1)
		}

		content := upd.Message.Text
		if content == "" {
			content = upd.Message.Caption
		}
		if upd.Message.MessageID == 0 || strings.TrimSpace(content) == "" {
			continue
		}

		sender := upd.Message.From.FirstName
		if sender == "" {
			sender = upd.Message.From.Username
		}

		handler(types.InboundMessage{
			UserID:     upd.Message.From.ID,
			ChatID:     upd.Message.Chat.ID,
			MessageID:  upd.Message.MessageID,
			SenderName: sender,
			Content:    content,
			ReceivedAt: time.Now(),
		})
	}
	return nil
}
