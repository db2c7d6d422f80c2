package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"stock-monitor/internal/domain/alert"
)

// TelegramClient 透過 Bot API sendMessage 推送訊號通知。
type TelegramClient struct {
	token      string
	chatID     int64
	baseURL    string
	httpClient *http.Client
}

// NewTelegramClient 建立 Telegram bot client。
func NewTelegramClient(token string, chatID int64) *TelegramClient {
	return &TelegramClient{
		token:      token,
		chatID:     chatID,
		baseURL:    "https://api.telegram.org",
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Channel 實作 alert.Sender。
func (c *TelegramClient) Channel() alert.Channel { return alert.ChannelTelegram }

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send 送出一則訊息，標題與正文合併為單一純文字訊息。
func (c *TelegramClient) Send(ctx context.Context, title, body string) error {
	if c.token == "" || c.chatID == 0 {
		return fmt.Errorf("telegram token or chat_id missing")
	}

	payload := map[string]interface{}{
		"chat_id": c.chatID,
		"text":    title + "\n\n" + body,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram send failed status=%d body=%s", resp.StatusCode, string(raw))
	}
	var result telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("telegram decode response: %w", err)
	}
	if !result.OK {
		return fmt.Errorf("telegram api error: %s", result.Description)
	}
	return nil
}
