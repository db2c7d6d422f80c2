package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"stock-monitor/internal/domain/alert"
)

// FeishuClient 推送訊息到飛書群機器人 webhook。
// 先嘗試互動卡片；卡片被拒（例如群設定不允許）時退回純文字訊息。
type FeishuClient struct {
	webhookURL string
	httpClient *http.Client
}

// NewFeishuClient 建立飛書 webhook client。
func NewFeishuClient(webhookURL string) *FeishuClient {
	return &FeishuClient{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Channel 實作 alert.Sender。
func (c *FeishuClient) Channel() alert.Channel { return alert.ChannelFeishu }

type feishuResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Send 送出一則訊息，卡片失敗時自動降級為純文字。
func (c *FeishuClient) Send(ctx context.Context, title, body string) error {
	if c.webhookURL == "" {
		return fmt.Errorf("feishu webhook url missing")
	}

	if err := c.post(ctx, c.cardPayload(title, body)); err != nil {
		log.Printf("[Feishu] card message rejected, falling back to text: %v", err)
		return c.post(ctx, c.textPayload(title, body))
	}
	return nil
}

func (c *FeishuClient) cardPayload(title, body string) map[string]interface{} {
	return map[string]interface{}{
		"msg_type": "interactive",
		"card": map[string]interface{}{
			"header": map[string]interface{}{
				"title":    map[string]interface{}{"tag": "plain_text", "content": title},
				"template": "blue",
			},
			"elements": []interface{}{
				map[string]interface{}{
					"tag":  "div",
					"text": map[string]interface{}{"tag": "lark_md", "content": body},
				},
			},
		},
	}
}

func (c *FeishuClient) textPayload(title, body string) map[string]interface{} {
	return map[string]interface{}{
		"msg_type": "text",
		"content":  map[string]interface{}{"text": title + "\n" + body},
	}
}

func (c *FeishuClient) post(ctx context.Context, payload map[string]interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(raw))
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
		return fmt.Errorf("feishu send failed status=%d body=%s", resp.StatusCode, string(raw))
	}
	var result feishuResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("feishu decode response: %w", err)
	}
	if result.Code != 0 {
		return fmt.Errorf("feishu code=%d msg=%s", result.Code, result.Msg)
	}
	return nil
}
