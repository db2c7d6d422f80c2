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

// DingTalkClient 推送 markdown 訊息到釘釘群機器人 webhook。
// 機器人若設定了自訂關鍵詞，訊息必須包含該字串才會被接受；
// keyword 非空時以 "關鍵詞 - " 字面前綴加在標題與正文最前面，
// 空字串則完全不加（連分隔符都沒有）。
type DingTalkClient struct {
	webhookURL string
	keyword    string
	httpClient *http.Client
}

// NewDingTalkClient 建立釘釘 webhook client。
func NewDingTalkClient(webhookURL, keyword string) *DingTalkClient {
	return &DingTalkClient{
		webhookURL: webhookURL,
		keyword:    keyword,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Channel 實作 alert.Sender。
func (c *DingTalkClient) Channel() alert.Channel { return alert.ChannelDingTalk }

type dingTalkPayload struct {
	MsgType  string `json:"msgtype"`
	Markdown struct {
		Title string `json:"title"`
		Text  string `json:"text"`
	} `json:"markdown"`
}

type dingTalkResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// Send 送出一則訊息。
func (c *DingTalkClient) Send(ctx context.Context, title, body string) error {
	if c.webhookURL == "" {
		return fmt.Errorf("dingtalk webhook url missing")
	}

	var payload dingTalkPayload
	payload.MsgType = "markdown"
	payload.Markdown.Title = c.applyKeyword(title)
	payload.Markdown.Text = c.applyKeyword(body)

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
		return fmt.Errorf("dingtalk send failed status=%d body=%s", resp.StatusCode, string(raw))
	}
	var result dingTalkResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("dingtalk decode response: %w", err)
	}
	if result.ErrCode != 0 {
		return fmt.Errorf("dingtalk errcode=%d errmsg=%s", result.ErrCode, result.ErrMsg)
	}
	return nil
}

func (c *DingTalkClient) applyKeyword(text string) string {
	if c.keyword == "" {
		return text
	}
	return c.keyword + " - " + text
}
