package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"stock-monitor/internal/domain/monitor"
)

// Client 對接 AI 決策服務。對核心而言這是一個不透明的呼叫：
// 丟進標的與現價，拿回評級/置信度/價位建議；逾時由呼叫端的 ctx 決定。
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient 建立 AI 決策 client。
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		// 不在這裡設 Timeout：上限交給呼叫端傳入的 ctx 控制
		httpClient: &http.Client{},
	}
}

type decideRequest struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

type decideResponse struct {
	Rating     string  `json:"rating"`
	Confidence float64 `json:"confidence"`
	EntryLow   float64 `json:"entry_low"`
	EntryHigh  float64 `json:"entry_high"`
	TakeProfit float64 `json:"take_profit"`
	StopLoss   float64 `json:"stop_loss"`
	Advice     string  `json:"advice"`
}

// Decide 要求 AI 給出當前評級。
func (c *Client) Decide(ctx context.Context, symbol string, price float64) (monitor.Decision, error) {
	raw, err := json.Marshal(decideRequest{Symbol: symbol, Price: price})
	if err != nil {
		return monitor.Decision{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/decide", bytes.NewReader(raw))
	if err != nil {
		return monitor.Decision{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return monitor.Decision{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return monitor.Decision{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return monitor.Decision{}, fmt.Errorf("ai api error (status %d): %s", resp.StatusCode, string(body))
	}

	var res decideResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return monitor.Decision{}, fmt.Errorf("decode decision: %w", err)
	}
	return monitor.Decision{
		Rating:     normalizeRating(res.Rating),
		Confidence: res.Confidence,
		EntryLow:   res.EntryLow,
		EntryHigh:  res.EntryHigh,
		TakeProfit: res.TakeProfit,
		StopLoss:   res.StopLoss,
		Advice:     res.Advice,
	}, nil
}

func normalizeRating(raw string) monitor.Rating {
	switch monitor.Rating(raw) {
	case monitor.RatingBuy, monitor.RatingSell, monitor.RatingHold:
		return monitor.Rating(raw)
	default:
		return monitor.RatingUnknown
	}
}
