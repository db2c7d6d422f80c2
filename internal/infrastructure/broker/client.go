package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client 對接券商下單服務。只在任務開啟自動交易、
// 且評級為 BUY/SELL 時被呼叫（HOLD 永不下單）。
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
}

// NewClient 建立券商 client。
func NewClient(baseURL, apiKey, apiSecret string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type orderRequest struct {
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	Quantity  int    `json:"quantity"`
	OrderType string `json:"order_type"`
}

type orderResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// PlaceOrder 送出市價單，回傳券商訂單編號。
func (c *Client) PlaceOrder(ctx context.Context, symbol, side string, qty int) (string, error) {
	if qty <= 0 {
		return "", fmt.Errorf("order quantity must be positive, got %d", qty)
	}
	switch side {
	case "BUY", "SELL":
	default:
		return "", fmt.Errorf("unsupported order side: %s", side)
	}

	raw, err := json.Marshal(orderRequest{Symbol: symbol, Side: side, Quantity: qty, OrderType: "market"})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/orders", bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("X-API-SECRET", c.apiSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("broker api error (status %d): %s", resp.StatusCode, string(body))
	}

	var res orderResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return "", fmt.Errorf("decode order response: %w", err)
	}
	if res.OrderID == "" {
		return "", fmt.Errorf("broker accepted request but returned no order id: %s", res.Message)
	}
	return res.OrderID, nil
}
