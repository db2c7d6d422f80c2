package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"stock-monitor/internal/domain/monitor"
)

// Client 對接外部行情服務的 HTTP API。
// 對核心而言任何失敗一律視為 DATA_UNAVAILABLE，來源端自己的備援鏈不在此處理。
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient 建立行情 client。
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type quoteResponse struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
}

// GetQuote 取得即時報價。
func (c *Client) GetQuote(ctx context.Context, symbol string) (monitor.Quote, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	body, err := c.call(ctx, http.MethodGet, "/api/v1/quote", params)
	if err != nil {
		return monitor.Quote{}, err
	}
	var res quoteResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return monitor.Quote{}, fmt.Errorf("decode quote: %w", err)
	}
	if res.Price <= 0 {
		return monitor.Quote{}, fmt.Errorf("quote for %s has no price", symbol)
	}
	return monitor.Quote{
		Symbol:    res.Symbol,
		Price:     res.Price,
		Timestamp: time.UnixMilli(res.Timestamp),
	}, nil
}

// Bar 為一根 K 線。
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// GetBars 取得歷史 K 線，period 如 "1d"、"60m"。
func (c *Client) GetBars(ctx context.Context, symbol, period string, limit int) ([]Bar, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("period", period)
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}
	body, err := c.call(ctx, http.MethodGet, "/api/v1/bars", params)
	if err != nil {
		return nil, err
	}
	var bars []Bar
	if err := json.Unmarshal(body, &bars); err != nil {
		return nil, fmt.Errorf("decode bars: %w", err)
	}
	return bars, nil
}

func (c *Client) call(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	fullURL := fmt.Sprintf("%s%s", c.baseURL, path)
	if len(params) > 0 {
		fullURL = fmt.Sprintf("%s?%s", fullURL, params.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("market data api error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}
