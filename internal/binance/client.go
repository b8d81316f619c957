package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"binance-signal-monitor/internal/logging"
)

const defaultBaseURL = "https://api.binance.com"

// LatencyRecorder receives per-call API latencies for observability
type LatencyRecorder interface {
	RecordAPICall(endpoint string, elapsed time.Duration)
}

// ClientConfig holds exchange client configuration
type ClientConfig struct {
	APIKey         string
	SecretKey      string
	BaseURL        string
	RequestTimeout time.Duration // per-request; defaults to 30s
	MaxRetries     int           // attempts per call; defaults to 3
	RetryDelay     time.Duration // delay between transient retries; defaults to 2s
}

// Client is a rate-limited, retrying Binance spot REST client
type Client struct {
	apiKey     string
	secretKey  string
	baseURL    string
	httpClient *http.Client
	limiter    *RateLimiter
	latency    LatencyRecorder
	maxRetries int
	retryDelay time.Duration
	log        *logging.Logger
}

// NewClient creates a client sharing the process-wide rate limiter
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	return &Client{
		apiKey:     cfg.APIKey,
		secretKey:  cfg.SecretKey,
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		limiter:    GetRateLimiter(),
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		log:        logging.WithComponent("binance"),
	}
}

// SetLatencyRecorder installs a latency sink; nil disables recording
func (c *Client) SetLatencyRecorder(r LatencyRecorder) {
	c.latency = r
}

// SetRateLimiter overrides the shared limiter (tests)
func (c *Client) SetRateLimiter(r *RateLimiter) {
	c.limiter = r
}

// Kline represents one candlestick as returned by /api/v3/klines
type Kline struct {
	OpenTime                 int64
	Open                     float64
	High                     float64
	Low                      float64
	Close                    float64
	Volume                   float64
	CloseTime                int64
	QuoteAssetVolume         float64
	NumberOfTrades           int
	TakerBuyBaseAssetVolume  float64
	TakerBuyQuoteAssetVolume float64
}

// klinesWeight mirrors the exchange's weight schedule for /api/v3/klines
func klinesWeight(limit int) int {
	switch {
	case limit <= 100:
		return 1
	case limit <= 500:
		return 2
	case limit <= 1000:
		return 5
	default:
		return 10
	}
}

// GetKlines fetches candlestick data for (symbol, interval, limit)
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	normalized, err := NormalizeInterval(interval)
	if err != nil {
		return nil, &APIError{Kind: KindPermanent, Message: err.Error()}
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", normalized)
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, "/api/v3/klines", params, klinesWeight(limit))
	if err != nil {
		return nil, err
	}

	var rawKlines [][]interface{}
	if err := json.Unmarshal(body, &rawKlines); err != nil {
		return nil, &APIError{Kind: KindTransient, Message: "malformed klines payload", Err: err}
	}

	klines := make([]Kline, 0, len(rawKlines))
	for _, raw := range rawKlines {
		if len(raw) < 11 {
			return nil, &APIError{Kind: KindTransient, Message: fmt.Sprintf("short kline row: %d fields", len(raw))}
		}
		klines = append(klines, Kline{
			OpenTime:                 asInt64(raw[0]),
			Open:                     asFloat(raw[1]),
			High:                     asFloat(raw[2]),
			Low:                      asFloat(raw[3]),
			Close:                    asFloat(raw[4]),
			Volume:                   asFloat(raw[5]),
			CloseTime:                asInt64(raw[6]),
			QuoteAssetVolume:         asFloat(raw[7]),
			NumberOfTrades:           int(asInt64(raw[8])),
			TakerBuyBaseAssetVolume:  asFloat(raw[9]),
			TakerBuyQuoteAssetVolume: asFloat(raw[10]),
		})
	}

	return klines, nil
}

// Ping checks connectivity to the exchange
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.get(ctx, "/api/v3/ping", nil, 1)
	return err
}

// ServerTime returns the exchange's clock
func (c *Client) ServerTime(ctx context.Context) (time.Time, error) {
	body, err := c.get(ctx, "/api/v3/time", nil, 1)
	if err != nil {
		return time.Time{}, err
	}

	var resp struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return time.Time{}, &APIError{Kind: KindTransient, Message: "malformed time payload", Err: err}
	}

	return time.UnixMilli(resp.ServerTime).UTC(), nil
}

// SymbolInfo represents basic symbol metadata
type SymbolInfo struct {
	Symbol               string `json:"symbol"`
	Status               string `json:"status"`
	BaseAsset            string `json:"baseAsset"`
	QuoteAsset           string `json:"quoteAsset"`
	IsSpotTradingAllowed bool   `json:"isSpotTradingAllowed"`
}

// ExchangeInfo represents the exchange information response
type ExchangeInfo struct {
	Symbols []SymbolInfo `json:"symbols"`
}

// GetExchangeInfo fetches symbol metadata for the whole exchange
func (c *Client) GetExchangeInfo(ctx context.Context) (*ExchangeInfo, error) {
	body, err := c.get(ctx, "/api/v3/exchangeInfo", nil, 20)
	if err != nil {
		return nil, err
	}

	var info ExchangeInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, &APIError{Kind: KindTransient, Message: "malformed exchangeInfo payload", Err: err}
	}

	return &info, nil
}

// Ticker24hr represents 24h ticker statistics for one symbol
type Ticker24hr struct {
	Symbol             string  `json:"symbol"`
	PriceChange        float64 `json:"priceChange,string"`
	PriceChangePercent float64 `json:"priceChangePercent,string"`
	WeightedAvgPrice   float64 `json:"weightedAvgPrice,string"`
	LastPrice          float64 `json:"lastPrice,string"`
	Volume             float64 `json:"volume,string"`
	QuoteVolume        float64 `json:"quoteVolume,string"`
	OpenTime           int64   `json:"openTime"`
	CloseTime          int64   `json:"closeTime"`
	Count              int64   `json:"count"`
}

// Get24hTicker fetches 24h ticker statistics for a symbol
func (c *Client) Get24hTicker(ctx context.Context, symbol string) (*Ticker24hr, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.get(ctx, "/api/v3/ticker/24hr", params, 1)
	if err != nil {
		return nil, err
	}

	var ticker Ticker24hr
	if err := json.Unmarshal(body, &ticker); err != nil {
		return nil, &APIError{Kind: KindTransient, Message: "malformed ticker payload", Err: err}
	}

	return &ticker, nil
}

// get performs a rate-limited GET with retry on transient failures
func (c *Client) get(ctx context.Context, path string, params url.Values, weight int) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx, weight); err != nil {
			return nil, err
		}

		body, err := c.doOnce(ctx, path, params)
		if err == nil {
			return body, nil
		}
		lastErr = err

		apiErr, ok := err.(*APIError)
		if !ok || !apiErr.Retryable() || attempt == c.maxRetries {
			return nil, err
		}

		delay := c.retryDelay
		if apiErr.Kind == KindRateLimited && apiErr.RetryAfter > 0 {
			delay = apiErr.RetryAfter
		}

		c.log.Warn("retrying request",
			"endpoint", path, "attempt", attempt, "delay", delay.String(), "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, lastErr
}

// doOnce performs a single HTTP round trip and classifies the outcome
func (c *Client) doOnce(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &APIError{Kind: KindPermanent, Message: "building request", Err: err}
	}
	if c.apiKey != "" {
		req.Header.Set("X-MBX-APIKEY", c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)

	if c.latency != nil {
		c.latency.RecordAPICall(path, elapsed)
	}

	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	// Backpressure: fold the exchange's own weight accounting into ours
	if used, err := strconv.Atoi(resp.Header.Get("X-MBX-USED-WEIGHT-1M")); err == nil {
		c.limiter.ObserveUsedWeight(used)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiResp struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		_ = json.Unmarshal(body, &apiResp)

		retryAfter := time.Duration(0)
		if s, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			retryAfter = time.Duration(s) * time.Second
		}

		msg := apiResp.Msg
		if msg == "" {
			msg = string(body)
		}
		return nil, classifyStatus(resp.StatusCode, apiResp.Code, msg, retryAfter)
	}

	return body, nil
}

func asFloat(val interface{}) float64 {
	switch v := val.(type) {
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case float64:
		return v
	default:
		return 0
	}
}

func asInt64(val interface{}) int64 {
	switch v := val.(type) {
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}
