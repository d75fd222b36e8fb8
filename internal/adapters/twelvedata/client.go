// Package twelvedata implements ports.KlineSource on top of the Twelve Data REST API.
// It serves forex and commodity symbols such as XAU/USD.
package twelvedata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"rsiTrendBot/internal/domain"
	"rsiTrendBot/internal/ports"
)

const (
	defaultBaseURL = "https://api.twelvedata.com"
	defaultTimeout = 15 * time.Second

	// SourceName is the routing name of this adapter.
	SourceName = "twelvedata"

	dateTimeLayout = "2006-01-02 15:04:05"
	dateLayout     = "2006-01-02"
)

// intervals maps bot timeframes to Twelve Data intervals and their bar duration.
var intervals = map[string]struct {
	name     string
	duration time.Duration
}{
	"1m":  {"1min", time.Minute},
	"5m":  {"5min", 5 * time.Minute},
	"15m": {"15min", 15 * time.Minute},
	"30m": {"30min", 30 * time.Minute},
	"1h":  {"1h", time.Hour},
	"4h":  {"4h", 4 * time.Hour},
	"1d":  {"1day", 24 * time.Hour},
}

// Config holds configuration for the Twelve Data client.
type Config struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client // Optional, replaces the default client
	Logger     ports.Logger
}

// Client implements ports.KlineSource.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	logger  ports.Logger
	now     func() time.Time
}

// New creates a Twelve Data client. An empty API key is rejected.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Twelve Data client")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("twelve data API key is empty: %w", ports.ErrConfigurationError)
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		http:    httpClient,
		logger:  cfg.Logger,
		now:     time.Now,
	}, nil
}

// Name returns the routing name of the source.
func (c *Client) Name() string {
	return SourceName
}

// errorResponse is the body Twelve Data returns with status "error".
type errorResponse struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type timeSeriesResponse struct {
	errorResponse
	Values []struct {
		DateTime string `json:"datetime"`
		Open     string `json:"open"`
		High     string `json:"high"`
		Low      string `json:"low"`
		Close    string `json:"close"`
		Volume   string `json:"volume"`
	} `json:"values"`
}

type priceResponse struct {
	errorResponse
	Price string `json:"price"`
}

// GetKlines retrieves up to limit bars in chronological order.
func (c *Client) GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]*domain.Kline, error) {
	op := "GetKlines"
	iv, ok := intervals[interval]
	if !ok {
		return nil, c.fail(ctx, op, fmt.Errorf("unsupported interval %q: %w", interval, ports.ErrInvalidRequest))
	}
	if limit <= 0 || limit > 5000 {
		return nil, c.fail(ctx, op, fmt.Errorf("limit %d out of range 1-5000: %w", limit, ports.ErrInvalidRequest))
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", iv.name)
	params.Set("outputsize", strconv.Itoa(limit))

	var resp timeSeriesResponse
	if err := c.get(ctx, "/time_series", params, &resp); err != nil {
		return nil, c.fail(ctx, op, err)
	}
	if resp.Status == "error" {
		return nil, c.fail(ctx, op, apiError(resp.errorResponse))
	}
	if resp.Values == nil {
		return nil, c.fail(ctx, op, fmt.Errorf("response for %s has no values: %w", symbol, ports.ErrNoData))
	}

	now := c.now()
	klines := make([]*domain.Kline, 0, len(resp.Values))
	// Values arrive newest first.
	for i := len(resp.Values) - 1; i >= 0; i-- {
		v := resp.Values[i]
		openTime, err := parseDateTime(v.DateTime)
		if err != nil {
			return nil, c.fail(ctx, op, err)
		}
		k := &domain.Kline{
			OpenTime:  openTime,
			CloseTime: openTime.Add(iv.duration - time.Millisecond),
			Symbol:    symbol,
			Interval:  interval,
		}
		fields := []struct {
			name string
			raw  string
			dst  *float64
		}{
			{"open", v.Open, &k.Open},
			{"high", v.High, &k.High},
			{"low", v.Low, &k.Low},
			{"close", v.Close, &k.Close},
			{"volume", v.Volume, &k.Volume},
		}
		for _, f := range fields {
			if f.raw == "" && f.name == "volume" {
				continue
			}
			val, err := strconv.ParseFloat(f.raw, 64)
			if err != nil {
				return nil, c.fail(ctx, op, fmt.Errorf("parsing %s '%s': %w: %w", f.name, f.raw, ports.ErrMalformedData, err))
			}
			*f.dst = val
		}
		k.IsFinal = k.CloseTime.Before(now)
		klines = append(klines, k)
	}

	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "interval": interval, "count": len(klines)})
	return klines, nil
}

// GetPrice retrieves the latest price for a symbol.
func (c *Client) GetPrice(ctx context.Context, symbol string) (float64, error) {
	op := "GetPrice"
	params := url.Values{}
	params.Set("symbol", symbol)

	var resp priceResponse
	if err := c.get(ctx, "/price", params, &resp); err != nil {
		return 0, c.fail(ctx, op, err)
	}
	if resp.Status == "error" {
		return 0, c.fail(ctx, op, apiError(resp.errorResponse))
	}
	if resp.Price == "" {
		return 0, c.fail(ctx, op, fmt.Errorf("no price for %s: %w", symbol, ports.ErrNoData))
	}
	price, err := strconv.ParseFloat(resp.Price, 64)
	if err != nil {
		return 0, c.fail(ctx, op, fmt.Errorf("parsing price '%s': %w: %w", resp.Price, ports.ErrMalformedData, err))
	}
	return price, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	params.Set("apikey", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("building request: %w: %w", ports.ErrInvalidRequest, err)
	}

	res, err := c.http.Do(req)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			return fmt.Errorf("%w: %w", ports.ErrContextCanceled, err)
		case errors.Is(err, context.DeadlineExceeded):
			return fmt.Errorf("%w: %w", ports.ErrTimeout, err)
		}
		return fmt.Errorf("%w: %w", ports.ErrConnectionFailed, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("reading body: %w: %w", ports.ErrConnectionFailed, err)
	}

	if res.StatusCode != http.StatusOK {
		var apiErr errorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			if apiErr.Code == 0 {
				apiErr.Code = res.StatusCode
			}
			return apiError(apiErr)
		}
		return fmt.Errorf("http status %d: %w", res.StatusCode, statusError(res.StatusCode))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w: %w", ports.ErrMalformedData, err)
	}
	return nil
}

func (c *Client) fail(ctx context.Context, op string, err error) error {
	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", op), map[string]interface{}{"source": SourceName})
	return fmt.Errorf("%s failed: %w", op, err)
}

// apiError maps a Twelve Data error body to a sentinel.
func apiError(e errorResponse) error {
	return fmt.Errorf("twelve data error %d: %s: %w", e.Code, e.Message, statusError(e.Code))
}

func statusError(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ports.ErrInvalidRequest
	case http.StatusUnauthorized, http.StatusForbidden:
		return ports.ErrAuthenticationFailed
	case http.StatusNotFound:
		return ports.ErrInvalidSymbol
	case http.StatusTooManyRequests:
		return ports.ErrRateLimited
	}
	if code >= 500 {
		return ports.ErrSourceUnavailable
	}
	return ports.ErrUnknown
}

func parseDateTime(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(dateTimeLayout, s, time.UTC); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing datetime '%s': %w: %w", s, ports.ErrMalformedData, err)
	}
	return t, nil
}
