package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"rsiTrendBot/internal/domain"
	"rsiTrendBot/internal/ports"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
)

const (
	// Base URLs
	baseURLProduction = "https://api.binance.com"
	baseURLTestnet    = "https://testnet.binance.vision"

	// SourceName is the routing name of this adapter.
	SourceName = "binance"
)

// validIntervals are the kline intervals accepted by the spot API.
var validIntervals = map[string]bool{
	"1m": true, "3m": true, "5m": true, "15m": true, "30m": true,
	"1h": true, "2h": true, "4h": true, "6h": true, "8h": true, "12h": true,
	"1d": true, "3d": true, "1w": true, "1M": true,
}

// Client implements the ports.KlineSource interface using the go-binance spot client.
type Client struct {
	spotClient *binance.Client
	logger     ports.Logger
	retryDelay time.Duration
	maxRetries int
	now        func() time.Time
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey     string // Optional, only public endpoints are used
	SecretKey  string
	UseTestnet bool
	BaseURL    string // Overrides UseTestnet when set
	Logger     ports.Logger
	RetryDelay time.Duration // Initial delay between retries of transient failures
	MaxRetries int           // Retries after the first attempt; 0 disables retrying
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}

	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)

	switch {
	case cfg.BaseURL != "":
		client.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	case cfg.UseTestnet:
		client.BaseURL = baseURLTestnet
	default:
		client.BaseURL = baseURLProduction
	}
	cfg.Logger.Info(context.Background(), "Binance client configured", map[string]interface{}{"baseURL": client.BaseURL})

	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 1 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &Client{
		spotClient: client,
		logger:     cfg.Logger,
		retryDelay: retryDelay,
		maxRetries: maxRetries,
		now:        time.Now,
	}, nil
}

// Name returns the routing name of the source.
func (c *Client) Name() string {
	return SourceName
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003, -1015: // Too many requests / orders
			mappedErr = ports.ErrRateLimited
		case -1021: // Timestamp for this request is outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case -1022, -2014, -2015: // Signature or API-key problems
			mappedErr = ports.ErrAuthenticationFailed
		case -1121: // Invalid symbol
			mappedErr = ports.ErrInvalidSymbol
		case -1100, -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1120, -1125, -1127, -1128, -1130: // Parameter/Request format errors
			mappedErr = ports.ErrInvalidRequest
		default:
			mappedErr = ports.ErrUnknown
		}
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	// Handle non-API errors (network, context cancellation, etc.)
	var finalErr error
	switch {
	case errors.Is(err, ports.ErrMalformedData), errors.Is(err, ports.ErrNoData), errors.Is(err, ports.ErrInvalidRequest):
		finalErr = fmt.Errorf("%s failed: %w", operation, err)
	case errors.Is(err, context.DeadlineExceeded):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	case strings.Contains(err.Error(), "use of closed network connection"),
		strings.Contains(err.Error(), "connection refused"),
		strings.Contains(err.Error(), "connection reset by peer"),
		strings.Contains(err.Error(), "no such host"):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	default:
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// isTransient reports whether a translated error is worth retrying.
func isTransient(err error) bool {
	return errors.Is(err, ports.ErrRateLimited) ||
		errors.Is(err, ports.ErrConnectionFailed) ||
		(errors.Is(err, ports.ErrTimeout) && !errors.Is(err, context.DeadlineExceeded))
}

// withRetry runs fn until it succeeds, fails permanently or retries are exhausted.
// The delay doubles after every failed attempt.
func (c *Client) withRetry(ctx context.Context, operation string, fn func() error) error {
	delay := c.retryDelay
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !isTransient(err) || attempt >= c.maxRetries {
			return err
		}
		c.logger.Warn(ctx, operation+": transient failure, retrying", map[string]interface{}{
			"attempt": attempt + 1,
			"delay":   delay.String(),
		})
		select {
		case <-ctx.Done():
			return c.handleError(ctx, ctx.Err(), operation)
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// Ping checks the connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	err := c.spotClient.NewPingService().Do(ctx)
	if err != nil {
		return c.handleError(ctx, fmt.Errorf("ping failed: %w", err), op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// GetPrice retrieves the latest ticker price for a given symbol.
func (c *Client) GetPrice(ctx context.Context, symbol string) (float64, error) {
	op := "GetPrice"
	var price float64
	err := c.withRetry(ctx, op, func() error {
		prices, err := c.spotClient.NewListPricesService().Symbol(symbol).Do(ctx)
		if err != nil {
			return c.handleError(ctx, err, op)
		}
		if len(prices) == 0 {
			return c.handleError(ctx, fmt.Errorf("no price data returned for symbol %s: %w", symbol, ports.ErrNoData), op)
		}
		p, err := strconv.ParseFloat(prices[0].Price, 64)
		if err != nil {
			return c.handleError(ctx, fmt.Errorf("could not parse price '%s': %w: %w", prices[0].Price, ports.ErrMalformedData, err), op)
		}
		price = p
		return nil
	})
	return price, err
}

// GetKlines retrieves the most recent klines for the given symbol, oldest first.
// The last kline may still be open; it is marked with IsFinal=false.
func (c *Client) GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]*domain.Kline, error) {
	op := "GetKlines"
	if !validIntervals[interval] {
		return nil, c.handleError(ctx, fmt.Errorf("unsupported interval %q: %w", interval, ports.ErrInvalidRequest), op)
	}
	if limit <= 0 || limit > 1000 {
		return nil, c.handleError(ctx, fmt.Errorf("limit %d out of range 1-1000: %w", limit, ports.ErrInvalidRequest), op)
	}

	var domainKlines []*domain.Kline
	err := c.withRetry(ctx, op, func() error {
		binanceKlines, err := c.spotClient.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
		if err != nil {
			return c.handleError(ctx, err, op)
		}

		now := c.now()
		domainKlines = make([]*domain.Kline, 0, len(binanceKlines))
		for _, bk := range binanceKlines {
			dk, err := translateBinanceKline(bk, symbol, interval, now)
			if err != nil {
				return c.handleError(ctx, fmt.Errorf("failed to translate kline: %w", err), op)
			}
			domainKlines = append(domainKlines, dk)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "interval": interval, "count": len(domainKlines)})
	return domainKlines, nil
}

func translateBinanceKline(bk *binance.Kline, symbol, interval string, now time.Time) (*domain.Kline, error) {
	if bk == nil {
		return nil, fmt.Errorf("received nil kline: %w", ports.ErrMalformedData)
	}
	parse := func(name, raw string) (float64, error) {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("parsing %s '%s': %w: %w", name, raw, ports.ErrMalformedData, err)
		}
		return v, nil
	}

	open, err := parse("open price", bk.Open)
	if err != nil {
		return nil, err
	}
	high, err := parse("high price", bk.High)
	if err != nil {
		return nil, err
	}
	low, err := parse("low price", bk.Low)
	if err != nil {
		return nil, err
	}
	cls, err := parse("close price", bk.Close)
	if err != nil {
		return nil, err
	}
	vol, err := parse("volume", bk.Volume)
	if err != nil {
		return nil, err
	}

	closeTime := time.UnixMilli(bk.CloseTime)
	return &domain.Kline{
		OpenTime:  time.UnixMilli(bk.OpenTime),
		CloseTime: closeTime,
		Symbol:    symbol,
		Interval:  interval,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     cls,
		Volume:    vol,
		IsFinal:   closeTime.Before(now),
	}, nil
}
