package ports

import (
	"context"

	"rsiTrendBot/internal/domain"
)

// KlineSource defines the interface for fetching price bars from a remote provider.
// Implementations must return klines in ascending time order and must reject
// bars whose prices cannot be parsed, so the indicators never see malformed input.
type KlineSource interface {
	// Name returns the provider name used for routing and metrics (e.g., "binance").
	Name() string

	// GetKlines retrieves the most recent klines for the given provider symbol and interval.
	GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]*domain.Kline, error)

	// GetPrice retrieves the latest traded price for the given provider symbol.
	GetPrice(ctx context.Context, symbol string) (float64, error)
}
