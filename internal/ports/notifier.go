package ports

import (
	"context"

	"rsiTrendBot/internal/domain"
)

// Notifier delivers signal alerts to users.
type Notifier interface {
	NotifySignal(ctx context.Context, event *domain.SignalEvent) error
}
