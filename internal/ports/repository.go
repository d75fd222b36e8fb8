package ports

import (
	"context"

	"rsiTrendBot/internal/domain"
)

// SignalRepository defines the interface for storing emitted signals and statistics snapshots.
type SignalRepository interface {
	// SaveSignal stores an emitted signal event.
	SaveSignal(ctx context.Context, event *domain.SignalEvent) error
	// RecentSignals retrieves the most recent signals for an instance, newest first.
	RecentSignals(ctx context.Context, key domain.InstanceKey, limit int) ([]*domain.SignalEvent, error)
	// SaveStatistics stores the latest statistics snapshot for an instance.
	SaveStatistics(ctx context.Context, key domain.InstanceKey, stats domain.Statistics) error
	// LoadStatistics returns the stored snapshot for an instance, ErrNotFound if none.
	LoadStatistics(ctx context.Context, key domain.InstanceKey) (domain.Statistics, error)
}

// SubscriberRepository defines the interface for the set of chats receiving alerts.
type SubscriberRepository interface {
	// AddSubscriber subscribes a chat. Adding an existing chat is not an error.
	AddSubscriber(ctx context.Context, chatID int64) error
	// RemoveSubscriber unsubscribes a chat. Removing an unknown chat is not an error.
	RemoveSubscriber(ctx context.Context, chatID int64) error
	// ListSubscribers returns all subscribed chats in subscription order.
	ListSubscribers(ctx context.Context) ([]int64, error)
}
