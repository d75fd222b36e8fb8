package telegram

import (
	"context"

	"rsiTrendBot/internal/domain"
	"rsiTrendBot/internal/ports"
	"rsiTrendBot/internal/strategy"
)

// LogNotifier writes alerts to the log. It replaces the bot when no token is configured.
type LogNotifier struct {
	logger   ports.Logger
	strategy strategy.Config
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger ports.Logger, cfg strategy.Config) *LogNotifier {
	return &LogNotifier{logger: logger, strategy: cfg}
}

// NotifySignal logs the alert text.
func (n *LogNotifier) NotifySignal(ctx context.Context, event *domain.SignalEvent) error {
	n.logger.Info(ctx, "Signal alert", map[string]interface{}{
		"signalID": event.ID,
		"instance": event.Key.String(),
		"type":     string(event.Type),
		"message":  SignalAlert(event, n.strategy),
	})
	return nil
}
