// Package telegram implements the chat front end of the bot: subscriber commands,
// status queries and signal alerts.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"rsiTrendBot/internal/app"
	"rsiTrendBot/internal/domain"
	"rsiTrendBot/internal/ports"
	"rsiTrendBot/internal/strategy"
)

const statusCallbackPrefix = "status_"

// botAPI is the part of *tgbotapi.BotAPI the bot uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Reporter provides the data shown by /status and /stats.
type Reporter interface {
	Keys() []domain.InstanceKey
	StatusReport(ctx context.Context, key domain.InstanceKey) (*app.StatusReport, error)
	StatsReport() []app.KeyStatistics
}

// Config holds configuration for the Telegram bot.
type Config struct {
	Token        string
	AdminChatIDs []int64
	Strategy     strategy.Config // Periods and thresholds shown in messages
	Subscribers  ports.SubscriberRepository
	Logger       ports.Logger
}

// Bot implements ports.Notifier and serves the chat commands.
type Bot struct {
	api         botAPI
	subscribers ports.SubscriberRepository
	admins      map[int64]bool
	adminOrder  []int64
	strategy    strategy.Config
	logger      ports.Logger
}

// New connects to Telegram with the configured token.
func New(cfg Config) (*Bot, error) {
	if cfg.Logger == nil || cfg.Subscribers == nil {
		return nil, fmt.Errorf("logger and subscriber repository are required for Telegram bot")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is empty: %w", ports.ErrConfigurationError)
	}
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("connecting to Telegram: %w: %w", ports.ErrAuthenticationFailed, err)
	}
	cfg.Logger.Info(context.Background(), "Telegram connected", map[string]interface{}{"username": api.Self.UserName})
	return newBot(api, cfg), nil
}

func newBot(api botAPI, cfg Config) *Bot {
	b := &Bot{
		api:         api,
		subscribers: cfg.Subscribers,
		admins:      make(map[int64]bool),
		strategy:    cfg.Strategy,
		logger:      cfg.Logger,
	}
	for _, id := range cfg.AdminChatIDs {
		if !b.admins[id] {
			b.admins[id] = true
			b.adminOrder = append(b.adminOrder, id)
		}
	}
	return b
}

// Run receives updates until ctx is canceled.
func (b *Bot) Run(ctx context.Context, reporter Reporter) error {
	if reporter == nil {
		return fmt.Errorf("reporter is required")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	b.logger.Info(ctx, "Telegram bot listening for commands")
	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, reporter, up)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, reporter Reporter, up tgbotapi.Update) {
	if up.CallbackQuery != nil {
		b.handleCallback(ctx, reporter, up.CallbackQuery)
		return
	}
	if up.Message == nil {
		return
	}

	chatID := up.Message.Chat.ID
	fields := map[string]interface{}{"chatID": chatID, "command": up.Message.Command()}
	b.logger.Debug(ctx, "Telegram message received", fields)

	switch up.Message.Command() {
	case "start":
		if err := b.subscribers.AddSubscriber(ctx, chatID); err != nil {
			b.logger.Error(ctx, err, "Failed to add subscriber", fields)
		}
		b.reply(ctx, chatID, WelcomeMessage(reporter.Keys()))
	case "stop":
		if err := b.subscribers.RemoveSubscriber(ctx, chatID); err != nil {
			b.logger.Error(ctx, err, "Failed to remove subscriber", fields)
		}
		b.reply(ctx, chatID, StoppedMessage(b.admins[chatID]))
	case "status":
		msg := tgbotapi.NewMessage(chatID, StatusPrompt())
		msg.ReplyMarkup = statusKeyboard(reporter.Keys())
		b.send(ctx, msg)
	case "stats":
		b.reply(ctx, chatID, StatsMessage(reporter.StatsReport()))
	case "help":
		b.reply(ctx, chatID, HelpMessage(b.strategy))
	default:
		b.reply(ctx, chatID, UnknownCommandMessage())
	}
}

func (b *Bot) handleCallback(ctx context.Context, reporter Reporter, q *tgbotapi.CallbackQuery) {
	// Acknowledge first so the client stops its spinner.
	if _, err := b.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		b.logger.Warn(ctx, "Failed to answer callback", map[string]interface{}{"error": err.Error()})
	}
	if q.Message == nil || !strings.HasPrefix(q.Data, statusCallbackPrefix) {
		return
	}

	chatID, messageID := q.Message.Chat.ID, q.Message.MessageID
	var text string
	key, err := domain.ParseInstanceKey(strings.TrimPrefix(q.Data, statusCallbackPrefix))
	if err == nil {
		var report *app.StatusReport
		report, err = reporter.StatusReport(ctx, key)
		if err == nil {
			text = StatusMessage(report)
		}
	}
	if err != nil {
		b.logger.Error(ctx, err, "Failed to build status", map[string]interface{}{"data": q.Data})
		text = fmt.Sprintf("❌ Could not load data for %s", strings.TrimPrefix(q.Data, statusCallbackPrefix))
	}

	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(edit); err != nil {
		b.logger.Error(ctx, err, "Failed to edit status message", map[string]interface{}{"chatID": chatID})
	}
}

func statusKeyboard(keys []domain.InstanceKey) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(keyLabel(k), statusCallbackPrefix+k.String()),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	b.send(ctx, msg)
}

func (b *Bot) send(ctx context.Context, msg tgbotapi.MessageConfig) error {
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error(ctx, err, "Failed to send Telegram message", map[string]interface{}{"chatID": msg.ChatID})
		return err
	}
	return nil
}

// recipients returns the stored subscribers followed by admin chats not already listed.
func (b *Bot) recipients(ctx context.Context) ([]int64, error) {
	ids, err := b.subscribers.ListSubscribers(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	for _, id := range b.adminOrder {
		if !seen[id] {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// NotifySignal sends the alert to every recipient. A failed chat does not stop the others;
// an error is returned only when no chat could be reached.
func (b *Bot) NotifySignal(ctx context.Context, event *domain.SignalEvent) error {
	ids, err := b.recipients(ctx)
	if err != nil {
		// Admins still get the alert when the subscriber store is down.
		b.logger.Error(ctx, err, "Failed to list subscribers")
		ids = b.adminOrder
	}
	if len(ids) == 0 {
		b.logger.Debug(ctx, "No subscribers for signal", map[string]interface{}{"signalID": event.ID})
		return nil
	}

	text := SignalAlert(event, b.strategy)
	var errs []error
	for _, id := range ids {
		if err := b.send(ctx, tgbotapi.NewMessage(id, text)); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", id, err))
		}
	}
	if len(errs) == len(ids) {
		return fmt.Errorf("signal %s not delivered: %w: %w", event.ID, ports.ErrNotificationFailed, errors.Join(errs...))
	}
	b.logger.Info(ctx, "Signal sent", map[string]interface{}{
		"signalID":   event.ID,
		"recipients": len(ids) - len(errs),
		"failed":     len(errs),
	})
	return nil
}
