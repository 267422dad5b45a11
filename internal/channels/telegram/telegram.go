// Package telegram implements the Telegram adapter using long polling.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/conciergehq/concierge/internal/channels"
	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

// Config holds Telegram settings.
type Config struct {
	BotToken string `yaml:"bot_token"`
}

// Adapter polls Telegram for updates and replies in the same chat.
type Adapter struct {
	bot       *bot.Bot
	responder channels.Responder
	logger    *slog.Logger
}

var _ channels.Adapter = (*Adapter)(nil)

// New creates the Telegram adapter.
func New(cfg Config, responder channels.Responder, logger *slog.Logger) (*Adapter, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &Adapter{
		responder: responder,
		logger:    logger.With("component", "telegram"),
	}

	b, err := bot.New(cfg.BotToken, bot.WithDefaultHandler(a.handleUpdate))
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	a.bot = b
	return a, nil
}

// Name implements channels.Adapter.
func (a *Adapter) Name() string { return "telegram" }

// Start long-polls for updates until the context is canceled.
func (a *Adapter) Start(ctx context.Context) error {
	a.logger.Info("telegram long polling started")
	a.bot.Start(ctx)
	return nil
}

// Stop is a no-op; canceling the Start context ends polling.
func (a *Adapter) Stop(ctx context.Context) error { return nil }

func (a *Adapter) handleUpdate(ctx context.Context, b *bot.Bot, update *tgmodels.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}

	start := time.Now()
	chatID := update.Message.Chat.ID
	sessionID := fmt.Sprintf("telegram:%d", chatID)

	reply := a.responder.Respond(ctx, sessionID, update.Message.Text)

	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: reply}); err != nil {
		a.logger.Error("reply delivery failed", "session", sessionID, "error", err)
		return
	}
	a.logger.Info("message handled", "session", sessionID, "duration", time.Since(start))
}
