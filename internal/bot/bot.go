// Package bot wires the telegram transport to the update handlers.
package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vadimpetrov/diacare-bot/internal/apperrors"
	"github.com/vadimpetrov/diacare-bot/internal/bot/handlers"
	"github.com/vadimpetrov/diacare-bot/internal/logger"
)

type Bot struct {
	api        *tgbotapi.BotAPI
	handler    *handlers.UpdateHandler
	errHandler *apperrors.Handler
}

// NewAPI authorizes against the Bot API. Kept separate from New so the
// notifier can be built on the same connection first.
func NewAPI(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	logger.Infof("Bot authorized on account %s", api.Self.UserName)
	return api, nil
}

func New(api *tgbotapi.BotAPI, deps handlers.Dependencies) *Bot {
	return &Bot{
		api:        api,
		handler:    handlers.NewUpdateHandler(api, deps),
		errHandler: apperrors.NewHandler(logger.GetLogger()),
	}
}

// Start runs the long-poll loop until the context is cancelled. A failed
// update never stops the loop; the error is classified and logged.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	logger.Info("Bot is now listening for updates")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Bot is shutting down")
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update := <-updates:
			if err := b.handler.Handle(ctx, update); err != nil {
				b.errHandler.Handle(ctx, err)
			}
		}
	}
}
