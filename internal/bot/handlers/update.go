package handlers

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vadimpetrov/diacare-bot/internal/logger"
)

// UpdateHandler handles telegram updates and coordinates other handlers
type UpdateHandler struct {
	api             *tgbotapi.BotAPI
	deps            Dependencies
	callbackHandler *CallbackHandler
	commandHandler  *CommandHandler
	textHandler     *TextHandler
	photoHandler    *PhotoHandler
}

// NewUpdateHandler creates a new update handler
func NewUpdateHandler(api *tgbotapi.BotAPI, deps Dependencies) *UpdateHandler {
	return &UpdateHandler{
		api:             api,
		deps:            deps,
		callbackHandler: NewCallbackHandler(api, deps),
		commandHandler:  NewCommandHandler(api, deps),
		textHandler:     NewTextHandler(api, deps),
		photoHandler:    NewPhotoHandler(api, deps),
	}
}

// Handle processes a telegram update
func (h *UpdateHandler) Handle(ctx context.Context, update tgbotapi.Update) error {
	if update.Message == nil && update.CallbackQuery == nil {
		return nil
	}

	var userID int64
	var username, firstName, lastName string

	if update.Message != nil {
		userID = update.Message.From.ID
		username = update.Message.From.UserName
		firstName = update.Message.From.FirstName
		lastName = update.Message.From.LastName
	} else {
		userID = update.CallbackQuery.From.ID
		username = update.CallbackQuery.From.UserName
		firstName = update.CallbackQuery.From.FirstName
		lastName = update.CallbackQuery.From.LastName
	}

	user, err := h.deps.UserService.RegisterUser(ctx, userID, username, firstName, lastName)
	if err != nil {
		return fmt.Errorf("failed to get/create user: %w", err)
	}

	if update.CallbackQuery != nil {
		return h.callbackHandler.Handle(ctx, update.CallbackQuery, user)
	}

	if update.Message.IsCommand() {
		return h.commandHandler.Handle(ctx, update.Message, user)
	}

	if len(update.Message.Photo) > 0 {
		return h.photoHandler.Handle(ctx, update.Message, user)
	}

	if update.Message.Text != "" {
		return h.textHandler.Handle(ctx, update.Message, user)
	}

	logger.Debug("ignoring unsupported update", "telegram_id", userID)
	return nil
}
