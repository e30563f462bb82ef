package handlers

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vadimpetrov/diacare-bot/internal/database"
	"github.com/vadimpetrov/diacare-bot/internal/diary"
	"github.com/vadimpetrov/diacare-bot/internal/logger"
	"github.com/vadimpetrov/diacare-bot/internal/smartinput"
)

// PhotoHandler analyzes meal photos and seeds a diary entry from them.
type PhotoHandler struct {
	api  *tgbotapi.BotAPI
	deps Dependencies
}

// NewPhotoHandler creates a new photo handler
func NewPhotoHandler(api *tgbotapi.BotAPI, deps Dependencies) *PhotoHandler {
	return &PhotoHandler{api: api, deps: deps}
}

// Handle processes a photo message
func (h *PhotoHandler) Handle(ctx context.Context, message *tgbotapi.Message, user *database.User) error {
	chatID := message.Chat.ID
	sess := h.deps.Sessions.Get(user.TelegramID)

	if sess.PhotoInFlight {
		return send(h.api, chatID, "Предыдущее фото еще обрабатывается, подождите немного.")
	}
	sess.PhotoInFlight = true
	h.deps.Sessions.Save(sess)
	defer func() {
		// Reload: the analysis below may have rewritten the session.
		cur := h.deps.Sessions.Get(user.TelegramID)
		cur.PhotoInFlight = false
		h.deps.Sessions.Save(cur)
	}()

	// The last size is the largest.
	photo := message.Photo[len(message.Photo)-1]
	file, err := h.api.GetFile(tgbotapi.FileConfig{FileID: photo.FileID})
	if err != nil {
		return fmt.Errorf("failed to get file: %w", err)
	}

	if err := send(h.api, chatID, "Анализирую изображение..."); err != nil {
		return err
	}

	description, err := h.deps.AI.DescribeMealPhoto(ctx, file.Link(h.api.Token))
	if err != nil {
		logger.Warningf("photo analysis failed for user %d: %v", user.ID, err)
		return send(h.api, chatID, "Не удалось проанализировать фото. Введите углеводы вручную: /dose")
	}

	if err := send(h.api, chatID, description); err != nil {
		return err
	}

	carbs, xe := smartinput.ExtractNutrition(description)
	if carbs == nil && xe == nil {
		return send(h.api, chatID, "Не смог выделить углеводы из описания. Введите их вручную: /dose")
	}

	seed := smartinput.Fields{Carbs: carbs, XE: xe}
	if message.Caption != "" {
		// A numeric caption is taken as the current sugar.
		if v, perr := smartinput.ParseFloat(message.Caption); perr == nil && v >= 0 {
			seed.Sugar = &v
		}
	}

	err = startEntry(ctx, h.api, h.deps, chatID, user, sess, diary.FlowDoseCarbs, seed)
	if err != nil {
		return err
	}

	cur := h.deps.Sessions.Get(user.TelegramID)
	if cur.Pending != nil {
		cur.Pending.PhotoPath = photo.FileID
		h.deps.Sessions.Save(cur)
	}
	return nil
}
