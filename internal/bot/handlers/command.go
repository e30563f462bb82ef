package handlers

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vadimpetrov/diacare-bot/internal/bot/keyboards"
	"github.com/vadimpetrov/diacare-bot/internal/bot/menus"
	"github.com/vadimpetrov/diacare-bot/internal/database"
	"github.com/vadimpetrov/diacare-bot/internal/diary"
	"github.com/vadimpetrov/diacare-bot/internal/session"
	"github.com/vadimpetrov/diacare-bot/internal/smartinput"
)

const helpText = `Доступные команды:
/start - Главное меню
/dose - Рассчитать дозу инсулина
/sugar - Записать уровень сахара
/diary - Последние записи дневника
/reminders - Напоминания
/profile - Профиль дозировки
/timezone - Часовой пояс
/sos - SOS-контакт
/cancel - Отменить текущий ввод
/help - Это сообщение

Можно писать свободным текстом: "сахар 5.6 хе 2 доза 3" —
бот разберет значения сам. Фото еды тоже понимаю.`

// CommandHandler handles bot commands
type CommandHandler struct {
	api  *tgbotapi.BotAPI
	deps Dependencies
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(api *tgbotapi.BotAPI, deps Dependencies) *CommandHandler {
	return &CommandHandler{api: api, deps: deps}
}

// Handle processes a command message
func (h *CommandHandler) Handle(ctx context.Context, message *tgbotapi.Message, user *database.User) error {
	chatID := message.Chat.ID
	sess := h.deps.Sessions.Get(user.TelegramID)

	switch message.Command() {
	case "start":
		sess.Reset()
		h.deps.Sessions.Save(sess)
		return menus.SendMainMenu(h.api, chatID)

	case "help":
		return send(h.api, chatID, helpText)

	case "cancel":
		sess.Reset()
		h.deps.Sessions.Save(sess)
		return send(h.api, chatID, "Ввод отменен.")

	case "dose":
		msg := tgbotapi.NewMessage(chatID, "Как считаем углеводы?")
		msg.ReplyMarkup = keyboards.DoseMethodMenu()
		_, err := h.api.Send(msg)
		return err

	case "sugar":
		return startEntry(ctx, h.api, h.deps, chatID, user, sess, diary.FlowSugarOnly, smartinput.Fields{})

	case "diary":
		entries, err := h.deps.EntrySvc.ListRecent(ctx, user.ID, 10)
		if err != nil {
			return err
		}
		return menus.SendRecentEntries(h.api, chatID, entries)

	case "reminders":
		return sendReminderList(ctx, h.api, h.deps, chatID, user)

	case "profile":
		sess.Reset()
		sess.State = session.StateProfileICR
		sess.ProfileDraft = make(map[string]float64)
		h.deps.Sessions.Save(sess)
		return send(h.api, chatID, "Введите углеводный коэффициент (г углеводов на 1 ед инсулина):")

	case "timezone":
		sess.Reset()
		sess.State = session.StateWaitingTimezone
		h.deps.Sessions.Save(sess)
		return send(h.api, chatID, "Введите часовой пояс (например: Europe/Moscow):")

	case "sos":
		sess.Reset()
		sess.State = session.StateWaitingSOS
		h.deps.Sessions.Save(sess)
		return send(h.api, chatID, "Введите SOS-контакт: @username в Telegram или номер телефона:")

	default:
		return send(h.api, chatID, "Неизвестная команда. Используйте /help для просмотра доступных команд.")
	}
}

func sendReminderList(ctx context.Context, api *tgbotapi.BotAPI, deps Dependencies, chatID int64, user *database.User) error {
	reminders, err := deps.ReminderSvc.List(ctx, user.ID)
	if err != nil {
		return err
	}
	return menus.SendReminderList(api, chatID, reminders, database.ReminderLimit(user.Plan))
}
