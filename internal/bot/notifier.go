package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vadimpetrov/diacare-bot/internal/bot/keyboards"
	"github.com/vadimpetrov/diacare-bot/internal/database"
	"github.com/vadimpetrov/diacare-bot/internal/logger"
)

// Notifier pushes scheduler and alert messages to chats. It is a
// separate object so the timer subsystems can be built before the
// update handling.
type Notifier struct {
	api *tgbotapi.BotAPI
}

func NewNotifier(api *tgbotapi.BotAPI) *Notifier {
	return &Notifier{api: api}
}

// NotifyReminder delivers a fired reminder with snooze controls.
func (n *Notifier) NotifyReminder(r *database.Reminder) {
	text := "⏰ Напоминание: " + reminderText(r.Type)
	msg := tgbotapi.NewMessage(r.TelegramID, text)
	msg.ReplyMarkup = keyboards.ReminderFired(r.ID)
	if _, err := n.api.Send(msg); err != nil {
		logger.Errorf("failed to deliver reminder %d: %v", r.ID, err)
	}
}

func reminderText(reminderType string) string {
	switch reminderType {
	case database.ReminderSugarCheck:
		return "пора измерить сахар 🩸"
	case database.ReminderLongInsulin:
		return "пора сделать длинный инсулин 💉"
	case database.ReminderMedicine:
		return "пора принять лекарство 💊"
	case database.ReminderFoodCheck:
		return "проверьте сахар после еды 🍽️"
	}
	return "время по расписанию"
}

// NotifyAlert warns the user about a persistent out-of-range reading.
func (n *Notifier) NotifyAlert(telegramID int64, episode *database.AlertEpisode) {
	var text string
	if episode.Type == database.AlertLow {
		text = fmt.Sprintf("🚨 Сахар %.1f ммоль/л остается низким. Примите быстрые углеводы и перемерьте.", episode.Sugar)
	} else {
		text = fmt.Sprintf("🚨 Сахар %.1f ммоль/л остается высоким. Проверьте инсулин и перемерьте.", episode.Sugar)
	}
	if _, err := n.api.Send(tgbotapi.NewMessage(telegramID, text)); err != nil {
		logger.Errorf("failed to deliver alert to user %d: %v", telegramID, err)
	}
}

// NotifyContact relays the alert to the emergency contact handle.
func (n *Notifier) NotifyContact(contact string, telegramID int64, episode *database.AlertEpisode) {
	text := fmt.Sprintf("🆘 У вашего контакта сахар %.1f ммоль/л вне безопасного диапазона и не приходит в норму.", episode.Sugar)
	msg := tgbotapi.NewMessageToChannel(contact, text)
	if _, err := n.api.Send(msg); err != nil {
		logger.Errorf("failed to relay alert to contact %s: %v", contact, err)
	}
}
