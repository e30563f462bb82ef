package menus

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vadimpetrov/diacare-bot/internal/bot/keyboards"
	"github.com/vadimpetrov/diacare-bot/internal/database"
	"github.com/vadimpetrov/diacare-bot/internal/diary"
)

// SendMainMenu sends the main menu to a chat
func SendMainMenu(api *tgbotapi.BotAPI, chatID int64) error {
	text := `🤖 *ДиаКер* — твой помощник для управления диабетом

💉 Рассчитаю болюсную дозу по углеводам или ХЕ
🩸 Запишу уровень сахара в дневник
⏰ Напомню о замерах и инсулине
📷 Пойму фото еды и свободный текст: "сахар 5.6 хе 2"

⚠️ *Важно:* Это справочная информация, всегда консультируйтесь с врачом!

Выберите действие:`

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	msg.ReplyMarkup = keyboards.MainMenu()
	_, err := api.Send(msg)
	return err
}

// SendSettingsMenu sends the settings menu to a chat
func SendSettingsMenu(api *tgbotapi.BotAPI, chatID int64) error {
	msg := tgbotapi.NewMessage(chatID, "Настройки:")
	msg.ReplyMarkup = keyboards.SettingsMenu()
	_, err := api.Send(msg)
	return err
}

// SendEntryConfirmation shows the accumulated entry and asks to save it.
func SendEntryConfirmation(api *tgbotapi.BotAPI, chatID int64, p *diary.PendingEntry) error {
	var b strings.Builder
	b.WriteString("📋 Проверьте запись:\n\n")
	if p.SugarBefore != nil {
		fmt.Fprintf(&b, "🩸 Сахар: %.1f ммоль/л\n", *p.SugarBefore)
	}
	if p.XE != nil {
		fmt.Fprintf(&b, "🥖 ХЕ: %.1f\n", *p.XE)
	}
	if p.CarbsG != nil {
		fmt.Fprintf(&b, "🍞 Углеводы: %.1f г\n", *p.CarbsG)
	}
	if p.Dose != nil {
		if p.NeedsDose {
			fmt.Fprintf(&b, "💉 Расчетная доза: %.1f ед\n", *p.Dose)
		} else {
			fmt.Fprintf(&b, "💉 Доза: %.1f ед\n", *p.Dose)
		}
	}
	b.WriteString("\nМожно поправить значения сообщением, например: \"сахар=5.8\"")

	msg := tgbotapi.NewMessage(chatID, b.String())
	msg.ReplyMarkup = keyboards.ConfirmEntry()
	_, err := api.Send(msg)
	return err
}

// SendReminderList shows the user's reminders with their schedules.
func SendReminderList(api *tgbotapi.BotAPI, chatID int64, reminders []database.Reminder, limit int) error {
	var text string
	if len(reminders) == 0 {
		text = "У вас пока нет напоминаний. Нажмите 'Добавить' чтобы создать новое."
	} else {
		enabled := 0
		text = "Ваши напоминания:\n\n"
		for _, r := range reminders {
			status := "⏸️"
			if r.IsEnabled {
				status = "✅"
				enabled++
			}
			text += fmt.Sprintf("%s #%d %s — %s\n", status, r.ID, reminderTypeLabel(r.Type), scheduleLabel(&r))
		}
		text += fmt.Sprintf("\nВключено %d из %d по тарифу", enabled, limit)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboards.ReminderList(reminders)
	_, err := api.Send(msg)
	return err
}

func reminderTypeLabel(t string) string {
	switch t {
	case database.ReminderSugarCheck:
		return "замер сахара"
	case database.ReminderLongInsulin:
		return "длинный инсулин"
	case database.ReminderMedicine:
		return "лекарство"
	case database.ReminderFoodCheck:
		return "контроль после еды"
	}
	return t
}

func scheduleLabel(r *database.Reminder) string {
	switch {
	case r.Time != "":
		return fmt.Sprintf("ежедневно в %s", r.Time)
	case r.IntervalHours > 0:
		return fmt.Sprintf("каждые %d ч", r.IntervalHours)
	case r.MinutesAfter > 0:
		return fmt.Sprintf("через %d мин после еды", r.MinutesAfter)
	}
	return "без расписания"
}

// SendRecentEntries prints the latest diary rows, newest first.
func SendRecentEntries(api *tgbotapi.BotAPI, chatID int64, entries []database.Entry) error {
	var text string
	if len(entries) == 0 {
		text = "Дневник пока пуст."
	} else {
		text = "📒 Последние записи:\n\n"
		for _, e := range entries {
			line := fmt.Sprintf("#%d %s:", e.ID, e.EventTime.Format("02.01 15:04"))
			if e.SugarBefore != nil {
				line += fmt.Sprintf(" сахар %.1f", *e.SugarBefore)
			}
			if e.XE != nil {
				line += fmt.Sprintf(" ХЕ %.1f", *e.XE)
			}
			if e.CarbsG != nil {
				line += fmt.Sprintf(" углеводы %.1f г", *e.CarbsG)
			}
			if e.Dose != nil {
				line += fmt.Sprintf(" доза %.1f ед", *e.Dose)
			}
			text += line + "\n"
		}
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if len(entries) > 0 {
		msg.ReplyMarkup = keyboards.EntryList(entries)
	}
	_, err := api.Send(msg)
	return err
}
