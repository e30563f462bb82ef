package keyboards

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vadimpetrov/diacare-bot/internal/database"
)

// MainMenu creates the main menu keyboard
func MainMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💉 Рассчитать дозу", "dose_menu"),
			tgbotapi.NewInlineKeyboardButtonData("🩸 Записать сахар", "sugar_only"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📒 Дневник", "diary_recent"),
			tgbotapi.NewInlineKeyboardButtonData("⏰ Напоминания", "reminders"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⚙️ Настройки", "settings"),
		),
	)
}

// DoseMethodMenu picks how carbohydrates will be entered for a dose.
func DoseMethodMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🍞 По углеводам (г)", "dose_carbs"),
			tgbotapi.NewInlineKeyboardButtonData("🥖 По ХЕ", "dose_xe"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("◀️ Главное меню", "main_menu"),
		),
	)
}

// ConfirmEntry is shown under the entry summary awaiting confirmation.
func ConfirmEntry() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Сохранить", "entry_confirm"),
			tgbotapi.NewInlineKeyboardButtonData("❌ Отмена", "entry_cancel"),
		),
	)
}

// SettingsMenu creates the settings menu keyboard
func SettingsMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👤 Профиль дозировки", "profile_setup"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🌍 Часовой пояс", "set_timezone"),
			tgbotapi.NewInlineKeyboardButtonData("🆘 SOS-контакт", "set_sos"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("◀️ Главное меню", "main_menu"),
		),
	)
}

// ReminderTypeMenu picks the kind of reminder to create.
func ReminderTypeMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🩸 Замер сахара", "reminder_type:"+database.ReminderSugarCheck),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💉 Длинный инсулин", "reminder_type:"+database.ReminderLongInsulin),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💊 Лекарство", "reminder_type:"+database.ReminderMedicine),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🍽️ Контроль после еды", "reminder_type:"+database.ReminderFoodCheck),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("◀️ Назад", "reminders"),
		),
	)
}

// ReminderList builds one toggle/delete row per reminder plus controls.
func ReminderList(reminders []database.Reminder) tgbotapi.InlineKeyboardMarkup {
	keyboard := tgbotapi.NewInlineKeyboardMarkup()

	for _, r := range reminders {
		toggleLabel := "▶️ Включить"
		if r.IsEnabled {
			toggleLabel = "⏸️ Выключить"
		}
		keyboard.InlineKeyboard = append(keyboard.InlineKeyboard,
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(
					fmt.Sprintf("%s #%d", toggleLabel, r.ID),
					fmt.Sprintf("reminder_toggle:%d", r.ID)),
				tgbotapi.NewInlineKeyboardButtonData(
					fmt.Sprintf("🗑️ #%d", r.ID),
					fmt.Sprintf("reminder_delete:%d", r.ID)),
			),
		)
	}

	keyboard.InlineKeyboard = append(keyboard.InlineKeyboard,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ Добавить", "reminder_add"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("◀️ Главное меню", "main_menu"),
		),
	)
	return keyboard
}

// EntryList builds edit/delete rows for recent diary entries.
func EntryList(entries []database.Entry) tgbotapi.InlineKeyboardMarkup {
	keyboard := tgbotapi.NewInlineKeyboardMarkup()
	for _, e := range entries {
		keyboard.InlineKeyboard = append(keyboard.InlineKeyboard,
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(
					fmt.Sprintf("✏️ #%d", e.ID),
					fmt.Sprintf("entry_edit:%d", e.ID)),
				tgbotapi.NewInlineKeyboardButtonData(
					fmt.Sprintf("🗑️ #%d", e.ID),
					fmt.Sprintf("entry_delete:%d", e.ID)),
			),
		)
	}
	keyboard.InlineKeyboard = append(keyboard.InlineKeyboard,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("◀️ Главное меню", "main_menu"),
		),
	)
	return keyboard
}

// ReminderFired is attached to a fired reminder notification.
func ReminderFired(reminderID uint) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("😴 Отложить на 10 мин", fmt.Sprintf("reminder_snooze:%d", reminderID)),
			tgbotapi.NewInlineKeyboardButtonData("✅ Ок", fmt.Sprintf("reminder_dismiss:%d", reminderID)),
		),
	)
}
