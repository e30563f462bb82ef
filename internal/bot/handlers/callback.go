package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vadimpetrov/diacare-bot/internal/apperrors"
	"github.com/vadimpetrov/diacare-bot/internal/bot/keyboards"
	"github.com/vadimpetrov/diacare-bot/internal/bot/menus"
	"github.com/vadimpetrov/diacare-bot/internal/database"
	"github.com/vadimpetrov/diacare-bot/internal/diary"
	"github.com/vadimpetrov/diacare-bot/internal/services"
	"github.com/vadimpetrov/diacare-bot/internal/session"
	"github.com/vadimpetrov/diacare-bot/internal/smartinput"
)

// callbackCommand is the closed set of button actions. Callback data is
// decoded into exactly one variant before any handler logic runs, so a
// malformed payload is rejected in one place.
type callbackCommand interface {
	isCallbackCommand()
}

type (
	cmdMainMenu     struct{}
	cmdSettings     struct{}
	cmdDoseMenu     struct{}
	cmdStartDose    struct{ flow diary.Flow }
	cmdSugarOnly    struct{}
	cmdDiaryRecent  struct{}
	cmdEntryConfirm struct{}
	cmdEntryCancel  struct{}
	cmdEntryEdit    struct{ id uint }
	cmdEntryDelete  struct{ id uint }
	cmdProfileSetup struct{}
	cmdSetTimezone  struct{}
	cmdSetSOS       struct{}

	cmdReminderList   struct{}
	cmdReminderAdd    struct{}
	cmdReminderType   struct{ reminderType string }
	cmdReminderToggle struct{ id uint }
	cmdReminderDelete struct{ id uint }
	cmdReminderSnooze struct{ id uint }
	cmdReminderOK     struct{ id uint }
)

func (cmdMainMenu) isCallbackCommand()       {}
func (cmdSettings) isCallbackCommand()       {}
func (cmdDoseMenu) isCallbackCommand()       {}
func (cmdStartDose) isCallbackCommand()      {}
func (cmdSugarOnly) isCallbackCommand()      {}
func (cmdDiaryRecent) isCallbackCommand()    {}
func (cmdEntryConfirm) isCallbackCommand()   {}
func (cmdEntryCancel) isCallbackCommand()    {}
func (cmdEntryEdit) isCallbackCommand()      {}
func (cmdEntryDelete) isCallbackCommand()    {}
func (cmdProfileSetup) isCallbackCommand()   {}
func (cmdSetTimezone) isCallbackCommand()    {}
func (cmdSetSOS) isCallbackCommand()         {}
func (cmdReminderList) isCallbackCommand()   {}
func (cmdReminderAdd) isCallbackCommand()    {}
func (cmdReminderType) isCallbackCommand()   {}
func (cmdReminderToggle) isCallbackCommand() {}
func (cmdReminderDelete) isCallbackCommand() {}
func (cmdReminderSnooze) isCallbackCommand() {}
func (cmdReminderOK) isCallbackCommand()     {}

var errUnknownCallback = errors.New("unknown callback data")

// decodeCallback parses raw callback data into a command variant.
func decodeCallback(data string) (callbackCommand, error) {
	switch data {
	case "main_menu":
		return cmdMainMenu{}, nil
	case "settings":
		return cmdSettings{}, nil
	case "dose_menu":
		return cmdDoseMenu{}, nil
	case "dose_carbs":
		return cmdStartDose{flow: diary.FlowDoseCarbs}, nil
	case "dose_xe":
		return cmdStartDose{flow: diary.FlowDoseXE}, nil
	case "sugar_only":
		return cmdSugarOnly{}, nil
	case "diary_recent":
		return cmdDiaryRecent{}, nil
	case "entry_confirm":
		return cmdEntryConfirm{}, nil
	case "entry_cancel":
		return cmdEntryCancel{}, nil
	case "profile_setup":
		return cmdProfileSetup{}, nil
	case "set_timezone":
		return cmdSetTimezone{}, nil
	case "set_sos":
		return cmdSetSOS{}, nil
	case "reminders":
		return cmdReminderList{}, nil
	case "reminder_add":
		return cmdReminderAdd{}, nil
	}

	name, arg, found := strings.Cut(data, ":")
	if !found {
		return nil, errUnknownCallback
	}

	if name == "reminder_type" {
		return cmdReminderType{reminderType: arg}, nil
	}

	id, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return nil, errUnknownCallback
	}
	switch name {
	case "entry_edit":
		return cmdEntryEdit{id: uint(id)}, nil
	case "entry_delete":
		return cmdEntryDelete{id: uint(id)}, nil
	case "reminder_toggle":
		return cmdReminderToggle{id: uint(id)}, nil
	case "reminder_delete":
		return cmdReminderDelete{id: uint(id)}, nil
	case "reminder_snooze":
		return cmdReminderSnooze{id: uint(id)}, nil
	case "reminder_dismiss":
		return cmdReminderOK{id: uint(id)}, nil
	}
	return nil, errUnknownCallback
}

// CallbackHandler handles callback query messages
type CallbackHandler struct {
	api  *tgbotapi.BotAPI
	deps Dependencies
}

// NewCallbackHandler creates a new callback handler
func NewCallbackHandler(api *tgbotapi.BotAPI, deps Dependencies) *CallbackHandler {
	return &CallbackHandler{api: api, deps: deps}
}

// Handle processes a callback query
func (h *CallbackHandler) Handle(ctx context.Context, query *tgbotapi.CallbackQuery, user *database.User) error {
	// Answer the callback query first
	callback := tgbotapi.NewCallback(query.ID, "")
	if _, err := h.api.Request(callback); err != nil {
		return err
	}

	chatID := query.Message.Chat.ID
	sess := h.deps.Sessions.Get(user.TelegramID)

	cmd, err := decodeCallback(query.Data)
	if err != nil {
		return send(h.api, chatID, "Неизвестная команда")
	}

	switch cmd := cmd.(type) {
	case cmdMainMenu:
		sess.Reset()
		h.deps.Sessions.Save(sess)
		return menus.SendMainMenu(h.api, chatID)

	case cmdSettings:
		return menus.SendSettingsMenu(h.api, chatID)

	case cmdDoseMenu:
		msg := tgbotapi.NewMessage(chatID, "Как считаем углеводы?")
		msg.ReplyMarkup = keyboards.DoseMethodMenu()
		_, err := h.api.Send(msg)
		return err

	case cmdStartDose:
		return startEntry(ctx, h.api, h.deps, chatID, user, sess, cmd.flow, smartinput.Fields{})

	case cmdSugarOnly:
		return startEntry(ctx, h.api, h.deps, chatID, user, sess, diary.FlowSugarOnly, smartinput.Fields{})

	case cmdDiaryRecent:
		entries, err := h.deps.EntrySvc.ListRecent(ctx, user.ID, 10)
		if err != nil {
			return err
		}
		return menus.SendRecentEntries(h.api, chatID, entries)

	case cmdEntryConfirm:
		return h.handleEntryConfirm(ctx, chatID, user, sess)

	case cmdEntryCancel:
		sess.Reset()
		h.deps.Sessions.Save(sess)
		return send(h.api, chatID, "Запись отменена, ничего не сохранено.")

	case cmdEntryEdit:
		return h.handleEntryEdit(ctx, chatID, user, sess, cmd.id)

	case cmdEntryDelete:
		return h.handleEntryDelete(ctx, chatID, user, cmd.id)

	case cmdProfileSetup:
		sess.Reset()
		sess.State = session.StateProfileICR
		sess.ProfileDraft = make(map[string]float64)
		h.deps.Sessions.Save(sess)
		return send(h.api, chatID, "Введите углеводный коэффициент (г углеводов на 1 ед инсулина):")

	case cmdSetTimezone:
		sess.Reset()
		sess.State = session.StateWaitingTimezone
		h.deps.Sessions.Save(sess)
		return send(h.api, chatID, "Введите часовой пояс (например: Europe/Moscow):")

	case cmdSetSOS:
		sess.Reset()
		sess.State = session.StateWaitingSOS
		h.deps.Sessions.Save(sess)
		return send(h.api, chatID, "Введите SOS-контакт: @username в Telegram или номер телефона:")

	case cmdReminderList:
		return sendReminderList(ctx, h.api, h.deps, chatID, user)

	case cmdReminderAdd:
		msg := tgbotapi.NewMessage(chatID, "О чем напоминать?")
		msg.ReplyMarkup = keyboards.ReminderTypeMenu()
		_, err := h.api.Send(msg)
		return err

	case cmdReminderType:
		return h.handleReminderType(chatID, sess, cmd.reminderType)

	case cmdReminderToggle:
		return h.handleReminderToggle(ctx, chatID, user, cmd.id)

	case cmdReminderDelete:
		return h.handleReminderDelete(ctx, chatID, user, cmd.id)

	case cmdReminderSnooze:
		h.deps.Scheduler.Snooze(ctx, cmd.id, user.TelegramID)
		return send(h.api, chatID, "😴 Напомню через 10 минут")

	case cmdReminderOK:
		h.deps.Scheduler.Dismiss(ctx, cmd.id, user.TelegramID)
		return send(h.api, chatID, "👍")
	}

	return nil
}

// handleEntryConfirm is the single place a pending entry becomes a diary
// row. Committing also feeds the glucose alerting and arms post-meal
// checks.
func (h *CallbackHandler) handleEntryConfirm(ctx context.Context, chatID int64, user *database.User, sess *session.Session) error {
	if sess.Pending == nil || !sess.Pending.Complete() {
		sess.Reset()
		h.deps.Sessions.Save(sess)
		return send(h.api, chatID, "Нет записи на подтверждении. Начните заново: /dose или /sugar")
	}

	entry, err := h.deps.EntrySvc.CommitPending(ctx, user, sess.Pending)
	if err != nil {
		// The pending entry stays in the session for a retry.
		return replyPersistFailed(h.api, chatID, err)
	}
	pending := sess.Pending
	sess.Reset()
	h.deps.Sessions.Save(sess)

	if pending.SugarBefore != nil {
		profile, perr := h.deps.UserService.GetProfile(ctx, user.ID)
		if perr == nil {
			h.deps.Alerts.ProcessReading(ctx, user, profile, *pending.SugarBefore)
		}
	}
	if pending.CarbsG != nil {
		h.deps.Scheduler.SchedulePostMeal(ctx, user.ID, entry.EventTime)
	}

	return send(h.api, chatID, fmt.Sprintf("✅ Запись #%d сохранена в дневник", entry.ID))
}

func (h *CallbackHandler) handleEntryEdit(ctx context.Context, chatID int64, user *database.User, sess *session.Session, entryID uint) error {
	// Verify the row still exists before entering edit mode.
	_, err := h.deps.EntrySvc.GetEntry(ctx, user.ID, entryID)
	if apperrors.IsNotFound(err) {
		return send(h.api, chatID, "Запись больше не существует")
	}
	if err != nil {
		return err
	}

	sess.Reset()
	sess.State = session.StateEditingEntry
	sess.EditEntryID = entryID
	h.deps.Sessions.Save(sess)
	return send(h.api, chatID, fmt.Sprintf("Что поправить в записи #%d? Пример: \"сахар=5.8\" или \"хе=2 доза=3\"", entryID))
}

func (h *CallbackHandler) handleEntryDelete(ctx context.Context, chatID int64, user *database.User, entryID uint) error {
	err := h.deps.EntrySvc.DeleteEntry(ctx, user.ID, entryID)
	if apperrors.IsNotFound(err) {
		return send(h.api, chatID, "Запись больше не существует")
	}
	if err != nil {
		return err
	}
	if err := send(h.api, chatID, fmt.Sprintf("🗑️ Запись #%d удалена", entryID)); err != nil {
		return err
	}
	entries, err := h.deps.EntrySvc.ListRecent(ctx, user.ID, 10)
	if err != nil {
		return err
	}
	return menus.SendRecentEntries(h.api, chatID, entries)
}

func (h *CallbackHandler) handleReminderType(chatID int64, sess *session.Session, reminderType string) error {
	sess.Reset()
	sess.State = session.StateReminderSchedule
	sess.ReminderType = reminderType
	h.deps.Sessions.Save(sess)

	if reminderType == database.ReminderFoodCheck {
		return send(h.api, chatID, "Через сколько минут после еды напоминать? (например: 120)")
	}
	return send(h.api, chatID, "Введите время ЧЧ:ММ для ежедневного напоминания или число часов для интервального:")
}

func (h *CallbackHandler) handleReminderToggle(ctx context.Context, chatID int64, user *database.User, reminderID uint) error {
	reminder, err := h.deps.ReminderSvc.Toggle(ctx, user, reminderID)
	if errors.Is(err, services.ErrReminderLimit) {
		return send(h.api, chatID, "Достигнут лимит напоминаний по тарифу. Выключите или удалите одно из существующих.")
	}
	if apperrors.IsNotFound(err) {
		return send(h.api, chatID, "Напоминание не найдено")
	}
	if err != nil {
		return err
	}

	// The timer follows the persisted flag either way.
	h.deps.Scheduler.Schedule(ctx, reminder)
	return sendReminderList(ctx, h.api, h.deps, chatID, user)
}

func (h *CallbackHandler) handleReminderDelete(ctx context.Context, chatID int64, user *database.User, reminderID uint) error {
	err := h.deps.ReminderSvc.Delete(ctx, user.ID, reminderID)
	if apperrors.IsNotFound(err) {
		return send(h.api, chatID, "Напоминание не найдено")
	}
	if err != nil {
		return err
	}

	h.deps.Scheduler.Cancel(reminderID)
	return sendReminderList(ctx, h.api, h.deps, chatID, user)
}
