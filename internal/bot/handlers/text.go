package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vadimpetrov/diacare-bot/internal/ai"
	"github.com/vadimpetrov/diacare-bot/internal/apperrors"
	"github.com/vadimpetrov/diacare-bot/internal/bot/menus"
	"github.com/vadimpetrov/diacare-bot/internal/database"
	"github.com/vadimpetrov/diacare-bot/internal/diary"
	"github.com/vadimpetrov/diacare-bot/internal/dosing"
	"github.com/vadimpetrov/diacare-bot/internal/logger"
	"github.com/vadimpetrov/diacare-bot/internal/services"
	"github.com/vadimpetrov/diacare-bot/internal/session"
	"github.com/vadimpetrov/diacare-bot/internal/smartinput"
)

// TextHandler handles free-form text messages
type TextHandler struct {
	api  *tgbotapi.BotAPI
	deps Dependencies
}

// NewTextHandler creates a new text handler
func NewTextHandler(api *tgbotapi.BotAPI, deps Dependencies) *TextHandler {
	return &TextHandler{api: api, deps: deps}
}

// Handle routes a text message by the current dialog state.
func (h *TextHandler) Handle(ctx context.Context, message *tgbotapi.Message, user *database.User) error {
	chatID := message.Chat.ID
	text := strings.TrimSpace(message.Text)
	sess := h.deps.Sessions.Get(user.TelegramID)

	switch sess.State {
	case session.StateCollecting:
		return h.handleCollecting(ctx, chatID, user, sess, text)
	case session.StateConfirming:
		return h.handleConfirming(ctx, chatID, user, sess, text)
	case session.StateProfileICR, session.StateProfileCF, session.StateProfileTarget,
		session.StateProfileLow, session.StateProfileHigh:
		return h.handleProfileStep(ctx, chatID, user, sess, text)
	case session.StateWaitingTimezone:
		return h.handleTimezone(ctx, chatID, user, sess, text)
	case session.StateWaitingSOS:
		return h.handleSOS(ctx, chatID, user, sess, text)
	case session.StateReminderSchedule:
		return h.handleReminderSchedule(ctx, chatID, user, sess, text)
	case session.StateEditingEntry:
		return h.handleEntryEdit(ctx, chatID, user, sess, text)
	default:
		return h.handleFreeForm(ctx, chatID, user, sess, text)
	}
}

func (h *TextHandler) handleCollecting(ctx context.Context, chatID int64, user *database.User, sess *session.Session, text string) error {
	if sess.Pending == nil {
		sess.Reset()
		h.deps.Sessions.Save(sess)
		return send(h.api, chatID, "Нет активного ввода. Начните заново: /dose или /sugar")
	}

	if err := sess.Pending.FillNext(text); err != nil {
		if apperrors.IsValidation(err) {
			// The entry is untouched; the user stays at the same step.
			return send(h.api, chatID, inputErrorMessage(err))
		}
		return err
	}
	return advanceEntry(ctx, h.api, h.deps, chatID, user, sess)
}

func (h *TextHandler) handleConfirming(ctx context.Context, chatID int64, user *database.User, sess *session.Session, text string) error {
	if sess.Pending == nil {
		sess.Reset()
		h.deps.Sessions.Save(sess)
		return send(h.api, chatID, "Нет записи на подтверждении. Начните заново: /dose или /sugar")
	}

	patch, err := smartinput.ParsePatch(text)
	if err != nil {
		if apperrors.IsValidation(err) {
			return send(h.api, chatID, "Не понял правку. Пример: \"сахар=5.8\" или нажмите кнопку ниже.")
		}
		return err
	}
	if err := sess.Pending.ApplyPatch(patch); err != nil {
		if apperrors.IsValidation(err) {
			return send(h.api, chatID, inputErrorMessage(err))
		}
		return err
	}
	return advanceEntry(ctx, h.api, h.deps, chatID, user, sess)
}

// profileSteps drives the fixed coefficient order of the setup dialog.
var profileSteps = []struct {
	state  session.State
	key    string
	next   session.State
	prompt string
}{
	{session.StateProfileICR, "icr", session.StateProfileCF,
		"Введите фактор чувствительности (на сколько ммоль/л снижает 1 ед):"},
	{session.StateProfileCF, "cf", session.StateProfileTarget,
		"Введите целевой уровень сахара (ммоль/л):"},
	{session.StateProfileTarget, "target", session.StateProfileLow,
		"Введите нижний порог тревоги (ммоль/л), 0 чтобы отключить:"},
	{session.StateProfileLow, "low", session.StateProfileHigh,
		"Введите верхний порог тревоги (ммоль/л), 0 чтобы отключить:"},
	{session.StateProfileHigh, "high", session.StateNone, ""},
}

func (h *TextHandler) handleProfileStep(ctx context.Context, chatID int64, user *database.User, sess *session.Session, text string) error {
	value, err := smartinput.ParseFloat(text)
	if err != nil || value < 0 {
		return send(h.api, chatID, "Пожалуйста, введите корректное неотрицательное число (например: 1.5)")
	}

	if sess.ProfileDraft == nil {
		sess.ProfileDraft = make(map[string]float64)
	}

	for _, step := range profileSteps {
		if step.state != sess.State {
			continue
		}
		sess.ProfileDraft[step.key] = value

		if step.next != session.StateNone {
			sess.State = step.next
			h.deps.Sessions.Save(sess)
			return send(h.api, chatID, step.prompt)
		}

		draft := sess.ProfileDraft
		err := h.deps.UserService.SaveProfile(ctx, user.ID, dosing.Profile{
			ICR:      draft["icr"],
			CF:       draft["cf"],
			TargetBG: draft["target"],
		}, draft["low"], draft["high"])
		if err != nil {
			if apperrors.IsValidation(err) {
				sess.Reset()
				h.deps.Sessions.Save(sess)
				return send(h.api, chatID, "Профиль не сохранен: коэффициенты должны быть положительными, нижний порог ниже верхнего. Начните заново: /profile")
			}
			return replyPersistFailed(h.api, chatID, err)
		}
		sess.Reset()
		h.deps.Sessions.Save(sess)
		return send(h.api, chatID, "✅ Профиль дозировки сохранен")
	}
	return nil
}

func (h *TextHandler) handleTimezone(ctx context.Context, chatID int64, user *database.User, sess *session.Session, text string) error {
	if err := h.deps.UserService.SetTimezone(ctx, user.ID, text); err != nil {
		if apperrors.IsValidation(err) {
			return send(h.api, chatID, "Неизвестный часовой пояс. Пример: Europe/Moscow")
		}
		return replyPersistFailed(h.api, chatID, err)
	}
	sess.Reset()
	h.deps.Sessions.Save(sess)
	return send(h.api, chatID, "✅ Часовой пояс сохранен: "+text)
}

func (h *TextHandler) handleSOS(ctx context.Context, chatID int64, user *database.User, sess *session.Session, text string) error {
	if err := h.deps.UserService.SetSOSContact(ctx, user.ID, text); err != nil {
		return replyPersistFailed(h.api, chatID, err)
	}
	sess.Reset()
	h.deps.Sessions.Save(sess)
	reply := "✅ SOS-контакт сохранен"
	if !strings.HasPrefix(text, "@") {
		reply += "\n⚠️ На номер телефона бот писать не может, тревоги получите только вы. Укажите @username, чтобы контакт тоже получал уведомления."
	}
	return send(h.api, chatID, reply)
}

func (h *TextHandler) handleReminderSchedule(ctx context.Context, chatID int64, user *database.User, sess *session.Session, text string) error {
	r := &database.Reminder{Type: sess.ReminderType}

	switch {
	case sess.ReminderType == database.ReminderFoodCheck:
		n, err := strconv.Atoi(text)
		if err != nil || n <= 0 {
			return send(h.api, chatID, "Введите, через сколько минут после еды напомнить (например: 120)")
		}
		r.MinutesAfter = n
	case strings.Contains(text, ":"):
		r.Time = text
	default:
		n, err := strconv.Atoi(text)
		if err != nil || n <= 0 {
			return send(h.api, chatID, "Введите время ЧЧ:ММ для ежедневного напоминания или число часов для интервального")
		}
		r.IntervalHours = n
	}

	err := h.deps.ReminderSvc.Create(ctx, user, r)
	if errors.Is(err, services.ErrReminderLimit) {
		sess.Reset()
		h.deps.Sessions.Save(sess)
		return send(h.api, chatID, "Достигнут лимит напоминаний по тарифу. Выключите или удалите одно из существующих.")
	}
	if err != nil {
		if apperrors.IsValidation(err) {
			return send(h.api, chatID, "Не понял расписание. Пример: 08:30 или 6 (часов)")
		}
		return replyPersistFailed(h.api, chatID, err)
	}

	h.deps.Scheduler.Schedule(ctx, r)
	sess.Reset()
	h.deps.Sessions.Save(sess)
	if err := send(h.api, chatID, "✅ Напоминание создано"); err != nil {
		return err
	}
	return sendReminderList(ctx, h.api, h.deps, chatID, user)
}

// handleEntryEdit applies a key=value patch to a persisted entry. A
// vanished row drops the stale reference from the session.
func (h *TextHandler) handleEntryEdit(ctx context.Context, chatID int64, user *database.User, sess *session.Session, text string) error {
	entryID := sess.EditEntryID

	patch, err := smartinput.ParsePatch(text)
	if err != nil {
		if apperrors.IsValidation(err) {
			return send(h.api, chatID, "Не понял правку. Пример: \"сахар=5.8\"")
		}
		return err
	}

	// Fixed order, XE before carbs: the XE update rederives carbs_g, so
	// an explicit carbs value in the same patch must land after it.
	order := []smartinput.Field{smartinput.FieldSugar, smartinput.FieldXE, smartinput.FieldCarbs, smartinput.FieldDose}
	for _, field := range order {
		value, ok := patch[field]
		if !ok {
			continue
		}
		err := h.deps.EntrySvc.UpdateEntryField(ctx, user.ID, entryID, field, value)
		if apperrors.IsNotFound(err) {
			sess.Reset()
			h.deps.Sessions.Save(sess)
			return send(h.api, chatID, "Запись больше не существует")
		}
		if err != nil {
			if apperrors.IsValidation(err) {
				return send(h.api, chatID, inputErrorMessage(err))
			}
			return replyPersistFailed(h.api, chatID, err)
		}
	}

	sess.Reset()
	h.deps.Sessions.Save(sess)
	entries, err := h.deps.EntrySvc.ListRecent(ctx, user.ID, 10)
	if err != nil {
		return err
	}
	return menus.SendRecentEntries(h.api, chatID, entries)
}

// handleFreeForm tries the deterministic parser first and falls back to
// the language model when no pattern matches.
func (h *TextHandler) handleFreeForm(ctx context.Context, chatID int64, user *database.User, sess *session.Session, text string) error {
	fields, err := smartinput.Parse(text)
	if err != nil {
		if apperrors.IsValidation(err) {
			return send(h.api, chatID, inputErrorMessage(err))
		}
		return err
	}
	if !fields.Empty() {
		return startEntry(ctx, h.api, h.deps, chatID, user, sess, diary.FlowSmartInput, fields)
	}

	cmd, err := h.deps.AI.ParseCommand(ctx, text)
	if err != nil {
		logger.Warningf("AI command parse failed for user %d: %v", user.ID, err)
		return h.sendNotUnderstood(chatID)
	}

	switch cmd.Intent {
	case "log_entry":
		seed := seedFromParsed(cmd)
		if seed.Empty() {
			return h.sendNotUnderstood(chatID)
		}
		return startEntry(ctx, h.api, h.deps, chatID, user, sess, diary.FlowSmartInput, seed)
	case "ask_dose":
		return startEntry(ctx, h.api, h.deps, chatID, user, sess, diary.FlowDoseCarbs, seedFromParsed(cmd))
	default:
		return h.sendNotUnderstood(chatID)
	}
}

func (h *TextHandler) sendNotUnderstood(chatID int64) error {
	return send(h.api, chatID, "Не понял сообщение. Напишите, например, \"сахар 5.6 хе 2\" или используйте /help")
}

// seedFromParsed converts the model's reading into parser fields,
// dropping anything out of range.
func seedFromParsed(cmd *ai.ParsedCommand) smartinput.Fields {
	var seed smartinput.Fields
	keep := func(v *float64) *float64 {
		if v == nil || *v < 0 {
			return nil
		}
		return v
	}
	seed.Sugar = keep(cmd.Sugar)
	seed.XE = keep(cmd.XE)
	seed.Carbs = keep(cmd.Carbs)
	seed.Dose = keep(cmd.Dose)
	return seed
}
