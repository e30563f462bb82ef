package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vadimpetrov/diacare-bot/internal/bot/menus"
	"github.com/vadimpetrov/diacare-bot/internal/database"
	"github.com/vadimpetrov/diacare-bot/internal/diary"
	"github.com/vadimpetrov/diacare-bot/internal/services"
	"github.com/vadimpetrov/diacare-bot/internal/session"
	"github.com/vadimpetrov/diacare-bot/internal/smartinput"
)

// timeNow is swapped out in tests.
var timeNow = time.Now

func send(api *tgbotapi.BotAPI, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := api.Send(msg)
	return err
}

func fieldPrompt(field smartinput.Field) string {
	switch field {
	case smartinput.FieldSugar:
		return "🩸 Введите уровень сахара (ммоль/л):"
	case smartinput.FieldXE:
		return "🥖 Введите количество ХЕ:"
	case smartinput.FieldCarbs:
		return "🍞 Введите углеводы в граммах:"
	case smartinput.FieldDose:
		return "💉 Введите дозу инсулина (ед):"
	}
	return "Введите значение:"
}

// inputErrorMessage turns a parse or validation failure into a reply that
// keeps the user at the same step.
func inputErrorMessage(err error) string {
	var mismatch *smartinput.MismatchedUnitError
	if errors.As(err, &mismatch) {
		return fmt.Sprintf("Похоже, это %s, а я жду %s. Попробуйте еще раз.",
			fieldNoun(mismatch.Got), fieldNoun(mismatch.Want))
	}
	return "Пожалуйста, введите корректное неотрицательное число (например: 5.6)"
}

func fieldNoun(field smartinput.Field) string {
	switch field {
	case smartinput.FieldSugar:
		return "сахар"
	case smartinput.FieldXE:
		return "ХЕ"
	case smartinput.FieldCarbs:
		return "углеводы"
	case smartinput.FieldDose:
		return "доза"
	}
	return string(field)
}

// replyPersistFailed tells the user a write failed before the error
// reaches the central handler. Dialog state is left untouched so the
// same input can be retried.
func replyPersistFailed(api *tgbotapi.BotAPI, chatID int64, err error) error {
	if sendErr := send(api, chatID, "⚠️ Не удалось сохранить, попробуйте еще раз."); sendErr != nil {
		return sendErr
	}
	return err
}

// advanceEntry moves the accumulated entry forward: asks for the next
// missing field or finalizes the dose and shows the confirmation.
func advanceEntry(ctx context.Context, api *tgbotapi.BotAPI, deps Dependencies, chatID int64, user *database.User, sess *session.Session) error {
	if next, ok := sess.Pending.NextField(); ok {
		sess.State = session.StateCollecting
		deps.Sessions.Save(sess)
		return send(api, chatID, fieldPrompt(next))
	}

	if sess.Pending.NeedsDose {
		profile, err := deps.UserService.GetProfile(ctx, user.ID)
		if err != nil {
			return err
		}
		err = sess.Pending.FinalizeDose(services.DosingProfile(profile))
		if errors.Is(err, diary.ErrProfileNotConfigured) {
			sess.Reset()
			deps.Sessions.Save(sess)
			return send(api, chatID, "Сначала настройте профиль дозировки: /profile")
		}
		if err != nil {
			return err
		}
	}

	sess.State = session.StateConfirming
	deps.Sessions.Save(sess)
	return menus.SendEntryConfirmation(api, chatID, sess.Pending)
}

// startEntry seeds a new accumulator and runs the first step.
func startEntry(ctx context.Context, api *tgbotapi.BotAPI, deps Dependencies, chatID int64, user *database.User, sess *session.Session, flow diary.Flow, seed smartinput.Fields) error {
	sess.Reset()
	sess.Pending = diary.NewPending(user.TelegramID, timeNow(), flow, seed)
	return advanceEntry(ctx, api, deps, chatID, user, sess)
}
