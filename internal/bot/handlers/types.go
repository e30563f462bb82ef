package handlers

import (
	"context"
	"time"

	"github.com/vadimpetrov/diacare-bot/internal/ai"
	"github.com/vadimpetrov/diacare-bot/internal/database"
	"github.com/vadimpetrov/diacare-bot/internal/diary"
	"github.com/vadimpetrov/diacare-bot/internal/dosing"
	"github.com/vadimpetrov/diacare-bot/internal/session"
	"github.com/vadimpetrov/diacare-bot/internal/smartinput"
)

// UserService is the user and profile surface handlers depend on.
type UserService interface {
	RegisterUser(ctx context.Context, telegramID int64, username, firstName, lastName string) (*database.User, error)
	GetProfile(ctx context.Context, userID uint) (*database.Profile, error)
	SaveProfile(ctx context.Context, userID uint, p dosing.Profile, lowThreshold, highThreshold float64) error
	SetTimezone(ctx context.Context, userID uint, tz string) error
	SetSOSContact(ctx context.Context, userID uint, contact string) error
}

// EntryService persists diary entries.
type EntryService interface {
	CommitPending(ctx context.Context, user *database.User, p *diary.PendingEntry) (*database.Entry, error)
	GetEntry(ctx context.Context, userID uint, entryID uint) (*database.Entry, error)
	UpdateEntryField(ctx context.Context, userID uint, entryID uint, field smartinput.Field, value float64) error
	DeleteEntry(ctx context.Context, userID uint, entryID uint) error
	ListRecent(ctx context.Context, userID uint, limit int) ([]database.Entry, error)
}

// ReminderService manages persisted reminders.
type ReminderService interface {
	Create(ctx context.Context, user *database.User, r *database.Reminder) error
	Toggle(ctx context.Context, user *database.User, reminderID uint) (*database.Reminder, error)
	Delete(ctx context.Context, userID uint, reminderID uint) error
	List(ctx context.Context, userID uint) ([]database.Reminder, error)
}

// Scheduler owns the reminder timers.
type Scheduler interface {
	Schedule(ctx context.Context, r *database.Reminder)
	Cancel(reminderID uint)
	Snooze(ctx context.Context, reminderID uint, telegramID int64)
	Dismiss(ctx context.Context, reminderID uint, telegramID int64)
	SchedulePostMeal(ctx context.Context, userID uint, eventTime time.Time)
}

// AlertEvaluator reacts to committed glucose readings.
type AlertEvaluator interface {
	ProcessReading(ctx context.Context, user *database.User, profile *database.Profile, sugar float64)
}

// AIClient is the language-model surface handlers depend on.
type AIClient interface {
	ParseCommand(ctx context.Context, text string) (*ai.ParsedCommand, error)
	DescribeMealPhoto(ctx context.Context, imageURL string) (string, error)
}

// Dependencies holds all service dependencies for handlers
type Dependencies struct {
	UserService UserService
	EntrySvc    EntryService
	ReminderSvc ReminderService
	Scheduler   Scheduler
	Alerts      AlertEvaluator
	AI          AIClient
	Sessions    session.Store
}
