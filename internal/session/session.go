// Package session keeps per-conversation dialog state. The session is
// an explicit value object keyed by telegram ID; commit and cancel clear
// it as a whole so partial state never leaks into the next command.
package session

import (
	"github.com/vadimpetrov/diacare-bot/internal/diary"
)

// State names the dialog step the conversation is waiting on.
type State string

const (
	StateNone State = "none"

	// Diary entry collection.
	StateCollecting State = "collecting"
	StateConfirming State = "confirming"

	// Profile setup, asked in coefficient order.
	StateProfileICR      State = "profile_icr"
	StateProfileCF       State = "profile_cf"
	StateProfileTarget   State = "profile_target"
	StateProfileLow      State = "profile_low"
	StateProfileHigh     State = "profile_high"
	StateWaitingSOS      State = "waiting_sos"
	StateWaitingTimezone State = "waiting_timezone"

	// Reminder creation: a type was picked, its schedule is awaited.
	StateReminderSchedule State = "reminder_schedule"

	// A persisted diary entry was picked for a field edit.
	StateEditingEntry State = "editing_entry"
)

// Session is the whole conversation state for one user.
type Session struct {
	TelegramID int64              `json:"telegram_id"`
	State      State              `json:"state"`
	Pending    *diary.PendingEntry `json:"pending,omitempty"`

	// Profile values collected so far during setup.
	ProfileDraft map[string]float64 `json:"profile_draft,omitempty"`

	// Reminder type picked in the creation dialog.
	ReminderType string `json:"reminder_type,omitempty"`

	// Persisted entry picked for editing.
	EditEntryID uint `json:"edit_entry_id,omitempty"`

	// Guards against a second photo while one is being analyzed.
	PhotoInFlight bool `json:"photo_in_flight,omitempty"`
}

// Reset drops everything except the identity.
func (s *Session) Reset() {
	s.State = StateNone
	s.Pending = nil
	s.ProfileDraft = nil
	s.ReminderType = ""
	s.EditEntryID = 0
	s.PhotoInFlight = false
}

// Store persists sessions between turns.
type Store interface {
	// Get returns the session for a user, a fresh one if none exists.
	Get(telegramID int64) *Session
	// Save writes the session back.
	Save(s *Session)
	// Clear removes the session entirely.
	Clear(telegramID int64)
	Close() error
}
