package database

import (
	"time"

	"gorm.io/gorm"
)

// Plan names and their enabled-reminder ceilings.
const (
	PlanFree = "free"
	PlanPro  = "pro"
)

// ReminderLimit returns how many enabled reminders a plan allows.
func ReminderLimit(plan string) int {
	if plan == PlanPro {
		return 10
	}
	return 5
}

// Reminder types.
const (
	ReminderSugarCheck  = "sugar_check"
	ReminderLongInsulin = "long_insulin"
	ReminderMedicine    = "medicine"
	ReminderFoodCheck   = "food_check" // fires MinutesAfter a committed meal entry
)

// ReminderLog actions.
const (
	ReminderActionTrigger = "trigger"
	ReminderActionSnooze  = "snooze"
	ReminderActionCancel  = "cancel"
)

// AlertEpisode types.
const (
	AlertLow  = "low"
	AlertHigh = "high"
)

type User struct {
	gorm.Model
	TelegramID int64 `gorm:"uniqueIndex"`
	Username   string
	FirstName  string
	LastName   string
	TimeZone   string // IANA name, empty means UTC
	Plan       string `gorm:"default:free"`
	SOSContact string // emergency contact, only @handles are relayed
}

// Profile is the linear dosing model for a user. A zero threshold
// disables alerting on that side.
type Profile struct {
	gorm.Model
	UserID        uint `gorm:"uniqueIndex"`
	User          User
	ICR           float64 // grams of carbs covered by one insulin unit
	CF            float64 // glucose drop per insulin unit
	TargetBG      float64
	LowThreshold  float64
	HighThreshold float64
}

// Entry is a committed diary record. Any subset of the measurement
// fields may be null.
type Entry struct {
	gorm.Model
	UserID      uint `gorm:"index"`
	User        User
	TelegramID  int64 `gorm:"index"`
	EventTime   time.Time
	SugarBefore *float64
	CarbsG      *float64
	XE          *float64
	Dose        *float64
	PhotoPath   string
}

// Reminder is a schedule descriptor. Exactly one of Time, IntervalHours,
// MinutesAfter is set.
type Reminder struct {
	gorm.Model
	UserID        uint `gorm:"index"`
	User          User
	TelegramID    int64  `gorm:"index"`
	Type          string // sugar_check, long_insulin, medicine, food_check
	Time          string // "HH:MM" in the user's timezone
	IntervalHours int
	MinutesAfter  int
	IsEnabled     bool `gorm:"default:true"`
}

// ReminderLog is an append-only audit trail of reminder activity.
type ReminderLog struct {
	ID         uint `gorm:"primaryKey"`
	ReminderID uint `gorm:"index"`
	TelegramID int64
	Action     string // trigger, snooze, cancel
	CreatedAt  time.Time
}

// AlertEpisode is one continuous out-of-threshold period. At most one
// unresolved episode exists per user.
type AlertEpisode struct {
	gorm.Model
	UserID   uint `gorm:"index"`
	User     User
	Sugar    float64 // the triggering reading
	Type     string  // low or high
	Resolved bool    `gorm:"default:false"`
}
