package services

import (
	"context"
	"errors"
	"time"

	"github.com/vadimpetrov/diacare-bot/internal/apperrors"
	"github.com/vadimpetrov/diacare-bot/internal/database"
	"gorm.io/gorm"
)

// ErrReminderLimit is returned when a user's plan ceiling is reached.
// Only enabled reminders count toward the limit.
var ErrReminderLimit = apperrors.New(
	apperrors.ErrorTypeValidation, "REMINDER_LIMIT", "reminder limit reached for plan")

type ReminderService struct {
	db *gorm.DB
}

func NewReminderService(db *gorm.DB) *ReminderService {
	return &ReminderService{db: db}
}

func validateSchedule(r *database.Reminder) error {
	set := 0
	if r.Time != "" {
		if _, err := time.Parse("15:04", r.Time); err != nil {
			return apperrors.NewValidationError("time must be in HH:MM format")
		}
		set++
	}
	if r.IntervalHours != 0 {
		if r.IntervalHours < 0 {
			return apperrors.NewValidationError("interval must be positive")
		}
		set++
	}
	if r.MinutesAfter != 0 {
		if r.MinutesAfter < 0 {
			return apperrors.NewValidationError("minutes must be positive")
		}
		if r.Type != database.ReminderFoodCheck {
			return apperrors.NewValidationError("minutes-after schedule is only for post-meal checks")
		}
		set++
	}
	if set != 1 {
		return apperrors.NewValidationError("exactly one schedule kind must be set")
	}

	switch r.Type {
	case database.ReminderSugarCheck, database.ReminderLongInsulin,
		database.ReminderMedicine, database.ReminderFoodCheck:
	default:
		return apperrors.NewValidationError("unknown reminder type")
	}
	return nil
}

func (s *ReminderService) countTowardLimit(tx *gorm.DB, userID uint) (int64, error) {
	var count int64
	err := tx.Model(&database.Reminder{}).
		Where("user_id = ? AND is_enabled = ?", userID, true).
		Count(&count).Error
	return count, err
}

// Create persists a new reminder. The plan limit is checked inside the
// transaction so no partial reminder is ever created.
func (s *ReminderService) Create(ctx context.Context, user *database.User, r *database.Reminder) error {
	if err := validateSchedule(r); err != nil {
		return err
	}

	r.UserID = user.ID
	r.TelegramID = user.TelegramID
	r.IsEnabled = true

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		count, err := s.countTowardLimit(tx, user.ID)
		if err != nil {
			return apperrors.NewDatabaseError(err)
		}
		if count >= int64(database.ReminderLimit(user.Plan)) {
			return ErrReminderLimit
		}
		if err := tx.Create(r).Error; err != nil {
			return apperrors.NewDatabaseError(err)
		}
		return nil
	})
}

// Toggle flips a reminder's enabled flag, re-reading the row inside the
// transaction rather than trusting a cached copy. Enabling enforces the
// same plan ceiling as creation.
func (s *ReminderService) Toggle(ctx context.Context, user *database.User, reminderID uint) (*database.Reminder, error) {
	var reminder database.Reminder
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ? AND user_id = ?", reminderID, user.ID).First(&reminder).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NewNotFoundError("reminder")
		}
		if err != nil {
			return apperrors.NewDatabaseError(err)
		}

		if !reminder.IsEnabled {
			count, err := s.countTowardLimit(tx, user.ID)
			if err != nil {
				return apperrors.NewDatabaseError(err)
			}
			if count >= int64(database.ReminderLimit(user.Plan)) {
				return ErrReminderLimit
			}
		}

		reminder.IsEnabled = !reminder.IsEnabled
		if err := tx.Model(&reminder).Update("is_enabled", reminder.IsEnabled).Error; err != nil {
			return apperrors.NewDatabaseError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &reminder, nil
}

// Get returns a reminder verifying ownership.
func (s *ReminderService) Get(ctx context.Context, userID uint, reminderID uint) (*database.Reminder, error) {
	var reminder database.Reminder
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", reminderID, userID).First(&reminder).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFoundError("reminder")
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return &reminder, nil
}

func (s *ReminderService) Delete(ctx context.Context, userID uint, reminderID uint) error {
	result := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", reminderID, userID).Delete(&database.Reminder{})
	if result.Error != nil {
		return apperrors.NewDatabaseError(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFoundError("reminder")
	}
	return nil
}

func (s *ReminderService) List(ctx context.Context, userID uint) ([]database.Reminder, error) {
	var reminders []database.Reminder
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&reminders).Error
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return reminders, nil
}

// ListAll returns every persisted reminder; used at startup to rebuild
// in-memory timers.
func (s *ReminderService) ListAll(ctx context.Context) ([]database.Reminder, error) {
	var reminders []database.Reminder
	if err := s.db.WithContext(ctx).Find(&reminders).Error; err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return reminders, nil
}

// Reload fetches the current row for a reminder before a timer acts on
// it; nil means the reminder is gone.
func (s *ReminderService) Reload(ctx context.Context, reminderID uint) (*database.Reminder, error) {
	var reminder database.Reminder
	err := s.db.WithContext(ctx).First(&reminder, reminderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return &reminder, nil
}

// EnabledFoodChecks returns the user's enabled post-meal reminders.
func (s *ReminderService) EnabledFoodChecks(ctx context.Context, userID uint) ([]database.Reminder, error) {
	var reminders []database.Reminder
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND type = ? AND is_enabled = ? AND minutes_after > 0",
			userID, database.ReminderFoodCheck, true).
		Find(&reminders).Error
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return reminders, nil
}

// LogAction appends to the reminder audit trail. The log is append-only;
// nothing ever updates or deletes rows here.
func (s *ReminderService) LogAction(ctx context.Context, reminderID uint, telegramID int64, action string) error {
	log := &database.ReminderLog{
		ReminderID: reminderID,
		TelegramID: telegramID,
		Action:     action,
	}
	if err := s.db.WithContext(ctx).Create(log).Error; err != nil {
		return apperrors.NewDatabaseError(err)
	}
	return nil
}
