package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vadimpetrov/diacare-bot/internal/apperrors"
	"github.com/vadimpetrov/diacare-bot/internal/database"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&database.User{}, &database.Reminder{}, &database.ReminderLog{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func freeUser() *database.User {
	u := &database.User{TelegramID: 100, Plan: database.PlanFree}
	u.ID = 1
	return u
}

func dailyReminder(hhmm string) *database.Reminder {
	return &database.Reminder{Type: database.ReminderSugarCheck, Time: hhmm}
}

func reminderRows(t *testing.T, db *gorm.DB, userID uint) []database.Reminder {
	t.Helper()
	var rows []database.Reminder
	if err := db.Where("user_id = ?", userID).Order("id ASC").Find(&rows).Error; err != nil {
		t.Fatalf("failed to read reminders: %v", err)
	}
	return rows
}

func TestCreate_PlanLimitLeavesNoRow(t *testing.T) {
	db := newTestDB(t)
	svc := NewReminderService(db)
	ctx := context.Background()
	user := freeUser()

	limit := database.ReminderLimit(user.Plan)
	for i := 0; i < limit; i++ {
		r := dailyReminder(fmt.Sprintf("0%d:00", i))
		if err := svc.Create(ctx, user, r); err != nil {
			t.Fatalf("Create(#%d) error = %v", i+1, err)
		}
	}

	err := svc.Create(ctx, user, dailyReminder("09:00"))
	if !errors.Is(err, ErrReminderLimit) {
		t.Fatalf("Create() over limit error = %v, want ErrReminderLimit", err)
	}
	if got := len(reminderRows(t, db, user.ID)); got != limit {
		t.Errorf("reminder rows = %d after rejected create, want %d", got, limit)
	}
}

func TestCreate_DisabledRemindersDoNotCount(t *testing.T) {
	db := newTestDB(t)
	svc := NewReminderService(db)
	ctx := context.Background()
	user := freeUser()

	limit := database.ReminderLimit(user.Plan)
	for i := 0; i < limit; i++ {
		if err := svc.Create(ctx, user, dailyReminder(fmt.Sprintf("0%d:00", i))); err != nil {
			t.Fatalf("Create(#%d) error = %v", i+1, err)
		}
	}

	// Disabling one frees a slot.
	rows := reminderRows(t, db, user.ID)
	if _, err := svc.Toggle(ctx, user, rows[0].ID); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if err := svc.Create(ctx, user, dailyReminder("09:00")); err != nil {
		t.Fatalf("Create() with a freed slot error = %v", err)
	}
}

func TestToggle_EnableRechecksLimit(t *testing.T) {
	db := newTestDB(t)
	svc := NewReminderService(db)
	ctx := context.Background()
	user := freeUser()

	limit := database.ReminderLimit(user.Plan)
	for i := 0; i < limit; i++ {
		if err := svc.Create(ctx, user, dailyReminder(fmt.Sprintf("0%d:00", i))); err != nil {
			t.Fatalf("Create(#%d) error = %v", i+1, err)
		}
	}

	rows := reminderRows(t, db, user.ID)
	disabledID := rows[0].ID
	if _, err := svc.Toggle(ctx, user, disabledID); err != nil {
		t.Fatalf("Toggle() off error = %v", err)
	}
	if err := svc.Create(ctx, user, dailyReminder("09:00")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Every slot is taken again; re-enabling must hit the ceiling and
	// leave the reminder disabled.
	_, err := svc.Toggle(ctx, user, disabledID)
	if !errors.Is(err, ErrReminderLimit) {
		t.Fatalf("Toggle() on over limit error = %v, want ErrReminderLimit", err)
	}
	reloaded, err := svc.Get(ctx, user.ID, disabledID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if reloaded.IsEnabled {
		t.Error("rejected toggle still enabled the reminder")
	}
}

func TestToggle_NotFound(t *testing.T) {
	svc := NewReminderService(newTestDB(t))

	_, err := svc.Toggle(context.Background(), freeUser(), 777)
	if !apperrors.IsNotFound(err) {
		t.Errorf("Toggle() error = %v, want not-found", err)
	}
}

func TestCreate_ValidatesSchedule(t *testing.T) {
	tests := []struct {
		name string
		r    *database.Reminder
	}{
		{"no schedule", &database.Reminder{Type: database.ReminderSugarCheck}},
		{"two schedule kinds", &database.Reminder{Type: database.ReminderSugarCheck, Time: "08:00", IntervalHours: 6}},
		{"bad time format", &database.Reminder{Type: database.ReminderSugarCheck, Time: "8 утра"}},
		{"minutes-after on wrong type", &database.Reminder{Type: database.ReminderMedicine, MinutesAfter: 120}},
		{"unknown type", &database.Reminder{Type: "nap", Time: "08:00"}},
	}

	db := newTestDB(t)
	svc := NewReminderService(db)
	user := freeUser()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Create(context.Background(), user, tt.r)
			if !apperrors.IsValidation(err) {
				t.Errorf("Create() error = %v, want validation error", err)
			}
		})
	}
	if got := len(reminderRows(t, db, user.ID)); got != 0 {
		t.Errorf("reminder rows = %d after rejected creates, want 0", got)
	}
}
