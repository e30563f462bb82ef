// Package scheduler maintains the in-memory timers behind persisted
// reminders. Timers are not durable: RescheduleAll rebuilds them from
// the database at startup.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/vadimpetrov/diacare-bot/internal/database"
	"github.com/vadimpetrov/diacare-bot/internal/logger"
)

// SnoozeDelay is how long a snoozed reminder waits before firing again.
const SnoozeDelay = 10 * time.Minute

// Store is the slice of reminder persistence the scheduler needs.
type Store interface {
	// Reload fetches the current reminder row; nil means it was deleted.
	Reload(ctx context.Context, reminderID uint) (*database.Reminder, error)
	ListAll(ctx context.Context) ([]database.Reminder, error)
	EnabledFoodChecks(ctx context.Context, userID uint) ([]database.Reminder, error)
	LogAction(ctx context.Context, reminderID uint, telegramID int64, action string) error
}

// LocationResolver maps a user to their timezone for wall-clock schedules.
type LocationResolver interface {
	UserLocation(ctx context.Context, userID uint) *time.Location
}

// Notifier delivers a fired reminder to the user.
type Notifier interface {
	NotifyReminder(r *database.Reminder)
}

// Scheduler owns one cancellable timer handle per reminder identity.
// Reschedule is cancel-if-present then install, so timer firings for the
// same identity are mutually exclusive by construction.
type Scheduler struct {
	store    Store
	locs     LocationResolver
	notifier Notifier
	now      func() time.Time

	mu     sync.Mutex
	timers map[uint]*time.Timer
}

func New(store Store, locs LocationResolver, notifier Notifier) *Scheduler {
	return &Scheduler{
		store:    store,
		locs:     locs,
		notifier: notifier,
		now:      time.Now,
		timers:   make(map[uint]*time.Timer),
	}
}

// Schedule idempotently (re)installs the timer for a reminder. Any
// existing timer under the same identity is cancelled first. Disabled
// reminders are never scheduled; the call still cancels a stale timer.
func (s *Scheduler) Schedule(ctx context.Context, r *database.Reminder) {
	s.Cancel(r.ID)

	if !r.IsEnabled {
		return
	}

	delay, ok := s.nextDelay(ctx, r)
	if !ok {
		return
	}
	s.install(r.ID, delay)
	logger.Debug("reminder scheduled", "reminder_id", r.ID, "delay", delay.String())
}

// nextDelay computes when the base schedule fires next. Post-meal
// reminders have no base schedule; they are armed by SchedulePostMeal.
func (s *Scheduler) nextDelay(ctx context.Context, r *database.Reminder) (time.Duration, bool) {
	switch {
	case r.Time != "":
		at, err := time.Parse("15:04", r.Time)
		if err != nil {
			logger.Warningf("reminder %d has malformed time %q", r.ID, r.Time)
			return 0, false
		}
		loc := s.locs.UserLocation(ctx, r.UserID)
		now := s.now().In(loc)
		next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), 0, 0, loc)
		if !next.After(now) {
			next = next.Add(24 * time.Hour)
		}
		return next.Sub(now), true
	case r.IntervalHours > 0:
		return time.Duration(r.IntervalHours) * time.Hour, true
	default:
		return 0, false
	}
}

func (s *Scheduler) install(reminderID uint, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.timers[reminderID]; ok {
		old.Stop()
	}
	s.timers[reminderID] = time.AfterFunc(delay, func() {
		s.fire(reminderID)
	})
}

// Cancel stops and removes the timer for a reminder identity, if any.
func (s *Scheduler) Cancel(reminderID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[reminderID]; ok {
		t.Stop()
		delete(s.timers, reminderID)
	}
}

// fire runs on the timer goroutine. The reminder row is re-read rather
// than captured, because the user may have toggled or deleted it while
// the timer was pending.
func (s *Scheduler) fire(reminderID uint) {
	ctx := context.Background()
	s.Cancel(reminderID)

	r, err := s.store.Reload(ctx, reminderID)
	if err != nil {
		logger.Errorf("reminder %d reload failed: %v", reminderID, err)
		return
	}
	if r == nil || !r.IsEnabled {
		return
	}

	if err := s.store.LogAction(ctx, r.ID, r.TelegramID, database.ReminderActionTrigger); err != nil {
		logger.Errorf("reminder %d trigger log failed: %v", r.ID, err)
	}
	s.notifier.NotifyReminder(r)

	// Daily and interval reminders re-arm; one-shots do not.
	if r.Time != "" || r.IntervalHours > 0 {
		s.Schedule(ctx, r)
	}
}

// Snooze replaces the reminder's timer with a one-shot ten minutes out
// and records the action.
func (s *Scheduler) Snooze(ctx context.Context, reminderID uint, telegramID int64) {
	if err := s.store.LogAction(ctx, reminderID, telegramID, database.ReminderActionSnooze); err != nil {
		logger.Errorf("reminder %d snooze log failed: %v", reminderID, err)
	}
	s.install(reminderID, SnoozeDelay)
}

// Dismiss records a cancel action. The base schedule, if recurring, is
// already re-armed and stays untouched.
func (s *Scheduler) Dismiss(ctx context.Context, reminderID uint, telegramID int64) {
	if err := s.store.LogAction(ctx, reminderID, telegramID, database.ReminderActionCancel); err != nil {
		logger.Errorf("reminder %d cancel log failed: %v", reminderID, err)
	}
}

// SchedulePostMeal arms one-shot timers for the user's enabled post-meal
// reminders, relative to the committed entry's event time.
func (s *Scheduler) SchedulePostMeal(ctx context.Context, userID uint, eventTime time.Time) {
	reminders, err := s.store.EnabledFoodChecks(ctx, userID)
	if err != nil {
		logger.Errorf("post-meal reminders lookup failed for user %d: %v", userID, err)
		return
	}

	for i := range reminders {
		r := &reminders[i]
		fireAt := eventTime.Add(time.Duration(r.MinutesAfter) * time.Minute)
		delay := fireAt.Sub(s.now())
		if delay <= 0 {
			continue
		}
		s.install(r.ID, delay)
		logger.Debug("post-meal check scheduled", "reminder_id", r.ID, "delay", delay.String())
	}
}

// RescheduleAll rebuilds every timer from persisted state.
func (s *Scheduler) RescheduleAll(ctx context.Context) {
	reminders, err := s.store.ListAll(ctx)
	if err != nil {
		logger.Errorf("failed to list reminders for rescheduling: %v", err)
		return
	}
	for i := range reminders {
		s.Schedule(ctx, &reminders[i])
	}
	logger.Infof("rescheduled %d reminders", len(reminders))
}

// HasTimer reports whether a timer is registered for the identity.
func (s *Scheduler) HasTimer(reminderID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[reminderID]
	return ok
}

// ActiveCount returns the number of registered timers.
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every timer.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
