package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vadimpetrov/diacare-bot/internal/database"
)

type mockStore struct {
	mu        sync.Mutex
	reminders map[uint]*database.Reminder
	logs      []string
}

func newMockStore(reminders ...*database.Reminder) *mockStore {
	m := &mockStore{reminders: make(map[uint]*database.Reminder)}
	for _, r := range reminders {
		m.reminders[r.ID] = r
	}
	return m
}

func (m *mockStore) Reload(ctx context.Context, id uint) (*database.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reminders[id]
	if !ok {
		return nil, nil
	}
	copied := *r
	return &copied, nil
}

func (m *mockStore) ListAll(ctx context.Context) ([]database.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.Reminder
	for _, r := range m.reminders {
		out = append(out, *r)
	}
	return out, nil
}

func (m *mockStore) EnabledFoodChecks(ctx context.Context, userID uint) ([]database.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.Reminder
	for _, r := range m.reminders {
		if r.UserID == userID && r.Type == database.ReminderFoodCheck && r.IsEnabled && r.MinutesAfter > 0 {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockStore) LogAction(ctx context.Context, reminderID uint, telegramID int64, action string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, action)
	return nil
}

type mockLocs struct{}

func (mockLocs) UserLocation(ctx context.Context, userID uint) *time.Location {
	return time.UTC
}

type mockNotifier struct {
	mu    sync.Mutex
	fired []uint
}

func (m *mockNotifier) NotifyReminder(r *database.Reminder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fired = append(m.fired, r.ID)
}

func intervalReminder(id uint) *database.Reminder {
	r := &database.Reminder{
		TelegramID:    100,
		UserID:        1,
		Type:          database.ReminderSugarCheck,
		IntervalHours: 6,
		IsEnabled:     true,
	}
	r.ID = id
	return r
}

func TestSchedule_Idempotent(t *testing.T) {
	r := intervalReminder(1)
	s := New(newMockStore(r), mockLocs{}, &mockNotifier{})
	defer s.Stop()

	ctx := context.Background()
	s.Schedule(ctx, r)
	s.Schedule(ctx, r)

	if got := s.ActiveCount(); got != 1 {
		t.Errorf("ActiveCount() = %d after double schedule, want 1", got)
	}
}

func TestSchedule_DisabledCancelsStaleTimer(t *testing.T) {
	r := intervalReminder(1)
	s := New(newMockStore(r), mockLocs{}, &mockNotifier{})
	defer s.Stop()

	ctx := context.Background()
	s.Schedule(ctx, r)
	if !s.HasTimer(r.ID) {
		t.Fatal("expected a timer after scheduling")
	}

	r.IsEnabled = false
	s.Schedule(ctx, r)
	if s.HasTimer(r.ID) {
		t.Error("disabled reminder still has a timer")
	}
}

func TestSchedule_DailyDelayWithinDay(t *testing.T) {
	r := intervalReminder(1)
	r.IntervalHours = 0
	r.Time = "08:30"
	s := New(newMockStore(r), mockLocs{}, &mockNotifier{})
	defer s.Stop()

	s.now = func() time.Time {
		return time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	}
	delay, ok := s.nextDelay(context.Background(), r)
	if !ok {
		t.Fatal("nextDelay() not ok")
	}
	if delay != 30*time.Minute {
		t.Errorf("delay = %v, want 30m", delay)
	}

	// Past today's slot: fires tomorrow.
	s.now = func() time.Time {
		return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	}
	delay, ok = s.nextDelay(context.Background(), r)
	if !ok {
		t.Fatal("nextDelay() not ok")
	}
	if delay != 23*time.Hour+30*time.Minute {
		t.Errorf("delay = %v, want 23h30m", delay)
	}
}

func TestFire_LogsAndRearmsRecurring(t *testing.T) {
	r := intervalReminder(1)
	store := newMockStore(r)
	notifier := &mockNotifier{}
	s := New(store, mockLocs{}, notifier)
	defer s.Stop()

	s.fire(r.ID)

	if len(notifier.fired) != 1 || notifier.fired[0] != r.ID {
		t.Errorf("fired = %v, want [1]", notifier.fired)
	}
	if len(store.logs) != 1 || store.logs[0] != database.ReminderActionTrigger {
		t.Errorf("logs = %v, want [trigger]", store.logs)
	}
	if !s.HasTimer(r.ID) {
		t.Error("recurring reminder was not re-armed after firing")
	}
}

func TestFire_DeletedReminderIsNoop(t *testing.T) {
	store := newMockStore()
	notifier := &mockNotifier{}
	s := New(store, mockLocs{}, notifier)
	defer s.Stop()

	s.fire(99)

	if len(notifier.fired) != 0 {
		t.Error("deleted reminder fired a notification")
	}
	if s.HasTimer(99) {
		t.Error("deleted reminder got a timer")
	}
}

func TestSnooze_ReplacesTimerUnderSameIdentity(t *testing.T) {
	r := intervalReminder(1)
	store := newMockStore(r)
	s := New(store, mockLocs{}, &mockNotifier{})
	defer s.Stop()

	ctx := context.Background()
	s.Schedule(ctx, r)
	s.Snooze(ctx, r.ID, r.TelegramID)

	if got := s.ActiveCount(); got != 1 {
		t.Errorf("ActiveCount() = %d after snooze, want 1", got)
	}
	if len(store.logs) != 1 || store.logs[0] != database.ReminderActionSnooze {
		t.Errorf("logs = %v, want [snooze]", store.logs)
	}
}

func TestSchedulePostMeal(t *testing.T) {
	r := &database.Reminder{
		TelegramID:   100,
		UserID:       1,
		Type:         database.ReminderFoodCheck,
		MinutesAfter: 90,
		IsEnabled:    true,
	}
	r.ID = 7
	s := New(newMockStore(r), mockLocs{}, &mockNotifier{})
	defer s.Stop()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.SchedulePostMeal(context.Background(), 1, now)
	if !s.HasTimer(r.ID) {
		t.Error("post-meal check was not scheduled")
	}

	// An event far enough in the past schedules nothing.
	s.Cancel(r.ID)
	s.SchedulePostMeal(context.Background(), 1, now.Add(-2*time.Hour))
	if s.HasTimer(r.ID) {
		t.Error("stale post-meal check was scheduled")
	}
}

func TestRescheduleAll(t *testing.T) {
	r1 := intervalReminder(1)
	r2 := intervalReminder(2)
	disabled := intervalReminder(3)
	disabled.IsEnabled = false

	s := New(newMockStore(r1, r2, disabled), mockLocs{}, &mockNotifier{})
	defer s.Stop()

	s.RescheduleAll(context.Background())
	if got := s.ActiveCount(); got != 2 {
		t.Errorf("ActiveCount() = %d, want 2 (disabled reminder skipped)", got)
	}
}
