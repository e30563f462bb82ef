package session

import "testing"

func TestMemoryStore_FreshSessionForUnknownUser(t *testing.T) {
	store := NewMemoryStore()

	s := store.Get(42)
	if s.TelegramID != 42 || s.State != StateNone {
		t.Errorf("Get() = %+v, want fresh session in state none", s)
	}
}

func TestMemoryStore_SaveAndClear(t *testing.T) {
	store := NewMemoryStore()

	s := store.Get(42)
	s.State = StateCollecting
	store.Save(s)

	if got := store.Get(42); got.State != StateCollecting {
		t.Errorf("State = %q after save, want collecting", got.State)
	}

	store.Clear(42)
	if got := store.Get(42); got.State != StateNone {
		t.Errorf("State = %q after clear, want none", got.State)
	}
}

func TestSessionReset(t *testing.T) {
	s := &Session{TelegramID: 7, State: StateConfirming, ReminderType: "medicine", PhotoInFlight: true}
	s.ProfileDraft = map[string]float64{"icr": 10}

	s.Reset()

	if s.TelegramID != 7 {
		t.Error("Reset() dropped the identity")
	}
	if s.State != StateNone || s.Pending != nil || s.ProfileDraft != nil || s.ReminderType != "" || s.PhotoInFlight {
		t.Errorf("Reset() left state behind: %+v", s)
	}
}
