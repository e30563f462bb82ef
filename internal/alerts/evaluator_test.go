package alerts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vadimpetrov/diacare-bot/internal/database"
)

type mockEpisodeStore struct {
	mu       sync.Mutex
	nextID   uint
	episodes map[uint]*database.AlertEpisode
	failAll  bool
}

func newMockEpisodeStore() *mockEpisodeStore {
	return &mockEpisodeStore{nextID: 1, episodes: make(map[uint]*database.AlertEpisode)}
}

var errStore = errors.New("store down")

func (m *mockEpisodeStore) Unresolved(ctx context.Context, userID uint) (*database.AlertEpisode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, errStore
	}
	for _, ep := range m.episodes {
		if ep.UserID == userID && !ep.Resolved {
			copied := *ep
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockEpisodeStore) Create(ctx context.Context, ep *database.AlertEpisode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errStore
	}
	ep.ID = m.nextID
	m.nextID++
	copied := *ep
	m.episodes[ep.ID] = &copied
	return nil
}

func (m *mockEpisodeStore) ResolveAll(ctx context.Context, userID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errStore
	}
	for _, ep := range m.episodes {
		if ep.UserID == userID {
			ep.Resolved = true
		}
	}
	return nil
}

func (m *mockEpisodeStore) ByID(ctx context.Context, episodeID uint) (*database.AlertEpisode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, errStore
	}
	ep, ok := m.episodes[episodeID]
	if !ok {
		return nil, nil
	}
	copied := *ep
	return &copied, nil
}

func (m *mockEpisodeStore) openCount(userID uint) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ep := range m.episodes {
		if ep.UserID == userID && !ep.Resolved {
			n++
		}
	}
	return n
}

type mockAlertNotifier struct {
	mu       sync.Mutex
	users    []int64
	contacts []string
}

func (m *mockAlertNotifier) NotifyAlert(telegramID int64, episode *database.AlertEpisode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = append(m.users, telegramID)
}

func (m *mockAlertNotifier) NotifyContact(contact string, telegramID int64, episode *database.AlertEpisode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts = append(m.contacts, contact)
}

func (m *mockAlertNotifier) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), len(m.contacts)
}

func testUser(sos string) *database.User {
	u := &database.User{TelegramID: 100, SOSContact: sos}
	u.ID = 1
	return u
}

func testProfile() *database.Profile {
	return &database.Profile{UserID: 1, LowThreshold: 4, HighThreshold: 10}
}

// newQuietEvaluator pushes the recheck delay far out so timers never fire
// during a test; escalation cycles are driven through runRecheck directly.
func newQuietEvaluator(store Store, notifier Notifier) *Evaluator {
	e := New(store, notifier)
	e.recheckDelay = time.Hour
	return e
}

func TestProcessReading_LowOpensEpisode(t *testing.T) {
	store := newMockEpisodeStore()
	notifier := &mockAlertNotifier{}
	e := newQuietEvaluator(store, notifier)
	defer e.Stop()

	e.ProcessReading(context.Background(), testUser(""), testProfile(), 3.2)

	if got := store.openCount(1); got != 1 {
		t.Fatalf("open episodes = %d, want 1", got)
	}
	ep, _ := store.ByID(context.Background(), 1)
	if ep.Type != database.AlertLow {
		t.Errorf("episode type = %q, want low", ep.Type)
	}
	if users, _ := notifier.counts(); users != 0 {
		t.Error("opening an episode must not notify immediately")
	}
}

func TestProcessReading_InRangeResolvesAndCancels(t *testing.T) {
	store := newMockEpisodeStore()
	e := newQuietEvaluator(store, &mockAlertNotifier{})
	defer e.Stop()

	ctx := context.Background()
	e.ProcessReading(ctx, testUser(""), testProfile(), 12.5)
	if got := store.openCount(1); got != 1 {
		t.Fatalf("open episodes = %d, want 1", got)
	}

	e.ProcessReading(ctx, testUser(""), testProfile(), 6.0)
	if got := store.openCount(1); got != 0 {
		t.Errorf("open episodes = %d after in-range reading, want 0", got)
	}
	if e.HasPendingRecheck(1) {
		t.Error("in-range reading left a re-check pending")
	}
}

func TestProcessReading_ExistingEpisodeNotDuplicated(t *testing.T) {
	store := newMockEpisodeStore()
	e := newQuietEvaluator(store, &mockAlertNotifier{})
	defer e.Stop()

	ctx := context.Background()
	e.ProcessReading(ctx, testUser(""), testProfile(), 3.0)
	e.ProcessReading(ctx, testUser(""), testProfile(), 2.8)

	if got := store.openCount(1); got != 1 {
		t.Errorf("open episodes = %d after repeated low readings, want 1", got)
	}
}

func TestProcessReading_UnconfiguredThresholdsDisableAlerting(t *testing.T) {
	store := newMockEpisodeStore()
	e := newQuietEvaluator(store, &mockAlertNotifier{})
	defer e.Stop()

	e.ProcessReading(context.Background(), testUser(""), &database.Profile{UserID: 1}, 2.0)
	e.ProcessReading(context.Background(), testUser(""), nil, 2.0)

	if got := store.openCount(1); got != 0 {
		t.Errorf("open episodes = %d with unconfigured thresholds, want 0", got)
	}
}

func TestProcessReading_OneSidedThreshold(t *testing.T) {
	store := newMockEpisodeStore()
	e := newQuietEvaluator(store, &mockAlertNotifier{})
	defer e.Stop()

	ctx := context.Background()
	highOnly := &database.Profile{UserID: 1, HighThreshold: 10}

	// The disabled low side stays quiet.
	e.ProcessReading(ctx, testUser(""), highOnly, 2.0)
	if got := store.openCount(1); got != 0 {
		t.Fatalf("open episodes = %d after low reading with low side off, want 0", got)
	}

	e.ProcessReading(ctx, testUser(""), highOnly, 12.5)
	if got := store.openCount(1); got != 1 {
		t.Fatalf("open episodes = %d after high reading, want 1", got)
	}
	ep, _ := store.ByID(ctx, 1)
	if ep.Type != database.AlertHigh {
		t.Errorf("episode type = %q, want high", ep.Type)
	}

	e.ProcessReading(ctx, testUser(""), highOnly, 6.0)
	if got := store.openCount(1); got != 0 {
		t.Errorf("open episodes = %d after in-range reading, want 0", got)
	}
}

func TestRunRecheck_NotifiesOnlyAtCeiling(t *testing.T) {
	store := newMockEpisodeStore()
	notifier := &mockAlertNotifier{}
	e := newQuietEvaluator(store, notifier)
	defer e.Stop()

	ctx := context.Background()
	user := testUser("@doctor")
	e.ProcessReading(ctx, user, testProfile(), 2.9)

	e.runRecheck(ctx, user, 1, 1)
	e.runRecheck(ctx, user, 1, 2)
	if users, contacts := notifier.counts(); users != 0 || contacts != 0 {
		t.Fatalf("notified before the ceiling: users=%d contacts=%d", users, contacts)
	}

	e.runRecheck(ctx, user, 1, 3)
	users, contacts := notifier.counts()
	if users != 1 {
		t.Errorf("user notifications = %d, want 1", users)
	}
	if contacts != 1 {
		t.Errorf("contact notifications = %d, want 1", contacts)
	}
	if e.HasPendingRecheck(1) {
		t.Error("a cycle was scheduled past the ceiling")
	}
}

func TestRunRecheck_PhoneContactNotRelayed(t *testing.T) {
	store := newMockEpisodeStore()
	notifier := &mockAlertNotifier{}
	e := newQuietEvaluator(store, notifier)
	defer e.Stop()

	ctx := context.Background()
	user := testUser("+79991234567")
	e.ProcessReading(ctx, user, testProfile(), 2.9)

	e.runRecheck(ctx, user, 1, 3)
	users, contacts := notifier.counts()
	if users != 1 || contacts != 0 {
		t.Errorf("users=%d contacts=%d, want 1 and 0 for a phone contact", users, contacts)
	}
}

func TestRunRecheck_ResolvedEpisodeStopsEscalation(t *testing.T) {
	store := newMockEpisodeStore()
	notifier := &mockAlertNotifier{}
	e := newQuietEvaluator(store, notifier)
	defer e.Stop()

	ctx := context.Background()
	user := testUser("@doctor")
	e.ProcessReading(ctx, user, testProfile(), 2.9)
	e.ProcessReading(ctx, user, testProfile(), 6.0)

	e.runRecheck(ctx, user, 1, 3)
	if users, _ := notifier.counts(); users != 0 {
		t.Error("resolved episode still escalated")
	}
}

func TestProcessReading_StoreFailureIsFailSafe(t *testing.T) {
	store := newMockEpisodeStore()
	store.failAll = true
	e := newQuietEvaluator(store, &mockAlertNotifier{})
	defer e.Stop()

	e.ProcessReading(context.Background(), testUser(""), testProfile(), 2.0)

	if e.HasPendingRecheck(1) {
		t.Error("store failure scheduled a re-check")
	}
}
