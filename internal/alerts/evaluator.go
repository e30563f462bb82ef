// Package alerts watches glucose readings against the user's thresholds
// and escalates unresolved episodes through a bounded re-check sequence.
package alerts

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/vadimpetrov/diacare-bot/internal/database"
	"github.com/vadimpetrov/diacare-bot/internal/logger"
)

const (
	// MaxRepeats bounds the escalation: the notification fires on the
	// third re-check cycle and nothing is scheduled after it.
	MaxRepeats = 3

	// DefaultRecheckDelay is the gap between escalation cycles.
	DefaultRecheckDelay = 5 * time.Minute
)

// Store is the slice of episode persistence the evaluator needs.
type Store interface {
	// Unresolved returns the user's open episode, nil if none.
	Unresolved(ctx context.Context, userID uint) (*database.AlertEpisode, error)
	Create(ctx context.Context, ep *database.AlertEpisode) error
	// ResolveAll marks every unresolved episode of the user resolved.
	ResolveAll(ctx context.Context, userID uint) error
	// ByID returns the episode row, nil if gone.
	ByID(ctx context.Context, episodeID uint) (*database.AlertEpisode, error)
}

// Notifier delivers escalation messages. Contact is empty when only the
// user should be notified.
type Notifier interface {
	NotifyAlert(telegramID int64, episode *database.AlertEpisode)
	NotifyContact(contact string, telegramID int64, episode *database.AlertEpisode)
}

// Evaluator is the per-user NONE → OPEN(count) → NONE state machine.
// Persistence failures are logged and leave state unchanged for the
// cycle: a missed de-escalation beats a crashed process.
type Evaluator struct {
	store        Store
	notifier     Notifier
	recheckDelay time.Duration

	mu       sync.Mutex
	rechecks map[uint]*time.Timer // user ID -> pending re-check
}

func New(store Store, notifier Notifier) *Evaluator {
	return &Evaluator{
		store:        store,
		notifier:     notifier,
		recheckDelay: DefaultRecheckDelay,
		rechecks:     make(map[uint]*time.Timer),
	}
}

// ProcessReading reacts to a committed glucose reading. A zero threshold
// disables that side only; alerting is off when both are zero.
func (e *Evaluator) ProcessReading(ctx context.Context, user *database.User, profile *database.Profile, sugar float64) {
	if profile == nil || (profile.LowThreshold <= 0 && profile.HighThreshold <= 0) {
		return
	}

	var alertType string
	switch {
	case profile.LowThreshold > 0 && sugar < profile.LowThreshold:
		alertType = database.AlertLow
	case profile.HighThreshold > 0 && sugar > profile.HighThreshold:
		alertType = database.AlertHigh
	default:
		e.resolve(ctx, user.ID)
		return
	}

	existing, err := e.store.Unresolved(ctx, user.ID)
	if err != nil {
		logger.Errorf("alert episode lookup failed for user %d: %v", user.ID, err)
		return
	}
	if existing != nil {
		// Escalation advances only through the re-check job, never
		// through repeated raw readings.
		return
	}

	episode := &database.AlertEpisode{
		UserID: user.ID,
		Sugar:  sugar,
		Type:   alertType,
	}
	if err := e.store.Create(ctx, episode); err != nil {
		logger.Errorf("alert episode create failed for user %d: %v", user.ID, err)
		return
	}

	e.scheduleRecheck(user, episode.ID, 1, e.recheckDelay)
}

func (e *Evaluator) resolve(ctx context.Context, userID uint) {
	if err := e.store.ResolveAll(ctx, userID); err != nil {
		logger.Errorf("alert episode resolve failed for user %d: %v", userID, err)
		return
	}
	e.cancelRecheck(userID)
}

func (e *Evaluator) scheduleRecheck(user *database.User, episodeID uint, count int, delay time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if old, ok := e.rechecks[user.ID]; ok {
		old.Stop()
	}
	e.rechecks[user.ID] = time.AfterFunc(delay, func() {
		e.runRecheck(context.Background(), user, episodeID, count)
	})
}

func (e *Evaluator) cancelRecheck(userID uint) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.rechecks[userID]; ok {
		t.Stop()
		delete(e.rechecks, userID)
	}
}

// runRecheck is one escalation cycle.
func (e *Evaluator) runRecheck(ctx context.Context, user *database.User, episodeID uint, count int) {
	e.cancelRecheck(user.ID)

	episode, err := e.store.ByID(ctx, episodeID)
	if err != nil {
		logger.Errorf("alert episode %d reload failed: %v", episodeID, err)
		return
	}
	if episode == nil || episode.Resolved {
		return
	}

	if count >= MaxRepeats {
		e.notifier.NotifyAlert(user.TelegramID, episode)
		if contact := sosHandle(user.SOSContact); contact != "" {
			e.notifier.NotifyContact(contact, user.TelegramID, episode)
		}
		return
	}

	e.scheduleRecheck(user, episodeID, count+1, e.recheckDelay)
}

// sosHandle returns the emergency contact if it can be relayed. Phone
// numbers cannot be messaged through the chat transport; only @-style
// handles go out.
func sosHandle(contact string) string {
	contact = strings.TrimSpace(contact)
	if strings.HasPrefix(contact, "@") {
		return contact
	}
	return ""
}

// HasPendingRecheck reports whether a re-check job is scheduled for the
// user.
func (e *Evaluator) HasPendingRecheck(userID uint) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.rechecks[userID]
	return ok
}

// Stop cancels every pending re-check.
func (e *Evaluator) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, t := range e.rechecks {
		t.Stop()
		delete(e.rechecks, id)
	}
}
