package session

import "sync"

// MemoryStore keeps sessions in process memory. Timer callbacks and the
// update loop may touch different users concurrently, so access is
// mutex-guarded even though turns for one user are serialized.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]*Session)}
}

func (m *MemoryStore) Get(telegramID int64) *Session {
	m.mu.RLock()
	s, ok := m.sessions[telegramID]
	m.mu.RUnlock()
	if ok {
		return s
	}
	return &Session{TelegramID: telegramID, State: StateNone}
}

func (m *MemoryStore) Save(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.TelegramID] = s
}

func (m *MemoryStore) Clear(telegramID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, telegramID)
}

func (m *MemoryStore) Close() error {
	return nil
}
