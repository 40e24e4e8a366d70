package storage

import (
	"sync"
	"time"

	"github.com/wagate/wagate-backend/internal/models"
)

// MemoryStore holds all data in memory for testing
type MemoryStore struct {
	sessions    map[string]*models.Session
	credentials map[string][]byte
	autoReplies map[string][]models.AutoReplyRule
	triggers    map[string][]models.RegexTrigger
	proTriggers map[string][]models.ProRegexTrigger

	mu sync.RWMutex
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:    make(map[string]*models.Session),
		credentials: make(map[string][]byte),
		autoReplies: make(map[string][]models.AutoReplyRule),
		triggers:    make(map[string][]models.RegexTrigger),
		proTriggers: make(map[string][]models.ProRegexTrigger),
	}
}

func (m *MemoryStore) SaveSession(session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	session.UpdatedAt = time.Now()
	copied := *session
	m.sessions[session.SessionID] = &copied
	return nil
}

func (m *MemoryStore) GetSession(sessionID string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return nil, ErrNotFound
	}
	copied := *session
	return &copied, nil
}

func (m *MemoryStore) DeleteSession(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, sessionID)
	return nil
}

func (m *MemoryStore) ListSessions() ([]*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sessions []*models.Session
	for _, session := range m.sessions {
		copied := *session
		sessions = append(sessions, &copied)
	}
	return sessions, nil
}

func (m *MemoryStore) SaveCredentials(sessionID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.credentials[sessionID] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStore) GetCredentials(sessionID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, exists := m.credentials[sessionID]
	if !exists {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStore) HasCredentials(sessionID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.credentials[sessionID]
	return exists
}

func (m *MemoryStore) DeleteCredentials(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.credentials, sessionID)
	return nil
}

func (m *MemoryStore) SaveAutoReplies(sessionID string, rules []models.AutoReplyRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.autoReplies[sessionID] = append([]models.AutoReplyRule(nil), rules...)
	return nil
}

func (m *MemoryStore) GetAutoReplies(sessionID string) ([]models.AutoReplyRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rules, exists := m.autoReplies[sessionID]
	if !exists {
		return nil, ErrNotFound
	}
	return append([]models.AutoReplyRule(nil), rules...), nil
}

func (m *MemoryStore) SaveRegexTriggers(sessionID string, rules []models.RegexTrigger) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.triggers[sessionID] = append([]models.RegexTrigger(nil), rules...)
	return nil
}

func (m *MemoryStore) GetRegexTriggers(sessionID string) ([]models.RegexTrigger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rules, exists := m.triggers[sessionID]
	if !exists {
		return nil, ErrNotFound
	}
	return append([]models.RegexTrigger(nil), rules...), nil
}

func (m *MemoryStore) SaveProRegexTriggers(sessionID string, rules []models.ProRegexTrigger) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.proTriggers[sessionID] = append([]models.ProRegexTrigger(nil), rules...)
	return nil
}

func (m *MemoryStore) GetProRegexTriggers(sessionID string) ([]models.ProRegexTrigger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rules, exists := m.proTriggers[sessionID]
	if !exists {
		return nil, ErrNotFound
	}
	return append([]models.ProRegexTrigger(nil), rules...), nil
}

func (m *MemoryStore) DeleteRules(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.autoReplies, sessionID)
	delete(m.triggers, sessionID)
	delete(m.proTriggers, sessionID)
	return nil
}
