package flow

import (
	"log/slog"
	"sync"

	"github.com/bumperbrother/foodmemory/internal/models"
)

// SessionManager holds per-chat conversational state in memory. Sessions are
// created on first use and discarded on restart.
type SessionManager struct {
	sessions map[int64]*models.Session
	mu       sync.Mutex
}

// NewSessionManager creates an empty SessionManager.
func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[int64]*models.Session)}
}

// Get returns the session for a chat, creating it when absent.
func (m *SessionManager) Get(chatID int64) *models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[chatID]
	if !ok {
		s = &models.Session{ChatID: chatID}
		m.sessions[chatID] = s
		slog.Debug("SessionManager created session", "chatID", chatID)
	}
	return s
}

// Update runs fn against a chat's session under the manager's lock.
func (m *SessionManager) Update(chatID int64, fn func(*models.Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[chatID]
	if !ok {
		s = &models.Session{ChatID: chatID}
		m.sessions[chatID] = s
	}
	fn(s)
}
