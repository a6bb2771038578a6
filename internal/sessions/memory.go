package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/strandhq/strand/internal/memory"
	"github.com/strandhq/strand/pkg/models"
)

// DefaultSessionTimeout expires sessions idle for an hour with no clients.
const DefaultSessionTimeout = time.Hour

// MemoryStore keeps all sessions in process memory. Suitable for tests
// and single-instance deployments that can lose history on restart.
type MemoryStore struct {
	mu              sync.RWMutex
	sessions        map[string]*Session
	userSessions    map[string]string
	maxContextTurns int
	timeout         time.Duration
	contextFactory  func() *memory.ContextManager
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an in-memory store. A non-positive timeout falls
// back to DefaultSessionTimeout.
func NewMemoryStore(maxContextTurns int, timeout time.Duration) *MemoryStore {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	return &MemoryStore{
		sessions:        make(map[string]*Session),
		userSessions:    make(map[string]string),
		maxContextTurns: maxContextTurns,
		timeout:         timeout,
	}
}

// SetContextFactory overrides how new sessions build their context
// manager, letting callers attach long-term memory and markdown paths.
func (m *MemoryStore) SetContextFactory(fn func() *memory.ContextManager) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contextFactory = fn
}

func (m *MemoryStore) newSession(userID string) *Session {
	s := NewSession(userID, m.maxContextTurns)
	if m.contextFactory != nil {
		s.Context = m.contextFactory()
	}
	return s
}

func (m *MemoryStore) GetOrCreate(_ context.Context, userID string, client models.ClientInfo) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.userSessions[userID]; ok {
		if s, ok := m.sessions[id]; ok {
			s.AddClient(client)
			return id
		}
	}

	s := m.newSession(userID)
	s.AddClient(client)
	m.sessions[s.ID] = s
	m.userSessions[userID] = s.ID
	return s.ID
}

func (m *MemoryStore) AddMessage(_ context.Context, sessionID string, msg models.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		s.Context.PushMessage(msg)
		s.LastActive = time.Now()
	}
}

func (m *MemoryStore) GetContext(_ context.Context, sessionID string) *memory.ContextManager {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[sessionID]; ok {
		return s.Context
	}
	return nil
}

func (m *MemoryStore) SetContext(_ context.Context, sessionID string, cm *memory.ContextManager) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		s.Context = cm
	}
}

func (m *MemoryStore) SetStatus(_ context.Context, sessionID string, status models.SessionStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		s.SetStatus(status)
	}
}

func (m *MemoryStore) Cancel(_ context.Context, sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		s.Cancel()
	}
}

func (m *MemoryStore) NewCancelToken(ctx context.Context, sessionID string) context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		return s.NewCancelToken(ctx)
	}
	return nil
}

func (m *MemoryStore) RemoveClient(_ context.Context, sessionID string, platform models.SpokeType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		s.RemoveClient(platform)
	}
}

func (m *MemoryStore) CleanupExpired(_ context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if s.IsExpired(m.timeout) {
			delete(m.sessions, id)
			delete(m.userSessions, s.UserID)
			removed++
		}
	}
	return removed
}

func (m *MemoryStore) ActiveCount(_ context.Context) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *MemoryStore) GetUserSession(_ context.Context, userID string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.userSessions[userID]
}

func (m *MemoryStore) GetHistory(_ context.Context, sessionID string, limit int) []models.HistoryMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	return historyOf(s, limit)
}

func (m *MemoryStore) WithSession(_ context.Context, sessionID string, fn func(*Session)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return false
	}
	fn(s)
	return true
}

func historyOf(s *Session, limit int) []models.HistoryMessage {
	msgs := s.Context.Messages()
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]models.HistoryMessage, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, models.HistoryMessage{
			Role:      string(msg.Role),
			Content:   msg.Content,
			Timestamp: time.Now().UnixMilli(),
		})
	}
	return out
}
