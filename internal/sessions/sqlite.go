package sessions

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/strandhq/strand/internal/memory"
	"github.com/strandhq/strand/internal/observability"
	"github.com/strandhq/strand/pkg/models"
)

const sessionSchema = `
CREATE TABLE IF NOT EXISTS gateway_sessions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	assistant_id TEXT,
	model_id TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS gateway_messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES gateway_sessions(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_gateway_sessions_user ON gateway_sessions(user_id);
CREATE INDEX IF NOT EXISTS idx_gateway_messages_session ON gateway_messages(session_id);
`

// SQLiteStore mirrors session state to SQLite so conversations survive
// restarts. Memory stays authoritative; database writes are best effort
// and only logged on failure.
type SQLiteStore struct {
	mu              sync.RWMutex
	sessions        map[string]*Session
	userSessions    map[string]string
	db              *sql.DB
	logger          *observability.Logger
	maxContextTurns int
	timeout         time.Duration
	contextFactory  func() *memory.ContextManager
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at path and rehydrates
// sessions whose updated_at falls inside the timeout window.
func NewSQLiteStore(path string, maxContextTurns int, timeout time.Duration, logger *observability.Logger) (*SQLiteStore, error) {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	if _, err := db.Exec(sessionSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init session schema: %w", err)
	}

	s := &SQLiteStore{
		sessions:        make(map[string]*Session),
		userSessions:    make(map[string]string),
		db:              db,
		logger:          logger,
		maxContextTurns: maxContextTurns,
		timeout:         timeout,
	}
	if err := s.restore(); err != nil {
		db.Close()
		return nil, fmt.Errorf("restore sessions: %w", err)
	}
	return s, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// SetContextFactory overrides how new sessions build their context
// manager, letting callers attach long-term memory and markdown paths.
// Sessions restored before the factory is set keep their plain context.
func (s *SQLiteStore) SetContextFactory(fn func() *memory.ContextManager) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contextFactory = fn
}

func (s *SQLiteStore) newSession(userID string) *Session {
	sess := NewSession(userID, s.maxContextTurns)
	if s.contextFactory != nil {
		sess.Context = s.contextFactory()
	}
	return sess
}

func (s *SQLiteStore) restore() error {
	cutoff := time.Now().Add(-s.timeout).UTC().Format(time.RFC3339)
	rows, err := s.db.Query(
		`SELECT id, user_id, COALESCE(assistant_id, ''), COALESCE(model_id, '')
		 FROM gateway_sessions WHERE updated_at > ?`, cutoff)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id, userID, assistantID, modelID string
		if err := rows.Scan(&id, &userID, &assistantID, &modelID); err != nil {
			return err
		}
		sess := s.newSession(userID)
		sess.ID = id
		sess.AssistantID = assistantID
		sess.ModelID = modelID
		for _, msg := range s.loadMessages(id) {
			sess.Context.PushMessage(msg)
		}
		s.sessions[id] = sess
		s.userSessions[userID] = id
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(s.sessions) > 0 && s.logger != nil {
		s.logger.Info(context.Background(), "sessions_restored", "count", len(s.sessions))
	}
	return nil
}

func (s *SQLiteStore) loadMessages(sessionID string) []models.Message {
	rows, err := s.db.Query(
		`SELECT role, content FROM gateway_messages WHERE session_id = ? ORDER BY id ASC`, sessionID)
	if err != nil {
		s.warn("load_messages_failed", err)
		return nil
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			s.warn("scan_message_failed", err)
			continue
		}
		switch models.Role(role) {
		case models.RoleUser, models.RoleAssistant, models.RoleSystem, models.RoleTool:
			msgs = append(msgs, models.Message{Role: models.Role(role), Content: content})
		}
	}
	return msgs
}

func (s *SQLiteStore) persistSession(sess *Session) {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO gateway_sessions (id, user_id, assistant_id, model_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.AssistantID, sess.ModelID, now, now)
	if err != nil {
		s.warn("persist_session_failed", err)
	}
}

func (s *SQLiteStore) persistMessage(sessionID string, msg models.Message) {
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := s.db.Exec(
		`INSERT INTO gateway_messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		sessionID, string(msg.Role), msg.Content, now); err != nil {
		s.warn("persist_message_failed", err)
		return
	}
	if _, err := s.db.Exec(
		`UPDATE gateway_sessions SET updated_at = ? WHERE id = ?`, now, sessionID); err != nil {
		s.warn("touch_session_failed", err)
	}
}

func (s *SQLiteStore) warn(msg string, err error) {
	if s.logger != nil {
		s.logger.Warn(context.Background(), msg, "error", err.Error())
	}
}

func (s *SQLiteStore) GetOrCreate(_ context.Context, userID string, client models.ClientInfo) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.userSessions[userID]; ok {
		if sess, ok := s.sessions[id]; ok {
			sess.AddClient(client)
			return id
		}
	}

	sess := s.newSession(userID)
	sess.AddClient(client)
	s.sessions[sess.ID] = sess
	s.userSessions[userID] = sess.ID
	s.persistSession(sess)
	return sess.ID
}

func (s *SQLiteStore) AddMessage(_ context.Context, sessionID string, msg models.Message) {
	s.mu.Lock()
	if sess, ok := s.sessions[sessionID]; ok {
		sess.Context.PushMessage(msg)
		sess.LastActive = time.Now()
	}
	s.mu.Unlock()

	s.persistMessage(sessionID, msg)
}

// PersistTurn mirrors already-appended conversation messages to the
// database. The runtime uses it after an agent turn, whose loop pushes
// into the context manager directly.
func (s *SQLiteStore) PersistTurn(_ context.Context, sessionID string, msgs ...models.Message) {
	for _, msg := range msgs {
		s.persistMessage(sessionID, msg)
	}
}

func (s *SQLiteStore) GetContext(_ context.Context, sessionID string) *memory.ContextManager {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[sessionID]; ok {
		return sess.Context
	}
	return nil
}

func (s *SQLiteStore) SetContext(_ context.Context, sessionID string, cm *memory.ContextManager) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		sess.Context = cm
	}
}

func (s *SQLiteStore) SetStatus(_ context.Context, sessionID string, status models.SessionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		sess.SetStatus(status)
	}
}

func (s *SQLiteStore) Cancel(_ context.Context, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		sess.Cancel()
	}
}

func (s *SQLiteStore) NewCancelToken(ctx context.Context, sessionID string) context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		return sess.NewCancelToken(ctx)
	}
	return nil
}

func (s *SQLiteStore) RemoveClient(_ context.Context, sessionID string, platform models.SpokeType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		sess.RemoveClient(platform)
	}
}

func (s *SQLiteStore) CleanupExpired(_ context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.IsExpired(s.timeout) {
			delete(s.sessions, id)
			delete(s.userSessions, sess.UserID)
			removed++
		}
	}
	return removed
}

func (s *SQLiteStore) ActiveCount(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *SQLiteStore) GetUserSession(_ context.Context, userID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userSessions[userID]
}

func (s *SQLiteStore) GetHistory(_ context.Context, sessionID string, limit int) []models.HistoryMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	return historyOf(sess, limit)
}

func (s *SQLiteStore) WithSession(_ context.Context, sessionID string, fn func(*Session)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return false
	}
	fn(sess)
	return true
}
