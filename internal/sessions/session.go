// Package sessions maps users to conversations. A user has at most one
// active session shared across every connected platform; the store owns
// the sessions and hands out snapshots or callback access, never long-lived
// references.
package sessions

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/strandhq/strand/internal/memory"
	"github.com/strandhq/strand/pkg/models"
)

// Session is one user's conversation state, shared across platforms.
type Session struct {
	ID          string
	UserID      string
	Clients     map[models.SpokeType]models.ClientInfo
	Context     *memory.ContextManager
	Status      models.SessionStatus
	AssistantID string
	ModelID     string

	LastActive time.Time
	CreatedAt  time.Time

	cancelCtx  context.Context
	cancelFunc context.CancelFunc
}

// NewSession creates an idle session for the user.
func NewSession(userID string, maxContextTurns int) *Session {
	now := time.Now()
	return &Session{
		ID:         "session_" + uuid.NewString(),
		UserID:     userID,
		Clients:    make(map[models.SpokeType]models.ClientInfo),
		Context:    memory.NewContextManager(maxContextTurns),
		Status:     models.SessionIdle,
		LastActive: now,
		CreatedAt:  now,
	}
}

// AddClient registers a platform connection and refreshes activity.
func (s *Session) AddClient(client models.ClientInfo) {
	s.Clients[client.Platform] = client
	s.LastActive = time.Now()
}

// RemoveClient drops the connection for one platform.
func (s *Session) RemoveClient(platform models.SpokeType) {
	delete(s.Clients, platform)
}

// HasActiveClients reports whether any platform is still connected.
func (s *Session) HasActiveClients() bool {
	return len(s.Clients) > 0
}

// SetStatus updates the status and refreshes activity.
func (s *Session) SetStatus(status models.SessionStatus) {
	s.Status = status
	s.LastActive = time.Now()
}

// Cancel trips the current request's cancel token, if any, and resets the
// session to idle.
func (s *Session) Cancel() {
	if s.cancelFunc != nil {
		s.cancelFunc()
		s.cancelFunc = nil
		s.cancelCtx = nil
	}
	s.Status = models.SessionIdle
}

// NewCancelToken cancels any prior token and derives a fresh one from
// parent. The returned context governs the next request.
func (s *Session) NewCancelToken(parent context.Context) context.Context {
	s.Cancel()
	s.cancelCtx, s.cancelFunc = context.WithCancel(parent)
	return s.cancelCtx
}

// IsExpired reports whether the session is idle past the timeout with no
// connected clients.
func (s *Session) IsExpired(timeout time.Duration) bool {
	return time.Since(s.LastActive) > timeout && !s.HasActiveClients()
}
