package sessions

import (
	"context"
	"time"

	"github.com/strandhq/strand/internal/memory"
	"github.com/strandhq/strand/internal/observability"
	"github.com/strandhq/strand/pkg/models"
)

// Store is the session contract the gateway routes through. Both the
// in-memory and the SQLite-backed implementations satisfy it.
type Store interface {
	// GetOrCreate returns the user's active session id, creating one and
	// attaching the client when none exists.
	GetOrCreate(ctx context.Context, userID string, client models.ClientInfo) string

	// AddMessage appends one message to the session's conversation.
	AddMessage(ctx context.Context, sessionID string, msg models.Message)

	// GetContext returns the session's context manager, or nil.
	GetContext(ctx context.Context, sessionID string) *memory.ContextManager

	// SetContext replaces the session's context manager.
	SetContext(ctx context.Context, sessionID string, cm *memory.ContextManager)

	// SetStatus updates the session status.
	SetStatus(ctx context.Context, sessionID string, status models.SessionStatus)

	// Cancel trips the session's cancel token and resets it to idle.
	Cancel(ctx context.Context, sessionID string)

	// NewCancelToken replaces the session's cancel token and returns the
	// context governing the next request, or nil for unknown sessions.
	NewCancelToken(ctx context.Context, sessionID string) context.Context

	// RemoveClient detaches one platform connection.
	RemoveClient(ctx context.Context, sessionID string, platform models.SpokeType)

	// CleanupExpired removes idle sessions without clients and returns
	// how many were dropped.
	CleanupExpired(ctx context.Context) int

	// ActiveCount returns the number of live sessions.
	ActiveCount(ctx context.Context) int

	// GetUserSession returns the user's session id, or "".
	GetUserSession(ctx context.Context, userID string) string

	// GetHistory returns the most recent messages, oldest first. A
	// non-positive limit returns everything.
	GetHistory(ctx context.Context, sessionID string, limit int) []models.HistoryMessage

	// WithSession runs fn under the store lock with direct session
	// access. Returns false for unknown sessions.
	WithSession(ctx context.Context, sessionID string, fn func(*Session)) bool
}

// NewStore builds the durable store when dbPath is set, falling back to
// memory when the database cannot be opened.
func NewStore(dbPath string, maxContextTurns int, timeout time.Duration, logger *observability.Logger) Store {
	if dbPath != "" {
		store, err := NewSQLiteStore(dbPath, maxContextTurns, timeout, logger)
		if err == nil {
			if logger != nil {
				logger.Info(context.Background(), "session_store_ready", "backend", "sqlite", "path", dbPath)
			}
			return store
		}
		if logger != nil {
			logger.Warn(context.Background(), "session_store_fallback", "error", err.Error())
		}
	}
	return NewMemoryStore(maxContextTurns, timeout)
}
