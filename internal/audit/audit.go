// Package audit appends a JSONL trail of tool executions and gateway
// lifecycle events, separate from operational logging so the record
// survives log level changes.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType categorizes audit entries.
type EventType string

const (
	EventToolExecution   EventType = "tool.execution"
	EventGatewayStartup  EventType = "gateway.startup"
	EventGatewayShutdown EventType = "gateway.shutdown"
	EventTaskExecution   EventType = "task.execution"
)

// Event is one audit entry. ID and Timestamp are filled on record when
// empty.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id,omitempty"`
	Tool      string         `json:"tool,omitempty"`
	Outcome   string         `json:"outcome,omitempty"`
	Duration  int64          `json:"duration_ms,omitempty"`
	Error     string         `json:"error,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// Trail writes events to an append-only JSONL file. A nil Trail discards
// everything, so callers need no enabled checks.
type Trail struct {
	mu   sync.Mutex
	file *os.File
}

// Open creates or appends to the trail at path, creating parent
// directories as needed.
func Open(path string) (*Trail, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &Trail{file: file}, nil
}

// Record appends one event.
func (t *Trail) Record(ev Event) error {
	if t == nil {
		return nil
	}
	if ev.ID == "" {
		ev.ID = "audit_" + uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	_, err = t.file.Write(append(data, '\n'))
	return err
}

// Close flushes and closes the underlying file.
func (t *Trail) Close() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.file.Close()
}
