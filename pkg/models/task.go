package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus tracks a background task through its lifecycle.
// Transitions are monotonic: Pending -> Running -> {Completed | Failed},
// with Cancelled reachable from any non-terminal state.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// IsTerminal reports whether the status is a final state.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

// TaskPriority orders dequeueing; higher values are served first.
type TaskPriority int

const (
	PriorityLow    TaskPriority = 0
	PriorityNormal TaskPriority = 1
	PriorityHigh   TaskPriority = 2
	PriorityUrgent TaskPriority = 3
)

// ParsePriority maps a wire string to a priority, defaulting to normal.
func ParsePriority(s string) TaskPriority {
	switch s {
	case "low":
		return PriorityLow
	case "high":
		return PriorityHigh
	case "urgent":
		return PriorityUrgent
	default:
		return PriorityNormal
	}
}

func (p TaskPriority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return "normal"
	}
}

// BackgroundTask is a unit of deferred work owned by the task queue.
// All timestamps are Unix milliseconds.
type BackgroundTask struct {
	// ID uniquely identifies the task.
	ID string `json:"id"`
	// UserID is the owner; notifications are routed by this.
	UserID string `json:"user_id"`
	// SessionID links back to the originating session, if any.
	SessionID string `json:"session_id,omitempty"`
	// Instruction is the natural-language work description.
	Instruction string `json:"instruction"`
	// Status is the current lifecycle state.
	Status TaskStatus `json:"status"`
	// Priority orders dequeueing.
	Priority TaskPriority `json:"priority"`
	// Result holds the output once completed.
	Result string `json:"result,omitempty"`
	// Error holds the failure reason once failed.
	Error string `json:"error,omitempty"`
	// CreatedAt is when the task was submitted.
	CreatedAt int64 `json:"created_at"`
	// StartedAt is when execution began, zero if never started.
	StartedAt int64 `json:"started_at,omitempty"`
	// CompletedAt is set on any terminal transition.
	CompletedAt int64 `json:"completed_at,omitempty"`
	// EstimatedDuration is an optional hint in seconds.
	EstimatedDuration int64 `json:"estimated_duration,omitempty"`
	// Progress is 0..100; forced to 100 on terminal transition.
	Progress int `json:"progress"`
	// Metadata carries adapter-specific extras.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewBackgroundTask builds a pending task with a fresh id.
func NewBackgroundTask(userID, sessionID, instruction string, priority TaskPriority) *BackgroundTask {
	return &BackgroundTask{
		ID:          uuid.NewString(),
		UserID:      userID,
		SessionID:   sessionID,
		Instruction: instruction,
		Status:      TaskPending,
		Priority:    priority,
		CreatedAt:   time.Now().UnixMilli(),
	}
}

// TaskNotification is emitted exactly once when a task reaches a
// terminal state.
type TaskNotification struct {
	TaskID      string     `json:"task_id"`
	UserID      string     `json:"user_id"`
	SessionID   string     `json:"session_id,omitempty"`
	Instruction string     `json:"instruction"`
	Status      TaskStatus `json:"status"`
	Result      string     `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
}
