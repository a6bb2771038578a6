package models

import (
	"time"

	"github.com/google/uuid"
)

// FrameKind tags the payload variant of a gateway frame.
type FrameKind string

const (
	KindAuth          FrameKind = "auth"
	KindAuthResult    FrameKind = "auth_result"
	KindUserMessage   FrameKind = "user_message"
	KindResponseStart FrameKind = "response_start"
	KindResponseChunk FrameKind = "response_chunk"
	KindResponseEnd   FrameKind = "response_end"
	KindToolCall      FrameKind = "tool_call"
	KindToolResult    FrameKind = "tool_result"
	KindThinking      FrameKind = "thinking"
	KindError         FrameKind = "error"
	KindSessionUpdate FrameKind = "session_update"
	KindPing          FrameKind = "ping"
	KindPong          FrameKind = "pong"
	KindCancel        FrameKind = "cancel"
	KindGetHistory    FrameKind = "get_history"
	KindHistory       FrameKind = "history"
	KindTaskComplete  FrameKind = "task_complete"
	KindSubmitTask    FrameKind = "submit_task"
	KindTaskSubmitted FrameKind = "task_submitted"
	KindGetTaskStatus FrameKind = "get_task_status"
	KindTaskStatus    FrameKind = "task_status"
)

// Frame is the tagged union carried in a GatewayMessage. Only the fields
// belonging to the Type are populated; the rest stay at their zero value
// and are elided from the wire. Boolean fields that must appear even when
// false use pointers so constructors can force their presence.
type Frame struct {
	Type FrameKind `json:"type"`

	// auth
	Token      string      `json:"token,omitempty"`
	ClientInfo *ClientInfo `json:"client_info,omitempty"`

	// auth_result, tool_result, task_complete
	Success *bool `json:"success,omitempty"`

	// auth_result, error
	Message string `json:"message,omitempty"`

	// user_message
	Content     string `json:"content,omitempty"`
	AssistantID string `json:"assistant_id,omitempty"`
	Model       string `json:"model,omitempty"`

	// streaming frames
	RequestID   string `json:"request_id,omitempty"`
	FullContent string `json:"full_content,omitempty"`

	// tool_call / tool_result
	ToolName  string `json:"tool_name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	Result    string `json:"result,omitempty"`

	// error
	Code string `json:"code,omitempty"`

	// session_update
	Status string `json:"status,omitempty"`

	// ping / pong
	Timestamp int64 `json:"timestamp,omitempty"`

	// get_history / history
	Limit    int              `json:"limit,omitempty"`
	Messages []HistoryMessage `json:"messages,omitempty"`

	// tasks
	TaskID      string `json:"task_id,omitempty"`
	Instruction string `json:"instruction,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Progress    *int   `json:"progress,omitempty"`
	Error       string `json:"error,omitempty"`

	// auth_result and task-related frames reuse SessionID via the envelope.
	SessionID string `json:"session_id,omitempty"`
}

// GatewayMessage is the envelope for every frame on the wire, NDJSON or
// WebSocket alike. Timestamp is Unix milliseconds.
type GatewayMessage struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id,omitempty"`
	Message   Frame  `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// NewGatewayMessage wraps a frame in a fresh envelope.
func NewGatewayMessage(sessionID string, frame Frame) GatewayMessage {
	return GatewayMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Message:   frame,
		Timestamp: time.Now().UnixMilli(),
	}
}

// ErrorMessage builds an error envelope without a session.
func ErrorMessage(code, message string) GatewayMessage {
	return NewGatewayMessage("", Frame{Type: KindError, Code: code, Message: message})
}

// PongMessage echoes a ping timestamp.
func PongMessage(timestamp int64) GatewayMessage {
	return NewGatewayMessage("", Frame{Type: KindPong, Timestamp: timestamp})
}

// BoolPtr is a convenience for the pointer fields of Frame.
func BoolPtr(b bool) *bool { return &b }

// IntPtr is a convenience for the pointer fields of Frame.
func IntPtr(i int) *int { return &i }
