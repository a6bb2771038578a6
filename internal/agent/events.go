package agent

import (
	"context"
	"encoding/json"

	"github.com/strandhq/strand/internal/llm"
)

// EventType tags the payload variant of a loop event.
type EventType string

const (
	EventStepUpdate          EventType = "step_update"
	EventThinking            EventType = "thinking"
	EventThinkingContent     EventType = "thinking_content"
	EventToolCall            EventType = "tool_call"
	EventObservation         EventType = "observation"
	EventToolFailure         EventType = "tool_failure"
	EventRecovery            EventType = "recovery"
	EventMemoryRecovery      EventType = "memory_recovery"
	EventMemoryConsolidation EventType = "memory_consolidation"
	EventMessageChunk        EventType = "message_chunk"
	EventMessageDone         EventType = "message_done"
	EventTokenUsage          EventType = "token_usage"
	EventError               EventType = "error"
)

// Event is the tagged union emitted per loop step. Only the fields of the
// Type are populated. Step is a pointer because step zero must survive
// serialization.
type Event struct {
	Type EventType `json:"type"`

	// step_update
	Step     *int `json:"step,omitempty"`
	MaxSteps int  `json:"max_steps,omitempty"`

	// thinking_content, message_chunk, error
	Text string `json:"text,omitempty"`

	// tool_call, observation, tool_failure
	Tool string          `json:"tool,omitempty"`
	Args json.RawMessage `json:"args,omitempty"`

	// observation, memory_recovery, memory_consolidation
	Preview string `json:"preview,omitempty"`

	// tool_failure
	Reason string `json:"reason,omitempty"`

	// recovery
	Action string `json:"action,omitempty"`
	Detail string `json:"detail,omitempty"`

	// token_usage
	PromptTokens         int `json:"prompt_tokens,omitempty"`
	CompletionTokens     int `json:"completion_tokens,omitempty"`
	TotalTokens          int `json:"total_tokens,omitempty"`
	CumulativePrompt     int `json:"cumulative_prompt,omitempty"`
	CumulativeCompletion int `json:"cumulative_completion,omitempty"`
	CumulativeTotal      int `json:"cumulative_total,omitempty"`
}

// StepUpdateEvent marks the start of one loop step.
func StepUpdateEvent(step, maxSteps int) Event {
	s := step
	return Event{Type: EventStepUpdate, Step: &s, MaxSteps: maxSteps}
}

// ThinkingEvent marks the start of a planner call.
func ThinkingEvent() Event { return Event{Type: EventThinking} }

// ThinkingContentEvent carries a preview of the raw planner output.
func ThinkingContentEvent(text string) Event {
	return Event{Type: EventThinkingContent, Text: text}
}

// ToolCallEvent announces a tool dispatch.
func ToolCallEvent(tool string, args json.RawMessage) Event {
	return Event{Type: EventToolCall, Tool: tool, Args: args}
}

// ObservationEvent carries a preview of one tool result.
func ObservationEvent(tool, preview string) Event {
	return Event{Type: EventObservation, Tool: tool, Preview: preview}
}

// ToolFailureEvent reports a failed tool call.
func ToolFailureEvent(tool, reason string) Event {
	return Event{Type: EventToolFailure, Tool: tool, Reason: reason}
}

// RecoveryEvent reports a recovery decision.
func RecoveryEvent(action, detail string) Event {
	return Event{Type: EventRecovery, Action: action, Detail: detail}
}

// MemoryRecoveryEvent previews long-term knowledge injected into the prompt.
func MemoryRecoveryEvent(preview string) Event {
	return Event{Type: EventMemoryRecovery, Preview: preview}
}

// MemoryConsolidationEvent previews content written back to long-term memory.
func MemoryConsolidationEvent(preview string) Event {
	return Event{Type: EventMemoryConsolidation, Preview: preview}
}

// MessageChunkEvent streams one fragment of the final response.
func MessageChunkEvent(text string) Event {
	return Event{Type: EventMessageChunk, Text: text}
}

// MessageDoneEvent terminates the response stream.
func MessageDoneEvent() Event { return Event{Type: EventMessageDone} }

// TokenUsageEvent reports the turn delta and the session cumulative counts.
func TokenUsageEvent(delta, cumulative llm.TokenUsage) Event {
	return Event{
		Type:                 EventTokenUsage,
		PromptTokens:         delta.PromptTokens,
		CompletionTokens:     delta.CompletionTokens,
		TotalTokens:          delta.TotalTokens,
		CumulativePrompt:     cumulative.PromptTokens,
		CumulativeCompletion: cumulative.CompletionTokens,
		CumulativeTotal:      cumulative.TotalTokens,
	}
}

// ErrorEvent reports a loop failure.
func ErrorEvent(text string) Event { return Event{Type: EventError, Text: text} }

// EventSink receives loop events during a turn. Implementations must be
// safe for concurrent use and should not block.
type EventSink interface {
	Emit(ctx context.Context, e Event)
}

// ChanSink forwards events to a channel, dropping when the channel is full
// or the context is cancelled.
type ChanSink struct {
	ch chan<- Event
}

// NewChanSink wraps a channel. Buffer it to avoid dropped events.
func NewChanSink(ch chan<- Event) *ChanSink {
	return &ChanSink{ch: ch}
}

func (s *ChanSink) Emit(ctx context.Context, e Event) {
	select {
	case s.ch <- e:
	case <-ctx.Done():
	default:
	}
}

// FuncSink adapts a function to the EventSink interface.
type FuncSink func(ctx context.Context, e Event)

func (f FuncSink) Emit(ctx context.Context, e Event) { f(ctx, e) }

// MultiSink fans out events to several sinks, skipping nil entries.
type MultiSink struct {
	sinks []EventSink
}

func NewMultiSink(sinks ...EventSink) *MultiSink {
	filtered := make([]EventSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return &MultiSink{sinks: filtered}
}

func (s *MultiSink) Emit(ctx context.Context, e Event) {
	for _, sink := range s.sinks {
		sink.Emit(ctx, e)
	}
}
