package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/strandhq/strand/internal/agent"
	"github.com/strandhq/strand/internal/observability"
	"github.com/strandhq/strand/internal/sessions"
	"github.com/strandhq/strand/pkg/models"
)

// Runtime runs agent turns for sessions and translates loop events into
// wire frames. It is shared across every connection the hub accepts.
type Runtime struct {
	loop    *agent.Loop
	store   sessions.Store
	logger  *observability.Logger
	metrics *observability.Metrics
	stats   *observability.Stats
}

func NewRuntime(loop *agent.Loop, store sessions.Store, logger *observability.Logger, metrics *observability.Metrics) *Runtime {
	return &Runtime{loop: loop, store: store, logger: logger, metrics: metrics, stats: observability.NewStats()}
}

// Stats exposes the always-on counters behind the admin /stats endpoint.
func (r *Runtime) Stats() *observability.Stats { return r.stats }

// turnRecorder is satisfied by the durable session store; the loop pushes
// messages into the context manager itself, so only the mirror-to-disk
// step is left for the runtime.
type turnRecorder interface {
	PersistTurn(ctx context.Context, sessionID string, msgs ...models.Message)
}

// ProcessMessage runs one agent turn. Every event the loop emits is
// forwarded through send; the final frame is always a ResponseEnd on
// success or an Error on failure.
func (r *Runtime) ProcessMessage(ctx context.Context, sessionID, content string, send func(models.GatewayMessage)) (string, error) {
	requestID := uuid.NewString()

	cm := r.store.GetContext(ctx, sessionID)
	if cm == nil {
		err := fmt.Errorf("unknown session: %s", sessionID)
		send(models.NewGatewayMessage(sessionID, errorFrame(requestID, "runtime_error", err.Error())))
		return "", err
	}

	r.store.SetStatus(ctx, sessionID, models.SessionProcessing)
	send(models.NewGatewayMessage(sessionID, models.Frame{Type: models.KindResponseStart, RequestID: requestID}))

	runCtx := r.store.NewCancelToken(ctx, sessionID)
	if runCtx == nil {
		runCtx = ctx
	}

	sink := agent.FuncSink(func(_ context.Context, ev agent.Event) {
		switch ev.Type {
		case agent.EventObservation:
			r.stats.ToolCall(false)
		case agent.EventToolFailure:
			r.stats.ToolCall(true)
		case agent.EventTokenUsage:
			r.stats.LLMRequest(ev.TotalTokens)
		}
		if frame, ok := translateEvent(ev, requestID); ok {
			send(models.NewGatewayMessage(sessionID, frame))
		}
	})

	r.stats.TurnStarted()
	result, err := r.loop.Run(runCtx, cm, content, sink)
	r.store.SetStatus(ctx, sessionID, models.SessionIdle)

	if err != nil {
		r.stats.TurnFailed()
		if r.logger != nil {
			r.logger.Warn(context.Background(), "turn_failed", "session_id", sessionID, "error", err.Error())
		}
		send(models.NewGatewayMessage(sessionID, errorFrame(requestID, "runtime_error", err.Error())))
		return "", err
	}

	r.stats.TurnCompleted()
	if recorder, ok := r.store.(turnRecorder); ok {
		recorder.PersistTurn(ctx, sessionID,
			models.UserMessage(content),
			models.AssistantMessage(result.Response))
	}

	send(models.NewGatewayMessage(sessionID, models.Frame{
		Type:        models.KindResponseEnd,
		RequestID:   requestID,
		FullContent: result.Response,
	}))
	return result.Response, nil
}

// Cancel trips the session's cancel token.
func (r *Runtime) Cancel(ctx context.Context, sessionID string) {
	r.store.Cancel(ctx, sessionID)
}

// History returns the session's recent messages, oldest first.
func (r *Runtime) History(ctx context.Context, sessionID string, limit int) []models.HistoryMessage {
	return r.store.GetHistory(ctx, sessionID, limit)
}

// translateEvent maps a loop event onto its wire frame. Loop-internal
// events (step updates, memory previews, token usage, recovery notes)
// have no frame and are dropped.
func translateEvent(ev agent.Event, requestID string) (models.Frame, bool) {
	switch ev.Type {
	case agent.EventThinkingContent:
		return models.Frame{Type: models.KindThinking, RequestID: requestID, Content: ev.Text}, true
	case agent.EventToolCall:
		return models.Frame{
			Type:      models.KindToolCall,
			RequestID: requestID,
			ToolName:  ev.Tool,
			Arguments: string(ev.Args),
		}, true
	case agent.EventObservation:
		return models.Frame{
			Type:      models.KindToolResult,
			RequestID: requestID,
			ToolName:  ev.Tool,
			Result:    ev.Preview,
			Success:   models.BoolPtr(true),
		}, true
	case agent.EventToolFailure:
		return models.Frame{
			Type:      models.KindToolResult,
			RequestID: requestID,
			ToolName:  ev.Tool,
			Result:    ev.Reason,
			Success:   models.BoolPtr(false),
		}, true
	case agent.EventMessageChunk:
		return models.Frame{Type: models.KindResponseChunk, RequestID: requestID, Content: ev.Text}, true
	case agent.EventError:
		return errorFrame(requestID, "react_error", ev.Text), true
	default:
		return models.Frame{}, false
	}
}

func errorFrame(requestID, code, message string) models.Frame {
	return models.Frame{Type: models.KindError, RequestID: requestID, Code: code, Message: message}
}
