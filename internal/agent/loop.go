// Package agent implements the ReAct loop: plan with the LLM, parse the
// output into a tool call or a final response, execute tools under the
// concurrency scheduler, and feed observations back into memory until the
// model answers or the step budget runs out.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/strandhq/strand/internal/llm"
	"github.com/strandhq/strand/internal/memory"
	"github.com/strandhq/strand/internal/observability"
	"github.com/strandhq/strand/internal/tools"
	"github.com/strandhq/strand/pkg/models"
)

const (
	// MaxSteps bounds plan/act iterations per user turn.
	MaxSteps = 20
	// CompactThreshold triggers context compaction when the conversation
	// grows past this many messages.
	CompactThreshold = 24

	chunkChars              = 6
	observationPreviewChars = 200
	thinkingPreviewChars    = 800
	memoryPreviewChars      = 300
)

// failureMarkers in an observation suppress the critic; there is no point
// reviewing output the loop already knows is broken.
var failureMarkers = []string{"FAILED", "ERROR", "ACCESS RESTRICTED", "TIMEOUT"}

// Result is the outcome of one completed user turn.
type Result struct {
	Response string
	Messages []models.Message
}

// Loop drives the plan/act/observe cycle for one session at a time. The
// zero value is unusable; wire at least Planner and Executor.
type Loop struct {
	Planner  *Planner
	Executor *tools.Executor
	Recovery RecoveryEngine

	// Critic, when non-nil, reviews tool observations.
	Critic *Critic
	// Scheduler, when non-nil, gates tool calls through a semaphore.
	Scheduler *tools.Scheduler

	Logger  *observability.Logger
	Metrics *observability.Metrics

	// SystemOverride replaces the planner's base prompt when non-empty.
	SystemOverride string
	// AllowedTools restricts dispatch to a subset of registered tools.
	// Empty means every registered tool is callable.
	AllowedTools []string
	// IncludeToolSchema injects the registry's JSON schema listing into
	// the composed system prompt.
	IncludeToolSchema bool
}

type nopSink struct{}

func (nopSink) Emit(context.Context, Event) {}

// Run executes one user turn against the given context. Events stream to
// sink as the loop progresses; the returned Result carries the final
// response and a snapshot of the conversation.
func (l *Loop) Run(ctx context.Context, cm *memory.ContextManager, userInput string, sink EventSink) (*Result, error) {
	if sink == nil {
		sink = nopSink{}
	}

	cm.PushMessage(models.UserMessage(userInput))
	cm.Working.SetGoal(userInput)
	if pref, ok := extractRememberContent(userInput); ok {
		cm.AppendPreference(pref)
		cm.PushToLongTerm("User preference: " + pref)
	}

	initialUsage := l.Planner.TokenUsage()
	basePrompt := l.Planner.BasePrompt()
	if l.SystemOverride != "" {
		basePrompt = l.SystemOverride
	}
	toolSchema := ""
	if l.IncludeToolSchema {
		if schema := l.Executor.Registry().SchemaJSON(); schema != "" {
			toolSchema = "## Available Tools\n\n" + schema
		}
	}

	lastOutput := ""
	for step := 0; ; step++ {
		sink.Emit(ctx, StepUpdateEvent(step, MaxSteps))

		if ctx.Err() != nil {
			sink.Emit(ctx, ErrorEvent("Cancelled"))
			l.recordStep("cancelled")
			return nil, NewError(ErrCancelled, "cancelled")
		}
		if step >= MaxSteps {
			l.recordStep("max_steps")
			response := fmt.Sprintf("达到最大步数限制 (%d)，最后输出：\n%s", MaxSteps, lastOutput)
			return &Result{Response: response, Messages: cm.Messages()}, nil
		}

		if len(cm.Messages()) > CompactThreshold {
			if err := l.compactContext(ctx, cm); err != nil {
				sink.Emit(ctx, ErrorEvent("compaction failed: "+err.Error()))
				if l.Logger != nil {
					l.Logger.Warn(ctx, "compaction_failed", "error", err.Error())
				}
			}
		}

		longTerm := cm.LongTermSection(userInput)
		if longTerm != "" {
			sink.Emit(ctx, MemoryRecoveryEvent(preview(longTerm, memoryPreviewChars)))
		}
		system := cm.ComposeWithSections(basePrompt, toolSchema, longTerm)

		sink.Emit(ctx, ThinkingEvent())
		output, err := l.Planner.PlanWithSystem(ctx, cm.ToLLMMessages(), system)
		if err != nil {
			done, rerr := l.recoverPlanFailure(ctx, cm, sink, Classify(err))
			if done {
				return nil, rerr
			}
			continue
		}
		lastOutput = output
		sink.Emit(ctx, ThinkingContentEvent(preview(output, thinkingPreviewChars)))

		outcome, perr := ParseOutput(output)
		if perr != nil {
			done, rerr := l.recoverParseFailure(ctx, cm, sink, Classify(perr))
			if done {
				return nil, rerr
			}
			continue
		}

		if !outcome.IsToolCall() {
			return l.finishTurn(ctx, cm, sink, userInput, outcome.Response, initialUsage), nil
		}

		if err := l.executeTool(ctx, cm, sink, userInput, outcome); err != nil {
			return nil, err
		}
	}
}

// recoverPlanFailure applies the recovery decision for a failed LLM call.
// done=true means the turn is over and rerr is the error to surface.
func (l *Loop) recoverPlanFailure(ctx context.Context, cm *memory.ContextManager, sink EventSink, aerr *Error) (bool, error) {
	action := l.Recovery.Handle(aerr)
	l.recordRecovery(action.Kind)

	switch action.Kind {
	case ActionRetryWithPrompt:
		sink.Emit(ctx, RecoveryEvent(string(action.Kind), action.Detail))
		cm.PushMessage(models.UserMessage(action.Detail))
		return false, nil
	case ActionSummarizeAndPrune:
		sink.Emit(ctx, RecoveryEvent(string(action.Kind), ""))
		if err := l.compactContext(ctx, cm); err != nil {
			sink.Emit(ctx, ErrorEvent(err.Error()))
			return true, err
		}
		return false, nil
	case ActionDowngradeModel:
		sink.Emit(ctx, RecoveryEvent(string(action.Kind), "建议切换至轻量模型"))
		return true, NewError(ErrSuggestDowngrade, "LLM 调用失败，建议切换至轻量模型或检查网络与 API Key。")
	default:
		sink.Emit(ctx, RecoveryEvent(string(action.Kind), action.Detail))
		sink.Emit(ctx, ErrorEvent(aerr.Error()))
		return true, aerr
	}
}

// recoverParseFailure handles unparseable planner output. Only a retry
// keeps the turn alive.
func (l *Loop) recoverParseFailure(ctx context.Context, cm *memory.ContextManager, sink EventSink, aerr *Error) (bool, error) {
	action := l.Recovery.Handle(aerr)
	l.recordRecovery(action.Kind)

	if action.Kind == ActionRetryWithPrompt {
		sink.Emit(ctx, RecoveryEvent(string(action.Kind), action.Detail))
		cm.PushMessage(models.UserMessage(action.Detail))
		return false, nil
	}
	sink.Emit(ctx, RecoveryEvent(string(action.Kind), action.Detail))
	sink.Emit(ctx, ErrorEvent(aerr.Error()))
	return true, aerr
}

// finishTurn streams the final response, persists it across memory tiers,
// and reports token usage.
func (l *Loop) finishTurn(ctx context.Context, cm *memory.ContextManager, sink EventSink, userInput, response string, initial llm.TokenUsage) *Result {
	for _, chunk := range chunkRunes(response, chunkChars) {
		sink.Emit(ctx, MessageChunkEvent(chunk))
	}
	sink.Emit(ctx, MessageDoneEvent())

	cm.PushMessage(models.AssistantMessage(response))
	sink.Emit(ctx, MemoryConsolidationEvent(preview(response, memoryPreviewChars)))
	cm.PushToLongTerm(response)

	cumulative := l.Planner.TokenUsage()
	sink.Emit(ctx, TokenUsageEvent(usageDelta(initial, cumulative), cumulative))

	cm.PushSessionStrategy(userInput, cm.Working.ToolNamesUsed())
	l.recordStep("response")
	return &Result{Response: response, Messages: cm.Messages()}
}

// executeTool dispatches one tool call and feeds the observation back into
// conversation and working memory. A hallucinated tool name ends the turn.
func (l *Loop) executeTool(ctx context.Context, cm *memory.ContextManager, sink EventSink, userInput string, call PlanOutcome) error {
	sink.Emit(ctx, ToolCallEvent(call.Tool, call.Args))

	effective := l.AllowedTools
	if len(effective) == 0 {
		effective = l.Executor.Names()
	}
	if !containsString(effective, call.Tool) {
		cm.AppendHallucinationLesson(call.Tool, effective)
		sink.Emit(ctx, ErrorEvent("Hallucinated tool: "+call.Tool))
		l.recordStep("hallucinated_tool")
		return NewError(ErrHallucinatedTool, call.Tool)
	}

	if l.Scheduler != nil {
		release, err := l.Scheduler.AcquireTool(ctx)
		if err != nil {
			sink.Emit(ctx, ErrorEvent("Cancelled"))
			return NewError(ErrCancelled, "cancelled while waiting for a tool slot")
		}
		defer release()
	}

	result, execErr := l.Executor.Execute(ctx, call.Tool, call.Args)
	var observation string
	if execErr != nil {
		cm.Working.RecordFailure(call.Tool + ": " + execErr.Error())
		cm.AppendProceduralRecord(call.Tool, false, execErr.Error())
		sink.Emit(ctx, ToolFailureEvent(call.Tool, execErr.Error()))
		observation = "Error: " + execErr.Error()
	} else {
		observation = result
		if cm.RecordToolSuccess {
			cm.AppendProceduralRecord(call.Tool, true, preview(observation, 100))
		}
	}

	sink.Emit(ctx, ObservationEvent(call.Tool, preview(observation, observationPreviewChars)))
	cm.Working.RecordAttempt(call.Tool + " -> " + observation)

	if l.Critic != nil && !indicatesFailure(observation) {
		verdict, cerr := l.Critic.Evaluate(ctx, userInput, call.Tool, observation)
		if cerr == nil && verdict.Correction != "" {
			sink.Emit(ctx, RecoveryEvent("critic", verdict.Correction))
			cm.AppendCriticLesson(verdict.Correction)
			cm.PushMessage(models.UserMessage("Critic 建议：" + verdict.Correction))
		}
	}

	cm.PushMessage(models.AssistantMessage("Tool call: " + call.Tool + " | Result: " + observation))
	cm.PushMessage(models.UserMessage("Observation from " + call.Tool + ": " + observation))
	l.recordStep("tool_call")
	return nil
}

// compactContext summarizes the conversation into long-term memory and
// replaces the message list with a single summary message.
func (l *Loop) compactContext(ctx context.Context, cm *memory.ContextManager) error {
	msgs := cm.Messages()
	if len(msgs) < 2 {
		return nil
	}
	summary, err := l.Planner.Summarize(ctx, msgs)
	if err != nil {
		return err
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return nil
	}
	cm.PushToLongTerm("Conversation summary: " + summary)
	cm.SetMessages([]models.Message{
		models.SystemMessage("Previous conversation summary:\n\n" + summary),
	})
	return nil
}

func (l *Loop) recordStep(outcome string) {
	if l.Metrics != nil {
		l.Metrics.RecordReactStep(outcome)
	}
}

func (l *Loop) recordRecovery(kind ActionKind) {
	if l.Metrics != nil {
		l.Metrics.RecordRecovery(string(kind))
	}
}

// extractRememberContent pulls the preference text out of a "记住：xxx"
// style instruction.
func extractRememberContent(input string) (string, bool) {
	idx := strings.Index(input, "记住")
	if idx < 0 {
		return "", false
	}
	rest := input[idx+len("记住"):]
	for _, sep := range []string{"：", ":"} {
		if i := strings.Index(rest, sep); i >= 0 {
			if content := strings.TrimSpace(rest[i+len(sep):]); content != "" {
				return content, true
			}
		}
	}
	return "", false
}

func indicatesFailure(observation string) bool {
	upper := strings.ToUpper(observation)
	for _, marker := range failureMarkers {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func chunkRunes(s string, size int) []string {
	runes := []rune(s)
	if len(runes) == 0 {
		return nil
	}
	chunks := make([]string, 0, len(runes)/size+1)
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func usageDelta(initial, current llm.TokenUsage) llm.TokenUsage {
	return llm.TokenUsage{
		PromptTokens:     saturatingSub(current.PromptTokens, initial.PromptTokens),
		CompletionTokens: saturatingSub(current.CompletionTokens, initial.CompletionTokens),
		TotalTokens:      saturatingSub(current.TotalTokens, initial.TotalTokens),
	}
}

func saturatingSub(a, b int) int {
	if a < b {
		return 0
	}
	return a - b
}
