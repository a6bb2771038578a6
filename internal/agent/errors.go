package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/strandhq/strand/internal/llm"
	"github.com/strandhq/strand/internal/tools"
)

// ErrorKind names the failure classes the recovery engine maps to actions.
type ErrorKind string

const (
	ErrNetworkTimeout        ErrorKind = "network_timeout"
	ErrContextWindowExceeded ErrorKind = "context_window_exceeded"
	ErrJSONParse             ErrorKind = "json_parse_error"
	ErrToolExecutionFailed   ErrorKind = "tool_execution_failed"
	ErrToolTimeout           ErrorKind = "tool_timeout"
	ErrHallucinatedTool      ErrorKind = "hallucinated_tool"
	ErrLLM                   ErrorKind = "llm_error"
	ErrSuggestDowngrade      ErrorKind = "suggest_downgrade_model"
	ErrConfig                ErrorKind = "config_error"
	ErrPathEscape            ErrorKind = "path_escape"
	ErrCancelled             ErrorKind = "cancelled"
)

// Error is the agent-level failure taxonomy. Detail carries the variant
// payload: the raw text for JSON parse failures, the tool name for timeouts
// and hallucinations, the message for the rest.
type Error struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrNetworkTimeout:
		return "network timeout"
	case ErrContextWindowExceeded:
		return "context window exceeded"
	case ErrJSONParse:
		return fmt.Sprintf("invalid JSON from model: %s", e.Detail)
	case ErrToolExecutionFailed:
		return fmt.Sprintf("tool execution failed: %s", e.Detail)
	case ErrToolTimeout:
		return fmt.Sprintf("tool timed out: %s", e.Detail)
	case ErrHallucinatedTool:
		return fmt.Sprintf("hallucinated tool: %s", e.Detail)
	case ErrLLM:
		return fmt.Sprintf("llm error: %s", e.Detail)
	case ErrSuggestDowngrade:
		return e.Detail
	case ErrConfig:
		return fmt.Sprintf("config error: %s", e.Detail)
	case ErrPathEscape:
		return fmt.Sprintf("path escapes workspace: %s", e.Detail)
	case ErrCancelled:
		return "cancelled"
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an agent error of the given kind.
func NewError(kind ErrorKind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// KindOf extracts the classification of err, or "" for non-agent errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Classify folds provider and tool errors into the agent taxonomy. Already
// classified errors pass through unchanged.
func Classify(err error) *Error {
	var agentErr *Error
	if errors.As(err, &agentErr) {
		return agentErr
	}

	var llmErr *llm.Error
	if errors.As(err, &llmErr) {
		switch llmErr.Kind {
		case llm.KindContextWindow:
			return &Error{Kind: ErrContextWindowExceeded, Detail: llmErr.Message, Err: err}
		case llm.KindNetworkTimeout:
			return &Error{Kind: ErrNetworkTimeout, Detail: llmErr.Message, Err: err}
		case llm.KindCancelled:
			return &Error{Kind: ErrCancelled, Detail: llmErr.Message, Err: err}
		default:
			return &Error{Kind: ErrLLM, Detail: llmErr.Error(), Err: err}
		}
	}

	var timeoutErr *tools.TimeoutError
	if errors.As(err, &timeoutErr) {
		return &Error{Kind: ErrToolTimeout, Detail: timeoutErr.Tool, Err: err}
	}
	var unknownErr *tools.UnknownToolError
	if errors.As(err, &unknownErr) {
		return &Error{Kind: ErrHallucinatedTool, Detail: unknownErr.Name, Err: err}
	}
	var escapeErr *tools.PathEscapeError
	if errors.As(err, &escapeErr) {
		return &Error{Kind: ErrPathEscape, Detail: escapeErr.Path, Err: err}
	}

	if errors.Is(err, context.Canceled) {
		return &Error{Kind: ErrCancelled, Detail: "cancelled", Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: ErrNetworkTimeout, Detail: "deadline exceeded", Err: err}
	}
	return &Error{Kind: ErrToolExecutionFailed, Detail: err.Error(), Err: err}
}
