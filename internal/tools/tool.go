// Package tools provides the sandboxed tool surface the agent loop executes
// against: a registry with schema validation, filesystem/shell/fetch tools
// confined by path, command, and domain allowlists, and an executor that
// applies per-call timeouts and audit logging.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Tool is one capability the planner can invoke. Execute receives the raw
// JSON arguments from the model and returns the observation text. Errors are
// tool-level failures; they do not abort the agent loop.
type Tool interface {
	Name() string
	Description() string
	Schema() json.RawMessage
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}

// emptySchema accepts any object; tools without parameters return it.
var emptySchema = json.RawMessage(`{"type":"object","properties":{},"required":[]}`)

// UnknownToolError is returned when the planner names a tool that was never
// registered.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return "unknown tool: " + e.Name
}

// TimeoutError is returned when a tool call exceeds the executor deadline.
type TimeoutError struct {
	Tool string
}

func (e *TimeoutError) Error() string {
	return "tool timed out: " + e.Tool
}

// PathEscapeError is returned when a path argument resolves outside the
// sandbox root.
type PathEscapeError struct {
	Path string
}

func (e *PathEscapeError) Error() string {
	return fmt.Sprintf("path escapes workspace: %s", e.Path)
}

// stringArg extracts a string field from raw JSON args.
func stringArg(args json.RawMessage, key string) string {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(args, &m); err != nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(m[key], &s); err != nil {
		return ""
	}
	return s
}
