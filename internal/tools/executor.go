package tools

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/strandhq/strand/internal/audit"
	"github.com/strandhq/strand/internal/observability"
)

// argsPreviewLen bounds how much of the arguments lands in the audit record.
const argsPreviewLen = 200

// Executor wraps the registry with a global per-call timeout and an audit
// trail. Timeouts surface as TimeoutError so the agent loop can distinguish
// them from ordinary tool failures.
type Executor struct {
	registry *Registry
	timeout  time.Duration
	logger   *observability.Logger
	metrics  *observability.Metrics
	audit    *audit.Trail
}

func NewExecutor(registry *Registry, timeout time.Duration, logger *observability.Logger, metrics *observability.Metrics) *Executor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Executor{registry: registry, timeout: timeout, logger: logger, metrics: metrics}
}

// WithAudit attaches a durable audit trail. A nil trail is ignored.
func (e *Executor) WithAudit(trail *audit.Trail) *Executor {
	e.audit = trail
	return e
}

// Registry exposes the underlying registry for prompt construction.
func (e *Executor) Registry() *Registry { return e.registry }

// Names returns the registered tool names.
func (e *Executor) Names() []string { return e.registry.Names() }

// Execute runs one tool call under the executor timeout and writes an audit
// record with the outcome and duration.
func (e *Executor) Execute(ctx context.Context, name string, args json.RawMessage) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	result, err := e.run(callCtx, name, args)
	duration := time.Since(start)

	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(callCtx.Err(), context.DeadlineExceeded):
		err = &TimeoutError{Tool: name}
		outcome = "timeout"
	default:
		outcome = "error"
	}

	if e.metrics != nil {
		e.metrics.RecordToolExecution(name, outcome, duration.Seconds())
	}
	if e.logger != nil {
		e.logger.Info(ctx, "tool_audit",
			"tool", name,
			"ok", err == nil,
			"outcome", outcome,
			"duration_ms", duration.Milliseconds(),
			"args_preview", previewArgs(args),
		)
	}
	if e.audit != nil {
		ev := audit.Event{
			Type:     audit.EventToolExecution,
			Tool:     name,
			Outcome:  outcome,
			Duration: duration.Milliseconds(),
			Detail:   map[string]any{"args_preview": previewArgs(args)},
		}
		if err != nil {
			ev.Error = err.Error()
		}
		if recordErr := e.audit.Record(ev); recordErr != nil && e.logger != nil {
			e.logger.Warn(ctx, "audit_write_failed", "error", recordErr.Error())
		}
	}
	return result, err
}

// run isolates the dispatch so Execute can observe ctx state afterwards even
// if the tool swallows cancellation.
func (e *Executor) run(ctx context.Context, name string, args json.RawMessage) (string, error) {
	type outcome struct {
		result string
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		r, err := e.registry.Execute(ctx, name, args)
		done <- outcome{result: r, err: err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case o := <-done:
		return o.result, o.err
	}
}

func previewArgs(args json.RawMessage) string {
	s := string(args)
	if runes := []rune(s); len(runes) > argsPreviewLen {
		return string(runes[:argsPreviewLen]) + "..."
	}
	return s
}
