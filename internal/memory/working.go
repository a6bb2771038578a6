package memory

import (
	"fmt"
	"strings"
)

// WorkingMemory is the mid-term tier: the goal of the current task plus what
// has been tried and what failed. It renders as a prompt section so the
// planner does not repeat dead ends within a turn.
type WorkingMemory struct {
	Goal     string
	Attempts []string
	Failures []string
}

func NewWorkingMemory() *WorkingMemory {
	return &WorkingMemory{}
}

func (w *WorkingMemory) SetGoal(goal string) {
	w.Goal = goal
}

// RecordAttempt notes one action, conventionally "tool -> summary".
func (w *WorkingMemory) RecordAttempt(attempt string) {
	w.Attempts = append(w.Attempts, attempt)
}

func (w *WorkingMemory) RecordFailure(failure string) {
	w.Failures = append(w.Failures, failure)
}

func (w *WorkingMemory) Clear() {
	w.Goal = ""
	w.Attempts = nil
	w.Failures = nil
}

// ToolNamesUsed extracts the tool name from each recorded attempt, keeping
// order and collapsing consecutive repeats.
func (w *WorkingMemory) ToolNamesUsed() []string {
	var out []string
	for _, a := range w.Attempts {
		name := strings.TrimSpace(strings.SplitN(a, " -> ", 2)[0])
		if name == "" {
			continue
		}
		if len(out) > 0 && out[len(out)-1] == name {
			continue
		}
		out = append(out, name)
	}
	return out
}

// PromptSection renders the working memory for injection into the system
// prompt. Empty when nothing has been recorded.
func (w *WorkingMemory) PromptSection() string {
	if w.Goal == "" && len(w.Attempts) == 0 && len(w.Failures) == 0 {
		return ""
	}
	var b strings.Builder
	if w.Goal != "" {
		fmt.Fprintf(&b, "## Current Goal\n%s\n\n", w.Goal)
	}
	if len(w.Attempts) > 0 {
		b.WriteString("## What has been tried\n")
		for _, a := range w.Attempts {
			fmt.Fprintf(&b, "- %s\n", a)
		}
		b.WriteString("\n")
	}
	if len(w.Failures) > 0 {
		b.WriteString("## Failures\n")
		for _, f := range w.Failures {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	return b.String()
}
