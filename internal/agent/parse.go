package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PlanOutcome is the parsed planner output: either a tool call or a
// free-form response.
type PlanOutcome struct {
	Tool     string
	Args     json.RawMessage
	Response string
}

// IsToolCall reports whether the outcome dispatches a tool.
func (p PlanOutcome) IsToolCall() bool { return p.Tool != "" }

type toolCallPayload struct {
	Tool string          `json:"tool"`
	Args json.RawMessage `json:"args"`
}

// ParseOutput interprets raw planner text. A fenced ```json block wins;
// otherwise the first balanced JSON object is tried. Text without a JSON
// candidate, or a candidate too short or lacking a "tool" key, is treated
// as a plain response rather than a parse failure.
func ParseOutput(raw string) (PlanOutcome, error) {
	trimmed := strings.TrimSpace(raw)

	candidate, found := extractJSONCandidate(trimmed)
	if !found {
		return PlanOutcome{Response: trimmed}, nil
	}

	payload, err := parseToolJSON(candidate)
	if err != nil {
		if len(candidate) < 10 || !strings.Contains(candidate, `"tool"`) {
			return PlanOutcome{Response: trimmed}, nil
		}
		return PlanOutcome{}, &Error{
			Kind:   ErrJSONParse,
			Detail: fmt.Sprintf("%v: %s", err, candidate),
		}
	}
	if payload.Tool == "" {
		return PlanOutcome{Response: trimmed}, nil
	}
	args := payload.Args
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	return PlanOutcome{Tool: payload.Tool, Args: args}, nil
}

func extractJSONCandidate(text string) (string, bool) {
	if idx := strings.Index(text, "```json"); idx >= 0 {
		rest := text[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		return strings.TrimSpace(rest), true
	}
	if start := strings.Index(text, "{"); start >= 0 {
		if obj, ok := extractFirstJSONObject(text[start:]); ok {
			return obj, true
		}
	}
	return "", false
}

// extractFirstJSONObject scans for the first balanced object, tracking
// string and escape state so braces inside strings do not count.
func extractFirstJSONObject(text string) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i, r := range text {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[:i+1], true
				}
			}
		}
	}
	return "", false
}

// parseToolJSON tries progressively more tolerant decodings: verbatim,
// control characters stripped, then single quotes swapped for double.
func parseToolJSON(candidate string) (toolCallPayload, error) {
	var payload toolCallPayload
	if err := json.Unmarshal([]byte(candidate), &payload); err == nil {
		return payload, nil
	}

	cleaned := stripControlChars(candidate)
	if err := json.Unmarshal([]byte(cleaned), &payload); err == nil {
		return payload, nil
	}

	requoted := strings.ReplaceAll(cleaned, "'", `"`)
	err := json.Unmarshal([]byte(requoted), &payload)
	if err == nil {
		return payload, nil
	}
	return toolCallPayload{}, err
}

func stripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' || r >= 0x20 {
			b.WriteRune(r)
		}
	}
	return b.String()
}
