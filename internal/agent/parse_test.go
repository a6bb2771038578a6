package agent

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseOutputPlainText(t *testing.T) {
	out, err := ParseOutput("  The answer is 42.  ")
	if err != nil {
		t.Fatalf("ParseOutput() error = %v", err)
	}
	if out.IsToolCall() {
		t.Fatal("plain text parsed as tool call")
	}
	if out.Response != "The answer is 42." {
		t.Errorf("Response = %q", out.Response)
	}
}

func TestParseOutputFencedJSON(t *testing.T) {
	raw := "Let me check.\n```json\n{\"tool\": \"echo\", \"args\": {\"text\": \"hi\"}}\n```\nDone."
	out, err := ParseOutput(raw)
	if err != nil {
		t.Fatalf("ParseOutput() error = %v", err)
	}
	if out.Tool != "echo" {
		t.Errorf("Tool = %q, want echo", out.Tool)
	}
	var args map[string]string
	if err := json.Unmarshal(out.Args, &args); err != nil {
		t.Fatalf("args decode: %v", err)
	}
	if args["text"] != "hi" {
		t.Errorf("args.text = %q", args["text"])
	}
}

func TestParseOutputBareObject(t *testing.T) {
	out, err := ParseOutput(`I will call a tool: {"tool": "read_file", "args": {"path": "a.txt"}}`)
	if err != nil {
		t.Fatalf("ParseOutput() error = %v", err)
	}
	if out.Tool != "read_file" {
		t.Errorf("Tool = %q, want read_file", out.Tool)
	}
}

func TestParseOutputBracesInStrings(t *testing.T) {
	out, err := ParseOutput(`{"tool": "echo", "args": {"text": "a { b } c"}}`)
	if err != nil {
		t.Fatalf("ParseOutput() error = %v", err)
	}
	if out.Tool != "echo" {
		t.Errorf("Tool = %q", out.Tool)
	}
}

func TestParseOutputEmptyToolIsResponse(t *testing.T) {
	out, err := ParseOutput(`{"tool": "", "args": {}}`)
	if err != nil {
		t.Fatalf("ParseOutput() error = %v", err)
	}
	if out.IsToolCall() {
		t.Fatal("empty tool name should be a free-form response")
	}
}

func TestParseOutputSingleQuotes(t *testing.T) {
	out, err := ParseOutput(`{'tool': 'echo', 'args': {'text': 'hi'}}`)
	if err != nil {
		t.Fatalf("ParseOutput() error = %v", err)
	}
	if out.Tool != "echo" {
		t.Errorf("Tool = %q, want echo", out.Tool)
	}
}

func TestParseOutputMalformedToolJSON(t *testing.T) {
	_, err := ParseOutput(`{"tool": "echo", "args": {"text": hi}}`)
	if err == nil {
		t.Fatal("expected a parse error")
	}
	var aerr *Error
	if !errors.As(err, &aerr) || aerr.Kind != ErrJSONParse {
		t.Fatalf("error = %v, want json_parse_error", err)
	}
	if !strings.Contains(aerr.Detail, `"tool"`) {
		t.Errorf("Detail should carry the offending candidate, got %q", aerr.Detail)
	}
}

func TestParseOutputShortBracesAreResponse(t *testing.T) {
	out, err := ParseOutput("set {x} to 1")
	if err != nil {
		t.Fatalf("ParseOutput() error = %v", err)
	}
	if out.Response != "set {x} to 1" {
		t.Errorf("Response = %q", out.Response)
	}
}

func TestParseOutputUnbalancedBraces(t *testing.T) {
	out, err := ParseOutput("the set { 1, 2, 3 is open-ended")
	if err != nil {
		t.Fatalf("ParseOutput() error = %v", err)
	}
	if out.IsToolCall() {
		t.Fatal("unbalanced braces should fall back to response")
	}
}

func TestParseOutputMissingArgsDefaultsEmpty(t *testing.T) {
	out, err := ParseOutput(`{"tool": "list_dir"}`)
	if err != nil {
		t.Fatalf("ParseOutput() error = %v", err)
	}
	if string(out.Args) != "{}" {
		t.Errorf("Args = %s, want {}", out.Args)
	}
}
