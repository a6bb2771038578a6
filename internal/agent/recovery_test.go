package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/strandhq/strand/internal/llm"
	"github.com/strandhq/strand/internal/tools"
)

func TestRecoveryMapping(t *testing.T) {
	engine := RecoveryEngine{}
	cases := []struct {
		kind ErrorKind
		want ActionKind
	}{
		{ErrJSONParse, ActionRetryWithPrompt},
		{ErrContextWindowExceeded, ActionSummarizeAndPrune},
		{ErrHallucinatedTool, ActionAskUser},
		{ErrToolTimeout, ActionAskUser},
		{ErrToolExecutionFailed, ActionAskUser},
		{ErrNetworkTimeout, ActionRetryWithPrompt},
		{ErrLLM, ActionDowngradeModel},
		{ErrCancelled, ActionAbort},
		{ErrConfig, ActionAbort},
	}
	for _, tc := range cases {
		got := engine.Handle(NewError(tc.kind, "x"))
		if got.Kind != tc.want {
			t.Errorf("Handle(%s) = %s, want %s", tc.kind, got.Kind, tc.want)
		}
	}
}

func TestRecoveryJSONRetryCarriesRawText(t *testing.T) {
	action := RecoveryEngine{}.Handle(NewError(ErrJSONParse, `{"tool": broken`))
	if !strings.Contains(action.Detail, `{"tool": broken`) {
		t.Errorf("retry prompt should quote the bad output, got %q", action.Detail)
	}
	if !strings.Contains(action.Detail, `{"tool": "工具名", "args": {...}}`) {
		t.Errorf("retry prompt should restate the format, got %q", action.Detail)
	}
}

func TestRecoveryHallucinationNamesTool(t *testing.T) {
	action := RecoveryEngine{}.Handle(NewError(ErrHallucinatedTool, "make_coffee"))
	if !strings.Contains(action.Detail, "make_coffee") {
		t.Errorf("question should name the tool, got %q", action.Detail)
	}
}

func TestClassifyLLMErrors(t *testing.T) {
	cases := []struct {
		kind llm.ErrorKind
		want ErrorKind
	}{
		{llm.KindContextWindow, ErrContextWindowExceeded},
		{llm.KindNetworkTimeout, ErrNetworkTimeout},
		{llm.KindCancelled, ErrCancelled},
		{llm.KindRateLimit, ErrLLM},
		{llm.KindServer, ErrLLM},
	}
	for _, tc := range cases {
		got := Classify(llm.NewError(tc.kind, "boom", nil))
		if got.Kind != tc.want {
			t.Errorf("Classify(%s) = %s, want %s", tc.kind, got.Kind, tc.want)
		}
	}
}

func TestClassifyToolErrors(t *testing.T) {
	if got := Classify(&tools.TimeoutError{Tool: "shell"}); got.Kind != ErrToolTimeout || got.Detail != "shell" {
		t.Errorf("timeout classified as %s/%s", got.Kind, got.Detail)
	}
	if got := Classify(&tools.PathEscapeError{Path: "../x"}); got.Kind != ErrPathEscape {
		t.Errorf("path escape classified as %s", got.Kind)
	}
	if got := Classify(errors.New("disk full")); got.Kind != ErrToolExecutionFailed {
		t.Errorf("generic error classified as %s", got.Kind)
	}
}

func TestClassifyContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := Classify(ctx.Err()); got.Kind != ErrCancelled {
		t.Errorf("Classify(context.Canceled) = %s", got.Kind)
	}
}

func TestClassifyPassesAgentErrorsThrough(t *testing.T) {
	orig := NewError(ErrJSONParse, "raw")
	if got := Classify(orig); got != orig {
		t.Error("already classified error should pass through unchanged")
	}
}
