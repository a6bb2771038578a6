package memory

import (
	"reflect"
	"strings"
	"testing"
)

func TestWorkingMemoryPromptSection(t *testing.T) {
	w := NewWorkingMemory()
	if w.PromptSection() != "" {
		t.Fatal("empty working memory should render nothing")
	}

	w.SetGoal("summarize the report")
	w.RecordAttempt("read_file -> loaded report.md")
	w.RecordFailure("shell: command not in allowlist")

	out := w.PromptSection()
	for _, want := range []string{
		"## Current Goal\nsummarize the report",
		"## What has been tried\n- read_file -> loaded report.md",
		"## Failures\n- shell: command not in allowlist",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("section missing %q:\n%s", want, out)
		}
	}
}

func TestToolNamesUsed(t *testing.T) {
	w := NewWorkingMemory()
	w.RecordAttempt("read_file -> ok")
	w.RecordAttempt("read_file -> ok again")
	w.RecordAttempt("shell -> ls output")
	w.RecordAttempt("read_file -> third read")

	got := w.ToolNamesUsed()
	want := []string{"read_file", "shell", "read_file"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestClearResetsAll(t *testing.T) {
	w := NewWorkingMemory()
	w.SetGoal("g")
	w.RecordAttempt("a -> b")
	w.Clear()
	if w.PromptSection() != "" {
		t.Fatal("clear did not reset working memory")
	}
}
