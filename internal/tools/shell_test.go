package tools

import (
	"context"
	"encoding/json"
	"runtime"
	"strings"
	"testing"
	"time"
)

func shellArgs(command string) json.RawMessage {
	raw, _ := json.Marshal(map[string]string{"command": command})
	return raw
}

func TestShellAllowlistedCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix shell expected")
	}
	tool := NewShellTool([]string{"echo"}, 10*time.Second)
	out, err := tool.Execute(context.Background(), shellArgs("echo hello"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "hello" {
		t.Fatalf("got %q", out)
	}
}

func TestShellRejectsUnlistedCommand(t *testing.T) {
	tool := NewShellTool([]string{"ls"}, time.Second)
	_, err := tool.Execute(context.Background(), shellArgs("cat /etc/passwd"))
	if err == nil || !strings.Contains(err.Error(), "not in allowlist") {
		t.Fatalf("err = %v", err)
	}
}

func TestShellRejectsForbiddenPatterns(t *testing.T) {
	tool := NewShellTool([]string{"rm", "echo"}, time.Second)
	for _, cmd := range []string{"rm -rf /", "echo hi && rm -r dir", "echo `dd if=/dev/zero`"} {
		if _, err := tool.Execute(context.Background(), shellArgs(cmd)); err == nil {
			t.Fatalf("forbidden command accepted: %q", cmd)
		}
	}
}

func TestShellRejectsEmptyCommand(t *testing.T) {
	tool := NewShellTool([]string{"ls"}, time.Second)
	if _, err := tool.Execute(context.Background(), shellArgs("   ")); err == nil {
		t.Fatal("empty command accepted")
	}
}

func TestShellNonZeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix shell expected")
	}
	tool := NewShellTool([]string{"sh", "false", "ls"}, 10*time.Second)
	_, err := tool.Execute(context.Background(), shellArgs("ls /definitely/not/a/path"))
	if err == nil {
		t.Fatal("non-zero exit not surfaced")
	}
}

func TestShellTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix shell expected")
	}
	tool := NewShellTool([]string{"sleep"}, 100*time.Millisecond)
	_, err := tool.Execute(context.Background(), shellArgs("sleep 5"))
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("err = %v", err)
	}
}
