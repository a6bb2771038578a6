package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// forbiddenSubstrings are rejected even when the command name is allowlisted.
var forbiddenSubstrings = []string{
	"rm -rf",
	"rm -fr",
	"rm -r",
	"wget ",
	"curl | sh",
	"chmod 777",
	"chmod +s",
	"mkfs",
	"dd if=",
	"> /dev/sd",
	":(){ :|:& };:", // fork bomb
}

// ShellTool runs shell commands whose first token is in the allowlist.
type ShellTool struct {
	allowed map[string]bool
	timeout time.Duration
}

func NewShellTool(allowedCommands []string, timeout time.Duration) *ShellTool {
	allowed := make(map[string]bool, len(allowedCommands))
	for _, c := range allowedCommands {
		allowed[strings.ToLower(c)] = true
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ShellTool{allowed: allowed, timeout: timeout}
}

func (t *ShellTool) Name() string { return "shell" }

func (t *ShellTool) Description() string {
	names := make([]string, 0, len(t.allowed))
	for c := range t.allowed {
		names = append(names, c)
	}
	return fmt.Sprintf(
		`Run an allowlisted shell command (%d commands permitted). Args: {"command": "ls -la"}`,
		len(names),
	)
}

func (t *ShellTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"command": {"type": "string", "description": "The shell command to execute (first word must be in the allowlist)."}
		},
		"required": ["command"]
	}`)
}

func (t *ShellTool) checkAllowed(raw string) error {
	lower := strings.ToLower(raw)
	for _, forbidden := range forbiddenSubstrings {
		if strings.Contains(lower, forbidden) {
			return fmt.Errorf("forbidden pattern: %s", forbidden)
		}
	}
	fields := strings.Fields(lower)
	if len(fields) == 0 {
		return fmt.Errorf("empty command")
	}
	if !t.allowed[fields[0]] {
		return fmt.Errorf("command %q not in allowlist", fields[0])
	}
	return nil
}

func (t *ShellTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	command := strings.TrimSpace(stringArg(args, "command"))
	if err := t.checkAllowed(command); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", command)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", command)
	}

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("command timed out after %s", t.timeout)
	}
	if err != nil {
		return "", fmt.Errorf("exit %v\nstderr: %s", err, strings.TrimSpace(stderr.String()))
	}
	if stderr.Len() == 0 {
		return stdout.String(), nil
	}
	return fmt.Sprintf("%s\nstderr: %s",
		strings.TrimSpace(stdout.String()), strings.TrimSpace(stderr.String())), nil
}
