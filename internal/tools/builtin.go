package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// EchoTool repeats its input. Used in tests and as a connectivity probe.
type EchoTool struct{}

func (EchoTool) Name() string { return "echo" }

func (EchoTool) Description() string {
	return `Echo text back. Args: {"text": "message"}`
}

func (EchoTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"text": {"type": "string", "description": "Text to echo back."}
		},
		"required": []
	}`)
}

func (EchoTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	text := stringArg(args, "text")
	if text == "" {
		return "(empty)", nil
	}
	return text, nil
}

// ReadFileTool reads a file inside the workspace sandbox.
type ReadFileTool struct {
	FS Sandbox
}

func (t ReadFileTool) Name() string { return "read_file" }

func (t ReadFileTool) Description() string {
	return `Read file contents. Args: {"path": "file path relative to workspace"}`
}

func (t ReadFileTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "File path relative to the workspace root."}
		},
		"required": ["path"]
	}`)
}

func (t ReadFileTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	return t.FS.ReadFile(stringArg(args, "path"))
}

// WriteFileTool writes a file inside the workspace sandbox.
type WriteFileTool struct {
	FS Sandbox
}

func (t WriteFileTool) Name() string { return "write_file" }

func (t WriteFileTool) Description() string {
	return `Write a file (parent directories are created). Args: {"path": "...", "content": "..."}`
}

func (t WriteFileTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "File path relative to the workspace root."},
			"content": {"type": "string", "description": "Full file content to write."}
		},
		"required": ["path", "content"]
	}`)
}

func (t WriteFileTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	path := stringArg(args, "path")
	if err := t.FS.WriteFile(path, stringArg(args, "content")); err != nil {
		return "", err
	}
	return fmt.Sprintf("wrote %s", path), nil
}

// ListDirTool lists a directory inside the workspace sandbox.
type ListDirTool struct {
	FS Sandbox
}

func (t ListDirTool) Name() string { return "list_dir" }

func (t ListDirTool) Description() string {
	return `List directory entries. Args: {"path": "directory path, default '.'"}`
}

func (t ListDirTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Directory path relative to the workspace root, default '.'."}
		},
		"required": []
	}`)
}

func (t ListDirTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	path := stringArg(args, "path")
	if path == "" {
		path = "."
	}
	entries, err := t.FS.ListDir(path)
	if err != nil {
		return "", err
	}
	return strings.Join(entries, "\n"), nil
}
