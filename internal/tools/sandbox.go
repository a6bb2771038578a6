package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Sandbox resolves and validates workspace-relative paths. Every resolved
// path must remain under the root after cleaning; traversal out of the root
// is a PathEscapeError.
type Sandbox struct {
	Root string
}

func NewSandbox(root string) Sandbox {
	if strings.TrimSpace(root) == "" {
		root = "."
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return Sandbox{Root: root}
}

// Resolve returns an absolute, cleaned path within the sandbox root.
func (s Sandbox) Resolve(path string) (string, error) {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return "", fmt.Errorf("path is required")
	}
	rootAbs, err := filepath.Abs(s.Root)
	if err != nil {
		return "", fmt.Errorf("resolve workspace root: %w", err)
	}
	var target string
	if filepath.IsAbs(clean) {
		target = filepath.Clean(clean)
	} else {
		target = filepath.Join(rootAbs, clean)
	}
	targetAbs, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	rel, err := filepath.Rel(rootAbs, targetAbs)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", &PathEscapeError{Path: path}
	}
	return targetAbs, nil
}

// ReadFile reads a file inside the sandbox.
func (s Sandbox) ReadFile(path string) (string, error) {
	resolved, err := s.Resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("read failed: %w", err)
	}
	return string(data), nil
}

// WriteFile writes a file inside the sandbox, creating parent directories.
func (s Sandbox) WriteFile(path, content string) error {
	resolved, err := s.Resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

// ListDir lists a directory inside the sandbox, hiding dotfiles and marking
// subdirectories with a trailing slash. Entries are sorted.
func (s Sandbox) ListDir(path string) ([]string, error) {
	base := s.Root
	if path != "" && path != "." {
		resolved, err := s.Resolve(path)
		if err != nil {
			return nil, err
		}
		base = resolved
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, fmt.Errorf("list failed: %w", err)
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if e.IsDir() {
			name += "/"
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}
