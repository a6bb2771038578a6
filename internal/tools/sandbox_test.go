package tools

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveInsideRoot(t *testing.T) {
	root := t.TempDir()
	s := NewSandbox(root)
	got, err := s.Resolve("sub/file.txt")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got, root) {
		t.Fatalf("resolved outside root: %s", got)
	}
}

func TestResolveRejectsEscape(t *testing.T) {
	s := NewSandbox(t.TempDir())
	for _, path := range []string{"../secret", "a/../../etc/passwd", "/etc/passwd"} {
		_, err := s.Resolve(path)
		var escape *PathEscapeError
		if !errors.As(err, &escape) {
			t.Fatalf("path %q: err = %v, want PathEscapeError", path, err)
		}
		if escape.Path != path {
			t.Fatalf("escape records %q, want %q", escape.Path, path)
		}
	}
}

func TestResolveEmptyPath(t *testing.T) {
	s := NewSandbox(t.TempDir())
	if _, err := s.Resolve("  "); err == nil {
		t.Fatal("empty path accepted")
	}
}

func TestReadWriteRoundTrip(t *testing.T) {
	s := NewSandbox(t.TempDir())
	if err := s.WriteFile("notes/today.md", "remember the milk"); err != nil {
		t.Fatal(err)
	}
	got, err := s.ReadFile("notes/today.md")
	if err != nil {
		t.Fatal(err)
	}
	if got != "remember the milk" {
		t.Fatalf("got %q", got)
	}
}

func TestListDirHidesDotfilesAndMarksDirs(t *testing.T) {
	root := t.TempDir()
	s := NewSandbox(root)
	if err := os.MkdirAll(filepath.Join(root, "subdir"), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"visible.txt", ".hidden"} {
		if err := os.WriteFile(filepath.Join(root, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := s.ListDir(".")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"subdir/", "visible.txt"}
	if len(entries) != 2 || entries[0] != want[0] || entries[1] != want[1] {
		t.Fatalf("entries = %v, want %v", entries, want)
	}
}
