package fsutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cases := map[string]string{
		"":              "",
		"~":             home,
		"~/models/llm":  filepath.Join(home, "models", "llm"),
		"/abs/path":     "/abs/path",
		"rel/path":      "rel/path",
		"~other/models": "~other/models",
	}
	for in, want := range cases {
		got, err := ExpandHome(in)
		if err != nil {
			t.Fatalf("ExpandHome(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ExpandHome(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if err := os.Mkdir(filepath.Join(home, "models"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	got, err := Dir("~/models")
	if err != nil {
		t.Fatalf("Dir: %v", err)
	}
	if got != filepath.Join(home, "models") {
		t.Fatalf("Dir = %q", got)
	}

	file := filepath.Join(home, "f.gguf")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Dir(file); !errors.Is(err, ErrNotDir) {
		t.Fatalf("want ErrNotDir, got %v", err)
	}
	if _, err := Dir(filepath.Join(home, "missing")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("want not-exist error, got %v", err)
	}
}
