package llm

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeModel(t *testing.T, dir, name string, body []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, body, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestFileAdapterLoadUnload(t *testing.T) {
	d := t.TempDir()
	p := writeModel(t, d, "m.gguf", append([]byte("GGUF"), make([]byte, 3*warmupChunk/2)...))
	a := NewFileAdapter()
	ctx := context.Background()
	if err := a.Warmup(ctx); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("warmup before load: %v", err)
	}
	if err := a.Load(ctx, p); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !a.Loaded() || a.Path() != p {
		t.Fatalf("adapter not loaded")
	}
	// same path is a no-op
	if err := a.Load(ctx, p); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if err := a.Warmup(ctx); err != nil {
		t.Fatalf("warmup: %v", err)
	}
	if err := a.Unload(ctx); err != nil {
		t.Fatalf("unload: %v", err)
	}
	if a.Loaded() {
		t.Fatalf("adapter still loaded")
	}
	if err := a.Unload(ctx); err != nil {
		t.Fatalf("second unload: %v", err)
	}
}

func TestFileAdapterRejectsNonGGUF(t *testing.T) {
	d := t.TempDir()
	a := NewFileAdapter()
	ctx := context.Background()
	if err := a.Load(ctx, writeModel(t, d, "bad.gguf", []byte("GGML...."))); err == nil {
		t.Fatalf("expected header error")
	}
	if err := a.Load(ctx, writeModel(t, d, "short.gguf", []byte("GG"))); err == nil {
		t.Fatalf("expected error for truncated file")
	}
	if err := a.Load(ctx, filepath.Join(d, "missing.gguf")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if a.Loaded() {
		t.Fatalf("failed loads left adapter loaded")
	}
}

func TestFileAdapterSecondPathRejected(t *testing.T) {
	d := t.TempDir()
	a := NewFileAdapter()
	ctx := context.Background()
	if err := a.Load(ctx, writeModel(t, d, "a.gguf", []byte("GGUF"))); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := a.Load(ctx, writeModel(t, d, "b.gguf", []byte("GGUF"))); err == nil {
		t.Fatalf("expected error loading a second path")
	}
}

func TestFileAdapterHonorsContext(t *testing.T) {
	d := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewFileAdapter().Load(ctx, writeModel(t, d, "m.gguf", []byte("GGUF"))); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestFileAdapterReleaseCacheKeepsModelLoaded(t *testing.T) {
	p := writeModel(t, t.TempDir(), "m.gguf", append([]byte("GGUF"), make([]byte, warmupChunk)...))
	a := NewFileAdapter()
	ctx := context.Background()
	if err := a.ReleaseCache(ctx); err != nil {
		t.Fatalf("release on unloaded adapter: %v", err)
	}
	if err := a.Load(ctx, p); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := a.Warmup(ctx); err != nil {
		t.Fatalf("warmup: %v", err)
	}
	if err := a.ReleaseCache(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if !a.Loaded() || a.Path() != p {
		t.Fatalf("release must not unload the model")
	}
	if err := a.Warmup(ctx); err != nil {
		t.Fatalf("warmup after release: %v", err)
	}
	_ = a.Unload(ctx)
}
