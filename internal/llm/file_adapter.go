package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// ggufMagic opens every GGUF model file.
var ggufMagic = []byte("GGUF")

// ErrNotLoaded is returned by Warmup on an adapter without a loaded model.
var ErrNotLoaded = errors.New("model not loaded")

// warmupChunk is the read size used by Warmup to fault pages in.
const warmupChunk = 1 << 20

// FileAdapter keeps a model file open while loaded. It validates the GGUF
// header on load and pages the file in on warmup; it performs no inference.
type FileAdapter struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

func NewFileAdapter() *FileAdapter { return &FileAdapter{} }

// FileFactory returns a Factory producing FileAdapters.
func FileFactory() Factory { return func() Adapter { return NewFileAdapter() } }

func (a *FileAdapter) Load(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.f != nil {
		if a.path == path {
			return nil
		}
		return fmt.Errorf("adapter already holds %s", a.path)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open model: %w", err)
	}
	head := make([]byte, len(ggufMagic))
	if _, err := io.ReadFull(f, head); err != nil || !bytes.Equal(head, ggufMagic) {
		_ = f.Close()
		return fmt.Errorf("%s: not a GGUF file", path)
	}
	a.f, a.path = f, path
	return nil
}

func (a *FileAdapter) Unload(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.f == nil {
		return nil
	}
	err := a.f.Close()
	a.f, a.path = nil, ""
	return err
}

// Warmup reads the whole file, stopping early when ctx is done.
func (a *FileAdapter) Warmup(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.f == nil {
		return ErrNotLoaded
	}
	buf := make([]byte, warmupChunk)
	var off int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := a.f.ReadAt(buf, off)
		off += int64(n)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (a *FileAdapter) Loaded() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.f != nil
}

// Path returns the loaded model path, empty when unloaded.
func (a *FileAdapter) Path() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.path
}

// ReleaseCache drops the page cache Warmup filled. The file stays open.
func (a *FileAdapter) ReleaseCache(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.f == nil {
		return nil
	}
	return dropPageCache(a.f)
}
