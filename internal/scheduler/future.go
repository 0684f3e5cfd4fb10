package scheduler

import (
	"context"
	"sync"
)

// Future is the eventual outcome of a task. It is resolved exactly once.
type Future struct {
	once   sync.Once
	done   chan struct{}
	result any
	err    error
}

func newFuture() *Future { return &Future{done: make(chan struct{})} }

func (f *Future) resolve(result any, err error) {
	f.once.Do(func() {
		f.result = result
		f.err = err
		close(f.done)
	})
}

// Done is closed once the future is resolved.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the task finishes or ctx is done. A cancelled task
// yields ErrTaskCancelled. Callers enforce their own deadlines through ctx.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Resolved reports whether the task has finished.
func (f *Future) Resolved() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Result returns the outcome without blocking. ok is false while the task
// is still pending or running.
func (f *Future) Result() (result any, ok bool, err error) {
	if !f.Resolved() {
		return nil, false, nil
	}
	return f.result, true, f.err
}
