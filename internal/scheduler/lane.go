package scheduler

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// errAbandoned is returned by a lane that stopped waiting for a body because
// the scheduler is shutting down.
var errAbandoned = errors.New("task abandoned on scheduler stop")

// lane is an execution strategy, chosen once per task at submission.
type lane interface {
	fmt.Stringer
	// acquire blocks until the lane admits one more body or ctx is done.
	acquire(ctx context.Context) (release func(), err error)
	// exec runs fn. Detached lanes call release themselves when fn returns;
	// for the others the caller releases after recording the outcome.
	exec(ctx context.Context, stop <-chan struct{}, fn TaskFunc, release func()) (any, error)
	detached() bool
}

// inlineLane runs the body on the worker goroutine.
type inlineLane struct{}

func (inlineLane) String() string { return TaskDefault.String() }

func (inlineLane) acquire(ctx context.Context) (func(), error) {
	return func() {}, ctx.Err()
}

func (inlineLane) exec(ctx context.Context, _ <-chan struct{}, fn TaskFunc, _ func()) (any, error) {
	return safeCall(ctx, fn)
}

func (inlineLane) detached() bool { return false }

// gpuLane admits a single body at a time: one shared accelerator.
type gpuLane struct {
	slot chan struct{} // size 1: single in-flight GPU task
}

func newGPULane() *gpuLane { return &gpuLane{slot: make(chan struct{}, 1)} }

func (*gpuLane) String() string { return TaskGPUBound.String() }

func (l *gpuLane) acquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case l.slot <- struct{}{}:
		return func() { <-l.slot }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *gpuLane) exec(ctx context.Context, _ <-chan struct{}, fn TaskFunc, _ func()) (any, error) {
	return safeCall(ctx, fn)
}

// The slot is held until the outcome is recorded, so at most one GPU task
// is ever observed running.
func (*gpuLane) detached() bool { return false }

// cpuLane runs bodies on their own goroutines, at most size at once, so a
// blocking body never pins the worker past scheduler shutdown.
type cpuLane struct {
	sem *semaphore.Weighted
}

func newCPULane(size int) *cpuLane { return &cpuLane{sem: semaphore.NewWeighted(int64(size))} }

func (*cpuLane) String() string { return TaskCPUBound.String() }

func (l *cpuLane) acquire(ctx context.Context) (func(), error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { l.sem.Release(1) }, nil
}

func (*cpuLane) detached() bool { return true }

type outcome struct {
	result any
	err    error
}

func (l *cpuLane) exec(ctx context.Context, stop <-chan struct{}, fn TaskFunc, release func()) (any, error) {
	ch := make(chan outcome, 1)
	go func() {
		defer release()
		r, err := safeCall(ctx, fn)
		ch <- outcome{result: r, err: err}
	}()
	select {
	case o := <-ch:
		return o.result, o.err
	case <-stop:
		return nil, errAbandoned
	}
}

// safeCall isolates a panicking body into an error.
func safeCall(ctx context.Context, fn TaskFunc) (result any, err error) {
	defer func() {
		if v := recover(); v != nil {
			result, err = nil, taskPanicError{v: v}
		}
	}()
	return fn(ctx)
}
