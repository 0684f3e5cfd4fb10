package scheduler

import (
	"errors"
	"fmt"
)

// ErrNotRunning is returned when work is submitted before Start or after Stop.
var ErrNotRunning = errors.New("scheduler is not running")

// ErrTaskCancelled resolves the future of a cancelled task.
var ErrTaskCancelled = errors.New("task cancelled")

// queueFullError signals the bounded queue rejected a submission.
type queueFullError struct{ depth int }

func (e queueFullError) Error() string {
	return fmt.Sprintf("resource exhausted: task queue full (depth %d)", e.depth)
}

// IsQueueFull reports whether err indicates queue backpressure.
func IsQueueFull(err error) bool {
	var qf queueFullError
	return errors.As(err, &qf)
}

// IsNotRunning reports whether err indicates the scheduler was not started.
func IsNotRunning(err error) bool { return errors.Is(err, ErrNotRunning) }

// IsCancelled reports whether err is the cancellation signal of a task.
func IsCancelled(err error) bool { return errors.Is(err, ErrTaskCancelled) }

// taskPanicError wraps a value recovered from a panicking task body.
type taskPanicError struct{ v any }

func (e taskPanicError) Error() string { return fmt.Sprintf("task panicked: %v", e.v) }
