package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Priority orders tasks in the queue. Larger values are served first.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// Valid reports whether p is one of the declared priorities.
func (p Priority) Valid() bool { return p >= PriorityLow && p <= PriorityCritical }

// ParsePriority maps a case-insensitive name to a Priority.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow, nil
	case "medium", "":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	case "critical":
		return PriorityCritical, nil
	}
	return 0, fmt.Errorf("unknown priority %q", s)
}

// TaskType selects the execution lane of a task.
type TaskType int

const (
	TaskDefault TaskType = iota
	TaskCPUBound
	TaskGPUBound
)

func (t TaskType) String() string {
	switch t {
	case TaskDefault:
		return "default"
	case TaskCPUBound:
		return "cpu_bound"
	case TaskGPUBound:
		return "gpu_bound"
	default:
		return fmt.Sprintf("task_type(%d)", int(t))
	}
}

// Status is the lifecycle state of a task.
//
//	pending -> running -> completed | failed | cancelled
//	pending -> cancelled
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// TaskFunc is the body of a task. Arguments are captured by the closure.
// The context carries the task id and is cancelled when the task is
// cancelled while running or when the scheduler stops.
type TaskFunc func(ctx context.Context) (any, error)

// TaskInfo is a read-only snapshot of a task. Zero StartTime/EndTime mean
// the task has not reached that point.
type TaskInfo struct {
	ID              string
	Name            string
	Priority        Priority
	Type            TaskType
	Status          Status
	CreatedAt       time.Time
	StartTime       time.Time
	EndTime         time.Time
	Result          any
	Error           string
	CancelRequested bool
}

// task is the scheduler-owned mutable record behind a TaskInfo.
type task struct {
	info   TaskInfo
	fn     TaskFunc
	lane   lane
	future *Future
	seq    uint64
	// cancel aborts the running task's context; nil until the task starts.
	cancel context.CancelFunc
}
