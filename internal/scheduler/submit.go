package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ScheduleTask enqueues fn and returns its task id. It fails with
// ErrNotRunning before Start and with a queue-full error when the queue is at
// capacity.
func (s *Scheduler) ScheduleTask(fn TaskFunc, name string, priority Priority, taskType TaskType) (string, error) {
	if fn == nil {
		return "", errors.New("nil task func")
	}
	if !priority.Valid() {
		return "", fmt.Errorf("invalid priority %d", int(priority))
	}
	ln, ok := s.lanes[taskType]
	if !ok {
		return "", fmt.Errorf("invalid task type %d", int(taskType))
	}
	if name == "" {
		name = "task"
	}
	t := &task{
		info: TaskInfo{
			ID:        uuid.NewString(),
			Name:      name,
			Priority:  priority,
			Type:      taskType,
			Status:    StatusPending,
			CreatedAt: time.Now(),
		},
		fn:     fn,
		lane:   ln,
		future: newFuture(),
	}

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		rejections.WithLabelValues("not_running").Inc()
		return "", ErrNotRunning
	}
	if err := s.queue.push(t); err != nil {
		s.mu.Unlock()
		rejections.WithLabelValues("queue_full").Inc()
		s.log.Warn().Str("name", name).Err(err).Msg("task rejected")
		return "", err
	}
	s.tasks[t.info.ID] = t
	s.mu.Unlock()

	tasksSubmitted.WithLabelValues(ln.String()).Inc()
	queueDepth.Set(float64(s.queue.len()))
	s.log.Debug().Str("task_id", t.info.ID).Str("name", name).Stringer("priority", priority).Stringer("lane", ln).Msg("task scheduled")
	return t.info.ID, nil
}

// ScheduleCPUTask enqueues fn on the bounded CPU pool at medium priority.
func (s *Scheduler) ScheduleCPUTask(fn TaskFunc, name string) (string, error) {
	return s.ScheduleTask(fn, name, PriorityMedium, TaskCPUBound)
}

// ScheduleGPUTask enqueues fn on the exclusive GPU lane at medium priority.
func (s *Scheduler) ScheduleGPUTask(fn TaskFunc, name string) (string, error) {
	return s.ScheduleTask(fn, name, PriorityMedium, TaskGPUBound)
}

// CancelTask cancels a pending task outright, or flags a running one and
// cancels its context. Running bodies are not preempted. It returns false for
// unknown and already finished tasks.
func (s *Scheduler) CancelTask(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	switch t.info.Status {
	case StatusPending:
		s.cancelPendingLocked(t, time.Now())
		s.log.Debug().Str("task_id", id).Msg("pending task cancelled")
		return true
	case StatusRunning:
		t.info.CancelRequested = true
		if t.cancel != nil {
			t.cancel()
		}
		s.log.Debug().Str("task_id", id).Msg("cancel requested for running task")
		return true
	default:
		return false
	}
}

// TaskStatus returns a snapshot of the task.
func (s *Scheduler) TaskStatus(id string) (TaskInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return TaskInfo{}, false
	}
	return t.info, true
}

// TaskFuture returns the future of the task.
func (s *Scheduler) TaskFuture(id string) (*Future, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	return t.future, true
}

// ActiveTasks returns pending and running tasks, oldest first.
func (s *Scheduler) ActiveTasks() []TaskInfo {
	s.mu.RLock()
	out := make([]TaskInfo, 0, len(s.tasks))
	for _, t := range s.tasks {
		if !t.info.Status.Terminal() {
			out = append(out, t.info)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Counts returns the number of known tasks per status.
func (s *Scheduler) Counts() map[Status]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Status]int, 5)
	for _, t := range s.tasks {
		out[t.info.Status]++
	}
	return out
}
