package scheduler

import (
	"context"
	"testing"
	"time"
)

// newStarted returns a running scheduler with GC disabled; it is stopped at
// test cleanup.
func newStarted(t *testing.T, workers int, cfg Config) *Scheduler {
	t.Helper()
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = -1
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 10 * time.Millisecond
	}
	s := New(cfg)
	s.Start(workers)
	t.Cleanup(func() { s.Stop(time.Second) })
	return s
}

// wait resolves the future of id or fails the test after 2s.
func wait(t *testing.T, s *Scheduler, id string) (any, error) {
	t.Helper()
	f, ok := s.TaskFuture(id)
	if !ok {
		t.Fatalf("no future for %s", id)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := f.Wait(ctx)
	if ctx.Err() != nil {
		t.Fatalf("timeout waiting for task %s", id)
	}
	return res, err
}

func waitStatus(t *testing.T, s *Scheduler, id string, want Status) TaskInfo {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if info, ok := s.TaskStatus(id); ok && info.Status == want {
			return info
		}
		time.Sleep(2 * time.Millisecond)
	}
	info, _ := s.TaskStatus(id)
	t.Fatalf("task %s status=%s want %s", id, info.Status, want)
	return info
}

func mustSchedule(t *testing.T, s *Scheduler, fn TaskFunc, name string, p Priority, tt TaskType) string {
	t.Helper()
	id, err := s.ScheduleTask(fn, name, p, tt)
	if err != nil {
		t.Fatalf("schedule %s: %v", name, err)
	}
	return id
}
