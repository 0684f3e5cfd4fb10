package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestCleanCompletedTasks(t *testing.T) {
	s := newStarted(t, 2, Config{})
	var ids []string
	for i := 0; i < 4; i++ {
		ids = append(ids, mustSchedule(t, s, func(context.Context) (any, error) { return nil, nil }, "c", PriorityLow, TaskDefault))
	}
	for _, id := range ids {
		wait(t, s, id)
	}
	if n := s.CleanCompletedTasks(time.Hour); n != 0 {
		t.Fatalf("fresh tasks should survive a 1h retention, removed %d", n)
	}
	if n := s.CleanCompletedTasks(0); n != 4 {
		t.Fatalf("removed=%d want 4", n)
	}
	if n := s.CleanCompletedTasks(0); n != 0 {
		t.Fatalf("second clean removed=%d want 0", n)
	}
	if _, ok := s.TaskStatus(ids[0]); ok {
		t.Fatalf("cleaned task still visible")
	}
}

func TestCleanKeepsActiveTasks(t *testing.T) {
	s := newStarted(t, 1, Config{})
	gate := make(chan struct{})
	started := make(chan struct{})
	id := mustSchedule(t, s, func(context.Context) (any, error) { close(started); <-gate; return nil, nil }, "busy", PriorityLow, TaskDefault)
	<-started
	if n := s.CleanCompletedTasks(0); n != 0 {
		t.Fatalf("running task cleaned")
	}
	close(gate)
	wait(t, s, id)
}

func TestAutomaticCleanup(t *testing.T) {
	s := New(Config{CleanupInterval: 20 * time.Millisecond, Retention: time.Millisecond, PollInterval: 5 * time.Millisecond})
	s.Start(2)
	defer s.Stop(time.Second)
	id := mustSchedule(t, s, func(context.Context) (any, error) { return nil, nil }, "short-lived", PriorityLow, TaskDefault)
	wait(t, s, id)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := s.TaskStatus(id); !ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task was not garbage collected")
}
