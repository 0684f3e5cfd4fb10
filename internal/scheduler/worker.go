package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"
)

// worker pulls tasks until ctx is cancelled. Idle workers wake on the queue
// signal or every PollInterval to observe shutdown.
func (s *Scheduler) worker(ctx context.Context, wg *sync.WaitGroup, n int) {
	defer wg.Done()
	log := s.log.With().Int("worker", n).Logger()
	log.Debug().Msg("worker started")
	timer := time.NewTimer(s.cfg.PollInterval)
	defer timer.Stop()
	for {
		if ctx.Err() != nil {
			log.Debug().Msg("worker exiting")
			return
		}
		if t := s.queue.pop(); t != nil {
			queueDepth.Set(float64(s.queue.len()))
			s.runTask(ctx, t)
			continue
		}
		timer.Reset(s.cfg.PollInterval)
		select {
		case <-ctx.Done():
		case <-s.queue.signal:
		case <-timer.C:
		}
	}
}

// runTask executes one dequeued task. Any unexpected failure is logged and
// the worker moves on.
func (s *Scheduler) runTask(base context.Context, t *task) {
	defer func() {
		if v := recover(); v != nil {
			s.log.Error().Interface("panic", v).Str("task_id", t.info.ID).Msg("worker recovered from panic")
			s.finish(t, nil, taskPanicError{v: v})
		}
	}()

	s.mu.Lock()
	if t.info.Status != StatusPending {
		// cancelled while queued; already resolved
		s.mu.Unlock()
		return
	}
	if t.info.CancelRequested {
		s.cancelPendingLocked(t, time.Now())
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(withTaskID(base, t.info.ID))
	t.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	release, err := t.lane.acquire(ctx)
	if err != nil {
		s.finish(t, nil, err)
		return
	}

	s.mu.Lock()
	if t.info.Status != StatusPending {
		s.mu.Unlock()
		release()
		return
	}
	t.info.Status = StatusRunning
	t.info.StartTime = time.Now()
	s.mu.Unlock()
	runningTasks.WithLabelValues(t.lane.String()).Inc()
	defer runningTasks.WithLabelValues(t.lane.String()).Dec()

	s.log.Debug().Str("task_id", t.info.ID).Str("name", t.info.Name).Stringer("lane", t.lane).Msg("task started")
	if !t.lane.detached() {
		defer release()
	}
	result, err := t.lane.exec(ctx, base.Done(), t.fn, release)
	s.finish(t, result, err)
}

// finish records the terminal state of t and resolves its future.
func (s *Scheduler) finish(t *task, result any, err error) {
	s.mu.Lock()
	if t.info.Status.Terminal() {
		s.mu.Unlock()
		return
	}
	now := time.Now()
	t.info.EndTime = now
	var ferr error
	switch {
	case err == nil:
		t.info.Status = StatusCompleted
		t.info.Result = result
	case errors.Is(err, errAbandoned),
		t.info.CancelRequested && (errors.Is(err, context.Canceled) || errors.Is(err, ErrTaskCancelled)):
		t.info.Status = StatusCancelled
		t.info.Error = ErrTaskCancelled.Error()
		ferr = ErrTaskCancelled
	default:
		t.info.Status = StatusFailed
		t.info.Error = err.Error()
		ferr = err
	}
	info := t.info
	s.mu.Unlock()
	if ferr != nil {
		result = nil
	}

	t.future.resolve(result, ferr)
	tasksFinished.WithLabelValues(t.lane.String(), string(info.Status)).Inc()
	if !info.StartTime.IsZero() {
		taskDuration.WithLabelValues(t.lane.String()).Observe(now.Sub(info.StartTime).Seconds())
	}
	ev := s.log.Debug()
	if info.Status == StatusFailed {
		ev = s.log.Warn().Str("error", info.Error)
	}
	ev.Str("task_id", info.ID).Str("name", info.Name).Str("status", string(info.Status)).Msg("task finished")
}
