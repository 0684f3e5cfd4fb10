package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler owns the task table, the priority queue and the worker pool.
// Construct one per process and pass it to consumers.
type Scheduler struct {
	cfg Config
	log zerolog.Logger

	queue *taskQueue
	lanes map[TaskType]lane

	// mu guards the task table, the periodic table and the run state.
	mu       sync.RWMutex
	tasks    map[string]*task
	periodic map[string]context.CancelFunc
	running  bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       *sync.WaitGroup
}

// New constructs a stopped Scheduler from cfg.
func New(cfg Config) *Scheduler {
	cfg = cfg.withDefaults()
	return &Scheduler{
		cfg:   cfg,
		log:   cfg.Logger.With().Str("component", "scheduler").Logger(),
		queue: newTaskQueue(cfg.MaxQueueDepth),
		lanes: map[TaskType]lane{
			TaskDefault:  inlineLane{},
			TaskCPUBound: newCPULane(cfg.CPUPoolSize),
			TaskGPUBound: newGPULane(),
		},
		tasks:    make(map[string]*task),
		periodic: make(map[string]context.CancelFunc),
	}
}

// Start spawns workers worker loops (config default when <= 0) and schedules
// periodic garbage collection. Starting a running scheduler is a no-op.
func (s *Scheduler) Start(workers int) {
	if workers <= 0 {
		workers = s.cfg.Workers
	}
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn().Msg("scheduler already running")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}
	s.ctx, s.cancel, s.wg = ctx, cancel, wg
	s.running = true
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go s.worker(ctx, wg, i)
	}
	s.mu.Unlock()
	workersGauge.Set(float64(workers))
	s.log.Info().Int("workers", workers).Int("cpu_pool", s.cfg.CPUPoolSize).Msg("scheduler started")

	if s.cfg.CleanupInterval > 0 {
		retention := s.cfg.Retention
		_, err := s.SchedulePeriodic(func(context.Context) (any, error) {
			return s.CleanCompletedTasks(retention), nil
		}, s.cfg.CleanupInterval, "clean_completed_tasks", PriorityLow)
		if err != nil {
			s.log.Error().Err(err).Msg("schedule task cleanup")
		}
	}
}

// Stop halts the workers. Pending tasks are cancelled, running tasks have
// their context cancelled, and Stop waits up to timeout (0 = no wait) for
// workers to exit. CPU-bound bodies are never waited for.
func (s *Scheduler) Stop(timeout time.Duration) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.log.Warn().Msg("scheduler already stopped")
		return
	}
	s.running = false
	now := time.Now()
	s.queue.drain()
	dropped := 0
	for _, t := range s.tasks {
		switch t.info.Status {
		case StatusPending:
			s.cancelPendingLocked(t, now)
			dropped++
		case StatusRunning:
			t.info.CancelRequested = true
			if t.cancel != nil {
				t.cancel()
			}
		}
	}
	for id, cancel := range s.periodic {
		cancel()
		delete(s.periodic, id)
	}
	cancel, wg := s.cancel, s.wg
	s.mu.Unlock()

	cancel()
	queueDepth.Set(0)
	workersGauge.Set(0)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	if timeout > 0 {
		select {
		case <-done:
		case <-time.After(timeout):
			s.log.Warn().Dur("timeout", timeout).Msg("workers still busy after stop timeout")
		}
	}
	s.log.Info().Int("cancelled_pending", dropped).Msg("scheduler stopped")
}

// Running reports whether the scheduler accepts work.
func (s *Scheduler) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// QueueLen returns the number of tasks waiting for a worker.
func (s *Scheduler) QueueLen() int { return s.queue.len() }

// cancelPendingLocked finishes a task that never started. Caller holds mu.
func (s *Scheduler) cancelPendingLocked(t *task, now time.Time) {
	t.info.CancelRequested = true
	t.info.Status = StatusCancelled
	t.info.EndTime = now
	t.info.Error = ErrTaskCancelled.Error()
	if t.cancel != nil {
		t.cancel()
	}
	t.future.resolve(nil, ErrTaskCancelled)
	tasksFinished.WithLabelValues(t.lane.String(), string(StatusCancelled)).Inc()
}
