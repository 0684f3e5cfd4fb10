package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// SchedulePeriodic submits fn every interval until the scheduler stops or
// the returned handle is passed to CancelPeriodic. The first run is one
// interval from now. Handles are distinct from task ids.
func (s *Scheduler) SchedulePeriodic(fn TaskFunc, interval time.Duration, name string, priority Priority) (string, error) {
	if fn == nil {
		return "", errors.New("nil task func")
	}
	if interval <= 0 {
		return "", errors.New("periodic interval must be positive")
	}
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return "", ErrNotRunning
	}
	id := "periodic-" + uuid.NewString()
	ctx, cancel := context.WithCancel(s.ctx)
	s.periodic[id] = cancel
	s.mu.Unlock()

	go s.periodicLoop(ctx, id, fn, interval, name, priority)
	s.log.Debug().Str("periodic_id", id).Str("name", name).Dur("interval", interval).Msg("periodic task scheduled")
	return id, nil
}

// CancelPeriodic stops a periodic loop. Tasks it already submitted are
// unaffected.
func (s *Scheduler) CancelPeriodic(id string) bool {
	s.mu.Lock()
	cancel, ok := s.periodic[id]
	delete(s.periodic, id)
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (s *Scheduler) periodicLoop(ctx context.Context, id string, fn TaskFunc, interval time.Duration, name string, priority Priority) {
	next := time.Now().Add(interval)
	timer := time.NewTimer(interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if _, err := s.ScheduleTask(fn, name, priority, TaskDefault); err != nil {
			if IsNotRunning(err) {
				return
			}
			s.log.Warn().Err(err).Str("periodic_id", id).Str("name", name).Msg("periodic submission failed")
		}
		now := time.Now()
		next = next.Add(interval)
		if next.Before(now) {
			// fell behind; skip missed ticks
			next = now.Add(interval)
		}
		timer.Reset(next.Sub(now))
	}
}
