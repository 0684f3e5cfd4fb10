package scheduler

import "time"

// CleanCompletedTasks drops terminal tasks that ended at least maxAge ago and
// returns how many were removed. maxAge 0 removes every terminal task.
func (s *Scheduler) CleanCompletedTasks(maxAge time.Duration) int {
	now := time.Now()
	s.mu.Lock()
	removed := 0
	for id, t := range s.tasks {
		if !t.info.Status.Terminal() {
			continue
		}
		if now.Sub(t.info.EndTime) >= maxAge {
			delete(s.tasks, id)
			removed++
		}
	}
	s.mu.Unlock()
	if removed > 0 {
		tasksCleaned.Add(float64(removed))
		s.log.Debug().Int("removed", removed).Dur("max_age", maxAge).Msg("cleaned completed tasks")
	}
	return removed
}
