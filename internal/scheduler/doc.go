// Package scheduler runs in-process work items on a fixed pool of workers
// pulling from one shared priority queue. It is structured into small files by
// concern:
//
//   - scheduler.go: core Scheduler type, constructor, Start/Stop.
//   - config.go: Config and package defaults; New applies defaults.
//   - types.go: Priority, TaskType, Status and the TaskInfo snapshot.
//   - errors.go: error values and helpers (IsQueueFull, IsNotRunning).
//   - queue.go: bounded heap ordered by priority then arrival.
//   - lane.go: execution lanes (inline, CPU pool, exclusive GPU slot).
//   - worker.go: worker loop and task execution.
//   - submit.go: ScheduleTask and friends, cancellation, lookups.
//   - future.go: Future, resolved exactly once per task.
//   - periodic.go: periodic task loops.
//   - cleanup.go: garbage collection of old terminal tasks.
//   - context.go: task-scoped context values.
//   - metrics.go: Prometheus collectors.
//
// Cancellation is cooperative. A pending task is guaranteed never to run once
// cancelled; a running task only sees its context cancelled and may finish
// anyway.
package scheduler
