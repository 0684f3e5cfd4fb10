package scheduler

import "context"

type ctxKey int

const taskIDKey ctxKey = iota

// withTaskID scopes id to the execution of a single task.
func withTaskID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, taskIDKey, id)
}

// TaskIDFromContext returns the id of the task whose body is executing with
// ctx. Nested code uses it for progress reporting.
func TaskIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(taskIDKey).(string)
	return id, ok && id != ""
}
