package httpapi

import (
	"context"
	"sync/atomic"
	"time"

	"agentd/internal/resource"
	"agentd/internal/scheduler"
	"agentd/pkg/types"
)

// Core implements Service over a scheduler and a resource manager.
type Core struct {
	sched   *scheduler.Scheduler
	mgr     *resource.Manager
	started time.Time
	ready   atomic.Bool
}

func NewCore(s *scheduler.Scheduler, m *resource.Manager) *Core {
	return &Core{sched: s, mgr: m, started: time.Now()}
}

// SetReady flips /readyz; the daemon sets it once every service initialized.
func (c *Core) SetReady(v bool) { c.ready.Store(v) }

func (c *Core) Ready() bool { return c.ready.Load() && c.sched.Running() }

func (c *Core) Status() types.StatusResponse {
	counts := c.sched.Counts()
	byName := make(map[string]int, len(counts))
	for st, n := range counts {
		byName[string(st)] = n
	}
	st := c.mgr.Stats()
	now := time.Now()
	return types.StatusResponse{
		Scheduler: types.SchedulerStatus{
			Running:  c.sched.Running(),
			QueueLen: c.sched.QueueLen(),
			Counts:   byName,
		},
		ResourceState:  st.LastState.String(),
		LoadedModels:   st.LoadedModels,
		TotalModels:    st.TotalModels,
		UptimeSeconds:  int64(now.Sub(c.started).Seconds()),
		ServerTimeUnix: now.Unix(),
	}
}

func (c *Core) Tasks() []types.Task {
	active := c.sched.ActiveTasks()
	out := make([]types.Task, 0, len(active))
	for _, ti := range active {
		out = append(out, taskView(ti))
	}
	return out
}

func (c *Core) Task(id string) (types.Task, error) {
	ti, ok := c.sched.TaskStatus(id)
	if !ok {
		return types.Task{}, ErrTaskNotFound(id)
	}
	return taskView(ti), nil
}

func (c *Core) CancelTask(id string) (types.CancelResponse, error) {
	if _, ok := c.sched.TaskStatus(id); !ok {
		return types.CancelResponse{}, ErrTaskNotFound(id)
	}
	ok := c.sched.CancelTask(id)
	ti, _ := c.sched.TaskStatus(id)
	return types.CancelResponse{ID: id, Cancelled: ok, Status: string(ti.Status)}, nil
}

func (c *Core) Resources() types.ResourcesResponse {
	st := c.mgr.Stats()
	models := c.mgr.Models()
	resp := types.ResourcesResponse{
		Usage:          usageView(st.Usage),
		State:          st.LastState.String(),
		Models:         make([]types.ModelStatus, 0, len(models)),
		LoadedModels:   st.LoadedModels,
		LoadedMemoryMB: st.LoadedMemoryMB,
		CacheHits:      st.CacheHits,
		CacheMisses:    st.CacheMisses,
		CacheSizeMB:    st.CacheSizeMB,
		CacheLimitMB:   st.CacheLimitMB,
		EvictionsTotal: st.Evictions,
		LowMemoryMode:  c.mgr.ShouldUseLowMemoryMode(),
		Precision:      string(c.mgr.OptimalPrecision()),
	}
	for _, m := range models {
		resp.Models = append(resp.Models, types.ModelStatus{
			ID:           m.ID,
			Type:         m.Type,
			Priority:     m.Priority.String(),
			MemoryMB:     m.MemoryMB,
			Loaded:       m.Loaded,
			LastUsedUnix: m.LastUsed.Unix(),
			UsageCount:   m.UsageCount,
		})
	}
	return resp
}

func (c *Core) Optimize(ctx context.Context) types.OptimizeResponse {
	state := c.mgr.OptimizeResources(ctx)
	loaded := 0
	for _, m := range c.mgr.Models() {
		if m.Loaded {
			loaded++
		}
	}
	return types.OptimizeResponse{State: state.String(), LoadedModels: loaded}
}

func taskView(ti scheduler.TaskInfo) types.Task {
	t := types.Task{
		ID:              ti.ID,
		Name:            ti.Name,
		Priority:        ti.Priority.String(),
		Type:            ti.Type.String(),
		Status:          string(ti.Status),
		CreatedAtUnix:   ti.CreatedAt.Unix(),
		Error:           ti.Error,
		CancelRequested: ti.CancelRequested,
	}
	if !ti.StartTime.IsZero() {
		t.StartTimeUnix = ti.StartTime.Unix()
	}
	if !ti.EndTime.IsZero() {
		t.EndTimeUnix = ti.EndTime.Unix()
	}
	return t
}

func usageView(u resource.Usage) types.Usage {
	out := types.Usage{
		CPUPercent:          u.CPUPercent,
		ProcessMemoryMB:     u.ProcessMemoryMB,
		SystemMemoryPercent: u.SystemMemoryPercent,
		DiskPercent:         u.DiskPercent,
	}
	if u.HasGPU {
		pct, total := u.GPUMemoryPercent, u.GPUMemoryTotalMB
		out.GPUMemoryPercent = &pct
		out.GPUMemoryTotalMB = &total
	}
	return out
}
